package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventBus_DeliversInOrder(t *testing.T) {
	bus := NewEventBus()

	var got []string
	bus.Subscribe(StateChanged, func(e Event) {
		got = append(got, "first:"+e.Data.(StateChange).To)
	})
	bus.Subscribe(StateChanged, func(e Event) {
		got = append(got, "second:"+e.Data.(StateChange).To)
	})
	bus.Subscribe(Ended, func(Event) {
		got = append(got, "ended")
	})

	bus.Publish(StateChanged, StateChange{From: "idle", To: "loading"})
	bus.Publish(Ended, nil)

	assert.Equal(t, []string{"first:loading", "second:loading", "ended"}, got)
}

func TestEventBus_SubscribeReturnsCancel(t *testing.T) {
	bus := NewEventBus()

	var a, b int
	cancelA := bus.Subscribe(TimeUpdate, func(Event) { a++ })
	bus.Subscribe(TimeUpdate, func(Event) { b++ })

	bus.Publish(TimeUpdate, TimeUpdateData{})
	cancelA()
	cancelA()
	bus.Publish(TimeUpdate, TimeUpdateData{})

	assert.Equal(t, 1, a)
	assert.Equal(t, 2, b)
}

func TestEventBus_NilAndConcurrent(t *testing.T) {
	var nilBus *EventBus
	assert.NotPanics(t, func() { nilBus.Publish(Ended, nil) })

	bus := NewEventBus()
	var mu sync.Mutex
	count := 0
	bus.Subscribe(TimeUpdate, func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish(TimeUpdate, TimeUpdateData{})
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, count)
}
