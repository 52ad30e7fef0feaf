// Package events carries playback notifications from the session to
// whatever is displaying it.
package events

import (
	"sync"
	"time"

	"github.com/Alexander-D-Karpov/ampstream/pkg/types"
)

type Type string

const (
	// NowPlaying carries the *types.Song shown as current, which may be
	// provisional while a play is in flight.
	NowPlaying Type = "now_playing"
	// StateChanged carries a StateChange.
	StateChanged Type = "state_changed"
	// TimeUpdate carries a TimeUpdate.
	TimeUpdate Type = "time_update"
	// Ended is published with nil data when the output reaches the end.
	Ended Type = "ended"
	// PlaylistChanged carries the new []*types.Song.
	PlaylistChanged Type = "playlist_changed"
)

type Event struct {
	Type Type
	Data interface{}
}

type StateChange struct {
	From string
	To   string
}

type TimeUpdateData struct {
	Position time.Duration
	Duration time.Duration
}

// NowPlayingData is the payload of NowPlaying events.
type NowPlayingData struct {
	Song        *types.Song
	Provisional bool
}

type EventHandler func(Event)

type subscription struct {
	id      uint64
	handler EventHandler
}

// EventBus delivers events to subscribers synchronously, in subscription
// order, on the publisher's goroutine. Handlers must not block.
type EventBus struct {
	subscribers map[Type][]subscription
	nextID      uint64
	mutex       sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[Type][]subscription),
	}
}

// Subscribe registers handler for eventType and returns a function that
// removes it again.
func (bus *EventBus) Subscribe(eventType Type, handler EventHandler) func() {
	bus.mutex.Lock()
	defer bus.mutex.Unlock()

	bus.nextID++
	id := bus.nextID
	bus.subscribers[eventType] = append(bus.subscribers[eventType], subscription{id: id, handler: handler})

	return func() {
		bus.mutex.Lock()
		defer bus.mutex.Unlock()

		subs := bus.subscribers[eventType]
		for i, s := range subs {
			if s.id == id {
				bus.subscribers[eventType] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

func (bus *EventBus) Publish(eventType Type, data interface{}) {
	if bus == nil {
		return
	}

	bus.mutex.RLock()
	handlers := bus.subscribers[eventType]
	bus.mutex.RUnlock()

	event := Event{Type: eventType, Data: data}
	for _, s := range handlers {
		s.handler(event)
	}
}
