package audio

import (
	"sync"
	"time"
)

// tracker polls the playhead on an interval and reports it when it moves.
type tracker struct {
	interval time.Duration
	poll     func() (position, duration time.Duration, ok bool)
	report   func(position, duration time.Duration)

	mu      sync.Mutex
	running bool
	done    chan struct{}
	wg      sync.WaitGroup
	last    time.Duration
}

func newTracker(interval time.Duration, poll func() (time.Duration, time.Duration, bool), report func(time.Duration, time.Duration)) *tracker {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	return &tracker{
		interval: interval,
		poll:     poll,
		report:   report,
		last:     -1,
	}
}

func (t *tracker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return
	}
	t.running = true
	t.done = make(chan struct{})

	t.wg.Add(1)
	go t.run(t.done)
}

// Stop halts polling and waits for the polling goroutine to exit.
func (t *tracker) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	close(t.done)
	t.mu.Unlock()

	t.wg.Wait()
}

// Reset forgets the last reported position so the next poll always reports.
func (t *tracker) Reset() {
	t.mu.Lock()
	t.last = -1
	t.mu.Unlock()
}

func (t *tracker) run(done <-chan struct{}) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.update()
		case <-done:
			return
		}
	}
}

func (t *tracker) update() {
	position, duration, ok := t.poll()
	if !ok {
		return
	}

	t.mu.Lock()
	if position == t.last {
		t.mu.Unlock()
		return
	}
	t.last = position
	t.mu.Unlock()

	t.report(position, duration)
}
