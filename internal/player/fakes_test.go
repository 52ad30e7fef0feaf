package player

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/Alexander-D-Karpov/ampstream/pkg/types"
)

type fakeResolver struct {
	mu      sync.Mutex
	urls    map[string]string
	calls   int
	forgot  []string
	started chan struct{}
	block   chan struct{}
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{urls: map[string]string{}}
}

func (r *fakeResolver) Resolve(ctx context.Context, song *types.Song) (string, bool) {
	r.mu.Lock()
	r.calls++
	started, block := r.started, r.block
	url, ok := r.urls[song.ID]
	r.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", false
		}
	}
	return url, ok
}

func (r *fakeResolver) Forget(song *types.Song) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forgot = append(r.forgot, song.ID)
}

func (r *fakeResolver) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type fakeAudio struct {
	mu        sync.Mutex
	source    string
	playing   bool
	volume    float64
	position  time.Duration
	sourceErr error
	playErr   error
	closed    bool
	onTime    func(position, duration time.Duration)
	onEnded   func()
}

func (a *fakeAudio) SetSource(url string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sourceErr != nil {
		return a.sourceErr
	}
	a.source = url
	a.playing = false
	return nil
}

func (a *fakeAudio) Play(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.playErr != nil {
		return a.playErr
	}
	if a.source == "" {
		return errors.New("no source")
	}
	a.playing = true
	return nil
}

func (a *fakeAudio) Pause() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.playing = false
	return nil
}

func (a *fakeAudio) Seek(position time.Duration) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.position = position
	return nil
}

func (a *fakeAudio) Volume() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.volume
}

func (a *fakeAudio) SetVolume(v float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.volume = v
	return nil
}

func (a *fakeAudio) OnTimeUpdate(cb func(position, duration time.Duration)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onTime = cb
}

func (a *fakeAudio) OnEnded(cb func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onEnded = cb
}

func (a *fakeAudio) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return nil
}

func (a *fakeAudio) Source() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.source
}

func (a *fakeAudio) IsPlaying() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.playing
}

func (a *fakeAudio) end() {
	a.mu.Lock()
	cb := a.onEnded
	a.playing = false
	a.mu.Unlock()
	cb()
}

func (a *fakeAudio) tick(position, duration time.Duration) {
	a.mu.Lock()
	cb := a.onTime
	a.mu.Unlock()
	cb(position, duration)
}

type notification struct {
	Message  string
	Severity types.Severity
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []notification
}

func (n *recordingNotifier) Notify(message string, severity types.Severity) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, notification{message, severity})
}

func (n *recordingNotifier) All() []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification(nil), n.msgs...)
}

type mockSearcher struct {
	mock.Mock
}

func (m *mockSearcher) Search(ctx context.Context, query string) ([]*types.Song, error) {
	args := m.Called(ctx, query)
	songs, _ := args.Get(0).([]*types.Song)
	return songs, args.Error(1)
}

type memHistory struct {
	mu    sync.Mutex
	songs []*types.Song
}

func (h *memHistory) Append(_ context.Context, song *types.Song) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.songs = append([]*types.Song{song}, h.songs...)
	return nil
}

func (h *memHistory) IDs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.songs))
	for _, s := range h.songs {
		out = append(out, s.ID)
	}
	return out
}

type memVolume struct {
	mu sync.Mutex
	v  float64
}

func (m *memVolume) Volume(context.Context) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.v
}

func (m *memVolume) SetVolume(_ context.Context, v float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.v = v
	return nil
}
