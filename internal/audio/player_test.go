package audio

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gopxl/beep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Alexander-D-Karpov/ampstream/internal/log"
)

const testRate = beep.SampleRate(44100)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeStreamer struct {
	mu     sync.Mutex
	n      int
	pos    int
	closed bool
}

func (s *fakeStreamer) Stream(samples [][2]float64) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos >= s.n {
		return 0, false
	}
	k := len(samples)
	if rest := s.n - s.pos; k > rest {
		k = rest
	}
	for i := 0; i < k; i++ {
		samples[i] = [2]float64{}
	}
	s.pos += k
	return k, true
}

func (s *fakeStreamer) Err() error { return nil }

func (s *fakeStreamer) Len() int { return s.n }

func (s *fakeStreamer) Position() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

func (s *fakeStreamer) Seek(p int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pos = p
	return nil
}

func (s *fakeStreamer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type fakeSink struct {
	mu        sync.Mutex
	streamers []beep.Streamer
	inits     int
	initErr   error
}

func (s *fakeSink) Init(beep.SampleRate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inits++
	return s.initErr
}

func (s *fakeSink) Play(streamers ...beep.Streamer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streamers = append(s.streamers, streamers...)
}

func (s *fakeSink) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streamers = nil
}

func (s *fakeSink) Lock()   { s.mu.Lock() }
func (s *fakeSink) Unlock() { s.mu.Unlock() }

func (s *fakeSink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.streamers)
}

// drain pulls n samples through every playing streamer, the way the speaker
// goroutine would.
func (s *fakeSink) drain(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := make([][2]float64, n)
	kept := s.streamers[:0]
	for _, st := range s.streamers {
		if _, ok := st.Stream(buf); ok {
			kept = append(kept, st)
		}
	}
	s.streamers = kept
}

type env struct {
	player   *Player
	sink     *fakeSink
	streamer *fakeStreamer
	opened   atomic.Int32
}

func newEnv(t *testing.T, samples int) *env {
	t.Helper()
	e := &env{sink: &fakeSink{}}

	logger := log.Nop()
	p, err := NewPlayer(Options{
		SampleRate:   int(testRate),
		Volume:       0.5,
		TickInterval: 5 * time.Millisecond,
		Sink:         e.sink,
		Opener: func(ctx context.Context, source string) (io.ReadCloser, error) {
			e.opened.Add(1)
			return io.NopCloser(strings.NewReader(source)), nil
		},
		Decoder: func(rc io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error) {
			e.streamer = &fakeStreamer{n: samples}
			return e.streamer, beep.Format{SampleRate: testRate, NumChannels: 2, Precision: 2}, nil
		},
		Logger: &logger,
	})
	require.NoError(t, err)
	e.player = p
	t.Cleanup(func() { _ = p.Close() })
	return e
}

func TestPlayer_PlayWithoutSource(t *testing.T) {
	e := newEnv(t, 100)
	assert.ErrorIs(t, e.player.Play(context.Background()), ErrNoSource)
	assert.Error(t, e.player.SetSource("  "))
	assert.ErrorIs(t, e.player.Seek(time.Second), ErrNoSource)
}

func TestPlayer_LoadsOnFirstPlay(t *testing.T) {
	e := newEnv(t, int(testRate)*10)

	require.NoError(t, e.player.SetSource("https://cdn/a.mp3"))
	assert.Equal(t, int32(0), e.opened.Load())

	require.NoError(t, e.player.Play(context.Background()))
	assert.Equal(t, int32(1), e.opened.Load())
	assert.Equal(t, 1, e.sink.Count())

	pos, dur := e.player.Position()
	assert.Equal(t, time.Duration(0), pos)
	assert.Equal(t, 10*time.Second, dur)

	require.NoError(t, e.player.Play(context.Background()))
	assert.Equal(t, int32(1), e.opened.Load())
}

func TestPlayer_PauseResume(t *testing.T) {
	e := newEnv(t, int(testRate)*10)
	require.NoError(t, e.player.SetSource("https://cdn/a.mp3"))
	require.NoError(t, e.player.Play(context.Background()))

	e.sink.drain(1000)
	require.NoError(t, e.player.Pause())
	paused := e.streamer.Position()

	e.sink.drain(1000)
	assert.Equal(t, paused, e.streamer.Position())

	require.NoError(t, e.player.Play(context.Background()))
	e.sink.drain(1000)
	assert.Greater(t, e.streamer.Position(), paused)
	assert.Equal(t, int32(1), e.opened.Load())
}

func TestPlayer_EndedCallback(t *testing.T) {
	e := newEnv(t, 2000)

	var ended atomic.Int32
	e.player.OnEnded(func() { ended.Add(1) })

	require.NoError(t, e.player.SetSource("https://cdn/a.mp3"))
	require.NoError(t, e.player.Play(context.Background()))

	for i := 0; i < 10 && e.sink.Count() > 0; i++ {
		e.sink.drain(1024)
	}

	require.Eventually(t, func() bool { return ended.Load() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, e.player.Play(context.Background()))
	assert.Equal(t, int32(2), e.opened.Load())
}

func TestPlayer_TimeUpdates(t *testing.T) {
	e := newEnv(t, int(testRate)*10)

	var mu sync.Mutex
	var last time.Duration
	e.player.OnTimeUpdate(func(position, duration time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		last = position
		assert.Equal(t, 10*time.Second, duration)
	})

	require.NoError(t, e.player.SetSource("https://cdn/a.mp3"))
	require.NoError(t, e.player.Play(context.Background()))
	e.sink.drain(int(testRate))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return last >= time.Second
	}, time.Second, 5*time.Millisecond)
}

func TestPlayer_Seek(t *testing.T) {
	e := newEnv(t, int(testRate)*10)
	require.NoError(t, e.player.SetSource("https://cdn/a.mp3"))
	require.NoError(t, e.player.Play(context.Background()))

	require.NoError(t, e.player.Seek(2*time.Second))
	assert.Equal(t, int(testRate)*2, e.streamer.Position())

	require.NoError(t, e.player.Seek(time.Hour))
	assert.Equal(t, int(testRate)*10-1, e.streamer.Position())
}

func TestPlayer_Volume(t *testing.T) {
	e := newEnv(t, 100)
	assert.InDelta(t, 0.5, e.player.Volume(), 1e-9)

	require.NoError(t, e.player.SetVolume(2))
	assert.InDelta(t, 1.0, e.player.Volume(), 1e-9)

	require.NoError(t, e.player.SetSource("https://cdn/a.mp3"))
	require.NoError(t, e.player.Play(context.Background()))
	require.NoError(t, e.player.SetVolume(0))

	e.player.mu.Lock()
	defer e.player.mu.Unlock()
	assert.True(t, e.player.volume.Silent)
	assert.InDelta(t, -5.0, e.player.volume.Volume, 1e-9)
}

func TestPlayer_SetSourceUnloads(t *testing.T) {
	e := newEnv(t, 1000)
	require.NoError(t, e.player.SetSource("https://cdn/a.mp3"))
	require.NoError(t, e.player.Play(context.Background()))
	first := e.streamer

	require.NoError(t, e.player.SetSource("https://cdn/b.mp3"))
	assert.Equal(t, 0, e.sink.Count())

	first.mu.Lock()
	assert.True(t, first.closed)
	first.mu.Unlock()
}

func TestPlayer_OpenAndDecodeErrors(t *testing.T) {
	sink := &fakeSink{}
	logger := log.Nop()

	p, err := NewPlayer(Options{
		Sink: sink,
		Opener: func(context.Context, string) (io.ReadCloser, error) {
			return nil, errors.New("404")
		},
		Logger: &logger,
	})
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.SetSource("https://cdn/missing.mp3"))
	assert.ErrorContains(t, p.Play(context.Background()), "open stream")

	p2, err := NewPlayer(Options{
		Sink: sink,
		Opener: func(context.Context, string) (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader("not an mp3")), nil
		},
		Decoder: func(io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error) {
			return nil, beep.Format{}, errors.New("mp3: no frame header")
		},
		Logger: &logger,
	})
	require.NoError(t, err)
	defer p2.Close()

	require.NoError(t, p2.SetSource("https://cdn/garbage.mp3"))
	assert.ErrorContains(t, p2.Play(context.Background()), "decode stream")
}

func TestPlayer_SourceChangedWhileLoading(t *testing.T) {
	sink := &fakeSink{}
	logger := log.Nop()
	release := make(chan struct{})
	entered := make(chan struct{}, 1)

	p, err := NewPlayer(Options{
		Sink: sink,
		Opener: func(context.Context, string) (io.ReadCloser, error) {
			entered <- struct{}{}
			<-release
			return io.NopCloser(strings.NewReader("")), nil
		},
		Decoder: func(io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error) {
			return &fakeStreamer{n: 10}, beep.Format{SampleRate: testRate, NumChannels: 2, Precision: 2}, nil
		},
		Logger: &logger,
	})
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.SetSource("https://cdn/a.mp3"))

	done := make(chan error, 1)
	go func() { done <- p.Play(context.Background()) }()

	<-entered
	require.NoError(t, p.SetSource("https://cdn/b.mp3"))
	close(release)

	assert.ErrorIs(t, <-done, ErrSourceChanged)
	assert.Equal(t, 0, sink.Count())
}

func TestPlayer_InitError(t *testing.T) {
	_, err := NewPlayer(Options{Sink: &fakeSink{initErr: errors.New("no device")}})
	assert.ErrorContains(t, err, "no device")
}

func TestHTTPOpener(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, "ampstream-test", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("ID3data"))
	}))
	defer srv.Close()

	open := HTTPOpener("ampstream-test")

	rc, err := open(context.Background(), srv.URL+"/song.mp3")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "ID3data", string(data))

	_, err = open(context.Background(), srv.URL+"/missing")
	assert.ErrorContains(t, err, "bad status")

	path := filepath.Join(t.TempDir(), "local.mp3")
	require.NoError(t, os.WriteFile(path, []byte("local"), 0o644))
	rc, err = open(context.Background(), path)
	require.NoError(t, err)
	data, err = io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "local", string(data))
}

func TestNullSink(t *testing.T) {
	logger := log.Nop()
	p, err := NewPlayer(Options{Sink: &NullSink{}, Logger: &logger})
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.SetVolume(0.3))
	assert.InDelta(t, 0.3, p.Volume(), 1e-9)
	assert.ErrorIs(t, p.Play(context.Background()), ErrNoSource)
}
