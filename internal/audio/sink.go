package audio

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
)

// Sink is the device the decoded stream is mixed into. The speaker package
// is the production sink; tests substitute their own.
type Sink interface {
	Init(sampleRate beep.SampleRate) error
	Play(s ...beep.Streamer)
	Clear()
	Lock()
	Unlock()
}

var (
	speakerInitialized bool
	speakerMutex       sync.Mutex
)

// SpeakerSink plays through the system audio device.
type SpeakerSink struct{}

// Init opens the audio device once per process; later calls are no-ops.
func (SpeakerSink) Init(sampleRate beep.SampleRate) error {
	speakerMutex.Lock()
	defer speakerMutex.Unlock()

	if speakerInitialized {
		return nil
	}

	bufferSize := sampleRate.N(time.Second / 10)
	if runtime.GOOS == "linux" {
		bufferSize = sampleRate.N(time.Second / 5)
	}

	if err := speaker.Init(sampleRate, bufferSize); err != nil {
		return fmt.Errorf("speaker initialization failed: %w", err)
	}

	speakerInitialized = true
	return nil
}

func (SpeakerSink) Play(s ...beep.Streamer) { speaker.Play(s...) }
func (SpeakerSink) Clear()                  { speaker.Clear() }
func (SpeakerSink) Lock()                   { speaker.Lock() }
func (SpeakerSink) Unlock()                 { speaker.Unlock() }

// NullSink accepts streamers and never pulls from them. It backs sessions
// that manage state without producing sound.
type NullSink struct {
	mu sync.Mutex
}

func (*NullSink) Init(beep.SampleRate) error { return nil }
func (*NullSink) Play(...beep.Streamer)      {}
func (*NullSink) Clear()                     {}
func (n *NullSink) Lock()                    { n.mu.Lock() }
func (n *NullSink) Unlock()                  { n.mu.Unlock() }
