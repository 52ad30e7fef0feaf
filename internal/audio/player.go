// Package audio decodes a remote or local mp3 stream and plays it through
// the system speaker.
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/mp3"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"github.com/Alexander-D-Karpov/ampstream/internal/config"
	"github.com/Alexander-D-Karpov/ampstream/internal/log"
)

var (
	ErrNoSource      = errors.New("no source loaded")
	ErrSourceChanged = errors.New("source changed while loading")
)

// Opener returns a reader for a stream URL or local path.
type Opener func(ctx context.Context, source string) (io.ReadCloser, error)

// Decoder turns an encoded stream into samples. mp3.Decode is the default.
type Decoder func(rc io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error)

type Options struct {
	SampleRate   int
	Volume       float64
	UserAgent    string
	TickInterval time.Duration

	Sink    Sink
	Opener  Opener
	Decoder Decoder
	Logger  *zerolog.Logger
}

// OptionsFromConfig maps the audio section of the configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		SampleRate: cfg.Audio.SampleRate,
		Volume:     cfg.Audio.DefaultVolume,
		UserAgent:  cfg.API.UserAgent,
	}
}

// Player is the single audio output of a session. A source is loaded
// lazily by the first Play after SetSource; later Plays resume it.
type Player struct {
	mu sync.Mutex

	sink       Sink
	open       Opener
	decode     Decoder
	sampleRate beep.SampleRate
	logger     zerolog.Logger

	source   string
	gen      uint64
	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	volume   *effects.Volume
	level    float64
	duration time.Duration
	playing  bool
	paused   bool

	onTime  func(position, duration time.Duration)
	onEnded func()

	tracker *tracker
	wg      sync.WaitGroup
	closed  bool
}

func NewPlayer(opts Options) (*Player, error) {
	if opts.SampleRate <= 0 {
		opts.SampleRate = 44100
	}
	if opts.Sink == nil {
		opts.Sink = SpeakerSink{}
	}
	if opts.Decoder == nil {
		opts.Decoder = mp3.Decode
	}
	if opts.Opener == nil {
		opts.Opener = HTTPOpener(opts.UserAgent)
	}

	logger := log.WithComponent("audio")
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	p := &Player{
		sink:       opts.Sink,
		open:       opts.Opener,
		decode:     opts.Decoder,
		sampleRate: beep.SampleRate(opts.SampleRate),
		level:      clamp(opts.Volume),
		logger:     logger,
	}

	if err := p.sink.Init(p.sampleRate); err != nil {
		return nil, fmt.Errorf("failed to initialize speaker: %w", err)
	}

	p.tracker = newTracker(opts.TickInterval, p.pollPosition, p.reportPosition)
	p.tracker.Start()

	p.logger.Debug().Int("sample_rate", int(p.sampleRate)).Msg("player initialized")
	return p, nil
}

// HTTPOpener streams http(s) sources and opens anything else as a local
// file, which lets downloaded songs play through the same path.
func HTTPOpener(userAgent string) Opener {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 1
	retryClient.Logger = nil
	client := retryClient.StandardClient()

	return func(ctx context.Context, source string) (io.ReadCloser, error) {
		if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
			f, err := os.Open(strings.TrimPrefix(source, "file://"))
			if err != nil {
				return nil, fmt.Errorf("open local file: %w", err)
			}
			return f, nil
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		if userAgent != "" {
			req.Header.Set("User-Agent", userAgent)
		}
		req.Header.Set("Accept", "audio/mpeg, audio/*")

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to execute request: %w", err)
		}

		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
			resp.Body.Close()
			return nil, fmt.Errorf("bad status: %s", resp.Status)
		}

		return resp.Body, nil
	}
}

// SetSource unloads the current stream and remembers source for the next
// Play.
func (p *Player) SetSource(source string) error {
	if strings.TrimSpace(source) == "" {
		return fmt.Errorf("empty source")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrNoSource
	}

	p.stopInternal()
	p.source = source
	p.gen++
	p.tracker.Reset()
	return nil
}

// Play starts the loaded source, loading it first if needed, or resumes it
// when paused.
func (p *Player) Play(ctx context.Context) error {
	p.mu.Lock()
	if p.ctrl != nil {
		if p.paused {
			p.sink.Lock()
			p.ctrl.Paused = false
			p.sink.Unlock()
			p.paused = false
			p.logger.Debug().Msg("resumed playback")
		}
		p.mu.Unlock()
		return nil
	}
	source, gen := p.source, p.gen
	p.mu.Unlock()

	if source == "" {
		return ErrNoSource
	}

	reader, err := p.open(ctx, source)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}

	streamer, format, err := p.decode(reader)
	if err != nil {
		reader.Close()
		return fmt.Errorf("decode stream: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.gen != gen || p.closed {
		streamer.Close()
		return ErrSourceChanged
	}

	p.streamer = streamer
	p.format = format
	p.duration = 0
	if n := streamer.Len(); n > 0 {
		p.duration = format.SampleRate.D(n)
	}

	resampled := beep.Resample(4, format.SampleRate, p.sampleRate, streamer)
	p.ctrl = &beep.Ctrl{Streamer: resampled, Paused: false}
	p.volume = &effects.Volume{
		Streamer: p.ctrl,
		Base:     2,
		Volume:   gain(p.level),
		Silent:   p.level == 0,
	}

	p.sink.Clear()
	p.sink.Play(beep.Seq(p.volume, beep.Callback(func() {
		// Runs on the sink's goroutine with its lock held.
		p.wg.Add(1)
		go p.finished(gen)
	})))

	p.playing = true
	p.paused = false

	p.logger.Debug().
		Int("sample_rate", int(format.SampleRate)).
		Int("channels", format.NumChannels).
		Dur("duration", p.duration).
		Msg("started playback")

	return nil
}

func (p *Player) finished(gen uint64) {
	defer p.wg.Done()

	p.mu.Lock()
	if p.gen != gen || !p.playing {
		p.mu.Unlock()
		return
	}
	p.stopInternal()
	callback := p.onEnded
	p.mu.Unlock()

	p.logger.Debug().Msg("playback finished")
	if callback != nil {
		callback()
	}
}

// stopInternal must be called with mu held.
func (p *Player) stopInternal() {
	if p.playing || p.paused {
		p.sink.Clear()
	}

	if p.streamer != nil {
		if err := p.streamer.Close(); err != nil {
			p.logger.Debug().Err(err).Msg("error closing streamer")
		}
		p.streamer = nil
	}

	p.ctrl = nil
	p.volume = nil
	p.duration = 0
	p.playing = false
	p.paused = false
}

func (p *Player) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ctrl != nil && p.playing && !p.paused {
		p.sink.Lock()
		p.ctrl.Paused = true
		p.sink.Unlock()
		p.paused = true
		p.logger.Debug().Msg("paused playback")
	}
	return nil
}

func (p *Player) Seek(position time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.streamer == nil {
		return ErrNoSource
	}

	pos := p.format.SampleRate.N(position)
	if pos < 0 {
		pos = 0
	}
	if n := p.streamer.Len(); n > 0 && pos >= n {
		pos = n - 1
	}

	p.sink.Lock()
	err := p.streamer.Seek(pos)
	p.sink.Unlock()
	if err != nil {
		return fmt.Errorf("seek: %w", err)
	}

	p.tracker.Reset()
	return nil
}

func (p *Player) Volume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}

// SetVolume takes a linear level in [0, 1]. It is kept across sources.
func (p *Player) SetVolume(volume float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.level = clamp(volume)
	if p.volume != nil {
		p.sink.Lock()
		p.volume.Volume = gain(p.level)
		p.volume.Silent = p.level == 0
		p.sink.Unlock()
	}
	return nil
}

// Position reports the playhead and the stream length, if known.
func (p *Player) Position() (time.Duration, time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.streamer == nil {
		return 0, 0
	}
	p.sink.Lock()
	pos := p.streamer.Position()
	p.sink.Unlock()
	return p.format.SampleRate.D(pos), p.duration
}

func (p *Player) OnTimeUpdate(callback func(position, duration time.Duration)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onTime = callback
}

func (p *Player) OnEnded(callback func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onEnded = callback
}

func (p *Player) pollPosition() (time.Duration, time.Duration, bool) {
	p.mu.Lock()
	active := p.streamer != nil && p.playing && !p.paused
	p.mu.Unlock()

	if !active {
		return 0, 0, false
	}
	pos, dur := p.Position()
	return pos, dur, true
}

func (p *Player) reportPosition(position, duration time.Duration) {
	p.mu.Lock()
	callback := p.onTime
	p.mu.Unlock()

	if callback != nil {
		callback(position, duration)
	}
}

// Close stops playback and the position tracker. The speaker itself stays
// initialized for the life of the process.
func (p *Player) Close() error {
	p.tracker.Stop()

	p.mu.Lock()
	p.closed = true
	p.gen++
	p.stopInternal()
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Debug().Msg("player closed")
	return nil
}

// gain maps a linear level onto effects.Volume's exponent: 1 is unity,
// each step of 0.2 below it halves the amplitude.
func gain(level float64) float64 {
	return (level - 1) * 5
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
