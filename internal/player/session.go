// Package player owns the playback session: the playlist, what is playing,
// the single audio output and the guard against overlapping plays.
package player

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Alexander-D-Karpov/ampstream/internal/events"
	"github.com/Alexander-D-Karpov/ampstream/internal/library"
	"github.com/Alexander-D-Karpov/ampstream/pkg/types"
)

// Resolver finds a stream URL for a song. resolver.Resolver satisfies it.
type Resolver interface {
	Resolve(ctx context.Context, song *types.Song) (string, bool)
	Forget(song *types.Song)
}

// Searcher runs a remote search. api.SearchClient satisfies it.
type Searcher interface {
	Search(ctx context.Context, query string) ([]*types.Song, error)
}

// History records songs that started playing.
type History interface {
	Append(ctx context.Context, song *types.Song) error
}

// VolumeStore persists the output volume between runs.
type VolumeStore interface {
	Volume(ctx context.Context) float64
	SetVolume(ctx context.Context, v float64) error
}

type Options struct {
	Resolver Resolver
	Audio    types.AudioOutput
	Notifier types.Notifier
	Searcher Searcher

	// Optional collaborators.
	History     History
	Preferences VolumeStore
	Bus         *events.EventBus

	DefaultSearch string
	Autoplay      bool
	Logger        zerolog.Logger
}

type Session struct {
	resolver Resolver
	audio    types.AudioOutput
	notifier types.Notifier
	searcher Searcher
	history  History
	prefs    VolumeStore
	bus      *events.EventBus

	defaultSearch string
	autoplay      bool
	logger        zerolog.Logger

	mu           sync.Mutex
	state        State
	loading      bool
	generation   uint64
	playlist     []*types.Song
	currentIndex int
	current      *types.Song
	nowPlaying   *types.Song
	isPlaying    bool
	volume       float64
	position     time.Duration
	duration     time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a session around opts.Audio, which it owns from then on, and
// restores the saved volume.
func New(opts Options) *Session {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		resolver:      opts.Resolver,
		audio:         opts.Audio,
		notifier:      opts.Notifier,
		searcher:      opts.Searcher,
		history:       opts.History,
		prefs:         opts.Preferences,
		bus:           opts.Bus,
		defaultSearch: opts.DefaultSearch,
		autoplay:      opts.Autoplay,
		logger:        opts.Logger,
		state:         StateIdle,
		currentIndex:  -1,
		volume:        opts.Audio.Volume(),
		ctx:           ctx,
		cancel:        cancel,
	}

	if s.prefs != nil {
		v := library.ClampVolume(s.prefs.Volume(ctx))
		if err := s.audio.SetVolume(v); err != nil {
			s.logger.Warn().Err(err).Msg("failed to restore volume")
		} else {
			s.volume = v
		}
	}

	s.audio.OnTimeUpdate(s.handleTimeUpdate)
	s.audio.OnEnded(s.handleEnded)

	return s
}

// Play resolves song and starts it. index is the song's position in the
// current playlist and becomes the current index only if playback starts.
//
// While another Play is in flight it returns ErrBusy without side effects.
func (s *Session) Play(ctx context.Context, song *types.Song, index int) error {
	if song == nil {
		return ErrNoSong
	}

	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return ErrBusy
	}
	s.loading = true
	s.generation++
	gen := s.generation
	previous := s.current
	s.nowPlaying = song
	change := s.setStateLocked(StateLoading)
	s.mu.Unlock()

	defer s.release()

	logger := s.logger.With().
		Str("attempt", uuid.NewString()).
		Str("song_id", song.ID).
		Logger()
	logger.Debug().Str("title", song.Title).Int("index", index).Msg("play requested")

	s.publishState(change)
	s.bus.Publish(events.NowPlaying, events.NowPlayingData{Song: copySong(song), Provisional: true})

	if !s.transition(gen, StateResolving) {
		return ErrSuperseded
	}

	streamURL, ok := s.resolver.Resolve(ctx, song)
	if !ok {
		logger.Warn().Msg("stream resolution exhausted")
		return s.fail(gen, previous, ErrResolutionExhausted)
	}

	if !s.transition(gen, StateBound) {
		return ErrSuperseded
	}

	if err := s.audio.SetSource(streamURL); err != nil {
		logger.Warn().Err(err).Msg("output rejected source")
		s.resolver.Forget(song)
		return s.fail(gen, previous, fmt.Errorf("%w: %w", ErrPlaybackRejected, err))
	}
	if err := s.audio.Play(ctx); err != nil {
		logger.Warn().Err(err).Msg("output failed to start")
		s.resolver.Forget(song)
		return s.fail(gen, previous, fmt.Errorf("%w: %w", ErrPlaybackRejected, err))
	}

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		if err := s.audio.Pause(); err != nil {
			logger.Debug().Err(err).Msg("pause after superseded play")
		}
		return ErrSuperseded
	}
	s.current = song
	s.nowPlaying = song
	s.currentIndex = index
	s.isPlaying = true
	s.position, s.duration = 0, 0
	change = s.setStateLocked(StatePlaying)
	s.mu.Unlock()

	s.publishState(change)
	s.bus.Publish(events.NowPlaying, events.NowPlayingData{Song: copySong(song)})

	if s.history != nil {
		if err := s.history.Append(context.WithoutCancel(ctx), song); err != nil {
			logger.Warn().Err(err).Msg("failed to record history")
		}
	}

	logger.Info().Str("title", song.Title).Msg("playing")
	s.notify(fmt.Sprintf(msgPlaying, song.Title), types.SeveritySuccess)
	return nil
}

// fail moves a failed play back to idle and reverts the display to the
// last song that actually played. A source that is still loaded from that
// song is paused so the output agrees with isPlaying.
func (s *Session) fail(gen uint64, previous *types.Song, err error) error {
	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return ErrSuperseded
	}
	s.isPlaying = false
	s.nowPlaying = previous
	change := s.setStateLocked(StateIdle)
	s.mu.Unlock()

	if pauseErr := s.audio.Pause(); pauseErr != nil {
		s.logger.Debug().Err(pauseErr).Msg("pause after failed play")
	}

	s.publishState(change)
	s.bus.Publish(events.NowPlaying, events.NowPlayingData{Song: copySong(previous)})
	s.notify(msgPlayFailed, types.SeverityError)
	return err
}

func (s *Session) release() {
	s.mu.Lock()
	s.loading = false
	s.mu.Unlock()
}

// transition moves to next if gen is still the live generation.
func (s *Session) transition(gen uint64, next State) bool {
	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return false
	}
	change := s.setStateLocked(next)
	s.mu.Unlock()

	s.publishState(change)
	return true
}

// setStateLocked must be called with mu held. The returned change is
// published by the caller after unlocking.
func (s *Session) setStateLocked(next State) *events.StateChange {
	if s.state == next {
		return nil
	}
	change := &events.StateChange{From: s.state.String(), To: next.String()}
	s.state = next
	return change
}

func (s *Session) publishState(change *events.StateChange) {
	if change == nil {
		return
	}
	s.logger.Debug().Str("from", change.From).Str("to", change.To).Msg("state changed")
	s.bus.Publish(events.StateChanged, *change)
}

func (s *Session) notify(message string, severity types.Severity) {
	if s.notifier != nil {
		s.notifier.Notify(message, severity)
	}
}

// Toggle pauses a playing song or resumes a paused one.
func (s *Session) Toggle(ctx context.Context) error {
	s.mu.Lock()
	state, gen := s.state, s.generation
	s.mu.Unlock()

	var next State
	switch state {
	case StatePlaying:
		if err := s.audio.Pause(); err != nil {
			return fmt.Errorf("pause: %w", err)
		}
		next = StatePaused
	case StatePaused:
		if err := s.audio.Play(ctx); err != nil {
			return fmt.Errorf("resume: %w", err)
		}
		next = StatePlaying
	default:
		return ErrNotPlaying
	}

	s.mu.Lock()
	if s.generation != gen || s.state != state {
		s.mu.Unlock()
		return nil
	}
	s.isPlaying = next == StatePlaying
	change := s.setStateLocked(next)
	s.mu.Unlock()

	s.publishState(change)
	return nil
}

// Next plays the playlist entry after the current one.
func (s *Session) Next(ctx context.Context) error {
	return s.step(ctx, 1)
}

// Previous plays the playlist entry before the current one.
func (s *Session) Previous(ctx context.Context) error {
	return s.step(ctx, -1)
}

func (s *Session) step(ctx context.Context, delta int) error {
	s.mu.Lock()
	idx := s.currentIndex + delta
	if idx < 0 || idx >= len(s.playlist) {
		s.mu.Unlock()
		return ErrOutOfRange
	}
	song := s.playlist[idx]
	s.mu.Unlock()

	return s.Play(ctx, song, idx)
}

// PlayIndex plays the playlist entry at idx.
func (s *Session) PlayIndex(ctx context.Context, idx int) error {
	s.mu.Lock()
	if idx < 0 || idx >= len(s.playlist) {
		s.mu.Unlock()
		return ErrOutOfRange
	}
	song := s.playlist[idx]
	s.mu.Unlock()

	return s.Play(ctx, song, idx)
}

// SetPlaylist replaces the playlist. The current index keeps its value;
// it refers to the new list from now on.
func (s *Session) SetPlaylist(songs []*types.Song) {
	s.mu.Lock()
	s.playlist = copySongs(songs)
	snapshot := copySongs(s.playlist)
	s.mu.Unlock()

	s.bus.Publish(events.PlaylistChanged, snapshot)
}

// Search queries the remote catalogue and, when there are results, makes
// them the playlist. A failed or empty search leaves the session as it was.
func (s *Session) Search(ctx context.Context, query string) ([]*types.Song, error) {
	if query == "" {
		return []*types.Song{}, nil
	}
	return s.load(ctx, query, msgSearchFailed)
}

// LoadRecommendations runs the default search.
func (s *Session) LoadRecommendations(ctx context.Context) ([]*types.Song, error) {
	return s.load(ctx, s.defaultSearch, msgRecommendFailed)
}

func (s *Session) load(ctx context.Context, query, failMsg string) ([]*types.Song, error) {
	songs, err := s.searcher.Search(ctx, query)
	if err != nil {
		s.logger.Warn().Err(err).Str("query", query).Msg("search failed")
		s.notify(failMsg, types.SeverityError)
		return nil, err
	}

	if len(songs) == 0 {
		s.notify(fmt.Sprintf(msgNoResults, query), types.SeverityInfo)
		return songs, nil
	}

	s.SetPlaylist(songs)
	return songs, nil
}

// Seek moves the playhead of the loaded song.
func (s *Session) Seek(position time.Duration) error {
	s.mu.Lock()
	active := s.state.Active()
	s.mu.Unlock()

	if !active {
		return ErrNotPlaying
	}
	if err := s.audio.Seek(position); err != nil {
		return fmt.Errorf("seek: %w", err)
	}
	return nil
}

// SetVolume clamps v to [0, 1], applies it and saves it.
func (s *Session) SetVolume(ctx context.Context, v float64) error {
	v = library.ClampVolume(v)
	if err := s.audio.SetVolume(v); err != nil {
		return fmt.Errorf("set volume: %w", err)
	}

	s.mu.Lock()
	s.volume = v
	s.mu.Unlock()

	if s.prefs != nil {
		if err := s.prefs.SetVolume(ctx, v); err != nil {
			return err
		}
	}
	return nil
}

// Stop halts playback and discards the result of any play in flight.
func (s *Session) Stop() {
	s.mu.Lock()
	s.generation++
	s.isPlaying = false
	s.nowPlaying = s.current
	change := s.setStateLocked(StateIdle)
	s.mu.Unlock()

	if err := s.audio.Pause(); err != nil {
		s.logger.Debug().Err(err).Msg("pause on stop")
	}
	s.publishState(change)
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		State:        s.state,
		NowPlaying:   copySong(s.nowPlaying),
		Current:      copySong(s.current),
		Playlist:     copySongs(s.playlist),
		CurrentIndex: s.currentIndex,
		IsPlaying:    s.isPlaying,
		IsLoading:    s.loading,
		Volume:       s.volume,
		Position:     s.position,
		Duration:     s.duration,
	}
}

func (s *Session) handleTimeUpdate(position, duration time.Duration) {
	s.mu.Lock()
	s.position, s.duration = position, duration
	s.mu.Unlock()

	s.bus.Publish(events.TimeUpdate, events.TimeUpdateData{Position: position, Duration: duration})
}

func (s *Session) handleEnded() {
	s.mu.Lock()
	if s.state != StatePlaying {
		s.mu.Unlock()
		return
	}
	s.isPlaying = false
	change := s.setStateLocked(StateIdle)
	hasNext := s.currentIndex+1 < len(s.playlist)
	s.mu.Unlock()

	s.publishState(change)
	s.bus.Publish(events.Ended, nil)

	if !s.autoplay || !hasNext || s.ctx.Err() != nil {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.Next(s.ctx); err != nil {
			s.logger.Debug().Err(err).Msg("autoplay next")
		}
	}()
}

// Close stops playback, waits for background plays and closes the output.
func (s *Session) Close() error {
	s.cancel()
	s.Stop()
	s.wg.Wait()
	return s.audio.Close()
}
