package player

import "errors"

var (
	// ErrBusy is returned when a play request arrives while another one is
	// still resolving. The request is dropped, not queued.
	ErrBusy = errors.New("a song is already loading")
	// ErrSuperseded means Stop was called while the play was in flight and
	// its result was discarded.
	ErrSuperseded = errors.New("play request superseded")
	// ErrResolutionExhausted means no provider produced a stream URL.
	ErrResolutionExhausted = errors.New("no provider could resolve a stream")
	// ErrPlaybackRejected wraps an error from the audio output.
	ErrPlaybackRejected = errors.New("audio output rejected the stream")
	ErrNotPlaying       = errors.New("nothing is playing")
	ErrNoSong           = errors.New("no song given")
	ErrOutOfRange       = errors.New("no track at that position")
)

// User-facing messages.
const (
	msgPlaying         = "Playing: %s"
	msgPlayFailed      = "Failed to play song. Try another title."
	msgSearchFailed    = "Connection error"
	msgRecommendFailed = "Failed to load recommendations"
	msgNoResults       = "No results for %q"
)
