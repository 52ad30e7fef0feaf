package player

import (
	"time"

	"github.com/Alexander-D-Karpov/ampstream/pkg/types"
)

type State int

const (
	StateIdle State = iota
	StateLoading
	StateResolving
	StateBound
	StatePlaying
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateResolving:
		return "resolving"
	case StateBound:
		return "bound"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Active reports whether the output holds a source that can be paused,
// resumed or sought.
func (s State) Active() bool {
	return s == StatePlaying || s == StatePaused
}

// Snapshot is a copy of the session state. Slices and songs are copies and
// may be kept by the caller.
type Snapshot struct {
	State State
	// NowPlaying is what the display shows; it switches to a new song as
	// soon as a play starts and reverts if the play fails.
	NowPlaying *types.Song
	// Current is the last song that actually started playing.
	Current      *types.Song
	Playlist     []*types.Song
	CurrentIndex int
	IsPlaying    bool
	IsLoading    bool
	Volume       float64
	Position     time.Duration
	Duration     time.Duration
}

func copySong(s *types.Song) *types.Song {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

func copySongs(songs []*types.Song) []*types.Song {
	out := make([]*types.Song, 0, len(songs))
	for _, s := range songs {
		out = append(out, copySong(s))
	}
	return out
}
