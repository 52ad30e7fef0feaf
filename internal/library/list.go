// Package library keeps the listening history, the favorites list and the
// user's preferences in a key-value store.
package library

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Alexander-D-Karpov/ampstream/internal/config"
	"github.com/Alexander-D-Karpov/ampstream/pkg/types"
)

// ErrStorageCorrupt marks a persisted list that could not be decoded. It is
// logged and recovered as an empty list, never returned to callers.
var ErrStorageCorrupt = errors.New("stored list is corrupt")

// List is a most-recent-first, de-duplicated list of songs persisted as one
// JSON array under a single key.
type List struct {
	store  types.KeyValueStore
	key    string
	limit  int
	logger zerolog.Logger

	mu sync.Mutex
}

// NewList returns a list stored under key. A limit of zero or less means
// unbounded.
func NewList(store types.KeyValueStore, key string, limit int, logger zerolog.Logger) *List {
	return &List{
		store:  store,
		key:    key,
		limit:  limit,
		logger: logger.With().Str("list", key).Logger(),
	}
}

// NewHistory returns the listening history.
func NewHistory(store types.KeyValueStore, limit int, logger zerolog.Logger) *List {
	return NewList(store, config.KeyHistory, limit, logger)
}

// NewFavorites returns the favorites list.
func NewFavorites(store types.KeyValueStore, limit int, logger zerolog.Logger) *List {
	return NewList(store, config.KeyFavorites, limit, logger)
}

func (l *List) Limit() int {
	return l.limit
}

// Load returns the stored songs. It never fails: a missing key, a read
// error or corrupt data all yield an empty slice.
func (l *List) Load(ctx context.Context) []*types.Song {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load(ctx)
}

func (l *List) load(ctx context.Context) []*types.Song {
	raw, ok, err := l.store.Get(ctx, l.key)
	if err != nil {
		l.logger.Warn().Err(err).Msg("failed to read list")
		return []*types.Song{}
	}
	if !ok || raw == "" {
		return []*types.Song{}
	}

	var songs []*types.Song
	if err := json.Unmarshal([]byte(raw), &songs); err != nil {
		l.logger.Warn().Err(fmt.Errorf("%w: %w", ErrStorageCorrupt, err)).Msg("discarding stored list")
		return []*types.Song{}
	}

	out := make([]*types.Song, 0, len(songs))
	for _, s := range songs {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (l *List) save(ctx context.Context, songs []*types.Song) error {
	data, err := json.Marshal(songs)
	if err != nil {
		return fmt.Errorf("encode %s: %w", l.key, err)
	}
	if err := l.store.Set(ctx, l.key, string(data)); err != nil {
		return fmt.Errorf("save %s: %w", l.key, err)
	}
	return nil
}

// Append moves song to the front, dropping any earlier entry with the same
// ID, and truncates the list to its limit.
func (l *List) Append(ctx context.Context, song *types.Song) error {
	if song == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	songs := l.load(ctx)
	return l.save(ctx, l.prepend(songs, song))
}

func (l *List) prepend(songs []*types.Song, song *types.Song) []*types.Song {
	entry := *song
	out := make([]*types.Song, 0, len(songs)+1)
	out = append(out, &entry)
	for _, s := range songs {
		if s.ID != song.ID {
			out = append(out, s)
		}
	}
	if l.limit > 0 && len(out) > l.limit {
		out = out[:l.limit]
	}
	return out
}

// Remove deletes the entry with the given ID. It reports whether one was
// found.
func (l *List) Remove(ctx context.Context, id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	songs := l.load(ctx)
	out := songs[:0]
	for _, s := range songs {
		if s.ID != id {
			out = append(out, s)
		}
	}
	if len(out) == len(songs) {
		return false, nil
	}
	return true, l.save(ctx, out)
}

// Contains reports whether an entry with the given ID is stored.
func (l *List) Contains(ctx context.Context, id string) bool {
	if id == "" {
		return false
	}
	for _, s := range l.Load(ctx) {
		if s.ID == id {
			return true
		}
	}
	return false
}

// Toggle removes song if present, otherwise prepends it. It reports whether
// the song is in the list afterwards.
func (l *List) Toggle(ctx context.Context, song *types.Song) (bool, error) {
	if song == nil {
		return false, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	songs := l.load(ctx)
	for i, s := range songs {
		if s.ID == song.ID {
			songs = append(songs[:i], songs[i+1:]...)
			return false, l.save(ctx, songs)
		}
	}
	return true, l.save(ctx, l.prepend(songs, song))
}

func (l *List) Clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.store.Delete(ctx, l.key); err != nil {
		return fmt.Errorf("clear %s: %w", l.key, err)
	}
	return nil
}
