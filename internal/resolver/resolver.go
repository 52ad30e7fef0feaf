// Package resolver turns a song into a playable stream URL by asking the
// configured download providers in order.
package resolver

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"

	"github.com/Alexander-D-Karpov/ampstream/internal/api"
	"github.com/Alexander-D-Karpov/ampstream/pkg/types"
)

const watchURLTemplate = "https://www.youtube.com/watch?v="

// Source is one provider in the fallback chain.
type Source interface {
	Name() string
	Resolve(ctx context.Context, watchURL string) api.Result
}

// Resolver asks each source in turn until one yields a stream URL.
// Successful lookups are cached per watch URL.
type Resolver struct {
	sources []Source
	cache   *expirable.LRU[string, string]
	logger  zerolog.Logger
}

// New builds a resolver. A cacheSize of zero or less disables caching.
func New(sources []Source, cacheSize int, ttl time.Duration, logger zerolog.Logger) *Resolver {
	r := &Resolver{
		sources: sources,
		logger:  logger,
	}
	if cacheSize > 0 {
		r.cache = expirable.NewLRU[string, string](cacheSize, nil, ttl)
	}
	return r
}

// FromProviders adapts concrete api providers into the fallback chain.
func FromProviders(providers ...*api.Provider) []Source {
	out := make([]Source, 0, len(providers))
	for _, p := range providers {
		out = append(out, p)
	}
	return out
}

// Resolve returns the stream URL for song and whether one was found.
// Sources are tried strictly one after another; a provider failure never
// escapes this call.
func (r *Resolver) Resolve(ctx context.Context, song *types.Song) (string, bool) {
	watchURL := CanonicalWatchURL(song)

	if r.cache != nil {
		if streamURL, ok := r.cache.Get(watchURL); ok {
			r.logger.Debug().Str("watch_url", watchURL).Msg("stream url cache hit")
			return streamURL, true
		}
	}

	for _, src := range r.sources {
		if ctx.Err() != nil {
			return "", false
		}

		res := src.Resolve(ctx, watchURL)
		if res.OK() {
			r.logger.Debug().
				Str("provider", src.Name()).
				Str("watch_url", watchURL).
				Msg("resolved stream url")
			if r.cache != nil {
				r.cache.Add(watchURL, res.StreamURL)
			}
			return res.StreamURL, true
		}

		r.logger.Warn().
			Err(res.Err).
			Str("provider", src.Name()).
			Str("watch_url", watchURL).
			Msg("provider failed")
	}

	return "", false
}

// Forget drops the cached stream URL for song, typically after the output
// refused to play it.
func (r *Resolver) Forget(song *types.Song) {
	if r.cache == nil {
		return
	}
	r.cache.Remove(CanonicalWatchURL(song))
}

// CanonicalWatchURL returns the song's source URL when it already points at
// YouTube, otherwise a watch URL built from the bare id.
func CanonicalWatchURL(song *types.Song) string {
	if song == nil {
		return watchURLTemplate
	}
	if strings.Contains(song.SourceURL, "youtube.com") || strings.Contains(song.SourceURL, "youtu.be") {
		return song.SourceURL
	}
	id := song.ID
	if id == "" {
		id = song.SourceURL
	}
	return watchURLTemplate + id
}
