// Package search runs fuzzy lookups over the songs the user already knows:
// the listening history and the favorites list.
package search

import (
	"context"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/Alexander-D-Karpov/ampstream/pkg/types"
)

// Source supplies songs to search. library.List satisfies it.
type Source interface {
	Load(ctx context.Context) []*types.Song
}

type Engine struct {
	sources []Source
}

// NewEngine searches sources in order; earlier sources win ties.
func NewEngine(sources ...Source) *Engine {
	return &Engine{sources: sources}
}

type ScoredSong struct {
	Song  *types.Song
	Score float64
}

// Search returns up to limit songs matching query, best first. Songs that
// appear in several sources are returned once. A limit of zero or less
// returns every match.
func (e *Engine) Search(ctx context.Context, query string, limit int) []*types.Song {
	query = strings.TrimSpace(query)
	if query == "" {
		return []*types.Song{}
	}

	var all []*types.Song
	for _, src := range e.sources {
		all = append(all, src.Load(ctx)...)
	}

	scored := scoreSongs(mergeSongs(all), query)

	result := make([]*types.Song, 0, len(scored))
	for _, s := range scored {
		result = append(result, s.Song)
	}

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result
}

func scoreSongs(songs []*types.Song, query string) []ScoredSong {
	var scored []ScoredSong
	queryLower := strings.ToLower(query)

	for _, song := range songs {
		score := 0.0
		titleLower := strings.ToLower(song.Title)

		if strings.Contains(titleLower, queryLower) {
			score += 10.0
		} else if fuzzy.MatchFold(query, song.Title) {
			score += 3.0
		}

		distance := fuzzy.LevenshteinDistance(queryLower, titleLower)
		if distance <= len(queryLower)/2 {
			score += float64(len(queryLower) - distance)
		}

		if strings.Contains(strings.ToLower(song.Artist), queryLower) {
			score += 7.0
		}

		if score > 0 {
			scored = append(scored, ScoredSong{Song: song, Score: score})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	return scored
}

func mergeSongs(songs []*types.Song) []*types.Song {
	seen := make(map[string]bool)
	var result []*types.Song

	for _, song := range songs {
		if song == nil || seen[song.ID] {
			continue
		}
		result = append(result, song)
		seen[song.ID] = true
	}

	return result
}
