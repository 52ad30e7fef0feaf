package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Alexander-D-Karpov/ampstream/pkg/types"
)

type staticSource []*types.Song

func (s staticSource) Load(context.Context) []*types.Song {
	return s
}

func song(id, title, artist string) *types.Song {
	return &types.Song{ID: id, Title: title, Artist: artist}
}

func titles(songs []*types.Song) []string {
	out := make([]string, 0, len(songs))
	for _, s := range songs {
		out = append(out, s.Title)
	}
	return out
}

func TestSearch_TitleAndArtistScoresAdd(t *testing.T) {
	history := staticSource{
		song("1", "Blinding Lights", "The Weeknd"),
		song("2", "Lofi Study Mix", "Lofi Girl"),
		song("3", "Midnight City", "M83"),
	}
	favorites := staticSource{
		song("4", "lofi", "Someone"),
	}

	results := NewEngine(history, favorites).Search(context.Background(), "lofi", 0)

	assert.Equal(t, []string{"Lofi Study Mix", "lofi"}, titles(results))
}

func TestSearch_DedupAcrossSources(t *testing.T) {
	a := staticSource{song("1", "Midnight City", "M83")}
	b := staticSource{song("1", "Midnight City", "M83"), song("2", "City Lights", "X")}

	results := NewEngine(a, b).Search(context.Background(), "city", 0)

	assert.Len(t, results, 2)
}

func TestSearch_SubsequenceMatch(t *testing.T) {
	src := staticSource{song("1", "Blinding Lights", "The Weeknd")}

	results := NewEngine(src).Search(context.Background(), "blndlights", 0)

	assert.Equal(t, []string{"Blinding Lights"}, titles(results))
}

func TestSearch_ArtistOnly(t *testing.T) {
	src := staticSource{song("1", "Starboy", "The Weeknd"), song("2", "Hello", "Adele")}

	results := NewEngine(src).Search(context.Background(), "weeknd", 0)

	assert.Equal(t, []string{"Starboy"}, titles(results))
}

func TestSearch_EmptyQueryAndLimit(t *testing.T) {
	src := staticSource{
		song("1", "Love Story", "A"),
		song("2", "Love Me Do", "B"),
		song("3", "Lovely", "C"),
	}
	engine := NewEngine(src)

	assert.Empty(t, engine.Search(context.Background(), "  ", 10))
	assert.Len(t, engine.Search(context.Background(), "love", 2), 2)
}
