package api

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/Alexander-D-Karpov/ampstream/pkg/types"
)

func TestNormalize_DefaultsNeverEmpty(t *testing.T) {
	inputs := map[string]string{
		"empty object":   `{}`,
		"only id":        `{"id":"abc"}`,
		"null fields":    `{"title":null,"author":null,"thumbnail":null,"url":null}`,
		"blank strings":  `{"title":"  ","channel":"","image":""}`,
		"array":          `[1,2,3]`,
		"scalar":         `42`,
		"invalid json":   `{"title":`,
		"nested objects": `{"title":{"text":"x"},"channel":{"id":"c1"}}`,
	}

	for name, raw := range inputs {
		t.Run(name, func(t *testing.T) {
			song := NormalizeJSON([]byte(raw))
			require.NotNil(t, song)
			assert.NotEmpty(t, song.Title)
			assert.NotEmpty(t, song.Artist)
			assert.NotEmpty(t, song.Thumbnail)
			assert.NotEmpty(t, song.SourceURL)
		})
	}
}

func TestNormalize_ArtistPrecedence(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"author name wins", `{"author":{"name":"A"},"channel":{"name":"B"}}`, "A"},
		{"nested channel name", `{"channel":{"name":"B"}}`, "B"},
		{"flat channel string", `{"channel":"C"}`, "C"},
		{"channel object without name", `{"channel":{"id":"x"}}`, types.DefaultArtist},
		{"empty author falls through", `{"author":{"name":""},"channel":"C"}`, "C"},
		{"nothing", `{}`, types.DefaultArtist},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeJSON([]byte(tt.raw)).Artist)
		})
	}
}

func TestNormalize_Fields(t *testing.T) {
	raw := `{
		"type": "video",
		"videoId": "dQw4w9WgXcQ",
		"id": "other",
		"url": "https://youtube.com/watch?v=dQw4w9WgXcQ",
		"title": "Never Gonna Give You Up",
		"image": "https://i.ytimg.com/vi/dQw4w9WgXcQ/hq720.jpg",
		"timestamp": "3:33",
		"views": 1234567,
		"author": {"name": "Rick Astley", "url": "https://youtube.com/@RickAstley"}
	}`

	song := NormalizeJSON([]byte(raw))

	assert.Equal(t, "dQw4w9WgXcQ", song.ID)
	assert.Equal(t, "Never Gonna Give You Up", song.Title)
	assert.Equal(t, "Rick Astley", song.Artist)
	assert.Equal(t, "https://i.ytimg.com/vi/dQw4w9WgXcQ/hq720.jpg", song.Thumbnail)
	assert.Equal(t, "3:33", song.Duration)
	assert.Equal(t, "https://youtube.com/watch?v=dQw4w9WgXcQ", song.SourceURL)
	assert.Equal(t, "1.2M", song.Views)
}

func TestNormalize_SourceURL(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantURL string
		wantID  string
	}{
		{"synthesized from videoId", `{"videoId":"abc123"}`, "https://youtu.be/abc123", "abc123"},
		{"synthesized from id", `{"id":"xyz"}`, "https://youtu.be/xyz", "xyz"},
		{"malformed url replaced", `{"id":"xyz","url":"not a url"}`, "https://youtu.be/xyz", "xyz"},
		{"bare id in url field", `{"url":"q1w2e3"}`, "https://youtu.be/q1w2e3", "q1w2e3"},
		{"id derived from short url", `{"url":"https://youtu.be/q1w2e3"}`, "https://youtu.be/q1w2e3", "q1w2e3"},
		{"id derived from watch url", `{"url":"https://www.youtube.com/watch?v=q1w2e3&t=4"}`, "https://www.youtube.com/watch?v=q1w2e3&t=4", "q1w2e3"},
		{"no id anywhere", `{}`, "https://youtu.be/", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			song := NormalizeJSON([]byte(tt.raw))
			assert.Equal(t, tt.wantURL, song.SourceURL)
			assert.Equal(t, tt.wantID, song.ID)
		})
	}
}

func TestNormalize_Duration(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`{"timestamp":"4:01"}`, "4:01"},
		{`{"duration":"2:05"}`, "2:05"},
		{`{"duration":125}`, "2:05"},
		{`{"duration":{"seconds":61,"timestamp":"1:01"}}`, "1:01"},
		{`{"duration":{"seconds":61}}`, "1:01"},
		{`{}`, ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeJSON([]byte(tt.raw)).Duration, tt.raw)
	}
}

func TestNormalize_NonObjectResult(t *testing.T) {
	song := Normalize(gjson.Parse(`"just a string"`))
	assert.Equal(t, types.DefaultTitle, song.Title)
	assert.Equal(t, types.DefaultThumbnail, song.Thumbnail)
}

func TestExtractVideoID(t *testing.T) {
	tests := map[string]string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ":              "dQw4w9WgXcQ",
		"https://youtu.be/dQw4w9WgXcQ":                             "dQw4w9WgXcQ",
		"https://youtu.be/dQw4w9WgXcQ?si=abc":                      "dQw4w9WgXcQ",
		"https://music.youtube.com/watch?v=dQw4w9WgXcQ&list=PL123": "dQw4w9WgXcQ",
		"https://www.youtube.com/shorts/abcDEF12345":               "abcDEF12345",
		"https://www.youtube.com/embed/abcDEF12345":                "abcDEF12345",
		"https://www.youtube.com/":                                 "",
		"https://example.com/page":                                 "",
	}

	for in, want := range tests {
		assert.Equal(t, want, ExtractVideoID(in), in)
	}
}

func TestFormatTime(t *testing.T) {
	assert.Equal(t, "0:00", FormatTime(0))
	assert.Equal(t, "0:00", FormatTime(math.NaN()))
	assert.Equal(t, "0:09", FormatTime(9.7))
	assert.Equal(t, "1:05", FormatTime(65))
	assert.Equal(t, "61:01", FormatTime(3661))
}

func TestFormatViews(t *testing.T) {
	assert.Equal(t, "", FormatViews(""))
	assert.Equal(t, "", FormatViews("no views"))
	assert.Equal(t, "999", FormatViews("999"))
	assert.Equal(t, "1.5K", FormatViews("1,500 views"))
	assert.Equal(t, "2.0M", FormatViews("2000000"))
}
