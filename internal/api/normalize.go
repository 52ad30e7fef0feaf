package api

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/Alexander-D-Karpov/ampstream/pkg/types"
)

// Extraction rules, in precedence order. The first path that yields a
// non-empty scalar wins.
var (
	titleRules     = []string{"title"}
	artistRules    = []string{"author.name", "channel.name", "channel"}
	thumbnailRules = []string{"thumbnail", "image"}
	durationRules  = []string{"timestamp", "duration"}
	idRules        = []string{"videoId", "id"}
	urlRules       = []string{"url"}
	viewsRules     = []string{"views"}
)

const shortURLTemplate = "https://youtu.be/%s"

// NormalizeJSON parses raw and normalizes it. Invalid JSON yields a record
// made entirely of defaults.
func NormalizeJSON(raw []byte) *types.Song {
	if !gjson.ValidBytes(raw) {
		return Normalize(gjson.Result{})
	}
	return Normalize(gjson.ParseBytes(raw))
}

// Normalize maps one raw search record into a canonical song. It never
// fails: missing fields fall back to documented defaults.
func Normalize(raw gjson.Result) *types.Song {
	if !raw.IsObject() {
		raw = gjson.Result{}
	}

	song := &types.Song{
		Title:     firstString(raw, titleRules, types.DefaultTitle),
		Artist:    firstString(raw, artistRules, types.DefaultArtist),
		Thumbnail: firstString(raw, thumbnailRules, types.DefaultThumbnail),
		Duration:  extractDuration(raw),
		ID:        firstString(raw, idRules, ""),
		Views:     FormatViews(firstString(raw, viewsRules, "")),
	}

	rawURL := firstString(raw, urlRules, "")
	if isWellFormedURL(rawURL) {
		song.SourceURL = rawURL
		if song.ID == "" {
			song.ID = ExtractVideoID(rawURL)
		}
	} else {
		if song.ID == "" {
			// A bare id in the url field is still an id.
			song.ID = strings.TrimSpace(rawURL)
		}
		song.SourceURL = fmt.Sprintf(shortURLTemplate, song.ID)
	}

	return song
}

// firstString walks the rules and returns the first non-empty scalar. Objects
// and arrays never match, so a nested channel object does not shadow a flat
// channel string further down the list.
func firstString(raw gjson.Result, rules []string, fallback string) string {
	for _, path := range rules {
		v := raw.Get(path)
		switch v.Type {
		case gjson.String, gjson.Number:
			if s := strings.TrimSpace(v.String()); s != "" {
				return s
			}
		}
	}
	return fallback
}

func extractDuration(raw gjson.Result) string {
	for _, path := range durationRules {
		v := raw.Get(path)
		switch v.Type {
		case gjson.String:
			if s := strings.TrimSpace(v.Str); s != "" {
				return s
			}
		case gjson.Number:
			if v.Num > 0 {
				return FormatTime(v.Num)
			}
		case gjson.JSON:
			// {"seconds": 213, "timestamp": "3:33"}
			if ts := v.Get("timestamp"); ts.Type == gjson.String && ts.Str != "" {
				return ts.Str
			}
			if secs := v.Get("seconds"); secs.Type == gjson.Number && secs.Num > 0 {
				return FormatTime(secs.Num)
			}
		}
	}
	return ""
}

func isWellFormedURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// ExtractVideoID pulls the video id out of the common watch URL shapes:
// youtu.be/<id>, /watch?v=<id>, /shorts/<id> and /embed/<id>.
func ExtractVideoID(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	host := strings.ToLower(u.Hostname())
	path := strings.Trim(u.Path, "/")

	if host == "youtu.be" {
		return strings.SplitN(path, "/", 2)[0]
	}

	if v := u.Query().Get("v"); v != "" {
		return v
	}

	for _, prefix := range []string{"shorts/", "embed/", "live/"} {
		if strings.HasPrefix(path, prefix) {
			return strings.SplitN(strings.TrimPrefix(path, prefix), "/", 2)[0]
		}
	}

	return ""
}

// FormatTime renders seconds as M:SS.
func FormatTime(seconds float64) string {
	if seconds <= 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return "0:00"
	}
	m := int(seconds) / 60
	s := int(seconds) % 60
	return fmt.Sprintf("%d:%02d", m, s)
}

// FormatViews compacts a view count ("1,234,567 views" -> "1.2M"). Input
// without digits yields "".
func FormatViews(raw string) string {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return ""
	}

	n, err := strconv.ParseInt(digits.String(), 10, 64)
	if err != nil {
		return ""
	}

	switch {
	case n >= 1_000_000:
		return strconv.FormatFloat(float64(n)/1_000_000, 'f', 1, 64) + "M"
	case n >= 1_000:
		return strconv.FormatFloat(float64(n)/1_000, 'f', 1, 64) + "K"
	default:
		return strconv.FormatInt(n, 10)
	}
}
