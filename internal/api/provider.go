package api

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/tidwall/gjson"

	"github.com/Alexander-D-Karpov/ampstream/pkg/types"
)

var (
	// ErrProviderUnavailable covers transport failures, HTTP error statuses
	// and bodies that are not JSON.
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrProviderRejected means the provider answered but reported failure
	// or sent no result object.
	ErrProviderRejected = errors.New("provider rejected request")
	// ErrNoCandidate means the result held nothing with a stream URL.
	ErrNoCandidate = errors.New("no playable candidate")
)

// Result is the outcome of one provider call. Exactly one of StreamURL and
// Err is set.
type Result struct {
	Provider  string
	StreamURL string
	Err       error
}

func (r Result) OK() bool {
	return r.Err == nil && r.StreamURL != ""
}

// Provider is one download service that turns a watch URL into a stream URL.
type Provider struct {
	name    string
	baseURL string
	client  *Client
}

func NewProvider(name, baseURL string, client *Client) *Provider {
	return &Provider{name: name, baseURL: baseURL, client: client}
}

func (p *Provider) Name() string {
	return p.name
}

// Resolve queries the provider. It never returns a bare error; every failure
// is carried in the Result so callers can sequence a fallback.
func (p *Provider) Resolve(ctx context.Context, watchURL string) (res Result) {
	res.Provider = p.name
	defer func() {
		if r := recover(); r != nil {
			res = Result{Provider: p.name, Err: fmt.Errorf("%w: %v", ErrProviderUnavailable, r)}
		}
	}()

	params := url.Values{}
	params.Set("url", watchURL)

	body, err := p.client.getJSON(ctx, p.baseURL, params)
	if err != nil {
		res.Err = fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
		return res
	}

	streamURL, err := ExtractStreamURL(body)
	if err != nil {
		res.Err = err
		return res
	}

	res.StreamURL = streamURL
	return res
}

// ExtractStreamURL reads a provider payload:
//
//	{ success|status, result|data: { medias: [...] } | { download_url|url } }
func ExtractStreamURL(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("%w: invalid JSON response", ErrProviderUnavailable)
	}
	doc := gjson.ParseBytes(body)

	if !present(doc.Get("success")) && !present(doc.Get("status")) {
		return "", fmt.Errorf("%w: success flag not set", ErrProviderRejected)
	}

	data := doc.Get("result")
	if !present(data) {
		data = doc.Get("data")
	}
	if !present(data) {
		return "", fmt.Errorf("%w: missing result", ErrProviderRejected)
	}

	if medias := data.Get("medias"); medias.IsArray() {
		candidate, ok := SelectCandidate(parseCandidates(medias))
		if !ok || candidate.StreamURL == "" {
			return "", ErrNoCandidate
		}
		return candidate.StreamURL, nil
	}

	// Older payloads carry the link directly on the result.
	for _, key := range []string{"download_url", "url"} {
		if v := data.Get(key); v.Type == gjson.String && v.Str != "" {
			return v.Str, nil
		}
	}

	return "", ErrNoCandidate
}

func parseCandidates(medias gjson.Result) []types.MediaCandidate {
	items := medias.Array()
	out := make([]types.MediaCandidate, 0, len(items))
	for _, m := range items {
		out = append(out, types.MediaCandidate{
			Type:        m.Get("type").String(),
			Extension:   m.Get("extension").String(),
			IsAudioOnly: m.Get("is_audio").Type == gjson.True,
			StreamURL:   m.Get("url").String(),
		})
	}
	return out
}

// SelectCandidate picks the rendition to play:
//  1. the first audio entry or mp3 file,
//  2. else the first audio-only entry,
//  3. else the first entry.
func SelectCandidate(medias []types.MediaCandidate) (types.MediaCandidate, bool) {
	if len(medias) == 0 {
		return types.MediaCandidate{}, false
	}

	for _, m := range medias {
		if m.Type == "audio" || m.Extension == "mp3" {
			return m, true
		}
	}

	for _, m := range medias {
		if m.IsAudioOnly {
			return m, true
		}
	}

	return medias[0], true
}
