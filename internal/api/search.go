package api

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/tidwall/gjson"

	"github.com/Alexander-D-Karpov/ampstream/internal/log"
	"github.com/Alexander-D-Karpov/ampstream/pkg/types"
)

// ErrSearchFailed wraps every network or parse failure of a search.
var ErrSearchFailed = errors.New("search failed")

// envelopeKeys are the wrapper keys seen across search API versions, in
// precedence order.
var envelopeKeys = []string{"data", "results", "result"}

type SearchClient struct {
	client  *Client
	baseURL string
}

// NewSearchClient builds a search client on its own non-retrying transport;
// a failed search is reported to the user instead of being retried.
func NewSearchClient(opts Options, baseURL string) *SearchClient {
	opts.Retries = 0
	return &SearchClient{
		client:  NewClient(opts).WithLogger(log.WithComponent("search")),
		baseURL: baseURL,
	}
}

// Stats reports the request counters of the search transport.
func (s *SearchClient) Stats() map[string]int64 {
	return s.client.Stats()
}

// Search runs one query and returns normalized songs. A response without a
// known envelope yields an empty slice, not an error.
func (s *SearchClient) Search(ctx context.Context, query string) ([]*types.Song, error) {
	s.client.logger.Debug().Str("query", query).Msg("searching")

	params := url.Values{}
	params.Set("query", query)

	body, err := s.client.getJSON(ctx, s.baseURL, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSearchFailed, err)
	}

	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: invalid JSON response", ErrSearchFailed)
	}

	items := unwrapEnvelope(gjson.ParseBytes(body))
	songs := make([]*types.Song, 0, len(items))
	for _, item := range items {
		songs = append(songs, Normalize(item))
	}

	s.client.logger.Debug().Str("query", query).Int("results", len(songs)).Msg("search complete")
	return songs, nil
}

func unwrapEnvelope(doc gjson.Result) []gjson.Result {
	for _, key := range envelopeKeys {
		v := doc.Get(key)
		if !present(v) {
			continue
		}
		if v.IsArray() {
			return v.Array()
		}
		// A present but non-list envelope still wins; it just holds nothing
		// playable.
		return nil
	}
	return nil
}

// present mirrors the truthiness test the APIs were written against:
// missing, null, false, 0 and "" do not count.
func present(v gjson.Result) bool {
	switch v.Type {
	case gjson.Null, gjson.False:
		return false
	case gjson.Number:
		return v.Num != 0
	case gjson.String:
		return v.Str != ""
	}
	return v.Exists()
}
