package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alexander-D-Karpov/ampstream/pkg/types"
)

func TestSelectCandidate(t *testing.T) {
	tests := []struct {
		name   string
		medias []types.MediaCandidate
		want   string
		ok     bool
	}{
		{
			name: "mp3 beats audio-only flag",
			medias: []types.MediaCandidate{
				{Type: "video", Extension: "mp4", StreamURL: "v"},
				{Type: "video", Extension: "webm", IsAudioOnly: true, StreamURL: "webm"},
				{Type: "video", Extension: "mp3", StreamURL: "mp3"},
			},
			want: "mp3",
			ok:   true,
		},
		{
			name: "audio type",
			medias: []types.MediaCandidate{
				{Type: "video", StreamURL: "v"},
				{Type: "audio", Extension: "m4a", StreamURL: "a"},
			},
			want: "a",
			ok:   true,
		},
		{
			name: "audio-only flag",
			medias: []types.MediaCandidate{
				{Type: "video", Extension: "mp4", StreamURL: "v"},
				{Type: "video", Extension: "webm", IsAudioOnly: true, StreamURL: "webm"},
			},
			want: "webm",
			ok:   true,
		},
		{
			name: "first entry",
			medias: []types.MediaCandidate{
				{Type: "video", Extension: "mp4", StreamURL: "first"},
				{Type: "video", Extension: "mkv", StreamURL: "second"},
			},
			want: "first",
			ok:   true,
		},
		{name: "empty", medias: nil, want: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SelectCandidate(tt.medias)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got.StreamURL)
		})
	}
}

func TestExtractStreamURL(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr error
	}{
		{
			name: "medias with mp3",
			body: `{"success":true,"result":{"medias":[{"type":"video","extension":"mp4","url":"https://cdn/v.mp4"},{"type":"audio","extension":"mp3","url":"https://cdn/a.mp3"}]}}`,
			want: "https://cdn/a.mp3",
		},
		{
			name: "status flag and data object",
			body: `{"status":true,"data":{"medias":[{"type":"video","extension":"webm","is_audio":true,"url":"https://cdn/a.webm"}]}}`,
			want: "https://cdn/a.webm",
		},
		{
			name: "is_audio must be a real boolean",
			body: `{"success":true,"result":{"medias":[{"type":"video","url":"https://cdn/first"},{"type":"video","is_audio":"true","url":"https://cdn/second"}]}}`,
			want: "https://cdn/first",
		},
		{
			name: "legacy download_url",
			body: `{"success":true,"result":{"download_url":"https://cdn/legacy.mp3","url":"https://cdn/other"}}`,
			want: "https://cdn/legacy.mp3",
		},
		{
			name: "legacy url",
			body: `{"success":true,"data":{"url":"https://cdn/legacy.mp3"}}`,
			want: "https://cdn/legacy.mp3",
		},
		{
			name:    "success false",
			body:    `{"success":false,"message":"rate limited"}`,
			wantErr: ErrProviderRejected,
		},
		{
			name:    "missing result",
			body:    `{"success":true}`,
			wantErr: ErrProviderRejected,
		},
		{
			name:    "empty medias",
			body:    `{"success":true,"result":{"medias":[]}}`,
			wantErr: ErrNoCandidate,
		},
		{
			name:    "no link at all",
			body:    `{"success":true,"result":{"title":"x"}}`,
			wantErr: ErrNoCandidate,
		},
		{
			name:    "not json",
			body:    `Service Unavailable`,
			wantErr: ErrProviderUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractStreamURL([]byte(tt.body))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProvider_Resolve(t *testing.T) {
	t.Run("passes the watch url", func(t *testing.T) {
		var gotURL string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotURL = r.URL.Query().Get("url")
			_, _ = w.Write([]byte(`{"success":true,"result":{"medias":[{"type":"audio","url":"https://cdn/a.mp3"}]}}`))
		}))
		defer srv.Close()

		p := NewProvider("primary", srv.URL, NewClient(testOptions()))
		res := p.Resolve(context.Background(), "https://www.youtube.com/watch?v=abc")

		assert.True(t, res.OK())
		assert.Equal(t, "primary", res.Provider)
		assert.Equal(t, "https://cdn/a.mp3", res.StreamURL)
		assert.Equal(t, "https://www.youtube.com/watch?v=abc", gotURL)
	})

	t.Run("http error status is unavailable", func(t *testing.T) {
		var calls atomic.Int32
		srv := newJSONServer(t, http.StatusServiceUnavailable, `{}`, &calls)

		p := NewProvider("primary", srv.URL, NewClient(testOptions()))
		res := p.Resolve(context.Background(), "https://youtu.be/abc")

		assert.False(t, res.OK())
		require.ErrorIs(t, res.Err, ErrProviderUnavailable)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("network failure is unavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		addr := srv.URL
		srv.Close()

		p := NewProvider("backup", addr, NewClient(testOptions()))
		res := p.Resolve(context.Background(), "https://youtu.be/abc")

		assert.False(t, res.OK())
		require.ErrorIs(t, res.Err, ErrProviderUnavailable)
		assert.Equal(t, "backup", res.Provider)
	})

	t.Run("rejection is carried in the result", func(t *testing.T) {
		srv := newJSONServer(t, http.StatusOK, `{"success":false}`, nil)

		p := NewProvider("primary", srv.URL, NewClient(testOptions()))
		res := p.Resolve(context.Background(), "https://youtu.be/abc")

		assert.False(t, res.OK())
		require.ErrorIs(t, res.Err, ErrProviderRejected)
	})
}
