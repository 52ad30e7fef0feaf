// Package services combines the session, the local library and downloads
// into the operations the command line exposes.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Alexander-D-Karpov/ampstream/pkg/types"
)

var ErrNoStream = errors.New("no playable stream found")

// Remote loads results into the playback session. *player.Session
// satisfies it.
type Remote interface {
	Search(ctx context.Context, query string) ([]*types.Song, error)
	LoadRecommendations(ctx context.Context) ([]*types.Song, error)
}

// Local searches songs already in history or favorites.
type Local interface {
	Search(ctx context.Context, query string, limit int) []*types.Song
}

type StreamResolver interface {
	Resolve(ctx context.Context, song *types.Song) (string, bool)
}

type MusicService struct {
	remote    Remote
	local     Local
	resolver  StreamResolver
	downloads types.DownloadManager
	logger    zerolog.Logger
}

func NewMusicService(remote Remote, local Local, resolver StreamResolver, downloads types.DownloadManager, logger zerolog.Logger) *MusicService {
	return &MusicService{
		remote:    remote,
		local:     local,
		resolver:  resolver,
		downloads: downloads,
		logger:    logger,
	}
}

// GetSongs searches remotely, or loads recommendations for an empty query.
// When the remote search fails and the library has matches, those are
// returned instead with fromLibrary set.
func (s *MusicService) GetSongs(ctx context.Context, query string) (songs []*types.Song, fromLibrary bool, err error) {
	query = strings.TrimSpace(query)
	if query == "" {
		songs, err = s.remote.LoadRecommendations(ctx)
		return songs, false, err
	}

	songs, err = s.remote.Search(ctx, query)
	if err == nil {
		return songs, false, nil
	}
	if s.local == nil || ctx.Err() != nil {
		return nil, false, err
	}

	local := s.local.Search(ctx, query, 50)
	if len(local) == 0 {
		return nil, false, err
	}

	s.logger.Info().Err(err).Int("count", len(local)).Msg("remote search failed, using library matches")
	return local, true, nil
}

// FindLocal searches history and favorites only.
func (s *MusicService) FindLocal(ctx context.Context, query string, limit int) []*types.Song {
	if s.local == nil || strings.TrimSpace(query) == "" {
		return []*types.Song{}
	}
	return s.local.Search(ctx, query, limit)
}

// DownloadSong resolves a stream for song and saves it locally.
func (s *MusicService) DownloadSong(ctx context.Context, song *types.Song) (string, error) {
	if song == nil {
		return "", fmt.Errorf("song is nil")
	}
	if s.downloads == nil {
		return "", fmt.Errorf("downloads are not configured")
	}

	streamURL, ok := s.resolver.Resolve(ctx, song)
	if !ok {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return "", fmt.Errorf("%w for %q", ErrNoStream, song.Title)
	}

	s.logger.Debug().Str("song_id", song.ID).Msg("downloading resolved stream")
	return s.downloads.DownloadSong(ctx, song, streamURL)
}
