// Package download saves resolved streams to disk with bounded
// concurrency and retries.
package download

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Alexander-D-Karpov/ampstream/internal/config"
	"github.com/Alexander-D-Karpov/ampstream/internal/storage"
	"github.com/Alexander-D-Karpov/ampstream/pkg/types"
)

var ErrInProgress = errors.New("download already in progress")

// Records remembers finished song downloads. *storage.Database satisfies it.
type Records interface {
	GetDownload(ctx context.Context, songID string) (string, error)
	SaveDownload(ctx context.Context, rec storage.DownloadRecord) error
}

type Manager struct {
	config      Config
	httpClient  *http.Client
	semaphore   chan struct{}
	records     Records
	tasks       sync.Map
	active      sync.Map
	progressCbs []ProgressCallback

	callbackMutex sync.RWMutex
	logger        zerolog.Logger
}

var _ types.DownloadManager = (*Manager)(nil)

// ConfigFrom maps the download section of the application config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Dir:           cfg.Download.Dir,
		MaxConcurrent: cfg.Download.MaxConcurrent,
		ChunkSize:     cfg.Download.ChunkSize,
		RetryAttempts: cfg.Download.RetryAttempts,
		RetryDelay:    time.Second,
		Timeout:       10 * time.Minute,
		UserAgent:     cfg.API.UserAgent,
	}
}

// NewManager builds a manager. records may be nil, in which case songs are
// only deduplicated by their file on disk.
func NewManager(cfg Config, records Records, logger zerolog.Logger) *Manager {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 32 * 1024
	}
	if cfg.RetryAttempts < 0 {
		cfg.RetryAttempts = 0
	}

	m := &Manager{
		config:     cfg,
		semaphore:  make(chan struct{}, cfg.MaxConcurrent),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		records:    records,
		logger:     logger,
	}

	m.logger.Debug().Int("max_concurrent", cfg.MaxConcurrent).Msg("download manager initialized")
	return m
}

// Download fetches url into destination and blocks until it is written.
// It returns the destination path.
func (m *Manager) Download(ctx context.Context, url, destination string) (string, error) {
	return m.run(ctx, url, destination, filepath.Base(destination), false)
}

// DownloadSong saves the stream of a resolved song into the download
// directory and returns the local path. The file extension follows the
// media type the server sends. A song that was already downloaded is not
// fetched again.
func (m *Manager) DownloadSong(ctx context.Context, song *types.Song, streamURL string) (string, error) {
	if song == nil {
		return "", fmt.Errorf("song cannot be nil")
	}
	if strings.TrimSpace(streamURL) == "" {
		return "", fmt.Errorf("no stream url for %q", song.Title)
	}

	// Records are keyed by song ID; songs without one are only
	// deduplicated by their file on disk.
	tracked := m.records != nil && song.ID != ""

	if tracked {
		existing, err := m.records.GetDownload(ctx, song.ID)
		if err != nil {
			m.logger.Warn().Err(err).Str("song_id", song.ID).Msg("lookup previous download")
		} else if existing != "" {
			m.logger.Debug().Str("path", existing).Msg("song already downloaded")
			return existing, nil
		}
	}

	stem := filepath.Join(m.config.Dir, SafeFilename(song.Title, song.ID))
	if existing, size, ok := findExisting(stem); ok {
		m.logger.Debug().Str("path", existing).Msg("song already in download dir")
		if tracked {
			m.record(ctx, song, streamURL, existing, size)
		}
		return existing, nil
	}

	path, err := m.run(ctx, streamURL, stem, song.Title, true)
	if err != nil {
		return "", err
	}

	if tracked {
		var size int64
		if stat, err := os.Stat(path); err == nil {
			size = stat.Size()
		}
		m.record(ctx, song, streamURL, path, size)
	}
	return path, nil
}

// findExisting looks for a non-empty file named stem with any known media
// extension.
func findExisting(stem string) (string, int64, bool) {
	for _, ext := range mediaExtensions {
		path := stem + ext
		if stat, err := os.Stat(path); err == nil && stat.Mode().IsRegular() && stat.Size() > 0 {
			return path, stat.Size(), true
		}
	}
	return "", 0, false
}

func (m *Manager) record(ctx context.Context, song *types.Song, streamURL, path string, size int64) {
	err := m.records.SaveDownload(context.WithoutCancel(ctx), storage.DownloadRecord{
		SongID:    song.ID,
		Title:     song.Title,
		StreamURL: streamURL,
		LocalPath: path,
		Size:      size,
	})
	if err != nil {
		m.logger.Warn().Err(err).Str("song_id", song.ID).Msg("record download")
	}
}

// run downloads url. With pickExtension, destination is a path without
// extension and the extension is chosen from the response.
func (m *Manager) run(ctx context.Context, url, destination, title string, pickExtension bool) (string, error) {
	if _, busy := m.active.LoadOrStore(destination, struct{}{}); busy {
		return "", ErrInProgress
	}
	defer m.active.Delete(destination)

	task := &Task{
		ID:          uuid.NewString(),
		URL:         url,
		Destination: destination,
		Title:       title,
		State:       StatePending,
		StartTime:   time.Now(),
	}
	if pickExtension {
		task.stem = destination
	}
	m.tasks.Store(task.ID, task)

	logger := m.logger.With().Str("task_id", task.ID).Str("destination", destination).Logger()
	logger.Debug().Str("url", url).Msg("created download task")

	select {
	case m.semaphore <- struct{}{}:
		defer func() { <-m.semaphore }()
	case <-ctx.Done():
		m.updateTaskState(task, StateCancelled, ctx.Err())
		return "", ctx.Err()
	}

	m.updateTaskState(task, StateDownloading, nil)

	var lastErr error
	for attempt := 0; attempt <= m.config.RetryAttempts; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * m.config.RetryDelay
			logger.Debug().Int("attempt", attempt+1).Dur("delay", delay).Msg("retrying download")

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				m.updateTaskState(task, StateCancelled, ctx.Err())
				return "", ctx.Err()
			}
		}

		err := m.performDownload(ctx, task)
		if err == nil {
			m.updateTaskState(task, StateCompleted, nil)
			path := task.destination()
			logger.Info().Str("path", path).Msg("download completed")
			return path, nil
		}

		lastErr = err
		task.mutex.Lock()
		task.Retries = attempt
		task.mutex.Unlock()

		if ctx.Err() != nil {
			m.updateTaskState(task, StateCancelled, ctx.Err())
			return "", ctx.Err()
		}
		if !shouldRetry(err) {
			break
		}
	}

	m.updateTaskState(task, StateFailed, lastErr)
	logger.Warn().Err(lastErr).Int("attempts", m.config.RetryAttempts+1).Msg("download failed")
	return "", lastErr
}

// GetAllDownloads returns a snapshot of every task this manager has run.
func (m *Manager) GetAllDownloads() []*types.DownloadProgress {
	var downloads []*types.DownloadProgress
	m.tasks.Range(func(_, value any) bool {
		downloads = append(downloads, value.(*Task).progress())
		return true
	})
	sort.Slice(downloads, func(i, j int) bool {
		return downloads[i].StartedAt.Before(downloads[j].StartedAt)
	})
	return downloads
}

// OnProgress registers a callback. Callbacks run on the downloading
// goroutine and must not block.
func (m *Manager) OnProgress(callback func(*types.DownloadProgress)) {
	m.callbackMutex.Lock()
	defer m.callbackMutex.Unlock()
	m.progressCbs = append(m.progressCbs, callback)
}

func (m *Manager) updateTaskState(task *Task, state State, err error) {
	task.mutex.Lock()
	task.State = state
	task.Error = err
	if state.done() {
		task.CompletedAt = time.Now()
	}
	task.mutex.Unlock()

	m.notifyProgress(task)
}

func (m *Manager) notifyProgress(task *Task) {
	progress := task.progress()

	m.callbackMutex.RLock()
	callbacks := make([]ProgressCallback, len(m.progressCbs))
	copy(callbacks, m.progressCbs)
	m.callbackMutex.RUnlock()

	for _, callback := range callbacks {
		if callback == nil {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.logger.Error().Interface("panic", r).Msg("progress callback panicked")
				}
			}()
			callback(progress)
		}()
	}
}

var unsafeFilenameChars = strings.NewReplacer(
	"/", "-", "\\", "-", ":", "-", "*", "-", "?", "-",
	"\"", "-", "<", "-", ">", "-", "|", "-",
)

// SafeFilename builds a file name from a song title, falling back to its
// ID when the title has nothing usable.
func SafeFilename(title, id string) string {
	safe := strings.TrimSpace(unsafeFilenameChars.Replace(title))
	safe = strings.Trim(safe, ".")

	if len(safe) > 100 {
		safe = strings.ToValidUTF8(safe[:100], "")
	}
	if safe == "" || safe == types.DefaultTitle {
		if id != "" {
			return id
		}
		return "download"
	}
	return safe
}
