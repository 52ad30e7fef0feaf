package types

import (
	"context"
	"time"
)

// Renderer displays an ordered list of songs inside a named container and
// reports the user's selection through onSelect.
type Renderer interface {
	Render(container string, songs []*Song, onSelect func(song *Song, index int))
}

// Notifier shows a transient, non-blocking message to the user.
type Notifier interface {
	Notify(message string, severity Severity)
}

// AudioOutput is the single media element owned by the playback session.
// Play on a loaded, paused source resumes it.
type AudioOutput interface {
	SetSource(url string) error
	Play(ctx context.Context) error
	Pause() error
	Seek(position time.Duration) error
	Volume() float64
	SetVolume(volume float64) error
	OnTimeUpdate(callback func(position, duration time.Duration))
	OnEnded(callback func())
	Close() error
}

// KeyValueStore is the persistence surface behind history, favorites and
// preferences. Get reports false when the key has never been written.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// DownloadManager defines the interface for managing file downloads
type DownloadManager interface {
	Download(ctx context.Context, url, destination string) (string, error)
	DownloadSong(ctx context.Context, song *Song, streamURL string) (string, error)
	GetAllDownloads() []*DownloadProgress
	OnProgress(callback func(*DownloadProgress))
}
