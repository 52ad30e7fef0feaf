package download

import (
	"sync"
	"time"

	"github.com/Alexander-D-Karpov/ampstream/pkg/types"
)

// State represents the current state of a download operation
type State int

const (
	StatePending State = iota
	StateDownloading
	StateCompleted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "Pending"
	case StateDownloading:
		return "Downloading"
	case StateCompleted:
		return "Completed"
	case StateFailed:
		return "Failed"
	case StateCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

func (s State) status() types.DownloadStatus {
	switch s {
	case StatePending:
		return types.DownloadStatusPending
	case StateDownloading:
		return types.DownloadStatusDownloading
	case StateCompleted:
		return types.DownloadStatusCompleted
	case StateCancelled:
		return types.DownloadStatusCancelled
	default:
		return types.DownloadStatusFailed
	}
}

func (s State) done() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Task is a single download with its progress.
type Task struct {
	ID          string
	URL         string
	Destination string
	Title       string
	State       State
	Error       error
	Retries     int
	StartTime   time.Time
	CompletedAt time.Time

	Total      int64
	Downloaded int64

	// stem is set when the extension is picked from the response.
	stem  string
	mutex sync.RWMutex
}

func (t *Task) destination() string {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	return t.Destination
}

func (t *Task) progress() *types.DownloadProgress {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	p := &types.DownloadProgress{
		ID:         t.ID,
		URL:        t.URL,
		Filename:   t.Title,
		Path:       t.Destination,
		Total:      t.Total,
		Downloaded: t.Downloaded,
		Status:     t.State.status(),
		Error:      t.Error,
		StartedAt:  t.StartTime,
	}
	if t.Total > 0 {
		p.Progress = float64(t.Downloaded) / float64(t.Total) * 100
	}
	if t.State == StateCompleted {
		p.Progress = 100
	}
	return p
}

// Config holds configuration for the download manager
type Config struct {
	Dir           string
	MaxConcurrent int
	ChunkSize     int
	RetryAttempts int
	RetryDelay    time.Duration
	Timeout       time.Duration
	UserAgent     string
}

// ProgressCallback is called when download progress updates
type ProgressCallback func(*types.DownloadProgress)
