package types

import "time"

// Placeholders used when a raw record is missing a display field.
const (
	DefaultTitle     = "Unknown Title"
	DefaultArtist    = "Unknown Artist"
	DefaultThumbnail = "./css/image.png"
)

// Song is the canonical record every search result and history entry is
// normalized into. Title, Artist, Thumbnail and SourceURL are never empty.
type Song struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	Thumbnail string `json:"thumbnail"`
	Duration  string `json:"duration,omitempty"`
	SourceURL string `json:"url"`
	Views     string `json:"views,omitempty"`
}

// MediaCandidate is a single downloadable rendition offered by a provider.
type MediaCandidate struct {
	Type        string `json:"type"`
	Extension   string `json:"extension"`
	IsAudioOnly bool   `json:"is_audio"`
	StreamURL   string `json:"url"`
}

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

type DownloadProgress struct {
	ID         string         `json:"id"`
	URL        string         `json:"url"`
	Filename   string         `json:"filename"`
	Path       string         `json:"path"`
	Total      int64          `json:"total"`
	Downloaded int64          `json:"downloaded"`
	Progress   float64        `json:"progress"`
	Status     DownloadStatus `json:"status"`
	Error      error          `json:"error,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
}

// DownloadStatus represents the status of a download
type DownloadStatus int

const (
	DownloadStatusPending DownloadStatus = iota
	DownloadStatusDownloading
	DownloadStatusCompleted
	DownloadStatusFailed
	DownloadStatusCancelled
)

func (s DownloadStatus) String() string {
	switch s {
	case DownloadStatusPending:
		return "Pending"
	case DownloadStatusDownloading:
		return "Downloading"
	case DownloadStatusCompleted:
		return "Completed"
	case DownloadStatusFailed:
		return "Failed"
	case DownloadStatusCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}
