package download

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/renameio/v2"
)

const progressInterval = 100 * time.Millisecond

var ErrInvalidFile = errors.New("invalid download")

type statusError struct {
	code   int
	status string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.code, e.status)
}

func (m *Manager) performDownload(ctx context.Context, task *Task) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, task.URL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if m.config.UserAgent != "" {
		req.Header.Set("User-Agent", m.config.UserAgent)
	}
	req.Header.Set("Accept", "*/*")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			m.logger.Debug().Err(closeErr).Msg("close response body")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return &statusError{code: resp.StatusCode, status: resp.Status}
	}

	body := bufio.NewReaderSize(resp.Body, max(m.config.ChunkSize, sniffLen))
	if task.stem != "" {
		// A short body peeks fewer bytes; its read error resurfaces below.
		head, _ := body.Peek(sniffLen)
		ext, err := pickExtension(resp, head)
		if err != nil {
			return err
		}
		task.mutex.Lock()
		task.Destination = task.stem + ext
		task.mutex.Unlock()
	}

	task.mutex.Lock()
	task.Total = max(resp.ContentLength, 0)
	task.Downloaded = 0
	destination := task.Destination
	task.mutex.Unlock()

	if err := os.MkdirAll(filepath.Dir(destination), 0755); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}

	pendingFile, err := renameio.NewPendingFile(destination, renameio.WithPermissions(0644))
	if err != nil {
		return fmt.Errorf("create pending file: %w", err)
	}
	defer func() {
		if err := pendingFile.Cleanup(); err != nil {
			m.logger.Debug().Err(err).Msg("cleanup pending download")
		}
	}()

	header, err := m.copyWithProgress(ctx, pendingFile, body, task)
	if err != nil {
		return err
	}

	task.mutex.RLock()
	written := task.Downloaded
	task.mutex.RUnlock()

	if err := validate(destination, header, written); err != nil {
		return err
	}

	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("move file to destination: %w", err)
	}
	return nil
}

// copyWithProgress streams src into dst and returns the first bytes it saw
// for format validation.
func (m *Manager) copyWithProgress(ctx context.Context, dst io.Writer, src io.Reader, task *Task) ([]byte, error) {
	buffer := make([]byte, m.config.ChunkSize)
	header := make([]byte, 0, 10)
	lastUpdate := time.Now()

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n, err := src.Read(buffer)
		if n > 0 {
			if _, writeErr := dst.Write(buffer[:n]); writeErr != nil {
				return nil, fmt.Errorf("write chunk: %w", writeErr)
			}
			if room := cap(header) - len(header); room > 0 {
				header = append(header, buffer[:min(room, n)]...)
			}

			task.mutex.Lock()
			task.Downloaded += int64(n)
			task.mutex.Unlock()

			if now := time.Now(); now.Sub(lastUpdate) >= progressInterval {
				m.notifyProgress(task)
				lastUpdate = now
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				m.notifyProgress(task)
				return header, nil
			}
			return nil, fmt.Errorf("read chunk: %w", err)
		}
	}
}

func validate(destination string, header []byte, size int64) error {
	if size == 0 {
		return fmt.Errorf("%w: file is empty", ErrInvalidFile)
	}
	if !strings.HasSuffix(strings.ToLower(destination), ".mp3") {
		return nil
	}
	if size < 1024 {
		return fmt.Errorf("%w: audio file too small: %d bytes", ErrInvalidFile, size)
	}
	if !looksLikeMP3(header) {
		return fmt.Errorf("%w: not an mp3 stream", ErrInvalidFile)
	}
	return nil
}

const sniffLen = 512

// mediaTypes maps the media types of audio streams to file extensions.
var mediaTypes = map[string]string{
	"audio/mpeg":      ".mp3",
	"audio/mp3":       ".mp3",
	"audio/webm":      ".webm",
	"video/webm":      ".webm",
	"audio/mp4":       ".m4a",
	"audio/x-m4a":     ".m4a",
	"video/mp4":       ".mp4",
	"audio/aac":       ".aac",
	"audio/ogg":       ".ogg",
	"application/ogg": ".ogg",
	"audio/opus":      ".opus",
	"audio/wav":       ".wav",
	"audio/wave":      ".wav",
	"audio/x-wav":     ".wav",
	"audio/flac":      ".flac",
	"audio/x-flac":    ".flac",
}

// mediaExtensions lists every extension pickExtension can return, mp3 first.
var mediaExtensions = []string{".mp3", ".m4a", ".webm", ".mp4", ".aac", ".ogg", ".opus", ".wav", ".flac", ".bin"}

// pickExtension names a stream by, in order, its Content-Type, the
// extension of the URL path, a mime query parameter and finally its first
// bytes. Text responses are error pages, not media.
func pickExtension(resp *http.Response, head []byte) (string, error) {
	declared := baseMediaType(resp.Header.Get("Content-Type"))
	if ext, ok := mediaTypes[declared]; ok {
		return ext, nil
	}
	if strings.HasPrefix(declared, "text/") {
		return "", fmt.Errorf("%w: server sent %s", ErrInvalidFile, declared)
	}

	if resp.Request != nil && resp.Request.URL != nil {
		u := resp.Request.URL
		if ext := strings.ToLower(path.Ext(u.Path)); ext != ".bin" && slices.Contains(mediaExtensions, ext) {
			return ext, nil
		}
		if ext, ok := mediaTypes[baseMediaType(u.Query().Get("mime"))]; ok {
			return ext, nil
		}
	}

	if looksLikeMP3(head) {
		return ".mp3", nil
	}
	sniffed := baseMediaType(http.DetectContentType(head))
	if ext, ok := mediaTypes[sniffed]; ok {
		return ext, nil
	}
	if strings.HasPrefix(sniffed, "text/") {
		return "", fmt.Errorf("%w: body looks like %s", ErrInvalidFile, sniffed)
	}
	return ".bin", nil
}

func baseMediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return mediaType
}

// looksLikeMP3 accepts an ID3 tag or an MPEG frame sync.
func looksLikeMP3(header []byte) bool {
	if len(header) < 3 {
		return false
	}
	if header[0] == 'I' && header[1] == 'D' && header[2] == '3' {
		return true
	}
	return header[0] == 0xFF && header[1]&0xE0 == 0xE0
}

func shouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var statusErr *statusError
	if errors.As(err, &statusErr) {
		return statusErr.code >= 500 || statusErr.code == http.StatusTooManyRequests
	}

	return !errors.Is(err, ErrInvalidFile) &&
		!errors.Is(err, os.ErrPermission) &&
		!errors.Is(err, os.ErrExist)
}
