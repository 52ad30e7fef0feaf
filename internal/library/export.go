package library

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/renameio/v2"
)

// Export writes the list as indented JSON to path. The file is replaced
// atomically so a crash never leaves a truncated export behind.
func (l *List) Export(ctx context.Context, path string) (int, error) {
	songs := l.Load(ctx)

	data, err := json.MarshalIndent(songs, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("encode export: %w", err)
	}

	pendingFile, err := renameio.NewPendingFile(path)
	if err != nil {
		return 0, fmt.Errorf("create pending export file: %w", err)
	}
	defer func() {
		if err := pendingFile.Cleanup(); err != nil {
			l.logger.Debug().Err(err).Msg("cleanup pending export file")
		}
	}()

	if _, err := pendingFile.Write(append(data, '\n')); err != nil {
		return 0, fmt.Errorf("write export: %w", err)
	}

	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return 0, fmt.Errorf("atomically replace export file: %w", err)
	}

	return len(songs), nil
}
