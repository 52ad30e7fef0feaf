package main

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Alexander-D-Karpov/ampstream/internal/storage"
	"github.com/Alexander-D-Karpov/ampstream/pkg/types"
)

func newDownloadCmd() *cobra.Command {
	var indexes []int
	var outDir string

	cmd := &cobra.Command{
		Use:   "download <query>",
		Short: "Search and save one or more results",
		Long: `Search and save results to the download directory. Repeat --index (or
pass a comma separated list) to save several songs at once; they download
concurrently up to download.max_concurrent.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), appOptions{downloadDir: outDir}, func(ctx context.Context, app *application) error {
				songs, err := loadSongs(ctx, app, strings.Join(args, " "))
				if err != nil {
					return err
				}
				picked, err := pickSongs(songs, indexes)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				single := len(picked) == 1
				if single {
					app.downloads.OnProgress(func(p *types.DownloadProgress) {
						if p.Status == types.DownloadStatusDownloading && p.Total > 0 {
							fmt.Fprintf(out, "\r%s  %5.1f%%", p.Filename, p.Progress)
						}
					})
				}

				var g errgroup.Group
				for _, song := range picked {
					g.Go(func() error {
						app.notifier.Notify(fmt.Sprintf("Downloading: %s", song.Title), types.SeverityInfo)
						path, err := app.music.DownloadSong(ctx, song)
						if single {
							fmt.Fprintln(out)
						}
						if err != nil {
							app.notifier.Notify(fmt.Sprintf("Download failed: %s: %v", song.Title, err), types.SeverityError)
							return err
						}
						app.notifier.Notify(fmt.Sprintf("Saved to %s", path), types.SeveritySuccess)
						return nil
					})
				}
				err = g.Wait()

				if !single {
					app.renderer.Table("downloads", []string{"Title", "Status", "Size", "Detail"}, progressRows(app.downloads.GetAllDownloads()))
				}
				if err != nil {
					return errReported
				}
				return nil
			})
		},
	}

	cmd.Flags().IntSliceVarP(&indexes, "index", "i", []int{1}, "1-based positions of the results to download")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "directory to save into (default from config)")
	return cmd
}

func newDownloadsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "downloads",
		Short: "Show songs saved with download",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List recorded downloads, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), appOptions{}, func(ctx context.Context, app *application) error {
				records, err := app.db.ListDownloads(ctx)
				if err != nil {
					return err
				}
				app.renderer.Table("downloads", []string{"Title", "Size", "Saved", "Path"}, recordRows(records))
				return nil
			})
		},
	})
	return cmd
}

// pickSongs maps 1-based positions to songs, dropping repeats.
func pickSongs(songs []*types.Song, indexes []int) ([]*types.Song, error) {
	if len(indexes) == 0 {
		indexes = []int{1}
	}
	var picked []*types.Song
	var seen []int
	for _, index := range indexes {
		if index < 1 || index > len(songs) {
			return nil, fmt.Errorf("no song at position %d", index)
		}
		if slices.Contains(seen, index) {
			continue
		}
		seen = append(seen, index)
		picked = append(picked, songs[index-1])
	}
	return picked, nil
}

func progressRows(downloads []*types.DownloadProgress) [][]string {
	rows := make([][]string, 0, len(downloads))
	for _, p := range downloads {
		detail := p.Path
		if p.Error != nil {
			detail = p.Error.Error()
		}
		rows = append(rows, []string{p.Filename, p.Status.String(), humanize.Bytes(uint64(max(p.Downloaded, 0))), detail})
	}
	return rows
}

func recordRows(records []storage.DownloadRecord) [][]string {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{rec.Title, humanize.Bytes(uint64(max(rec.Size, 0))), humanize.Time(rec.CreatedAt), rec.LocalPath})
	}
	return rows
}
