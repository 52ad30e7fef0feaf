package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Alexander-D-Karpov/ampstream/internal/events"
	"github.com/Alexander-D-Karpov/ampstream/internal/player"
	"github.com/Alexander-D-Karpov/ampstream/pkg/types"
)

// errReported marks failures the notifier already showed to the user.
var errReported = errors.New("reported")

func newSearchCmd() *cobra.Command {
	var pick bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search for songs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), appOptions{withSpeaker: pick, interactive: pick}, func(ctx context.Context, app *application) error {
				songs, err := loadSongs(ctx, app, strings.Join(args, " "))
				if err != nil {
					return err
				}
				return renderAndMaybePlay(ctx, app, "results", songs)
			})
		},
	}

	cmd.Flags().BoolVarP(&pick, "pick", "p", false, "choose a result interactively and play it")
	return cmd
}

func newRecommendCmd() *cobra.Command {
	var pick bool

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Show recommendations from the default search",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), appOptions{withSpeaker: pick, interactive: pick}, func(ctx context.Context, app *application) error {
				songs, err := loadSongs(ctx, app, "")
				if err != nil {
					return err
				}
				return renderAndMaybePlay(ctx, app, "recommendations", songs)
			})
		},
	}

	cmd.Flags().BoolVarP(&pick, "pick", "p", false, "choose a recommendation interactively and play it")
	return cmd
}

func newPlayCmd() *cobra.Command {
	var index int

	cmd := &cobra.Command{
		Use:   "play <query>",
		Short: "Search and play a result until it ends",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), appOptions{withSpeaker: true}, func(ctx context.Context, app *application) error {
				if _, err := loadSongs(ctx, app, strings.Join(args, " ")); err != nil {
					return err
				}
				return playAndWait(ctx, app, index-1)
			})
		},
	}

	cmd.Flags().IntVarP(&index, "index", "i", 1, "1-based position of the result to play")
	return cmd
}

// loadSongs fills the session playlist from a search, or from
// recommendations when query is empty.
func loadSongs(ctx context.Context, app *application, query string) ([]*types.Song, error) {
	songs, fromLibrary, err := app.music.GetSongs(ctx, query)
	if err != nil {
		return nil, errReported
	}
	if fromLibrary {
		app.notifier.Notify("Showing matches from your library", types.SeverityInfo)
		app.session.SetPlaylist(songs)
	}
	if len(songs) == 0 {
		return nil, errReported
	}
	return songs, nil
}

func renderAndMaybePlay(ctx context.Context, app *application, container string, songs []*types.Song) error {
	selected := -1
	app.renderer.Render(container, songs, func(_ *types.Song, index int) {
		selected = index
	})
	if selected < 0 {
		return nil
	}
	return playAndWait(ctx, app, selected)
}

// playAndWait plays the playlist entry at index and blocks until playback
// ends, fails, or ctx is cancelled. With autoplay it keeps going through
// the playlist.
func playAndWait(ctx context.Context, app *application, index int) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates := make(chan events.Event, 64)
	ticks := make(chan events.TimeUpdateData, 1)

	forward := func(e events.Event) {
		select {
		case updates <- e:
		default:
		}
	}
	defer app.bus.Subscribe(events.StateChanged, forward)()
	defer app.bus.Subscribe(events.Ended, forward)()
	defer app.bus.Subscribe(events.TimeUpdate, func(e events.Event) {
		data, ok := e.Data.(events.TimeUpdateData)
		if !ok {
			return
		}
		select {
		case ticks <- data:
		default:
		}
	})()

	if err := app.session.PlayIndex(ctx, index); err != nil {
		switch {
		case errors.Is(err, player.ErrOutOfRange):
			return fmt.Errorf("no song at position %d", index+1)
		case errors.Is(err, context.Canceled):
			return nil
		default:
			return errReported
		}
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return waitForEnd(gCtx, app, updates)
	})

	g.Go(func() error {
		for {
			select {
			case <-gCtx.Done():
				return nil
			case data := <-ticks:
				app.renderer.NowPlaying(app.session.Snapshot().Current, data.Position, data.Duration)
			}
		}
	})

	err := g.Wait()
	app.renderer.Line("")
	return err
}

func waitForEnd(ctx context.Context, app *application, updates <-chan events.Event) error {
	idle := player.StateIdle.String()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-updates:
			switch e.Type {
			case events.Ended:
				snap := app.session.Snapshot()
				if !app.cfg.Player.Autoplay || snap.CurrentIndex+1 >= len(snap.Playlist) {
					return nil
				}
			case events.StateChanged:
				change, ok := e.Data.(events.StateChange)
				if !ok || change.To != idle {
					continue
				}
				if change.From != player.StatePlaying.String() && change.From != player.StatePaused.String() {
					// An autoplayed song failed to start.
					return errReported
				}
			}
		}
	}
}
