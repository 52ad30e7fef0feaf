package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Alexander-D-Karpov/ampstream/internal/library"
	"github.com/Alexander-D-Karpov/ampstream/pkg/types"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show or manage recently played songs",
	}
	cmd.AddCommand(
		newListCmd("list", "Show recently played songs", "history", func(app *application) *library.List { return app.history }),
		&cobra.Command{
			Use:   "clear",
			Short: "Forget every played song",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd.Context(), appOptions{}, func(ctx context.Context, app *application) error {
					if err := app.history.Clear(ctx); err != nil {
						return err
					}
					app.notifier.Notify("History cleared", types.SeverityInfo)
					return nil
				})
			},
		},
		newExportCmd("history", func(app *application) *library.List { return app.history }),
	)
	return cmd
}

func newFavoritesCmd() *cobra.Command {
	favorites := func(app *application) *library.List { return app.favorites }

	cmd := &cobra.Command{
		Use:   "favorites",
		Short: "Show or manage favorite songs",
	}
	cmd.AddCommand(
		newListCmd("list", "Show favorite songs", "favorites", favorites),
		newFavoriteEditCmd("add", "Search and add a result to favorites", func(ctx context.Context, app *application, song *types.Song) error {
			if err := app.favorites.Append(ctx, song); err != nil {
				return err
			}
			app.notifier.Notify(fmt.Sprintf("Added to favorites: %s", song.Title), types.SeveritySuccess)
			return nil
		}),
		newFavoriteEditCmd("toggle", "Search and add or remove a result from favorites", func(ctx context.Context, app *application, song *types.Song) error {
			added, err := app.favorites.Toggle(ctx, song)
			if err != nil {
				return err
			}
			if added {
				app.notifier.Notify(fmt.Sprintf("Added to favorites: %s", song.Title), types.SeveritySuccess)
			} else {
				app.notifier.Notify(fmt.Sprintf("Removed from favorites: %s", song.Title), types.SeverityInfo)
			}
			return nil
		}),
		&cobra.Command{
			Use:   "remove <position|id>",
			Short: "Remove a favorite by its list position or song ID",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(cmd.Context(), appOptions{}, func(ctx context.Context, app *application) error {
					id := args[0]
					if pos, err := strconv.Atoi(id); err == nil {
						songs := app.favorites.Load(ctx)
						if pos < 1 || pos > len(songs) {
							return fmt.Errorf("no favorite at position %d", pos)
						}
						id = songs[pos-1].ID
					}

					removed, err := app.favorites.Remove(ctx, id)
					if err != nil {
						return err
					}
					if !removed {
						return fmt.Errorf("%q is not a favorite", id)
					}
					app.notifier.Notify("Removed from favorites", types.SeverityInfo)
					return nil
				})
			},
		},
		newExportCmd("favorites", favorites),
	)
	return cmd
}

func newListCmd(use, short, container string, list func(*application) *library.List) *cobra.Command {
	var pick bool

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), appOptions{withSpeaker: pick, interactive: pick}, func(ctx context.Context, app *application) error {
				songs := list(app).Load(ctx)
				if pick && len(songs) > 0 {
					app.session.SetPlaylist(songs)
				}
				return renderAndMaybePlay(ctx, app, container, songs)
			})
		},
	}

	cmd.Flags().BoolVarP(&pick, "pick", "p", false, "choose a song interactively and play it")
	return cmd
}

func newExportCmd(name string, list func(*application) *library.List) *cobra.Command {
	return &cobra.Command{
		Use:   "export <file>",
		Short: fmt.Sprintf("Write %s to a JSON file", name),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), appOptions{}, func(ctx context.Context, app *application) error {
				n, err := list(app).Export(ctx, args[0])
				if err != nil {
					return err
				}
				app.notifier.Notify(fmt.Sprintf("Exported %d songs to %s", n, args[0]), types.SeveritySuccess)
				return nil
			})
		},
	}
}

func newFavoriteEditCmd(use, short string, apply func(ctx context.Context, app *application, song *types.Song) error) *cobra.Command {
	var index int

	cmd := &cobra.Command{
		Use:   use + " <query>",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), appOptions{}, func(ctx context.Context, app *application) error {
				songs, err := loadSongs(ctx, app, strings.Join(args, " "))
				if err != nil {
					return err
				}
				if index < 1 || index > len(songs) {
					return fmt.Errorf("no song at position %d", index)
				}
				return apply(ctx, app, songs[index-1])
			})
		},
	}

	cmd.Flags().IntVarP(&index, "index", "i", 1, "1-based position of the search result")
	return cmd
}

func newLibraryCmd() *cobra.Command {
	var limit int

	find := &cobra.Command{
		Use:   "find <query>",
		Short: "Fuzzy search history and favorites",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), appOptions{}, func(ctx context.Context, app *application) error {
				songs := app.music.FindLocal(ctx, strings.Join(args, " "), limit)
				app.renderer.Render("library", songs, nil)
				return nil
			})
		},
	}
	find.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of matches")

	cmd := &cobra.Command{
		Use:   "library",
		Short: "Search songs you have played or saved",
	}
	cmd.AddCommand(find)
	return cmd
}

func newVolumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "volume [0-100]",
		Short: "Show or set the saved playback volume",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), appOptions{}, func(ctx context.Context, app *application) error {
				if len(args) == 1 {
					level, err := strconv.ParseFloat(strings.TrimSuffix(args[0], "%"), 64)
					if err != nil {
						return fmt.Errorf("invalid volume %q: %w", args[0], err)
					}
					if err := app.session.SetVolume(ctx, level/100); err != nil {
						return err
					}
				}

				volume := app.session.Snapshot().Volume
				app.renderer.Line("Volume: %d%%", int(math.Round(volume*100)))
				return nil
			})
		},
	}
}

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or replace the saved settings object",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "get",
			Short: "Print the saved settings as JSON",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd.Context(), appOptions{}, func(ctx context.Context, app *application) error {
					raw := app.prefs.Settings(ctx)
					var pretty map[string]any
					if err := json.Unmarshal(raw, &pretty); err != nil {
						return err
					}
					out, err := json.MarshalIndent(pretty, "", "  ")
					if err != nil {
						return err
					}
					app.renderer.Line("%s", out)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "set <json>",
			Short: "Replace the saved settings with a JSON object",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(cmd.Context(), appOptions{}, func(ctx context.Context, app *application) error {
					if err := app.prefs.SaveSettings(ctx, json.RawMessage(args[0])); err != nil {
						return err
					}
					app.notifier.Notify("Settings saved", types.SeveritySuccess)
					return nil
				})
			},
		},
	)
	return cmd
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or persist the configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "save",
		Short: "Write the effective configuration to the user config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Save(); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration saved")
			return nil
		},
	})
	return cmd
}
