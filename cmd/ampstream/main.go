// Command ampstream searches for music, streams it to the speaker and keeps
// a local history and favorites list.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

var (
	cfgFile string
	Version = "dev"
)

var rootCmd = &cobra.Command{
	Use:     "ampstream",
	Short:   "Search, stream and collect music from the terminal",
	Version: Version,
	Long: `ampstream searches a video index for songs, resolves a playable audio
stream through fallback download services and plays it. Played songs go to a
local history; favorites, volume and settings are kept between runs.`,
	SilenceUsage: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initEnv)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/ampstream/config.yaml)")
	flags.Bool("debug", false, "enable debug logging for every component")
	flags.String("log-level", "", "log level (debug, info, warn, error)")

	mustBind("debug", "debug")
	mustBind("log.level", "log-level")

	rootCmd.AddCommand(
		newSearchCmd(),
		newRecommendCmd(),
		newPlayCmd(),
		newHistoryCmd(),
		newFavoritesCmd(),
		newLibraryCmd(),
		newVolumeCmd(),
		newSettingsCmd(),
		newDownloadCmd(),
		newDownloadsCmd(),
		newConfigCmd(),
	)
}

func mustBind(key, flag string) {
	if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bind flag %s: %v\n", flag, err)
		os.Exit(1)
	}
}

// initEnv loads a .env file from the working directory so AMPSTREAM_*
// overrides can live next to the project.
func initEnv() {
	if err := gotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
	}
}
