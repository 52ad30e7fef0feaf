package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/Alexander-D-Karpov/ampstream/internal/api"
	"github.com/Alexander-D-Karpov/ampstream/internal/audio"
	"github.com/Alexander-D-Karpov/ampstream/internal/config"
	"github.com/Alexander-D-Karpov/ampstream/internal/console"
	"github.com/Alexander-D-Karpov/ampstream/internal/download"
	"github.com/Alexander-D-Karpov/ampstream/internal/events"
	"github.com/Alexander-D-Karpov/ampstream/internal/library"
	"github.com/Alexander-D-Karpov/ampstream/internal/log"
	"github.com/Alexander-D-Karpov/ampstream/internal/player"
	"github.com/Alexander-D-Karpov/ampstream/internal/resolver"
	"github.com/Alexander-D-Karpov/ampstream/internal/search"
	"github.com/Alexander-D-Karpov/ampstream/internal/services"
	"github.com/Alexander-D-Karpov/ampstream/internal/storage"
	"github.com/Alexander-D-Karpov/ampstream/pkg/types"
)

// application holds everything one command invocation needs.
type application struct {
	cfg    *config.Config
	logger zerolog.Logger

	db        *storage.Database
	bus       *events.EventBus
	history   *library.List
	favorites *library.List
	prefs     *library.Preferences
	resolver  *resolver.Resolver
	downloads *download.Manager
	output    *audio.Player
	session   *player.Session
	music     *services.MusicService

	searchClient   *api.SearchClient
	providerClient *api.Client

	renderer *console.Renderer
	notifier *console.Notifier
}

type appOptions struct {
	// withSpeaker opens the audio device; without it the session keeps
	// state but produces no sound.
	withSpeaker bool
	interactive bool
	downloadDir string
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.Log.Level
	if cfg.Debug {
		level = "debug"
	}
	log.Configure(log.Config{Level: level, Console: true})
	return cfg, nil
}

func newApplication(opts appOptions) (*application, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	app := &application{
		cfg:      cfg,
		logger:   log.WithComponent("main"),
		bus:      events.NewEventBus(),
		notifier: console.NewNotifier(os.Stdout, log.WithComponent("notify")),
	}

	var prompt console.Prompt
	if opts.interactive {
		prompt = console.SurveyPrompt
	}
	app.renderer = console.NewRenderer(os.Stdout, prompt)

	app.logger.Debug().
		Str("search_url", cfg.API.SearchURL).
		Str("database", cfg.Storage.DatabasePath).
		Int("providers", len(cfg.API.Providers)).
		Msg("configuration loaded")

	app.db, err = storage.NewDatabase(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	libLogger := log.WithComponent("library")
	app.history = library.NewHistory(app.db, cfg.Library.MaxHistory, libLogger)
	app.favorites = library.NewFavorites(app.db, cfg.Library.MaxFavorites, libLogger)
	app.prefs = library.NewPreferences(app.db, cfg.Audio.DefaultVolume, libLogger)

	apiOpts := api.OptionsFromConfig(cfg)
	app.searchClient = api.NewSearchClient(apiOpts, cfg.API.SearchURL)
	app.providerClient = api.NewClient(apiOpts).WithLogger(log.WithComponent("providers"))
	providers := make([]*api.Provider, 0, len(cfg.API.Providers))
	for _, p := range cfg.API.Providers {
		providers = append(providers, api.NewProvider(p.Name, p.URL, app.providerClient))
	}
	app.resolver = resolver.New(
		resolver.FromProviders(providers...),
		cfg.Resolver.CacheSize,
		cfg.ResolverCacheTTL(),
		log.WithComponent("resolver"),
	)

	downloadCfg := download.ConfigFrom(cfg)
	if opts.downloadDir != "" {
		downloadCfg.Dir = opts.downloadDir
	}
	app.downloads = download.NewManager(downloadCfg, app.db, log.WithComponent("download"))

	audioOpts := audio.OptionsFromConfig(cfg)
	if !opts.withSpeaker {
		audioOpts.Sink = &audio.NullSink{}
	}
	app.output, err = audio.NewPlayer(audioOpts)
	if err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.session = player.New(player.Options{
		Resolver:      app.resolver,
		Audio:         app.output,
		Notifier:      app.notifier,
		Searcher:      app.searchClient,
		History:       app.history,
		Preferences:   app.prefs,
		Bus:           app.bus,
		DefaultSearch: cfg.Player.DefaultSearch,
		Autoplay:      cfg.Player.Autoplay,
		Logger:        log.WithComponent("player"),
	})

	engine := search.NewEngine(app.history, app.favorites)
	app.music = services.NewMusicService(app.session, engine, app.resolver, app.downloads, log.WithComponent("music"))

	return app, nil
}

// Close releases the session, the audio output and the database.
func (a *application) Close() error {
	if a.searchClient != nil && a.providerClient != nil {
		a.logger.Debug().
			Interface("search", a.searchClient.Stats()).
			Interface("providers", a.providerClient.Stats()).
			Msg("request totals")
	}

	var errs []error
	if a.session != nil {
		errs = append(errs, a.session.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}

// run builds an application for one command and tears it down afterwards.
func run(ctx context.Context, opts appOptions, fn func(ctx context.Context, app *application) error) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			app.logger.Debug().Err(err).Msg("shutdown")
		}
	}()

	app.renderer.SetMarker(func(song *types.Song) bool {
		return app.favorites.Contains(ctx, song.ID)
	})
	return fn(ctx, app)
}
