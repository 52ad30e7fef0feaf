package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Alexander-D-Karpov/ampstream/internal/platform"
)

// Persisted keys, named after the web player's localStorage keys.
const (
	KeyHistory   = "music_player_history"
	KeyFavorites = "music_player_favorites"
	KeyVolume    = "music_player_volume"
	KeySettings  = "music_player_settings"
)

type ProviderConfig struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

type Config struct {
	Debug bool `mapstructure:"debug"`

	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`

	API struct {
		SearchURL string           `mapstructure:"search_url"`
		Providers []ProviderConfig `mapstructure:"providers"`
		RateLimit struct {
			RequestsPerSecond int `mapstructure:"requests_per_second"`
			BurstSize         int `mapstructure:"burst_size"`
		} `mapstructure:"rate_limit"`
		Timeout   int    `mapstructure:"timeout"`
		Retries   int    `mapstructure:"retries"`
		UserAgent string `mapstructure:"user_agent"`
	} `mapstructure:"api"`

	Storage struct {
		DatabasePath string `mapstructure:"database_path"`
		EnableWAL    bool   `mapstructure:"enable_wal"`
	} `mapstructure:"storage"`

	Audio struct {
		SampleRate    int     `mapstructure:"sample_rate"`
		DefaultVolume float64 `mapstructure:"default_volume"`
	} `mapstructure:"audio"`

	Player struct {
		DefaultSearch string `mapstructure:"default_search"`
		Autoplay      bool   `mapstructure:"autoplay"`
	} `mapstructure:"player"`

	Library struct {
		MaxHistory   int `mapstructure:"max_history"`
		MaxFavorites int `mapstructure:"max_favorites"`
	} `mapstructure:"library"`

	Resolver struct {
		CacheSize int `mapstructure:"cache_size"`
		CacheTTL  int `mapstructure:"cache_ttl"`
	} `mapstructure:"resolver"`

	Download struct {
		Dir           string `mapstructure:"dir"`
		MaxConcurrent int    `mapstructure:"max_concurrent"`
		ChunkSize     int    `mapstructure:"chunk_size"`
		RetryAttempts int    `mapstructure:"retry_attempts"`
	} `mapstructure:"download"`
}

func Load(configPath string) (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		configDir, err := platform.GetConfigDir()
		if err != nil {
			return nil, err
		}
		viper.AddConfigPath(configDir)
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("AMPSTREAM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := ensureDirectories(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns the built-in configuration without reading files or the
// environment. Tests use it as a base and override what they need.
func Default() *Config {
	cfg := &Config{}
	cfg.Log.Level = "info"

	cfg.API.SearchURL = "https://api.siputzx.my.id/api/s/youtube"
	cfg.API.Providers = []ProviderConfig{
		{Name: "primary", URL: "https://api.nekolabs.web.id/downloader/youtube/v5"},
		{Name: "backup", URL: "https://api.nekolabs.web.id/downloader/youtube/v4"},
	}
	cfg.API.RateLimit.RequestsPerSecond = 10
	cfg.API.RateLimit.BurstSize = 5
	cfg.API.Timeout = 30
	cfg.API.Retries = 1
	cfg.API.UserAgent = "ampstream/1.0.0"

	dataDir, _ := platform.GetDataDir()
	cacheDir, _ := platform.GetCacheDir()

	cfg.Storage.DatabasePath = filepath.Join(dataDir, "ampstream.db")
	cfg.Storage.EnableWAL = true

	cfg.Audio.SampleRate = 44100
	cfg.Audio.DefaultVolume = 0.7

	cfg.Player.DefaultSearch = "top hits indonesia 2025"
	cfg.Player.Autoplay = false

	cfg.Library.MaxHistory = 20
	cfg.Library.MaxFavorites = 0

	cfg.Resolver.CacheSize = 64
	cfg.Resolver.CacheTTL = 600

	cfg.Download.Dir = filepath.Join(cacheDir, "downloads")
	cfg.Download.MaxConcurrent = 2
	cfg.Download.ChunkSize = 64 * 1024
	cfg.Download.RetryAttempts = 2

	return cfg
}

func setDefaults() {
	d := Default()

	viper.SetDefault("debug", false)
	viper.SetDefault("log.level", d.Log.Level)

	viper.SetDefault("api.search_url", d.API.SearchURL)
	viper.SetDefault("api.providers", []map[string]string{
		{"name": d.API.Providers[0].Name, "url": d.API.Providers[0].URL},
		{"name": d.API.Providers[1].Name, "url": d.API.Providers[1].URL},
	})
	viper.SetDefault("api.rate_limit.requests_per_second", d.API.RateLimit.RequestsPerSecond)
	viper.SetDefault("api.rate_limit.burst_size", d.API.RateLimit.BurstSize)
	viper.SetDefault("api.timeout", d.API.Timeout)
	viper.SetDefault("api.retries", d.API.Retries)
	viper.SetDefault("api.user_agent", d.API.UserAgent)

	viper.SetDefault("storage.database_path", d.Storage.DatabasePath)
	viper.SetDefault("storage.enable_wal", d.Storage.EnableWAL)

	viper.SetDefault("audio.sample_rate", d.Audio.SampleRate)
	viper.SetDefault("audio.default_volume", d.Audio.DefaultVolume)

	viper.SetDefault("player.default_search", d.Player.DefaultSearch)
	viper.SetDefault("player.autoplay", d.Player.Autoplay)

	viper.SetDefault("library.max_history", d.Library.MaxHistory)
	viper.SetDefault("library.max_favorites", d.Library.MaxFavorites)

	viper.SetDefault("resolver.cache_size", d.Resolver.CacheSize)
	viper.SetDefault("resolver.cache_ttl", d.Resolver.CacheTTL)

	viper.SetDefault("download.dir", d.Download.Dir)
	viper.SetDefault("download.max_concurrent", d.Download.MaxConcurrent)
	viper.SetDefault("download.chunk_size", d.Download.ChunkSize)
	viper.SetDefault("download.retry_attempts", d.Download.RetryAttempts)
}

func ensureDirectories(cfg *Config) error {
	dirs := []string{
		filepath.Dir(cfg.Storage.DatabasePath),
		cfg.Download.Dir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return nil
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.API.Timeout) * time.Second
}

func (c *Config) ResolverCacheTTL() time.Duration {
	return time.Duration(c.Resolver.CacheTTL) * time.Second
}

func (c *Config) Save() error {
	configDir, err := platform.GetConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}

	configFile := filepath.Join(configDir, "config.yaml")
	return viper.WriteConfigAs(configFile)
}
