package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the research engine.
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	Research  ResearchConfig  `mapstructure:"research"`
	Provider  ProviderConfig  `mapstructure:"provider"`
	Sources   SourcesConfig   `mapstructure:"sources"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	LogLevel       string        `mapstructure:"log_level"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// ServerConfig contains HTTP server and auth settings. Auth is optional: with
// auth_enabled false every endpoint is open, which suits a localhost setup.
type ServerConfig struct {
	Address           string `mapstructure:"address"`
	AuthEnabled       bool   `mapstructure:"auth_enabled"`
	JWTSecret         string `mapstructure:"jwt_secret"`
	AdminPasswordHash string `mapstructure:"admin_password_hash"`
}

// ResearchConfig tunes the engine defaults.
type ResearchConfig struct {
	DefaultDepth         string  `mapstructure:"default_depth"`
	MaxConcurrentSources int     `mapstructure:"max_concurrent_sources"`
	MaxCostUSD           float64 `mapstructure:"max_cost_usd"`
	UpgradeTopN          int     `mapstructure:"upgrade_top_n"`
}

// ProviderConfig configures the embedding provider. Optional: without it the
// pipeline falls back to lexical similarity everywhere embeddings would be
// used.
type ProviderConfig struct {
	Type           string        `mapstructure:"type"` // openai, anthropic, gemini
	APIKey         string        `mapstructure:"api_key"`
	EmbeddingModel string        `mapstructure:"embedding_model"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// SourcesConfig contains per-adapter settings.
type SourcesConfig struct {
	HackerNews HackerNewsConfig `mapstructure:"hackernews"`
	WebSearch  WebSearchConfig  `mapstructure:"web_search"`
	Article    ArticleConfig    `mapstructure:"article"`
	Vault      VaultConfig      `mapstructure:"vault"`
	Docstore   DocstoreConfig   `mapstructure:"docstore"`
	YouTube    YouTubeConfig    `mapstructure:"youtube"`
}

// HackerNewsConfig controls the Algolia HN adapter.
type HackerNewsConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxStories  int           `mapstructure:"max_stories"`
	MaxComments int           `mapstructure:"max_comments"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// WebSearchConfig contains web search settings
type WebSearchConfig struct {
	Provider        string        `mapstructure:"provider"`
	BraveFreeAPIKey string        `mapstructure:"brave_free_api_key"`
	BraveProAPIKey  string        `mapstructure:"brave_pro_api_key"`
	SerperAPIKey    string        `mapstructure:"serper_api_key"`
	PerVariation    int           `mapstructure:"per_variation"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// ArticleConfig controls page fetching and extraction.
type ArticleConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Fetcher   string        `mapstructure:"fetcher"` // http, chromedp
	Timeout   time.Duration `mapstructure:"timeout"`
	MaxChars  int           `mapstructure:"max_chars"`
	UserAgent string        `mapstructure:"user_agent"`
}

// VaultConfig points at the mandatory markdown note tree.
type VaultConfig struct {
	Path     string `mapstructure:"path"`
	MaxNotes int    `mapstructure:"max_notes"`
}

// DocstoreConfig points at an optional plain document tree.
type DocstoreConfig struct {
	Path       string   `mapstructure:"path"`
	Extensions []string `mapstructure:"extensions"`
	MaxFiles   int      `mapstructure:"max_files"`
}

// YouTubeConfig controls the Data API v3 adapter.
type YouTubeConfig struct {
	APIKey           string        `mapstructure:"api_key"`
	MaxVideos        int           `mapstructure:"max_videos"`
	FetchTranscripts bool          `mapstructure:"fetch_transcripts"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// RedisConfig contains Redis connection settings for the report cache.
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (r RedisConfig) Validate() error {
	if !r.Enabled {
		return nil
	}
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("storage.redis.host required when redis is enabled")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required when redis is enabled")
	}
	return nil
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Validate accepts a full URL, a host/port/dbname triple, or nothing at all;
// the research CLI runs fine without persistence.
func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" && strings.TrimSpace(p.Port) == "" && strings.TrimSpace(p.DBName) == "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("storage.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.Port) == "" {
		return fmt.Errorf("storage.postgres.port required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// TelemetryConfig contains telemetry and monitoring settings
type TelemetryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	LogFile string `mapstructure:"log_file"`
}

// LoadConfig loads config from file
func LoadConfig(path string) *Config {
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("json")   // REQUIRED if the config file does not have the extension in the name
	viper.SetDefault("server.address", ":10001")
	viper.SetDefault("provider.type", "openai")
	viper.SetDefault("provider.embedding_model", "text-embedding-3-small")
	viper.SetDefault("research.default_depth", "moderate")
	viper.SetDefault("research.max_concurrent_sources", 6)
	viper.SetDefault("research.upgrade_top_n", 3)
	viper.SetDefault("sources.hackernews.enabled", true)
	viper.SetDefault("sources.hackernews.max_stories", 10)
	viper.SetDefault("sources.hackernews.max_comments", 3)
	viper.SetDefault("sources.web_search.provider", "brave")
	viper.SetDefault("sources.article.enabled", true)
	viper.SetDefault("sources.article.fetcher", "http")
	viper.SetDefault("sources.youtube.max_videos", 5)
	viper.SetDefault("storage.redis.ttl", 24*time.Hour)
	viper.SetDefault("telemetry.enabled", true)

	if path == "" {
		viper.AddConfigPath("./config") // path to look for the config file in
		viper.AddConfigPath(".")        // optionally look for config in the working directory
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)                                // bin/
		viper.AddConfigPath(filepath.Join(exeDir, ".."))           // repo root
		viper.AddConfigPath(filepath.Join(exeDir, "..", "config")) // repo root/config
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("SCOUT")
	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)

	viper.AutomaticEnv() // read in environment variables that match (SCOUT_*)

	if err := viper.ReadInConfig(); err != nil {
		// Without an explicit path a missing file is fine: defaults plus
		// SCOUT_* environment variables carry the whole configuration.
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
	}

	// unmarshal config
	var config Config

	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	if err := config.Storage.Redis.Validate(); err != nil {
		panic(err)
	}
	if err := config.Storage.Postgres.Validate(); err != nil {
		panic(err)
	}
	return &config
}
