// Package config defines the oddsbot configuration, its defaults and
// validation.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration. Fields come from a TOML file and may be
// overridden by ODDSBOT_* environment variables.
type Config struct {
	OddsAPI    OddsAPIConfig    `toml:"odds_api" envPrefix:"ODDS_API_"`
	Wikipedia  WikipediaConfig  `toml:"wikipedia" envPrefix:"WIKIPEDIA_"`
	Sentiment  SentimentConfig  `toml:"sentiment" envPrefix:"SENTIMENT_"`
	Prediction PredictionConfig `toml:"prediction" envPrefix:"PREDICTION_"`
	Analysis   AnalysisConfig   `toml:"analysis" envPrefix:"ANALYSIS_"`
	Cache      CacheConfig      `toml:"cache" envPrefix:"CACHE_"`
	Arbitrage  ArbitrageConfig  `toml:"arbitrage" envPrefix:"ARBITRAGE_"`
	Telegram   TelegramConfig   `toml:"telegram" envPrefix:"TELEGRAM_"`
	Database   DatabaseConfig   `toml:"database" envPrefix:"DATABASE_"`
	Redis      RedisConfig      `toml:"redis" envPrefix:"REDIS_"`
	S3         S3Config         `toml:"s3" envPrefix:"S3_"`
	Server     ServerConfig     `toml:"server" envPrefix:"SERVER_"`
	Notify     NotifyConfig     `toml:"notify" envPrefix:"NOTIFY_"`
	Mode       string           `toml:"mode" env:"MODE"`
	LogLevel   string           `toml:"log_level" env:"LOG_LEVEL"`
}

// OddsAPIConfig configures the bookmaker odds provider.
type OddsAPIConfig struct {
	BaseURL           string   `toml:"base_url" env:"BASE_URL"`
	APIKey            string   `toml:"api_key" env:"API_KEY"`
	Regions           string   `toml:"regions" env:"REGIONS"`
	Markets           string   `toml:"markets" env:"MARKETS"`
	RequestsPerSecond float64  `toml:"requests_per_second" env:"REQUESTS_PER_SECOND"`
	Burst             int      `toml:"burst" env:"BURST"`
	Timeout           Duration `toml:"timeout" env:"TIMEOUT"`
	// SharedLimit and SharedWindow bound API calls across replicas through
	// Redis. Zero disables the shared limit.
	SharedLimit  int      `toml:"shared_limit" env:"SHARED_LIMIT"`
	SharedWindow Duration `toml:"shared_window" env:"SHARED_WINDOW"`
}

// WikipediaConfig configures the team history provider.
type WikipediaConfig struct {
	BaseURL   string   `toml:"base_url" env:"BASE_URL"`
	Sentences int      `toml:"sentences" env:"SENTENCES"`
	UserAgent string   `toml:"user_agent" env:"USER_AGENT"`
	Timeout   Duration `toml:"timeout" env:"TIMEOUT"`
}

// SentimentConfig configures the tweet-scraping sentiment provider. An empty
// token disables sentiment.
type SentimentConfig struct {
	BaseURL  string   `toml:"base_url" env:"BASE_URL"`
	Token    string   `toml:"token" env:"TOKEN"`
	Actor    string   `toml:"actor" env:"ACTOR"`
	MaxItems int      `toml:"max_items" env:"MAX_ITEMS"`
	Timeout  Duration `toml:"timeout" env:"TIMEOUT"`
}

// PredictionConfig configures the language-model prediction provider. An
// empty API key selects the placeholder predictor.
type PredictionConfig struct {
	BaseURL     string   `toml:"base_url" env:"BASE_URL"`
	APIKey      string   `toml:"api_key" env:"API_KEY"`
	Model       string   `toml:"model" env:"MODEL"`
	MaxTokens   int      `toml:"max_tokens" env:"MAX_TOKENS"`
	Temperature float32  `toml:"temperature" env:"TEMPERATURE"`
	Timeout     Duration `toml:"timeout" env:"TIMEOUT"`
}

// AnalysisConfig holds the per-stage deadlines of the analysis pipeline.
type AnalysisConfig struct {
	HistoryTimeout    Duration `toml:"history_timeout" env:"HISTORY_TIMEOUT"`
	SentimentTimeout  Duration `toml:"sentiment_timeout" env:"SENTIMENT_TIMEOUT"`
	PredictionTimeout Duration `toml:"prediction_timeout" env:"PREDICTION_TIMEOUT"`
	// Archive uploads each finished analysis to S3 when storage is enabled.
	Archive bool `toml:"archive" env:"ARCHIVE"`
}

// CacheConfig configures the sports catalog cache.
type CacheConfig struct {
	TTL Duration `toml:"ttl" env:"TTL"`
	// Persist writes entries through to Redis when it is enabled.
	Persist bool `toml:"persist" env:"PERSIST"`
}

// ArbitrageConfig configures the arbitrage scanner and its alerts.
type ArbitrageConfig struct {
	PopularSports  []string `toml:"popular_sports" env:"POPULAR_SPORTS"`
	Concurrency    int      `toml:"concurrency" env:"CONCURRENCY"`
	ScanInterval   Duration `toml:"scan_interval" env:"SCAN_INTERVAL"`
	AlertMinProfit float64  `toml:"alert_min_profit" env:"ALERT_MIN_PROFIT"`
	// Archive appends every background sweep to S3 when storage is enabled.
	Archive bool `toml:"archive" env:"ARCHIVE"`
}

// TelegramConfig configures the chat front end. Webhook mode is used when
// WebhookURL is set, long polling otherwise.
type TelegramConfig struct {
	Token         string   `toml:"token" env:"TOKEN"`
	BaseURL       string   `toml:"base_url" env:"BASE_URL"`
	WebhookURL    string   `toml:"webhook_url" env:"WEBHOOK_URL"`
	WebhookSecret string   `toml:"webhook_secret" env:"WEBHOOK_SECRET"`
	PollWait      Duration `toml:"poll_wait" env:"POLL_WAIT"`
	TurnTimeout   Duration `toml:"turn_timeout" env:"TURN_TIMEOUT"`
	SessionIdle   Duration `toml:"session_idle" env:"SESSION_IDLE"`
}

// DatabaseConfig holds the PostgreSQL connection used for history.
type DatabaseConfig struct {
	Enabled       bool   `toml:"enabled" env:"ENABLED"`
	DSN           string `toml:"dsn" env:"DSN"`
	Host          string `toml:"host" env:"HOST"`
	Port          int    `toml:"port" env:"PORT"`
	Database      string `toml:"database" env:"NAME"`
	User          string `toml:"user" env:"USER"`
	Password      string `toml:"password" env:"PASSWORD"`
	SSLMode       string `toml:"ssl_mode" env:"SSL_MODE"`
	PoolMaxConns  int    `toml:"pool_max_conns" env:"POOL_MAX_CONNS"`
	PoolMinConns  int    `toml:"pool_min_conns" env:"POOL_MIN_CONNS"`
	RunMigrations bool   `toml:"run_migrations" env:"RUN_MIGRATIONS"`
}

// RedisConfig holds the Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled" env:"ENABLED"`
	Addr       string `toml:"addr" env:"ADDR"`
	Password   string `toml:"password" env:"PASSWORD"`
	DB         int    `toml:"db" env:"DB"`
	PoolSize   int    `toml:"pool_size" env:"POOL_SIZE"`
	MaxRetries int    `toml:"max_retries" env:"MAX_RETRIES"`
	TLSEnabled bool   `toml:"tls_enabled" env:"TLS_ENABLED"`
	KeyPrefix  string `toml:"key_prefix" env:"KEY_PREFIX"`
}

// S3Config holds the object storage parameters for the report archive.
type S3Config struct {
	Enabled        bool   `toml:"enabled" env:"ENABLED"`
	Endpoint       string `toml:"endpoint" env:"ENDPOINT"`
	Region         string `toml:"region" env:"REGION"`
	Bucket         string `toml:"bucket" env:"BUCKET"`
	Prefix         string `toml:"prefix" env:"PREFIX"`
	AccessKey      string `toml:"access_key" env:"ACCESS_KEY"`
	SecretKey      string `toml:"secret_key" env:"SECRET_KEY"`
	UseSSL         bool   `toml:"use_ssl" env:"USE_SSL"`
	ForcePathStyle bool   `toml:"force_path_style" env:"FORCE_PATH_STYLE"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `toml:"port" env:"PORT"`
	CORSOrigins []string `toml:"cors_origins" env:"CORS_ORIGINS"`
	APIKey      string   `toml:"api_key" env:"API_KEY"`
	RateLimit   int      `toml:"rate_limit" env:"RATE_LIMIT"`
	RateWindow  Duration `toml:"rate_window" env:"RATE_WINDOW"`
}

// NotifyConfig configures arbitrage alerts.
type NotifyConfig struct {
	TelegramChatID    string   `toml:"telegram_chat_id" env:"TELEGRAM_CHAT_ID"`
	DiscordWebhookURL string   `toml:"discord_webhook_url" env:"DISCORD_WEBHOOK_URL"`
	Events            []string `toml:"events" env:"EVENTS"`
}

// Duration decodes from strings such as "8s" or "24h" in both TOML and
// environment variables.
type Duration struct {
	time.Duration
}

// Dur wraps d.
func Dur(d time.Duration) Duration { return Duration{d} }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config with every field that has a sensible default
// filled in.
func Defaults() Config {
	return Config{
		OddsAPI: OddsAPIConfig{
			BaseURL:           "https://api.the-odds-api.com",
			Regions:           "us",
			Markets:           "h2h",
			RequestsPerSecond: 2,
			Burst:             4,
			Timeout:           Dur(10 * time.Second),
			SharedWindow:      Dur(time.Minute),
		},
		Wikipedia: WikipediaConfig{
			BaseURL:   "https://en.wikipedia.org",
			Sentences: 3,
			UserAgent: "oddsbot/1.0",
			Timeout:   Dur(8 * time.Second),
		},
		Sentiment: SentimentConfig{
			BaseURL:  "https://api.apify.com",
			Actor:    "apidojo~tweet-scraper",
			MaxItems: 100,
			Timeout:  Dur(15 * time.Second),
		},
		Prediction: PredictionConfig{
			BaseURL:     "https://generativelanguage.googleapis.com/v1beta/openai",
			Model:       "gemini-1.5-flash",
			MaxTokens:   600,
			Temperature: 0.4,
			Timeout:     Dur(30 * time.Second),
		},
		Analysis: AnalysisConfig{
			HistoryTimeout:    Dur(8 * time.Second),
			SentimentTimeout:  Dur(15 * time.Second),
			PredictionTimeout: Dur(30 * time.Second),
			Archive:           true,
		},
		Cache: CacheConfig{
			TTL:     Dur(24 * time.Hour),
			Persist: true,
		},
		Arbitrage: ArbitrageConfig{
			PopularSports:  []string{"americanfootball_nfl", "basketball_nba", "soccer_epl"},
			Concurrency:    3,
			ScanInterval:   Dur(5 * time.Minute),
			AlertMinProfit: 1,
			Archive:        true,
		},
		Telegram: TelegramConfig{
			BaseURL:     "https://api.telegram.org",
			PollWait:    Dur(30 * time.Second),
			TurnTimeout: Dur(2 * time.Minute),
			SessionIdle: Dur(6 * time.Hour),
		},
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "oddsbot",
			User:          "oddsbot",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   10,
			MaxRetries: 3,
			KeyPrefix:  "oddsbot:",
		},
		S3: S3Config{
			Region:         "us-east-1",
			Bucket:         "oddsbot",
			UseSSL:         true,
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Port:       8080,
			RateLimit:  120,
			RateWindow: Dur(time.Minute),
		},
		Notify: NotifyConfig{
			Events: []string{"arbitrage"},
		},
		Mode:     "bot",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"bot":    true,
	"server": true,
	"scan":   true,
	"full":   true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks c and returns one error listing every problem found.
func (c *Config) Validate() error {
	var errs []string
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	mode := strings.ToLower(c.Mode)
	if !validModes[mode] {
		add("unknown mode %q (valid: bot, server, scan, full)", c.Mode)
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		add("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel)
	}

	if c.OddsAPI.APIKey == "" {
		add("odds_api: api_key must be set")
	}
	if c.OddsAPI.RequestsPerSecond <= 0 {
		add("odds_api: requests_per_second must be > 0")
	}
	if c.OddsAPI.SharedLimit > 0 && !c.Redis.Enabled {
		add("odds_api: shared_limit requires redis.enabled")
	}

	if c.ChatEnabled() && c.Telegram.Token == "" {
		add("telegram: token is required for mode %s", mode)
	}
	if c.Telegram.WebhookURL != "" {
		if !strings.HasPrefix(c.Telegram.WebhookURL, "https://") {
			add("telegram: webhook_url must be https")
		}
		if !c.ServerEnabled() {
			add("telegram: webhook_url needs mode server or full")
		}
	}

	for name, d := range map[string]Duration{
		"analysis.history_timeout":    c.Analysis.HistoryTimeout,
		"analysis.sentiment_timeout":  c.Analysis.SentimentTimeout,
		"analysis.prediction_timeout": c.Analysis.PredictionTimeout,
		"cache.ttl":                   c.Cache.TTL,
		"arbitrage.scan_interval":     c.Arbitrage.ScanInterval,
	} {
		if d.Duration <= 0 {
			add("%s must be > 0", name)
		}
	}
	if len(c.Arbitrage.PopularSports) == 0 {
		add("arbitrage: popular_sports must not be empty")
	}

	if c.Database.Enabled {
		if strings.TrimSpace(c.Database.DSN) == "" && c.Database.Host == "" {
			add("database: host must not be empty (or set database.dsn)")
		}
		if c.Database.PoolMaxConns < 1 {
			add("database: pool_max_conns must be >= 1")
		}
		if c.Database.PoolMinConns > c.Database.PoolMaxConns {
			add("database: pool_min_conns must not exceed pool_max_conns")
		}
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		add("redis: addr must not be empty")
	}
	if c.S3.Enabled && c.S3.Bucket == "" {
		add("s3: bucket must not be empty")
	}
	if c.ServerEnabled() && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		add("server: port must be 1-65535, got %d", c.Server.Port)
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ChatEnabled reports whether the mode runs the Telegram front end.
func (c *Config) ChatEnabled() bool {
	m := strings.ToLower(c.Mode)
	return m == "bot" || m == "full" || (m == "server" && c.Telegram.WebhookURL != "")
}

// ServerEnabled reports whether the mode runs the HTTP API.
func (c *Config) ServerEnabled() bool {
	m := strings.ToLower(c.Mode)
	return m == "server" || m == "full"
}

// ScanEnabled reports whether the mode runs the background scanner.
func (c *Config) ScanEnabled() bool {
	m := strings.ToLower(c.Mode)
	return m == "scan" || m == "full"
}
