// Package config defines the top-level configuration for the pair signal
// engine and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by PAIRSIGNAL_* environment variables.
type Config struct {
	Kalshi     KalshiConfig     `toml:"kalshi"`
	Pair       PairConfig       `toml:"pair"`
	Estimation EstimationConfig `toml:"estimation"`
	Monitor    MonitorConfig    `toml:"monitor"`
	Model      ModelConfig      `toml:"model"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// KalshiConfig holds Kalshi exchange API credentials.
type KalshiConfig struct {
	ApiKey            string `toml:"api_key"`
	RsaPrivateKeyPath string `toml:"rsa_private_key_path"`
	BaseURL           string `toml:"base_url"`
}

// PairConfig names the two instruments being modeled. InstrumentX is the
// regressor, InstrumentY the regressand.
type PairConfig struct {
	InstrumentX string `toml:"instrument_x"`
	InstrumentY string `toml:"instrument_y"`
}

// EstimationConfig holds model-fitting parameters.
type EstimationConfig struct {
	// Window is how far back the candle history reaches.
	Window duration `toml:"window"`
	// PeriodMinutes is the preferred candle width. When the exchange returns
	// too few buckets at this width, the coarser fallbacks are tried in order.
	PeriodMinutes    int     `toml:"period_minutes"`
	MinSamples       int     `toml:"min_samples"`
	MinRSquared      float64 `toml:"min_r_squared"`
	PersistWeakModel bool    `toml:"persist_weak_model"`
}

// MonitorConfig holds live-monitoring parameters.
type MonitorConfig struct {
	PollInterval   duration `toml:"poll_interval"`
	ThresholdSigma float64  `toml:"threshold_sigma"`
	RetryBase      duration `toml:"retry_base"`
	RetryMax       duration `toml:"retry_max"`
	// MinSignalInterval suppresses a new open signal within this window of
	// the previous one. Zero disables the cooldown.
	MinSignalInterval duration `toml:"min_signal_interval"`
}

// ModelConfig holds the model artifact location.
type ModelConfig struct {
	ArtifactPath string `toml:"artifact_path"`
	// ArchiveToS3 copies the superseded artifact to object storage before a
	// refit overwrites it.
	ArchiveToS3 bool `toml:"archive_to_s3"`
}

// PostgresConfig holds PostgreSQL connection parameters for the signal
// event history.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	// SnapshotTTL bounds how stale a cached correlation snapshot may be.
	SnapshotTTL duration `toml:"snapshot_ttl"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Kalshi: KalshiConfig{
			BaseURL: "https://api.elections.kalshi.com/trade-api/v2",
		},
		Estimation: EstimationConfig{
			Window:           duration{30 * 24 * time.Hour},
			PeriodMinutes:    60,
			MinSamples:       10,
			MinRSquared:      0.7,
			PersistWeakModel: false,
		},
		Monitor: MonitorConfig{
			PollInterval:   duration{10 * time.Second},
			ThresholdSigma: 2.0,
			RetryBase:      duration{10 * time.Second},
			RetryMax:       duration{5 * time.Minute},
		},
		Model: ModelConfig{
			ArtifactPath: "data/model.json",
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "pairsignal",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:     false,
			Addr:        "localhost:6379",
			DB:          0,
			PoolSize:    20,
			MaxRetries:  3,
			TLSEnabled:  false,
			SnapshotTTL: duration{time.Minute},
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "pairsignal-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Notify: NotifyConfig{
			Events: []string{"signal_opened", "signal_closed", "model_fitted", "error"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"fit":     true,
	"monitor": true,
	"serve":   true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validPeriods enumerates the candle widths the exchange accepts.
var validPeriods = map[int]bool{1: true, 60: true, 1440: true}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: fit, monitor, serve, full)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Kalshi
	if c.Kalshi.ApiKey == "" {
		errs = append(errs, "kalshi: api_key must not be empty")
	}
	if c.Kalshi.RsaPrivateKeyPath == "" {
		errs = append(errs, "kalshi: rsa_private_key_path must not be empty")
	}
	if c.Kalshi.BaseURL == "" {
		errs = append(errs, "kalshi: base_url must not be empty")
	}

	// Pair
	if c.Pair.InstrumentX == "" {
		errs = append(errs, "pair: instrument_x must not be empty")
	}
	if c.Pair.InstrumentY == "" {
		errs = append(errs, "pair: instrument_y must not be empty")
	}
	if c.Pair.InstrumentX != "" && c.Pair.InstrumentX == c.Pair.InstrumentY {
		errs = append(errs, "pair: instrument_x and instrument_y must differ")
	}

	// Estimation
	if c.Estimation.Window.Duration <= 0 {
		errs = append(errs, "estimation: window must be > 0")
	}
	if !validPeriods[c.Estimation.PeriodMinutes] {
		errs = append(errs, fmt.Sprintf("estimation: period_minutes must be 1, 60, or 1440, got %d", c.Estimation.PeriodMinutes))
	}
	if c.Estimation.MinSamples < 2 {
		errs = append(errs, "estimation: min_samples must be >= 2")
	}
	if c.Estimation.MinRSquared < 0 || c.Estimation.MinRSquared > 1 {
		errs = append(errs, fmt.Sprintf("estimation: min_r_squared must be within [0, 1], got %v", c.Estimation.MinRSquared))
	}

	// Monitor
	if c.Monitor.PollInterval.Duration <= 0 {
		errs = append(errs, "monitor: poll_interval must be > 0")
	}
	if c.Monitor.ThresholdSigma <= 0 {
		errs = append(errs, "monitor: threshold_sigma must be > 0")
	}
	if c.Monitor.RetryBase.Duration <= 0 {
		errs = append(errs, "monitor: retry_base must be > 0")
	}
	if c.Monitor.RetryMax.Duration < c.Monitor.RetryBase.Duration {
		errs = append(errs, "monitor: retry_max must not be below retry_base")
	}
	if c.Monitor.MinSignalInterval.Duration < 0 {
		errs = append(errs, "monitor: min_signal_interval must not be negative")
	}

	// Model
	if c.Model.ArtifactPath == "" {
		errs = append(errs, "model: artifact_path must not be empty")
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
		if c.Redis.SnapshotTTL.Duration <= 0 {
			errs = append(errs, "redis: snapshot_ttl must be > 0")
		}
	}

	// S3
	if c.Model.ArchiveToS3 {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when model.archive_to_s3 is set")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when model.archive_to_s3 is set")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
