package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies PAIRSIGNAL_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known PAIRSIGNAL_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Kalshi ──
	setStr(&cfg.Kalshi.ApiKey, "PAIRSIGNAL_KALSHI_API_KEY")
	setStr(&cfg.Kalshi.RsaPrivateKeyPath, "PAIRSIGNAL_KALSHI_RSA_PRIVATE_KEY_PATH")
	setStr(&cfg.Kalshi.BaseURL, "PAIRSIGNAL_KALSHI_BASE_URL")

	// ── Pair ──
	setStr(&cfg.Pair.InstrumentX, "PAIRSIGNAL_PAIR_INSTRUMENT_X")
	setStr(&cfg.Pair.InstrumentY, "PAIRSIGNAL_PAIR_INSTRUMENT_Y")

	// ── Estimation ──
	setDuration(&cfg.Estimation.Window, "PAIRSIGNAL_ESTIMATION_WINDOW")
	setInt(&cfg.Estimation.PeriodMinutes, "PAIRSIGNAL_ESTIMATION_PERIOD_MINUTES")
	setInt(&cfg.Estimation.MinSamples, "PAIRSIGNAL_ESTIMATION_MIN_SAMPLES")
	setFloat64(&cfg.Estimation.MinRSquared, "PAIRSIGNAL_ESTIMATION_MIN_R_SQUARED")
	setBool(&cfg.Estimation.PersistWeakModel, "PAIRSIGNAL_ESTIMATION_PERSIST_WEAK_MODEL")

	// ── Monitor ──
	setDuration(&cfg.Monitor.PollInterval, "PAIRSIGNAL_MONITOR_POLL_INTERVAL")
	setFloat64(&cfg.Monitor.ThresholdSigma, "PAIRSIGNAL_MONITOR_THRESHOLD_SIGMA")
	setDuration(&cfg.Monitor.RetryBase, "PAIRSIGNAL_MONITOR_RETRY_BASE")
	setDuration(&cfg.Monitor.RetryMax, "PAIRSIGNAL_MONITOR_RETRY_MAX")
	setDuration(&cfg.Monitor.MinSignalInterval, "PAIRSIGNAL_MONITOR_MIN_SIGNAL_INTERVAL")

	// ── Model ──
	setStr(&cfg.Model.ArtifactPath, "PAIRSIGNAL_MODEL_ARTIFACT_PATH")
	setBool(&cfg.Model.ArchiveToS3, "PAIRSIGNAL_MODEL_ARCHIVE_TO_S3")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "PAIRSIGNAL_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "PAIRSIGNAL_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "PAIRSIGNAL_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "PAIRSIGNAL_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "PAIRSIGNAL_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "PAIRSIGNAL_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "PAIRSIGNAL_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "PAIRSIGNAL_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "PAIRSIGNAL_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "PAIRSIGNAL_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "PAIRSIGNAL_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "PAIRSIGNAL_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "PAIRSIGNAL_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "PAIRSIGNAL_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "PAIRSIGNAL_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "PAIRSIGNAL_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "PAIRSIGNAL_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "PAIRSIGNAL_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.SnapshotTTL, "PAIRSIGNAL_REDIS_SNAPSHOT_TTL")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "PAIRSIGNAL_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "PAIRSIGNAL_S3_REGION")
	setStr(&cfg.S3.Bucket, "PAIRSIGNAL_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "PAIRSIGNAL_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "PAIRSIGNAL_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "PAIRSIGNAL_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "PAIRSIGNAL_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "PAIRSIGNAL_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "PAIRSIGNAL_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "PAIRSIGNAL_SERVER_CORS_ORIGINS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "PAIRSIGNAL_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "PAIRSIGNAL_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "PAIRSIGNAL_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "PAIRSIGNAL_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "PAIRSIGNAL_MODE")
	setStr(&cfg.LogLevel, "PAIRSIGNAL_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
