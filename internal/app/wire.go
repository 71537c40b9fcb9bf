package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	s3blob "github.com/ktp-quant/pairsignal/internal/blob/s3"
	"github.com/ktp-quant/pairsignal/internal/cache/redis"
	"github.com/ktp-quant/pairsignal/internal/config"
	"github.com/ktp-quant/pairsignal/internal/domain"
	"github.com/ktp-quant/pairsignal/internal/estimator"
	"github.com/ktp-quant/pairsignal/internal/feed"
	"github.com/ktp-quant/pairsignal/internal/model"
	"github.com/ktp-quant/pairsignal/internal/notify"
	"github.com/ktp-quant/pairsignal/internal/platform/kalshi"
	"github.com/ktp-quant/pairsignal/internal/server/handler"
	"github.com/ktp-quant/pairsignal/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function. Optional backends (Postgres, Redis, S3) leave
// their fields nil when disabled.
type Dependencies struct {
	// Exchange access
	Kalshi  *kalshi.Client
	Quotes  domain.QuoteSource
	Candles domain.CandleSource

	// Model artifact
	ModelStore domain.ModelStore
	Archiver   estimator.Archiver

	// Optional backends
	SignalEvents  domain.SignalEventStore
	SignalBus     domain.SignalBus
	SnapshotCache domain.SnapshotCache

	// Notifications
	Notifier *notify.Notifier

	// HealthChecks reports connectivity of each wired optional backend on
	// the status endpoint.
	HealthChecks []handler.BackendCheck
}

// needsPostgres returns true for modes that read or write the signal event
// history.
func needsPostgres(mode string) bool {
	switch mode {
	case "monitor", "serve", "full":
		return true
	default:
		return false
	}
}

// needsRedis returns true for modes that publish to or read from the signal
// bus and snapshot cache.
func needsRedis(mode string) bool {
	switch mode {
	case "monitor", "serve", "full":
		return true
	default:
		return false
	}
}

// needsS3 returns true for modes that refit the model and therefore archive
// the superseded artifact.
func needsS3(mode string) bool {
	switch mode {
	case "fit", "full":
		return true
	default:
		return false
	}
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	mode := strings.ToLower(cfg.Mode)
	deps := &Dependencies{}

	// --- Kalshi client (every mode talks to the exchange) ---
	kc := kalshi.NewClient(cfg.Kalshi.BaseURL, cfg.Kalshi.ApiKey)
	keyBytes, err := os.ReadFile(cfg.Kalshi.RsaPrivateKeyPath)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: read kalshi rsa key: %w", err)
	}
	if err := kc.SetRSAPrivateKey(keyBytes); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: parse kalshi rsa key: %w", err)
	}
	deps.Kalshi = kc
	deps.Quotes = feed.NewQuoteFeed(kc)
	deps.Candles = feed.NewCandleFeed(kc)

	// --- Model artifact store ---
	deps.ModelStore = model.NewFileStore(cfg.Model.ArtifactPath)

	// --- PostgreSQL (signal event history) ---
	if cfg.Postgres.Enabled && needsPostgres(mode) {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		deps.SignalEvents = postgres.NewSignalEventStore(pgClient.Pool())
		deps.HealthChecks = append(deps.HealthChecks, handler.BackendCheck{
			Name: "postgres", Check: pgClient.Ping,
		})
	}

	// --- Redis (signal bus + snapshot cache) ---
	if cfg.Redis.Enabled && needsRedis(mode) {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.SnapshotCache = redis.NewSnapshotCache(redisClient)
		deps.HealthChecks = append(deps.HealthChecks, handler.BackendCheck{
			Name: "redis", Check: redisClient.Ping,
		})
	}

	// --- S3 blob storage (model artifact archive) ---
	if cfg.Model.ArchiveToS3 && needsS3(mode) {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.Archiver = s3blob.NewModelArchiver(s3blob.NewWriter(s3Client))
		deps.HealthChecks = append(deps.HealthChecks, handler.BackendCheck{
			Name: "s3", Check: s3Client.Health,
		})
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
