package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	s3blob "github.com/alanyoungcy/oddsbot/internal/blob/s3"
	"github.com/alanyoungcy/oddsbot/internal/cache/redis"
	"github.com/alanyoungcy/oddsbot/internal/config"
	"github.com/alanyoungcy/oddsbot/internal/domain"
	"github.com/alanyoungcy/oddsbot/internal/metrics"
	"github.com/alanyoungcy/oddsbot/internal/notify"
	"github.com/alanyoungcy/oddsbot/internal/server/handler"
	"github.com/alanyoungcy/oddsbot/internal/store/postgres"
	"github.com/alanyoungcy/oddsbot/internal/telegram"
)

// Dependencies bundles the infrastructure the modes build on. Every
// interface field is nil when its backend is disabled.
type Dependencies struct {
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	// Redis
	EntryStore  domain.EntryStore
	SignalBus   domain.SignalBus
	LockManager domain.LockManager
	RateLimiter domain.RateLimiter
	OddsQuota   domain.RateLimiter

	// PostgreSQL
	ArbStore      domain.ArbStore
	AnalysisStore domain.AnalysisStore

	// S3
	BlobReader domain.BlobReader
	Archiver   domain.ReportArchiver

	Telegram *telegram.Client
	Notifier *notify.Notifier

	// Pingers are checked by the readiness endpoint.
	Pingers map[string]handler.Pinger
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Wire connects every enabled backend and returns the dependencies with a
// cleanup function that releases them in reverse order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(what string, err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, fmt.Errorf("wire: %s: %w", what, err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	deps := &Dependencies{
		Registry: reg,
		Metrics:  metrics.New(reg),
		Pingers:  make(map[string]handler.Pinger),
	}

	if cfg.Redis.Enabled {
		rc, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return fail("redis", err)
		}
		closers = append(closers, func() { _ = rc.Close() })

		if cfg.Cache.Persist {
			deps.EntryStore = redis.NewEntryStore(rc, 2*cfg.Cache.TTL.Duration)
		}
		deps.SignalBus = redis.NewSignalBus(rc)
		deps.LockManager = redis.NewLockManager(rc)
		deps.RateLimiter = redis.NewRateLimiter(rc, cfg.Server.RateLimit, cfg.Server.RateWindow.Duration)
		if cfg.OddsAPI.SharedLimit > 0 {
			deps.OddsQuota = redis.NewRateLimiter(rc, cfg.OddsAPI.SharedLimit, cfg.OddsAPI.SharedWindow.Duration)
		}
		deps.Pingers["redis"] = rc
		logger.InfoContext(ctx, "wire: redis connected", slog.String("addr", cfg.Redis.Addr))
	}

	if cfg.Database.Enabled {
		pg, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Database.DSN,
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			Database: cfg.Database.Database,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			SSLMode:  cfg.Database.SSLMode,
			MaxConns: cfg.Database.PoolMaxConns,
			MinConns: cfg.Database.PoolMinConns,
		}, logger)
		if err != nil {
			return fail("postgres", err)
		}
		closers = append(closers, pg.Close)

		if cfg.Database.RunMigrations {
			if err := pg.Migrate(ctx); err != nil {
				return fail("postgres migrations", err)
			}
		}
		deps.ArbStore = postgres.NewArbStore(pg.Pool())
		deps.AnalysisStore = postgres.NewAnalysisStore(pg.Pool())
		deps.Pingers["postgres"] = pg
	}

	if cfg.S3.Enabled {
		sc, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail("s3", err)
		}
		deps.BlobReader = s3blob.NewReader(sc)
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(sc), cfg.S3.Prefix)
		deps.Pingers["s3"] = pingFunc(sc.Health)
	}

	if cfg.Telegram.Token != "" {
		tg, err := telegram.NewClient(telegram.ClientConfig{
			Token:   cfg.Telegram.Token,
			BaseURL: cfg.Telegram.BaseURL,
			// Must outlast the long poll.
			Timeout: cfg.Telegram.PollWait.Duration + 30*time.Second,
			Logger:  logger,
		})
		if err != nil {
			return fail("telegram", err)
		}
		deps.Telegram = tg
	}

	senders, err := alertSenders(cfg, deps.Telegram)
	if err != nil {
		return fail("notify", err)
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}

func alertSenders(cfg *config.Config, tg *telegram.Client) ([]notify.Sender, error) {
	var senders []notify.Sender
	if tg != nil && cfg.Notify.TelegramChatID != "" {
		s, err := notify.NewTelegramSender(tg, cfg.Notify.TelegramChatID)
		if err != nil {
			return nil, err
		}
		senders = append(senders, s)
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	return senders, nil
}
