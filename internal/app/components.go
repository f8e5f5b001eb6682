package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/alanyoungcy/oddsbot/internal/analysis"
	"github.com/alanyoungcy/oddsbot/internal/arbitrage"
	"github.com/alanyoungcy/oddsbot/internal/cache"
	"github.com/alanyoungcy/oddsbot/internal/domain"
	"github.com/alanyoungcy/oddsbot/internal/platform/apify"
	"github.com/alanyoungcy/oddsbot/internal/platform/llm"
	"github.com/alanyoungcy/oddsbot/internal/platform/oddsapi"
	"github.com/alanyoungcy/oddsbot/internal/platform/wikipedia"
	"github.com/alanyoungcy/oddsbot/internal/server/ws"
	"github.com/alanyoungcy/oddsbot/internal/service"
	"github.com/alanyoungcy/oddsbot/internal/session"
	"github.com/alanyoungcy/oddsbot/internal/telegram"
)

// components are the domain services shared by every mode.
type components struct {
	deps      *Dependencies
	startedAt time.Time

	odds     *service.OddsService
	scanner  *arbitrage.Scanner
	arb      *service.ArbService
	pipeline *analysis.Pipeline
	sessions *session.Store
	machine  *session.Machine
	// bot is nil when no Telegram token is configured.
	bot *telegram.Bot
	// hub is nil unless the mode serves HTTP.
	hub *ws.Hub
}

func (a *App) build(deps *Dependencies) *components {
	cfg := a.cfg
	c := &components{deps: deps, startedAt: time.Now()}

	oddsClient := oddsapi.NewClient(oddsapi.ClientConfig{
		BaseURL:           cfg.OddsAPI.BaseURL,
		APIKey:            cfg.OddsAPI.APIKey,
		Regions:           cfg.OddsAPI.Regions,
		Markets:           cfg.OddsAPI.Markets,
		RequestsPerSecond: cfg.OddsAPI.RequestsPerSecond,
		Burst:             cfg.OddsAPI.Burst,
		Timeout:           cfg.OddsAPI.Timeout.Duration,
		Shared:            deps.OddsQuota,
		Logger:            a.logger,
	})

	cacheOpts := []cache.Option{cache.WithLogger(a.logger)}
	if deps.EntryStore != nil {
		cacheOpts = append(cacheOpts, cache.WithBacking(deps.EntryStore))
	}
	catalog := cache.New[[]domain.Sport](cfg.Cache.TTL.Duration, cacheOpts...)
	c.odds = service.NewOddsService(oddsClient, catalog, cfg.OddsAPI.Timeout.Duration, deps.Metrics, a.logger)

	c.scanner = arbitrage.NewScanner(arbitrage.ScannerConfig{
		Sports:      cfg.Arbitrage.PopularSports,
		Concurrency: cfg.Arbitrage.Concurrency,
		Source:      c.odds,
		Lock:        deps.LockManager,
		Logger:      a.logger,
	})

	c.sessions = session.NewStore()
	if cfg.ServerEnabled() {
		c.hub = ws.NewHub(deps.SignalBus, c.status(cfg.Mode), a.logger)
	}

	arbCfg := service.ArbServiceConfig{
		Store:          deps.ArbStore,
		Bus:            deps.SignalBus,
		AlertMinProfit: cfg.Arbitrage.AlertMinProfit,
		Metrics:        deps.Metrics,
		Logger:         a.logger,
	}
	if cfg.Arbitrage.Archive && deps.Archiver != nil {
		arbCfg.Archive = deps.Archiver
	}
	if deps.Notifier.Enabled() {
		arbCfg.Alerter = deps.Notifier
	}
	if c.hub != nil {
		arbCfg.Broadcaster = c.hub
	}
	c.arb = service.NewArbService(arbCfg)

	c.pipeline = analysis.NewPipeline(a.pipelineConfig(deps))

	c.machine = session.NewMachine(session.Config{
		Store:    c.sessions,
		Catalog:  c.odds,
		Analyzer: c.pipeline,
		Scan: func(ctx context.Context) ([]domain.ArbOpportunity, error) {
			return c.arb.Sweep(ctx, c.scanner)
		},
		Metrics: deps.Metrics,
		Logger:  a.logger,
	})

	if deps.Telegram != nil {
		c.bot = telegram.NewBot(telegram.BotConfig{
			Client:      deps.Telegram,
			Turns:       c.machine,
			Logger:      a.logger,
			PollWait:    cfg.Telegram.PollWait.Duration,
			TurnTimeout: cfg.Telegram.TurnTimeout.Duration,
		})
	}
	return c
}

func (a *App) pipelineConfig(deps *Dependencies) analysis.Config {
	cfg := a.cfg
	pc := analysis.Config{
		History: wikipedia.NewClient(wikipedia.ClientConfig{
			BaseURL:   cfg.Wikipedia.BaseURL,
			Sentences: cfg.Wikipedia.Sentences,
			UserAgent: cfg.Wikipedia.UserAgent,
			Timeout:   cfg.Wikipedia.Timeout.Duration,
			Logger:    a.logger,
		}),
		Sentiment: apify.NewClient(apify.ClientConfig{
			BaseURL:  cfg.Sentiment.BaseURL,
			Token:    cfg.Sentiment.Token,
			Actor:    cfg.Sentiment.Actor,
			MaxItems: cfg.Sentiment.MaxItems,
			Timeout:  cfg.Sentiment.Timeout.Duration,
			Logger:   a.logger,
		}),
		HistoryTimeout:    cfg.Analysis.HistoryTimeout.Duration,
		SentimentTimeout:  cfg.Analysis.SentimentTimeout.Duration,
		PredictionTimeout: cfg.Analysis.PredictionTimeout.Duration,
		Store:             deps.AnalysisStore,
		Bus:               deps.SignalBus,
		Metrics:           deps.Metrics,
		Logger:            a.logger,
	}
	if cfg.Analysis.Archive && deps.Archiver != nil {
		pc.Archive = deps.Archiver
	}

	predictor, err := llm.NewClient(llm.ClientConfig{
		APIKey:      cfg.Prediction.APIKey,
		BaseURL:     cfg.Prediction.BaseURL,
		Model:       cfg.Prediction.Model,
		MaxTokens:   cfg.Prediction.MaxTokens,
		Temperature: cfg.Prediction.Temperature,
		Timeout:     cfg.Prediction.Timeout.Duration,
		Logger:      a.logger,
	})
	switch {
	case err == nil:
		pc.Predictor = predictor
	case errors.Is(err, domain.ErrNotConfigured):
		a.logger.Info("app: no prediction model configured, using placeholder predictions")
	default:
		a.logger.Warn("app: prediction client unavailable, using placeholder predictions",
			slog.String("error", err.Error()),
		)
	}
	return pc
}

// status reports the bot's operational summary.
func (c *components) status(mode string) func() domain.BotStatus {
	return func() domain.BotStatus {
		st := domain.BotStatus{
			Mode:           mode,
			UptimeSeconds:  int64(time.Since(c.startedAt).Seconds()),
			ActiveSessions: c.sessions.Len(),
			PopularSports:  c.scanner.Sports(),
		}
		if c.arb != nil {
			at, n := c.arb.LastScan()
			if !at.IsZero() {
				st.LastScanAt = at.UTC().Format(time.RFC3339)
			}
			st.LastScanCount = n
		}
		return st
	}
}
