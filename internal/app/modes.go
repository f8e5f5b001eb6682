package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/oddsbot/internal/domain"
	"github.com/alanyoungcy/oddsbot/internal/server"
	"github.com/alanyoungcy/oddsbot/internal/server/handler"
)

// BotMode serves the Telegram bot by long polling.
func (a *App) BotMode(ctx context.Context, c *components) error {
	a.logger.InfoContext(ctx, "starting bot mode")
	g, ctx := errgroup.WithContext(ctx)
	if err := a.startChat(ctx, g, c); err != nil {
		return fmt.Errorf("bot mode: %w", err)
	}
	a.startSessionPruner(ctx, g, c)
	return ignoreCanceled(g.Wait())
}

// ServerMode serves the HTTP API, plus the Telegram webhook when one is
// configured.
func (a *App) ServerMode(ctx context.Context, c *components) error {
	a.logger.InfoContext(ctx, "starting server mode")
	g, ctx := errgroup.WithContext(ctx)
	if a.cfg.ChatEnabled() {
		if err := a.startChat(ctx, g, c); err != nil {
			return fmt.Errorf("server mode: %w", err)
		}
	}
	a.startHTTPServer(ctx, g, c)
	a.startSessionPruner(ctx, g, c)
	return ignoreCanceled(g.Wait())
}

// ScanMode runs the background arbitrage scanner and pushes alerts.
func (a *App) ScanMode(ctx context.Context, c *components) error {
	a.logger.InfoContext(ctx, "starting scan mode",
		slog.Any("sports", c.scanner.Sports()),
		slog.Duration("interval", a.cfg.Arbitrage.ScanInterval.Duration),
	)
	if !c.deps.Notifier.Enabled() {
		a.logger.WarnContext(ctx, "scan mode: no alert senders configured, results are only recorded")
	}
	g, ctx := errgroup.WithContext(ctx)
	a.startScanner(ctx, g, c)
	return ignoreCanceled(g.Wait())
}

// FullMode runs the bot, the API and the scanner together.
func (a *App) FullMode(ctx context.Context, c *components) error {
	a.logger.InfoContext(ctx, "starting full mode")
	g, ctx := errgroup.WithContext(ctx)
	if err := a.startChat(ctx, g, c); err != nil {
		return fmt.Errorf("full mode: %w", err)
	}
	a.startHTTPServer(ctx, g, c)
	a.startScanner(ctx, g, c)
	a.startSessionPruner(ctx, g, c)
	return ignoreCanceled(g.Wait())
}

// startChat registers the webhook when a URL is configured, otherwise it
// starts long polling.
func (a *App) startChat(ctx context.Context, g *errgroup.Group, c *components) error {
	if c.bot == nil {
		return errors.New("telegram token is not configured")
	}
	if url := a.cfg.Telegram.WebhookURL; url != "" {
		if err := c.deps.Telegram.SetWebhook(ctx, url, a.cfg.Telegram.WebhookSecret); err != nil {
			return fmt.Errorf("set telegram webhook: %w", err)
		}
		a.logger.InfoContext(ctx, "telegram webhook registered", slog.String("path", server.WebhookPath))
		g.Go(func() error {
			<-ctx.Done()
			c.bot.Wait()
			return nil
		})
		return nil
	}
	g.Go(func() error {
		return c.bot.Poll(ctx)
	})
	return nil
}

func (a *App) startScanner(ctx context.Context, g *errgroup.Group, c *components) {
	g.Go(func() error {
		return c.scanner.Run(ctx, a.cfg.Arbitrage.ScanInterval.Duration, c.arb.Sink())
	})
}

// startSessionPruner drops sessions idle for longer than the configured
// window.
func (a *App) startSessionPruner(ctx context.Context, g *errgroup.Group, c *components) {
	idle := a.cfg.Telegram.SessionIdle.Duration
	if idle <= 0 {
		return
	}
	g.Go(func() error {
		ticker := time.NewTicker(max(idle/4, time.Minute))
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if n := c.sessions.Prune(idle); n > 0 {
					a.logger.DebugContext(ctx, "sessions pruned", slog.Int("count", n))
				}
				c.deps.Metrics.SetActiveSessions(c.sessions.Len())
			}
		}
	})
}

// startHTTPServer runs the API server and the websocket hub until ctx ends.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, c *components) {
	cfg := a.cfg
	deps := c.deps
	status := c.status(cfg.Mode)

	handlers := server.Handlers{
		Health: handler.NewHealthHandler(deps.Pingers, a.logger),
		Status: handler.NewStatusHandler(status),
		Turn:   handler.NewTurnHandler(c.machine, a.logger),
		Arb: handler.NewArbHandler(c.arb, func(ctx context.Context) ([]domain.ArbOpportunity, error) {
			return c.arb.Sweep(ctx, c.scanner)
		}, deps.ArbStore, a.logger),
		Analysis: handler.NewAnalysisHandler(deps.AnalysisStore, deps.BlobReader, a.logger),
	}
	if c.bot != nil && cfg.Telegram.WebhookURL != "" {
		handlers.Webhook = c.bot.WebhookHandler(cfg.Telegram.WebhookSecret)
	}

	srv := server.NewServer(server.Config{
		Port:        cfg.Server.Port,
		CORSOrigins: cfg.Server.CORSOrigins,
		APIKey:      cfg.Server.APIKey,
		RateLimit:   cfg.Server.RateLimit,
		RateWindow:  cfg.Server.RateWindow.Duration,
	}, handlers, server.Deps{
		Hub:      c.hub,
		Limiter:  deps.RateLimiter,
		Metrics:  deps.Metrics,
		Gatherer: deps.Registry,
	}, a.logger)

	g.Go(func() error {
		return c.hub.Run(ctx)
	})
	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// ignoreCanceled treats a clean shutdown as success.
func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
