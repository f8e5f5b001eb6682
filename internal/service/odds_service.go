package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/oddsbot/internal/cache"
	"github.com/alanyoungcy/oddsbot/internal/domain"
	"github.com/alanyoungcy/oddsbot/internal/metrics"
)

// CatalogCacheKey is the cache key of the sports catalog.
const CatalogCacheKey = "sports_list"

// OddsService fronts the odds provider. The sports catalog is served from
// the time-boxed cache; odds are always fetched fresh.
type OddsService struct {
	provider domain.OddsProvider
	catalog  *cache.TimeBoxed[[]domain.Sport]
	timeout  time.Duration
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewOddsService creates an OddsService. Every provider call is bounded by
// timeout.
func NewOddsService(
	provider domain.OddsProvider,
	catalog *cache.TimeBoxed[[]domain.Sport],
	timeout time.Duration,
	m *metrics.Metrics,
	logger *slog.Logger,
) *OddsService {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &OddsService{
		provider: provider,
		catalog:  catalog,
		timeout:  timeout,
		metrics:  m,
		logger:   logger.With(slog.String("component", "odds_service")),
	}
}

// Sports returns the sports catalog, from cache when fresh. Empty catalogs
// are not cached.
func (s *OddsService) Sports(ctx context.Context) ([]domain.Sport, error) {
	if sports, ok := s.catalog.Get(ctx, CatalogCacheKey); ok {
		s.metrics.CacheLookup(CatalogCacheKey, true)
		return sports, nil
	}
	s.metrics.CacheLookup(CatalogCacheKey, false)

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	sports, err := s.provider.FetchSports(cctx)
	s.metrics.ObserveCall("odds_sports", time.Since(start), err)
	if err != nil {
		s.logFailure(ctx, "odds_service: fetch sports failed", err)
		return nil, fmt.Errorf("odds_service: sports: %w", err)
	}
	if len(sports) == 0 {
		return nil, fmt.Errorf("odds_service: sports: %w", domain.ErrDataAbsent)
	}

	s.catalog.Put(ctx, CatalogCacheKey, sports)
	return sports, nil
}

// Events fetches current events for sportKey.
func (s *OddsService) Events(ctx context.Context, sportKey string) ([]domain.Event, error) {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	events, err := s.provider.FetchOdds(cctx, sportKey)
	s.metrics.ObserveCall("odds_events", time.Since(start), err)
	if err != nil {
		s.logFailure(ctx, "odds_service: fetch odds failed", err, slog.String("sport", sportKey))
		return nil, fmt.Errorf("odds_service: events %s: %w", sportKey, err)
	}
	return events, nil
}

// Event re-fetches the events of sportKey and returns the one with eventID.
// It returns domain.ErrNotFound when the event is no longer listed.
func (s *OddsService) Event(ctx context.Context, sportKey, eventID string) (domain.Event, error) {
	events, err := s.Events(ctx, sportKey)
	if err != nil {
		return domain.Event{}, err
	}
	ev, ok := domain.FindEvent(events, eventID)
	if !ok {
		return domain.Event{}, fmt.Errorf("odds_service: event %s in %s: %w", eventID, sportKey, domain.ErrNotFound)
	}
	return ev, nil
}

// logFailure logs classified failures at WARN and anything else at ERROR.
func (s *OddsService) logFailure(ctx context.Context, msg string, err error, attrs ...any) {
	level := slog.LevelWarn
	if !Expected(err) {
		level = slog.LevelError
	}
	s.logger.Log(ctx, level, msg, append(attrs,
		slog.String("error", err.Error()),
		slog.String("outcome", metrics.Classify(err)),
	)...)
}

// Expected reports whether err is a classified collaborator failure or a
// deadline, the only failures that may be replaced by a fallback silently.
func Expected(err error) bool {
	return domain.IsCollaboratorFailure(err) || errors.Is(err, context.DeadlineExceeded)
}
