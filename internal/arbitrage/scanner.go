package arbitrage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/oddsbot/internal/domain"
)

// DefaultPopularSports are swept when no sports are configured.
var DefaultPopularSports = []string{"americanfootball_nfl", "basketball_nba", "soccer_epl"}

// EventSource returns the current events for a sport. Implementations bound
// each call with their own timeout.
type EventSource interface {
	Events(ctx context.Context, sportKey string) ([]domain.Event, error)
}

// ScanSink receives the result of every background sweep and how long it took.
type ScanSink func(ctx context.Context, opps []domain.ArbOpportunity, took time.Duration)

// ScannerConfig configures a Scanner.
type ScannerConfig struct {
	Sports      []string
	Concurrency int
	Source      EventSource
	Detector    *Detector
	// Lock, when set, makes background sweeps exclusive across replicas.
	Lock    domain.LockManager
	LockKey string
	Logger  *slog.Logger
}

// Scanner sweeps a fixed list of sports for arbitrage.
type Scanner struct {
	sports      []string
	concurrency int
	source      EventSource
	detector    *Detector
	lock        domain.LockManager
	lockKey     string
	logger      *slog.Logger
}

// NewScanner creates a Scanner.
func NewScanner(cfg ScannerConfig) *Scanner {
	sports := cfg.Sports
	if len(sports) == 0 {
		sports = DefaultPopularSports
	}
	conc := cfg.Concurrency
	if conc <= 0 {
		conc = 3
	}
	det := cfg.Detector
	if det == nil {
		det = NewDetector()
	}
	key := cfg.LockKey
	if key == "" {
		key = "arb_scan"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{
		sports:      append([]string(nil), sports...),
		concurrency: conc,
		source:      cfg.Source,
		detector:    det,
		lock:        cfg.Lock,
		lockKey:     key,
		logger:      logger.With(slog.String("component", "arb_scanner")),
	}
}

// Sports returns the swept sport keys in sweep order.
func (s *Scanner) Sports() []string {
	return append([]string(nil), s.sports...)
}

// Scan fetches every configured sport concurrently and returns the
// opportunities found, grouped in configured sport order. A sport whose fetch
// fails is logged and skipped. Scan only errors when ctx ends.
func (s *Scanner) Scan(ctx context.Context) ([]domain.ArbOpportunity, error) {
	perSport := make([][]domain.ArbOpportunity, len(s.sports))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, sport := range s.sports {
		g.Go(func() error {
			events, err := s.source.Events(gctx, sport)
			if err != nil {
				level := slog.LevelWarn
				if !domain.IsCollaboratorFailure(err) && !errors.Is(err, context.DeadlineExceeded) {
					level = slog.LevelError
				}
				s.logger.Log(gctx, level, "arb scanner: fetch odds failed",
					slog.String("sport", sport),
					slog.String("error", err.Error()),
				)
				return nil
			}
			perSport[i] = s.detector.Detect(events)
			return nil
		})
	}
	_ = g.Wait()

	opps := make([]domain.ArbOpportunity, 0)
	for _, found := range perSport {
		opps = append(opps, found...)
	}
	if err := ctx.Err(); err != nil {
		return opps, fmt.Errorf("arb scanner: %w", err)
	}
	return opps, nil
}

// Run sweeps once per interval until ctx is cancelled, handing each result to
// sink. When a lock is configured, a sweep held by another replica is
// skipped.
func (s *Scanner) Run(ctx context.Context, interval time.Duration, sink ScanSink) error {
	if interval <= 0 {
		return fmt.Errorf("arb scanner: interval must be positive, got %s", interval)
	}
	s.logger.Info("arb scanner started",
		slog.Duration("interval", interval),
		slog.Any("sports", s.sports),
	)
	defer s.logger.Info("arb scanner stopped")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s.sweep(ctx, interval, sink)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Scanner) sweep(ctx context.Context, interval time.Duration, sink ScanSink) {
	if s.lock != nil {
		unlock, err := s.lock.Acquire(ctx, s.lockKey, interval)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				s.logger.Debug("arb scanner: sweep held by another replica")
			} else {
				s.logger.Warn("arb scanner: acquire lock failed", slog.String("error", err.Error()))
			}
			return
		}
		defer unlock()
	}

	start := time.Now()
	opps, err := s.Scan(ctx)
	if err != nil {
		return
	}
	took := time.Since(start)
	s.logger.Info("arb scanner: sweep complete",
		slog.Int("opportunities", len(opps)),
		slog.Duration("took", took),
	)
	if sink != nil {
		sink(ctx, opps, took)
	}
}
