package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/oddsbot/internal/arbitrage"
	"github.com/alanyoungcy/oddsbot/internal/domain"
	"github.com/alanyoungcy/oddsbot/internal/metrics"
)

// Alerter pushes a human-readable alert to operators.
type Alerter interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Broadcaster fans a payload out to live websocket clients.
type Broadcaster interface {
	Broadcast(channel string, payload []byte)
}

// ArbServiceConfig wires the optional sinks of an ArbService. Every field
// except Logger may be nil.
type ArbServiceConfig struct {
	Store       domain.ArbStore
	Bus         domain.SignalBus
	Archive     domain.ReportArchiver
	Alerter     Alerter
	Broadcaster Broadcaster
	// AlertMinProfit suppresses alerts below this profit margin percent.
	AlertMinProfit float64
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
}

// ArbService records the results of arbitrage sweeps and serves the recent
// history.
type ArbService struct {
	store       domain.ArbStore
	bus         domain.SignalBus
	archive     domain.ReportArchiver
	alerter     Alerter
	broadcaster Broadcaster
	minProfit   float64
	metrics     *metrics.Metrics
	logger      *slog.Logger

	mu        sync.RWMutex
	last      []domain.ArbOpportunity
	lastAt    time.Time
	alerted   map[string]float64
	recentCap int
}

// NewArbService creates an ArbService.
func NewArbService(cfg ArbServiceConfig) *ArbService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ArbService{
		store:       cfg.Store,
		bus:         cfg.Bus,
		archive:     cfg.Archive,
		alerter:     cfg.Alerter,
		broadcaster: cfg.Broadcaster,
		minProfit:   cfg.AlertMinProfit,
		metrics:     cfg.Metrics,
		logger:      logger.With(slog.String("component", "arb_service")),
		alerted:     make(map[string]float64),
		recentCap:   200,
	}
}

// Record stores, publishes and alerts on a sweep result. Sink failures are
// logged and do not stop the remaining sinks.
func (s *ArbService) Record(ctx context.Context, at time.Time, opps []domain.ArbOpportunity) {
	s.mu.Lock()
	s.last = append([]domain.ArbOpportunity(nil), opps...)
	s.lastAt = at
	s.mu.Unlock()

	for _, opp := range opps {
		s.recordOne(ctx, opp)
	}

	if s.archive != nil && len(opps) > 0 {
		if path, err := s.archive.ArchiveScan(ctx, at, opps); err != nil {
			s.logger.WarnContext(ctx, "arb_service: archive scan failed", slog.String("error", err.Error()))
		} else {
			s.logger.DebugContext(ctx, "arb_service: scan archived", slog.String("path", path))
		}
	}

	s.alert(ctx, opps)
}

func (s *ArbService) recordOne(ctx context.Context, opp domain.ArbOpportunity) {
	if s.store != nil {
		if err := s.store.Insert(ctx, opp); err != nil {
			s.logger.WarnContext(ctx, "arb_service: insert opportunity failed",
				slog.String("opp_id", opp.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	payload, err := json.Marshal(opp)
	if err != nil {
		s.logger.ErrorContext(ctx, "arb_service: encode opportunity failed", slog.String("error", err.Error()))
		return
	}
	if s.bus != nil {
		if err := s.bus.StreamAppend(ctx, domain.StreamArbitrage, payload); err != nil {
			s.logger.WarnContext(ctx, "arb_service: stream append failed", slog.String("error", err.Error()))
		}
		if err := s.bus.Publish(ctx, domain.ChannelArbitrage, payload); err != nil {
			s.logger.WarnContext(ctx, "arb_service: publish failed", slog.String("error", err.Error()))
		}
	} else if s.broadcaster != nil {
		// Without a bus the hub has nothing to subscribe to; feed it directly.
		s.broadcaster.Broadcast(domain.ChannelArbitrage, payload)
	}

	s.logger.InfoContext(ctx, "arb_service: opportunity recorded",
		slog.String("opp_id", opp.ID),
		slog.String("match", opp.Match),
		slog.Float64("profit_pct", opp.ProfitMarginPercent),
	)
}

// alert notifies once per event and profit margin, so a standing
// opportunity is not re-sent every sweep.
func (s *ArbService) alert(ctx context.Context, opps []domain.ArbOpportunity) {
	if s.alerter == nil {
		return
	}
	fresh := make([]domain.ArbOpportunity, 0, len(opps))
	s.mu.Lock()
	seen := make(map[string]float64, len(opps))
	for _, o := range opps {
		seen[o.EventID] = o.ProfitMarginPercent
		if o.ProfitMarginPercent < s.minProfit {
			continue
		}
		if prev, ok := s.alerted[o.EventID]; ok && prev == o.ProfitMarginPercent {
			continue
		}
		fresh = append(fresh, o)
	}
	s.alerted = seen
	s.mu.Unlock()

	if len(fresh) == 0 {
		return
	}
	title := fmt.Sprintf("%d arbitrage opportunit%s", len(fresh), plural(len(fresh)))
	if err := s.alerter.Notify(ctx, "arbitrage", title, arbitrage.FormatReport(fresh)); err != nil {
		s.logger.WarnContext(ctx, "arb_service: alert failed", slog.String("error", err.Error()))
	}
}

func plural(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}

// Recent returns up to limit recently detected opportunities, newest first.
// It reads the database when configured, then the bus stream, then the last
// in-process sweep.
func (s *ArbService) Recent(ctx context.Context, limit int) ([]domain.ArbOpportunity, error) {
	if limit <= 0 || limit > s.recentCap {
		limit = s.recentCap
	}
	if s.store != nil {
		opps, err := s.store.ListRecent(ctx, limit)
		if err != nil {
			return nil, fmt.Errorf("arb_service: list recent: %w", err)
		}
		return opps, nil
	}
	if s.bus != nil {
		msgs, err := s.bus.StreamRecent(ctx, domain.StreamArbitrage, limit)
		if err != nil {
			return nil, fmt.Errorf("arb_service: stream recent: %w", err)
		}
		opps := make([]domain.ArbOpportunity, 0, len(msgs))
		for _, m := range msgs {
			var o domain.ArbOpportunity
			if err := json.Unmarshal(m.Payload, &o); err != nil {
				s.logger.WarnContext(ctx, "arb_service: skip undecodable stream entry",
					slog.String("id", m.ID),
					slog.String("error", err.Error()),
				)
				continue
			}
			opps = append(opps, o)
		}
		return opps, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ArbOpportunity, 0, len(s.last))
	for i := len(s.last) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.last[i])
	}
	return out, nil
}

// LastScan reports when the last sweep was recorded and how many
// opportunities it found.
func (s *ArbService) LastScan() (time.Time, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastAt, len(s.last)
}

// Sweep runs one on-demand scan and records its result.
func (s *ArbService) Sweep(ctx context.Context, scanner *arbitrage.Scanner) ([]domain.ArbOpportunity, error) {
	start := time.Now()
	opps, err := scanner.Scan(ctx)
	if err != nil {
		return opps, err
	}
	s.metrics.ObserveScan(time.Since(start), opps)
	s.Record(ctx, time.Now().UTC(), opps)
	return opps, nil
}

// Sink adapts Record for the background scanner.
func (s *ArbService) Sink() arbitrage.ScanSink {
	return func(ctx context.Context, opps []domain.ArbOpportunity, took time.Duration) {
		s.metrics.ObserveScan(took, opps)
		s.Record(ctx, time.Now().UTC(), opps)
	}
}
