// Package analysis runs the per-match enrichment pipeline: best odds, team
// history, public sentiment and a model prediction.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/oddsbot/internal/arbitrage"
	"github.com/alanyoungcy/oddsbot/internal/domain"
	"github.com/alanyoungcy/oddsbot/internal/metrics"
)

// Stage names reported in AnalysisResult.Degraded.
const (
	StageHistoryHome = "history_home"
	StageHistoryAway = "history_away"
	StageSentiment   = "sentiment"
	StagePrediction  = "prediction"
)

const (
	defaultHistoryTimeout    = 8 * time.Second
	defaultSentimentTimeout  = 15 * time.Second
	defaultPredictionTimeout = 30 * time.Second
)

// Config wires a Pipeline. History and Sentiment are required; a nil
// Predictor selects PlaceholderPredictor. Store, Archive and Bus are
// optional sinks.
type Config struct {
	History   domain.HistoryProvider
	Sentiment domain.SentimentProvider
	Predictor domain.PredictionProvider

	HistoryTimeout    time.Duration
	SentimentTimeout  time.Duration
	PredictionTimeout time.Duration

	Store   domain.AnalysisStore
	Archive domain.ReportArchiver
	Bus     domain.SignalBus

	Metrics *metrics.Metrics
	Logger  *slog.Logger

	Now   func() time.Time
	NewID func() string
}

// Pipeline produces an AnalysisResult for one event. It never fails: every
// stage that cannot complete falls back to a default value and is listed in
// the result's Degraded stages.
type Pipeline struct {
	history   domain.HistoryProvider
	sentiment domain.SentimentProvider
	predictor domain.PredictionProvider
	modelless bool

	historyTimeout    time.Duration
	sentimentTimeout  time.Duration
	predictionTimeout time.Duration

	store   domain.AnalysisStore
	archive domain.ReportArchiver
	bus     domain.SignalBus

	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string
}

// NewPipeline creates a Pipeline, applying defaults for unset timeouts.
func NewPipeline(cfg Config) *Pipeline {
	p := &Pipeline{
		history:           cfg.History,
		sentiment:         cfg.Sentiment,
		predictor:         cfg.Predictor,
		historyTimeout:    cfg.HistoryTimeout,
		sentimentTimeout:  cfg.SentimentTimeout,
		predictionTimeout: cfg.PredictionTimeout,
		store:             cfg.Store,
		archive:           cfg.Archive,
		bus:               cfg.Bus,
		metrics:           cfg.Metrics,
		logger:            cfg.Logger,
		now:               cfg.Now,
		newID:             cfg.NewID,
	}
	if p.predictor == nil {
		p.predictor = PlaceholderPredictor{}
	}
	if _, ok := p.predictor.(PlaceholderPredictor); ok {
		p.modelless = true
	}
	if p.historyTimeout <= 0 {
		p.historyTimeout = defaultHistoryTimeout
	}
	if p.sentimentTimeout <= 0 {
		p.sentimentTimeout = defaultSentimentTimeout
	}
	if p.predictionTimeout <= 0 {
		p.predictionTimeout = defaultPredictionTimeout
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	p.logger = p.logger.With(slog.String("component", "analysis"))
	if p.now == nil {
		p.now = time.Now
	}
	if p.newID == nil {
		p.newID = uuid.NewString
	}
	return p
}

// Analyze runs the pipeline for ev. History and sentiment run concurrently,
// each under its own timeout; the prediction runs once both have joined.
func (p *Pipeline) Analyze(ctx context.Context, ev domain.Event) domain.AnalysisResult {
	start := time.Now()
	best := arbitrage.BestPrices(ev)
	res := domain.AnalysisResult{
		ID:         p.newID(),
		EventID:    ev.ID,
		SportKey:   ev.SportKey,
		Match:      ev.Matchup(),
		Odds:       arbitrage.OddsFor(best),
		BestPrices: best,
	}

	var (
		home, away     domain.HistoryResult
		sentiment      domain.SentimentData
		sentimentFails bool
	)
	// Stages absorb their own failures, so the group never carries an error.
	var g errgroup.Group
	g.Go(func() error {
		home = p.History(ctx, ev.HomeTeam)
		return nil
	})
	g.Go(func() error {
		away = p.History(ctx, ev.AwayTeam)
		return nil
	})
	g.Go(func() error {
		sentiment, sentimentFails = p.fetchSentiment(ctx, ev.Matchup())
		return nil
	})
	_ = g.Wait()

	res.History = domain.HistoricalData{Home: home, Away: away}
	res.Sentiment = sentiment
	if home.Status == domain.HistoryUnavailable {
		res.Degraded = append(res.Degraded, StageHistoryHome)
	}
	if away.Status == domain.HistoryUnavailable {
		res.Degraded = append(res.Degraded, StageHistoryAway)
	}
	if sentimentFails {
		res.Degraded = append(res.Degraded, StageSentiment)
	}

	req := domain.PredictionRequest{
		HomeTeam:  ev.HomeTeam,
		AwayTeam:  ev.AwayTeam,
		Odds:      res.Odds,
		Sentiment: res.Sentiment,
		History:   res.History,
	}
	prediction, ok := p.predict(ctx, req)
	res.Prediction = prediction
	res.Placeholder = p.modelless || !ok
	if !ok {
		res.Degraded = append(res.Degraded, StagePrediction)
	}
	res.GeneratedAt = p.now().UTC()

	p.metrics.Degraded(res.Degraded)
	p.logger.InfoContext(ctx, "analysis: completed",
		slog.String("analysis_id", res.ID),
		slog.String("event_id", ev.ID),
		slog.String("match", res.Match),
		slog.Any("degraded", res.Degraded),
		slog.Duration("took", time.Since(start)),
	)

	p.sink(ctx, res)
	return res
}

// History looks up one team's summary under the history timeout. A summary
// that is not obtained in time degrades to NoHistoryText.
func (p *Pipeline) History(ctx context.Context, team string) domain.HistoryResult {
	cctx, cancel := context.WithTimeout(ctx, p.historyTimeout)
	defer cancel()

	start := time.Now()
	res, callErr := within(cctx, func(ctx context.Context) (domain.HistoryResult, error) {
		return p.history.FetchSummary(ctx, team), nil
	})
	switch {
	case callErr != nil:
		res = domain.HistoryResult{Team: team, Status: domain.HistoryUnavailable}
	case res.Status == domain.HistoryUnavailable:
		callErr = domain.ErrTransport
		if cctx.Err() != nil {
			callErr = cctx.Err()
		}
	}
	if res.Status == domain.HistoryUnavailable {
		res.Summary = domain.NoHistoryText
	}
	if res.Team == "" {
		res.Team = team
	}
	p.metrics.ObserveCall("history", time.Since(start), callErr)
	if callErr != nil {
		p.logger.WarnContext(ctx, "analysis: history unavailable",
			slog.String("team", team),
			slog.String("error", callErr.Error()),
		)
	}
	return res
}

func (p *Pipeline) fetchSentiment(ctx context.Context, label string) (domain.SentimentData, bool) {
	cctx, cancel := context.WithTimeout(ctx, p.sentimentTimeout)
	defer cancel()

	start := time.Now()
	data, err := within(cctx, func(ctx context.Context) (domain.SentimentData, error) {
		return p.sentiment.FetchSentiment(ctx, label)
	})
	p.metrics.ObserveCall("sentiment", time.Since(start), err)
	if err != nil {
		p.logFallback(ctx, "analysis: sentiment fell back", err, slog.String("label", label))
		return domain.SentimentData{}, true
	}
	data.Available = true
	return data, false
}

// predict returns the model prediction, or the placeholder and false when
// the model could not answer.
func (p *Pipeline) predict(ctx context.Context, req domain.PredictionRequest) (string, bool) {
	cctx, cancel := context.WithTimeout(ctx, p.predictionTimeout)
	defer cancel()

	start := time.Now()
	text, err := within(cctx, func(ctx context.Context) (string, error) {
		return p.predictor.Predict(ctx, req)
	})
	p.metrics.ObserveCall("prediction", time.Since(start), err)
	if err == nil && text == "" {
		err = fmt.Errorf("analysis: empty prediction: %w", domain.ErrDataAbsent)
	}
	if err != nil {
		p.logFallback(ctx, "analysis: prediction fell back to placeholder", err)
		return Placeholder(req.HomeTeam, req.AwayTeam), false
	}
	return text, true
}

// within runs call and returns its result, or ctx's error as soon as ctx
// is done. A call that outlives ctx finishes in the background and its
// result is dropped.
func within[T any](ctx context.Context, call func(context.Context) (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := call(ctx)
		done <- result{v: v, err: err}
	}()
	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// logFallback logs expected collaborator failures at WARN and anything
// unclassified at ERROR. Both still fall back.
func (p *Pipeline) logFallback(ctx context.Context, msg string, err error, attrs ...any) {
	level := slog.LevelWarn
	if !domain.IsCollaboratorFailure(err) && !errors.Is(err, context.DeadlineExceeded) {
		level = slog.LevelError
	}
	p.logger.Log(ctx, level, msg, append(attrs,
		slog.String("error", err.Error()),
		slog.String("outcome", metrics.Classify(err)),
	)...)
}

// sink hands the finished result to the optional store, archive and bus.
func (p *Pipeline) sink(ctx context.Context, res domain.AnalysisResult) {
	if p.store != nil {
		if err := p.store.Insert(ctx, res); err != nil {
			p.logger.WarnContext(ctx, "analysis: store insert failed",
				slog.String("analysis_id", res.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	if p.archive != nil {
		if path, err := p.archive.ArchiveAnalysis(ctx, res, Format(res)); err != nil {
			p.logger.WarnContext(ctx, "analysis: archive failed",
				slog.String("analysis_id", res.ID),
				slog.String("error", err.Error()),
			)
		} else {
			p.logger.DebugContext(ctx, "analysis: archived", slog.String("path", path))
		}
	}
	if p.bus != nil {
		payload, err := json.Marshal(res)
		if err != nil {
			p.logger.ErrorContext(ctx, "analysis: encode result failed", slog.String("error", err.Error()))
			return
		}
		if err := p.bus.Publish(ctx, domain.ChannelAnalysis, payload); err != nil {
			p.logger.WarnContext(ctx, "analysis: publish failed", slog.String("error", err.Error()))
		}
	}
}
