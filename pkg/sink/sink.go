// Package sink provides engine.CompletionSink implementations.
package sink

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/ormasoftchile/ehbo/pkg/engine"
)

const namespace = "ehbo"

// Multi fans a completion out to every sink. All sinks are called; their
// errors are joined.
type Multi []engine.CompletionSink

func (m Multi) OnScenarioComplete(ctx context.Context, c engine.Completion) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.OnScenarioComplete(ctx, c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Log writes each completion as a structured log line.
type Log struct {
	Logger *zap.Logger
}

func (l Log) OnScenarioComplete(_ context.Context, c engine.Completion) error {
	if l.Logger == nil {
		return nil
	}
	l.Logger.Info("completion",
		zap.String("session_id", c.SessionID),
		zap.String("profile_id", c.ProfileID),
		zap.String("scenario_id", c.ScenarioID),
		zap.String("difficulty", string(c.Difficulty)),
		zap.Int("score", c.Score),
		zap.Int("correct", c.Correct),
		zap.Int("total", c.Total),
		zap.Bool("timed_out", c.TimedOut),
		zap.Bool("enhanced", c.IsEnhanced),
		zap.String("chain_type", c.ChainType))
	return nil
}

// Metrics records completions as Prometheus metrics.
type Metrics struct {
	completions *prometheus.CounterVec
	timeouts    *prometheus.CounterVec
	scores      *prometheus.HistogramVec
	stress      prometheus.Histogram
}

// NewMetrics registers the completion metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		completions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scenario",
			Name:      "completions_total",
			Help:      "Completed scenarios, partitioned by difficulty and whether a role, complication or chain was involved.",
		}, []string{"difficulty", "enhanced"}),
		timeouts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scenario",
			Name:      "timeouts_total",
			Help:      "Scenarios forfeited because a step timed out.",
		}, []string{"scenario_id"}),
		scores: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scenario",
			Name:      "score",
			Help:      "Final scenario score.",
			Buckets:   prometheus.LinearBuckets(10, 10, 10),
		}, []string{"difficulty"}),
		stress: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "resources",
			Name:      "final_stress",
			Help:      "Stress at scenario completion.",
			Buckets:   prometheus.LinearBuckets(20, 20, 5),
		}),
	}
}

func (m *Metrics) OnScenarioComplete(_ context.Context, c engine.Completion) error {
	enhanced := "false"
	if c.IsEnhanced {
		enhanced = "true"
	}
	m.completions.WithLabelValues(string(c.Difficulty), enhanced).Inc()
	if c.TimedOut {
		m.timeouts.WithLabelValues(c.ScenarioID).Inc()
	}
	m.scores.WithLabelValues(string(c.Difficulty)).Observe(float64(c.Score))
	m.stress.Observe(float64(c.Resources.Stress))
	return nil
}

var (
	_ engine.CompletionSink = Multi(nil)
	_ engine.CompletionSink = Log{}
	_ engine.CompletionSink = (*Metrics)(nil)
)
