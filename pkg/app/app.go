// Package app wires configuration, content, persistence and observability
// into runtimes for the ehbo binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ormasoftchile/ehbo/pkg/adaptive"
	"github.com/ormasoftchile/ehbo/pkg/catalog"
	"github.com/ormasoftchile/ehbo/pkg/chain"
	"github.com/ormasoftchile/ehbo/pkg/config"
	"github.com/ormasoftchile/ehbo/pkg/engine"
	"github.com/ormasoftchile/ehbo/pkg/history"
	"github.com/ormasoftchile/ehbo/pkg/random"
	"github.com/ormasoftchile/ehbo/pkg/scenario"
	"github.com/ormasoftchile/ehbo/pkg/sink"
	"github.com/ormasoftchile/ehbo/pkg/trace"
)

// App holds the long-lived collaborators of a binary.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Bundle   *catalog.Bundle
	History  *history.Store
	Trace    *trace.Writer
	Registry *prometheus.Registry

	metrics *sink.Metrics
	server  *http.Server
}

// Open loads content and opens the history store and trace file named by cfg.
// An empty HistoryDB disables history.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger, Registry: prometheus.NewRegistry()}

	var err error
	if cfg.ContentDir != "" {
		a.Bundle, err = catalog.LoadDir(cfg.ContentDir)
	} else {
		a.Bundle, err = catalog.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load content: %w", err)
	}

	if cfg.HistoryDB != "" {
		if a.History, err = history.Open(ctx, cfg.HistoryDB); err != nil {
			return nil, err
		}
	}
	if cfg.TraceFile != "" {
		if a.Trace, err = trace.NewFileWriter(cfg.TraceFile, ""); err != nil {
			a.Close()
			return nil, err
		}
	}

	a.Registry.MustRegister(collectors.NewGoCollector())
	a.metrics = sink.NewMetrics(a.Registry)

	logger.Debug("content loaded",
		zap.Int("scenarios", a.Bundle.Scenarios.Len()),
		zap.Int("roles", len(a.Bundle.Roles)),
		zap.Int("complications", len(a.Bundle.Complications)),
		zap.Int("chains", len(a.Bundle.Chains)))
	return a, nil
}

// Runtime builds a runtime over the app's content and sinks.
func (a *App) Runtime(manualChainAdvance bool) (*engine.Runtime, error) {
	o, err := chain.New(a.Bundle.Chains, a.Logger)
	if err != nil {
		return nil, err
	}

	src := random.Default()
	if a.Config.Seed != 0 {
		src = random.New(a.Config.Seed)
	}

	sinks := sink.Multi{sink.Log{Logger: a.Logger}, a.metrics}
	opts := engine.Options{
		Roles:              a.Bundle.Roles,
		Complications:      a.Bundle.Complications,
		Chains:             o,
		Catalogue:          a.Bundle.Scenarios,
		Random:             src,
		Adaptive:           adaptive.New(a.Config.Adaptive),
		Trace:              a.Trace,
		Logger:             a.Logger,
		ChainProbability:   a.Config.ChainProbability,
		MaxRevisits:        a.Config.MaxRevisits,
		GenericSubject:     a.Config.GenericSubject,
		ManualChainAdvance: manualChainAdvance,
	}
	if a.History != nil {
		sinks = append(sinks, a.History)
		opts.History = a.History
	}
	opts.Sink = sinks
	return engine.New(opts), nil
}

// Profile builds the player profile from the configured id.
func (a *App) Profile(difficulty string, accessibilityNeeds []string) (engine.Profile, error) {
	p := engine.Profile{ID: a.Config.ProfileID, AccessibilityNeeds: accessibilityNeeds}
	if difficulty != "" {
		d, err := scenario.ParseDifficulty(difficulty)
		if err != nil {
			return p, err
		}
		p.DifficultyPreference = d
	}
	return p, nil
}

// Scenario resolves ref as a scenario file when it exists on disk, or as a
// catalogue id otherwise. File scenarios are validated first.
func (a *App) Scenario(ref string) (*scenario.Scenario, error) {
	if _, err := os.Stat(ref); err == nil {
		sc, errs := scenario.ValidateFile(ref)
		if scenario.HasErrors(errs) {
			return nil, fmt.Errorf("%s: %w", ref, errors.Join(toErrors(errs)...))
		}
		return sc, nil
	}
	sc, ok := a.Bundle.Scenarios.Scenario(ref)
	if !ok {
		return nil, fmt.Errorf("unknown scenario %q", ref)
	}
	return sc, nil
}

func toErrors(errs []*scenario.ValidationError) []error {
	var out []error
	for _, e := range errs {
		if e.Severity == scenario.SeverityError {
			out = append(out, e)
		}
	}
	return out
}

// ServeMetrics exposes the registry on the configured address until Close.
// It is a no-op when no address is configured.
func (a *App) ServeMetrics() {
	if a.Config.MetricsAddr == "" || a.server != nil {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}))
	a.server = &http.Server{Addr: a.Config.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		a.Logger.Info("serving metrics", zap.String("addr", a.Config.MetricsAddr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error("metrics server", zap.Error(err))
		}
	}()
}

// Close releases the metrics server, trace file and history store.
func (a *App) Close() error {
	var errs []error
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		errs = append(errs, a.server.Shutdown(ctx))
	}
	if a.Trace != nil {
		errs = append(errs, a.Trace.Close())
	}
	if a.History != nil {
		errs = append(errs, a.History.Close())
	}
	return errors.Join(errs...)
}
