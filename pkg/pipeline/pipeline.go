// Package pipeline runs the per-year workflow: build, solve, analyze, export
// and record. Years are independent and run concurrently.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sw33tLie/powerlole/internal/utils"
	"github.com/sw33tLie/powerlole/pkg/metrics"
	"github.com/sw33tLie/powerlole/pkg/network"
	"github.com/sw33tLie/powerlole/pkg/optimize"
	"github.com/sw33tLie/powerlole/pkg/reliability"
	"github.com/sw33tLie/powerlole/pkg/storage"
	"golang.org/x/sync/errgroup"
)

// Logger abstracts logging so callers can use logrus, stdlib log, or any
// other logger that satisfies this interface.
type Logger = network.Logger

// Store records runs and their years. *storage.DB implements it.
type Store interface {
	BeginRun(ctx context.Context, r storage.Run) error
	FinishRun(ctx context.Context, id, status string, finishedAt time.Time) error
	SaveYear(ctx context.Context, y storage.YearRecord, regions []storage.RegionRecord) error
}

// Config holds everything Run needs for one planning run.
type Config struct {
	Years     []int
	Settings  network.Settings
	Provider  network.Provider
	Optimizer optimize.Optimizer
	Analyzer  reliability.Analyzer

	OutputDir    string
	SaveNetworks bool

	DB          Store        // optional
	Metrics     *metrics.Run // optional
	MetricsFile string       // written after the run when Metrics is set

	Concurrency int  // defaults to 1 if <= 0
	FailFast    bool // cancel remaining years after the first failure
	RunID       string
	DataSource  string
	Log         Logger // optional; nil = no logging

	// OnYearDone is called once per year from the worker goroutines.
	// Enables the CLI to print results as they complete. Nil = no callback.
	OnYearDone func(YearResult)
}

// Result is the outcome of a whole run. Years are ordered as requested.
type Result struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Years      []YearResult
}

// Failed returns the years that did not complete.
func (r *Result) Failed() []YearResult {
	var out []YearResult
	for _, y := range r.Years {
		if y.Err != nil {
			out = append(out, y)
		}
	}
	return out
}

func (r *Result) OK() bool { return len(r.Failed()) == 0 }

// Run processes every configured year. A failing year does not stop the
// others unless FailFast is set; per-year failures are reported in the
// result, not as the returned error.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	log := cfg.Log
	if log == nil {
		log = network.NopLogger()
	}
	if cfg.Provider == nil {
		return nil, errors.New("pipeline: no data provider")
	}
	if cfg.Optimizer == nil {
		return nil, errors.New("pipeline: no optimizer")
	}
	if len(cfg.Years) == 0 {
		return nil, errors.New("pipeline: no years to run")
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}

	res := &Result{RunID: cfg.RunID, StartedAt: time.Now(), Years: make([]YearResult, len(cfg.Years))}

	for _, y := range cfg.Years {
		if err := utils.EnsureDir(yearDir(cfg.OutputDir, y)); err != nil {
			return nil, fmt.Errorf("creating output directory: %w", err)
		}
	}

	if cfg.DB != nil {
		if err := cfg.DB.BeginRun(ctx, storage.Run{
			ID:         cfg.RunID,
			StartedAt:  res.StartedAt,
			Years:      cfg.Years,
			Solver:     cfg.Optimizer.Name(),
			DataSource: cfg.DataSource,
		}); err != nil {
			return nil, fmt.Errorf("recording run: %w", err)
		}
	}

	log.Infof("Starting run %s for years %v with solver %s", cfg.RunID, cfg.Years, cfg.Optimizer.Name())

	builder := network.NewBuilder(cfg.Settings, log)

	var g *errgroup.Group
	gctx := ctx
	if cfg.FailFast {
		g, gctx = errgroup.WithContext(ctx)
	} else {
		g = &errgroup.Group{}
	}
	g.SetLimit(concurrency)

	for i, year := range cfg.Years {
		i, year := i, year
		g.Go(func() error {
			yr := runYear(gctx, cfg, builder, year, log)
			res.Years[i] = yr
			if cfg.OnYearDone != nil {
				cfg.OnYearDone(yr)
			}
			if cfg.FailFast && yr.Err != nil {
				return yr.Err
			}
			return nil
		})
	}
	runErr := g.Wait()

	res.FinishedAt = time.Now()
	status := storage.RunSucceeded
	if !res.OK() {
		status = storage.RunFailed
	}

	if cfg.DB != nil {
		// The run context may already be cancelled; the final status must
		// still be recorded.
		if err := cfg.DB.FinishRun(context.Background(), cfg.RunID, status, res.FinishedAt); err != nil {
			log.Warnf("Could not record end of run %s: %v", cfg.RunID, err)
		}
	}
	if cfg.Metrics != nil && cfg.MetricsFile != "" {
		if err := cfg.Metrics.WriteFile(cfg.MetricsFile); err != nil {
			log.Warnf("Could not write metrics to %s: %v", cfg.MetricsFile, err)
		}
	}

	log.Infof("Run %s finished in %s: %d of %d years succeeded", cfg.RunID,
		res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond), len(res.Years)-len(res.Failed()), len(res.Years))

	return res, runErr
}

func yearDir(out string, year int) string {
	return filepath.Join(out, strconv.Itoa(year))
}

// NetworkPath is where the solved network of a year is exported.
func NetworkPath(out string, year int) string {
	return filepath.Join(yearDir(out, year), fmt.Sprintf("network_%d.msgpack", year))
}

// LOLEPath is where the reliability table of a year is written.
func LOLEPath(out string, year int) string {
	return filepath.Join(yearDir(out, year), fmt.Sprintf("lole_%d.csv", year))
}
