package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/sw33tLie/powerlole/pkg/metrics"
	"github.com/sw33tLie/powerlole/pkg/network"
	"github.com/sw33tLie/powerlole/pkg/reliability"
	"github.com/sw33tLie/powerlole/pkg/storage"
)

// Stage names the step of the year workflow that failed.
type Stage string

const (
	StageBuild   Stage = "build"
	StageSolve   Stage = "solve"
	StageAnalyze Stage = "analyze"
	StageExport  Stage = "export"
	StageStore   Stage = "store"
)

// YearError reports the failure of one planning year.
type YearError struct {
	Year  int
	Stage Stage
	Err   error
}

func (e *YearError) Error() string {
	return fmt.Sprintf("year %d: %s: %v", e.Year, e.Stage, e.Err)
}

func (e *YearError) Unwrap() error { return e.Err }

// YearResult is the outcome of one planning year. Err is a *YearError when
// the year failed; the remaining fields hold whatever was produced before.
type YearResult struct {
	Year        int
	Tier        string
	Warnings    []network.Warning
	Objective   float64
	Reliability *reliability.Result
	NetworkPath string
	LOLEPath    string
	Elapsed     time.Duration
	Err         error
}

func runYear(ctx context.Context, cfg Config, b *network.Builder, year int, log Logger) YearResult {
	start := time.Now()
	yr := YearResult{Year: year}
	if tier, err := cfg.Settings.Policy.TierFor(year); err == nil {
		yr.Tier = tier.String()
	}

	fail := func(stage Stage, err error) YearResult {
		yr.Elapsed = time.Since(start)
		yr.Err = &YearError{Year: year, Stage: stage, Err: err}
		log.Errorf("Year %d failed during %s: %v", year, stage, err)
		record(ctx, cfg, &yr, log)
		return yr
	}

	built, err := b.Build(ctx, year, cfg.Provider)
	if err != nil {
		return fail(StageBuild, err)
	}
	yr.Warnings = built.Warnings
	n := built.Network

	log.Infof("Optimizing network for year %d with %s", year, cfg.Optimizer.Name())
	if _, err := cfg.Optimizer.Solve(ctx, n); err != nil {
		return fail(StageSolve, err)
	}
	yr.Objective = n.Objective

	rel, err := cfg.Analyzer.Analyze(n)
	if err != nil {
		return fail(StageAnalyze, err)
	}
	yr.Reliability = rel

	if cfg.SaveNetworks {
		path := NetworkPath(cfg.OutputDir, year)
		if err := network.WriteFile(path, n); err != nil {
			return fail(StageExport, err)
		}
		yr.NetworkPath = path
	}
	path := LOLEPath(cfg.OutputDir, year)
	if err := rel.WriteCSVFile(path); err != nil {
		return fail(StageExport, err)
	}
	yr.LOLEPath = path

	for _, rr := range rel.Regions {
		log.Infof("Year %d: LOLE for %s: %g %s", year, rr.Region, rr.LOLE, rel.Unit())
	}
	log.Infof("Year %d: system LOLE %g %s, unserved energy %g", year, rel.System.LOLE, rel.Unit(), rel.System.UnservedEnergy)

	yr.Elapsed = time.Since(start)
	record(ctx, cfg, &yr, log)
	if yr.Err != nil {
		return yr
	}
	log.Infof("Year %d completed in %s", year, yr.Elapsed.Round(time.Millisecond))
	return yr
}

// record stores a finished year, then updates the metrics with its final
// outcome. A year that fails to store fails at the store stage.
func record(ctx context.Context, cfg Config, yr *YearResult, log Logger) {
	if err := store(ctx, cfg, yr); err != nil {
		if yr.Err == nil {
			yr.Err = &YearError{Year: yr.Year, Stage: StageStore, Err: err}
			log.Errorf("Year %d failed during %s: %v", yr.Year, StageStore, err)
		} else {
			log.Warnf("Could not record failure of year %d: %v", yr.Year, err)
		}
	}
	observe(cfg.Metrics, yr)
}

func observe(m *metrics.Run, yr *YearResult) {
	if m == nil {
		return
	}
	m.YearDone(yr.Err == nil, yr.Elapsed)
	for _, w := range yr.Warnings {
		m.Warning(string(w.Kind))
	}
	if rel := yr.Reliability; rel != nil && yr.Err == nil {
		for _, rr := range rel.Regions {
			m.Reliability(yr.Year, rr.Region, rr.LOLE)
		}
		m.Reliability(yr.Year, reliability.SystemRegion, rel.System.LOLE)
		m.Unserved(yr.Year, rel.System.UnservedEnergy)
	}
}

func store(ctx context.Context, cfg Config, yr *YearResult) error {
	if cfg.DB == nil {
		return nil
	}

	rec := storage.YearRecord{
		RunID:       cfg.RunID,
		Year:        yr.Year,
		Status:      storage.YearOK,
		Tier:        yr.Tier,
		Objective:   yr.Objective,
		Warnings:    len(yr.Warnings),
		Elapsed:     yr.Elapsed,
		NetworkPath: yr.NetworkPath,
		LOLEPath:    yr.LOLEPath,
	}
	var regions []storage.RegionRecord
	if ye, ok := yr.Err.(*YearError); ok {
		rec.Status = storage.YearFailed
		rec.Stage = string(ye.Stage)
		rec.Error = ye.Err.Error()
	} else if rel := yr.Reliability; rel != nil {
		rec.SystemLOLE = rel.System.LOLE
		rec.UnservedEnergy = rel.System.UnservedEnergy
		rec.Unit = rel.Unit()
		for _, rr := range append(append([]reliability.RegionResult(nil), rel.Regions...), rel.System) {
			regions = append(regions, storage.RegionRecord{
				Region:         rr.Region,
				LOLE:           rr.LOLE,
				Events:         rr.Events,
				UnservedEnergy: rr.UnservedEnergy,
				PeakUnserved:   rr.PeakUnserved,
			})
		}
	}

	// Failures are recorded even when ctx was cancelled.
	if yr.Err != nil {
		ctx = context.Background()
	}
	return cfg.DB.SaveYear(ctx, rec, regions)
}
