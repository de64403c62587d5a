package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sw33tLie/powerlole/pkg/metrics"
	"github.com/sw33tLie/powerlole/pkg/network"
	"github.com/sw33tLie/powerlole/pkg/optimize"
	"github.com/sw33tLie/powerlole/pkg/reliability"
	"github.com/sw33tLie/powerlole/pkg/storage"
)

// memProvider serves a two-region system where B peaks at 2000 MW in the
// last hour and all generation sits in A.
type memProvider struct {
	capacity map[int]float64
}

func (m memProvider) Timestamps() []network.Snapshot {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]network.Snapshot, 4)
	for i := range out {
		out[i] = network.Snapshot{Time: start.Add(time.Duration(i) * time.Hour), Weight: 1}
	}
	return out
}

func (m memProvider) TransmissionCapacity(a, b string, year int) (float64, error) {
	if v, ok := m.capacity[year]; ok {
		return v, nil
	}
	return 0, fmt.Errorf("no capacity for %s-%s in %d", a, b, year)
}

func (m memProvider) DemandData() map[string][]float64 {
	return map[string][]float64{
		"A": {100, 100, 100, 100},
		"B": {0, 0, 0, 2000},
	}
}

func (m memProvider) DemandScaleFactors(int) map[string]float64 {
	return map[string]float64{"A": 1, "B": 1}
}

func (m memProvider) GeneratorsData(int) []network.GeneratorRecord {
	return []network.GeneratorRecord{{Region: "A", Technology: "coal", Capacity: 3000}}
}

func (m memProvider) RenewableProfile(string, string) ([]float64, bool) { return nil, false }

func settings() network.Settings {
	return network.Settings{
		Regions:   []string{"A", "B"},
		Corridors: []network.Corridor{{A: "A", B: "B"}},
		Policy: network.Policy{
			BaseYear: 2020,
			Tiers: map[int]network.Tier{
				2020: network.BaseTier{},
				2030: network.NearTier{},
				2050: network.FarTier{},
			},
		},
		ENSCost:       10000,
		HurdleCost:    0.1,
		MarginalCosts: map[string]float64{"coal": 30},
	}
}

func baseConfig(t *testing.T, years ...int) Config {
	return Config{
		Years:        years,
		Settings:     settings(),
		Provider:     memProvider{capacity: map[int]float64{2020: 1000, 2030: 1500}},
		Optimizer:    optimize.NewMeritOrder(),
		OutputDir:    t.TempDir(),
		SaveNetworks: true,
		Concurrency:  3,
	}
}

// failingOptimizer rejects one year and delegates the rest.
type failingOptimizer struct {
	optimize.Optimizer
	year int
}

func (f failingOptimizer) Solve(ctx context.Context, n *network.Network) (*network.Network, error) {
	if n.Year == f.year {
		return n, &optimize.SolveError{Solver: "test", Status: "infeasible", Err: optimize.ErrInfeasible}
	}
	return f.Optimizer.Solve(ctx, n)
}

func systemLOLE(t *testing.T, yr YearResult) float64 {
	t.Helper()
	require.NoError(t, yr.Err)
	require.NotNil(t, yr.Reliability)
	return yr.Reliability.System.LOLE
}

func TestRunExpansionScenario(t *testing.T) {
	cfg := baseConfig(t, 2020, 2030, 2050)

	res, err := Run(context.Background(), cfg)
	require.NoError(t, err)
	require.True(t, res.OK())
	require.Len(t, res.Years, 3)
	assert.NotEmpty(t, res.RunID)

	// Base year: corridor fixed at 1000, B is 1000 MW short in the peak hour.
	assert.Equal(t, 2020, res.Years[0].Year)
	assert.Equal(t, "base", res.Years[0].Tier)
	assert.Equal(t, 1.0, systemLOLE(t, res.Years[0]))
	b, _ := res.Years[0].Reliability.Region("B")
	assert.InDelta(t, 1000, b.UnservedEnergy, 1e-6)

	// Near tier: the corridor may grow to its 1500 target.
	assert.Equal(t, "near", res.Years[1].Tier)
	b, _ = res.Years[1].Reliability.Region("B")
	assert.InDelta(t, 500, b.UnservedEnergy, 1e-6)

	// Far tier: unbounded expansion removes the shortfall.
	assert.Equal(t, "far", res.Years[2].Tier)
	assert.Equal(t, 0.0, systemLOLE(t, res.Years[2]))

	for _, yr := range res.Years {
		assert.FileExists(t, yr.LOLEPath)
		assert.FileExists(t, yr.NetworkPath)
		assert.Empty(t, yr.Warnings)
	}

	n, err := network.ReadFile(NetworkPath(cfg.OutputDir, 2030))
	require.NoError(t, err)
	assert.Equal(t, network.Optimal, n.Status)
	ab, ok := n.Link("A-B")
	require.True(t, ok)
	assert.Equal(t, 1500.0, ab.OptimalCapacity)
	assert.Equal(t, network.Finite(1500), ab.MaxCapacity)
}

func TestRunIsolatesFailingYears(t *testing.T) {
	cfg := baseConfig(t, 2020, 2030, 2040, 2050)
	cfg.Optimizer = failingOptimizer{Optimizer: optimize.NewMeritOrder(), year: 2030}

	var mu sync.Mutex
	var seen []int
	cfg.OnYearDone = func(yr YearResult) {
		mu.Lock()
		seen = append(seen, yr.Year)
		mu.Unlock()
	}

	res, err := Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.False(t, res.OK())
	assert.ElementsMatch(t, []int{2020, 2030, 2040, 2050}, seen)

	failed := res.Failed()
	require.Len(t, failed, 2)

	var ye *YearError
	require.ErrorAs(t, failed[0].Err, &ye)
	assert.Equal(t, 2030, ye.Year)
	assert.Equal(t, StageSolve, ye.Stage)
	assert.ErrorIs(t, failed[0].Err, optimize.ErrInfeasible)

	require.ErrorAs(t, failed[1].Err, &ye)
	assert.Equal(t, 2040, ye.Year)
	assert.Equal(t, StageBuild, ye.Stage)
	assert.ErrorIs(t, failed[1].Err, network.ErrNoTier)

	assert.Equal(t, 1.0, systemLOLE(t, res.Years[0]))
	assert.Equal(t, 0.0, systemLOLE(t, res.Years[3]))

	_, statErr := os.Stat(LOLEPath(cfg.OutputDir, 2030))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunFailFast(t *testing.T) {
	cfg := baseConfig(t, 2040, 2020, 2050)
	cfg.Concurrency = 1
	cfg.FailFast = true

	res, err := Run(context.Background(), cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, network.ErrNoTier)
	require.Len(t, res.Years, 3)
	assert.ErrorIs(t, res.Years[1].Err, context.Canceled)
	assert.ErrorIs(t, res.Years[2].Err, context.Canceled)
}

func TestRunRecordsStoreAndMetrics(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "results.sqlite"))
	require.NoError(t, err)
	defer db.Close()

	cfg := baseConfig(t, 2020, 2040)
	cfg.SaveNetworks = false
	cfg.DB = db
	cfg.Metrics = metrics.NewRun()
	cfg.MetricsFile = filepath.Join(t.TempDir(), "powerlole.prom")
	cfg.DataSource = "memory"

	res, err := Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Empty(t, res.Years[0].NetworkPath)

	ctx := context.Background()
	run, err := db.GetRun(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, storage.RunFailed, run.Status)
	assert.Equal(t, []int{2020, 2040}, run.Years)
	assert.Equal(t, optimize.MeritOrderName, run.Solver)

	years, err := db.RunYears(ctx, res.RunID)
	require.NoError(t, err)
	require.Len(t, years, 2)
	assert.Equal(t, storage.YearOK, years[0].Status)
	assert.Equal(t, 1.0, years[0].SystemLOLE)
	assert.Equal(t, "h", years[0].Unit)
	assert.Equal(t, storage.YearFailed, years[1].Status)
	assert.Equal(t, string(StageBuild), years[1].Stage)

	regions, err := db.RegionLOLE(ctx, res.RunID, 2020)
	require.NoError(t, err)
	require.Len(t, regions, 3)
	assert.Equal(t, "B", regions[1].Region)
	assert.Equal(t, reliability.SystemRegion, regions[2].Region)

	assert.FileExists(t, cfg.MetricsFile)
}

// brokenStore accepts the run but fails to save successful years.
type brokenStore struct {
	mu    sync.Mutex
	saved []storage.YearRecord
}

func (*brokenStore) BeginRun(context.Context, storage.Run) error { return nil }
func (*brokenStore) FinishRun(context.Context, string, string, time.Time) error {
	return nil
}

func (s *brokenStore) SaveYear(_ context.Context, y storage.YearRecord, _ []storage.RegionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if y.Status == storage.YearOK {
		return errors.New("disk full")
	}
	s.saved = append(s.saved, y)
	return nil
}

func TestRunStoreFailureFailsYear(t *testing.T) {
	cfg := baseConfig(t, 2020)
	cfg.DB = &brokenStore{}
	cfg.Metrics = metrics.NewRun()

	res, err := Run(context.Background(), cfg)
	require.NoError(t, err)

	var ye *YearError
	require.ErrorAs(t, res.Years[0].Err, &ye)
	assert.Equal(t, StageStore, ye.Stage)

	assert.Equal(t, 1.0, testutil.ToFloat64(cfg.Metrics.YearsTotal.WithLabelValues("failed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(cfg.Metrics.YearsTotal.WithLabelValues("ok")))
	assert.Equal(t, 0, testutil.CollectAndCount(cfg.Metrics.LOLE))
}

func TestRunRejectsIncompleteConfig(t *testing.T) {
	cfg := baseConfig(t)
	_, err := Run(context.Background(), cfg)
	assert.Error(t, err)

	cfg = baseConfig(t, 2020)
	cfg.Optimizer = nil
	_, err = Run(context.Background(), cfg)
	assert.Error(t, err)
}
