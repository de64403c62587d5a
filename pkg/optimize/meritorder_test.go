package optimize

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sw33tLie/powerlole/pkg/network"
)

// twoRegions builds A <-> B with the given corridor sizing and per-snapshot
// demand in B.
func twoRegions(capacity float64, extendable bool, max network.Bound, demandB ...float64) *network.Network {
	start := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	n := &network.Network{Year: 2030}
	for i := range demandB {
		n.Snapshots = append(n.Snapshots, network.Snapshot{Time: start.Add(time.Duration(i) * time.Hour), Weight: 1})
	}
	n.Regions = []network.Region{{ID: "A", Carrier: network.CarrierAC}, {ID: "B", Carrier: network.CarrierAC}}
	for _, dir := range [][2]string{{"A", "B"}, {"B", "A"}} {
		n.Links = append(n.Links, network.DirectedLink{
			Name: network.LinkName(dir[0], dir[1]), From: dir[0], To: dir[1],
			Capacity: capacity, Extendable: extendable, MaxCapacity: max,
			MinPerUnit: -1, MaxPerUnit: 1, HurdleCost: 0.1,
		})
	}
	n.Loads = []network.Load{{Name: "B-load", Region: "B", Demand: demandB}}
	n.Generators = []network.Generator{
		{Name: "A-coal", Region: "A", Technology: "coal", Capacity: network.Finite(500), MarginalCost: 30, MaxPerUnit: 1},
		{Name: "A-ENS", Region: "A", Technology: network.CarrierENS, Capacity: network.Unbounded(), MarginalCost: 10000, MaxPerUnit: 1},
		{Name: "B-ENS", Region: "B", Technology: network.CarrierENS, Capacity: network.Unbounded(), MarginalCost: 10000, MaxPerUnit: 1},
	}
	return n
}

func dispatchOf(t *testing.T, n *network.Network, name string) []float64 {
	t.Helper()
	g, ok := n.Generator(name)
	require.True(t, ok, name)
	return g.Dispatch
}

func TestMeritOrderImportsOverCorridor(t *testing.T) {
	n := twoRegions(1000, false, network.Absent(), 300, 0)

	solved, err := NewMeritOrder().Solve(context.Background(), n)
	require.NoError(t, err)
	assert.Same(t, n, solved)
	assert.Equal(t, network.Optimal, n.Status)
	assert.Equal(t, MeritOrderName, n.Solver)

	assert.Equal(t, []float64{300, 0}, dispatchOf(t, n, "A-coal"))
	assert.Equal(t, []float64{0, 0}, dispatchOf(t, n, "B-ENS"))

	ab, _ := n.Link("A-B")
	ba, _ := n.Link("B-A")
	assert.Equal(t, []float64{300, 0}, ab.Flow)
	assert.Equal(t, []float64{0, 0}, ba.Flow)
	assert.Equal(t, 1000.0, ab.OptimalCapacity)
	assert.InDelta(t, 300*30+300*0.1, n.Objective, 1e-9)
}

func TestMeritOrderCorridorLimit(t *testing.T) {
	n := twoRegions(100, false, network.Absent(), 300)

	_, err := NewMeritOrder().Solve(context.Background(), n)
	require.NoError(t, err)
	assert.Equal(t, []float64{100}, dispatchOf(t, n, "A-coal"))
	assert.Equal(t, []float64{200}, dispatchOf(t, n, "B-ENS"))
}

func TestMeritOrderExtendsUpToBound(t *testing.T) {
	n := twoRegions(100, true, network.Finite(150), 300)

	_, err := NewMeritOrder().Solve(context.Background(), n)
	require.NoError(t, err)
	assert.Equal(t, []float64{150}, dispatchOf(t, n, "A-coal"))
	assert.Equal(t, []float64{150}, dispatchOf(t, n, "B-ENS"))

	for _, name := range []string{"A-B", "B-A"} {
		l, _ := n.Link(name)
		assert.Equal(t, 150.0, l.OptimalCapacity, name)
	}
}

func TestMeritOrderUnboundedExtension(t *testing.T) {
	n := twoRegions(100, true, network.Unbounded(), 450)

	_, err := NewMeritOrder().Solve(context.Background(), n)
	require.NoError(t, err)
	assert.Equal(t, []float64{450}, dispatchOf(t, n, "A-coal"))
	assert.Equal(t, []float64{0}, dispatchOf(t, n, "B-ENS"))
}

func TestMeritOrderCheapestFirst(t *testing.T) {
	n := twoRegions(1000, false, network.Absent(), 200)
	n.Generators = append(n.Generators, network.Generator{
		Name: "B-gas", Region: "B", Technology: "gas", Capacity: network.Finite(150), MarginalCost: 60, MaxPerUnit: 1,
	})

	_, err := NewMeritOrder().Solve(context.Background(), n)
	require.NoError(t, err)
	assert.Equal(t, []float64{200}, dispatchOf(t, n, "A-coal"))
	assert.Equal(t, []float64{0}, dispatchOf(t, n, "B-gas"))
}

func TestMeritOrderAvailabilityProfile(t *testing.T) {
	n := twoRegions(1000, false, network.Absent(), 100, 100)
	n.Generators[0].Technology = "wind"
	n.Generators[0].Name = "A-wind"
	n.Generators[0].Capacity = network.Finite(200)
	n.Generators[0].Availability = []float64{0.25, 1}

	_, err := NewMeritOrder().Solve(context.Background(), n)
	require.NoError(t, err)
	assert.Equal(t, []float64{50, 100}, dispatchOf(t, n, "A-wind"))
	assert.Equal(t, []float64{50, 0}, dispatchOf(t, n, "B-ENS"))
}

func TestMeritOrderMustRunSurplusIsInfeasible(t *testing.T) {
	n := twoRegions(1000, false, network.Absent(), 100)
	n.Generators[0].MinPerUnit = 0.8

	_, err := NewMeritOrder().Solve(context.Background(), n)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInfeasible)

	var solveErr *SolveError
	require.True(t, errors.As(err, &solveErr))
	assert.Equal(t, MeritOrderName, solveErr.Solver)
	assert.Equal(t, network.Infeasible, n.Status)
	assert.Nil(t, dispatchOf(t, n, "B-ENS"))
}

func TestMeritOrderMustRunExportsSurplus(t *testing.T) {
	n := twoRegions(1000, false, network.Absent(), 450)
	n.Generators[0].MinPerUnit = 0.8

	_, err := NewMeritOrder().Solve(context.Background(), n)
	require.NoError(t, err)
	assert.Equal(t, []float64{450}, dispatchOf(t, n, "A-coal"))
}

// chain builds A <-> B <-> C with 1000 MW corridors, a 1000 MW coal unit in
// A and one snapshot of demand in C only.
func chain(demandC float64) *network.Network {
	n := &network.Network{Year: 2030}
	n.Snapshots = []network.Snapshot{{Time: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), Weight: 1}}
	for _, id := range []string{"A", "B", "C"} {
		n.Regions = append(n.Regions, network.Region{ID: id, Carrier: network.CarrierAC})
		n.Generators = append(n.Generators, network.Generator{
			Name: network.ENSName(id), Region: id, Technology: network.CarrierENS,
			Capacity: network.Unbounded(), MarginalCost: 10000, MaxPerUnit: 1,
		})
	}
	for _, dir := range [][2]string{{"A", "B"}, {"B", "A"}, {"B", "C"}, {"C", "B"}} {
		n.Links = append(n.Links, network.DirectedLink{
			Name: network.LinkName(dir[0], dir[1]), From: dir[0], To: dir[1],
			Capacity: 1000, MinPerUnit: -1, MaxPerUnit: 1,
		})
	}
	n.Loads = []network.Load{{Name: "C-load", Region: "C", Demand: []float64{demandC}}}
	n.Generators = append(n.Generators, network.Generator{
		Name: "A-coal", Region: "A", Technology: "coal", Capacity: network.Finite(1000), MarginalCost: 30, MaxPerUnit: 1,
	})
	return n
}

func TestMeritOrderRoutesAcrossChain(t *testing.T) {
	n := chain(500)

	_, err := NewMeritOrder().Solve(context.Background(), n)
	require.NoError(t, err)
	assert.Equal(t, []float64{500}, dispatchOf(t, n, "A-coal"))
	assert.Equal(t, []float64{0}, dispatchOf(t, n, "C-ENS"))

	ab, _ := n.Link("A-B")
	bc, _ := n.Link("B-C")
	assert.Equal(t, []float64{500}, ab.Flow)
	assert.Equal(t, []float64{500}, bc.Flow)
}

func TestMeritOrderChainBottleneck(t *testing.T) {
	n := chain(800)
	bc, _ := n.Link("B-C")
	bc.Capacity = 300
	cb, _ := n.Link("C-B")
	cb.Capacity = 300

	_, err := NewMeritOrder().Solve(context.Background(), n)
	require.NoError(t, err)
	assert.Equal(t, []float64{300}, dispatchOf(t, n, "A-coal"))
	assert.Equal(t, []float64{500}, dispatchOf(t, n, "C-ENS"))
}

func TestMeritOrderMustRunRoutesAcrossChain(t *testing.T) {
	n := chain(400)
	coal, _ := n.Generator("A-coal")
	coal.MinPerUnit = 0.4

	_, err := NewMeritOrder().Solve(context.Background(), n)
	require.NoError(t, err)
	assert.Equal(t, []float64{400}, dispatchOf(t, n, "A-coal"))
	assert.Equal(t, []float64{0}, dispatchOf(t, n, "C-ENS"))
}

func TestMeritOrderMissingENS(t *testing.T) {
	n := twoRegions(1000, false, network.Absent(), 1)
	n.Generators = n.Generators[:2]

	_, err := NewMeritOrder().Solve(context.Background(), n)
	assert.ErrorIs(t, err, ErrSolveFailed)
	assert.Equal(t, network.Unsolved, n.Status)
}

func TestMeritOrderCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMeritOrder().Solve(ctx, twoRegions(1000, false, network.Absent(), 1, 2, 3))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew(t *testing.T) {
	o, err := New(Settings{})
	require.NoError(t, err)
	assert.Equal(t, MeritOrderName, o.Name())

	_, err = New(Settings{Name: ExecName})
	assert.Error(t, err)

	o, err = New(Settings{Name: "EXEC", Command: "/usr/bin/solver"})
	require.NoError(t, err)
	assert.Equal(t, ExecName, o.Name())

	_, err = New(Settings{Name: "glpk"})
	assert.ErrorIs(t, err, ErrUnknownSolver)
}
