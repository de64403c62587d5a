package cmd

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/sw33tLie/powerlole/pkg/network"
	"github.com/sw33tLie/powerlole/pkg/pipeline"
	"github.com/sw33tLie/powerlole/pkg/reliability"
	"github.com/sw33tLie/powerlole/pkg/storage"
	"gopkg.in/yaml.v3"
)

func init() {
	color.NoColor = true
}

func sampleBuild() *network.BuildResult {
	start := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	n := &network.Network{
		Year: 2030,
		Snapshots: []network.Snapshot{
			{Time: start, Weight: 1},
			{Time: start.Add(time.Hour), Weight: 2},
		},
		Regions: []network.Region{{ID: "A"}, {ID: "B"}},
		Links: []network.DirectedLink{
			{Name: "A-B", From: "A", To: "B", Capacity: 1000, Extendable: true, MaxCapacity: network.Finite(1500)},
			{Name: "B-A", From: "B", To: "A", Capacity: 1000, Extendable: true, MaxCapacity: network.Finite(1500)},
		},
		Loads: []network.Load{{Name: "A-load", Region: "A", Demand: []float64{100, 300}}},
		Generators: []network.Generator{
			{Name: "A-wind", Region: "A", Technology: "wind", Capacity: network.Finite(200), Availability: []float64{0.5, 1}},
			{Name: "A-ENS", Region: "A", Technology: network.CarrierENS, Capacity: network.Unbounded(), MarginalCost: 10000},
		},
	}
	return &network.BuildResult{
		Network:  n,
		Warnings: []network.Warning{{Kind: network.MissingLoad, Region: "B", Message: "region B is missing load data and scaling factor"}},
	}
}

func TestNewBuildView(t *testing.T) {
	v := newBuildView(sampleBuild(), network.NearTier{})

	if v.Tier != "near" || v.Snapshots != 2 {
		t.Fatalf("unexpected header: %+v", v)
	}
	if !reflect.DeepEqual(v.Regions, []string{"A", "B"}) {
		t.Fatalf("unexpected regions: %v", v.Regions)
	}
	if v.Links[0].MaxCapacity != "1500" {
		t.Fatalf("want max capacity 1500, got %q", v.Links[0].MaxCapacity)
	}
	if v.Loads[0].Peak != 300 || v.Loads[0].Energy != 700 {
		t.Fatalf("unexpected load view: %+v", v.Loads[0])
	}
	if !v.Generators[0].Profile || v.Generators[1].Profile {
		t.Fatalf("profile flags wrong: %+v", v.Generators)
	}
	if v.Generators[1].Capacity != "unbounded" {
		t.Fatalf("ENS capacity should render as unbounded, got %q", v.Generators[1].Capacity)
	}
}

func TestBuildViewYAML(t *testing.T) {
	out, err := yaml.Marshal(newBuildView(sampleBuild(), network.FarTier{}))
	if err != nil {
		t.Fatal(err)
	}
	s := string(out)
	for _, want := range []string{"tier: far", "max_capacity: \"1500\"", "kind: missing_load", "capacity: unbounded"} {
		if !strings.Contains(s, want) {
			t.Fatalf("yaml output missing %q:\n%s", want, s)
		}
	}
}

func TestPrintBuildSummaryWarnings(t *testing.T) {
	var buf bytes.Buffer
	printBuildSummary(&buf, newBuildView(sampleBuild(), network.BaseTier{}))

	if !strings.Contains(buf.String(), "[WARN] region B is missing load data and scaling factor") {
		t.Fatalf("warning not printed:\n%s", buf.String())
	}
}

func TestPrintSummary(t *testing.T) {
	res := &pipeline.Result{Years: []pipeline.YearResult{
		{
			Year: 2020,
			Tier: "base",
			Reliability: &reliability.Result{
				System:           reliability.RegionResult{Region: reliability.SystemRegion, LOLE: 3, UnservedEnergy: 42},
				SnapshotDuration: time.Hour,
			},
		},
		{
			Year: 2040,
			Err:  &pipeline.YearError{Year: 2040, Stage: pipeline.StageBuild, Err: errors.New("no tier")},
		},
	}}

	var buf bytes.Buffer
	printSummary(&buf, res)
	out := buf.String()

	if !strings.Contains(out, "3 h") {
		t.Fatalf("system LOLE missing:\n%s", out)
	}
	if !strings.Contains(out, "failed (build)") {
		t.Fatalf("failed stage missing:\n%s", out)
	}
}

func TestPrintRuns(t *testing.T) {
	started := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	printRuns(&buf, []storage.Run{
		{ID: "run-a", StartedAt: started, FinishedAt: started.Add(90 * time.Second), Status: storage.RunSucceeded, Solver: "meritorder", Years: []int{2020, 2030}},
		{ID: "run-b", StartedAt: started, Status: storage.RunRunning, Solver: "exec"},
	})
	out := buf.String()

	if !strings.Contains(out, "2020,2030") || !strings.Contains(out, "1m30s") {
		t.Fatalf("unexpected runs table:\n%s", out)
	}
	if !strings.Contains(out, "running") {
		t.Fatalf("running status missing:\n%s", out)
	}
}
