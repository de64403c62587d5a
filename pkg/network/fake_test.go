package network

import (
	"fmt"
	"time"
)

type corridorYear struct {
	a, b string
	year int
}

type fakeProvider struct {
	snapshots  []Snapshot
	capacities map[corridorYear]float64
	demand     map[string][]float64
	factors    map[int]map[string]float64
	generators map[int][]GeneratorRecord
	profiles   map[string][]float64
}

func newFakeProvider(hours int) *fakeProvider {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	snaps := make([]Snapshot, hours)
	for i := range snaps {
		snaps[i] = Snapshot{Time: start.Add(time.Duration(i) * time.Hour), Weight: 1}
	}
	return &fakeProvider{
		snapshots:  snaps,
		capacities: map[corridorYear]float64{},
		demand:     map[string][]float64{},
		factors:    map[int]map[string]float64{},
		generators: map[int][]GeneratorRecord{},
		profiles:   map[string][]float64{},
	}
}

func (f *fakeProvider) setCapacity(a, b string, year int, v float64) {
	f.capacities[corridorYear{a, b, year}] = v
}

func (f *fakeProvider) Timestamps() []Snapshot { return f.snapshots }

func (f *fakeProvider) TransmissionCapacity(a, b string, year int) (float64, error) {
	if v, ok := f.capacities[corridorYear{a, b, year}]; ok {
		return v, nil
	}
	if v, ok := f.capacities[corridorYear{b, a, year}]; ok {
		return v, nil
	}
	return 0, fmt.Errorf("no capacity for %s-%s in %d", a, b, year)
}

func (f *fakeProvider) DemandData() map[string][]float64 { return f.demand }

func (f *fakeProvider) DemandScaleFactors(year int) map[string]float64 { return f.factors[year] }

func (f *fakeProvider) GeneratorsData(year int) []GeneratorRecord { return f.generators[year] }

func (f *fakeProvider) RenewableProfile(region, technology string) ([]float64, bool) {
	p, ok := f.profiles[region+"-"+technology]
	return p, ok
}

func flat(n int, v float64) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = v
	}
	return s
}

func testPolicy() Policy {
	return Policy{
		BaseYear: 2020,
		Tiers: map[int]Tier{
			2020: BaseTier{},
			2030: NearTier{},
			2050: FarTier{},
		},
	}
}

func testSettings() Settings {
	return Settings{
		Regions:       []string{"A", "B"},
		Corridors:     []Corridor{{A: "A", B: "B"}},
		Policy:        testPolicy(),
		ENSCost:       10000,
		HurdleCost:    0.1,
		MinOutput:     map[string]float64{"coal": 0.3},
		MarginalCosts: map[string]float64{"coal": 30, "wind": 0},
	}
}
