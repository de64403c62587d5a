package network

import (
	"context"
	"fmt"
	"strings"
)

// DefaultMarginalCost is used for technologies without a configured cost.
const DefaultMarginalCost = 100.0

// DefaultVariableTechnologies have time-varying availability profiles.
var DefaultVariableTechnologies = []string{"wind", "solar", "hydro"}

// Settings is the read-only configuration a Builder needs. It is shared
// between years and never mutated by the builder.
type Settings struct {
	Regions   []string
	Corridors []Corridor
	Policy    Policy

	ENSCost    float64
	HurdleCost float64

	// Technology keys match case-insensitively.
	MinOutput     map[string]float64
	MarginalCosts map[string]float64
	// DefaultMarginalCost applies to technologies without a configured cost.
	// Nil falls back to the package DefaultMarginalCost; zero is a valid cost.
	DefaultMarginalCost  *float64
	VariableTechnologies []string
}

// techValue looks tech up in m, preferring an exact key.
func techValue(m map[string]float64, tech string) (float64, bool) {
	if v, ok := m[tech]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, tech) {
			return v, true
		}
	}
	return 0, false
}

func (s Settings) marginalCost(tech string) float64 {
	if c, ok := techValue(s.MarginalCosts, tech); ok {
		return c
	}
	if s.DefaultMarginalCost != nil {
		return *s.DefaultMarginalCost
	}
	return DefaultMarginalCost
}

func (s Settings) minOutput(tech string) float64 {
	v, _ := techValue(s.MinOutput, tech)
	return v
}

func (s Settings) isVariable(tech string) bool {
	techs := s.VariableTechnologies
	if techs == nil {
		techs = DefaultVariableTechnologies
	}
	for _, t := range techs {
		if strings.EqualFold(t, tech) {
			return true
		}
	}
	return false
}

// BuildResult is an assembled, unsolved network plus the data gaps found
// while assembling it.
type BuildResult struct {
	Network  *Network
	Warnings []Warning
}

// Builder assembles one network per planning year.
type Builder struct {
	settings Settings
	log      Logger
}

// NewBuilder returns a Builder. A nil logger discards messages.
func NewBuilder(settings Settings, log Logger) *Builder {
	if log == nil {
		log = NopLogger()
	}
	return &Builder{settings: settings, log: log}
}

// Build assembles the network for year. Steps run in order and each depends
// on the previous one; on error nothing is returned.
func (b *Builder) Build(ctx context.Context, year int, p Provider) (*BuildResult, error) {
	b.log.Infof("Creating network model for year %d", year)

	if _, err := b.settings.Policy.TierFor(year); err != nil {
		return nil, err
	}
	if err := b.settings.validateTopology(year); err != nil {
		return nil, err
	}

	n := &Network{Year: year, Status: Unsolved}

	snapshots := p.Timestamps()
	if len(snapshots) == 0 {
		return nil, fmt.Errorf("year %d: %w", year, ErrNoSnapshots)
	}
	n.Snapshots = append([]Snapshot(nil), snapshots...)
	for i := range n.Snapshots {
		switch w := n.Snapshots[i].Weight; {
		case w == 0:
			n.Snapshots[i].Weight = 1
		case w < 0:
			return nil, fmt.Errorf("year %d: snapshot %d has negative weight %v", year, i, w)
		}
	}

	b.addRegions(n)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := b.addCorridors(n, p); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	loadWarnings, err := b.addLoads(n, p)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	genWarnings, err := b.addGenerators(n, p)
	if err != nil {
		return nil, err
	}

	warnings := append(loadWarnings, genWarnings...)
	for _, w := range warnings {
		b.log.Warnf("Year %d: %s", year, w.Message)
	}

	b.log.Infof("Network model for year %d created successfully", year)
	return &BuildResult{Network: n, Warnings: warnings}, nil
}
