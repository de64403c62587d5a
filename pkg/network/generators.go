package network

import "fmt"

// addGenerators attaches the year's generator fleet, then one unserved-energy
// generator per region.
func (b *Builder) addGenerators(n *Network, p Provider) ([]Warning, error) {
	var warnings []Warning

	records := p.GeneratorsData(n.Year)
	index := make(map[string]int, len(records))
	n.Generators = make([]Generator, 0, len(records)+len(n.Regions))

	for _, rec := range records {
		if !b.hasRegion(rec.Region) {
			return nil, &ConfigError{Year: n.Year, Subject: "generator " + GeneratorName(rec.Region, rec.Technology), Err: fmt.Errorf("%w %q", ErrUnknownRegion, rec.Region)}
		}
		if rec.Capacity < 0 {
			return nil, fmt.Errorf("generator %s: negative capacity %v", GeneratorName(rec.Region, rec.Technology), rec.Capacity)
		}

		name := GeneratorName(rec.Region, rec.Technology)
		if i, dup := index[name]; dup {
			existing, _ := n.Generators[i].Capacity.Float()
			n.Generators[i].Capacity = Finite(existing + rec.Capacity)
			warnings = append(warnings, Warning{
				Kind:       DuplicateGenerator,
				Region:     rec.Region,
				Technology: rec.Technology,
				Message:    fmt.Sprintf("generator %s listed more than once, capacities summed", name),
			})
			continue
		}

		gen := Generator{
			Name:         name,
			Region:       rec.Region,
			Technology:   rec.Technology,
			Capacity:     Finite(rec.Capacity),
			MarginalCost: b.settings.marginalCost(rec.Technology),
			MinPerUnit:   b.settings.minOutput(rec.Technology),
			MaxPerUnit:   1.0,
		}

		if b.settings.isVariable(rec.Technology) {
			profile, ok := p.RenewableProfile(rec.Region, rec.Technology)
			if ok {
				if len(profile) != len(n.Snapshots) {
					return nil, fmt.Errorf("availability profile for %s: %w (%d values, %d snapshots)", name, ErrSeriesLength, len(profile), len(n.Snapshots))
				}
				gen.Availability = append([]float64(nil), profile...)
			} else {
				warnings = append(warnings, Warning{
					Kind:       MissingProfile,
					Region:     rec.Region,
					Technology: rec.Technology,
					Message:    fmt.Sprintf("no availability profile for %s, using flat bound", name),
				})
			}
		}

		index[name] = len(n.Generators)
		n.Generators = append(n.Generators, gen)
	}
	b.log.Debugf("Added %d generators", len(n.Generators))

	b.addENSGenerators(n)
	return warnings, nil
}

// addENSGenerators adds one unbounded, high-cost slack generator per region
// so the dispatch problem is always feasible on the supply side.
func (b *Builder) addENSGenerators(n *Network) {
	for _, r := range n.Regions {
		n.Generators = append(n.Generators, Generator{
			Name:         ENSName(r.ID),
			Region:       r.ID,
			Technology:   CarrierENS,
			Capacity:     Unbounded(),
			MarginalCost: b.settings.ENSCost,
			MinPerUnit:   0,
			MaxPerUnit:   1.0,
		})
	}
	b.log.Debugf("Added %d ENS virtual generators", len(n.Regions))
}

func (b *Builder) hasRegion(id string) bool {
	for _, r := range b.settings.Regions {
		if r == id {
			return true
		}
	}
	return false
}
