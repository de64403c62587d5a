package network

import "fmt"

// addLoads attaches scaled demand to every region that has both raw demand
// and a scale factor for the year. Regions missing either are skipped with a
// warning and carry no exogenous demand.
func (b *Builder) addLoads(n *Network, p Provider) ([]Warning, error) {
	demand := p.DemandData()
	factors := p.DemandScaleFactors(n.Year)

	var warnings []Warning
	n.Loads = make([]Load, 0, len(b.settings.Regions))
	for _, region := range b.settings.Regions {
		raw, hasDemand := demand[region]
		factor, hasFactor := factors[region]
		if !hasDemand || !hasFactor {
			warnings = append(warnings, Warning{
				Kind:    MissingLoad,
				Region:  region,
				Message: fmt.Sprintf("region %s is missing %s", region, missingLoadInput(hasDemand, hasFactor)),
			})
			continue
		}
		if len(raw) != len(n.Snapshots) {
			return nil, fmt.Errorf("demand for region %s: %w (%d values, %d snapshots)", region, ErrSeriesLength, len(raw), len(n.Snapshots))
		}

		series := make([]float64, len(raw))
		for t, v := range raw {
			series[t] = v * factor
		}
		n.Loads = append(n.Loads, Load{Name: LoadName(region), Region: region, Demand: series})
	}
	b.log.Debugf("Added %d regional loads", len(n.Loads))
	return warnings, nil
}

func missingLoadInput(hasDemand, hasFactor bool) string {
	switch {
	case !hasDemand && !hasFactor:
		return "load data and scaling factor"
	case !hasDemand:
		return "load data"
	default:
		return "scaling factor"
	}
}
