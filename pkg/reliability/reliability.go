// Package reliability derives Loss-of-Load Expectation from the dispatch of
// the unserved-energy generators of a solved network.
package reliability

import (
	"errors"
	"fmt"
	"time"

	"github.com/sw33tLie/powerlole/pkg/network"
)

// DefaultTolerance absorbs solver noise on ENS dispatch, in MW.
const DefaultTolerance = 1e-3

var (
	ErrNotSolved  = errors.New("network is not solved to optimality")
	ErrMissingENS = errors.New("region has no unserved-energy dispatch")
)

// RegionResult is the reliability of one region.
type RegionResult struct {
	Region string
	// LOLE is the weighted count of snapshots with unserved energy, in
	// snapshot units.
	LOLE float64
	// Events is the unweighted count of such snapshots.
	Events int
	// UnservedEnergy is the weighted sum of ENS dispatch (MW x snapshot units).
	UnservedEnergy float64
	PeakUnserved   float64
}

// Result is the reliability of one solved network. It is derived data and is
// never written back into the network.
type Result struct {
	Year    int
	Regions []RegionResult
	// System counts snapshots where the summed ENS dispatch of all regions
	// exceeds the tolerance.
	System RegionResult
	// SnapshotDuration is the length of one snapshot unit.
	SnapshotDuration time.Duration
	Tolerance        float64
}

// SystemRegion labels the aggregate row.
const SystemRegion = "SYSTEM"

// Region returns the result of one region.
func (r *Result) Region(id string) (RegionResult, bool) {
	for _, rr := range r.Regions {
		if rr.Region == id {
			return rr, true
		}
	}
	return RegionResult{}, false
}

// Unit is the time unit LOLE values are expressed in.
func (r *Result) Unit() string {
	switch r.SnapshotDuration {
	case time.Hour:
		return "h"
	case 30 * time.Minute:
		return "30min"
	case 24 * time.Hour:
		return "d"
	}
	return r.SnapshotDuration.String()
}

// LOLEHours converts a LOLE value in snapshot units to hours.
func (r *Result) LOLEHours(lole float64) float64 {
	return lole * r.SnapshotDuration.Hours()
}

// Analyzer computes LOLE. The zero value uses DefaultTolerance.
type Analyzer struct {
	Tolerance float64
}

func (a Analyzer) tolerance() float64 {
	if a.Tolerance > 0 {
		return a.Tolerance
	}
	return DefaultTolerance
}

// Analyze computes per-region and system LOLE of a solved network. It only
// reads n and returns the same result on every call.
func (a Analyzer) Analyze(n *network.Network) (*Result, error) {
	if n == nil || n.Status != network.Optimal {
		status := "nil"
		if n != nil {
			status = n.Status.String()
		}
		return nil, fmt.Errorf("%w (status %s)", ErrNotSolved, status)
	}

	tol := a.tolerance()
	steps := len(n.Snapshots)

	res := &Result{
		Year:             n.Year,
		Regions:          make([]RegionResult, 0, len(n.Regions)),
		System:           RegionResult{Region: SystemRegion},
		SnapshotDuration: n.SnapshotDuration(),
		Tolerance:        tol,
	}

	total := make([]float64, steps)
	for _, region := range n.Regions {
		ens, ok := n.ENS(region.ID)
		if !ok || len(ens.Dispatch) != steps {
			return nil, fmt.Errorf("%w: %s", ErrMissingENS, region.ID)
		}

		rr := RegionResult{Region: region.ID}
		for t, p := range ens.Dispatch {
			w := weight(n.Snapshots[t])
			if p > tol {
				rr.LOLE += w
				rr.Events++
			}
			if p > 0 {
				rr.UnservedEnergy += w * p
				total[t] += p
			}
			if p > rr.PeakUnserved {
				rr.PeakUnserved = p
			}
		}
		res.Regions = append(res.Regions, rr)
	}

	for t, p := range total {
		w := weight(n.Snapshots[t])
		if p > tol {
			res.System.LOLE += w
			res.System.Events++
		}
		res.System.UnservedEnergy += w * p
		if p > res.System.PeakUnserved {
			res.System.PeakUnserved = p
		}
	}

	return res, nil
}

func weight(s network.Snapshot) float64 {
	if s.Weight > 0 {
		return s.Weight
	}
	return 1
}
