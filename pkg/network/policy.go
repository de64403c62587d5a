package network

import (
	"fmt"
	"sort"
	"strings"
)

// Tier is a planning-year tier of the capacity expansion policy. The set of
// tiers is closed: BaseTier, NearTier and FarTier.
type Tier interface {
	fmt.Stringer
	isTier()
}

// BaseTier sizes corridors at the year's realized capacity, fixed.
type BaseTier struct{}

// NearTier starts from base-year capacity and may expand up to the year's
// target capacity.
type NearTier struct{}

// FarTier starts from base-year capacity and may expand without a ceiling.
type FarTier struct{}

func (BaseTier) isTier() {}
func (NearTier) isTier() {}
func (FarTier) isTier()  {}

func (BaseTier) String() string { return "base" }
func (NearTier) String() string { return "near" }
func (FarTier) String() string  { return "far" }

// ParseTier maps a configured tier name to its Tier.
func ParseTier(name string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "base", "historical":
		return BaseTier{}, nil
	case "near", "mid":
		return NearTier{}, nil
	case "far":
		return FarTier{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidTier, name)
}

// LinkSizing is the output of the capacity expansion policy for a corridor.
type LinkSizing struct {
	Capacity    float64
	Extendable  bool
	MaxCapacity Bound
}

// CapacitySource provides recorded or target corridor capacity per year.
type CapacitySource interface {
	TransmissionCapacity(a, b string, year int) (float64, error)
}

// Policy is the year-indexed capacity expansion policy.
type Policy struct {
	BaseYear int
	Tiers    map[int]Tier
}

// Years returns the configured planning years in ascending order.
func (p Policy) Years() []int {
	years := make([]int, 0, len(p.Tiers))
	for y := range p.Tiers {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// TierFor returns the tier configured for year. A missing tier is a
// configuration error; there is no default.
func (p Policy) TierFor(year int) (Tier, error) {
	t, ok := p.Tiers[year]
	if !ok || t == nil {
		return nil, &ConfigError{Year: year, Subject: "planning years", Err: ErrNoTier}
	}
	return t, nil
}

// Resolve computes the sizing of corridor c in the given planning year.
func (p Policy) Resolve(c Corridor, year int, src CapacitySource) (LinkSizing, error) {
	tier, err := p.TierFor(year)
	if err != nil {
		return LinkSizing{}, err
	}

	switch tier.(type) {
	case BaseTier:
		capacity, err := p.capacity(src, c, year)
		if err != nil {
			return LinkSizing{}, err
		}
		return LinkSizing{Capacity: capacity, Extendable: false, MaxCapacity: Absent()}, nil

	case NearTier:
		base, err := p.capacity(src, c, p.BaseYear)
		if err != nil {
			return LinkSizing{}, err
		}
		target, err := p.capacity(src, c, year)
		if err != nil {
			return LinkSizing{}, err
		}
		if target < base {
			return LinkSizing{}, &ConfigError{
				Year:    year,
				Subject: "corridor " + c.String(),
				Err:     fmt.Errorf("%w: target capacity %v below base capacity %v", ErrInvalidCorridor, target, base),
			}
		}
		return LinkSizing{Capacity: base, Extendable: true, MaxCapacity: Finite(target)}, nil

	case FarTier:
		base, err := p.capacity(src, c, p.BaseYear)
		if err != nil {
			return LinkSizing{}, err
		}
		return LinkSizing{Capacity: base, Extendable: true, MaxCapacity: Unbounded()}, nil
	}

	return LinkSizing{}, &ConfigError{Year: year, Subject: "planning years", Err: fmt.Errorf("%w: %v", ErrInvalidTier, tier)}
}

func (p Policy) capacity(src CapacitySource, c Corridor, year int) (float64, error) {
	v, err := src.TransmissionCapacity(c.A, c.B, year)
	if err != nil {
		return 0, fmt.Errorf("corridor %s capacity for %d: %w", c, year, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("corridor %s capacity for %d: negative value %v", c, year, v)
	}
	return v, nil
}
