package network

import (
	"fmt"
	"strconv"
)

// BoundKind tags the three states a capacity bound can be in.
type BoundKind uint8

const (
	// BoundAbsent means no bound was set at all.
	BoundAbsent BoundKind = iota
	// BoundFinite carries a numeric limit in Value.
	BoundFinite
	// BoundUnbounded is an explicit "no limit".
	BoundUnbounded
)

// Bound is a capacity or limit that may be absent, finite or explicitly
// unbounded. Unbounded values never travel as math.Inf.
type Bound struct {
	Kind  BoundKind `msgpack:"kind" yaml:"kind"`
	Value float64   `msgpack:"value,omitempty" yaml:"value,omitempty"`
}

func Absent() Bound { return Bound{Kind: BoundAbsent} }

func Finite(v float64) Bound { return Bound{Kind: BoundFinite, Value: v} }

func Unbounded() Bound { return Bound{Kind: BoundUnbounded} }

func (b Bound) IsAbsent() bool    { return b.Kind == BoundAbsent }
func (b Bound) IsFinite() bool    { return b.Kind == BoundFinite }
func (b Bound) IsUnbounded() bool { return b.Kind == BoundUnbounded }

// Float returns the numeric value and true only for finite bounds.
func (b Bound) Float() (float64, bool) {
	if b.Kind != BoundFinite {
		return 0, false
	}
	return b.Value, true
}

func (b Bound) String() string {
	switch b.Kind {
	case BoundFinite:
		return strconv.FormatFloat(b.Value, 'f', -1, 64)
	case BoundUnbounded:
		return "unbounded"
	case BoundAbsent:
		return "none"
	default:
		return fmt.Sprintf("bound(%d)", b.Kind)
	}
}
