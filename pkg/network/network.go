package network

import (
	"fmt"
	"time"
)

const (
	CarrierAC = "AC"
	// CarrierENS tags the unserved-energy slack generators.
	CarrierENS = "ENS"
)

// Status is the solve state of a network. Only optimizers change it.
type Status uint8

const (
	Unsolved Status = iota
	Optimal
	Infeasible
)

func (s Status) String() string {
	switch s {
	case Unsolved:
		return "unsolved"
	case Optimal:
		return "optimal"
	case Infeasible:
		return "infeasible"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Snapshot is one time step of the planning horizon. A zero Weight means
// unset and counts as 1.
type Snapshot struct {
	Time   time.Time `msgpack:"time"`
	Weight float64   `msgpack:"weight"`
}

type Region struct {
	ID      string `msgpack:"id"`
	Carrier string `msgpack:"carrier"`
}

// Corridor is a configured bidirectional transmission relationship.
type Corridor struct {
	A string
	B string
}

func (c Corridor) String() string { return c.A + "-" + c.B }

// DirectedLink is one direction of a corridor.
type DirectedLink struct {
	Name        string  `msgpack:"name"`
	From        string  `msgpack:"from"`
	To          string  `msgpack:"to"`
	Capacity    float64 `msgpack:"capacity"`
	Extendable  bool    `msgpack:"extendable"`
	MaxCapacity Bound   `msgpack:"max_capacity"`
	MinPerUnit  float64 `msgpack:"min_pu"`
	MaxPerUnit  float64 `msgpack:"max_pu"`
	HurdleCost  float64 `msgpack:"hurdle_cost"`

	// Solver outputs.
	Flow            []float64 `msgpack:"flow,omitempty"`
	OptimalCapacity float64   `msgpack:"optimal_capacity,omitempty"`
}

// Corridor returns the unordered pair this link belongs to, in link orientation.
func (l DirectedLink) Corridor() Corridor { return Corridor{A: l.From, B: l.To} }

type Load struct {
	Name   string    `msgpack:"name"`
	Region string    `msgpack:"region"`
	Demand []float64 `msgpack:"demand"`
}

type Generator struct {
	Name         string    `msgpack:"name"`
	Region       string    `msgpack:"region"`
	Technology   string    `msgpack:"technology"`
	Capacity     Bound     `msgpack:"capacity"`
	MarginalCost float64   `msgpack:"marginal_cost"`
	MinPerUnit   float64   `msgpack:"min_pu"`
	MaxPerUnit   float64   `msgpack:"max_pu"`
	Availability []float64 `msgpack:"availability,omitempty"`

	// Solver output.
	Dispatch []float64 `msgpack:"dispatch,omitempty"`
}

// IsENS reports whether g is an unserved-energy slack generator.
func (g Generator) IsENS() bool { return g.Technology == CarrierENS }

// MaxPerUnitAt is the per-unit output ceiling at snapshot t.
func (g Generator) MaxPerUnitAt(t int) float64 {
	if g.Availability != nil && t < len(g.Availability) {
		return g.Availability[t]
	}
	return g.MaxPerUnit
}

// Network is the model for one planning year.
type Network struct {
	Year       int            `msgpack:"year"`
	Snapshots  []Snapshot     `msgpack:"snapshots"`
	Regions    []Region       `msgpack:"regions"`
	Links      []DirectedLink `msgpack:"links"`
	Loads      []Load         `msgpack:"loads"`
	Generators []Generator    `msgpack:"generators"`

	Status    Status  `msgpack:"status"`
	Objective float64 `msgpack:"objective"`
	Solver    string  `msgpack:"solver,omitempty"`
}

// ENSName is the name of the unserved-energy generator of a region.
func ENSName(region string) string { return region + "-" + CarrierENS }

func LinkName(from, to string) string { return from + "-" + to }

func LoadName(region string) string { return region + "-load" }

func GeneratorName(region, technology string) string { return region + "-" + technology }

// ENS returns the unserved-energy generator of region.
func (n *Network) ENS(region string) (*Generator, bool) {
	return n.Generator(ENSName(region))
}

func (n *Network) Generator(name string) (*Generator, bool) {
	for i := range n.Generators {
		if n.Generators[i].Name == name {
			return &n.Generators[i], true
		}
	}
	return nil, false
}

func (n *Network) Link(name string) (*DirectedLink, bool) {
	for i := range n.Links {
		if n.Links[i].Name == name {
			return &n.Links[i], true
		}
	}
	return nil, false
}

func (n *Network) Load(region string) (*Load, bool) {
	for i := range n.Loads {
		if n.Loads[i].Region == region {
			return &n.Loads[i], true
		}
	}
	return nil, false
}

// DemandAt is the exogenous demand of region at snapshot t. Regions without
// a load have zero demand.
func (n *Network) DemandAt(region string, t int) float64 {
	l, ok := n.Load(region)
	if !ok || t >= len(l.Demand) {
		return 0
	}
	return l.Demand[t]
}

// SnapshotDuration is the spacing of the snapshot index. It falls back to one
// hour when fewer than two snapshots exist or the spacing is not positive.
func (n *Network) SnapshotDuration() time.Duration {
	if len(n.Snapshots) < 2 {
		return time.Hour
	}
	d := n.Snapshots[1].Time.Sub(n.Snapshots[0].Time)
	if d <= 0 {
		return time.Hour
	}
	return d
}

// ResetDispatch clears every solver output and marks the network unsolved.
func (n *Network) ResetDispatch() {
	for i := range n.Generators {
		n.Generators[i].Dispatch = nil
	}
	for i := range n.Links {
		n.Links[i].Flow = nil
		n.Links[i].OptimalCapacity = 0
	}
	n.Status = Unsolved
	n.Objective = 0
	n.Solver = ""
}

// Clone returns a deep copy of n.
func (n *Network) Clone() *Network {
	c := *n
	c.Snapshots = append([]Snapshot(nil), n.Snapshots...)
	c.Regions = append([]Region(nil), n.Regions...)

	c.Links = append([]DirectedLink(nil), n.Links...)
	for i := range c.Links {
		c.Links[i].Flow = cloneSeries(c.Links[i].Flow)
	}

	c.Loads = append([]Load(nil), n.Loads...)
	for i := range c.Loads {
		c.Loads[i].Demand = cloneSeries(c.Loads[i].Demand)
	}

	c.Generators = append([]Generator(nil), n.Generators...)
	for i := range c.Generators {
		c.Generators[i].Availability = cloneSeries(c.Generators[i].Availability)
		c.Generators[i].Dispatch = cloneSeries(c.Generators[i].Dispatch)
	}
	return &c
}

func cloneSeries(s []float64) []float64 {
	if s == nil {
		return nil
	}
	return append([]float64(nil), s...)
}
