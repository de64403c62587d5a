package optimize

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/sw33tLie/powerlole/pkg/network"
)

const MeritOrderName = "meritorder"

const eps = 1e-9

// MeritOrder is a built-in heuristic economic dispatch used when no external
// LP solver is configured. Per snapshot it runs must-run output first, then
// fills demand in global merit order from local generation and imports routed
// over corridors with room left, and covers whatever is left with the ENS
// generators.
//
// Both directed links of a corridor share one limit: flow A->B and B->A are
// netted into a single corridor flow.
type MeritOrder struct{}

func NewMeritOrder() *MeritOrder { return &MeritOrder{} }

func (*MeritOrder) Name() string { return MeritOrderName }

type corridor struct {
	a, b       int
	fwd, rev   int
	base       float64
	extendable bool
	max        network.Bound
	hurdle     float64
	peak       float64
}

// limit is the corridor limit for the pass. The extended limit applies only
// to extendable corridors; absent or unbounded ceilings mean no limit.
func (c *corridor) limit(extended bool) float64 {
	if !extended || !c.extendable {
		return c.base
	}
	if v, ok := c.max.Float(); ok {
		return math.Max(c.base, v)
	}
	return math.Inf(1)
}

// room is the remaining transfer from region `from` across c given the net
// flow f (positive means a->b).
func (c *corridor) room(from int, f float64, extended bool) float64 {
	l := c.limit(extended)
	if from == c.a {
		return math.Max(0, l-f)
	}
	return math.Max(0, l+f)
}

func (c *corridor) other(r int) int {
	if r == c.a {
		return c.b
	}
	return c.a
}

func (m *MeritOrder) Solve(ctx context.Context, n *network.Network) (*network.Network, error) {
	n.ResetDispatch()

	steps := len(n.Snapshots)
	if steps == 0 {
		return n, fail(n, MeritOrderName, "", fmt.Errorf("%w: no snapshots", ErrSolveFailed))
	}

	regionIdx := make(map[string]int, len(n.Regions))
	for i, r := range n.Regions {
		regionIdx[r.ID] = i
	}

	ens := make([]int, len(n.Regions))
	for i := range ens {
		ens[i] = -1
	}
	genRegion := make([]int, len(n.Generators))
	var flexible []int
	for gi, g := range n.Generators {
		r, ok := regionIdx[g.Region]
		if !ok {
			return n, fail(n, MeritOrderName, "", fmt.Errorf("%w: generator %s in unknown region %q", ErrSolveFailed, g.Name, g.Region))
		}
		genRegion[gi] = r
		if g.IsENS() {
			ens[r] = gi
			continue
		}
		if !g.Capacity.IsFinite() {
			return n, fail(n, MeritOrderName, "", fmt.Errorf("%w: generator %s has no finite capacity", ErrSolveFailed, g.Name))
		}
		flexible = append(flexible, gi)
	}
	for r, gi := range ens {
		if gi < 0 {
			return n, fail(n, MeritOrderName, "", fmt.Errorf("%w: region %s has no ENS generator", ErrSolveFailed, n.Regions[r].ID))
		}
	}
	sort.SliceStable(flexible, func(i, j int) bool {
		gi, gj := n.Generators[flexible[i]], n.Generators[flexible[j]]
		if gi.MarginalCost != gj.MarginalCost {
			return gi.MarginalCost < gj.MarginalCost
		}
		return gi.Name < gj.Name
	})

	corridors, err := pairLinks(n, regionIdx)
	if err != nil {
		return n, fail(n, MeritOrderName, "", err)
	}
	adjacent := make([][]int, len(n.Regions))
	for ci, c := range corridors {
		adjacent[c.a] = append(adjacent[c.a], ci)
		adjacent[c.b] = append(adjacent[c.b], ci)
	}

	for gi := range n.Generators {
		n.Generators[gi].Dispatch = make([]float64, steps)
	}
	for li := range n.Links {
		n.Links[li].Flow = make([]float64, steps)
	}

	residual := make([]float64, len(n.Regions))
	spare := make([]float64, len(n.Generators))
	flow := make([]float64, len(corridors))

	for t := 0; t < steps; t++ {
		if t%256 == 0 {
			if err := ctx.Err(); err != nil {
				return n, fail(n, MeritOrderName, "", err)
			}
		}

		for r, region := range n.Regions {
			residual[r] = n.DemandAt(region.ID, t)
		}
		for ci := range flow {
			flow[ci] = 0
		}

		for _, gi := range flexible {
			g := &n.Generators[gi]
			capacity, _ := g.Capacity.Float()
			avail := capacity * g.MaxPerUnitAt(t)
			must := math.Min(capacity*g.MinPerUnit, avail)
			g.Dispatch[t] = must
			spare[gi] = avail - must
			residual[genRegion[gi]] -= must
		}

		// Must-run surplus has to be exported; there is no curtailment.
		for r := range residual {
			if residual[r] < -eps {
				residual[r] += route(r, -residual[r], residual, corridors, flow, adjacent, true)
			}
		}
		for r, v := range residual {
			if v < -eps {
				return n, fail(n, MeritOrderName, network.Infeasible.String(),
					fmt.Errorf("%w: must-run output exceeds demand by %.3f in region %s at snapshot %d", ErrInfeasible, -v, n.Regions[r].ID, t))
			}
		}

		for _, extended := range []bool{false, true} {
			for _, gi := range flexible {
				if spare[gi] <= eps {
					continue
				}
				g := &n.Generators[gi]
				r := genRegion[gi]

				if residual[r] > eps {
					amt := math.Min(spare[gi], residual[r])
					g.Dispatch[t] += amt
					spare[gi] -= amt
					residual[r] -= amt
				}

				if spare[gi] > eps {
					sent := route(r, spare[gi], residual, corridors, flow, adjacent, extended)
					g.Dispatch[t] += sent
					spare[gi] -= sent
				}
			}
		}

		for r, v := range residual {
			if v > eps {
				n.Generators[ens[r]].Dispatch[t] = v
			}
		}

		for ci, c := range corridors {
			f := flow[ci]
			switch {
			case f > 0:
				n.Links[c.fwd].Flow[t] = f
			case f < 0 && c.rev >= 0:
				n.Links[c.rev].Flow[t] = -f
			case f < 0:
				n.Links[c.fwd].Flow[t] = f
			}
		}
	}

	for _, c := range corridors {
		capacity := c.base
		if c.extendable && c.peak > capacity {
			capacity = c.peak
		}
		n.Links[c.fwd].OptimalCapacity = capacity
		if c.rev >= 0 {
			n.Links[c.rev].OptimalCapacity = capacity
		}
	}

	n.Objective = objective(n)
	n.Status = network.Optimal
	n.Solver = MeritOrderName
	return n, nil
}

// route sends up to amt from region src to regions with unmet demand. Each
// round picks the nearest such region reachable over corridors with room
// left and pushes the path bottleneck along it. It returns the amount
// delivered; residual and flow are updated in place.
func route(src int, amt float64, residual []float64, corridors []corridor, flow []float64, adjacent [][]int, extended bool) float64 {
	var delivered float64
	via := make([]int, len(residual))
	queue := make([]int, 0, len(residual))

	for amt-delivered > eps {
		for i := range via {
			via[i] = -1
		}
		dst := -1
		queue = append(queue[:0], src)
		for len(queue) > 0 && dst < 0 {
			r := queue[0]
			queue = queue[1:]
			for _, ci := range adjacent[r] {
				c := &corridors[ci]
				q := c.other(r)
				if q == src || via[q] >= 0 || c.room(r, flow[ci], extended) <= eps {
					continue
				}
				via[q] = ci
				if residual[q] > eps {
					dst = q
					break
				}
				queue = append(queue, q)
			}
		}
		if dst < 0 {
			break
		}

		send := math.Min(amt-delivered, residual[dst])
		for q := dst; q != src; {
			c := &corridors[via[q]]
			from := c.other(q)
			send = math.Min(send, c.room(from, flow[via[q]], extended))
			q = from
		}
		for q := dst; q != src; {
			c := &corridors[via[q]]
			from := c.other(q)
			transfer(c, flow, via[q], from, send)
			q = from
		}
		residual[dst] -= send
		delivered += send
	}
	return delivered
}

// transfer moves amt from region `from` across corridor ci.
func transfer(c *corridor, flow []float64, ci, from int, amt float64) {
	if from == c.a {
		flow[ci] += amt
	} else {
		flow[ci] -= amt
	}
	if v := math.Abs(flow[ci]); v > c.peak {
		c.peak = v
	}
}

// pairLinks groups directed links into corridors. A link without a reverse
// twin forms a corridor on its own.
func pairLinks(n *network.Network, regionIdx map[string]int) ([]corridor, error) {
	var out []corridor
	seen := make(map[[2]int]int)
	for li, l := range n.Links {
		a, okA := regionIdx[l.From]
		b, okB := regionIdx[l.To]
		if !okA || !okB {
			return nil, fmt.Errorf("%w: link %s references an unknown region", ErrSolveFailed, l.Name)
		}
		if ci, ok := seen[[2]int{b, a}]; ok && out[ci].rev < 0 {
			out[ci].rev = li
			continue
		}
		seen[[2]int{a, b}] = len(out)
		out = append(out, corridor{
			a:          a,
			b:          b,
			fwd:        li,
			rev:        -1,
			base:       l.Capacity,
			extendable: l.Extendable,
			max:        l.MaxCapacity,
			hurdle:     l.HurdleCost,
		})
	}
	return out, nil
}

func objective(n *network.Network) float64 {
	var total float64
	for t, s := range n.Snapshots {
		w := s.Weight
		if w <= 0 {
			w = 1
		}
		var cost float64
		for _, g := range n.Generators {
			cost += g.MarginalCost * g.Dispatch[t]
		}
		for _, l := range n.Links {
			cost += l.HurdleCost * math.Abs(l.Flow[t])
		}
		total += w * cost
	}
	return total
}
