package optimize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/sw33tLie/powerlole/pkg/network"
	"github.com/tidwall/gjson"
)

const ExecName = "exec"

// ExecSolver delegates the solve to an external program. The network is
// written as JSON to the program's stdin; the program answers on stdout with
//
//	{"status": "optimal", "objective": 1.0,
//	 "generators": {"<name>": [p0, p1, ...]},
//	 "links": {"<name>": {"flow": [...], "capacity": 1200}}}
type ExecSolver struct {
	Command string
	Args    []string
	// Env is appended to the current environment of the solver process.
	Env []string
	// Timeout bounds one solve. Zero means only the caller's context applies.
	Timeout time.Duration
}

func (s *ExecSolver) Name() string { return ExecName }

type boundJSON struct {
	Kind  string   `json:"kind"`
	Value *float64 `json:"value,omitempty"`
}

func encodeBound(b network.Bound) boundJSON {
	out := boundJSON{Kind: "none"}
	switch {
	case b.IsUnbounded():
		out.Kind = "unbounded"
	case b.IsFinite():
		v := b.Value
		out.Kind = "finite"
		out.Value = &v
	}
	return out
}

type snapshotJSON struct {
	Time   time.Time `json:"time"`
	Weight float64   `json:"weight"`
}

type linkJSON struct {
	Name        string    `json:"name"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	Capacity    float64   `json:"capacity"`
	Extendable  bool      `json:"extendable"`
	MaxCapacity boundJSON `json:"max_capacity"`
	MinPerUnit  float64   `json:"min_pu"`
	MaxPerUnit  float64   `json:"max_pu"`
	HurdleCost  float64   `json:"marginal_cost"`
}

type loadJSON struct {
	Name   string    `json:"name"`
	Bus    string    `json:"bus"`
	Demand []float64 `json:"p_set"`
}

type generatorJSON struct {
	Name         string    `json:"name"`
	Bus          string    `json:"bus"`
	Carrier      string    `json:"carrier"`
	Capacity     boundJSON `json:"p_nom"`
	MarginalCost float64   `json:"marginal_cost"`
	MinPerUnit   float64   `json:"p_min_pu"`
	MaxPerUnit   float64   `json:"p_max_pu"`
	Availability []float64 `json:"p_max_pu_t,omitempty"`
}

type requestJSON struct {
	Year       int             `json:"year"`
	Snapshots  []snapshotJSON  `json:"snapshots"`
	Buses      []string        `json:"buses"`
	Links      []linkJSON      `json:"links"`
	Loads      []loadJSON      `json:"loads"`
	Generators []generatorJSON `json:"generators"`
}

func encodeRequest(n *network.Network) ([]byte, error) {
	req := requestJSON{Year: n.Year}
	for _, s := range n.Snapshots {
		req.Snapshots = append(req.Snapshots, snapshotJSON{Time: s.Time, Weight: s.Weight})
	}
	for _, r := range n.Regions {
		req.Buses = append(req.Buses, r.ID)
	}
	for _, l := range n.Links {
		req.Links = append(req.Links, linkJSON{
			Name: l.Name, From: l.From, To: l.To,
			Capacity: l.Capacity, Extendable: l.Extendable, MaxCapacity: encodeBound(l.MaxCapacity),
			MinPerUnit: l.MinPerUnit, MaxPerUnit: l.MaxPerUnit, HurdleCost: l.HurdleCost,
		})
	}
	for _, l := range n.Loads {
		req.Loads = append(req.Loads, loadJSON{Name: l.Name, Bus: l.Region, Demand: l.Demand})
	}
	for _, g := range n.Generators {
		req.Generators = append(req.Generators, generatorJSON{
			Name: g.Name, Bus: g.Region, Carrier: g.Technology,
			Capacity: encodeBound(g.Capacity), MarginalCost: g.MarginalCost,
			MinPerUnit: g.MinPerUnit, MaxPerUnit: g.MaxPerUnit, Availability: g.Availability,
		})
	}
	return json.Marshal(req)
}

func (s *ExecSolver) Solve(ctx context.Context, n *network.Network) (*network.Network, error) {
	n.ResetDispatch()

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	payload, err := encodeRequest(n)
	if err != nil {
		return n, fail(n, ExecName, "", fmt.Errorf("%w: encoding request: %v", ErrSolveFailed, err))
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.Command, s.Args...)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if len(s.Env) > 0 {
		cmd.Env = append(os.Environ(), s.Env...)
	}

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return n, fail(n, ExecName, "", ctxErr)
		}
		return n, fail(n, ExecName, "", fmt.Errorf("%w: %v: %s", ErrSolveFailed, err, strings.TrimSpace(stderr.String())))
	}

	if err := applyResponse(n, stdout.String()); err != nil {
		status := gjson.Get(stdout.String(), "status").String()
		return n, fail(n, ExecName, status, err)
	}
	n.Solver = ExecName
	return n, nil
}

// applyResponse copies the solver's dispatch into n. Every generator must be
// present with one value per snapshot.
func applyResponse(n *network.Network, body string) error {
	if !gjson.Valid(body) {
		return fmt.Errorf("%w: solver output is not valid JSON", ErrSolveFailed)
	}

	status := strings.ToLower(gjson.Get(body, "status").String())
	switch status {
	case "optimal", "ok":
	case "infeasible":
		return ErrInfeasible
	default:
		return fmt.Errorf("%w: solver reported status %q", ErrSolveFailed, status)
	}

	steps := len(n.Snapshots)

	dispatch := make(map[string]gjson.Result)
	gjson.Get(body, "generators").ForEach(func(key, value gjson.Result) bool {
		dispatch[key.String()] = value
		return true
	})
	for i := range n.Generators {
		g := &n.Generators[i]
		res, ok := dispatch[g.Name]
		if !ok {
			return fmt.Errorf("%w: dispatch for generator %s missing", ErrSolveFailed, g.Name)
		}
		p, err := floats(res)
		if err != nil {
			return fmt.Errorf("dispatch for generator %s: %w", g.Name, err)
		}
		if len(p) != steps {
			return fmt.Errorf("%w: dispatch for generator %s has wrong length", ErrSolveFailed, g.Name)
		}
		g.Dispatch = p
	}

	links := make(map[string]gjson.Result)
	gjson.Get(body, "links").ForEach(func(key, value gjson.Result) bool {
		links[key.String()] = value
		return true
	})
	for i := range n.Links {
		l := &n.Links[i]
		res, ok := links[l.Name]
		if !ok {
			return fmt.Errorf("%w: flow for link %s missing", ErrSolveFailed, l.Name)
		}
		flow, err := floats(res.Get("flow"))
		if err != nil {
			return fmt.Errorf("flow for link %s: %w", l.Name, err)
		}
		if len(flow) != steps {
			return fmt.Errorf("%w: flow for link %s has wrong length", ErrSolveFailed, l.Name)
		}
		l.Flow = flow
		l.OptimalCapacity = l.Capacity
		if c := res.Get("capacity"); c.Exists() {
			if c.Type != gjson.Number {
				return fmt.Errorf("%w: capacity for link %s is not a number", ErrSolveFailed, l.Name)
			}
			l.OptimalCapacity = c.Float()
		}
	}

	obj := gjson.Get(body, "objective")
	if obj.Exists() && obj.Type != gjson.Number {
		return fmt.Errorf("%w: objective is not a number", ErrSolveFailed)
	}
	n.Objective = obj.Float()
	n.Status = network.Optimal
	return nil
}

// floats decodes a JSON array of numbers. Nulls, strings and anything else
// that is not a number fail the solve instead of reading as zero.
func floats(r gjson.Result) ([]float64, error) {
	if !r.IsArray() {
		return nil, fmt.Errorf("%w: expected an array, got %s", ErrSolveFailed, r.Type)
	}
	arr := r.Array()
	out := make([]float64, len(arr))
	for i, v := range arr {
		if v.Type != gjson.Number {
			return nil, fmt.Errorf("%w: value %d is %s, not a number", ErrSolveFailed, i, v.Type)
		}
		out[i] = v.Float()
	}
	return out, nil
}
