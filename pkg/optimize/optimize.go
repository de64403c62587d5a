// Package optimize hands assembled networks to a dispatch solver.
package optimize

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sw33tLie/powerlole/pkg/network"
)

var (
	ErrSolveFailed   = errors.New("solve failed")
	ErrInfeasible    = errors.New("problem is infeasible")
	ErrUnknownSolver = errors.New("unknown solver")
)

// SolveError is returned for any failed or non-optimal solve. The network's
// dispatch fields must not be trusted after one.
type SolveError struct {
	Solver string
	Status string
	Err    error
}

func (e *SolveError) Error() string {
	if e.Status == "" {
		return fmt.Sprintf("solver %s: %v", e.Solver, e.Err)
	}
	return fmt.Sprintf("solver %s: %v (status %s)", e.Solver, e.Err, e.Status)
}

func (e *SolveError) Unwrap() error { return e.Err }

// Optimizer solves a network in place and returns it. On success the
// network's Status is network.Optimal.
type Optimizer interface {
	Name() string
	Solve(ctx context.Context, n *network.Network) (*network.Network, error)
}

// Settings selects and configures an Optimizer.
type Settings struct {
	Name    string
	Command string
	Args    []string
	Timeout time.Duration
}

// New returns the optimizer named in s.
func New(s Settings) (Optimizer, error) {
	switch strings.ToLower(s.Name) {
	case "", MeritOrderName:
		return NewMeritOrder(), nil
	case ExecName:
		if s.Command == "" {
			return nil, fmt.Errorf("solver %q requires a command", ExecName)
		}
		return &ExecSolver{Command: s.Command, Args: s.Args, Timeout: s.Timeout}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSolver, s.Name)
}

// fail marks n infeasible or unsolved and wraps err.
func fail(n *network.Network, solver, status string, err error) error {
	n.ResetDispatch()
	if errors.Is(err, ErrInfeasible) {
		n.Status = network.Infeasible
	}
	return &SolveError{Solver: solver, Status: status, Err: err}
}
