// Package calc defines the calculation-oracle port: the engine describes the
// electronic-structure work it needs (optimisations, constrained
// optimisations, Hessians, TS refinements) as Requests and receives Results,
// without knowing which external code fulfils them.  Result validation maps
// the oracle's failure modes onto the per-attempt CALC error codes.
package calc

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/molkinetics/tsfinder/internal/domain/molgraph"
	"github.com/molkinetics/tsfinder/internal/domain/species"
	"github.com/molkinetics/tsfinder/pkg/errors"
)

// Task is the kind of calculation requested from the oracle.
type Task string

const (
	TaskEnergy  Task = "energy"
	TaskOpt     Task = "opt"      // geometry optimisation, optionally constrained
	TaskOptTS   Task = "opt_ts"   // saddle-point refinement
	TaskHessian Task = "hessian"  // second derivatives at the current geometry
	TaskLowOpt  Task = "low_opt"  // loose-threshold optimisation for scan points
)

// Level selects a rung of the method hierarchy.
type Level string

const (
	LevelLow  Level = "low"  // fast, approximate (semi-empirical or tight binding)
	LevelHigh Level = "high" // production-quality DFT or wavefunction method
)

// DistanceConstraint fixes the separation of an atom pair during an
// optimisation.
type DistanceConstraint struct {
	I, J     int
	Distance float64 // Å
}

// Request is a self-contained description of one oracle calculation.  The
// geometry is snapshotted at construction so that later mutation of the
// source species cannot race the calculation.
type Request struct {
	ID     string
	Name   string
	Labels []string
	Coords [][3]float64
	Charge int
	Mult   int

	Solvent string
	Task    Task
	Level   Level

	// Keywords are method-specific directives resolved from configuration,
	// passed through to the oracle verbatim.
	Keywords []string

	DistanceConstraints []DistanceConstraint
	FrozenAtoms         []int

	// ActiveBonds are the forming/breaking bonds of the current
	// rearrangement.  CoreAtoms is the derived region the oracle should
	// treat accurately when it supports partitioning.
	ActiveBonds []molgraph.Bond
	CoreAtoms   []int

	NCores    int
	MaxCoreMB int
}

// Result is the outcome of one oracle calculation.  Fields beyond
// TerminatedNormally are populated only when the underlying job produced
// them.
type Result struct {
	TerminatedNormally bool
	Energy             *float64     // Ha
	Coords             [][3]float64 // final geometry, Å
	Gradient           [][3]float64 // Ha Å⁻¹
	Hessian            *mat.Dense   // 3N×3N, Ha Å⁻²
}

// Oracle executes electronic-structure calculations.  Implementations must
// honour ctx cancellation.
type Oracle interface {
	Run(ctx context.Context, req *Request) (*Result, error)
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(ctx context.Context, req *Request) (*Result, error)

func (f OracleFunc) Run(ctx context.Context, req *Request) (*Result, error) {
	return f(ctx, req)
}

// NewRequest snapshots a species into a calculation request.
func NewRequest(s *species.Species, task Task, level Level) *Request {
	return &Request{
		ID:     uuid.NewString(),
		Name:   s.Name,
		Labels: s.Labels(),
		Coords: s.Coordinates(),
		Charge: s.Charge,
		Mult:   s.Mult,
		Task:   task,
		Level:  level,
	}
}

// DeriveCoreAtoms returns the atoms the oracle should treat at full accuracy:
// every endpoint of an active bond plus its directly bonded neighbours, in
// ascending index order.  A nil graph yields just the active-bond endpoints.
func DeriveCoreAtoms(g *molgraph.Graph, activeBonds []molgraph.Bond) []int {
	set := map[int]struct{}{}
	for _, b := range activeBonds {
		set[b[0]] = struct{}{}
		set[b[1]] = struct{}{}
		if g != nil {
			for _, n := range g.Neighbors(b[0]) {
				set[n] = struct{}{}
			}
			for _, n := range g.Neighbors(b[1]) {
				set[n] = struct{}{}
			}
		}
	}
	return sortedKeys(set)
}

// checkResult validates an oracle outcome against what the task requires,
// returning a per-attempt CALC error on any gap.
func checkResult(req *Request, res *Result, err error) error {
	if err != nil {
		if ctxErr := contextCause(err); ctxErr != nil {
			return errors.Wrap(err, errors.ErrCodeCalcTimeout, "calculation exceeded its time budget").
				WithDetail(req.Name)
		}
		return errors.Wrap(err, errors.ErrCodeUnknown, "oracle run failed").WithDetail(req.Name)
	}
	if res == nil || !res.TerminatedNormally {
		return errors.New(errors.ErrCodeCalcNotConverged, "calculation did not terminate normally").
			WithDetail(req.Name)
	}
	switch req.Task {
	case TaskOpt, TaskLowOpt, TaskOptTS:
		if len(res.Coords) != len(req.Coords) {
			return errors.New(errors.ErrCodeCalcNoGeometry, "no final geometry in oracle output").
				WithDetail(req.Name)
		}
		if res.Energy == nil {
			return errors.New(errors.ErrCodeCalcNoEnergy, "no energy in oracle output").
				WithDetail(req.Name)
		}
	case TaskEnergy:
		if res.Energy == nil {
			return errors.New(errors.ErrCodeCalcNoEnergy, "no energy in oracle output").
				WithDetail(req.Name)
		}
	case TaskHessian:
		if res.Hessian == nil {
			return errors.New(errors.ErrCodeCalcNoHessian, "no hessian in oracle output").
				WithDetail(req.Name)
		}
	}
	return nil
}

// Optimise runs an optimisation request and writes the resulting geometry and
// energy back onto the species.  All failures are reported with CALC codes so
// the caller's retry boundary can absorb them.
func Optimise(ctx context.Context, o Oracle, s *species.Species, req *Request) error {
	res, err := o.Run(ctx, req)
	if err := checkResult(req, res, err); err != nil {
		return err
	}
	if err := s.SetCoordinates(res.Coords); err != nil {
		return err
	}
	s.SetEnergy(*res.Energy)
	return nil
}

// Energy runs a single-point request and records the energy on the species.
func Energy(ctx context.Context, o Oracle, s *species.Species, req *Request) error {
	res, err := o.Run(ctx, req)
	if err := checkResult(req, res, err); err != nil {
		return err
	}
	s.SetEnergy(*res.Energy)
	return nil
}

// Hessian runs a second-derivative request and records the Hessian on the
// species.
func Hessian(ctx context.Context, o Oracle, s *species.Species, req *Request) error {
	res, err := o.Run(ctx, req)
	if err := checkResult(req, res, err); err != nil {
		return err
	}
	s.SetHessian(res.Hessian)
	if res.Energy != nil {
		s.SetEnergy(*res.Energy)
	}
	return nil
}

func contextCause(err error) error {
	for e := err; e != nil; {
		if e == context.DeadlineExceeded || e == context.Canceled {
			return e
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			return nil
		}
		e = u.Unwrap()
	}
	return nil
}

func sortedKeys(set map[int]struct{}) []int {
	out := make([]int, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
