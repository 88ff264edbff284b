// Package oracle bridges the calculation port to external electronic-structure
// drivers.  A driver is any executable that reads a calculation request as
// JSON on stdin and writes a result as JSON on stdout; which quantum code it
// wraps is its own business.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"

	"gonum.org/v1/gonum/mat"

	"github.com/molkinetics/tsfinder/internal/config"
	"github.com/molkinetics/tsfinder/internal/domain/calc"
	"github.com/molkinetics/tsfinder/internal/domain/molgraph"
	"github.com/molkinetics/tsfinder/internal/infrastructure/monitoring/logging"
	"github.com/molkinetics/tsfinder/pkg/errors"
)

// wireRequest is the JSON shape handed to the driver.
type wireRequest struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Method  string       `json:"method"`
	Labels  []string     `json:"labels"`
	Coords  [][3]float64 `json:"coords"`
	Charge  int          `json:"charge"`
	Mult    int          `json:"mult"`
	Solvent string       `json:"solvent,omitempty"`
	Task    string       `json:"task"`

	Keywords []string `json:"keywords,omitempty"`

	DistanceConstraints []calc.DistanceConstraint `json:"distance_constraints,omitempty"`
	FrozenAtoms         []int                     `json:"frozen_atoms,omitempty"`
	ActiveBonds         []molgraph.Bond           `json:"active_bonds,omitempty"`
	CoreAtoms           []int                     `json:"core_atoms,omitempty"`

	NCores    int `json:"n_cores"`
	MaxCoreMB int `json:"max_core_mb"`
}

// wireResult is the JSON shape read back from the driver.  The Hessian comes
// flattened row-major; its dimension is 3 × len(coords).
type wireResult struct {
	TerminatedNormally bool         `json:"terminated_normally"`
	Energy             *float64     `json:"energy,omitempty"`
	Coords             [][3]float64 `json:"coords,omitempty"`
	Gradient           [][3]float64 `json:"gradient,omitempty"`
	Hessian            []float64    `json:"hessian,omitempty"`
}

// ExecOracle fulfils calculation requests by invoking the driver executable
// configured for the request's level.
type ExecOracle struct {
	cfg config.MethodsConfig
	log logging.Logger
}

// NewExecOracle creates an oracle over the configured low/high drivers.
func NewExecOracle(cfg config.MethodsConfig, log logging.Logger) *ExecOracle {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &ExecOracle{cfg: cfg, log: log}
}

func (o *ExecOracle) method(level calc.Level) config.MethodConfig {
	if level == calc.LevelHigh {
		return o.cfg.High
	}
	return o.cfg.Low
}

// taskKeywords resolves the configured keyword set for a task, unless the
// request already carries explicit keywords.
func taskKeywords(m config.MethodConfig, task calc.Task) []string {
	switch task {
	case calc.TaskLowOpt:
		return m.LowOptKeys
	case calc.TaskOpt:
		return m.OptKeys
	case calc.TaskHessian:
		return m.HessKeys
	case calc.TaskOptTS:
		return m.OptTSKeys
	}
	return nil
}

// Run invokes the driver and maps its outcome onto the per-attempt
// calculation error codes.  The configured calculation timeout bounds the
// subprocess even when the caller's context is unbounded.
func (o *ExecOracle) Run(ctx context.Context, req *calc.Request) (*calc.Result, error) {
	m := o.method(req.Level)
	if m.Command == "" {
		return nil, errors.New(errors.ErrCodeValidation, "no driver command configured").
			WithDetail(string(req.Level))
	}

	if o.cfg.CalcTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.CalcTimeout)
		defer cancel()
	}

	keywords := req.Keywords
	if len(keywords) == 0 {
		keywords = taskKeywords(m, req.Task)
	}
	nCores := req.NCores
	if nCores == 0 {
		nCores = o.cfg.NCores
	}
	maxCoreMB := req.MaxCoreMB
	if maxCoreMB == 0 {
		maxCoreMB = o.cfg.MaxCoreMB
	}

	payload, err := json.Marshal(wireRequest{
		ID:                  req.ID,
		Name:                req.Name,
		Method:              m.Name,
		Labels:              req.Labels,
		Coords:              req.Coords,
		Charge:              req.Charge,
		Mult:                req.Mult,
		Solvent:             req.Solvent,
		Task:                string(req.Task),
		Keywords:            keywords,
		DistanceConstraints: req.DistanceConstraints,
		FrozenAtoms:         req.FrozenAtoms,
		ActiveBonds:         req.ActiveBonds,
		CoreAtoms:           req.CoreAtoms,
		NCores:              nCores,
		MaxCoreMB:           maxCoreMB,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode driver request")
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, m.Command, m.Args...)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	o.log.Debug("running driver",
		logging.String("command", m.Command),
		logging.String("task", string(req.Task)),
		logging.String("level", string(req.Level)),
		logging.String("name", req.Name))

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.Wrap(ctx.Err(), errors.ErrCodeCalcTimeout, "driver exceeded calculation timeout").
				WithDetail(req.Name)
		}
		return nil, errors.Wrap(err, errors.ErrCodeCalcNotConverged, "driver exited abnormally").
			WithDetail(stderr.String())
	}

	var wire wireResult
	if err := json.Unmarshal(stdout.Bytes(), &wire); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode driver result").
			WithDetail(req.Name)
	}
	return wire.toResult(), nil
}

func (w *wireResult) toResult() *calc.Result {
	res := &calc.Result{
		TerminatedNormally: w.TerminatedNormally,
		Energy:             w.Energy,
		Coords:             w.Coords,
		Gradient:           w.Gradient,
	}
	if n := 3 * len(w.Coords); n > 0 && len(w.Hessian) == n*n {
		res.Hessian = mat.NewDense(n, n, w.Hessian)
	}
	return res
}

var _ calc.Oracle = (*ExecOracle)(nil)
