// Package tape defines the parameterized program representation consumed by
// the batch executor.
//
// A Tape is an ordered sequence of parameterized operations followed by a
// terminal set of measurements. The executor treats the operations as opaque:
// only the parameter list, the trainable-parameter index set and the
// measurement count matter to differentiation. Devices interpret the rest.
package tape

import (
	"fmt"
	"sort"

	"github.com/quanta-ml/quanta/internal/tensor"
)

// Operation is a single parameterized operation on a tape.
// Params hold scalar tensors in the operation's parameter order.
type Operation struct {
	Name   string
	Wires  []int
	Params []*tensor.Tensor
}

// MeasurementKind identifies the statistic a measurement requests.
type MeasurementKind int

// Supported measurement kinds.
const (
	Expectation MeasurementKind = iota
	Variance
	Probability
)

// String returns a human-readable measurement kind name.
func (k MeasurementKind) String() string {
	switch k {
	case Expectation:
		return "expval"
	case Variance:
		return "var"
	case Probability:
		return "probs"
	default:
		return "unknown"
	}
}

// Measurement is a terminal measurement specification.
type Measurement struct {
	Kind       MeasurementKind
	Observable string
	Wires      []int
}

// Tape is an ordered program of parameterized operations plus measurements.
//
// A tape owns trainable-parameter bookkeeping: the executor recomputes and
// stores the trainable index set before every forward pass. Tapes are not
// safe for concurrent use; sharing one tape across concurrent executor
// invocations corrupts this bookkeeping.
type Tape struct {
	ops          []Operation
	measurements []Measurement
	trainable    []int // Trainable parameter indices, ascending

	// Cached views, refreshed by Update.
	flat    []*tensor.Tensor // All parameters in op order
	slotOp  []int            // flat index -> op index
	slotArg []int            // flat index -> position within op.Params
}

// New creates a tape from operations and measurements.
// All parameters start out trainable.
func New(ops []Operation, measurements []Measurement) *Tape {
	t := &Tape{
		ops:          ops,
		measurements: measurements,
	}
	t.Update()
	t.trainable = allIndices(len(t.flat))
	return t
}

// Operations returns the tape's operations in order.
func (t *Tape) Operations() []Operation {
	return t.ops
}

// Measurements returns the tape's terminal measurements in order.
func (t *Tape) Measurements() []Measurement {
	return t.measurements
}

// NumMeasurements returns the number of terminal measurements.
func (t *Tape) NumMeasurements() int {
	return len(t.measurements)
}

// NumParams returns the total number of parameters across all operations.
func (t *Tape) NumParams() int {
	return len(t.flat)
}

// NumTrainable returns the number of trainable parameters.
func (t *Tape) NumTrainable() int {
	return len(t.trainable)
}

// TrainableParams returns the trainable parameter indices in ascending order.
func (t *Tape) TrainableParams() []int {
	return t.trainable
}

// SetTrainableParams replaces the trainable parameter index set.
// Indices are stored sorted. Out-of-range indices panic: the index set is
// always derived from the tape's own parameter list.
func (t *Tape) SetTrainableParams(indices []int) {
	sorted := append([]int(nil), indices...)
	sort.Ints(sorted)
	for _, idx := range sorted {
		if idx < 0 || idx >= len(t.flat) {
			panic(fmt.Sprintf("trainable index %d out of range for tape with %d parameters", idx, len(t.flat)))
		}
	}
	t.trainable = sorted
}

// Parameters returns the tape's parameters in tape order.
// With trainableOnly, only parameters at trainable indices are returned.
func (t *Tape) Parameters(trainableOnly bool) []*tensor.Tensor {
	if !trainableOnly {
		return append([]*tensor.Tensor(nil), t.flat...)
	}
	out := make([]*tensor.Tensor, 0, len(t.trainable))
	for _, idx := range t.trainable {
		out = append(out, t.flat[idx])
	}
	return out
}

// SetParameters writes parameters back into the tape's operations.
// With trainableOnly, params must match the trainable index set; otherwise
// it must cover every parameter.
func (t *Tape) SetParameters(params []*tensor.Tensor, trainableOnly bool) error {
	if trainableOnly {
		if len(params) != len(t.trainable) {
			return fmt.Errorf("expected %d trainable parameters, got %d", len(t.trainable), len(params))
		}
		for i, idx := range t.trainable {
			t.setParam(idx, params[i])
		}
		return nil
	}
	if len(params) != len(t.flat) {
		return fmt.Errorf("expected %d parameters, got %d", len(t.flat), len(params))
	}
	for idx, p := range params {
		t.setParam(idx, p)
	}
	return nil
}

// setParam replaces the parameter at flat index idx in both the owning
// operation and the cached view.
func (t *Tape) setParam(idx int, p *tensor.Tensor) {
	t.ops[t.slotOp[idx]].Params[t.slotArg[idx]] = p
	t.flat[idx] = p
}

// Update refreshes the tape's cached parameter views from its operations.
// Must be called after operations are mutated directly, and is called by the
// gradient machinery before rebuilding gradient tapes.
func (t *Tape) Update() {
	t.flat = t.flat[:0]
	t.slotOp = t.slotOp[:0]
	t.slotArg = t.slotArg[:0]
	for i, op := range t.ops {
		for j, p := range op.Params {
			t.flat = append(t.flat, p)
			t.slotOp = append(t.slotOp, i)
			t.slotArg = append(t.slotArg, j)
		}
	}
}

// Unwrap binds every parameter to a detached concrete-value tensor and
// returns a restore function that puts the original parameters back.
//
// The restore function MUST be called on every exit path (use defer):
// leaking unwrapped state would detach subsequent operations from the
// differentiation graph. Restoring more than once is a no-op.
//
//	defer t.Unwrap()()
func (t *Tape) Unwrap() func() {
	originals := append([]*tensor.Tensor(nil), t.flat...)
	for idx, p := range t.flat {
		t.setParam(idx, p.Detach())
	}
	restored := false
	return func() {
		if restored {
			return
		}
		restored = true
		for idx, p := range originals {
			t.setParam(idx, p)
		}
	}
}

// UnwrapAll unwraps every tape in the batch and returns a single restore
// function covering all of them.
func UnwrapAll(tapes []*Tape) func() {
	restores := make([]func(), len(tapes))
	for i, t := range tapes {
		restores[i] = t.Unwrap()
	}
	return func() {
		for _, restore := range restores {
			restore()
		}
	}
}

// Copy returns a tape sharing parameter tensors with the original but owning
// its operation and bookkeeping slices, so parameters can be replaced on the
// copy without touching the source tape.
func (t *Tape) Copy() *Tape {
	ops := make([]Operation, len(t.ops))
	for i, op := range t.ops {
		ops[i] = Operation{
			Name:   op.Name,
			Wires:  op.Wires,
			Params: append([]*tensor.Tensor(nil), op.Params...),
		}
	}
	c := &Tape{
		ops:          ops,
		measurements: t.measurements,
	}
	c.Update()
	c.trainable = append([]int(nil), t.trainable...)
	return c
}

// TrainableIndices derives the trainable index set from a parameter list:
// the indices of parameters marked as requiring gradients, or every index
// when no parameter carries the annotation.
func TrainableIndices(params []*tensor.Tensor) []int {
	var marked []int
	for i, p := range params {
		if p.RequiresGrad() {
			marked = append(marked, i)
		}
	}
	if marked == nil {
		return allIndices(len(params))
	}
	return marked
}

func allIndices(n int) []int {
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	return indices
}
