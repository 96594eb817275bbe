package device

import (
	"fmt"
	"math"

	"github.com/quanta-ml/quanta/internal/tape"
	"github.com/quanta-ml/quanta/internal/tensor"
)

// Analytic is a closed-form device used in tests.
//
// Each expectation value is a product of trigonometric factors, one per tape
// parameter, selected by the measured observable:
//
//	PauliZ: Π_k cos(θ_k)
//	PauliY: Π_k sin(θ_k)
//
// Both families satisfy the two-term parameter-shift identity in every
// parameter, so parameter-shift gradients computed against this device are
// exact, and the closed-form Jacobian below lets tests cross-check the
// device-method gradient path.
//
// Analytic counts its invocations so tests can assert which gradient branch
// ran and how many evaluations it cost.
type Analytic struct {
	ExecuteCalls  int // Number of BatchExecute invocations
	TapesExecuted int // Total tapes seen across all BatchExecute calls
	JacobianCalls int // Number of Jacobians invocations
}

var _ JacobianDevice = (*Analytic)(nil)

// Name returns the device name.
func (d *Analytic) Name() string {
	return "analytic"
}

// BatchExecute evaluates each tape's measurements in closed form.
func (d *Analytic) BatchExecute(tapes []*tape.Tape) ([]*tensor.Tensor, error) {
	d.ExecuteCalls++
	d.TapesExecuted += len(tapes)

	results := make([]*tensor.Tensor, len(tapes))
	for i, t := range tapes {
		values := make([]float64, t.NumMeasurements())
		for m, meas := range t.Measurements() {
			v, err := d.expectation(t, meas)
			if err != nil {
				return nil, fmt.Errorf("tape %d measurement %d: %w", i, m, err)
			}
			values[m] = v
		}
		res, err := tensor.FromSlice(values, tensor.Shape{len(values)})
		if err != nil {
			return nil, err
		}
		results[i] = res
	}
	return results, nil
}

// Jacobians computes the closed-form Jacobian of each tape's results with
// respect to its trainable parameters.
func (d *Analytic) Jacobians(tapes []*tape.Tape) ([]*tensor.Tensor, error) {
	d.JacobianCalls++

	jacs := make([]*tensor.Tensor, len(tapes))
	for i, t := range tapes {
		rows := t.NumMeasurements()
		cols := t.NumTrainable()
		if rows == 0 || cols == 0 {
			// Nothing to differentiate; the executor skips this entry.
			continue
		}
		data := make([]float64, rows*cols)
		for m, meas := range t.Measurements() {
			for c, idx := range t.TrainableParams() {
				v, err := d.partial(t, meas, idx)
				if err != nil {
					return nil, fmt.Errorf("tape %d measurement %d parameter %d: %w", i, m, idx, err)
				}
				data[m*cols+c] = v
			}
		}
		jac, err := tensor.FromSlice(data, tensor.Shape{rows, cols})
		if err != nil {
			return nil, err
		}
		jacs[i] = jac
	}
	return jacs, nil
}

// expectation evaluates one measurement as a product of per-parameter
// trigonometric factors.
func (d *Analytic) expectation(t *tape.Tape, meas tape.Measurement) (float64, error) {
	factor, err := observableFactor(meas.Observable)
	if err != nil {
		return 0, err
	}
	product := 1.0
	for _, p := range t.Parameters(false) {
		product *= factor(p.Item())
	}
	return product, nil
}

// partial differentiates expectation with respect to the parameter at flat
// index idx by replacing that factor with its derivative.
func (d *Analytic) partial(t *tape.Tape, meas tape.Measurement, idx int) (float64, error) {
	factor, err := observableFactor(meas.Observable)
	if err != nil {
		return 0, err
	}
	derivative := derivativeOf(meas.Observable)
	product := 1.0
	for k, p := range t.Parameters(false) {
		if k == idx {
			product *= derivative(p.Item())
		} else {
			product *= factor(p.Item())
		}
	}
	return product, nil
}

func observableFactor(observable string) (func(float64) float64, error) {
	switch observable {
	case "PauliZ":
		return math.Cos, nil
	case "PauliY":
		return math.Sin, nil
	default:
		return nil, fmt.Errorf("analytic device does not model observable %q", observable)
	}
}

func derivativeOf(observable string) func(float64) float64 {
	if observable == "PauliZ" {
		return func(x float64) float64 { return -math.Sin(x) }
	}
	return math.Cos
}
