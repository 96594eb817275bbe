// Package execute implements the differentiable batch executor.
//
// Execute runs a batch of parameterized tapes through a pluggable execution
// function and registers the results on a reverse-mode differentiation
// graph, so vector-Jacobian products can later be requested against the
// batch's flattened trainable parameters. The gradient rule recurses into
// Execute itself while differentiation depth remains, which is what makes
// arbitrary-order derivatives possible.
package execute

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/quanta-ml/quanta/internal/autodiff"
	"github.com/quanta-ml/quanta/internal/device"
	"github.com/quanta-ml/quanta/internal/gradients"
	"github.com/quanta-ml/quanta/internal/tape"
	"github.com/quanta-ml/quanta/internal/tensor"
)

// Execute runs a batch of tapes on the execution boundary and wires the
// results into the differentiation graph.
//
// Before execution, each tape's trainable-parameter index set is recomputed
// from its own parameter list (parameters marked with RequireGrad, or all
// parameters when none are marked) and stored on the tape. This mutates the
// tapes: a tape must not be shared across concurrent Execute invocations.
//
// The flattened trainable parameters — tape order, then intra-tape order —
// become the inputs of the custom node registered on graph; the per-tape
// results are its outputs. Parameters are bound to concrete values only for
// the duration of the execFn call and restored on every exit path.
//
// A nil or non-recording graph executes the batch without gradient tracking.
func Execute(graph *autodiff.Graph, tapes []*tape.Tape, dev device.Device, execFn ExecuteFunc, strategy GradientStrategy, opts Options) ([]*tensor.Tensor, error) {
	if len(tapes) == 0 {
		return nil, fmt.Errorf("empty tape batch")
	}
	opts, err := opts.normalized()
	if err != nil {
		return nil, err
	}

	// Recompute trainable-parameter bookkeeping, then flatten the
	// parameter vector that enters the differentiation graph.
	var parameters []*tensor.Tensor
	counts := make([]int, len(tapes))
	for i, t := range tapes {
		t.SetTrainableParams(tape.TrainableIndices(t.Parameters(false)))
		trainable := t.Parameters(true)
		counts[i] = len(trainable)
		parameters = append(parameters, trainable...)
	}

	results, jacs, err := runUnwrapped(tapes, execFn)
	if err != nil {
		return nil, err
	}
	if len(results) != len(tapes) {
		return nil, fmt.Errorf("execution returned %d results for %d tapes", len(results), len(tapes))
	}
	if len(jacs) > 0 && len(jacs) != len(tapes) {
		return nil, fmt.Errorf("execution returned %d jacobians for %d tapes", len(jacs), len(tapes))
	}

	opts.Logger.Debug("executed tape batch",
		zap.Int("tapes", len(tapes)),
		zap.Int("parameters", len(parameters)),
		zap.Bool("forward_jacobians", len(jacs) > 0),
		zap.Int("nesting", opts.Nesting),
	)

	grad := gradFunc(graph, tapes, counts, results, jacs, dev, execFn, strategy, opts)
	if graph != nil {
		graph.Custom(parameters, results, grad)
	}

	return results, nil
}

// runUnwrapped binds every tape's parameters to concrete values, calls
// execFn, and restores the parameters even when execution fails.
func runUnwrapped(tapes []*tape.Tape, execFn ExecuteFunc) (results, jacs []*tensor.Tensor, err error) {
	defer tape.UnwrapAll(tapes)()
	return execFn(tapes)
}

// gradFunc builds the custom node's backward rule: the vector-Jacobian
// product of the executed batch with respect to its flattened trainable
// parameters.
func gradFunc(graph *autodiff.Graph, tapes []*tape.Tape, counts []int, results, jacs []*tensor.Tensor, dev device.Device, execFn ExecuteFunc, strategy GradientStrategy, opts Options) autodiff.VJPFunc {
	return func(dys []*tensor.Tensor) ([]*tensor.Tensor, error) {
		if len(dys) != len(tapes) {
			return nil, fmt.Errorf("got %d upstream gradients for %d tapes", len(dys), len(tapes))
		}

		// Jacobians from the forward pass: contract directly, no further
		// evaluation needed.
		if len(jacs) > 0 {
			opts.Logger.Debug("computing VJPs from forward-mode jacobians")
			return contractJacobians(tapes, counts, results, jacs, dys, opts)
		}

		switch s := strategy.(type) {
		case TransformStrategy:
			if opts.Nesting == opts.MaxDiff {
				return transformVJPFinal(tapes, dys, s.Transform, execFn, opts)
			}
			return transformVJPRecursive(graph, tapes, dys, s.Transform, dev, execFn, strategy, opts)

		case DeviceMethodStrategy:
			if device.Device(s.Device) != dev {
				return nil, fmt.Errorf("%w: gradient method bound to device %q, executing on %q",
					ErrUnknownGradient, s.Device.Name(), dev.Name())
			}
			opts.Logger.Debug("computing jacobians with device gradient method", zap.String("device", dev.Name()))
			deviceJacs, err := deviceJacobians(tapes, s.Device)
			if err != nil {
				return nil, err
			}
			if len(deviceJacs) != len(tapes) {
				return nil, fmt.Errorf("device returned %d jacobians for %d tapes", len(deviceJacs), len(tapes))
			}
			return contractJacobians(tapes, counts, results, deviceJacs, dys, opts)

		default:
			return nil, ErrUnknownGradient
		}
	}
}

// contractJacobians computes per-tape VJPs by contracting dy against each
// Jacobian and extends them into the flat VJP vector. Shapes are asserted
// at this trust boundary: silently wrong gradients are worse than errors.
func contractJacobians(tapes []*tape.Tape, counts []int, results, jacs, dys []*tensor.Tensor, opts Options) ([]*tensor.Tensor, error) {
	vjps := make([]*tensor.Tensor, 0, total(counts))
	for i := range tapes {
		if counts[i] == 0 {
			// No trainable parameters, no VJP entries, no Jacobian required.
			continue
		}
		if jacs[i] == nil {
			return nil, fmt.Errorf("tape %d: missing jacobian for %d trainable parameters", i, counts[i])
		}
		shape := jacs[i].Shape()
		if len(shape) != 2 || shape[0] != results[i].NumElements() || shape[1] != counts[i] {
			return nil, fmt.Errorf("tape %d: jacobian shape %v does not match %d outputs x %d trainable parameters",
				i, shape, results[i].NumElements(), counts[i])
		}
		entries, err := gradients.ComputeVJP(dys[i], jacs[i], opts.Gradient.Parallel)
		if err != nil {
			return nil, fmt.Errorf("tape %d: %w", i, err)
		}
		vjps = append(vjps, entries...)
	}
	return vjps, nil
}

// transformVJPFinal handles the depth-exhausted branch: the gradient-tape
// batch is built and evaluated exactly once, non-recursively. The resulting
// VJPs are plain values; differentiating them further is not possible, which
// is surfaced as a warning rather than silently truncating.
func transformVJPFinal(tapes []*tape.Tape, dys []*tensor.Tensor, tr gradients.Transform, execFn ExecuteFunc, opts Options) ([]*tensor.Tensor, error) {
	opts.Logger.Warn("max differentiation depth reached: gradient result will not be differentiable",
		zap.Int("nesting", opts.Nesting),
		zap.Int("max_diff", opts.MaxDiff),
	)

	vjpTapes, processing, err := buildVJPTapesUnwrapped(tapes, dys, tr, opts.Gradient)
	if err != nil {
		return nil, err
	}
	if len(vjpTapes) == 0 {
		return []*tensor.Tensor{}, nil
	}

	gradResults, _, err := execFn(vjpTapes)
	if err != nil {
		return nil, fmt.Errorf("gradient batch execution: %w", err)
	}
	return processing(gradResults)
}

// buildVJPTapesUnwrapped refreshes each tape's cached state and constructs
// the gradient-tape batch with parameters bound to concrete values,
// restoring them before returning. No graph is involved: the construction
// need not be differentiable.
func buildVJPTapesUnwrapped(tapes []*tape.Tape, dys []*tensor.Tensor, tr gradients.Transform, cfg gradients.Config) ([]*tape.Tape, gradients.ProcessingFunc, error) {
	defer tape.UnwrapAll(tapes)()
	for _, t := range tapes {
		t.Update()
	}
	return gradients.BatchVJP(tapes, dys, tr, gradients.Extend, nil, cfg)
}

// transformVJPRecursive handles the depth-remaining branch: the gradient
// tapes are executed through a recursive Execute call with nesting+1, so the
// gradient computation itself stays on the graph and higher-order
// derivatives differentiate through it.
func transformVJPRecursive(graph *autodiff.Graph, tapes []*tape.Tape, dys []*tensor.Tensor, tr gradients.Transform, dev device.Device, execFn ExecuteFunc, strategy GradientStrategy, opts Options) ([]*tensor.Tensor, error) {
	opts.Logger.Debug("recursing into gradient batch execution",
		zap.Int("nesting", opts.Nesting),
		zap.Int("max_diff", opts.MaxDiff),
	)

	vjpTapes, processing, err := gradients.BatchVJP(tapes, dys, tr, gradients.Extend, graph, opts.Gradient)
	if err != nil {
		return nil, err
	}
	if len(vjpTapes) == 0 {
		return []*tensor.Tensor{}, nil
	}

	inner := opts
	inner.Nesting++
	gradResults, err := Execute(graph, vjpTapes, dev, execFn, strategy, inner)
	if err != nil {
		return nil, fmt.Errorf("recursive gradient execution: %w", err)
	}
	return processing(gradResults)
}

// deviceJacobians obtains native Jacobians with tape parameters bound to
// concrete values for the duration of the call.
func deviceJacobians(tapes []*tape.Tape, dev device.JacobianDevice) ([]*tensor.Tensor, error) {
	defer tape.UnwrapAll(tapes)()
	return dev.Jacobians(tapes)
}

func total(counts []int) int {
	n := 0
	for _, c := range counts {
		n += c
	}
	return n
}
