// Package gradients implements the vector-Jacobian-product machinery used by
// the batch executor: direct contraction of upstream gradients against
// Jacobians, batched gradient-tape construction, and the parameter-shift
// rule as the canonical differentiable gradient transform.
package gradients

import (
	"fmt"
	"math"

	"github.com/quanta-ml/quanta/internal/autodiff"
	"github.com/quanta-ml/quanta/internal/parallel"
	"github.com/quanta-ml/quanta/internal/tape"
	"github.com/quanta-ml/quanta/internal/tensor"
)

// Config carries the options forwarded to gradient computation.
type Config struct {
	// Shift is the parameter-shift angle. Zero means the default π/2.
	Shift float64

	// Parallel controls chunked contraction of large Jacobians.
	Parallel parallel.Config
}

// DefaultConfig returns the standard gradient options.
func DefaultConfig() Config {
	return Config{
		Shift:    math.Pi / 2,
		Parallel: parallel.DefaultConfig(),
	}
}

// shift returns the configured shift angle, defaulting to π/2.
func (c Config) shift() float64 {
	if c.Shift == 0 {
		return math.Pi / 2
	}
	return c.Shift
}

// ComputeVJP contracts an upstream gradient dy against a row-major Jacobian
// (rows: outputs, columns: trainable parameters), producing one scalar
// gradient per column. A Jacobian with zero columns yields an empty slice.
func ComputeVJP(dy, jac *tensor.Tensor, cfg parallel.Config) ([]*tensor.Tensor, error) {
	shape := jac.Shape()
	if len(shape) != 2 {
		return nil, fmt.Errorf("jacobian must be 2-D, got shape %v", shape)
	}
	rows, cols := shape[0], shape[1]
	if dy.NumElements() != rows {
		return nil, fmt.Errorf("dy has %d elements but jacobian has %d rows", dy.NumElements(), rows)
	}

	vjps := make([]*tensor.Tensor, cols)
	dyData := dy.Data()
	jacData := jac.Data()
	parallel.For(cols, func(j int) {
		var sum float64
		for i := 0; i < rows; i++ {
			sum += dyData[i] * jacData[i*cols+j]
		}
		vjps[j] = tensor.Scalar(sum)
	}, cfg)
	return vjps, nil
}

// PostFunc turns the execution results of one tape's gradient tapes into
// that tape's VJP entries, one scalar per trainable parameter.
type PostFunc func(results []*tensor.Tensor) ([]*tensor.Tensor, error)

// ProcessingFunc turns the execution results of a combined gradient-tape
// batch into VJP entries for the whole source batch.
type ProcessingFunc func(results []*tensor.Tensor) ([]*tensor.Tensor, error)

// Transform is a differentiable gradient transform: it rewrites one tape
// into a batch of gradient tapes whose execution results, post-processed,
// yield the tape's vector-Jacobian product.
//
// When graph is non-nil and recording, the construction and post-processing
// must stay on the graph so the VJP itself remains differentiable. A nil
// graph requests plain, non-differentiable arithmetic.
type Transform interface {
	Name() string

	VJP(t *tape.Tape, dy *tensor.Tensor, graph *autodiff.Graph, cfg Config) ([]*tape.Tape, PostFunc, error)
}

// Reduction selects how BatchVJP combines per-tape VJPs.
type Reduction int

const (
	// Extend flattens per-tape VJP entries into one vector matching the
	// batch's flattened trainable-parameter order.
	Extend Reduction = iota

	// Append keeps one stacked VJP tensor per source tape.
	Append
)

// BatchVJP builds the gradient tapes for a whole batch at once.
//
// It returns the combined gradient-tape batch (all tapes' gradient tapes,
// flattened in source order) and a processing function mapping that batch's
// execution results back to VJP entries, reduced per the requested mode.
func BatchVJP(tapes []*tape.Tape, dys []*tensor.Tensor, tr Transform, reduction Reduction, graph *autodiff.Graph, cfg Config) ([]*tape.Tape, ProcessingFunc, error) {
	if len(dys) != len(tapes) {
		return nil, nil, fmt.Errorf("got %d upstream gradients for %d tapes", len(dys), len(tapes))
	}

	var combined []*tape.Tape
	counts := make([]int, len(tapes))
	posts := make([]PostFunc, len(tapes))

	for i, t := range tapes {
		gradTapes, post, err := tr.VJP(t, dys[i], graph, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("tape %d: %w", i, err)
		}
		counts[i] = len(gradTapes)
		posts[i] = post
		combined = append(combined, gradTapes...)
	}

	processing := func(results []*tensor.Tensor) ([]*tensor.Tensor, error) {
		if len(results) != len(combined) {
			return nil, fmt.Errorf("got %d results for %d gradient tapes", len(results), len(combined))
		}
		var out []*tensor.Tensor
		offset := 0
		for i := range tapes {
			chunk := results[offset : offset+counts[i]]
			offset += counts[i]
			vjps, err := posts[i](chunk)
			if err != nil {
				return nil, fmt.Errorf("tape %d post-processing: %w", i, err)
			}
			switch reduction {
			case Extend:
				out = append(out, vjps...)
			case Append:
				out = append(out, stack(vjps))
			default:
				return nil, fmt.Errorf("unknown reduction mode %d", reduction)
			}
		}
		return out, nil
	}

	return combined, processing, nil
}

// stack packs scalar VJP entries into a single vector tensor.
func stack(vjps []*tensor.Tensor) *tensor.Tensor {
	values := make([]float64, len(vjps))
	for i, v := range vjps {
		values[i] = v.Item()
	}
	return tensor.Vector(values...)
}
