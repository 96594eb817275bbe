package gradients

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/quanta-ml/quanta/internal/autodiff"
	"github.com/quanta-ml/quanta/internal/tape"
	"github.com/quanta-ml/quanta/internal/tensor"
)

// ParameterShift is the two-term parameter-shift rule.
//
// For each trainable parameter θ_j the transform emits two copies of the
// tape with θ_j shifted by ±s; the Jacobian column is
//
//	∂f/∂θ_j = (f(θ_j + s) − f(θ_j − s)) / (2 sin s)
//
// which is exact for operations whose spectrum supports the rule (the usual
// single-frequency rotations). Shifting and recombination go through graph
// nodes, so the produced VJP is itself differentiable and the executor can
// recurse through it for higher-order derivatives.
type ParameterShift struct {
	// Logger, when set, traces gradient-tape construction at debug level.
	Logger *zap.Logger
}

var _ Transform = ParameterShift{}

// Name returns the transform name.
func (ParameterShift) Name() string {
	return "parameter-shift"
}

// VJP builds the shifted tapes for t and a post-processing function
// contracting their results with dy.
func (p ParameterShift) VJP(t *tape.Tape, dy *tensor.Tensor, graph *autodiff.Graph, cfg Config) ([]*tape.Tape, PostFunc, error) {
	if graph == nil {
		// Scratch graph: same arithmetic, nothing recorded.
		graph = autodiff.NewGraph()
	}

	trainable := t.TrainableParams()
	if len(trainable) == 0 {
		return nil, func([]*tensor.Tensor) ([]*tensor.Tensor, error) {
			return []*tensor.Tensor{}, nil
		}, nil
	}

	s := cfg.shift()
	denom := 2 * math.Sin(s)
	if denom == 0 {
		return nil, nil, fmt.Errorf("parameter-shift angle %v has zero shift denominator", s)
	}
	coeff := 1 / denom

	gradTapes := make([]*tape.Tape, 0, 2*len(trainable))
	for _, idx := range trainable {
		plus, err := shiftedTape(t, idx, s, graph)
		if err != nil {
			return nil, nil, err
		}
		minus, err := shiftedTape(t, idx, -s, graph)
		if err != nil {
			return nil, nil, err
		}
		gradTapes = append(gradTapes, plus, minus)
	}

	if p.Logger != nil {
		p.Logger.Debug("built parameter-shift gradient tapes",
			zap.Int("trainable", len(trainable)),
			zap.Int("gradient_tapes", len(gradTapes)),
			zap.Float64("shift", s),
		)
	}

	dyWeights := append([]float64(nil), dy.Data()...)
	post := func(results []*tensor.Tensor) ([]*tensor.Tensor, error) {
		if len(results) != 2*len(trainable) {
			return nil, fmt.Errorf("expected %d shifted results, got %d", 2*len(trainable), len(results))
		}
		vjps := make([]*tensor.Tensor, len(trainable))
		for k := range trainable {
			column, err := graph.LinearCombination(
				[]float64{coeff, -coeff},
				[]*tensor.Tensor{results[2*k], results[2*k+1]},
			)
			if err != nil {
				return nil, err
			}
			vjp, err := graph.WeightedSum(dyWeights, column)
			if err != nil {
				return nil, err
			}
			vjps[k] = vjp
		}
		return vjps, nil
	}

	return gradTapes, post, nil
}

// shiftedTape copies t with the parameter at flat index idx shifted by
// delta. The shift is a recorded graph operation so gradients flow back to
// the original parameter.
func shiftedTape(t *tape.Tape, idx int, delta float64, graph *autodiff.Graph) (*tape.Tape, error) {
	c := t.Copy()
	params := c.Parameters(false)
	params[idx] = graph.Shift(params[idx], delta)
	if err := c.SetParameters(params, false); err != nil {
		return nil, err
	}
	return c, nil
}
