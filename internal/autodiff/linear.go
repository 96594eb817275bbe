package autodiff

import (
	"fmt"

	"github.com/quanta-ml/quanta/internal/tensor"
)

// The linear operations below are the only ops the graph computes itself.
// They exist so gradient post-processing (parameter shifting, Jacobian-column
// recombination, contraction with dy) stays on the graph: their VJPs are
// exact and cheap, and chaining through them is what turns one recorded
// executor node into arbitrary-order derivatives.

// Shift computes out = in + delta and records the node.
// The output inherits the input's trainability so shifted parameters remain
// differentiable inputs of gradient tapes.
func (g *Graph) Shift(in *tensor.Tensor, delta float64) *tensor.Tensor {
	out := tensor.AddScalar(in, delta)
	if in.RequiresGrad() {
		out.RequireGrad()
	}
	g.Custom(
		[]*tensor.Tensor{in},
		[]*tensor.Tensor{out},
		func(dys []*tensor.Tensor) ([]*tensor.Tensor, error) {
			// d(in + delta)/d(in) = 1: pass the gradient through.
			return []*tensor.Tensor{dys[0]}, nil
		},
	)
	return out
}

// LinearCombination computes out = Σ coeffs[i] * terms[i] element-wise and
// records the node. All terms must share a shape.
func (g *Graph) LinearCombination(coeffs []float64, terms []*tensor.Tensor) (*tensor.Tensor, error) {
	if len(coeffs) != len(terms) {
		return nil, fmt.Errorf("got %d coefficients for %d terms", len(coeffs), len(terms))
	}
	if len(terms) == 0 {
		return nil, fmt.Errorf("linear combination of zero terms")
	}
	out := tensor.ZerosLike(terms[0])
	for i, term := range terms {
		if !term.Shape().Equal(terms[0].Shape()) {
			return nil, fmt.Errorf("term %d shape %v does not match %v", i, term.Shape(), terms[0].Shape())
		}
		data := term.Data()
		c := coeffs[i]
		outData := out.Data()
		for k := range outData {
			outData[k] += c * data[k]
		}
	}

	cs := append([]float64(nil), coeffs...)
	g.Custom(
		append([]*tensor.Tensor(nil), terms...),
		[]*tensor.Tensor{out},
		func(dys []*tensor.Tensor) ([]*tensor.Tensor, error) {
			// d(out)/d(term_i) = coeffs[i] * I.
			grads := make([]*tensor.Tensor, len(cs))
			for i, c := range cs {
				grads[i] = tensor.Scale(dys[0], c)
			}
			return grads, nil
		},
	)
	return out, nil
}

// WeightedSum computes the scalar Σ weights[k] * t[k] and records the node.
// This is the contraction of a fixed upstream gradient with one Jacobian
// column.
func (g *Graph) WeightedSum(weights []float64, t *tensor.Tensor) (*tensor.Tensor, error) {
	if len(weights) != t.NumElements() {
		return nil, fmt.Errorf("got %d weights for tensor with %d elements", len(weights), t.NumElements())
	}
	var sum float64
	for k, v := range t.Data() {
		sum += weights[k] * v
	}
	out := tensor.Scalar(sum)

	ws := append([]float64(nil), weights...)
	g.Custom(
		[]*tensor.Tensor{t},
		[]*tensor.Tensor{out},
		func(dys []*tensor.Tensor) ([]*tensor.Tensor, error) {
			// d(out)/d(t_k) = weights[k].
			dy := dys[0].Item()
			grad := tensor.ZerosLike(t)
			gradData := grad.Data()
			for k, w := range ws {
				gradData[k] = w * dy
			}
			return []*tensor.Tensor{grad}, nil
		},
	)
	return out, nil
}
