// Package autodiff implements a reverse-mode differentiation graph built
// from opaque custom nodes.
//
// Unlike op-level autodiff frameworks, the graph does not know how its nodes
// compute: each Node carries an externally supplied vector-Jacobian-product
// closure, the equivalent of a custom-gradient registration. The batch
// executor registers one node per forward execution; the gradient machinery
// registers small linear nodes (Shift, LinearCombination, WeightedSum) so
// that gradient post-processing itself remains differentiable and
// higher-order derivatives can chain through it.
package autodiff

import (
	"fmt"

	"github.com/quanta-ml/quanta/internal/tensor"
)

// VJPFunc computes the vector-Jacobian product of a node: given one upstream
// gradient per node output (shaped like that output), it returns one gradient
// per node input, in input order.
type VJPFunc func(dys []*tensor.Tensor) ([]*tensor.Tensor, error)

// Node is an opaque operation recorded on the graph.
type Node struct {
	inputs  []*tensor.Tensor
	outputs []*tensor.Tensor
	vjp     VJPFunc
}

// Inputs returns the node's input tensors.
func (n *Node) Inputs() []*tensor.Tensor {
	return n.inputs
}

// Outputs returns the node's output tensors.
func (n *Node) Outputs() []*tensor.Tensor {
	return n.outputs
}

// Graph records custom nodes during the forward pass and computes gradients
// by walking them in reverse.
//
// Usage:
//
//	g := autodiff.NewGraph()
//	g.StartRecording()
//	// ... execute, registering nodes ...
//	grads, err := g.Backward(results, seeds)
type Graph struct {
	nodes     []*Node
	recording bool
	watched   []*tensor.Tensor // Auxiliary variables guaranteed a gradient entry
}

// NewGraph creates a new, non-recording graph.
func NewGraph() *Graph {
	return &Graph{
		nodes: make([]*Node, 0, 16),
	}
}

// StartRecording enables node recording.
func (g *Graph) StartRecording() {
	g.recording = true
}

// StopRecording disables node recording.
func (g *Graph) StopRecording() {
	g.recording = false
}

// IsRecording returns true if the graph is currently recording nodes.
func (g *Graph) IsRecording() bool {
	return g.recording
}

// Clear resets the graph, removing all recorded nodes and watched tensors.
// Recording state is preserved.
func (g *Graph) Clear() {
	g.nodes = g.nodes[:0]
	g.watched = g.watched[:0]
}

// NumNodes returns the number of recorded nodes.
func (g *Graph) NumNodes() int {
	return len(g.nodes)
}

// Watch registers auxiliary trainable tensors. Backward guarantees each
// watched tensor an entry in the returned gradient map, zero-filled when no
// gradient reaches it.
func (g *Graph) Watch(ts ...*tensor.Tensor) {
	g.watched = append(g.watched, ts...)
}

// Custom registers an opaque node whose backward rule is the supplied VJP
// closure. The node is recorded only while the graph is recording; the
// returned node is nil otherwise.
func (g *Graph) Custom(inputs, outputs []*tensor.Tensor, vjp VJPFunc) *Node {
	if !g.recording {
		return nil
	}
	node := &Node{
		inputs:  inputs,
		outputs: outputs,
		vjp:     vjp,
	}
	g.nodes = append(g.nodes, node)
	return node
}

// Backward computes gradients of the seeded outputs with respect to every
// tensor reachable backward through the recorded nodes.
//
// outputs and seeds pair up: seeds[i] is the upstream gradient for
// outputs[i] and must match its shape. Walking the node list in reverse,
// each node whose outputs carry gradients has its VJP closure invoked, and
// the resulting input gradients are accumulated per tensor (summed when a
// tensor feeds several nodes).
//
// Recording stays enabled during the walk: VJP closures that preserve
// differentiability register further nodes, which is what makes repeated
// Backward calls (higher-order derivatives) possible.
func (g *Graph) Backward(outputs, seeds []*tensor.Tensor) (map[*tensor.Tensor]*tensor.Tensor, error) {
	if len(outputs) != len(seeds) {
		return nil, fmt.Errorf("got %d seeds for %d outputs", len(seeds), len(outputs))
	}

	grads := make(map[*tensor.Tensor]*tensor.Tensor)
	for i, out := range outputs {
		if !out.Shape().Equal(seeds[i].Shape()) {
			return nil, fmt.Errorf("seed %d shape %v does not match output shape %v", i, seeds[i].Shape(), out.Shape())
		}
		if err := accumulate(grads, out, seeds[i]); err != nil {
			return nil, err
		}
	}

	// Snapshot the node list: VJP closures may record new nodes, and those
	// belong to the next Backward call, not this walk.
	nodes := append([]*Node(nil), g.nodes...)

	for i := len(nodes) - 1; i >= 0; i-- {
		node := nodes[i]
		dys, hasAny := collectOutputGrads(node, grads)
		if !hasAny {
			continue
		}
		inputGrads, err := node.vjp(dys)
		if err != nil {
			return nil, fmt.Errorf("node %d backward: %w", i, err)
		}
		if len(inputGrads) != len(node.inputs) {
			return nil, fmt.Errorf("node %d backward returned %d gradients for %d inputs", i, len(inputGrads), len(node.inputs))
		}
		for j, grad := range inputGrads {
			if grad == nil {
				continue
			}
			if err := accumulate(grads, node.inputs[j], grad); err != nil {
				return nil, fmt.Errorf("node %d input %d: %w", i, j, err)
			}
		}
	}

	// Watched auxiliary variables always get an entry.
	for _, w := range g.watched {
		if _, ok := grads[w]; !ok {
			grads[w] = tensor.ZerosLike(w)
		}
	}

	return grads, nil
}

// collectOutputGrads gathers upstream gradients for a node's outputs,
// zero-filling outputs that received none when at least one did.
func collectOutputGrads(node *Node, grads map[*tensor.Tensor]*tensor.Tensor) ([]*tensor.Tensor, bool) {
	dys := make([]*tensor.Tensor, len(node.outputs))
	hasAny := false
	for j, out := range node.outputs {
		if grad, ok := grads[out]; ok {
			dys[j] = grad
			hasAny = true
		}
	}
	if !hasAny {
		return nil, false
	}
	for j, out := range node.outputs {
		if dys[j] == nil {
			dys[j] = tensor.ZerosLike(out)
		}
	}
	return dys, true
}

// accumulate sums grad into the entry for t.
func accumulate(grads map[*tensor.Tensor]*tensor.Tensor, t, grad *tensor.Tensor) error {
	if existing, ok := grads[t]; ok {
		sum, err := tensor.Add(existing, grad)
		if err != nil {
			return err
		}
		grads[t] = sum
		return nil
	}
	grads[t] = grad
	return nil
}
