// Copyright 2026 Quanta ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff provides the reverse-mode differentiation graph.
//
// The graph records opaque custom nodes whose backward rule is an externally
// supplied vector-Jacobian-product closure. The batch executor registers one
// node per forward execution; calling Backward walks the nodes in reverse
// and accumulates gradients per tensor.
//
// Example:
//
//	g := autodiff.NewGraph()
//	g.StartRecording()
//	results, err := execute.Execute(g, tapes, dev, execFn, strategy, opts)
//	grads, err := g.Backward(results, seeds)
package autodiff

import "github.com/quanta-ml/quanta/internal/autodiff"

// Graph records custom nodes and computes gradients in reverse.
type Graph = autodiff.Graph

// Node is an opaque operation recorded on the graph.
type Node = autodiff.Node

// VJPFunc is a node's backward rule.
type VJPFunc = autodiff.VJPFunc

// NewGraph creates a new, non-recording graph.
func NewGraph() *Graph {
	return autodiff.NewGraph()
}
