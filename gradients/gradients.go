// Copyright 2026 Quanta ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package gradients provides vector-Jacobian-product machinery: direct
// contraction against Jacobians, batched gradient-tape construction, and
// the parameter-shift rule.
package gradients

import (
	"github.com/quanta-ml/quanta/internal/autodiff"
	"github.com/quanta-ml/quanta/internal/gradients"
	"github.com/quanta-ml/quanta/internal/parallel"
	"github.com/quanta-ml/quanta/internal/tape"
	"github.com/quanta-ml/quanta/internal/tensor"
)

// Config carries the options forwarded to gradient computation.
type Config = gradients.Config

// ParallelConfig controls chunked contraction of large Jacobians.
type ParallelConfig = parallel.Config

// Transform is a differentiable gradient transform.
type Transform = gradients.Transform

// ParameterShift is the two-term parameter-shift rule.
type ParameterShift = gradients.ParameterShift

// ProcessingFunc maps gradient-batch results to VJP entries.
type ProcessingFunc = gradients.ProcessingFunc

// Reduction selects how BatchVJP combines per-tape VJPs.
type Reduction = gradients.Reduction

// Reduction modes.
const (
	Extend = gradients.Extend
	Append = gradients.Append
)

// DefaultConfig returns the standard gradient options.
func DefaultConfig() Config {
	return gradients.DefaultConfig()
}

// ComputeVJP contracts an upstream gradient against a row-major Jacobian.
func ComputeVJP(dy, jac *tensor.Tensor, cfg parallel.Config) ([]*tensor.Tensor, error) {
	return gradients.ComputeVJP(dy, jac, cfg)
}

// BatchVJP builds the gradient tapes for a whole batch at once.
func BatchVJP(tapes []*tape.Tape, dys []*tensor.Tensor, tr Transform, reduction Reduction, graph *autodiff.Graph, cfg Config) ([]*tape.Tape, ProcessingFunc, error) {
	return gradients.BatchVJP(tapes, dys, tr, reduction, graph, cfg)
}
