// Copyright 2026 Quanta ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the dense numeric arrays used throughout Quanta.
//
// Tensors carry batch execution results, Jacobians and gradient vectors.
// Marking a tensor with RequireGrad annotates it as a differentiable input:
//
//	theta := tensor.Scalar(0.3).RequireGrad()
package tensor

import "github.com/quanta-ml/quanta/internal/tensor"

// Shape represents the dimensions of a tensor.
type Shape = tensor.Shape

// Tensor is a dense float64 array with a shape.
type Tensor = tensor.Tensor

// New creates a zero-filled tensor with the given shape.
func New(shape Shape) (*Tensor, error) {
	return tensor.New(shape)
}

// FromSlice creates a tensor from a Go slice.
func FromSlice(data []float64, shape Shape) (*Tensor, error) {
	return tensor.FromSlice(data, shape)
}

// Scalar creates a 0-D tensor holding a single value.
func Scalar(v float64) *Tensor {
	return tensor.Scalar(v)
}

// Vector creates a 1-D tensor from the given values.
func Vector(values ...float64) *Tensor {
	return tensor.Vector(values...)
}

// Zeros creates a zero-filled tensor, panicking on an invalid shape.
func Zeros(shape Shape) *Tensor {
	return tensor.Zeros(shape)
}

// Ones creates a one-filled tensor, panicking on an invalid shape.
func Ones(shape Shape) *Tensor {
	return tensor.Ones(shape)
}
