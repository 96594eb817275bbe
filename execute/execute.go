// Copyright 2026 Quanta ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package execute provides the differentiable batch executor.
//
// Example:
//
//	g := autodiff.NewGraph()
//	g.StartRecording()
//	dev := &device.Analytic{}
//	results, err := execute.Execute(g, tapes, dev,
//	    execute.DeviceExecuteFunc(dev),
//	    execute.TransformStrategy{Transform: gradients.ParameterShift{}},
//	    execute.DefaultOptions(),
//	)
package execute

import (
	"github.com/quanta-ml/quanta/internal/autodiff"
	"github.com/quanta-ml/quanta/internal/device"
	"github.com/quanta-ml/quanta/internal/execute"
	"github.com/quanta-ml/quanta/internal/tape"
	"github.com/quanta-ml/quanta/internal/tensor"
)

// ExecuteFunc is the sole execution boundary.
type ExecuteFunc = execute.ExecuteFunc

// GradientStrategy selects how Jacobians are obtained on the backward pass.
type GradientStrategy = execute.GradientStrategy

// TransformStrategy computes gradients with a differentiable transform.
type TransformStrategy = execute.TransformStrategy

// DeviceMethodStrategy computes Jacobians with the device's native method.
type DeviceMethodStrategy = execute.DeviceMethodStrategy

// Options configures one executor invocation.
type Options = execute.Options

// Configuration errors.
var (
	ErrUnknownGradient = execute.ErrUnknownGradient
	ErrMaxDiffExceeded = execute.ErrMaxDiffExceeded
)

// DefaultOptions returns the standard executor options.
func DefaultOptions() Options {
	return execute.DefaultOptions()
}

// Execute runs a batch of tapes and wires the results into the graph.
func Execute(graph *autodiff.Graph, tapes []*tape.Tape, dev device.Device, execFn ExecuteFunc, strategy GradientStrategy, opts Options) ([]*tensor.Tensor, error) {
	return execute.Execute(graph, tapes, dev, execFn, strategy, opts)
}

// DeviceExecuteFunc wraps a device as a backward-mode ExecuteFunc.
func DeviceExecuteFunc(dev device.Device) ExecuteFunc {
	return execute.DeviceExecuteFunc(dev)
}

// ForwardModeExecuteFunc wraps a Jacobian-capable device as a forward-mode
// ExecuteFunc.
func ForwardModeExecuteFunc(dev device.JacobianDevice) ExecuteFunc {
	return execute.ForwardModeExecuteFunc(dev)
}
