// Copyright 2026 Quanta ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package device defines the execution boundary of the batch executor.
// Any backend that can evaluate a batch of tapes is pluggable.
package device

import "github.com/quanta-ml/quanta/internal/device"

// Device evaluates batches of tapes.
type Device = device.Device

// JacobianDevice is a Device with a native same-order Jacobian method.
type JacobianDevice = device.JacobianDevice

// Analytic is a closed-form device used in tests and examples.
type Analytic = device.Analytic
