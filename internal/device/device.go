// Package device defines the execution boundary of the batch executor.
//
// Devices are opaque: anything that can evaluate a batch of tapes into
// numeric results is pluggable. Devices that can also produce Jacobians
// natively implement JacobianDevice and may be used as a device-method
// gradient strategy (first-order only).
package device

import (
	"github.com/quanta-ml/quanta/internal/tape"
	"github.com/quanta-ml/quanta/internal/tensor"
)

// Device evaluates batches of tapes.
type Device interface {
	// Name returns the device name.
	Name() string

	// BatchExecute evaluates each tape and returns one result tensor per
	// tape, in order, shaped by that tape's measurements.
	BatchExecute(tapes []*tape.Tape) ([]*tensor.Tensor, error)
}

// JacobianDevice is a Device with a native same-order Jacobian method.
// Jacobians returns one row-major matrix per tape, with one row per
// measurement output and one column per trainable parameter.
type JacobianDevice interface {
	Device

	Jacobians(tapes []*tape.Tape) ([]*tensor.Tensor, error)
}
