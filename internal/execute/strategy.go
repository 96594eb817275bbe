package execute

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/quanta-ml/quanta/internal/device"
	"github.com/quanta-ml/quanta/internal/gradients"
	"github.com/quanta-ml/quanta/internal/tape"
	"github.com/quanta-ml/quanta/internal/tensor"
)

// Configuration errors. Both are immediate and fatal to the current call;
// nothing is retried.
var (
	// ErrUnknownGradient reports a gradient strategy that is neither a
	// differentiable transform nor a method bound to the executing device.
	ErrUnknownGradient = errors.New("unknown gradient strategy")

	// ErrMaxDiffExceeded reports a requested nesting depth beyond the
	// configured maximum differentiation order.
	ErrMaxDiffExceeded = errors.New("nesting depth exceeds max differentiation order")
)

// ExecuteFunc is the sole execution boundary: given tapes whose parameters
// are bound to concrete values, it returns one result tensor per tape plus
// optional same-order Jacobians. An empty Jacobian slice defers
// differentiation to the gradient strategy ("backward mode").
type ExecuteFunc func(tapes []*tape.Tape) (results, jacobians []*tensor.Tensor, err error)

// DeviceExecuteFunc wraps a device as a backward-mode ExecuteFunc:
// results only, Jacobians deferred to the gradient strategy.
func DeviceExecuteFunc(dev device.Device) ExecuteFunc {
	return func(tapes []*tape.Tape) ([]*tensor.Tensor, []*tensor.Tensor, error) {
		results, err := dev.BatchExecute(tapes)
		return results, nil, err
	}
}

// ForwardModeExecuteFunc wraps a Jacobian-capable device as a forward-mode
// ExecuteFunc: Jacobians are computed eagerly alongside the results, and the
// backward pass reduces to direct contraction.
func ForwardModeExecuteFunc(dev device.JacobianDevice) ExecuteFunc {
	return func(tapes []*tape.Tape) ([]*tensor.Tensor, []*tensor.Tensor, error) {
		results, err := dev.BatchExecute(tapes)
		if err != nil {
			return nil, nil, err
		}
		jacs, err := dev.Jacobians(tapes)
		if err != nil {
			return nil, nil, err
		}
		return results, jacs, nil
	}
}

// GradientStrategy selects how Jacobians are obtained when the forward pass
// did not supply them. It is a sealed tagged variant: branch selection is
// explicit, never inferred from function origins.
type GradientStrategy interface {
	gradientStrategy()
}

// TransformStrategy computes gradients with a differentiable gradient
// transform. This is the only strategy supporting higher-order derivatives.
type TransformStrategy struct {
	Transform gradients.Transform
}

func (TransformStrategy) gradientStrategy() {}

// DeviceMethodStrategy computes Jacobians with the device's native gradient
// method. The device must be the same instance the batch executes on.
// Not differentiable: only first-order gradients are obtainable.
type DeviceMethodStrategy struct {
	Device device.JacobianDevice
}

func (DeviceMethodStrategy) gradientStrategy() {}

// Options configures one executor invocation.
type Options struct {
	// Nesting tracks the recursion depth of derivative computation,
	// starting at 1. Callers normally leave it zero (treated as 1);
	// the executor sets it on recursive calls.
	Nesting int

	// MaxDiff bounds how many differentiation levels stay differentiable.
	// Zero means the default of 2. At Nesting == MaxDiff the gradient-tape
	// batch is evaluated once, non-recursively, and the resulting VJPs are
	// no longer differentiable.
	MaxDiff int

	// Gradient carries options forwarded to the gradient computation.
	Gradient gradients.Config

	// Logger receives branch tracing at debug level and the
	// depth-truncation warning. Defaults to a no-op logger.
	Logger *zap.Logger
}

// DefaultOptions returns the standard executor options.
func DefaultOptions() Options {
	return Options{
		Nesting:  1,
		MaxDiff:  2,
		Gradient: gradients.DefaultConfig(),
		Logger:   zap.NewNop(),
	}
}

// normalized fills zero values and validates the depth configuration.
func (o Options) normalized() (Options, error) {
	if o.Nesting == 0 {
		o.Nesting = 1
	}
	if o.MaxDiff == 0 {
		o.MaxDiff = 2
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Nesting < 1 || o.MaxDiff < 1 {
		return o, fmt.Errorf("nesting (%d) and max diff (%d) must be >= 1", o.Nesting, o.MaxDiff)
	}
	if o.Nesting > o.MaxDiff {
		return o, fmt.Errorf("%w: nesting %d > max diff %d", ErrMaxDiffExceeded, o.Nesting, o.MaxDiff)
	}
	return o, nil
}
