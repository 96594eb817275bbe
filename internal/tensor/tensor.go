package tensor

import "fmt"

// Tensor is a dense float64 array with a shape.
//
// It is the host numeric representation for batch execution: per-tape
// results, Jacobians (row-major matrices) and gradient vectors are all
// carried as Tensors. A Tensor can be marked as requiring gradients,
// which is how tape parameters annotate trainability.
type Tensor struct {
	data         []float64
	shape        Shape
	requiresGrad bool // Whether this tensor participates in differentiation
}

// New creates a zero-filled tensor with the given shape.
func New(shape Shape) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	return &Tensor{
		data:  make([]float64, shape.NumElements()),
		shape: shape.Clone(),
	}, nil
}

// FromSlice creates a tensor from a Go slice.
// The slice is copied into the tensor's memory.
func FromSlice(data []float64, shape Shape) (*Tensor, error) {
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}
	t, err := New(shape)
	if err != nil {
		return nil, err
	}
	copy(t.data, data)
	return t, nil
}

// Scalar creates a 0-D tensor holding a single value.
func Scalar(v float64) *Tensor {
	return &Tensor{data: []float64{v}, shape: Shape{}}
}

// Vector creates a 1-D tensor from the given values.
func Vector(values ...float64) *Tensor {
	t := &Tensor{data: make([]float64, len(values)), shape: Shape{len(values)}}
	copy(t.data, values)
	return t
}

// Zeros creates a zero-filled tensor, panicking on an invalid shape.
// Use New when the shape comes from untrusted input.
func Zeros(shape Shape) *Tensor {
	t, err := New(shape)
	if err != nil {
		panic(err)
	}
	return t
}

// ZerosLike creates a zero-filled tensor with the same shape as t.
func ZerosLike(t *Tensor) *Tensor {
	return Zeros(t.shape)
}

// Ones creates a one-filled tensor, panicking on an invalid shape.
func Ones(shape Shape) *Tensor {
	t := Zeros(shape)
	for i := range t.data {
		t.data[i] = 1.0
	}
	return t
}

// Shape returns the tensor's shape.
func (t *Tensor) Shape() Shape {
	return t.shape
}

// NumElements returns the total number of elements.
func (t *Tensor) NumElements() int {
	return t.shape.NumElements()
}

// Data returns the underlying float64 slice (zero-copy).
//
// WARNING: Modifications to the returned slice will modify the tensor.
func (t *Tensor) Data() []float64 {
	return t.data
}

// Item returns the value of a tensor with exactly one element.
// Panics otherwise.
func (t *Tensor) Item() float64 {
	if t.NumElements() != 1 {
		panic(fmt.Sprintf("Item() only works for single-element tensors, got shape %v", t.shape))
	}
	return t.data[0]
}

// At returns the element of a row-major 2-D tensor at (i, j).
// Panics if the tensor is not 2-D or the indices are out of bounds.
func (t *Tensor) At(i, j int) float64 {
	if len(t.shape) != 2 {
		panic(fmt.Sprintf("At(i, j) requires a 2-D tensor, got shape %v", t.shape))
	}
	rows, cols := t.shape[0], t.shape[1]
	if i < 0 || i >= rows || j < 0 || j >= cols {
		panic(fmt.Sprintf("index (%d, %d) out of bounds for shape %v", i, j, t.shape))
	}
	return t.data[i*cols+j]
}

// Clone creates a deep copy of the tensor.
// Gradient tracking is not carried over.
func (t *Tensor) Clone() *Tensor {
	c := &Tensor{
		data:  make([]float64, len(t.data)),
		shape: t.shape.Clone(),
	}
	copy(c.data, t.data)
	return c
}

// Detach returns a tensor that shares the same data but does not require
// gradients. Operations on the detached tensor do not participate in the
// differentiation graph.
func (t *Tensor) Detach() *Tensor {
	return &Tensor{
		data:  t.data, // Share data (zero-copy)
		shape: t.shape,
	}
}

// RequireGrad marks this tensor as a differentiable input.
// Returns the tensor itself for method chaining.
func (t *Tensor) RequireGrad() *Tensor {
	t.requiresGrad = true
	return t
}

// RequiresGrad returns true if this tensor is marked as a differentiable input.
func (t *Tensor) RequiresGrad() bool {
	return t.requiresGrad
}

// String returns a human-readable representation of the tensor.
func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor%v%v", t.shape, t.data)
}
