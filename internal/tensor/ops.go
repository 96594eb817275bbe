package tensor

import "fmt"

// Add returns the element-wise sum of a and b.
// Shapes must match exactly; no broadcasting.
func Add(a, b *Tensor) (*Tensor, error) {
	if !a.shape.Equal(b.shape) {
		return nil, fmt.Errorf("shape mismatch in Add: %v vs %v", a.shape, b.shape)
	}
	out := Zeros(a.shape)
	for i := range out.data {
		out.data[i] = a.data[i] + b.data[i]
	}
	return out, nil
}

// Scale returns c * t.
func Scale(t *Tensor, c float64) *Tensor {
	out := Zeros(t.shape)
	for i := range out.data {
		out.data[i] = c * t.data[i]
	}
	return out
}

// AddScalar returns t + c element-wise.
func AddScalar(t *Tensor, c float64) *Tensor {
	out := Zeros(t.shape)
	for i := range out.data {
		out.data[i] = t.data[i] + c
	}
	return out
}

// Dot returns the inner product of two tensors with the same number of
// elements, treating both as flat vectors.
func Dot(a, b *Tensor) (float64, error) {
	if a.NumElements() != b.NumElements() {
		return 0, fmt.Errorf("size mismatch in Dot: %d vs %d elements", a.NumElements(), b.NumElements())
	}
	var sum float64
	for i := range a.data {
		sum += a.data[i] * b.data[i]
	}
	return sum, nil
}
