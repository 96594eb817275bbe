package tensor

import (
	"math"
	"testing"
)

// TestShape_NumElements tests element counting, including the scalar case.
func TestShape_NumElements(t *testing.T) {
	if n := (Shape{}).NumElements(); n != 1 {
		t.Errorf("scalar shape NumElements() = %d, want 1", n)
	}
	if n := (Shape{2, 3, 4}).NumElements(); n != 24 {
		t.Errorf("Shape{2,3,4}.NumElements() = %d, want 24", n)
	}
}

// TestShape_Validate tests rejection of non-positive dimensions.
func TestShape_Validate(t *testing.T) {
	if err := (Shape{2, 3}).Validate(); err != nil {
		t.Errorf("valid shape rejected: %v", err)
	}
	if err := (Shape{2, 0}).Validate(); err == nil {
		t.Error("zero dimension accepted")
	}
	if err := (Shape{-1}).Validate(); err == nil {
		t.Error("negative dimension accepted")
	}
}

// TestShape_Equal tests shape comparison.
func TestShape_Equal(t *testing.T) {
	if !(Shape{2, 3}).Equal(Shape{2, 3}) {
		t.Error("equal shapes reported unequal")
	}
	if (Shape{2, 3}).Equal(Shape{3, 2}) {
		t.Error("different shapes reported equal")
	}
	if (Shape{2}).Equal(Shape{2, 1}) {
		t.Error("shapes of different rank reported equal")
	}
}

// TestFromSlice_SizeMismatch tests the element-count check.
func TestFromSlice_SizeMismatch(t *testing.T) {
	if _, err := FromSlice([]float64{1, 2, 3}, Shape{2}); err == nil {
		t.Error("size mismatch accepted")
	}
}

// TestScalar_Item tests scalar round-trip.
func TestScalar_Item(t *testing.T) {
	s := Scalar(2.5)
	if s.Item() != 2.5 {
		t.Errorf("Item() = %v, want 2.5", s.Item())
	}
	if len(s.Shape()) != 0 {
		t.Errorf("scalar shape = %v, want empty", s.Shape())
	}
}

// TestTensor_At tests row-major 2-D indexing.
func TestTensor_At(t *testing.T) {
	m, err := FromSlice([]float64{1, 2, 3, 4, 5, 6}, Shape{2, 3})
	if err != nil {
		t.Fatal(err)
	}
	if got := m.At(1, 2); got != 6 {
		t.Errorf("At(1,2) = %v, want 6", got)
	}
	if got := m.At(0, 1); got != 2 {
		t.Errorf("At(0,1) = %v, want 2", got)
	}
}

// TestTensor_Detach tests that detached tensors share data but drop the
// gradient annotation.
func TestTensor_Detach(t *testing.T) {
	x := Scalar(1.5).RequireGrad()
	d := x.Detach()

	if d.RequiresGrad() {
		t.Error("detached tensor still requires grad")
	}
	d.Data()[0] = 7.0
	if x.Item() != 7.0 {
		t.Error("detached tensor does not share data")
	}
}

// TestTensor_Clone tests deep copy semantics.
func TestTensor_Clone(t *testing.T) {
	x := Vector(1, 2, 3)
	c := x.Clone()
	c.Data()[0] = 99
	if x.Data()[0] != 1 {
		t.Error("clone shares data with original")
	}
}

// TestAdd tests element-wise addition and its shape check.
func TestAdd(t *testing.T) {
	a := Vector(1, 2)
	b := Vector(10, 20)
	sum, err := Add(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Data()[0] != 11 || sum.Data()[1] != 22 {
		t.Errorf("Add = %v, want [11 22]", sum.Data())
	}

	if _, err := Add(a, Vector(1, 2, 3)); err == nil {
		t.Error("shape mismatch accepted")
	}
}

// TestScale tests scalar multiplication.
func TestScale(t *testing.T) {
	out := Scale(Vector(1, -2), 3)
	if out.Data()[0] != 3 || out.Data()[1] != -6 {
		t.Errorf("Scale = %v, want [3 -6]", out.Data())
	}
}

// TestDot tests the inner product.
func TestDot(t *testing.T) {
	got, err := Dot(Vector(1, 2, 3), Vector(4, 5, 6))
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(got-32) > 1e-12 {
		t.Errorf("Dot = %v, want 32", got)
	}

	if _, err := Dot(Vector(1), Vector(1, 2)); err == nil {
		t.Error("size mismatch accepted")
	}
}
