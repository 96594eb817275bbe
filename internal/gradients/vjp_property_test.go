package gradients

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/quanta-ml/quanta/internal/parallel"
	"github.com/quanta-ml/quanta/internal/tensor"
)

func genMatrix(t *rapid.T, rows, cols int) *tensor.Tensor {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = rapid.Float64Range(-10, 10).Draw(t, "jac")
	}
	jac, err := tensor.FromSlice(data, tensor.Shape{rows, cols})
	require.NoError(t, err)
	return jac
}

func genVector(t *rapid.T, n int) *tensor.Tensor {
	data := make([]float64, n)
	for i := range data {
		data[i] = rapid.Float64Range(-10, 10).Draw(t, "dy")
	}
	return tensor.Vector(data...)
}

// TestComputeVJP_ColumnCount checks that the VJP always has exactly one
// entry per Jacobian column.
func TestComputeVJP_ColumnCount(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		rows := rapid.IntRange(1, 6).Draw(rt, "rows")
		cols := rapid.IntRange(1, 6).Draw(rt, "cols")
		jac := genMatrix(rt, rows, cols)
		dy := genVector(rt, rows)

		vjps, err := ComputeVJP(dy, jac, parallel.Config{})
		require.NoError(rt, err)
		require.Len(rt, vjps, cols)
	})
}

// TestComputeVJP_Linearity checks linearity in the upstream gradient:
// vjp(a*dy1 + b*dy2) == a*vjp(dy1) + b*vjp(dy2).
func TestComputeVJP_Linearity(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		rows := rapid.IntRange(1, 5).Draw(rt, "rows")
		cols := rapid.IntRange(1, 5).Draw(rt, "cols")
		jac := genMatrix(rt, rows, cols)
		dy1 := genVector(rt, rows)
		dy2 := genVector(rt, rows)
		a := rapid.Float64Range(-2, 2).Draw(rt, "a")
		b := rapid.Float64Range(-2, 2).Draw(rt, "b")

		mixed := tensor.ZerosLike(dy1)
		for i := range mixed.Data() {
			mixed.Data()[i] = a*dy1.Data()[i] + b*dy2.Data()[i]
		}

		left, err := ComputeVJP(mixed, jac, parallel.Config{})
		require.NoError(rt, err)
		v1, err := ComputeVJP(dy1, jac, parallel.Config{})
		require.NoError(rt, err)
		v2, err := ComputeVJP(dy2, jac, parallel.Config{})
		require.NoError(rt, err)

		for j := range left {
			want := a*v1[j].Item() + b*v2[j].Item()
			require.InDelta(rt, want, left[j].Item(), 1e-9)
		}
	})
}

// TestComputeVJP_MatchesNaive checks the contraction against a direct
// double loop.
func TestComputeVJP_MatchesNaive(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		rows := rapid.IntRange(1, 6).Draw(rt, "rows")
		cols := rapid.IntRange(1, 6).Draw(rt, "cols")
		jac := genMatrix(rt, rows, cols)
		dy := genVector(rt, rows)

		vjps, err := ComputeVJP(dy, jac, parallel.Config{})
		require.NoError(rt, err)

		for j := 0; j < cols; j++ {
			var want float64
			for i := 0; i < rows; i++ {
				want += dy.Data()[i] * jac.At(i, j)
			}
			require.InDelta(rt, want, vjps[j].Item(), 1e-9)
		}
	})
}
