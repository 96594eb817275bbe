package gradients

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quanta-ml/quanta/internal/autodiff"
	"github.com/quanta-ml/quanta/internal/device"
	"github.com/quanta-ml/quanta/internal/parallel"
	"github.com/quanta-ml/quanta/internal/tape"
	"github.com/quanta-ml/quanta/internal/tensor"
)

func expvalTape(observable string, params ...*tensor.Tensor) *tape.Tape {
	ops := make([]tape.Operation, len(params))
	for i, p := range params {
		ops[i] = tape.Operation{Name: "RX", Wires: []int{0}, Params: []*tensor.Tensor{p}}
	}
	return tape.New(ops, []tape.Measurement{{Kind: tape.Expectation, Observable: observable, Wires: []int{0}}})
}

func TestComputeVJP(t *testing.T) {
	// dy = [1, 2], J = [[1, 2], [3, 4]] -> vjp = [7, 10].
	dy := tensor.Vector(1, 2)
	jac, err := tensor.FromSlice([]float64{1, 2, 3, 4}, tensor.Shape{2, 2})
	require.NoError(t, err)

	vjps, err := ComputeVJP(dy, jac, parallel.Config{})
	require.NoError(t, err)
	require.Len(t, vjps, 2)
	assert.InDelta(t, 7.0, vjps[0].Item(), 1e-12)
	assert.InDelta(t, 10.0, vjps[1].Item(), 1e-12)
}

func TestComputeVJP_RowVector(t *testing.T) {
	// Single output, two parameters: dy = [1], J = 1x2 -> vjp = dy . J rows.
	dy := tensor.Vector(1)
	jac, err := tensor.FromSlice([]float64{0.5, -0.25}, tensor.Shape{1, 2})
	require.NoError(t, err)

	vjps, err := ComputeVJP(dy, jac, parallel.Config{})
	require.NoError(t, err)
	require.Len(t, vjps, 2)
	assert.InDelta(t, 0.5, vjps[0].Item(), 1e-12)
	assert.InDelta(t, -0.25, vjps[1].Item(), 1e-12)
}

func TestComputeVJP_ShapeErrors(t *testing.T) {
	dy := tensor.Vector(1, 2)

	_, err := ComputeVJP(dy, tensor.Vector(1, 2), parallel.Config{})
	assert.Error(t, err, "non-2D jacobian accepted")

	jac, err := tensor.FromSlice([]float64{1, 2, 3}, tensor.Shape{3, 1})
	require.NoError(t, err)
	_, err = ComputeVJP(dy, jac, parallel.Config{})
	assert.Error(t, err, "row/dy mismatch accepted")
}

func TestComputeVJP_ParallelMatchesSequential(t *testing.T) {
	rows, cols := 3, 200
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = float64(i%17) - 8
	}
	jac, err := tensor.FromSlice(data, tensor.Shape{rows, cols})
	require.NoError(t, err)
	dy := tensor.Vector(0.5, -1, 2)

	seq, err := ComputeVJP(dy, jac, parallel.Config{})
	require.NoError(t, err)
	par, err := ComputeVJP(dy, jac, parallel.Config{Enabled: true, NumWorkers: 4, MinChunkSize: 8})
	require.NoError(t, err)

	require.Len(t, par, cols)
	for j := range seq {
		assert.InDelta(t, seq[j].Item(), par[j].Item(), 1e-12)
	}
}

func TestParameterShift_GradientMatchesAnalytic(t *testing.T) {
	theta := 0.37
	tp := expvalTape("PauliZ", tensor.Scalar(theta).RequireGrad())
	dev := &device.Analytic{}

	gradTapes, post, err := ParameterShift{}.VJP(tp, tensor.Vector(1), nil, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, gradTapes, 2, "two shifted tapes per trainable parameter")

	results, err := dev.BatchExecute(gradTapes)
	require.NoError(t, err)

	vjps, err := post(results)
	require.NoError(t, err)
	require.Len(t, vjps, 1)
	assert.InDelta(t, -math.Sin(theta), vjps[0].Item(), 1e-9)
}

func TestParameterShift_RespectsTrainableSubset(t *testing.T) {
	a := tensor.Scalar(0.3).RequireGrad()
	b := tensor.Scalar(1.1)
	tp := expvalTape("PauliZ", a, b)
	tp.SetTrainableParams(tape.TrainableIndices(tp.Parameters(false)))
	require.Equal(t, 1, tp.NumTrainable())

	gradTapes, post, err := ParameterShift{}.VJP(tp, tensor.Vector(1), nil, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, gradTapes, 2)

	dev := &device.Analytic{}
	results, err := dev.BatchExecute(gradTapes)
	require.NoError(t, err)
	vjps, err := post(results)
	require.NoError(t, err)
	require.Len(t, vjps, 1)

	// d/da [cos(a)cos(b)] = -sin(a)cos(b).
	assert.InDelta(t, -math.Sin(0.3)*math.Cos(1.1), vjps[0].Item(), 1e-9)
}

func TestParameterShift_ZeroTrainable(t *testing.T) {
	tp := tape.New(nil, []tape.Measurement{{Kind: tape.Expectation, Observable: "PauliZ"}})

	gradTapes, post, err := ParameterShift{}.VJP(tp, tensor.Vector(1), nil, DefaultConfig())
	require.NoError(t, err)
	assert.Empty(t, gradTapes)

	vjps, err := post(nil)
	require.NoError(t, err)
	assert.Empty(t, vjps)
}

func TestParameterShift_DoesNotMutateSource(t *testing.T) {
	theta := tensor.Scalar(0.25).RequireGrad()
	tp := expvalTape("PauliZ", theta)

	_, _, err := ParameterShift{}.VJP(tp, tensor.Vector(1), nil, DefaultConfig())
	require.NoError(t, err)
	assert.Same(t, theta, tp.Parameters(false)[0], "shifting must happen on copies")
	assert.InDelta(t, 0.25, theta.Item(), 1e-12)
}

func TestBatchVJP_ExtendOrdering(t *testing.T) {
	// Two tapes, one and two trainable parameters: the extended VJP vector
	// must follow tape order then intra-tape order.
	a := tensor.Scalar(0.2).RequireGrad()
	b := tensor.Scalar(0.4).RequireGrad()
	c := tensor.Scalar(0.6).RequireGrad()
	t1 := expvalTape("PauliZ", a)
	t2 := expvalTape("PauliZ", b, c)
	for _, tp := range []*tape.Tape{t1, t2} {
		tp.SetTrainableParams(tape.TrainableIndices(tp.Parameters(false)))
	}

	dys := []*tensor.Tensor{tensor.Vector(1), tensor.Vector(1)}
	vjpTapes, processing, err := BatchVJP([]*tape.Tape{t1, t2}, dys, ParameterShift{}, Extend, nil, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, vjpTapes, 6, "2 shifted tapes per trainable parameter")

	dev := &device.Analytic{}
	results, err := dev.BatchExecute(vjpTapes)
	require.NoError(t, err)

	vjps, err := processing(results)
	require.NoError(t, err)
	require.Len(t, vjps, 3)

	assert.InDelta(t, -math.Sin(0.2), vjps[0].Item(), 1e-9)
	assert.InDelta(t, -math.Sin(0.4)*math.Cos(0.6), vjps[1].Item(), 1e-9)
	assert.InDelta(t, -math.Cos(0.4)*math.Sin(0.6), vjps[2].Item(), 1e-9)
}

func TestBatchVJP_AppendStacksPerTape(t *testing.T) {
	b := tensor.Scalar(0.4).RequireGrad()
	c := tensor.Scalar(0.6).RequireGrad()
	tp := expvalTape("PauliZ", b, c)
	tp.SetTrainableParams(tape.TrainableIndices(tp.Parameters(false)))

	vjpTapes, processing, err := BatchVJP([]*tape.Tape{tp}, []*tensor.Tensor{tensor.Vector(1)}, ParameterShift{}, Append, nil, DefaultConfig())
	require.NoError(t, err)

	dev := &device.Analytic{}
	results, err := dev.BatchExecute(vjpTapes)
	require.NoError(t, err)

	vjps, err := processing(results)
	require.NoError(t, err)
	require.Len(t, vjps, 1, "append keeps one entry per source tape")
	assert.Equal(t, tensor.Shape{2}, vjps[0].Shape())
}

func TestBatchVJP_CountMismatch(t *testing.T) {
	tp := expvalTape("PauliZ", tensor.Scalar(0.1))
	_, _, err := BatchVJP([]*tape.Tape{tp}, nil, ParameterShift{}, Extend, nil, DefaultConfig())
	assert.Error(t, err)
}

func TestParameterShift_DifferentiableShiftsRecorded(t *testing.T) {
	g := autodiff.NewGraph()
	g.StartRecording()

	theta := tensor.Scalar(0.3).RequireGrad()
	tp := expvalTape("PauliZ", theta)

	gradTapes, _, err := ParameterShift{}.VJP(tp, tensor.Vector(1), g, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, gradTapes, 2)

	assert.Equal(t, 2, g.NumNodes(), "one shift node per shifted tape")
	assert.True(t, gradTapes[0].Parameters(false)[0].RequiresGrad(),
		"shifted parameter keeps the trainability annotation")
}
