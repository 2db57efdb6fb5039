package nn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
)

func newSeeded(t *testing.T, seed uint64, act Activator, shapes ...Shape) *Network {
	t.Helper()
	net, err := NewWithConfig(Config{Activator: act, Shapes: shapes, Source: rand.NewSource(seed)})
	require.NoError(t, err)
	return net
}

func TestNewShapesAndRange(t *testing.T) {
	shapes := []Shape{{3, 2}, {2, 4}, {1, 3}}
	net, err := NewSigmoid(shapes...)
	require.NoError(t, err)

	weights := net.Weights()
	require.Len(t, weights, len(shapes))
	for i, w := range weights {
		r, c := w.Dims()
		assert.Equal(t, shapes[i].Outputs, r, "layer %d rows", i)
		assert.Equal(t, shapes[i].Inputs, c, "layer %d cols", i)
		for y := 0; y < r; y++ {
			for x := 0; x < c; x++ {
				v := w.At(y, x)
				assert.True(t, v >= 0 && v < 1, "layer %d weight (%d,%d) = %v", i, y, x, v)
			}
		}
	}
	assert.Equal(t, shapes, net.Shapes())
	assert.Nil(t, net.Activations())
}

func TestNewInvalidTopology(t *testing.T) {
	cases := map[string][]Shape{
		"narrow second layer": {{3, 2}, {1, 2}},
		"narrow third layer":  {{2, 2}, {4, 3}, {1, 3}},
		"no layers":           nil,
		"zero outputs":        {{0, 2}},
		"zero inputs":         {{2, 0}},
	}
	for name, shapes := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewSigmoid(shapes...)
			require.ErrorIs(t, err, ErrInvalidTopology)
		})
	}

	_, err := New(nil, Shape{1, 1})
	require.Error(t, err)
	_, err = New(Funcs{}, Shape{1, 2})
	require.Error(t, err)
	_, err = New(&Funcs{ActivateFn: math.Tanh}, Shape{1, 2})
	require.Error(t, err)
}

func TestNewAcceptsExtraBiasColumns(t *testing.T) {
	_, err := NewSigmoid(Shape{3, 2}, Shape{1, 3}, Shape{2, 5})
	require.NoError(t, err)
}

func TestSeededInitIsReproducible(t *testing.T) {
	a := newSeeded(t, 7, Sigmoid{}, Shape{4, 3}, Shape{2, 5})
	b := newSeeded(t, 7, Sigmoid{}, Shape{4, 3}, Shape{2, 5})
	for i, w := range a.Weights() {
		assert.True(t, mat.Equal(w, b.Weights()[i]), "layer %d differs", i)
	}
}

func TestFeedForwardDeterministic(t *testing.T) {
	net := newSeeded(t, 1, Sigmoid{}, Shape{4, 3}, Shape{3, 5})
	input := []float64{0.25, 0.5}

	first, err := net.FeedForward(input)
	require.NoError(t, err)
	second, err := net.FeedForward(input)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Len(t, first, 3)
}

func TestFeedForwardBiasColumn(t *testing.T) {
	net := newSeeded(t, 2, Sigmoid{}, Shape{1, 2})
	w := net.Weights()[0]

	out, err := net.FeedForward([]float64{0.0})
	require.NoError(t, err)
	require.InDelta(t, Sigmoid{}.Activate(w.At(0, 1)), out[0], 1e-15)

	// with no input at all both columns are bias
	out, err = net.FeedForward(nil)
	require.NoError(t, err)
	require.InDelta(t, Sigmoid{}.Activate(w.At(0, 0)+w.At(0, 1)), out[0], 1e-15)
}

func TestFeedForwardMatchesManualSum(t *testing.T) {
	net, err := NewSigmoid(Shape{2, 3}, Shape{1, 3})
	require.NoError(t, err)
	require.NoError(t, net.SetWeights([]*mat.Dense{
		mat.NewDense(2, 3, []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6}),
		mat.NewDense(1, 3, []float64{0.7, 0.8, 0.9}),
	}))

	out, err := net.FeedForward([]float64{1, 2})
	require.NoError(t, err)

	s := Sigmoid{}
	h0 := s.Activate(0.1*1 + 0.2*2 + 0.3)
	h1 := s.Activate(0.4*1 + 0.5*2 + 0.6)
	want := s.Activate(0.7*h0 + 0.8*h1 + 0.9)
	require.InDelta(t, want, out[0], 1e-12)

	acts := net.Activations()
	require.Len(t, acts, 3)
	assert.Equal(t, []float64{1, 2}, acts[0])
	assert.InDeltaSlice(t, []float64{h0, h1}, acts[1], 1e-12)
}

func TestFeedForwardInvalidInput(t *testing.T) {
	net, err := NewSigmoid(Shape{2, 3})
	require.NoError(t, err)

	_, err = net.FeedForward([]float64{1, 2, 3, 4})
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Nil(t, net.Activations())
}

func TestBackPropagateBeforeFeedForward(t *testing.T) {
	net, err := NewSigmoid(Shape{1, 2})
	require.NoError(t, err)
	require.ErrorIs(t, net.BackPropagate([]float64{0.5}, DefaultStepSize), ErrNoForwardPass)
}

func TestBackPropagateInvalidTargetLeavesWeights(t *testing.T) {
	net := newSeeded(t, 3, Sigmoid{}, Shape{2, 3}, Shape{2, 3})
	_, err := net.FeedForward([]float64{0.1, 0.2})
	require.NoError(t, err)
	before := net.Weights()

	for _, target := range [][]float64{{0.5}, {0.5, 0.5, 0.5}, nil} {
		require.ErrorIs(t, net.BackPropagate(target, DefaultStepSize), ErrInvalidTarget)
	}
	for i, w := range net.Weights() {
		assert.True(t, mat.Equal(before[i], w), "layer %d changed", i)
	}
}

func TestTrainingConverges(t *testing.T) {
	net := newSeeded(t, 11, Sigmoid{}, Shape{1, 3}, Shape{1, 2})
	input, target := []float64{0.1, 0.2}, []float64{0.9}

	var errs []float64
	for i := 0; i < 1000; i++ {
		out, err := net.FeedForward(input)
		require.NoError(t, err)
		if i%100 == 0 {
			d := target[0] - out[0]
			errs = append(errs, d*d)
		}
		require.NoError(t, net.BackPropagate(target, DefaultStepSize))
	}
	out, err := net.FeedForward(input)
	require.NoError(t, err)
	d := target[0] - out[0]
	errs = append(errs, d*d)

	for i := 1; i < len(errs); i++ {
		require.Less(t, errs[i], errs[i-1], "checkpoint %d", i)
	}
}

// expectedUpdate recomputes one back propagation step by hand from the given weights and
// activations, with the bias columns resolved explicitly.
func expectedUpdate(act Activator, weights []*mat.Dense, acts [][]float64, target []float64, step float64) []*mat.Dense {
	last := len(weights) - 1
	deltas := make([][]float64, len(weights))

	out := acts[last+1]
	deltas[last] = make([]float64, len(out))
	for x := range out {
		deltas[last][x] = (target[x] - out[x]) * act.Deactivate(out[x])
	}
	for l := last - 1; l >= 0; l-- {
		rows, _ := weights[l].Dims()
		nextRows, _ := weights[l+1].Dims()
		deltas[l] = make([]float64, rows)
		for x := 0; x < rows; x++ {
			var sum float64
			for y := 0; y < nextRows; y++ {
				sum += deltas[l+1][y] * weights[l+1].At(y, x)
			}
			deltas[l][x] = sum * act.Deactivate(acts[l+1][x])
		}
	}

	want := make([]*mat.Dense, len(weights))
	for l, w := range weights {
		rows, cols := w.Dims()
		want[l] = mat.NewDense(rows, cols, nil)
		for y := 0; y < rows; y++ {
			for x := 0; x < cols; x++ {
				gradient := deltas[l][y]
				if x < len(acts[l]) {
					gradient = acts[l][x] * deltas[l][y]
				}
				want[l].Set(y, x, w.At(y, x)+step*gradient)
			}
		}
	}
	return want
}

func TestBackPropagateUpdatesEveryWeight(t *testing.T) {
	for _, act := range []Activator{Sigmoid{}, Tanh{}} {
		t.Run(act.String(), func(t *testing.T) {
			net := newSeeded(t, 5, act, Shape{3, 2}, Shape{2, 4}, Shape{2, 3})
			_, err := net.FeedForward([]float64{0.6})
			require.NoError(t, err)

			target := []float64{0.2, 0.8}
			want := expectedUpdate(act, net.Weights(), net.Activations(), target, 0.3)

			require.NoError(t, net.BackPropagate(target, 0.3))
			for l, w := range net.Weights() {
				rows, cols := w.Dims()
				for y := 0; y < rows; y++ {
					for x := 0; x < cols; x++ {
						assert.InDelta(t, want[l].At(y, x), w.At(y, x), 1e-12, "layer %d (%d,%d)", l, y, x)
					}
				}
			}
		})
	}
}

func flatten(weights []*mat.Dense) []float64 {
	var flat []float64
	for _, w := range weights {
		flat = append(flat, w.RawMatrix().Data...)
	}
	return flat
}

func unflatten(flat []float64, shapes []Shape) []*mat.Dense {
	weights := make([]*mat.Dense, len(shapes))
	for i, s := range shapes {
		n := s.Outputs * s.Inputs
		weights[i] = mat.NewDense(s.Outputs, s.Inputs, append([]float64(nil), flat[:n]...))
		flat = flat[n:]
	}
	return weights
}

// The update is an ascent step on -SquaredError, so it must equal -stepSize times the
// numerical gradient of the error with respect to the weights.
func TestBackPropagateFollowsNumericalGradient(t *testing.T) {
	const step = 0.5
	net := newSeeded(t, 9, Sigmoid{}, Shape{3, 2}, Shape{2, 4})
	shapes := net.Shapes()
	input, target := []float64{0.3, 0.7}, []float64{0.1, 0.9}
	start := flatten(net.Weights())

	loss := func(w []float64) float64 {
		require.NoError(t, net.SetWeights(unflatten(w, shapes)))
		out, err := net.FeedForward(input)
		require.NoError(t, err)
		return SquaredError(target, out)
	}
	grad := fd.Gradient(nil, loss, start, &fd.Settings{Formula: fd.Central})

	require.NoError(t, net.SetWeights(unflatten(start, shapes)))
	_, err := net.FeedForward(input)
	require.NoError(t, err)
	require.NoError(t, net.BackPropagate(target, step))

	got := flatten(net.Weights())
	for i := range got {
		assert.InDelta(t, -step*grad[i], got[i]-start[i], 1e-6, "weight %d", i)
	}
	assert.Less(t, loss(got), loss(start))
}

func TestSetActivationsDrivesBackPropagate(t *testing.T) {
	net, err := NewSigmoid(Shape{2, 3})
	require.NoError(t, err)
	acts := [][]float64{{0.5}, {0.25, 0.75}}
	require.NoError(t, net.SetActivations(acts))

	target := []float64{1, 0}
	want := expectedUpdate(Sigmoid{}, net.Weights(), acts, target, DefaultStepSize)
	require.NoError(t, net.BackPropagate(target, DefaultStepSize))
	require.True(t, mat.EqualApprox(want[0], net.Weights()[0], 1e-12))
	require.Equal(t, acts, net.Activations())

	require.ErrorIs(t, net.SetActivations([][]float64{{0.5}}), ErrInvalidInput)
	require.ErrorIs(t, net.SetActivations([][]float64{{1, 2, 3, 4}, {0, 0}}), ErrInvalidInput)
	require.ErrorIs(t, net.SetActivations([][]float64{{1}, {0}}), ErrInvalidInput)
}

func TestSetWeightsValidatesShapes(t *testing.T) {
	net, err := NewSigmoid(Shape{2, 3}, Shape{1, 3})
	require.NoError(t, err)

	require.ErrorIs(t, net.SetWeights([]*mat.Dense{mat.NewDense(2, 3, nil)}), ErrInvalidTopology)
	require.ErrorIs(t, net.SetWeights([]*mat.Dense{mat.NewDense(2, 3, nil), mat.NewDense(1, 2, nil)}), ErrInvalidTopology)
	require.ErrorIs(t, net.SetWeights([]*mat.Dense{nil, mat.NewDense(1, 3, nil)}), ErrInvalidTopology)

	w := mat.NewDense(1, 3, []float64{1, 2, 3})
	require.NoError(t, net.SetWeights([]*mat.Dense{mat.NewDense(2, 3, nil), w}))
	w.Set(0, 0, 100)
	assert.Equal(t, 1.0, net.Weights()[1].At(0, 0))
}

func TestNonFinite(t *testing.T) {
	net, err := NewSigmoid(Shape{1, 2}, Shape{1, 2})
	require.NoError(t, err)
	assert.Empty(t, net.NonFinite())

	require.NoError(t, net.SetWeights([]*mat.Dense{
		mat.NewDense(1, 2, []float64{0, math.NaN()}),
		mat.NewDense(1, 2, []float64{math.Inf(-1), 0}),
	}))
	assert.Equal(t, []int{0, 1}, net.NonFinite())
}
