// Package nn implements a fully connected feed-forward network trained online, one example
// at a time, by back propagation. Biases are not stored separately: any weight column that
// has no upstream value feeding it acts as a bias on a constant input of 1.
package nn

import (
	"math"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// DefaultStepSize is the step size used by the reference training loop.
const DefaultStepSize = 0.7

// Config describes a network to construct.
type Config struct {
	Activator Activator
	Shapes    []Shape
	// Source drives weight initialisation; nil falls back to the global source.
	Source rand.Source
}

// Network owns its weights and the activations of the most recent forward pass.
//
// FeedForward leaves the activation of every layer on the Network and BackPropagate reads
// them, so the two are called in pairs on the same instance. There is no locking: give each
// goroutine its own Network or guard a shared one externally.
type Network struct {
	activator Activator
	shapes    []Shape
	weights   []*mat.Dense
	// neurons[0] is the last input, neurons[i+1] the output of weights[i]. nil until the
	// first forward pass.
	neurons [][]float64
}

// New builds a network with the given activator and layer shapes. Weights are drawn
// uniformly from [0, 1).
func New(act Activator, shapes ...Shape) (*Network, error) {
	return NewWithConfig(Config{Activator: act, Shapes: shapes})
}

// NewSigmoid is New with the logistic sigmoid.
func NewSigmoid(shapes ...Shape) (*Network, error) {
	return New(Sigmoid{}, shapes...)
}

// NewWithConfig builds the network c describes, drawing its initial weights from c.Source.
func NewWithConfig(c Config) (*Network, error) {
	if c.Activator == nil {
		return nil, errors.New("activator is nil")
	}
	if err := checkFuncs(c.Activator); err != nil {
		return nil, err
	}
	if err := validateTopology(c.Shapes); err != nil {
		return nil, err
	}

	net := &Network{
		activator: c.Activator,
		shapes:    append([]Shape(nil), c.Shapes...),
		weights:   make([]*mat.Dense, len(c.Shapes)),
	}
	for i, s := range net.shapes {
		net.weights[i] = randomDense(s.Outputs, s.Inputs, c.Source)
	}
	return net, nil
}

func (net *Network) lastIndex() int {
	return len(net.weights)
}

// FeedForward propagates input through every layer and returns the output of the last one.
// input may be shorter than the first layer's width; the remaining columns act as biases.
func (net *Network) FeedForward(input []float64) ([]float64, error) {
	if width := net.shapes[0].Inputs; len(input) > width {
		return nil, errors.Wrapf(ErrInvalidInput, "got %d values, first layer takes at most %d", len(input), width)
	}

	if net.neurons == nil {
		net.neurons = make([][]float64, len(net.weights)+1)
	}
	net.neurons[0] = append([]float64(nil), input...)

	for i, w := range net.weights {
		rows, cols := w.Dims()
		var sums mat.VecDense
		sums.MulVec(w, withBias(net.neurons[i], cols))

		out := make([]float64, rows)
		for y := range out {
			out[y] = net.activator.Activate(sums.AtVec(y))
		}
		net.neurons[i+1] = out
	}

	return append([]float64(nil), net.neurons[net.lastIndex()]...), nil
}

// BackPropagate moves every weight one step towards producing target for the input of the
// preceding FeedForward call.
func (net *Network) BackPropagate(target []float64, stepSize float64) error {
	if net.neurons == nil {
		return errors.WithStack(ErrNoForwardPass)
	}
	if output := net.neurons[net.lastIndex()]; len(target) != len(output) {
		return errors.Wrapf(ErrInvalidTarget, "got %d values, last output has %d", len(target), len(output))
	}

	// every delta reads the pre-update weights of the layer above, so none may change yet
	deltas := net.deltas(target)

	// Deltas are built from (target - output), which already points uphill on -error², so
	// the gradient is added. Subtracting it here would train away from the target.
	for i, w := range net.weights {
		_, cols := w.Dims()
		w.RankOne(w, stepSize, mat.NewVecDense(len(deltas[i]), deltas[i]), withBias(net.neurons[i], cols))
	}
	return nil
}

// deltas returns the error signal of every neuron, indexed like weights.
func (net *Network) deltas(target []float64) [][]float64 {
	last := len(net.weights) - 1
	deltas := make([][]float64, len(net.weights))

	output := net.neurons[last+1]
	deltas[last] = make([]float64, len(output))
	for x, o := range output {
		deltas[last][x] = (target[x] - o) * net.activator.Deactivate(o)
	}

	for l := last - 1; l >= 0; l-- {
		next := deltas[l+1]
		var errs mat.VecDense
		errs.MulVec(net.weights[l+1].T(), mat.NewVecDense(len(next), next))

		// only the first Outputs columns of the layer above see a real neuron; the rest are
		// bias and carry nothing back
		deltas[l] = make([]float64, net.shapes[l].Outputs)
		for x := range deltas[l] {
			deltas[l][x] = errs.AtVec(x) * net.activator.Deactivate(net.neurons[l+1][x])
		}
	}
	return deltas
}

// Activator returns the activation function the network was built with.
func (net *Network) Activator() Activator {
	return net.activator
}

// Shapes returns a copy of the layer shapes.
func (net *Network) Shapes() []Shape {
	return append([]Shape(nil), net.shapes...)
}

// Weights returns a copy of every weight matrix.
func (net *Network) Weights() []*mat.Dense {
	out := make([]*mat.Dense, len(net.weights))
	for i, w := range net.weights {
		out[i] = mat.DenseCopyOf(w)
	}
	return out
}

// SetWeights replaces every weight matrix with a copy of the given ones, which must match
// the network's shapes.
func (net *Network) SetWeights(weights []*mat.Dense) error {
	if len(weights) != len(net.weights) {
		return errors.Wrapf(ErrInvalidTopology, "got %d weight matrices, network has %d layers", len(weights), len(net.weights))
	}
	for i, w := range weights {
		if w == nil {
			return errors.Wrapf(ErrInvalidTopology, "layer %d: weights are nil", i)
		}
		if r, c := w.Dims(); r != net.shapes[i].Outputs || c != net.shapes[i].Inputs {
			return errors.Wrapf(ErrInvalidTopology, "layer %d: got %dx%d weights, want %v", i, r, c, net.shapes[i])
		}
	}
	for i, w := range weights {
		net.weights[i] = mat.DenseCopyOf(w)
	}
	return nil
}

// Activations returns a copy of the values left by the last forward pass, input first. It
// returns nil before the first pass.
func (net *Network) Activations() [][]float64 {
	if net.neurons == nil {
		return nil
	}
	out := make([][]float64, len(net.neurons))
	for i, a := range net.neurons {
		out[i] = append([]float64(nil), a...)
	}
	return out
}

// SetActivations installs activation state as if a forward pass had produced it, so the
// next BackPropagate works from it.
func (net *Network) SetActivations(neurons [][]float64) error {
	if len(neurons) != len(net.weights)+1 {
		return errors.Wrapf(ErrInvalidInput, "got %d activation vectors, want %d", len(neurons), len(net.weights)+1)
	}
	if width := net.shapes[0].Inputs; len(neurons[0]) > width {
		return errors.Wrapf(ErrInvalidInput, "input has %d values, first layer takes at most %d", len(neurons[0]), width)
	}
	for i, s := range net.shapes {
		if len(neurons[i+1]) != s.Outputs {
			return errors.Wrapf(ErrInvalidInput, "layer %d: got %d activations, want %d", i, len(neurons[i+1]), s.Outputs)
		}
	}

	net.neurons = make([][]float64, len(neurons))
	for i, a := range neurons {
		net.neurons[i] = append([]float64(nil), a...)
	}
	return nil
}

// NonFinite returns the indices of layers holding a NaN or infinite weight. Nothing in the
// network stops training from diverging; this is how callers notice.
func (net *Network) NonFinite() []int {
	var layers []int
	for i, w := range net.weights {
		data := w.RawMatrix().Data
		if floats.HasNaN(data) || math.IsInf(floats.Max(data), 1) || math.IsInf(floats.Min(data), -1) {
			layers = append(layers, i)
		}
	}
	return layers
}
