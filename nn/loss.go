package nn

import "gonum.org/v1/gonum/floats"

// SquaredError is half the sum of squared differences between target and output. It panics
// if their lengths differ.
func SquaredError(target, output []float64) float64 {
	diff := make([]float64, len(target))
	floats.SubTo(diff, target, output)
	return 0.5 * floats.Dot(diff, diff)
}

// TrainStep runs one forward pass on inputs and one update towards targets, returning the
// error of the output as it was before the update.
func (net *Network) TrainStep(inputs, targets []float64, stepSize float64) (float64, error) {
	output, err := net.FeedForward(inputs)
	if err != nil {
		return 0, err
	}
	if err := net.BackPropagate(targets, stepSize); err != nil {
		return 0, err
	}
	return SquaredError(targets, output), nil
}
