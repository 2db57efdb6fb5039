package nn

import (
	"fmt"

	"github.com/pkg/errors"
)

// Shape is the size of one weight matrix: Outputs rows (destination neurons) by Inputs
// columns (source slots). Inputs beyond what the previous layer produces are bias slots.
type Shape struct {
	Outputs int
	Inputs  int
}

func (s Shape) String() string {
	return fmt.Sprintf("%dx%d", s.Outputs, s.Inputs)
}

// Bias returns how many bias columns the layer carries when fed n live values.
func (s Shape) Bias(n int) int {
	if n >= s.Inputs {
		return 0
	}
	return s.Inputs - n
}

func validateTopology(shapes []Shape) error {
	if len(shapes) == 0 {
		return errors.Wrap(ErrInvalidTopology, "no layers")
	}
	for i, s := range shapes {
		if s.Outputs <= 0 || s.Inputs <= 0 {
			return errors.Wrapf(ErrInvalidTopology, "layer %d has shape %v", i, s)
		}
		if i > 0 && s.Inputs < shapes[i-1].Outputs {
			return errors.Wrapf(ErrInvalidTopology,
				"layer %d takes %d inputs but layer %d produces %d outputs",
				i, s.Inputs, i-1, shapes[i-1].Outputs)
		}
	}
	return nil
}
