package nn

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
)

// Activator is the scalar non-linearity applied to every neuron.
//
// Deactivate is the derivative of Activate written in terms of the activated output y, not
// the weighted sum: for the sigmoid that is y*(1-y). Back propagation only ever has the
// output at hand, so an Activator whose Deactivate expects the sum trains incorrectly.
type Activator interface {
	Activate(sum float64) float64
	Deactivate(y float64) float64
	fmt.Stringer
}

// ActivatorLookup maps the name each built-in Activator reports to the Activator.
var ActivatorLookup = map[string]Activator{
	"sigmoid": Sigmoid{},
	"tanh":    Tanh{},
	"relu":    ReLU{},
}

// Sigmoid is the logistic function 1/(1+e^-x).
type Sigmoid struct{}

func (s Sigmoid) Activate(sum float64) float64 {
	return 1.0 / (1.0 + math.Exp(-sum))
}

func (s Sigmoid) Deactivate(y float64) float64 {
	return y * (1 - y)
}

func (s Sigmoid) String() string {
	return "sigmoid"
}

// Tanh is the hyperbolic tangent.
type Tanh struct{}

func (t Tanh) Activate(sum float64) float64 {
	return math.Tanh(sum)
}

func (t Tanh) Deactivate(y float64) float64 {
	return 1 - y*y
}

func (t Tanh) String() string {
	return "tanh"
}

// ReLU is leaky with a 0.0001 slope below zero. The output keeps the sign of the sum, so
// the derivative can be read off the output.
type ReLU struct{}

func (r ReLU) Activate(sum float64) float64 {
	if sum < 0 {
		return 0.0001 * sum
	}
	return sum
}

func (r ReLU) Deactivate(y float64) float64 {
	if y < 0 {
		return 0.0001
	}
	return 1
}

func (r ReLU) String() string {
	return "relu"
}

// Funcs adapts a pair of plain functions to an Activator. Deactivate must follow the same
// derivative-of-output convention as the interface.
type Funcs struct {
	Name         string
	ActivateFn   func(sum float64) float64
	DeactivateFn func(y float64) float64
}

func (f Funcs) Activate(sum float64) float64 { return f.ActivateFn(sum) }
func (f Funcs) Deactivate(y float64) float64 { return f.DeactivateFn(y) }

func (f Funcs) String() string {
	if f.Name == "" {
		return "custom"
	}
	return f.Name
}

func checkFuncs(act Activator) error {
	var f Funcs
	switch a := act.(type) {
	case Funcs:
		f = a
	case *Funcs:
		if a == nil {
			return errors.New("activator is nil")
		}
		f = *a
	default:
		return nil
	}
	if f.ActivateFn == nil || f.DeactivateFn == nil {
		return errors.Errorf("activator %v is missing a function", f)
	}
	return nil
}
