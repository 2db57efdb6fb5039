package utils

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"ffnet/nn"
)

// Config holds training configuration
type Config struct {
	Architecture []nn.Shape
	Activator    string
	Passes       int
	ReportEvery  int
	StepSize     float64
	Seed         uint64
	DataPath     string
}

// ParseArchitecture parses a whitespace separated list of <outputs>x<inputs> layer shapes,
// e.g. "8x3 3x9".
func ParseArchitecture(archStr string) ([]nn.Shape, error) {
	archParts := strings.Fields(archStr)
	arch := make([]nn.Shape, len(archParts))
	for i, s := range archParts {
		outs, ins, ok := strings.Cut(strings.ToLower(s), "x")
		if !ok {
			return nil, errors.Errorf("layer %d: %q is not <outputs>x<inputs>", i, s)
		}
		o, err := strconv.Atoi(outs)
		if err != nil {
			return nil, errors.Wrapf(err, "layer %d outputs", i)
		}
		n, err := strconv.Atoi(ins)
		if err != nil {
			return nil, errors.Wrapf(err, "layer %d inputs", i)
		}
		arch[i] = nn.Shape{Outputs: o, Inputs: n}
	}
	return arch, nil
}

// ValidateConfig validates training configuration
func ValidateConfig(config *Config) error {
	if len(config.Architecture) == 0 {
		return errors.New("architecture must have at least one layer")
	}

	if _, ok := nn.ActivatorLookup[config.Activator]; !ok {
		return errors.Errorf("unknown activator %q", config.Activator)
	}

	if config.Passes <= 0 {
		return errors.New("passes must be positive")
	}

	if config.ReportEvery < 0 {
		return errors.New("report interval must not be negative")
	}

	if config.StepSize <= 0 {
		return errors.New("step size must be positive")
	}

	return nil
}

// ValidateArchitecture checks that arch can take samples of the given width: the first layer
// must have a column for every input value and the last layer one output per target value.
func ValidateArchitecture(arch []nn.Shape, inputs, outputs int) error {
	if len(arch) == 0 {
		return errors.New("architecture must have at least one layer")
	}
	if first := arch[0]; first.Inputs < inputs {
		return errors.Errorf("first layer %v takes %d inputs, samples have %d", first, first.Inputs, inputs)
	}
	if last := arch[len(arch)-1]; last.Outputs != outputs {
		return errors.Errorf("last layer %v yields %d outputs, samples have %d targets", last, last.Outputs, outputs)
	}
	return nil
}
