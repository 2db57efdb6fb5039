// Package dataset holds training samples for a network and reads them from CSV.
package dataset

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// Sample is one training pair.
type Sample struct {
	Inputs  []float64
	Targets []float64
}

// Samples is a training set, visited in order by the trainer.
type Samples []Sample

// Range is the closed interval a raw value is expected to fall in.
type Range struct {
	Min, Max float64
}

// GetSamples reads one sample per line: inputNum inputs followed by outputNum targets,
// comma separated. Blank lines and lines starting with '#' are skipped.
func GetSamples(reader io.Reader, inputNum, outputNum int) (Samples, error) {
	scanner := bufio.NewScanner(reader)
	var samples Samples
	var lineNum int
	for scanner.Scan() {
		lineNum++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		splits := strings.Split(text, ",")
		if len(splits) != inputNum+outputNum {
			return samples, errInvalidLine{
				lineNum:  lineNum,
				splits:   len(splits),
				expected: inputNum + outputNum,
			}
		}

		values := make([]float64, len(splits))
		for i, split := range splits {
			num, err := strconv.ParseFloat(strings.TrimSpace(split), 64)
			if err != nil {
				return samples, errors.Wrapf(err, "line %d, column %d", lineNum, i+1)
			}
			values[i] = num
		}
		samples = append(samples, Sample{
			Inputs:  values[:inputNum:inputNum],
			Targets: values[inputNum:],
		})
	}
	if err := scanner.Err(); err != nil {
		return samples, errors.Wrap(err, "reading samples")
	}
	return samples, nil
}

type errInvalidLine struct {
	lineNum  int
	splits   int
	expected int
}

func (e errInvalidLine) Error() string {
	return fmt.Sprintf("at line %d, expected %d values, got %d",
		e.lineNum, e.expected, e.splits)
}

// InputRanges returns the smallest and largest value seen in each input column.
func (s Samples) InputRanges() []Range {
	return ranges(s, func(smp Sample) []float64 { return smp.Inputs })
}

// TargetRanges returns the smallest and largest value seen in each target column.
func (s Samples) TargetRanges() []Range {
	return ranges(s, func(smp Sample) []float64 { return smp.Targets })
}

func ranges(s Samples, values func(Sample) []float64) []Range {
	if len(s) == 0 {
		return nil
	}
	n := len(values(s[0]))
	out := make([]Range, n)
	column := make([]float64, len(s))
	for j := 0; j < n; j++ {
		for i, smp := range s {
			column[i] = values(smp)[j]
		}
		out[j] = Range{Min: floats.Min(column), Max: floats.Max(column)}
	}
	return out
}

// Scale maps every input and target into [0, 1] using the given per-column ranges. A column
// whose range is empty maps to 0. Values outside the range are not clamped.
func Scale(s Samples, inputs, targets []Range) Samples {
	scaled := make(Samples, len(s))
	for i, smp := range s {
		scaled[i] = Sample{
			Inputs:  scaleValues(smp.Inputs, inputs),
			Targets: scaleValues(smp.Targets, targets),
		}
	}
	return scaled
}

// Unscale is the inverse of Scale for a single vector, for reading network outputs back in
// their original units.
func Unscale(values []float64, ranges []Range) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = ranges[i].Min + v*(ranges[i].Max-ranges[i].Min)
	}
	return out
}

func scaleValues(values []float64, ranges []Range) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		span := ranges[i].Max - ranges[i].Min
		if span == 0 {
			continue
		}
		out[i] = (v - ranges[i].Min) / span
	}
	return out
}
