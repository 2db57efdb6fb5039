// train: trains a network to map painted 2D coordinates to colours, one point at a time.
//
// Usage:
//
//	train --arch="7x4 7x10 3x10" --passes=10000 --lr=1 --width=200 --height=200 --data=points.csv
//
// The CSV holds one point per line as x,y,r,g,b. Without --data a few synthetic points are
// painted instead. Colours are scaled from [0, 255] and coordinates from the canvas size, or
// from the range the points cover when no size is given.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"

	"ffnet/dataset"
	"ffnet/nn"
	"ffnet/utils"
)

const (
	coordinates = 2
	channels    = 3
	maxChannel  = 255
)

var (
	arch        = flag.String("arch", "7x4 7x10 3x10", "Layer shapes as <outputs>x<inputs>; extra inputs are biases")
	activator   = flag.String("activator", "sigmoid", "Activation function: sigmoid, tanh, relu")
	passes      = flag.Int("passes", 10000, "Full passes over the training points")
	stepSize    = flag.Float64("lr", 1, "Step size")
	seed        = flag.Uint64("seed", 42, "Random seed for weight initialisation")
	dataPath    = flag.String("data", "", "CSV of x,y,r,g,b training points")
	width       = flag.Float64("width", 0, "Canvas width; 0 scales x by the range of the points")
	height      = flag.Float64("height", 0, "Canvas height; 0 scales y by the range of the points")
	reportEvery = flag.Int("report", 1000, "Print the mean error every N passes (0 disables)")
	verbose     = flag.Bool("verbose", true, "Verbose output")
)

func main() {
	flag.Parse()
	utils.Verbose = *verbose

	shapes, err := utils.ParseArchitecture(*arch)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing architecture: %v\n", err)
		os.Exit(2)
	}
	config := &utils.Config{
		Architecture: shapes,
		Activator:    *activator,
		Passes:       *passes,
		ReportEvery:  *reportEvery,
		StepSize:     *stepSize,
		Seed:         *seed,
		DataPath:     *dataPath,
	}
	if err := utils.ValidateConfig(config); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(2)
	}
	if err := utils.ValidateArchitecture(config.Architecture, coordinates, channels); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid architecture: %v\n", err)
		os.Exit(2)
	}

	if err := run(config); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(config *utils.Config) error {
	utils.Logf("Configuration:\n")
	fed := coordinates
	for i, s := range config.Architecture {
		utils.Logf("  Layer %d:       %v (%d bias)\n", i, s, s.Bias(fed))
		fed = s.Outputs
	}
	utils.Logf("  Activator:     %s\n", config.Activator)
	utils.Logf("  Passes:        %d\n", config.Passes)
	utils.Logf("  Step size:     %.4f\n", config.StepSize)
	utils.Logf("  Seed:          %d\n\n", config.Seed)

	stats := &utils.TimingStats{}
	totalStart := time.Now()

	start := time.Now()
	raw, err := loadSamples(config.DataPath)
	if err != nil {
		return err
	}
	inRanges, outRanges := canvasRanges(raw, *width, *height), colourRanges()
	samples := dataset.Scale(raw, inRanges, outRanges)
	stats.DataLoadingTime = time.Since(start)
	utils.Logf("Loaded %d points\n", len(samples))

	start = time.Now()
	net, err := nn.NewWithConfig(nn.Config{
		Activator: nn.ActivatorLookup[config.Activator],
		Shapes:    config.Architecture,
		Source:    rand.NewSource(config.Seed),
	})
	if err != nil {
		return errors.Wrap(err, "building network")
	}
	stats.ModelInitTime = time.Since(start)

	utils.Logf("\nStarting training...\n")
	for pass := 1; pass <= config.Passes; pass++ {
		var passLoss float64
		for i, s := range samples {
			loss, err := trainStep(net, s, config.StepSize, stats)
			if err != nil {
				return errors.Wrapf(err, "pass %d, point %d", pass, i)
			}
			passLoss += loss
		}

		if config.ReportEvery > 0 && pass%config.ReportEvery == 0 {
			utils.Logf("Pass %d/%d | Error: %.6f\n", pass, config.Passes, passLoss/float64(len(samples)))
			if bad := net.NonFinite(); len(bad) > 0 {
				utils.Logf("Warning: layers %v hold non-finite weights\n", bad)
			}
		}
	}
	stats.TotalTime = time.Since(totalStart)

	utils.PrintTimingStats(stats, config.Passes*len(samples))

	utils.Logf("\nPredictions:\n")
	for _, s := range raw {
		scaled := dataset.Scale(dataset.Samples{s}, inRanges, outRanges)[0]
		out, err := net.FeedForward(scaled.Inputs)
		if err != nil {
			return err
		}
		utils.Logf("  %v -> %.0f (want %v)\n", s.Inputs, dataset.Unscale(out, outRanges), s.Targets)
	}
	return nil
}

// trainStep is nn.TrainStep with each phase timed separately.
func trainStep(net *nn.Network, s dataset.Sample, stepSize float64, stats *utils.TimingStats) (float64, error) {
	start := time.Now()
	out, err := net.FeedForward(s.Inputs)
	if err != nil {
		return 0, err
	}
	stats.ForwardPassTime += time.Since(start)

	start = time.Now()
	if err := net.BackPropagate(s.Targets, stepSize); err != nil {
		return 0, err
	}
	stats.BackwardPassTime += time.Since(start)

	start = time.Now()
	loss := nn.SquaredError(s.Targets, out)
	stats.LossComputationTime += time.Since(start)

	return loss, nil
}

func loadSamples(path string) (dataset.Samples, error) {
	if path == "" {
		return paintedPoints(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()

	samples, err := dataset.GetSamples(f, coordinates, channels)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	if len(samples) == 0 {
		return nil, errors.Errorf("%s holds no points", path)
	}
	return samples, nil
}

// canvasRanges maps x from [0, width] and y from [0, height]. A zero size falls back to the
// range the points themselves cover.
func canvasRanges(points dataset.Samples, width, height float64) []dataset.Range {
	ranges := points.InputRanges()
	for i, size := range []float64{width, height} {
		if size > 0 {
			ranges[i] = dataset.Range{Min: 0, Max: size}
		}
	}
	return ranges
}

func colourRanges() []dataset.Range {
	ranges := make([]dataset.Range, channels)
	for i := range ranges {
		ranges[i] = dataset.Range{Min: 0, Max: maxChannel}
	}
	return ranges
}

// paintedPoints is a small canvas: red and blue corners with a green stroke between them.
func paintedPoints() dataset.Samples {
	return dataset.Samples{
		{Inputs: []float64{0, 0}, Targets: []float64{255, 0, 0}},
		{Inputs: []float64{40, 10}, Targets: []float64{255, 0, 0}},
		{Inputs: []float64{100, 100}, Targets: []float64{0, 160, 0}},
		{Inputs: []float64{120, 90}, Targets: []float64{0, 160, 0}},
		{Inputs: []float64{200, 200}, Targets: []float64{0, 0, 255}},
		{Inputs: []float64{180, 210}, Targets: []float64{0, 0, 255}},
	}
}
