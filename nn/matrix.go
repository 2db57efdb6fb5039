package nn

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// withBias resolves every input slot of a layer `width` columns wide against the live
// values a: slot x reads a[x] while x < len(a), and is a bias slot holding 1 otherwise.
// Forward and backward passes both go through here so the two always agree on which
// columns are bias.
func withBias(a []float64, width int) *mat.VecDense {
	v := make([]float64, width)
	n := copy(v, a)
	for x := n; x < width; x++ {
		v[x] = 1
	}
	return mat.NewVecDense(width, v)
}

// randomDense returns a rows×cols matrix of independent draws from [0, 1).
func randomDense(rows, cols int, src rand.Source) *mat.Dense {
	dist := distuv.Uniform{
		Min: 0,
		Max: 1,
		Src: src,
	}

	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = dist.Rand()
	}
	return mat.NewDense(rows, cols, data)
}
