// Package timediff measures frame-to-frame differences across a volumetric
// time series at slice granularity.
//
// For every pair of consecutive volumes (V[t-1], V[t]) it computes the absolute
// difference volume D = |V[t] - V[t-1]| and summarizes it as:
//   - MaxAbsDiff: the global maximum of D, sensitive to isolated spikes
//   - MeanSquaredDiff: the mean of D², a global measure of diffuse change
//   - SliceMeanSquaredDiff: the mean of D² within each slice, localizing
//     artifacts such as slice dropout to a slice index
//
// Pairs are independent and are computed by a bounded group of workers. Each
// worker writes only to its own output index, so results are identical to a
// serial run.
package timediff

import (
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"fmriscreen/pkg/volume"
)

// Metrics holds the difference summary between time points T-1 and T
type Metrics struct {
	// T is the index of the later volume of the pair (1..len-1)
	T int `yaml:"t"`

	// MaxAbsDiff is the largest absolute voxel difference
	MaxAbsDiff float64 `yaml:"maxAbsDiff"`

	// MeanSquaredDiff is the mean squared voxel difference over the volume
	MeanSquaredDiff float64 `yaml:"meanSquaredDiff"`

	// SliceMeanSquaredDiff is the mean squared voxel difference per slice
	SliceMeanSquaredDiff []float64 `yaml:"sliceMeanSquaredDiff"`
}

// Options controls how differences are computed
type Options struct {
	// Workers bounds the number of time pairs processed concurrently.
	// Zero or negative means runtime.NumCPU().
	Workers int
}

// DefaultOptions returns options using all available cores
func DefaultOptions() Options {
	return Options{Workers: runtime.NumCPU()}
}

func (o Options) workers() int {
	if o.Workers <= 0 {
		return runtime.NumCPU()
	}
	return o.Workers
}

// ComputeDiffs returns one Metrics record per consecutive volume pair, in time
// order. The result always has series.Len()-1 entries. A series with fewer
// than two volumes fails with volume.ErrInsufficientLength.
func ComputeDiffs(series *volume.Series, opts Options) ([]Metrics, error) {
	if series == nil {
		return nil, fmt.Errorf("timediff: %w: nil series", volume.ErrInsufficientLength)
	}
	n := series.Len()
	if n < 2 {
		return nil, fmt.Errorf("timediff: %w: need at least 2 time points, got %d",
			volume.ErrInsufficientLength, n)
	}

	metrics := make([]Metrics, n-1)

	var g errgroup.Group
	g.SetLimit(opts.workers())
	for t := 1; t < n; t++ {
		t := t
		g.Go(func() error {
			metrics[t-1] = pairMetrics(series.At(t-1), series.At(t), t)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return metrics, nil
}

// pairMetrics summarizes |cur - prev| for one volume pair
func pairMetrics(prev, cur *volume.Volume, t int) Metrics {
	shape := cur.Shape()
	sliceSize := shape.SliceSize()
	a := prev.Data()
	b := cur.Data()

	m := Metrics{
		T:                    t,
		SliceMeanSquaredDiff: make([]float64, shape.Slices),
	}

	var total float64
	for s := 0; s < shape.Slices; s++ {
		var sliceSum float64
		base := s * sliceSize
		for i := base; i < base+sliceSize; i++ {
			d := math.Abs(b[i] - a[i])
			if d > m.MaxAbsDiff {
				m.MaxAbsDiff = d
			}
			sliceSum += d * d
		}
		m.SliceMeanSquaredDiff[s] = sliceSum / float64(sliceSize)
		total += sliceSum
	}
	m.MeanSquaredDiff = total / float64(shape.Size())

	return m
}

// Analysis extends the per-pair metrics with volume-level summaries
type Analysis struct {
	// Metrics holds one record per consecutive pair
	Metrics []Metrics

	// VolumeMeans is the mean intensity of each volume, one per time point
	VolumeMeans []float64

	// Diff2MeanVolume is the squared difference volume averaged over all pairs
	Diff2MeanVolume *volume.Volume

	// SliceDiff2MaxVolume holds, for each slice, the squared difference slice
	// taken from the pair where that slice's mean squared difference peaks
	SliceDiff2MaxVolume *volume.Volume
}

// Analyze computes the pair metrics together with the volume-level summaries.
// It has the same preconditions as ComputeDiffs.
func Analyze(series *volume.Series, opts Options) (*Analysis, error) {
	metrics, err := ComputeDiffs(series, opts)
	if err != nil {
		return nil, err
	}

	n := series.Len()
	shape := series.Shape()
	sliceSize := shape.SliceSize()

	means := make([]float64, n)
	for t := 0; t < n; t++ {
		means[t] = stat.Mean(series.At(t).Data(), nil)
	}

	// Mean of D² over pairs, accumulated in time order
	meanDiff2 := make([]float64, shape.Size())
	for t := 1; t < n; t++ {
		a := series.At(t - 1).Data()
		b := series.At(t).Data()
		for i := range meanDiff2 {
			d := b[i] - a[i]
			meanDiff2[i] += d * d
		}
	}
	for i := range meanDiff2 {
		meanDiff2[i] /= float64(n - 1)
	}

	// Per slice, the D² slice from the pair with the largest slice mean.
	// Ties keep the earliest pair.
	maxDiff2 := make([]float64, shape.Size())
	for s := 0; s < shape.Slices; s++ {
		best := 0
		for p := 1; p < len(metrics); p++ {
			if metrics[p].SliceMeanSquaredDiff[s] > metrics[best].SliceMeanSquaredDiff[s] {
				best = p
			}
		}
		a := series.At(best).Data()
		b := series.At(best + 1).Data()
		base := s * sliceSize
		for i := base; i < base+sliceSize; i++ {
			d := b[i] - a[i]
			maxDiff2[i] = d * d
		}
	}

	diff2Mean, err := volume.NewVolume(shape, meanDiff2)
	if err != nil {
		return nil, err
	}
	diff2Max, err := volume.NewVolume(shape, maxDiff2)
	if err != nil {
		return nil, err
	}

	return &Analysis{
		Metrics:             metrics,
		VolumeMeans:         means,
		Diff2MeanVolume:     diff2Mean,
		SliceDiff2MaxVolume: diff2Max,
	}, nil
}
