package screen

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"fmriscreen/pkg/volume"
)

// Metric names a per-time-point diagnostic series
type Metric string

const (
	// MaxAbsDiff is the largest absolute voxel difference per pair (T-1 values)
	MaxAbsDiff Metric = "maxAbsDiff"

	// MeanSquaredDiff is the mean squared voxel difference per pair (T-1 values)
	MeanSquaredDiff Metric = "meanSquaredDiff"

	// VolumeMean is the mean intensity per volume (T values)
	VolumeMean Metric = "volumeMean"
)

// MetricSeries returns the ordered values of a metric over time, suitable for
// a line plot. Pair metrics start at t=1.
func (r *Report) MetricSeries(metric Metric) ([]float64, error) {
	diffs := r.diffs.Metrics

	switch metric {
	case MaxAbsDiff:
		out := make([]float64, len(diffs))
		for i, d := range diffs {
			out[i] = d.MaxAbsDiff
		}
		return out, nil
	case MeanSquaredDiff:
		out := make([]float64, len(diffs))
		for i, d := range diffs {
			out[i] = d.MeanSquaredDiff
		}
		return out, nil
	case VolumeMean:
		out := make([]float64, len(r.diffs.VolumeMeans))
		copy(out, r.diffs.VolumeMeans)
		return out, nil
	default:
		return nil, fmt.Errorf("unknown metric %q", metric)
	}
}

// SliceSeries returns the mean squared difference of one slice over time
func (r *Report) SliceSeries(slice int) ([]float64, error) {
	if slice < 0 || slice >= r.shape.Slices {
		return nil, fmt.Errorf("slice %d out of range [0, %d)", slice, r.shape.Slices)
	}
	diffs := r.diffs.Metrics
	out := make([]float64, len(diffs))
	for i, d := range diffs {
		out[i] = d.SliceMeanSquaredDiff[slice]
	}
	return out, nil
}

// SliceDiffMatrix returns the per-slice mean squared differences as a
// (T-1) × slices matrix; row i holds the pair ending at t=i+1
func (r *Report) SliceDiffMatrix() *mat.Dense {
	diffs := r.diffs.Metrics
	m := mat.NewDense(len(diffs), r.shape.Slices, nil)
	for i, d := range diffs {
		m.SetRow(i, d.SliceMeanSquaredDiff)
	}
	return m
}

// SliceDiffVolume expands the per-slice mean squared differences of the pair
// ending at time t into the volume shape: every voxel of slice s holds that
// slice's value. Valid t are 1..SeriesLength()-1.
func (r *Report) SliceDiffVolume(t int) (*volume.Volume, error) {
	if t < 1 || t >= r.seriesLength {
		return nil, fmt.Errorf("time point %d out of range [1, %d)", t, r.seriesLength)
	}
	values := r.diffs.Metrics[t-1].SliceMeanSquaredDiff
	sliceSize := r.shape.SliceSize()

	data := make([]float64, r.shape.Size())
	for s, v := range values {
		for i := s * sliceSize; i < (s+1)*sliceSize; i++ {
			data[i] = v
		}
	}
	return volume.NewVolume(r.shape, data)
}

// Component returns the spatial volume and time-loading curve of PCA
// component i
func (r *Report) Component(i int) (*volume.Volume, []float64, error) {
	if i < 0 || i >= r.pca.NumComponents() {
		return nil, nil, fmt.Errorf("component %d out of range [0, %d)", i, r.pca.NumComponents())
	}
	return r.pca.Components[i], r.pca.Loading(i), nil
}
