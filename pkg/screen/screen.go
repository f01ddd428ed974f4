// Package screen combines mask resolution, frame differencing and principal
// component analysis into a single diagnostic report for a volumetric time
// series.
package screen

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"fmriscreen/pkg/config"
	"fmriscreen/pkg/mask"
	"fmriscreen/pkg/pca"
	"fmriscreen/pkg/timediff"
	"fmriscreen/pkg/volume"
)

// Report is the result of screening one series. It is fully built by Screen
// and never modified afterwards. Slices and matrices returned by its accessors
// are copies; volumes and the mask are immutable and shared.
type Report struct {
	seriesLength int
	shape        volume.Shape
	mask         *volume.Mask
	diffs        *timediff.Analysis
	pca          *pca.Result

	mean *volume.Volume
	min  *volume.Volume
	max  *volume.Volume
	std  *volume.Volume
}

// Screen runs the diagnostics pipeline on series: the mask is resolved
// (explicit may be nil), frame differences are computed, and the masked series
// is decomposed. A nil cfg uses config.DefaultConfig.
//
// A series with fewer than two time points fails with
// volume.ErrInsufficientLength before any stage runs. Errors from each stage
// are returned unchanged and can be matched with errors.Is against the volume
// error kinds. No partial report is returned.
func Screen(series *volume.Series, explicit *volume.Mask, cfg *config.Config) (*Report, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	n := 0
	if series != nil {
		n = series.Len()
	}
	if n < 2 {
		return nil, fmt.Errorf("screen: %w: need at least 2 time points, got %d",
			volume.ErrInsufficientLength, n)
	}

	m, err := mask.Resolve(series, explicit, cfg.Mask)
	if err != nil {
		return nil, err
	}

	diffs, err := timediff.Analyze(series, timediff.Options{Workers: cfg.Processing.NumCores})
	if err != nil {
		return nil, err
	}

	decomposition, err := pca.Compute(series, m, pca.Options{NumComponents: cfg.PCA.NumComponents})
	if err != nil {
		return nil, err
	}

	r := &Report{
		seriesLength: series.Len(),
		shape:        series.Shape(),
		mask:         m,
		diffs:        diffs,
		pca:          decomposition,
	}
	if err := r.summarize(series); err != nil {
		return nil, err
	}

	return r, nil
}

// summarize computes the per-voxel mean, min, max and standard deviation
// across time
func (r *Report) summarize(series *volume.Series) error {
	size := r.shape.Size()
	mean := make([]float64, size)
	lo := make([]float64, size)
	hi := make([]float64, size)
	std := make([]float64, size)

	ts := make([]float64, series.Len())
	for i := 0; i < size; i++ {
		for t := range ts {
			ts[t] = series.At(t).Data()[i]
		}
		mean[i], std[i] = stat.PopMeanStdDev(ts, nil)
		lo[i] = floats.Min(ts)
		hi[i] = floats.Max(ts)
	}

	var err error
	if r.mean, err = volume.NewVolume(r.shape, mean); err != nil {
		return err
	}
	if r.min, err = volume.NewVolume(r.shape, lo); err != nil {
		return err
	}
	if r.max, err = volume.NewVolume(r.shape, hi); err != nil {
		return err
	}
	r.std, err = volume.NewVolume(r.shape, std)
	return err
}

// SeriesLength returns the number of time points screened
func (r *Report) SeriesLength() int { return r.seriesLength }

// Shape returns the volume shape of the screened series
func (r *Report) Shape() volume.Shape { return r.shape }

// Mask returns the mask the decomposition used
func (r *Report) Mask() *volume.Mask { return r.mask }

// Diffs returns a copy of the per-pair difference metrics in time order
func (r *Report) Diffs() []timediff.Metrics { return copyMetrics(r.diffs.Metrics) }

// PCA returns a copy of the decomposition
func (r *Report) PCA() *pca.Result { return r.pca.Clone() }

// VolumeMeans returns the mean intensity of each volume
func (r *Report) VolumeMeans() []float64 { return append([]float64(nil), r.diffs.VolumeMeans...) }

// Diff2MeanVolume returns the squared difference volume averaged over time
func (r *Report) Diff2MeanVolume() *volume.Volume { return r.diffs.Diff2MeanVolume }

// SliceDiff2MaxVolume returns, per slice, the squared difference slice at
// the pair where that slice changed most
func (r *Report) SliceDiff2MaxVolume() *volume.Volume { return r.diffs.SliceDiff2MaxVolume }

// MeanVolume returns the per-voxel mean over time
func (r *Report) MeanVolume() *volume.Volume { return r.mean }

// MinVolume returns the per-voxel minimum over time
func (r *Report) MinVolume() *volume.Volume { return r.min }

// MaxVolume returns the per-voxel maximum over time
func (r *Report) MaxVolume() *volume.Volume { return r.max }

// StdVolume returns the per-voxel population standard deviation over time
func (r *Report) StdVolume() *volume.Volume { return r.std }

func copyMetrics(metrics []timediff.Metrics) []timediff.Metrics {
	out := make([]timediff.Metrics, len(metrics))
	for i, m := range metrics {
		out[i] = m
		out[i].SliceMeanSquaredDiff = append([]float64(nil), m.SliceMeanSquaredDiff...)
	}
	return out
}
