package timediff

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"fmriscreen/pkg/volume"
)

// createTestSeries builds a series of n volumes with the given shape whose voxel
// values come from pattern(t, slice, y, x)
func createTestSeries(t *testing.T, n int, shape volume.Shape, pattern func(t, s, y, x int) float64) *volume.Series {
	vols := make([]*volume.Volume, n)
	for ti := 0; ti < n; ti++ {
		data := make([]float64, shape.Size())
		for s := 0; s < shape.Slices; s++ {
			for y := 0; y < shape.Height; y++ {
				for x := 0; x < shape.Width; x++ {
					data[shape.Index(s, y, x)] = pattern(ti, s, y, x)
				}
			}
		}
		v, err := volume.NewVolume(shape, data)
		if err != nil {
			t.Fatalf("Failed to create volume %d: %v", ti, err)
		}
		vols[ti] = v
	}
	series, err := volume.NewSeries(vols...)
	if err != nil {
		t.Fatalf("Failed to create series: %v", err)
	}
	return series
}

// noisyPattern is a deterministic, irregular intensity pattern
func noisyPattern(t, s, y, x int) float64 {
	return 100 + 10*math.Sin(float64(t*7+s*3+y*5+x)) + float64((t*x+s*y)%4)
}

// TestComputeDiffsLength verifies the T-1 output length, time order and non-negativity
func TestComputeDiffsLength(t *testing.T) {
	shape := volume.Shape{Slices: 3, Height: 4, Width: 5}

	for _, n := range []int{2, 3, 7} {
		series := createTestSeries(t, n, shape, noisyPattern)
		metrics, err := ComputeDiffs(series, DefaultOptions())
		if err != nil {
			t.Fatalf("ComputeDiffs failed for length %d: %v", n, err)
		}

		if len(metrics) != n-1 {
			t.Errorf("Expected %d metrics, got %d", n-1, len(metrics))
		}

		for i, m := range metrics {
			if m.T != i+1 {
				t.Errorf("Expected metrics[%d].T = %d, got %d", i, i+1, m.T)
			}
			if m.MaxAbsDiff < 0 || m.MeanSquaredDiff < 0 {
				t.Errorf("Metrics at t=%d must be non-negative, got max=%f msd=%f",
					m.T, m.MaxAbsDiff, m.MeanSquaredDiff)
			}
			if len(m.SliceMeanSquaredDiff) != shape.Slices {
				t.Errorf("Expected %d slice values, got %d", shape.Slices, len(m.SliceMeanSquaredDiff))
			}
			for s, v := range m.SliceMeanSquaredDiff {
				if v < 0 {
					t.Errorf("Slice %d value at t=%d is negative: %f", s, m.T, v)
				}
			}
		}
	}
}

// TestComputeDiffsKnownValues checks the metrics against hand-computed values
func TestComputeDiffsKnownValues(t *testing.T) {
	shape := volume.Shape{Slices: 2, Height: 1, Width: 2}
	a, _ := volume.NewVolume(shape, []float64{0, 0, 0, 0})
	b, _ := volume.NewVolume(shape, []float64{1, -3, 2, 0})
	series, err := volume.NewSeries(a, b)
	if err != nil {
		t.Fatalf("Failed to create series: %v", err)
	}

	metrics, err := ComputeDiffs(series, Options{Workers: 1})
	if err != nil {
		t.Fatalf("ComputeDiffs failed: %v", err)
	}

	m := metrics[0]
	if m.MaxAbsDiff != 3 {
		t.Errorf("Expected MaxAbsDiff 3, got %f", m.MaxAbsDiff)
	}
	// (1 + 9 + 4 + 0) / 4
	if m.MeanSquaredDiff != 3.5 {
		t.Errorf("Expected MeanSquaredDiff 3.5, got %f", m.MeanSquaredDiff)
	}
	// slice 0: (1 + 9) / 2, slice 1: (4 + 0) / 2
	expected := []float64{5, 2}
	if !reflect.DeepEqual(m.SliceMeanSquaredDiff, expected) {
		t.Errorf("Expected slice values %v, got %v", expected, m.SliceMeanSquaredDiff)
	}
}

// TestComputeDiffsIdenticalVolumes verifies that unchanged volumes give exact zeros
func TestComputeDiffsIdenticalVolumes(t *testing.T) {
	shape := volume.Shape{Slices: 2, Height: 3, Width: 3}
	// Volumes 1 and 2 are identical, 0 and 3 differ
	series := createTestSeries(t, 4, shape, func(ti, s, y, x int) float64 {
		if ti == 1 || ti == 2 {
			return 0.1*float64(s+y+x) + 0.7
		}
		return float64(ti) * 3.3
	})

	metrics, err := ComputeDiffs(series, DefaultOptions())
	if err != nil {
		t.Fatalf("ComputeDiffs failed: %v", err)
	}

	m := metrics[1]
	if m.MaxAbsDiff != 0 || m.MeanSquaredDiff != 0 {
		t.Errorf("Expected zero metrics for identical volumes, got max=%g msd=%g",
			m.MaxAbsDiff, m.MeanSquaredDiff)
	}
	for s, v := range m.SliceMeanSquaredDiff {
		if v != 0 {
			t.Errorf("Expected zero for slice %d, got %g", s, v)
		}
	}

	if metrics[0].MaxAbsDiff == 0 || metrics[2].MaxAbsDiff == 0 {
		t.Errorf("Expected non-zero differences for changing volumes")
	}
}

// TestComputeDiffsScaling verifies that scaling intensities by c scales the
// max difference by c and the mean squared difference by c²
func TestComputeDiffsScaling(t *testing.T) {
	shape := volume.Shape{Slices: 2, Height: 4, Width: 4}
	series := createTestSeries(t, 5, shape, noisyPattern)
	const c = 3.5

	base, err := ComputeDiffs(series, DefaultOptions())
	if err != nil {
		t.Fatalf("ComputeDiffs failed: %v", err)
	}
	scaled, err := ComputeDiffs(series.Scale(c), DefaultOptions())
	if err != nil {
		t.Fatalf("ComputeDiffs failed on scaled series: %v", err)
	}

	for i := range base {
		if math.Abs(scaled[i].MaxAbsDiff-c*base[i].MaxAbsDiff) > 1e-9*c*base[i].MaxAbsDiff {
			t.Errorf("t=%d: expected MaxAbsDiff %f, got %f",
				base[i].T, c*base[i].MaxAbsDiff, scaled[i].MaxAbsDiff)
		}
		want := c * c * base[i].MeanSquaredDiff
		if math.Abs(scaled[i].MeanSquaredDiff-want) > 1e-9*want {
			t.Errorf("t=%d: expected MeanSquaredDiff %f, got %f",
				base[i].T, want, scaled[i].MeanSquaredDiff)
		}
	}
}

// TestComputeDiffsInsufficientLength verifies the length precondition
func TestComputeDiffsInsufficientLength(t *testing.T) {
	shape := volume.Shape{Slices: 1, Height: 2, Width: 2}

	for _, n := range []int{0, 1} {
		series := createTestSeries(t, n, shape, noisyPattern)
		_, err := ComputeDiffs(series, DefaultOptions())
		if !errors.Is(err, volume.ErrInsufficientLength) {
			t.Errorf("Expected ErrInsufficientLength for length %d, got %v", n, err)
		}
	}

	if _, err := ComputeDiffs(nil, DefaultOptions()); !errors.Is(err, volume.ErrInsufficientLength) {
		t.Errorf("Expected ErrInsufficientLength for nil series, got %v", err)
	}
}

// TestComputeDiffsParallelMatchesSerial verifies that the worker count does not change results
func TestComputeDiffsParallelMatchesSerial(t *testing.T) {
	shape := volume.Shape{Slices: 4, Height: 6, Width: 6}
	series := createTestSeries(t, 20, shape, noisyPattern)

	serial, err := ComputeDiffs(series, Options{Workers: 1})
	if err != nil {
		t.Fatalf("Serial ComputeDiffs failed: %v", err)
	}
	parallel, err := ComputeDiffs(series, Options{Workers: 8})
	if err != nil {
		t.Fatalf("Parallel ComputeDiffs failed: %v", err)
	}

	if !reflect.DeepEqual(serial, parallel) {
		t.Errorf("Parallel results differ from serial results")
	}
}

// TestAnalyze verifies the volume-level summaries
func TestAnalyze(t *testing.T) {
	shape := volume.Shape{Slices: 2, Height: 1, Width: 1}
	// slice 0 jumps between t=0 and t=1, slice 1 jumps between t=1 and t=2
	values := [][]float64{
		{0, 0},
		{2, 0},
		{2, 4},
	}
	vols := make([]*volume.Volume, len(values))
	for i, v := range values {
		vol, err := volume.NewVolume(shape, v)
		if err != nil {
			t.Fatalf("Failed to create volume: %v", err)
		}
		vols[i] = vol
	}
	series, err := volume.NewSeries(vols...)
	if err != nil {
		t.Fatalf("Failed to create series: %v", err)
	}

	a, err := Analyze(series, DefaultOptions())
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	expectedMeans := []float64{0, 1, 3}
	if !reflect.DeepEqual(a.VolumeMeans, expectedMeans) {
		t.Errorf("Expected volume means %v, got %v", expectedMeans, a.VolumeMeans)
	}

	// D² per pair: pair 1 = {4, 0}, pair 2 = {0, 16}
	expectedMean := []float64{2, 8}
	if !reflect.DeepEqual(a.Diff2MeanVolume.Data(), expectedMean) {
		t.Errorf("Expected mean diff² volume %v, got %v", expectedMean, a.Diff2MeanVolume.Data())
	}

	expectedMax := []float64{4, 16}
	if !reflect.DeepEqual(a.SliceDiff2MaxVolume.Data(), expectedMax) {
		t.Errorf("Expected max diff² volume %v, got %v", expectedMax, a.SliceDiff2MaxVolume.Data())
	}

	if len(a.Metrics) != 2 {
		t.Errorf("Expected 2 metrics, got %d", len(a.Metrics))
	}
}
