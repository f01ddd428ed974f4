// Package mask derives or validates the spatial mask that restricts which
// voxels take part in principal component analysis.
package mask

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"fmriscreen/pkg/volume"
)

// ErrInvalidThreshold is returned when the threshold is outside [0, 1)
var ErrInvalidThreshold = errors.New("mask: threshold must be within [0, 1)")

// Reference selects the image a default mask is derived from
type Reference string

const (
	// ReferenceMean thresholds the mean volume across time
	ReferenceMean Reference = "mean"

	// ReferenceFirst thresholds the first volume as a proxy
	ReferenceFirst Reference = "first"
)

// Config controls default mask derivation
type Config struct {
	// Threshold is a fraction of the reference image's maximum intensity.
	// Voxels strictly above Threshold*max are kept. 0 keeps every voxel.
	Threshold float64 `yaml:"threshold"`

	// Reference is the image the threshold is applied to
	Reference Reference `yaml:"reference"`
}

// DefaultConfig returns a configuration that keeps every voxel
func DefaultConfig() Config {
	return Config{
		Threshold: 0.0,
		Reference: ReferenceMean,
	}
}

// Validate checks the threshold range and reference name
func (c Config) Validate() error {
	if math.IsNaN(c.Threshold) || c.Threshold < 0 || c.Threshold >= 1 {
		return fmt.Errorf("%w: got %g", ErrInvalidThreshold, c.Threshold)
	}
	switch c.Reference {
	case ReferenceMean, ReferenceFirst, "":
		return nil
	default:
		return fmt.Errorf("mask: unknown reference %q (must be %q or %q)",
			c.Reference, ReferenceMean, ReferenceFirst)
	}
}

// Resolve returns the mask to use for series. When explicit is non-nil it is
// validated against the series shape, otherwise a mask is derived from the
// reference image configured in cfg.
//
// Resolve fails with volume.ErrInsufficientLength for an empty series,
// volume.ErrShapeMismatch when an explicit mask has the wrong shape, and
// volume.ErrEmptyMask when the resulting mask selects no voxels. Input with no
// signal (every voxel zero in the volumes the reference is built from) always
// yields ErrEmptyMask.
func Resolve(series *volume.Series, explicit *volume.Mask, cfg Config) (*volume.Mask, error) {
	if series == nil || series.Len() == 0 {
		return nil, fmt.Errorf("mask: %w: empty series", volume.ErrInsufficientLength)
	}
	shape := series.Shape()

	if explicit != nil {
		if explicit.Shape() != shape {
			return nil, fmt.Errorf("mask: %w: mask shape %s, series shape %s",
				volume.ErrShapeMismatch, explicit.Shape(), shape)
		}
		if explicit.Count() == 0 {
			return nil, fmt.Errorf("mask: %w: explicit mask is empty", volume.ErrEmptyMask)
		}
		return explicit, nil
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if !hasSignal(series, cfg.Reference) {
		return nil, fmt.Errorf("mask: %w: input has no signal", volume.ErrEmptyMask)
	}

	ref := referenceImage(series, cfg.Reference)

	bits := make([]bool, len(ref))
	if cfg.Threshold == 0 {
		for i := range bits {
			bits[i] = true
		}
	} else {
		cut := cfg.Threshold * floats.Max(ref)
		for i, v := range ref {
			bits[i] = v > cut
		}
	}

	m, err := volume.NewMask(shape, bits)
	if err != nil {
		return nil, err
	}
	if m.Count() == 0 {
		return nil, fmt.Errorf("mask: %w: no voxel above %g of maximum intensity",
			volume.ErrEmptyMask, cfg.Threshold)
	}
	return m, nil
}

// hasSignal reports whether any voxel of the input volumes is non-zero.
// Only the first volume is inspected for ReferenceFirst.
func hasSignal(series *volume.Series, ref Reference) bool {
	n := series.Len()
	if ref == ReferenceFirst {
		n = 1
	}
	for t := 0; t < n; t++ {
		data := series.At(t).Data()
		if floats.Max(data) != 0 || floats.Min(data) != 0 {
			return true
		}
	}
	return false
}

// referenceImage returns the flat image the threshold is applied to
func referenceImage(series *volume.Series, ref Reference) []float64 {
	if ref == ReferenceFirst {
		return series.At(0).Data()
	}

	mean := make([]float64, series.Shape().Size())
	for t := 0; t < series.Len(); t++ {
		floats.Add(mean, series.At(t).Data())
	}
	floats.Scale(1/float64(series.Len()), mean)
	return mean
}
