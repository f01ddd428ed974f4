package volume

import "errors"

// Error kinds shared by the diagnostics packages. Callers match them with
// errors.Is; packages wrap them with fmt.Errorf to add context.
var (
	// ErrShapeMismatch is returned when volumes or a mask disagree in shape.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrInsufficientLength is returned when a series is too short for the
	// requested computation (fewer than 2 time points).
	ErrInsufficientLength = errors.New("insufficient series length")

	// ErrEmptyMask is returned when a mask selects no voxels.
	ErrEmptyMask = errors.New("mask selects no voxels")

	// ErrSingularInput is returned when the data has no variance to decompose.
	ErrSingularInput = errors.New("singular input")

	// ErrInvalidComponentCount is returned when a requested number of
	// components is negative or exceeds min(voxels, time points).
	ErrInvalidComponentCount = errors.New("invalid component count")
)
