// Package volume defines the fixed-shape data model shared by the diagnostics
// packages: 3D scalar volumes, ordered time series of volumes and boolean masks.
// All types validate their shape at construction and are immutable afterwards.
package volume

import "fmt"

// Shape is the extent of a volume along its three axes.
// Slices is the slice axis, Height and Width span one slice.
type Shape struct {
	Slices int
	Height int
	Width  int
}

// Size returns the number of voxels in a volume of this shape
func (s Shape) Size() int {
	return s.Slices * s.Height * s.Width
}

// SliceSize returns the number of voxels in one slice
func (s Shape) SliceSize() int {
	return s.Height * s.Width
}

// Index returns the flat row-major index of voxel (slice, y, x)
func (s Shape) Index(slice, y, x int) int {
	return slice*s.Height*s.Width + y*s.Width + x
}

func (s Shape) valid() bool {
	return s.Slices > 0 && s.Height > 0 && s.Width > 0
}

func (s Shape) String() string {
	return fmt.Sprintf("%dx%dx%d", s.Slices, s.Height, s.Width)
}

// Volume is a single 3D scalar snapshot of a time series.
type Volume struct {
	// data holds the voxel intensities in row-major order:
	// index = slice*Height*Width + y*Width + x
	data []float64

	shape Shape
}

// NewVolume creates a volume of the given shape. The data is copied, so the
// caller may reuse its slice. It fails with ErrShapeMismatch if the shape has a
// non-positive dimension or the data length does not match the shape.
func NewVolume(shape Shape, data []float64) (*Volume, error) {
	if !shape.valid() {
		return nil, fmt.Errorf("%w: invalid volume shape %s", ErrShapeMismatch, shape)
	}
	if len(data) != shape.Size() {
		return nil, fmt.Errorf("%w: shape %s needs %d voxels, got %d",
			ErrShapeMismatch, shape, shape.Size(), len(data))
	}

	owned := make([]float64, len(data))
	copy(owned, data)

	return &Volume{data: owned, shape: shape}, nil
}

// Shape returns the volume's shape
func (v *Volume) Shape() Shape {
	return v.shape
}

// At returns the intensity at voxel (slice, y, x)
func (v *Volume) At(slice, y, x int) float64 {
	return v.data[v.shape.Index(slice, y, x)]
}

// Data returns the flat voxel data. The returned slice is shared with the
// volume and must not be modified.
func (v *Volume) Data() []float64 {
	return v.data
}

// Slice returns a copy of one 2D slice in row-major order
func (v *Volume) Slice(s int) []float64 {
	n := v.shape.SliceSize()
	out := make([]float64, n)
	copy(out, v.data[s*n:(s+1)*n])
	return out
}

// Scale returns a new volume with every intensity multiplied by c
func (v *Volume) Scale(c float64) *Volume {
	out := make([]float64, len(v.data))
	for i, val := range v.data {
		out[i] = val * c
	}
	return &Volume{data: out, shape: v.shape}
}
