package volume

import "fmt"

// Mask is a boolean field with the shape of one volume. True marks voxels
// that take part in variance analysis.
type Mask struct {
	bits    []bool
	shape   Shape
	indices []int
}

// NewMask creates a mask of the given shape. The bits are copied.
func NewMask(shape Shape, bits []bool) (*Mask, error) {
	if !shape.valid() {
		return nil, fmt.Errorf("%w: invalid mask shape %s", ErrShapeMismatch, shape)
	}
	if len(bits) != shape.Size() {
		return nil, fmt.Errorf("%w: shape %s needs %d voxels, got %d",
			ErrShapeMismatch, shape, shape.Size(), len(bits))
	}

	m := &Mask{bits: make([]bool, len(bits)), shape: shape}
	copy(m.bits, bits)
	for i, b := range m.bits {
		if b {
			m.indices = append(m.indices, i)
		}
	}
	return m, nil
}

// FullMask returns a mask selecting every voxel of the shape
func FullMask(shape Shape) (*Mask, error) {
	bits := make([]bool, shape.Size())
	for i := range bits {
		bits[i] = true
	}
	return NewMask(shape, bits)
}

// Shape returns the mask's shape
func (m *Mask) Shape() Shape {
	return m.shape
}

// Count returns the number of selected voxels
func (m *Mask) Count() int {
	return len(m.indices)
}

// Contains reports whether flat voxel index i is selected
func (m *Mask) Contains(i int) bool {
	return m.bits[i]
}

// Indices returns the flat indices of the selected voxels in ascending order.
// The returned slice must not be modified.
func (m *Mask) Indices() []int {
	return m.indices
}
