package volume

import "fmt"

// Series is an ordered sequence of volumes indexed by acquisition time.
// Every volume in a series has the same shape.
type Series struct {
	volumes []*Volume
	shape   Shape
}

// NewSeries builds a series from volumes in acquisition order. An empty series
// is allowed. Volumes whose shape differs from the first one are rejected with
// ErrShapeMismatch.
func NewSeries(volumes ...*Volume) (*Series, error) {
	s := &Series{volumes: make([]*Volume, len(volumes))}

	for t, v := range volumes {
		if v == nil {
			return nil, fmt.Errorf("%w: volume %d is nil", ErrShapeMismatch, t)
		}
		if t == 0 {
			s.shape = v.shape
		} else if v.shape != s.shape {
			return nil, fmt.Errorf("%w: volume %d has shape %s, expected %s",
				ErrShapeMismatch, t, v.shape, s.shape)
		}
		s.volumes[t] = v
	}

	return s, nil
}

// Len returns the number of time points
func (s *Series) Len() int {
	return len(s.volumes)
}

// At returns the volume at time point t
func (s *Series) At(t int) *Volume {
	return s.volumes[t]
}

// Shape returns the common volume shape. It is the zero Shape for an empty series.
func (s *Series) Shape() Shape {
	return s.shape
}

// Scale returns a new series with every volume scaled by c
func (s *Series) Scale(c float64) *Series {
	out := &Series{volumes: make([]*Volume, len(s.volumes)), shape: s.shape}
	for t, v := range s.volumes {
		out.volumes[t] = v.Scale(c)
	}
	return out
}
