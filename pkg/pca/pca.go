// Package pca decomposes a masked volumetric time series into its dominant
// modes of temporal variation.
//
// The masked voxels of every volume form the columns of a voxel × time matrix
// X. Each row is centered by its temporal mean, which removes static anatomy
// and leaves the dynamic signal. X is then factorized with a thin singular
// value decomposition, X = U Σ Vᵀ. The columns of U are orthonormal spatial
// components over the masked voxels, ranked by singular value, and the time
// loadings are the projections Xᵀu = σv of the centered data onto each
// component.
//
// The SVD is computed on X directly rather than through the covariance matrix
// XᵀX, which would square the condition number.
package pca

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"fmriscreen/pkg/volume"
)

// singularTol is the relative Frobenius norm below which centered data is
// treated as having no variance
const singularTol = 1e-12

// Options controls the decomposition
type Options struct {
	// NumComponents is the number of leading components to retain.
	// Zero retains all min(voxels, time points) components.
	NumComponents int
}

// Result holds a decomposition ranked by descending explained variance
type Result struct {
	// Components are the spatial components reshaped to the volume shape,
	// zero outside the mask
	Components []*volume.Volume

	// ExplainedVarianceRatio is σᵢ² / Σσ², computed over all singular values
	ExplainedVarianceRatio []float64

	// SingularValues are the singular values of the retained components
	SingularValues []float64

	// Basis is the voxel × component matrix of spatial components restricted
	// to the masked voxels, in mask index order
	Basis *mat.Dense

	// TimeLoadings is the time × component matrix of projections
	TimeLoadings *mat.Dense

	// Mask is the voxel selection the decomposition was computed on
	Mask *volume.Mask
}

// NumComponents returns the number of retained components
func (r *Result) NumComponents() int {
	return len(r.Components)
}

// Loading returns the time-loading curve of component i
func (r *Result) Loading(i int) []float64 {
	return mat.Col(nil, i, r.TimeLoadings)
}

// Clone returns a copy of r whose slices and matrices can be modified without
// affecting r. Components and Mask are immutable and stay shared.
func (r *Result) Clone() *Result {
	return &Result{
		Components:             append([]*volume.Volume(nil), r.Components...),
		ExplainedVarianceRatio: append([]float64(nil), r.ExplainedVarianceRatio...),
		SingularValues:         append([]float64(nil), r.SingularValues...),
		Basis:                  mat.DenseCopyOf(r.Basis),
		TimeLoadings:           mat.DenseCopyOf(r.TimeLoadings),
		Mask:                   r.Mask,
	}
}

// Compute runs the decomposition of series restricted to m.
//
// It fails with an error matching both volume.ErrSingularInput and
// volume.ErrInsufficientLength when the series has fewer than two time points,
// volume.ErrEmptyMask for a nil or empty mask, volume.ErrShapeMismatch when the
// mask does not match the series, volume.ErrInvalidComponentCount for a
// component count outside [0, min(voxels, time points)], and
// volume.ErrSingularInput when the masked data has no temporal variance.
func Compute(series *volume.Series, m *volume.Mask, opts Options) (*Result, error) {
	n := 0
	if series != nil {
		n = series.Len()
	}
	if n < 2 {
		return nil, fmt.Errorf("pca: %w: %w: need at least 2 time points, got %d",
			volume.ErrSingularInput, volume.ErrInsufficientLength, n)
	}
	if m == nil || m.Count() == 0 {
		return nil, fmt.Errorf("pca: %w", volume.ErrEmptyMask)
	}
	if m.Shape() != series.Shape() {
		return nil, fmt.Errorf("pca: %w: mask shape %s, series shape %s",
			volume.ErrShapeMismatch, m.Shape(), series.Shape())
	}

	idx := m.Indices()
	voxels := len(idx)
	maxComponents := min(voxels, n)

	k := opts.NumComponents
	if k < 0 || k > maxComponents {
		return nil, fmt.Errorf("pca: %w: requested %d, available %d",
			volume.ErrInvalidComponentCount, k, maxComponents)
	}
	if k == 0 {
		k = maxComponents
	}

	x := maskedMatrix(series, idx)

	rawNorm := mat.Norm(x, 2)
	centerRows(x)
	if mat.Norm(x, 2) <= singularTol*rawNorm {
		return nil, fmt.Errorf("pca: %w: masked data has no temporal variance", volume.ErrSingularInput)
	}

	var svd mat.SVD
	if ok := svd.Factorize(x, mat.SVDThin); !ok {
		return nil, fmt.Errorf("pca: %w: singular value decomposition did not converge", volume.ErrSingularInput)
	}

	values := svd.Values(nil)
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	var total float64
	for _, s := range values {
		total += s * s
	}

	orientComponents(&u, &v)

	res := &Result{
		Components:             make([]*volume.Volume, k),
		ExplainedVarianceRatio: make([]float64, k),
		SingularValues:         make([]float64, k),
		Basis:                  mat.DenseCopyOf(u.Slice(0, voxels, 0, k)),
		TimeLoadings:           mat.NewDense(n, k, nil),
		Mask:                   m,
	}

	shape := series.Shape()
	for i := 0; i < k; i++ {
		res.SingularValues[i] = values[i]
		res.ExplainedVarianceRatio[i] = values[i] * values[i] / total

		for t := 0; t < n; t++ {
			res.TimeLoadings.Set(t, i, values[i]*v.At(t, i))
		}

		data := make([]float64, shape.Size())
		for r, vi := range idx {
			data[vi] = res.Basis.At(r, i)
		}
		comp, err := volume.NewVolume(shape, data)
		if err != nil {
			return nil, err
		}
		res.Components[i] = comp
	}

	return res, nil
}

// maskedMatrix stacks the masked voxels of each volume as the columns of a
// voxel × time matrix
func maskedMatrix(series *volume.Series, idx []int) *mat.Dense {
	n := series.Len()
	x := mat.NewDense(len(idx), n, nil)
	for t := 0; t < n; t++ {
		data := series.At(t).Data()
		for r, vi := range idx {
			x.Set(r, t, data[vi])
		}
	}
	return x
}

// centerRows subtracts each row's mean in place
func centerRows(x *mat.Dense) {
	rows, cols := x.Dims()
	for r := 0; r < rows; r++ {
		row := x.RawRowView(r)
		floats.AddConst(-floats.Sum(row)/float64(cols), row)
	}
}

// orientComponents fixes the sign ambiguity of the SVD: each column of u is
// flipped, together with the matching column of v, so that its largest
// magnitude entry is positive.
func orientComponents(u, v *mat.Dense) {
	rows, cols := u.Dims()
	vRows, _ := v.Dims()
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, u)

		best := 0
		for i := 1; i < rows; i++ {
			if math.Abs(col[i]) > math.Abs(col[best]) {
				best = i
			}
		}
		if col[best] >= 0 {
			continue
		}

		for i := 0; i < rows; i++ {
			u.Set(i, j, -u.At(i, j))
		}
		for i := 0; i < vRows; i++ {
			v.Set(i, j, -v.At(i, j))
		}
	}
}
