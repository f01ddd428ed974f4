// Package visualization renders diagnostic volumes and matrices from a screen
// report as 16-bit grayscale images. Intensities are stretched linearly so the
// minimum maps to black and the maximum to white.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"fmriscreen/pkg/volume"
)

// Viewer extracts 2D images from one diagnostic volume
type Viewer struct {
	vol *volume.Volume

	// intensity window used to normalize voxels to [0, 1]
	lo, hi float64
}

// NewViewer creates a viewer whose intensity window spans the volume's range
func NewViewer(vol *volume.Volume) *Viewer {
	data := vol.Data()
	return &Viewer{
		vol: vol,
		lo:  floats.Min(data),
		hi:  floats.Max(data),
	}
}

// gray maps an intensity to a 16-bit gray level within the viewer's window
func (v *Viewer) gray(value float64) color.Gray16 {
	return grayLevel(value, v.lo, v.hi)
}

func grayLevel(value, lo, hi float64) color.Gray16 {
	if hi <= lo {
		return color.Gray16{Y: 0}
	}
	norm := (value - lo) / (hi - lo)
	return color.Gray16{Y: uint16(math.Max(0, math.Min(65535, norm*65535)))}
}

// ExtractSlice extracts a 2D slice from the volume along the specified axis.
// Axis "z" selects along the slice axis, "y" along height and "x" along width.
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}

	shape := v.vol.Shape()
	var img *image.Gray16

	switch axis {
	case "x", "X":
		// Extract slice along the slice/height plane
		if position >= shape.Width {
			return nil, fmt.Errorf("position %d exceeds width %d", position, shape.Width)
		}

		img = image.NewGray16(image.Rect(0, 0, shape.Slices, shape.Height))
		for y := 0; y < shape.Height; y++ {
			for z := 0; z < shape.Slices; z++ {
				img.SetGray16(z, y, v.gray(v.vol.At(z, y, position)))
			}
		}

	case "y", "Y":
		// Extract slice along the slice/width plane
		if position >= shape.Height {
			return nil, fmt.Errorf("position %d exceeds height %d", position, shape.Height)
		}

		img = image.NewGray16(image.Rect(0, 0, shape.Width, shape.Slices))
		for z := 0; z < shape.Slices; z++ {
			for x := 0; x < shape.Width; x++ {
				img.SetGray16(x, z, v.gray(v.vol.At(z, position, x)))
			}
		}

	case "z", "Z":
		// Extract one acquired slice
		if position >= shape.Slices {
			return nil, fmt.Errorf("position %d exceeds slice count %d", position, shape.Slices)
		}

		img = image.NewGray16(image.Rect(0, 0, shape.Width, shape.Height))
		for y := 0; y < shape.Height; y++ {
			for x := 0; x < shape.Width; x++ {
				img.SetGray16(x, y, v.gray(v.vol.At(position, y, x)))
			}
		}

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return img, nil
}

// Montage tiles every acquired slice of the volume side by side in a grid
// with the given number of columns
func (v *Viewer) Montage(columns int) (image.Image, error) {
	if columns <= 0 {
		return nil, fmt.Errorf("columns must be positive, got %d", columns)
	}
	shape := v.vol.Shape()
	rows := (shape.Slices + columns - 1) / columns
	cols := min(columns, shape.Slices)

	img := image.NewGray16(image.Rect(0, 0, cols*shape.Width, rows*shape.Height))
	for s := 0; s < shape.Slices; s++ {
		x0 := (s % columns) * shape.Width
		y0 := (s / columns) * shape.Height
		for y := 0; y < shape.Height; y++ {
			for x := 0; x < shape.Width; x++ {
				img.SetGray16(x0+x, y0+y, v.gray(v.vol.At(s, y, x)))
			}
		}
	}
	return img, nil
}

// RenderMatrix renders a matrix as an image with one pixel per element.
// Rows map to image columns so a time × slice matrix reads left to right
// in time.
func RenderMatrix(m mat.Matrix) (image.Image, error) {
	r, c := m.Dims()
	if r == 0 || c == 0 {
		return nil, fmt.Errorf("matrix is empty")
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			lo = math.Min(lo, m.At(i, j))
			hi = math.Max(hi, m.At(i, j))
		}
	}

	img := image.NewGray16(image.Rect(0, 0, r, c))
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			img.SetGray16(i, j, grayLevel(m.At(i, j), lo, hi))
		}
	}
	return img, nil
}

// SaveImage saves an image as a JPEG file, creating its directory
func SaveImage(img image.Image, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return err
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}

// SaveSliceSequence extracts and saves every slice along the specified axis
func (v *Viewer) SaveSliceSequence(axis string, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	shape := v.vol.Shape()
	var maxPos int
	switch axis {
	case "x", "X":
		maxPos = shape.Width
	case "y", "Y":
		maxPos = shape.Height
	case "z", "Z":
		maxPos = shape.Slices
	default:
		return fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	for pos := 0; pos < maxPos; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.jpg", axis, pos))
		if err := SaveImage(img, filename); err != nil {
			return err
		}
	}

	return nil
}
