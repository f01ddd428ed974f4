// Package loader reads a volumetric time series from disk.
//
// The input directory holds one subdirectory per time point. Each subdirectory
// holds the 2D slice images of that volume. Both levels are ordered by the
// number embedded in their names, so "vol_2" sorts before "vol_10".
package loader

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"fmriscreen/pkg/volume"
)

// LoadSeries loads every time point under dir and returns them as a series
func LoadSeries(dir string) (*volume.Series, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var frames []string
	for _, e := range entries {
		if e.IsDir() {
			frames = append(frames, e.Name())
		}
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("no time point directories found in %s", dir)
	}
	sortByNumber(frames)

	vols := make([]*volume.Volume, len(frames))
	for t, name := range frames {
		v, err := LoadVolume(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to load time point %s: %w", name, err)
		}
		vols[t] = v
	}

	return volume.NewSeries(vols...)
}

// LoadVolume loads the slice images in dir as one volume
func LoadVolume(dir string) (*volume.Volume, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	// Filter and sort image files
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".jpg" || ext == ".jpeg" || ext == ".png" {
			files = append(files, e.Name())
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no slice images found in %s", dir)
	}
	sortByNumber(files)

	var shape volume.Shape
	var data []float64
	for i, name := range files {
		img, err := loadImage(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to load image %s: %w", name, err)
		}

		// All slices of a volume must share the first slice's dimensions
		bounds := img.Bounds()
		if i == 0 {
			shape = volume.Shape{Slices: len(files), Height: bounds.Dy(), Width: bounds.Dx()}
			data = make([]float64, 0, shape.Size())
		} else if bounds.Dx() != shape.Width || bounds.Dy() != shape.Height {
			return nil, fmt.Errorf("%w: slice %s is %dx%d, expected %dx%d", volume.ErrShapeMismatch,
				name, bounds.Dx(), bounds.Dy(), shape.Width, shape.Height)
		}

		data = append(data, imageToFloat(img)...)
	}

	return volume.NewVolume(shape, data)
}

// sortByNumber orders names by the number embedded in them, then by name
func sortByNumber(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		ni, nj := extractNumber(names[i]), extractNumber(names[j])
		if ni != nj {
			return ni < nj
		}
		return names[i] < names[j]
	})
}

// extractNumber extracts the digits of a filename as an integer
func extractNumber(filename string) int {
	base := filepath.Base(filename)
	var digits strings.Builder
	for _, c := range base {
		if c >= '0' && c <= '9' {
			digits.WriteRune(c)
		}
	}

	if digits.Len() > 0 {
		if num, err := strconv.Atoi(digits.String()); err == nil {
			return num
		}
	}
	return 0
}

// loadImage decodes a JPEG or PNG file
func loadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, err
	}
	return img, nil
}

// imageToFloat converts an image to row-major intensities in [0, 1]
func imageToFloat(img image.Image) []float64 {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	result := make([]float64, width*height)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, _, _, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			// Convert 16-bit color to float64 (0-1 range)
			result[y*width+x] = float64(r) / 65535.0
		}
	}

	return result
}
