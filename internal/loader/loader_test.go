package loader

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"fmriscreen/pkg/volume"
)

// createTestImage creates a grayscale test image with the specified dimensions and pattern
func createTestImage(width, height int, pattern func(x, y int) uint16) image.Image {
	img := image.NewGray16(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.Gray16{Y: pattern(x, y)})
		}
	}
	return img
}

// writePNG saves img as a PNG file
func writePNG(t *testing.T, path string, img image.Image) {
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create %s: %v", path, err)
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		t.Fatalf("Failed to encode %s: %v", path, err)
	}
}

// createTestSeriesDir writes numFrames time points of numSlices slices where
// every pixel of frame t, slice s has intensity (t*10+s)*100
func createTestSeriesDir(t *testing.T, numFrames, numSlices, width, height int) string {
	dir := t.TempDir()
	for f := 0; f < numFrames; f++ {
		frameDir := filepath.Join(dir, fmt.Sprintf("vol_%d", f))
		if err := os.MkdirAll(frameDir, 0755); err != nil {
			t.Fatalf("Failed to create frame dir: %v", err)
		}
		for s := 0; s < numSlices; s++ {
			value := uint16((f*10 + s) * 100)
			img := createTestImage(width, height, func(x, y int) uint16 { return value })
			writePNG(t, filepath.Join(frameDir, fmt.Sprintf("slice_%d.png", s)), img)
		}
	}
	return dir
}

// TestLoadSeries verifies time point and slice ordering and intensity scaling
func TestLoadSeries(t *testing.T) {
	// 12 frames so that numeric ordering differs from lexical ordering
	dir := createTestSeriesDir(t, 12, 3, 4, 5)

	series, err := LoadSeries(dir)
	if err != nil {
		t.Fatalf("LoadSeries failed: %v", err)
	}

	if series.Len() != 12 {
		t.Fatalf("Expected 12 time points, got %d", series.Len())
	}

	expectedShape := volume.Shape{Slices: 3, Height: 5, Width: 4}
	if series.Shape() != expectedShape {
		t.Errorf("Expected shape %s, got %s", expectedShape, series.Shape())
	}

	for f := 0; f < 12; f++ {
		for s := 0; s < 3; s++ {
			expected := float64((f*10+s)*100) / 65535.0
			got := series.At(f).At(s, 2, 1)
			if math.Abs(got-expected) > 1e-9 {
				t.Errorf("Frame %d slice %d: expected %f, got %f", f, s, expected, got)
			}
		}
	}
}

// TestLoadVolumeMismatchedSlices verifies that slices of different size are rejected
func TestLoadVolumeMismatchedSlices(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "1.png"), createTestImage(4, 4, func(x, y int) uint16 { return 0 }))
	writePNG(t, filepath.Join(dir, "2.png"), createTestImage(3, 4, func(x, y int) uint16 { return 0 }))

	_, err := LoadVolume(dir)
	if !errors.Is(err, volume.ErrShapeMismatch) {
		t.Errorf("Expected ErrShapeMismatch, got %v", err)
	}
}

// TestLoadSeriesErrors verifies failures on missing or empty input
func TestLoadSeriesErrors(t *testing.T) {
	if _, err := LoadSeries(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("Expected error for missing directory, got nil")
	}

	if _, err := LoadSeries(t.TempDir()); err == nil {
		t.Error("Expected error for directory without time points, got nil")
	}

	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "vol_0"), 0755); err != nil {
		t.Fatalf("Failed to create frame dir: %v", err)
	}
	if _, err := LoadSeries(dir); err == nil {
		t.Error("Expected error for time point without images, got nil")
	}
}

// TestExtractNumber verifies numeric ordering keys
func TestExtractNumber(t *testing.T) {
	testCases := []struct {
		name     string
		expected int
	}{
		{"slice_007.jpg", 7},
		{"vol12", 12},
		{"/tmp/a/b3c4.png", 34},
		{"none.png", 0},
	}

	for _, tc := range testCases {
		if got := extractNumber(tc.name); got != tc.expected {
			t.Errorf("extractNumber(%q): expected %d, got %d", tc.name, tc.expected, got)
		}
	}

	names := []string{"vol_10", "vol_2", "vol_1"}
	sortByNumber(names)
	if names[0] != "vol_1" || names[1] != "vol_2" || names[2] != "vol_10" {
		t.Errorf("Expected numeric order, got %v", names)
	}
}
