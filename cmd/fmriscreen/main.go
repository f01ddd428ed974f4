package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"fmriscreen/internal/loader"
	"fmriscreen/pkg/config"
	"fmriscreen/pkg/mask"
	"fmriscreen/pkg/screen"
	"fmriscreen/pkg/visualization"
	"fmriscreen/pkg/volume"
)

func main() {
	// Parse command line arguments
	inputDir := flag.String("input", "", "Directory with one subdirectory of slice images per time point")
	configPath := flag.String("config", "fmriscreen.yaml", "YAML configuration file (defaults are used if missing)")
	threshold := flag.Float64("threshold", -1, "Mask threshold as a fraction of maximum intensity (overrides config)")
	reference := flag.String("reference", "", "Mask reference image: mean or first (overrides config)")
	components := flag.Int("components", -1, "Number of PCA components to keep, 0 = all (overrides config)")
	numCores := flag.Int("cores", 0, "Number of CPU cores for frame differencing (overrides config)")
	reportFile := flag.String("report", "", "Output YAML report file (overrides config)")
	saveImagesFlag := flag.Bool("images", false, "Save diagnostic images")
	imageDir := flag.String("image-dir", "", "Directory for diagnostic images (overrides config)")
	extractSlices := flag.Bool("extract-slices", false, "Extract and save every slice of the diagnostic volumes along all axes")
	slicesDir := flag.String("slices-dir", "report_slices", "Directory to save extracted slices")
	writeConfig := flag.Bool("write-config", false, "Write the default configuration to -config and exit")
	flag.Parse()

	if *writeConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	// Validate inputs
	if *inputDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Command line flags override the configuration file
	if *threshold >= 0 {
		cfg.Mask.Threshold = *threshold
	}
	if *reference != "" {
		cfg.Mask.Reference = mask.Reference(*reference)
	}
	if *components >= 0 {
		cfg.PCA.NumComponents = *components
	}
	if *numCores > 0 {
		cfg.Processing.NumCores = *numCores
	}
	if *reportFile != "" {
		cfg.Output.ReportFile = *reportFile
	}
	if *saveImagesFlag {
		cfg.Output.SaveImages = true
	}
	if *imageDir != "" {
		cfg.Output.ImageDir = *imageDir
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	fmt.Println("================================")
	fmt.Println("TIME SERIES QUALITY SCREEN")
	fmt.Println("================================")

	startTime := time.Now()
	series, err := loader.LoadSeries(*inputDir)
	if err != nil {
		log.Fatalf("Failed to load series: %v", err)
	}
	if cfg.Output.Verbose {
		fmt.Printf("Loaded %d volumes of shape %s\n", series.Len(), series.Shape())
	}

	report, err := screen.Screen(series, nil, cfg)
	if err != nil {
		log.Fatalf("Screening failed: %v", err)
	}
	fmt.Printf("Screening completed in %.2f seconds\n\n", time.Since(startTime).Seconds())

	printSummary(report, cfg.Output.Verbose)

	if err := writeReport(report, cfg.Output.ReportFile); err != nil {
		log.Fatalf("Failed to write report: %v", err)
	}
	fmt.Printf("\nReport saved to: %s\n", cfg.Output.ReportFile)

	if cfg.Output.SaveImages {
		if err := writeImages(report, cfg.Output.ImageDir); err != nil {
			log.Printf("Warning: Failed to save diagnostic images: %v", err)
		} else {
			fmt.Printf("Diagnostic images saved to: %s\n", cfg.Output.ImageDir)
		}
	}

	if *extractSlices {
		fmt.Println("\nExtracting slices from diagnostic volumes...")
		if err := writeSliceSequences(report, *slicesDir); err != nil {
			log.Printf("Warning: Failed to save slices: %v", err)
		} else {
			fmt.Println("Slice extraction completed!")
		}
	}
}

// printSummary prints the per-pair metrics and the leading components
func printSummary(report *screen.Report, verbose bool) {
	fmt.Printf("Mask voxels: %d\n", report.Mask().Count())

	diffs := report.Diffs()
	worst := 0
	for i, d := range diffs {
		if d.MeanSquaredDiff > diffs[worst].MeanSquaredDiff {
			worst = i
		}
	}
	fmt.Printf("Largest mean squared difference at t=%d: %.6g (max abs %.6g)\n",
		diffs[worst].T, diffs[worst].MeanSquaredDiff, diffs[worst].MaxAbsDiff)

	if verbose {
		fmt.Println("\nFrame differences:")
		fmt.Println("=======================================")
		for _, d := range diffs {
			fmt.Printf("t=%4d  max |diff| %12.6g  mean diff² %12.6g\n", d.T, d.MaxAbsDiff, d.MeanSquaredDiff)
		}
	}

	fmt.Println("\nPrincipal components:")
	fmt.Println("=======================================")
	ratios := report.PCA().ExplainedVarianceRatio
	for i := 0; i < min(len(ratios), 5); i++ {
		fmt.Printf("Component %d: %.2f%% of variance\n", i, ratios[i]*100)
	}
}

// writeReport persists the report digest as YAML
func writeReport(report *screen.Report, path string) error {
	data, err := yaml.Marshal(report.Summary())
	if err != nil {
		return fmt.Errorf("error marshaling report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating report directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// reportVolumes collects the diagnostic volumes of a report by file name
func reportVolumes(report *screen.Report) (map[string]*volume.Volume, error) {
	volumes := map[string]*volume.Volume{
		"mean":            report.MeanVolume(),
		"std":             report.StdVolume(),
		"diff2_mean":      report.Diff2MeanVolume(),
		"slice_diff2_max": report.SliceDiff2MaxVolume(),
	}
	numComponents := report.PCA().NumComponents()
	for i := 0; i < numComponents; i++ {
		comp, _, err := report.Component(i)
		if err != nil {
			return nil, err
		}
		volumes[fmt.Sprintf("component_%02d", i)] = comp
	}
	return volumes, nil
}

// writeImages renders the diagnostic volumes, the slice difference matrix and
// the spatial components
func writeImages(report *screen.Report, dir string) error {
	matrix, err := visualization.RenderMatrix(report.SliceDiffMatrix())
	if err != nil {
		return err
	}
	if err := visualization.SaveImage(matrix, filepath.Join(dir, "slice_diffs.jpg")); err != nil {
		return err
	}

	volumes, err := reportVolumes(report)
	if err != nil {
		return err
	}
	for name, vol := range volumes {
		img, err := visualization.NewViewer(vol).Montage(6)
		if err != nil {
			return err
		}
		if err := visualization.SaveImage(img, filepath.Join(dir, name+".jpg")); err != nil {
			return err
		}
	}
	return nil
}

// writeSliceSequences saves every slice of each diagnostic volume along all
// three axes under dir/<volume>/<axis>
func writeSliceSequences(report *screen.Report, dir string) error {
	volumes, err := reportVolumes(report)
	if err != nil {
		return err
	}
	for name, vol := range volumes {
		viewer := visualization.NewViewer(vol)
		for _, axis := range []string{"x", "y", "z"} {
			axisDir := filepath.Join(dir, name, axis)
			if err := viewer.SaveSliceSequence(axis, axisDir); err != nil {
				return fmt.Errorf("%s %s-axis: %w", name, axis, err)
			}
		}
	}
	return nil
}
