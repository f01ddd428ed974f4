package screen

import "fmriscreen/pkg/timediff"

// Summary is a serializable digest of a Report, without the volumes
type Summary struct {
	SeriesLength int `yaml:"seriesLength"`

	Shape struct {
		Slices int `yaml:"slices"`
		Height int `yaml:"height"`
		Width  int `yaml:"width"`
	} `yaml:"shape"`

	MaskVoxels int `yaml:"maskVoxels"`

	VolumeMeans []float64 `yaml:"volumeMeans"`

	Diffs []timediff.Metrics `yaml:"diffs"`

	PCA struct {
		ExplainedVarianceRatio []float64   `yaml:"explainedVarianceRatio"`
		SingularValues         []float64   `yaml:"singularValues"`
		TimeLoadings           [][]float64 `yaml:"timeLoadings"`
	} `yaml:"pca"`
}

// Summary returns the digest of the report. Time loadings are listed per
// component. The digest shares no memory with the report.
func (r *Report) Summary() Summary {
	var s Summary
	s.SeriesLength = r.seriesLength
	s.Shape.Slices = r.shape.Slices
	s.Shape.Height = r.shape.Height
	s.Shape.Width = r.shape.Width
	s.MaskVoxels = r.mask.Count()
	s.VolumeMeans = r.VolumeMeans()
	s.Diffs = r.Diffs()

	s.PCA.ExplainedVarianceRatio = append([]float64(nil), r.pca.ExplainedVarianceRatio...)
	s.PCA.SingularValues = append([]float64(nil), r.pca.SingularValues...)
	s.PCA.TimeLoadings = make([][]float64, r.pca.NumComponents())
	for i := range s.PCA.TimeLoadings {
		s.PCA.TimeLoadings[i] = r.pca.Loading(i)
	}
	return s
}
