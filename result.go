package canopy

import (
	"github.com/canopylabs/go-canopy/render"
	"github.com/canopylabs/go-canopy/segment"
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// annotation rendering parameters
const (
	markerRadius       = 14
	outlineExpandRatio = 0.1
	boxLineThickness   = 2
)

// TreeSummary is the per tree record of the analysis, suitable for JSON
// export.  Coordinates are in full resolution panorama pixels and IDs
// follow the deterministic reading order numbering.
type TreeSummary struct {
	ID          int     `json:"id"`
	X           int     `json:"x"`
	Y           int     `json:"y"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	CentroidX   int     `json:"centroid_x"`
	CentroidY   int     `json:"centroid_y"`
	Area        float64 `json:"area"`
	Disease     string  `json:"disease"`
	Confidence  float64 `json:"confidence"`
	HealthScore float64 `json:"health_score"`
}

// ConfidenceStats summarizes the classifier confidence across all
// classified trees
type ConfidenceStats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// HealthStats aggregates the plantation health picture.  DiseaseCounts
// holds the label histogram over classified trees, the Healthy label
// included, unclassified trees are tallied separately.
type HealthStats struct {
	Total         int             `json:"total"`
	Healthy       int             `json:"healthy"`
	Diseased      int             `json:"diseased"`
	Unclassified  int             `json:"unclassified"`
	HealthPercent float64         `json:"health_percent"`
	DiseaseCounts map[string]int  `json:"disease_counts"`
	Confidence    ConfidenceStats `json:"confidence"`
}

// StageStatus reports which pipeline stages completed cleanly, so callers
// can tell a clean run from a degraded one without parsing warnings
type StageStatus struct {
	// Stitched is false when the panorama fell back to the first frame
	Stitched bool `json:"stitched"`
	// Enhanced is false when contrast enhancement was skipped
	Enhanced bool `json:"enhanced"`
	// VegetationFound is false when the vegetation mask was empty
	VegetationFound bool `json:"vegetation_found"`
	// Segmented is true when crown segmentation produced regions
	Segmented bool `json:"segmented"`
	// Classified is true when at least one tree received a disease label
	Classified bool `json:"classified"`
}

// Result holds the full output of a pipeline run.  Close must be called to
// release the panorama and region masks.
type Result struct {
	// Panorama is the composed full resolution image, owned by the result
	Panorama gocv.Mat
	// Stitched reports whether panorama composition succeeded
	Stitched bool
	// Stages reports per stage completion flags
	Stages StageStatus
	// FramesUsed is the number of frames given to the stitcher
	FramesUsed int
	// VegetationCoverage is the vegetation pixel fraction of the working
	// image, in the 0-1 range
	VegetationCoverage float64
	// VegetationPixels is the vegetation pixel count scaled to full
	// panorama resolution
	VegetationPixels int
	// Regions are the segmented crowns in reading order, full resolution
	// coordinates
	Regions []*segment.TreeRegion
	// Trees is the per tree export record, parallel to Regions
	Trees []TreeSummary
	// Stats aggregates health across trees
	Stats HealthStats
	// Warnings carries the non fatal degradations hit during the run
	Warnings []error
}

// Close releases the panorama and all region masks
func (r *Result) Close() error {

	segment.CloseAll(r.Regions)
	r.Regions = nil

	return r.Panorama.Close()
}

// Annotate renders the analysis onto a copy of the panorama, with crown
// outlines, health colored bounding boxes and numbered centroid markers.
// The returned Mat is owned by the caller.
func (r *Result) Annotate() gocv.Mat {

	out := r.Panorama.Clone()

	render.CrownOutlines(&out, r.Regions, outlineExpandRatio, boxLineThickness)
	render.TreeBoxes(&out, r.Regions, render.DefaultFont(), boxLineThickness)
	render.TreeMarkers(&out, r.Regions, render.MarkerFont(), markerRadius)

	return out
}

// buildSummary produces the per tree export records and aggregate health
// statistics from classified regions
func buildSummary(regions []*segment.TreeRegion) ([]TreeSummary, HealthStats) {

	trees := make([]TreeSummary, len(regions))

	stats := HealthStats{
		Total:         len(regions),
		DiseaseCounts: make(map[string]int),
	}

	confidences := make([]float64, 0, len(regions))

	for i, region := range regions {

		trees[i] = TreeSummary{
			ID:          i + 1,
			X:           region.Box.X,
			Y:           region.Box.Y,
			Width:       region.Box.Width,
			Height:      region.Box.Height,
			CentroidX:   region.Centroid.X,
			CentroidY:   region.Centroid.Y,
			Area:        region.Area,
			Disease:     region.Disease,
			Confidence:  region.Confidence,
			HealthScore: healthScore(region.Disease, region.Confidence),
		}

		switch region.Disease {
		case "Healthy":
			stats.Healthy++
			stats.DiseaseCounts[region.Disease]++
			confidences = append(confidences, region.Confidence)

		case "", UnknownLabel:
			stats.Unclassified++

		default:
			stats.Diseased++
			stats.DiseaseCounts[region.Disease]++
			confidences = append(confidences, region.Confidence)
		}
	}

	if stats.Total > 0 {
		stats.HealthPercent = float64(stats.Healthy) /
			float64(stats.Total) * 100
	}

	if len(confidences) > 0 {
		stats.Confidence = ConfidenceStats{
			Mean:   stat.Mean(confidences, nil),
			StdDev: 0,
			Min:    floats.Min(confidences),
			Max:    floats.Max(confidences),
		}

		if len(confidences) > 1 {
			stats.Confidence.StdDev = stat.StdDev(confidences, nil)
		}
	}

	return trees, stats
}

// healthScore maps a classification to a 0-100 tree health score.  Healthy
// trees score 100, diseased trees score in proportion to how uncertain the
// diagnosis is, unclassified trees score 0.
func healthScore(disease string, confidence float64) float64 {

	switch disease {
	case "Healthy":
		return 100

	case "", UnknownLabel:
		return 0

	default:
		return (1 - confidence) * 100
	}
}
