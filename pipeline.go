package canopy

import (
	"fmt"

	"github.com/canopylabs/go-canopy/preprocess"
	"github.com/canopylabs/go-canopy/segment"
	"github.com/canopylabs/go-canopy/stitch"
	"github.com/canopylabs/go-canopy/vegetation"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// Config sets the pipeline parameters.  The zero value of any field is
// replaced with its default by NewPipeline.
type Config struct {
	// WorkingEdge bounds the longest edge of the image segmentation runs
	// on, larger panoramas are downscaled and results mapped back
	WorkingEdge int
	// SkipEnhance disables the contrast enhancement stage
	SkipEnhance bool
	// Segment holds the crown segmentation parameters
	Segment segment.Params
	// BatchSize is the number of crops per classifier call
	BatchSize int
	// InputSize is the square classifier input edge in pixels
	InputSize int
	// Labels are the classifier output classes, index aligned
	Labels []string
	// Log receives pipeline progress, defaults to the standard logger
	Log *logrus.Logger
}

// DefaultConfig returns the pipeline defaults
func DefaultConfig() Config {
	return Config{
		WorkingEdge: 3000,
		Segment:     segment.DefaultParams(),
		BatchSize:   64,
		InputSize:   224,
		Labels:      DefaultLabels(),
	}
}

// Pipeline runs the plantation analysis stages over a set of aerial
// frames.  A Pipeline is not safe for concurrent use, run one per
// goroutine or use a Pool.
type Pipeline struct {
	cfg        Config
	classifier Classifier
	transform  Transform
	log        *logrus.Logger
}

// NewPipeline creates a pipeline with the given configuration.  classifier
// may be nil, in which case segmentation still runs and trees are reported
// without disease labels.  The pipeline takes ownership of the classifier
// and closes it with Close.
func NewPipeline(cfg Config, classifier Classifier) (*Pipeline, error) {

	def := DefaultConfig()

	if cfg.WorkingEdge == 0 {
		cfg.WorkingEdge = def.WorkingEdge
	}

	if cfg.BatchSize == 0 {
		cfg.BatchSize = def.BatchSize
	}

	if cfg.InputSize == 0 {
		cfg.InputSize = def.InputSize
	}

	if cfg.Segment == (segment.Params{}) {
		cfg.Segment = def.Segment
	}

	if len(cfg.Labels) == 0 {
		cfg.Labels = def.Labels
	}

	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}

	if cfg.WorkingEdge < 0 || cfg.BatchSize < 0 || cfg.InputSize < 0 {
		return nil, fmt.Errorf("negative config value")
	}

	return &Pipeline{
		cfg:        cfg,
		classifier: classifier,
		transform:  NewImageNetTransform(cfg.InputSize),
		log:        cfg.Log,
	}, nil
}

// SetTransform overrides the crop preprocessing used ahead of the
// classifier, for models not trained with ImageNet normalization
func (p *Pipeline) SetTransform(t Transform) {
	p.transform = t
}

// Close releases the classifier
func (p *Pipeline) Close() error {

	if p.classifier == nil {
		return nil
	}

	return p.classifier.Close()
}

// Process runs the full analysis over the input frames and returns the
// result.  Input Mats remain owned by the caller.  The only fatal error is
// an empty input set, every later stage records a warning and degrades.
func (p *Pipeline) Process(frames []gocv.Mat) (*Result, error) {

	if len(frames) == 0 {
		return nil, ErrNoImages
	}

	res := &Result{}

	// stage 1, panorama composition
	stitched, err := stitch.Panorama(frames)

	if err != nil {
		return nil, err
	}

	res.Panorama = stitched.Pano
	res.Stitched = stitched.Stitched
	res.FramesUsed = stitched.Used
	res.Stages.Stitched = stitched.Stitched || len(frames) == 1
	res.Stages.Enhanced = !p.cfg.SkipEnhance

	if !stitched.Stitched && len(frames) > 1 {
		res.Warnings = append(res.Warnings, ErrStitchFailed)
		p.log.Warn("stitching failed, analysing first frame")
	}

	p.log.WithFields(logrus.Fields{
		"frames":   res.FramesUsed,
		"stitched": res.Stitched,
		"width":    res.Panorama.Cols(),
		"height":   res.Panorama.Rows(),
	}).Info("panorama composed")

	// stage 2, bound the working resolution
	working, scale := preprocess.CapLongestEdge(res.Panorama, p.cfg.WorkingEdge)

	// stage 3, contrast enhancement
	if !p.cfg.SkipEnhance {
		enhanced := preprocess.Enhance(working)
		working.Close()
		working = enhanced
	}

	defer working.Close()

	// stage 4, vegetation mask
	mask := vegetation.Mask(working)
	defer mask.Close()

	coverage := vegetation.Coverage(mask)
	res.VegetationCoverage = float64(coverage) /
		float64(working.Cols()*working.Rows())
	res.VegetationPixels = int(float64(coverage) / (scale * scale))

	p.log.WithFields(logrus.Fields{
		"coverage": fmt.Sprintf("%.1f%%", res.VegetationCoverage*100),
	}).Info("vegetation detected")

	res.Stages.VegetationFound = coverage > 0

	if coverage == 0 {
		res.Warnings = append(res.Warnings, ErrNoVegetation)
		res.Trees, res.Stats = buildSummary(nil)
		p.log.Warn("no vegetation detected, skipping segmentation")
		return res, nil
	}

	// stage 5, crown segmentation on the working image
	regions := segment.Crowns(working, mask, p.cfg.Segment)

	p.log.WithFields(logrus.Fields{
		"trees": len(regions),
	}).Info("crowns segmented")

	// stage 6, map back to full resolution and fix the numbering order
	if scale != 1.0 {
		segment.Rescale(regions, 1.0/scale)
	}

	segment.SortReadingOrder(regions)
	res.Regions = regions
	res.Stages.Segmented = len(regions) > 0

	// stage 7, disease classification.  Running without a classifier is a
	// supported configuration, not a degradation, so only an actual
	// classifier failure records a warning.
	switch {
	case p.classifier == nil:
		p.log.Info("no classifier configured, trees reported unclassified")
	case len(regions) == 0:
		res.Stages.Classified = true
	default:
		if err := p.classifyRegions(res.Panorama, regions); err != nil {
			res.Warnings = append(res.Warnings, ErrClassifierUnavailable)
			p.log.Warn("classification failed, trees reported unclassified")
		} else {
			res.Stages.Classified = true
		}
	}

	res.Trees, res.Stats = buildSummary(regions)

	p.log.WithFields(logrus.Fields{
		"total":    res.Stats.Total,
		"healthy":  res.Stats.Healthy,
		"diseased": res.Stats.Diseased,
	}).Info("analysis complete")

	return res, nil
}

// ProcessFiles reads the image files and runs Process over them.
// Unreadable files are skipped with a warning, reading zero images is
// fatal.
func (p *Pipeline) ProcessFiles(paths []string) (*Result, error) {

	frames := make([]gocv.Mat, 0, len(paths))

	defer func() {
		for i := range frames {
			frames[i].Close()
		}
	}()

	for _, path := range paths {

		img := gocv.IMRead(path, gocv.IMReadColor)

		if img.Empty() {
			p.log.WithFields(logrus.Fields{
				"file": path,
			}).Warn("skipping unreadable image")
			continue
		}

		frames = append(frames, img)
	}

	if len(frames) == 0 {
		return nil, ErrNoImages
	}

	return p.Process(frames)
}
