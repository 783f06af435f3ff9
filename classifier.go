package canopy

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/canopylabs/go-canopy/preprocess"
	"github.com/x448/float16"
	"gocv.io/x/gocv"
)

// Classifier scores batches of tree crown crops against the disease
// classes.  The batch Mat is a NHWC concatenation of preprocessed crops as
// produced by Batch, count is the number of valid images at the front of
// the batch.  Implementations return one raw score vector per image, in
// order, and may be backed by any inference runtime.
type Classifier interface {
	// Predict runs inference on the batch and returns count score vectors
	Predict(batch gocv.Mat, count int) ([][]float32, error)
	// Close releases the classifier resources
	Close() error
}

// Transform converts a BGR crown crop into the classifier input layout.
// The returned Mat is owned by the caller.
type Transform interface {
	// Apply preprocesses a single crop
	Apply(crop gocv.Mat) (gocv.Mat, error)
	// Shape returns the height, width and channels of the produced Mat
	Shape() (height, width, channels int)
}

// imagenet normalization constants, on the 0-1 pixel scale
var (
	imagenetMean = [3]float32{0.485, 0.456, 0.406}
	imagenetStd  = [3]float32{0.229, 0.224, 0.225}
)

// ImageNetTransform preprocesses crops the standard way classification
// backbones are trained, resize to a square input, BGR to RGB, scale to
// 0-1 float and normalize per channel with the ImageNet mean and standard
// deviation.
type ImageNetTransform struct {
	// InputSize is the square edge length of the classifier input tensor
	InputSize int
}

// NewImageNetTransform returns a transform producing inputSize square
// normalized float32 inputs
func NewImageNetTransform(inputSize int) *ImageNetTransform {
	return &ImageNetTransform{InputSize: inputSize}
}

// Shape returns the produced Mat dimensions
func (t *ImageNetTransform) Shape() (int, int, int) {
	return t.InputSize, t.InputSize, 3
}

// Apply preprocesses a single BGR crop
func (t *ImageNetTransform) Apply(crop gocv.Mat) (gocv.Mat, error) {

	if crop.Empty() {
		return gocv.NewMat(), fmt.Errorf("empty crop")
	}

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(crop, &resized, image.Pt(t.InputSize, t.InputSize), 0, 0,
		gocv.InterpolationArea)

	rgb := gocv.NewMat()
	defer rgb.Close()
	gocv.CvtColor(resized, &rgb, gocv.ColorBGRToRGB)

	scaled := gocv.NewMat()
	defer scaled.Close()
	rgb.ConvertToWithParams(&scaled, gocv.MatTypeCV32F, 1.0/255.0, 0)

	channels := gocv.Split(scaled)
	defer func() {
		for i := range channels {
			channels[i].Close()
		}
	}()

	// per channel normalization
	for i := range channels {
		channels[i].AddFloat(-imagenetMean[i])
		channels[i].MultiplyFloat(1.0 / imagenetStd[i])
	}

	out := gocv.NewMat()
	gocv.Merge(channels, &out)

	return out, nil
}

// LetterboxTransform preprocesses crops like ImageNetTransform but
// preserves the crop aspect ratio, padding the square input with neutral
// gray instead of stretching.  Use it for classifiers sensitive to crown
// shape distortion.
type LetterboxTransform struct {
	// InputSize is the square edge length of the classifier input tensor
	InputSize int
}

// NewLetterboxTransform returns an aspect preserving transform producing
// inputSize square normalized float32 inputs
func NewLetterboxTransform(inputSize int) *LetterboxTransform {
	return &LetterboxTransform{InputSize: inputSize}
}

// Shape returns the produced Mat dimensions
func (t *LetterboxTransform) Shape() (int, int, int) {
	return t.InputSize, t.InputSize, 3
}

// Apply preprocesses a single BGR crop
func (t *LetterboxTransform) Apply(crop gocv.Mat) (gocv.Mat, error) {

	if crop.Empty() {
		return gocv.NewMat(), fmt.Errorf("empty crop")
	}

	resizer := preprocess.NewResizer(crop.Cols(), crop.Rows(),
		t.InputSize, t.InputSize)
	defer resizer.Close()

	boxed := gocv.NewMat()
	defer boxed.Close()

	resizer.LetterBoxResize(crop, &boxed,
		color.RGBA{R: 114, G: 114, B: 114, A: 255})

	inner := ImageNetTransform{InputSize: t.InputSize}

	return inner.Apply(boxed)
}

// Softmax converts raw classifier scores into a probability distribution
func Softmax(scores []float32) []float32 {

	probs := make([]float32, len(scores))

	if len(scores) == 0 {
		return probs
	}

	// subtract the max for numerical stability
	max := scores[0]

	for _, s := range scores[1:] {
		if s > max {
			max = s
		}
	}

	var sum float64

	for i, s := range scores {
		e := math.Exp(float64(s - max))
		probs[i] = float32(e)
		sum += e
	}

	for i := range probs {
		probs[i] = float32(float64(probs[i]) / sum)
	}

	return probs
}

// Top1 returns the index and value of the highest score
func Top1(scores []float32) (int, float32) {

	best := -1
	bestVal := float32(0)

	for i, s := range scores {
		if best == -1 || s > bestVal {
			best = i
			bestVal = s
		}
	}

	return best, bestVal
}

// Float16Scores converts a raw float16 output buffer, as produced by
// inference runtimes with half precision output tensors, to float32 scores
func Float16Scores(buf []uint16) []float32 {

	scores := make([]float32, len(buf))

	for i, v := range buf {
		scores[i] = float16.Frombits(v).Float32()
	}

	return scores
}
