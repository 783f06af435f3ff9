package canopy

import (
	"image"

	"github.com/canopylabs/go-canopy/segment"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// UnknownLabel is assigned to trees whose crop could not be classified
const UnknownLabel = "Unknown"

// cropPad is the fraction of box size added on each side when cropping a
// crown for classification, so the crop carries some surrounding context
const cropPad = 0.10

// classifyRegions crops each crown from the panorama, batches the crops
// through the classifier and assigns the top scoring disease class to each
// region.  A region whose crop or inference fails is labelled unknown and
// never aborts the rest of the batch.  An error is returned only when the
// classifier produced no result for any region.
func (p *Pipeline) classifyRegions(pano gocv.Mat,
	regions []*segment.TreeRegion) error {

	if len(regions) == 0 {
		return nil
	}

	height, width, chans := p.transform.Shape()

	batch := NewBatch(p.cfg.BatchSize, height, width, chans)
	defer batch.Close()

	classified := false

	for start := 0; start < len(regions); start += p.cfg.BatchSize {

		end := start + p.cfg.BatchSize

		if end > len(regions) {
			end = len(regions)
		}

		chunk := regions[start:end]
		batch.Clear()

		// track which chunk entries made it into the batch
		added := make([]int, 0, len(chunk))

		for i, region := range chunk {

			crop := cropRegion(pano, region.Box, cropPad)

			if crop.Empty() {
				region.Disease = UnknownLabel
				crop.Close()
				continue
			}

			input, err := p.transform.Apply(crop)
			crop.Close()

			if err != nil {
				region.Disease = UnknownLabel
				continue
			}

			err = batch.Add(input)
			input.Close()

			if err != nil {
				region.Disease = UnknownLabel
				continue
			}

			added = append(added, i)
		}

		if len(added) == 0 {
			continue
		}

		scores, err := p.classifier.Predict(batch.Mat(), batch.Count())

		if err != nil || len(scores) < len(added) {
			p.log.WithFields(logrus.Fields{
				"batch": start / p.cfg.BatchSize,
				"error": err,
			}).Warn("classifier batch failed")

			for _, i := range added {
				chunk[i].Disease = UnknownLabel
			}

			continue
		}

		for j, i := range added {

			probs := Softmax(scores[j])
			class, conf := Top1(probs)

			if class < 0 || class >= len(p.cfg.Labels) {
				chunk[i].Disease = UnknownLabel
				continue
			}

			chunk[i].Disease = p.cfg.Labels[class]
			chunk[i].Confidence = float64(conf)
			classified = true
		}
	}

	if !classified {
		return ErrClassifierUnavailable
	}

	return nil
}

// cropRegion extracts a padded crown crop clipped to the image bounds.
// The returned Mat is a copy owned by the caller and is empty when the box
// lies outside the image.
func cropRegion(img gocv.Mat, box segment.Box, pad float64) gocv.Mat {

	padX := int(float64(box.Width) * pad)
	padY := int(float64(box.Height) * pad)

	rect := image.Rect(box.X-padX, box.Y-padY,
		box.Right()+padX, box.Bottom()+padY)

	rect = rect.Intersect(image.Rect(0, 0, img.Cols(), img.Rows()))

	if rect.Empty() {
		return gocv.NewMat()
	}

	roi := img.Region(rect)
	defer roi.Close()

	return roi.Clone()
}
