package segment

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Box are the dimensions of the bounding box of a detected tree crown
type Box struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Right returns the right edge coordinate of the box
func (b Box) Right() int {
	return b.X + b.Width
}

// Bottom returns the bottom edge coordinate of the box
func (b Box) Bottom() int {
	return b.Y + b.Height
}

// Area returns the pixel area of the box
func (b Box) Area() int {
	if b.Width <= 0 || b.Height <= 0 {
		return 0
	}
	return b.Width * b.Height
}

// Rect converts the box to an image.Rectangle
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height)
}

// TreeRegion defines the attributes of a single tree crown candidate.  A
// region is created by the crown segmenter, rescaled by the remapper, and
// has Disease/Confidence attached by the classifier runner.
type TreeRegion struct {
	// Box is the bounding box of the crown in pixel space
	Box Box
	// Centroid is the crown center, from image moments or the box center
	Centroid image.Point
	// Area is the crown area in pixels
	Area float64
	// Solidity is area divided by convex hull area, in [0,1]
	Solidity float64
	// Circularity is 4*pi*area/perimeter^2, nominally in [0,1]
	Circularity float64
	// AspectRatio is box width divided by box height
	AspectRatio float64
	// Contour is the crown outline, empty for re-split sub-blobs
	Contour []image.Point
	// Mask is the per-pixel crown mask, only set for watershed regions.
	// It is aligned to the working image the segmenter ran on.
	Mask *gocv.Mat
	// Disease is the classified health label, empty before classification
	Disease string
	// Confidence is the classifier softmax probability in [0,1]
	Confidence float64
}

// SizeBand is the acceptable crown area range, computed from the frame area
type SizeBand struct {
	Min float64
	Max float64
}

// BandForFrame returns the crown size band for a frame of the given
// dimensions.  Crowns smaller than 0.03% of the frame (floor 200 px) or
// larger than 8% of the frame are rejected.
func BandForFrame(width, height int) SizeBand {

	frameArea := float64(width * height)

	minArea := frameArea * 0.0003
	if minArea < 200 {
		minArea = 200
	}

	return SizeBand{
		Min: minArea,
		Max: frameArea * 0.08,
	}
}

// validity limits for crown candidates
const (
	minAspectRatio = 0.25
	maxAspectRatio = 4.0
	minSolidity    = 0.3
)

// Validate checks the region against the size band and the shape validity
// limits.  Regions failing any check are rejected by the segmenter.
func (r *TreeRegion) Validate(band SizeBand) error {

	if r.Area <= 0 {
		return fmt.Errorf("region has no area")
	}

	if r.Area < band.Min || r.Area > band.Max {
		return fmt.Errorf("area %.0f outside band [%.0f, %.0f]",
			r.Area, band.Min, band.Max)
	}

	if r.AspectRatio < minAspectRatio || r.AspectRatio > maxAspectRatio {
		return fmt.Errorf("aspect ratio %.2f outside [%.2f, %.2f]",
			r.AspectRatio, minAspectRatio, maxAspectRatio)
	}

	if r.Solidity < minSolidity {
		return fmt.Errorf("solidity %.2f below %.2f", r.Solidity, minSolidity)
	}

	return nil
}

// Quality is a composite shape score used to rank regions during
// deduplication.  No detector confidence exists before classification, so
// solidity, circularity and a capped area term stand in for it.
func (r *TreeRegion) Quality() float64 {

	areaTerm := r.Area / 10000
	if areaTerm > 1.0 {
		areaTerm = 1.0
	}

	return 0.5*r.Solidity + 0.3*r.Circularity + 0.2*areaTerm
}

// Close releases the pixel mask if the region holds one
func (r *TreeRegion) Close() error {
	if r.Mask == nil {
		return nil
	}

	err := r.Mask.Close()
	r.Mask = nil
	return err
}

// CloseAll releases the masks of all given regions
func CloseAll(regions []*TreeRegion) {
	for _, r := range regions {
		_ = r.Close()
	}
}

// IoU computes the Intersection-over-Union of two bounding boxes
func IoU(a, b Box) float64 {

	x1 := maxInt(a.X, b.X)
	y1 := maxInt(a.Y, b.Y)
	x2 := minInt(a.Right(), b.Right())
	y2 := minInt(a.Bottom(), b.Bottom())

	w := maxInt(0, x2-x1)
	h := maxInt(0, y2-y1)
	inter := float64(w * h)

	union := float64(a.Area()+b.Area()) - inter

	if union <= 0 {
		return 0
	}

	return inter / union
}

// maxInt returns max between two numbers
func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// minInt returns minimum between two numbers
func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
