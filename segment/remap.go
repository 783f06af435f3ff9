package segment

import (
	"image"
	"math"
	"sort"
)

// rowBucketHeight is the coarse row size used to build a stable
// left-to-right, top-to-bottom reading order for tree numbering
const rowBucketHeight = 100

// Rescale maps regions detected on a downscaled working image back to full
// resolution coordinates.  factor is the full resolution size divided by
// the working size.  Bounding box, centroid and contour scale linearly,
// area by the square of the factor.  Pixel masks stay at working scale.
func Rescale(regions []*TreeRegion, factor float64) {

	if factor == 1.0 {
		return
	}

	for _, r := range regions {
		r.Box = Box{
			X:      scaleInt(r.Box.X, factor),
			Y:      scaleInt(r.Box.Y, factor),
			Width:  scaleInt(r.Box.Width, factor),
			Height: scaleInt(r.Box.Height, factor),
		}

		r.Centroid = image.Pt(scaleInt(r.Centroid.X, factor),
			scaleInt(r.Centroid.Y, factor))

		r.Area *= factor * factor

		for i, pt := range r.Contour {
			r.Contour[i] = image.Pt(scaleInt(pt.X, factor),
				scaleInt(pt.Y, factor))
		}
	}
}

// SortReadingOrder sorts regions into the deterministic numbering order:
// coarse centroid row bucket first, then centroid x.  Sorting the same set
// twice always yields the same order regardless of detection order.
func SortReadingOrder(regions []*TreeRegion) {

	sort.Slice(regions, func(i, j int) bool {
		bi := regions[i].Centroid.Y / rowBucketHeight
		bj := regions[j].Centroid.Y / rowBucketHeight

		if bi != bj {
			return bi < bj
		}

		if regions[i].Centroid.X != regions[j].Centroid.X {
			return regions[i].Centroid.X < regions[j].Centroid.X
		}

		// exact ties fall back to fine y then box position
		if regions[i].Centroid.Y != regions[j].Centroid.Y {
			return regions[i].Centroid.Y < regions[j].Centroid.Y
		}

		return regions[i].Box.X < regions[j].Box.X
	})
}

// scaleInt scales an integer coordinate and rounds to nearest
func scaleInt(v int, factor float64) int {
	return int(math.Round(float64(v) * factor))
}
