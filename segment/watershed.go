package segment

import (
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"
)

// Params are the tunable settings of the crown segmenter
type Params struct {
	// SeedThreshold is applied to the normalized distance transform to
	// obtain certain-foreground watershed seeds
	SeedThreshold float32
	// MinCrowns is the watershed candidate count below which the
	// contour-based fallback pass also runs
	MinCrowns int
	// IoUThreshold is the bounding box overlap above which a lower quality
	// candidate is suppressed during deduplication
	IoUThreshold float64
}

// DefaultParams returns the segmenter settings used in production
func DefaultParams() Params {
	return Params{
		SeedThreshold: 0.35,
		MinCrowns:     5,
		IoUThreshold:  0.4,
	}
}

// Crowns splits the vegetation mask into individual tree crown candidates.
// The primary method is marker based watershed over the distance transform
// of the mask.  When it yields fewer than MinCrowns candidates a contour
// based pass supplements it.  The pooled candidates are deduplicated by
// quality ranked suppression.
func Crowns(img gocv.Mat, vegMask gocv.Mat, p Params) []*TreeRegion {

	band := BandForFrame(img.Cols(), img.Rows())

	regions := watershedCrowns(img, vegMask, band, p.SeedThreshold)

	if len(regions) < p.MinCrowns {
		regions = append(regions, contourCrowns(vegMask, band, p.SeedThreshold)...)
	}

	return Dedup(regions, p.IoUThreshold)
}

// watershedCrowns runs marker based watershed segmentation over the
// vegetation mask and returns validated crown candidates, each retaining
// its per-pixel mask
func watershedCrowns(img gocv.Mat, vegMask gocv.Mat, band SizeBand,
	seedThreshold float32) []*TreeRegion {

	// distance to the nearest mask boundary, normalized so the seed
	// threshold is scale independent
	dist := gocv.NewMat()
	defer dist.Close()
	distLabels := gocv.NewMat()
	defer distLabels.Close()

	gocv.DistanceTransform(vegMask, &dist, &distLabels, gocv.DistL2,
		gocv.DistanceMask5, gocv.DistanceLabelCComp)
	gocv.Normalize(dist, &dist, 0.0, 1.0, gocv.NormMinMax)

	// certain foreground: approximate tree centers
	fgFloat := gocv.NewMat()
	defer fgFloat.Close()
	gocv.Threshold(dist, &fgFloat, seedThreshold, 1.0, gocv.ThresholdBinary)

	sureFg := gocv.NewMat()
	defer sureFg.Close()
	fgFloat.ConvertToWithParams(&sureFg, gocv.MatTypeCV8U, 255, 0)

	// certain background: dilated vegetation mask
	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(7, 7))
	defer kernel.Close()

	sureBg := gocv.NewMat()
	defer sureBg.Close()
	gocv.Dilate(vegMask, &sureBg, kernel)

	// unknown band between background and foreground, left for the
	// watershed to resolve
	unknown := gocv.NewMat()
	defer unknown.Close()
	gocv.Subtract(sureBg, sureFg, &unknown)

	// each connected seed becomes a watershed marker.  markers are the
	// component labels shifted by one so certain background is 1, with
	// unknown pixels zeroed.
	seedLabels := gocv.NewMat()
	defer seedLabels.Close()
	gocv.ConnectedComponents(sureFg, &seedLabels)
	seedLabels.AddFloat(1)

	known := gocv.NewMat()
	defer known.Close()
	gocv.BitwiseNot(unknown, &known)

	markers := gocv.NewMat()
	defer markers.Close()
	gocv.BitwiseAndWithMask(seedLabels, seedLabels, &markers, known)

	gocv.Watershed(img, &markers)

	_, maxLabel, _, _ := gocv.MinMaxLoc(markers)

	regions := make([]*TreeRegion, 0)

	// labels 0 (unknown), 1 (background) and -1 (boundaries) are skipped
	for label := 2; label <= int(maxLabel); label++ {

		labelScalar := gocv.NewScalar(float64(label), 0, 0, 0)

		regionMask := gocv.NewMat()
		gocv.InRangeWithScalar(markers, labelScalar, labelScalar, &regionMask)

		// cheap pre-check before any contour work
		if float64(gocv.CountNonZero(regionMask)) < band.Min {
			regionMask.Close()
			continue
		}

		region := regionFromMask(regionMask, band)

		if region == nil {
			regionMask.Close()
			continue
		}

		region.Mask = &regionMask
		regions = append(regions, region)
	}

	return regions
}

// regionFromMask extracts the largest external contour of a binary mask and
// builds a validated crown candidate from it.  Returns nil if the mask has
// no usable contour or the candidate fails validation.
func regionFromMask(mask gocv.Mat, band SizeBand) *TreeRegion {

	contours := gocv.FindContours(mask, gocv.RetrievalExternal,
		gocv.ChainApproxSimple)
	defer contours.Close()

	best := -1
	bestArea := 0.0

	for i := 0; i < contours.Size(); i++ {
		a := gocv.ContourArea(contours.At(i))
		if a > bestArea {
			bestArea = a
			best = i
		}
	}

	if best < 0 {
		return nil
	}

	return regionFromContour(contours.At(best), mask, band)
}

// regionFromContour computes the shape statistics of a crown candidate from
// its contour.  moments is the binary mask used for the centroid; pass the
// region's own mask when one exists.  Returns nil if the candidate fails
// validation.
func regionFromContour(contour gocv.PointVector, momentMask gocv.Mat,
	band SizeBand) *TreeRegion {

	area := gocv.ContourArea(contour)

	if area <= 0 {
		return nil
	}

	rect := gocv.BoundingRect(contour)
	box := Box{
		X:      rect.Min.X,
		Y:      rect.Min.Y,
		Width:  rect.Dx(),
		Height: rect.Dy(),
	}

	perimeter := gocv.ArcLength(contour, true)
	circularity := 0.0

	if perimeter > 0 {
		circularity = 4 * math.Pi * area / (perimeter*perimeter + 1e-5)
	}

	solidity := convexSolidity(contour, area)

	aspect := 0.0
	if box.Height > 0 {
		aspect = float64(box.Width) / float64(box.Height)
	}

	// centroid via image moments, box center when degenerate
	cx := box.X + box.Width/2
	cy := box.Y + box.Height/2

	m := gocv.Moments(momentMask, true)

	if m["m00"] != 0 {
		cx = int(m["m10"] / m["m00"])
		cy = int(m["m01"] / m["m00"])
	}

	region := &TreeRegion{
		Box:         box,
		Centroid:    image.Pt(cx, cy),
		Area:        area,
		Solidity:    solidity,
		Circularity: circularity,
		AspectRatio: aspect,
		Contour:     contour.ToPoints(),
	}

	if err := region.Validate(band); err != nil {
		return nil
	}

	return region
}

// convexSolidity computes the solidity of a contour: its area divided by
// the area of its convex hull
func convexSolidity(contour gocv.PointVector, area float64) float64 {

	hull := gocv.NewMat()
	defer hull.Close()

	gocv.ConvexHull(contour, &hull, false, true)

	if hull.Rows() < 3 {
		return 0
	}

	// the hull Mat holds one point per row
	pts := make([]image.Point, 0, hull.Rows())

	for i := 0; i < hull.Rows(); i++ {
		v := hull.GetVeciAt(i, 0)
		pts = append(pts, image.Pt(int(v[0]), int(v[1])))
	}

	hullVec := gocv.NewPointVectorFromPoints(pts)
	defer hullVec.Close()

	hullArea := gocv.ContourArea(hullVec)

	if hullArea <= 0 {
		return 0
	}

	return area / hullArea
}

// rasterizeContour draws the filled contour into a fresh mask sized to the
// given frame, used for moment based centroids of contour candidates
func rasterizeContour(contour gocv.PointVector, rows, cols int) gocv.Mat {

	mask := gocv.Zeros(rows, cols, gocv.MatTypeCV8U)

	pts := gocv.NewPointsVector()
	defer pts.Close()
	pts.Append(contour)

	gocv.FillPoly(&mask, pts, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	return mask
}
