package segment

import (
	"image"

	"gocv.io/x/gocv"
)

// connected components stats matrix columns
const (
	ccStatLeft   = 0
	ccStatTop    = 1
	ccStatWidth  = 2
	ccStatHeight = 3
	ccStatArea   = 4
)

// contourCrowns finds crown candidates directly from the external contours
// of the vegetation mask.  Contours larger than half the maximum crown size
// are merged blobs, so they are re-split by a distance transform and
// connected components pass over their bounding rectangle.  Sub-blobs carry
// no pixel mask or contour and take the area share area/numLabels.
func contourCrowns(vegMask gocv.Mat, band SizeBand,
	seedThreshold float32) []*TreeRegion {

	contours := gocv.FindContours(vegMask, gocv.RetrievalExternal,
		gocv.ChainApproxSimple)
	defer contours.Close()

	regions := make([]*TreeRegion, 0)

	for i := 0; i < contours.Size(); i++ {

		contour := contours.At(i)
		area := gocv.ContourArea(contour)

		if area < band.Min {
			continue
		}

		if area > band.Max/2 {
			regions = append(regions,
				splitBlob(vegMask, contour, area, band, seedThreshold)...)
			continue
		}

		raster := rasterizeContour(contour, vegMask.Rows(), vegMask.Cols())
		region := regionFromContour(contour, raster, band)
		raster.Close()

		if region != nil {
			regions = append(regions, region)
		}
	}

	return regions
}

// splitBlob breaks a large merged vegetation blob into sub-regions using
// the distance transform of its bounding rectangle and connected component
// seeds.  When no split is found the whole blob is kept as one candidate.
func splitBlob(vegMask gocv.Mat, contour gocv.PointVector, area float64,
	band SizeBand, seedThreshold float32) []*TreeRegion {

	rect := gocv.BoundingRect(contour)

	roi := vegMask.Region(rect)
	defer roi.Close()

	dist := gocv.NewMat()
	defer dist.Close()
	distLabels := gocv.NewMat()
	defer distLabels.Close()

	gocv.DistanceTransform(roi, &dist, &distLabels, gocv.DistL2,
		gocv.DistanceMask5, gocv.DistanceLabelCComp)
	gocv.Normalize(dist, &dist, 0.0, 1.0, gocv.NormMinMax)

	seedsFloat := gocv.NewMat()
	defer seedsFloat.Close()
	gocv.Threshold(dist, &seedsFloat, seedThreshold, 1.0, gocv.ThresholdBinary)

	seeds := gocv.NewMat()
	defer seeds.Close()
	seedsFloat.ConvertToWithParams(&seeds, gocv.MatTypeCV8U, 255, 0)

	labels := gocv.NewMat()
	defer labels.Close()
	stats := gocv.NewMat()
	defer stats.Close()
	centroids := gocv.NewMat()
	defer centroids.Close()

	numLabels := gocv.ConnectedComponentsWithStats(seeds, &labels, &stats,
		&centroids)

	// label 0 is background
	numBlobs := numLabels - 1

	if numBlobs < 2 {
		// no split found, keep the blob whole
		raster := rasterizeContour(contour, vegMask.Rows(), vegMask.Cols())
		defer raster.Close()

		region := regionFromContour(contour, raster, band)

		if region == nil {
			return nil
		}

		return []*TreeRegion{region}
	}

	subArea := area / float64(numBlobs)
	regions := make([]*TreeRegion, 0, numBlobs)

	for i := 1; i < numLabels; i++ {

		box := Box{
			X:      rect.Min.X + int(stats.GetIntAt(i, ccStatLeft)),
			Y:      rect.Min.Y + int(stats.GetIntAt(i, ccStatTop)),
			Width:  int(stats.GetIntAt(i, ccStatWidth)),
			Height: int(stats.GetIntAt(i, ccStatHeight)),
		}

		aspect := 0.0
		if box.Height > 0 {
			aspect = float64(box.Width) / float64(box.Height)
		}

		cx := rect.Min.X + int(centroids.GetDoubleAt(i, 0))
		cy := rect.Min.Y + int(centroids.GetDoubleAt(i, 1))

		// sub-blobs have no contour to measure, so they take the shape
		// scores the connected components path has always assumed
		region := &TreeRegion{
			Box:         box,
			Centroid:    image.Pt(cx, cy),
			Area:        subArea,
			Solidity:    0.8,
			Circularity: 0,
			AspectRatio: aspect,
		}

		if err := region.Validate(band); err != nil {
			continue
		}

		regions = append(regions, region)
	}

	return regions
}
