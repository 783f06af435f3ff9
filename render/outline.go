package render

import (
	"image"
	"math"

	"github.com/canopylabs/go-canopy/segment"
	clipper "github.com/ctessum/go.clipper"
	"gocv.io/x/gocv"
)

// CrownOutlines draws the crown contour of each tree as a closed polygon,
// colored from the crown palette by tree number.  expandRatio grows each
// polygon outward in proportion to its area over perimeter, so outlines
// hug the crown edge rather than cut through leaf pixels.  A ratio of 0
// draws the contour as detected.
func CrownOutlines(img *gocv.Mat, regions []*segment.TreeRegion,
	expandRatio float64, thickness int) {

	for i, region := range regions {

		if len(region.Contour) < 3 {
			continue
		}

		contour := region.Contour

		if expandRatio > 0 {
			contour = expandPolygon(contour, expandRatio)

			if len(contour) < 3 {
				continue
			}
		}

		pts := gocv.NewPointsVectorFromPoints([][]image.Point{contour})

		gocv.Polylines(img, pts, true, CrownColor(i), thickness)

		pts.Close()
	}
}

// expandPolygon offsets a closed polygon outward by a distance derived
// from its area to perimeter ratio
func expandPolygon(contour []image.Point, ratio float64) []image.Point {

	distance := offsetDistance(contour, ratio)

	if distance <= 0 {
		return contour
	}

	// convert the points to a Clipper path
	var path clipper.Path

	for _, pt := range contour {
		path = append(path, &clipper.IntPoint{X: clipper.CInt(pt.X),
			Y: clipper.CInt(pt.Y)})
	}

	co := clipper.NewClipperOffset()
	co.AddPath(path, clipper.JtRound, clipper.EtClosedPolygon)

	solution := co.Execute(distance)

	if len(solution) == 0 {
		return contour
	}

	// the largest solution ring is the expanded crown boundary
	largest := solution[0]

	for _, sol := range solution[1:] {
		if len(sol) > len(largest) {
			largest = sol
		}
	}

	expanded := make([]image.Point, len(largest))

	for i, pt := range largest {
		expanded[i] = image.Pt(int(pt.X), int(pt.Y))
	}

	return expanded
}

// offsetDistance derives the polygon offset distance as area scaled by the
// ratio over perimeter
func offsetDistance(contour []image.Point, ratio float64) float64 {

	n := len(contour)
	area := 0.0
	perimeter := 0.0

	for i := 0; i < n; i++ {
		j := (i + 1) % n

		area += float64(contour[i].X*contour[j].Y - contour[i].Y*contour[j].X)

		dx := float64(contour[i].X - contour[j].X)
		dy := float64(contour[i].Y - contour[j].Y)
		perimeter += math.Sqrt(dx*dx + dy*dy)
	}

	if perimeter == 0 {
		return 0
	}

	return math.Abs(area/2.0) * ratio / perimeter
}
