// Package stitch composes a set of overlapping aerial frames into a single
// panorama by chaining feature based pairwise alignments.  Stitching is
// best effort, when feature matching fails the pipeline can still run on a
// single representative frame.
package stitch

import (
	"errors"
	"image"
	"math"

	"gocv.io/x/gocv"
)

const (
	// maxImages is the largest number of frames fed to the stitcher, larger
	// sets are subsampled evenly across the flight path
	maxImages = 25
	// capWidth is the per frame downscale width applied to small sets
	capWidth = 4000
	// capWidthLarge is the tighter cap applied when more than largeSetSize
	// frames are stitched, keeping feature matching memory bounded
	capWidthLarge = 2000
	largeSetSize  = 10

	// minMatches is the fewest point correspondences accepted between two
	// adjacent frames
	minMatches = 12
	// loweRatio is the nearest to second nearest descriptor distance ratio
	// below which a match is kept
	loweRatio = 0.75

	// RANSAC parameters for the homography estimate
	ransacThreshold = 3.0   // Maximum allowed reprojection error to treat a point pair as an inlier.
	maxIter         = 2000  // The maximum number of RANSAC iterations.
	confidence      = 0.995 // Confidence level, between 0 and 1.
)

// ErrNoImages is returned when the input frame set is empty
var ErrNoImages = errors.New("no input images")

// Result holds the composed panorama and how it was produced
type Result struct {
	// Pano is the composed image, owned by the caller
	Pano gocv.Mat
	// Stitched reports whether feature based stitching succeeded.  When
	// false Pano is a copy of the first input frame.
	Stitched bool
	// Used is the number of frames given to the stitcher after subsampling
	Used int
}

// Panorama composes the input frames into one image.  Frames are evenly
// subsampled down to 25 and downscaled before matching.  A full perspective
// alignment is tried first, a rigid planar alignment second, and if both
// fail the first frame is returned unstitched.  The only error condition is
// an empty input set.
func Panorama(frames []gocv.Mat) (*Result, error) {

	if len(frames) == 0 {
		return nil, ErrNoImages
	}

	if len(frames) == 1 {
		return &Result{Pano: frames[0].Clone(), Stitched: false, Used: 1}, nil
	}

	picked := subsample(frames, maxImages)

	widthCap := capWidth
	if len(picked) > largeSetSize {
		widthCap = capWidthLarge
	}

	scaled := make([]gocv.Mat, len(picked))

	for i, frame := range picked {
		scaled[i] = capFrame(frame, widthCap)
	}

	defer func() {
		for i := range scaled {
			scaled[i].Close()
		}
	}()

	// perspective handles the general aerial case, the rigid planar
	// alignment recovers flat scan style flights where the full homography
	// overfits
	for _, planar := range []bool{false, true} {

		pano, ok := tryCompose(scaled, planar)

		if ok {
			return &Result{Pano: pano, Stitched: true, Used: len(scaled)}, nil
		}
	}

	// fall back to the first frame so downstream stages always have input
	return &Result{Pano: frames[0].Clone(), Stitched: false,
		Used: len(scaled)}, nil
}

// tryCompose aligns each frame to its predecessor, chains the transforms
// into first frame coordinates and warps everything onto one canvas.  Any
// panic thrown by the native estimators on degenerate input fails the
// attempt instead of the caller.
func tryCompose(frames []gocv.Mat, planar bool) (pano gocv.Mat, ok bool) {

	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()

	transforms := make([]gocv.Mat, 0, len(frames))
	transforms = append(transforms, identity3())

	defer func() {
		for i := range transforms {
			transforms[i].Close()
		}
	}()

	for i := 1; i < len(frames); i++ {

		pair, aligned := alignPair(frames[i], frames[i-1], planar)

		if !aligned {
			return gocv.Mat{}, false
		}

		transforms = append(transforms, mul3(transforms[i-1], pair))
		pair.Close()
	}

	// bounds of every warped frame in first frame coordinates
	minX, minY := 0.0, 0.0
	maxX, maxY := float64(frames[0].Cols()), float64(frames[0].Rows())
	sumW, sumH := 0, 0

	for i, frame := range frames {

		sumW += frame.Cols()
		sumH += frame.Rows()

		for _, corner := range frameCorners(frame) {
			x, y := mapPoint(transforms[i], corner[0], corner[1])

			minX = math.Min(minX, x)
			minY = math.Min(minY, y)
			maxX = math.Max(maxX, x)
			maxY = math.Max(maxY, y)
		}
	}

	width := int(math.Ceil(maxX - minX))
	height := int(math.Ceil(maxY - minY))

	// a blown up canvas means the chained estimate is degenerate
	if width <= 0 || height <= 0 || width > 2*sumW || height > 2*sumH {
		return gocv.Mat{}, false
	}

	shift := translation3(-minX, -minY)
	defer shift.Close()

	canvas := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)

	for i, frame := range frames {

		m := mul3(shift, transforms[i])

		warped := gocv.NewMat()
		gocv.WarpPerspective(frame, &warped, m, image.Pt(width, height))

		// warp a solid mask alongside so only covered pixels composite
		solid := gocv.NewMatWithSize(frame.Rows(), frame.Cols(), gocv.MatTypeCV8U)
		solid.SetTo(gocv.NewScalar(255, 0, 0, 0))

		warpedMask := gocv.NewMat()
		gocv.WarpPerspective(solid, &warpedMask, m, image.Pt(width, height))

		warped.CopyToWithMask(&canvas, warpedMask)

		warpedMask.Close()
		solid.Close()
		warped.Close()
		m.Close()
	}

	return canvas, true
}

// alignPair estimates the 3x3 transform mapping src pixel coordinates onto
// dst pixel coordinates from ORB keypoint matches.  planar selects a rigid
// partial affine estimate instead of a full homography.
func alignPair(src, dst gocv.Mat, planar bool) (gocv.Mat, bool) {

	srcPts, dstPts := matchedPoints(src, dst)

	if len(srcPts) < minMatches {
		return gocv.Mat{}, false
	}

	if planar {

		from := gocv.NewPoint2fVectorFromPoints(srcPts)
		defer from.Close()

		to := gocv.NewPoint2fVectorFromPoints(dstPts)
		defer to.Close()

		affine := gocv.EstimateAffinePartial2D(from, to)
		defer affine.Close()

		if affine.Empty() {
			return gocv.Mat{}, false
		}

		return affineToHomography(affine), true
	}

	srcMat := pointMat(srcPts)
	defer srcMat.Close()

	dstMat := pointMat(dstPts)
	defer dstMat.Close()

	mask := gocv.NewMat()
	defer mask.Close()

	h := gocv.FindHomography(srcMat, &dstMat, gocv.HomograpyMethodRANSAC,
		ransacThreshold, &mask, maxIter, confidence)

	if h.Empty() {
		h.Close()
		return gocv.Mat{}, false
	}

	return h, true
}

// matchedPoints detects ORB keypoints in both frames and returns the ratio
// test filtered correspondences
func matchedPoints(src, dst gocv.Mat) ([]gocv.Point2f, []gocv.Point2f) {

	graySrc := gocv.NewMat()
	defer graySrc.Close()
	gocv.CvtColor(src, &graySrc, gocv.ColorBGRToGray)

	grayDst := gocv.NewMat()
	defer grayDst.Close()
	gocv.CvtColor(dst, &grayDst, gocv.ColorBGRToGray)

	orb := gocv.NewORB()
	defer orb.Close()

	noMask := gocv.NewMat()
	defer noMask.Close()

	kpSrc, descSrc := orb.DetectAndCompute(graySrc, noMask)
	defer descSrc.Close()

	kpDst, descDst := orb.DetectAndCompute(grayDst, noMask)
	defer descDst.Close()

	if len(kpSrc) < minMatches || len(kpDst) < minMatches ||
		descSrc.Empty() || descDst.Empty() {
		return nil, nil
	}

	matcher := gocv.NewBFMatcherWithParams(gocv.NormHamming, false)
	defer matcher.Close()

	matches := matcher.KnnMatch(descSrc, descDst, 2)

	srcPts := make([]gocv.Point2f, 0, len(matches))
	dstPts := make([]gocv.Point2f, 0, len(matches))

	for _, pair := range matches {

		if len(pair) < 2 {
			continue
		}

		// Lowe ratio test rejects ambiguous matches
		if pair[0].Distance >= loweRatio*pair[1].Distance {
			continue
		}

		q := kpSrc[pair[0].QueryIdx]
		t := kpDst[pair[0].TrainIdx]

		srcPts = append(srcPts, gocv.Point2f{X: float32(q.X), Y: float32(q.Y)})
		dstPts = append(dstPts, gocv.Point2f{X: float32(t.X), Y: float32(t.Y)})
	}

	return srcPts, dstPts
}

// pointMat packs points into the Nx1 two channel float Mat the homography
// estimator expects
func pointMat(pts []gocv.Point2f) gocv.Mat {

	m := gocv.NewMatWithSize(len(pts), 1, gocv.MatTypeCV32FC2)

	for i, pt := range pts {
		m.SetFloatAt(i, 0, pt.X)
		m.SetFloatAt(i, 1, pt.Y)
	}

	return m
}

// affineToHomography lifts a 2x3 affine estimate to a full 3x3 transform
func affineToHomography(affine gocv.Mat) gocv.Mat {

	h := identity3()

	for row := 0; row < 2; row++ {
		for col := 0; col < 3; col++ {
			h.SetDoubleAt(row, col, affine.GetDoubleAt(row, col))
		}
	}

	return h
}

// identity3 returns a 3x3 identity transform
func identity3() gocv.Mat {

	m := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV64F)

	for i := 0; i < 3; i++ {
		m.SetDoubleAt(i, i, 1)
	}

	return m
}

// translation3 returns a 3x3 translation transform
func translation3(tx, ty float64) gocv.Mat {

	m := identity3()
	m.SetDoubleAt(0, 2, tx)
	m.SetDoubleAt(1, 2, ty)

	return m
}

// mul3 multiplies two 3x3 transforms
func mul3(a, b gocv.Mat) gocv.Mat {

	out := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV64F)

	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {

			sum := 0.0

			for k := 0; k < 3; k++ {
				sum += a.GetDoubleAt(row, k) * b.GetDoubleAt(k, col)
			}

			out.SetDoubleAt(row, col, sum)
		}
	}

	return out
}

// mapPoint applies a 3x3 transform to a pixel coordinate with perspective
// division
func mapPoint(h gocv.Mat, x, y float64) (float64, float64) {

	w := h.GetDoubleAt(2, 0)*x + h.GetDoubleAt(2, 1)*y + h.GetDoubleAt(2, 2)

	if w == 0 {
		return 0, 0
	}

	px := (h.GetDoubleAt(0, 0)*x + h.GetDoubleAt(0, 1)*y + h.GetDoubleAt(0, 2)) / w
	py := (h.GetDoubleAt(1, 0)*x + h.GetDoubleAt(1, 1)*y + h.GetDoubleAt(1, 2)) / w

	return px, py
}

// frameCorners returns the four pixel corners of a frame
func frameCorners(frame gocv.Mat) [4][2]float64 {

	w := float64(frame.Cols())
	h := float64(frame.Rows())

	return [4][2]float64{{0, 0}, {w, 0}, {0, h}, {w, h}}
}

// subsample picks at most max frames spread evenly across the input order
func subsample(frames []gocv.Mat, max int) []gocv.Mat {

	if len(frames) <= max {
		return frames
	}

	picked := make([]gocv.Mat, 0, max)
	step := float64(len(frames)-1) / float64(max-1)

	for i := 0; i < max; i++ {
		picked = append(picked, frames[int(float64(i)*step+0.5)])
	}

	return picked
}

// capFrame returns a copy of the frame downscaled to the width cap
func capFrame(frame gocv.Mat, maxWidth int) gocv.Mat {

	if frame.Cols() <= maxWidth {
		return frame.Clone()
	}

	scale := float64(maxWidth) / float64(frame.Cols())
	height := int(float64(frame.Rows()) * scale)

	scaled := gocv.NewMat()
	gocv.Resize(frame, &scaled, image.Pt(maxWidth, height), 0, 0,
		gocv.InterpolationArea)

	return scaled
}
