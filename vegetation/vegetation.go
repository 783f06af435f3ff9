// Package vegetation produces a binary mask of plant covered pixels from a
// color aerial image using a majority vote across three independent
// color based vegetation indices.
package vegetation

import (
	"image"

	"gocv.io/x/gocv"
)

// index thresholds
const (
	// exgThreshold is applied to the normalized excess green index
	exgThreshold = 100
	// ndiThreshold is applied to the (G-R)/(G+R) normalized difference index
	ndiThreshold = 0.05
)

// HSV range tuned to green vegetation hues
var (
	hsvLower = gocv.NewScalar(25, 40, 40, 0)
	hsvUpper = gocv.NewScalar(90, 255, 255, 0)
)

// Mask computes the binary vegetation mask of a BGR image.  A pixel counts
// as vegetation only when at least two of the three indicators (HSV green
// range, excess green, normalized difference) agree, which keeps the mask
// stable under lighting and shadow variance.  The mask is cleaned by a
// morphological opening then closing.
func Mask(img gocv.Mat) gocv.Mat {

	hsv := hsvMask(img)
	defer hsv.Close()

	// the float indices share one BGR to float conversion
	imgFloat := gocv.NewMat()
	defer imgFloat.Close()
	img.ConvertTo(&imgFloat, gocv.MatTypeCV32F)

	channels := gocv.Split(imgFloat)
	defer func() {
		for i := range channels {
			channels[i].Close()
		}
	}()

	b, g, r := channels[0], channels[1], channels[2]

	exg := exgMask(b, g, r)
	defer exg.Close()

	ndi := ndiMask(g, r)
	defer ndi.Close()

	mask := voteMask(hsv, exg, ndi)

	// opening removes speckle noise, closing fills small holes in crowns
	small := gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(3, 3))
	defer small.Close()
	medium := gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(7, 7))
	defer medium.Close()

	gocv.MorphologyEx(mask, &mask, gocv.MorphOpen, small)
	gocv.MorphologyEx(mask, &mask, gocv.MorphClose, medium)

	return mask
}

// Coverage returns the number of vegetation pixels in a mask
func Coverage(mask gocv.Mat) int {
	return gocv.CountNonZero(mask)
}

// hsvMask tests each pixel against a hue/saturation/value range tuned to
// green vegetation
func hsvMask(img gocv.Mat) gocv.Mat {

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(img, &hsv, gocv.ColorBGRToHSV)

	mask := gocv.NewMat()
	gocv.InRangeWithScalar(hsv, hsvLower, hsvUpper, &mask)

	return mask
}

// exgMask thresholds the excess green index 2G - R - B, clipped to
// non-negative and normalized to the 0-255 range
func exgMask(b, g, r gocv.Mat) gocv.Mat {

	exg := gocv.NewMat()
	defer exg.Close()

	tmp := gocv.NewMat()
	defer tmp.Close()

	gocv.AddWeighted(g, 2, r, -1, 0, &tmp)
	gocv.Subtract(tmp, b, &exg)

	gocv.Threshold(exg, &exg, 0, 0, gocv.ThresholdToZero)
	gocv.Normalize(exg, &exg, 0, 255, gocv.NormMinMax)

	exg8 := gocv.NewMat()
	defer exg8.Close()
	exg.ConvertTo(&exg8, gocv.MatTypeCV8U)

	mask := gocv.NewMat()
	gocv.Threshold(exg8, &mask, exgThreshold, 255, gocv.ThresholdBinary)

	return mask
}

// ndiMask thresholds the normalized difference index (G-R)/(G+R+eps), a
// reflectance contrast approximation of NDVI for RGB sensors
func ndiMask(g, r gocv.Mat) gocv.Mat {

	num := gocv.NewMat()
	defer num.Close()
	gocv.Subtract(g, r, &num)

	den := gocv.NewMat()
	defer den.Close()
	gocv.Add(g, r, &den)
	den.AddFloat(1e-5)

	ndi := gocv.NewMat()
	defer ndi.Close()
	gocv.Divide(num, den, &ndi)

	ndiBin := gocv.NewMat()
	defer ndiBin.Close()
	gocv.Threshold(ndi, &ndiBin, ndiThreshold, 1.0, gocv.ThresholdBinary)

	mask := gocv.NewMat()
	ndiBin.ConvertToWithParams(&mask, gocv.MatTypeCV8U, 255, 0)

	return mask
}

// voteMask combines three binary masks with a strict at-least-2-of-3
// majority vote.  This is a count of agreeing indicators, not a pairwise
// AND/OR combination, and is invariant to the order of its inputs.
func voteMask(a, b, c gocv.Mat) gocv.Mat {

	votes := gocv.NewMat()
	defer votes.Close()

	// each mask contributes one vote per pixel
	gocv.AddWeighted(a, 1.0/255, b, 1.0/255, 0, &votes)
	gocv.AddWeighted(votes, 1, c, 1.0/255, 0, &votes)

	mask := gocv.NewMat()
	gocv.Threshold(votes, &mask, 1, 255, gocv.ThresholdBinary)

	return mask
}
