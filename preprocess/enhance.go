// Package preprocess sharpens crown boundaries ahead of vegetation
// detection and provides the resize helpers used to bound the working
// resolution of the pipeline.
package preprocess

import (
	"image"

	"gocv.io/x/gocv"
)

// Enhance improves crown boundary contrast before detection.  The image is
// denoised with an edge preserving bilateral filter, contrast enhanced with
// CLAHE in LAB space, then detail enhanced with an unsharp mask and a 3x3
// sharpening kernel.  The input is not modified.
func Enhance(img gocv.Mat) gocv.Mat {

	denoised := gocv.NewMat()
	defer denoised.Close()
	gocv.BilateralFilter(img, &denoised, 9, 75, 75)

	lab := gocv.NewMat()
	defer lab.Close()
	gocv.CvtColor(denoised, &lab, gocv.ColorBGRToLab)

	channels := gocv.Split(lab)
	defer func() {
		for i := range channels {
			channels[i].Close()
		}
	}()

	clahe := gocv.NewCLAHEWithParams(2.5, image.Pt(12, 12))
	defer clahe.Close()

	// lightness carries the contrast, the a channel separates green from
	// non-green so it gets the same treatment
	clahe.Apply(channels[0], &channels[0])
	clahe.Apply(channels[1], &channels[1])

	merged := gocv.NewMat()
	defer merged.Close()
	gocv.Merge(channels, &merged)

	enhanced := gocv.NewMat()
	defer enhanced.Close()
	gocv.CvtColor(merged, &enhanced, gocv.ColorLabToBGR)

	// unsharp mask
	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(enhanced, &blurred, image.Pt(0, 0), 2.0, 2.0,
		gocv.BorderDefault)

	unsharp := gocv.NewMat()
	defer unsharp.Close()
	gocv.AddWeighted(enhanced, 1.5, blurred, -0.5, 0, &unsharp)

	kernel := sharpenKernel()
	defer kernel.Close()

	sharpened := gocv.NewMat()
	gocv.Filter2D(unsharp, &sharpened, gocv.MatTypeCV8U, kernel,
		image.Pt(-1, -1), 0, gocv.BorderDefault)

	return sharpened
}

// sharpenKernel builds the 3x3 sharpening convolution kernel
func sharpenKernel() gocv.Mat {

	kernel := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV32F)

	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			kernel.SetFloatAt(row, col, -1)
		}
	}

	kernel.SetFloatAt(1, 1, 9)

	return kernel
}
