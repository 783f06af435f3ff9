package segment

import (
	"image"
	"image/color"
	"testing"

	"gocv.io/x/gocv"
)

// syntheticCanopy builds a test frame with three well separated circular
// crowns and its matching vegetation mask
func syntheticCanopy() (gocv.Mat, gocv.Mat, []image.Point) {

	centers := []image.Point{{X: 200, Y: 200}, {X: 600, Y: 200}, {X: 400, Y: 700}}

	img := gocv.NewMatWithSize(1000, 1000, gocv.MatTypeCV8UC3)
	mask := gocv.NewMatWithSize(1000, 1000, gocv.MatTypeCV8U)

	green := color.RGBA{R: 30, G: 180, B: 40, A: 255}
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}

	for _, c := range centers {
		gocv.Circle(&img, c, 60, green, -1)
		gocv.Circle(&mask, c, 60, white, -1)
	}

	return img, mask, centers
}

func TestCrownsSeparatedBlobs(t *testing.T) {

	img, mask, centers := syntheticCanopy()
	defer img.Close()
	defer mask.Close()

	regions := Crowns(img, mask, DefaultParams())
	defer CloseAll(regions)

	if len(regions) != len(centers) {
		t.Fatalf("expected %d crowns, got %d", len(centers), len(regions))
	}

	band := BandForFrame(1000, 1000)

	for _, region := range regions {

		if err := region.Validate(band); err != nil {
			t.Errorf("crown failed validation: %v", err)
		}

		// each crown centroid must sit near one of the drawn centers
		matched := false

		for _, c := range centers {
			dx := region.Centroid.X - c.X
			dy := region.Centroid.Y - c.Y

			if dx*dx+dy*dy < 30*30 {
				matched = true
				break
			}
		}

		if !matched {
			t.Errorf("centroid %v not near any drawn crown", region.Centroid)
		}
	}
}

func TestCrownsEmptyMask(t *testing.T) {

	img := gocv.NewMatWithSize(500, 500, gocv.MatTypeCV8UC3)
	defer img.Close()

	mask := gocv.NewMatWithSize(500, 500, gocv.MatTypeCV8U)
	defer mask.Close()

	regions := Crowns(img, mask, DefaultParams())
	defer CloseAll(regions)

	if len(regions) != 0 {
		t.Errorf("expected no crowns on an empty mask, got %d", len(regions))
	}
}

func TestCrownsRejectsSpeckle(t *testing.T) {

	img := gocv.NewMatWithSize(1000, 1000, gocv.MatTypeCV8UC3)
	defer img.Close()

	mask := gocv.NewMatWithSize(1000, 1000, gocv.MatTypeCV8U)
	defer mask.Close()

	// speckle far below the minimum crown size
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}

	for x := 100; x < 900; x += 100 {
		gocv.Circle(&mask, image.Pt(x, 500), 3, white, -1)
	}

	regions := Crowns(img, mask, DefaultParams())
	defer CloseAll(regions)

	if len(regions) != 0 {
		t.Errorf("expected speckle to be rejected, got %d regions", len(regions))
	}
}
