package vegetation

import (
	"image"
	"image/color"
	"testing"

	"gocv.io/x/gocv"
)

// fill paints a solid BGR color over a Mat region
func fill(img *gocv.Mat, rect image.Rectangle, clr color.RGBA) {
	gocv.Rectangle(img, rect, clr, -1)
}

func TestMaskDetectsGreen(t *testing.T) {

	img := gocv.NewMatWithSize(200, 200, gocv.MatTypeCV8UC3)
	defer img.Close()

	// BGR green foliage tone over the whole frame
	fill(&img, image.Rect(0, 0, 200, 200), color.RGBA{R: 40, G: 170, B: 50, A: 255})

	mask := Mask(img)
	defer mask.Close()

	coverage := Coverage(mask)
	total := 200 * 200

	// nearly the whole frame should be flagged as vegetation
	if coverage < total*9/10 {
		t.Errorf("expected near full coverage, got %d of %d", coverage, total)
	}
}

func TestMaskRejectsGray(t *testing.T) {

	img := gocv.NewMatWithSize(200, 200, gocv.MatTypeCV8UC3)
	defer img.Close()

	fill(&img, image.Rect(0, 0, 200, 200), color.RGBA{R: 120, G: 120, B: 120, A: 255})

	mask := Mask(img)
	defer mask.Close()

	// gray pixels have no green excess and fail all three indicators
	if coverage := Coverage(mask); coverage > 0 {
		t.Errorf("expected zero coverage on gray frame, got %d", coverage)
	}
}

func TestVoteMaskMajority(t *testing.T) {

	a := gocv.NewMatWithSize(10, 10, gocv.MatTypeCV8U)
	defer a.Close()
	b := gocv.NewMatWithSize(10, 10, gocv.MatTypeCV8U)
	defer b.Close()
	c := gocv.NewMatWithSize(10, 10, gocv.MatTypeCV8U)
	defer c.Close()

	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}

	// pixel columns 0-2: three votes, 3-5: two votes, 6-8: one vote
	fill(&a, image.Rect(0, 0, 6, 10), white)
	fill(&b, image.Rect(0, 0, 3, 10), white)
	fill(&b, image.Rect(3, 0, 6, 10), white)
	fill(&c, image.Rect(0, 0, 3, 10), white)
	fill(&c, image.Rect(6, 0, 9, 10), white)

	mask := voteMask(a, b, c)
	defer mask.Close()

	// exactly the two-or-more vote columns pass, 6 columns of 10 pixels
	if got := Coverage(mask); got != 60 {
		t.Errorf("expected 60 voted pixels, got %d", got)
	}

	if mask.GetUCharAt(5, 1) == 0 {
		t.Errorf("expected three-vote pixel set")
	}

	if mask.GetUCharAt(5, 4) == 0 {
		t.Errorf("expected two-vote pixel set")
	}

	if mask.GetUCharAt(5, 7) != 0 {
		t.Errorf("expected one-vote pixel clear")
	}
}

func TestVoteMaskOrderInvariant(t *testing.T) {

	a := gocv.NewMatWithSize(10, 10, gocv.MatTypeCV8U)
	defer a.Close()
	b := gocv.NewMatWithSize(10, 10, gocv.MatTypeCV8U)
	defer b.Close()
	c := gocv.NewMatWithSize(10, 10, gocv.MatTypeCV8U)
	defer c.Close()

	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}

	fill(&a, image.Rect(0, 0, 5, 10), white)
	fill(&b, image.Rect(3, 0, 8, 10), white)
	fill(&c, image.Rect(2, 0, 4, 10), white)

	first := voteMask(a, b, c)
	defer first.Close()

	second := voteMask(c, a, b)
	defer second.Close()

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.BitwiseXor(first, second, &diff)

	if gocv.CountNonZero(diff) != 0 {
		t.Errorf("vote result depends on input order")
	}
}

func TestMaskSplitFrame(t *testing.T) {

	img := gocv.NewMatWithSize(200, 200, gocv.MatTypeCV8UC3)
	defer img.Close()

	// left half foliage, right half bare soil
	fill(&img, image.Rect(0, 0, 100, 200), color.RGBA{R: 40, G: 170, B: 50, A: 255})
	fill(&img, image.Rect(100, 0, 200, 200), color.RGBA{R: 150, G: 110, B: 80, A: 255})

	mask := Mask(img)
	defer mask.Close()

	coverage := Coverage(mask)
	total := 200 * 200

	if coverage < total*4/10 || coverage > total*6/10 {
		t.Errorf("expected roughly half coverage, got %d of %d", coverage, total)
	}
}
