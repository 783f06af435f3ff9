package render

import (
	"image"

	"gocv.io/x/gocv"
)

// legend panel layout
const (
	legendPad     = 10
	legendLineGap = 6
)

// Legend draws the summary lines in the top left corner of the image on a
// black backing panel, so the text stays readable over foliage
func Legend(img *gocv.Mat, tr *TextRenderer, lines []string) error {

	if len(lines) == 0 {
		return nil
	}

	metrics := tr.fontFace.Metrics()
	lineHeight := metrics.Height.Ceil() + legendLineGap

	width := 0

	for _, line := range lines {
		if w := tr.Width(line); w > width {
			width = w
		}
	}

	panel := image.Rect(0, 0, width+2*legendPad,
		lineHeight*len(lines)+2*legendPad)

	gocv.Rectangle(img, panel, Black, -1)

	y := legendPad + metrics.Ascent.Ceil()

	for _, line := range lines {

		if err := tr.DrawText(img, line, legendPad, y, White); err != nil {
			return err
		}

		y += lineHeight
	}

	return nil
}
