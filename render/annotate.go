// Package render draws the analysis results back onto the panorama, with
// numbered tree markers, health colored bounding boxes and crown outlines.
package render

import (
	"fmt"
	"image"
	"image/color"
	"strconv"

	"github.com/canopylabs/go-canopy/segment"
	"gocv.io/x/gocv"
)

// boxLabel holds the precalculated rendering details of a text label
type boxLabel struct {
	rect    image.Rectangle
	clr     color.RGBA
	text    string
	textPos image.Point
}

// TreeMarkers draws a numbered marker on each tree centroid.  Tree numbers
// follow the slice order, so regions must already be sorted into reading
// order for the numbering to be deterministic.  Markers are colored by
// health status.
func TreeMarkers(img *gocv.Mat, regions []*segment.TreeRegion, font Font,
	radius int) {

	for i, region := range regions {

		useClr := HealthColor(region.Disease)

		// filled disc with a white rim so the marker stays visible on any
		// canopy background
		gocv.Circle(img, region.Centroid, radius, useClr, -1)
		gocv.Circle(img, region.Centroid, radius, White, 2)

		text := strconv.Itoa(i + 1)
		textSize := gocv.GetTextSize(text, font.Face, font.Scale, font.Thickness)

		// center the number on the disc
		textPos := image.Pt(region.Centroid.X-textSize.X/2,
			region.Centroid.Y+textSize.Y/2)

		gocv.PutTextWithParams(img, text, textPos, font.Face, font.Scale,
			font.Color, font.Thickness, font.LineType, false)
	}
}

// TreeBoxes renders the bounding box of each tree with a label carrying the
// tree number, disease class and confidence.  Labels are drawn in a second
// pass so they sit on top of neighbouring boxes and outlines.
func TreeBoxes(img *gocv.Mat, regions []*segment.TreeRegion, font Font,
	lineThickness int) {

	// keep a record of all box labels for later rendering
	boxLabels := make([]boxLabel, 0)

	for i, region := range regions {

		useClr := HealthColor(region.Disease)

		rect := region.Box.Rect()
		gocv.Rectangle(img, rect, useClr, lineThickness)

		// create text for label
		text := fmt.Sprintf("#%d", i+1)

		if region.Disease != "" {
			text = fmt.Sprintf("#%d %s %.2f", i+1, region.Disease,
				region.Confidence)
		}

		textSize := gocv.GetTextSize(text, font.Face, font.Scale, font.Thickness)

		// Calculate the alignment of text label
		var centerX int

		switch font.Alignment {
		case Center:
			centerX = (rect.Min.X + rect.Max.X) / 2

		case Right:
			centerX = rect.Max.X - (textSize.X / 2) - font.RightPad + (lineThickness / 2)

		case Left:
			fallthrough
		default:
			centerX = rect.Min.X + (textSize.X / 2) + font.LeftPad - (lineThickness / 2)
		}

		// Adjust the label position so the text is centered horizontally
		labelPosition := image.Pt(centerX-textSize.X/2, rect.Min.Y-font.BottomPad)

		// create box for placing text on
		bRect := image.Rect(centerX-textSize.X/2-font.LeftPad,
			rect.Min.Y-textSize.Y-font.TopPad-font.BottomPad,
			centerX+textSize.X/2+font.RightPad, rect.Min.Y)

		// record label rendering details
		nextLabel := boxLabel{
			rect:    bRect,
			clr:     useClr,
			text:    text,
			textPos: labelPosition,
		}
		boxLabels = append(boxLabels, nextLabel)
	}

	// draw all precalculated box labels so they are the top most layer on
	// the image and don't get overlapped by crown outlines
	for _, box := range boxLabels {
		// draw box text gets written on
		gocv.Rectangle(img, box.rect, box.clr, -1)

		// Draw the label over box
		gocv.PutTextWithParams(img, box.text, box.textPos,
			font.Face, font.Scale, font.Color, font.Thickness,
			font.LineType, false)
	}
}
