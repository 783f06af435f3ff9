package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"

	"gocv.io/x/gocv"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// TextRenderer draws antialiased TrueType text onto a Mat, for report
// headers and legends where the Hershey fonts look too rough
type TextRenderer struct {
	fontFace font.Face
}

// NewTextRenderer loads a TTF font file and sets up a type face at the
// given point size
func NewTextRenderer(fontPath string, size float64) (*TextRenderer, error) {

	// load font data
	fontBytes, err := os.ReadFile(fontPath)

	if err != nil {
		return nil, fmt.Errorf("failed to load font: %w", err)
	}

	return NewTextRendererFromBytes(fontBytes, size)
}

// NewDefaultTextRenderer sets up a type face at the given point size using
// the bundled Go Regular font, so no font file needs to ship alongside the
// binary
func NewDefaultTextRenderer(size float64) (*TextRenderer, error) {
	return NewTextRendererFromBytes(goregular.TTF, size)
}

// NewTextRendererFromBytes parses TTF font data and sets up a type face at
// the given point size
func NewTextRendererFromBytes(fontBytes []byte, size float64) (*TextRenderer,
	error) {

	// parse the font
	f, err := opentype.Parse(fontBytes)

	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}

	// create a type face
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})

	if err != nil {
		return nil, fmt.Errorf("failed to create type face: %w", err)
	}

	return &TextRenderer{fontFace: face}, nil
}

// Close frees the type face resources
func (t *TextRenderer) Close() error {
	return t.fontFace.Close()
}

// Width returns the rendered pixel width of text, for layout calculations
func (t *TextRenderer) Width(text string) int {

	dr := &font.Drawer{Face: t.fontFace}

	return dr.MeasureString(text).Ceil()
}

// DrawText writes text onto the image with its baseline at (x, y)
func (t *TextRenderer) DrawText(img *gocv.Mat, text string, x, y int,
	clr color.RGBA) error {

	// render the text into a transparent overlay
	rgba := image.NewRGBA(image.Rect(0, 0, img.Cols(), img.Rows()))
	draw.Draw(rgba, rgba.Bounds(), image.NewUniform(color.RGBA{0, 0, 0, 0}),
		image.Point{}, draw.Src)

	dr := &font.Drawer{
		Dst:  rgba,
		Src:  image.NewUniform(clr),
		Face: t.fontFace,
		Dot: fixed.Point26_6{
			X: fixed.Int26_6(x * 64),
			Y: fixed.Int26_6(y * 64),
		},
	}
	dr.DrawString(text)

	// Convert image.RGBA to gocv.Mat
	imgRGBA, err := gocv.NewMatFromBytes(rgba.Bounds().Dy(), rgba.Bounds().Dx(),
		gocv.MatTypeCV8UC4, rgba.Pix)

	if imgRGBA.Empty() || err != nil {
		return fmt.Errorf("error creating Mat from RGBA")
	}

	defer imgRGBA.Close()

	gocv.CvtColor(imgRGBA, &imgRGBA, gocv.ColorRGBAToBGR)
	gocv.AddWeighted(*img, 1.0, imgRGBA, 1.0, 0, img)

	return nil
}
