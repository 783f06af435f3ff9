package render

import "image/color"

var (
	// health status colors
	HealthyColor  = color.RGBA{R: 0, G: 200, B: 80, A: 255}  // #00C850
	DiseasedColor = color.RGBA{R: 220, G: 40, B: 40, A: 255} // #DC2828
	UnknownColor  = color.RGBA{R: 255, G: 200, B: 0, A: 255} // #FFC800

	Black = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	White = color.RGBA{R: 255, G: 255, B: 255, A: 255}

	// crownPalette colors crown outlines so adjacent trees remain
	// distinguishable in dense canopy
	crownPalette = []color.RGBA{
		{R: 72, G: 249, B: 10, A: 255},   // #48F90A
		{R: 0, G: 212, B: 187, A: 255},   // #00D4BB
		{R: 255, G: 178, B: 29, A: 255},  // #FFB21D
		{R: 0, G: 194, B: 255, A: 255},   // #00C2FF
		{R: 207, G: 210, B: 49, A: 255},  // #CFD231
		{R: 100, G: 115, B: 255, A: 255}, // #6473FF
		{R: 255, G: 112, B: 31, A: 255},  // #FF701F
		{R: 61, G: 219, B: 134, A: 255},  // #3DDB86
		{R: 203, G: 56, B: 255, A: 255},  // #CB38FF
		{R: 146, G: 204, B: 23, A: 255},  // #92CC17
		{R: 44, G: 153, B: 168, A: 255},  // #2C99A8
		{R: 255, G: 149, B: 200, A: 255}, // #FF95C8
	}
)

// HealthColor maps a classified disease label to its marker color.  An
// unclassified tree renders in the unknown color.
func HealthColor(disease string) color.RGBA {

	switch disease {
	case "Healthy":
		return HealthyColor
	case "", "Unknown":
		return UnknownColor
	default:
		return DiseasedColor
	}
}

// CrownColor returns the palette color for the given tree number
func CrownColor(num int) color.RGBA {
	return crownPalette[num%len(crownPalette)]
}
