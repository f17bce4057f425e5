package calibrate

import (
	"gocv.io/x/gocv"
	"image"
	"image/color"
)

const (
	// BeltBaseline is the pixel row the conveyor belt band is measured from
	// in the reference deployment
	BeltBaseline = 185
	// bandBottomTrim is the number of pixel rows trimmed from the bottom of
	// the belt band to keep the belt's lower edge out of the mask
	bandBottomTrim = 3
)

var (
	maskOn = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// BeltBand returns the first and last pixel rows (inclusive) of the belt
// region, inset by the belt border on both sides
func BeltBand(ppm, beltWidth, borderWidth float64, baseline int) (y1, y2 int) {

	border := int(borderWidth * ppm)

	y1 = baseline + border
	y2 = baseline + int(beltWidth*ppm) - border - bandBottomTrim

	return y1, y2
}

// BeltMask creates a single channel mask of the given frame size with rows
// y1 to y2 (inclusive) set across the full frame width.  The caller must
// Close the returned Mat.
func BeltMask(frameSize image.Point, y1, y2 int) gocv.Mat {

	mask := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0),
		frameSize.Y, frameSize.X, gocv.MatTypeCV8UC1)

	if y1 < 0 {
		y1 = 0
	}

	if y2 > frameSize.Y-1 {
		y2 = frameSize.Y - 1
	}

	if y1 > y2 {
		// band lies outside the frame
		return mask
	}

	gocv.Rectangle(&mask, image.Rect(0, y1, frameSize.X, y2+1), maskOn, -1)

	return mask
}
