package detect

import (
	"gocv.io/x/gocv"
	"image"
	"image/color"
)

// Color is the classified color of a detected object
type Color string

const (
	Red     Color = "Red"
	Blue    Color = "Blue"
	Unknown Color = "Unknown"
)

// colorRatio is how much stronger one channel's mean must be over the other
// for the object to be classified as that channel's color
const colorRatio = 1.2

var (
	fill = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// String returns the color name
func (c Color) String() string {
	return string(c)
}

// ClassifyMean classifies mean blue, green and red channel intensities
func ClassifyMean(b, g, r float64) Color {

	switch {
	case r > b*colorRatio:
		return Red
	case b > r*colorRatio:
		return Blue
	default:
		return Unknown
	}
}

// ClassifyColor classifies the color of the object outlined by boundary in
// the BGR frame using the mean channel intensities of the pixels inside the
// boundary
func ClassifyColor(frame gocv.Mat, boundary []image.Point) Color {

	if len(boundary) == 0 || frame.Empty() {
		return Unknown
	}

	mask := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0),
		frame.Rows(), frame.Cols(), gocv.MatTypeCV8UC1)
	defer mask.Close()

	contours := gocv.NewPointsVectorFromPoints([][]image.Point{boundary})
	defer contours.Close()

	// draw the boundary filled to mask the object's pixels
	gocv.DrawContours(&mask, contours, -1, fill, -1)

	mean := frame.MeanWithMask(mask)

	// Mat channels are in BGR order
	return ClassifyMean(mean.Val1, mean.Val2, mean.Val3)
}
