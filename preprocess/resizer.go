// Package preprocess prepares video frames for detection.
package preprocess

import (
	"gocv.io/x/gocv"
	"image"
)

// Resizer scales video frames to the resolution the calibration and region
// of interest mask were derived at, so pixel measurements stay comparable
type Resizer struct {
	// destWidth is the width to scale to
	destWidth int
	// destHeight is the height to scale to
	destHeight int
}

// NewResizer returns a Resizer scaling frames to destWidth x destHeight
func NewResizer(destWidth, destHeight int) *Resizer {
	return &Resizer{
		destWidth:  destWidth,
		destHeight: destHeight,
	}
}

// Size returns the destination frame size
func (r *Resizer) Size() image.Point {
	return image.Pt(r.destWidth, r.destHeight)
}

// Matches reports if src already has the destination size
func (r *Resizer) Matches(src gocv.Mat) bool {
	return src.Cols() == r.destWidth && src.Rows() == r.destHeight
}

// ScaleFactor returns the horizontal and vertical scale applied to a frame of
// the given size
func (r *Resizer) ScaleFactor(srcWidth, srcHeight int) (float32, float32) {

	if srcWidth == 0 || srcHeight == 0 {
		return 0, 0
	}

	return float32(r.destWidth) / float32(srcWidth),
		float32(r.destHeight) / float32(srcHeight)
}

// Resize scales src into dest.  The aspect ratio is not preserved as both
// axes must map onto the calibrated frame.
func (r *Resizer) Resize(src gocv.Mat, dest *gocv.Mat) {

	if r.Matches(src) {
		src.CopyTo(dest)
		return
	}

	interp := gocv.InterpolationArea

	// area interpolation is only suited to shrinking
	if src.Cols() < r.destWidth || src.Rows() < r.destHeight {
		interp = gocv.InterpolationLinear
	}

	gocv.Resize(src, dest, image.Pt(r.destWidth, r.destHeight), 0, 0, interp)
}
