package calibrate

import (
	"errors"
	"fmt"
	"gocv.io/x/gocv"
	"image"
)

const (
	// ReferenceWidth is the real world width, in meters, of the reference
	// object placed next to the conveyor belt in the calibration image
	ReferenceWidth = 0.1
)

// ErrNoReferenceObject is returned when the reference object crop does not
// contain any detectable boundary
var ErrNoReferenceObject = errors.New("no reference object detected in calibration crop")

// Result is the outcome of calibrating the camera against the reference
// object.  It is created once per run and never modified afterwards.
type Result struct {
	// PPM is the number of pixels representing a distance of 1 meter
	PPM float64
	// WidthPx is the measured width of the reference object in pixels
	WidthPx int
}

// PPMFromWidth returns the pixels-per-meter ratio for a reference object
// measured to be widthPx pixels wide
func PPMFromWidth(widthPx int) float64 {
	return float64(widthPx) / ReferenceWidth
}

// Calibrate binarizes the reference object crop at the given threshold and
// derives the PPM ratio from the bounding width of the first external
// boundary found.  The crop can be either BGR or single channel.
func Calibrate(crop gocv.Mat, threshold float32) (Result, error) {

	if crop.Empty() {
		return Result{}, fmt.Errorf("%w: crop is empty", ErrNoReferenceObject)
	}

	gray := toGray(crop)
	defer gray.Close()

	binary := gocv.NewMat()
	defer binary.Close()

	gocv.Threshold(gray, &binary, threshold, 255, gocv.ThresholdBinary)

	contours := gocv.FindContours(binary, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	if contours.Size() == 0 {
		return Result{}, ErrNoReferenceObject
	}

	// the first detected boundary is taken as the reference object
	rect := gocv.BoundingRect(contours.At(0))

	if rect.Dx() <= 0 {
		return Result{}, fmt.Errorf("%w: boundary has zero width", ErrNoReferenceObject)
	}

	return Result{
		PPM:     PPMFromWidth(rect.Dx()),
		WidthPx: rect.Dx(),
	}, nil
}

// CalibrateFile reads the calibration image at path, crops the reference
// object region ref from it and calibrates.  The full image size is also
// returned as it is needed to build the region of interest mask.
func CalibrateFile(path string, ref image.Rectangle, threshold float32) (Result, image.Point, error) {

	img := gocv.IMRead(path, gocv.IMReadColor)
	defer img.Close()

	if img.Empty() {
		return Result{}, image.Point{}, fmt.Errorf("error reading calibration image: %s", path)
	}

	size := image.Pt(img.Cols(), img.Rows())

	// clamp the reference rectangle to the image the same way slicing does
	region := ref.Canon().Intersect(image.Rect(0, 0, size.X, size.Y))

	if region.Empty() {
		return Result{}, size, fmt.Errorf("%w: reference rectangle %v outside image %v",
			ErrNoReferenceObject, ref, size)
	}

	crop := img.Region(region)
	defer crop.Close()

	res, err := Calibrate(crop, threshold)

	if err != nil {
		return Result{}, size, err
	}

	return res, size, nil
}

// PixelToMetric converts a pixel position into a metric offset from the
// frame center.  Positions right of (or below) the center yield negative
// values as the belt's coordinate frame is mirrored relative to the image.
func PixelToMetric(frameSize image.Point, pos image.Point, ppm float64) (x, y float64) {

	x0 := frameSize.X / 2
	y0 := frameSize.Y / 2

	x = float64(x0-pos.X) / ppm
	y = float64(y0-pos.Y) / ppm

	return x, y
}

// toGray returns a single channel copy of the given Mat
func toGray(src gocv.Mat) gocv.Mat {

	gray := gocv.NewMat()

	if src.Channels() == 1 {
		src.CopyTo(&gray)
		return gray
	}

	gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)
	return gray
}
