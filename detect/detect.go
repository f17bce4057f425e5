package detect

import (
	"fmt"
	"gocv.io/x/gocv"
	"image"
)

// Params defines the parameters used to detect objects in a frame
type Params struct {
	// AreaMinimum is the enclosed boundary area, in pixels, an object must
	// exceed to not be discarded as noise
	AreaMinimum float64
	// Threshold is the intensity used to binarize the frame
	Threshold float32
}

// DefaultParams returns the detection parameters of the reference deployment
func DefaultParams() Params {
	return Params{
		AreaMinimum: 100,
		Threshold:   127,
	}
}

// Observation is a single object detected in a single frame
type Observation struct {
	// Center is the pixel center of the object's minimum area rectangle
	Center image.Point
	// Boundary is the object's outline, only used for color sampling
	Boundary []image.Point
	// Angle is the normalized orientation in degrees, see NormalizeAngle
	Angle float64
	// Color is the classified color of the object
	Color Color
}

// Detector finds objects on the conveyor belt
type Detector struct {
	Params Params
}

// NewDetector returns an instance of the Detector using the given parameters
func NewDetector(params Params) *Detector {
	return &Detector{
		Params: params,
	}
}

// Detect returns the objects found in the BGR frame within the region of
// interest mask.  Observations are returned in boundary extraction order.  An
// empty roi Mat means the whole frame is searched.
func (d *Detector) Detect(frame gocv.Mat, roi gocv.Mat) ([]Observation, error) {

	if frame.Empty() {
		return nil, fmt.Errorf("frame is empty")
	}

	gray := gocv.NewMat()
	defer gray.Close()

	if frame.Channels() == 1 {
		frame.CopyTo(&gray)
	} else {
		gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)
	}

	masked := gocv.NewMat()
	defer masked.Close()

	if roi.Empty() {
		gray.CopyTo(&masked)
	} else {
		if roi.Rows() != frame.Rows() || roi.Cols() != frame.Cols() {
			return nil, fmt.Errorf("roi mask size %dx%d does not match frame size %dx%d",
				roi.Cols(), roi.Rows(), frame.Cols(), frame.Rows())
		}
		gocv.BitwiseAnd(gray, roi, &masked)
	}

	binary := gocv.NewMat()
	defer binary.Close()

	gocv.Threshold(masked, &binary, d.Params.Threshold, 255, gocv.ThresholdBinary)

	contours := gocv.FindContours(binary, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	observations := make([]Observation, 0, contours.Size())

	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)

		// filter small noise
		if gocv.ContourArea(contour) <= d.Params.AreaMinimum {
			continue
		}

		// float extents so centers truncate and near square rectangles
		// compare unrounded
		rect := gocv.MinAreaRect2f(contour)
		boundary := contour.ToPoints()

		observations = append(observations, Observation{
			Center:   image.Pt(int(rect.Center.X), int(rect.Center.Y)),
			Boundary: boundary,
			Angle:    NormalizeAngle(float64(rect.Width), float64(rect.Height), float64(rect.Angle)),
			Color:    ClassifyColor(frame, boundary),
		})
	}

	return observations, nil
}
