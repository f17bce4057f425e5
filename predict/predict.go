// Package predict extrapolates object positions along the conveyor belt to
// compensate for the latency between the vision system and the actuator.
package predict

// Predict returns the expected X position of an object after latency sample
// periods, given the belt speed in meters per second and the sample period in
// seconds.  The belt only translates along X so Y is never predicted.
func Predict(x, beltSpeed, samplePeriod float64, latency int) float64 {
	return x + beltSpeed*samplePeriod*float64(latency)
}

// Predictor holds the belt kinematics used to extrapolate positions
type Predictor struct {
	// BeltSpeed is the conveyor belt speed in meters per second
	BeltSpeed float64
	// SamplePeriod is the time in seconds between frames
	SamplePeriod float64
	// Latency is the number of sample periods the actuator lags behind
	Latency int
}

// NewPredictor returns a Predictor for a belt moving at beltSpeed filmed at
// fps frames per second with the given latency in frames
func NewPredictor(beltSpeed float64, fps float64, latency int) *Predictor {

	p := &Predictor{
		BeltSpeed: beltSpeed,
		Latency:   latency,
	}

	if fps > 0 {
		p.SamplePeriod = 1 / fps
	}

	return p
}

// Predict returns the predicted X and Y position for the current position
func (p *Predictor) Predict(x, y float64) (float64, float64) {
	return Predict(x, p.BeltSpeed, p.SamplePeriod, p.Latency), y
}

// InViewWindow reports if the pixel x coordinate lies in the central half of
// a frame frameWidth pixels wide, which is where positions are reliable
// enough to be predicted and stored.  The left bound is exclusive and the
// right bound inclusive.
func InViewWindow(x, frameWidth int) bool {
	return frameWidth/4 < x && x <= 3*frameWidth/4
}
