package detect

import "strconv"

// NormalizeAngle converts the raw angle of a minimum area rectangle with the
// given extents into an orientation relative to the horizontal suitable for
// the robotic arm.  The rectangle is rotated a quarter turn when it is taller
// than wide, and angles beyond 90 degrees are reflected back so the result is
// collapsed into a bounded range.  The result is rounded to 1 decimal place.
func NormalizeAngle(width, height, angle float64) float64 {

	if width < height {
		angle += 90
	}

	if angle > 90 && angle <= 180 {
		angle = 180 - angle
	}

	return roundDecimals(angle, 1)
}

// roundDecimals rounds the exact binary value of v to the given number of
// decimal places, ties to even
func roundDecimals(v float64, places int) float64 {

	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', places, 64), 64)

	if err != nil {
		return v
	}

	return r
}
