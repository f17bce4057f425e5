package tracker

// Object represents a single observation handed to the tracker for one frame
type Object struct {
	// X is the pixel x coordinate of the object's center
	X int
	// Y is the pixel y coordinate of the object's center
	Y int
	// Angle is the object's orientation in degrees
	Angle float64
	// Label is the object's classification, eg: its color.  The latest label
	// observed overwrites any earlier label of the identity
	Label string
}

// NewObject is a constructor function for the Object struct
func NewObject(x, y int, angle float64, label string) Object {
	return Object{
		X:     x,
		Y:     y,
		Angle: angle,
		Label: label,
	}
}
