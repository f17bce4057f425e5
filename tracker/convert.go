package tracker

import "github.com/swdee/go-beltvision/detect"

// ObservationsToObjects takes the detector observations of a frame and
// converts them into tracker objects, preserving detection order
func ObservationsToObjects(obs []detect.Observation) []Object {

	objs := make([]Object, 0, len(obs))

	for _, o := range obs {
		objs = append(objs, NewObject(o.Center.X, o.Center.Y, o.Angle, o.Color.String()))
	}

	return objs
}
