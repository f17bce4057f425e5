package store

import (
	"strconv"
	"time"
)

// TimestampLayout is the ISO-8601 layout used for record timestamps
const TimestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// Record is the persisted state of a single object
type Record struct {
	// ObjectID is the tracker identity of the object
	ObjectID int `json:"object_id"`
	// CurrentPose is the current [X, Y, angle] of the object in meters and
	// degrees
	CurrentPose [3]float64 `json:"Current Pose"`
	// PredictedPose is the [X, Y] position expected at actuation time
	PredictedPose [2]float64 `json:"Predicted Pose"`
	// Color is the object's classified color
	Color string `json:"color"`
	// Timestamp is the instant the record was last written
	Timestamp string `json:"timestamp"`
}

// NewRecord builds the record for an object from its current X position and
// angle and its predicted position.  Positions and angle are rounded to 4
// decimal places.  As the belt only moves along X the predicted Y doubles as the
// current Y.
func NewRecord(id int, currentX, angle, predictedX, predictedY float64,
	color string, ts time.Time) Record {

	y := round4(predictedY)

	return Record{
		ObjectID:      id,
		CurrentPose:   [3]float64{round4(currentX), y, round4(angle)},
		PredictedPose: [2]float64{round4(predictedX), y},
		Color:         color,
		Timestamp:     ts.Format(TimestampLayout),
	}
}

// round4 rounds the exact binary value of v to 4 decimal places, ties to
// even
func round4(v float64) float64 {

	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 4, 64), 64)

	if err != nil {
		return v
	}

	return r
}

// upsertRecord replaces the record with the same object ID in recs or
// appends it when no such record exists
func upsertRecord(recs []Record, rec Record) []Record {

	for i := range recs {
		if recs[i].ObjectID == rec.ObjectID {
			recs[i] = rec
			return recs
		}
	}

	return append(recs, rec)
}
