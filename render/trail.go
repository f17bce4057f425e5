package render

import (
	"github.com/swdee/go-beltvision/tracker"
	"gocv.io/x/gocv"
	"image"
	"image/color"
)

// TrailStyle defines the parameters used for rendering the trail style
type TrailStyle struct {
	// LineSame defines if the color of the trail line should be the
	// identity's palette color.  If set to false then use the color
	// specified at LineColor
	LineSame      bool
	LineColor     color.RGBA
	LineThickness int
	// CircleSame defines if the color of the latest sample circle should be
	// the identity's palette color.  If set to false then use the color
	// specified at CircleColor
	CircleSame   bool
	CircleColor  color.RGBA
	CircleRadius int
}

// DefaultTrailStyle returns default trail style settings
func DefaultTrailStyle() TrailStyle {
	return TrailStyle{
		LineSame:      false,
		LineColor:     Yellow,
		LineThickness: 1,
		CircleSame:    true,
		CircleColor:   Pink,
		CircleRadius:  3,
	}
}

// Trail draws the trajectory of each identity given on the source image
func Trail(img *gocv.Mat, ids []int, trail *tracker.Trail, style TrailStyle) {

	for _, id := range ids {

		objClr := IdentityColor(id)

		// determine style colors to use
		lineClr := objClr
		circleClr := objClr

		if !style.LineSame {
			lineClr = style.LineColor
		}

		if !style.CircleSame {
			circleClr = style.CircleColor
		}

		samples := trail.GetSamples(id)

		if len(samples) < 2 {
			continue
		}

		for i := 1; i < len(samples); i++ {
			gocv.Line(img,
				image.Pt(samples[i-1].X, samples[i-1].Y),
				image.Pt(samples[i].X, samples[i].Y),
				lineClr, style.LineThickness,
			)
		}

		// mark the latest sample
		last := samples[len(samples)-1]
		gocv.Circle(img, image.Pt(last.X, last.Y), style.CircleRadius, circleClr, -1)
	}
}
