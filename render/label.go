package render

import (
	"fmt"
	"github.com/swdee/go-beltvision/detect"
	"github.com/swdee/go-beltvision/tracker"
	"gocv.io/x/gocv"
	"image"
	"image/color"
)

// TrackLabel returns the label text drawn for a tracked identity
func TrackLabel(upd tracker.Update) string {
	return fmt.Sprintf("ID:%d (%s)", upd.ID, upd.Label)
}

// Tracks renders a dot at the center of each tracked identity with its ID and
// color as a label above it
func Tracks(img *gocv.Mat, updates []tracker.Update, font Font, radius int) {

	// keep a record of all labels for later rendering
	labels := make([]boxLabel, 0, len(updates))

	for _, upd := range updates {

		useClr := ClassColor(upd.Label)
		center := image.Pt(upd.X, upd.Y)

		gocv.Circle(img, center, radius, useClr, -1)

		text := TrackLabel(upd)
		textSize := gocv.GetTextSize(text, font.Face, font.Scale, font.Thickness)

		// calculate the alignment of text label
		var centerX int

		switch font.Alignment {
		case Left:
			centerX = upd.X + (textSize.X / 2) + font.LeftPad

		case Right:
			centerX = upd.X - (textSize.X / 2) - font.RightPad

		case Center:
			fallthrough
		default:
			centerX = upd.X
		}

		bottom := upd.Y - font.Offset

		labelPosition := image.Pt(centerX-textSize.X/2, bottom-font.BottomPad)

		bRect := image.Rect(centerX-textSize.X/2-font.LeftPad,
			bottom-textSize.Y-font.TopPad-font.BottomPad,
			centerX+textSize.X/2+font.RightPad, bottom)

		labels = append(labels, boxLabel{
			rect:    bRect,
			clr:     IdentityColor(upd.ID),
			text:    text,
			textPos: labelPosition,
		})
	}

	// draw labels last so they are the top most layer on the image
	for _, box := range labels {
		gocv.Rectangle(img, box.rect, box.clr, -1)

		gocv.PutTextWithParams(img, box.text, box.textPos,
			font.Face, font.Scale, font.Color, font.Thickness,
			font.LineType, false)
	}
}

// Boundaries renders the outline of each detected object in the color it
// was classified as
func Boundaries(img *gocv.Mat, obs []detect.Observation, lineThickness int) {

	for _, o := range obs {

		if len(o.Boundary) == 0 {
			continue
		}

		ptsVec := gocv.NewPointsVectorFromPoints([][]image.Point{o.Boundary})
		gocv.DrawContours(img, ptsVec, -1, ClassColor(o.Color.String()), lineThickness)
		ptsVec.Close()
	}
}

// Band renders the rows bounding the belt region of interest and the view
// window columns within which objects are persisted
func Band(img *gocv.Mat, y1, y2 int, lineThickness int) {

	w := img.Cols()

	gocv.Line(img, image.Pt(0, y1), image.Pt(w-1, y1), Green, lineThickness)
	gocv.Line(img, image.Pt(0, y2), image.Pt(w-1, y2), Green, lineThickness)

	// view window, left bound exclusive
	gocv.Line(img, image.Pt(w/4, y1), image.Pt(w/4, y2), Yellow, lineThickness)
	gocv.Line(img, image.Pt(3*w/4, y1), image.Pt(3*w/4, y2), Yellow, lineThickness)
}

// boxLabel is a text label and the filled box drawn behind it
type boxLabel struct {
	rect    image.Rectangle
	clr     color.RGBA
	text    string
	textPos image.Point
}
