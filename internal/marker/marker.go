// Package marker draws the detections over the source image.
package marker

import (
	"image/color"
	"math"

	"github.com/fogleman/gg"

	haar "github.com/esimov/haar/core"
)

// Marker shapes.
const (
	Rect    = "rect"
	Circle  = "circle"
	Ellipse = "ellipse"
)

// Red is the default marker color.
var Red = color.RGBA{R: 255, A: 255}

// Valid reports whether m is a supported marker shape.
func Valid(m string) bool {
	switch m {
	case Rect, Circle, Ellipse:
		return true
	}
	return false
}

// Draw strokes a marker of the given shape around every detection.
func Draw(dc *gg.Context, dets []haar.Detection, shape string, c color.Color) {
	for _, d := range dets {
		x, y := float64(d.X), float64(d.Y)
		w, h := float64(d.Width), float64(d.Height)
		cx, cy := x+w/2, y+h/2

		switch shape {
		case Circle:
			dc.DrawArc(cx, cy, math.Min(w, h)/2, 0, 2*math.Pi)
		case Ellipse:
			dc.DrawEllipse(cx, cy, w/2, h/1.6)
		default:
			dc.DrawRectangle(x, y, w, h)
		}
		dc.SetLineWidth(2.0)
		dc.SetStrokeStyle(gg.NewSolidPattern(c))
		dc.Stroke()
	}
}
