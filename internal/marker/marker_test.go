package marker

import (
	"image/color"
	"testing"

	"github.com/fogleman/gg"
	"github.com/stretchr/testify/assert"

	haar "github.com/esimov/haar/core"
)

func TestValid(t *testing.T) {
	for _, m := range []string{Rect, Circle, Ellipse} {
		assert.True(t, Valid(m), m)
	}
	assert.False(t, Valid("triangle"))
}

func TestDraw(t *testing.T) {
	dets := []haar.Detection{{Rect: haar.Rect{X: 10, Y: 10, Width: 40, Height: 40}, Neighbors: 3}}

	for _, shape := range []string{Rect, Circle, Ellipse} {
		dc := gg.NewContext(64, 64)
		dc.SetColor(color.White)
		dc.Clear()

		Draw(dc, dets, shape, Red)

		img := dc.Image()
		// The middle of the detection stays untouched.
		r, g, b, _ := img.At(30, 30).RGBA()
		assert.Equal(t, [3]uint32{0xffff, 0xffff, 0xffff}, [3]uint32{r, g, b}, shape)

		// The left side of the marker crosses the middle row.
		var found bool
		for x := 5; x < 30; x++ {
			r, g, _, _ := img.At(x, 30).RGBA()
			if r > 0xc000 && g < 0x4000 {
				found = true
				break
			}
		}
		assert.True(t, found, shape)
	}
}
