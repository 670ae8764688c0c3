package haar_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	haar "github.com/esimov/haar/core"
)

func randomImage(w, h int, seed int64) haar.ImageParams {
	rnd := rand.New(rand.NewSource(seed))
	pix := make([]uint8, w*h)
	for i := range pix {
		pix[i] = uint8(rnd.Intn(256))
	}
	return haar.ImageParams{Pixels: pix, Rows: h, Cols: w, Dim: w}
}

func TestHaar_IntegralImageRectSum(t *testing.T) {
	img := randomImage(13, 9, 1)
	ii := haar.NewIntegralImage(img, false)
	require.Nil(t, ii.Tilted)
	require.Equal(t, 14, ii.Stride)

	for y := 0; y < img.Rows; y++ {
		for x := 0; x < img.Cols; x++ {
			for h := 1; y+h <= img.Rows; h++ {
				for w := 1; x+w <= img.Cols; w++ {
					var want int32
					for py := y; py < y+h; py++ {
						for px := x; px < x+w; px++ {
							want += int32(img.Pixels[py*img.Dim+px])
						}
					}
					if got := ii.RectSum(rect(x, y, w, h)); got != want {
						t.Fatalf("rect %v: got %d, want %d", rect(x, y, w, h), got, want)
					}
				}
			}
		}
	}

	var sq int64
	for _, v := range img.Pixels {
		sq += int64(v) * int64(v)
	}
	assert.Equal(t, sq, ii.SqSum[len(ii.SqSum)-1])
}

func TestHaar_IntegralImageWithStride(t *testing.T) {
	full := randomImage(20, 20, 2)
	view := full.Crop(rect(3, 4, 10, 8))

	ii := haar.NewIntegralImage(view, true)
	var want int32
	for y := 4; y < 12; y++ {
		for x := 3; x < 13; x++ {
			want += int32(full.Pixels[y*full.Dim+x])
		}
	}
	assert.Equal(t, want, ii.RectSum(rect(0, 0, 10, 8)))
}

func TestHaar_TiltedIntegralImage(t *testing.T) {
	img := randomImage(11, 10, 3)
	ii := haar.NewIntegralImage(img, true)
	require.Len(t, ii.Tilted, len(ii.Sum))

	pixel := func(x, y int) int32 { return int32(img.Pixels[y*img.Dim+x]) }

	// Every cell holds the pixels of the cone opening upwards from it.
	for Y := 0; Y <= img.Rows; Y++ {
		for X := 0; X <= img.Cols; X++ {
			var want int32
			for py := 0; py < Y; py++ {
				for px := 0; px < img.Cols; px++ {
					if px-py >= X-Y && px+py <= X+Y-1 {
						want += pixel(px, py)
					}
				}
			}
			if got := ii.Tilted[Y*ii.Stride+X]; got != want {
				t.Fatalf("cell (%d,%d): got %d, want %d", X, Y, got, want)
			}
		}
	}

	// A rotated rectangle covers the pixels between its four diagonals.
	for _, r := range []haar.Rect{rect(3, 0, 3, 2), rect(5, 1, 2, 4), rect(4, 2, 1, 1), rect(6, 0, 4, 3)} {
		var want int32
		for py := 0; py < img.Rows; py++ {
			for px := 0; px < img.Cols; px++ {
				a, b := px-py, px+py
				if a >= r.X-r.Y-2*r.Height && a <= r.X-r.Y-1 &&
					b >= r.X+r.Y && b <= r.X+r.Y+2*r.Width-1 {
					want += pixel(px, py)
				}
			}
		}
		assert.Equal(t, want, ii.TiltedRectSum(r), "rect %v", r)
	}
}
