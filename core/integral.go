package haar

// IntegralImage holds the summed-area tables of a grayscale image.
// Every table has (Height+1) rows of Stride = Width+1 cells with a zero
// first row and column, so the sum of the pixels in [x0,x1)×[y0,y1) is
// Sum[y1][x1] - Sum[y1][x0] - Sum[y0][x1] + Sum[y0][x0].
//
// Sum is kept on 32 bits and may wrap around for very large images. Rectangle
// sums are computed with the same wrapping arithmetic, so they stay exact as long
// as the rectangle itself holds less than 2^31 intensity units.
type IntegralImage struct {
	Sum    []int32
	SqSum  []int64
	Tilted []int32
	Width  int
	Height int
	Stride int
}

// NewIntegralImage computes the sum and squared sum tables of img,
// and the 45° rotated sum table when tilted is set.
func NewIntegralImage(img ImageParams, tilted bool) *IntegralImage {
	w, h := img.Cols, img.Rows
	stride := w + 1
	ii := &IntegralImage{
		Sum:    make([]int32, stride*(h+1)),
		SqSum:  make([]int64, stride*(h+1)),
		Width:  w,
		Height: h,
		Stride: stride,
	}

	for y := 0; y < h; y++ {
		var s int32
		var sq int64
		row := img.Pixels[y*img.Dim : y*img.Dim+w]
		prev, cur := y*stride, (y+1)*stride
		for x, v := range row {
			s += int32(v)
			sq += int64(v) * int64(v)
			ii.Sum[cur+x+1] = ii.Sum[prev+x+1] + s
			ii.SqSum[cur+x+1] = ii.SqSum[prev+x+1] + sq
		}
	}
	if tilted {
		ii.Tilted = tiltedSum(img)
	}
	return ii
}

// tiltedSum builds the rotated summed-area table. The cell (X, Y) holds the
// sum of the pixels (px, py) above row Y inside the cone px-py >= X-Y and
// px+py <= X+Y-1. Going one row down, the cone grows by the two diagonals
// ending right above the cell: the up-left one through (X-1, Y-1) and the
// up-right one through (X, Y-1).
func tiltedSum(img ImageParams) []int32 {
	w, h := img.Cols, img.Rows
	stride := w + 1
	t := make([]int32, stride*(h+1))

	// Running diagonal sums of the previous and the current pixel row.
	upLeft, upRight := make([]int32, w), make([]int32, w)
	curLeft, curRight := make([]int32, w), make([]int32, w)

	for y := 0; y < h; y++ {
		row := img.Pixels[y*img.Dim : y*img.Dim+w]
		for x, v := range row {
			curLeft[x], curRight[x] = int32(v), int32(v)
			if y > 0 {
				if x > 0 {
					curLeft[x] += upLeft[x-1]
				}
				if x+1 < w {
					curRight[x] += upRight[x+1]
				}
			}
		}

		prev, cur := y*stride, (y+1)*stride
		for x := 0; x <= w; x++ {
			s := t[prev+x]
			if x > 0 {
				s += curLeft[x-1]
			}
			if x < w {
				s += curRight[x]
			}
			t[cur+x] = s
		}
		upLeft, curLeft = curLeft, upLeft
		upRight, curRight = curRight, upRight
	}
	return t
}

// RectSum returns the pixel sum of r using the standard table.
func (ii *IntegralImage) RectSum(r Rect) int32 {
	p0 := r.Y*ii.Stride + r.X
	p2 := (r.Y+r.Height)*ii.Stride + r.X
	return ii.Sum[p0] - ii.Sum[p0+r.Width] - ii.Sum[p2] + ii.Sum[p2+r.Width]
}

// TiltedRectSum returns the pixel sum of the 45° rotated rectangle r.
// The rectangle starts at (r.X, r.Y) and grows r.Width to the lower right
// and r.Height to the lower left.
func (ii *IntegralImage) TiltedRectSum(r Rect) int32 {
	at := func(x, y int) int32 { return ii.Tilted[y*ii.Stride+x] }
	return at(r.X, r.Y) -
		at(r.X-r.Height, r.Y+r.Height) -
		at(r.X+r.Width, r.Y+r.Width) +
		at(r.X+r.Width-r.Height, r.Y+r.Width+r.Height)
}
