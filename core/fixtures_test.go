package haar_test

import (
	"image"

	haar "github.com/esimov/haar/core"
)

// patternFeature responds to a dark square in the middle of a bright 20x20 window.
func patternFeature() haar.Feature {
	return haar.Feature{
		Rects: []haar.FeatureRect{
			{Rect: haar.Rect{X: 0, Y: 0, Width: 20, Height: 20}, Weight: -1},
			{Rect: haar.Rect{X: 5, Y: 5, Width: 10, Height: 10}, Weight: 4},
		},
	}
}

// patternStage accepts the windows whose feature response is below the node threshold.
func patternStage() haar.Stage {
	return haar.Stage{
		Classifiers: []haar.Classifier{haar.NewStump(patternFeature(), -0.5, 1, 0)},
		Threshold:   0.5,
		Parent:      -1,
		Next:        -1,
	}
}

// constStage returns a stage which always passes or always fails.
func constStage(pass bool) haar.Stage {
	v := 0.0
	if pass {
		v = 1
	}
	return haar.Stage{
		Classifiers: []haar.Classifier{haar.NewStump(patternFeature(), 0, v, v)},
		Threshold:   0.5,
		Parent:      -1,
		Next:        -1,
	}
}

// patternCascade repeats the pattern stage n times.
func patternCascade(n int) *haar.Cascade {
	c := &haar.Cascade{Size: haar.Size{Width: 20, Height: 20}}
	for i := 0; i < n; i++ {
		c.Stages = append(c.Stages, patternStage())
	}
	return c
}

// patternImage is a white image with a black 10x10 square in the middle
// of the 20x20 window anchored at every point of at.
func patternImage(w, h int, at ...image.Point) haar.ImageParams {
	pix := make([]uint8, w*h)
	for i := range pix {
		pix[i] = 255
	}
	for _, p := range at {
		for y := p.Y + 5; y < p.Y+15; y++ {
			for x := p.X + 5; x < p.X+15; x++ {
				pix[y*w+x] = 0
			}
		}
	}
	return haar.ImageParams{Pixels: pix, Rows: h, Cols: w, Dim: w}
}

// scaledPatternImage draws the pattern enlarged by size over a light checkerboard,
// so that no window of the background is perfectly flat.
func scaledPatternImage(w, h, size int, at ...image.Point) haar.ImageParams {
	pix := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			pix[y*w+x] = 255
			if (x+y)%2 == 1 {
				pix[y*w+x] = 245
			}
		}
	}
	for _, p := range at {
		for y := p.Y + 5*size; y < p.Y+15*size; y++ {
			for x := p.X + 5*size; x < p.X+15*size; x++ {
				pix[y*w+x] = 0
			}
		}
	}
	return haar.ImageParams{Pixels: pix, Rows: h, Cols: w, Dim: w}
}

func blankImage(w, h int, v uint8) haar.ImageParams {
	pix := make([]uint8, w*h)
	for i := range pix {
		pix[i] = v
	}
	return haar.ImageParams{Pixels: pix, Rows: h, Cols: w, Dim: w}
}

// params returns the scan settings used by the tests. The scale factor is so
// large that a 100x100 image is scanned at the original window size only.
func params(img haar.ImageParams) haar.CascadeParams {
	return haar.CascadeParams{
		ScaleFactor:  5,
		MinNeighbors: 3,
		Workers:      4,
		ImageParams:  img,
	}
}

func rect(x, y, w, h int) haar.Rect {
	return haar.Rect{X: x, Y: y, Width: w, Height: h}
}
