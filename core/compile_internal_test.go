package haar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stumpCascade() *Cascade {
	f := Feature{Rects: []FeatureRect{
		{Rect: Rect{Width: 20, Height: 20}, Weight: -1},
		{Rect: Rect{X: 5, Y: 5, Width: 10, Height: 10}, Weight: 4},
	}}
	return &Cascade{
		Size: Size{Width: 20, Height: 20},
		Stages: []Stage{{
			Classifiers: []Classifier{NewStump(f, -0.5, 1, 0)},
			Threshold:   0.5,
			Parent:      -1,
			Next:        -1,
		}},
	}
}

func blank(w, h int) ImageParams {
	return ImageParams{Pixels: make([]uint8, w*h), Rows: h, Cols: w, Dim: w}
}

func TestCompile_FixedPointWeights(t *testing.T) {
	cases := []struct {
		scale         float64
		img           int
		window        Size
		whole, center int64
	}{
		{scale: 1, img: 40, window: Size{20, 20}, whole: -163, center: 655},
		{scale: 1.25, img: 50, window: Size{25, 25}, whole: -104, center: 387},
		{scale: 2, img: 80, window: Size{40, 40}, whole: -40, center: 163},
		{scale: 5, img: 200, window: Size{100, 100}, whole: -6, center: 26},
	}
	for _, tc := range cases {
		ii := NewIntegralImage(blank(tc.img, tc.img), false)
		hc, err := Compile(stumpCascade(), ii, tc.scale)
		require.NoError(t, err)

		assert.Equal(t, tc.window, hc.WindowSize())
		assert.Equal(t, tc.scale, hc.Scale())
		assert.Equal(t, 1, hc.StageCount())

		st := hc.stages[0]
		assert.InDelta(t, 0.4999, st.threshold, 1e-12)
		assert.True(t, st.twoRects)

		n := st.classifiers[0].nodes[0]
		assert.Equal(t, int64(-32768), n.threshold)
		assert.Equal(t, tc.whole, n.rects[0].weight)
		assert.Equal(t, tc.center, n.rects[1].weight)
		assert.False(t, n.threeRect)
	}
}

func TestCompile_Extent(t *testing.T) {
	ii := NewIntegralImage(blank(100, 100), false)
	hc, err := Compile(stumpCascade(), ii, 1)
	require.NoError(t, err)

	assert.True(t, hc.Fits(0, 0))
	assert.True(t, hc.Fits(80, 80))
	assert.False(t, hc.Fits(81, 0))
	assert.False(t, hc.Fits(0, 81))
	assert.False(t, hc.Fits(-1, 0))
}

func TestCompile_DropsEmptyThirdRect(t *testing.T) {
	c := stumpCascade()
	f := &c.Stages[0].Classifiers[0].Nodes[0].Feature
	f.Rects = append(f.Rects, FeatureRect{Rect: Rect{X: 1, Y: 1, Width: 2, Height: 2}})

	hc, err := Compile(c, NewIntegralImage(blank(40, 40), false), 1)
	require.NoError(t, err)
	assert.False(t, hc.stages[0].classifiers[0].nodes[0].threeRect)
	assert.True(t, hc.stages[0].twoRects)

	f.Rects[2].Weight = 2
	hc, err = Compile(c, NewIntegralImage(blank(40, 40), false), 1)
	require.NoError(t, err)
	assert.True(t, hc.stages[0].classifiers[0].nodes[0].threeRect)
	assert.False(t, hc.stages[0].twoRects)
}

func TestCompile_Errors(t *testing.T) {
	ii := NewIntegralImage(blank(40, 40), false)

	_, err := Compile(stumpCascade(), ii, 0)
	assert.ErrorIs(t, err, ErrInvalidScale)

	_, err = Compile(stumpCascade(), ii, 0.01)
	assert.ErrorIs(t, err, ErrInvalidScale)

	_, err = Compile(&Cascade{}, ii, 1)
	assert.ErrorIs(t, err, ErrInvalidCascade)

	c := stumpCascade()
	c.Stages[0].Classifiers[0].Nodes[0].Feature = Feature{
		Rects:  []FeatureRect{{Rect: Rect{X: 10, Y: 2, Width: 6, Height: 4}, Weight: -1}},
		Tilted: true,
	}
	_, err = Compile(c, ii, 1)
	assert.ErrorIs(t, err, ErrUnsupportedImage)

	_, err = Compile(c, NewIntegralImage(blank(40, 40), true), 1)
	assert.NoError(t, err)
}
