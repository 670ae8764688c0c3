package haar_test

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	haar "github.com/esimov/haar/core"
)

func trackParams(img haar.ImageParams) haar.CascadeParams {
	cp := params(img)
	cp.MinNeighbors = haar.DefaultMinNeighbors
	return cp
}

func TestHaar_SessionShouldTrackTheObject(t *testing.T) {
	d := detector(t, patternCascade(1))
	s := haar.NewSession(haar.DefaultSessionConfig())
	require.False(t, s.Locked())
	assert.Equal(t, haar.Size{Width: 20, Height: 20}, s.MinSize())

	det, err := d.DetectSingle(s, trackParams(patternImage(200, 200, image.Pt(80, 80))))
	require.NoError(t, err)
	require.NotNil(t, det)
	assert.Equal(t, rect(80, 80, 20, 20), det.Rect)
	assert.Equal(t, 7, det.Neighbors)

	assert.True(t, s.Locked())
	assert.Equal(t, rect(40, 40, 100, 100), s.Crop())
	assert.Equal(t, haar.Size{Width: 20, Height: 20}, s.MinSize())

	// The object moved: the next scan only covers the crop and reports image coordinates.
	det, err = d.DetectSingle(s, trackParams(patternImage(200, 200, image.Pt(88, 84))))
	require.NoError(t, err)
	require.NotNil(t, det)
	assert.Equal(t, rect(88, 84, 20, 20), det.Rect)
	assert.Equal(t, rect(48, 44, 100, 100), s.Crop())

	// An object outside of the crop is missed and the session goes back to idle.
	det, err = d.DetectSingle(s, trackParams(patternImage(200, 200, image.Pt(4, 160))))
	require.NoError(t, err)
	assert.Nil(t, det)
	assert.False(t, s.Locked())
	assert.True(t, s.Crop().Empty())

	// Idle again, the whole frame is scanned.
	det, err = d.DetectSingle(s, trackParams(patternImage(200, 200, image.Pt(4, 160))))
	require.NoError(t, err)
	require.NotNil(t, det)
	assert.Equal(t, rect(4, 160, 20, 20), det.Rect)
}

func TestHaar_SessionCropShouldStayInsideTheFrame(t *testing.T) {
	d := detector(t, patternCascade(1))
	s := haar.NewSession(haar.DefaultSessionConfig())

	det, err := d.DetectSingle(s, trackParams(patternImage(200, 200, image.Pt(4, 4))))
	require.NoError(t, err)
	require.NotNil(t, det)
	assert.Equal(t, rect(4, 4, 20, 20), det.Rect)
	assert.Equal(t, rect(0, 0, 64, 64), s.Crop())
	assert.True(t, rect(0, 0, 200, 200).Contains(s.Crop()))
}

func TestHaar_SessionShouldResetOnFrameSizeChange(t *testing.T) {
	d := detector(t, patternCascade(1))
	s := haar.NewSession(haar.DefaultSessionConfig())

	_, err := d.DetectSingle(s, trackParams(patternImage(200, 200, image.Pt(80, 80))))
	require.NoError(t, err)
	require.Equal(t, rect(40, 40, 100, 100), s.Crop())

	// The crop does not fit the smaller frame, so the whole frame is scanned.
	det, err := d.DetectSingle(s, trackParams(patternImage(120, 120, image.Pt(40, 40))))
	require.NoError(t, err)
	require.NotNil(t, det)
	assert.Equal(t, rect(40, 40, 20, 20), det.Rect)
	assert.Equal(t, rect(0, 0, 100, 100), s.Crop())
}

func TestHaar_SessionMinSize(t *testing.T) {
	d := detector(t, patternCascade(1))
	cfg := haar.DefaultSessionConfig()
	cfg.MinSize = haar.Size{Width: 24, Height: 24}
	s := haar.NewSession(cfg)

	// The 20x20 pattern is below the minimum window size.
	det, err := d.DetectSingle(s, trackParams(patternImage(200, 200, image.Pt(80, 80))))
	require.NoError(t, err)
	assert.Nil(t, det)
	assert.False(t, s.Locked())
	assert.Equal(t, cfg.MinSize, s.MinSize())
}

func TestHaar_SessionRoughSearch(t *testing.T) {
	d := detector(t, patternCascade(1))
	cfg := haar.DefaultSessionConfig()
	cfg.RoughSearch = true
	s := haar.NewSession(cfg)

	det, err := d.DetectSingle(s, trackParams(patternImage(200, 200, image.Pt(80, 80))))
	require.NoError(t, err)
	require.NotNil(t, det)
	assert.Equal(t, rect(70, 70, 40, 40), det.Rect)
	assert.Equal(t, rect(30, 30, 120, 120), s.Crop())
	assert.Equal(t, haar.Size{Width: 30, Height: 30}, s.MinSize())

	s.Reset()
	assert.False(t, s.Locked())
	assert.Equal(t, cfg.MinSize, s.MinSize())
}

func TestHaar_SessionErrors(t *testing.T) {
	d := detector(t, patternCascade(1))

	_, err := d.DetectSingle(nil, trackParams(patternImage(100, 100)))
	assert.ErrorIs(t, err, haar.ErrNilSession)

	s := haar.NewSession(haar.DefaultSessionConfig())
	cp := trackParams(patternImage(100, 100))
	cp.ScaleFactor = 0.5
	_, err = d.DetectSingle(s, cp)
	assert.ErrorIs(t, err, haar.ErrInvalidScaleFactor)
	assert.False(t, s.Locked())
}
