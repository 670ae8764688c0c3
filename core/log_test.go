package haar_test

import (
	"bytes"
	"image"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	haar "github.com/esimov/haar/core"
)

func TestHaar_SetLogger(t *testing.T) {
	var buf bytes.Buffer
	haar.SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { haar.SetLogger(nil) })

	d := detector(t, patternCascade(1))
	_, err := d.RunCascade(params(patternImage(100, 100, image.Pt(40, 40))))
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "scale scanned")
	assert.Contains(t, out, "cascade run")
	assert.Contains(t, out, "detections=1")
}
