package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	haar "github.com/esimov/haar/core"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ModeAll, cfg.GetMode())
	assert.Equal(t, 1.1, cfg.GetScaleFactor())
	assert.Equal(t, haar.DefaultMinSize, cfg.GetMinSize())
	assert.Equal(t, 0, cfg.GetMaxSize())
	assert.Equal(t, 3, cfg.GetMinNeighbors())
	assert.Equal(t, haar.DefaultSplitStage, cfg.GetSplitStage())
	assert.Equal(t, 1, cfg.GetImageScale())
	assert.False(t, cfg.GetEqualize())
	assert.Equal(t, "info", cfg.GetLogLevel())
	assert.Equal(t, haar.Flags(0), cfg.Flags())
	assert.Equal(t, haar.DefaultSessionConfig(), cfg.SessionConfig())
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, "haar.json", `{
  "cascade": "cascade/haarcascade_frontalface_alt.xml",
  "mode": "single",
  "scale_factor": 1.2,
  "min_size": 30,
  "max_size": 400,
  "rough_search": true,
  "workers": 2,
  "crop_pad": 20
}`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "cascade/haarcascade_frontalface_alt.xml", cfg.GetCascade())
	assert.Equal(t, haar.FindBiggestObject|haar.DoRoughSearch, cfg.Flags())

	img := haar.ImageParams{Pixels: make([]uint8, 4), Rows: 2, Cols: 2, Dim: 2}
	want := haar.CascadeParams{
		MinSize:      haar.Size{Width: 30, Height: 30},
		MaxSize:      haar.Size{Width: 400, Height: 400},
		ScaleFactor:  1.2,
		MinNeighbors: 3,
		Flags:        haar.FindBiggestObject | haar.DoRoughSearch,
		SplitStage:   haar.DefaultSplitStage,
		Workers:      2,
		ImageParams:  img,
	}
	if diff := cmp.Diff(want, cfg.CascadeParams(img)); diff != "" {
		t.Fatalf("unexpected params (-want +got):\n%s", diff)
	}

	assert.Equal(t, haar.SessionConfig{
		MinSize:     haar.Size{Width: 30, Height: 30},
		FacePad:     haar.DefaultFacePad,
		CropPad:     20,
		RoughSearch: true,
	}, cfg.SessionConfig())
}

func TestLoadErrors(t *testing.T) {
	cases := map[string]struct {
		name, content, msg string
	}{
		"extension":    {"haar.yaml", `{}`, ".json extension"},
		"syntax":       {"haar.json", `{"mode": }`, "parse"},
		"mode":         {"haar.json", `{"mode": "many"}`, "mode must be"},
		"scale factor": {"haar.json", `{"scale_factor": 1}`, "scale_factor"},
		"negative":     {"haar.json", `{"workers": -1}`, "workers"},
		"image scale":  {"haar.json", `{"image_scale": 0}`, "image_scale"},
		"size range":   {"haar.json", `{"min_size": 50, "max_size": 40}`, "max_size"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.name, tc.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.msg)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	big := writeConfig(t, "big.json", `{"cascade": "`+strings.Repeat("x", maxFileSize)+`"}`)
	_, err = Load(big)
	assert.ErrorContains(t, err, "too large")
}

func TestTrackingMerge(t *testing.T) {
	cfg := Tracking()
	assert.Equal(t, ModeSingle, cfg.GetMode())
	assert.Equal(t, haar.DefaultScaleFactor, cfg.GetScaleFactor())
	assert.Equal(t, haar.DefaultImageScale, cfg.GetImageScale())
	assert.True(t, cfg.GetEqualize())

	cfg.Merge(&Config{Equalize: ptrBool(false), MinNeighbors: ptrInt(4)})
	assert.False(t, cfg.GetEqualize())
	assert.Equal(t, 4, cfg.GetMinNeighbors())
	assert.Equal(t, haar.DefaultScaleFactor, cfg.GetScaleFactor())

	cfg.Merge(nil)
	assert.Equal(t, 4, cfg.GetMinNeighbors())
}

func TestMergeEveryField(t *testing.T) {
	o := &Config{
		Cascade:      ptrString("face.xml"),
		Mode:         ptrString(ModeAll),
		ScaleFactor:  ptrFloat64(1.2),
		MinSize:      ptrInt(30),
		MaxSize:      ptrInt(300),
		MinNeighbors: ptrInt(5),
		RoughSearch:  ptrBool(true),
		SplitStage:   ptrInt(3),
		Workers:      ptrInt(2),
		ImageScale:   ptrInt(1),
		Equalize:     ptrBool(false),
		FacePad:      ptrInt(6),
		CropPad:      ptrInt(20),
		LogLevel:     ptrString("debug"),
	}
	cfg := Tracking()
	cfg.Merge(o)
	if diff := cmp.Diff(o, cfg); diff != "" {
		t.Fatalf("unexpected configuration (-want +got):\n%s", diff)
	}

	// The merged values are copies.
	*o.MinNeighbors = 9
	assert.Equal(t, 5, cfg.GetMinNeighbors())
}
