package main

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fogleman/gg"
	"golang.org/x/term"

	haar "github.com/esimov/haar/core"
	"github.com/esimov/haar/internal/config"
	"github.com/esimov/haar/internal/marker"
	"github.com/esimov/haar/utils"
)

// objectDetector bundles the loaded cascade with the detection settings.
type objectDetector struct {
	cfg      *config.Config
	detector *haar.Detector
}

func newObjectDetector(cfg *config.Config) (*objectDetector, error) {
	path := cfg.GetCascade()
	contentType, err := utils.DetectContentType(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(contentType, "text/") {
		return nil, fmt.Errorf("the provided cascade classifier is not valid: %s", contentType)
	}

	cascade, err := haar.LoadCascade(path)
	if err != nil {
		return nil, err
	}
	det, err := haar.NewDetector(cascade)
	if err != nil {
		return nil, err
	}
	return &objectDetector{cfg: cfg, detector: det}, nil
}

// detect runs the cascade over the image. The image is optionally shrunk and
// equalized first; the detections are returned in source image coordinates.
func (od *objectDetector) detect(src image.Image) ([]haar.Detection, error) {
	ip := haar.NewImageParams(src)
	scale := od.cfg.GetImageScale()
	if scale > 1 {
		ip = ip.Downscale(scale)
	}
	if od.cfg.GetEqualize() {
		ip = ip.EqualizeHist()
	}

	cp := od.cfg.CascadeParams(ip)
	if scale > 1 {
		// The window size limits are given in source pixels.
		cp.MinSize = haar.Size{Width: cp.MinSize.Width / scale, Height: cp.MinSize.Height / scale}
		cp.MaxSize = haar.Size{
			Width:  utils.Max(cp.MaxSize.Width/scale, utils.Min(cp.MaxSize.Width, 1)),
			Height: utils.Max(cp.MaxSize.Height/scale, utils.Min(cp.MaxSize.Height, 1)),
		}
	}

	dets, err := od.detector.RunCascade(cp)
	if err != nil {
		return nil, err
	}
	if scale > 1 {
		for i := range dets {
			dets[i].Rect = dets[i].Rect.Scale(float64(scale))
		}
	}
	return dets, nil
}

// process runs the detection over the source image and writes it, with the
// detections marked, to dest unless dest is "empty". The destination is only
// created once the detection succeeded.
func (od *objectDetector) process(source, dest, shape string) ([]haar.Detection, error) {
	src, err := readImage(source)
	if err != nil {
		return nil, fmt.Errorf("reading the source image: %w", err)
	}
	dets, err := od.detect(src)
	if err != nil {
		return nil, err
	}
	if dest != "empty" {
		if err := writeImage(dest, drawDetections(src, dets, shape)); err != nil {
			return nil, fmt.Errorf("writing the output image: %w", err)
		}
	}
	return dets, nil
}

// readImage decodes the source image from a file or from stdin.
func readImage(source string) (*image.NRGBA, error) {
	if source == pipeName {
		if term.IsTerminal(int(os.Stdin.Fd())) {
			return nil, errors.New("`-` should be used with a pipe for stdin")
		}
		return haar.DecodeImage(os.Stdin)
	}
	f, err := os.Open(source)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return haar.DecodeImage(f)
}

// drawDetections returns a copy of src with the detections marked.
func drawDetections(src image.Image, dets []haar.Detection, shape string) image.Image {
	b := src.Bounds()
	dc := gg.NewContext(b.Dx(), b.Dy())
	dc.DrawImage(src, 0, 0)
	marker.Draw(dc, dets, shape, marker.Red)
	return dc.Image()
}

// writeImage encodes img to the destination file, or to stdout for a pipe.
func writeImage(dest string, img image.Image) error {
	if dest == pipeName {
		return encodeImage(os.Stdout, img)
	}
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("unable to open the output file: %w", err)
	}
	if err := encodeImage(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// encodeImage encodes img by the extension of the destination file, jpeg for pipes.
func encodeImage(dst io.Writer, img image.Image) error {
	f, ok := dst.(*os.File)
	if !ok || f == os.Stdout {
		return jpeg.Encode(dst, img, &jpeg.Options{Quality: 100})
	}
	switch filepath.Ext(f.Name()) {
	case "", ".jpg", ".jpeg":
		return jpeg.Encode(dst, img, &jpeg.Options{Quality: 100})
	case ".png":
		return png.Encode(dst, img)
	}
	return errors.New("unsupported image format")
}
