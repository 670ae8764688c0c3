package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os/exec"
	"time"

	"github.com/fogleman/gg"
	"github.com/google/uuid"

	haar "github.com/esimov/haar/core"
	"github.com/esimov/haar/internal/config"
	"github.com/esimov/haar/internal/log"
	"github.com/esimov/haar/internal/marker"
)

// boundary separates the frames of both the capture and the served stream.
const boundary = "informs"

type server struct {
	detector *haar.Detector
	cfg      *config.Config
	capture  []string
}

// cam streams the frames of the capture command with the tracked object marked.
func (s *server) cam(w http.ResponseWriter, r *http.Request) {
	if len(s.capture) == 0 {
		http.Error(w, "no capture command", http.StatusInternalServerError)
		return
	}
	id := uuid.NewString()
	l := log.With("session", id, "remote", r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	cmd := exec.CommandContext(ctx, s.capture[0], s.capture[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		l.Error("getting the stdout pipe", "err", err)
		http.Error(w, "capture failed", http.StatusInternalServerError)
		return
	}
	if err := cmd.Start(); err != nil {
		l.Error("starting the capture", "cmd", s.capture, "err", err)
		http.Error(w, "capture failed", http.StatusInternalServerError)
		return
	}
	defer func() {
		// A failed stream leaves the capture blocked on a full pipe.
		cancel()
		_ = cmd.Wait()
	}()

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+boundary)
	l.Info("stream started")
	n, err := s.stream(ctx, newTracker(s.detector, s.cfg, l), stdout, w)
	if err != nil && !errors.Is(err, context.Canceled) {
		l.Error("stream failed", "frames", n, "err", err)
		return
	}
	l.Info("stream finished", "frames", n)
}

// stream reads the multipart frames from src, runs the tracker over them and
// writes the annotated frames to dst as JPEG parts. It returns the number of
// frames written.
func (s *server) stream(ctx context.Context, t *tracker, src io.Reader, dst io.Writer) (int, error) {
	mr := multipart.NewReader(src, boundary)
	mw := multipart.NewWriter(dst)
	if err := mw.SetBoundary(boundary); err != nil {
		return 0, err
	}
	flusher, _ := dst.(http.Flusher)

	var frames int
	for {
		if err := ctx.Err(); err != nil {
			return frames, err
		}
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return frames, mw.Close()
		}
		if err != nil {
			return frames, fmt.Errorf("reading next part: %w", err)
		}
		img, err := haar.DecodeImage(p)
		if err != nil {
			t.log.Warn("skipping frame", "err", err)
			continue
		}

		out, err := t.annotate(img)
		if err != nil {
			return frames, err
		}
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: 90}); err != nil {
			return frames, err
		}

		h := make(textproto.MIMEHeader)
		h.Set("Content-Type", "image/jpeg")
		h.Set("Content-Length", fmt.Sprint(buf.Len()))
		pw, err := mw.CreatePart(h)
		if err != nil {
			return frames, err
		}
		if _, err := pw.Write(buf.Bytes()); err != nil {
			return frames, err
		}
		if flusher != nil {
			flusher.Flush()
		}
		frames++
	}
}

// tracker follows a single object over the frames of one stream.
type tracker struct {
	detector *haar.Detector
	cfg      *config.Config
	session  *haar.Session
	log      *slog.Logger
}

func newTracker(d *haar.Detector, cfg *config.Config, l *slog.Logger) *tracker {
	return &tracker{
		detector: d,
		cfg:      cfg,
		session:  haar.NewSession(cfg.SessionConfig()),
		log:      l,
	}
}

// track runs the detection over a frame. The frame is shrunk and equalized
// as configured; the detection is returned in frame coordinates.
func (t *tracker) track(img image.Image) (*haar.Detection, error) {
	start := time.Now()

	ip := haar.NewImageParams(img)
	scale := t.cfg.GetImageScale()
	if scale > 1 {
		ip = ip.Downscale(scale)
	}
	if t.cfg.GetEqualize() {
		ip = ip.EqualizeHist()
	}

	det, err := t.detector.DetectSingle(t.session, t.cfg.CascadeParams(ip))
	if err != nil {
		return nil, err
	}
	if det != nil && scale > 1 {
		det.Rect = det.Rect.Scale(float64(scale))
	}
	t.log.Debug("frame processed",
		"found", det != nil,
		"locked", t.session.Locked(),
		"crop", t.session.Crop(),
		"elapsed", time.Since(start),
	)
	return det, nil
}

// annotate tracks the object and draws its marker over a copy of the frame.
func (t *tracker) annotate(img image.Image) (image.Image, error) {
	det, err := t.track(img)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	dc := gg.NewContext(b.Dx(), b.Dy())
	dc.DrawImage(img, 0, 0)
	if det != nil {
		marker.Draw(dc, []haar.Detection{*det}, marker.Rect, marker.Red)
	}
	return dc.Image(), nil
}
