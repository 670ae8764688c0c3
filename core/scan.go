package haar

import (
	"fmt"
	"math"
	"runtime"
	"time"

	"github.com/esimov/haar/utils"
	"golang.org/x/sync/errgroup"
)

// Flags select the scanning policy.
type Flags uint8

const (
	// FindBiggestObject scans from the largest window down and reports the biggest object only.
	// Once a component is found the remaining scales are restricted to its surroundings.
	FindBiggestObject Flags = 1 << iota
	// DoRoughSearch stops at the first scale yielding a component. Requires FindBiggestObject.
	DoRoughSearch
	// AverageRoughClusters reduces the components of a rough search to their average
	// rectangle instead of their enclosing box.
	AverageRoughClusters
)

const (
	// DefaultSplitStage is the number of stages evaluated by the first, coarse pass.
	DefaultSplitStage = 2
	// scanMargin is kept free around the largest scanned window.
	scanMargin = 10
)

// CascadeParams contains the basic parameters to run the detector over the defined image.
// MinSize: the minimum size of the detection window.
// MaxSize: the maximum size of the detection window, zero values mean no limit.
// ScaleFactor: the ratio between two consecutive window sizes, must be greater than 1.
// MinNeighbors: the minimum number of raw hits a detection needs, 0 disables the merging.
// Flags: the scanning policy.
// SplitStage: the stages run by the coarse pass, 0 means DefaultSplitStage.
// Workers: the number of concurrent workers, 0 means the number of CPUs.
type CascadeParams struct {
	MinSize      Size
	MaxSize      Size
	ScaleFactor  float64
	MinNeighbors int
	Flags        Flags
	SplitStage   int
	Workers      int
	ImageParams
}

func (cp CascadeParams) validate() error {
	if math.IsNaN(cp.ScaleFactor) || cp.ScaleFactor <= 1 || math.IsInf(cp.ScaleFactor, 1) {
		return fmt.Errorf("%w: %v", ErrInvalidScaleFactor, cp.ScaleFactor)
	}
	if cp.MinNeighbors < 0 {
		return fmt.Errorf("%w: min neighbors %d", ErrInvalidParams, cp.MinNeighbors)
	}
	if cp.MinSize.Width < 0 || cp.MinSize.Height < 0 || cp.MaxSize.Width < 0 || cp.MaxSize.Height < 0 {
		return fmt.Errorf("%w: window size limits %v, %v", ErrInvalidParams, cp.MinSize, cp.MaxSize)
	}
	if cp.SplitStage < 0 || cp.Workers < 0 {
		return fmt.Errorf("%w: split stage %d, workers %d", ErrInvalidParams, cp.SplitStage, cp.Workers)
	}
	return cp.ImageParams.Validate()
}

// Detector runs a Haar cascade over images. It holds no per image state and is
// safe for concurrent use.
type Detector struct {
	cascade *Cascade
}

// NewDetector validates the cascade and returns a detector for it.
func NewDetector(c *Cascade) (*Detector, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &Detector{cascade: c}, nil
}

// DetectAll returns every object found in the image, ignoring the flags of cp.
func (d *Detector) DetectAll(cp CascadeParams) ([]Detection, error) {
	cp.Flags = 0
	return d.RunCascade(cp)
}

// RunCascade scans the image over a geometric progression of window sizes and
// merges the windows accepted by the cascade into detections.
func (d *Detector) RunCascade(cp CascadeParams) ([]Detection, error) {
	if err := cp.validate(); err != nil {
		return nil, err
	}
	start := time.Now()

	s := newScanner(d.cascade, cp)
	if err := s.scan(); err != nil {
		return nil, err
	}
	dets := s.merge()

	log().Debug("cascade run",
		"width", cp.Cols,
		"height", cp.Rows,
		"hits", len(s.hits),
		"detections", len(dets),
		"elapsed", time.Since(start),
	)
	return dets, nil
}

// scanner holds the state of a single RunCascade call.
type scanner struct {
	cascade *Cascade
	params  CascadeParams
	ii      *IntegralImage
	mask    []uint8
	workers int
	split   int
	npass   int
	minSize Size

	hits      []Rect
	big       []Detection
	result    Detection
	hasResult bool
	roi       Rect
	scanROI   bool
	found     bool
}

func newScanner(c *Cascade, cp CascadeParams) *scanner {
	s := &scanner{
		cascade: c,
		params:  cp,
		workers: cp.Workers,
		split:   cp.SplitStage,
		npass:   2,
		minSize: cp.MinSize,
	}
	if s.workers == 0 {
		s.workers = runtime.NumCPU()
	}
	if s.split == 0 {
		s.split = DefaultSplitStage
	}
	if s.split >= len(c.Stages) || c.IsTree() {
		s.split = len(c.Stages)
		s.npass = 1
	}
	return s
}

func (s *scanner) biggest() bool { return s.params.Flags&FindBiggestObject != 0 }
func (s *scanner) rough() bool   { return s.biggest() && s.params.Flags&DoRoughSearch != 0 }

// scan runs the cascade over every scale.
func (s *scanner) scan() error {
	cp := s.params
	orig := s.cascade.Size
	s.ii = NewIntegralImage(cp.ImageParams, s.cascade.HasTilted())
	s.mask = make([]uint8, cp.Rows*cp.Cols)

	scaleFactor := cp.ScaleFactor
	factor, nFactors := 1.0, 0
	for factor*float64(orig.Width) < float64(cp.Cols-scanMargin) &&
		factor*float64(orig.Height) < float64(cp.Rows-scanMargin) {
		nFactors++
		factor *= scaleFactor
	}
	if s.biggest() {
		// Start from the largest window and go down.
		scaleFactor = 1 / scaleFactor
		factor *= scaleFactor
	} else {
		factor = 1
	}

	for ; nFactors > 0 && !s.found; nFactors, factor = nFactors-1, factor*scaleFactor {
		win := Size{
			Width:  iround(float64(orig.Width) * factor),
			Height: iround(float64(orig.Height) * factor),
		}
		if win.Width < s.minSize.Width || win.Height < s.minSize.Height {
			if s.biggest() {
				break
			}
			continue
		}
		if (cp.MaxSize.Width > 0 && win.Width > cp.MaxSize.Width) ||
			(cp.MaxSize.Height > 0 && win.Height > cp.MaxSize.Height) {
			continue
		}
		hits, err := s.scanScale(factor, win)
		if err != nil {
			return err
		}
		s.hits = append(s.hits, hits...)

		log().Debug("scale scanned",
			"factor", factor,
			"window", win,
			"hits", len(hits),
			"roi", s.scanROI,
		)
		if s.biggest() {
			s.narrow()
		}
	}
	return nil
}

// scanScale evaluates the cascade compiled for factor over the grid of candidate positions.
func (s *scanner) scanScale(factor float64, win Size) ([]Rect, error) {
	hc, err := compile(s.cascade, s.ii, factor)
	if err != nil {
		return nil, err
	}
	clear(s.mask)

	cols, rows := s.params.Cols, s.params.Rows
	ystep := utils.Max(2, factor)
	x0, y0 := 0, 0
	x1 := iround(float64(cols-win.Width) / ystep)
	y1 := iround(float64(rows-win.Height) / ystep)
	if s.scanROI {
		x0 = iround(float64(s.roi.X) / ystep)
		y0 = iround(float64(s.roi.Y) / ystep)
		x1 = iround(float64(s.roi.X+s.roi.Width-win.Width) / ystep)
		y1 = iround(float64(s.roi.Y+s.roi.Height-win.Height) / ystep)
	}
	nrows := y1 - y0
	if nrows <= 0 || x1 <= x0 {
		return nil, nil
	}

	strips := utils.Clamp(s.workers*3, 1, nrows)
	size := (nrows + strips - 1) / strips
	hits := make([][]Rect, strips)

	g := grid{hc: hc, win: win, ystep: ystep, x0: x0, x1: x1, cols: cols, mask: s.mask}
	for pass := 0; pass < s.npass; pass++ {
		var eg errgroup.Group
		eg.SetLimit(s.workers)
		for k := 0; k < strips; k++ {
			from, to := y0+k*size, min(y1, y0+(k+1)*size)
			if from >= to {
				continue
			}
			k := k
			eg.Go(func() error {
				hits[k] = g.scanRows(pass, s.npass, s.split, from, to, hits[k])
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return nil, err
		}
	}

	var out []Rect
	for _, h := range hits {
		out = append(out, h...)
	}
	return out, nil
}

// grid is the scan of a single scale. Workers share it read only,
// except for the mask rows of the lines they own.
type grid struct {
	hc     *HiddenCascade
	win    Size
	ystep  float64
	x0, x1 int
	cols   int
	mask   []uint8
}

// scanRows runs one pass over the grid lines [from, to).
//
// The first pass runs the first split stages. A window passing them is marked in
// the mask, or recorded right away when there is no second pass. A window rejected
// by the very first stage widens the column step: its neighbour is skipped.
// The second pass resumes the marked windows from the split stage.
func (g grid) scanRows(pass, npass, split, from, to int, hits []Rect) []Rect {
	hc := g.hc
	last := pass == npass-1
	for gy := from; gy < to; gy++ {
		y := iround(float64(gy) * g.ystep)
		xstep := 1
		for gx := g.x0; gx < g.x1; gx += xstep {
			x := iround(float64(gx) * g.ystep)
			if pass == 0 {
				xstep = 2
				if !hc.Fits(x, y) {
					xstep = 1
					continue
				}
				stage := hc.run(hc.offset(x, y), 0, split)
				switch {
				case stage == split && last:
					hits = append(hits, Rect{X: x, Y: y, Width: g.win.Width, Height: g.win.Height})
				case stage == split:
					g.mask[y*g.cols+x] = 1
				case stage > 0:
					xstep = 1
				}
				continue
			}
			if g.mask[y*g.cols+x] == 0 {
				continue
			}
			if hc.run(hc.offset(x, y), split, hc.stageCount) == hc.stageCount {
				if last {
					hits = append(hits, Rect{X: x, Y: y, Width: g.win.Width, Height: g.win.Height})
				}
			} else {
				g.mask[y*g.cols+x] = 0
			}
		}
	}
	return hits
}

// narrow clusters the hits of the first scales yielding any, keeps the biggest
// component and restricts the following scales to it.
func (s *scanner) narrow() {
	cp := s.params
	useBig := cp.MinNeighbors > 0
	if useBig && !s.scanROI {
		switch {
		case s.rough() && cp.Flags&AverageRoughClusters != 0:
			s.big = append(s.big, averageClusters(s.hits, cp.MinNeighbors)...)
		default:
			minScale := 0.4
			if s.rough() {
				minScale = 0.6
			}
			s.big = append(s.big, enclosingClusters(s.hits, cp.MinNeighbors, cp.Bounds(), minScale, &s.minSize)...)
		}
	}

	candidates := s.big
	if !useBig {
		candidates = asDetections(s.hits)
	}
	best, ok := biggest(candidates)
	if !ok {
		return
	}
	s.result, s.hasResult = best, true
	if s.rough() {
		s.found = true
		return
	}
	if !s.scanROI {
		s.scanROI = true
		s.roi = best.Rect
		if useBig {
			s.big = nil
		} else {
			s.hits = nil
		}
		log().Debug("scan narrowed", "roi", s.roi, "minSize", s.minSize)
	}
}

// merge turns the hits collected over all scales into the final detections.
func (s *scanner) merge() []Detection {
	cp := s.params
	if !s.biggest() {
		return ClusterDetections(s.hits, cp.MinNeighbors, cp.Flags)
	}
	if cp.MinNeighbors > 0 && !s.rough() {
		if best, ok := biggest(averageClusters(s.hits, cp.MinNeighbors)); ok {
			s.result, s.hasResult = best, true
		}
	}
	if s.hasResult && s.result.Width > 0 {
		return []Detection{s.result}
	}
	return nil
}
