package haar

import (
	"fmt"
	"image"
	"math"
)

// fixedPoint is the scale of the integer weights and node thresholds.
const fixedPoint = 65536.0

// stageThresholdBias lowers every stage threshold so that windows sitting
// right on the trained boundary do not flap between accept and reject.
const stageThresholdBias = 0.0001

// hidRect is a feature rectangle resolved to integral image offsets.
type hidRect struct {
	p0, p1, p2, p3 int
	weight         int64
}

type hidNode struct {
	rects     [MaxFeatureRects]hidRect
	threeRect bool
	tilted    bool
	threshold int64
	left      int
	right     int
}

type hidClassifier struct {
	nodes []hidNode
	alpha []float64
}

type hidStage struct {
	classifiers []hidClassifier
	threshold   float64
	twoRects    bool
	parent      int
	next        int
	child       int
}

// HiddenCascade is a cascade compiled for a single scale and bound to an integral image.
// The feature rectangles are stored as offsets relative to the window origin, so the
// compiled cascade can be evaluated at any position of the image it was compiled for.
type HiddenCascade struct {
	stages     []hidStage
	isTree     bool
	hasTilted  bool
	scale      float64
	window     Size
	invArea    float64
	p0, p1     int
	p2, p3     int
	lo, hi     image.Point
	ii         *IntegralImage
	stageCount int
}

// Compile resolves the cascade features for the given scale against the integral image.
// Feature weights are corrected for the rounding of the scaled rectangles and stored
// as fixed point integers; the first rectangle weight is solved so that every feature
// responds with zero over a flat region.
func Compile(c *Cascade, ii *IntegralImage, scale float64) (*HiddenCascade, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return compile(c, ii, scale)
}

// compile is Compile for a cascade already known to be valid.
func compile(c *Cascade, ii *IntegralImage, scale float64) (*HiddenCascade, error) {
	if !(scale > 0) || math.IsInf(scale, 1) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScale, scale)
	}
	hasTilted := c.HasTilted()
	if hasTilted && ii.Tilted == nil {
		return nil, fmt.Errorf("%w: the cascade has tilted features but no tilted sum was computed", ErrUnsupportedImage)
	}

	orig := c.Size
	equ := Rect{
		X:      iround(scale),
		Y:      iround(scale),
		Width:  iround(float64(orig.Width-2) * scale),
		Height: iround(float64(orig.Height-2) * scale),
	}
	if equ.Empty() {
		return nil, fmt.Errorf("%w: %v collapses the %dx%d window", ErrInvalidScale, scale, orig.Width, orig.Height)
	}

	hc := &HiddenCascade{
		stages:    make([]hidStage, len(c.Stages)),
		isTree:    c.IsTree(),
		hasTilted: hasTilted,
		scale:     scale,
		window: Size{
			Width:  iround(float64(orig.Width) * scale),
			Height: iround(float64(orig.Height) * scale),
		},
		invArea:    1 / float64(equ.Area()),
		ii:         ii,
		stageCount: len(c.Stages),
	}
	hc.p0 = hc.offset(equ.X, equ.Y)
	hc.p1 = hc.offset(equ.X+equ.Width, equ.Y)
	hc.p2 = hc.offset(equ.X, equ.Y+equ.Height)
	hc.p3 = hc.offset(equ.X+equ.Width, equ.Y+equ.Height)

	for i, s := range c.Stages {
		hs := &hc.stages[i]
		hs.threshold = s.Threshold - stageThresholdBias
		hs.twoRects = true
		hs.parent, hs.next, hs.child = -1, -1, -1
		if hc.isTree {
			hs.parent, hs.next = s.Parent, s.Next
		}
		hs.classifiers = make([]hidClassifier, len(s.Classifiers))
		for j, cl := range s.Classifiers {
			hcl := &hs.classifiers[j]
			hcl.alpha = append([]float64(nil), cl.Alpha...)
			hcl.nodes = make([]hidNode, len(cl.Nodes))
			for k, n := range cl.Nodes {
				hcl.nodes[k] = hc.compileNode(n, orig, scale)
				if hcl.nodes[k].threeRect {
					hs.twoRects = false
				}
			}
		}
	}
	if hc.isTree {
		for i := range hc.stages {
			if p := hc.stages[i].parent; p >= 0 && hc.stages[p].child == -1 {
				hc.stages[p].child = i
			}
		}
	}
	hc.extend(equ.X, equ.Y)
	hc.extend(equ.X+equ.Width, equ.Y+equ.Height)
	return hc, nil
}

func (hc *HiddenCascade) compileNode(n TreeNode, orig Size, scale float64) hidNode {
	f := n.Feature
	hn := hidNode{
		tilted:    f.Tilted,
		threshold: int64(n.Threshold * fixedPoint),
		left:      n.Left,
		right:     n.Right,
	}

	nr := len(f.Rects)
	if nr == MaxFeatureRects {
		r := f.Rects[2]
		if math.Abs(r.Weight) < 1e-12 || r.Width == 0 || r.Height == 0 {
			nr = 2
		}
	}
	hn.threeRect = nr > 2

	var (
		weights  [MaxFeatureRects]float32
		sum0     float64
		area0    float64
		origArea = float64(orig.Width * orig.Height)
	)
	for k := 0; k < nr; k++ {
		r := f.Rects[k]
		tr := Rect{
			X:      iround(float64(r.X) * scale),
			Y:      iround(float64(r.Y) * scale),
			Width:  iround(float64(r.Width) * scale),
			Height: iround(float64(r.Height) * scale),
		}
		hr := &hn.rects[k]
		if f.Tilted {
			hr.p0 = hc.corner(tr.X, tr.Y)
			hr.p1 = hc.corner(tr.X-tr.Height, tr.Y+tr.Height)
			hr.p2 = hc.corner(tr.X+tr.Width, tr.Y+tr.Width)
			hr.p3 = hc.corner(tr.X+tr.Width-tr.Height, tr.Y+tr.Width+tr.Height)
		} else {
			hr.p0 = hc.corner(tr.X, tr.Y)
			hr.p1 = hc.corner(tr.X+tr.Width, tr.Y)
			hr.p2 = hc.corner(tr.X, tr.Y+tr.Height)
			hr.p3 = hc.corner(tr.X+tr.Width, tr.Y+tr.Height)
		}

		area := float64(tr.Width * tr.Height)
		if area == 0 {
			// A rectangle vanishing at this scale adds nothing to the feature.
			continue
		}
		// The share of the reference window the rectangle was trained on,
		// spread over the pixels it covers at this scale.
		correction := float64(r.Width*r.Height) / origArea / area
		weights[k] = float32(r.Weight * correction)
		if k == 0 {
			area0 = area
		} else {
			sum0 += float64(weights[k]) * area
		}
	}
	if area0 > 0 {
		weights[0] = float32(-sum0 / area0)
	}
	for k := 0; k < nr; k++ {
		hn.rects[k].weight = int64(float64(weights[k]) * fixedPoint)
	}
	return hn
}

// corner returns the offset of the table cell (x, y) relative to the window origin
// and records it in the window extent.
func (hc *HiddenCascade) corner(x, y int) int {
	hc.extend(x, y)
	return hc.offset(x, y)
}

func (hc *HiddenCascade) offset(x, y int) int {
	return y*hc.ii.Stride + x
}

func (hc *HiddenCascade) extend(x, y int) {
	hc.lo.X, hc.lo.Y = min(hc.lo.X, x), min(hc.lo.Y, y)
	hc.hi.X, hc.hi.Y = max(hc.hi.X, x), max(hc.hi.Y, y)
}

// Scale returns the scale the cascade was compiled for.
func (hc *HiddenCascade) Scale() float64 { return hc.scale }

// WindowSize returns the size of the scaled detection window.
func (hc *HiddenCascade) WindowSize() Size { return hc.window }

// StageCount returns the number of stages.
func (hc *HiddenCascade) StageCount() int { return hc.stageCount }

// Fits reports whether every table cell read by the window anchored at (x, y)
// lies inside the integral image.
func (hc *HiddenCascade) Fits(x, y int) bool {
	return x+hc.lo.X >= 0 && y+hc.lo.Y >= 0 &&
		x+hc.hi.X <= hc.ii.Width && y+hc.hi.Y <= hc.ii.Height
}
