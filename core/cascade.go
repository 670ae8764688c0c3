package haar

import (
	"fmt"
	"image"
	"math"
)

// MaxFeatureRects is the maximum number of rectangles a Haar-like feature can hold.
const MaxFeatureRects = 3

// Size is a width and height pair expressed in pixels.
type Size struct {
	Width  int
	Height int
}

// Rect is an axis aligned rectangle: the top left corner and its dimension.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Area returns the rectangle area.
func (r Rect) Area() int { return r.Width * r.Height }

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool { return r.Width <= 0 || r.Height <= 0 }

// Rectangle converts r to the standard library representation.
func (r Rect) Rectangle() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Intersect returns the largest rectangle contained by both r and s.
func (r Rect) Intersect(s Rect) Rect {
	return rectFrom(r.Rectangle().Intersect(s.Rectangle()))
}

// Contains reports whether s lies fully inside r.
func (r Rect) Contains(s Rect) bool {
	return s.X >= r.X && s.Y >= r.Y &&
		s.X+s.Width <= r.X+r.Width && s.Y+s.Height <= r.Y+r.Height
}

// Scale multiplies the position and the size of the rectangle by k.
func (r Rect) Scale(k float64) Rect {
	return Rect{
		X:      iround(float64(r.X) * k),
		Y:      iround(float64(r.Y) * k),
		Width:  iround(float64(r.Width) * k),
		Height: iround(float64(r.Height) * k),
	}
}

func rectFrom(r image.Rectangle) Rect {
	return Rect{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// FeatureRect is a weighted rectangle of a Haar-like feature, given in
// the coordinate system of the reference (training) window.
type FeatureRect struct {
	Rect
	Weight float64
}

// Feature is a Haar-like feature made of up to three weighted rectangles.
// A tilted feature is rotated by 45° and is evaluated over the tilted integral image:
// its rectangle grows Width pixels to the lower right and Height pixels to the lower left of (X, Y).
type Feature struct {
	Rects  []FeatureRect
	Tilted bool
}

// TreeNode is a single node of a weak classifier. Left and Right either point
// to another node of the same classifier (positive values) or to a leaf value:
// zero or a negative index i selects Alpha[-i].
type TreeNode struct {
	Feature   Feature
	Threshold float64
	Left      int
	Right     int
}

// Classifier is a weak classifier. A stump has a single node and two leaf values.
type Classifier struct {
	Nodes []TreeNode
	Alpha []float64
}

// Stage groups the weak classifiers whose summed output is compared against the stage threshold.
// Parent and Next link the stages of a tree structured cascade, -1 meaning no link.
// Linear cascades may leave both at -1 or chain every stage to its predecessor through Parent.
type Stage struct {
	Classifiers []Classifier
	Threshold   float64
	Parent      int
	Next        int
}

// Cascade is a pre-trained Haar classifier cascade. It is immutable once loaded
// and can be shared by concurrent detections.
type Cascade struct {
	Size   Size
	Stages []Stage
}

// NewStump is a helper creating a single node weak classifier.
// The left value is returned when the feature response is below the threshold.
func NewStump(f Feature, threshold, left, right float64) Classifier {
	return Classifier{
		Nodes: []TreeNode{{Feature: f, Threshold: threshold, Left: 0, Right: -1}},
		Alpha: []float64{left, right},
	}
}

// IsTree reports whether the stages form a tree instead of a linear sequence.
func (c *Cascade) IsTree() bool {
	for _, s := range c.Stages {
		if s.Next >= 0 {
			return true
		}
	}
	return false
}

// HasTilted reports whether any feature of the cascade is tilted.
func (c *Cascade) HasTilted() bool {
	for _, s := range c.Stages {
		for _, cl := range s.Classifiers {
			for _, n := range cl.Nodes {
				if n.Feature.Tilted {
					return true
				}
			}
		}
	}
	return false
}

// Validate checks the structural integrity of the cascade.
func (c *Cascade) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: nil cascade", ErrInvalidCascade)
	}
	if c.Size.Width <= 0 || c.Size.Height <= 0 {
		return fmt.Errorf("%w: window size %dx%d", ErrInvalidCascade, c.Size.Width, c.Size.Height)
	}
	if len(c.Stages) == 0 {
		return fmt.Errorf("%w: no stages", ErrInvalidCascade)
	}
	for i, s := range c.Stages {
		if len(s.Classifiers) == 0 {
			return fmt.Errorf("%w: stage %d has no classifiers", ErrInvalidCascade, i)
		}
		if math.IsNaN(s.Threshold) {
			return fmt.Errorf("%w: stage %d threshold is NaN", ErrInvalidCascade, i)
		}
		if err := c.validateLinks(i); err != nil {
			return err
		}
		for j, cl := range s.Classifiers {
			if err := c.validateClassifier(cl); err != nil {
				return fmt.Errorf("%w: stage %d classifier %d: %v", ErrInvalidCascade, i, j, err)
			}
		}
	}
	return nil
}

func (c *Cascade) validateLinks(i int) error {
	s := c.Stages[i]
	if s.Parent < -1 || s.Parent >= i {
		return fmt.Errorf("%w: stage %d parent %d", ErrInvalidCascade, i, s.Parent)
	}
	if s.Next == -1 {
		return nil
	}
	if s.Next <= i || s.Next >= len(c.Stages) {
		return fmt.Errorf("%w: stage %d next %d", ErrInvalidCascade, i, s.Next)
	}
	// Siblings share the parent, otherwise the tree walk could loop.
	if c.Stages[s.Next].Parent != s.Parent {
		return fmt.Errorf("%w: stage %d and its next stage %d have different parents", ErrInvalidCascade, i, s.Next)
	}
	return nil
}

func (c *Cascade) validateClassifier(cl Classifier) error {
	if len(cl.Nodes) == 0 {
		return fmt.Errorf("no nodes")
	}
	for k, n := range cl.Nodes {
		for _, idx := range []int{n.Left, n.Right} {
			if idx > 0 && idx >= len(cl.Nodes) {
				return fmt.Errorf("node %d: child %d out of range", k, idx)
			}
			if idx > 0 && idx <= k {
				return fmt.Errorf("node %d: child %d must follow its parent", k, idx)
			}
			if idx <= 0 && -idx >= len(cl.Alpha) {
				return fmt.Errorf("node %d: leaf %d out of range", k, -idx)
			}
		}
		if err := c.validateFeature(n.Feature); err != nil {
			return fmt.Errorf("node %d: %v", k, err)
		}
	}
	return nil
}

// validateFeature checks that every rectangle lies inside the reference window.
// Tilted rectangles use the rotated containment rule.
func (c *Cascade) validateFeature(f Feature) error {
	if len(f.Rects) == 0 || len(f.Rects) > MaxFeatureRects {
		return fmt.Errorf("feature has %d rectangles", len(f.Rects))
	}
	w, h := c.Size.Width, c.Size.Height
	for _, fr := range f.Rects {
		r := fr.Rect
		ok := r.Width >= 0 && r.Height >= 0 && r.Y >= 0 && r.X+r.Width <= w
		if f.Tilted {
			ok = ok && r.X-r.Height >= 0 && r.Y+r.Width+r.Height <= h
		} else {
			ok = ok && r.X >= 0 && r.Y+r.Height <= h
		}
		if !ok {
			return fmt.Errorf("rectangle %+v is outside of the %dx%d window", r, w, h)
		}
	}
	if f.Rects[0].Area() == 0 {
		return fmt.Errorf("first rectangle has no area")
	}
	return nil
}
