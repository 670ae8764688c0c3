package haar

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// The XML layout of the cascades trained with the OpenCV haartraining tool
// ("opencv-haar-classifier" storage type).
type xmlStorage struct {
	Cascades []xmlCascade `xml:",any"`
}

type xmlCascade struct {
	XMLName xml.Name
	Size    string     `xml:"size"`
	Stages  []xmlStage `xml:"stages>_"`
}

type xmlStage struct {
	Trees     []xmlTree `xml:"trees>_"`
	Threshold string    `xml:"stage_threshold"`
	Parent    string    `xml:"parent"`
	Next      string    `xml:"next"`
}

type xmlTree struct {
	Nodes []xmlNode `xml:"_"`
}

type xmlNode struct {
	Rects     []string `xml:"feature>rects>_"`
	Tilted    string   `xml:"feature>tilted"`
	Threshold string   `xml:"threshold"`
	LeftVal   string   `xml:"left_val"`
	RightVal  string   `xml:"right_val"`
	LeftNode  string   `xml:"left_node"`
	RightNode string   `xml:"right_node"`
}

// LoadCascade reads and parses the cascade file.
func LoadCascade(path string) (*Cascade, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ParseCascade(f)
}

// Unpack parses a cascade held in memory.
func Unpack(data []byte) (*Cascade, error) {
	return ParseCascade(bytes.NewReader(data))
}

// ParseCascade decodes an OpenCV Haar cascade XML document and validates it.
func ParseCascade(r io.Reader) (*Cascade, error) {
	var doc xmlStorage
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCascade, err)
	}
	if len(doc.Cascades) == 0 {
		return nil, fmt.Errorf("%w: no cascade found", ErrInvalidCascade)
	}
	xc := doc.Cascades[0]

	p := &parser{}
	size := p.ints(xc.Size, 2)
	c := &Cascade{
		Size:   Size{Width: size[0], Height: size[1]},
		Stages: make([]Stage, len(xc.Stages)),
	}
	for i, xs := range xc.Stages {
		st := Stage{
			Threshold: p.float(xs.Threshold),
			Parent:    p.optInt(xs.Parent, -1),
			Next:      p.optInt(xs.Next, -1),
		}
		for _, xt := range xs.Trees {
			st.Classifiers = append(st.Classifiers, p.classifier(xt))
		}
		c.Stages[i] = st
		if p.err != nil {
			return nil, fmt.Errorf("%w: %s stage %d: %v", ErrInvalidCascade, xc.XMLName.Local, i, p.err)
		}
	}
	if p.err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidCascade, xc.XMLName.Local, p.err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// parser keeps the first conversion error, so the decoding code can stay linear.
type parser struct {
	err error
}

func (p *parser) fail(format string, args ...any) {
	if p.err == nil {
		p.err = fmt.Errorf(format, args...)
	}
}

func (p *parser) float(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		p.fail("invalid number %q", s)
	}
	return v
}

func (p *parser) optInt(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		p.fail("invalid integer %q", s)
	}
	return v
}

func (p *parser) ints(s string, n int) []int {
	out := make([]int, n)
	fields := strings.Fields(s)
	if len(fields) != n {
		p.fail("expected %d integers, got %q", n, s)
		return out
	}
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			p.fail("invalid integer %q", f)
		}
		out[i] = v
	}
	return out
}

// classifier converts a tree. Leaf values are appended to Alpha in the order
// they appear, and referenced by the negated index.
func (p *parser) classifier(xt xmlTree) Classifier {
	var cl Classifier
	branch := func(node, val string) int {
		if strings.TrimSpace(node) != "" {
			return p.optInt(node, 0)
		}
		cl.Alpha = append(cl.Alpha, p.float(val))
		return -(len(cl.Alpha) - 1)
	}
	for _, xn := range xt.Nodes {
		n := TreeNode{
			Feature:   p.feature(xn),
			Threshold: p.float(xn.Threshold),
		}
		n.Left = branch(xn.LeftNode, xn.LeftVal)
		n.Right = branch(xn.RightNode, xn.RightVal)
		cl.Nodes = append(cl.Nodes, n)
	}
	return cl
}

func (p *parser) feature(xn xmlNode) Feature {
	f := Feature{Tilted: p.optInt(xn.Tilted, 0) != 0}
	for _, s := range xn.Rects {
		fields := strings.Fields(s)
		if len(fields) != 5 {
			p.fail("invalid rectangle %q", s)
			continue
		}
		v := p.ints(strings.Join(fields[:4], " "), 4)
		f.Rects = append(f.Rects, FeatureRect{
			Rect:   Rect{X: v[0], Y: v[1], Width: v[2], Height: v[3]},
			Weight: p.float(fields[4]),
		})
	}
	return f
}
