package haar

import (
	"fmt"
	"image"
	"math"
)

// Outcome is the result of running the cascade over a single window.
// Stage is the index of the rejecting stage, or the stage count when the window is accepted.
type Outcome struct {
	Accepted bool
	Stage    int
}

// Evaluate runs the stages from startStage on over the window anchored at pt.
// Tree structured cascades are always evaluated from their root.
func (hc *HiddenCascade) Evaluate(pt image.Point, startStage int) (Outcome, error) {
	if startStage < 0 || startStage > hc.stageCount || (hc.isTree && startStage != 0) {
		return Outcome{}, fmt.Errorf("%w: start stage %d", ErrInvalidParams, startStage)
	}
	if !hc.Fits(pt.X, pt.Y) {
		return Outcome{}, fmt.Errorf("%w: %v", ErrWindowOutOfBounds, pt)
	}
	stage := hc.run(hc.offset(pt.X, pt.Y), startStage, hc.stageCount)
	return Outcome{Accepted: stage == hc.stageCount, Stage: stage}, nil
}

// run evaluates the stages [start, end) at the table offset of a window which
// must satisfy Fits. It returns end when every stage passes, otherwise the index
// of the first rejecting stage.
func (hc *HiddenCascade) run(offset, start, end int) int {
	nf := hc.normFactor(offset)
	if hc.isTree {
		return hc.runTree(offset, nf)
	}
	for i := start; i < end; i++ {
		st := &hc.stages[i]
		if hc.stageSum(st, offset, nf) < st.threshold {
			return i
		}
	}
	return end
}

// runTree walks a tree structured cascade: a passing stage descends to its first
// child, a failing one moves to the next sibling of itself or of its closest ancestor.
func (hc *HiddenCascade) runTree(offset int, nf float64) int {
	i := 0
	for i >= 0 {
		st := &hc.stages[i]
		if hc.stageSum(st, offset, nf) >= st.threshold {
			if st.child < 0 {
				return hc.stageCount
			}
			i = st.child
			continue
		}
		failed := i
		for i >= 0 && hc.stages[i].next < 0 {
			i = hc.stages[i].parent
		}
		if i < 0 {
			return failed
		}
		i = hc.stages[i].next
	}
	return hc.stageCount
}

// normFactor is the standard deviation of the window's reference area,
// used to make the node thresholds independent of the lighting.
func (hc *HiddenCascade) normFactor(offset int) float64 {
	sum, sq := hc.ii.Sum, hc.ii.SqSum
	s := sum[hc.p0+offset] - sum[hc.p1+offset] - sum[hc.p2+offset] + sum[hc.p3+offset]
	q := sq[hc.p0+offset] - sq[hc.p1+offset] - sq[hc.p2+offset] + sq[hc.p3+offset]

	mean := float64(s) * hc.invArea
	variance := float64(q)*hc.invArea - mean*mean
	if variance > 0 {
		return math.Sqrt(variance)
	}
	return 1
}

func (hc *HiddenCascade) stageSum(st *hidStage, offset int, nf float64) float64 {
	var sum float64
	if st.twoRects {
		for c := range st.classifiers {
			cl := &st.classifiers[c]
			if len(cl.nodes) == 1 {
				n := &cl.nodes[0]
				v := hc.rectSum(n, 0, offset) + hc.rectSum(n, 1, offset)
				sum += cl.alpha[leaf(n, v, nf)]
				continue
			}
			sum += hc.evalTree(cl, offset, nf)
		}
		return sum
	}
	for c := range st.classifiers {
		sum += hc.evalTree(&st.classifiers[c], offset, nf)
	}
	return sum
}

// evalTree descends the nodes of a weak classifier until it reaches a leaf.
func (hc *HiddenCascade) evalTree(cl *hidClassifier, offset int, nf float64) float64 {
	idx := 0
	for {
		n := &cl.nodes[idx]
		v := hc.rectSum(n, 0, offset) + hc.rectSum(n, 1, offset)
		if n.threeRect {
			v += hc.rectSum(n, 2, offset)
		}
		if float64(v) < float64(n.threshold)*nf {
			idx = n.left
		} else {
			idx = n.right
		}
		if idx <= 0 {
			return cl.alpha[-idx]
		}
	}
}

func leaf(n *hidNode, v int64, nf float64) int {
	if float64(v) < float64(n.threshold)*nf {
		return -n.left
	}
	return -n.right
}

// rectSum returns the weighted pixel sum of the k-th rectangle of the node.
func (hc *HiddenCascade) rectSum(n *hidNode, k, offset int) int64 {
	r := &n.rects[k]
	if r.weight == 0 {
		return 0
	}
	data := hc.ii.Sum
	if n.tilted {
		data = hc.ii.Tilted
	}
	s := data[r.p0+offset] - data[r.p1+offset] - data[r.p2+offset] + data[r.p3+offset]
	return int64(s) * r.weight
}
