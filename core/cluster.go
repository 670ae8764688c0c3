package haar

import "math"

// Detection is a merged detection: the averaged rectangle of a cluster of raw
// window hits and the number of hits (neighbors) that formed it.
type Detection struct {
	Rect
	Neighbors int `json:"neighbors"`
}

// similarity is the relative tolerance of the clustering predicate.
const similarity = 0.2

// IsEqual is the clustering predicate: r2 lies within 20% of r1's width from r1
// in both directions and their widths differ by less than 20%.
func IsEqual(r1, r2 Rect) bool {
	d := iround(float64(r1.Width) * similarity)
	return r2.X <= r1.X+d &&
		r2.X >= r1.X-d &&
		r2.Y <= r1.Y+d &&
		r2.Y >= r1.Y-d &&
		r2.Width <= iround(float64(r1.Width)*(1+similarity)) &&
		iround(float64(r2.Width)*(1+similarity)) >= r1.Width
}

// Partition splits the rectangles into the equivalence classes generated by eq.
// Two rectangles are related when eq holds in either order. The returned labels
// are numbered by the order the classes first appear in rects.
func Partition(rects []Rect, eq func(r1, r2 Rect) bool) ([]int, int) {
	parent := make([]int, len(rects))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	for i := range rects {
		for j := i + 1; j < len(rects); j++ {
			if eq(rects[i], rects[j]) || eq(rects[j], rects[i]) {
				ri, rj := find(i), find(j)
				if ri != rj {
					// Keep the earliest member as the root.
					if ri < rj {
						parent[rj] = ri
					} else {
						parent[ri] = rj
					}
				}
			}
		}
	}

	labels := make([]int, len(rects))
	ids := make(map[int]int)
	for i := range rects {
		root := find(i)
		id, ok := ids[root]
		if !ok {
			id = len(ids)
			ids[root] = id
		}
		labels[i] = id
	}
	return labels, len(ids)
}

// cluster accumulates the members of a class of hits.
type cluster struct {
	x, y, w, h, n int
}

func (c cluster) detection() Detection {
	avg := func(v int) int { return (v*2 + c.n) / (2 * c.n) }
	return Detection{
		Rect:      Rect{X: avg(c.x), Y: avg(c.y), Width: avg(c.w), Height: avg(c.h)},
		Neighbors: c.n,
	}
}

// averageClusters reduces every class with at least minNeighbors members to
// its average rectangle, rounded half up. The averages of distinct classes may
// end up close enough to be equal themselves: such classes are joined, summing
// their members, until no two averages are related.
func averageClusters(rects []Rect, minNeighbors int) []Detection {
	labels, n := Partition(rects, IsEqual)
	sums := make([]cluster, n)
	for i, r := range rects {
		c := &sums[labels[i]]
		c.n++
		c.x += r.X
		c.y += r.Y
		c.w += r.Width
		c.h += r.Height
	}

	var comps []cluster
	for _, c := range sums {
		if c.n >= minNeighbors {
			comps = append(comps, c)
		}
	}
	for {
		avgs := make([]Rect, len(comps))
		for i, c := range comps {
			avgs[i] = c.detection().Rect
		}
		labels, n := Partition(avgs, IsEqual)
		if n == len(comps) {
			break
		}
		joined := make([]cluster, n)
		for i, c := range comps {
			j := &joined[labels[i]]
			j.x, j.y, j.w, j.h, j.n = j.x+c.x, j.y+c.y, j.w+c.w, j.h+c.h, j.n+c.n
		}
		comps = joined
	}

	var dets []Detection
	for _, c := range comps {
		dets = append(dets, c.detection())
	}
	return dets
}

// enclosingClusters reduces every class with at least minNeighbors members to the
// box enclosing all of them, expanded by 20% of its width to recover the hits the
// clustering tolerance missed and clamped to bounds. The minimum window size is
// raised to minScale times the size of every enclosing box found.
func enclosingClusters(rects []Rect, minNeighbors int, bounds Rect, minScale float64, minSize *Size) []Detection {
	labels, n := Partition(rects, IsEqual)
	type box struct{ x0, y0, x1, y1, n int }
	boxes := make([]box, n)
	for i := range boxes {
		boxes[i] = box{x0: math.MaxInt, y0: math.MaxInt, x1: -1, y1: -1}
	}
	for i, r := range rects {
		b := &boxes[labels[i]]
		b.n++
		b.x0, b.y0 = min(b.x0, r.X), min(b.y0, r.Y)
		b.x1, b.y1 = max(b.x1, r.X+r.Width-1), max(b.y1, r.Y+r.Height-1)
	}

	var comps []Detection
	for _, b := range boxes {
		if b.n < minNeighbors {
			continue
		}
		w, h := b.x1-b.x0+1, b.y1-b.y0+1
		minSize.Width = max(minSize.Width, iround(float64(w)*minScale))
		minSize.Height = max(minSize.Height, iround(float64(h)*minScale))

		offset := iround(float64(w) * similarity)
		right := min(bounds.X+bounds.Width-1, b.x1+offset)
		bottom := min(bounds.Y+bounds.Height-1, b.y1+offset)
		x, y := max(b.x0-offset, bounds.X), max(b.y0-offset, bounds.Y)
		comps = append(comps, Detection{
			Rect:      Rect{X: x, Y: y, Width: right - x + 1, Height: bottom - y + 1},
			Neighbors: b.n,
		})
	}
	return comps
}

// suppressNested drops the detections lying inside another one (with a 20% of
// its width tolerance) when the enclosing detection is more confident: it has more
// than max(3, n) neighbors, or the inner one has fewer than 3 while the enclosing
// one has at least 3.
func suppressNested(dets []Detection) []Detection {
	var out []Detection
	for i, r1 := range dets {
		keep := true
		for j, r2 := range dets {
			if i == j {
				continue
			}
			d := iround(float64(r2.Width) * similarity)
			inside := r1.X >= r2.X-d &&
				r1.Y >= r2.Y-d &&
				r1.X+r1.Width <= r2.X+r2.Width+d &&
				r1.Y+r1.Height <= r2.Y+r2.Height+d
			if !inside {
				continue
			}
			if r2.Neighbors > max(3, r1.Neighbors) || (r1.Neighbors < 3 && r2.Neighbors >= 3) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, r1)
		}
	}
	return out
}

// biggest returns the detection with the largest area, the first one on ties.
func biggest(dets []Detection) (Detection, bool) {
	var (
		best    Detection
		maxArea int
	)
	for _, d := range dets {
		if a := d.Area(); a > maxArea {
			maxArea = a
			best = d
		}
	}
	return best, maxArea > 0
}

// asDetections wraps raw hits as single member detections.
func asDetections(rects []Rect) []Detection {
	dets := make([]Detection, len(rects))
	for i, r := range rects {
		dets[i] = Detection{Rect: r, Neighbors: 1}
	}
	return dets
}

// ClusterDetections merges the raw window hits into detections.
//
// With minNeighbors set to 0 every hit is returned as is with a single neighbor.
// Otherwise the hits are grouped by IsEqual, the groups smaller than minNeighbors
// are discarded and each remaining group is reduced to its average rectangle.
// In FindBiggestObject mode only the largest detection is returned, otherwise the
// detections nested inside a more confident one are suppressed.
func ClusterDetections(hits []Rect, minNeighbors int, flags Flags) []Detection {
	if minNeighbors <= 0 {
		dets := asDetections(hits)
		if flags&FindBiggestObject != 0 {
			if best, ok := biggest(dets); ok {
				return []Detection{best}
			}
			return nil
		}
		return dets
	}
	comps := averageClusters(hits, minNeighbors)
	if flags&FindBiggestObject != 0 {
		if best, ok := biggest(comps); ok {
			return []Detection{best}
		}
		return nil
	}
	return suppressNested(comps)
}
