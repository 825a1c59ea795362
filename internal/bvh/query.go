package bvh

import (
	v3 "github.com/deadsy/sdfx/vec/v3"
	"math"
)

// Closest is the answer of a nearest-point query. DistSq is squared; callers take the square root.
type Closest struct {
	DistSq float64
	Point  v3.Vec
	Face   Index // None if the tree has no faces
	Region Region
}

// Searcher runs queries against a tree, reusing its traversal stack between calls.
// A Searcher is not safe for concurrent use: create one per goroutine (the tree itself is shared).
type Searcher struct {
	tree  *Tree
	stack []Index
}

// NewSearcher allocates a searcher whose stack is pre-reserved to the depth of the tree.
func (t *Tree) NewSearcher() *Searcher {
	return &Searcher{tree: t, stack: make([]Index, 0, t.MaxDepth+1)}
}

func (s *Searcher) reset() bool {
	s.stack = s.stack[:0]
	if !s.tree.Root.Valid() {
		return false
	}
	s.stack = append(s.stack, s.tree.Root)
	return true
}

func (s *Searcher) pop() *Node {
	i := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	return &s.tree.Nodes[i]
}

// Intersect appends to dst the faces of every leaf reached by descending through internal nodes that overlap box.
// Leaves are accepted without testing their own box, so the result may contain faces whose box does not overlap
// (but never misses one that does).
func (s *Searcher) Intersect(box AABB, dst []int) []int {
	if !s.reset() {
		return dst
	}
	for len(s.stack) > 0 {
		node := s.pop()
		if node.IsLeaf() {
			dst = append(dst, int(node.Face))
			continue
		}
		if !Intersects(box, node.Box) {
			continue
		}
		if node.Left.Valid() {
			s.stack = append(s.stack, node.Left)
		}
		if node.Right.Valid() {
			s.stack = append(s.stack, node.Right)
		}
	}
	return dst
}

// Nearest finds the point of tris closest to p (branch and bound).
// A child is skipped only when the squared distance to its box already reaches the best distance found so far,
// so the visiting order affects speed but not the answer.
func (s *Searcher) Nearest(tris Triangles, p v3.Vec) Closest {
	best := Closest{DistSq: math.Inf(1), Face: None}
	if !s.reset() {
		return best
	}
	nodes := s.tree.Nodes
	for len(s.stack) > 0 {
		node := s.pop()
		if node.IsLeaf() {
			a, b, c := tris.Face(int(node.Face))
			q, region := ClosestPoint(p, a, b, c)
			if d := distanceSq(p, q); d < best.DistSq {
				best = Closest{DistSq: d, Point: q, Face: node.Face, Region: region}
			}
			continue
		}
		for _, child := range [2]Index{node.Left, node.Right} {
			if !child.Valid() {
				continue
			}
			box := &nodes[child].Box
			exterior := box.ExteriorDistanceSq(p)
			if box.Contains(p) || exterior < best.DistSq {
				s.stack = append(s.stack, child)
			}
		}
	}
	return best
}

// Raycast calls hit for every face crossed by the ray origin + t*dir with t >= 0, in no particular order.
// Returning false from hit stops the traversal.
func (s *Searcher) Raycast(tris Triangles, origin, dir v3.Vec, hit func(face int, h RayHit) bool) {
	if !s.reset() {
		return
	}
	for len(s.stack) > 0 {
		node := s.pop()
		if !rayHitsBox(node.Box, origin, dir) {
			continue
		}
		if node.IsLeaf() {
			a, b, c := tris.Face(int(node.Face))
			if h, ok := IntersectRay(origin, dir, a, b, c); ok && h.T >= 0 {
				if !hit(int(node.Face), h) {
					return
				}
			}
			continue
		}
		if node.Left.Valid() {
			s.stack = append(s.stack, node.Left)
		}
		if node.Right.Valid() {
			s.stack = append(s.stack, node.Right)
		}
	}
}

// rayHitsBox is the slab test for t in [0, +Inf).
func rayHitsBox(box AABB, origin, dir v3.Vec) bool {
	tMin, tMax := 0.0, math.Inf(1)
	for axis := AxisX; axis <= AxisZ; axis++ {
		o, d := Component(origin, axis), Component(dir, axis)
		lo, hi := Component(box.Min, axis), Component(box.Max, axis)
		if math.Abs(d) < 1e-12 {
			if o < lo || o > hi {
				return false
			}
			continue
		}
		inv := 1 / d
		t1, t2 := (lo-o)*inv, (hi-o)*inv
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tMin = math.Max(tMin, t1)
		tMax = math.Min(tMax, t2)
		if tMin > tMax {
			return false
		}
	}
	return true
}

// Intersect is a convenience wrapper allocating a temporary Searcher.
func (t *Tree) Intersect(box AABB) []int {
	return t.NewSearcher().Intersect(box, nil)
}

// Nearest is a convenience wrapper allocating a temporary Searcher.
func (t *Tree) Nearest(tris Triangles, p v3.Vec) Closest {
	return t.NewSearcher().Nearest(tris, p)
}

// Raycast is a convenience wrapper allocating a temporary Searcher.
func (t *Tree) Raycast(tris Triangles, origin, dir v3.Vec, hit func(face int, h RayHit) bool) {
	t.NewSearcher().Raycast(tris, origin, dir, hit)
}
