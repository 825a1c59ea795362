package bvh

import (
	v3 "github.com/deadsy/sdfx/vec/v3"
	"math"
)

//-----------------------------------------------------------------------------
// CLOSEST POINT
//-----------------------------------------------------------------------------

// Region names the Voronoi feature of a triangle that holds the closest point to a query.
type Region int

const (
	RegionVertexA Region = iota
	RegionVertexB
	RegionEdgeAB
	RegionVertexC
	RegionEdgeAC
	RegionEdgeBC
	RegionFace
	// RegionDegenerate is reported for zero-area triangles, where an edge or the face has no valid weights.
	RegionDegenerate
	// RegionFaceClamped is reported for thin triangles whose face weights fall outside [0, 1] by rounding.
	RegionFaceClamped
)

func (r Region) String() string {
	switch r {
	case RegionVertexA:
		return "vertex-a"
	case RegionVertexB:
		return "vertex-b"
	case RegionVertexC:
		return "vertex-c"
	case RegionEdgeAB:
		return "edge-ab"
	case RegionEdgeAC:
		return "edge-ac"
	case RegionEdgeBC:
		return "edge-bc"
	case RegionFace:
		return "face"
	case RegionFaceClamped:
		return "face-clamped"
	default:
		return "degenerate"
	}
}

// ClosestPoint returns the point of triangle abc closest to p and the region it lies in.
// Regions are tested in the order of Real-Time Collision Detection (Ericson, 5.1.5); each one short-circuits the rest.
func ClosestPoint(p, a, b, c v3.Vec) (v3.Vec, Region) {
	ab := b.Sub(a)
	ac := c.Sub(a)
	ap := p.Sub(a)
	d1 := ab.Dot(ap)
	d2 := ac.Dot(ap)
	if d1 <= 0 && d2 <= 0 {
		return a, RegionVertexA
	}

	bp := p.Sub(b)
	d3 := ab.Dot(bp)
	d4 := ac.Dot(bp)
	if d3 >= 0 && d4 <= d3 {
		return b, RegionVertexB
	}

	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		if !usable(d1 - d3) {
			return closestOnEdges(p, a, b, c), RegionDegenerate
		}
		v := d1 / (d1 - d3)
		return a.Add(ab.MulScalar(v)), RegionEdgeAB
	}

	cp := p.Sub(c)
	d5 := ab.Dot(cp)
	d6 := ac.Dot(cp)
	if d6 >= 0 && d5 <= d6 {
		return c, RegionVertexC
	}

	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		if !usable(d2 - d6) {
			return closestOnEdges(p, a, b, c), RegionDegenerate
		}
		w := d2 / (d2 - d6)
		return a.Add(ac.MulScalar(w)), RegionEdgeAC
	}

	va := d3*d6 - d5*d4
	if va <= 0 && (d4-d3) >= 0 && (d5-d6) >= 0 {
		if !usable((d4 - d3) + (d5 - d6)) {
			return closestOnEdges(p, a, b, c), RegionDegenerate
		}
		w := (d4 - d3) / ((d4 - d3) + (d5 - d6))
		return b.Add(c.Sub(b).MulScalar(w)), RegionEdgeBC
	}

	sum := va + vb + vc
	if !usable(sum) {
		return closestOnEdges(p, a, b, c), RegionDegenerate
	}
	denom := 1 / sum
	v := vb * denom
	w := vc * denom
	if v < 0 || w < 0 || v+w > 1 {
		return closestOnEdges(p, a, b, c), RegionFaceClamped
	}
	return a.Add(ab.MulScalar(v)).Add(ac.MulScalar(w)), RegionFace
}

// usable reports whether d can be divided by.
func usable(d float64) bool {
	return d != 0 && !math.IsNaN(d) && !math.IsInf(d, 0)
}

func closestOnEdges(p, a, b, c v3.Vec) v3.Vec {
	best := closestOnSegment(p, a, b)
	bestDistSq := distanceSq(p, best)
	for _, edge := range [2][2]v3.Vec{{b, c}, {c, a}} {
		q := closestOnSegment(p, edge[0], edge[1])
		if d := distanceSq(p, q); d < bestDistSq {
			best, bestDistSq = q, d
		}
	}
	return best
}

func closestOnSegment(p, a, b v3.Vec) v3.Vec {
	ab := b.Sub(a)
	lenSq := ab.Dot(ab)
	if lenSq == 0 {
		return a
	}
	t := math.Max(0, math.Min(1, p.Sub(a).Dot(ab)/lenSq))
	return a.Add(ab.MulScalar(t))
}

func distanceSq(a, b v3.Vec) float64 {
	d := a.Sub(b)
	return d.Dot(d)
}

//-----------------------------------------------------------------------------
// RAY INTERSECTION
//-----------------------------------------------------------------------------

// RayHit describes a ray/triangle intersection: Point = origin + dir*T = U*a + V*b + W*c.
type RayHit struct {
	T, U, V, W float64
	Point      v3.Vec
}

// IntersectRay intersects the line origin + t*dir with triangle abc (Ericson, 5.3.4).
// Both windings are accepted. T is not clamped: hits behind the origin are reported with T < 0.
func IntersectRay(origin, dir, a, b, c v3.Vec) (RayHit, bool) {
	negDir := dir.MulScalar(-1)
	ab := b.Sub(a)
	ac := c.Sub(a)

	n := ab.Cross(ac)
	d := negDir.Dot(n)
	if d == 0 {
		return RayHit{}, false // parallel to the plane (or degenerate triangle)
	}

	ap := origin.Sub(a)
	t := ap.Dot(n)

	e := negDir.Cross(ap)
	v := ac.Dot(e)
	if d > 0 {
		if v < 0 || v > d {
			return RayHit{}, false
		}
	} else if v > 0 || v < d {
		return RayHit{}, false
	}

	w := -ab.Dot(e)
	if d > 0 {
		if w < 0 || v+w > d {
			return RayHit{}, false
		}
	} else if w > 0 || v+w < d {
		return RayHit{}, false
	}

	ood := 1 / d
	hit := RayHit{T: t * ood, V: v * ood, W: w * ood}
	hit.U = 1 - hit.V - hit.W
	hit.Point = origin.Add(dir.MulScalar(hit.T))
	return hit, true
}

//-----------------------------------------------------------------------------
// HELPERS
//-----------------------------------------------------------------------------

// Normal is the (non-unit) face normal (b-a)x(c-a); counter-clockwise triangles face the viewer.
func Normal(a, b, c v3.Vec) v3.Vec {
	return b.Sub(a).Cross(c.Sub(a))
}

// SafeNormalize scales v to unit length. The zero vector is returned unchanged.
func SafeNormalize(v v3.Vec) v3.Vec {
	lenSq := v.Dot(v)
	if lenSq == 0 {
		return v
	}
	return v.MulScalar(1 / math.Sqrt(lenSq))
}
