package bvh

import (
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"math"
)

// Axis identifiers, in the order used by LongestAxis.
const (
	AxisX = 0
	AxisY = 1
	AxisZ = 2
)

// AABB is an axis-aligned bounding box. Min <= Max holds per axis for every box built through this package.
type AABB struct {
	Min, Max v3.Vec
}

// FromPoint returns the degenerate box containing only p.
func FromPoint(p v3.Vec) AABB {
	return AABB{Min: p, Max: p}
}

// FromTriangle returns the tight box around the three vertices.
func FromTriangle(a, b, c v3.Vec) AABB {
	box := FromPoint(a)
	box.ExtendPoint(b)
	box.ExtendPoint(c)
	return box
}

// FromBox3 converts an sdfx box.
func FromBox3(b sdf.Box3) AABB {
	return AABB{Min: b.Min, Max: b.Max}
}

// Box3 converts to an sdfx box.
func (a AABB) Box3() sdf.Box3 {
	return sdf.Box3{Min: a.Min, Max: a.Max}
}

// Combine returns the union of both boxes.
func Combine(a, b AABB) AABB {
	a.Extend(b)
	return a
}

// Extend grows a in place so that it also bounds src.
func (a *AABB) Extend(src AABB) {
	a.Min = v3.Vec{X: math.Min(a.Min.X, src.Min.X), Y: math.Min(a.Min.Y, src.Min.Y), Z: math.Min(a.Min.Z, src.Min.Z)}
	a.Max = v3.Vec{X: math.Max(a.Max.X, src.Max.X), Y: math.Max(a.Max.Y, src.Max.Y), Z: math.Max(a.Max.Z, src.Max.Z)}
}

// ExtendPoint grows a in place so that it also bounds p.
func (a *AABB) ExtendPoint(p v3.Vec) {
	a.Extend(FromPoint(p))
}

// Center is the per-axis midpoint.
func (a AABB) Center() v3.Vec {
	return v3.Vec{
		X: a.Min.X + (a.Max.X-a.Min.X)/2,
		Y: a.Min.Y + (a.Max.Y-a.Min.Y)/2,
		Z: a.Min.Z + (a.Max.Z-a.Min.Z)/2,
	}
}

// Extent is Max - Min.
func (a AABB) Extent() v3.Vec {
	return a.Max.Sub(a.Min)
}

// HalfExtent is half of Extent.
func (a AABB) HalfExtent() v3.Vec {
	return a.Extent().MulScalar(0.5)
}

// LongestAxis returns the axis with the largest extent.
// X is compared against Y first; equal extents resolve to Z, which keeps split choices deterministic.
func (a AABB) LongestAxis() int {
	e := a.Extent()
	if e.X > e.Y {
		if e.X > e.Z {
			return AxisX
		}
		return AxisZ
	}
	if e.Y > e.Z {
		return AxisY
	}
	return AxisZ
}

// Intersects reports whether both boxes overlap. Touching boundaries count as overlapping.
func Intersects(a, b AABB) bool {
	if a.Max.X < b.Min.X || a.Min.X > b.Max.X {
		return false
	}
	if a.Max.Y < b.Min.Y || a.Min.Y > b.Max.Y {
		return false
	}
	if a.Max.Z < b.Min.Z || a.Min.Z > b.Max.Z {
		return false
	}
	return true
}

// Contains is an inclusive point-in-box test.
func (a AABB) Contains(p v3.Vec) bool {
	if p.X < a.Min.X || p.X > a.Max.X {
		return false
	}
	if p.Y < a.Min.Y || p.Y > a.Max.Y {
		return false
	}
	if p.Z < a.Min.Z || p.Z > a.Max.Z {
		return false
	}
	return true
}

// ExteriorDistanceSq is the squared distance from p to the box, zero when p is inside.
// It is a lower bound for the squared distance to anything the box bounds.
func (a AABB) ExteriorDistanceSq(p v3.Vec) float64 {
	distSq := 0.0
	for axis := AxisX; axis <= AxisZ; axis++ {
		v, lo, hi := Component(p, axis), Component(a.Min, axis), Component(a.Max, axis)
		if v < lo {
			distSq += (lo - v) * (lo - v)
		} else if v > hi {
			distSq += (v - hi) * (v - hi)
		}
	}
	return distSq
}

// Expand grows the box by d on every side.
func (a AABB) Expand(d float64) AABB {
	pad := v3.Vec{X: d, Y: d, Z: d}
	return AABB{Min: a.Min.Sub(pad), Max: a.Max.Add(pad)}
}

// Component returns the coordinate of v along axis.
func Component(v v3.Vec, axis int) float64 {
	switch axis {
	case AxisX:
		return v.X
	case AxisY:
		return v.Y
	default:
		return v.Z
	}
}
