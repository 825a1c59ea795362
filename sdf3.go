package meshsdf

import (
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"math"
)

// gridSDF3 exposes a Grid as an sdfx SDF3 through trilinear interpolation.
type gridSDF3 struct {
	g   *Grid
	iso float64
}

// SDF3 returns the grid as an sdf.SDF3 whose zero level set is the iso surface of the sampled field,
// so it can be meshed with any render.Render3 or combined with other sdfx shapes.
// Outside the lattice, the distance to the lattice box is added to the clamped sample.
func (g *Grid) SDF3(iso float64) sdf.SDF3 {
	return &gridSDF3{g: g, iso: iso}
}

func (s *gridSDF3) Evaluate(p v3.Vec) float64 {
	return s.g.Sample(p) - s.iso
}

// BoundingBox is the lattice box grown by one cell, so that surfaces lying on its last voxels still close.
func (s *gridSDF3) BoundingBox() sdf.Box3 {
	return s.g.Bounds().Enlarge(v3.Vec{X: 2, Y: 2, Z: 2}.MulScalar(s.g.CellSize))
}

// Sample interpolates the field at p.
func (g *Grid) Sample(p v3.Vec) float64 {
	clamped := p.Max(g.Min).Min(g.Max)
	outside := p.Sub(clamped).Length()
	u := clamped.Sub(g.Min).DivScalar(g.CellSize)
	i0, i1, tx := lerpAxis(u.X, g.NX)
	j0, j1, ty := lerpAxis(u.Y, g.NY)
	k0, k1, tz := lerpAxis(u.Z, g.NZ)

	c00 := lerp(g.At(i0, j0, k0), g.At(i1, j0, k0), tx)
	c10 := lerp(g.At(i0, j1, k0), g.At(i1, j1, k0), tx)
	c01 := lerp(g.At(i0, j0, k1), g.At(i1, j0, k1), tx)
	c11 := lerp(g.At(i0, j1, k1), g.At(i1, j1, k1), tx)
	c0 := lerp(c00, c10, ty)
	c1 := lerp(c01, c11, ty)
	return lerp(c0, c1, tz) + outside
}

func lerpAxis(u float64, n int) (lo, hi int, t float64) {
	lo = int(math.Floor(u))
	if lo < 0 {
		lo = 0
	}
	if lo > n-1 {
		lo = n - 1
	}
	hi = min(lo+1, n-1)
	t = u - float64(lo)
	if hi == lo {
		t = 0
	}
	return
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
