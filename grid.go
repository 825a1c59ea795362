package meshsdf

import (
	"github.com/Yeicor/sdfx-meshsdf/internal/bvh"
	"github.com/barkimedes/go-deepcopy"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/pkg/errors"
	"math"
)

// Unset is the value of a voxel that no fill job has reached.
const Unset = 1e7

// ErrInvalidCellSize is returned for a cell size that is not a positive finite number.
var ErrInvalidCellSize = errors.New("meshsdf: cell size must be positive and finite")

// VoxelDebug records how the value of one voxel was computed.
type VoxelDebug struct {
	Triangle [3]v3.Vec
	Closest  v3.Vec
	Normal   v3.Vec // unit normal of Triangle
	Face     int
	Set      bool
}

// Grid is a dense signed distance field sampled on a lattice anchored at the world origin.
// Voxel (i, j, k) sits at Min + (i, j, k)*CellSize and is stored at index (k*NY+j)*NX+i.
// Positive values are outside the mesh.
type Grid struct {
	NX, NY, NZ int
	Min, Max   v3.Vec // first and last voxel center
	CellSize   float64
	Values     []float64
	Debug      []VoxelDebug
}

// NewGrid allocates the grid covering bounds grown by padding cells, snapped outwards to the lattice.
// Each axis has (snapped max - snapped min)/cellSize voxels, at least one, starting at the snapped min.
func NewGrid(bounds sdf.Box3, cellSize float64, padding int) (*Grid, error) {
	if !(cellSize > 0) || math.IsInf(cellSize, 0) {
		return nil, errors.Wrapf(ErrInvalidCellSize, "got %v", cellSize)
	}
	if padding < 0 {
		return nil, errors.Errorf("padding must not be negative, got %d", padding)
	}
	padded := bvh.FromBox3(bounds).Expand(cellSize * float64(padding))
	lo := v3.Vec{
		X: math.Floor(padded.Min.X / cellSize),
		Y: math.Floor(padded.Min.Y / cellSize),
		Z: math.Floor(padded.Min.Z / cellSize),
	}
	hi := v3.Vec{
		X: math.Ceil(padded.Max.X / cellSize),
		Y: math.Ceil(padded.Max.Y / cellSize),
		Z: math.Ceil(padded.Max.Z / cellSize),
	}
	g := &Grid{
		NX:       max(int(hi.X-lo.X), 1),
		NY:       max(int(hi.Y-lo.Y), 1),
		NZ:       max(int(hi.Z-lo.Z), 1),
		Min:      lo.MulScalar(cellSize),
		CellSize: cellSize,
	}
	g.Max = g.Min.Add(v3.Vec{X: float64(g.NX - 1), Y: float64(g.NY - 1), Z: float64(g.NZ - 1)}.MulScalar(cellSize))
	g.Values = make([]float64, g.Len())
	for i := range g.Values {
		g.Values[i] = Unset
	}
	g.Debug = make([]VoxelDebug, g.Len())
	return g, nil
}

// Len is the number of voxels.
func (g *Grid) Len() int {
	return g.NX * g.NY * g.NZ
}

// Index maps lattice coordinates to a position in Values.
func (g *Grid) Index(i, j, k int) int {
	return (k*g.NY+j)*g.NX + i
}

// Coords is the inverse of Index.
func (g *Grid) Coords(idx int) (i, j, k int) {
	i = idx % g.NX
	j = (idx / g.NX) % g.NY
	k = idx / (g.NX * g.NY)
	return
}

// Center is the world position of voxel idx.
func (g *Grid) Center(idx int) v3.Vec {
	i, j, k := g.Coords(idx)
	return g.Min.Add(v3.Vec{X: float64(i), Y: float64(j), Z: float64(k)}.MulScalar(g.CellSize))
}

// At returns the value of voxel (i, j, k).
func (g *Grid) At(i, j, k int) float64 {
	return g.Values[g.Index(i, j, k)]
}

// Bounds is the box spanned by the lattice points.
func (g *Grid) Bounds() sdf.Box3 {
	return sdf.Box3{Min: g.Min, Max: g.Max}
}

// Clone returns a deep copy that can be modified freely.
func (g *Grid) Clone() *Grid {
	return deepcopy.MustAnything(g).(*Grid)
}

// Unfilled counts the voxels still holding Unset.
func (g *Grid) Unfilled() int {
	n := 0
	for _, v := range g.Values {
		if v == Unset {
			n++
		}
	}
	return n
}
