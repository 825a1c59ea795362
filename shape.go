package meshsdf

import (
	"github.com/Yeicor/sdfx-meshsdf/internal/bvh"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"math"
)

// ErrEmptyShape is returned when a shape has no triangles to voxelize.
var ErrEmptyShape = errors.New("meshsdf: shape has no triangles")

// Shape is an indexed triangle mesh with its BVH. It is immutable once built and safe for concurrent queries.
type Shape struct {
	Name      string
	Positions []float64 // flat xyz, already scaled
	Indices   []uint32  // three per face, counter-clockwise seen from outside
	Normals   []float64 // flat xyz, averaged unit normal per vertex (zero for unreferenced or degenerate vertices)
	Min, Max  v3.Vec
	Tree      *bvh.Tree
}

// NewShape validates and copies the buffers, applies scale, and builds the BVH.
// Every validation problem is reported in the returned (multi) error.
func NewShape(name string, positions []float64, indices []uint32, scale float64) (*Shape, error) {
	var err error
	if !(scale > 0) || math.IsInf(scale, 0) {
		err = multierr.Append(err, errors.Errorf("scale must be positive and finite, got %v", scale))
	}
	if len(positions)%3 != 0 {
		err = multierr.Append(err, errors.Errorf("positions length %d is not a multiple of 3", len(positions)))
	}
	if len(indices)%3 != 0 {
		err = multierr.Append(err, errors.Errorf("indices length %d is not a multiple of 3", len(indices)))
	}
	vertexCount := uint32(len(positions) / 3)
	outOfRange := 0
	for _, idx := range indices {
		if idx >= vertexCount {
			outOfRange++
		}
	}
	if outOfRange > 0 {
		err = multierr.Append(err, errors.Errorf("%d indices out of range (%d vertices)", outOfRange, vertexCount))
	}
	for i, p := range positions {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			err = multierr.Append(err, errors.Errorf("position %d has a non-finite coordinate", i/3))
			break
		}
	}
	if len(indices) < 3 {
		err = multierr.Append(err, ErrEmptyShape)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "invalid shape %q", name)
	}

	s := &Shape{
		Name:      name,
		Positions: make([]float64, len(positions)),
		Indices:   append([]uint32(nil), indices...),
	}
	for i, p := range positions {
		s.Positions[i] = p * scale
	}
	s.computeBounds()
	s.computeNormals()
	s.Tree = bvh.BuildTriangles(s)
	return s, nil
}

// NumFaces implements bvh.Triangles.
func (s *Shape) NumFaces() int {
	return len(s.Indices) / 3
}

// Face implements bvh.Triangles.
func (s *Shape) Face(i int) (a, b, c v3.Vec) {
	return s.Vertex(int(s.Indices[3*i])), s.Vertex(int(s.Indices[3*i+1])), s.Vertex(int(s.Indices[3*i+2]))
}

// NumVertices is the number of positions.
func (s *Shape) NumVertices() int {
	return len(s.Positions) / 3
}

// Vertex returns the position of vertex i.
func (s *Shape) Vertex(i int) v3.Vec {
	return v3.Vec{X: s.Positions[3*i], Y: s.Positions[3*i+1], Z: s.Positions[3*i+2]}
}

// VertexNormal returns the averaged unit normal of vertex i.
func (s *Shape) VertexNormal(i int) v3.Vec {
	return v3.Vec{X: s.Normals[3*i], Y: s.Normals[3*i+1], Z: s.Normals[3*i+2]}
}

// Bounds is the box spanned by every position of the shape.
func (s *Shape) Bounds() sdf.Box3 {
	return sdf.Box3{Min: s.Min, Max: s.Max}
}

func (s *Shape) computeBounds() {
	s.Min = v3.Vec{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
	s.Max = v3.Vec{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)}
	for i := 0; i < s.NumVertices(); i++ {
		p := s.Vertex(i)
		s.Min = s.Min.Min(p)
		s.Max = s.Max.Max(p)
	}
}

func (s *Shape) computeNormals() {
	s.Normals = make([]float64, len(s.Positions))
	for f := 0; f < s.NumFaces(); f++ {
		n := bvh.SafeNormalize(bvh.Normal(s.Face(f)))
		for _, idx := range s.Indices[3*f : 3*f+3] {
			s.Normals[3*idx] += n.X
			s.Normals[3*idx+1] += n.Y
			s.Normals[3*idx+2] += n.Z
		}
	}
	for i := 0; i < s.NumVertices(); i++ {
		n := bvh.SafeNormalize(s.VertexNormal(i))
		s.Normals[3*i], s.Normals[3*i+1], s.Normals[3*i+2] = n.X, n.Y, n.Z
	}
}
