package meshsdf

import (
	"context"
	"github.com/cenkalti/backoff/v4"
	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/fogleman/fauxgl"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"path/filepath"
	"strings"
	"time"
)

//-----------------------------------------------------------------------------
// MESH SOURCES
//-----------------------------------------------------------------------------

// ShapeFromMesh builds a shape from a fauxgl mesh, welding vertices that share the exact same position.
func ShapeFromMesh(name string, mesh *fauxgl.Mesh, scale float64) (*Shape, error) {
	if mesh == nil {
		return nil, errors.Wrapf(ErrEmptyShape, "invalid shape %q", name)
	}
	w := newWelder(len(mesh.Triangles))
	for _, tri := range mesh.Triangles {
		w.add(toVec(tri.V1.Position))
		w.add(toVec(tri.V2.Position))
		w.add(toVec(tri.V3.Position))
	}
	return NewShape(name, w.positions, w.indices, scale)
}

// ShapeFromTriangles builds a shape from sdfx triangles (as produced by render.Render3), welding shared vertices.
func ShapeFromTriangles(name string, tris []*render.Triangle3, scale float64) (*Shape, error) {
	w := newWelder(len(tris))
	for _, tri := range tris {
		for _, v := range tri.V {
			w.add(v)
		}
	}
	return NewShape(name, w.positions, w.indices, scale)
}

// ShapeFromSDF3 meshes s with the given renderer (e.g. render.NewMarchingCubesUniform) and builds a shape from it.
func ShapeFromSDF3(name string, s sdf.SDF3, meshGenerator render.Render3, scale float64) (*Shape, error) {
	var tris []*render.Triangle3
	triChan := make(chan []*render.Triangle3)
	go func() {
		meshGenerator.Render(s, triChan)
		close(triChan)
	}()
	for batch := range triChan {
		tris = append(tris, batch...)
	}
	return ShapeFromTriangles(name, tris, scale)
}

// welder deduplicates bit-identical positions into an indexed buffer.
type welder struct {
	seen      map[v3.Vec]uint32
	positions []float64
	indices   []uint32
}

func newWelder(faces int) *welder {
	return &welder{
		seen:      make(map[v3.Vec]uint32, faces/2+1),
		positions: make([]float64, 0, faces*3),
		indices:   make([]uint32, 0, faces*3),
	}
}

func (w *welder) add(p v3.Vec) {
	idx, ok := w.seen[p]
	if !ok {
		idx = uint32(len(w.positions) / 3)
		w.seen[p] = idx
		w.positions = append(w.positions, p.X, p.Y, p.Z)
	}
	w.indices = append(w.indices, idx)
}

func toVec(v fauxgl.Vector) v3.Vec {
	return v3.Vec{X: v.X, Y: v.Y, Z: v.Z}
}

func toFauxgl(v v3.Vec) fauxgl.Vector {
	return fauxgl.Vector{X: v.X, Y: v.Y, Z: v.Z}
}

//-----------------------------------------------------------------------------
// FILES
//-----------------------------------------------------------------------------

// ErrUnsupportedFormat is returned for mesh files whose extension has no loader.
var ErrUnsupportedFormat = errors.New("meshsdf: unsupported mesh format")

// LoadMesh reads an STL, OBJ or PLY file (chosen by extension).
func LoadMesh(path string) (*fauxgl.Mesh, error) {
	var loader func(string) (*fauxgl.Mesh, error)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".stl":
		loader = fauxgl.LoadSTL
	case ".obj":
		loader = fauxgl.LoadOBJ
	case ".ply":
		loader = fauxgl.LoadPLY
	default:
		return nil, errors.Wrapf(ErrUnsupportedFormat, "%s", path)
	}
	mesh, err := loader(path)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s", path)
	}
	return mesh, nil
}

// loadMeshRetrying is LoadMesh with up to retries extra attempts on exponential backoff.
// Unsupported formats fail immediately.
func loadMeshRetrying(ctx context.Context, path string, retries uint64, logger *zap.SugaredLogger) (*fauxgl.Mesh, error) {
	var mesh *fauxgl.Mesh
	op := func() error {
		var err error
		mesh, err = LoadMesh(path)
		if errors.Is(err, ErrUnsupportedFormat) {
			return backoff.Permanent(err)
		}
		return err
	}
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 50 * time.Millisecond
	policy.MaxElapsedTime = 0 // bounded by retries
	b := backoff.WithContext(backoff.WithMaxRetries(policy, retries), ctx)
	err := backoff.RetryNotify(op, b, func(err error, wait time.Duration) {
		logger.Warnw("mesh load failed, retrying", "path", path, "error", err, "wait", wait)
	})
	return mesh, err
}
