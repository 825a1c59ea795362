// Package meshsdf voxelizes triangle meshes into dense signed distance grids that plug into sdfx as SDF3 shapes.
//
// Each shape gets a BVH over its triangles; every voxel of its grid is then filled in parallel from the closest
// triangle, with the sign taken from that triangle's orientation (or from ray parity, see OptSignMode).
package meshsdf

import (
	"context"
	"github.com/Yeicor/sdfx-meshsdf/internal/bvh"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"math"
	"path/filepath"
	"strings"
	"time"
)

// Object is a collection of shapes and their signed distance grids (Grids[i] belongs to Shapes[i]).
type Object struct {
	Shapes   []*Shape
	Grids    []*Grid
	FillTime time.Duration // total time spent filling grids
	cfg      *config
}

// logger is the configured logger, or a no-op one for objects not built by Load or New.
func (o *Object) logger() *zap.SugaredLogger {
	if o.cfg == nil {
		return zap.NewNop().Sugar()
	}
	return o.cfg.logger
}

// Load reads every mesh file as one shape and voxelizes them.
func Load(ctx context.Context, paths []string, opts ...Option) (*Object, error) {
	cfg := newConfig(opts)
	shapes := make([]*Shape, 0, len(paths))
	for _, path := range paths {
		shape, err := loadShape(ctx, path, cfg)
		if err != nil {
			return nil, err
		}
		shapes = append(shapes, shape)
	}
	return newObject(ctx, shapes, cfg)
}

// New voxelizes already built shapes.
func New(ctx context.Context, shapes []*Shape, opts ...Option) (*Object, error) {
	return newObject(ctx, shapes, newConfig(opts))
}

func loadShape(ctx context.Context, path string, cfg *config) (*Shape, error) {
	start := time.Now()
	mesh, err := loadMeshRetrying(ctx, path, cfg.loadRetries, cfg.logger)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	shape, err := ShapeFromMesh(name, mesh, cfg.scale)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s", path)
	}
	cfg.logger.Infow("shape loaded", "path", path, "faces", shape.NumFaces(), "vertices", shape.NumVertices(),
		"bvhDepth", shape.Tree.MaxDepth, "elapsed", time.Since(start))
	return shape, nil
}

func newObject(ctx context.Context, shapes []*Shape, cfg *config) (*Object, error) {
	if len(shapes) == 0 {
		return nil, ErrEmptyShape
	}
	o := &Object{Shapes: shapes, cfg: cfg}
	// Validate every grid before filling any of them
	for _, shape := range shapes {
		g, err := NewGrid(shape.Bounds(), cfg.cellSize, cfg.padding)
		if err != nil {
			return nil, errors.Wrapf(err, "shape %q", shape.Name)
		}
		o.Grids = append(o.Grids, g)
	}
	for i, shape := range shapes {
		g := o.Grids[i]
		start := time.Now()
		if err := fill(ctx, g, shape, cfg); err != nil {
			return nil, errors.Wrapf(err, "filling shape %q", shape.Name)
		}
		elapsed := time.Since(start)
		o.FillTime += elapsed
		cfg.logger.Infow("grid filled", "shape", shape.Name, "dims", [3]int{g.NX, g.NY, g.NZ},
			"voxels", g.Len(), "strategy", cfg.strategy, "sign", cfg.sign, "elapsed", elapsed)
	}
	cfg.logger.Infow("object ready", "shapes", len(shapes), "fillTime", o.FillTime)
	return o, nil
}

// Closest is the answer of a point query against an Object.
type Closest struct {
	Shape    int // index into Object.Shapes
	Face     int
	Point    v3.Vec
	Distance float64
	Region   string // closest triangle feature: vertex-a, edge-ab, face...
}

// Closest finds the surface point closest to p over every shape, using the exact BVH query.
func (o *Object) Closest(p v3.Vec) Closest {
	res := Closest{Shape: -1, Face: -1, Distance: math.Inf(1)}
	for i, shape := range o.Shapes {
		c := shape.Tree.Nearest(shape, p)
		if d := math.Sqrt(c.DistSq); c.Face.Valid() && d < res.Distance {
			res = Closest{Shape: i, Face: int(c.Face), Point: c.Point, Distance: d, Region: c.Region.String()}
		}
	}
	return res
}

// Bounds is the union of the bounds of every shape.
func (o *Object) Bounds() sdf.Box3 {
	box := bvh.FromBox3(o.Shapes[0].Bounds())
	for _, shape := range o.Shapes[1:] {
		box.Extend(bvh.FromBox3(shape.Bounds()))
	}
	return box.Box3()
}

// Voxel returns the grid value nearest to p for the given shape, and false if p is outside that grid.
func (o *Object) Voxel(shape int, p v3.Vec) (float64, bool) {
	g := o.Grids[shape]
	u := p.Sub(g.Min).DivScalar(g.CellSize)
	i, j, k := int(math.Round(u.X)), int(math.Round(u.Y)), int(math.Round(u.Z))
	if i < 0 || j < 0 || k < 0 || i >= g.NX || j >= g.NY || k >= g.NZ {
		return 0, false
	}
	return g.At(i, j, k), true
}
