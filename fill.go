package meshsdf

import (
	"context"
	"github.com/Yeicor/sdfx-meshsdf/internal/bvh"
	"github.com/Yeicor/sdfx-meshsdf/internal/jobs"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/pkg/errors"
	"math"
	"sort"
)

// cancelCheckEvery is how many voxels a job fills between context checks.
const cancelCheckEvery = 4096

// parityRay is the direction used by SignRayParity: mostly +X, tilted off the lattice so rays avoid mesh edges.
var parityRay = v3.Vec{X: 1, Y: math.Pi * 1e-4, Z: math.E * 1e-4}

// Fill computes every voxel of g from the closest triangle of s.
// The voxels are split into one contiguous range per worker; the last range takes the remainder.
// Cancelling ctx stops the fill early, leaving Unset voxels behind, and returns ctx.Err().
func Fill(ctx context.Context, g *Grid, s *Shape, opts ...Option) error {
	return fill(ctx, g, s, newConfig(opts))
}

func fill(ctx context.Context, g *Grid, s *Shape, cfg *config) error {
	pool := jobs.NewPool(cfg.workers, cfg.logger)
	total := g.Len()
	workers := pool.Workers()
	each := total / workers
	for w := 0; w < workers; w++ {
		begin, end := each*w, each*(w+1)
		if w == workers-1 {
			end = total
		}
		if begin == end {
			continue
		}
		f := &filler{grid: g, shape: s, strategy: cfg.strategy, sign: cfg.sign, searcher: s.Tree.NewSearcher()}
		if err := pool.Enqueue(func() { f.fillRange(ctx, begin, end) }); err != nil {
			pool.Join(jobs.ShutdownImmediate)
			return errors.Wrap(err, "scheduling fill")
		}
	}
	mode := jobs.ShutdownGraceful
	if ctx.Err() != nil {
		mode = jobs.ShutdownImmediate
	}
	if discarded := pool.Join(mode); discarded > 0 {
		cfg.logger.Debugw("fill cancelled before some ranges started", "shape", s.Name, "ranges", discarded)
	}
	return ctx.Err()
}

// filler is the state of one fill job. Jobs write disjoint voxel ranges, so they share the grid without locking.
type filler struct {
	grid     *Grid
	shape    *Shape
	strategy FillStrategy
	sign     SignMode
	searcher *bvh.Searcher
	found    []int
	hits     []float64
}

func (f *filler) fillRange(ctx context.Context, begin, end int) {
	for idx := begin; idx < end; idx++ {
		if (idx-begin)%cancelCheckEvery == 0 && ctx.Err() != nil {
			return
		}
		f.fillVoxel(idx)
	}
}

func (f *filler) fillVoxel(idx int) {
	center := f.grid.Center(idx)
	var best bvh.Closest
	if f.strategy == FillRangeExpand {
		best = f.nearestByRange(center)
	} else {
		best = f.searcher.Nearest(f.shape, center)
	}
	if !best.Face.Valid() {
		return
	}
	a, b, c := f.shape.Face(int(best.Face))
	normal := bvh.Normal(a, b, c)
	dist := math.Sqrt(best.DistSq)
	if f.inside(center, best.Point, normal) {
		dist = -dist
	}
	f.grid.Values[idx] = dist
	f.grid.Debug[idx] = VoxelDebug{
		Triangle: [3]v3.Vec{a, b, c},
		Closest:  best.Point,
		Normal:   bvh.SafeNormalize(normal),
		Face:     int(best.Face),
		Set:      true,
	}
}

func (f *filler) inside(center, closest, normal v3.Vec) bool {
	if f.sign == SignRayParity {
		return f.rayParity(center)
	}
	return normal.Dot(center.Sub(closest)) <= 0
}

// rayParity reports whether a ray from p crosses the mesh an odd number of times.
// Crossings at the same distance (a shared edge) count once.
func (f *filler) rayParity(p v3.Vec) bool {
	f.hits = f.hits[:0]
	f.searcher.Raycast(f.shape, p, parityRay, func(_ int, h bvh.RayHit) bool {
		f.hits = append(f.hits, h.T)
		return true
	})
	sort.Float64s(f.hits)
	crossings := 0
	for i, t := range f.hits {
		if i == 0 || t-f.hits[i-1] > 1e-9*math.Max(1, t) {
			crossings++
		}
	}
	return crossings%2 == 1
}

// nearestByRange searches a cell-sized box around p, growing it by one cell until some face is reached,
// and returns the closest point among the faces found.
// The faces found are only those near the box, so the distance can exceed the exact one.
func (f *filler) nearestByRange(p v3.Vec) bvh.Closest {
	best := bvh.Closest{DistSq: math.Inf(1), Face: bvh.None}
	cell := f.grid.CellSize
	box := bvh.FromPoint(p).Expand(cell)
	for {
		f.found = f.searcher.Intersect(box, f.found[:0])
		if len(f.found) > 0 || f.shape.NumFaces() == 0 {
			break
		}
		box = box.Expand(cell)
	}
	for _, face := range f.found {
		a, b, c := f.shape.Face(face)
		q, region := bvh.ClosestPoint(p, a, b, c)
		d := q.Sub(p)
		if distSq := d.Dot(d); distSq < best.DistSq {
			best = bvh.Closest{DistSq: distSq, Point: q, Face: bvh.Index(face), Region: region}
		}
	}
	return best
}
