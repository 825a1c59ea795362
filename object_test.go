package meshsdf

import (
	"context"
	"fmt"
	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/pkg/errors"
	"go.uber.org/zap/zaptest"
	"go.viam.com/test"
	"math"
	"testing"
)

func cubeObject(t testing.TB, opts ...Option) *Object {
	t.Helper()
	opts = append([]Option{OptCellSize(0.5), OptPadding(1)}, opts...)
	o, err := New(context.Background(), []*Shape{cubeShape(t)}, opts...)
	test.That(t, err, test.ShouldBeNil)
	return o
}

func TestCubeGridSigns(t *testing.T) {
	o := cubeObject(t, OptLogger(zaptest.NewLogger(t).Sugar()))
	g := o.Grids[0]
	test.That(t, g.Unfilled(), test.ShouldEqual, 0)

	inside, ok := o.Voxel(0, v3.Vec{})
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, inside, test.ShouldAlmostEqual, -1.)

	outside, ok := o.Voxel(0, v3.Vec{X: 5, Y: 5, Z: 5})
	test.That(t, ok, test.ShouldBeFalse) // beyond the padding layer
	test.That(t, outside, test.ShouldEqual, 0.)
	test.That(t, [3]int{g.NX, g.NY, g.NZ}, test.ShouldResemble, [3]int{6, 6, 6})
	test.That(t, math.Abs(g.At(0, 0, 0)), test.ShouldAlmostEqual, math.Sqrt(0.75), 1e-12)
	test.That(t, g.At(g.NX-1, g.NY-1, g.NZ-1), test.ShouldAlmostEqual, 0., 1e-12) // the (1, 1, 1) corner

	for idx, v := range g.Values {
		c := g.Center(idx)
		exact := cubeDistance(c)
		test.That(t, math.Abs(v), test.ShouldAlmostEqual, math.Abs(exact), 1e-12)
		d := g.Debug[idx]
		test.That(t, d.Set, test.ShouldBeTrue)
		test.That(t, d.Normal.Length(), test.ShouldAlmostEqual, 1.)
		test.That(t, d.Closest.Sub(c).Length(), test.ShouldAlmostEqual, math.Abs(v), 1e-12)
		if math.Abs(exact) < 1e-12 {
			continue
		}
		// The sign comes from the orientation of the closest face alone
		test.That(t, math.Signbit(v), test.ShouldEqual, d.Normal.Dot(c.Sub(d.Closest)) <= 0)
		if !onCubeEdge(d.Closest) {
			test.That(t, math.Signbit(v), test.ShouldEqual, exact < 0)
		}
	}
}

// onCubeEdge reports whether p lies on an edge (or corner) of the [-1, 1]^3 cube.
func onCubeEdge(p v3.Vec) bool {
	n := 0
	for _, x := range []float64{p.X, p.Y, p.Z} {
		if math.Abs(math.Abs(x)-1) < 1e-12 {
			n++
		}
	}
	return n >= 2
}

// cubeDistance is the exact signed distance to the [-1, 1]^3 cube.
func cubeDistance(p v3.Vec) float64 {
	q := p.Abs().SubScalar(1)
	outside := q.Max(v3.Vec{}).Length()
	inside := math.Min(math.Max(q.X, math.Max(q.Y, q.Z)), 0)
	return outside + inside
}

func TestFillIndependentOfWorkers(t *testing.T) {
	ref := cubeObject(t, OptWorkers(1), OptCellSize(0.3))
	for _, workers := range []int{2, 3, 7, 64, 5000} {
		t.Run(fmt.Sprint(workers), func(t *testing.T) {
			o := cubeObject(t, OptWorkers(workers), OptCellSize(0.3))
			test.That(t, o.Grids[0].Values, test.ShouldResemble, ref.Grids[0].Values)
		})
	}
}

func TestFillRangeExpand(t *testing.T) {
	exact := cubeObject(t, OptCellSize(0.25))
	approx := cubeObject(t, OptCellSize(0.25), OptFillStrategy(FillRangeExpand))
	for idx, v := range approx.Grids[0].Values {
		test.That(t, math.Abs(v), test.ShouldBeGreaterThanOrEqualTo, math.Abs(exact.Grids[0].Values[idx])-1e-12)
	}
	test.That(t, approx.Grids[0].Unfilled(), test.ShouldEqual, 0)
}

func TestFillRayParity(t *testing.T) {
	nearest := cubeObject(t, OptCellSize(0.3))
	parity := cubeObject(t, OptCellSize(0.3), OptSignMode(SignRayParity))
	g := parity.Grids[0]
	for idx, v := range g.Values {
		test.That(t, math.Abs(v), test.ShouldEqual, math.Abs(nearest.Grids[0].Values[idx]))
		if exact := cubeDistance(g.Center(idx)); math.Abs(exact) > 1e-9 {
			test.That(t, math.Signbit(v), test.ShouldEqual, exact < 0)
		}
	}

	// Next to the edges of a closed mesh ray parity gets the sign right where the nearest face may not
	o := cubeObject(t, OptSignMode(SignRayParity))
	for idx, v := range o.Grids[0].Values {
		if exact := cubeDistance(o.Grids[0].Center(idx)); math.Abs(exact) > 1e-12 {
			test.That(t, math.Signbit(v), test.ShouldEqual, exact < 0)
		}
	}
}

func TestObjectMultipleShapes(t *testing.T) {
	small, err := NewShape("small", cubePositions, cubeIndices, 0.5)
	test.That(t, err, test.ShouldBeNil)
	o, err := New(context.Background(), []*Shape{cubeShape(t), small}, OptCellSize(0.25))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, o.Grids, test.ShouldHaveLength, 2)
	test.That(t, o.Grids[1].NX, test.ShouldBeLessThan, o.Grids[0].NX)
	test.That(t, o.FillTime > 0, test.ShouldBeTrue)
	test.That(t, o.Bounds(), test.ShouldResemble, cubeShape(t).Bounds())

	res := o.Closest(v3.Vec{X: 5})
	test.That(t, res.Shape, test.ShouldEqual, 0)
	test.That(t, res.Distance, test.ShouldAlmostEqual, 4.)
	vecShouldBeNear(t, res.Point, v3.Vec{X: 1}, 1e-12)

	res = o.Closest(v3.Vec{})
	test.That(t, res.Shape, test.ShouldEqual, 1) // the inner cube is closer
	test.That(t, res.Distance, test.ShouldAlmostEqual, 0.5)
}

func TestObjectErrors(t *testing.T) {
	_, err := New(context.Background(), nil)
	test.That(t, errors.Is(err, ErrEmptyShape), test.ShouldBeTrue)

	_, err = New(context.Background(), []*Shape{cubeShape(t)}, OptCellSize(0))
	test.That(t, errors.Is(err, ErrInvalidCellSize), test.ShouldBeTrue)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = New(ctx, []*Shape{cubeShape(t)})
	test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)
}

func TestFillCancelled(t *testing.T) {
	g, err := NewGrid(cubeShape(t).Bounds(), 0.1, 1)
	test.That(t, err, test.ShouldBeNil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = Fill(ctx, g, cubeShape(t), OptWorkers(2))
	test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)
	test.That(t, g.Unfilled(), test.ShouldEqual, g.Len())
}

func TestSphereFromSDF3(t *testing.T) {
	sphere, err := sdf.Sphere3D(1)
	test.That(t, err, test.ShouldBeNil)
	shape, err := ShapeFromSDF3("sphere", sphere, render.NewMarchingCubesUniform(40), 1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, shape.NumFaces(), test.ShouldBeGreaterThan, 100)

	o, err := New(context.Background(), []*Shape{shape}, OptCellSize(0.1), OptPadding(5))
	test.That(t, err, test.ShouldBeNil)
	s := o.SDF3(0)
	test.That(t, s.Evaluate(v3.Vec{}), test.ShouldAlmostEqual, -1., 0.05)
	test.That(t, s.Evaluate(v3.Vec{X: 1.5}), test.ShouldAlmostEqual, 0.5, 0.05)
	test.That(t, s.Evaluate(v3.Vec{Y: -1}), test.ShouldAlmostEqual, 0., 0.05)
}

func BenchmarkFill(b *testing.B) {
	sphere, _ := sdf.Sphere3D(1)
	shape, err := ShapeFromSDF3("sphere", sphere, render.NewMarchingCubesUniform(60), 1)
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		g, err := NewGrid(shape.Bounds(), 0.05, 1)
		if err != nil {
			b.Fatal(err)
		}
		if err = Fill(context.Background(), g, shape); err != nil {
			b.Fatal(err)
		}
	}
}
