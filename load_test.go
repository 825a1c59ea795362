package meshsdf

import (
	"context"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/pkg/errors"
	"go.viam.com/test"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeCubeSTL(t testing.TB, path string, scale float64) {
	t.Helper()
	s, err := NewShape("cube", cubePositions, cubeIndices, scale)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.Mesh().SaveSTL(path), test.ShouldBeNil)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cube.stl")
	writeCubeSTL(t, path, 1)

	o, err := Load(context.Background(), []string{path}, OptCellSize(0.5), OptScale(2))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, o.Shapes, test.ShouldHaveLength, 1)
	shape := o.Shapes[0]
	test.That(t, shape.Name, test.ShouldEqual, "cube")
	test.That(t, shape.NumFaces(), test.ShouldEqual, 12)
	test.That(t, shape.NumVertices(), test.ShouldEqual, 8)
	test.That(t, shape.Max.X, test.ShouldEqual, 2.)
	v, ok := o.Voxel(0, v3.Vec{})
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, v, test.ShouldAlmostEqual, -2.)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	unsupported := filepath.Join(dir, "cube.gltf")
	test.That(t, os.WriteFile(unsupported, []byte("{}"), 0o600), test.ShouldBeNil)

	_, err := LoadMesh(unsupported)
	test.That(t, errors.Is(err, ErrUnsupportedFormat), test.ShouldBeTrue)

	// Unsupported formats are not retried
	start := time.Now()
	_, err = Load(context.Background(), []string{unsupported}, OptLoadRetries(5))
	test.That(t, errors.Is(err, ErrUnsupportedFormat), test.ShouldBeTrue)
	test.That(t, time.Since(start), test.ShouldBeLessThan, time.Second)

	_, err = Load(context.Background(), []string{filepath.Join(dir, "missing.stl")}, OptLoadRetries(2))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestLoadRetriesUntilFileAppears(t *testing.T) {
	path := filepath.Join(t.TempDir(), "late.stl")
	writeCubeSTL(t, path+".tmp", 1)
	go func() {
		time.Sleep(100 * time.Millisecond)
		_ = os.Rename(path+".tmp", path)
	}()
	o, err := Load(context.Background(), []string{path}, OptLoadRetries(20))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, o.Shapes[0].NumFaces(), test.ShouldEqual, 12)
}
