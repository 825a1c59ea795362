package meshsdf

import (
	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/fogleman/fauxgl"
	"github.com/pkg/errors"
)

//-----------------------------------------------------------------------------
// SDF -> MESH
//-----------------------------------------------------------------------------

// SDF3 is the union of the iso surfaces of every grid of the object.
func (o *Object) SDF3(iso float64) sdf.SDF3 {
	if len(o.Grids) == 1 {
		return o.Grids[0].SDF3(iso)
	}
	sdfs := make([]sdf.SDF3, len(o.Grids))
	for i, g := range o.Grids {
		sdfs[i] = g.SDF3(iso)
	}
	return sdf.Union3D(sdfs...)
}

// ToMesh runs meshGenerator (e.g. render.NewMarchingCubesUniform) over s and collects a flat-shaded fauxgl mesh.
func ToMesh(s sdf.SDF3, meshGenerator render.Render3) *fauxgl.Mesh {
	var triangles []*fauxgl.Triangle
	triChan := make(chan []*render.Triangle3)
	go func() {
		meshGenerator.Render(s, triChan)
		close(triChan)
	}()
	for tris := range triChan {
		for _, tri := range tris {
			if tri.Degenerate(0) {
				continue
			}
			n := tri.Normal()
			triangles = append(triangles, meshTriangle(tri.V, [3]v3.Vec{n, n, n}))
		}
	}
	return fauxgl.NewTriangleMesh(triangles)
}

// ExportSTL meshes the iso surface of the object and writes it as a binary STL file.
func (o *Object) ExportSTL(path string, iso float64, meshGenerator render.Render3) error {
	mesh := ToMesh(o.SDF3(iso), meshGenerator)
	if len(mesh.Triangles) == 0 {
		return errors.Errorf("iso surface %v of the object is empty, nothing to export", iso)
	}
	if err := mesh.SaveSTL(path); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	o.logger().Infow("mesh exported", "path", path, "triangles", len(mesh.Triangles), "iso", iso)
	return nil
}

// Mesh converts the shape back into a fauxgl mesh, smooth shaded with the averaged vertex normals.
func (s *Shape) Mesh() *fauxgl.Mesh {
	triangles := make([]*fauxgl.Triangle, s.NumFaces())
	for f := range triangles {
		var pos, normals [3]v3.Vec
		for i, idx := range s.Indices[3*f : 3*f+3] {
			pos[i], normals[i] = s.Vertex(int(idx)), s.VertexNormal(int(idx))
		}
		triangles[f] = meshTriangle(pos, normals)
	}
	return fauxgl.NewTriangleMesh(triangles)
}

// meshTriangle builds a white fauxgl triangle. Zero normals fall back to the face normal.
func meshTriangle(pos, normals [3]v3.Vec) *fauxgl.Triangle {
	var v [3]fauxgl.Vertex
	for i := range v {
		v[i] = fauxgl.Vertex{Position: toFauxgl(pos[i]), Normal: toFauxgl(normals[i]), Color: fauxgl.White}
	}
	return fauxgl.NewTriangle(v[0], v[1], v[2])
}
