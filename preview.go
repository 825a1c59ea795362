package meshsdf

import (
	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/fogleman/fauxgl"
	"github.com/pkg/errors"
	"golang.org/x/image/draw"
	"image"
	"image/color"
	"math"
)

//-----------------------------------------------------------------------------
// CONFIGURATION
//-----------------------------------------------------------------------------

// PreviewMode selects the shading of Preview.
type PreviewMode int

const (
	// PreviewPhong is a constant color with one light.
	PreviewPhong PreviewMode = iota
	// PreviewNormals maps the unit normal from [-1, 1] to RGB.
	PreviewNormals
	// PreviewWireframe is PreviewNormals drawing only triangle edges.
	PreviewWireframe
)

// PreviewOptions configures Preview. The zero value is not usable: start from DefaultPreviewOptions.
type PreviewOptions struct {
	Width, Height int
	Supersample   int // render at this many times the output size, then downscale
	Mode          PreviewMode
	FovDegrees    float64
	// BVHDepth draws the boxes of the first BVH levels over the surface (0 draws none).
	BVHDepth int
	// Reconstruct, when set, previews the iso surface of the grids (meshed by this renderer) instead of the input.
	Reconstruct render.Render3
	Iso         float64
	Surface     color.RGBA
	Background  color.RGBA
	Boxes       color.RGBA
}

// DefaultPreviewOptions renders the input shapes at 800x600 without BVH boxes.
func DefaultPreviewOptions() PreviewOptions {
	return PreviewOptions{
		Width:       800,
		Height:      600,
		Supersample: 2,
		Mode:        PreviewPhong,
		FovDegrees:  60,
		Surface:     color.RGBA{R: 200, G: 200, B: 220, A: 255},
		Background:  color.RGBA{R: 30, G: 30, B: 40, A: 255},
		Boxes:       color.RGBA{R: 255, G: 160, A: 255},
	}
}

//-----------------------------------------------------------------------------
// RENDERER
//-----------------------------------------------------------------------------

// Preview rasterizes the object from a fixed camera looking 45º down and 45º to the side.
func (o *Object) Preview(opts PreviewOptions) (*image.NRGBA, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, errors.Errorf("invalid preview size %dx%d", opts.Width, opts.Height)
	}
	if opts.Supersample < 1 {
		opts.Supersample = 1
	}
	width, height := opts.Width*opts.Supersample, opts.Height*opts.Supersample

	mesh := fauxgl.NewEmptyMesh()
	if opts.Reconstruct != nil {
		mesh.Add(ToMesh(o.SDF3(opts.Iso), opts.Reconstruct))
	} else {
		for _, shape := range o.Shapes {
			mesh.Add(shape.Mesh())
		}
	}

	bounds := o.Bounds()
	matrix, camPos := previewCamera(bounds, float64(width)/float64(height), opts.FovDegrees)
	raster := fauxgl.NewContext(width, height)
	raster.ClearColorBufferWith(fauxgl.MakeColor(opts.Background))
	raster.Cull = fauxgl.CullNone
	if opts.Mode == PreviewPhong {
		shader := fauxgl.NewPhongShader(matrix, fauxgl.Vector{X: -1, Y: 1, Z: -2}.Normalize(), toFauxgl(camPos))
		shader.ObjectColor = fauxgl.MakeColor(opts.Surface)
		raster.Shader = shader
	} else {
		raster.Shader = &normalShader{matrix}
		raster.Wireframe = opts.Mode == PreviewWireframe
	}
	raster.DrawMesh(mesh)

	if opts.BVHDepth > 0 {
		// Boxes are drawn on top of the surface
		raster.Shader = fauxgl.NewSolidColorShader(matrix, fauxgl.MakeColor(opts.Boxes))
		raster.Wireframe = true
		raster.ReadDepth = false
		for _, shape := range o.Shapes {
			for _, box := range shape.Tree.Boxes(opts.BVHDepth) {
				raster.DrawMesh(fauxgl.NewCubeOutlineForBox(fauxgl.Box{Min: toFauxgl(box.Min), Max: toFauxgl(box.Max)}))
			}
		}
	}

	full := raster.Image()
	out := image.NewNRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	draw.CatmullRom.Scale(out, out.Bounds(), full, full.Bounds(), draw.Src, nil)
	return out, nil
}

// SavePreview renders a preview and writes it as a PNG file.
func (o *Object) SavePreview(path string, opts PreviewOptions) error {
	img, err := o.Preview(opts)
	if err != nil {
		return err
	}
	if err = fauxgl.SavePNG(path, img); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	o.logger().Infow("preview saved", "path", path, "width", opts.Width, "height", opts.Height)
	return nil
}

func previewCamera(bounds sdf.Box3, aspectRatio, fovDegrees float64) (fauxgl.Matrix, v3.Vec) {
	center := bounds.Center()
	radius := math.Max(bounds.Size().Length()/2, 1e-9)
	dist := radius / math.Sin(fovDegrees*math.Pi/360) * 1.1
	camPos := center.Add(v3.Vec{X: 1, Y: -1, Z: 1}.Normalize().MulScalar(dist))
	matrix := fauxgl.LookAt(toFauxgl(camPos), toFauxgl(center), fauxgl.Vector{Z: 1}).
		Perspective(fovDegrees, aspectRatio, dist*1e-3, dist+radius*2)
	return matrix, camPos
}

// normalShader paints each fragment with its interpolated normal, remapped to [0, 1] per channel.
type normalShader struct {
	matrix fauxgl.Matrix
}

func (shader *normalShader) Vertex(v fauxgl.Vertex) fauxgl.Vertex {
	v.Output = shader.matrix.MulPositionW(v.Position)
	return v
}

func (shader *normalShader) Fragment(v fauxgl.Vertex) fauxgl.Color {
	n := v.Normal
	if length := n.Length(); length > 0 {
		n = n.DivScalar(length)
	}
	n = n.AddScalar(1).DivScalar(2)
	return fauxgl.Color{R: n.X, G: n.Y, B: n.Z, A: 1}
}
