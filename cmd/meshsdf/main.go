// Package main is the meshsdf command: it voxelizes mesh files into signed distance grids.
package main

import (
	"fmt"
	meshsdf "github.com/Yeicor/sdfx-meshsdf"
	"github.com/deadsy/sdfx/render"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"os"
	"os/signal"
)

const (
	// Flags.
	flagDebug       = "debug"
	flagCellSize    = "cell"
	flagPadding     = "padding"
	flagScale       = "scale"
	flagWorkers     = "workers"
	flagStrategy    = "strategy"
	flagSign        = "sign"
	flagRetries     = "retries"
	flagPoint       = "point"
	flagOut         = "out"
	flagIso         = "iso"
	flagMeshCells   = "mesh-cells"
	flagWidth       = "width"
	flagHeight      = "height"
	flagMode        = "mode"
	flagBVHDepth    = "bvh-depth"
	flagReconstruct = "reconstruct"
)

func main() {
	logger := zap.NewNop().Sugar()

	app := &cli.App{
		Name:  "meshsdf",
		Usage: "voxelize triangle meshes (STL, OBJ, PLY) into signed distance grids",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			var err error
			logger, err = newLogger(c.Bool(flagDebug))
			return err
		},
		After: func(c *cli.Context) error {
			_ = logger.Sync()
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "build",
				Usage:     "voxelize the files and print a summary of every grid",
				ArgsUsage: "<file>...",
				Flags:     gridFlags(),
				Action: func(c *cli.Context) error {
					obj, err := load(c, logger)
					if err != nil {
						return err
					}
					printSummary(c, obj)
					return nil
				},
			},
			{
				Name:      "query",
				Usage:     "print the closest surface point and the grid value at a point",
				ArgsUsage: "<file>...",
				Flags: append(gridFlags(), &cli.Float64SliceFlag{
					Name:     flagPoint,
					Usage:    "query point as `X,Y,Z`",
					Required: true,
				}),
				Action: func(c *cli.Context) error {
					coords := c.Float64Slice(flagPoint)
					if len(coords) != 3 {
						return errors.Errorf("--%s needs exactly 3 coordinates, got %d", flagPoint, len(coords))
					}
					obj, err := load(c, logger)
					if err != nil {
						return err
					}
					p := v3.Vec{X: coords[0], Y: coords[1], Z: coords[2]}
					closest := obj.Closest(p)
					fmt.Fprintf(c.App.Writer, "closest: shape=%s face=%d region=%s point=%v distance=%g\n",
						obj.Shapes[closest.Shape].Name, closest.Face, closest.Region, closest.Point, closest.Distance)
					for i, shape := range obj.Shapes {
						if v, ok := obj.Voxel(i, p); ok {
							fmt.Fprintf(c.App.Writer, "voxel: shape=%s value=%g\n", shape.Name, v)
						}
					}
					fmt.Fprintf(c.App.Writer, "interpolated: %g\n", obj.SDF3(0).Evaluate(p))
					return nil
				},
			},
			{
				Name:      "export",
				Usage:     "mesh the iso surface of the grids with marching cubes and write an STL file",
				ArgsUsage: "<file>...",
				Flags:     append(gridFlags(), exportFlags()...),
				Action: func(c *cli.Context) error {
					obj, err := load(c, logger)
					if err != nil {
						return err
					}
					return obj.ExportSTL(c.Path(flagOut), c.Float64(flagIso), render.NewMarchingCubesUniform(c.Int(flagMeshCells)))
				},
			},
			{
				Name:      "preview",
				Usage:     "render a PNG preview of the input (or of the reconstructed surface) with its BVH",
				ArgsUsage: "<file>...",
				Flags: append(gridFlags(),
					&cli.PathFlag{Name: flagOut, Usage: "output `PNG` file", Value: "preview.png"},
					&cli.IntFlag{Name: flagWidth, Usage: "image width", Value: 800},
					&cli.IntFlag{Name: flagHeight, Usage: "image height", Value: 600},
					&cli.StringFlag{Name: flagMode, Usage: "shading: phong, normals or wireframe", Value: "phong"},
					&cli.IntFlag{Name: flagBVHDepth, Usage: "draw this many BVH levels (0: none)"},
					&cli.IntFlag{Name: flagReconstruct, Usage: "preview the iso surface meshed with this many marching cubes (0: the input mesh)"},
					&cli.Float64Flag{Name: flagIso, Usage: "iso value of the reconstructed surface"},
				),
				Action: func(c *cli.Context) error {
					obj, err := load(c, logger)
					if err != nil {
						return err
					}
					opts := meshsdf.DefaultPreviewOptions()
					opts.Width, opts.Height = c.Int(flagWidth), c.Int(flagHeight)
					opts.BVHDepth = c.Int(flagBVHDepth)
					opts.Iso = c.Float64(flagIso)
					if cells := c.Int(flagReconstruct); cells > 0 {
						opts.Reconstruct = render.NewMarchingCubesUniform(cells)
					}
					switch c.String(flagMode) {
					case "phong":
						opts.Mode = meshsdf.PreviewPhong
					case "normals":
						opts.Mode = meshsdf.PreviewNormals
					case "wireframe":
						opts.Mode = meshsdf.PreviewWireframe
					default:
						return errors.Errorf("unknown --%s %q", flagMode, c.String(flagMode))
					}
					return obj.SavePreview(c.Path(flagOut), opts)
				},
			},
			{
				Name:      "watch",
				Usage:     "rebuild (and optionally export) every time one of the files changes",
				ArgsUsage: "<file>...",
				Flags: append(gridFlags(), append(exportFlags(),
					&cli.BoolFlag{Name: "export", Usage: "write the STL file after every rebuild"})...),
				Action: func(c *cli.Context) error {
					opts, err := options(c, logger)
					if err != nil {
						return err
					}
					ctx, stop := signal.NotifyContext(c.Context, signals()...)
					defer stop()
					return meshsdf.Watch(ctx, c.Args().Slice(), func(obj *meshsdf.Object, err error) {
						if err != nil {
							logger.Errorw("rebuild failed", "error", err)
							return
						}
						printSummary(c, obj)
						if c.Bool("export") {
							err = obj.ExportSTL(c.Path(flagOut), c.Float64(flagIso), render.NewMarchingCubesUniform(c.Int(flagMeshCells)))
							if err != nil {
								logger.Errorw("export failed", "error", err)
							}
						}
					}, opts...)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func gridFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Float64Flag{Name: flagCellSize, Usage: "grid cell size (after scaling)", Value: 0.1},
		&cli.IntFlag{Name: flagPadding, Usage: "extra cells around every shape", Value: 1},
		&cli.Float64Flag{Name: flagScale, Usage: "scale applied to the input vertices", Value: 1},
		&cli.IntFlag{Name: flagWorkers, Usage: "fill workers (0: one per CPU)"},
		&cli.StringFlag{Name: flagStrategy, Usage: "closest triangle search: nearest or range-expand", Value: "nearest"},
		&cli.StringFlag{Name: flagSign, Usage: "inside test: nearest-face or ray-parity", Value: "nearest-face"},
		&cli.Uint64Flag{Name: flagRetries, Usage: "retries for files that fail to load"},
	}
}

func exportFlags() []cli.Flag {
	return []cli.Flag{
		&cli.PathFlag{Name: flagOut, Usage: "output `STL` file", Value: "out.stl"},
		&cli.Float64Flag{Name: flagIso, Usage: "iso value of the exported surface"},
		&cli.IntFlag{Name: flagMeshCells, Usage: "marching cubes resolution along the longest axis", Value: 100},
	}
}

func options(c *cli.Context, logger *zap.SugaredLogger) ([]meshsdf.Option, error) {
	if c.NArg() == 0 {
		return nil, errors.New("at least one mesh file is required")
	}
	opts := []meshsdf.Option{
		meshsdf.OptLogger(logger),
		meshsdf.OptCellSize(c.Float64(flagCellSize)),
		meshsdf.OptPadding(c.Int(flagPadding)),
		meshsdf.OptScale(c.Float64(flagScale)),
		meshsdf.OptWorkers(c.Int(flagWorkers)),
		meshsdf.OptLoadRetries(c.Uint64(flagRetries)),
	}
	switch c.String(flagStrategy) {
	case meshsdf.FillNearest.String():
		opts = append(opts, meshsdf.OptFillStrategy(meshsdf.FillNearest))
	case meshsdf.FillRangeExpand.String():
		opts = append(opts, meshsdf.OptFillStrategy(meshsdf.FillRangeExpand))
	default:
		return nil, errors.Errorf("unknown --%s %q", flagStrategy, c.String(flagStrategy))
	}
	switch c.String(flagSign) {
	case meshsdf.SignNearestFace.String():
		opts = append(opts, meshsdf.OptSignMode(meshsdf.SignNearestFace))
	case meshsdf.SignRayParity.String():
		opts = append(opts, meshsdf.OptSignMode(meshsdf.SignRayParity))
	default:
		return nil, errors.Errorf("unknown --%s %q", flagSign, c.String(flagSign))
	}
	return opts, nil
}

func load(c *cli.Context, logger *zap.SugaredLogger) (*meshsdf.Object, error) {
	opts, err := options(c, logger)
	if err != nil {
		return nil, err
	}
	ctx, stop := signal.NotifyContext(c.Context, signals()...)
	defer stop()
	return meshsdf.Load(ctx, c.Args().Slice(), opts...)
}

func printSummary(c *cli.Context, obj *meshsdf.Object) {
	for i, shape := range obj.Shapes {
		g := obj.Grids[i]
		inside := 0
		for _, v := range g.Values {
			if v < 0 {
				inside++
			}
		}
		fmt.Fprintf(c.App.Writer, "%s: faces=%d vertices=%d bvh-depth=%d grid=%dx%dx%d cell=%g min=%v inside=%d/%d\n",
			shape.Name, shape.NumFaces(), shape.NumVertices(), shape.Tree.MaxDepth,
			g.NX, g.NY, g.NZ, g.CellSize, g.Min, inside, g.Len())
	}
	fmt.Fprintf(c.App.Writer, "fill time: %v\n", obj.FillTime)
}

func newLogger(debug bool) (*zap.SugaredLogger, error) {
	cfg := zap.Config{
		Level:    zap.NewAtomicLevelAt(zap.InfoLevel),
		Encoding: "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		DisableStacktrace: true,
		OutputPaths:       []string{"stderr"},
		ErrorOutputPaths:  []string{"stderr"},
	}
	if debug {
		cfg.Level.SetLevel(zap.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, errors.Wrap(err, "building logger")
	}
	return logger.Sugar(), nil
}
