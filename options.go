package meshsdf

import (
	"go.uber.org/zap"
)

//-----------------------------------------------------------------------------
// CONFIGURATION
//-----------------------------------------------------------------------------

// FillStrategy selects how each voxel finds its closest triangle.
type FillStrategy int

const (
	// FillNearest runs an exact branch-and-bound nearest query per voxel (default).
	FillNearest FillStrategy = iota
	// FillRangeExpand range-queries a box around the voxel, growing it one cell at a time until it reaches a face.
	// Faster on dense meshes, but the result is only an upper bound of the true distance.
	FillRangeExpand
)

func (s FillStrategy) String() string {
	if s == FillRangeExpand {
		return "range-expand"
	}
	return "nearest"
}

// SignMode selects how a voxel is classified as inside or outside.
type SignMode int

const (
	// SignNearestFace uses the side of the closest triangle's plane (default). Unreliable near sharp concave edges.
	SignNearestFace SignMode = iota
	// SignRayParity counts crossings of a +X ray: odd means inside. Needs a closed mesh.
	SignRayParity
)

func (s SignMode) String() string {
	if s == SignRayParity {
		return "ray-parity"
	}
	return "nearest-face"
}

type config struct {
	scale       float64
	cellSize    float64
	padding     int
	workers     int
	strategy    FillStrategy
	sign        SignMode
	logger      *zap.SugaredLogger
	loadRetries uint64
}

func defaultConfig() *config {
	return &config{
		scale:       1,
		cellSize:    0.1,
		padding:     1,
		workers:     0, // runtime.NumCPU()
		strategy:    FillNearest,
		sign:        SignNearestFace,
		logger:      zap.NewNop().Sugar(),
		loadRetries: 0,
	}
}

// Option configures how objects are loaded and voxelized.
type Option func(c *config)

// OptScale multiplies every vertex position at load time (default 1).
func OptScale(scale float64) Option {
	return func(c *config) {
		c.scale = scale
	}
}

// OptCellSize sets the lattice spacing of the generated grids (default 0.1, in model units after scaling).
func OptCellSize(cellSize float64) Option {
	return func(c *config) {
		c.cellSize = cellSize
	}
}

// OptPadding sets how many extra cells surround the shape bounds on every side (default 1).
func OptPadding(cells int) Option {
	return func(c *config) {
		c.padding = cells
	}
}

// OptWorkers sets the size of the worker pool used to fill each grid (default runtime.NumCPU()).
func OptWorkers(workers int) Option {
	return func(c *config) {
		c.workers = workers
	}
}

// OptFillStrategy selects the closest-triangle search used while filling grids.
func OptFillStrategy(strategy FillStrategy) Option {
	return func(c *config) {
		c.strategy = strategy
	}
}

// OptSignMode selects the inside/outside classifier.
func OptSignMode(mode SignMode) Option {
	return func(c *config) {
		c.sign = mode
	}
}

// OptLogger sets the logger (default: no logs). The library logs under the "meshsdf" name.
func OptLogger(logger *zap.SugaredLogger) Option {
	return func(c *config) {
		if logger == nil {
			logger = zap.NewNop().Sugar()
		}
		c.logger = logger
	}
}

// OptLoadRetries retries failed mesh loads with exponential backoff, useful while a file is still being written.
func OptLoadRetries(retries uint64) Option {
	return func(c *config) {
		c.loadRetries = retries
	}
}

func newConfig(opts []Option) *config {
	c := defaultConfig()
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("meshsdf")
	return c
}
