package probegi

import (
	"errors"
	"fmt"

	"github.com/gekko3d/probegi/gi/core"
	"github.com/gekko3d/probegi/gi/gpu"
	"github.com/gekko3d/probegi/gi/scene"
	"github.com/gekko3d/probegi/gi/store"
	"github.com/gekko3d/probegi/gi/volume"
	"github.com/go-gl/mathgl/mgl32"
)

// System wires a probe volume to a device, its kernels, a scene and a data
// store, and drives the start-up, bake and per-frame flows.
type System struct {
	Config Config
	Volume *volume.ProbeVolume
	Store  *store.Store
	Scene  scene.Scene
	// Profiler times the start, bake and step phases.
	Profiler *Profiler

	device  gpu.Device
	kernels gpu.Kernels
	release []func()
	logger  Logger

	loaded bool
	frames int
}

// NewSystem creates the device and kernels cfg selects. The scene defaults
// to cfg.BuildScene().
func NewSystem(cfg Config, logger Logger) (*System, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = NewNopLogger()
	}
	s := &System{Config: cfg, Profiler: NewProfiler(), logger: logger}

	lighting := cfg.ShadingLighting()
	if cfg.GPU {
		dev, err := gpu.NewWGPUDevice()
		if err != nil {
			return nil, fmt.Errorf("create wgpu device: %w", err)
		}
		k, err := gpu.NewWGPUKernels(dev, lighting)
		if err != nil {
			dev.Release()
			return nil, err
		}
		s.device, s.kernels = dev, k
		s.release = append(s.release, k.Release, dev.Release)
	} else {
		dev := gpu.NewHostDevice()
		k := gpu.NewHostKernels(dev, lighting)
		k.Workers = cfg.InjectWorkers
		s.device, s.kernels = dev, k
	}
	logger.Debugf("using %s device", s.device.Name())

	s.Volume = volume.NewProbeVolume(s.device, cfg.Volume.Anchor, componentLogger(logger, "volume"))
	s.Volume.SkyLightIntensity = cfg.Volume.SkyLightIntensity
	s.Volume.GIIntensity = cfg.Volume.GIIntensity
	s.Store = store.New(cfg.DataPath, componentLogger(logger, "store"))
	s.Scene = cfg.BuildScene()
	return s, nil
}

func (s *System) Device() gpu.Device { return s.device }

// Start generates the grid and restores persisted surfels when they still
// match it. Stale, missing or corrupt data is not an error; the volume then
// starts out empty until the next bake overwrites the file.
func (s *System) Start() error {
	defer s.Profiler.Scope("start")()
	d := s.Config.Volume.Dims
	opts := s.Config.probeOptions(s.device, s.kernels, componentLogger(s.logger, "probe"))
	if err := s.Volume.GenerateGrid(d[0], d[1], d[2], s.Config.Volume.CellSize, opts); err != nil {
		return err
	}
	s.frames = 0
	s.loaded = false

	err := s.Store.TryLoad(s.Volume)
	switch {
	case err == nil:
		s.loaded = true
		s.logger.Infof("restored %d probes", s.Volume.ProbeCount())
		s.Profiler.SetCount("probes", s.Volume.ProbeCount())
	case errors.Is(err, core.ErrStaleData):
		s.logger.Infof("no usable volume data, bake required")
	case errors.Is(err, store.ErrCorrupt):
		s.logger.Warnf("discarding unreadable volume data, bake required: %v", err)
	default:
		return err
	}
	return nil
}

// Loaded reports whether Start restored persisted surfels.
func (s *System) Loaded() bool { return s.loaded }

// Bake captures every probe from the scene and saves the result.
func (s *System) Bake() error {
	defer s.Profiler.Scope("bake")()
	s.Profiler.SetCount("probes", s.Volume.ProbeCount())
	if err := s.Volume.CaptureAll(s.Scene, s.Store); err != nil {
		return err
	}
	s.loaded = true
	return nil
}

// Step advances one frame: the buffers swap, the new current one is
// cleared and every probe injects into it, reading last frame's result as
// bounce history.
func (s *System) Step() error {
	if !s.Volume.Generated() {
		return fmt.Errorf("step: %w: volume not started", core.ErrUnallocated)
	}
	defer s.Profiler.Scope("step")()
	s.Volume.SwapTemporalBuffers()
	if err := s.Volume.ClearVoxelBuffer(); err != nil {
		return err
	}
	if err := s.Volume.Inject(s.Config.InjectWorkers, s.frames > 0); err != nil {
		return err
	}
	s.frames++
	s.Profiler.SetCount("frames", s.frames)
	return nil
}

func (s *System) Frames() int { return s.frames }

// Irradiance samples the current voxel buffer at pos for normal n.
func (s *System) Irradiance(pos, n mgl32.Vec3) (mgl32.Vec3, error) {
	return s.Volume.IrradianceAt(pos, n)
}

func (s *System) Release() {
	if s.Volume != nil {
		s.Volume.Release()
	}
	for _, fn := range s.release {
		fn()
	}
	s.release = nil
}
