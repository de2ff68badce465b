package probegi

import (
	"errors"
	"fmt"
	"os"

	"github.com/gekko3d/probegi/gi/gpu"
	"github.com/gekko3d/probegi/gi/scene"
	"github.com/gekko3d/probegi/gi/volume"
	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("probegi: invalid config")

// Config describes one bake: the probe grid, the lighting the surfels are
// shaded with and the reference scene they are captured from.
type Config struct {
	Volume   VolumeConfig   `yaml:"volume"`
	Lighting LightingConfig `yaml:"lighting"`
	Capture  CaptureConfig  `yaml:"capture"`
	Scene    SceneConfig    `yaml:"scene"`
	// DataPath is the volume data file. Empty keeps captures in memory only.
	DataPath string `yaml:"data_path"`
	// InjectWorkers bounds how many probes inject concurrently.
	InjectWorkers int `yaml:"inject_workers"`
	// GPU selects the wgpu backend instead of the host kernels.
	GPU bool `yaml:"gpu"`
}

type VolumeConfig struct {
	Dims              [3]int     `yaml:"dims,flow"`
	CellSize          float32    `yaml:"cell_size"`
	Anchor            mgl32.Vec3 `yaml:"anchor,flow"`
	SkyLightIntensity float32    `yaml:"sky_light_intensity"`
	GIIntensity       float32    `yaml:"gi_intensity"`
}

type LightingConfig struct {
	SunDirection mgl32.Vec3 `yaml:"sun_direction,flow"`
	SunColor     mgl32.Vec3 `yaml:"sun_color,flow"`
	Bounce       float32    `yaml:"bounce"`
}

type CaptureConfig struct {
	CubemapSize int `yaml:"cubemap_size"`
	// Seed pins the ray jitter for reproducible bakes. Unset draws a new one per capture.
	Seed *float32 `yaml:"seed,omitempty"`
}

type SceneConfig struct {
	Spheres []SphereConfig `yaml:"spheres"`
	Planes  []PlaneConfig  `yaml:"planes"`
}

type SphereConfig struct {
	Center mgl32.Vec3 `yaml:"center,flow"`
	Radius float32    `yaml:"radius"`
	Albedo mgl32.Vec3 `yaml:"albedo,flow"`
}

type PlaneConfig struct {
	Point  mgl32.Vec3 `yaml:"point,flow"`
	Normal mgl32.Vec3 `yaml:"normal,flow"`
	Albedo mgl32.Vec3 `yaml:"albedo,flow"`
}

// DefaultConfig is an 8x4x8 grid with 2 unit cells over a grey floor.
func DefaultConfig() Config {
	l := gpu.DefaultLighting()
	return Config{
		Volume: VolumeConfig{
			Dims:              [3]int{8, 4, 8},
			CellSize:          2,
			SkyLightIntensity: 1,
			GIIntensity:       1,
		},
		Lighting: LightingConfig{
			SunDirection: l.SunDirection,
			SunColor:     l.SunColor,
			Bounce:       l.Bounce,
		},
		Capture: CaptureConfig{CubemapSize: volume.DefaultCubemapSize},
		Scene: SceneConfig{
			Planes: []PlaneConfig{{
				Point:  mgl32.Vec3{0, -0.5, 0},
				Normal: mgl32.Vec3{0, 1, 0},
				Albedo: mgl32.Vec3{0.5, 0.5, 0.5},
			}},
		},
		InjectWorkers: 4,
	}
}

// LoadConfig reads a YAML bake file over DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Marshal renders the config as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

func (c Config) Validate() error {
	d := c.Volume.Dims
	if d[0] < 1 || d[1] < 1 || d[2] < 1 {
		return fmt.Errorf("%w: volume dims %v", ErrInvalidConfig, d)
	}
	if c.Volume.CellSize <= 0 {
		return fmt.Errorf("%w: cell size %g", ErrInvalidConfig, c.Volume.CellSize)
	}
	for _, f := range []float32{c.Volume.SkyLightIntensity, c.Volume.GIIntensity} {
		if f < volume.MinIntensity || f > volume.MaxIntensity {
			return fmt.Errorf("%w: intensity %g outside [%g,%g]", ErrInvalidConfig, f, volume.MinIntensity, volume.MaxIntensity)
		}
	}
	if c.Capture.CubemapSize < 0 {
		return fmt.Errorf("%w: cubemap size %d", ErrInvalidConfig, c.Capture.CubemapSize)
	}
	if s := c.Capture.Seed; s != nil && (*s < 0 || *s >= 1) {
		return fmt.Errorf("%w: seed %g outside [0,1)", ErrInvalidConfig, *s)
	}
	if c.InjectWorkers < 0 {
		return fmt.Errorf("%w: inject workers %d", ErrInvalidConfig, c.InjectWorkers)
	}
	for i, s := range c.Scene.Spheres {
		if s.Radius <= 0 {
			return fmt.Errorf("%w: sphere %d radius %g", ErrInvalidConfig, i, s.Radius)
		}
	}
	for i, p := range c.Scene.Planes {
		if p.Normal.LenSqr() == 0 {
			return fmt.Errorf("%w: plane %d has no normal", ErrInvalidConfig, i)
		}
	}
	return nil
}

// BuildScene turns the scene section into a reference raycast scene.
func (c Config) BuildScene() *scene.RaycastScene {
	sc := scene.NewRaycastScene()
	for _, s := range c.Scene.Spheres {
		sc.Add(scene.Sphere{Center: s.Center, Radius: s.Radius, Albedo: s.Albedo})
	}
	for _, p := range c.Scene.Planes {
		sc.Add(scene.Plane{Point: p.Point, Normal: p.Normal.Normalize(), Albedo: p.Albedo})
	}
	return sc
}

func (c Config) ShadingLighting() gpu.Lighting {
	return gpu.Lighting{
		SunDirection: c.Lighting.SunDirection,
		SunColor:     c.Lighting.SunColor,
		Bounce:       c.Lighting.Bounce,
	}
}

func (c Config) probeOptions(dev gpu.Device, k gpu.Kernels, logger Logger) volume.ProbeOptions {
	opts := volume.ProbeOptions{
		Device:      dev,
		Kernels:     k,
		CubemapSize: c.Capture.CubemapSize,
		Logger:      logger,
	}
	if s := c.Capture.Seed; s != nil {
		seed := *s
		opts.Seed = func() float32 { return seed }
	}
	return opts
}
