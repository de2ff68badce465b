package volume

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gekko3d/probegi/gi/core"
	"github.com/gekko3d/probegi/gi/gpu"
	"github.com/go-gl/mathgl/mgl32"
)

var ErrInvalidGrid = errors.New("volume: grid dimensions and cell size must be positive")

type VolumeDebugMode int

const (
	VolumeDebugNone VolumeDebugMode = iota
	VolumeDebugProbeGrid
	VolumeDebugProbeRadiance
)

func (m VolumeDebugMode) String() string {
	switch m {
	case VolumeDebugNone:
		return "none"
	case VolumeDebugProbeGrid:
		return "probe-grid"
	case VolumeDebugProbeRadiance:
		return "probe-radiance"
	}
	return fmt.Sprintf("VolumeDebugMode(%d)", int(m))
}

// Intensity bounds for the shading uniforms.
const (
	MinIntensity = 0.0
	MaxIntensity = 50.0
)

// ProbeVolume is a regular grid of probes anchored at its minimum corner,
// with the current and previous voxel SH9 buffers read by shading.
type ProbeVolume struct {
	Device            gpu.Device
	SkyLightIntensity float32
	GIIntensity       float32
	DebugMode         VolumeDebugMode

	anchor   mgl32.Vec3
	size     core.GridSize
	cellSize float32
	probes   []*Probe
	voxels   voxelBuffers
	logger   core.Logger
}

func NewProbeVolume(dev gpu.Device, anchor mgl32.Vec3, logger core.Logger) *ProbeVolume {
	return &ProbeVolume{
		Device:            dev,
		SkyLightIntensity: 1,
		GIIntensity:       1,
		anchor:            anchor,
		logger:            core.OrNop(logger),
	}
}

// GenerateGrid releases any existing probes and voxel buffers, then builds a
// dimX*dimY*dimZ grid in index order from prefab and allocates zeroed voxel
// buffers. prefab.Device defaults to the volume's device.
func (v *ProbeVolume) GenerateGrid(dimX, dimY, dimZ int, cellSize float32, prefab ProbeOptions) error {
	size := core.GridSize{X: dimX, Y: dimY, Z: dimZ}
	if !size.Valid() || cellSize <= 0 {
		return fmt.Errorf("%w: %v cell %g", ErrInvalidGrid, size, cellSize)
	}
	if prefab.Device == nil {
		prefab.Device = v.Device
	}
	if prefab.Device == nil {
		return fmt.Errorf("%w: volume has no device", core.ErrMissingCollaborator)
	}
	if prefab.Logger == nil {
		prefab.Logger = v.logger
	}
	v.Release()

	v.size = size
	v.cellSize = cellSize
	v.probes = make([]*Probe, size.Count())
	for x := 0; x < size.X; x++ {
		for y := 0; y < size.Y; y++ {
			for z := 0; z < size.Z; z++ {
				index := size.Index(x, y, z)
				p := NewProbe(v.probePosition(x, y, z), prefab)
				p.index = index
				p.volume = v
				v.probes[index] = p
				if err := p.Init(); err != nil {
					v.Release()
					return err
				}
			}
		}
	}

	bytes := uint64(size.Count() * core.SH9ByteSize)
	var err error
	if v.voxels.a, err = v.createVoxel("Coefficient Voxel A", bytes); err != nil {
		v.Release()
		return err
	}
	if v.voxels.b, err = v.createVoxel("Coefficient Voxel B", bytes); err != nil {
		v.Release()
		return err
	}
	v.logger.Debugf("generated %v probe grid, cell %g, anchor %v", size, cellSize, v.anchor)
	return nil
}

func (v *ProbeVolume) createVoxel(label string, size uint64) (gpu.Buffer, error) {
	buf, err := v.Device.CreateBuffer(label, size)
	if err != nil {
		return nil, err
	}
	if err := gpu.ZeroBuffer(v.Device, buf); err != nil {
		buf.Release()
		return nil, err
	}
	return buf, nil
}

// Release frees every probe and both voxel buffers. The grid geometry is kept.
func (v *ProbeVolume) Release() {
	for _, p := range v.probes {
		if p != nil {
			p.Release()
			p.volume = nil
			p.index = -1
		}
	}
	v.probes = nil
	v.voxels.release()
}

func (v *ProbeVolume) probePosition(x, y, z int) mgl32.Vec3 {
	return v.anchor.Add(mgl32.Vec3{float32(x), float32(y), float32(z)}.Mul(v.cellSize))
}

func (v *ProbeVolume) Size() core.GridSize { return v.size }
func (v *ProbeVolume) CellSize() float32   { return v.cellSize }
func (v *ProbeVolume) ProbeCount() int     { return len(v.probes) }
func (v *ProbeVolume) Probes() []*Probe    { return v.probes }
func (v *ProbeVolume) Generated() bool     { return len(v.probes) > 0 && v.voxels.allocated() }

// Anchor is the volume position, also its minimum corner.
func (v *ProbeVolume) Anchor() mgl32.Vec3    { return v.anchor }
func (v *ProbeVolume) MinCorner() mgl32.Vec3 { return v.anchor }

// SetAnchor moves the volume and every probe with it. Persisted data captured
// at the old anchor becomes stale.
func (v *ProbeVolume) SetAnchor(anchor mgl32.Vec3) {
	v.anchor = anchor
	for _, p := range v.probes {
		x, y, z := v.size.Coord(p.index)
		p.Position = v.probePosition(x, y, z)
	}
}

func (v *ProbeVolume) Index(x, y, z int) int { return v.size.Index(x, y, z) }

func (v *ProbeVolume) ProbeAt(x, y, z int) *Probe {
	if !v.size.Contains(x, y, z) || len(v.probes) == 0 {
		return nil
	}
	return v.probes[v.size.Index(x, y, z)]
}

func (v *ProbeVolume) Geometry() core.VolumeGeometry {
	return core.VolumeGeometry{Size: v.size, Anchor: v.anchor, CellSize: v.cellSize}
}

// CurrentVoxel is the buffer injection writes to and shading reads from.
func (v *ProbeVolume) CurrentVoxel() gpu.Buffer  { return v.voxels.current() }
func (v *ProbeVolume) PreviousVoxel() gpu.Buffer { return v.voxels.previous() }

// ClearVoxelBuffer zeroes the current voxel buffer only. No-op when ungenerated.
func (v *ProbeVolume) ClearVoxelBuffer() error {
	cur := v.voxels.current()
	if cur == nil {
		return nil
	}
	return gpu.ZeroBuffer(v.Device, cur)
}

// SwapTemporalBuffers exchanges current and previous without copying.
// No-op unless both buffers are allocated.
func (v *ProbeVolume) SwapTemporalBuffers() {
	v.voxels.swap()
}

// ReadVoxel reads back the whole current voxel buffer.
func (v *ProbeVolume) ReadVoxel() ([]int32, error) {
	cur := v.voxels.current()
	if cur == nil {
		return nil, core.ErrUnallocated
	}
	words, err := gpu.ReadInt32s(v.Device, cur)
	if err != nil {
		return nil, err
	}
	return words[:v.size.Count()*core.SH9Length], nil
}

// VoxelSegment returns the SH9Length words of probe index in the current buffer.
func (v *ProbeVolume) VoxelSegment(index int) ([]int32, error) {
	words, err := v.ReadVoxel()
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= v.size.Count() {
		return nil, fmt.Errorf("probe index %d out of range for %v", index, v.size)
	}
	return words[index*core.SH9Length : (index+1)*core.SH9Length], nil
}

// Inject runs every probe's radiance injection into the current voxel
// buffer, up to workers at a time. withHistory feeds the previous buffer
// in as multi-bounce history. No-op when ungenerated.
func (v *ProbeVolume) Inject(workers int, withHistory bool) error {
	if !v.Generated() {
		return nil
	}
	if workers < 1 {
		workers = 1
	}
	voxel := v.voxels.current()
	var history gpu.Buffer
	if withHistory {
		history = v.voxels.previous()
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	sem := make(chan struct{}, workers)
	for _, p := range v.probes {
		wg.Add(1)
		sem <- struct{}{}
		go func(p *Probe) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := p.InjectRadiance(voxel, history); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(p)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// IrradianceAt reconstructs irradiance for normal n at pos from the current
// voxel buffer, scaled by GIIntensity, the way the shading pass does.
func (v *ProbeVolume) IrradianceAt(pos, n mgl32.Vec3) (mgl32.Vec3, error) {
	words, err := v.ReadVoxel()
	if err != nil {
		return mgl32.Vec3{}, err
	}
	return v.Geometry().Irradiance(words, pos, n).Mul(clampIntensity(v.GIIntensity)), nil
}

func clampIntensity(f float32) float32 {
	return mgl32.Clamp(f, MinIntensity, MaxIntensity)
}
