package volume

import (
	"fmt"
	"math/rand/v2"

	"github.com/gekko3d/probegi/gi/core"
	"github.com/gekko3d/probegi/gi/gpu"
	"github.com/go-gl/mathgl/mgl32"
)

type ProbeDebugMode int

const (
	ProbeDebugNone ProbeDebugMode = iota
	ProbeDebugSphereDistribution
	ProbeDebugSampleDirection
	ProbeDebugSurfel
	ProbeDebugSurfelRadiance
)

func (m ProbeDebugMode) String() string {
	switch m {
	case ProbeDebugNone:
		return "none"
	case ProbeDebugSphereDistribution:
		return "sphere-distribution"
	case ProbeDebugSampleDirection:
		return "sample-direction"
	case ProbeDebugSurfel:
		return "surfel"
	case ProbeDebugSurfelRadiance:
		return "surfel-radiance"
	}
	return fmt.Sprintf("ProbeDebugMode(%d)", int(m))
}

// DefaultCubemapSize is the face resolution of the capture render targets.
const DefaultCubemapSize = 32

// ProbeOptions is the template every probe of a volume is instantiated from.
type ProbeOptions struct {
	Device  gpu.Device
	Kernels gpu.Kernels
	// CubemapSize is the face size of the G-buffer render targets. Zero means DefaultCubemapSize.
	CubemapSize int
	// Seed returns the ray jitter for a capture, in [0,1). Nil uses math/rand/v2.
	Seed      func() float32
	DebugMode ProbeDebugMode
	Logger    core.Logger
}

func (o ProbeOptions) seed() float32 {
	if o.Seed != nil {
		return o.Seed()
	}
	return rand.Float32()
}

// Probe samples surfels around its position and projects their radiance
// into a 27 word fixed-point SH9 accumulator.
type Probe struct {
	Position     mgl32.Vec3
	DebugMode    ProbeDebugMode
	DebugVisible bool
	// RenderTargets receive the world position, normal and albedo captures.
	// A nil target reads as zero.
	RenderTargets [3]*core.Cubemap

	opts   ProbeOptions
	logger core.Logger

	index  int
	volume *ProbeVolume

	// host copy of the surfel buffer
	surfels  []core.Surfel
	lastSeed float32

	surfelBuf   gpu.Buffer
	radianceBuf gpu.Buffer
	sh9Buf      gpu.Buffer
	scratchBuf  gpu.Buffer
}

func NewProbe(pos mgl32.Vec3, opts ProbeOptions) *Probe {
	size := opts.CubemapSize
	if size <= 0 {
		size = DefaultCubemapSize
	}
	p := &Probe{
		Position:     pos,
		DebugMode:    opts.DebugMode,
		DebugVisible: true,
		opts:         opts,
		logger:       core.OrNop(opts.Logger),
		index:        -1,
		surfels:      make([]core.Surfel, core.SurfelsPerProbe),
	}
	for i := range p.RenderTargets {
		p.RenderTargets[i] = core.NewCubemap(size)
	}
	return p
}

// Index is the probe's slot in its volume, -1 when unparented.
func (p *Probe) Index() int { return p.index }

func (p *Probe) Volume() *ProbeVolume { return p.volume }

// Init allocates the probe's device buffers. It is idempotent.
func (p *Probe) Init() error {
	if p.opts.Device == nil {
		return fmt.Errorf("%w: probe has no device", core.ErrMissingCollaborator)
	}
	dev := p.opts.Device
	allocs := []struct {
		buf   *gpu.Buffer
		label string
		size  uint64
	}{
		{&p.surfelBuf, "Probe Surfels", core.SurfelsPerProbe * core.SurfelByteSize},
		{&p.radianceBuf, "Probe Surfel Radiance", core.SurfelsPerProbe * core.RadianceByteSize},
		{&p.sh9Buf, "Probe SH9", core.SH9ByteSize},
		{&p.scratchBuf, "Probe Scratch Voxel", core.SH9ByteSize},
	}
	for _, a := range allocs {
		if *a.buf != nil {
			continue
		}
		buf, err := dev.CreateBuffer(a.label, a.size)
		if err != nil {
			p.Release()
			return fmt.Errorf("probe %d: %w", p.index, err)
		}
		if err := gpu.ZeroBuffer(dev, buf); err != nil {
			buf.Release()
			p.Release()
			return fmt.Errorf("probe %d: %w", p.index, err)
		}
		*a.buf = buf
	}
	return nil
}

func (p *Probe) Allocated() bool {
	return p.surfelBuf != nil && p.radianceBuf != nil && p.sh9Buf != nil && p.scratchBuf != nil
}

// Release frees every device buffer the probe owns. The probe can be
// re-initialised afterwards.
func (p *Probe) Release() {
	for _, buf := range []*gpu.Buffer{&p.surfelBuf, &p.radianceBuf, &p.sh9Buf, &p.scratchBuf} {
		if *buf != nil {
			(*buf).Release()
			*buf = nil
		}
	}
}

// Surfels returns the host copy of the surfel buffer. Callers may edit it in
// place and push the result with UploadSurfels.
func (p *Probe) Surfels() []core.Surfel { return p.surfels }

// LastSeed is the ray jitter used by the most recent capture.
func (p *Probe) LastSeed() float32 { return p.lastSeed }

// SetSurfels replaces the host copy and uploads it.
func (p *Probe) SetSurfels(s []core.Surfel) error {
	if len(s) != core.SurfelsPerProbe {
		return fmt.Errorf("probe %d: got %d surfels, want %d", p.index, len(s), core.SurfelsPerProbe)
	}
	copy(p.surfels, s)
	return p.UploadSurfels()
}

func (p *Probe) UploadSurfels() error {
	if p.surfelBuf == nil {
		return fmt.Errorf("probe %d: %w", p.index, core.ErrUnallocated)
	}
	return p.opts.Device.WriteBuffer(p.surfelBuf, 0, core.EncodeSurfels(p.surfels))
}

// SyncSurfels reads the device surfel buffer back into the host copy.
func (p *Probe) SyncSurfels() error {
	if p.surfelBuf == nil {
		return fmt.Errorf("probe %d: %w", p.index, core.ErrUnallocated)
	}
	data, err := p.opts.Device.ReadBuffer(p.surfelBuf)
	if err != nil {
		return fmt.Errorf("probe %d surfel readback: %w", p.index, err)
	}
	copy(p.surfels, core.DecodeSurfels(data))
	return nil
}

// RawSH9 reads back the fixed-point accumulator.
func (p *Probe) RawSH9() ([]int32, error) {
	if p.sh9Buf == nil {
		return nil, fmt.Errorf("probe %d: %w", p.index, core.ErrUnallocated)
	}
	words, err := gpu.ReadInt32s(p.opts.Device, p.sh9Buf)
	if err != nil {
		return nil, err
	}
	return words[:core.SH9Length], nil
}

func (p *Probe) SH9() (core.SH9, error) {
	words, err := p.RawSH9()
	if err != nil {
		return core.SH9{}, err
	}
	return core.DecodeSH9(words), nil
}

// SurfelRadiance reads back the radiance computed by the last injection.
func (p *Probe) SurfelRadiance() ([]mgl32.Vec3, error) {
	if p.radianceBuf == nil {
		return nil, fmt.Errorf("probe %d: %w", p.index, core.ErrUnallocated)
	}
	data, err := p.opts.Device.ReadBuffer(p.radianceBuf)
	if err != nil {
		return nil, err
	}
	return core.DecodeVec3s(data)[:core.SurfelsPerProbe], nil
}
