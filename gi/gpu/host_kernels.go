package gpu

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/gekko3d/probegi/gi/core"
	"github.com/go-gl/mathgl/mgl32"
)

// HostKernels run both compute stages on the CPU against HostDevice buffers.
// Surfels are processed by a pool of goroutines that accumulate with atomic
// int32 adds, the same contract the WGSL kernels honour with atomicAdd.
type HostKernels struct {
	Device  *HostDevice
	Shading SurfelShader
	// Workers defaults to GOMAXPROCS.
	Workers int
}

func NewHostKernels(dev *HostDevice, shading SurfelShader) *HostKernels {
	return &HostKernels{Device: dev, Shading: shading}
}

func (k *HostKernels) workers() int {
	if k.Workers > 0 {
		return k.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// parallelFor splits [0,n) into contiguous chunks, one per worker.
func parallelFor(n, workers int, fn func(i int)) {
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}
	chunk := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				fn(i)
			}
		}(start, end)
	}
	wg.Wait()
}

func (k *HostKernels) SampleSurfels(p SampleParams, worldPos, normal, albedo *core.Cubemap, surfels Buffer) error {
	out, err := k.Device.Words(surfels)
	if err != nil {
		return err
	}
	if len(out) < core.SurfelsPerProbe*core.FieldsPerSurfel {
		return fmt.Errorf("%w: surfel buffer %q holds %d words", ErrOutOfRange, surfels.Label(), len(out))
	}

	parallelFor(core.SurfelsPerProbe, k.workers(), func(i int) {
		x, y := i%core.SurfelGridX, i/core.SurfelGridX
		dir := core.SampleDirection(x, y, p.Seed)

		wp := worldPos.Sample(dir)
		s := core.SkySurfel()
		if wp[3] != 0 {
			s = core.Surfel{
				Position: wp.Vec3(),
				Normal:   normal.Sample(dir).Vec3(),
				Albedo:   albedo.Sample(dir).Vec3(),
			}
		}
		core.PutSurfelWords(out, core.SurfelIndex(x, y), s)
	})
	return nil
}

func (k *HostKernels) ProjectRadiance(p ProjectParams, surfels, radiance, sh9, voxel, history Buffer) error {
	in, err := k.Device.Words(surfels)
	if err != nil {
		return err
	}
	rad, err := k.Device.Words(radiance)
	if err != nil {
		return err
	}
	acc, err := k.Device.Words(sh9)
	if err != nil {
		return err
	}
	vox, err := k.Device.Words(voxel)
	if err != nil {
		return err
	}
	var hist []int32
	if p.HasHistory && history != nil {
		if hist, err = k.Device.Words(history); err != nil {
			return err
		}
	}

	n := core.SurfelsPerProbe
	switch {
	case len(in) < n*core.FieldsPerSurfel:
		return fmt.Errorf("%w: surfel buffer %q holds %d words", ErrOutOfRange, surfels.Label(), len(in))
	case len(rad) < n*3:
		return fmt.Errorf("%w: radiance buffer %q holds %d words", ErrOutOfRange, radiance.Label(), len(rad))
	case len(acc) < core.SH9Length:
		return fmt.Errorf("%w: sh9 buffer %q holds %d words", ErrOutOfRange, sh9.Label(), len(acc))
	case int(p.VoxelOffset)+core.SH9Length > len(vox):
		return fmt.Errorf("%w: voxel segment at %d exceeds %q", ErrOutOfRange, p.VoxelOffset, voxel.Label())
	}

	shading := k.Shading
	if shading == nil {
		shading = DefaultLighting()
	}
	seg := vox[p.VoxelOffset : p.VoxelOffset+core.SH9Length]

	parallelFor(n, k.workers(), func(i int) {
		// Sky surfels are classified from the mask alone; their other fields are never read.
		mask := mathFloat(in[i*core.FieldsPerSurfel+core.FieldsPerSurfel-1])
		if mask >= core.SkyThreshold {
			putVec3Words(rad, i, mgl32.Vec3{})
			return
		}
		s := core.SurfelFromWords(in, i)

		var indirect mgl32.Vec3
		if hist != nil {
			indirect = p.Geometry.Irradiance(hist, s.Position, s.Normal)
		}
		l := shading.Shade(s, indirect)
		putVec3Words(rad, i, l)

		d := s.Position.Sub(p.ProbePos)
		if d.LenSqr() == 0 {
			return
		}
		basis := core.SHBasis(d.Normalize())
		for b := 0; b < core.SHCoefficients; b++ {
			for c := 0; c < core.SHChannels; c++ {
				v := core.EncodeFixed(l[c] * basis[b] * core.SampleWeight)
				if v == 0 {
					continue
				}
				atomic.AddInt32(&acc[b*core.SHChannels+c], v)
				atomic.AddInt32(&seg[b*core.SHChannels+c], v)
			}
		}
	})
	return nil
}
