package gpu

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/gekko3d/probegi/gi/core"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostBufferLifecycle(t *testing.T) {
	dev := NewHostDevice()
	buf, err := dev.CreateBuffer("Test", 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(12), buf.Size(), "sizes round up to 4 bytes")
	assert.Equal(t, 1, dev.LiveBuffers())

	require.NoError(t, dev.WriteBuffer(buf, 4, Int32sToBytes([]int32{-7})))
	words, err := ReadInt32s(dev, buf)
	require.NoError(t, err)
	assert.Equal(t, []int32{0, -7, 0}, words)

	err = dev.WriteBuffer(buf, 8, make([]byte, 8))
	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.ErrorIs(t, dev.WriteBuffer(buf, 2, make([]byte, 4)), ErrUnaligned)

	buf.Release()
	assert.Equal(t, 0, dev.LiveBuffers())
	assert.Panics(t, func() { buf.Release() }, "double release must panic")
	assert.Panics(t, func() { _, _ = dev.ReadBuffer(buf) }, "use after release must panic")
}

func TestHostDeviceRejectsForeignBuffers(t *testing.T) {
	a, b := NewHostDevice(), NewHostDevice()
	buf, err := a.CreateBuffer("A", 4)
	require.NoError(t, err)
	defer buf.Release()

	_, err = b.ReadBuffer(buf)
	assert.ErrorIs(t, err, ErrForeignBuffer)
}

func TestZeroBuffer(t *testing.T) {
	dev := NewHostDevice()
	buf, _ := dev.CreateBuffer("Z", 8)
	defer buf.Release()
	require.NoError(t, dev.WriteBuffer(buf, 0, Int32sToBytes([]int32{1, 2})))
	require.NoError(t, ZeroBuffer(dev, buf))
	words, _ := ReadInt32s(dev, buf)
	assert.Equal(t, []int32{0, 0}, words)
}

func TestUniformLayouts(t *testing.T) {
	s := PackSampleUniforms(SampleParams{ProbePos: mgl32.Vec3{1, 2, 3}, Seed: 0.25})
	require.Len(t, s, SampleUniformsSize)
	assert.Equal(t, float32(0.25), math.Float32frombits(binary.LittleEndian.Uint32(s[12:])))

	p := PackProjectUniforms(ProjectParams{
		VoxelOffset: 54,
		HasHistory:  true,
		Geometry:    core.VolumeGeometry{Size: core.GridSize{X: 2, Y: 3, Z: 4}, CellSize: 2},
	}, Lighting{SunDirection: mgl32.Vec3{0, -2, 0}, SunColor: mgl32.Vec3{1, 1, 1}, Bounce: 0.5})
	require.Len(t, p, ProjectUniformsSize)
	assert.Equal(t, uint32(54), binary.LittleEndian.Uint32(p[12:]))
	assert.Equal(t, uint32(3), binary.LittleEndian.Uint32(p[36:]))
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(p[44:]))
	assert.Equal(t, float32(-1), math.Float32frombits(binary.LittleEndian.Uint32(p[52:])), "sun direction is normalized")
}

func TestLightingShade(t *testing.T) {
	l := Lighting{SunDirection: mgl32.Vec3{0, -1, 0}, SunColor: mgl32.Vec3{2, 2, 2}}
	up := core.Surfel{Normal: mgl32.Vec3{0, 1, 0}, Albedo: mgl32.Vec3{0.5, 0.25, 1}}
	assert.Equal(t, mgl32.Vec3{1, 0.5, 2}, l.Shade(up, mgl32.Vec3{}))

	down := core.Surfel{Normal: mgl32.Vec3{0, -1, 0}, Albedo: mgl32.Vec3{1, 1, 1}}
	assert.Equal(t, mgl32.Vec3{}, l.Shade(down, mgl32.Vec3{}), "back facing surfels receive no direct light")

	l.Bounce = 1
	got := l.Shade(down, mgl32.Vec3{math.Pi, 0, 0})
	assert.InDelta(t, 1.0, got[0], 1e-6)
}

func newSurfelBuffers(t *testing.T, dev *HostDevice) (surfels, radiance, sh9, voxel Buffer) {
	t.Helper()
	var err error
	surfels, err = dev.CreateBuffer("Surfels", core.SurfelsPerProbe*core.SurfelByteSize)
	require.NoError(t, err)
	radiance, err = dev.CreateBuffer("Radiance", core.SurfelsPerProbe*core.RadianceByteSize)
	require.NoError(t, err)
	sh9, err = dev.CreateBuffer("SH9", core.SH9ByteSize)
	require.NoError(t, err)
	voxel, err = dev.CreateBuffer("Voxel", 2*core.SH9ByteSize)
	require.NoError(t, err)
	return
}

func TestHostSampleSurfels(t *testing.T) {
	dev := NewHostDevice()
	k := NewHostKernels(dev, DefaultLighting())
	surfels, _, _, _ := newSurfelBuffers(t, dev)

	// Geometry only below the horizon
	wp, nrm, alb := core.NewCubemap(4), core.NewCubemap(4), core.NewCubemap(4)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			wp.Set(core.FaceNegY, x, y, mgl32.Vec4{float32(x), -1, float32(y), 1})
			nrm.Set(core.FaceNegY, x, y, mgl32.Vec4{0, 1, 0, 0})
			alb.Set(core.FaceNegY, x, y, mgl32.Vec4{0.5, 0.5, 0.5, 1})
		}
	}

	require.NoError(t, k.SampleSurfels(SampleParams{Seed: 0.5}, wp, nrm, alb, surfels))
	data, err := dev.ReadBuffer(surfels)
	require.NoError(t, err)
	out := core.DecodeSurfels(data)
	require.Len(t, out, core.SurfelsPerProbe)

	// Top row looks straight up into the sky, bottom row hits the floor.
	top := out[core.SurfelIndex(3, 0)]
	assert.True(t, top.IsSky())
	assert.Equal(t, core.SkySurfel(), top, "sky surfels leave geometry fields zero")

	bottom := out[core.SurfelIndex(3, core.SurfelGridY-1)]
	assert.False(t, bottom.IsSky())
	assert.Equal(t, mgl32.Vec3{0, 1, 0}, bottom.Normal)
	assert.Equal(t, float32(-1), bottom.Position[1])
}

func TestHostSampleSurfelsUnsetTargets(t *testing.T) {
	dev := NewHostDevice()
	k := NewHostKernels(dev, nil)
	surfels, _, _, _ := newSurfelBuffers(t, dev)
	require.NoError(t, k.SampleSurfels(SampleParams{Seed: 0.1}, nil, nil, nil, surfels))
	data, _ := dev.ReadBuffer(surfels)
	for i, s := range core.DecodeSurfels(data) {
		if !s.IsSky() {
			t.Fatalf("surfel %d: Expected sky from unset world position target", i)
		}
	}
}

func uploadSurfels(t *testing.T, dev *HostDevice, buf Buffer, surfels []core.Surfel) {
	t.Helper()
	require.NoError(t, dev.WriteBuffer(buf, 0, core.EncodeSurfels(surfels)))
}

func TestHostProjectRadianceMirrorsVoxelSegment(t *testing.T) {
	dev := NewHostDevice()
	k := NewHostKernels(dev, ShaderFunc(func(s core.Surfel, _ mgl32.Vec3) mgl32.Vec3 {
		return s.Albedo
	}))
	k.Workers = 8
	surfels, radiance, sh9, voxel := newSurfelBuffers(t, dev)

	in := make([]core.Surfel, core.SurfelsPerProbe)
	for i, d := range core.SampleDirections(0.5) {
		in[i] = core.Surfel{Position: d.Mul(3), Normal: d.Mul(-1), Albedo: mgl32.Vec3{1, 0.5, 0.25}}
	}
	uploadSurfels(t, dev, surfels, in)

	params := ProjectParams{VoxelOffset: core.SH9Length}
	require.NoError(t, k.ProjectRadiance(params, surfels, radiance, sh9, voxel, nil))

	acc, _ := ReadInt32s(dev, sh9)
	vox, _ := ReadInt32s(dev, voxel)
	assert.Equal(t, acc, vox[core.SH9Length:], "voxel segment mirrors the probe accumulator")
	assert.Equal(t, make([]int32, core.SH9Length), vox[:core.SH9Length], "other segments untouched")

	e := core.DecodeSH9(acc).Irradiance(mgl32.Vec3{0, 1, 0})
	assert.InDelta(t, math.Pi, e[0], 0.05)

	rad, _ := dev.ReadBuffer(radiance)
	assert.Equal(t, mgl32.Vec3{1, 0.5, 0.25}, core.DecodeVec3s(rad)[7])
}

func TestHostProjectRadianceDeterministic(t *testing.T) {
	dev := NewHostDevice()
	k := NewHostKernels(dev, DefaultLighting())
	in := make([]core.Surfel, core.SurfelsPerProbe)
	for i, d := range core.SampleDirections(0.3) {
		in[i] = core.Surfel{Position: d.Mul(float32(i%7 + 1)), Normal: d.Mul(-1), Albedo: mgl32.Vec3{0.8, 0.6, 0.4}}
	}

	var first []int32
	for run := 0; run < 4; run++ {
		k.Workers = run*3 + 1
		surfels, radiance, sh9, voxel := newSurfelBuffers(t, dev)
		uploadSurfels(t, dev, surfels, in)
		require.NoError(t, k.ProjectRadiance(ProjectParams{}, surfels, radiance, sh9, voxel, nil))
		acc, _ := ReadInt32s(dev, sh9)
		if first == nil {
			first = acc
			continue
		}
		assert.Equal(t, first, acc, "integer accumulation is order independent")
	}
}

func TestHostProjectRadianceSkipsSkyFields(t *testing.T) {
	dev := NewHostDevice()
	called := 0
	k := NewHostKernels(dev, ShaderFunc(func(s core.Surfel, _ mgl32.Vec3) mgl32.Vec3 {
		called++
		return mgl32.Vec3{1, 1, 1}
	}))
	k.Workers = 1
	surfels, radiance, sh9, voxel := newSurfelBuffers(t, dev)

	nan := float32(math.NaN())
	in := make([]core.Surfel, core.SurfelsPerProbe)
	for i := range in {
		// Garbage in every field but the mask
		in[i] = core.Surfel{
			Position: mgl32.Vec3{nan, nan, nan},
			Normal:   mgl32.Vec3{nan, 1e30, nan},
			Albedo:   mgl32.Vec3{nan, nan, nan},
			SkyMask:  1,
		}
	}
	uploadSurfels(t, dev, surfels, in)
	require.NoError(t, k.ProjectRadiance(ProjectParams{}, surfels, radiance, sh9, voxel, nil))

	assert.Zero(t, called)
	acc, _ := ReadInt32s(dev, sh9)
	assert.Equal(t, make([]int32, core.SH9Length), acc)
	rad, _ := ReadInt32s(dev, radiance)
	assert.Equal(t, make([]int32, core.SurfelsPerProbe*3), rad)
}

func TestHostProjectRadianceUsesHistory(t *testing.T) {
	dev := NewHostDevice()
	k := NewHostKernels(dev, Lighting{Bounce: 1})
	surfels, radiance, sh9, voxel := newSurfelBuffers(t, dev)

	in := make([]core.Surfel, core.SurfelsPerProbe)
	for i, d := range core.SampleDirections(0.5) {
		in[i] = core.Surfel{Position: d, Normal: mgl32.Vec3{0, 1, 0}, Albedo: mgl32.Vec3{1, 1, 1}}
	}
	uploadSurfels(t, dev, surfels, in)

	// A history whose single probe carries L00 only: irradiance is pi*L00*0.282095
	history, _ := dev.CreateBuffer("History", core.SH9ByteSize)
	words := make([]int32, core.SH9Length)
	words[0], words[1], words[2] = core.EncodeFixed(1), core.EncodeFixed(1), core.EncodeFixed(1)
	require.NoError(t, dev.WriteBuffer(history, 0, Int32sToBytes(words)))

	params := ProjectParams{
		HasHistory: true,
		Geometry:   core.VolumeGeometry{Size: core.GridSize{X: 1, Y: 1, Z: 1}, CellSize: 1},
	}
	require.NoError(t, k.ProjectRadiance(params, surfels, radiance, sh9, voxel, history))

	rad, _ := dev.ReadBuffer(radiance)
	got := core.DecodeVec3s(rad)[0]
	assert.InDelta(t, 0.282095, got[0], 1e-3)

	// Without the flag the history buffer is ignored
	require.NoError(t, ZeroBuffer(dev, radiance))
	params.HasHistory = false
	require.NoError(t, k.ProjectRadiance(params, surfels, radiance, sh9, voxel, history))
	rad, _ = dev.ReadBuffer(radiance)
	assert.Equal(t, mgl32.Vec3{}, core.DecodeVec3s(rad)[0])
}

func TestHostProjectRadianceBounds(t *testing.T) {
	dev := NewHostDevice()
	k := NewHostKernels(dev, nil)
	surfels, radiance, sh9, voxel := newSurfelBuffers(t, dev)
	err := k.ProjectRadiance(ProjectParams{VoxelOffset: 2 * core.SH9Length}, surfels, radiance, sh9, voxel, nil)
	assert.ErrorIs(t, err, ErrOutOfRange)
}
