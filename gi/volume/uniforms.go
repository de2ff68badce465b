package volume

import (
	"encoding/binary"
	"math"

	"github.com/gekko3d/probegi/gi/core"
	"github.com/go-gl/mathgl/mgl32"
)

// VolumeUniforms is what a shading pass binds next to the current voxel buffer.
type VolumeUniforms struct {
	Anchor            mgl32.Vec3
	CellSize          float32
	Size              core.GridSize
	ProbeCount        uint32
	SkyLightIntensity float32
	GIIntensity       float32
	DebugMode         VolumeDebugMode
}

// VolumeUniforms struct (64 bytes)
//
//	anchor:              vec3<f32> -- 0
//	cell_size:           f32       -- 12
//	grid_size:           vec3<u32> -- 16
//	probe_count:         u32       -- 28
//	sky_light_intensity: f32       -- 32
//	gi_intensity:        f32       -- 36
//	debug_mode:          u32       -- 40
//	pad:                 u32       -- 44
//	fixed_point_scale:   f32       -- 48
//	pad:                 vec3<u32> -- 52
const VolumeUniformsSize = 64

func (v *ProbeVolume) Uniforms() VolumeUniforms {
	return VolumeUniforms{
		Anchor:            v.anchor,
		CellSize:          v.cellSize,
		Size:              v.size,
		ProbeCount:        uint32(len(v.probes)),
		SkyLightIntensity: clampIntensity(v.SkyLightIntensity),
		GIIntensity:       clampIntensity(v.GIIntensity),
		DebugMode:         v.DebugMode,
	}
}

func (u VolumeUniforms) Bytes() []byte {
	buf := make([]byte, VolumeUniformsSize)
	for i := 0; i < 3; i++ {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(u.Anchor[i]))
	}
	binary.LittleEndian.PutUint32(buf[12:], math.Float32bits(u.CellSize))
	binary.LittleEndian.PutUint32(buf[16:], uint32(u.Size.X))
	binary.LittleEndian.PutUint32(buf[20:], uint32(u.Size.Y))
	binary.LittleEndian.PutUint32(buf[24:], uint32(u.Size.Z))
	binary.LittleEndian.PutUint32(buf[28:], u.ProbeCount)
	binary.LittleEndian.PutUint32(buf[32:], math.Float32bits(u.SkyLightIntensity))
	binary.LittleEndian.PutUint32(buf[36:], math.Float32bits(u.GIIntensity))
	binary.LittleEndian.PutUint32(buf[40:], uint32(u.DebugMode))
	binary.LittleEndian.PutUint32(buf[48:], math.Float32bits(core.FixedPointScale))
	return buf
}
