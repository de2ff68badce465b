package gpu

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// SampleUniforms struct (16 bytes)
//
//	probe_pos: vec3<f32> -- 0
//	seed:      f32       -- 12
const SampleUniformsSize = 16

// ProjectUniforms struct (80 bytes)
//
//	probe_pos:    vec3<f32> -- 0
//	voxel_offset: u32       -- 12
//	grid_anchor:  vec3<f32> -- 16
//	cell_size:    f32       -- 28
//	grid_size:    vec3<u32> -- 32
//	has_history:  u32       -- 44
//	sun_dir:      vec3<f32> -- 48
//	bounce:       f32       -- 60
//	sun_color:    vec3<f32> -- 64
//	pad:          u32       -- 76
const ProjectUniformsSize = 80

func PackSampleUniforms(p SampleParams) []byte {
	buf := make([]byte, SampleUniformsSize)
	putVec3(buf[0:], p.ProbePos)
	binary.LittleEndian.PutUint32(buf[12:], math.Float32bits(p.Seed))
	return buf
}

func PackProjectUniforms(p ProjectParams, l Lighting) []byte {
	buf := make([]byte, ProjectUniformsSize)
	putVec3(buf[0:], p.ProbePos)
	binary.LittleEndian.PutUint32(buf[12:], p.VoxelOffset)
	putVec3(buf[16:], p.Geometry.Anchor)
	binary.LittleEndian.PutUint32(buf[28:], math.Float32bits(p.Geometry.CellSize))
	binary.LittleEndian.PutUint32(buf[32:], uint32(p.Geometry.Size.X))
	binary.LittleEndian.PutUint32(buf[36:], uint32(p.Geometry.Size.Y))
	binary.LittleEndian.PutUint32(buf[40:], uint32(p.Geometry.Size.Z))
	if p.HasHistory {
		binary.LittleEndian.PutUint32(buf[44:], 1)
	}
	sun := l.SunDirection
	if sun.LenSqr() > 0 {
		sun = sun.Normalize()
	}
	putVec3(buf[48:], sun)
	binary.LittleEndian.PutUint32(buf[60:], math.Float32bits(l.Bounce))
	putVec3(buf[64:], l.SunColor)
	return buf
}

func putVec3(buf []byte, v mgl32.Vec3) {
	for i := 0; i < 3; i++ {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v[i]))
	}
}

func putVec3Words(words []int32, i int, v mgl32.Vec3) {
	for c := 0; c < 3; c++ {
		words[i*3+c] = int32(math.Float32bits(v[c]))
	}
}

func mathFloat(w int32) float32 {
	return math.Float32frombits(uint32(w))
}
