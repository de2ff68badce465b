package core

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	// SurfelGridX and SurfelGridY tile the sampling dispatch, one thread per surfel.
	SurfelGridX     = 32
	SurfelGridY     = 16
	SurfelsPerProbe = SurfelGridX * SurfelGridY

	// Surfel struct (40 bytes, tightly packed, little endian)
	//   position: vec3<f32> -- 0
	//   normal:   vec3<f32> -- 12
	//   albedo:   vec3<f32> -- 24
	//   sky_mask: f32       -- 36
	SurfelByteSize   = 3*12 + 4
	FieldsPerSurfel  = SurfelByteSize / 4
	RadianceByteSize = 12

	// SkyThreshold is the sky mask value at and above which a surfel counts as sky.
	SkyThreshold = 0.995
)

// Surfel is a single directional surface sample taken from a probe's viewpoint.
type Surfel struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
	Albedo   mgl32.Vec3
	SkyMask  float32
}

// SkySurfel is the sample written when a ray hits no geometry.
func SkySurfel() Surfel {
	return Surfel{SkyMask: 1}
}

func (s Surfel) IsSky() bool {
	return s.SkyMask >= SkyThreshold
}

// Fields returns the surfel scalars in persisted field order.
func (s Surfel) Fields() [FieldsPerSurfel]float32 {
	return [FieldsPerSurfel]float32{
		s.Position[0], s.Position[1], s.Position[2],
		s.Normal[0], s.Normal[1], s.Normal[2],
		s.Albedo[0], s.Albedo[1], s.Albedo[2],
		s.SkyMask,
	}
}

// SurfelFromFields is the inverse of Fields. f must hold at least FieldsPerSurfel values.
func SurfelFromFields(f []float32) Surfel {
	_ = f[FieldsPerSurfel-1]
	return Surfel{
		Position: mgl32.Vec3{f[0], f[1], f[2]},
		Normal:   mgl32.Vec3{f[3], f[4], f[5]},
		Albedo:   mgl32.Vec3{f[6], f[7], f[8]},
		SkyMask:  f[9],
	}
}

// EncodeSurfels packs surfels into the GPU buffer layout.
func EncodeSurfels(surfels []Surfel) []byte {
	buf := make([]byte, len(surfels)*SurfelByteSize)
	for i, s := range surfels {
		off := i * SurfelByteSize
		for j, v := range s.Fields() {
			binary.LittleEndian.PutUint32(buf[off+j*4:], math.Float32bits(v))
		}
	}
	return buf
}

// DecodeSurfels unpacks a surfel buffer. Trailing bytes that do not form a full
// surfel are ignored.
func DecodeSurfels(data []byte) []Surfel {
	n := len(data) / SurfelByteSize
	out := make([]Surfel, n)
	var f [FieldsPerSurfel]float32
	for i := 0; i < n; i++ {
		off := i * SurfelByteSize
		for j := range f {
			f[j] = math.Float32frombits(binary.LittleEndian.Uint32(data[off+j*4:]))
		}
		out[i] = SurfelFromFields(f[:])
	}
	return out
}

// SurfelFromWords decodes surfel i from a buffer viewed as 32-bit words.
func SurfelFromWords(words []int32, i int) Surfel {
	var f [FieldsPerSurfel]float32
	base := i * FieldsPerSurfel
	for j := range f {
		f[j] = math.Float32frombits(uint32(words[base+j]))
	}
	return SurfelFromFields(f[:])
}

// PutSurfelWords writes surfel i into a buffer viewed as 32-bit words.
func PutSurfelWords(words []int32, i int, s Surfel) {
	base := i * FieldsPerSurfel
	for j, v := range s.Fields() {
		words[base+j] = int32(math.Float32bits(v))
	}
}

// EncodeVec3s packs tightly laid out vec3<f32> values, as used by the radiance buffer.
func EncodeVec3s(vs []mgl32.Vec3) []byte {
	buf := make([]byte, len(vs)*12)
	for i, v := range vs {
		for c := 0; c < 3; c++ {
			binary.LittleEndian.PutUint32(buf[i*12+c*4:], math.Float32bits(v[c]))
		}
	}
	return buf
}

func DecodeVec3s(data []byte) []mgl32.Vec3 {
	out := make([]mgl32.Vec3, len(data)/12)
	for i := range out {
		for c := 0; c < 3; c++ {
			out[i][c] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*12+c*4:]))
		}
	}
	return out
}
