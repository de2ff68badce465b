package core

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

type CubeFace int

const (
	FacePosX CubeFace = iota
	FaceNegX
	FacePosY
	FaceNegY
	FacePosZ
	FaceNegZ
	CubeFaces = 6
)

// Cubemap is a host-side RGBA32F cube render target. Faces are stored row
// major, texel (x, y) at index y*Size+x.
type Cubemap struct {
	Size  int
	Faces [CubeFaces][]mgl32.Vec4
}

func NewCubemap(size int) *Cubemap {
	c := &Cubemap{Size: size}
	for f := range c.Faces {
		c.Faces[f] = make([]mgl32.Vec4, size*size)
	}
	return c
}

func (c *Cubemap) Clear(color mgl32.Vec4) {
	for f := range c.Faces {
		for i := range c.Faces[f] {
			c.Faces[f][i] = color
		}
	}
}

func (c *Cubemap) At(face CubeFace, x, y int) mgl32.Vec4 {
	return c.Faces[face][y*c.Size+x]
}

func (c *Cubemap) Set(face CubeFace, x, y int, v mgl32.Vec4) {
	c.Faces[face][y*c.Size+x] = v
}

// FaceUV picks the major axis face for dir and returns face coordinates in [0,1].
func FaceUV(dir mgl32.Vec3) (CubeFace, float32, float32) {
	ax, ay, az := abs32(dir[0]), abs32(dir[1]), abs32(dir[2])
	var face CubeFace
	var sc, tc, ma float32
	switch {
	case ax >= ay && ax >= az:
		ma = ax
		if dir[0] >= 0 {
			face, sc, tc = FacePosX, -dir[2], -dir[1]
		} else {
			face, sc, tc = FaceNegX, dir[2], -dir[1]
		}
	case ay >= az:
		ma = ay
		if dir[1] >= 0 {
			face, sc, tc = FacePosY, dir[0], dir[2]
		} else {
			face, sc, tc = FaceNegY, dir[0], -dir[2]
		}
	default:
		ma = az
		if dir[2] >= 0 {
			face, sc, tc = FacePosZ, dir[0], -dir[1]
		} else {
			face, sc, tc = FaceNegZ, -dir[0], -dir[1]
		}
	}
	if ma == 0 {
		return FacePosX, 0.5, 0.5
	}
	return face, (sc/ma + 1) * 0.5, (tc/ma + 1) * 0.5
}

// FaceDirection is the inverse of FaceUV; the result is not normalized.
func FaceDirection(face CubeFace, u, v float32) mgl32.Vec3 {
	s, t := 2*u-1, 2*v-1
	switch face {
	case FacePosX:
		return mgl32.Vec3{1, -t, -s}
	case FaceNegX:
		return mgl32.Vec3{-1, -t, s}
	case FacePosY:
		return mgl32.Vec3{s, 1, t}
	case FaceNegY:
		return mgl32.Vec3{s, -1, -t}
	case FacePosZ:
		return mgl32.Vec3{s, -t, 1}
	default:
		return mgl32.Vec3{-s, -t, -1}
	}
}

// TexelDirection returns the unit direction through the centre of a texel.
func (c *Cubemap) TexelDirection(face CubeFace, x, y int) mgl32.Vec3 {
	u := (float32(x) + 0.5) / float32(c.Size)
	v := (float32(y) + 0.5) / float32(c.Size)
	return FaceDirection(face, u, v).Normalize()
}

// Sample fetches the nearest texel along dir. A nil or empty cubemap, the
// state of an unset render target, reads as zero.
func (c *Cubemap) Sample(dir mgl32.Vec3) mgl32.Vec4 {
	if c == nil || c.Size <= 0 {
		return mgl32.Vec4{}
	}
	face, u, v := FaceUV(dir)
	x := clampInt(int(u*float32(c.Size)), 0, c.Size-1)
	y := clampInt(int(v*float32(c.Size)), 0, c.Size-1)
	return c.At(face, x, y)
}

// Bytes returns the texture upload layout: six RGBA32F layers, face order
// +X,-X,+Y,-Y,+Z,-Z.
func (c *Cubemap) Bytes() []byte {
	buf := make([]byte, CubeFaces*c.Size*c.Size*16)
	off := 0
	for f := range c.Faces {
		for _, t := range c.Faces[f] {
			for i := 0; i < 4; i++ {
				binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(t[i]))
				off += 4
			}
		}
	}
	return buf
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
