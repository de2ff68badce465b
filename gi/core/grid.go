package core

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// GridSize is the probe count along each axis of a volume.
type GridSize struct {
	X, Y, Z int
}

func (g GridSize) Count() int {
	return g.X * g.Y * g.Z
}

func (g GridSize) Valid() bool {
	return g.X > 0 && g.Y > 0 && g.Z > 0
}

func (g GridSize) Contains(x, y, z int) bool {
	return x >= 0 && y >= 0 && z >= 0 && x < g.X && y < g.Y && z < g.Z
}

// Index flattens grid coordinates: x*Y*Z + y*Z + z.
func (g GridSize) Index(x, y, z int) int {
	return x*g.Y*g.Z + y*g.Z + z
}

// Coord is the inverse of Index.
func (g GridSize) Coord(i int) (x, y, z int) {
	yz := g.Y * g.Z
	x = i / yz
	y = (i % yz) / g.Z
	z = i % g.Z
	return
}

func (g GridSize) String() string {
	return fmt.Sprintf("%dx%dx%d", g.X, g.Y, g.Z)
}

// VolumeGeometry is what a consumer of the voxel buffer needs to locate probes.
type VolumeGeometry struct {
	Size     GridSize
	Anchor   mgl32.Vec3
	CellSize float32
}

func (g VolumeGeometry) ProbePosition(x, y, z int) mgl32.Vec3 {
	return g.Anchor.Add(mgl32.Vec3{float32(x), float32(y), float32(z)}.Mul(g.CellSize))
}

// SampleSH trilinearly blends the SH segments of the eight probes around pos.
// Positions outside the grid clamp to the border probes. words is a full
// voxel buffer of Size.Count()*SH9Length values.
func (g VolumeGeometry) SampleSH(words []int32, pos mgl32.Vec3) SH9 {
	var out SH9
	if !g.Size.Valid() || g.CellSize <= 0 || len(words) < g.Size.Count()*SH9Length {
		return out
	}
	local := pos.Sub(g.Anchor).Mul(1 / g.CellSize)
	dims := [3]int{g.Size.X, g.Size.Y, g.Size.Z}
	var base [3]int
	var frac [3]float32
	for a := 0; a < 3; a++ {
		f := float64(local[a])
		maxCell := float64(dims[a] - 1)
		f = math.Max(0, math.Min(f, maxCell))
		b := int(math.Floor(f))
		if b >= dims[a]-1 {
			b = dims[a] - 1
		}
		base[a] = b
		frac[a] = float32(f - float64(b))
	}
	for corner := 0; corner < 8; corner++ {
		w := float32(1)
		var c [3]int
		for a := 0; a < 3; a++ {
			bit := (corner >> a) & 1
			c[a] = base[a] + bit
			if bit == 1 {
				w *= frac[a]
			} else {
				w *= 1 - frac[a]
			}
			if c[a] >= dims[a] {
				c[a] = dims[a] - 1
			}
		}
		if w == 0 {
			continue
		}
		idx := g.Size.Index(c[0], c[1], c[2])
		out = out.Add(DecodeSH9(words[idx*SH9Length:]).Scale(w))
	}
	return out
}

// Irradiance reconstructs Lambertian irradiance at pos for normal n.
func (g VolumeGeometry) Irradiance(words []int32, pos, n mgl32.Vec3) mgl32.Vec3 {
	return g.SampleSH(words, pos).Irradiance(n)
}
