package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// SampleWeight is the solid angle represented by one surfel of the
// equal-area lat/long tessellation.
const SampleWeight = float32(4 * math.Pi / SurfelsPerProbe)

// SurfelIndex maps a dispatch thread to its surfel slot.
func SurfelIndex(x, y int) int {
	return y*SurfelGridX + x
}

// SampleDirection returns the y-up ray direction for dispatch thread (x, y).
// The seed jitters every direction by the same fraction of a cell.
func SampleDirection(x, y int, seed float32) mgl32.Vec3 {
	u := (float64(x) + float64(seed)) / SurfelGridX
	v := (float64(y) + float64(seed)) / SurfelGridY
	phi := 2 * math.Pi * u
	cosTheta := 1 - 2*v
	if cosTheta > 1 {
		cosTheta = 1
	} else if cosTheta < -1 {
		cosTheta = -1
	}
	sinTheta := math.Sqrt(1 - cosTheta*cosTheta)
	return mgl32.Vec3{
		float32(sinTheta * math.Cos(phi)),
		float32(cosTheta),
		float32(sinTheta * math.Sin(phi)),
	}
}

// SampleDirections returns all SurfelsPerProbe directions in surfel order.
func SampleDirections(seed float32) []mgl32.Vec3 {
	dirs := make([]mgl32.Vec3, SurfelsPerProbe)
	for y := 0; y < SurfelGridY; y++ {
		for x := 0; x < SurfelGridX; x++ {
			dirs[SurfelIndex(x, y)] = SampleDirection(x, y, seed)
		}
	}
	return dirs
}
