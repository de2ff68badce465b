package gpu

import (
	"math"

	"github.com/gekko3d/probegi/gi/core"
	"github.com/go-gl/mathgl/mgl32"
)

// SurfelShader computes the outgoing radiance of a surfel. indirect is the
// irradiance reconstructed from last step's voxel buffer, zero without history.
type SurfelShader interface {
	Shade(s core.Surfel, indirect mgl32.Vec3) mgl32.Vec3
}

// Lighting is the default Lambertian surfel shader: one directional light plus
// bounced light from the volume itself.
type Lighting struct {
	// SunDirection points from the light towards the scene.
	SunDirection mgl32.Vec3
	SunColor     mgl32.Vec3
	// Bounce scales the indirect term. Zero disables multi-bounce.
	Bounce float32
}

func DefaultLighting() Lighting {
	return Lighting{
		SunDirection: mgl32.Vec3{-0.3, -1, -0.2}.Normalize(),
		SunColor:     mgl32.Vec3{1, 1, 1},
		Bounce:       1,
	}
}

func (l Lighting) Shade(s core.Surfel, indirect mgl32.Vec3) mgl32.Vec3 {
	var ndotl float32
	if l.SunDirection.LenSqr() > 0 {
		ndotl = s.Normal.Dot(l.SunDirection.Normalize().Mul(-1))
	}
	if ndotl < 0 {
		ndotl = 0
	}
	e := l.SunColor.Mul(ndotl).Add(indirect.Mul(l.Bounce / math.Pi))
	return mgl32.Vec3{s.Albedo[0] * e[0], s.Albedo[1] * e[1], s.Albedo[2] * e[2]}
}

// ShaderFunc adapts a plain function to SurfelShader.
type ShaderFunc func(s core.Surfel, indirect mgl32.Vec3) mgl32.Vec3

func (f ShaderFunc) Shade(s core.Surfel, indirect mgl32.Vec3) mgl32.Vec3 {
	return f(s, indirect)
}
