package scene

import (
	"fmt"
	"math"
	"sync"

	"github.com/gekko3d/probegi/gi/core"
	"github.com/go-gl/mathgl/mgl32"
)

// Hit describes the closest intersection along a ray.
type Hit struct {
	T      float32
	Point  mgl32.Vec3
	Normal mgl32.Vec3
	Albedo mgl32.Vec3
}

// Shape is anything the reference renderer can intersect.
type Shape interface {
	Hit(origin, dir mgl32.Vec3, tMin, tMax float32) (Hit, bool)
}

type Sphere struct {
	Center mgl32.Vec3
	Radius float32
	Albedo mgl32.Vec3
}

func (s Sphere) Hit(origin, dir mgl32.Vec3, tMin, tMax float32) (Hit, bool) {
	oc := origin.Sub(s.Center)
	a := dir.Dot(dir)
	halfB := oc.Dot(dir)
	c := oc.Dot(oc) - s.Radius*s.Radius
	disc := halfB*halfB - a*c
	if disc < 0 {
		return Hit{}, false
	}
	sqrtD := float32(math.Sqrt(float64(disc)))

	// Closer root first
	root := (-halfB - sqrtD) / a
	if root < tMin || root > tMax {
		root = (-halfB + sqrtD) / a
		if root < tMin || root > tMax {
			return Hit{}, false
		}
	}

	p := origin.Add(dir.Mul(root))
	outward := p.Sub(s.Center).Mul(1 / s.Radius)
	return Hit{T: root, Point: p, Normal: faceNormal(dir, outward), Albedo: s.Albedo}, true
}

// Plane is infinite, defined by a point and a normal.
type Plane struct {
	Point  mgl32.Vec3
	Normal mgl32.Vec3
	Albedo mgl32.Vec3
}

func (p Plane) Hit(origin, dir mgl32.Vec3, tMin, tMax float32) (Hit, bool) {
	n := p.Normal.Normalize()
	denom := dir.Dot(n)
	if abs32(denom) < 1e-8 {
		return Hit{}, false
	}
	t := p.Point.Sub(origin).Dot(n) / denom
	if t < tMin || t > tMax {
		return Hit{}, false
	}
	return Hit{T: t, Point: origin.Add(dir.Mul(t)), Normal: faceNormal(dir, n), Albedo: p.Albedo}, true
}

// faceNormal orients the normal against the incoming ray.
func faceNormal(dir, outward mgl32.Vec3) mgl32.Vec3 {
	if dir.Dot(outward) > 0 {
		return outward.Mul(-1)
	}
	return outward
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

// RaycastScene is a software G-buffer renderer over analytic shapes. It
// stands in for the engine during offline bakes and tests.
type RaycastScene struct {
	Shapes []Shape
	// Far bounds every ray. Zero means 1000.
	Far float32
	// Unavailable marks channels whose override shader cannot be resolved.
	Unavailable map[Channel]bool

	mu     sync.Mutex
	active Channel
	held   bool
	// Renders counts cubemaps rendered, per channel.
	renders map[Channel]int
}

func NewRaycastScene(shapes ...Shape) *RaycastScene {
	return &RaycastScene{Shapes: shapes}
}

func (s *RaycastScene) Add(shape Shape) {
	s.Shapes = append(s.Shapes, shape)
}

func (s *RaycastScene) AcquireOverride(ch Channel) (func(), error) {
	if s.Unavailable[ch] {
		return nil, fmt.Errorf("%w: %s override shader", core.ErrMissingCollaborator, ch)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.held {
		return nil, fmt.Errorf("%w: %s requested while %s is active", ErrOverrideBusy, ch, s.active)
	}
	s.held = true
	s.active = ch

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.held = false
			s.mu.Unlock()
		})
	}, nil
}

// OverrideActive reports whether a shading override is currently held.
func (s *RaycastScene) OverrideActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.held
}

func (s *RaycastScene) Renders(ch Channel) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renders[ch]
}

func (s *RaycastScene) NewCamera(pos mgl32.Vec3, clear mgl32.Vec4) (Camera, error) {
	return &raycastCamera{scene: s, pos: pos, clear: clear}, nil
}

// Trace returns the closest hit along a normalized direction.
func (s *RaycastScene) Trace(origin, dir mgl32.Vec3) (Hit, bool) {
	far := s.Far
	if far <= 0 {
		far = 1000
	}
	var best Hit
	found := false
	for _, shape := range s.Shapes {
		if h, ok := shape.Hit(origin, dir, 1e-4, far); ok {
			far = h.T
			best = h
			found = true
		}
	}
	return best, found
}

type raycastCamera struct {
	scene     *RaycastScene
	pos       mgl32.Vec3
	clear     mgl32.Vec4
	destroyed bool
}

func (c *raycastCamera) RenderToCubemap(target *core.Cubemap) error {
	if c.destroyed {
		return ErrCameraDestroyed
	}
	if target == nil {
		return nil
	}
	s := c.scene
	s.mu.Lock()
	held, ch := s.held, s.active
	if held {
		if s.renders == nil {
			s.renders = make(map[Channel]int)
		}
		s.renders[ch]++
	}
	s.mu.Unlock()
	if !held {
		return ErrNoOverride
	}

	target.Clear(c.clear)
	for f := core.CubeFace(0); f < core.CubeFaces; f++ {
		for y := 0; y < target.Size; y++ {
			for x := 0; x < target.Size; x++ {
				h, ok := s.Trace(c.pos, target.TexelDirection(f, x, y))
				if !ok {
					continue
				}
				var v mgl32.Vec3
				switch ch {
				case ChannelWorldPosition:
					v = h.Point
				case ChannelNormal:
					v = h.Normal
				case ChannelAlbedo:
					v = h.Albedo
				}
				target.Set(f, x, y, v.Vec4(1))
			}
		}
	}
	return nil
}

func (c *raycastCamera) Destroy() {
	c.destroyed = true
}
