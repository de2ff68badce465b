package volume

import (
	"image"
	"image/color"

	"github.com/gekko3d/probegi/gi/core"
	"github.com/go-gl/mathgl/mgl32"
	xdraw "golang.org/x/image/draw"
)

// Sky rays are drawn this far out.
const skyRayLength = 25

// DebugPrimitive is one line segment of a probe visualisation. Points are
// zero-length segments.
type DebugPrimitive struct {
	From, To mgl32.Vec3
	Color    mgl32.Vec3
	Sky      bool
}

var (
	debugWhite = mgl32.Vec3{1, 1, 1}
	debugCyan  = mgl32.Vec3{0, 1, 1}
)

// DebugPrimitives renders the probe's DebugMode from its host surfel copy.
// SurfelRadiance additionally reads back the radiance buffer.
func (p *Probe) DebugPrimitives() ([]DebugPrimitive, error) {
	if p.DebugMode == ProbeDebugNone {
		return nil, nil
	}
	var radiance []mgl32.Vec3
	if p.DebugMode == ProbeDebugSurfelRadiance {
		var err error
		if radiance, err = p.SurfelRadiance(); err != nil {
			return nil, err
		}
	}

	out := make([]DebugPrimitive, 0, len(p.surfels))
	for i, s := range p.surfels {
		sky := s.IsSky()
		dir := p.sampleDirection(i, s)
		c := debugWhite
		if sky {
			c = debugCyan
		}
		switch p.DebugMode {
		case ProbeDebugSphereDistribution:
			pt := p.Position.Add(dir)
			out = append(out, DebugPrimitive{From: pt, To: pt, Color: c, Sky: sky})
		case ProbeDebugSampleDirection:
			to := s.Position
			if sky {
				to = p.Position.Add(dir.Mul(skyRayLength))
			}
			out = append(out, DebugPrimitive{From: p.Position, To: to, Color: c, Sky: sky})
		case ProbeDebugSurfel:
			if sky {
				continue
			}
			out = append(out, DebugPrimitive{From: s.Position, To: s.Position.Add(s.Normal.Mul(0.25)), Color: c})
		case ProbeDebugSurfelRadiance:
			if sky {
				continue
			}
			out = append(out, DebugPrimitive{From: s.Position, To: s.Position, Color: radiance[i]})
		}
	}
	return out, nil
}

// sampleDirection is the ray that produced surfel i. Sky surfels carry no
// position, so their direction comes from the last capture's seed.
func (p *Probe) sampleDirection(i int, s core.Surfel) mgl32.Vec3 {
	if !s.IsSky() {
		if d := s.Position.Sub(p.Position); d.LenSqr() > 0 {
			return d.Normalize()
		}
	}
	return core.SampleDirection(i%core.SurfelGridX, i/core.SurfelGridX, p.lastSeed)
}

// SkyRatio is the fraction of surfels that hit nothing.
func (p *Probe) SkyRatio() float32 {
	return float32(p.skyCount()) / float32(len(p.surfels))
}

// SurfelAtlas lays the surfels out on their 32x16 lat/long grid, upscaled by
// scale. ProbeDebugSurfelRadiance shows radiance, every other mode albedo.
// Sky cells are cyan.
func (p *Probe) SurfelAtlas(scale int) (*image.RGBA, error) {
	if scale < 1 {
		scale = 1
	}
	var radiance []mgl32.Vec3
	if p.DebugMode == ProbeDebugSurfelRadiance {
		var err error
		if radiance, err = p.SurfelRadiance(); err != nil {
			return nil, err
		}
	}

	src := image.NewRGBA(image.Rect(0, 0, core.SurfelGridX, core.SurfelGridY))
	for y := 0; y < core.SurfelGridY; y++ {
		for x := 0; x < core.SurfelGridX; x++ {
			i := core.SurfelIndex(x, y)
			s := p.surfels[i]
			c := s.Albedo
			switch {
			case s.IsSky():
				c = debugCyan
			case radiance != nil:
				c = radiance[i]
			}
			src.SetRGBA(x, y, toRGBA(c))
		}
	}
	if scale == 1 {
		return src, nil
	}
	dst := image.NewRGBA(image.Rect(0, 0, core.SurfelGridX*scale, core.SurfelGridY*scale))
	xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst, nil
}

func toRGBA(c mgl32.Vec3) color.RGBA {
	ch := func(v float32) uint8 {
		return uint8(mgl32.Clamp(v, 0, 1)*255 + 0.5)
	}
	return color.RGBA{R: ch(c[0]), G: ch(c[1]), B: ch(c[2]), A: 255}
}

// ProbeGridBoxes returns one cube per probe for VolumeDebugProbeGrid, as
// min and max corners.
func (v *ProbeVolume) ProbeGridBoxes() [][2]mgl32.Vec3 {
	if v.DebugMode != VolumeDebugProbeGrid {
		return nil
	}
	cell := mgl32.Vec3{v.cellSize, v.cellSize, v.cellSize}
	out := make([][2]mgl32.Vec3, len(v.probes))
	for i, p := range v.probes {
		out[i] = [2]mgl32.Vec3{p.Position, p.Position.Add(cell)}
	}
	return out
}

// ProbeIrradiance evaluates each probe's own SH9 for normal n, for
// VolumeDebugProbeRadiance.
func (v *ProbeVolume) ProbeIrradiance(n mgl32.Vec3) ([]mgl32.Vec3, error) {
	if v.DebugMode != VolumeDebugProbeRadiance {
		return nil, nil
	}
	out := make([]mgl32.Vec3, len(v.probes))
	for i, p := range v.probes {
		sh, err := p.SH9()
		if err != nil {
			return nil, err
		}
		out[i] = sh.Irradiance(n)
	}
	return out, nil
}
