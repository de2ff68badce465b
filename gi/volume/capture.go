package volume

import (
	"fmt"

	"github.com/gekko3d/probegi/gi/core"
	"github.com/gekko3d/probegi/gi/gpu"
	"github.com/gekko3d/probegi/gi/scene"
	"github.com/go-gl/mathgl/mgl32"
)

// Capture renders the three G-buffer cubemaps around the probe, samples
// surfels from them and reads the result back into the host copy. On failure
// the probe degrades to all-sky surfels and the error is returned.
func (p *Probe) Capture(sc scene.Scene) error {
	if err := p.Init(); err != nil {
		return err
	}
	if p.opts.Kernels == nil {
		p.degrade()
		return fmt.Errorf("probe %d: %w: no compute kernels", p.index, core.ErrMissingCollaborator)
	}
	if err := p.renderGBuffer(sc); err != nil {
		p.degrade()
		return fmt.Errorf("probe %d capture: %w", p.index, err)
	}

	p.lastSeed = p.opts.seed()
	params := gpu.SampleParams{ProbePos: p.Position, Seed: p.lastSeed}
	rt := p.RenderTargets
	if err := p.opts.Kernels.SampleSurfels(params, rt[0], rt[1], rt[2], p.surfelBuf); err != nil {
		p.degrade()
		return fmt.Errorf("probe %d sample: %w", p.index, err)
	}
	if err := p.SyncSurfels(); err != nil {
		p.degrade()
		return fmt.Errorf("probe %d capture: %w", p.index, err)
	}
	p.logger.Debugf("probe %d captured at %v, %d sky surfels", p.index, p.Position, p.skyCount())
	return nil
}

func (p *Probe) renderGBuffer(sc scene.Scene) error {
	// Transparent black, so misses read as alpha 0 in the world position channel
	cam, err := sc.NewCamera(p.Position, mgl32.Vec4{0, 0, 0, 0})
	if err != nil {
		return err
	}
	defer cam.Destroy()

	for i, ch := range scene.Channels {
		if err := renderChannel(sc, cam, ch, p.RenderTargets[i]); err != nil {
			return err
		}
	}
	return nil
}

func renderChannel(sc scene.Scene, cam scene.Camera, ch scene.Channel, target *core.Cubemap) error {
	release, err := sc.AcquireOverride(ch)
	if err != nil {
		return fmt.Errorf("%s pass: %w", ch, err)
	}
	defer release()
	if err := cam.RenderToCubemap(target); err != nil {
		return fmt.Errorf("%s pass: %w", ch, err)
	}
	return nil
}

// degrade replaces every surfel with sky so the probe injects nothing.
func (p *Probe) degrade() {
	for i := range p.surfels {
		p.surfels[i] = core.SkySurfel()
	}
	if p.surfelBuf != nil {
		if err := p.UploadSurfels(); err != nil {
			p.logger.Errorf("probe %d: upload degraded surfels: %v", p.index, err)
		}
	}
}

func (p *Probe) skyCount() int {
	n := 0
	for _, s := range p.surfels {
		if s.IsSky() {
			n++
		}
	}
	return n
}
