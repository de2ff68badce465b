package volume

import (
	"fmt"

	"github.com/gekko3d/probegi/gi/core"
	"github.com/gekko3d/probegi/gi/gpu"
)

// InjectRadiance clears the probe accumulator and projects the radiance of
// every non-sky surfel into it and into voxel at Index()*SH9Length. With a
// nil voxel, or when unparented, the probe's private scratch buffer is the
// target instead. history, when set, is last step's voxel buffer and feeds
// the multi-bounce term. An unallocated probe is a no-op.
func (p *Probe) InjectRadiance(voxel, history gpu.Buffer) error {
	if !p.Allocated() {
		return nil
	}
	if p.opts.Kernels == nil {
		return fmt.Errorf("probe %d: %w: no compute kernels", p.index, core.ErrMissingCollaborator)
	}
	dev := p.opts.Device
	if err := gpu.ZeroBuffer(dev, p.sh9Buf); err != nil {
		return err
	}

	params := gpu.ProjectParams{ProbePos: p.Position}
	if voxel == nil || p.index < 0 {
		if err := gpu.ZeroBuffer(dev, p.scratchBuf); err != nil {
			return err
		}
		voxel = p.scratchBuf
	} else {
		params.VoxelOffset = uint32(p.index * core.SH9Length)
	}
	if history != nil && p.volume != nil {
		params.HasHistory = true
		params.Geometry = p.volume.Geometry()
	}

	if err := p.opts.Kernels.ProjectRadiance(params, p.surfelBuf, p.radianceBuf, p.sh9Buf, voxel, history); err != nil {
		return fmt.Errorf("probe %d inject: %w", p.index, err)
	}
	return nil
}

// ScratchSH9 reads back the private voxel target used while unparented.
func (p *Probe) ScratchSH9() ([]int32, error) {
	if p.scratchBuf == nil {
		return nil, fmt.Errorf("probe %d: %w", p.index, core.ErrUnallocated)
	}
	words, err := gpu.ReadInt32s(p.opts.Device, p.scratchBuf)
	if err != nil {
		return nil, err
	}
	return words[:core.SH9Length], nil
}
