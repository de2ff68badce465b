package volume

import (
	"sync/atomic"

	"github.com/gekko3d/probegi/gi/gpu"
)

// voxelBuffers is the temporal ping-pong pair. Neither handle moves; the
// parity of flips selects which one is current.
type voxelBuffers struct {
	a, b  gpu.Buffer
	flips atomic.Uint32
}

func (v *voxelBuffers) allocated() bool {
	return v.a != nil && v.b != nil
}

func (v *voxelBuffers) current() gpu.Buffer {
	if v.flips.Load()%2 == 0 {
		return v.a
	}
	return v.b
}

func (v *voxelBuffers) previous() gpu.Buffer {
	if v.flips.Load()%2 == 0 {
		return v.b
	}
	return v.a
}

func (v *voxelBuffers) swap() {
	if !v.allocated() {
		return
	}
	v.flips.Add(1)
}

func (v *voxelBuffers) release() {
	if v.a != nil {
		v.a.Release()
		v.a = nil
	}
	if v.b != nil {
		v.b.Release()
		v.b = nil
	}
	v.flips.Store(0)
}
