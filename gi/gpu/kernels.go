package gpu

import (
	"github.com/gekko3d/probegi/gi/core"
	"github.com/go-gl/mathgl/mgl32"
)

// SampleParams drive one surfel sampling dispatch.
type SampleParams struct {
	ProbePos mgl32.Vec3
	// Seed jitters every ray direction by the same fraction of a cell, in [0,1).
	Seed float32
}

// ProjectParams drive one radiance projection dispatch.
type ProjectParams struct {
	ProbePos mgl32.Vec3
	// VoxelOffset is the first int32 word of the probe's segment in the voxel buffer.
	VoxelOffset uint32
	// HasHistory is set when history holds last step's voxel buffer for multi-bounce lookups.
	HasHistory bool
	Geometry   core.VolumeGeometry
}

// Kernels are the two compute stages of the probe pipeline.
//
// SampleSurfels writes SurfelsPerProbe surfels into surfels from the three
// G-buffer cubemaps. A nil cubemap reads as zero.
//
// ProjectRadiance shades every non-sky surfel, stores per-surfel radiance and
// atomically adds the fixed-point SH9 projection into both sh9 and voxel at
// VoxelOffset. Neither accumulator is cleared. history may be nil when
// HasHistory is false.
type Kernels interface {
	SampleSurfels(p SampleParams, worldPos, normal, albedo *core.Cubemap, surfels Buffer) error
	ProjectRadiance(p ProjectParams, surfels, radiance, sh9, voxel, history Buffer) error
}
