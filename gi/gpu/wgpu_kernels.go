package gpu

import (
	"fmt"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/probegi/gi/core"
	"github.com/gekko3d/probegi/gi/shaders"
)

// WGPUKernels dispatch the WGSL surfel kernels on a WGPUDevice. Shading is
// fixed to the Lighting model baked into surfel_radiance.wgsl. Dispatches are
// serialized because the parameter uniforms are shared.
type WGPUKernels struct {
	Device   *WGPUDevice
	Lighting Lighting

	mu sync.Mutex

	samplePipeline  *wgpu.ComputePipeline
	projectPipeline *wgpu.ComputePipeline
	sampleParams    *wgpu.Buffer
	projectParams   *wgpu.Buffer
	dummyHistory    Buffer
}

func NewWGPUKernels(dev *WGPUDevice, l Lighting) (*WGPUKernels, error) {
	k := &WGPUKernels{Device: dev, Lighting: l}
	var err error
	if k.samplePipeline, err = k.createPipeline("Surfel Sample", shaders.SurfelSampleWGSL); err != nil {
		return nil, err
	}
	if k.projectPipeline, err = k.createPipeline("Surfel Radiance", shaders.SurfelRadianceWGSL); err != nil {
		k.Release()
		return nil, err
	}
	if k.sampleParams, err = k.createUniform("Surfel Sample Params", SampleUniformsSize); err != nil {
		k.Release()
		return nil, err
	}
	if k.projectParams, err = k.createUniform("Surfel Radiance Params", ProjectUniformsSize); err != nil {
		k.Release()
		return nil, err
	}
	if k.dummyHistory, err = dev.CreateBuffer("Empty History", core.SH9ByteSize); err != nil {
		k.Release()
		return nil, err
	}
	return k, nil
}

func (k *WGPUKernels) createPipeline(label, src string) (*wgpu.ComputePipeline, error) {
	module, err := k.Device.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          label + " CS",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: src},
	})
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", label, err)
	}
	defer module.Release()

	// Layout auto
	pipeline, err := k.Device.Device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label: label + " Pipeline",
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: "main",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create %s pipeline: %w", label, err)
	}
	return pipeline, nil
}

func (k *WGPUKernels) createUniform(label string, size uint64) (*wgpu.Buffer, error) {
	return k.Device.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
}

// uploadCubemap creates a six layer RGBA32F array texture. A nil cubemap
// becomes a single zero texel per face.
func (k *WGPUKernels) uploadCubemap(label string, c *core.Cubemap) (*wgpu.Texture, *wgpu.TextureView, error) {
	if c == nil || c.Size <= 0 {
		c = core.NewCubemap(1)
	}
	size := uint32(c.Size)
	tex, err := k.Device.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         label,
		Size:          wgpu.Extent3D{Width: size, Height: size, DepthOrArrayLayers: core.CubeFaces},
		Format:        wgpu.TextureFormatRGBA32Float,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Dimension:     wgpu.TextureDimension2D,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return nil, nil, err
	}
	k.Device.Queue.WriteTexture(tex.AsImageCopy(), c.Bytes(), &wgpu.TextureDataLayout{
		Offset:       0,
		BytesPerRow:  size * 16,
		RowsPerImage: size,
	}, &wgpu.Extent3D{Width: size, Height: size, DepthOrArrayLayers: core.CubeFaces})

	view, err := tex.CreateView(&wgpu.TextureViewDescriptor{
		Label:           label + " View",
		Format:          wgpu.TextureFormatRGBA32Float,
		Dimension:       wgpu.TextureViewDimension2DArray,
		BaseMipLevel:    0,
		MipLevelCount:   1,
		BaseArrayLayer:  0,
		ArrayLayerCount: core.CubeFaces,
	})
	if err != nil {
		tex.Release()
		return nil, nil, err
	}
	return tex, view, nil
}

func (k *WGPUKernels) dispatch(pipeline *wgpu.ComputePipeline, bg *wgpu.BindGroup) error {
	encoder, err := k.Device.Device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(pipeline)
	pass.SetBindGroup(0, bg, nil)
	// 32x16 threads in 8x8 workgroups
	pass.DispatchWorkgroups(core.SurfelGridX/8, core.SurfelGridY/8, 1)
	pass.End()

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return err
	}
	k.Device.Queue.Submit(cmd)
	return nil
}

func (k *WGPUKernels) SampleSurfels(p SampleParams, worldPos, normal, albedo *core.Cubemap, surfels Buffer) error {
	out, err := k.Device.native(surfels)
	if err != nil {
		return err
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.Device.Queue.WriteBuffer(k.sampleParams, 0, PackSampleUniforms(p))

	names := [3]string{"G-Buffer World Position", "G-Buffer Normal", "G-Buffer Albedo"}
	maps := [3]*core.Cubemap{worldPos, normal, albedo}
	var views [3]*wgpu.TextureView
	for i := range maps {
		tex, view, err := k.uploadCubemap(names[i], maps[i])
		if err != nil {
			return fmt.Errorf("upload %s: %w", names[i], err)
		}
		defer tex.Release()
		defer view.Release()
		views[i] = view
	}

	bg, err := k.Device.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout: k.samplePipeline.GetBindGroupLayout(0),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: k.sampleParams, Size: wgpu.WholeSize},
			{Binding: 1, TextureView: views[0]},
			{Binding: 2, TextureView: views[1]},
			{Binding: 3, TextureView: views[2]},
			{Binding: 4, Buffer: out.Buffer, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		return err
	}
	defer bg.Release()
	return k.dispatch(k.samplePipeline, bg)
}

func (k *WGPUKernels) ProjectRadiance(p ProjectParams, surfels, radiance, sh9, voxel, history Buffer) error {
	if !p.HasHistory || history == nil {
		history = k.dummyHistory
		p.HasHistory = false
	}
	bufs := [5]Buffer{surfels, radiance, sh9, voxel, history}
	var native [5]*wgpu.Buffer
	for i, b := range bufs {
		wb, err := k.Device.native(b)
		if err != nil {
			return err
		}
		native[i] = wb.Buffer
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.Device.Queue.WriteBuffer(k.projectParams, 0, PackProjectUniforms(p, k.Lighting))

	bg, err := k.Device.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout: k.projectPipeline.GetBindGroupLayout(0),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: k.projectParams, Size: wgpu.WholeSize},
			{Binding: 1, Buffer: native[0], Size: wgpu.WholeSize},
			{Binding: 2, Buffer: native[1], Size: wgpu.WholeSize},
			{Binding: 3, Buffer: native[2], Size: wgpu.WholeSize},
			{Binding: 4, Buffer: native[3], Size: wgpu.WholeSize},
			{Binding: 5, Buffer: native[4], Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		return err
	}
	defer bg.Release()
	return k.dispatch(k.projectPipeline, bg)
}

func (k *WGPUKernels) Release() {
	if k.samplePipeline != nil {
		k.samplePipeline.Release()
		k.samplePipeline = nil
	}
	if k.projectPipeline != nil {
		k.projectPipeline.Release()
		k.projectPipeline = nil
	}
	if k.sampleParams != nil {
		k.sampleParams.Release()
		k.sampleParams = nil
	}
	if k.projectParams != nil {
		k.projectParams.Release()
		k.projectParams = nil
	}
	if k.dummyHistory != nil {
		k.dummyHistory.Release()
		k.dummyHistory = nil
	}
}
