package gpu

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/cogentcore/webgpu/wgpu"
)

var ErrMapFailed = errors.New("gpu: buffer map failed")

// WGPUDevice is a headless WebGPU device. Storage buffers are created with
// CopySrc so they can be read back through a staging buffer.
type WGPUDevice struct {
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue
}

type WGPUBuffer struct {
	label    string
	size     uint64
	Buffer   *wgpu.Buffer
	released atomic.Bool
}

// NewWGPUDevice requests a high performance adapter without a surface.
func NewWGPUDevice() (*WGPUDevice, error) {
	d := &WGPUDevice{}
	d.Instance = wgpu.CreateInstance(nil)

	adapter, err := d.Instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		d.Instance.Release()
		return nil, fmt.Errorf("request adapter: %w", err)
	}
	d.Adapter = adapter

	d.Device, err = adapter.RequestDevice(nil)
	if err != nil {
		adapter.Release()
		d.Instance.Release()
		return nil, fmt.Errorf("request device: %w", err)
	}
	d.Queue = d.Device.GetQueue()
	return d, nil
}

func (d *WGPUDevice) Name() string { return "wgpu" }

func (d *WGPUDevice) CreateBuffer(label string, size uint64) (Buffer, error) {
	size = alignSize(size)
	if size == 0 {
		size = 4
	}
	buf, err := d.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("create buffer %q: %w", label, err)
	}
	return &WGPUBuffer{label: label, size: size, Buffer: buf}, nil
}

func (d *WGPUDevice) native(buf Buffer) (*WGPUBuffer, error) {
	wb, ok := buf.(*WGPUBuffer)
	if !ok {
		return nil, ErrForeignBuffer
	}
	if wb.released.Load() {
		panic(fmt.Sprintf("gpu: buffer %q used after release", wb.label))
	}
	return wb, nil
}

func (d *WGPUDevice) WriteBuffer(buf Buffer, offset uint64, data []byte) error {
	wb, err := d.native(buf)
	if err != nil {
		return err
	}
	if offset%4 != 0 || len(data)%4 != 0 {
		return ErrUnaligned
	}
	if offset+uint64(len(data)) > wb.size {
		return fmt.Errorf("%w: %q size %d, write %d at %d", ErrOutOfRange, wb.label, wb.size, len(data), offset)
	}
	if len(data) == 0 {
		return nil
	}
	d.Queue.WriteBuffer(wb.Buffer, offset, data)
	return nil
}

// ReadBuffer copies buf into a MapRead staging buffer and blocks until the
// mapping completes.
func (d *WGPUDevice) ReadBuffer(buf Buffer) ([]byte, error) {
	wb, err := d.native(buf)
	if err != nil {
		return nil, err
	}

	staging, err := d.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: wb.label + " Readback",
		Size:  wb.size,
		Usage: wgpu.BufferUsageCopyDst | wgpu.BufferUsageMapRead,
	})
	if err != nil {
		return nil, fmt.Errorf("create readback buffer: %w", err)
	}
	defer staging.Release()

	encoder, err := d.Device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, err
	}
	encoder.CopyBufferToBuffer(wb.Buffer, 0, staging, 0, wb.size)
	cmd, err := encoder.Finish(nil)
	if err != nil {
		return nil, err
	}
	d.Queue.Submit(cmd)

	var status wgpu.BufferMapAsyncStatus
	done := false
	staging.MapAsync(wgpu.MapModeRead, 0, wb.size, func(s wgpu.BufferMapAsyncStatus) {
		status = s
		done = true
	})
	for !done {
		d.Device.Poll(true, nil)
	}
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return nil, fmt.Errorf("%w: %q status %v", ErrMapFailed, wb.label, status)
	}

	out := make([]byte, wb.size)
	copy(out, staging.GetMappedRange(0, uint(wb.size)))
	staging.Unmap()
	return out, nil
}

func (d *WGPUDevice) Release() {
	if d.Device != nil {
		d.Device.Release()
		d.Device = nil
	}
	if d.Adapter != nil {
		d.Adapter.Release()
		d.Adapter = nil
	}
	if d.Instance != nil {
		d.Instance.Release()
		d.Instance = nil
	}
}

func (b *WGPUBuffer) Label() string { return b.label }
func (b *WGPUBuffer) Size() uint64  { return b.size }

func (b *WGPUBuffer) Release() {
	if !b.released.CompareAndSwap(false, true) {
		panic(fmt.Sprintf("gpu: buffer %q released twice", b.label))
	}
	b.Buffer.Release()
	b.Buffer = nil
}
