package gpu

import (
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"
)

// HostDevice keeps buffers in host memory. It backs the host kernels and is
// the device used when no GPU adapter is available.
type HostDevice struct {
	mu      sync.Mutex
	live    int
	created int
}

func NewHostDevice() *HostDevice {
	return &HostDevice{}
}

// HostBuffer stores its contents as 32-bit words so kernels can accumulate
// with sync/atomic.
type HostBuffer struct {
	dev      *HostDevice
	label    string
	size     uint64
	words    []int32
	released atomic.Bool
}

func (d *HostDevice) Name() string { return "host" }

func (d *HostDevice) CreateBuffer(label string, size uint64) (Buffer, error) {
	size = alignSize(size)
	if size == 0 {
		size = 4
	}
	d.mu.Lock()
	d.live++
	d.created++
	d.mu.Unlock()
	return &HostBuffer{
		dev:   d,
		label: label,
		size:  size,
		words: make([]int32, size/4),
	}, nil
}

// LiveBuffers reports how many buffers have been created and not yet released.
func (d *HostDevice) LiveBuffers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.live
}

func (d *HostDevice) CreatedBuffers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.created
}

func (d *HostDevice) host(buf Buffer) (*HostBuffer, error) {
	hb, ok := buf.(*HostBuffer)
	if !ok || hb.dev != d {
		return nil, ErrForeignBuffer
	}
	hb.mustBeLive()
	return hb, nil
}

func (d *HostDevice) WriteBuffer(buf Buffer, offset uint64, data []byte) error {
	hb, err := d.host(buf)
	if err != nil {
		return err
	}
	if offset%4 != 0 || len(data)%4 != 0 {
		return ErrUnaligned
	}
	if offset+uint64(len(data)) > hb.size {
		return fmt.Errorf("%w: %q size %d, write %d at %d", ErrOutOfRange, hb.label, hb.size, len(data), offset)
	}
	base := int(offset / 4)
	for i := 0; i < len(data)/4; i++ {
		hb.words[base+i] = int32(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return nil
}

func (d *HostDevice) ReadBuffer(buf Buffer) ([]byte, error) {
	hb, err := d.host(buf)
	if err != nil {
		return nil, err
	}
	out := make([]byte, hb.size)
	for i := range hb.words {
		binary.LittleEndian.PutUint32(out[i*4:], uint32(atomic.LoadInt32(&hb.words[i])))
	}
	return out, nil
}

// Words exposes the backing storage to host kernels.
func (d *HostDevice) Words(buf Buffer) ([]int32, error) {
	hb, err := d.host(buf)
	if err != nil {
		return nil, err
	}
	return hb.words, nil
}

func (b *HostBuffer) Label() string { return b.label }
func (b *HostBuffer) Size() uint64  { return b.size }

// Release frees the buffer. Releasing twice is a programming error and panics.
func (b *HostBuffer) Release() {
	if !b.released.CompareAndSwap(false, true) {
		panic(fmt.Sprintf("gpu: buffer %q released twice", b.label))
	}
	b.words = nil
	b.dev.mu.Lock()
	b.dev.live--
	b.dev.mu.Unlock()
}

func (b *HostBuffer) Released() bool {
	return b.released.Load()
}

func (b *HostBuffer) mustBeLive() {
	if b.released.Load() {
		panic(fmt.Sprintf("gpu: buffer %q used after release", b.label))
	}
}
