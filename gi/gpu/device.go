package gpu

import (
	"encoding/binary"
	"errors"
)

var (
	ErrForeignBuffer = errors.New("gpu: buffer does not belong to this device")
	ErrOutOfRange    = errors.New("gpu: write outside buffer bounds")
	ErrUnaligned     = errors.New("gpu: offset or size not 4-byte aligned")
)

// Buffer is a device storage buffer. It is owned by whoever created it and
// must be released exactly once.
type Buffer interface {
	Label() string
	Size() uint64
	Release()
}

// Device allocates buffers and moves bytes between host and device memory.
// ReadBuffer blocks until every dispatch that targets the buffer has completed.
type Device interface {
	Name() string
	CreateBuffer(label string, size uint64) (Buffer, error)
	WriteBuffer(buf Buffer, offset uint64, data []byte) error
	ReadBuffer(buf Buffer) ([]byte, error)
}

// alignSize rounds n up to a multiple of 4, as storage buffers require.
func alignSize(n uint64) uint64 {
	if n%4 != 0 {
		n += 4 - (n % 4)
	}
	return n
}

// ZeroBuffer fills buf with zeros.
func ZeroBuffer(dev Device, buf Buffer) error {
	return dev.WriteBuffer(buf, 0, make([]byte, buf.Size()))
}

func Int32sToBytes(words []int32) []byte {
	buf := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(w))
	}
	return buf
}

func BytesToInt32s(data []byte) []int32 {
	words := make([]int32, len(data)/4)
	for i := range words {
		words[i] = int32(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return words
}

// ReadInt32s reads back a whole buffer as int32 words.
func ReadInt32s(dev Device, buf Buffer) ([]int32, error) {
	data, err := dev.ReadBuffer(buf)
	if err != nil {
		return nil, err
	}
	return BytesToInt32s(data), nil
}
