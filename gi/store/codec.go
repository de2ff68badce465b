package store

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gekko3d/probegi/gi/core"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
)

var ErrCorrupt = errors.New("store: corrupt volume data")

const (
	fileMagic   = "PGVD"
	fileVersion = 1
)

// fileHeader precedes the surfel floats. Everything is little endian and the
// whole file is one zstd frame.
type fileHeader struct {
	Magic   [4]byte
	Version uint32
	ID      uuid.UUID
	Dims    [3]uint32
	Anchor  [3]float32
	Count   uint32
}

// Encode serializes d into the compressed file format.
func Encode(d *VolumeData) ([]byte, error) {
	h := fileHeader{
		Version: fileVersion,
		ID:      d.ID,
		Dims:    [3]uint32{uint32(d.Dims.X), uint32(d.Dims.Y), uint32(d.Dims.Z)},
		Anchor:  [3]float32{d.VolumePosition[0], d.VolumePosition[1], d.VolumePosition[2]},
		Count:   uint32(len(d.SurfelData)),
	}
	copy(h.Magic[:], fileMagic)

	var raw bytes.Buffer
	raw.Grow(binary.Size(h) + len(d.SurfelData)*4)
	if err := binary.Write(&raw, binary.LittleEndian, &h); err != nil {
		return nil, err
	}
	if err := binary.Write(&raw, binary.LittleEndian, d.SurfelData); err != nil {
		return nil, err
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(raw.Bytes(), nil), nil
}

// Decode parses data written by Encode.
func Decode(data []byte) (*VolumeData, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	defer dec.Close()

	raw, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	r := bytes.NewReader(raw)

	var h fileHeader
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrCorrupt, err)
	}
	if string(h.Magic[:]) != fileMagic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrCorrupt, h.Magic[:])
	}
	if h.Version != fileVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, h.Version)
	}
	if uint64(h.Count)*4 != uint64(r.Len()) {
		return nil, fmt.Errorf("%w: header claims %d floats, payload holds %d bytes", ErrCorrupt, h.Count, r.Len())
	}

	d := &VolumeData{
		ID:             h.ID,
		VolumePosition: h.Anchor,
		Dims:           core.GridSize{X: int(h.Dims[0]), Y: int(h.Dims[1]), Z: int(h.Dims[2])},
		SurfelData:     make([]float32, h.Count),
	}
	if err := binary.Read(r, binary.LittleEndian, d.SurfelData); err != nil {
		return nil, fmt.Errorf("%w: surfels: %v", ErrCorrupt, err)
	}
	return d, nil
}
