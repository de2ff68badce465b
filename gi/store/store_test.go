package store

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/gekko3d/probegi/gi/core"
	"github.com/gekko3d/probegi/gi/gpu"
	"github.com/gekko3d/probegi/gi/scene"
	"github.com/gekko3d/probegi/gi/volume"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newVolume(t *testing.T, anchor mgl32.Vec3, x, y, z int) *volume.ProbeVolume {
	t.Helper()
	dev := gpu.NewHostDevice()
	v := volume.NewProbeVolume(dev, anchor, nil)
	require.NoError(t, v.GenerateGrid(x, y, z, 2, volume.ProbeOptions{
		Device:  dev,
		Kernels: gpu.NewHostKernels(dev, nil),
	}))
	t.Cleanup(v.Release)
	return v
}

// fillSurfels gives every field of every probe a distinct bit pattern,
// including NaN payloads, infinities and negative zero.
func fillSurfels(t *testing.T, v *volume.ProbeVolume, salt uint32) {
	t.Helper()
	specials := []float32{
		math.Float32frombits(0x7fc00001 + salt),
		float32(math.Inf(-1)),
		float32(math.Copysign(0, -1)),
		math.Float32frombits(1),
	}
	for pi, p := range v.Probes() {
		surfels := make([]core.Surfel, core.SurfelsPerProbe)
		for i := range surfels {
			var f [core.FieldsPerSurfel]float32
			for j := range f {
				k := (pi*core.SurfelsPerProbe+i)*core.FieldsPerSurfel + j
				if k%97 == 0 {
					f[j] = specials[(k/97)%len(specials)]
				} else {
					f[j] = float32(k)*0.001 + float32(salt)
				}
			}
			surfels[i] = core.SurfelFromFields(f[:])
		}
		require.NoError(t, p.SetSurfels(surfels))
	}
}

func surfelBits(t *testing.T, v *volume.ProbeVolume) []uint32 {
	t.Helper()
	var out []uint32
	for _, p := range v.Probes() {
		require.NoError(t, p.SyncSurfels())
		for _, s := range p.Surfels() {
			for _, f := range s.Fields() {
				out = append(out, math.Float32bits(f))
			}
		}
	}
	return out
}

func TestRoundTripInMemory(t *testing.T) {
	src := newVolume(t, mgl32.Vec3{1, 2, 3}, 2, 1, 2)
	fillSurfels(t, src, 0)
	s := New("", nil)
	require.NoError(t, s.Save(src))
	require.Len(t, s.Data.SurfelData, ExpectedLength(src))

	dst := newVolume(t, mgl32.Vec3{1, 2, 3}, 2, 1, 2)
	require.NoError(t, s.TryLoad(dst))
	assert.Equal(t, surfelBits(t, src), surfelBits(t, dst), "load(save(x)) is bit exact")
}

func TestRoundTripFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "volume.pgv")
	src := newVolume(t, mgl32.Vec3{}, 1, 2, 1)
	fillSurfels(t, src, 3)

	saver := New(path, nil)
	require.NoError(t, saver.Save(src))
	id := saver.Data.ID
	require.NotEqual(t, uuid.Nil, id)

	loader := New(path, nil)
	dst := newVolume(t, mgl32.Vec3{}, 1, 2, 1)
	require.NoError(t, loader.TryLoad(dst))
	assert.Equal(t, id, loader.Data.ID)
	assert.Equal(t, core.GridSize{X: 1, Y: 2, Z: 1}, loader.Data.Dims)
	assert.Equal(t, surfelBits(t, src), surfelBits(t, dst))

	// Re-saving keeps the record identity
	require.NoError(t, saver.Save(src))
	assert.Equal(t, id, saver.Data.ID)
}

func TestScenario2x1x1(t *testing.T) {
	v := newVolume(t, mgl32.Vec3{}, 2, 1, 1)
	fillSurfels(t, v, 1)
	s := New("", nil)
	require.NoError(t, s.Save(v))
	assert.Len(t, s.Data.SurfelData, 2*512*10)

	v.SetAnchor(mgl32.Vec3{0, 0, 1})
	fillSurfels(t, v, 2)
	before := surfelBits(t, v)
	assert.ErrorIs(t, s.TryLoad(v), core.ErrStaleData)
	assert.Equal(t, before, surfelBits(t, v), "stale loads mutate nothing")
}

func TestStaleOnAnyAnchorTranslation(t *testing.T) {
	v := newVolume(t, mgl32.Vec3{5, 5, 5}, 1, 1, 1)
	s := New("", nil)
	require.NoError(t, s.Save(v))

	v.SetAnchor(mgl32.Vec3{5, 5, 5 + 1e-6})
	assert.ErrorIs(t, s.Validate(v), core.ErrStaleData)
	v.SetAnchor(mgl32.Vec3{5, 5, 5})
	assert.NoError(t, s.Validate(v))
}

func TestStaleOnDimensionChange(t *testing.T) {
	v := newVolume(t, mgl32.Vec3{}, 2, 1, 1)
	fillSurfels(t, v, 0)
	s := New("", nil)
	require.NoError(t, s.Save(v))

	tests := []struct {
		name    string
		x, y, z int
	}{
		{"same count, other axes", 1, 2, 1},
		{"more probes", 3, 1, 1},
		{"fewer probes", 1, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			other := newVolume(t, mgl32.Vec3{}, tt.x, tt.y, tt.z)
			fillSurfels(t, other, 9)
			before := surfelBits(t, other)
			assert.ErrorIs(t, s.TryLoad(other), core.ErrStaleData)
			assert.Equal(t, before, surfelBits(t, other))
		})
	}
}

func TestUntaggedRecordsCheckLengthOnly(t *testing.T) {
	v := newVolume(t, mgl32.Vec3{}, 1, 2, 1)
	s := New("", nil)
	s.Data = &VolumeData{SurfelData: make([]float32, ExpectedLength(v))}
	assert.NoError(t, s.TryLoad(v))
}

func TestMissingFileIsStale(t *testing.T) {
	v := newVolume(t, mgl32.Vec3{}, 1, 1, 1)
	s := New(filepath.Join(t.TempDir(), "absent.pgv"), nil)
	assert.ErrorIs(t, s.TryLoad(v), core.ErrStaleData)

	assert.ErrorIs(t, New("", nil).TryLoad(v), core.ErrStaleData, "nothing captured yet")
}

func TestCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.pgv")
	require.NoError(t, os.WriteFile(path, []byte("not zstd"), 0644))
	v := newVolume(t, mgl32.Vec3{}, 1, 1, 1)
	assert.ErrorIs(t, New(path, nil).TryLoad(v), ErrCorrupt)
}

func TestDecodeRejectsBadPayloads(t *testing.T) {
	blob, err := Encode(&VolumeData{ID: uuid.New(), SurfelData: []float32{1, 2, 3}})
	require.NoError(t, err)
	d, err := Decode(blob)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, d.SurfelData)

	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	defer enc.Close()
	raw := func(magic string, version, count uint32, floats int) []byte {
		h := fileHeader{Version: version, Count: count}
		copy(h.Magic[:], magic)
		var b bytes.Buffer
		require.NoError(t, binary.Write(&b, binary.LittleEndian, &h))
		require.NoError(t, binary.Write(&b, binary.LittleEndian, make([]float32, floats)))
		return enc.EncodeAll(b.Bytes(), nil)
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"count too large", raw(fileMagic, fileVersion, 4, 3)},
		{"count too small", raw(fileMagic, fileVersion, 2, 3)},
		{"bad magic", raw("XXXX", fileVersion, 3, 3)},
		{"future version", raw(fileMagic, fileVersion+1, 3, 3)},
		{"short header", enc.EncodeAll([]byte(fileMagic), nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			assert.ErrorIs(t, err, ErrCorrupt)
		})
	}
}

func TestCaptureAllPersists(t *testing.T) {
	v := newVolume(t, mgl32.Vec3{}, 2, 1, 1)
	s := New(filepath.Join(t.TempDir(), "cap.pgv"), nil)
	require.NoError(t, v.CaptureAll(scene.NewRaycastScene(), s))
	require.Len(t, s.Data.SurfelData, 2*512*10)
	// Nothing to hit: every stored sky mask is 1
	for i := core.FieldsPerSurfel - 1; i < len(s.Data.SurfelData); i += core.FieldsPerSurfel {
		if s.Data.SurfelData[i] != 1 {
			t.Fatalf("Expected sky mask 1 at %d, got %f", i, s.Data.SurfelData[i])
		}
	}
	_, err := os.Stat(s.Path)
	assert.NoError(t, err)
}
