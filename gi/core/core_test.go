package core

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func closeEnough(a, b, eps float32) bool {
	return float32(math.Abs(float64(a-b))) <= eps
}

func TestSurfelLayout(t *testing.T) {
	if SurfelByteSize != 40 {
		t.Fatalf("Expected 40 byte surfels, got %d", SurfelByteSize)
	}
	if FieldsPerSurfel != 10 {
		t.Fatalf("Expected 10 fields per surfel, got %d", FieldsPerSurfel)
	}
	if SurfelsPerProbe != 512 {
		t.Fatalf("Expected 512 surfels per probe, got %d", SurfelsPerProbe)
	}
}

func TestSurfelEncodeDecodeBits(t *testing.T) {
	nan := math.Float32frombits(0x7fc00123)
	in := []Surfel{
		{Position: mgl32.Vec3{1, -2, 3.5}, Normal: mgl32.Vec3{0, 1, 0}, Albedo: mgl32.Vec3{0.25, 0.5, 0.75}},
		SkySurfel(),
		{Position: mgl32.Vec3{nan, float32(math.Inf(1)), -0}, SkyMask: 0.5},
	}

	data := EncodeSurfels(in)
	require.Len(t, data, len(in)*SurfelByteSize)

	out := DecodeSurfels(data)
	require.Len(t, out, len(in))
	for i := range in {
		a, b := in[i].Fields(), out[i].Fields()
		for j := range a {
			if math.Float32bits(a[j]) != math.Float32bits(b[j]) {
				t.Errorf("surfel %d field %d: bits %08x != %08x", i, j, math.Float32bits(a[j]), math.Float32bits(b[j]))
			}
		}
	}

	// Field 9 sits at byte offset 36
	if got := math.Float32frombits(uint32(data[SurfelByteSize+36]) | uint32(data[SurfelByteSize+37])<<8 |
		uint32(data[SurfelByteSize+38])<<16 | uint32(data[SurfelByteSize+39])<<24); got != 1 {
		t.Errorf("Expected sky mask 1 at offset 36 of second surfel, got %f", got)
	}
}

func TestSurfelWords(t *testing.T) {
	words := make([]int32, 2*FieldsPerSurfel)
	s := Surfel{Position: mgl32.Vec3{4, 5, 6}, Normal: mgl32.Vec3{0, 0, 1}, Albedo: mgl32.Vec3{1, 1, 1}}
	PutSurfelWords(words, 1, s)
	assert.Equal(t, s, SurfelFromWords(words, 1))
	assert.Equal(t, Surfel{}, SurfelFromWords(words, 0))
}

func TestSkyClassification(t *testing.T) {
	assert.True(t, SkySurfel().IsSky())
	assert.True(t, Surfel{SkyMask: 0.995}.IsSky())
	assert.False(t, Surfel{SkyMask: 0.99}.IsSky())
	assert.False(t, Surfel{}.IsSky())
}

func TestFixedPoint(t *testing.T) {
	assert.Equal(t, int32(12345), EncodeFixed(1.2345))
	assert.Equal(t, int32(-5), EncodeFixed(-0.0005))
	assert.Equal(t, int32(FixedLimit), EncodeFixed(1e9))
	assert.Equal(t, int32(-FixedLimit), EncodeFixed(-1e9))
	assert.Equal(t, int32(-FixedLimit), EncodeFixed(float32(math.Inf(-1))))
	// 2.5e5 scales past the f32 clamp the shader applies; both sides agree
	assert.Equal(t, int32(2147483520), EncodeFixed(2.5e5))
	assert.Equal(t, int32(0), EncodeFixed(float32(math.NaN())))

	if !closeEnough(DecodeFixed(EncodeFixed(0.7071)), 0.7071, 1e-6) {
		t.Errorf("fixed point round trip lost precision: %f", DecodeFixed(EncodeFixed(0.7071)))
	}
}

func TestSampleDirectionsUnitAndDistinct(t *testing.T) {
	dirs := SampleDirections(0.5)
	require.Len(t, dirs, SurfelsPerProbe)

	var sum mgl32.Vec3
	for i, d := range dirs {
		if !closeEnough(d.Len(), 1, 1e-5) {
			t.Errorf("direction %d not unit: %v", i, d)
		}
		sum = sum.Add(d)
	}
	// An equal-area tessellation is balanced around the origin.
	if sum.Len() > 1e-3 {
		t.Errorf("Expected directions to cancel out, got sum %v", sum)
	}

	// Same seed, same directions
	again := SampleDirections(0.5)
	assert.Equal(t, dirs, again)
}

func TestSHProjectionOfConstantRadiance(t *testing.T) {
	var sh SH9
	for _, d := range SampleDirections(0.5) {
		sh.AddSample(d, mgl32.Vec3{1, 2, 3}, SampleWeight)
	}
	// L00 of a constant field L is L*sqrt(4pi)
	want := float32(math.Sqrt(4 * math.Pi))
	for c := 0; c < 3; c++ {
		if !closeEnough(sh[0][c], want*float32(c+1), 1e-3*float32(c+1)) {
			t.Errorf("L00[%d] = %f, want %f", c, sh[0][c], want*float32(c+1))
		}
	}
	for k := 1; k < SHCoefficients; k++ {
		for c := 0; c < 3; c++ {
			// Bands 1-2 vanish up to the quantisation of the 16 latitude rows.
			if !closeEnough(sh[k][c], 0, 0.02*float32(c+1)) {
				t.Errorf("coefficient %d channel %d should vanish, got %f", k, c, sh[k][c])
			}
		}
	}

	// Irradiance of a uniform environment is pi*L for any normal
	e := sh.Irradiance(mgl32.Vec3{0, 1, 0})
	if !closeEnough(e[0], math.Pi, 0.02) {
		t.Errorf("Expected irradiance ~pi, got %f", e[0])
	}
}

func TestSH9EncodeDecode(t *testing.T) {
	var sh SH9
	for k := range sh {
		sh[k] = mgl32.Vec3{float32(k) * 0.1, -float32(k) * 0.2, 0.5}
	}
	words := sh.Encode()
	back := DecodeSH9(words[:])
	for k := range sh {
		for c := 0; c < 3; c++ {
			if !closeEnough(back[k][c], sh[k][c], 1e-4) {
				t.Errorf("coefficient %d/%d: %f != %f", k, c, back[k][c], sh[k][c])
			}
		}
	}
	// Coefficient-major layout
	assert.Equal(t, EncodeFixed(-0.2), words[1*3+1])
}

func TestCubemapFaceRoundTrip(t *testing.T) {
	c := NewCubemap(8)
	for f := CubeFace(0); f < CubeFaces; f++ {
		for y := 0; y < c.Size; y++ {
			for x := 0; x < c.Size; x++ {
				c.Set(f, x, y, mgl32.Vec4{float32(f), float32(x), float32(y), 1})
			}
		}
	}
	for f := CubeFace(0); f < CubeFaces; f++ {
		for y := 0; y < c.Size; y++ {
			for x := 0; x < c.Size; x++ {
				got := c.Sample(c.TexelDirection(f, x, y))
				want := mgl32.Vec4{float32(f), float32(x), float32(y), 1}
				if got != want {
					t.Fatalf("face %d texel (%d,%d): sampled %v", f, x, y, got)
				}
			}
		}
	}
}

func TestCubemapUnsetReadsZero(t *testing.T) {
	var c *Cubemap
	assert.Equal(t, mgl32.Vec4{}, c.Sample(mgl32.Vec3{0, 1, 0}))
	assert.Equal(t, mgl32.Vec4{}, (&Cubemap{}).Sample(mgl32.Vec3{1, 0, 0}))
	assert.Len(t, NewCubemap(4).Bytes(), 6*4*4*16)
}

func TestGridIndexBijection(t *testing.T) {
	g := GridSize{X: 3, Y: 4, Z: 5}
	seen := make(map[int]bool, g.Count())
	for x := 0; x < g.X; x++ {
		for y := 0; y < g.Y; y++ {
			for z := 0; z < g.Z; z++ {
				i := g.Index(x, y, z)
				if i < 0 || i >= g.Count() {
					t.Fatalf("index %d out of range for (%d,%d,%d)", i, x, y, z)
				}
				if seen[i] {
					t.Fatalf("index %d collides at (%d,%d,%d)", i, x, y, z)
				}
				seen[i] = true
				cx, cy, cz := g.Coord(i)
				if cx != x || cy != y || cz != z {
					t.Errorf("Coord(%d) = (%d,%d,%d), want (%d,%d,%d)", i, cx, cy, cz, x, y, z)
				}
			}
		}
	}
	assert.Len(t, seen, g.Count())
	assert.Equal(t, 1, GridSize{X: 2, Y: 1, Z: 1}.Index(1, 0, 0))
}

func TestSampleSHInterpolates(t *testing.T) {
	geom := VolumeGeometry{Size: GridSize{X: 2, Y: 1, Z: 1}, CellSize: 2}
	words := make([]int32, 2*SH9Length)
	words[0] = EncodeFixed(1) // probe 0, L00 red
	words[SH9Length] = EncodeFixed(3)

	mid := geom.SampleSH(words, mgl32.Vec3{1, 0, 0})
	if !closeEnough(mid[0][0], 2, 1e-4) {
		t.Errorf("Expected midpoint L00 of 2, got %f", mid[0][0])
	}
	outside := geom.SampleSH(words, mgl32.Vec3{10, 5, -3})
	if !closeEnough(outside[0][0], 3, 1e-4) {
		t.Errorf("Expected clamped L00 of 3, got %f", outside[0][0])
	}
	assert.Equal(t, mgl32.Vec3{2, 0, 0}, geom.ProbePosition(1, 0, 0))
}
