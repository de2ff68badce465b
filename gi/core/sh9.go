package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	SHCoefficients = 9
	SHChannels     = 3
	// SH9Length is the number of int32 words per probe: element k*3+c holds
	// basis function k for colour channel c.
	SH9Length   = SHCoefficients * SHChannels
	SH9ByteSize = SH9Length * 4

	// FixedPointScale converts float SH contributions to int32 for atomic adds.
	// One unit is 1e-4 of radiance, so a probe segment overflows only past ~2e5.
	FixedPointScale = 10000.0
	// FixedLimit is the saturation bound of one encoded contribution, the
	// largest float32 below 2^31. The WGSL encoder clamps to the same value.
	FixedLimit = 2147483520
)

// Real SH basis constants, bands 0-2.
const (
	shY00  = 0.282095
	shY1   = 0.488603
	shY2n2 = 1.092548
	shY20  = 0.315392
	shY22  = 0.546274
)

// Zonal convolution weights for Lambertian irradiance (Ramamoorthi-Hanrahan).
const (
	shA0 = math.Pi
	shA1 = 2.0 * math.Pi / 3.0
	shA2 = math.Pi / 4.0
)

// EncodeFixed rounds v*FixedPointScale to the nearest integer and saturates to
// ±FixedLimit. NaN encodes as 0.
func EncodeFixed(v float32) int32 {
	f := math.Round(float64(v) * FixedPointScale)
	switch {
	case math.IsNaN(f):
		return 0
	case f >= FixedLimit:
		return FixedLimit
	case f <= -FixedLimit:
		return -FixedLimit
	}
	return int32(f)
}

func DecodeFixed(i int32) float32 {
	return float32(float64(i) / FixedPointScale)
}

// SHBasis evaluates the nine real SH basis functions for a unit direction.
func SHBasis(d mgl32.Vec3) [SHCoefficients]float32 {
	x, y, z := d[0], d[1], d[2]
	return [SHCoefficients]float32{
		shY00,
		shY1 * y,
		shY1 * z,
		shY1 * x,
		shY2n2 * x * y,
		shY2n2 * y * z,
		shY20 * (3*z*z - 1),
		shY2n2 * x * z,
		shY22 * (x*x - y*y),
	}
}

// SH9 holds decoded RGB coefficients per basis function.
type SH9 [SHCoefficients]mgl32.Vec3

// AddSample accumulates radiance arriving from dir with the given solid-angle weight.
func (sh *SH9) AddSample(dir, radiance mgl32.Vec3, weight float32) {
	basis := SHBasis(dir)
	for k := range sh {
		sh[k] = sh[k].Add(radiance.Mul(basis[k] * weight))
	}
}

func (sh SH9) Add(o SH9) SH9 {
	for k := range sh {
		sh[k] = sh[k].Add(o[k])
	}
	return sh
}

func (sh SH9) Scale(f float32) SH9 {
	for k := range sh {
		sh[k] = sh[k].Mul(f)
	}
	return sh
}

// Irradiance reconstructs Lambertian irradiance for surface normal n.
func (sh SH9) Irradiance(n mgl32.Vec3) mgl32.Vec3 {
	basis := SHBasis(n)
	var e mgl32.Vec3
	for k := range sh {
		a := float32(shA2)
		switch {
		case k == 0:
			a = shA0
		case k < 4:
			a = shA1
		}
		e = e.Add(sh[k].Mul(a * basis[k]))
	}
	for c := range e {
		if e[c] < 0 {
			e[c] = 0
		}
	}
	return e
}

// Encode converts coefficients to the fixed-point buffer representation.
func (sh SH9) Encode() [SH9Length]int32 {
	var out [SH9Length]int32
	for k := range sh {
		for c := 0; c < SHChannels; c++ {
			out[k*SHChannels+c] = EncodeFixed(sh[k][c])
		}
	}
	return out
}

// DecodeSH9 reads one probe segment. words must hold at least SH9Length values.
func DecodeSH9(words []int32) SH9 {
	_ = words[SH9Length-1]
	var sh SH9
	for k := range sh {
		for c := 0; c < SHChannels; c++ {
			sh[k][c] = DecodeFixed(words[k*SHChannels+c])
		}
	}
	return sh
}
