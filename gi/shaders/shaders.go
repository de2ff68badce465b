package shaders

import (
	_ "embed"
)

//go:embed surfel_sample.wgsl
var SurfelSampleWGSL string

//go:embed surfel_radiance.wgsl
var SurfelRadianceWGSL string
