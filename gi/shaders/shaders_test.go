package shaders

import (
	"fmt"
	"strings"
	"testing"

	"github.com/gekko3d/probegi/gi/core"
	"github.com/gogpu/naga"
)

// naga limitations that are not shader defects.
var knownLimitations = []string{
	"not yet implemented",
	"not supported",
	"unsupported",
	"atomic",
	"texture",
	"lowering",
}

func TestShadersCompile(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"surfel_sample", SurfelSampleWGSL},
		{"surfel_radiance", SurfelRadianceWGSL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.src == "" {
				t.Fatal("shader source is empty")
			}
			if !strings.Contains(tt.src, "@compute @workgroup_size(8, 8, 1)") {
				t.Fatal("shader must declare an 8x8 compute entry point")
			}

			spirv, err := naga.Compile(tt.src)
			if err != nil {
				msg := err.Error()
				for _, known := range knownLimitations {
					if strings.Contains(msg, known) {
						t.Skipf("Skipping: naga limitation: %v", err)
					}
				}
				t.Fatalf("failed to compile %s: %v", tt.name, err)
			}

			if len(spirv) < 4 {
				t.Fatal("SPIR-V too short")
			}
			magic := uint32(spirv[0]) | uint32(spirv[1])<<8 | uint32(spirv[2])<<16 | uint32(spirv[3])<<24
			if magic != 0x07230203 {
				t.Errorf("invalid SPIR-V magic: 0x%08X, want 0x07230203", magic)
			}
		})
	}
}

func TestShaderLayoutsMatchHost(t *testing.T) {
	// Field strides baked into the kernels
	for _, want := range []string{"FIELDS: u32 = 10u", "GRID_X: u32 = 32u", "GRID_Y: u32 = 16u"} {
		if !strings.Contains(SurfelSampleWGSL, want) || !strings.Contains(SurfelRadianceWGSL, want) {
			t.Errorf("Expected both kernels to declare %q", want)
		}
	}
	if !strings.Contains(SurfelRadianceWGSL, "FIXED_SCALE: f32 = 10000.0") {
		t.Error("radiance kernel must use the 10000 fixed point scale")
	}
	if limit := fmt.Sprintf("FIXED_LIMIT: f32 = %d.0", core.FixedLimit); !strings.Contains(SurfelRadianceWGSL, limit) {
		t.Errorf("radiance kernel must saturate where the host encoder does, want %q", limit)
	}
	if !strings.Contains(SurfelRadianceWGSL, "SKY_THRESHOLD: f32 = 0.995") {
		t.Error("radiance kernel must classify sky at 0.995")
	}
}
