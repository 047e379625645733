// Package shader compiles WGSL shader source into SPIR-V words for hal
// shader modules.
package shader

import (
	"fmt"

	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

// spirvMagic is the first word of every valid SPIR-V binary.
const spirvMagic = 0x07230203

// Compile compiles WGSL source to a SPIR-V uint32 slice.
// SPIR-V is little-endian 32-bit words.
func Compile(wgslSource string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(wgslSource)
	if err != nil {
		return nil, fmt.Errorf("compile shader: %w", err)
	}
	if len(spirvBytes) == 0 || len(spirvBytes)%4 != 0 {
		return nil, fmt.Errorf("compile shader: truncated SPIR-V output (%d bytes)", len(spirvBytes))
	}

	spirvCode := make([]uint32, len(spirvBytes)/4)
	for i := range spirvCode {
		spirvCode[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	if spirvCode[0] != spirvMagic {
		return nil, fmt.Errorf("compile shader: bad SPIR-V magic %#x", spirvCode[0])
	}

	return spirvCode, nil
}

// NewModule compiles WGSL source and creates a hal shader module from it.
func NewModule(device hal.Device, label, wgslSource string) (hal.ShaderModule, error) {
	spirvCode, err := Compile(wgslSource)
	if err != nil {
		return nil, err
	}
	module, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label: label,
		Source: hal.ShaderSource{
			SPIRV: spirvCode,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create shader module %q: %w", label, err)
	}
	return module, nil
}
