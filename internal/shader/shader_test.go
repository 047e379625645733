//go:build !nogpu

package shader

import (
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal/noop"
)

const testComputeShader = `
@compute @workgroup_size(1)
fn main() {
}
`

func TestCompile(t *testing.T) {
	words, err := Compile(testComputeShader)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if len(words) == 0 {
		t.Fatal("expected non-empty SPIR-V output")
	}
	if words[0] != spirvMagic {
		t.Errorf("expected SPIR-V magic %#x, got %#x", uint32(spirvMagic), words[0])
	}
}

func TestCompileInvalidSource(t *testing.T) {
	if _, err := Compile("fn broken {"); err == nil {
		t.Error("expected error for invalid WGSL")
	}
}

func TestNewModule(t *testing.T) {
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	defer instance.Destroy()
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer openDev.Device.Destroy()

	module, err := NewModule(openDev.Device, "test_compute", testComputeShader)
	if err != nil {
		t.Fatalf("NewModule failed: %v", err)
	}
	if module == nil {
		t.Fatal("expected non-nil shader module")
	}
	openDev.Device.DestroyShaderModule(module)
}

func TestNewModuleInvalidSource(t *testing.T) {
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	defer instance.Destroy()
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer openDev.Device.Destroy()

	if _, err := NewModule(openDev.Device, "broken", "@@@"); err == nil {
		t.Error("expected error for invalid source")
	}
}
