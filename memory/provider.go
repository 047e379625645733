package memory

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/wgpu/hal"
)

// Provider errors.
var (
	// ErrNilProvider is returned when the device provider is nil.
	ErrNilProvider = errors.New("memory: nil device provider")
	// ErrNoHALAccess is returned when a provider cannot hand out hal types.
	ErrNoHALAccess = errors.New("memory: provider does not expose HAL types")
)

// NewPoolFromProvider creates a pool on the device of an external provider,
// such as a gogpu application context. The provider must also implement
// HalDevice() any and HalQueue() any returning hal.Device and hal.Queue.
func NewPoolFromProvider(provider gpucontext.DeviceProvider, opts ...PoolOption) (*Pool, error) {
	if provider == nil {
		return nil, ErrNilProvider
	}
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNoHALAccess
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrNoHALAccess)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrNoHALAccess)
	}
	return NewPool(device, queue, opts...), nil
}
