package memory

import "github.com/gogpu/gputypes"

// Usage selects the placement policy for an allocation: where the memory
// should live and which side of the host/device boundary may touch it.
type Usage int

const (
	// UsageGPUOnly places the allocation in device-local memory.
	// The host cannot Update or Read it.
	UsageGPUOnly Usage = iota

	// UsageCPUOnly places the allocation in host-local memory with full
	// transfer capability in both directions.
	UsageCPUOnly

	// UsageCPUToGPU is the upload policy: the host writes, the device reads.
	// Host readback remains available for round-trip verification.
	UsageCPUToGPU

	// UsageLazyAlloc requests lazily-backed memory for resources that never
	// need persistent backing (e.g. multisample intermediates). The hal layer
	// exposes no lazy heap, so this behaves exactly like UsageGPUOnly.
	UsageLazyAlloc

	// UsageAuto lets the pool pick a policy from the descriptor's usage
	// flags: a map flag selects UsageCPUToGPU, anything else UsageGPUOnly.
	UsageAuto
)

// String returns the policy name for diagnostics.
func (u Usage) String() string {
	switch u {
	case UsageGPUOnly:
		return "GPUOnly"
	case UsageCPUOnly:
		return "CPUOnly"
	case UsageCPUToGPU:
		return "CPUToGPU"
	case UsageLazyAlloc:
		return "LazyAlloc"
	case UsageAuto:
		return "Auto"
	default:
		return "Unknown"
	}
}

// HostVisible reports whether the policy permits host-side Update and Read.
func (u Usage) HostVisible() bool {
	return u == UsageCPUOnly || u == UsageCPUToGPU
}

// bufferUsageBits returns the transfer/map capability flags the policy adds
// to a buffer descriptor's usage.
func (u Usage) bufferUsageBits() gputypes.BufferUsage {
	switch u {
	case UsageCPUOnly:
		return gputypes.BufferUsageMapRead | gputypes.BufferUsageMapWrite |
			gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst
	case UsageCPUToGPU:
		return gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst
	default:
		return 0
	}
}

// resolveBuffer maps UsageAuto onto a concrete policy for the given buffer
// descriptor. Concrete policies pass through unchanged.
func (u Usage) resolveBuffer(desc BufferDescriptor) Usage {
	if u != UsageAuto {
		return u
	}
	if desc.Usage&(gputypes.BufferUsageMapRead|gputypes.BufferUsageMapWrite) != 0 {
		return UsageCPUToGPU
	}
	return UsageGPUOnly
}

// resolveImage maps UsageAuto onto a concrete policy for images. Textures are
// never host-mappable here, so Auto always resolves to UsageGPUOnly.
func (u Usage) resolveImage() Usage {
	if u == UsageAuto {
		return UsageGPUOnly
	}
	return u
}
