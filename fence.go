package framegraph

import (
	"errors"
	"fmt"
	"time"

	"github.com/gogpu/wgpu/hal"
)

// Synchronization errors.
var (
	// ErrSyncFailed wraps a device wait error other than a timeout.
	// It is fatal; the wait is not retried.
	ErrSyncFailed = errors.New("framegraph: synchronization failed")
)

// SynchronizationPoint answers whether previously submitted GPU work has
// completed. Fence and SynchronizationGroup implement it.
type SynchronizationPoint interface {
	// IsSignaled polls without blocking.
	IsSignaled() bool
	// Wait blocks until the work signals or timeout elapses. It returns
	// true if signaled within the timeout, false on timeout, and an error
	// only for a device failure.
	Wait(timeout time.Duration) (bool, error)
}

var (
	_ SynchronizationPoint = (*Fence)(nil)
	_ SynchronizationPoint = (*SynchronizationGroup)(nil)
)

// Fence wraps one hal fence and tracks the timeline value the most recent
// submission will signal. The signaled state is cached once observed so
// repeated polls skip the device.
//
// A Fence is not safe for concurrent use.
type Fence struct {
	device   hal.Device
	handle   hal.Fence
	value    uint64
	signaled bool
}

// NewFence creates an unsignaled fence on device.
func NewFence(device hal.Device) (*Fence, error) {
	handle, err := device.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("create fence: %w", err)
	}
	return &Fence{device: device, handle: handle}, nil
}

// ReleaseHandle hands the underlying fence to a submission call. It advances
// the timeline value the submission must signal and resets the cached state,
// so the fence reports unsignaled until that submission completes.
func (f *Fence) ReleaseHandle() (hal.Fence, uint64) {
	f.value++
	f.signaled = false
	return f.handle, f.value
}

// IsSignaled polls the fence without blocking. Once observed signaled the
// result is cached until the next ReleaseHandle. A fence never handed to a
// submission reports false. A device error during the poll is logged and
// reported as unsignaled.
func (f *Fence) IsSignaled() bool {
	if f.signaled {
		return true
	}
	if f.value == 0 || f.handle == nil {
		return false
	}
	signaled, err := f.device.Wait(f.handle, f.value, 0)
	if err != nil {
		Logger().Warn("fence poll failed", "err", err)
		return false
	}
	if signaled {
		f.signaled = true
	}
	return signaled
}

// Wait blocks until the fence signals or timeout elapses. It returns true if
// signaled, false on timeout. A fence never handed to a submission returns
// false immediately. Device failures are returned wrapped in ErrSyncFailed.
func (f *Fence) Wait(timeout time.Duration) (bool, error) {
	if f.signaled {
		return true, nil
	}
	if f.value == 0 || f.handle == nil {
		return false, nil
	}
	signaled, err := f.device.Wait(f.handle, f.value, timeout)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrSyncFailed, err)
	}
	if signaled {
		f.signaled = true
	}
	return signaled, nil
}

// Close destroys the underlying fence. Safe to call more than once. The
// caller must not close a fence whose submission is still pending.
func (f *Fence) Close() {
	if f.handle == nil {
		return
	}
	f.device.DestroyFence(f.handle)
	f.handle = nil
}
