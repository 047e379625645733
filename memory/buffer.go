package memory

import (
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// BufferAllocation is a buffer handed out by a Pool. Host access goes through
// Update and Read; GPU access goes through Buffer or Binding. Free returns
// the buffer to the pool and invalidates the allocation.
type BufferAllocation struct {
	pool   *Pool
	index  uint32
	size   uint64
	policy Usage

	mu    sync.Mutex
	freed bool
}

// Size returns the byte size of the buffer after copy alignment.
func (a *BufferAllocation) Size() uint64 {
	return a.size
}

// Policy returns the placement policy the buffer was allocated with.
func (a *BufferAllocation) Policy() Usage {
	return a.policy
}

// Buffer returns the underlying hal buffer for command recording, or nil
// after Free or pool close.
func (a *BufferAllocation) Buffer() hal.Buffer {
	h, err := a.handle()
	if err != nil {
		return nil
	}
	return h
}

// Binding returns a whole-buffer binding suitable for a bind group entry.
func (a *BufferAllocation) Binding() (gputypes.BufferBinding, error) {
	h, err := a.handle()
	if err != nil {
		return gputypes.BufferBinding{}, err
	}
	return gputypes.BufferBinding{
		Buffer: h.NativeHandle(),
		Offset: 0,
		Size:   a.size,
	}, nil
}

// Update copies data into the buffer starting at offset zero. The allocation
// must use a host-visible policy.
func (a *BufferAllocation) Update(data []byte) error {
	if !a.policy.HostVisible() {
		return fmt.Errorf("%w: policy %s", ErrNotHostVisible, a.policy)
	}
	if uint64(len(data)) > a.size {
		return fmt.Errorf("memory: update of %d bytes exceeds buffer size %d", len(data), a.size)
	}
	h, err := a.handle()
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	a.pool.queue.WriteBuffer(h, 0, data)
	return nil
}

// Read copies the buffer's contents into dst starting at offset zero,
// blocking until the copy completes. The allocation must use a host-visible
// policy. Call only after GPU work writing the buffer has been waited on.
func (a *BufferAllocation) Read(dst []byte) error {
	if !a.policy.HostVisible() {
		return fmt.Errorf("%w: policy %s", ErrNotHostVisible, a.policy)
	}
	if uint64(len(dst)) > a.size {
		return fmt.Errorf("memory: read of %d bytes exceeds buffer size %d", len(dst), a.size)
	}
	h, err := a.handle()
	if err != nil {
		return err
	}
	if len(dst) == 0 {
		return nil
	}
	if err := a.pool.queue.ReadBuffer(h, 0, dst); err != nil {
		return fmt.Errorf("read buffer: %w", err)
	}
	return nil
}

// Free destroys the buffer and recycles its pool slot. Safe to call more
// than once. The caller must ensure no GPU work still references the buffer.
func (a *BufferAllocation) Free() {
	a.mu.Lock()
	if a.freed {
		a.mu.Unlock()
		return
	}
	a.freed = true
	a.mu.Unlock()
	a.pool.freeBuffer(a.index)
}

// handle resolves the live hal buffer, guarding against use after Free and
// against the pool slot being recycled for another allocation.
func (a *BufferAllocation) handle() (hal.Buffer, error) {
	a.mu.Lock()
	freed := a.freed
	a.mu.Unlock()
	if freed {
		return nil, ErrAllocationFreed
	}

	p := a.pool
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrPoolClosed
	}
	h := p.buffers[a.index].handle
	if h == nil {
		return nil, ErrAllocationFreed
	}
	return h, nil
}
