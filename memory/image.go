package memory

import (
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// ImageAllocation is a 2D texture handed out by a Pool, paired with a
// full-resource view. Free returns both to the pool and invalidates the
// allocation.
type ImageAllocation struct {
	pool   *Pool
	index  uint32
	desc   ImageDescriptor
	policy Usage

	mu    sync.Mutex
	freed bool
}

// Width returns the image width in texels.
func (a *ImageAllocation) Width() uint32 {
	return a.desc.Width
}

// Height returns the image height in texels.
func (a *ImageAllocation) Height() uint32 {
	return a.desc.Height
}

// Format returns the texel format.
func (a *ImageAllocation) Format() gputypes.TextureFormat {
	return a.desc.Format
}

// Descriptor returns a copy of the descriptor the image was allocated with.
func (a *ImageAllocation) Descriptor() ImageDescriptor {
	return a.desc
}

// Texture returns the underlying hal texture for command recording, or nil
// after Free or pool close.
func (a *ImageAllocation) Texture() hal.Texture {
	t, _, err := a.handles()
	if err != nil {
		return nil
	}
	return t
}

// View returns the full-resource view created with the image, or nil after
// Free or pool close.
func (a *ImageAllocation) View() hal.TextureView {
	_, v, err := a.handles()
	if err != nil {
		return nil
	}
	return v
}

// Free destroys the view and texture and recycles the pool slot. Safe to
// call more than once. The caller must ensure no GPU work still references
// the image.
func (a *ImageAllocation) Free() {
	a.mu.Lock()
	if a.freed {
		a.mu.Unlock()
		return
	}
	a.freed = true
	a.mu.Unlock()
	a.pool.freeImage(a.index)
}

// handles resolves the live hal texture and view, guarding against use after
// Free and against the pool slot being recycled for another allocation.
func (a *ImageAllocation) handles() (hal.Texture, hal.TextureView, error) {
	a.mu.Lock()
	freed := a.freed
	a.mu.Unlock()
	if freed {
		return nil, nil, ErrAllocationFreed
	}

	p := a.pool
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, nil, ErrPoolClosed
	}
	rec := &p.images[a.index]
	if rec.texture == nil {
		return nil, nil, ErrAllocationFreed
	}
	return rec.texture, rec.view, nil
}
