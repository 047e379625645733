// Package memory provides pooled allocation of GPU buffers and images on top
// of a wgpu hal device.
//
// A Pool tracks every allocation it hands out in indexed record tables and
// recycles table slots on free, so repeated transient allocations do not grow
// bookkeeping without bound. Allocations are freed individually or all at
// once when the pool closes.
//
// Pool is not safe for concurrent use from multiple goroutines without
// external synchronization of the underlying queue; its own bookkeeping is
// guarded internally.
package memory

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Pool errors.
var (
	// ErrPoolClosed is returned when allocating from a closed pool.
	ErrPoolClosed = errors.New("memory: pool closed")
	// ErrAllocationFailed wraps device errors during buffer or image creation.
	ErrAllocationFailed = errors.New("memory: allocation failed")
	// ErrAllocationFreed is returned when using an allocation after Free.
	ErrAllocationFreed = errors.New("memory: allocation freed")
	// ErrNotHostVisible is returned when the host touches a GPU-only allocation.
	ErrNotHostVisible = errors.New("memory: allocation not host visible")
	// ErrInvalidDescriptor is returned for zero-sized or malformed descriptors.
	ErrInvalidDescriptor = errors.New("memory: invalid descriptor")
)

// BufferDescriptor describes a buffer allocation request.
type BufferDescriptor struct {
	// Label is attached to the hal object for debugging.
	Label string
	// Size in bytes. Rounded up to a 4-byte multiple for copy alignment.
	Size uint64
	// Usage carries the pipeline-facing flags (uniform, storage, vertex...).
	// The pool adds transfer and map flags from the placement policy.
	Usage gputypes.BufferUsage
}

// ImageDescriptor describes a 2D image allocation request.
type ImageDescriptor struct {
	// Label is attached to the hal texture and its view for debugging.
	Label string
	// Width and Height in texels. Both must be non-zero.
	Width  uint32
	Height uint32
	// Format of the texels.
	Format gputypes.TextureFormat
	// Usage flags for the texture (render attachment, binding, copy...).
	Usage gputypes.TextureUsage
}

// bufferRecord is the pool-side state of one buffer slot. A nil handle marks
// the slot free.
type bufferRecord struct {
	handle hal.Buffer
	size   uint64
	policy Usage
	label  string
}

// imageRecord is the pool-side state of one image slot. A nil texture marks
// the slot free.
type imageRecord struct {
	texture hal.Texture
	view    hal.TextureView
	bytes   uint64
	desc    ImageDescriptor
}

// Pool allocates buffers and images from a hal device and tracks them for
// bulk release. Use NewPool or NewPoolFromProvider to create one.
type Pool struct {
	device hal.Device
	queue  hal.Queue

	mu          sync.Mutex
	closed      bool
	buffers     []bufferRecord
	freeBuffers []uint32
	images      []imageRecord
	freeImages  []uint32

	bufferAllocs    uint64
	imageAllocs     uint64
	liveBufferBytes uint64
	liveImageBytes  uint64

	statsInterval time.Duration
	lastSample    time.Time
	lastStats     Stats
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithStatsInterval sets the minimum interval between fresh PollStats
// samples. Non-positive intervals disable caching so every poll is fresh.
func WithStatsInterval(d time.Duration) PoolOption {
	return func(p *Pool) {
		p.statsInterval = d
	}
}

// NewPool creates a pool that allocates from device and uploads through
// queue. The caller retains ownership of both; closing the pool releases the
// pool's allocations but not the device.
func NewPool(device hal.Device, queue hal.Queue, opts ...PoolOption) *Pool {
	p := &Pool{
		device:        device,
		queue:         queue,
		statsInterval: DefaultStatsInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AllocateBuffer creates a buffer of at least desc.Size bytes. The usage
// policy decides host visibility; UsageAuto resolves from the descriptor's
// map flags. The returned allocation stays valid until Free or Close.
func (p *Pool) AllocateBuffer(desc BufferDescriptor, usage Usage) (*BufferAllocation, error) {
	if desc.Size == 0 {
		return nil, fmt.Errorf("%w: buffer %q has zero size", ErrInvalidDescriptor, desc.Label)
	}
	policy := usage.resolveBuffer(desc)

	// Copy commands require 4-byte aligned sizes.
	size := (desc.Size + 3) &^ 3

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrPoolClosed
	}

	handle, err := p.device.CreateBuffer(&hal.BufferDescriptor{
		Label: desc.Label,
		Size:  size,
		Usage: desc.Usage | policy.bufferUsageBits(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: buffer %q: %w", ErrAllocationFailed, desc.Label, err)
	}

	idx := p.takeBufferSlot()
	p.buffers[idx] = bufferRecord{
		handle: handle,
		size:   size,
		policy: policy,
		label:  desc.Label,
	}
	p.bufferAllocs++
	p.liveBufferBytes += size

	return &BufferAllocation{pool: p, index: idx, size: size, policy: policy}, nil
}

// AllocateImage creates a 2D texture plus a default full-resource view. The
// usage policy only affects bookkeeping for images; textures are never host
// mapped. The returned allocation stays valid until Free or Close.
func (p *Pool) AllocateImage(desc ImageDescriptor, usage Usage) (*ImageAllocation, error) {
	if desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("%w: image %q has zero extent %dx%d",
			ErrInvalidDescriptor, desc.Label, desc.Width, desc.Height)
	}
	policy := usage.resolveImage()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrPoolClosed
	}

	texture, err := p.device.CreateTexture(&hal.TextureDescriptor{
		Label: desc.Label,
		Size: hal.Extent3D{
			Width:              desc.Width,
			Height:             desc.Height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        desc.Format,
		Usage:         desc.Usage,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: image %q: %w", ErrAllocationFailed, desc.Label, err)
	}

	view, err := p.device.CreateTextureView(texture, &hal.TextureViewDescriptor{
		Label: desc.Label + "_view",
	})
	if err != nil {
		p.device.DestroyTexture(texture)
		return nil, fmt.Errorf("%w: image view %q: %w", ErrAllocationFailed, desc.Label, err)
	}

	bytes := uint64(desc.Width) * uint64(desc.Height) * texelSize(desc.Format)

	idx := p.takeImageSlot()
	p.images[idx] = imageRecord{
		texture: texture,
		view:    view,
		bytes:   bytes,
		desc:    desc,
	}
	p.imageAllocs++
	p.liveImageBytes += bytes

	return &ImageAllocation{pool: p, index: idx, desc: desc, policy: policy}, nil
}

// takeBufferSlot pops a recycled slot or grows the record table.
// Caller holds p.mu.
func (p *Pool) takeBufferSlot() uint32 {
	if n := len(p.freeBuffers); n > 0 {
		idx := p.freeBuffers[n-1]
		p.freeBuffers = p.freeBuffers[:n-1]
		return idx
	}
	p.buffers = append(p.buffers, bufferRecord{})
	return uint32(len(p.buffers) - 1) // #nosec G115 -- slot count bounded by live allocations, well under uint32 max
}

// takeImageSlot pops a recycled slot or grows the record table.
// Caller holds p.mu.
func (p *Pool) takeImageSlot() uint32 {
	if n := len(p.freeImages); n > 0 {
		idx := p.freeImages[n-1]
		p.freeImages = p.freeImages[:n-1]
		return idx
	}
	p.images = append(p.images, imageRecord{})
	return uint32(len(p.images) - 1) // #nosec G115 -- slot count bounded by live allocations, well under uint32 max
}

// freeBuffer destroys the buffer in slot idx and recycles the slot.
// Safe to call twice; the second call is a no-op. After Close the records
// are gone and the free is a no-op as well.
func (p *Pool) freeBuffer(idx uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	rec := &p.buffers[idx]
	if rec.handle == nil {
		return
	}
	p.device.DestroyBuffer(rec.handle)
	p.liveBufferBytes -= rec.size
	*rec = bufferRecord{}
	p.freeBuffers = append(p.freeBuffers, idx)
}

// freeImage destroys the view and texture in slot idx and recycles the slot.
// Safe to call twice; the second call is a no-op. After Close the records
// are gone and the free is a no-op as well.
func (p *Pool) freeImage(idx uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	rec := &p.images[idx]
	if rec.texture == nil {
		return
	}
	if rec.view != nil {
		p.device.DestroyTextureView(rec.view)
	}
	p.device.DestroyTexture(rec.texture)
	p.liveImageBytes -= rec.bytes
	*rec = imageRecord{}
	p.freeImages = append(p.freeImages, idx)
}

// Device returns the hal device the pool allocates from.
func (p *Pool) Device() hal.Device {
	return p.device
}

// Queue returns the hal queue used for host transfers.
func (p *Pool) Queue() hal.Queue {
	return p.queue
}

// Stats returns a fresh snapshot of pool activity.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// PollStats returns pool statistics, re-sampling at most once per stats
// interval. Suitable for calling every frame.
func (p *Pool) PollStats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	if !p.lastSample.IsZero() && now.Sub(p.lastSample) < p.statsInterval {
		return p.lastStats
	}
	p.lastSample = now
	p.lastStats = p.snapshotLocked()
	Logger().Debug("pool stats sampled", "stats", p.lastStats.String())
	return p.lastStats
}

// snapshotLocked builds a Stats from current counters. Caller holds p.mu.
func (p *Pool) snapshotLocked() Stats {
	return Stats{
		BufferAllocations: p.bufferAllocs,
		ImageAllocations:  p.imageAllocs,
		LiveBuffers:       len(p.buffers) - len(p.freeBuffers),
		LiveImages:        len(p.images) - len(p.freeImages),
		BufferBytes:       p.liveBufferBytes,
		ImageBytes:        p.liveImageBytes,
	}
}

// Close destroys every live allocation and marks the pool closed. Further
// allocations fail with ErrPoolClosed; outstanding allocation handles report
// ErrAllocationFreed. Close is idempotent.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	leakedBuffers, leakedImages := 0, 0
	for i := range p.buffers {
		rec := &p.buffers[i]
		if rec.handle == nil {
			continue
		}
		p.device.DestroyBuffer(rec.handle)
		*rec = bufferRecord{}
		leakedBuffers++
	}
	for i := range p.images {
		rec := &p.images[i]
		if rec.texture == nil {
			continue
		}
		if rec.view != nil {
			p.device.DestroyTextureView(rec.view)
		}
		p.device.DestroyTexture(rec.texture)
		*rec = imageRecord{}
		leakedImages++
	}
	if leakedBuffers > 0 || leakedImages > 0 {
		Logger().Debug("pool closed with live allocations",
			"buffers", leakedBuffers, "images", leakedImages)
	}

	p.buffers = nil
	p.freeBuffers = nil
	p.images = nil
	p.freeImages = nil
	p.liveBufferBytes = 0
	p.liveImageBytes = 0
	return nil
}

// texelSize returns the byte size of one texel, defaulting to 4 bytes for
// unrecognized formats.
func texelSize(format gputypes.TextureFormat) uint64 {
	switch format {
	case gputypes.TextureFormatR8Unorm:
		return 1
	case gputypes.TextureFormatR32Float:
		return 4
	case gputypes.TextureFormatRG32Float:
		return 8
	case gputypes.TextureFormatRGBA32Float:
		return 16
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatRGBA8UnormSrgb,
		gputypes.TextureFormatBGRA8Unorm, gputypes.TextureFormatBGRA8UnormSrgb:
		return 4
	default:
		return 4
	}
}
