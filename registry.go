package framegraph

import (
	"errors"
	"fmt"

	"github.com/gogpu/framegraph/memory"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Registry errors.
var (
	// ErrUnknownHandle is returned when resolving an alias or transient
	// handle the registry never issued.
	ErrUnknownHandle = errors.New("framegraph: unknown handle")
)

// ImageRequest describes a transient image before it is realized.
type ImageRequest = memory.ImageDescriptor

// BufferRequest describes a transient buffer before it is realized.
type BufferRequest = memory.BufferDescriptor

// TaskRegistry is the per-graph ledger of declared resources. Tasks request
// transient images and buffers during the definition phase, declare reads
// and writes on them, and resolve the aliases while recording. Resolution
// realizes the resource from the pool on first use; every later resolution
// of the same transient handle returns the same allocation.
//
// A TaskRegistry is owned by its Graph and is not safe for concurrent use.
type TaskRegistry struct {
	pool *memory.Pool

	nextImage  TransientImageHandle
	nextBuffer TransientBufferHandle
	nextAlias  uint32

	imageRequests  map[TransientImageHandle]ImageRequest
	bufferRequests map[TransientBufferHandle]BufferRequest

	imageAliases  map[ImageAlias]TransientImageHandle
	bufferAliases map[BufferAlias]TransientBufferHandle

	images  map[TransientImageHandle]*memory.ImageAllocation
	buffers map[TransientBufferHandle]*memory.BufferAllocation
}

func newTaskRegistry(pool *memory.Pool) *TaskRegistry {
	return &TaskRegistry{
		pool:           pool,
		imageRequests:  make(map[TransientImageHandle]ImageRequest),
		bufferRequests: make(map[TransientBufferHandle]BufferRequest),
		imageAliases:   make(map[ImageAlias]TransientImageHandle),
		bufferAliases:  make(map[BufferAlias]TransientBufferHandle),
		images:         make(map[TransientImageHandle]*memory.ImageAllocation),
		buffers:        make(map[TransientBufferHandle]*memory.BufferAllocation),
	}
}

// RequestImage registers an image descriptor and returns its transient
// handle. No allocation happens until the first resolution.
func (r *TaskRegistry) RequestImage(req ImageRequest) TransientImageHandle {
	r.nextImage++
	h := r.nextImage
	r.imageRequests[h] = req
	return h
}

// RequestBuffer registers a buffer descriptor and returns its transient
// handle. No allocation happens until the first resolution.
func (r *TaskRegistry) RequestBuffer(req BufferRequest) TransientBufferHandle {
	r.nextBuffer++
	h := r.nextBuffer
	r.bufferRequests[h] = req
	return h
}

// ReadImage declares a read of the transient image and returns an alias for
// resolving it while recording.
//
// Reads and writes carry no distinct semantics yet: both register a use of
// the transient handle. The split exists so that hazard tracking can be
// added without changing task code.
func (r *TaskRegistry) ReadImage(h TransientImageHandle) ImageAlias {
	return r.aliasImage(h)
}

// WriteImage declares a write of the transient image and returns an alias
// for resolving it while recording. See ReadImage for the read/write split.
func (r *TaskRegistry) WriteImage(h TransientImageHandle) ImageAlias {
	return r.aliasImage(h)
}

// ReadBuffer declares a read of the transient buffer and returns an alias
// for resolving it while recording. See ReadImage for the read/write split.
func (r *TaskRegistry) ReadBuffer(h TransientBufferHandle) BufferAlias {
	return r.aliasBuffer(h)
}

// WriteBuffer declares a write of the transient buffer and returns an alias
// for resolving it while recording. See ReadImage for the read/write split.
func (r *TaskRegistry) WriteBuffer(h TransientBufferHandle) BufferAlias {
	return r.aliasBuffer(h)
}

func (r *TaskRegistry) aliasImage(h TransientImageHandle) ImageAlias {
	r.nextAlias++
	a := ImageAlias(r.nextAlias)
	r.imageAliases[a] = h
	return a
}

func (r *TaskRegistry) aliasBuffer(h TransientBufferHandle) BufferAlias {
	r.nextAlias++
	a := BufferAlias(r.nextAlias)
	r.bufferAliases[a] = h
	return a
}

// Image resolves an alias to its realized image, allocating it from the pool
// on first resolution. Unknown aliases return ErrUnknownHandle.
func (r *TaskRegistry) Image(alias ImageAlias) (*memory.ImageAllocation, error) {
	h, ok := r.imageAliases[alias]
	if !ok {
		return nil, fmt.Errorf("%w: image alias %d", ErrUnknownHandle, alias)
	}
	return r.realizeImage(h)
}

// ImageView resolves an alias to the realized image's default view.
func (r *TaskRegistry) ImageView(alias ImageAlias) (hal.TextureView, error) {
	img, err := r.Image(alias)
	if err != nil {
		return nil, err
	}
	return img.View(), nil
}

// Buffer resolves an alias to its realized buffer, allocating it from the
// pool on first resolution. Unknown aliases return ErrUnknownHandle.
func (r *TaskRegistry) Buffer(alias BufferAlias) (*memory.BufferAllocation, error) {
	h, ok := r.bufferAliases[alias]
	if !ok {
		return nil, fmt.Errorf("%w: buffer alias %d", ErrUnknownHandle, alias)
	}
	return r.realizeBuffer(h)
}

// BufferView resolves an alias to a whole-buffer binding for bind group
// entries.
func (r *TaskRegistry) BufferView(alias BufferAlias) (gputypes.BufferBinding, error) {
	buf, err := r.Buffer(alias)
	if err != nil {
		return gputypes.BufferBinding{}, err
	}
	return buf.Binding()
}

// realizeImage returns the allocation backing h, creating it on first use.
func (r *TaskRegistry) realizeImage(h TransientImageHandle) (*memory.ImageAllocation, error) {
	if img, ok := r.images[h]; ok {
		return img, nil
	}
	req, ok := r.imageRequests[h]
	if !ok {
		return nil, fmt.Errorf("%w: transient image %d", ErrUnknownHandle, h)
	}
	img, err := r.pool.AllocateImage(req, memory.UsageAuto)
	if err != nil {
		return nil, err
	}
	r.images[h] = img
	Logger().Debug("realized transient image",
		"handle", uint32(h), "label", req.Label,
		"size", fmt.Sprintf("%dx%d", req.Width, req.Height))
	return img, nil
}

// realizeBuffer returns the allocation backing h, creating it on first use.
func (r *TaskRegistry) realizeBuffer(h TransientBufferHandle) (*memory.BufferAllocation, error) {
	if buf, ok := r.buffers[h]; ok {
		return buf, nil
	}
	req, ok := r.bufferRequests[h]
	if !ok {
		return nil, fmt.Errorf("%w: transient buffer %d", ErrUnknownHandle, h)
	}
	buf, err := r.pool.AllocateBuffer(req, memory.UsageAuto)
	if err != nil {
		return nil, err
	}
	r.buffers[h] = buf
	Logger().Debug("realized transient buffer",
		"handle", uint32(h), "label", req.Label, "size", req.Size)
	return buf, nil
}

// release frees every realized allocation. Declared requests and aliases
// stay valid; resolving one afterwards realizes a fresh allocation.
func (r *TaskRegistry) release() {
	for h, img := range r.images {
		img.Free()
		delete(r.images, h)
	}
	for h, buf := range r.buffers {
		buf.Free()
		delete(r.buffers, h)
	}
}
