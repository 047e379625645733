package framegraph

// Transient handles identify declared resources that have no backing memory
// yet. Handles are monotonic per TaskRegistry and never reused; the zero
// value is invalid.

// TransientImageHandle refers to a declared image in a TaskRegistry.
type TransientImageHandle uint32

// TransientBufferHandle refers to a declared buffer in a TaskRegistry.
type TransientBufferHandle uint32

// ImageAlias refers to one declared use of a transient image. An alias maps
// to exactly one transient handle, fixed at creation.
type ImageAlias uint32

// BufferAlias refers to one declared use of a transient buffer.
type BufferAlias uint32

// Valid reports whether the handle was produced by a registry.
func (h TransientImageHandle) Valid() bool { return h != 0 }

// Valid reports whether the handle was produced by a registry.
func (h TransientBufferHandle) Valid() bool { return h != 0 }

// Valid reports whether the alias was produced by a registry.
func (a ImageAlias) Valid() bool { return a != 0 }

// Valid reports whether the alias was produced by a registry.
func (a BufferAlias) Valid() bool { return a != 0 }
