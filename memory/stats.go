package memory

import (
	"fmt"
	"time"
)

// DefaultStatsInterval is the minimum time between fresh PollStats samples.
// It matches one frame at 60 FPS so per-frame polling stays cheap.
const DefaultStatsInterval = 16 * time.Millisecond

// Stats is a point-in-time snapshot of pool activity.
type Stats struct {
	// BufferAllocations counts every buffer ever allocated from the pool.
	BufferAllocations uint64
	// ImageAllocations counts every image ever allocated from the pool.
	ImageAllocations uint64

	// LiveBuffers is the number of buffers not yet freed.
	LiveBuffers int
	// LiveImages is the number of images not yet freed.
	LiveImages int

	// BufferBytes is the total size of live buffers.
	BufferBytes uint64
	// ImageBytes is the estimated total size of live images.
	ImageBytes uint64
}

// LiveBytes returns the combined size of all live allocations.
func (s Stats) LiveBytes() uint64 {
	return s.BufferBytes + s.ImageBytes
}

// String returns a human-readable summary.
func (s Stats) String() string {
	return fmt.Sprintf("Pool[%d buffers/%d images live, %.1f MB, %d/%d total allocs]",
		s.LiveBuffers,
		s.LiveImages,
		float64(s.LiveBytes())/(1024*1024),
		s.BufferAllocations,
		s.ImageAllocations)
}
