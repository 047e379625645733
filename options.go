package framegraph

import "github.com/gogpu/wgpu/hal"

// GraphOption configures a Graph during creation.
// Use functional options to customize Graph behavior.
//
// Example:
//
//	// Default submission on the pool's queue
//	g := framegraph.New(pool)
//
//	// Custom label and a dedicated queue
//	g := framegraph.New(pool, framegraph.WithLabel("shadow_pass"),
//	    framegraph.WithQueue(computeQueue))
type GraphOption func(*graphOptions)

// graphOptions holds optional configuration for Graph creation.
type graphOptions struct {
	label string
	queue hal.Queue
}

// defaultGraphOptions returns the default graph options.
func defaultGraphOptions() graphOptions {
	return graphOptions{
		label: "task_graph",
		queue: nil, // Pool's queue is used if nil
	}
}

// WithLabel sets the debug label attached to the graph's command encoders
// and submissions. The default is "task_graph".
func WithLabel(label string) GraphOption {
	return func(o *graphOptions) {
		if label != "" {
			o.label = label
		}
	}
}

// WithQueue overrides the submission queue. By default the graph submits on
// the queue of the pool it allocates from. Use this to record against a
// pool shared with another queue, e.g. an async compute queue.
func WithQueue(q hal.Queue) GraphOption {
	return func(o *graphOptions) {
		o.queue = q
	}
}
