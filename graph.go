package framegraph

import (
	"github.com/gogpu/framegraph/memory"
	"github.com/gogpu/wgpu/hal"
)

// Task records one unit of GPU work into the shared command encoder. Tasks
// run in registration order during the execution phase, after every
// definition has declared its resources. Returning an error aborts the
// execution; the partially built context is closed and its cleanups run.
type Task func(ec *ExecutionContext, enc hal.CommandEncoder) error

// TaskDefinition declares a task's resource usage against the registry and
// returns the execution function that records it. It is invoked immediately
// by AddTask, so all declarations for the whole graph are known before the
// first allocation happens.
type TaskDefinition func(reg *TaskRegistry) Task

// Graph accumulates task definitions and freezes them into single-use
// executions. All declared resources live in the graph's TaskRegistry and
// are realized lazily during execution.
//
// A Graph is not safe for concurrent use.
type Graph struct {
	pool     *memory.Pool
	registry *TaskRegistry
	tasks    []Task
	opts     graphOptions
}

// New creates a graph that allocates transient resources from pool.
func New(pool *memory.Pool, opts ...GraphOption) *Graph {
	o := defaultGraphOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Graph{
		pool:     pool,
		registry: newTaskRegistry(pool),
		opts:     o,
	}
}

// Registry returns the graph's resource registry. It is also passed to
// every task definition, so most callers never need it directly.
func (g *Graph) Registry() *TaskRegistry {
	return g.registry
}

// AddTask invokes def immediately so it can declare resource usage, and
// appends the returned execution function to the ordered task list. Nil
// definitions are ignored. A definition may return a nil task to declare
// resources without recording any work.
func (g *Graph) AddTask(def TaskDefinition) {
	if def == nil {
		return
	}
	g.tasks = append(g.tasks, def(g.registry))
}

// TaskCount returns the number of tasks accumulated since the last Build.
func (g *Graph) TaskCount() int {
	return len(g.tasks)
}

// Build freezes the accumulated tasks into a single-use execution and
// resets the task list. The registry is shared between the graph and every
// execution built from it, so transient resources realized by one execution
// are reused by the next.
func (g *Graph) Build() *GraphExecution {
	tasks := g.tasks
	g.tasks = nil
	queue := g.opts.queue
	if queue == nil {
		queue = g.pool.Queue()
	}
	return &GraphExecution{
		pool:     g.pool,
		registry: g.registry,
		tasks:    tasks,
		label:    g.opts.label,
		queue:    queue,
	}
}

// Close releases every transient resource the registry realized. Call it
// only after outstanding executions have been waited on; freeing does not
// check fence completion.
func (g *Graph) Close() error {
	g.registry.release()
	return nil
}
