// Package framegraph provides a frame task graph for GPU work built on
// gogpu/wgpu, with lazy transient-resource realization and fence-based
// host/device synchronization.
//
// # Overview
//
// Callers declare a sequence of GPU tasks that read and write logically-named
// resources before any memory backs them. Each task definition runs
// immediately to declare its resource usage against a TaskRegistry and
// returns an execution function. Building the graph freezes the execution
// functions; executing records them in registration order into one command
// stream, submits it, and returns an ExecutionContext that owns the
// submission's fence and a LIFO list of deferred cleanups.
//
// Transient resources are realized on first resolution: the registry
// allocates from a memory.Pool the first time a task resolves an alias, and
// the allocation is reused for every later resolution of the same handle.
//
// # Quick Start
//
//	pool := memory.NewPool(device, queue)
//	defer pool.Close()
//
//	graph := framegraph.New(pool)
//	defer graph.Close()
//
//	graph.AddTask(func(reg *framegraph.TaskRegistry) framegraph.Task {
//	    h := reg.RequestBuffer(framegraph.BufferRequest{
//	        Label: "particles",
//	        Size:  1 << 16,
//	        Usage: gputypes.BufferUsageStorage,
//	    })
//	    out := reg.WriteBuffer(h)
//	    return func(ec *framegraph.ExecutionContext, enc hal.CommandEncoder) error {
//	        _, err := reg.Buffer(out) // realized on first resolution
//	        return err
//	    }
//	})
//
//	ctx, err := graph.Build().Execute()
//	if err != nil {
//	    return err
//	}
//	defer ctx.Close()
//	if ok, err := ctx.Wait(5 * time.Second); err != nil || !ok {
//	    return fmt.Errorf("graph stalled: %v", err)
//	}
//
// # Concurrency
//
// A Graph and its TaskRegistry are single-threaded: definition, recording
// and waiting must happen on one goroutine, or callers must serialize
// access. Submitted GPU work runs asynchronously; the fence inside the
// ExecutionContext is the only handoff point between the two timelines.
//
// By default the package produces no log output; call SetLogger to enable
// structured logging.
package framegraph
