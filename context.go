package framegraph

import "time"

// ExecutionContext owns the fences and deferred cleanups of one submitted
// graph execution. Tasks receive it while recording to register cleanups for
// resources that must outlive recording but not the frame; Execute attaches
// the submission fence to it before returning.
//
// Close runs the cleanups in reverse registration order. It must be called
// on every context, normally after Wait reports the work complete.
//
// An ExecutionContext is not safe for concurrent use.
type ExecutionContext struct {
	fences   []*Fence
	cleanups []func()
	closed   bool
}

func newExecutionContext() *ExecutionContext {
	return &ExecutionContext{}
}

// DeferCleanup registers fn to run when the context closes. Cleanups run in
// reverse registration order, so resources registered first are released
// last. Registering on a closed context drops fn with a warning.
func (c *ExecutionContext) DeferCleanup(fn func()) {
	if fn == nil {
		return
	}
	if c.closed {
		Logger().Warn("cleanup registered on closed execution context")
		return
	}
	c.cleanups = append(c.cleanups, fn)
}

// attachFence hands ownership of a submission fence to the context.
func (c *ExecutionContext) attachFence(f *Fence) {
	c.fences = append(c.fences, f)
}

// IsSignaled reports whether every fence of the submission has signaled.
// A context holding no fences reports true.
func (c *ExecutionContext) IsSignaled() bool {
	for _, f := range c.fences {
		if !f.IsSignaled() {
			return false
		}
	}
	return true
}

// Wait blocks until all submission fences signal or timeout elapses. Each
// fence is given the full timeout. It returns true once all have signaled,
// false on the first timeout.
func (c *ExecutionContext) Wait(timeout time.Duration) (bool, error) {
	for _, f := range c.fences {
		signaled, err := f.Wait(timeout)
		if err != nil {
			return false, err
		}
		if !signaled {
			return false, nil
		}
	}
	return true, nil
}

// Close runs the deferred cleanups in reverse registration order and
// releases the fences. Closing while submitted work is still in flight is
// logged as a warning but not blocked; the caller must Wait first when the
// cleanups release resources the GPU may still touch. Close is idempotent.
func (c *ExecutionContext) Close() {
	if c.closed {
		return
	}
	c.closed = true

	if len(c.fences) > 0 && !c.IsSignaled() {
		Logger().Warn("execution context closed with unsignaled work")
	}

	for i := len(c.cleanups) - 1; i >= 0; i-- {
		c.cleanups[i]()
	}
	c.cleanups = nil
	c.fences = nil
}
