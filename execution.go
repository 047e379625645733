package framegraph

import (
	"errors"
	"fmt"

	"github.com/gogpu/framegraph/memory"
	"github.com/gogpu/wgpu/hal"
)

// Execution errors.
var (
	// ErrExecutionConsumed is returned when executing a GraphExecution twice.
	ErrExecutionConsumed = errors.New("framegraph: execution already consumed")
)

// GraphExecution is a frozen, ordered set of tasks ready to record and
// submit. Each execution is consumed by exactly one Execute call.
type GraphExecution struct {
	pool     *memory.Pool
	registry *TaskRegistry
	tasks    []Task
	label    string
	queue    hal.Queue
	consumed bool
}

// Registry returns the registry shared with the owning graph.
func (x *GraphExecution) Registry() *TaskRegistry {
	return x.registry
}

// Execute records every task in registration order into one command stream,
// submits it with a fresh fence, and returns the context owning that fence.
//
// The command buffer's release is registered on the context before recording
// begins, so it cannot leak when a task fails. On failure the encoder is
// discarded, the partially built context is closed (running its cleanups in
// reverse order), and the error is returned.
func (x *GraphExecution) Execute() (*ExecutionContext, error) {
	if x.consumed {
		return nil, ErrExecutionConsumed
	}
	x.consumed = true

	device := x.pool.Device()
	ctx := newExecutionContext()

	encoder, err := device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: x.label,
	})
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("create command encoder: %w", err)
	}

	// Registered before recording begins so a failing task cannot leak
	// the command buffer.
	var cmdBuf hal.CommandBuffer
	ctx.DeferCleanup(func() {
		if cmdBuf != nil {
			device.FreeCommandBuffer(cmdBuf)
		}
	})

	if err := encoder.BeginEncoding(x.label); err != nil {
		ctx.Close()
		return nil, fmt.Errorf("begin encoding: %w", err)
	}

	for i, task := range x.tasks {
		if task == nil {
			continue
		}
		if err := task(ctx, encoder); err != nil {
			encoder.DiscardEncoding()
			ctx.Close()
			return nil, fmt.Errorf("task %d: %w", i, err)
		}
	}

	buf, err := encoder.EndEncoding()
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("end encoding: %w", err)
	}
	cmdBuf = buf

	fence, err := NewFence(device)
	if err != nil {
		ctx.Close()
		return nil, err
	}
	ctx.DeferCleanup(fence.Close)

	handle, value := fence.ReleaseHandle()
	if err := x.queue.Submit([]hal.CommandBuffer{cmdBuf}, handle, value); err != nil {
		ctx.Close()
		return nil, fmt.Errorf("submit: %w", err)
	}
	ctx.attachFence(fence)

	Logger().Debug("graph submitted", "label", x.label, "tasks", len(x.tasks))
	return ctx, nil
}
