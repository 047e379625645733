//go:build !nogpu

package framegraph

import (
	"errors"
	"testing"
	"time"

	"github.com/gogpu/framegraph/memory"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// createNoopDevice creates a noop device and queue for testing.
// Returns the device, queue, and a cleanup function.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue, func()) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return openDev.Device, openDev.Queue, cleanup
}

// newTestGraph creates a graph backed by a noop device pool.
func newTestGraph(t *testing.T, opts ...GraphOption) (*Graph, *memory.Pool, func()) {
	t.Helper()
	device, queue, cleanup := createNoopDevice(t)
	pool := memory.NewPool(device, queue)
	g := New(pool, opts...)
	return g, pool, func() {
		g.Close()
		pool.Close()
		cleanup()
	}
}

func TestGraphExecuteEmpty(t *testing.T) {
	g, _, cleanup := newTestGraph(t)
	defer cleanup()

	ctx, err := g.Build().Execute()
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	defer ctx.Close()

	signaled, err := ctx.Wait(5 * time.Second)
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if !signaled {
		t.Error("expected empty graph to signal immediately")
	}
	if !ctx.IsSignaled() {
		t.Error("expected IsSignaled true after Wait")
	}
}

func TestGraphDefinitionsRunImmediately(t *testing.T) {
	g, _, cleanup := newTestGraph(t)
	defer cleanup()

	ran := false
	g.AddTask(func(reg *TaskRegistry) Task {
		ran = true
		return nil
	})
	if !ran {
		t.Error("expected definition to run during AddTask")
	}
	if g.TaskCount() != 1 {
		t.Errorf("expected 1 task, got %d", g.TaskCount())
	}
}

func TestGraphNilDefinitionIgnored(t *testing.T) {
	g, _, cleanup := newTestGraph(t)
	defer cleanup()

	g.AddTask(nil)
	if g.TaskCount() != 0 {
		t.Errorf("expected 0 tasks after nil definition, got %d", g.TaskCount())
	}
}

func TestGraphTasksRunInOrder(t *testing.T) {
	g, _, cleanup := newTestGraph(t)
	defer cleanup()

	var order []int
	for i := 1; i <= 3; i++ {
		g.AddTask(func(reg *TaskRegistry) Task {
			return func(ec *ExecutionContext, enc hal.CommandEncoder) error {
				order = append(order, i)
				return nil
			}
		})
	}

	ctx, err := g.Build().Execute()
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	defer ctx.Close()

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("expected tasks in order [1 2 3], got %v", order)
	}
}

func TestGraphNilTaskSkipped(t *testing.T) {
	g, _, cleanup := newTestGraph(t)
	defer cleanup()

	// Declares resources but records nothing.
	g.AddTask(func(reg *TaskRegistry) Task {
		reg.RequestBuffer(BufferRequest{Label: "declared_only", Size: 16})
		return nil
	})
	if g.TaskCount() != 1 {
		t.Fatalf("expected 1 task, got %d", g.TaskCount())
	}

	ctx, err := g.Build().Execute()
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	ctx.Close()
}

func TestGraphExecutionConsumed(t *testing.T) {
	g, _, cleanup := newTestGraph(t)
	defer cleanup()

	exec := g.Build()
	ctx, err := exec.Execute()
	if err != nil {
		t.Fatalf("first Execute failed: %v", err)
	}
	ctx.Close()

	if _, err := exec.Execute(); !errors.Is(err, ErrExecutionConsumed) {
		t.Errorf("expected ErrExecutionConsumed, got %v", err)
	}
}

func TestGraphTaskError(t *testing.T) {
	g, _, cleanup := newTestGraph(t)
	defer cleanup()

	taskErr := errors.New("record failed")
	cleanupRan := false
	thirdRan := false

	g.AddTask(func(reg *TaskRegistry) Task {
		return func(ec *ExecutionContext, enc hal.CommandEncoder) error {
			ec.DeferCleanup(func() { cleanupRan = true })
			return nil
		}
	})
	g.AddTask(func(reg *TaskRegistry) Task {
		return func(ec *ExecutionContext, enc hal.CommandEncoder) error {
			return taskErr
		}
	})
	g.AddTask(func(reg *TaskRegistry) Task {
		return func(ec *ExecutionContext, enc hal.CommandEncoder) error {
			thirdRan = true
			return nil
		}
	})

	_, err := g.Build().Execute()
	if !errors.Is(err, taskErr) {
		t.Fatalf("expected task error, got %v", err)
	}
	if thirdRan {
		t.Error("task after the failing one should not run")
	}
	if !cleanupRan {
		t.Error("cleanups must run when a task fails")
	}
}

func TestGraphBuildResetsTasks(t *testing.T) {
	g, _, cleanup := newTestGraph(t)
	defer cleanup()

	var runs []string
	add := func(name string) {
		g.AddTask(func(reg *TaskRegistry) Task {
			return func(ec *ExecutionContext, enc hal.CommandEncoder) error {
				runs = append(runs, name)
				return nil
			}
		})
	}

	add("a")
	add("b")
	first := g.Build()
	if g.TaskCount() != 0 {
		t.Errorf("expected task list reset after Build, got %d", g.TaskCount())
	}

	add("c")
	second := g.Build()

	ctx, err := first.Execute()
	if err != nil {
		t.Fatalf("first Execute failed: %v", err)
	}
	ctx.Close()
	ctx, err = second.Execute()
	if err != nil {
		t.Fatalf("second Execute failed: %v", err)
	}
	ctx.Close()

	if len(runs) != 3 || runs[0] != "a" || runs[1] != "b" || runs[2] != "c" {
		t.Errorf("expected runs [a b c], got %v", runs)
	}
}

func TestGraphTransientRealization(t *testing.T) {
	g, pool, cleanup := newTestGraph(t)
	defer cleanup()

	var h TransientBufferHandle
	g.AddTask(func(reg *TaskRegistry) Task {
		h = reg.RequestBuffer(BufferRequest{
			Label: "transient_storage",
			Size:  256,
			Usage: gputypes.BufferUsageStorage,
		})
		out := reg.WriteBuffer(h)
		return func(ec *ExecutionContext, enc hal.CommandEncoder) error {
			buf, err := reg.Buffer(out)
			if err != nil {
				return err
			}
			if buf.Buffer() == nil {
				return errors.New("expected realized buffer")
			}
			return nil
		}
	})

	// Declaration alone must not allocate.
	if stats := pool.Stats(); stats.BufferAllocations != 0 {
		t.Fatalf("expected no allocations before Execute, got %d", stats.BufferAllocations)
	}

	ctx, err := g.Build().Execute()
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	ctx.Close()

	if stats := pool.Stats(); stats.BufferAllocations != 1 {
		t.Errorf("expected 1 allocation after Execute, got %d", stats.BufferAllocations)
	}

	// A later execution resolving the same transient reuses the allocation.
	g.AddTask(func(reg *TaskRegistry) Task {
		in := reg.ReadBuffer(h)
		return func(ec *ExecutionContext, enc hal.CommandEncoder) error {
			_, err := reg.Buffer(in)
			return err
		}
	})
	ctx, err = g.Build().Execute()
	if err != nil {
		t.Fatalf("second Execute failed: %v", err)
	}
	ctx.Close()

	if stats := pool.Stats(); stats.BufferAllocations != 1 {
		t.Errorf("expected allocation reuse across executions, got %d", stats.BufferAllocations)
	}
}

func TestGraphCloseReleasesTransients(t *testing.T) {
	device, queue, devCleanup := createNoopDevice(t)
	defer devCleanup()
	pool := memory.NewPool(device, queue)
	defer pool.Close()

	g := New(pool)
	g.AddTask(func(reg *TaskRegistry) Task {
		h := reg.RequestImage(ImageRequest{
			Label:  "transient_target",
			Width:  64,
			Height: 64,
			Format: gputypes.TextureFormatRGBA8Unorm,
			Usage:  gputypes.TextureUsageRenderAttachment,
		})
		out := reg.WriteImage(h)
		return func(ec *ExecutionContext, enc hal.CommandEncoder) error {
			_, err := reg.Image(out)
			return err
		}
	})

	ctx, err := g.Build().Execute()
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if signaled, err := ctx.Wait(5 * time.Second); err != nil || !signaled {
		t.Fatalf("Wait failed: signaled=%v err=%v", signaled, err)
	}
	ctx.Close()

	if stats := pool.Stats(); stats.LiveImages != 1 {
		t.Fatalf("expected 1 live image before Close, got %d", stats.LiveImages)
	}

	if err := g.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if stats := pool.Stats(); stats.LiveImages != 0 {
		t.Errorf("expected 0 live images after Close, got %d", stats.LiveImages)
	}
}

func TestGraphWithLabel(t *testing.T) {
	g, _, cleanup := newTestGraph(t, WithLabel("custom_pass"))
	defer cleanup()

	exec := g.Build()
	if exec.label != "custom_pass" {
		t.Errorf("expected label 'custom_pass', got %q", exec.label)
	}

	ctx, err := exec.Execute()
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	ctx.Close()
}

func TestGraphWithQueue(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()
	pool := memory.NewPool(device, queue)
	defer pool.Close()

	g := New(pool, WithQueue(queue))
	defer g.Close()

	exec := g.Build()
	if exec.queue == nil {
		t.Fatal("expected explicit queue on execution")
	}
	ctx, err := exec.Execute()
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	ctx.Close()
}
