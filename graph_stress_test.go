// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build stress && !nogpu

package framegraph

import (
	"fmt"
	"testing"
	"time"

	"github.com/gogpu/framegraph/memory"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// TestStress100Frames runs 100 build/execute/wait cycles on one graph and
// verifies the transient buffers are allocated exactly once.
func TestStress100Frames(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()
	pool := memory.NewPool(device, queue)
	defer pool.Close()

	g := New(pool, WithLabel("stress_frames"))
	defer g.Close()

	reg := g.Registry()
	ping := reg.RequestBuffer(BufferRequest{Label: "stress_ping", Size: 4096, Usage: gputypes.BufferUsageStorage})
	pong := reg.RequestBuffer(BufferRequest{Label: "stress_pong", Size: 4096, Usage: gputypes.BufferUsageStorage})

	const frames = 100
	start := time.Now()
	for frame := 0; frame < frames; frame++ {
		g.AddTask(func(reg *TaskRegistry) Task {
			a := reg.WriteBuffer(ping)
			b := reg.ReadBuffer(pong)
			return func(_ *ExecutionContext, _ hal.CommandEncoder) error {
				if _, err := reg.Buffer(a); err != nil {
					return err
				}
				if _, err := reg.Buffer(b); err != nil {
					return err
				}
				return nil
			}
		})

		ctx, err := g.Build().Execute()
		if err != nil {
			t.Fatalf("frame %d: Execute failed: %v", frame, err)
		}
		ok, err := ctx.Wait(5 * time.Second)
		if err != nil || !ok {
			t.Fatalf("frame %d: Wait = (%v, %v)", frame, ok, err)
		}
		ctx.Close()
	}
	total := time.Since(start)

	stats := pool.Stats()
	if stats.BufferAllocations != 2 {
		t.Errorf("expected 2 buffer allocations across %d frames, got %d", frames, stats.BufferAllocations)
	}
	if stats.LiveBuffers != 2 {
		t.Errorf("expected 2 live buffers, got %d", stats.LiveBuffers)
	}

	t.Logf("%d frames: %v total, %v per frame", frames, total, total/frames)
}

// TestStress1000Transients realizes 1000 transient buffers from one registry
// and releases them all through the graph.
func TestStress1000Transients(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()
	pool := memory.NewPool(device, queue)
	defer pool.Close()

	g := New(pool)
	reg := g.Registry()

	const transients = 1000
	aliases := make([]BufferAlias, 0, transients)
	for i := 0; i < transients; i++ {
		h := reg.RequestBuffer(BufferRequest{
			Label: fmt.Sprintf("stress_%d", i),
			Size:  256,
			Usage: gputypes.BufferUsageStorage,
		})
		aliases = append(aliases, reg.WriteBuffer(h))
	}

	for i, a := range aliases {
		if _, err := reg.Buffer(a); err != nil {
			t.Fatalf("realize %d: %v", i, err)
		}
	}

	stats := pool.Stats()
	if stats.LiveBuffers != transients {
		t.Errorf("expected %d live buffers, got %d", transients, stats.LiveBuffers)
	}
	peakBytes := stats.BufferBytes

	if err := g.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	stats = pool.Stats()
	if stats.LiveBuffers != 0 {
		t.Errorf("expected 0 live buffers after close, got %d", stats.LiveBuffers)
	}

	t.Logf("%d transients: %d bytes live at peak", transients, peakBytes)
}

// TestStress100TasksPerExecution records 100 tasks into one execution and
// verifies all their cleanups run on close.
func TestStress100TasksPerExecution(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()
	pool := memory.NewPool(device, queue)
	defer pool.Close()

	g := New(pool, WithLabel("stress_tasks"))
	defer g.Close()

	const tasks = 100
	cleanups := 0
	for i := 0; i < tasks; i++ {
		g.AddTask(func(_ *TaskRegistry) Task {
			return func(ec *ExecutionContext, _ hal.CommandEncoder) error {
				ec.DeferCleanup(func() { cleanups++ })
				return nil
			}
		})
	}
	if g.TaskCount() != tasks {
		t.Fatalf("TaskCount = %d, want %d", g.TaskCount(), tasks)
	}

	ctx, err := g.Build().Execute()
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	ok, err := ctx.Wait(5 * time.Second)
	if err != nil || !ok {
		t.Fatalf("Wait = (%v, %v)", ok, err)
	}
	ctx.Close()

	if cleanups != tasks {
		t.Errorf("expected %d cleanups to run, got %d", tasks, cleanups)
	}
}

// TestStressAliasChurn mints 10000 aliases on a single transient and checks
// they all resolve to the same allocation.
func TestStressAliasChurn(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()
	pool := memory.NewPool(device, queue)
	defer pool.Close()

	g := New(pool)
	defer g.Close()
	reg := g.Registry()

	h := reg.RequestBuffer(BufferRequest{Label: "churn", Size: 1024, Usage: gputypes.BufferUsageStorage})

	first, err := reg.Buffer(reg.WriteBuffer(h))
	if err != nil {
		t.Fatalf("first resolution failed: %v", err)
	}

	const churn = 10000
	for i := 0; i < churn; i++ {
		var a BufferAlias
		if i%2 == 0 {
			a = reg.ReadBuffer(h)
		} else {
			a = reg.WriteBuffer(h)
		}
		buf, err := reg.Buffer(a)
		if err != nil {
			t.Fatalf("alias %d: %v", i, err)
		}
		if buf != first {
			t.Fatalf("alias %d resolved to a different allocation", i)
		}
	}

	if got := pool.Stats().BufferAllocations; got != 1 {
		t.Errorf("expected 1 allocation after churn, got %d", got)
	}
}
