//go:build !nogpu

// Command fgdemo renders an animated gradient through the frame task graph
// on a real GPU device.
//
// Every frame rebuilds the graph with a single compute task. The transient
// buffers are requested once up front; each frame only declares aliases on
// them, so the pool allocates exactly once and later executions reuse the
// realized buffers.
//
// Output:
//
//	tmp/fgdemo.png          — final frame at full resolution
//	tmp/fgdemo_preview.png  — half-scale CatmullRom preview
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"time"

	"github.com/gogpu/framegraph"
	"github.com/gogpu/framegraph/internal/shader"
	"github.com/gogpu/framegraph/memory"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	xdraw "golang.org/x/image/draw"
)

const (
	fenceTimeout = 5 * time.Second

	// workgroupDim matches @workgroup_size in gradientWGSL.
	workgroupDim = 8

	// paramsSize is the byte size of the Params uniform struct.
	paramsSize = 16
)

const gradientWGSL = `
struct Params {
    width: u32,
    height: u32,
    frame: u32,
    _pad: u32,
}

@group(0) @binding(0) var<uniform> params: Params;
@group(0) @binding(1) var<storage, read_write> pixels: array<u32>;

@compute @workgroup_size(8, 8)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    if (gid.x >= params.width || gid.y >= params.height) {
        return;
    }
    let fx = f32(gid.x) / f32(params.width);
    let fy = f32(gid.y) / f32(params.height);
    let wave = 0.5 + 0.5 * sin(6.2831853 * (fx + f32(params.frame) * 0.125));
    let r = u32(fx * 255.0);
    let g = u32(fy * 255.0);
    let b = u32(wave * 255.0);
    pixels[gid.y * params.width + gid.x] = r | (g << 8u) | (b << 16u) | (255u << 24u);
}
`

func main() {
	var (
		width   = flag.Int("width", 512, "image width")
		height  = flag.Int("height", 384, "image height")
		frames  = flag.Int("frames", 4, "number of frames to render")
		verbose = flag.Bool("v", false, "enable debug logging")
	)
	flag.Parse()

	if *width < 1 || *height < 1 || *frames < 1 {
		fmt.Fprintln(os.Stderr, "ERROR: width, height and frames must be positive")
		os.Exit(1)
	}

	fmt.Println("Frame Graph Demo")
	fmt.Println("================")
	fmt.Println()
	fmt.Printf("Canvas: %dx%d, %d frame(s)\n\n", *width, *height, *frames)

	if *verbose {
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
		slog.SetDefault(logger)
		framegraph.SetLogger(logger)
	}

	dev, err := openDevice()
	if err != nil {
		fmt.Printf("GPU device... SKIP (%v)\n", err)
		return
	}
	defer dev.close()
	fmt.Printf("GPU device... %s ✓\n", dev.name)

	img, stats, err := renderFrames(dev, *width, *height, *frames)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
	fmt.Println()
	fmt.Println(stats.String())

	if err := os.MkdirAll("tmp", 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: cannot create tmp/: %v\n", err)
		os.Exit(1)
	}
	if err := savePNG(img, "tmp/fgdemo.png"); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: save image: %v\n", err)
		os.Exit(1)
	}

	preview := image.NewRGBA(image.Rect(0, 0, *width/2, *height/2))
	xdraw.CatmullRom.Scale(preview, preview.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	if err := savePNG(preview, "tmp/fgdemo_preview.png"); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: save preview: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("Output:")
	fmt.Println("  Full:    tmp/fgdemo.png")
	fmt.Println("  Preview: tmp/fgdemo_preview.png")
}

// renderFrames runs the frame loop and reads the final frame back from the
// transient pixel buffer.
func renderFrames(dev *gpuDevice, width, height, frames int) (*image.RGBA, memory.Stats, error) {
	pool := memory.NewPool(dev.device, dev.queue)
	defer pool.Close()

	pipe, err := buildPipeline(dev.device)
	if err != nil {
		return nil, memory.Stats{}, err
	}
	defer pipe.destroy(dev.device)

	graph := framegraph.New(pool, framegraph.WithLabel("fgdemo"))
	defer graph.Close()

	reg := graph.Registry()
	paramsHandle := reg.RequestBuffer(framegraph.BufferRequest{
		Label: "gradient_params",
		Size:  paramsSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageMapWrite,
	})
	pixelsHandle := reg.RequestBuffer(framegraph.BufferRequest{
		Label: "gradient_pixels",
		Size:  uint64(width) * uint64(height) * 4,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageMapRead,
	})

	var lastPixels framegraph.BufferAlias
	for frame := 0; frame < frames; frame++ {
		start := time.Now()
		graph.AddTask(gradientTask(dev.device, pipe, paramsHandle, pixelsHandle,
			uint32(width), uint32(height), uint32(frame), &lastPixels))

		ctx, err := graph.Build().Execute()
		if err != nil {
			return nil, memory.Stats{}, fmt.Errorf("frame %d: %w", frame, err)
		}
		ok, err := ctx.Wait(fenceTimeout)
		if err == nil && !ok {
			err = fmt.Errorf("GPU timeout after %v", fenceTimeout)
		}
		ctx.Close()
		if err != nil {
			return nil, memory.Stats{}, fmt.Errorf("frame %d: %w", frame, err)
		}
		fmt.Printf("Frame %d... %v ✓\n", frame, time.Since(start).Round(100*time.Microsecond))
	}

	pixelsBuf, err := graph.Registry().Buffer(lastPixels)
	if err != nil {
		return nil, memory.Stats{}, fmt.Errorf("resolve pixel buffer: %w", err)
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	if err := pixelsBuf.Read(img.Pix); err != nil {
		return nil, memory.Stats{}, fmt.Errorf("read pixels: %w", err)
	}

	return img, pool.PollStats(), nil
}

// gradientTask declares the frame's buffer uses and returns the execution
// function recording one compute dispatch. The alias of the pixel buffer is
// written to out so the caller can read the result back after the wait.
func gradientTask(
	device hal.Device,
	pipe *gradientPipeline,
	params, pixels framegraph.TransientBufferHandle,
	width, height, frame uint32,
	out *framegraph.BufferAlias,
) framegraph.TaskDefinition {
	return func(reg *framegraph.TaskRegistry) framegraph.Task {
		paramsAlias := reg.ReadBuffer(params)
		pixelsAlias := reg.WriteBuffer(pixels)
		*out = pixelsAlias

		return func(ec *framegraph.ExecutionContext, enc hal.CommandEncoder) error {
			paramsBuf, err := reg.Buffer(paramsAlias)
			if err != nil {
				return err
			}
			var data [paramsSize]byte
			binary.LittleEndian.PutUint32(data[0:], width)
			binary.LittleEndian.PutUint32(data[4:], height)
			binary.LittleEndian.PutUint32(data[8:], frame)
			if err := paramsBuf.Update(data[:]); err != nil {
				return err
			}

			paramsBinding, err := reg.BufferView(paramsAlias)
			if err != nil {
				return err
			}
			pixelsBinding, err := reg.BufferView(pixelsAlias)
			if err != nil {
				return err
			}

			bg, err := device.CreateBindGroup(&hal.BindGroupDescriptor{
				Label:  "gradient_bg",
				Layout: pipe.bgLayout,
				Entries: []gputypes.BindGroupEntry{
					{Binding: 0, Resource: paramsBinding},
					{Binding: 1, Resource: pixelsBinding},
				},
			})
			if err != nil {
				return fmt.Errorf("create bind group: %w", err)
			}
			ec.DeferCleanup(func() { device.DestroyBindGroup(bg) })

			pass := enc.BeginComputePass(&hal.ComputePassDescriptor{Label: "gradient"})
			pass.SetPipeline(pipe.pipeline)
			pass.SetBindGroup(0, bg, nil)
			pass.Dispatch((width+workgroupDim-1)/workgroupDim, (height+workgroupDim-1)/workgroupDim, 1)
			pass.End()
			return nil
		}
	}
}

// gradientPipeline holds the GPU objects shared by every frame.
type gradientPipeline struct {
	module     hal.ShaderModule
	bgLayout   hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.ComputePipeline
}

func buildPipeline(device hal.Device) (*gradientPipeline, error) {
	module, err := shader.NewModule(device, "gradient", gradientWGSL)
	if err != nil {
		return nil, err
	}

	bgLayout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "gradient_bgl",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageCompute,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageCompute,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage},
			},
		},
	})
	if err != nil {
		device.DestroyShaderModule(module)
		return nil, fmt.Errorf("create bind group layout: %w", err)
	}

	pipeLayout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "gradient_pl",
		BindGroupLayouts: []hal.BindGroupLayout{bgLayout},
	})
	if err != nil {
		device.DestroyBindGroupLayout(bgLayout)
		device.DestroyShaderModule(module)
		return nil, fmt.Errorf("create pipeline layout: %w", err)
	}

	pipeline, err := device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  "gradient",
		Layout: pipeLayout,
		Compute: hal.ComputeState{
			Module:     module,
			EntryPoint: "main",
		},
	})
	if err != nil {
		device.DestroyPipelineLayout(pipeLayout)
		device.DestroyBindGroupLayout(bgLayout)
		device.DestroyShaderModule(module)
		return nil, fmt.Errorf("create compute pipeline: %w", err)
	}

	return &gradientPipeline{
		module:     module,
		bgLayout:   bgLayout,
		pipeLayout: pipeLayout,
		pipeline:   pipeline,
	}, nil
}

func (p *gradientPipeline) destroy(device hal.Device) {
	device.DestroyComputePipeline(p.pipeline)
	device.DestroyPipelineLayout(p.pipeLayout)
	device.DestroyBindGroupLayout(p.bgLayout)
	device.DestroyShaderModule(p.module)
}

// gpuDevice is a standalone Vulkan device for compute-only use.
type gpuDevice struct {
	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	name     string
}

func openDevice() (*gpuDevice, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("vulkan backend not available")
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("no GPU adapters found")
	}

	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("open device: %w", err)
	}

	return &gpuDevice{
		instance: instance,
		device:   openDev.Device,
		queue:    openDev.Queue,
		name:     selected.Info.Name,
	}, nil
}

func (d *gpuDevice) close() {
	if d.device != nil {
		d.device.Destroy()
	}
	if d.instance != nil {
		d.instance.Destroy()
	}
}

// savePNG writes an RGBA image to a PNG file.
func savePNG(img *image.RGBA, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}
