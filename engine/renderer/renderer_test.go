package renderer

import (
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-raysampler/common"
	"github.com/Carmen-Shannon/oxy-raysampler/engine/renderer/gpu/gputest"
	"github.com/Carmen-Shannon/oxy-raysampler/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

type testTarget struct {
	desc          *wgpu.SurfaceDescriptor
	width, height int
}

func (t testTarget) SurfaceDescriptor() *wgpu.SurfaceDescriptor { return t.desc }
func (t testTarget) Width() int                                  { return t.width }
func (t testTarget) Height() int                                 { return t.height }

func target(width, height int) testTarget {
	return testTarget{desc: &wgpu.SurfaceDescriptor{Label: "test surface"}, width: width, height: height}
}

func newTestRenderer(t *testing.T, fake *gputest.Fake, width, height int, opts ...RendererBuilderOption) Renderer {
	t.Helper()
	r, err := NewRenderer(fake.Instance(), target(width, height), opts...)
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	t.Cleanup(r.Release)
	return r
}

// lastPass returns the most recent pass of the given kind.
func lastPass(t *testing.T, fake *gputest.Fake, kind string) *gputest.Pass {
	t.Helper()
	passes := fake.Passes()
	for i := len(passes) - 1; i >= 0; i-- {
		if passes[i].Kind == kind {
			return passes[i]
		}
	}
	t.Fatalf("no %s pass recorded", kind)
	return nil
}

func TestNewRenderer(t *testing.T) {
	fake := gputest.New()
	r := newTestRenderer(t, fake, 800, 600, WithInitialTimestamp(42))

	order := []string{"RequestAdapter", "RequestDevice", "CreateSurface", "Configure"}
	prev := -1
	for _, op := range order {
		i := fake.CallIndex(op, 0)
		if i <= prev {
			t.Fatalf("%s at call %d, want after %d; calls = %v", op, i, prev, fake.Calls())
		}
		prev = i
	}

	configs := fake.SurfaceConfigs()
	if len(configs) != 1 {
		t.Fatalf("got %d surface configurations, want 1", len(configs))
	}
	if configs[0].Width != 800 || configs[0].Height != 600 || configs[0].Format != wgpu.TextureFormatBGRA8Unorm {
		t.Errorf("surface configuration = %+v", configs[0])
	}
	if configs[0].PresentMode != wgpu.PresentModeImmediate {
		t.Errorf("present mode = %v, want immediate", configs[0].PresentMode)
	}
	if r.SurfaceFormat() != wgpu.TextureFormatBGRA8Unorm {
		t.Errorf("SurfaceFormat() = %v", r.SurfaceFormat())
	}

	c := r.Coordinator()
	if got, want := c.Extent(), (common.Extent2D{Width: 800, Height: 600}); got != want {
		t.Errorf("coordinator extent = %s, want %s", got, want)
	}
	writes := fake.Writes()
	if len(writes) != 1 {
		t.Fatalf("got %d writes during construction, want 1", len(writes))
	}
	if seed, _, _ := decodeParams(t, writes[0].Data); seed != 42 {
		t.Errorf("initial seed = %v, want 42", seed)
	}
	if fake.Created("ComputePipeline") != 1 || fake.Created("RenderPipeline") != 1 {
		t.Errorf("created %d compute and %d render pipelines, want 1 each",
			fake.Created("ComputePipeline"), fake.Created("RenderPipeline"))
	}
}

func TestNewRendererNoAdapter(t *testing.T) {
	fake := gputest.New()
	fake.NoAdapter = true

	r, err := NewRenderer(fake.Instance(), target(800, 600))
	if !errors.Is(err, ErrNoAdapter) {
		t.Fatalf("NewRenderer = %v, want ErrNoAdapter", err)
	}
	if r != nil {
		t.Error("NewRenderer returned a renderer alongside an error")
	}
	for _, op := range []string{"RequestDevice", "CreateSurface", "Configure"} {
		if n := fake.CallCount(op); n != 0 {
			t.Errorf("%s called %d times after adapter failure", op, n)
		}
	}
}

func TestNewRendererNoSurface(t *testing.T) {
	fake := gputest.New()

	_, err := NewRenderer(fake.Instance(), testTarget{width: 800, height: 600})
	if !errors.Is(err, ErrNoSurfaceContext) {
		t.Fatalf("NewRenderer = %v, want ErrNoSurfaceContext", err)
	}
	if got := fake.Released("Device"); got != 1 {
		t.Errorf("device released %d times, want 1", got)
	}
	if fake.CallCount("Release Adapter") != 1 {
		t.Error("adapter not released")
	}
}

const brokenComputeSource = `//@oxy:include sampling_params
//@oxy:provider 0 0 framebuffer
@group(0) @binding(0) var framebuffer: texture_storage_2d<rgba16float, write>;
//@oxy:group 0 1 storage_uniform samplingParams sampling_params

@compute @workgroup_size(8, 8)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
    let x = ;
}
`

func TestNewRendererCompilationFailure(t *testing.T) {
	wrongContract, err := shader.NewShader("wrong", shader.ShaderTypeCompute, `
@compute @workgroup_size(8, 8)
fn main() {}
`)
	if err != nil {
		t.Fatal(err)
	}
	broken, err := shader.NewShader("broken", shader.ShaderTypeCompute, brokenComputeSource)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		failOn string
		opts   []RendererBuilderOption
	}{
		{"contract mismatch", "", []RendererBuilderOption{WithShaders(wrongContract, nil)}},
		{"render pipeline rejected", "CreateRenderPipeline", nil},
		{"compute pipeline rejected", "CreateComputePipeline", nil},
		{"naga rejects source", "", []RendererBuilderOption{WithShaders(broken, nil), WithShaderValidation(true)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := gputest.New()
			if tt.failOn != "" {
				fake.FailOn(tt.failOn, errors.New("driver says no"))
			}
			_, err := NewRenderer(fake.Instance(), target(320, 240), tt.opts...)
			if !errors.Is(err, ErrProgramCompilationFailed) {
				t.Fatalf("NewRenderer = %v, want ErrProgramCompilationFailed", err)
			}
			for _, kind := range []string{
				"Surface", "ShaderModule", "PipelineLayout", "ComputePipeline", "RenderPipeline",
				"BindGroupLayout", "Buffer", "Sampler", "Texture", "TextureView", "BindGroup",
			} {
				if live := fake.Live(kind); live != 0 {
					t.Errorf("%d %s live after failed NewRenderer", live, kind)
				}
			}
			if fake.Released("Device") != 1 {
				t.Error("device not released")
			}
		})
	}
}

func TestNewRendererDoesNotLeakGoroutines(t *testing.T) {
	cycle := func(failOn string) {
		fake := gputest.New()
		if failOn != "" {
			fake.FailOn(failOn, errors.New("driver says no"))
		}
		r, err := NewRenderer(fake.Instance(), target(64, 64))
		if failOn != "" {
			if err == nil {
				t.Fatal("expected NewRenderer to fail")
			}
			return
		}
		if err != nil {
			t.Fatalf("NewRenderer: %v", err)
		}
		r.Release()
	}

	cycle("")
	before := runtime.NumGoroutine()
	for i := range 10 {
		if i%3 == 2 {
			cycle("CreateComputePipeline")
			continue
		}
		cycle("")
	}

	after := runtime.NumGoroutine()
	for deadline := time.Now().Add(2 * time.Second); after > before && time.Now().Before(deadline); {
		time.Sleep(10 * time.Millisecond)
		after = runtime.NumGoroutine()
	}
	if after > before {
		t.Errorf("goroutines grew from %d to %d over 10 renderers", before, after)
	}
}

func TestNewRendererWithoutValidationSkipsNaga(t *testing.T) {
	broken, err := shader.NewShader("broken", shader.ShaderTypeCompute, brokenComputeSource)
	if err != nil {
		t.Fatal(err)
	}
	newTestRenderer(t, gputest.New(), 64, 64, WithShaders(broken, nil))
}

func TestUpdateDispatch(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		opts          []RendererBuilderOption
		want          [3]uint32
	}{
		{"64x64", 64, 64, nil, [3]uint32{9, 9, 1}},
		{"800x600", 800, 600, nil, [3]uint32{101, 76, 1}},
		{"1x1", 1, 1, nil, [3]uint32{1, 1, 1}},
		{"exact 64x64", 64, 64, []RendererBuilderOption{WithExactDispatch(true)}, [3]uint32{8, 8, 1}},
		{"exact 65x7", 65, 7, []RendererBuilderOption{WithExactDispatch(true)}, [3]uint32{9, 1, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := gputest.New()
			r := newTestRenderer(t, fake, tt.width, tt.height, tt.opts...)
			if err := r.Update(16); err != nil {
				t.Fatalf("Update: %v", err)
			}
			p := lastPass(t, fake, "compute")
			if len(p.Dispatches) != 1 || p.Dispatches[0] != tt.want {
				t.Errorf("dispatches = %v, want [%v]", p.Dispatches, tt.want)
			}
		})
	}
}

func TestUpdateFrame(t *testing.T) {
	fake := gputest.New()
	clearColor := wgpu.Color{R: 0.25, G: 0.5, B: 0.75, A: 1}
	r := newTestRenderer(t, fake, 800, 600, WithClearColor(clearColor))

	start := len(fake.Calls())
	if err := r.Update(1000); err != nil {
		t.Fatalf("Update: %v", err)
	}

	write := fake.CallIndex("WriteBuffer", start)
	dispatch := fake.CallIndex("DispatchWorkgroups", start)
	draw := fake.CallIndex("Draw", start)
	submit := fake.CallIndex("Submit", start)
	present := fake.CallIndex("Present", start)
	if write < 0 || !(write < dispatch && dispatch < draw && draw < submit && submit < present) {
		t.Fatalf("frame order write=%d dispatch=%d draw=%d submit=%d present=%d; calls = %v",
			write, dispatch, draw, submit, present, fake.Calls()[start:])
	}

	writes := fake.Writes()
	seed, w, h := decodeParams(t, writes[len(writes)-1].Data)
	if seed != 1000 || w != 800 || h != 600 {
		t.Errorf("params = seed %v extent %dx%d, want seed 1000 extent 800x600", seed, w, h)
	}

	c := r.Coordinator()
	cp := lastPass(t, fake, "compute")
	if cp.BindGroups[0] != c.ComputeBindGroup() || !cp.Ended {
		t.Errorf("compute pass = %+v", cp)
	}
	rp := lastPass(t, fake, "render")
	if rp.BindGroups[0] != c.DrawBindGroup() || !rp.Ended {
		t.Errorf("render pass = %+v", rp)
	}
	if len(rp.Draws) != 1 || rp.Draws[0] != [4]uint32{3, 1, 0, 0} {
		t.Errorf("draws = %v, want [[3 1 0 0]]", rp.Draws)
	}
	if len(rp.Attachments) != 1 {
		t.Fatalf("got %d color attachments, want 1", len(rp.Attachments))
	}
	a := rp.Attachments[0]
	if a.LoadOp != wgpu.LoadOpClear || a.StoreOp != wgpu.StoreOpStore || a.ClearValue != clearColor {
		t.Errorf("attachment = %+v", a)
	}

	for _, kind := range []string{"SurfaceTexture", "CommandEncoder", "CommandBuffer", "ComputePass", "RenderPass"} {
		if live := fake.Live(kind); live != 0 {
			t.Errorf("%d %s live after Update", live, kind)
		}
	}
}

func TestUpdateUnchangedSize(t *testing.T) {
	fake := gputest.New()
	r := newTestRenderer(t, fake, 128, 128)
	c := r.Coordinator()
	rebuilds := c.Rebuilds()
	writes := len(fake.Writes())

	for i := range 2 {
		if err := r.Update(float64(i)); err != nil {
			t.Fatalf("Update %d: %v", i, err)
		}
	}
	if got := c.Rebuilds(); got != rebuilds {
		t.Errorf("Rebuilds() = %d, want %d", got, rebuilds)
	}
	if got := len(fake.Writes()) - writes; got != 2 {
		t.Errorf("got %d parameter writes, want 2", got)
	}
}

func TestHandleResize(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		configured    bool
		want          common.Extent2D
	}{
		{"zero width", 0, 600, false, common.Extent2D{Width: 320, Height: 240}},
		{"zero height", 800, 0, false, common.Extent2D{Width: 320, Height: 240}},
		{"negative", -5, 600, false, common.Extent2D{Width: 320, Height: 240}},
		{"normal", 1024, 768, true, common.Extent2D{Width: 1024, Height: 768}},
		{"oversized", 10000, 600, true, common.Extent2D{Width: gputest.DefaultMaxTextureDimension2D, Height: 600}},
		{"oversized both", 9000, 9000, true, common.Extent2D{Width: gputest.DefaultMaxTextureDimension2D, Height: gputest.DefaultMaxTextureDimension2D}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := gputest.New()
			r := newTestRenderer(t, fake, 320, 240)
			configs := len(fake.SurfaceConfigs())
			rebuilds := r.Coordinator().Rebuilds()

			r.HandleResize(tt.width, tt.height)

			got := fake.SurfaceConfigs()
			if tt.configured != (len(got) == configs+1) {
				t.Fatalf("configured = %v, want %v", len(got) > configs, tt.configured)
			}
			if tt.configured {
				last := got[len(got)-1]
				if last.Width != tt.want.Width || last.Height != tt.want.Height {
					t.Errorf("configured %dx%d, want %s", last.Width, last.Height, tt.want)
				}
			}
			if r.SurfaceExtent() != tt.want {
				t.Errorf("SurfaceExtent() = %s, want %s", r.SurfaceExtent(), tt.want)
			}
			if r.Coordinator().Rebuilds() != rebuilds {
				t.Error("HandleResize rebuilt the framebuffer eagerly")
			}

			if err := r.Update(1); err != nil {
				t.Fatalf("Update: %v", err)
			}
			if got := r.Coordinator().Extent(); got != tt.want {
				t.Errorf("coordinator extent after Update = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestUpdateErrors(t *testing.T) {
	tests := []struct {
		name   string
		failOn string
		want   error
	}{
		{"surface texture", "CurrentTexture", ErrSurfaceTexture},
		{"command encoder", "CreateCommandEncoder", ErrResourceCreation},
		{"finish", "Finish", ErrResourceCreation},
		{"framebuffer", "CreateTexture", ErrResourceCreation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := gputest.New()
			r := newTestRenderer(t, fake, 320, 240)
			r.HandleResize(640, 480)
			submits := fake.Submits()

			fake.FailOn(tt.failOn, errors.New("device lost"))
			if err := r.Update(1); !errors.Is(err, tt.want) {
				t.Fatalf("Update = %v, want %v", err, tt.want)
			}
			if fake.Submits() != submits {
				t.Error("failed Update submitted work")
			}

			fake.ClearFailures()
			if err := r.Update(2); err != nil {
				t.Fatalf("retry: %v", err)
			}
			if fake.Submits() != submits+1 {
				t.Errorf("got %d submits after retry, want %d", fake.Submits(), submits+1)
			}
		})
	}
}

func TestSetPresentMode(t *testing.T) {
	fake := gputest.New()
	r := newTestRenderer(t, fake, 320, 240)

	r.SetPresentMode(PresentModeVSync)
	configs := fake.SurfaceConfigs()
	last := configs[len(configs)-1]
	if last.PresentMode != wgpu.PresentModeFifo || last.Width != 320 || last.Height != 240 {
		t.Errorf("configuration after SetPresentMode = %+v", last)
	}
}

func TestRelease(t *testing.T) {
	fake := gputest.New()
	r, err := NewRenderer(fake.Instance(), target(320, 240))
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Update(0); err != nil {
		t.Fatal(err)
	}
	r.Release()

	for _, kind := range []string{
		"Surface", "ShaderModule", "PipelineLayout", "ComputePipeline", "RenderPipeline",
		"BindGroupLayout", "Buffer", "Sampler", "Texture", "TextureView", "BindGroup",
	} {
		if live := fake.Live(kind); live != 0 {
			t.Errorf("%d %s live after Release", live, kind)
		}
	}
	if fake.Released("Device") != 1 {
		t.Error("device not released")
	}
}
