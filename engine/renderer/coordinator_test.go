package renderer

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-raysampler/common"
	"github.com/Carmen-Shannon/oxy-raysampler/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-raysampler/engine/renderer/gpu/gputest"
	"github.com/Carmen-Shannon/oxy-raysampler/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-raysampler/engine/renderer/stage"
	"github.com/cogentcore/webgpu/wgpu"
)

func defaultTestShaders(t *testing.T) (shader.Shader, shader.Shader) {
	t.Helper()
	cs, err := stage.DefaultComputeShader()
	if err != nil {
		t.Fatal(err)
	}
	ds, err := stage.DefaultDrawShader()
	if err != nil {
		t.Fatal(err)
	}
	return cs, ds
}

func newTestCoordinator(t *testing.T) (*gputest.Fake, Coordinator, func()) {
	t.Helper()
	fake := gputest.New()
	device := fake.Device()

	cs, ds := defaultTestShaders(t)
	compute, err := stage.NewComputeStage(device, cs)
	if err != nil {
		t.Fatal(err)
	}
	draw, err := stage.NewDrawStage(device, ds, wgpu.TextureFormatBGRA8Unorm)
	if err != nil {
		t.Fatal(err)
	}
	c := NewCoordinator(compute, draw)
	return fake, c, func() {
		c.Release()
		compute.Release()
		draw.Release()
	}
}

func decodeParams(t *testing.T, data []byte) (seed float32, width, height uint32) {
	t.Helper()
	if len(data) != 16 {
		t.Fatalf("params write is %d bytes, want 16", len(data))
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(data[0:4])),
		binary.LittleEndian.Uint32(data[8:12]),
		binary.LittleEndian.Uint32(data[12:16])
}

func TestCoordinatorUpdate(t *testing.T) {
	fake, c, release := newTestCoordinator(t)
	defer release()
	queue := fake.Device().Queue()

	if !c.Extent().Empty() || c.Rebuilds() != 0 {
		t.Fatalf("new coordinator has extent %s and %d rebuilds", c.Extent(), c.Rebuilds())
	}

	if err := c.Update(queue, 800, 600, 1000); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got, want := c.Extent(), (common.Extent2D{Width: 800, Height: 600}); got != want {
		t.Errorf("Extent() = %s, want %s", got, want)
	}
	writes := fake.Writes()
	if len(writes) != 1 || writes[0].Offset != 0 {
		t.Fatalf("writes = %+v, want one write at offset 0", writes)
	}
	seed, w, h := decodeParams(t, writes[0].Data)
	if seed != 1000 || w != 800 || h != 600 {
		t.Errorf("params = seed %v extent %dx%d, want seed 1000 extent 800x600", seed, w, h)
	}
	if got := c.Params(); got.Seed != 1000 || got.Extent != c.Extent() {
		t.Errorf("Params() = %s", got)
	}

	texs := fake.TextureDescriptors()
	if len(texs) != 1 || texs[0].Size.Width != 800 || texs[0].Size.Height != 600 {
		t.Errorf("framebuffer descriptors = %+v", texs)
	}
	if c.ComputeBindGroup() == nil || c.DrawBindGroup() == nil || c.FramebufferView() == nil {
		t.Error("bind groups or framebuffer view missing after Update")
	}
}

func TestCoordinatorUnchangedSize(t *testing.T) {
	fake, c, release := newTestCoordinator(t)
	defer release()
	queue := fake.Device().Queue()

	if err := c.Update(queue, 64, 64, 1); err != nil {
		t.Fatal(err)
	}
	computeBG, drawBG := c.ComputeBindGroup(), c.DrawBindGroup()
	if err := c.Update(queue, 64, 64, 2); err != nil {
		t.Fatal(err)
	}

	if got := c.Rebuilds(); got != 1 {
		t.Errorf("Rebuilds() = %d, want 1", got)
	}
	if c.ComputeBindGroup() != computeBG || c.DrawBindGroup() != drawBG {
		t.Error("bind groups replaced without a size change")
	}
	writes := fake.Writes()
	if len(writes) != 2 {
		t.Fatalf("got %d writes, want 2", len(writes))
	}
	if seed, _, _ := decodeParams(t, writes[1].Data); seed != 2 {
		t.Errorf("second seed = %v, want 2", seed)
	}
}

func TestCoordinatorResizeReleasesSuperseded(t *testing.T) {
	fake, c, release := newTestCoordinator(t)
	defer release()
	queue := fake.Device().Queue()

	if err := c.Update(queue, 64, 64, 0); err != nil {
		t.Fatal(err)
	}
	oldView := c.FramebufferView().(*gputest.Object)
	oldCompute := c.ComputeBindGroup().(*gputest.Object)
	oldDraw := c.DrawBindGroup().(*gputest.Object)

	if err := c.Update(queue, 128, 32, 0); err != nil {
		t.Fatal(err)
	}
	if got := c.Rebuilds(); got != 2 {
		t.Errorf("Rebuilds() = %d, want 2", got)
	}
	for _, o := range []*gputest.Object{oldView, oldCompute, oldDraw} {
		if !o.Released() {
			t.Errorf("superseded %s was not released", o.Kind)
		}
	}
	tests := []struct {
		kind string
		want int
	}{
		{"Texture", 1},
		{"TextureView", 1},
		{"BindGroup", 2},
	}
	for _, tt := range tests {
		if got := fake.Live(tt.kind); got != tt.want {
			t.Errorf("live %s = %d, want %d", tt.kind, got, tt.want)
		}
	}
	if _, w, h := decodeParams(t, fake.Writes()[1].Data); w != 128 || h != 32 {
		t.Errorf("written extent = %dx%d, want 128x32", w, h)
	}
}

func TestCoordinatorFailedRebuildKeepsPreviousResources(t *testing.T) {
	for _, op := range []string{"CreateTexture", "CreateView", "CreateBindGroup"} {
		t.Run(op, func(t *testing.T) {
			fake, c, release := newTestCoordinator(t)
			defer release()
			queue := fake.Device().Queue()

			if err := c.Update(queue, 64, 64, 0); err != nil {
				t.Fatal(err)
			}
			view, computeBG, drawBG := c.FramebufferView(), c.ComputeBindGroup(), c.DrawBindGroup()
			live := map[string]int{}
			for _, kind := range []string{"Texture", "TextureView", "BindGroup"} {
				live[kind] = fake.Live(kind)
			}

			fake.FailOn(op, errors.New("out of memory"))
			err := c.Update(queue, 256, 256, 1)
			if !errors.Is(err, gpu.ErrResourceCreation) {
				t.Fatalf("Update = %v, want ErrResourceCreation", err)
			}
			if got, want := c.Extent(), (common.Extent2D{Width: 64, Height: 64}); got != want {
				t.Errorf("Extent() = %s after failed rebuild, want %s", got, want)
			}
			if c.FramebufferView() != view || c.ComputeBindGroup() != computeBG || c.DrawBindGroup() != drawBG {
				t.Error("failed rebuild replaced current resources")
			}
			for kind, want := range live {
				if got := fake.Live(kind); got != want {
					t.Errorf("live %s = %d after failed rebuild, want %d", kind, got, want)
				}
			}
			if got := len(fake.Writes()); got != 1 {
				t.Errorf("failed Update wrote parameters: %d writes", got)
			}

			fake.ClearFailures()
			if err := c.Update(queue, 256, 256, 2); err != nil {
				t.Fatalf("retry: %v", err)
			}
			if got, want := c.Extent(), (common.Extent2D{Width: 256, Height: 256}); got != want {
				t.Errorf("Extent() = %s after retry, want %s", got, want)
			}
		})
	}
}

func TestCoordinatorRelease(t *testing.T) {
	fake, c, release := newTestCoordinator(t)
	defer release()

	if err := c.Update(fake.Device().Queue(), 32, 32, 0); err != nil {
		t.Fatal(err)
	}
	c.Release()

	for _, kind := range []string{"Texture", "TextureView", "BindGroup"} {
		if got := fake.Live(kind); got != 0 {
			t.Errorf("live %s = %d after Release, want 0", kind, got)
		}
	}
	if c.ComputeBindGroup() != nil || c.DrawBindGroup() != nil || c.FramebufferView() != nil {
		t.Error("Release left resources installed")
	}
}

func TestCoordinatorWritesExtentInDeclaredType(t *testing.T) {
	const src = `
struct Params {
    seed: f32,
    extent: vec2<f32>,
}
@group(0) @binding(0) var outputImage: texture_storage_2d<rgba16float, write>;
@group(0) @binding(1) var<uniform> params: Params;

@compute @workgroup_size(8, 8)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {}
`
	fake := gputest.New()
	device := fake.Device()
	cs, err := shader.NewShader("float_extent", shader.ShaderTypeCompute, src)
	if err != nil {
		t.Fatal(err)
	}
	_, ds := defaultTestShaders(t)
	compute, err := stage.NewComputeStage(device, cs)
	if err != nil {
		t.Fatalf("NewComputeStage: %v", err)
	}
	defer compute.Release()
	draw, err := stage.NewDrawStage(device, ds, wgpu.TextureFormatBGRA8Unorm)
	if err != nil {
		t.Fatal(err)
	}
	defer draw.Release()
	c := NewCoordinator(compute, draw)
	defer c.Release()

	if err := c.Update(device.Queue(), 800, 600, 5); err != nil {
		t.Fatalf("Update: %v", err)
	}
	writes := fake.Writes()
	if len(writes) != 1 || len(writes[0].Data) != 16 {
		t.Fatalf("writes = %+v", writes)
	}
	w := math.Float32frombits(binary.LittleEndian.Uint32(writes[0].Data[8:12]))
	h := math.Float32frombits(binary.LittleEndian.Uint32(writes[0].Data[12:16]))
	if w != 800 || h != 600 {
		t.Errorf("extent = %vx%v, want 800x600 as f32", w, h)
	}
}
