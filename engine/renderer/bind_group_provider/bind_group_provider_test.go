package bind_group_provider

import (
	"bytes"
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-raysampler/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-raysampler/engine/renderer/gpu/gputest"
	"github.com/cogentcore/webgpu/wgpu"
)

type fixture struct {
	fake    *gputest.Fake
	device  gpu.Device
	layout  gpu.BindGroupLayout
	buffer  gpu.Buffer
	sampler gpu.Sampler
	view    gpu.TextureView
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	fake := gputest.New()
	device := fake.Device()
	layout, err := device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{Label: "layout"})
	if err != nil {
		t.Fatal(err)
	}
	buffer, err := device.CreateBuffer(&wgpu.BufferDescriptor{Label: "params", Size: 16})
	if err != nil {
		t.Fatal(err)
	}
	sampler, err := device.CreateSampler(&wgpu.SamplerDescriptor{Label: "sampler"})
	if err != nil {
		t.Fatal(err)
	}
	tex, err := device.CreateTexture(&wgpu.TextureDescriptor{Label: "fb"})
	if err != nil {
		t.Fatal(err)
	}
	view, err := tex.CreateView()
	if err != nil {
		t.Fatal(err)
	}
	return fixture{fake: fake, device: device, layout: layout, buffer: buffer, sampler: sampler, view: view}
}

func TestEntries(t *testing.T) {
	f := newFixture(t)
	p := NewBindGroupProvider("test",
		WithBindGroupLayout(f.layout),
		WithBuffer(2, f.buffer),
		WithSampler(0, f.sampler),
	)
	p.SetTextureView(1, f.view)

	entries := p.Entries()
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	for i, e := range entries {
		if e.Binding != uint32(i) {
			t.Errorf("entry %d has binding %d", i, e.Binding)
		}
	}
	if entries[0].Sampler != f.sampler || entries[1].TextureView != f.view || entries[2].Buffer != f.buffer {
		t.Errorf("entries = %+v", entries)
	}
	if entries[2].Size != 16 {
		t.Errorf("buffer entry size = %d, want 16", entries[2].Size)
	}

	other, _ := f.device.CreateSampler(&wgpu.SamplerDescriptor{})
	overridden := p.Entries(gpu.BindGroupEntry{Binding: 1, Sampler: other}, gpu.BindGroupEntry{Binding: 5, Sampler: other})
	if len(overridden) != 4 {
		t.Fatalf("got %d entries with overrides, want 4", len(overridden))
	}
	if overridden[1].Sampler != other || overridden[1].TextureView != nil {
		t.Errorf("override at binding 1 not applied: %+v", overridden[1])
	}
	if overridden[3].Binding != 5 {
		t.Errorf("added binding = %d, want 5", overridden[3].Binding)
	}
	if p.TextureView(1) != f.view {
		t.Error("overrides modified the stored view")
	}
}

func TestCreateBindGroup(t *testing.T) {
	f := newFixture(t)
	p := NewBindGroupProvider("compute", WithBindGroupLayout(f.layout), WithBuffer(1, f.buffer))

	bg, err := p.CreateBindGroup(f.device, gpu.BindGroupEntry{Binding: 0, TextureView: f.view})
	if err != nil {
		t.Fatalf("CreateBindGroup: %v", err)
	}
	if p.BindGroup() != nil {
		t.Error("CreateBindGroup replaced the current bind group")
	}
	descs := f.fake.BindGroupDescriptors()
	if len(descs) != 1 || descs[0].Label != "compute" || descs[0].Layout != f.layout || len(descs[0].Entries) != 2 {
		t.Errorf("bind group descriptors = %+v", descs)
	}

	if prev := p.SetBindGroup(bg); prev != nil {
		t.Errorf("SetBindGroup returned %v, want nil", prev)
	}
	bg2, _ := p.CreateBindGroup(f.device, gpu.BindGroupEntry{Binding: 0, TextureView: f.view})
	if prev := p.SetBindGroup(bg2); prev != bg {
		t.Error("SetBindGroup did not return the replaced bind group")
	}
}

func TestCreateBindGroupErrors(t *testing.T) {
	f := newFixture(t)

	noLayout := NewBindGroupProvider("no-layout")
	if _, err := noLayout.CreateBindGroup(f.device); !errors.Is(err, gpu.ErrResourceCreation) {
		t.Errorf("CreateBindGroup without layout = %v, want ErrResourceCreation", err)
	}

	f.fake.FailOn("CreateBindGroup", errors.New("out of memory"))
	p := NewBindGroupProvider("draw", WithBindGroupLayout(f.layout))
	if _, err := p.CreateBindGroup(f.device); !errors.Is(err, gpu.ErrResourceCreation) {
		t.Errorf("CreateBindGroup = %v, want ErrResourceCreation", err)
	}
}

func TestRelease(t *testing.T) {
	f := newFixture(t)
	p := NewBindGroupProvider("draw", WithBindGroupLayout(f.layout), WithSampler(1, f.sampler), WithBuffer(2, f.buffer))
	p.SetTextureView(0, f.view)
	bg, err := p.CreateBindGroup(f.device)
	if err != nil {
		t.Fatal(err)
	}
	p.SetBindGroup(bg)

	p.Release()

	for _, kind := range []string{"BindGroup", "BindGroupLayout", "Sampler", "Buffer"} {
		if f.fake.Live(kind) != 0 {
			t.Errorf("%s not released", kind)
		}
	}
	if f.view.(*gputest.Object).Released() {
		t.Error("borrowed texture view was released")
	}
	if p.BindGroup() != nil || p.BindGroupLayout() != nil || p.Buffer(2) != nil || p.Sampler(1) != nil || p.TextureView(0) != nil {
		t.Error("Release left resources in the provider")
	}
}

func TestBufferWriteApply(t *testing.T) {
	f := newFixture(t)
	p := NewBindGroupProvider("compute", WithBuffer(1, f.buffer))
	queue := f.device.Queue()

	data := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	if err := (BufferWrite{Provider: p, Binding: 1, Data: data}).Apply(queue); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	writes := f.fake.Writes()
	if len(writes) != 1 || writes[0].Offset != 0 || !bytes.Equal(writes[0].Data, data) || writes[0].Buffer != f.buffer {
		t.Errorf("writes = %+v", writes)
	}

	tests := []struct {
		name string
		w    BufferWrite
	}{
		{"missing binding", BufferWrite{Provider: p, Binding: 0, Data: data}},
		{"overflow", BufferWrite{Provider: p, Binding: 1, Offset: 8, Data: data}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.w.Apply(queue); err == nil {
				t.Error("expected an error")
			}
		})
	}
	if got := len(f.fake.Writes()); got != 1 {
		t.Errorf("rejected writes reached the queue: %d writes", got)
	}
}
