package gpu

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
)

// errForeignObject is returned when an object created by another implementation is passed in.
var errForeignObject = errors.New("gpu: object does not belong to the wgpu implementation")

type wgpuInstance struct {
	instance *wgpu.Instance
}

type wgpuAdapter struct {
	adapter *wgpu.Adapter
}

type wgpuDevice struct {
	device *wgpu.Device
	queue  *wgpuQueue
}

type wgpuQueue struct {
	queue *wgpu.Queue
}

type wgpuSurface struct {
	surface *wgpu.Surface
}

type wgpuTexture struct{ texture *wgpu.Texture }
type wgpuTextureView struct{ view *wgpu.TextureView }
type wgpuSampler struct{ sampler *wgpu.Sampler }
type wgpuShaderModule struct{ module *wgpu.ShaderModule }
type wgpuBindGroupLayout struct{ layout *wgpu.BindGroupLayout }
type wgpuBindGroup struct{ group *wgpu.BindGroup }
type wgpuPipelineLayout struct{ layout *wgpu.PipelineLayout }
type wgpuComputePipeline struct{ pipeline *wgpu.ComputePipeline }
type wgpuRenderPipeline struct{ pipeline *wgpu.RenderPipeline }
type wgpuCommandBuffer struct{ buffer *wgpu.CommandBuffer }

type wgpuBuffer struct {
	buffer *wgpu.Buffer
	size   uint64
}

type wgpuCommandEncoder struct {
	encoder *wgpu.CommandEncoder
	label   string
}

type wgpuComputePass struct{ pass *wgpu.ComputePassEncoder }
type wgpuRenderPass struct{ pass *wgpu.RenderPassEncoder }

var (
	_ Instance           = &wgpuInstance{}
	_ Adapter            = &wgpuAdapter{}
	_ Device             = &wgpuDevice{}
	_ Queue              = &wgpuQueue{}
	_ Surface            = &wgpuSurface{}
	_ Texture            = &wgpuTexture{}
	_ Buffer             = &wgpuBuffer{}
	_ CommandEncoder     = &wgpuCommandEncoder{}
	_ ComputePassEncoder = &wgpuComputePass{}
	_ RenderPassEncoder  = &wgpuRenderPass{}
)

// NewInstance creates the WebGPU instance backed by wgpu-native. The calling goroutine is locked
// to its OS thread because the surface is created from a GLFW window, and GLFW must stay on the
// main thread. Device and queue calls are thread-safe and may come from other goroutines.
//
// Returns:
//   - Instance: the created instance
func NewInstance() Instance {
	runtime.LockOSThread()
	return &wgpuInstance{instance: wgpu.CreateInstance(nil)}
}

func (i *wgpuInstance) RequestAdapter(opts *AdapterOptions) (Adapter, error) {
	if opts == nil {
		opts = &AdapterOptions{}
	}
	a, err := i.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: opts.ForceFallbackAdapter,
		PowerPreference:      opts.PowerPreference,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoAdapter, err)
	}
	if a == nil {
		return nil, ErrNoAdapter
	}
	return &wgpuAdapter{adapter: a}, nil
}

func (i *wgpuInstance) CreateSurface(desc *wgpu.SurfaceDescriptor) (Surface, error) {
	if desc == nil {
		return nil, fmt.Errorf("%w: nil surface descriptor", ErrNoSurfaceContext)
	}
	s := i.instance.CreateSurface(desc)
	if s == nil {
		return nil, ErrNoSurfaceContext
	}
	return &wgpuSurface{surface: s}, nil
}

func (i *wgpuInstance) Release() {
	i.instance.Release()
}

func (a *wgpuAdapter) Info() AdapterInfo {
	info := a.adapter.GetInfo()
	return AdapterInfo{
		Name:    info.Name,
		Backend: fmt.Sprint(info.BackendType),
	}
}

func (a *wgpuAdapter) RequestDevice(desc *wgpu.DeviceDescriptor) (Device, error) {
	d, err := a.adapter.RequestDevice(desc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoDevice, err)
	}
	return &wgpuDevice{device: d, queue: &wgpuQueue{queue: d.GetQueue()}}, nil
}

func (a *wgpuAdapter) Release() {
	a.adapter.Release()
}

func (s *wgpuSurface) Capabilities(adapter Adapter) wgpu.SurfaceCapabilities {
	wa, ok := adapter.(*wgpuAdapter)
	if !ok {
		return wgpu.SurfaceCapabilities{}
	}
	return s.surface.GetCapabilities(wa.adapter)
}

func (s *wgpuSurface) Configure(adapter Adapter, device Device, config *wgpu.SurfaceConfiguration) error {
	wa, ok := adapter.(*wgpuAdapter)
	if !ok {
		return errForeignObject
	}
	wd, ok := device.(*wgpuDevice)
	if !ok {
		return errForeignObject
	}
	s.surface.Configure(wa.adapter, wd.device, config)
	return nil
}

func (s *wgpuSurface) CurrentTexture() (Texture, error) {
	t, err := s.surface.GetCurrentTexture()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSurfaceTexture, err)
	}
	return &wgpuTexture{texture: t}, nil
}

func (s *wgpuSurface) Present() {
	s.surface.Present()
}

func (s *wgpuSurface) Release() {
	s.surface.Release()
}

func (d *wgpuDevice) Limits() wgpu.Limits {
	return d.device.GetLimits().Limits
}

func (d *wgpuDevice) Queue() Queue {
	return d.queue
}

func (d *wgpuDevice) CreateTexture(desc *wgpu.TextureDescriptor) (Texture, error) {
	t, err := d.device.CreateTexture(desc)
	if err != nil {
		return nil, err
	}
	return &wgpuTexture{texture: t}, nil
}

func (d *wgpuDevice) CreateBuffer(desc *wgpu.BufferDescriptor) (Buffer, error) {
	b, err := d.device.CreateBuffer(desc)
	if err != nil {
		return nil, err
	}
	return &wgpuBuffer{buffer: b, size: desc.Size}, nil
}

func (d *wgpuDevice) CreateSampler(desc *wgpu.SamplerDescriptor) (Sampler, error) {
	s, err := d.device.CreateSampler(desc)
	if err != nil {
		return nil, err
	}
	return &wgpuSampler{sampler: s}, nil
}

func (d *wgpuDevice) CreateShaderModule(desc *wgpu.ShaderModuleDescriptor) (ShaderModule, error) {
	m, err := d.device.CreateShaderModule(desc)
	if err != nil {
		return nil, err
	}
	return &wgpuShaderModule{module: m}, nil
}

func (d *wgpuDevice) CreateBindGroupLayout(desc *wgpu.BindGroupLayoutDescriptor) (BindGroupLayout, error) {
	l, err := d.device.CreateBindGroupLayout(desc)
	if err != nil {
		return nil, err
	}
	return &wgpuBindGroupLayout{layout: l}, nil
}

func (d *wgpuDevice) CreateBindGroup(desc *BindGroupDescriptor) (BindGroup, error) {
	layout, ok := desc.Layout.(*wgpuBindGroupLayout)
	if !ok {
		return nil, errForeignObject
	}
	entries := make([]wgpu.BindGroupEntry, len(desc.Entries))
	for i, e := range desc.Entries {
		entry := wgpu.BindGroupEntry{Binding: e.Binding}
		switch {
		case e.Buffer != nil:
			buf, ok := e.Buffer.(*wgpuBuffer)
			if !ok {
				return nil, errForeignObject
			}
			entry.Buffer = buf.buffer
			entry.Offset = e.Offset
			entry.Size = e.Size
		case e.Sampler != nil:
			s, ok := e.Sampler.(*wgpuSampler)
			if !ok {
				return nil, errForeignObject
			}
			entry.Sampler = s.sampler
		case e.TextureView != nil:
			v, ok := e.TextureView.(*wgpuTextureView)
			if !ok {
				return nil, errForeignObject
			}
			entry.TextureView = v.view
		default:
			return nil, fmt.Errorf("bind group entry %d binds no resource", e.Binding)
		}
		entries[i] = entry
	}
	g, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   desc.Label,
		Layout:  layout.layout,
		Entries: entries,
	})
	if err != nil {
		return nil, err
	}
	return &wgpuBindGroup{group: g}, nil
}

func (d *wgpuDevice) CreatePipelineLayout(desc *PipelineLayoutDescriptor) (PipelineLayout, error) {
	layouts := make([]*wgpu.BindGroupLayout, len(desc.BindGroupLayouts))
	for i, l := range desc.BindGroupLayouts {
		wl, ok := l.(*wgpuBindGroupLayout)
		if !ok {
			return nil, errForeignObject
		}
		layouts[i] = wl.layout
	}
	pl, err := d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            desc.Label,
		BindGroupLayouts: layouts,
	})
	if err != nil {
		return nil, err
	}
	return &wgpuPipelineLayout{layout: pl}, nil
}

func (d *wgpuDevice) CreateComputePipeline(desc *ComputePipelineDescriptor) (ComputePipeline, error) {
	layout, ok := desc.Layout.(*wgpuPipelineLayout)
	if !ok {
		return nil, errForeignObject
	}
	module, ok := desc.Module.(*wgpuShaderModule)
	if !ok {
		return nil, errForeignObject
	}
	p, err := d.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  desc.Label,
		Layout: layout.layout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module.module,
			EntryPoint: desc.EntryPoint,
		},
	})
	if err != nil {
		return nil, err
	}
	return &wgpuComputePipeline{pipeline: p}, nil
}

func (d *wgpuDevice) CreateRenderPipeline(desc *RenderPipelineDescriptor) (RenderPipeline, error) {
	layout, ok := desc.Layout.(*wgpuPipelineLayout)
	if !ok {
		return nil, errForeignObject
	}
	vs, ok := desc.VertexModule.(*wgpuShaderModule)
	if !ok {
		return nil, errForeignObject
	}
	fs, ok := desc.FragmentModule.(*wgpuShaderModule)
	if !ok {
		return nil, errForeignObject
	}
	p, err := d.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: layout.layout,
		Vertex: wgpu.VertexState{
			Module:     vs.module,
			EntryPoint: desc.VertexEntryPoint,
		},
		Fragment: &wgpu.FragmentState{
			Module:     fs.module,
			EntryPoint: desc.FragmentEntryPoint,
			Targets:    desc.Targets,
		},
		Primitive:   desc.Primitive,
		Multisample: desc.Multisample,
	})
	if err != nil {
		return nil, err
	}
	return &wgpuRenderPipeline{pipeline: p}, nil
}

func (d *wgpuDevice) CreateCommandEncoder(label string) (CommandEncoder, error) {
	e, err := d.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, err
	}
	return &wgpuCommandEncoder{encoder: e, label: label}, nil
}

func (d *wgpuDevice) Release() {
	d.device.Release()
}

func (q *wgpuQueue) WriteBuffer(buf Buffer, offset uint64, data []byte) error {
	wb, ok := buf.(*wgpuBuffer)
	if !ok {
		return errForeignObject
	}
	q.queue.WriteBuffer(wb.buffer, offset, data)
	return nil
}

func (q *wgpuQueue) Submit(cmds ...CommandBuffer) {
	buffers := make([]*wgpu.CommandBuffer, 0, len(cmds))
	for _, c := range cmds {
		if wc, ok := c.(*wgpuCommandBuffer); ok {
			buffers = append(buffers, wc.buffer)
		}
	}
	q.queue.Submit(buffers...)
}

func (e *wgpuCommandEncoder) BeginComputePass() ComputePassEncoder {
	return &wgpuComputePass{pass: e.encoder.BeginComputePass(nil)}
}

func (e *wgpuCommandEncoder) BeginRenderPass(desc *RenderPassDescriptor) RenderPassEncoder {
	attachments := make([]wgpu.RenderPassColorAttachment, len(desc.ColorAttachments))
	for i, a := range desc.ColorAttachments {
		var view *wgpu.TextureView
		if v, ok := a.View.(*wgpuTextureView); ok {
			view = v.view
		}
		attachments[i] = wgpu.RenderPassColorAttachment{
			View:       view,
			LoadOp:     a.LoadOp,
			StoreOp:    a.StoreOp,
			ClearValue: a.ClearValue,
		}
	}
	return &wgpuRenderPass{pass: e.encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label:            desc.Label,
		ColorAttachments: attachments,
	})}
}

func (e *wgpuCommandEncoder) Finish() (CommandBuffer, error) {
	b, err := e.encoder.Finish(&wgpu.CommandBufferDescriptor{Label: e.label})
	if err != nil {
		return nil, err
	}
	return &wgpuCommandBuffer{buffer: b}, nil
}

func (e *wgpuCommandEncoder) Release() {
	e.encoder.Release()
}

func (p *wgpuComputePass) SetPipeline(cp ComputePipeline) {
	if wp, ok := cp.(*wgpuComputePipeline); ok {
		p.pass.SetPipeline(wp.pipeline)
	}
}

func (p *wgpuComputePass) SetBindGroup(index uint32, bg BindGroup) {
	if wg, ok := bg.(*wgpuBindGroup); ok {
		p.pass.SetBindGroup(index, wg.group, nil)
	}
}

func (p *wgpuComputePass) DispatchWorkgroups(x, y, z uint32) {
	p.pass.DispatchWorkgroups(x, y, z)
}

func (p *wgpuComputePass) End() error {
	return p.pass.End()
}

func (p *wgpuComputePass) Release() {
	p.pass.Release()
}

func (p *wgpuRenderPass) SetPipeline(rp RenderPipeline) {
	if wp, ok := rp.(*wgpuRenderPipeline); ok {
		p.pass.SetPipeline(wp.pipeline)
	}
}

func (p *wgpuRenderPass) SetBindGroup(index uint32, bg BindGroup) {
	if wg, ok := bg.(*wgpuBindGroup); ok {
		p.pass.SetBindGroup(index, wg.group, nil)
	}
}

func (p *wgpuRenderPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	p.pass.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
}

func (p *wgpuRenderPass) End() error {
	return p.pass.End()
}

func (p *wgpuRenderPass) Release() {
	p.pass.Release()
}

func (t *wgpuTexture) CreateView() (TextureView, error) {
	v, err := t.texture.CreateView(nil)
	if err != nil {
		return nil, err
	}
	return &wgpuTextureView{view: v}, nil
}

func (t *wgpuTexture) Release()         { t.texture.Release() }
func (v *wgpuTextureView) Release()     { v.view.Release() }
func (b *wgpuBuffer) Size() uint64      { return b.size }
func (b *wgpuBuffer) Release()          { b.buffer.Release() }
func (s *wgpuSampler) Release()         { s.sampler.Release() }
func (m *wgpuShaderModule) Release()    { m.module.Release() }
func (l *wgpuBindGroupLayout) Release() { l.layout.Release() }
func (g *wgpuBindGroup) Release()       { g.group.Release() }
func (l *wgpuPipelineLayout) Release()  { l.layout.Release() }
func (p *wgpuComputePipeline) Release() { p.pipeline.Release() }
func (p *wgpuRenderPipeline) Release()  { p.pipeline.Release() }
func (c *wgpuCommandBuffer) Release()   { c.buffer.Release() }
