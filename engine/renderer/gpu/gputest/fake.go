// Package gputest provides an in-memory recording implementation of the gpu interfaces.
// Every object creation, queue write, pass and submission is recorded in call order so tests
// can assert on the exact sequence of GPU work a frame produces.
package gputest

import (
	"fmt"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-raysampler/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// DefaultMaxTextureDimension2D is the MaxTextureDimension2D reported by a new Fake.
const DefaultMaxTextureDimension2D = 8192

// Object is the fake GPU object. It satisfies every handle interface in package gpu.
type Object struct {
	Kind  string
	Label string
	ID    int

	size     uint64
	released bool
	fake     *Fake
}

// Released reports whether Release has been called on the object.
func (o *Object) Released() bool {
	o.fake.mu.Lock()
	defer o.fake.mu.Unlock()
	return o.released
}

func (o *Object) Size() uint64 {
	return o.size
}

func (o *Object) Release() {
	o.fake.mu.Lock()
	defer o.fake.mu.Unlock()
	o.fake.calls = append(o.fake.calls, "Release "+o.Kind)
	if !o.released {
		o.released = true
		o.fake.released[o.Kind]++
	}
}

func (o *Object) CreateView() (gpu.TextureView, error) {
	if err := o.fake.begin("CreateView"); err != nil {
		return nil, err
	}
	return o.fake.newObject("TextureView", o.Label+" View", 0), nil
}

// Write is one recorded queue write.
type Write struct {
	Buffer *Object
	Offset uint64
	Data   []byte
}

// Pass is one recorded compute or render pass.
type Pass struct {
	Kind        string
	Pipeline    *Object
	BindGroups  map[uint32]*Object
	Dispatches  [][3]uint32
	Draws       [][4]uint32
	Attachments []gpu.RenderPassColorAttachment
	Ended       bool
}

// Fake records GPU work. The zero value is not usable; create one with New.
type Fake struct {
	mu sync.Mutex

	// Configuration, set before use.

	// NoAdapter makes RequestAdapter fail with gpu.ErrNoAdapter.
	NoAdapter bool
	// Limits is returned by Device.Limits.
	Limits wgpu.Limits
	// Formats is reported as the surface capabilities' formats.
	Formats []wgpu.TextureFormat

	failures map[string]error

	calls    []string
	created  map[string]int
	released map[string]int
	nextID   int

	writes         []Write
	passes         []*Pass
	submits        int
	presents       int
	surfaceConfigs []wgpu.SurfaceConfiguration

	textureDescs   []wgpu.TextureDescriptor
	bufferDescs    []wgpu.BufferDescriptor
	samplerDescs   []wgpu.SamplerDescriptor
	moduleDescs    []wgpu.ShaderModuleDescriptor
	layoutDescs    []wgpu.BindGroupLayoutDescriptor
	bindGroupDescs []gpu.BindGroupDescriptor
	computeDescs   []gpu.ComputePipelineDescriptor
	renderDescs    []gpu.RenderPipelineDescriptor
}

// New creates a Fake reporting a BGRA8Unorm surface and default limits.
func New() *Fake {
	limits := wgpu.DefaultLimits()
	limits.MaxTextureDimension2D = DefaultMaxTextureDimension2D
	return &Fake{
		Limits:   limits,
		Formats:  []wgpu.TextureFormat{wgpu.TextureFormatBGRA8Unorm},
		failures: make(map[string]error),
		created:  make(map[string]int),
		released: make(map[string]int),
	}
}

// FailOn makes every subsequent call of op return err until ClearFailures is called.
// op is the method name, e.g. "CreateBindGroup" or "CurrentTexture".
func (f *Fake) FailOn(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[op] = err
}

// ClearFailures removes every failure registered with FailOn.
func (f *Fake) ClearFailures() {
	f.mu.Lock()
	defer f.mu.Unlock()
	clear(f.failures)
}

// Instance returns a gpu.Instance backed by the fake.
func (f *Fake) Instance() gpu.Instance {
	return &instance{fake: f}
}

// Device returns a gpu.Device backed by the fake without going through adapter selection.
func (f *Fake) Device() gpu.Device {
	return &device{fake: f}
}

// Calls returns the recorded call log.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// CallIndex returns the index of the first recorded call named op at or after from, or -1.
func (f *Fake) CallIndex(op string, from int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := max(from, 0); i < len(f.calls); i++ {
		if f.calls[i] == op {
			return i
		}
	}
	return -1
}

// CallCount returns how many times op was recorded.
func (f *Fake) CallCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == op {
			n++
		}
	}
	return n
}

// Created returns how many objects of kind were created.
func (f *Fake) Created(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created[kind]
}

// Released returns how many objects of kind were released.
func (f *Fake) Released(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.released[kind]
}

// Live returns how many objects of kind were created and not yet released.
func (f *Fake) Live(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created[kind] - f.released[kind]
}

// Writes returns the recorded queue writes.
func (f *Fake) Writes() []Write {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.writes)
}

// Passes returns the recorded passes in encoding order.
func (f *Fake) Passes() []*Pass {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.passes)
}

// Submits returns the number of Submit calls.
func (f *Fake) Submits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submits
}

// Presents returns the number of Present calls.
func (f *Fake) Presents() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.presents
}

// SurfaceConfigs returns every configuration passed to Surface.Configure.
func (f *Fake) SurfaceConfigs() []wgpu.SurfaceConfiguration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.surfaceConfigs)
}

// TextureDescriptors returns every texture descriptor passed to CreateTexture.
func (f *Fake) TextureDescriptors() []wgpu.TextureDescriptor {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.textureDescs)
}

// BufferDescriptors returns every buffer descriptor passed to CreateBuffer.
func (f *Fake) BufferDescriptors() []wgpu.BufferDescriptor {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.bufferDescs)
}

// SamplerDescriptors returns every sampler descriptor passed to CreateSampler.
func (f *Fake) SamplerDescriptors() []wgpu.SamplerDescriptor {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.samplerDescs)
}

// ShaderModuleDescriptors returns every descriptor passed to CreateShaderModule.
func (f *Fake) ShaderModuleDescriptors() []wgpu.ShaderModuleDescriptor {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.moduleDescs)
}

// BindGroupLayoutDescriptors returns every descriptor passed to CreateBindGroupLayout.
func (f *Fake) BindGroupLayoutDescriptors() []wgpu.BindGroupLayoutDescriptor {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.layoutDescs)
}

// BindGroupDescriptors returns every descriptor passed to CreateBindGroup.
func (f *Fake) BindGroupDescriptors() []gpu.BindGroupDescriptor {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.bindGroupDescs)
}

// ComputePipelineDescriptors returns every descriptor passed to CreateComputePipeline.
func (f *Fake) ComputePipelineDescriptors() []gpu.ComputePipelineDescriptor {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.computeDescs)
}

// RenderPipelineDescriptors returns every descriptor passed to CreateRenderPipeline.
func (f *Fake) RenderPipelineDescriptors() []gpu.RenderPipelineDescriptor {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.renderDescs)
}

// begin records op and returns its registered failure, if any.
func (f *Fake) begin(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op)
	if err := f.failures[op]; err != nil {
		return fmt.Errorf("gputest: %s: %w", op, err)
	}
	return nil
}

func (f *Fake) record(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op)
}

func (f *Fake) newObject(kind, label string, size uint64) *Object {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.created[kind]++
	return &Object{Kind: kind, Label: label, ID: f.nextID, size: size, fake: f}
}

type instance struct{ fake *Fake }

func (i *instance) RequestAdapter(opts *gpu.AdapterOptions) (gpu.Adapter, error) {
	if err := i.fake.begin("RequestAdapter"); err != nil {
		return nil, err
	}
	if i.fake.NoAdapter {
		return nil, gpu.ErrNoAdapter
	}
	return &adapter{fake: i.fake}, nil
}

func (i *instance) CreateSurface(desc *wgpu.SurfaceDescriptor) (gpu.Surface, error) {
	if err := i.fake.begin("CreateSurface"); err != nil {
		return nil, err
	}
	if desc == nil {
		return nil, gpu.ErrNoSurfaceContext
	}
	return &surface{Object: i.fake.newObject("Surface", desc.Label, 0)}, nil
}

func (i *instance) Release() {
	i.fake.record("Release Instance")
}

type adapter struct{ fake *Fake }

func (a *adapter) Info() gpu.AdapterInfo {
	return gpu.AdapterInfo{Name: "gputest", Backend: "fake"}
}

func (a *adapter) RequestDevice(desc *wgpu.DeviceDescriptor) (gpu.Device, error) {
	if err := a.fake.begin("RequestDevice"); err != nil {
		return nil, err
	}
	a.fake.newObject("Device", "", 0)
	return &device{fake: a.fake}, nil
}

func (a *adapter) Release() {
	a.fake.record("Release Adapter")
}

type surface struct {
	*Object
}

func (s *surface) Capabilities(gpu.Adapter) wgpu.SurfaceCapabilities {
	s.fake.mu.Lock()
	defer s.fake.mu.Unlock()
	return wgpu.SurfaceCapabilities{
		Formats:    slices.Clone(s.fake.Formats),
		AlphaModes: []wgpu.CompositeAlphaMode{wgpu.CompositeAlphaModeOpaque},
	}
}

func (s *surface) Configure(_ gpu.Adapter, _ gpu.Device, config *wgpu.SurfaceConfiguration) error {
	if err := s.fake.begin("Configure"); err != nil {
		return err
	}
	s.fake.mu.Lock()
	defer s.fake.mu.Unlock()
	s.fake.surfaceConfigs = append(s.fake.surfaceConfigs, *config)
	return nil
}

func (s *surface) CurrentTexture() (gpu.Texture, error) {
	if err := s.fake.begin("CurrentTexture"); err != nil {
		return nil, fmt.Errorf("%w: %v", gpu.ErrSurfaceTexture, err)
	}
	return s.fake.newObject("SurfaceTexture", "surface", 0), nil
}

func (s *surface) Present() {
	s.fake.record("Present")
	s.fake.mu.Lock()
	defer s.fake.mu.Unlock()
	s.fake.presents++
}

type device struct{ fake *Fake }

func (d *device) Limits() wgpu.Limits {
	d.fake.mu.Lock()
	defer d.fake.mu.Unlock()
	return d.fake.Limits
}

func (d *device) Queue() gpu.Queue {
	return &queue{fake: d.fake}
}

func (d *device) CreateTexture(desc *wgpu.TextureDescriptor) (gpu.Texture, error) {
	if err := d.fake.begin("CreateTexture"); err != nil {
		return nil, err
	}
	d.fake.mu.Lock()
	d.fake.textureDescs = append(d.fake.textureDescs, *desc)
	d.fake.mu.Unlock()
	return d.fake.newObject("Texture", desc.Label, 0), nil
}

func (d *device) CreateBuffer(desc *wgpu.BufferDescriptor) (gpu.Buffer, error) {
	if err := d.fake.begin("CreateBuffer"); err != nil {
		return nil, err
	}
	d.fake.mu.Lock()
	d.fake.bufferDescs = append(d.fake.bufferDescs, *desc)
	d.fake.mu.Unlock()
	return d.fake.newObject("Buffer", desc.Label, desc.Size), nil
}

func (d *device) CreateSampler(desc *wgpu.SamplerDescriptor) (gpu.Sampler, error) {
	if err := d.fake.begin("CreateSampler"); err != nil {
		return nil, err
	}
	d.fake.mu.Lock()
	d.fake.samplerDescs = append(d.fake.samplerDescs, *desc)
	d.fake.mu.Unlock()
	return d.fake.newObject("Sampler", desc.Label, 0), nil
}

func (d *device) CreateShaderModule(desc *wgpu.ShaderModuleDescriptor) (gpu.ShaderModule, error) {
	if err := d.fake.begin("CreateShaderModule"); err != nil {
		return nil, err
	}
	d.fake.mu.Lock()
	d.fake.moduleDescs = append(d.fake.moduleDescs, *desc)
	d.fake.mu.Unlock()
	return d.fake.newObject("ShaderModule", desc.Label, 0), nil
}

func (d *device) CreateBindGroupLayout(desc *wgpu.BindGroupLayoutDescriptor) (gpu.BindGroupLayout, error) {
	if err := d.fake.begin("CreateBindGroupLayout"); err != nil {
		return nil, err
	}
	d.fake.mu.Lock()
	d.fake.layoutDescs = append(d.fake.layoutDescs, *desc)
	d.fake.mu.Unlock()
	return d.fake.newObject("BindGroupLayout", desc.Label, 0), nil
}

func (d *device) CreateBindGroup(desc *gpu.BindGroupDescriptor) (gpu.BindGroup, error) {
	if err := d.fake.begin("CreateBindGroup"); err != nil {
		return nil, err
	}
	for _, e := range desc.Entries {
		for _, r := range []gpu.Releaser{e.Buffer, e.Sampler, e.TextureView} {
			if o, ok := r.(*Object); ok && o.Released() {
				return nil, fmt.Errorf("gputest: bind group %q references released %s", desc.Label, o.Kind)
			}
		}
	}
	d.fake.mu.Lock()
	d.fake.bindGroupDescs = append(d.fake.bindGroupDescs, *desc)
	d.fake.mu.Unlock()
	return d.fake.newObject("BindGroup", desc.Label, 0), nil
}

func (d *device) CreatePipelineLayout(desc *gpu.PipelineLayoutDescriptor) (gpu.PipelineLayout, error) {
	if err := d.fake.begin("CreatePipelineLayout"); err != nil {
		return nil, err
	}
	return d.fake.newObject("PipelineLayout", desc.Label, 0), nil
}

func (d *device) CreateComputePipeline(desc *gpu.ComputePipelineDescriptor) (gpu.ComputePipeline, error) {
	if err := d.fake.begin("CreateComputePipeline"); err != nil {
		return nil, err
	}
	d.fake.mu.Lock()
	d.fake.computeDescs = append(d.fake.computeDescs, *desc)
	d.fake.mu.Unlock()
	return d.fake.newObject("ComputePipeline", desc.Label, 0), nil
}

func (d *device) CreateRenderPipeline(desc *gpu.RenderPipelineDescriptor) (gpu.RenderPipeline, error) {
	if err := d.fake.begin("CreateRenderPipeline"); err != nil {
		return nil, err
	}
	d.fake.mu.Lock()
	d.fake.renderDescs = append(d.fake.renderDescs, *desc)
	d.fake.mu.Unlock()
	return d.fake.newObject("RenderPipeline", desc.Label, 0), nil
}

func (d *device) CreateCommandEncoder(label string) (gpu.CommandEncoder, error) {
	if err := d.fake.begin("CreateCommandEncoder"); err != nil {
		return nil, err
	}
	return &encoder{Object: d.fake.newObject("CommandEncoder", label, 0)}, nil
}

func (d *device) Release() {
	d.fake.record("Release Device")
	d.fake.mu.Lock()
	defer d.fake.mu.Unlock()
	d.fake.released["Device"]++
}

type queue struct{ fake *Fake }

func (q *queue) WriteBuffer(buf gpu.Buffer, offset uint64, data []byte) error {
	if err := q.fake.begin("WriteBuffer"); err != nil {
		return err
	}
	o, ok := buf.(*Object)
	if !ok {
		return fmt.Errorf("gputest: foreign buffer %T", buf)
	}
	if o.Released() {
		return fmt.Errorf("gputest: write to released buffer %q", o.Label)
	}
	if offset+uint64(len(data)) > o.size {
		return fmt.Errorf("gputest: write of %d bytes at %d overflows %d byte buffer", len(data), offset, o.size)
	}
	q.fake.mu.Lock()
	defer q.fake.mu.Unlock()
	q.fake.writes = append(q.fake.writes, Write{Buffer: o, Offset: offset, Data: slices.Clone(data)})
	return nil
}

func (q *queue) Submit(cmds ...gpu.CommandBuffer) {
	q.fake.record("Submit")
	q.fake.mu.Lock()
	defer q.fake.mu.Unlock()
	q.fake.submits++
}

type encoder struct {
	*Object
}

func (e *encoder) BeginComputePass() gpu.ComputePassEncoder {
	e.fake.record("BeginComputePass")
	p := &Pass{Kind: "compute", BindGroups: make(map[uint32]*Object)}
	e.fake.mu.Lock()
	e.fake.passes = append(e.fake.passes, p)
	e.fake.mu.Unlock()
	return &computePass{Object: e.fake.newObject("ComputePass", "", 0), pass: p}
}

func (e *encoder) BeginRenderPass(desc *gpu.RenderPassDescriptor) gpu.RenderPassEncoder {
	e.fake.record("BeginRenderPass")
	p := &Pass{
		Kind:        "render",
		BindGroups:  make(map[uint32]*Object),
		Attachments: slices.Clone(desc.ColorAttachments),
	}
	e.fake.mu.Lock()
	e.fake.passes = append(e.fake.passes, p)
	e.fake.mu.Unlock()
	return &renderPass{Object: e.fake.newObject("RenderPass", desc.Label, 0), pass: p}
}

func (e *encoder) Finish() (gpu.CommandBuffer, error) {
	if err := e.fake.begin("Finish"); err != nil {
		return nil, err
	}
	return e.fake.newObject("CommandBuffer", e.Label, 0), nil
}

type computePass struct {
	*Object
	pass *Pass
}

func (p *computePass) SetPipeline(cp gpu.ComputePipeline) {
	p.fake.record("SetComputePipeline")
	o, _ := cp.(*Object)
	p.fake.mu.Lock()
	defer p.fake.mu.Unlock()
	p.pass.Pipeline = o
}

func (p *computePass) SetBindGroup(index uint32, bg gpu.BindGroup) {
	p.fake.record("SetBindGroup")
	o, _ := bg.(*Object)
	p.fake.mu.Lock()
	defer p.fake.mu.Unlock()
	p.pass.BindGroups[index] = o
}

func (p *computePass) DispatchWorkgroups(x, y, z uint32) {
	p.fake.record("DispatchWorkgroups")
	p.fake.mu.Lock()
	defer p.fake.mu.Unlock()
	p.pass.Dispatches = append(p.pass.Dispatches, [3]uint32{x, y, z})
}

func (p *computePass) End() error {
	if err := p.fake.begin("EndComputePass"); err != nil {
		return err
	}
	p.fake.mu.Lock()
	defer p.fake.mu.Unlock()
	p.pass.Ended = true
	return nil
}

type renderPass struct {
	*Object
	pass *Pass
}

func (p *renderPass) SetPipeline(rp gpu.RenderPipeline) {
	p.fake.record("SetRenderPipeline")
	o, _ := rp.(*Object)
	p.fake.mu.Lock()
	defer p.fake.mu.Unlock()
	p.pass.Pipeline = o
}

func (p *renderPass) SetBindGroup(index uint32, bg gpu.BindGroup) {
	p.fake.record("SetBindGroup")
	o, _ := bg.(*Object)
	p.fake.mu.Lock()
	defer p.fake.mu.Unlock()
	p.pass.BindGroups[index] = o
}

func (p *renderPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	p.fake.record("Draw")
	p.fake.mu.Lock()
	defer p.fake.mu.Unlock()
	p.pass.Draws = append(p.pass.Draws, [4]uint32{vertexCount, instanceCount, firstVertex, firstInstance})
}

func (p *renderPass) End() error {
	if err := p.fake.begin("EndRenderPass"); err != nil {
		return err
	}
	p.fake.mu.Lock()
	defer p.fake.mu.Unlock()
	p.pass.Ended = true
	return nil
}

var (
	_ gpu.Instance           = &instance{}
	_ gpu.Adapter            = &adapter{}
	_ gpu.Device             = &device{}
	_ gpu.Queue              = &queue{}
	_ gpu.Surface            = &surface{}
	_ gpu.Texture            = &Object{}
	_ gpu.Buffer             = &Object{}
	_ gpu.CommandEncoder     = &encoder{}
	_ gpu.ComputePassEncoder = &computePass{}
	_ gpu.RenderPassEncoder  = &renderPass{}
)
