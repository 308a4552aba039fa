package bind_group_provider

import (
	"fmt"
	"maps"
	"slices"

	"github.com/Carmen-Shannon/oxy-raysampler/engine/renderer/gpu"
)

// bindGroupProvider is the unexported implementation of BindGroupProvider.
type bindGroupProvider struct {
	// label is a debug label added for convenience.
	label string

	bindGroup       gpu.BindGroup
	bindGroupLayout gpu.BindGroupLayout

	// buffers and samplers are owned and released by the provider.
	buffers  map[int]gpu.Buffer
	samplers map[int]gpu.Sampler

	// textureViews are borrowed; their owner releases them.
	textureViews map[int]gpu.TextureView
}

// BindGroupProvider holds the resources of one bind group keyed by binding index, together with
// the layout they are bound against and the bind group currently built from them.
//
// Usage pattern:
//  1. A stage creates the provider with its layout and the resources it owns (buffers, samplers)
//  2. The owner of a recreatable resource (the framebuffer view) passes it as an override to
//     CreateBindGroup, which builds a new bind group without touching the current one
//  3. Once every replacement has been built, the owner commits it with SetTextureView and
//     SetBindGroup and releases what was superseded
type BindGroupProvider interface {
	// Release releases the bind group, the layout and every owned buffer and sampler.
	// Borrowed texture views are dropped without being released.
	Release()

	// Label returns the debug label for this provider.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// BindGroup returns the current bind group, nil until one is set.
	//
	// Returns:
	//   - gpu.BindGroup: the bind group or nil
	BindGroup() gpu.BindGroup

	// BindGroupLayout returns the layout the provider's bind groups are created against.
	//
	// Returns:
	//   - gpu.BindGroupLayout: the bind group layout or nil
	BindGroupLayout() gpu.BindGroupLayout

	// Buffer returns the buffer at a binding, nil if not set.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - gpu.Buffer: the buffer or nil
	Buffer(binding int) gpu.Buffer

	// TextureView returns the texture view at a binding, nil if not set.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - gpu.TextureView: the texture view or nil
	TextureView(binding int) gpu.TextureView

	// Sampler returns the sampler at a binding, nil if not set.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - gpu.Sampler: the sampler or nil
	Sampler(binding int) gpu.Sampler

	// SetBindGroup replaces the current bind group. The previous one is returned, not released,
	// so the caller can release it after the swap is complete.
	//
	// Parameters:
	//   - bg: the new bind group
	//
	// Returns:
	//   - gpu.BindGroup: the replaced bind group, nil if there was none
	SetBindGroup(bg gpu.BindGroup) gpu.BindGroup

	// SetBindGroupLayout sets the layout bind groups are created against.
	//
	// Parameters:
	//   - bgl: the bind group layout, owned by the provider from now on
	SetBindGroupLayout(bgl gpu.BindGroupLayout)

	// SetBuffer stores an owned buffer at a binding.
	SetBuffer(binding int, buf gpu.Buffer)

	// SetSampler stores an owned sampler at a binding.
	SetSampler(binding int, s gpu.Sampler)

	// SetTextureView stores a borrowed texture view at a binding.
	SetTextureView(binding int, tv gpu.TextureView)

	// Entries returns one bind group entry per populated binding, ordered by binding index.
	// Overrides replace the stored resource at their binding or add a new binding.
	//
	// Parameters:
	//   - overrides: entries taking precedence over the stored resources
	//
	// Returns:
	//   - []gpu.BindGroupEntry: the entries in binding order
	Entries(overrides ...gpu.BindGroupEntry) []gpu.BindGroupEntry

	// CreateBindGroup creates a bind group from Entries(overrides...) against the provider's
	// layout. The current bind group is not replaced.
	//
	// Parameters:
	//   - device: the device to create the bind group on
	//   - overrides: entries taking precedence over the stored resources
	//
	// Returns:
	//   - gpu.BindGroup: the new bind group
	//   - error: an error wrapping gpu.ErrResourceCreation on failure
	CreateBindGroup(device gpu.Device, overrides ...gpu.BindGroupEntry) (gpu.BindGroup, error)
}

// Compile-time check that bindGroupProvider implements BindGroupProvider
var _ BindGroupProvider = &bindGroupProvider{}

// NewBindGroupProvider creates a new BindGroupProvider with the provided options.
//
// Parameters:
//   - label: the debug label used for the provider and the bind groups it creates
//   - options: a variadic list of options to configure the provider
//
// Returns:
//   - BindGroupProvider: a new instance of BindGroupProvider configured with the provided options
func NewBindGroupProvider(label string, options ...BindGroupProviderOption) BindGroupProvider {
	p := &bindGroupProvider{
		label:        label,
		buffers:      make(map[int]gpu.Buffer),
		textureViews: make(map[int]gpu.TextureView),
		samplers:     make(map[int]gpu.Sampler),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *bindGroupProvider) Label() string {
	return p.label
}

func (p *bindGroupProvider) BindGroup() gpu.BindGroup {
	return p.bindGroup
}

func (p *bindGroupProvider) BindGroupLayout() gpu.BindGroupLayout {
	return p.bindGroupLayout
}

func (p *bindGroupProvider) Buffer(binding int) gpu.Buffer {
	return p.buffers[binding]
}

func (p *bindGroupProvider) TextureView(binding int) gpu.TextureView {
	return p.textureViews[binding]
}

func (p *bindGroupProvider) Sampler(binding int) gpu.Sampler {
	return p.samplers[binding]
}

func (p *bindGroupProvider) SetBindGroup(bg gpu.BindGroup) gpu.BindGroup {
	prev := p.bindGroup
	p.bindGroup = bg
	return prev
}

func (p *bindGroupProvider) SetBindGroupLayout(bgl gpu.BindGroupLayout) {
	p.bindGroupLayout = bgl
}

func (p *bindGroupProvider) SetBuffer(binding int, buf gpu.Buffer) {
	p.buffers[binding] = buf
}

func (p *bindGroupProvider) SetSampler(binding int, s gpu.Sampler) {
	p.samplers[binding] = s
}

func (p *bindGroupProvider) SetTextureView(binding int, tv gpu.TextureView) {
	p.textureViews[binding] = tv
}

func (p *bindGroupProvider) Entries(overrides ...gpu.BindGroupEntry) []gpu.BindGroupEntry {
	byBinding := make(map[int]gpu.BindGroupEntry)
	for b, buf := range p.buffers {
		byBinding[b] = gpu.BindGroupEntry{Binding: uint32(b), Buffer: buf, Size: buf.Size()}
	}
	for b, s := range p.samplers {
		byBinding[b] = gpu.BindGroupEntry{Binding: uint32(b), Sampler: s}
	}
	for b, tv := range p.textureViews {
		byBinding[b] = gpu.BindGroupEntry{Binding: uint32(b), TextureView: tv}
	}
	for _, o := range overrides {
		byBinding[int(o.Binding)] = o
	}

	entries := make([]gpu.BindGroupEntry, 0, len(byBinding))
	for _, b := range slices.Sorted(maps.Keys(byBinding)) {
		entries = append(entries, byBinding[b])
	}
	return entries
}

func (p *bindGroupProvider) CreateBindGroup(device gpu.Device, overrides ...gpu.BindGroupEntry) (gpu.BindGroup, error) {
	if p.bindGroupLayout == nil {
		return nil, fmt.Errorf("%w: bind group %s has no layout", gpu.ErrResourceCreation, p.label)
	}
	bg, err := device.CreateBindGroup(&gpu.BindGroupDescriptor{
		Label:   p.label,
		Layout:  p.bindGroupLayout,
		Entries: p.Entries(overrides...),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: bind group %s: %v", gpu.ErrResourceCreation, p.label, err)
	}
	return bg, nil
}

func (p *bindGroupProvider) Release() {
	if p.bindGroup != nil {
		p.bindGroup.Release()
		p.bindGroup = nil
	}
	for i, s := range p.samplers {
		if s != nil {
			s.Release()
		}
		delete(p.samplers, i)
	}
	for i, buf := range p.buffers {
		if buf != nil {
			buf.Release()
		}
		delete(p.buffers, i)
	}
	clear(p.textureViews)
	if p.bindGroupLayout != nil {
		p.bindGroupLayout.Release()
		p.bindGroupLayout = nil
	}
}
