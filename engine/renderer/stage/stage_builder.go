package stage

import "github.com/Carmen-Shannon/oxy-raysampler/common"

// StageBuilderOption is a functional option used to configure a stage during construction.
type StageBuilderOption func(*stageOptions)

// stageOptions collects the settings shared by the compute and draw stages.
type stageOptions struct {
	label   string
	sampler common.SamplerStagingData
}

// WithLabel overrides the debug label prefix of the stage's GPU objects.
//
// Parameters:
//   - label: the label prefix
//
// Returns:
//   - StageBuilderOption: a function that sets the label
func WithLabel(label string) StageBuilderOption {
	return func(o *stageOptions) {
		o.label = label
	}
}

// WithSampler sets the address modes and LOD clamps of the framebuffer sampler. Filters are
// always nearest since the framebuffer format is not filterable. Only the draw stage creates a
// sampler; the compute stage ignores this option.
//
// Parameters:
//   - data: the sampler staging data, zero fields fall back to the defaults
//
// Returns:
//   - StageBuilderOption: a function that sets the sampler staging data
func WithSampler(data common.SamplerStagingData) StageBuilderOption {
	return func(o *stageOptions) {
		o.sampler = data
	}
}

func newStageOptions(defaultLabel string, opts []StageBuilderOption) stageOptions {
	o := stageOptions{label: defaultLabel}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
