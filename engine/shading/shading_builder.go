package shading

// PipelineBuilderOption is a functional option for configuring a pipeline.
type PipelineBuilderOption func(p *pipeline)

// WithSceneMode sets the initial scene flags. Defaults to the cloud variant only.
//
// Parameters:
//   - mode: the starting flags
//
// Returns:
//   - PipelineBuilderOption: option function to apply
func WithSceneMode(mode SceneMode) PipelineBuilderOption {
	return func(p *pipeline) {
		p.mode = mode
	}
}

// WithBlueNoiseName sets the cache name the cloud variant reads its jitter texture from.
// Defaults to "BlueNoise".
//
// Parameters:
//   - name: the resource cache key
//
// Returns:
//   - PipelineBuilderOption: option function to apply
func WithBlueNoiseName(name string) PipelineBuilderOption {
	return func(p *pipeline) {
		p.blueNoiseName = name
	}
}
