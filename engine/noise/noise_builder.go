package noise

// BakerBuilderOption is a functional option for configuring a baker.
type BakerBuilderOption func(b *baker)

// WithWorkers sets the host reference worker pool size. Defaults to 4.
//
// Parameters:
//   - n: the number of workers
//
// Returns:
//   - BakerBuilderOption: option function to apply
func WithWorkers(n int) BakerBuilderOption {
	return func(b *baker) {
		b.workers = n
	}
}

// WithSize overrides the atlas edge length. Tests use it to keep host bakes small.
//
// Parameters:
//   - size: the atlas width and height in texels
//
// Returns:
//   - BakerBuilderOption: option function to apply
func WithSize(size uint32) BakerBuilderOption {
	return func(b *baker) {
		if size > 0 {
			b.size = size
		}
	}
}
