package resource

import "github.com/cogentcore/webgpu/wgpu"

// CacheBuilderOption is a functional option for configuring a cache.
type CacheBuilderOption func(c *cache)

// WithFormat sets the texture format images are uploaded as. Defaults to
// wgpu.TextureFormatRGBA8Unorm. The format must take 4 bytes per texel.
//
// Parameters:
//   - format: the upload format
//
// Returns:
//   - CacheBuilderOption: option function to apply
func WithFormat(format wgpu.TextureFormat) CacheBuilderOption {
	return func(c *cache) {
		c.format = format
	}
}
