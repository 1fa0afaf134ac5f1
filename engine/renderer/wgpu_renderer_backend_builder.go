package renderer

// wgpuBackendConfig holds the adapter options applied by NewWGPUBackend.
type wgpuBackendConfig struct {
	forceFallbackAdapter bool
}

// WGPUBackendOption is a functional option for configuring the WebGPU backend.
type WGPUBackendOption func(cfg *wgpuBackendConfig)

// WithForceFallbackAdapter requests the software fallback adapter instead of a hardware one.
//
// Parameters:
//   - force: true to force the fallback adapter
//
// Returns:
//   - WGPUBackendOption: option function to apply
func WithForceFallbackAdapter(force bool) WGPUBackendOption {
	return func(cfg *wgpuBackendConfig) {
		cfg.forceFallbackAdapter = force
	}
}
