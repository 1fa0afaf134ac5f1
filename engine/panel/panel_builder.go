package panel

// PanelBuilderOption is a functional option for configuring a panel.
type PanelBuilderOption func(p *panel)

// WithTitle sets the title of the settings window.
//
// Parameters:
//   - title: the window title
//
// Returns:
//   - PanelBuilderOption: option function to apply
func WithTitle(title string) PanelBuilderOption {
	return func(p *panel) {
		p.title = title
	}
}

// WithPreviewSize sets the edge length of the noise preview image in logical pixels.
//
// Parameters:
//   - size: the preview edge length
//
// Returns:
//   - PanelBuilderOption: option function to apply
func WithPreviewSize(size float32) PanelBuilderOption {
	return func(p *panel) {
		if size > 0 {
			p.previewSize = size
		}
	}
}
