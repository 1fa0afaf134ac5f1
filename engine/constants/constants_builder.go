package constants

// FrameConstantsBuilderOption is a functional option for configuring frameConstants.
type FrameConstantsBuilderOption func(*frameConstants)

// WithCloudParams sets the initial cloud parameters uploaded at construction.
//
// Parameters:
//   - params: the starting parameters
//
// Returns:
//   - FrameConstantsBuilderOption: option function to apply
func WithCloudParams(params CloudParams) FrameConstantsBuilderOption {
	return func(fc *frameConstants) {
		p := params
		fc.cloud = &p
	}
}
