package shader

// CompilerBuilderOption is a functional option for configuring a compiler.
type CompilerBuilderOption func(c *compiler)

// WithInclude registers a snippet that sources can pull in with //@tf:include <name>.
// A name matching a built-in include replaces it.
//
// Parameters:
//   - name: the include name
//   - source: the WGSL snippet
//
// Returns:
//   - CompilerBuilderOption: option function to apply
func WithInclude(name, source string) CompilerBuilderOption {
	return func(c *compiler) {
		c.includes[name] = source
	}
}
