// Package config loads the TerraForge TOML configuration. Values missing from the file keep
// their defaults; unknown keys are an error.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/Carmen-Shannon/terraforge-go/engine/constants"
	"github.com/Carmen-Shannon/terraforge-go/engine/renderer"
	"github.com/Carmen-Shannon/terraforge-go/engine/renderer/shader"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pelletier/go-toml/v2"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("config: invalid value")

// Config is the complete startup configuration.
type Config struct {
	Window   WindowConfig    `toml:"window"`
	Renderer RendererConfig  `toml:"renderer"`
	Shaders  ShaderConfig    `toml:"shaders"`
	Textures []TextureConfig `toml:"textures"`
	Scene    SceneConfig     `toml:"scene"`
	Camera   CameraConfig    `toml:"camera"`
	Cloud    CloudConfig     `toml:"cloud"`
	Noise    NoiseConfig     `toml:"noise"`
}

type WindowConfig struct {
	Title  string `toml:"title"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
}

type RendererConfig struct {
	// Backend is "wgpu" or "headless".
	Backend string `toml:"backend"`

	// PresentMode is "vsync" or "uncapped".
	PresentMode          string     `toml:"present_mode"`
	ClearColor           [4]float64 `toml:"clear_color"`
	ForceFallbackAdapter bool       `toml:"force_fallback_adapter"`
}

type ShaderConfig struct {
	Dir string `toml:"dir"`

	// Profile is "wgsl" or "spirv".
	Profile string `toml:"profile"`
}

// TextureConfig names an image file to load into the resource cache at startup.
type TextureConfig struct {
	Name string `toml:"name"`
	Path string `toml:"path"`
}

type SceneConfig struct {
	Flat       bool `toml:"flat"`
	Volumetric bool `toml:"volumetric"`
	Cloud      bool `toml:"cloud"`
}

type CameraConfig struct {
	Position    [3]float32 `toml:"position"`
	Fov         float32    `toml:"fov"`
	Near        float32    `toml:"near"`
	Far         float32    `toml:"far"`
	MoveSpeed   float32    `toml:"move_speed"`
	Sprint      float32    `toml:"sprint_multiplier"`
	Sensitivity float32    `toml:"mouse_sensitivity"`
}

// CloudConfig holds the startup cloud tunables. They seed the control panel and are not
// written back.
type CloudConfig struct {
	SunDir            [3]float32 `toml:"sun_dir"`
	SunIntensity      float32    `toml:"sun_intensity"`
	SunColor          [3]float32 `toml:"sun_color"`
	CloudScale        float32    `toml:"cloud_scale"`
	FogColor          [3]float32 `toml:"fog_color"`
	FogDensity        float32    `toml:"fog_density"`
	ShapeStrength     float32    `toml:"shape_strength"`
	DetailStrength    float32    `toml:"detail_strength"`
	DensityMultiplier float32    `toml:"density_multiplier"`
	StepSize          float32    `toml:"step_size"`
	Coverage          float32    `toml:"coverage"`
	Absorption        float32    `toml:"absorption"`
}

type NoiseConfig struct {
	// Workers is the worker pool size of the host noise reference.
	Workers int `toml:"workers"`
}

// Default returns the configuration used when no file is given.
//
// Returns:
//   - Config: the defaults
func Default() Config {
	cloud := constants.DefaultCloudParams()
	return Config{
		Window: WindowConfig{
			Title:  "TerraForge",
			Width:  1280,
			Height: 720,
		},
		Renderer: RendererConfig{
			Backend:     string(renderer.BackendTypeWGPU),
			PresentMode: renderer.PresentModeUncapped.String(),
			ClearColor:  [4]float64{0, 0, 0, 1},
		},
		Shaders: ShaderConfig{
			Dir:     "assets/shaders",
			Profile: shader.ProfileWGSL,
		},
		Textures: []TextureConfig{
			{Name: "BlueNoise", Path: "assets/textures/blue_noise.png"},
		},
		Scene: SceneConfig{Cloud: true},
		Camera: CameraConfig{
			Position:    [3]float32{0, 0, -20},
			Fov:         90,
			Near:        0.1,
			Far:         1000,
			MoveSpeed:   10,
			Sprint:      4,
			Sensitivity: 5,
		},
		Cloud: CloudConfig{
			SunDir:            cloud.SunDir,
			SunIntensity:      cloud.SunIntensity,
			SunColor:          cloud.SunColor,
			CloudScale:        cloud.CloudScale,
			FogColor:          cloud.FogColor,
			FogDensity:        cloud.FogDensity,
			ShapeStrength:     cloud.ShapeStrength,
			DetailStrength:    cloud.DetailStrength,
			DensityMultiplier: cloud.DensityMultiplier,
			StepSize:          cloud.StepSize,
			Coverage:          cloud.Coverage,
			Absorption:        cloud.Absorption,
		},
		Noise: NoiseConfig{Workers: 4},
	}
}

// Load reads the TOML file at path over the defaults.
//
// Parameters:
//   - path: the configuration file
//
// Returns:
//   - Config: the merged configuration
//   - error: a read, decode or validation error
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %q: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes TOML data over the defaults and validates the result.
// A [[textures]] array in data replaces the default texture list.
//
// Parameters:
//   - data: the TOML document
//
// Returns:
//   - Config: the merged configuration
//   - error: a decode or validation error
func Parse(data []byte) (Config, error) {
	cfg := Default()
	defaults := cfg.Textures
	cfg.Textures = nil
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return Config{}, fmt.Errorf("config: unknown keys:\n%s", strict.String())
		}
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if cfg.Textures == nil {
		cfg.Textures = defaults
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks enum values and sizes.
//
// Returns:
//   - error: an error wrapping ErrInvalid naming the first bad field
func (c Config) Validate() error {
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("%w: window size %dx%d", ErrInvalid, c.Window.Width, c.Window.Height)
	}
	if !slices.Contains([]string{string(renderer.BackendTypeWGPU), string(renderer.BackendTypeHeadless)}, c.Renderer.Backend) {
		return fmt.Errorf("%w: renderer.backend %q", ErrInvalid, c.Renderer.Backend)
	}
	if !slices.Contains([]string{renderer.PresentModeVSync.String(), renderer.PresentModeUncapped.String()}, c.Renderer.PresentMode) {
		return fmt.Errorf("%w: renderer.present_mode %q", ErrInvalid, c.Renderer.PresentMode)
	}
	if c.Shaders.Profile != shader.ProfileWGSL && c.Shaders.Profile != shader.ProfileSPIRV {
		return fmt.Errorf("%w: shaders.profile %q", ErrInvalid, c.Shaders.Profile)
	}
	seen := make(map[string]bool, len(c.Textures))
	for i, t := range c.Textures {
		if t.Name == "" || t.Path == "" {
			return fmt.Errorf("%w: textures[%d] needs a name and a path", ErrInvalid, i)
		}
		if seen[t.Name] {
			return fmt.Errorf("%w: textures[%d] repeats name %q", ErrInvalid, i, t.Name)
		}
		seen[t.Name] = true
	}
	if c.Camera.Near <= 0 || c.Camera.Far <= c.Camera.Near {
		return fmt.Errorf("%w: camera clip planes %g..%g", ErrInvalid, c.Camera.Near, c.Camera.Far)
	}
	if c.Noise.Workers <= 0 {
		return fmt.Errorf("%w: noise.workers %d", ErrInvalid, c.Noise.Workers)
	}
	return nil
}

// PresentMode returns the configured present mode.
//
// Returns:
//   - renderer.PresentMode: the present mode
func (c Config) PresentMode() renderer.PresentMode {
	if c.Renderer.PresentMode == renderer.PresentModeVSync.String() {
		return renderer.PresentModeVSync
	}
	return renderer.PresentModeUncapped
}

// ClearColor returns the configured clear color.
func (c Config) ClearColor() renderer.Color {
	cc := c.Renderer.ClearColor
	return renderer.Color{R: cc[0], G: cc[1], B: cc[2], A: cc[3]}
}

// CloudParams converts the cloud section to the constants' parameter set.
//
// Returns:
//   - constants.CloudParams: the startup cloud parameters
func (c Config) CloudParams() constants.CloudParams {
	cc := c.Cloud
	return constants.CloudParams{
		SunDir:            mgl32.Vec3(cc.SunDir),
		SunIntensity:      cc.SunIntensity,
		SunColor:          mgl32.Vec3(cc.SunColor),
		CloudScale:        cc.CloudScale,
		FogColor:          mgl32.Vec3(cc.FogColor),
		FogDensity:        cc.FogDensity,
		ShapeStrength:     cc.ShapeStrength,
		DetailStrength:    cc.DetailStrength,
		DensityMultiplier: cc.DensityMultiplier,
		StepSize:          cc.StepSize,
		Coverage:          cc.Coverage,
		Absorption:        cc.Absorption,
	}
}
