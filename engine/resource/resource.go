// Package resource keeps the named textures loaded from disk or generated at startup.
package resource

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/Carmen-Shannon/terraforge-go/common"
	"github.com/Carmen-Shannon/terraforge-go/engine/renderer"
	"github.com/cogentcore/webgpu/wgpu"
)

// ErrEmptyName is returned when a texture is loaded without a name.
var ErrEmptyName = errors.New("resource: empty texture name")

type cache struct {
	mu *sync.Mutex

	backend  renderer.Backend
	format   wgpu.TextureFormat
	textures map[string]renderer.Texture
}

// Cache is a table of textures keyed by name. Loading a name that is already present is a
// successful no-op, so every name maps to exactly one texture.
type Cache interface {
	// Load decodes the image at path and uploads it under name unless name is already loaded.
	// PNG, JPEG, BMP, TIFF and WebP are supported.
	//
	// Parameters:
	//   - name: the key the texture is stored under
	//   - path: the image file to load
	//
	// Returns:
	//   - error: ErrEmptyName, or a decode or upload error
	Load(name, path string) error

	// LoadImage uploads an in-memory image under name unless name is already loaded.
	//
	// Parameters:
	//   - name: the key the texture is stored under
	//   - img: the image to upload
	//
	// Returns:
	//   - error: ErrEmptyName, or an upload error
	LoadImage(name string, img image.Image) error

	// Get returns the texture stored under name, or nil.
	//
	// Parameters:
	//   - name: the texture key
	//
	// Returns:
	//   - renderer.Texture: the texture, nil when absent
	Get(name string) renderer.Texture

	// Len returns the number of loaded textures.
	Len() int

	// Release releases every texture and empties the table.
	Release()
}

var _ Cache = &cache{}

// NewCache creates an empty texture cache.
//
// Parameters:
//   - backend: the GPU backend textures are created on
//   - options: functional options to configure the cache
//
// Returns:
//   - Cache: the cache
func NewCache(backend renderer.Backend, options ...CacheBuilderOption) Cache {
	c := &cache{
		mu:       &sync.Mutex{},
		backend:  backend,
		format:   wgpu.TextureFormatRGBA8Unorm,
		textures: make(map[string]renderer.Texture),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

func (c *cache) Load(name, path string) error {
	return c.load(name, func() (common.TextureStagingData, error) {
		imported := &common.ImportedTexture{Name: name, Path: path}
		return imported.Decode()
	})
}

func (c *cache) LoadImage(name string, img image.Image) error {
	return c.load(name, func() (common.TextureStagingData, error) {
		if img == nil {
			return common.TextureStagingData{}, fmt.Errorf("nil image")
		}
		return common.ToRGBA(img), nil
	})
}

// load decodes and uploads under name only when name is new.
func (c *cache) load(name string, decode func() (common.TextureStagingData, error)) error {
	if name == "" {
		return ErrEmptyName
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.textures[name]; ok {
		return nil
	}

	staging, err := decode()
	if err != nil {
		return fmt.Errorf("resource: load %q: %w", name, err)
	}
	if staging.Width == 0 || staging.Height == 0 {
		return fmt.Errorf("resource: load %q: empty image", name)
	}

	tex, err := c.backend.CreateTexture(renderer.TextureDescriptor{
		Label:  name,
		Width:  staging.Width,
		Height: staging.Height,
		Format: c.format,
		Usage:  wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("resource: create texture %q: %w", name, err)
	}
	if err := c.backend.WriteTexture(tex, staging.Pixels); err != nil {
		tex.Release()
		return fmt.Errorf("resource: upload texture %q: %w", name, err)
	}

	c.textures[name] = tex
	return nil
}

func (c *cache) Get(name string) renderer.Texture {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.textures[name]
}

func (c *cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.textures)
}

func (c *cache) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for name, tex := range c.textures {
		tex.Release()
		delete(c.textures, name)
	}
}
