package noise

import (
	"errors"
	"image"
	"math"
	"testing"

	"github.com/Carmen-Shannon/terraforge-go/engine/renderer/headless"
	"github.com/Carmen-Shannon/terraforge-go/engine/renderer/shader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

const bakerPath = "../../assets/shaders/noise_baker.wgsl"

func compileBaker(t *testing.T) shader.Program {
	t.Helper()
	p, err := shader.Compile(bakerPath, "cs_bake", shader.ProfileWGSL)
	require.NoError(t, err)
	return p
}

func TestBakeDispatchesCeilGroups(t *testing.T) {
	backend := headless.NewBackend()
	b, err := NewBaker(backend, compileBaker(t))
	require.NoError(t, err)
	defer b.Release()

	assert.Equal(t, [3]uint32{26, 26, 1}, b.Dispatch())
	require.NoError(t, b.Bake())

	dispatches := backend.Dispatches()
	require.Len(t, dispatches, 1)
	assert.Equal(t, uint32(26), dispatches[0].X)
	assert.Equal(t, uint32(26), dispatches[0].Y)
	assert.Equal(t, uint32(1), dispatches[0].Z)
	assert.Equal(t, 1, b.Bakes())
	assert.Equal(t, Size, b.Texture().Width())
}

func TestBakeIsDeterministic(t *testing.T) {
	backend := headless.NewBackend()
	b, err := NewBaker(backend, compileBaker(t), WithWorkers(3))
	require.NoError(t, err)
	defer b.Release()

	require.NoError(t, b.Bake())
	first, err := backend.ReadTexture(b.Texture())
	require.NoError(t, err)

	require.NoError(t, b.Bake())
	second, err := backend.ReadTexture(b.Texture())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, int(Size*Size*bytesPerTexel))
	assert.Equal(t, 2, b.Bakes())
}

func TestBakeReleasesGuard(t *testing.T) {
	backend := headless.NewBackend()
	b, err := NewBaker(backend, compileBaker(t))
	require.NoError(t, err)
	defer b.Release()

	require.NoError(t, b.Bake())
	assert.Equal(t, 0, backend.StorageBindings(b.Texture()))
	assert.Equal(t, 0, backend.LiveBindGroups())

	boom := errors.New("device lost")
	backend.Fail(headless.OpDispatch, boom)
	assert.ErrorIs(t, b.Bake(), boom)
	assert.Equal(t, 0, backend.StorageBindings(b.Texture()))
	assert.Equal(t, 0, backend.LiveBindGroups())
	assert.Equal(t, 1, b.Bakes())
}

func TestBakeDegraded(t *testing.T) {
	tests := []struct {
		name string
		op   headless.Op
	}{
		{name: "texture creation fails", op: headless.OpCreateTexture},
		{name: "pipeline creation fails", op: headless.OpCreateComputePipeline},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := headless.NewBackend()
			backend.Fail(tt.op, errors.New("nope"))

			b, err := NewBaker(backend, compileBaker(t))
			require.NoError(t, err)
			defer b.Release()

			assert.NoError(t, b.Bake())
			assert.NoError(t, b.Bake())
			assert.Empty(t, backend.Dispatches())
			assert.Equal(t, 0, b.Bakes())
		})
	}
}

func TestNewBakerRejectsRenderProgram(t *testing.T) {
	src := "//@tf:include fullscreen\n@fragment\nfn fs_main() -> @location(0) vec4<f32> { return vec4<f32>(1.0); }\n"
	p, err := shader.NewCompiler().CompileSource("flat", src, "fs_main", shader.ProfileWGSL)
	require.NoError(t, err)

	_, err = NewBaker(headless.NewBackend(), p)
	assert.Error(t, err)
}

func TestWithSizeChangesDispatch(t *testing.T) {
	backend := headless.NewBackend()
	b, err := NewBaker(backend, compileBaker(t), WithSize(17))
	require.NoError(t, err)
	defer b.Release()

	assert.Equal(t, [3]uint32{3, 3, 1}, b.Dispatch())
	require.NoError(t, b.Bake())
	assert.Equal(t, uint32(17), b.Texture().Height())
}

func TestReferenceValues(t *testing.T) {
	ref := NewReference(2)
	defer ref.Release()

	const w, h = 12, 7
	dst := make([]byte, w*h*bytesPerTexel)
	ref.Fill(dst, w, h)

	for y := uint32(0); y < h; y++ {
		for x := uint32(0); x < w; x++ {
			want := Texel((float32(x)+0.5)/w, (float32(y)+0.5)/h)
			off := int((y*w + x) * bytesPerTexel)
			for c := 0; c < 4; c++ {
				bits := uint16(dst[off+2*c]) | uint16(dst[off+2*c+1])<<8
				got := float16.Frombits(bits).Float32()
				assert.InDelta(t, want[c], got, 1e-3)
				assert.GreaterOrEqual(t, got, float32(0))
				assert.LessOrEqual(t, got, float32(1))
			}
		}
	}
}

func TestNoiseTiles(t *testing.T) {
	// every channel period divides the atlas, so opposite edges meet
	for _, v := range []float32{0.1, 0.5, 0.9} {
		left := Texel(0, v)
		right := Texel(1, v)
		for c := 0; c < 4; c++ {
			assert.InDelta(t, left[c], right[c], 1e-4, "channel %d at v=%v", c, v)
		}
	}
}

func TestReferenceIgnoresShortBuffer(t *testing.T) {
	ref := NewReference(1)
	defer ref.Release()

	dst := make([]byte, 4)
	ref.Fill(dst, 8, 8)
	assert.Equal(t, []byte{0, 0, 0, 0}, dst)
}

func TestSnapshotMatchesReference(t *testing.T) {
	const size = 9
	backend := headless.NewBackend()
	b, err := NewBaker(backend, compileBaker(t), WithSize(size))
	require.NoError(t, err)
	defer b.Release()

	require.NoError(t, b.Bake())
	img, err := b.Snapshot()
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, size, size), img.Bounds())

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			want := Texel((float32(x)+0.5)/size, (float32(y)+0.5)/size)
			px := img.NRGBAAt(x, y)
			got := []uint8{px.R, px.G, px.B, px.A}
			for c := 0; c < 4; c++ {
				assert.InDelta(t, float64(want[c])*255, float64(got[c]), 1, "texel %d,%d channel %d", x, y, c)
			}
		}
	}
}

func TestSnapshotErrors(t *testing.T) {
	t.Run("no atlas", func(t *testing.T) {
		backend := headless.NewBackend()
		backend.Fail(headless.OpCreateTexture, errors.New("nope"))
		b, err := NewBaker(backend, compileBaker(t))
		require.NoError(t, err)
		defer b.Release()

		_, err = b.Snapshot()
		assert.Error(t, err)
	})

	t.Run("released", func(t *testing.T) {
		b, err := NewBaker(headless.NewBackend(), compileBaker(t), WithSize(4))
		require.NoError(t, err)
		b.Release()

		_, err = b.Snapshot()
		assert.Error(t, err)
	})
}

func TestUnorm8(t *testing.T) {
	tests := []struct {
		name string
		in   float32
		want uint8
	}{
		{"zero", 0, 0},
		{"one", 1, 255},
		{"half", 0.5, 128},
		{"below", -3, 0},
		{"above", 7, 255},
		{"nan", float32(math.NaN()), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, unorm8(tt.in))
		})
	}
}
