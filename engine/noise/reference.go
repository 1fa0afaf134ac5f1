package noise

import (
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/terraforge-go/common"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/x448/float16"
)

// Channel layout of the atlas. Each texel holds four independent tileable noise values.
const (
	shapePeriod  = 4 // R: low-frequency value fBm
	shapeOctaves = 5
	shapeSeed    = 0

	detailPeriod = 8 // G: Worley detail
	detailSeed   = 17

	finePeriod = 16 // B: fine Worley detail
	fineSeed   = 29

	warpPeriod  = 8 // A: high-frequency value fBm
	warpOctaves = 3
	warpSeed    = 101
)

// rgba16float
const bytesPerTexel = 8

type reference struct {
	pool    worker.DynamicWorkerPool
	workers int
}

// Reference fills noise atlases on the CPU with the same functions the baker's compute
// shader evaluates. Rows are split across a worker pool.
type Reference interface {
	// Fill writes a width×height rgba16float atlas into dst.
	//
	// Parameters:
	//   - dst: the destination, at least width*height*8 bytes
	//   - width: atlas width in texels
	//   - height: atlas height in texels
	Fill(dst []byte, width, height uint32)

	// Release stops the worker pool.
	Release()
}

var _ Reference = &reference{}

// NewReference creates a host reference backed by a pool of workers goroutines.
//
// Parameters:
//   - workers: pool size, values below 1 are raised to 1
//
// Returns:
//   - Reference: the host reference
func NewReference(workers int) Reference {
	if workers < 1 {
		workers = 1
	}
	return &reference{
		pool:    worker.NewDynamicWorkerPool(workers, 256, 1*time.Second),
		workers: workers,
	}
}

func (r *reference) Fill(dst []byte, width, height uint32) {
	if width == 0 || height == 0 || uint64(len(dst)) < uint64(width)*uint64(height)*bytesPerTexel {
		return
	}

	rowsPerTask := common.CeilDiv(height, uint32(r.workers))
	var wg sync.WaitGroup
	taskID := 0
	for start := uint32(0); start < height; start += rowsPerTask {
		end := min(start+rowsPerTask, height)
		wg.Add(1)
		first, last := start, end
		r.pool.SubmitTask(worker.Task{
			ID: taskID,
			Do: func() (any, error) {
				defer wg.Done()
				fillRows(dst, width, height, first, last)
				return nil, nil
			},
		})
		taskID++
	}
	wg.Wait()
}

func (r *reference) Release() {
	r.pool.Stop()
}

func fillRows(dst []byte, width, height, first, last uint32) {
	for y := first; y < last; y++ {
		for x := uint32(0); x < width; x++ {
			u := (float32(x) + 0.5) / float32(width)
			v := (float32(y) + 0.5) / float32(height)
			texel := Texel(u, v)

			offset := int((y*width + x) * bytesPerTexel)
			for c := 0; c < 4; c++ {
				bits := float16.Fromfloat32(texel[c]).Bits()
				dst[offset+2*c] = byte(bits)
				dst[offset+2*c+1] = byte(bits >> 8)
			}
		}
	}
}

// Texel evaluates all four atlas channels at normalized coordinates (u, v).
//
// Parameters:
//   - u: horizontal coordinate in [0, 1)
//   - v: vertical coordinate in [0, 1)
//
// Returns:
//   - [4]float32: shape, detail, fine detail and warp values in [0, 1]
func Texel(u, v float32) [4]float32 {
	return [4]float32{
		fbm(u, v, shapePeriod, shapeOctaves, shapeSeed),
		worley(u, v, detailPeriod, detailSeed),
		worley(u, v, finePeriod, fineSeed),
		fbm(u, v, warpPeriod, warpOctaves, warpSeed),
	}
}

func hashU32(v uint32) uint32 {
	state := v*747796405 + 2891336453
	word := ((state >> ((state >> 28) + 4)) ^ state) * 277803737
	return (word >> 22) ^ word
}

func hash2(x, y, seed uint32) float32 {
	return float32(hashU32(x^hashU32(y^hashU32(seed)))) / 4294967295.0
}

// wrap maps a cell coordinate into [0, period).
func wrap(c float32, period uint32) uint32 {
	p := int32(period)
	return uint32((int32(c)%p + p) % p)
}

func mix(a, b, t float32) float32 {
	return a*(1-t) + b*t
}

func valueNoise(px, py float32, period, seed uint32) float32 {
	cx, cy := math32.Floor(px), math32.Floor(py)
	fx, fy := px-cx, py-cy
	sx, sy := fx*fx*(3-2*fx), fy*fy*(3-2*fy)

	x0, y0 := wrap(cx, period), wrap(cy, period)
	x1, y1 := (x0+1)%period, (y0+1)%period

	a := hash2(x0, y0, seed)
	b := hash2(x1, y0, seed)
	c := hash2(x0, y1, seed)
	d := hash2(x1, y1, seed)
	return mix(mix(a, b, sx), mix(c, d, sx), sy)
}

func fbm(u, v float32, basePeriod, octaves, seed uint32) float32 {
	var sum, norm float32
	amplitude := float32(0.5)
	period := basePeriod
	for i := uint32(0); i < octaves; i++ {
		sum += amplitude * valueNoise(u*float32(period), v*float32(period), period, seed+i)
		norm += amplitude
		amplitude *= 0.5
		period *= 2
	}
	return sum / norm
}

func worley(u, v float32, period, seed uint32) float32 {
	px, py := u*float32(period), v*float32(period)
	cx, cy := math32.Floor(px), math32.Floor(py)
	nearest := float32(2)
	for oy := -1; oy <= 1; oy++ {
		for ox := -1; ox <= 1; ox++ {
			x, y := cx+float32(ox), cy+float32(oy)
			wx, wy := wrap(x, period), wrap(y, period)
			fx := x + hash2(wx, wy, seed)
			fy := y + hash2(wy, wx, seed+1)
			nearest = min(nearest, math32.Hypot(px-fx, py-fy))
		}
	}
	return mgl32.Clamp(1-nearest, 0, 1)
}
