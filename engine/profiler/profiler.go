package profiler

import (
	"log"
	"runtime"
	"sync"
	"time"
)

// Profiler tracks frame rate and memory statistics. It logs them once per interval and keeps
// the latest frame rate for display.
type Profiler struct {
	mu *sync.Mutex

	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64

	fps    float32
	logf   func(format string, args ...any)
	now    func() time.Time
	memory bool
}

// ProfilerOption is a functional option for configuring a Profiler.
type ProfilerOption func(p *Profiler)

// WithInterval sets how often statistics are computed and logged.
//
// Parameters:
//   - d: the reporting interval, ignored when not positive
//
// Returns:
//   - ProfilerOption: option function to apply
func WithInterval(d time.Duration) ProfilerOption {
	return func(p *Profiler) {
		if d > 0 {
			p.updateInterval = d
		}
	}
}

// WithClock replaces time.Now, for driving the profiler from a simulated clock.
func WithClock(now func() time.Time) ProfilerOption {
	return func(p *Profiler) {
		p.now = now
	}
}

// WithLogger replaces log.Printf as the report sink.
func WithLogger(logf func(format string, args ...any)) ProfilerOption {
	return func(p *Profiler) {
		p.logf = logf
	}
}

// WithMemoryStats enables heap and GC figures in the report. Reading them stops the world briefly.
func WithMemoryStats(enabled bool) ProfilerOption {
	return func(p *Profiler) {
		p.memory = enabled
	}
}

// NewProfiler creates a Profiler reporting once per second with memory statistics enabled.
//
// Parameters:
//   - options: functional options to configure the profiler
//
// Returns:
//   - *Profiler: the profiler
func NewProfiler(options ...ProfilerOption) *Profiler {
	p := &Profiler{
		mu:             &sync.Mutex{},
		updateInterval: time.Second,
		logf:           log.Printf,
		now:            time.Now,
		memory:         true,
	}
	for _, opt := range options {
		opt(p)
	}
	p.lastTime = p.now()
	return p
}

// Tick should be called once per frame. When the interval has elapsed it recomputes the frame
// rate and logs the report.
//
// Returns:
//   - bool: true if stats were logged this tick
func (p *Profiler) Tick() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.frameCount++
	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	p.fps = float32(float64(p.frameCount) / elapsed.Seconds())
	if p.memory {
		p.logMemory(elapsed)
	} else {
		p.logf("[Profiler] FPS: %.2f | Frame: %.3f ms", p.fps, 1000/p.fps)
	}

	p.frameCount = 0
	p.lastTime = currentTime
	return true
}

// logMemory logs the frame rate with heap usage, allocation rate and GC pauses since the last report.
func (p *Profiler) logMemory(elapsed time.Duration) {
	runtime.ReadMemStats(&p.memStats)
	allocMB := float64(p.memStats.Alloc) / 1024 / 1024
	sysMB := float64(p.memStats.Sys) / 1024 / 1024
	allocRateMB := float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / elapsed.Seconds()

	// PauseNs is a circular buffer of the last 256 pauses.
	gcCount := p.memStats.NumGC
	var lastPauseUs, maxPauseUs uint64
	if gcCount > 0 {
		lastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000
		start := p.lastGCCount
		if gcCount-start > 256 {
			start = gcCount - 256
		}
		for i := start; i < gcCount; i++ {
			maxPauseUs = max(maxPauseUs, p.memStats.PauseNs[i%256]/1000)
		}
	}

	p.logf("[Profiler] FPS: %.2f | Heap: %.2f MB | Alloc Rate: %.2f MB/s | GC: %d (last: %d µs, max: %d µs) | Sys: %.2f MB",
		p.fps, allocMB, allocRateMB, gcCount, lastPauseUs, maxPauseUs, sysMB)

	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
}

// FPS returns the frame rate measured over the last completed interval, 0 before the first.
//
// Returns:
//   - float32: frames per second
func (p *Profiler) FPS() float32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fps
}
