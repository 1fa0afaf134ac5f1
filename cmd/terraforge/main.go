package main

import (
	"errors"
	"flag"
	"fmt"
	"image/png"
	"io/fs"
	"log"
	"os"
	"runtime"

	"github.com/Carmen-Shannon/terraforge-go/engine"
	"github.com/Carmen-Shannon/terraforge-go/engine/config"
	"github.com/Carmen-Shannon/terraforge-go/engine/noise"
	"github.com/Carmen-Shannon/terraforge-go/engine/renderer"
)

func init() {
	// GLFW and the surface must stay on the main thread.
	runtime.LockOSThread()
}

func main() {
	configPath := flag.String("config", "terraforge.toml", "path to the TOML configuration")
	headless := flag.Bool("headless", false, "render without a window or GPU")
	frames := flag.Int("frames", 60, "frames to render in headless mode")
	profile := flag.Bool("profile", false, "log frame rate and memory once per second")
	fpsLimit := flag.Float64("fps", 0, "frame rate cap, 0 for uncapped")
	saveNoise := flag.String("save-noise", "", "write the baked noise atlas to this PNG file and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Printf("terraforge: %s not found, using defaults", *configPath)
		cfg = config.Default()
	case err != nil:
		log.Fatalf("terraforge: %v", err)
	}
	if *headless {
		cfg.Renderer.Backend = string(renderer.BackendTypeHeadless)
	}

	eng, err := engine.NewEngine(cfg,
		engine.WithProfiling(*profile),
		engine.WithRenderFrameLimit(*fpsLimit),
	)
	if err != nil {
		log.Fatalf("terraforge: %v", err)
	}
	defer eng.Release()

	if *saveNoise != "" {
		if err := writeNoisePNG(eng.Baker(), *saveNoise); err != nil {
			log.Printf("terraforge: %v", err)
			return
		}
		log.Printf("terraforge: wrote noise atlas to %s", *saveNoise)
		return
	}

	if *headless {
		for i := 0; i < *frames && eng.Running(); i++ {
			if err := eng.Step(1.0 / 60); err != nil {
				log.Printf("terraforge: frame %d: %v", i, err)
				return
			}
		}
		log.Printf("terraforge: rendered %d frames (%d skipped), %d bakes",
			eng.Frames(), eng.Skipped(), eng.Baker().Bakes())
		return
	}

	if err := eng.Run(); err != nil {
		log.Printf("terraforge: %v", err)
	}
}

// writeNoisePNG saves the current noise atlas as an 8-bit RGBA image.
func writeNoisePNG(baker noise.Baker, path string) error {
	img, err := baker.Snapshot()
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("save noise: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("save noise: encode %s: %w", path, err)
	}
	return f.Close()
}
