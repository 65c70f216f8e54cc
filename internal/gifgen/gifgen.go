package gifgen

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/nfnt/resize"
)

// Options configures GIF generation
type Options struct {
	FrameDelay time.Duration // how long each frame is shown
	MaxWidth   uint          // frames wider than this are scaled down, 0 keeps the size
}

// DefaultOptions returns options suited to flicker comparisons
func DefaultOptions() Options {
	return Options{
		FrameDelay: 800 * time.Millisecond,
		MaxWidth:   800,
	}
}

// Flicker writes a looping GIF that cycles baseline, current and diff so a
// reviewer can spot the change by eye
func Flicker(baseline, current, diff image.Image, outputPath string, opts Options) (int64, error) {
	return Generate([]image.Image{baseline, current, diff}, outputPath, opts)
}

// Generate creates a looping GIF from frames of equal size
func Generate(frames []image.Image, outputPath string, opts Options) (int64, error) {
	if len(frames) == 0 {
		return 0, errors.New("no frames")
	}

	// GIF delays are in 100ths of a second
	delay := int(opts.FrameDelay / (10 * time.Millisecond))
	if delay < 1 {
		delay = 1
	}

	bounds := frames[0].Bounds()
	outputWidth := uint(bounds.Dx())
	if opts.MaxWidth > 0 && outputWidth > opts.MaxWidth {
		outputWidth = opts.MaxWidth
	}

	g := &gif.GIF{
		Image:     make([]*image.Paletted, len(frames)),
		Delay:     make([]int, len(frames)),
		LoopCount: 0, // Infinite loop
	}

	palette := generatePalette(frames)

	for i, frame := range frames {
		scaled := frame
		if outputWidth != uint(frame.Bounds().Dx()) {
			// height 0 keeps the aspect ratio
			scaled = resize.Resize(outputWidth, 0, frame, resize.Lanczos3)
		}

		paletted := image.NewPaletted(scaled.Bounds(), palette)
		draw.Draw(paletted, scaled.Bounds(), scaled, scaled.Bounds().Min, draw.Src)

		g.Image[i] = paletted
		g.Delay[i] = delay
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return 0, err
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	if err := gif.EncodeAll(f, g); err != nil {
		return 0, err
	}

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}

	return info.Size(), nil
}

// generatePalette builds a 256-colour palette from the most frequent colours
// across all frames. Pure red is always present so diff pixels survive.
func generatePalette(frames []image.Image) color.Palette {
	counts := make(map[color.RGBA]int)

	for _, img := range frames {
		bounds := img.Bounds()
		step := 2
		for y := bounds.Min.Y; y < bounds.Max.Y; y += step {
			for x := bounds.Min.X; x < bounds.Max.X; x += step {
				r, g, b, _ := img.At(x, y).RGBA()
				counts[color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: 255}]++
			}
		}
	}

	type colorCount struct {
		c     color.RGBA
		count int
	}
	colors := make([]colorCount, 0, len(counts))
	for c, count := range counts {
		colors = append(colors, colorCount{c, count})
	}
	sort.Slice(colors, func(i, j int) bool {
		if colors[i].count != colors[j].count {
			return colors[i].count > colors[j].count
		}
		return packRGB(colors[i].c) < packRGB(colors[j].c)
	})

	red := color.RGBA{R: 255, A: 255}
	palette := color.Palette{red}
	for i := 0; i < len(colors) && len(palette) < 256; i++ {
		if colors[i].c != red {
			palette = append(palette, colors[i].c)
		}
	}

	// If we don't have enough colors, pad with grayscale
	for len(palette) < 256 {
		gray := uint8(len(palette))
		palette = append(palette, color.RGBA{R: gray, G: gray, B: gray, A: 255})
	}

	return palette
}

func packRGB(c color.RGBA) uint32 {
	return uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
}
