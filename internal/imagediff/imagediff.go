package imagediff

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"

	"github.com/orisano/pixelmatch"
)

// DefaultThreshold is the per-pixel colour distance tolerance in [0,1]
const DefaultThreshold = 0.1

// ErrDimensionMismatch is returned when the compared images differ in size
var ErrDimensionMismatch = errors.New("image dimensions do not match")

// DimensionMismatchError carries both sizes
type DimensionMismatchError struct {
	A, B image.Point
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("image dimensions do not match: %dx%d vs %dx%d", e.A.X, e.A.Y, e.B.X, e.B.Y)
}

func (e *DimensionMismatchError) Unwrap() error { return ErrDimensionMismatch }

// Options configures a comparison
type Options struct {
	Threshold float64 // colour distance tolerance, 0 is exact
	IncludeAA bool    // count anti-aliased pixels as differences
	Alpha     float64 // opacity of unchanged pixels in the diff image
	Outline   bool    // outline the bounding box of differing pixels
}

// DiffColor is the colour pixelmatch paints differing pixels
var DiffColor = color.NRGBA{R: 255, A: 255}

// AAColor is the colour pixelmatch paints anti-aliased pixels it did not count
var AAColor = color.NRGBA{R: 255, G: 255, A: 255}

// DefaultOptions returns the options used by Compare
func DefaultOptions() Options {
	return Options{
		Threshold: DefaultThreshold,
		Alpha:     0.1,
		Outline:   true,
	}
}

// Result summarises a comparison
type Result struct {
	DiffPixels int
	Total      int
	Identical  bool
	Bounds     image.Rectangle // smallest rectangle holding every differing pixel
	DiffPath   string
}

// Ratio returns the fraction of differing pixels
func (r Result) Ratio() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.DiffPixels) / float64(r.Total)
}

// Compare decodes the PNGs at pathA and pathB, compares them under threshold
// and writes the diff image to diffPath. Nothing is written when the sizes differ.
func Compare(pathA, pathB, diffPath string, threshold float64) (Result, error) {
	a, err := Load(pathA)
	if err != nil {
		return Result{}, err
	}
	b, err := Load(pathB)
	if err != nil {
		return Result{}, err
	}

	opts := DefaultOptions()
	opts.Threshold = threshold
	out, res, err := Diff(a, b, opts)
	if err != nil {
		return Result{}, err
	}

	if err := Save(diffPath, out); err != nil {
		return Result{}, err
	}
	res.DiffPath = diffPath
	return res, nil
}

// Diff compares a and b with pixelmatch and returns the diff image
func Diff(a, b image.Image, opts Options) (*image.NRGBA, Result, error) {
	sa, sb := a.Bounds().Size(), b.Bounds().Size()
	if sa != sb {
		return nil, Result{}, &DimensionMismatchError{A: sa, B: sb}
	}

	img1, img2 := toNRGBA(a), toNRGBA(b)
	matchOpts := []pixelmatch.MatchOption{
		pixelmatch.Threshold(opts.Threshold),
		pixelmatch.Alpha(opts.Alpha),
	}
	if opts.IncludeAA {
		matchOpts = append(matchOpts, pixelmatch.IncludeAntiAlias)
	}
	var drawn image.Image
	matchOpts = append(matchOpts, pixelmatch.WriteTo(&drawn))

	n, err := pixelmatch.MatchPixel(img1, img2, matchOpts...)
	if err != nil {
		return nil, Result{}, fmt.Errorf("failed to compare images: %w", err)
	}
	if drawn == nil {
		drawn = img1
	}
	out := toNRGBA(drawn)

	res := Result{
		DiffPixels: n,
		Total:      sa.X * sa.Y,
		Identical:  n == 0,
	}
	if !res.Identical {
		res.Bounds = diffBounds(out)
		if opts.Outline && !res.Bounds.Empty() {
			outline(out, res.Bounds, DiffColor)
		}
	}
	return out, res, nil
}

// diffBounds returns the smallest rectangle holding every DiffColor pixel.
// Unchanged pixels are grey and anti-aliased ones yellow, so neither matches.
func diffBounds(img *image.NRGBA) image.Rectangle {
	var r image.Rectangle
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.NRGBAAt(x, y) == DiffColor {
				r = r.Union(image.Rect(x, y, x+1, y+1))
			}
		}
	}
	return r
}

// Load decodes a PNG file
func Load(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return img, nil
}

// Save encodes img as PNG at path, creating parent directories
func Save(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create image: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return f.Close()
}

// toNRGBA copies img into a zero-origin NRGBA with a tight stride
func toNRGBA(img image.Image) *image.NRGBA {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
