package gifgen

import (
	"image"
	"image/color"
	"image/gif"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestFlicker(t *testing.T) {
	out := filepath.Join(t.TempDir(), "diff", "home-flicker.gif")
	size, err := Flicker(
		solid(64, 32, color.White),
		solid(64, 32, color.Black),
		solid(64, 32, color.RGBA{R: 255, A: 255}),
		out,
		Options{FrameDelay: 500 * time.Millisecond},
	)
	require.NoError(t, err)
	assert.Positive(t, size)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()

	g, err := gif.DecodeAll(f)
	require.NoError(t, err)
	require.Len(t, g.Image, 3)
	assert.Equal(t, []int{50, 50, 50}, g.Delay)
	assert.Equal(t, 64, g.Image[0].Bounds().Dx())

	r, gg, b, _ := g.Image[2].At(10, 10).RGBA()
	assert.Equal(t, []uint32{0xffff, 0, 0}, []uint32{r, gg, b})
}

func TestGenerateScalesDown(t *testing.T) {
	out := filepath.Join(t.TempDir(), "wide.gif")
	_, err := Generate([]image.Image{solid(200, 100, color.White)}, out, Options{MaxWidth: 50})
	require.NoError(t, err)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	g, err := gif.DecodeAll(f)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(50, 25), g.Image[0].Bounds().Size())
	assert.Equal(t, []int{1}, g.Delay)
}

func TestGenerateNoFrames(t *testing.T) {
	_, err := Generate(nil, filepath.Join(t.TempDir(), "x.gif"), DefaultOptions())
	assert.Error(t, err)
}

func TestPaletteKeepsRed(t *testing.T) {
	p := generatePalette([]image.Image{solid(8, 8, color.White)})
	assert.Len(t, p, 256)
	assert.Equal(t, color.RGBA{R: 255, A: 255}, p[0])
}
