package visual

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/v0xg/uicheck/internal/engine/enginetest"
	"github.com/v0xg/uicheck/internal/imagediff"
)

var fixedDay = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func pngBytes(t *testing.T, w, h int, block image.Rectangle) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{R: 255, G: 255, B: 255, A: 255}
			if (image.Point{X: x, Y: y}).In(block) {
				c = color.NRGBA{A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newPipeline(t *testing.T) (*Pipeline, *Store, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.InfoLevel)
	store := NewStore(t.TempDir(), WithClock(func() time.Time { return fixedDay }))
	return NewPipeline(store, WithSettle(0), WithLogger(zap.New(core))), store, logs
}

func TestStorePaths(t *testing.T) {
	s := NewStore("reports", WithClock(func() time.Time { return fixedDay }))
	assert.Equal(t, filepath.Join("reports", "baseline", "login-baseline.png"), s.BaselinePath("login"))
	assert.Equal(t, filepath.Join("reports", "current", "login-current-2026-03-14.png"), s.CurrentPath("login"))
	assert.Equal(t, filepath.Join("reports", "diff", "login-diff-2026-03-14.png"), s.DiffPath("login"))
	assert.Equal(t, filepath.Join("reports", "diff", "login-flicker-2026-03-14.gif"), s.FlickerPath("login"))
}

func TestStorePathsChangeWithDay(t *testing.T) {
	day := fixedDay
	s := NewStore("r", WithClock(func() time.Time { return day }))
	first := s.CurrentPath("home")
	day = day.Add(24 * time.Hour)
	assert.NotEqual(t, first, s.CurrentPath("home"))
	assert.NotEqual(t, s.CurrentPath("home"), s.CurrentPath("cart"))
}

func TestValidateName(t *testing.T) {
	for _, name := range []string{"login", "checkout-step-2", "Home Page"} {
		assert.NoError(t, ValidateName(name), name)
	}
	for _, name := range []string{"", ".", "..", "a/b", `a\b`, "../escape"} {
		assert.ErrorIs(t, ValidateName(name), ErrInvalidTestName, name)
	}
}

func TestCreateIfAbsentIsExclusive(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	src := filepath.Join(dir, "src.png")
	require.NoError(t, os.WriteFile(src, []byte("first"), 0o644))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			created, err := s.CreateIfAbsent("race", src)
			assert.NoError(t, err)
			if created {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, winners)
	assert.True(t, s.Exists("race"))

	other := filepath.Join(dir, "other.png")
	require.NoError(t, os.WriteFile(other, []byte("second"), 0o644))
	created, err := s.CreateIfAbsent("race", other)
	require.NoError(t, err)
	assert.False(t, created)

	data, err := os.ReadFile(s.BaselinePath("race"))
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
}

func TestCreateIfAbsentPublishesCompleteFile(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	src := filepath.Join(dir, "big.png")
	want := bytes.Repeat([]byte("baseline"), 1<<17)
	require.NoError(t, os.WriteFile(src, want, 0o644))

	done := make(chan struct{})
	var short []int
	go func() {
		defer close(done)
		for {
			if s.Exists("big") {
				data, err := os.ReadFile(s.BaselinePath("big"))
				if err == nil && len(data) != len(want) {
					short = append(short, len(data))
				}
				return
			}
		}
	}()

	created, err := s.CreateIfAbsent("big", src)
	require.NoError(t, err)
	assert.True(t, created)
	<-done
	assert.Empty(t, short, "baseline visible before it was fully written")

	created, err = s.CreateIfAbsent("big", src)
	require.NoError(t, err)
	assert.False(t, created)

	entries, err := os.ReadDir(filepath.Join(dir, "baseline"))
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temporary files left behind")
	assert.Equal(t, "big-baseline.png", entries[0].Name())
}

func TestCreateIfAbsentMissingSource(t *testing.T) {
	s := NewStore(t.TempDir())
	_, err := s.CreateIfAbsent("x", filepath.Join(t.TempDir(), "nope.png"))
	assert.ErrorIs(t, err, ErrIO)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.False(t, s.Exists("x"))
}

func TestCapture(t *testing.T) {
	page := enginetest.NewPage()
	page.SetScreenshot([]byte("png"), nil)
	dest := filepath.Join(t.TempDir(), "a", "b", "shot.png")

	require.NoError(t, Capture(context.Background(), page, dest))
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))
}

func TestCaptureFailures(t *testing.T) {
	page := enginetest.NewPage()
	page.Close()
	err := Capture(context.Background(), page, filepath.Join(t.TempDir(), "x.png"))
	assert.ErrorIs(t, err, enginetest.ErrPageClosed)

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	page = enginetest.NewPage()
	err = Capture(context.Background(), page, filepath.Join(blocker, "x.png"))
	assert.ErrorIs(t, err, ErrIO)
}

func TestFirstRunCreatesBaseline(t *testing.T) {
	p, store, logs := newPipeline(t)
	page := enginetest.NewPage()
	page.SetScreenshot(pngBytes(t, 20, 20, image.Rectangle{}), nil)

	out, err := p.Check(context.Background(), page, "home")
	require.NoError(t, err)
	assert.True(t, out.BaselineCreated)
	assert.Nil(t, out.Result)
	assert.FileExists(t, store.BaselinePath("home"))
	assert.FileExists(t, store.CurrentPath("home"))
	assert.NoDirExists(t, filepath.Join(store.Root(), "diff"))

	baselines, err := os.ReadDir(filepath.Join(store.Root(), "baseline"))
	require.NoError(t, err)
	assert.Len(t, baselines, 1)
	assert.Zero(t, logs.Len())
}

func TestRunMatchesBaseline(t *testing.T) {
	p, store, logs := newPipeline(t)
	page := enginetest.NewPage()
	page.SetScreenshot(pngBytes(t, 20, 20, image.Rectangle{}), nil)

	p.Run(context.Background(), page, "home")
	assert.Equal(t, 1, logs.FilterMessage("Baseline created.").Len())

	p.Run(context.Background(), page, "home")
	assert.Equal(t, 1, logs.FilterMessage("Screenshot matches baseline.").Len())
	assert.FileExists(t, store.DiffPath("home"))
	assert.NoFileExists(t, store.FlickerPath("home"))
}

func TestRunLogsRegression(t *testing.T) {
	p, store, logs := newPipeline(t)
	page := enginetest.NewPage()
	page.SetScreenshot(pngBytes(t, 100, 100, image.Rectangle{}), nil)
	p.Run(context.Background(), page, "cart")

	page.SetScreenshot(pngBytes(t, 100, 100, image.Rect(10, 10, 20, 20)), nil)
	p.Run(context.Background(), page, "cart")

	entries := logs.FilterMessage("Visual regression detected.").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.EqualValues(t, 100, fields["diff_pixels"])
	assert.Equal(t, store.DiffPath("cart"), fields["diff"])
	assert.Equal(t, store.FlickerPath("cart"), fields["flicker"])
	assert.FileExists(t, store.FlickerPath("cart"))

	baseline, err := os.ReadFile(store.BaselinePath("cart"))
	require.NoError(t, err)
	assert.Equal(t, pngBytes(t, 100, 100, image.Rectangle{}), baseline, "baseline untouched")
}

func TestCheckWithoutFlicker(t *testing.T) {
	core, _ := observer.New(zapcore.InfoLevel)
	store := NewStore(t.TempDir(), WithClock(func() time.Time { return fixedDay }))
	p := NewPipeline(store, WithSettle(0), WithFlicker(false), WithLogger(zap.New(core)))
	page := enginetest.NewPage()
	page.SetScreenshot(pngBytes(t, 30, 30, image.Rectangle{}), nil)
	_, err := p.Check(context.Background(), page, "menu")
	require.NoError(t, err)

	page.SetScreenshot(pngBytes(t, 30, 30, image.Rect(0, 0, 5, 5)), nil)
	out, err := p.Check(context.Background(), page, "menu")
	require.NoError(t, err)
	require.NotNil(t, out.Result)
	assert.Equal(t, 25, out.Result.DiffPixels)
	assert.Empty(t, out.FlickerPath)
	assert.NoFileExists(t, store.FlickerPath("menu"))
}

func TestCheckDimensionMismatch(t *testing.T) {
	p, store, logs := newPipeline(t)
	page := enginetest.NewPage()
	page.SetScreenshot(pngBytes(t, 20, 20, image.Rectangle{}), nil)
	p.Run(context.Background(), page, "resize")

	page.SetScreenshot(pngBytes(t, 20, 10, image.Rectangle{}), nil)
	_, err := p.Check(context.Background(), page, "resize")
	assert.ErrorIs(t, err, imagediff.ErrDimensionMismatch)
	assert.NoFileExists(t, store.DiffPath("resize"))

	p.Run(context.Background(), page, "resize")
	assert.Equal(t, 1, logs.FilterMessage("Visual test could not run.").Len())
}

func TestRunSwallowsEngineFailure(t *testing.T) {
	p, store, logs := newPipeline(t)
	page := enginetest.NewPage()
	page.Close()

	assert.NotPanics(t, func() { p.Run(context.Background(), page, "closed") })
	assert.Equal(t, 1, logs.FilterMessage("Visual test could not run.").Len())
	assert.False(t, store.Exists("closed"))
}

func TestCheckSettlesAndHonoursContext(t *testing.T) {
	store := NewStore(t.TempDir())
	page := enginetest.NewPage()
	page.SetScreenshot(pngBytes(t, 4, 4, image.Rectangle{}), nil)

	p := NewPipeline(store, WithSettle(50*time.Millisecond))
	start := time.Now()
	_, err := p.Check(context.Background(), page, "settle")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewPipeline(store).Check(ctx, page, "settle")
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestCheckRejectsBadName(t *testing.T) {
	p, _, _ := newPipeline(t)
	_, err := p.Check(context.Background(), enginetest.NewPage(), "../x")
	assert.ErrorIs(t, err, ErrInvalidTestName)
}

func TestCheckSettleOverridePerCall(t *testing.T) {
	store := NewStore(t.TempDir())
	page := enginetest.NewPage()
	page.SetScreenshot(pngBytes(t, 4, 4, image.Rectangle{}), nil)
	p := NewPipeline(store, WithSettle(time.Hour))

	start := time.Now()
	out, err := p.Check(context.Background(), page, "quick", Settle(0))
	require.NoError(t, err)
	assert.True(t, out.BaselineCreated)
	assert.Less(t, time.Since(start), time.Second)

	start = time.Now()
	_, err = p.Check(context.Background(), page, "quick", Settle(40*time.Millisecond))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestCheckReportsCompareFailuresAsIO(t *testing.T) {
	p, store, logs := newPipeline(t)
	page := enginetest.NewPage()
	page.SetScreenshot(pngBytes(t, 10, 10, image.Rectangle{}), nil)
	p.Run(context.Background(), page, "blocked")

	// a directory where the diff image belongs cannot be written over
	require.NoError(t, os.MkdirAll(store.DiffPath("blocked"), 0o755))
	_, err := p.Check(context.Background(), page, "blocked")
	assert.ErrorIs(t, err, ErrIO)
	assert.NotErrorIs(t, err, imagediff.ErrDimensionMismatch)

	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, store.DiffPath("blocked"), ioErr.Path)

	require.NoError(t, os.WriteFile(store.BaselinePath("blocked"), []byte("not a png"), 0o644))
	_, err = p.Check(context.Background(), page, "blocked")
	assert.ErrorIs(t, err, ErrIO)

	p.Run(context.Background(), page, "blocked")
	assert.Equal(t, 1, logs.FilterMessage("Visual test could not run.").Len())
}
