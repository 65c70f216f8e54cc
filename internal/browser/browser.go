package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// Options configures the browser
type Options struct {
	Width      int
	Height     int
	Headless   bool
	FullPage   bool          // screenshots cover the whole document, not just the viewport
	Offscreen  bool          // visible elements need not intersect the viewport
	NavTimeout time.Duration // bound on navigation and load
	ProfileDir string        // Chrome/Chromium profile directory for authenticated sessions
	Logger     *zap.Logger
}

// Browser wraps a launched Chromium
type Browser struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	opts     Options
	logger   *zap.Logger
}

// Launch starts Chromium and connects to it
func Launch(opts Options) (*Browser, error) {
	if opts.NavTimeout == 0 {
		opts.NavTimeout = 30 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	l := launcher.New().Headless(opts.Headless)
	if path, ok := launcher.LookPath(); ok {
		l = l.Bin(path)
	}
	if opts.ProfileDir != "" {
		l = l.UserDataDir(opts.ProfileDir)
	}

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}
	logger.Debug("Browser launched.", zap.String("control_url", u), zap.Bool("headless", opts.Headless))

	return &Browser{launcher: l, browser: b, opts: opts, logger: logger}, nil
}

// Close cleans up browser resources
func (b *Browser) Close() {
	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			b.logger.Debug("Browser close failed.", zap.Error(err))
		}
	}
	if b.launcher != nil {
		b.launcher.Kill()
		b.launcher.Cleanup()
	}
}

// NewPage opens a tab, sets the viewport and loads url. Each worker should
// own its own page.
func (b *Browser) NewPage(ctx context.Context, url string) (*Page, error) {
	rp, err := b.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	err = rp.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             b.opts.Width,
		Height:            b.opts.Height,
		DeviceScaleFactor: 1,
	})
	if err != nil {
		rp.Close()
		return nil, fmt.Errorf("failed to set viewport: %w", err)
	}

	p := &Page{page: rp, fullPage: b.opts.FullPage, offscreen: b.opts.Offscreen, navTimeout: b.opts.NavTimeout, logger: b.logger}
	if url != "" {
		if err := p.Navigate(ctx, url); err != nil {
			p.Close()
			return nil, err
		}
	}
	return p, nil
}
