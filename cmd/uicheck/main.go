package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/v0xg/uicheck/internal/browser"
	"github.com/v0xg/uicheck/internal/config"
	"github.com/v0xg/uicheck/internal/element"
	"github.com/v0xg/uicheck/internal/selector"
	"github.com/v0xg/uicheck/internal/wait"
)

var (
	configPath string
	reportRoot string
	width      int
	height     int
	headed     bool
	fullPage   bool
	workers    int
	profile    string
	verbose    bool
)

func main() {
	// Load .env file if present (silently ignore if not found)
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "uicheck",
		Short: "Wait for UI elements and catch visual regressions in a real browser",
		Long: `uicheck drives Chromium to wait for elements by test id or XPath and
compares screenshots against stored baselines.

Example:
  uicheck visual "https://myapp.com/login" login-page
  uicheck wait "https://myapp.com" "#submit-btn" --state visible --timeout 5s`,
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "YAML config file")
	pf.StringVar(&reportRoot, "root", "", "Report root holding baseline/, current/ and diff/")
	pf.IntVar(&width, "width", 0, "Viewport width")
	pf.IntVar(&height, "height", 0, "Viewport height")
	pf.BoolVar(&headed, "headed", false, "Show the browser window")
	pf.BoolVar(&fullPage, "full-page", false, "Capture the whole document instead of the viewport")
	pf.IntVar(&workers, "workers", 0, "Parallel visual test workers")
	pf.StringVar(&profile, "profile", "", "Chrome/Chromium profile directory for authenticated sessions (close browser first)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Show detailed progress")

	rootCmd.AddCommand(visualCmd(), waitCmd(), textCmd(), diffCmd(), baselineCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig layers flags over the file and environment settings
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("root") {
		cfg.ReportRoot = reportRoot
	}
	if flags.Changed("width") {
		cfg.Width = width
	}
	if flags.Changed("height") {
		cfg.Height = height
	}
	if flags.Changed("headed") {
		cfg.Headless = !headed
	}
	if flags.Changed("full-page") {
		cfg.FullPage = fullPage
	}
	if flags.Changed("workers") {
		cfg.Workers = workers
	}
	if flags.Changed("profile") {
		cfg.ProfileDir = profile
	}
	return cfg, cfg.Validate()
}

func newLogger() (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
		cfg.DisableCaller = true
	}
	return cfg.Build()
}

// session bundles what every browser-backed command needs
type session struct {
	cfg     config.Config
	logger  *zap.Logger
	browser *browser.Browser
	waiter  *wait.Engine
}

func openSession(cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger()
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}

	b, err := browser.Launch(browser.Options{
		Width:      cfg.Width,
		Height:     cfg.Height,
		Headless:   cfg.Headless,
		FullPage:   cfg.FullPage,
		Offscreen:  cfg.VisibleOffscreen,
		NavTimeout: cfg.DefaultTimeout,
		ProfileDir: cfg.ProfileDir,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	waiter := wait.New(
		wait.WithTranslator(selector.New(cfg.TestAttribute)),
		wait.WithDefaultTimeout(cfg.DefaultTimeout),
		wait.WithLogger(logger),
	)
	return &session{cfg: cfg, logger: logger, browser: b, waiter: waiter}, nil
}

func (s *session) Close() {
	s.browser.Close()
	_ = s.logger.Sync()
}

func (s *session) accessor(p *browser.Page) *element.Accessor {
	return element.New(p, s.waiter, s.logger)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func formatDuration(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
