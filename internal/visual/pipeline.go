package visual

import (
	"context"
	"errors"
	"image"
	"time"

	"go.uber.org/zap"

	"github.com/v0xg/uicheck/internal/gifgen"
	"github.com/v0xg/uicheck/internal/imagediff"
)

// DefaultSettle is how long the UI gets to settle before a capture
const DefaultSettle = 2 * time.Second

// Outcome describes one visual check
type Outcome struct {
	TestName        string
	CurrentPath     string
	BaselinePath    string
	BaselineCreated bool
	Result          *imagediff.Result // nil when no comparison ran
	FlickerPath     string
}

// Pipeline runs visual regression checks against a Store
type Pipeline struct {
	store     *Store
	threshold float64
	settle    time.Duration
	flicker   bool
	logger    *zap.Logger
}

// PipelineOption configures a Pipeline
type PipelineOption func(*Pipeline)

// WithSettle sets the default wait before capturing; 0 disables it
func WithSettle(d time.Duration) PipelineOption {
	return func(p *Pipeline) { p.settle = max(d, 0) }
}

// WithFlicker toggles the comparison GIF written for regressions
func WithFlicker(enabled bool) PipelineOption {
	return func(p *Pipeline) { p.flicker = enabled }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) PipelineOption {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// RunOption adjusts a single Run or Check call
type RunOption func(*runConfig)

type runConfig struct {
	settle time.Duration
}

// Settle overrides the pipeline's settle wait for one call; 0 disables it
func Settle(d time.Duration) RunOption {
	return func(c *runConfig) { c.settle = max(d, 0) }
}

// NewPipeline creates a pipeline comparing at imagediff.DefaultThreshold
func NewPipeline(store *Store, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		store:     store,
		threshold: imagediff.DefaultThreshold,
		settle:    DefaultSettle,
		flicker:   true,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run checks name and only logs what it finds. Regressions and failures
// never reach the caller.
func (p *Pipeline) Run(ctx context.Context, page Screenshotter, name string, opts ...RunOption) {
	log := p.logger.With(zap.String("test", name))

	out, err := p.Check(ctx, page, name, opts...)
	if err != nil {
		log.Error("Visual test could not run.", zap.Error(err))
		return
	}

	switch {
	case out.BaselineCreated:
		log.Info("Baseline created.", zap.String("baseline", out.BaselinePath))
	case out.Result == nil:
		log.Info("Baseline appeared concurrently, skipping comparison.", zap.String("baseline", out.BaselinePath))
	case out.Result.Identical:
		log.Info("Screenshot matches baseline.")
	default:
		fields := []zap.Field{
			zap.Int("diff_pixels", out.Result.DiffPixels),
			zap.Float64("diff_ratio", out.Result.Ratio()),
			zap.String("diff", out.Result.DiffPath),
		}
		if out.FlickerPath != "" {
			fields = append(fields, zap.String("flicker", out.FlickerPath))
		}
		log.Error("Visual regression detected.", fields...)
	}
}

// Check is Run without the fail-soft wrapper: every error is returned
func (p *Pipeline) Check(ctx context.Context, page Screenshotter, name string, opts ...RunOption) (*Outcome, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	rc := runConfig{settle: p.settle}
	for _, opt := range opts {
		opt(&rc)
	}
	if err := settle(ctx, rc.settle); err != nil {
		return nil, err
	}

	out := &Outcome{
		TestName:     name,
		CurrentPath:  p.store.CurrentPath(name),
		BaselinePath: p.store.BaselinePath(name),
	}

	if !p.store.Exists(name) {
		if err := Capture(ctx, page, out.CurrentPath); err != nil {
			return nil, err
		}
		created, err := p.store.CreateIfAbsent(name, out.CurrentPath)
		if err != nil {
			return nil, err
		}
		out.BaselineCreated = created
		return out, nil
	}

	if err := Capture(ctx, page, out.CurrentPath); err != nil {
		return nil, err
	}

	diffPath := p.store.DiffPath(name)
	res, err := imagediff.Compare(out.BaselinePath, out.CurrentPath, diffPath, p.threshold)
	if errors.Is(err, imagediff.ErrDimensionMismatch) {
		return nil, err
	}
	if err != nil {
		return nil, &IOError{Op: "compare", Path: diffPath, Err: err}
	}
	out.Result = &res

	if !res.Identical && p.flicker {
		out.FlickerPath = p.writeFlicker(name, out)
	}
	return out, nil
}

func settle(ctx context.Context, d time.Duration) error {
	if d == 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// writeFlicker returns the GIF path, or "" when it could not be written
func (p *Pipeline) writeFlicker(name string, out *Outcome) string {
	path := p.store.FlickerPath(name)
	log := p.logger.With(zap.String("test", name))

	var imgs [3]image.Image
	for i, f := range []string{out.BaselinePath, out.CurrentPath, out.Result.DiffPath} {
		img, err := imagediff.Load(f)
		if err != nil {
			log.Warn("Skipping flicker animation.", zap.Error(err))
			return ""
		}
		imgs[i] = img
	}

	if _, err := gifgen.Flicker(imgs[0], imgs[1], imgs[2], path, gifgen.DefaultOptions()); err != nil {
		log.Warn("Skipping flicker animation.", zap.Error(err))
		return ""
	}
	return path
}
