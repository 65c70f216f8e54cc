package wait

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/v0xg/uicheck/internal/engine"
	"github.com/v0xg/uicheck/internal/selector"
)

// DefaultTimeout applies when a request carries no positive timeout
const DefaultTimeout = 30 * time.Second

// Outcome reports which side of the race won
type Outcome int

const (
	Reached Outcome = iota
	TimedOut
)

func (o Outcome) String() string {
	if o == TimedOut {
		return "timed out"
	}
	return "reached"
}

// Request describes what to wait for
type Request struct {
	Selector string
	State    engine.WaitState
	Timeout  time.Duration // <= 0 uses the engine's default
}

// Result carries the translated query so callers can reuse it
type Result struct {
	Query   selector.Query
	Outcome Outcome
	Elapsed time.Duration
}

// Engine races element conditions against a timeout
type Engine struct {
	translator     selector.Translator
	defaultTimeout time.Duration
	logger         *zap.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithTranslator overrides the selector translator
func WithTranslator(t selector.Translator) Option {
	return func(e *Engine) { e.translator = t }
}

// WithDefaultTimeout overrides DefaultTimeout
func WithDefaultTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.defaultTimeout = d
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates a wait engine
func New(opts ...Option) *Engine {
	e := &Engine{
		translator:     selector.New(""),
		defaultTimeout: DefaultTimeout,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Translator returns the translator used for requests
func (e *Engine) Translator() selector.Translator { return e.translator }

// Timeout resolves the effective timeout for d
func (e *Engine) Timeout(d time.Duration) time.Duration {
	if d <= 0 {
		return e.defaultTimeout
	}
	return d
}

// Await starts the engine's condition poll and a timer and returns as soon as
// either finishes. A timeout is reported as TimedOut with a nil error; only an
// invalid selector, an engine fault or a done ctx produce an error. The losing
// side is stopped before Await returns.
func (e *Engine) Await(ctx context.Context, page engine.Page, req Request) (Result, error) {
	q, err := e.translator.Translate(req.Selector)
	if err != nil {
		return Result{}, err
	}
	timeout := e.Timeout(req.Timeout)

	pollCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- page.WaitFor(pollCtx, q, req.State)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	start := time.Now()
	res := Result{Query: q}

	select {
	case err := <-done:
		res.Elapsed = time.Since(start)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			return res, fmt.Errorf("failed to wait for %s to be %s: %w", req.Selector, req.State, err)
		}
		res.Outcome = Reached
		e.logger.Debug("Element reached state.",
			zap.String("selector", req.Selector),
			zap.Stringer("state", req.State),
			zap.Duration("elapsed", res.Elapsed))
		return res, nil
	case <-timer.C:
		// done is buffered, the poll exits on its own once cancel runs
		cancel()
		res.Elapsed = time.Since(start)
		res.Outcome = TimedOut
		e.logger.Info("Timed out waiting for element.",
			zap.String("selector", req.Selector),
			zap.Stringer("state", req.State),
			zap.Duration("timeout", timeout))
		return res, nil
	case <-ctx.Done():
		res.Elapsed = time.Since(start)
		return res, ctx.Err()
	}
}
