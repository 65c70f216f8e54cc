package element

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/v0xg/uicheck/internal/engine"
	"github.com/v0xg/uicheck/internal/wait"
)

// Accessor resolves logical selectors to live elements on one page.
// Handles are never cached; every call re-resolves.
type Accessor struct {
	page   engine.Page
	waiter *wait.Engine
	logger *zap.Logger
}

// New creates an accessor for page. A nil waiter uses wait.New().
func New(page engine.Page, waiter *wait.Engine, logger *zap.Logger) *Accessor {
	if waiter == nil {
		waiter = wait.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Accessor{page: page, waiter: waiter, logger: logger}
}

type lookup struct {
	state   engine.WaitState
	timeout time.Duration
}

// Option adjusts how an element is looked up
type Option func(*lookup)

// WithState sets the readiness condition, engine.Visible by default
func WithState(s engine.WaitState) Option {
	return func(l *lookup) { l.state = s }
}

// WithTimeout bounds the wait, the wait engine's default when <= 0
func WithTimeout(d time.Duration) Option {
	return func(l *lookup) { l.timeout = d }
}

func newLookup(state engine.WaitState, opts []Option) lookup {
	l := lookup{state: state}
	for _, opt := range opts {
		opt(&l)
	}
	return l
}

// Get waits for sel and returns its first match. ok is false when nothing
// matched, including after a wait timeout; that is not an error.
func (a *Accessor) Get(ctx context.Context, sel string, opts ...Option) (el engine.Element, ok bool, err error) {
	l := newLookup(engine.Visible, opts)
	res, err := a.waiter.Await(ctx, a.page, wait.Request{Selector: sel, State: l.state, Timeout: l.timeout})
	if err != nil {
		return nil, false, err
	}
	el, ok, err = a.page.Query(ctx, res.Query)
	if err != nil {
		return nil, false, fmt.Errorf("failed to query %s: %w", sel, err)
	}
	if !ok && res.Outcome == wait.TimedOut {
		a.logger.Debug("No element after wait timeout.", zap.String("selector", sel), zap.Stringer("state", l.state))
	}
	return el, ok, nil
}

// GetAll waits for sel and returns every match, empty when nothing matched
func (a *Accessor) GetAll(ctx context.Context, sel string, opts ...Option) ([]engine.Element, error) {
	l := newLookup(engine.Visible, opts)
	res, err := a.waiter.Await(ctx, a.page, wait.Request{Selector: sel, State: l.state, Timeout: l.timeout})
	if err != nil {
		return nil, err
	}
	els, err := a.page.QueryAll(ctx, res.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", sel, err)
	}
	return els, nil
}

// resolve applies the action's absence policy. A nil element with a nil
// error means the miss was swallowed.
func (a *Accessor) resolve(ctx context.Context, action Action, sel string, state engine.WaitState, opts []Option) (engine.Element, error) {
	el, ok, err := a.Get(ctx, sel, append([]Option{WithState(state)}, opts...)...)
	if err != nil {
		return nil, err
	}
	if ok {
		return el, nil
	}
	if PolicyFor(action) == FailSoft {
		a.logger.Error("Element not found, skipping.", zap.String("action", string(action)), zap.String("selector", sel))
		return nil, nil
	}
	return nil, &NotFoundError{Action: action, Selector: sel}
}

func (a *Accessor) do(ctx context.Context, action Action, sel string, opts []Option, fn func(engine.Element) error) error {
	el, err := a.resolve(ctx, action, sel, engine.Visible, opts)
	if err != nil || el == nil {
		return err
	}
	if err := fn(el); err != nil {
		return fmt.Errorf("failed to %s %s: %w", action, sel, err)
	}
	a.logger.Info("Performed action.", zap.String("action", string(action)), zap.String("selector", sel))
	return nil
}

// Click clicks the element
func (a *Accessor) Click(ctx context.Context, sel string, opts ...Option) error {
	return a.do(ctx, ActionClick, sel, opts, func(el engine.Element) error { return el.Click(ctx) })
}

// Hover moves the pointer over the element
func (a *Accessor) Hover(ctx context.Context, sel string, opts ...Option) error {
	return a.do(ctx, ActionHover, sel, opts, func(el engine.Element) error { return el.Hover(ctx) })
}

// Type appends text to the element's value
func (a *Accessor) Type(ctx context.Context, sel, text string, opts ...Option) error {
	return a.do(ctx, ActionType, sel, opts, func(el engine.Element) error { return el.Type(ctx, text) })
}

// Fill clears the element and types text
func (a *Accessor) Fill(ctx context.Context, sel, text string, opts ...Option) error {
	return a.do(ctx, ActionType, sel, opts, func(el engine.Element) error {
		if err := el.Clear(ctx); err != nil {
			return err
		}
		return el.Type(ctx, text)
	})
}

// Clear empties the element's value
func (a *Accessor) Clear(ctx context.Context, sel string, opts ...Option) error {
	return a.do(ctx, ActionClear, sel, opts, func(el engine.Element) error { return el.Clear(ctx) })
}

// Press sends a named key (e.g. "Enter") or a single character to the element
func (a *Accessor) Press(ctx context.Context, sel, key string, opts ...Option) error {
	return a.do(ctx, ActionPress, sel, opts, func(el engine.Element) error { return el.Press(ctx, key) })
}

// Check ticks a checkbox. A missing checkbox is logged, not returned.
func (a *Accessor) Check(ctx context.Context, sel string, opts ...Option) error {
	return a.do(ctx, ActionCheck, sel, opts, func(el engine.Element) error { return el.SetChecked(ctx, true) })
}

// Uncheck clears a checkbox. A missing checkbox is logged, not returned.
func (a *Accessor) Uncheck(ctx context.Context, sel string, opts ...Option) error {
	return a.do(ctx, ActionUncheck, sel, opts, func(el engine.Element) error { return el.SetChecked(ctx, false) })
}

// Select picks a dropdown option by its visible text. A missing dropdown is
// logged, not returned.
func (a *Accessor) Select(ctx context.Context, sel, option string, opts ...Option) error {
	return a.do(ctx, ActionSelect, sel, opts, func(el engine.Element) error { return el.SelectOption(ctx, option) })
}

// Text returns the element's text content
func (a *Accessor) Text(ctx context.Context, sel string, opts ...Option) (string, error) {
	var text string
	err := a.do(ctx, ActionText, sel, opts, func(el engine.Element) (err error) {
		text, err = el.Text(ctx)
		return err
	})
	return text, err
}

// Property returns a DOM property of the element as a string
func (a *Accessor) Property(ctx context.Context, sel, name string, opts ...Option) (string, error) {
	var value string
	err := a.do(ctx, ActionProperty, sel, opts, func(el engine.Element) (err error) {
		value, err = el.Property(ctx, name)
		return err
	})
	return value, err
}

// Value returns the element's value property
func (a *Accessor) Value(ctx context.Context, sel string, opts ...Option) (string, error) {
	return a.Property(ctx, sel, "value", opts...)
}

func (a *Accessor) is(ctx context.Context, action Action, sel string, state engine.WaitState, opts []Option, fn func(engine.Element) (bool, error)) (bool, error) {
	el, err := a.resolve(ctx, action, sel, state, opts)
	if err != nil {
		return false, err
	}
	v, err := fn(el)
	if err != nil {
		return false, fmt.Errorf("failed to read %s of %s: %w", action, sel, err)
	}
	return v, nil
}

// IsPresent reports whether the element is attached to the DOM
func (a *Accessor) IsPresent(ctx context.Context, sel string, opts ...Option) (bool, error) {
	return a.is(ctx, ActionIsPresent, sel, engine.Present, opts, func(engine.Element) (bool, error) { return true, nil })
}

// IsVisible reports whether the element is rendered
func (a *Accessor) IsVisible(ctx context.Context, sel string, opts ...Option) (bool, error) {
	return a.is(ctx, ActionIsVisible, sel, engine.Visible, opts, func(el engine.Element) (bool, error) { return el.Visible(ctx) })
}

// IsEnabled reports whether the element is not disabled
func (a *Accessor) IsEnabled(ctx context.Context, sel string, opts ...Option) (bool, error) {
	return a.is(ctx, ActionIsEnabled, sel, engine.Visible, opts, func(el engine.Element) (bool, error) { return el.Enabled(ctx) })
}

// IsChecked reports whether a checkbox or radio is checked. The input only
// has to be present, not visible.
func (a *Accessor) IsChecked(ctx context.Context, sel string, opts ...Option) (bool, error) {
	return a.is(ctx, ActionIsChecked, sel, engine.Present, opts, func(el engine.Element) (bool, error) { return el.Checked(ctx) })
}
