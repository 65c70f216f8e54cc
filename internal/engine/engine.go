// Package engine declares the capabilities the test layer needs from a
// browser automation engine. The rod-backed implementation lives in
// internal/browser; tests use enginetest.
package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/v0xg/uicheck/internal/selector"
)

// WaitState is the readiness condition an element must reach before interaction
type WaitState int

const (
	Present WaitState = iota
	Visible
	Invisible
)

func (s WaitState) String() string {
	switch s {
	case Present:
		return "present"
	case Visible:
		return "visible"
	case Invisible:
		return "invisible"
	default:
		return fmt.Sprintf("WaitState(%d)", int(s))
	}
}

// ParseWaitState parses the names produced by String
func ParseWaitState(s string) (WaitState, error) {
	switch strings.ToLower(s) {
	case "present", "attached":
		return Present, nil
	case "visible":
		return Visible, nil
	case "invisible", "hidden":
		return Invisible, nil
	default:
		return 0, fmt.Errorf("unknown wait state: %s (supported: present, visible, invisible)", s)
	}
}

// Page is a single browser page or tab
type Page interface {
	// WaitFor blocks until the query reaches state, polling inside the engine.
	// It returns ctx.Err() once ctx is done.
	WaitFor(ctx context.Context, q selector.Query, state WaitState) error

	// Query runs the query once and returns the first match, without waiting
	Query(ctx context.Context, q selector.Query) (Element, bool, error)

	// QueryAll runs the query once and returns every match
	QueryAll(ctx context.Context, q selector.Query) ([]Element, error)

	// Screenshot captures the current viewport as PNG bytes
	Screenshot(ctx context.Context) ([]byte, error)
}

// Element is a live DOM node borrowed for the duration of one action
type Element interface {
	Click(ctx context.Context) error
	Hover(ctx context.Context) error
	Type(ctx context.Context, text string) error
	Clear(ctx context.Context) error
	Press(ctx context.Context, key string) error
	SelectOption(ctx context.Context, values ...string) error
	SetChecked(ctx context.Context, checked bool) error

	Text(ctx context.Context) (string, error)
	Property(ctx context.Context, name string) (string, error)
	Visible(ctx context.Context) (bool, error)
	Enabled(ctx context.Context) (bool, error)
	Checked(ctx context.Context) (bool, error)
}
