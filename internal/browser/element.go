package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"

	"github.com/v0xg/uicheck/internal/engine"
)

// Element adapts a rod element to engine.Element
type Element struct {
	el *rod.Element
}

var _ engine.Element = (*Element)(nil)

func (e *Element) with(ctx context.Context) *rod.Element { return e.el.Context(ctx) }

func (e *Element) Click(ctx context.Context) error {
	return e.with(ctx).Click(proto.InputMouseButtonLeft, 1)
}

func (e *Element) Hover(ctx context.Context) error {
	return e.with(ctx).Hover()
}

func (e *Element) Type(ctx context.Context, text string) error {
	return e.with(ctx).Input(text)
}

func (e *Element) Clear(ctx context.Context) error {
	el := e.with(ctx)
	if err := el.SelectAllText(); err != nil {
		return err
	}
	return el.Input("")
}

func (e *Element) Press(ctx context.Context, key string) error {
	k, err := parseKey(key)
	if errors.Is(err, errOffKeyboard) {
		return e.with(ctx).Input(key)
	}
	if err != nil {
		return err
	}
	return e.with(ctx).Type(k)
}

func (e *Element) SelectOption(ctx context.Context, values ...string) error {
	return e.with(ctx).Select(values, true, rod.SelectorTypeText)
}

func (e *Element) SetChecked(ctx context.Context, checked bool) error {
	current, err := e.Checked(ctx)
	if err != nil {
		return err
	}
	if current == checked {
		return nil
	}
	return e.Click(ctx)
}

func (e *Element) Text(ctx context.Context) (string, error) {
	return e.with(ctx).Text()
}

func (e *Element) Property(ctx context.Context, name string) (string, error) {
	v, err := e.property(ctx, name)
	if err != nil {
		return "", err
	}
	if v.Nil() {
		return "", nil
	}
	return v.String(), nil
}

func (e *Element) property(ctx context.Context, name string) (gson.JSON, error) {
	v, err := e.with(ctx).Property(name)
	if err != nil {
		return gson.JSON{}, fmt.Errorf("failed to read property %s: %w", name, err)
	}
	return v, nil
}

func (e *Element) Visible(ctx context.Context) (bool, error) {
	return e.with(ctx).Visible()
}

func (e *Element) Enabled(ctx context.Context) (bool, error) {
	v, err := e.property(ctx, "disabled")
	if err != nil {
		return false, err
	}
	return !v.Bool(), nil
}

func (e *Element) Checked(ctx context.Context) (bool, error) {
	v, err := e.property(ctx, "checked")
	if err != nil {
		return false, err
	}
	return v.Bool(), nil
}

var namedKeys = map[string]input.Key{
	"enter":      input.Enter,
	"tab":        input.Tab,
	"escape":     input.Escape,
	"esc":        input.Escape,
	"backspace":  input.Backspace,
	"delete":     input.Delete,
	"space":      input.Key(' '),
	"home":       input.Home,
	"end":        input.End,
	"pageup":     input.PageUp,
	"pagedown":   input.PageDown,
	"arrowup":    input.ArrowUp,
	"arrowdown":  input.ArrowDown,
	"arrowleft":  input.ArrowLeft,
	"arrowright": input.ArrowRight,
}

// errOffKeyboard marks a printable character with no key in rod's keymap.
// It can be inserted as text but not pressed.
var errOffKeyboard = errors.New("character has no keyboard key")

// parseKey accepts a key name such as "Enter" or a single character
func parseKey(key string) (input.Key, error) {
	if k, ok := namedKeys[strings.ToLower(key)]; ok && onKeyboard(k) {
		return k, nil
	}
	r := []rune(key)
	if len(r) != 1 {
		return 0, fmt.Errorf("unknown key: %q", key)
	}
	k := input.Key(r[0])
	if onKeyboard(k) {
		return k, nil
	}
	if unicode.IsPrint(r[0]) {
		return 0, fmt.Errorf("%w: %q", errOffKeyboard, key)
	}
	return 0, fmt.Errorf("unknown key: %q", key)
}

// onKeyboard reports whether rod knows k. Key.Info panics for undefined keys.
func onKeyboard(k input.Key) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	k.Info()
	return true
}
