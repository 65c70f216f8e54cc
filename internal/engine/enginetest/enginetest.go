// Package enginetest provides an in-memory engine.Page for tests.
package enginetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/v0xg/uicheck/internal/engine"
	"github.com/v0xg/uicheck/internal/selector"
)

// ErrPageClosed mimics an engine fault such as a closed target
var ErrPageClosed = errors.New("page closed")

// Node is a fake DOM node
type Node struct {
	mu sync.Mutex

	TextContent string
	Props       map[string]string
	Hidden      bool
	Disabled    bool
	IsChecked   bool
	Selected    []string
	ActionErr   error

	attachAt time.Time
	calls    []string
}

// Calls returns the actions performed on the node, e.g. "click", "type:abc"
func (n *Node) Calls() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.calls...)
}

// SetHidden toggles visibility while a wait may be polling
func (n *Node) SetHidden(hidden bool) {
	n.mu.Lock()
	n.Hidden = hidden
	n.mu.Unlock()
}

func (n *Node) record(call string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.ActionErr != nil {
		return n.ActionErr
	}
	n.calls = append(n.calls, call)
	return nil
}

func (n *Node) hidden() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.Hidden
}

// Page is a fake engine.Page keyed by query expression
type Page struct {
	PollInterval time.Duration

	mu            sync.Mutex
	nodes         map[string][]*Node
	closed        bool
	screenshot    []byte
	screenshotErr error

	polls  atomic.Int64
	active atomic.Int64
}

var _ engine.Page = (*Page)(nil)

// NewPage returns an empty page polling every 5ms
func NewPage() *Page {
	return &Page{
		PollInterval: 5 * time.Millisecond,
		nodes:        make(map[string][]*Node),
	}
}

// Add attaches nodes matching expr immediately
func (p *Page) Add(expr string, nodes ...*Node) {
	p.AddAfter(expr, 0, nodes...)
}

// AddAfter attaches nodes matching expr once d has elapsed
func (p *Page) AddAfter(expr string, d time.Duration, nodes ...*Node) {
	at := time.Now().Add(d)
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, n := range nodes {
		n.attachAt = at
	}
	p.nodes[expr] = append(p.nodes[expr], nodes...)
}

// Remove detaches every node matching expr
func (p *Page) Remove(expr string) {
	p.mu.Lock()
	delete(p.nodes, expr)
	p.mu.Unlock()
}

// Close makes every further call fail with ErrPageClosed
func (p *Page) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

// SetScreenshot configures what Screenshot returns
func (p *Page) SetScreenshot(png []byte, err error) {
	p.mu.Lock()
	p.screenshot = png
	p.screenshotErr = err
	p.mu.Unlock()
}

// ActiveWaits reports WaitFor calls still polling
func (p *Page) ActiveWaits() int64 { return p.active.Load() }

// Polls reports the total number of condition evaluations
func (p *Page) Polls() int64 { return p.polls.Load() }

func (p *Page) attached(expr string) ([]*Node, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrPageClosed
	}
	now := time.Now()
	var out []*Node
	for _, n := range p.nodes[expr] {
		if !n.attachAt.After(now) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (p *Page) reached(q selector.Query, state engine.WaitState) (bool, error) {
	p.polls.Add(1)
	nodes, err := p.attached(q.Expr)
	if err != nil {
		return false, err
	}
	switch state {
	case engine.Present:
		return len(nodes) > 0, nil
	case engine.Visible:
		return len(nodes) > 0 && !nodes[0].hidden(), nil
	case engine.Invisible:
		return len(nodes) == 0 || nodes[0].hidden(), nil
	default:
		return false, fmt.Errorf("unknown wait state: %v", state)
	}
}

func (p *Page) WaitFor(ctx context.Context, q selector.Query, state engine.WaitState) error {
	p.active.Add(1)
	defer p.active.Add(-1)

	ticker := time.NewTicker(p.PollInterval)
	defer ticker.Stop()
	for {
		ok, err := p.reached(q, state)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Page) Query(ctx context.Context, q selector.Query) (engine.Element, bool, error) {
	nodes, err := p.attached(q.Expr)
	if err != nil {
		return nil, false, err
	}
	if len(nodes) == 0 {
		return nil, false, nil
	}
	return nodes[0], true, nil
}

func (p *Page) QueryAll(ctx context.Context, q selector.Query) ([]engine.Element, error) {
	nodes, err := p.attached(q.Expr)
	if err != nil {
		return nil, err
	}
	els := make([]engine.Element, len(nodes))
	for i, n := range nodes {
		els[i] = n
	}
	return els, nil
}

func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrPageClosed
	}
	if p.screenshotErr != nil {
		return nil, p.screenshotErr
	}
	return append([]byte(nil), p.screenshot...), nil
}

var _ engine.Element = (*Node)(nil)

func (n *Node) Click(ctx context.Context) error { return n.record("click") }
func (n *Node) Hover(ctx context.Context) error { return n.record("hover") }

func (n *Node) Type(ctx context.Context, text string) error {
	if err := n.record("type:" + text); err != nil {
		return err
	}
	n.mu.Lock()
	n.setProp("value", n.Props["value"]+text)
	n.mu.Unlock()
	return nil
}

func (n *Node) Clear(ctx context.Context) error {
	if err := n.record("clear"); err != nil {
		return err
	}
	n.mu.Lock()
	n.setProp("value", "")
	n.mu.Unlock()
	return nil
}

func (n *Node) Press(ctx context.Context, key string) error { return n.record("press:" + key) }

func (n *Node) SelectOption(ctx context.Context, values ...string) error {
	if err := n.record(fmt.Sprintf("select:%v", values)); err != nil {
		return err
	}
	n.mu.Lock()
	n.Selected = append([]string(nil), values...)
	n.mu.Unlock()
	return nil
}

func (n *Node) SetChecked(ctx context.Context, checked bool) error {
	if err := n.record(fmt.Sprintf("checked:%t", checked)); err != nil {
		return err
	}
	n.mu.Lock()
	n.IsChecked = checked
	n.mu.Unlock()
	return nil
}

func (n *Node) Text(ctx context.Context) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.TextContent, n.ActionErr
}

func (n *Node) Property(ctx context.Context, name string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.Props[name], n.ActionErr
}

func (n *Node) Visible(ctx context.Context) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return !n.Hidden, n.ActionErr
}

func (n *Node) Enabled(ctx context.Context) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return !n.Disabled, n.ActionErr
}

func (n *Node) Checked(ctx context.Context) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.IsChecked, n.ActionErr
}

// setProp requires n.mu
func (n *Node) setProp(name, value string) {
	if n.Props == nil {
		n.Props = make(map[string]string)
	}
	n.Props[name] = value
}
