package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/v0xg/uicheck/internal/engine"
	"github.com/v0xg/uicheck/internal/selector"
)

// conditionJS resolves the query in the page and checks the wait state.
// Visible means rendered with a non-empty box that intersects the viewport,
// or anywhere in the document when offscreen is set.
const conditionJS = `(strategy, expr, state, offscreen) => {
	let el = null;
	if (strategy === 'xpath') {
		el = document.evaluate(expr, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
	} else {
		el = document.querySelector(expr);
	}
	const visible = (() => {
		if (!el || !el.isConnected || typeof el.getBoundingClientRect !== 'function') return false;
		const style = window.getComputedStyle(el);
		if (style.display === 'none' || style.visibility === 'hidden') return false;
		const rect = el.getBoundingClientRect();
		if (rect.width <= 0 || rect.height <= 0) return false;
		if (offscreen) return true;
		return rect.bottom > 0 && rect.right > 0 &&
			rect.top < window.innerHeight && rect.left < window.innerWidth;
	})();
	switch (state) {
		case 'present': return el !== null;
		case 'visible': return visible;
		case 'invisible': return !visible;
	}
	return false;
}`

// Page adapts a rod page to engine.Page
type Page struct {
	page       *rod.Page
	fullPage   bool
	offscreen  bool
	navTimeout time.Duration
	logger     *zap.Logger
}

var _ engine.Page = (*Page)(nil)

// Rod exposes the underlying page for collaborators outside the core
func (p *Page) Rod() *rod.Page { return p.page }

// Close closes the tab
func (p *Page) Close() {
	if err := p.page.Close(); err != nil {
		p.logger.Debug("Page close failed.", zap.Error(err))
	}
}

// Navigate loads url and waits for the load event
func (p *Page) Navigate(ctx context.Context, url string) error {
	page := p.page.Context(ctx).Timeout(p.navTimeout)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("page did not load at %s: %w", url, err)
	}
	p.logger.Info("Navigated.", zap.String("url", url))
	return nil
}

// WaitFor polls conditionJS inside the page until it holds or ctx is done
func (p *Page) WaitFor(ctx context.Context, q selector.Query, state engine.WaitState) error {
	err := p.page.Context(ctx).Wait(rod.Eval(conditionJS, q.Strategy.String(), q.Expr, state.String(), p.offscreen))
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (p *Page) elements(ctx context.Context, q selector.Query) (rod.Elements, error) {
	page := p.page.Context(ctx)
	if q.Strategy == selector.StrategyXPath {
		return page.ElementsX(q.Expr)
	}
	return page.Elements(q.Expr)
}

func (p *Page) Query(ctx context.Context, q selector.Query) (engine.Element, bool, error) {
	els, err := p.elements(ctx, q)
	if err != nil {
		return nil, false, err
	}
	if len(els) == 0 {
		return nil, false, nil
	}
	return &Element{el: els[0]}, true, nil
}

func (p *Page) QueryAll(ctx context.Context, q selector.Query) ([]engine.Element, error) {
	els, err := p.elements(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]engine.Element, len(els))
	for i, el := range els {
		out[i] = &Element{el: el}
	}
	return out, nil
}

func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	return p.page.Context(ctx).Screenshot(p.fullPage, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
}
