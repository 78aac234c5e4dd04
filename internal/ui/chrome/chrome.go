// Package chrome drives a headless Chrome through chromedp and exposes it as
// a ui.Page.
//
// Every session launches its own browser process, so cookies and local
// storage from one scenario can never leak into another running
// concurrently.
package chrome

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/roach88/conformer/internal/ui"
)

// Options configures browser sessions.
type Options struct {
	// Headless runs Chrome without a window. Defaults to true via DefaultOptions.
	Headless bool

	// ExecPath overrides the Chrome binary.
	ExecPath string

	// DefaultTimeout bounds each interaction when the caller's context has
	// no earlier deadline.
	DefaultTimeout time.Duration

	Logger *slog.Logger
}

// DefaultOptions returns headless sessions with a 30s interaction timeout.
func DefaultOptions() Options {
	return Options{
		Headless:       true,
		DefaultTimeout: 30 * time.Second,
		Logger:         slog.Default(),
	}
}

// Page is a ui.Page backed by one chromedp browser context.
type Page struct {
	ctx     context.Context
	timeout time.Duration
	logger  *slog.Logger
}

// NewSession starts a browser and returns its page plus a release func that
// shuts the browser down. The release func is safe to call more than once.
func NewSession(parent context.Context, opts Options) (*Page, func(), error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts, chromedp.Flag("headless", opts.Headless))
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(parent), allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			opts.Logger.Debug(fmt.Sprintf(format, args...))
		}),
	)

	// Run with no actions starts the browser.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, nil, fmt.Errorf("failed to start browser: %w", err)
	}

	released := false
	release := func() {
		if released {
			return
		}
		released = true
		cancelBrowser()
		cancelAlloc()
	}

	return &Page{ctx: browserCtx, timeout: opts.DefaultTimeout, logger: opts.Logger}, release, nil
}

// run executes actions on the browser context while honoring the caller's
// deadline and cancellation.
func (p *Page) run(ctx context.Context, op, selector string, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()

	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	} else if p.timeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeout(runCtx, p.timeout)
		defer cancelTimeout()
	}

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		err = fmt.Errorf("%w: %w", ctx.Err(), err)
	}
	return ui.Classify(op, selector, err)
}

// Goto navigates to url.
func (p *Page) Goto(ctx context.Context, url string) error {
	return p.run(ctx, "goto", url, chromedp.Navigate(url))
}

// CurrentURL returns the page location.
func (p *Page) CurrentURL(ctx context.Context) (string, error) {
	var loc string
	err := p.run(ctx, "location", "", chromedp.Location(&loc))
	return loc, err
}

// Title returns the document title.
func (p *Page) Title(ctx context.Context) (string, error) {
	var title string
	err := p.run(ctx, "title", "", chromedp.Title(&title))
	return title, err
}

// Locate returns a lazy handle for selector (CSS query syntax).
func (p *Page) Locate(selector string) ui.Element {
	return &element{page: p, selector: selector}
}

type element struct {
	page     *Page
	selector string
}

func (e *element) Fill(ctx context.Context, value string) error {
	return e.page.run(ctx, "fill", e.selector,
		chromedp.WaitVisible(e.selector, chromedp.ByQuery),
		chromedp.Clear(e.selector, chromedp.ByQuery),
		chromedp.SendKeys(e.selector, value, chromedp.ByQuery),
	)
}

func (e *element) Click(ctx context.Context) error {
	return e.page.run(ctx, "click", e.selector,
		chromedp.Click(e.selector, chromedp.ByQuery),
	)
}

func (e *element) IsVisible(ctx context.Context) (bool, error) {
	sel, err := json.Marshal(e.selector)
	if err != nil {
		return false, err
	}
	expr := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) return false;
		const style = window.getComputedStyle(el);
		return style.visibility !== "hidden" && style.display !== "none" && el.getClientRects().length > 0;
	})()`, sel)

	var visible bool
	err = e.page.run(ctx, "visible", e.selector, chromedp.Evaluate(expr, &visible))
	return visible, err
}

func (e *element) Text(ctx context.Context) (string, error) {
	var text string
	err := e.page.run(ctx, "text", e.selector, chromedp.Text(e.selector, &text, chromedp.ByQuery))
	return text, err
}

func (e *element) Attribute(ctx context.Context, name string) (string, bool, error) {
	var value string
	var ok bool
	err := e.page.run(ctx, "attribute", e.selector, chromedp.AttributeValue(e.selector, name, &value, &ok, chromedp.ByQuery))
	return value, ok, err
}
