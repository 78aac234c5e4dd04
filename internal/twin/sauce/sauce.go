// Package sauce is an in-memory model of the SauceDemo storefront that
// implements ui.Page.
//
// It renders the handful of selectors the built-in flows touch, so UI flows
// can run offline and deterministically. Behavior mirrors the public site:
// locked_out_user is rejected with the lockout banner, problem_user sees
// broken product images and performance_glitch_user waits before the
// inventory loads.
package sauce

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/roach88/conformer/internal/ui"
)

// DefaultBaseURL is the public SauceDemo origin.
const DefaultBaseURL = "https://www.saucedemo.com/"

// Password is accepted for every known user.
const Password = "secret_sauce"

// Title is the document title on every page.
const Title = "Swag Labs"

// Paths served by the model.
const (
	PathLogin            = "/"
	PathInventory        = "/inventory.html"
	PathCart             = "/cart.html"
	PathCheckoutInfo     = "/checkout-step-one.html"
	PathCheckoutOverview = "/checkout-step-two.html"
	PathCheckoutComplete = "/checkout-complete.html"
)

// Known users.
const (
	StandardUser          = "standard_user"
	LockedOutUser         = "locked_out_user"
	ProblemUser           = "problem_user"
	PerformanceGlitchUser = "performance_glitch_user"
	ErrorUser             = "error_user"
	VisualUser            = "visual_user"
)

// Banner texts shown in the [data-test="error"] element.
const (
	MsgLockedOut        = "Epic sadface: Sorry, this user has been locked out."
	MsgUsernameRequired = "Epic sadface: Username is required"
	MsgPasswordRequired = "Epic sadface: Password is required"
	MsgNoMatch          = "Epic sadface: Username and password do not match any user in this service"
	MsgFirstName        = "Error: First Name is required"
	MsgLastName         = "Error: Last Name is required"
	MsgPostalCode       = "Error: Postal Code is required"
)

// BrokenImage is the src every product image has for problem_user.
const BrokenImage = "/static/media/sl-404.168b1cce.jpg"

// Product is one inventory item.
type Product struct {
	Slug  string
	Name  string
	Image string
	Price string
}

// Products lists the inventory in display order.
var Products = []Product{
	{Slug: "sauce-labs-backpack", Name: "Sauce Labs Backpack", Image: "/static/media/sauce-backpack-1200x1500.0a0b85a3.jpg", Price: "$29.99"},
	{Slug: "sauce-labs-bike-light", Name: "Sauce Labs Bike Light", Image: "/static/media/bike-light-1200x1500.37c843b0.jpg", Price: "$9.99"},
	{Slug: "sauce-labs-bolt-t-shirt", Name: "Sauce Labs Bolt T-Shirt", Image: "/static/media/bolt-shirt-1200x1500.c2599ac5.jpg", Price: "$15.99"},
	{Slug: "sauce-labs-fleece-jacket", Name: "Sauce Labs Fleece Jacket", Image: "/static/media/sauce-pullover-1200x1500.51d7ffaf.jpg", Price: "$49.99"},
	{Slug: "sauce-labs-onesie", Name: "Sauce Labs Onesie", Image: "/static/media/red-onesie-1200x1500.2ec615b2.jpg", Price: "$7.99"},
	{Slug: "test.allthethings()-t-shirt-(red)", Name: "Test.allTheThings() T-Shirt (Red)", Image: "/static/media/red-tatt-1200x1500.30dadef4.jpg", Price: "$15.99"},
}

var knownUsers = map[string]bool{
	StandardUser:          true,
	LockedOutUser:         true,
	ProblemUser:           true,
	PerformanceGlitchUser: true,
	ErrorUser:             true,
	VisualUser:            true,
}

// Option configures a Page.
type Option func(*Page)

// WithBaseURL sets the origin the model answers for.
func WithBaseURL(base string) Option {
	return func(p *Page) {
		if u, err := url.Parse(base); err == nil {
			p.base = u
		}
	}
}

// WithGlitchDelay sets how long the login click blocks for
// performance_glitch_user.
func WithGlitchDelay(d time.Duration) Option {
	return func(p *Page) { p.glitch = d }
}

// Page is a single-tab session. The zero value is not usable; call New.
type Page struct {
	mu     sync.Mutex
	base   *url.URL
	glitch time.Duration

	path   string
	fields map[string]string
	banner string
	user   string
	cart   map[string]bool
}

// New returns a page sitting on about:blank.
func New(opts ...Option) *Page {
	base, _ := url.Parse(DefaultBaseURL)
	p := &Page{
		base:   base,
		glitch: 5 * time.Second,
		fields: make(map[string]string),
		cart:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Goto navigates within the model's origin.
func (p *Page) Goto(ctx context.Context, rawURL string) error {
	if err := ctx.Err(); err != nil {
		return ui.Classify("goto", rawURL, err)
	}
	u, err := p.base.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("goto %s: %w", rawURL, err)
	}
	if u.Host != p.base.Host {
		return fmt.Errorf("goto %s: host %q is not served by this model", rawURL, u.Host)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.navigate(u.Path)
	return nil
}

// CurrentURL returns the absolute location.
func (p *Page) CurrentURL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", ui.Classify("location", "", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.base.ResolveReference(&url.URL{Path: p.path}).String(), nil
}

// Title returns the document title.
func (p *Page) Title(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", ui.Classify("title", "", err)
	}
	return Title, nil
}

// Locate returns a lazy handle for selector.
func (p *Page) Locate(selector string) ui.Element {
	return &element{page: p, selector: selector}
}

// navigate moves to path, bouncing to the login page when a protected page
// is requested without a session. Caller holds p.mu.
func (p *Page) navigate(path string) {
	switch path {
	case "", PathLogin:
		p.path = PathLogin
		p.user = ""
		p.banner = ""
		p.fields = make(map[string]string)
		return
	}
	if p.user == "" {
		p.path = PathLogin
		p.banner = fmt.Sprintf("Epic sadface: You can only access '%s' when you are logged in.", path)
		return
	}
	p.path = path
	p.banner = ""
}

// node is the rendered state of one selector on the current page.
type node struct {
	visible bool
	text    string
	attrs   map[string]string

	// fillable marks an input; value is kept in p.fields.
	fillable bool

	// click mutates the page. Called with p.mu held.
	click func()

	// delay blocks the click before it takes effect.
	delay time.Duration
}

// render resolves selector against the current page. Caller holds p.mu.
func (p *Page) render(selector string) (node, bool) {
	if n, ok := p.renderCommon(selector); ok {
		return n, true
	}
	switch p.path {
	case PathLogin:
		return p.renderLogin(selector)
	case PathInventory:
		return p.renderInventory(selector)
	case PathCart:
		return p.renderCart(selector)
	case PathCheckoutInfo:
		return p.renderCheckoutInfo(selector)
	case PathCheckoutOverview:
		return p.renderCheckoutOverview(selector)
	case PathCheckoutComplete:
		return p.renderCheckoutComplete(selector)
	}
	return node{}, false
}

func (p *Page) renderCommon(selector string) (node, bool) {
	if p.path == PathLogin || p.path == "" {
		return node{}, false
	}
	switch selector {
	case ".shopping_cart_link":
		return node{visible: true, click: func() { p.navigate(PathCart) }}, true
	case ".shopping_cart_badge":
		if len(p.cart) == 0 {
			return node{}, false
		}
		return node{visible: true, text: strconv.Itoa(len(p.cart))}, true
	case `[data-test="error"]`:
		if p.banner == "" {
			return node{}, false
		}
		return node{visible: true, text: p.banner}, true
	}
	return node{}, false
}

func (p *Page) renderLogin(selector string) (node, bool) {
	switch selector {
	case "#user-name", "#password":
		return node{visible: true, fillable: true, attrs: map[string]string{"value": p.fields[selector]}}, true
	case "#login-button":
		n := node{visible: true, attrs: map[string]string{"value": "Login"}, click: p.login}
		if p.fields["#user-name"] == PerformanceGlitchUser && p.fields["#password"] == Password {
			n.delay = p.glitch
		}
		return n, true
	case `[data-test="error"]`:
		if p.banner == "" {
			return node{}, false
		}
		return node{visible: true, text: p.banner}, true
	case ".login_logo":
		return node{visible: true, text: Title}, true
	}
	return node{}, false
}

func (p *Page) login() {
	user, pass := p.fields["#user-name"], p.fields["#password"]
	switch {
	case user == "":
		p.banner = MsgUsernameRequired
	case pass == "":
		p.banner = MsgPasswordRequired
	case !knownUsers[user] || pass != Password:
		p.banner = MsgNoMatch
	case user == LockedOutUser:
		p.banner = MsgLockedOut
	default:
		p.user = user
		p.cart = make(map[string]bool)
		p.navigate(PathInventory)
	}
}

func (p *Page) renderInventory(selector string) (node, bool) {
	switch selector {
	case ".title":
		return node{visible: true, text: "Products"}, true
	case ".inventory_list":
		return node{visible: true}, true
	}
	for _, prod := range Products {
		switch selector {
		case "#add-to-cart-" + prod.Slug:
			if p.cart[prod.Slug] {
				return node{}, false
			}
			slug := prod.Slug
			return node{visible: true, text: "Add to cart", click: func() { p.cart[slug] = true }}, true
		case "#remove-" + prod.Slug:
			if !p.cart[prod.Slug] {
				return node{}, false
			}
			slug := prod.Slug
			return node{visible: true, text: "Remove", click: func() { delete(p.cart, slug) }}, true
		case fmt.Sprintf("img[alt=%q]", prod.Name):
			src := prod.Image
			if p.user == ProblemUser {
				src = BrokenImage
			}
			return node{visible: true, attrs: map[string]string{"alt": prod.Name, "src": src}}, true
		}
	}
	return node{}, false
}

func (p *Page) renderCart(selector string) (node, bool) {
	switch selector {
	case ".title":
		return node{visible: true, text: "Your Cart"}, true
	case ".cart_item":
		if len(p.cart) == 0 {
			return node{}, false
		}
		return node{visible: true}, true
	case "#checkout":
		return node{visible: true, text: "Checkout", click: func() { p.navigate(PathCheckoutInfo) }}, true
	case "#continue-shopping":
		return node{visible: true, text: "Continue Shopping", click: func() { p.navigate(PathInventory) }}, true
	}
	for _, prod := range Products {
		if selector == "#remove-"+prod.Slug && p.cart[prod.Slug] {
			slug := prod.Slug
			return node{visible: true, text: "Remove", click: func() { delete(p.cart, slug) }}, true
		}
	}
	return node{}, false
}

func (p *Page) renderCheckoutInfo(selector string) (node, bool) {
	switch selector {
	case ".title":
		return node{visible: true, text: "Checkout: Your Information"}, true
	case "#first-name", "#last-name", "#postal-code":
		return node{visible: true, fillable: true, attrs: map[string]string{"value": p.fields[selector]}}, true
	case "#continue":
		return node{visible: true, attrs: map[string]string{"value": "Continue"}, click: p.submitInfo}, true
	case "#cancel":
		return node{visible: true, text: "Cancel", click: func() { p.navigate(PathCart) }}, true
	}
	return node{}, false
}

func (p *Page) submitInfo() {
	switch {
	case p.fields["#first-name"] == "":
		p.banner = MsgFirstName
	case p.fields["#last-name"] == "":
		p.banner = MsgLastName
	case p.fields["#postal-code"] == "":
		p.banner = MsgPostalCode
	default:
		p.navigate(PathCheckoutOverview)
	}
}

func (p *Page) renderCheckoutOverview(selector string) (node, bool) {
	switch selector {
	case ".title":
		return node{visible: true, text: "Checkout: Overview"}, true
	case ".cart_item":
		if len(p.cart) == 0 {
			return node{}, false
		}
		return node{visible: true}, true
	case "#finish":
		return node{visible: true, text: "Finish", click: func() {
			p.cart = make(map[string]bool)
			p.navigate(PathCheckoutComplete)
		}}, true
	case "#cancel":
		return node{visible: true, text: "Cancel", click: func() { p.navigate(PathInventory) }}, true
	}
	return node{}, false
}

func (p *Page) renderCheckoutComplete(selector string) (node, bool) {
	switch selector {
	case ".title":
		return node{visible: true, text: "Checkout: Complete!"}, true
	case ".complete-header":
		return node{visible: true, text: "Thank you for your order!"}, true
	case "#back-to-products":
		return node{visible: true, text: "Back Home", click: func() { p.navigate(PathInventory) }}, true
	}
	return node{}, false
}

type element struct {
	page     *Page
	selector string
}

func (e *element) resolve(ctx context.Context, op string) (node, error) {
	if err := ctx.Err(); err != nil {
		return node{}, ui.Classify(op, e.selector, err)
	}
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	n, ok := e.page.render(e.selector)
	if !ok {
		return node{}, fmt.Errorf("%s %s: %w", op, e.selector, ui.ErrNotFound)
	}
	return n, nil
}

func (e *element) Fill(ctx context.Context, value string) error {
	n, err := e.resolve(ctx, "fill")
	if err != nil {
		return err
	}
	if !n.fillable {
		return fmt.Errorf("fill %s: element is not an input", e.selector)
	}
	e.page.mu.Lock()
	e.page.fields[e.selector] = value
	e.page.mu.Unlock()
	return nil
}

func (e *element) Click(ctx context.Context) error {
	n, err := e.resolve(ctx, "click")
	if err != nil {
		return err
	}
	if n.delay > 0 {
		timer := time.NewTimer(n.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ui.Classify("click", e.selector, ctx.Err())
		case <-timer.C:
		}
	}
	if n.click == nil {
		return nil
	}

	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	// The page may have moved on while the click was delayed.
	current, ok := e.page.render(e.selector)
	if !ok || current.click == nil {
		return fmt.Errorf("click %s: %w", e.selector, ui.ErrNotFound)
	}
	current.click()
	return nil
}

func (e *element) IsVisible(ctx context.Context) (bool, error) {
	n, err := e.resolve(ctx, "visible")
	if err != nil {
		if ctx.Err() != nil {
			return false, err
		}
		return false, nil
	}
	return n.visible, nil
}

func (e *element) Text(ctx context.Context) (string, error) {
	n, err := e.resolve(ctx, "text")
	if err != nil {
		return "", err
	}
	return n.text, nil
}

func (e *element) Attribute(ctx context.Context, name string) (string, bool, error) {
	n, err := e.resolve(ctx, "attribute")
	if err != nil {
		return "", false, err
	}
	v, ok := n.attrs[name]
	return v, ok, nil
}
