// Package browser wraps chromedp with the small set of primitives the tab
// controller needs: launching one Chromium with a persistent profile,
// per-tab contexts, trusted input dispatch, and screenshot capture.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

const (
	launchTimeout   = 30 * time.Second
	navigateTimeout = 30 * time.Second
	commandTimeout  = 10 * time.Second
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/140.0.0.0 Safari/537.36"

// Config holds browser launch configuration.
type Config struct {
	ProfileDir        string
	ViewportWidth     int
	ViewportHeight    int
	Headless          bool
	ScreenshotQuality int
}

// Driver owns the browser process via a chromedp exec allocator.
type Driver struct {
	cfg Config

	mu            sync.Mutex
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	degraded      bool
}

// Tab is a handle to one page target.
type Tab struct {
	id     target.ID
	ctx    context.Context
	cancel context.CancelFunc
}

// TargetID returns the CDP target ID backing this tab.
func (t *Tab) TargetID() string { return string(t.id) }

// NewDriver creates a driver without starting the browser.
func NewDriver(cfg Config) *Driver {
	if cfg.ViewportWidth <= 0 || cfg.ViewportHeight <= 0 {
		cfg.ViewportWidth, cfg.ViewportHeight = 1920, 1080
	}
	if cfg.ScreenshotQuality <= 0 || cfg.ScreenshotQuality > 100 {
		cfg.ScreenshotQuality = 80
	}
	return &Driver{cfg: cfg}
}

// Start launches the browser, falling back to a degraded headless
// configuration when the preferred launch fails. The returned tab is the
// browser's initial page. A second call while running is a no-op and
// returns nil, nil.
func (d *Driver) Start(ctx context.Context) (*Tab, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.browserCtx != nil {
		return nil, nil
	}

	tab, err := d.launchLocked(ctx, d.cfg.Headless)
	if err == nil {
		return tab, nil
	}
	slog.Warn("browser launch failed, retrying headless", "error", err)

	tab, err = d.launchLocked(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("headless fallback launch: %w", err)
	}
	d.degraded = true
	return tab, nil
}

func (d *Driver) launchLocked(ctx context.Context, headless bool) (*Tab, error) {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.UserDataDir(d.cfg.ProfileDir),
		chromedp.WindowSize(d.cfg.ViewportWidth, d.cfg.ViewportHeight),
		chromedp.UserAgent(defaultUserAgent),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-backgrounding-occluded-windows", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
	}
	if headless {
		opts = append(opts, chromedp.Headless)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	runCtx, runCancel := context.WithTimeout(browserCtx, launchTimeout)
	defer runCancel()
	if err := chromedp.Run(runCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start browser (headless=%v): %w", headless, err)
	}
	if ctx.Err() != nil {
		browserCancel()
		allocCancel()
		return nil, ctx.Err()
	}

	d.allocCancel = allocCancel
	d.browserCtx = browserCtx
	d.browserCancel = browserCancel

	c := chromedp.FromContext(browserCtx)
	tab := &Tab{id: c.Target.TargetID, ctx: browserCtx, cancel: func() {}}
	slog.Info("browser started", "headless", headless, "initial_target", tab.TargetID())
	return tab, nil
}

// Degraded reports whether the driver fell back to headless mode.
func (d *Driver) Degraded() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.degraded
}

// Running reports whether the browser is up.
func (d *Driver) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.browserCtx != nil
}

// OnNewPage registers fn for browser-level page target creation events. This
// fires for every new page, including tabs this driver opens itself.
func (d *Driver) OnNewPage(fn func(targetID, url string)) {
	d.mu.Lock()
	browserCtx := d.browserCtx
	d.mu.Unlock()
	if browserCtx == nil {
		return
	}
	chromedp.ListenBrowser(browserCtx, func(ev interface{}) {
		if e, ok := ev.(*target.EventTargetCreated); ok && e.TargetInfo.Type == "page" {
			fn(string(e.TargetInfo.TargetID), e.TargetInfo.URL)
		}
	})
}

// OpenTab creates a new page target and navigates it.
func (d *Driver) OpenTab(ctx context.Context, url string) (*Tab, error) {
	d.mu.Lock()
	browserCtx := d.browserCtx
	d.mu.Unlock()
	if browserCtx == nil {
		return nil, fmt.Errorf("browser not started")
	}

	tabCtx, cancel := chromedp.NewContext(browserCtx)
	runCtx, runCancel := context.WithTimeout(tabCtx, navigateTimeout)
	defer runCancel()
	if err := chromedp.Run(runCtx, chromedp.Navigate(url)); err != nil {
		cancel()
		return nil, fmt.Errorf("open tab: %w", err)
	}

	c := chromedp.FromContext(tabCtx)
	return &Tab{id: c.Target.TargetID, ctx: tabCtx, cancel: cancel}, nil
}

// Attach connects to an existing page target created outside this driver
// (popups, target=_blank links).
func (d *Driver) Attach(targetID string) (*Tab, error) {
	d.mu.Lock()
	browserCtx := d.browserCtx
	d.mu.Unlock()
	if browserCtx == nil {
		return nil, fmt.Errorf("browser not started")
	}

	tabCtx, cancel := chromedp.NewContext(browserCtx, chromedp.WithTargetID(target.ID(targetID)))
	runCtx, runCancel := context.WithTimeout(tabCtx, commandTimeout)
	defer runCancel()
	if err := chromedp.Run(runCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("attach to target %s: %w", targetID, err)
	}
	return &Tab{id: target.ID(targetID), ctx: tabCtx, cancel: cancel}, nil
}

// CloseTab closes the page target and releases its context.
func (d *Driver) CloseTab(tab *Tab) error {
	err := d.run(tab, commandTimeout, page.Close())
	tab.cancel()
	return err
}

// Stop tears down the browser. Safe to call more than once.
func (d *Driver) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.browserCancel != nil {
		d.browserCancel()
		d.browserCancel = nil
	}
	if d.allocCancel != nil {
		d.allocCancel()
		d.allocCancel = nil
	}
	d.browserCtx = nil
	slog.Info("browser stopped")
}

// --- input primitives ---

func (d *Driver) MouseMove(tab *Tab, x, y float64) error {
	return d.run(tab, commandTimeout, input.DispatchMouseEvent(input.MouseMoved, x, y))
}

// MouseClick dispatches a trusted mousePressed+mouseReleased pair, the
// equivalent of a real user click.
func (d *Driver) MouseClick(tab *Tab, x, y float64, button string) error {
	btn := mouseButton(button)
	return d.run(tab, commandTimeout,
		input.DispatchMouseEvent(input.MousePressed, x, y).WithButton(btn).WithClickCount(1),
		input.DispatchMouseEvent(input.MouseReleased, x, y).WithButton(btn).WithClickCount(1),
	)
}

func (d *Driver) MouseDown(tab *Tab, x, y float64, button string) error {
	return d.run(tab, commandTimeout,
		input.DispatchMouseEvent(input.MouseMoved, x, y),
		input.DispatchMouseEvent(input.MousePressed, x, y).WithButton(mouseButton(button)).WithClickCount(1),
	)
}

func (d *Driver) MouseUp(tab *Tab, x, y float64, button string) error {
	return d.run(tab, commandTimeout,
		input.DispatchMouseEvent(input.MouseMoved, x, y),
		input.DispatchMouseEvent(input.MouseReleased, x, y).WithButton(mouseButton(button)).WithClickCount(1),
	)
}

func (d *Driver) MouseWheel(tab *Tab, x, y, deltaX, deltaY float64) error {
	return d.run(tab, commandTimeout,
		input.DispatchMouseEvent(input.MouseWheel, x, y).WithDeltaX(deltaX).WithDeltaY(deltaY),
	)
}

// domKeys maps DOM key names to the kb package's encoded key runes.
var domKeys = map[string]string{
	"Enter":      kb.Enter,
	"Tab":        kb.Tab,
	"Backspace":  kb.Backspace,
	"Escape":     kb.Escape,
	"Delete":     kb.Delete,
	"ArrowUp":    kb.ArrowUp,
	"ArrowDown":  kb.ArrowDown,
	"ArrowLeft":  kb.ArrowLeft,
	"ArrowRight": kb.ArrowRight,
	"Home":       kb.Home,
	"End":        kb.End,
	"PageUp":     kb.PageUp,
	"PageDown":   kb.PageDown,
}

// KeyPress dispatches a full key sequence for a single DOM key name or
// character. Multi-rune names outside domKeys are rejected; feeding them to
// the key event builder would type the name out literally.
func (d *Driver) KeyPress(tab *Tab, key string) error {
	if mapped, ok := domKeys[key]; ok {
		key = mapped
	} else if len([]rune(key)) > 1 {
		return fmt.Errorf("unsupported key name %q", key)
	}
	return d.run(tab, commandTimeout, chromedp.KeyEvent(key))
}

// TypeText sends each character using the rawKeyDown + char + keyUp pattern
// so native input events fire for controlled (React-style) inputs.
func (d *Driver) TypeText(tab *Tab, text string) error {
	for _, r := range text {
		ch := string(r)
		err := d.run(tab, commandTimeout,
			input.DispatchKeyEvent(input.KeyRawDown).WithKey(ch),
			input.DispatchKeyEvent(input.KeyChar).WithText(ch).WithKey(ch).WithUnmodifiedText(ch),
			input.DispatchKeyEvent(input.KeyUp).WithKey(ch),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// --- navigation ---

func (d *Driver) Navigate(tab *Tab, url string) error {
	return d.run(tab, navigateTimeout, chromedp.Navigate(url))
}

func (d *Driver) Back(tab *Tab) error {
	return d.run(tab, navigateTimeout, chromedp.NavigateBack())
}

func (d *Driver) Forward(tab *Tab) error {
	return d.run(tab, navigateTimeout, chromedp.NavigateForward())
}

func (d *Driver) Reload(tab *Tab) error {
	return d.run(tab, navigateTimeout, chromedp.Reload())
}

// --- queries ---

func (d *Driver) Location(tab *Tab) (string, error) {
	var url string
	err := d.run(tab, commandTimeout, chromedp.Location(&url))
	return url, err
}

// Title fetches the page title within the given bound.
func (d *Driver) Title(tab *Tab, timeout time.Duration) (string, error) {
	var title string
	err := d.run(tab, timeout, chromedp.Title(&title))
	return title, err
}

// ViewportSize reads the page's actual inner dimensions.
func (d *Driver) ViewportSize(tab *Tab) (int, int, error) {
	var dims []int
	if err := d.run(tab, commandTimeout, chromedp.Evaluate(`[window.innerWidth, window.innerHeight]`, &dims)); err != nil {
		return 0, 0, err
	}
	if len(dims) != 2 {
		return 0, 0, fmt.Errorf("unexpected viewport result: %v", dims)
	}
	return dims[0], dims[1], nil
}

// Screenshot captures the visible viewport as JPEG.
func (d *Driver) Screenshot(tab *Tab) ([]byte, error) {
	var buf []byte
	err := d.run(tab, commandTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		buf, err = page.CaptureScreenshot().
			WithFormat(page.CaptureScreenshotFormatJpeg).
			WithQuality(int64(d.cfg.ScreenshotQuality)).
			WithFromSurface(true).
			Do(ctx)
		return err
	}))
	return buf, err
}

// Focus raises the tab's window and brings the page to the front.
func (d *Driver) Focus(tab *Tab) error {
	return d.run(tab, commandTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		if err := target.ActivateTarget(tab.id).Do(ctx); err != nil {
			return err
		}
		return page.BringToFront().Do(ctx)
	}))
}

// WaitLoaded polls document.readyState until it reaches "complete", bounded
// by timeout.
func (d *Driver) WaitLoaded(tab *Tab, timeout time.Duration) error {
	return d.waitState(tab, `document.readyState === "complete"`, timeout)
}

// WaitInteractive polls until the document has at least finished parsing.
func (d *Driver) WaitInteractive(tab *Tab, timeout time.Duration) error {
	return d.waitState(tab, `document.readyState !== "loading"`, timeout)
}

func (d *Driver) waitState(tab *Tab, expr string, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(tab.ctx, timeout)
	defer cancel()

	for {
		var ready bool
		if err := chromedp.Run(waitCtx, chromedp.Evaluate(expr, &ready)); err != nil {
			return err
		}
		if ready {
			return nil
		}
		select {
		case <-waitCtx.Done():
			return waitCtx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func (d *Driver) run(tab *Tab, timeout time.Duration, actions ...chromedp.Action) error {
	if tab == nil || tab.ctx == nil {
		return fmt.Errorf("nil tab")
	}
	runCtx, cancel := context.WithTimeout(tab.ctx, timeout)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

func mouseButton(button string) input.MouseButton {
	switch button {
	case "", "left":
		return input.Left
	case "right":
		return input.Right
	case "middle":
		return input.Middle
	default:
		return input.MouseButton(button)
	}
}
