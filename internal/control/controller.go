package control

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dgnsrekt/remote_browser/internal/render"
)

const (
	loadedWait      = 2 * time.Second
	interactiveWait = 1 * time.Second
	titleWait       = 500 * time.Millisecond
)

// Config holds the controller's tunables.
type Config struct {
	StartURL       string
	ViewportWidth  int
	ViewportHeight int
}

type trackedPage struct {
	tab Tab
	url string
}

// Controller serializes every operation against the shared browser. One
// instance backs all connected sessions.
type Controller struct {
	cfg    Config
	driver Driver

	mu          sync.Mutex
	mode        Mode
	initialized bool
	closed      bool
	pages       []*trackedPage
	activeIdx   int
	viewportW   int
	viewportH   int
	lastX       float64
	lastY       float64
	addInFlight bool
}

// NewController creates a controller over the given driver. Initialize must
// be called before any other operation.
func NewController(cfg Config, driver Driver) *Controller {
	if cfg.StartURL == "" {
		cfg.StartURL = "https://www.scrapingbee.com/blog/"
	}
	if cfg.ViewportWidth <= 0 || cfg.ViewportHeight <= 0 {
		cfg.ViewportWidth, cfg.ViewportHeight = 1920, 1080
	}
	return &Controller{
		cfg:       cfg,
		driver:    driver,
		viewportW: cfg.ViewportWidth,
		viewportH: cfg.ViewportHeight,
	}
}

// Initialize starts the browser and opens the start page. It is idempotent.
// If the browser cannot be started at all the controller enters placeholder
// mode and keeps serving synthetic frames instead of failing.
func (c *Controller) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized {
		return nil
	}

	tab, err := c.driver.Start(ctx)
	if err != nil || tab == nil {
		slog.Error("browser unavailable, entering placeholder mode", "error", err)
		c.mode = ModePlaceholder
		c.initialized = true
		return nil
	}

	c.mode = ModeLive
	c.pages = []*trackedPage{{tab: tab, url: c.cfg.StartURL}}
	c.activeIdx = 0
	c.initialized = true

	c.driver.OnNewPage(func(targetID, url string) {
		go c.adoptPage(targetID, url)
	})

	if err := c.driver.Navigate(tab, c.cfg.StartURL); err != nil {
		slog.Warn("start page navigation failed", "url", c.cfg.StartURL, "error", err)
	} else {
		c.settle(tab)
	}
	slog.Info("controller initialized", "mode", c.mode.String(), "start_url", c.cfg.StartURL)
	return nil
}

// adoptPage handles a page target created outside our own OpenTab calls
// (popups, target=_blank). Targets we already track are ignored; a popup
// whose URL matches a tracked page switches focus there instead of adding a
// duplicate tab.
func (c *Controller) adoptPage(targetID, url string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.mode != ModeLive {
		return
	}
	if c.addInFlight {
		// Created by an in-progress AddNewTab, which tracks it itself.
		return
	}
	for _, p := range c.pages {
		if p.tab.TargetID() == targetID {
			return
		}
	}
	if url != "" && url != "about:blank" {
		for i, p := range c.pages {
			if p.url == url {
				slog.Info("duplicate popup, switching to existing tab", "url", url, "index", i)
				c.activeIdx = i
				if err := c.focusActiveLocked(); err != nil {
					slog.Warn("focus failed on popup switch", "error", err)
				}
				return
			}
		}
	}

	tab, err := c.driver.Attach(targetID)
	if err != nil {
		slog.Warn("failed to attach new page", "target", targetID, "error", err)
		return
	}
	c.pages = append(c.pages, &trackedPage{tab: tab, url: url})
	c.activeIdx = len(c.pages) - 1
	slog.Info("new page adopted", "target", targetID, "url", url, "index", c.activeIdx)
	if err := c.focusActiveLocked(); err != nil {
		slog.Warn("focus failed on adopted page", "error", err)
	}
}

// Screenshot captures the active tab. It never returns an error frame-less:
// capture failures and placeholder mode yield synthetic frames so the stream
// keeps flowing.
func (c *Controller) Screenshot() Frame {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode != ModeLive || len(c.pages) == 0 {
		data, err := render.PlaceholderScreenshot(c.viewportW, c.viewportH)
		if err != nil {
			slog.Error("placeholder render failed", "error", err)
			return Frame{Width: c.viewportW, Height: c.viewportH}
		}
		return Frame{Data: data, Width: c.viewportW, Height: c.viewportH}
	}

	tab := c.pages[c.activeIdx].tab
	c.settle(tab)
	data, err := c.driver.Screenshot(tab)
	if err != nil {
		slog.Warn("screenshot failed", "index", c.activeIdx, "error", err)
		errData, renderErr := render.ErrorScreenshot()
		if renderErr != nil {
			slog.Error("error frame render failed", "error", renderErr)
			return Frame{Width: 800, Height: 600}
		}
		return Frame{Data: errData, Width: 800, Height: 600}
	}

	if w, h, err := c.driver.ViewportSize(tab); err == nil && w > 0 && h > 0 {
		c.viewportW, c.viewportH = w, h
	}
	return Frame{Data: data, Width: c.viewportW, Height: c.viewportH}
}

// --- input operations (each asserts focus on the active tab first) ---

func (c *Controller) MouseMove(x, y float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	tab, err := c.activeTabLocked()
	if err != nil {
		return err
	}
	c.ensureFocusLocked(tab)
	c.lastX, c.lastY = x, y
	if err := c.driver.MouseMove(tab, x, y); err != nil {
		return wrapError(CodeDriverFailure, err, "mouse move failed")
	}
	return nil
}

// MouseClick dispatches a click after assuring focus. A failed dispatch is
// retried once after re-focusing, which covers the tab losing OS focus
// between events.
func (c *Controller) MouseClick(x, y float64, button string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	tab, err := c.activeTabLocked()
	if err != nil {
		return err
	}
	c.ensureFocusLocked(tab)
	c.lastX, c.lastY = x, y
	if err := c.driver.MouseClick(tab, x, y, button); err != nil {
		slog.Warn("click failed, retrying after refocus", "error", err)
		c.ensureFocusLocked(tab)
		if err := c.driver.MouseClick(tab, x, y, button); err != nil {
			return wrapError(CodeDriverFailure, err, "mouse click failed")
		}
	}
	return nil
}

func (c *Controller) MouseDown(x, y float64, button string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	tab, err := c.activeTabLocked()
	if err != nil {
		return err
	}
	c.ensureFocusLocked(tab)
	c.lastX, c.lastY = x, y
	if err := c.driver.MouseDown(tab, x, y, button); err != nil {
		return wrapError(CodeDriverFailure, err, "mouse down failed")
	}
	return nil
}

func (c *Controller) MouseUp(x, y float64, button string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	tab, err := c.activeTabLocked()
	if err != nil {
		return err
	}
	c.ensureFocusLocked(tab)
	c.lastX, c.lastY = x, y
	if err := c.driver.MouseUp(tab, x, y, button); err != nil {
		return wrapError(CodeDriverFailure, err, "mouse up failed")
	}
	return nil
}

// Wheel scrolls at the last known pointer position.
func (c *Controller) Wheel(deltaX, deltaY float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	tab, err := c.activeTabLocked()
	if err != nil {
		return err
	}
	c.ensureFocusLocked(tab)
	if err := c.driver.MouseWheel(tab, c.lastX, c.lastY, deltaX, deltaY); err != nil {
		return wrapError(CodeDriverFailure, err, "wheel failed")
	}
	return nil
}

func (c *Controller) KeyPress(key string) error {
	if key == "" {
		return newError(CodeValidation, "key is required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	tab, err := c.activeTabLocked()
	if err != nil {
		return err
	}
	c.ensureFocusLocked(tab)
	if err := c.driver.KeyPress(tab, key); err != nil {
		return wrapError(CodeDriverFailure, err, "key press failed")
	}
	return nil
}

func (c *Controller) TypeText(text string) error {
	if text == "" {
		return newError(CodeValidation, "text is required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	tab, err := c.activeTabLocked()
	if err != nil {
		return err
	}
	c.ensureFocusLocked(tab)
	if err := c.driver.TypeText(tab, text); err != nil {
		return wrapError(CodeDriverFailure, err, "type failed")
	}
	return nil
}

// --- navigation ---

// Navigate loads a URL in the active tab, prepending https:// when no scheme
// is given.
func (c *Controller) Navigate(url string) error {
	if strings.TrimSpace(url) == "" {
		return newError(CodeValidation, "url is required")
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "https://" + url
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	tab, err := c.activeTabLocked()
	if err != nil {
		return err
	}
	if err := c.driver.Navigate(tab, url); err != nil {
		return wrapError(CodeNavigationFailure, err, "navigation to %s failed", url)
	}
	c.pages[c.activeIdx].url = url
	c.settle(tab)
	return nil
}

func (c *Controller) Back() error    { return c.history("back", Driver.Back) }
func (c *Controller) Forward() error { return c.history("forward", Driver.Forward) }
func (c *Controller) Reload() error  { return c.history("reload", Driver.Reload) }

func (c *Controller) history(name string, op func(Driver, Tab) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	tab, err := c.activeTabLocked()
	if err != nil {
		return err
	}
	if err := op(c.driver, tab); err != nil {
		return wrapError(CodeNavigationFailure, err, "%s failed", name)
	}
	if url, err := c.driver.Location(tab); err == nil && url != "" {
		c.pages[c.activeIdx].url = url
	}
	c.settle(tab)
	return nil
}

// --- tab management ---

// PagesInfo removes duplicate tabs first, then lists what remains. Titles
// are fetched with a short bound; slow pages fall back to a name derived
// from the URL.
func (c *Controller) PagesInfo() []PageInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode != ModeLive {
		return []PageInfo{}
	}
	c.cleanupDuplicatesLocked()

	infos := make([]PageInfo, 0, len(c.pages))
	for i, p := range c.pages {
		if url, err := c.driver.Location(p.tab); err == nil && url != "" {
			p.url = url
		}
		title, err := c.driver.Title(p.tab, titleWait)
		if err != nil || title == "" {
			title = titleFromURL(p.url)
		}
		infos = append(infos, PageInfo{
			Index:  i,
			URL:    p.url,
			Title:  title,
			Active: i == c.activeIdx,
		})
	}
	return infos
}

// SwitchToPage makes the tab at index active. The index is updated before
// focusing, so a focus failure is reported but leaves the switch in place.
func (c *Controller) SwitchToPage(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode != ModeLive {
		return newError(CodePlaceholder, "no tabs in placeholder mode")
	}
	if index < 0 || index >= len(c.pages) {
		return newError(CodeOutOfRange, "page index %d out of range (0-%d)", index, len(c.pages)-1)
	}
	c.activeIdx = index
	if err := c.focusActiveLocked(); err != nil {
		return wrapError(CodeDriverFailure, err, "switched to page %d but focus failed", index)
	}
	return nil
}

// ClosePage closes the tab at index. The last remaining tab is never closed.
func (c *Controller) ClosePage(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode != ModeLive {
		return newError(CodePlaceholder, "no tabs in placeholder mode")
	}
	if index < 0 || index >= len(c.pages) {
		return newError(CodeOutOfRange, "page index %d out of range (0-%d)", index, len(c.pages)-1)
	}
	if len(c.pages) == 1 {
		return newError(CodeLastPage, "refusing to close the last page")
	}

	if err := c.driver.CloseTab(c.pages[index].tab); err != nil {
		slog.Warn("close tab failed, dropping from tracking anyway", "index", index, "error", err)
	}
	c.pages = append(c.pages[:index], c.pages[index+1:]...)
	switch {
	case c.activeIdx == index:
		if c.activeIdx >= len(c.pages) {
			c.activeIdx = len(c.pages) - 1
		}
		if err := c.focusActiveLocked(); err != nil {
			slog.Warn("focus failed after close", "error", err)
		}
	case c.activeIdx > index:
		c.activeIdx--
	}
	slog.Info("page closed", "index", index, "remaining", len(c.pages))
	return nil
}

// CleanupDuplicatePages closes tabs whose URL duplicates an earlier tab and
// returns how many were removed.
func (c *Controller) CleanupDuplicatePages() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode != ModeLive {
		return 0
	}
	return c.cleanupDuplicatesLocked()
}

func (c *Controller) cleanupDuplicatesLocked() int {
	for _, p := range c.pages {
		if url, err := c.driver.Location(p.tab); err == nil && url != "" {
			p.url = url
		}
	}

	seen := make(map[string]int)
	kept := make([]*trackedPage, 0, len(c.pages))
	newActive := -1
	removed := 0
	for i, p := range c.pages {
		first, dup := seen[p.url]
		if dup && p.url != "" {
			if err := c.driver.CloseTab(p.tab); err != nil {
				slog.Warn("duplicate tab close failed", "url", p.url, "error", err)
			}
			removed++
			if i == c.activeIdx {
				newActive = first
			}
			continue
		}
		seen[p.url] = len(kept)
		if i == c.activeIdx {
			newActive = len(kept)
		}
		kept = append(kept, p)
	}
	if removed == 0 {
		return 0
	}
	c.pages = kept
	if newActive < 0 || newActive >= len(c.pages) {
		newActive = len(c.pages) - 1
	}
	c.activeIdx = newActive
	slog.Info("duplicate pages cleaned up", "removed", removed, "remaining", len(c.pages))
	return removed
}

// AddNewTab opens a fresh tab at the start URL and makes it active. While a
// previous add is still opening, a second call is rejected instead of
// spawning another tab. If a tab already sits on the start URL the
// controller switches to it instead of opening a duplicate.
func (c *Controller) AddNewTab(ctx context.Context) error {
	c.mu.Lock()
	if c.mode != ModeLive {
		c.mu.Unlock()
		return newError(CodePlaceholder, "cannot add tabs in placeholder mode")
	}
	if c.addInFlight {
		c.mu.Unlock()
		return newError(CodeDuplicateInFlight, "a new tab is already being opened")
	}
	for i, p := range c.pages {
		if p.url == c.cfg.StartURL {
			c.activeIdx = i
			if err := c.focusActiveLocked(); err != nil {
				slog.Warn("focus failed on existing start page", "error", err)
			}
			c.mu.Unlock()
			return nil
		}
	}
	c.addInFlight = true
	c.mu.Unlock()

	tab, err := c.driver.OpenTab(ctx, c.cfg.StartURL)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.addInFlight = false
	if err != nil {
		return wrapError(CodeDriverFailure, err, "open tab failed")
	}
	c.pages = append(c.pages, &trackedPage{tab: tab, url: c.cfg.StartURL})
	c.activeIdx = len(c.pages) - 1
	if err := c.focusActiveLocked(); err != nil {
		slog.Warn("focus failed on new tab", "error", err)
	}
	slog.Info("new tab opened", "index", c.activeIdx, "url", c.cfg.StartURL)
	return nil
}

// --- status ---

func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

func (c *Controller) PageCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pages)
}

// ActiveURL returns the tracked URL of the active page, or "" when there is
// none.
func (c *Controller) ActiveURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pages) == 0 {
		return ""
	}
	return c.pages[c.activeIdx].url
}

func (c *Controller) ActiveIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeIdx
}

// Healthy reports whether a live browser is attached and running.
func (c *Controller) Healthy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode == ModeLive && c.driver.Running()
}

// Close stops the browser and clears all tracked state.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.pages = nil
	c.driver.Stop()
	slog.Info("controller closed")
}

// --- helpers ---

func (c *Controller) activeTabLocked() (Tab, error) {
	if c.mode != ModeLive {
		return nil, newError(CodePlaceholder, "input is unavailable in placeholder mode")
	}
	if c.closed || len(c.pages) == 0 {
		return nil, newError(CodeDriverFailure, "no active page")
	}
	return c.pages[c.activeIdx].tab, nil
}

// ensureFocusLocked raises the tab and waits briefly for the page to be
// usable. Failures are logged and the caller proceeds; the input dispatch
// itself decides success.
func (c *Controller) ensureFocusLocked(tab Tab) {
	if err := c.driver.Focus(tab); err != nil {
		slog.Warn("focus failed before input", "error", err)
	}
	c.settle(tab)
}

// settle waits for the page to finish loading, falling back to a shorter
// interactive check, and proceeds regardless after both bounds expire.
func (c *Controller) settle(tab Tab) {
	if err := c.driver.WaitLoaded(tab, loadedWait); err == nil {
		return
	}
	if err := c.driver.WaitInteractive(tab, interactiveWait); err != nil {
		slog.Debug("page still loading, proceeding anyway")
	}
}

func (c *Controller) focusActiveLocked() error {
	if len(c.pages) == 0 {
		return nil
	}
	return c.driver.Focus(c.pages[c.activeIdx].tab)
}

// titleFromURL derives a display title when the page does not answer in
// time.
func titleFromURL(url string) string {
	switch {
	case strings.Contains(url, "google"):
		return "Google"
	case strings.Contains(url, "scrapingbee"):
		return "ScrapingBee"
	default:
		return "Browser Tab"
	}
}
