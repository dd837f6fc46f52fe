package control

import (
	"context"
	"time"

	"github.com/dgnsrekt/remote_browser/internal/browser"
)

// Tab is an opaque handle to one browser page target.
type Tab interface {
	TargetID() string
}

// Driver is the browser surface the controller drives. The live
// implementation wraps browser.Driver; tests substitute a fake.
type Driver interface {
	Start(ctx context.Context) (Tab, error)
	Stop()
	Running() bool
	Degraded() bool
	OnNewPage(fn func(targetID, url string))

	OpenTab(ctx context.Context, url string) (Tab, error)
	Attach(targetID string) (Tab, error)
	CloseTab(tab Tab) error

	MouseMove(tab Tab, x, y float64) error
	MouseClick(tab Tab, x, y float64, button string) error
	MouseDown(tab Tab, x, y float64, button string) error
	MouseUp(tab Tab, x, y float64, button string) error
	MouseWheel(tab Tab, x, y, deltaX, deltaY float64) error
	KeyPress(tab Tab, key string) error
	TypeText(tab Tab, text string) error

	Navigate(tab Tab, url string) error
	Back(tab Tab) error
	Forward(tab Tab) error
	Reload(tab Tab) error

	Location(tab Tab) (string, error)
	Title(tab Tab, timeout time.Duration) (string, error)
	ViewportSize(tab Tab) (int, int, error)
	Screenshot(tab Tab) ([]byte, error)
	Focus(tab Tab) error
	WaitLoaded(tab Tab, timeout time.Duration) error
	WaitInteractive(tab Tab, timeout time.Duration) error
}

// liveDriver adapts the concrete chromedp driver to the Driver interface.
type liveDriver struct {
	d *browser.Driver
}

// NewLiveDriver wraps a chromedp driver.
func NewLiveDriver(d *browser.Driver) Driver {
	return &liveDriver{d: d}
}

func (l *liveDriver) Start(ctx context.Context) (Tab, error) {
	t, err := l.d.Start(ctx)
	if t == nil {
		return nil, err
	}
	return t, err
}

func (l *liveDriver) Stop() { l.d.Stop() }
func (l *liveDriver) Running() bool { return l.d.Running() }
func (l *liveDriver) Degraded() bool { return l.d.Degraded() }
func (l *liveDriver) OnNewPage(fn func(id, url string)) { l.d.OnNewPage(fn) }

func (l *liveDriver) OpenTab(ctx context.Context, url string) (Tab, error) {
	t, err := l.d.OpenTab(ctx, url)
	if t == nil {
		return nil, err
	}
	return t, err
}

func (l *liveDriver) Attach(targetID string) (Tab, error) {
	t, err := l.d.Attach(targetID)
	if t == nil {
		return nil, err
	}
	return t, err
}

func (l *liveDriver) CloseTab(tab Tab) error { return l.d.CloseTab(tab.(*browser.Tab)) }

func (l *liveDriver) MouseMove(tab Tab, x, y float64) error {
	return l.d.MouseMove(tab.(*browser.Tab), x, y)
}

func (l *liveDriver) MouseClick(tab Tab, x, y float64, button string) error {
	return l.d.MouseClick(tab.(*browser.Tab), x, y, button)
}

func (l *liveDriver) MouseDown(tab Tab, x, y float64, button string) error {
	return l.d.MouseDown(tab.(*browser.Tab), x, y, button)
}

func (l *liveDriver) MouseUp(tab Tab, x, y float64, button string) error {
	return l.d.MouseUp(tab.(*browser.Tab), x, y, button)
}

func (l *liveDriver) MouseWheel(tab Tab, x, y, deltaX, deltaY float64) error {
	return l.d.MouseWheel(tab.(*browser.Tab), x, y, deltaX, deltaY)
}

func (l *liveDriver) KeyPress(tab Tab, key string) error {
	return l.d.KeyPress(tab.(*browser.Tab), key)
}

func (l *liveDriver) TypeText(tab Tab, text string) error {
	return l.d.TypeText(tab.(*browser.Tab), text)
}

func (l *liveDriver) Navigate(tab Tab, url string) error {
	return l.d.Navigate(tab.(*browser.Tab), url)
}

func (l *liveDriver) Back(tab Tab) error { return l.d.Back(tab.(*browser.Tab)) }
func (l *liveDriver) Forward(tab Tab) error { return l.d.Forward(tab.(*browser.Tab)) }
func (l *liveDriver) Reload(tab Tab) error { return l.d.Reload(tab.(*browser.Tab)) }

func (l *liveDriver) Location(tab Tab) (string, error) {
	return l.d.Location(tab.(*browser.Tab))
}

func (l *liveDriver) Title(tab Tab, timeout time.Duration) (string, error) {
	return l.d.Title(tab.(*browser.Tab), timeout)
}

func (l *liveDriver) ViewportSize(tab Tab) (int, int, error) {
	return l.d.ViewportSize(tab.(*browser.Tab))
}

func (l *liveDriver) Screenshot(tab Tab) ([]byte, error) {
	return l.d.Screenshot(tab.(*browser.Tab))
}

func (l *liveDriver) Focus(tab Tab) error { return l.d.Focus(tab.(*browser.Tab)) }

func (l *liveDriver) WaitLoaded(tab Tab, timeout time.Duration) error {
	return l.d.WaitLoaded(tab.(*browser.Tab), timeout)
}

func (l *liveDriver) WaitInteractive(tab Tab, timeout time.Duration) error {
	return l.d.WaitInteractive(tab.(*browser.Tab), timeout)
}
