package gateway

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/dgnsrekt/remote_browser/internal/control"
)

type fakeController struct {
	switchErr error
	closeErr  error
	addErr    error

	navigated []string
	keys      []string
	typed     []string
	clicks    int
	addCalls  int
	frames    int
}

func (f *fakeController) Screenshot() control.Frame {
	f.frames++
	return control.Frame{Data: []byte("jpeg"), Width: 1920, Height: 1080}
}

func (f *fakeController) MouseMove(x, y float64) error { return nil }

func (f *fakeController) MouseClick(x, y float64, button string) error {
	f.clicks++
	return nil
}

func (f *fakeController) MouseDown(x, y float64, button string) error { return nil }
func (f *fakeController) MouseUp(x, y float64, button string) error { return nil }
func (f *fakeController) Wheel(deltaX, deltaY float64) error { return nil }

func (f *fakeController) KeyPress(key string) error {
	f.keys = append(f.keys, key)
	return nil
}

func (f *fakeController) TypeText(text string) error {
	f.typed = append(f.typed, text)
	return nil
}

func (f *fakeController) Navigate(url string) error {
	f.navigated = append(f.navigated, url)
	return nil
}

func (f *fakeController) Back() error { return nil }
func (f *fakeController) Forward() error { return nil }
func (f *fakeController) Reload() error { return nil }

func (f *fakeController) PagesInfo() []control.PageInfo {
	return []control.PageInfo{
		{Index: 0, URL: "https://example.com/", Title: "Example", Active: true},
	}
}

func (f *fakeController) SwitchToPage(index int) error { return f.switchErr }
func (f *fakeController) ClosePage(index int) error { return f.closeErr }
func (f *fakeController) CleanupDuplicatePages() int { return 0 }

func (f *fakeController) AddNewTab(ctx context.Context) error {
	f.addCalls++
	return f.addErr
}

type capturedSend struct {
	messages []interface{}
	err      error
}

func (c *capturedSend) send(v interface{}) error {
	c.messages = append(c.messages, v)
	return c.err
}

func newTestSession(f *fakeController) (*session, *capturedSend) {
	g := New(f, 10*time.Millisecond, 5*time.Second)
	cap := &capturedSend{}
	s := &session{gw: g, send: cap.send, cancel: func() {}}
	return s, cap
}

func TestSwitchPageOutOfRangeReportsFailure(t *testing.T) {
	f := &fakeController{switchErr: errors.New("out of range")}
	s, cap := newTestSession(f)

	s.handle(context.Background(), []byte(`{"type":"switch_page","page_index":5}`))

	if len(cap.messages) != 1 {
		t.Fatalf("sent %d messages, want 1", len(cap.messages))
	}
	msg, ok := cap.messages[0].(resultMessage)
	if !ok {
		t.Fatalf("message type = %T, want resultMessage", cap.messages[0])
	}
	if msg.Type != "page_switched" || msg.Success {
		t.Fatalf("message = %+v, want page_switched success=false", msg)
	}
	if msg.PageIndex == nil || *msg.PageIndex != 5 {
		t.Fatalf("page_index = %v, want 5", msg.PageIndex)
	}
}

func TestNavigateForwardsURL(t *testing.T) {
	f := &fakeController{}
	s, _ := newTestSession(f)

	s.handle(context.Background(), []byte(`{"type":"navigate","url":"example.com"}`))

	if len(f.navigated) != 1 || f.navigated[0] != "example.com" {
		t.Fatalf("navigated = %v, want [example.com]", f.navigated)
	}
}

func TestMalformedMessageSurvives(t *testing.T) {
	f := &fakeController{}
	s, cap := newTestSession(f)

	s.handle(context.Background(), []byte(`{not json`))
	s.handle(context.Background(), []byte(`{"type":"mouse_click","x":1,"y":2}`))

	if f.clicks != 1 {
		t.Fatalf("clicks = %d, want 1 (session should survive bad payload)", f.clicks)
	}
	if len(cap.messages) != 0 {
		t.Fatalf("sent %d messages, want 0", len(cap.messages))
	}
}

func TestUnknownTypeIgnored(t *testing.T) {
	f := &fakeController{}
	s, cap := newTestSession(f)

	s.handle(context.Background(), []byte(`{"type":"teleport"}`))

	if len(cap.messages) != 0 {
		t.Fatalf("sent %d messages, want 0", len(cap.messages))
	}
}

func TestEmptyKeyAndTextAreNoOps(t *testing.T) {
	f := &fakeController{}
	s, _ := newTestSession(f)

	s.handle(context.Background(), []byte(`{"type":"key_press","key":""}`))
	s.handle(context.Background(), []byte(`{"type":"key_type","text":""}`))

	if len(f.keys) != 0 || len(f.typed) != 0 {
		t.Fatalf("keys = %v, typed = %v, want both empty", f.keys, f.typed)
	}
}

func TestAddTabDebounce(t *testing.T) {
	f := &fakeController{}
	s, cap := newTestSession(f)

	now := time.Unix(1000, 0)
	s.gw.now = func() time.Time { return now }

	s.handle(context.Background(), []byte(`{"type":"add_tab"}`))
	now = now.Add(2 * time.Second)
	s.handle(context.Background(), []byte(`{"type":"add_tab"}`))

	if f.addCalls != 1 {
		t.Fatalf("addCalls = %d, want 1 (second call inside window)", f.addCalls)
	}
	if len(cap.messages) != 2 {
		t.Fatalf("sent %d messages, want 2", len(cap.messages))
	}
	first := cap.messages[0].(resultMessage)
	second := cap.messages[1].(resultMessage)
	if !first.Success || first.Type != "tab_added" {
		t.Fatalf("first = %+v, want tab_added success=true", first)
	}
	if second.Success || second.Reason != "duplicate_request" {
		t.Fatalf("second = %+v, want success=false reason=duplicate_request", second)
	}

	now = now.Add(4 * time.Second)
	s.handle(context.Background(), []byte(`{"type":"add_tab"}`))
	if f.addCalls != 2 {
		t.Fatalf("addCalls = %d, want 2 (window expired)", f.addCalls)
	}
}

func TestGetPagesSendsPagesInfo(t *testing.T) {
	f := &fakeController{}
	s, cap := newTestSession(f)

	s.handle(context.Background(), []byte(`{"type":"get_pages"}`))

	if len(cap.messages) != 1 {
		t.Fatalf("sent %d messages, want 1", len(cap.messages))
	}
	msg := cap.messages[0].(pagesInfoMessage)
	if msg.Type != "pages_info" || len(msg.Pages) != 1 {
		t.Fatalf("message = %+v, want pages_info with 1 page", msg)
	}
}

func TestEmitFrameEncodesScreenshot(t *testing.T) {
	f := &fakeController{}
	s, cap := newTestSession(f)

	if err := s.emitFrame(); err != nil {
		t.Fatalf("emitFrame() error = %v", err)
	}
	msg := cap.messages[0].(screenshotMessage)
	if msg.Type != "screenshot" {
		t.Fatalf("type = %q, want screenshot", msg.Type)
	}
	data, err := base64.StdEncoding.DecodeString(msg.Data)
	if err != nil {
		t.Fatalf("decode base64: %v", err)
	}
	if string(data) != "jpeg" {
		t.Fatalf("data = %q, want %q", data, "jpeg")
	}
	if msg.Viewport != [2]int{1920, 1080} {
		t.Fatalf("viewport = %v, want [1920 1080]", msg.Viewport)
	}
}

func TestStreamStopsOnSendFailure(t *testing.T) {
	f := &fakeController{}
	g := New(f, time.Millisecond, 5*time.Second)
	cap := &capturedSend{err: errors.New("broken pipe")}

	cancelled := make(chan struct{})
	s := &session{gw: g, send: cap.send, cancel: func() { close(cancelled) }}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		s.stream(ctx)
		close(done)
	}()

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("stream did not cancel after send failure")
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stream goroutine did not exit")
	}
	if f.frames != 1 {
		t.Fatalf("frames captured = %d, want 1", f.frames)
	}
}
