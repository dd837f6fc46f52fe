package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
)

// session is one connected client: a send function serialized over the
// connection plus a cancel for its streaming goroutine.
type session struct {
	gw     *Gateway
	send   func(v interface{}) error
	cancel context.CancelFunc
}

// handle dispatches one decoded client frame. Malformed payloads and
// handler panics are logged and the session survives; only a transport
// error ends the connection.
func (s *session) handle(ctx context.Context, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic while handling client message", "panic", r)
		}
	}()

	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		slog.Error("invalid client message", "error", err)
		return
	}

	switch msg.Type {
	case "mouse_move":
		s.forward("mouse_move", s.gw.ctrl.MouseMove(msg.X, msg.Y))
	case "mouse_click":
		s.forward("mouse_click", s.gw.ctrl.MouseClick(msg.X, msg.Y, msg.Button))
	case "mouse_down":
		s.forward("mouse_down", s.gw.ctrl.MouseDown(msg.X, msg.Y, msg.Button))
	case "mouse_up":
		s.forward("mouse_up", s.gw.ctrl.MouseUp(msg.X, msg.Y, msg.Button))
	case "mouse_wheel":
		s.forward("mouse_wheel", s.gw.ctrl.Wheel(msg.DeltaX, msg.DeltaY))
	case "key_press":
		if msg.Key == "" {
			return
		}
		s.forward("key_press", s.gw.ctrl.KeyPress(msg.Key))
	case "key_type":
		if msg.Text == "" {
			return
		}
		s.forward("key_type", s.gw.ctrl.TypeText(msg.Text))
	case "navigate":
		if err := s.gw.ctrl.Navigate(msg.URL); err != nil {
			slog.Error("navigation failed", "url", msg.URL, "error", err)
		}
	case "go_back":
		s.forward("go_back", s.gw.ctrl.Back())
	case "go_forward":
		s.forward("go_forward", s.gw.ctrl.Forward())
	case "refresh":
		s.forward("refresh", s.gw.ctrl.Reload())
	case "get_pages":
		s.sendPagesInfo()
	case "refresh_pages":
		s.gw.ctrl.CleanupDuplicatePages()
		s.sendPagesInfo()
	case "switch_page":
		err := s.gw.ctrl.SwitchToPage(msg.PageIndex)
		if err != nil {
			slog.Warn("switch page failed", "page_index", msg.PageIndex, "error", err)
		}
		s.sendResult("page_switched", err == nil, &msg.PageIndex, "")
	case "close_page":
		err := s.gw.ctrl.ClosePage(msg.PageIndex)
		if err != nil {
			slog.Warn("close page failed", "page_index", msg.PageIndex, "error", err)
		}
		s.sendResult("page_closed", err == nil, &msg.PageIndex, "")
	case "add_tab":
		s.handleAddTab(ctx)
	default:
		slog.Warn("unknown message type", "type", msg.Type)
	}
}

func (s *session) handleAddTab(ctx context.Context) {
	if !s.gw.allowAddTab() {
		slog.Info("add tab rejected by debounce")
		s.sendResult("tab_added", false, nil, "duplicate_request")
		return
	}
	err := s.gw.ctrl.AddNewTab(ctx)
	if err != nil {
		slog.Warn("add tab failed", "error", err)
	}
	s.sendResult("tab_added", err == nil, nil, "")
}

// forward logs a controller failure for a fire-and-forget operation. The
// client is not notified; at worst it sees a missed input.
func (s *session) forward(op string, err error) {
	if err != nil {
		slog.Warn("input operation failed", "op", op, "error", err)
	}
}

func (s *session) sendPagesInfo() {
	pages := s.gw.ctrl.PagesInfo()
	if err := s.send(pagesInfoMessage{Type: "pages_info", Pages: pages}); err != nil {
		slog.Warn("pages_info send failed", "error", err)
	}
}

func (s *session) sendResult(typ string, success bool, pageIndex *int, reason string) {
	msg := resultMessage{Type: typ, Success: success, PageIndex: pageIndex, Reason: reason}
	if err := s.send(msg); err != nil {
		slog.Warn("result send failed", "type", typ, "error", err)
	}
}
