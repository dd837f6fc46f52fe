// Package gateway terminates websocket control channels. Each connection
// gets a read loop for client events and a streaming goroutine pushing
// screenshot frames, both driving one shared tab controller.
package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/dgnsrekt/remote_browser/internal/control"
)

// Controller is the surface the gateway drives. Implemented by
// control.Controller; tests substitute a fake.
type Controller interface {
	Screenshot() control.Frame
	MouseMove(x, y float64) error
	MouseClick(x, y float64, button string) error
	MouseDown(x, y float64, button string) error
	MouseUp(x, y float64, button string) error
	Wheel(deltaX, deltaY float64) error
	KeyPress(key string) error
	TypeText(text string) error
	Navigate(url string) error
	Back() error
	Forward() error
	Reload() error
	PagesInfo() []control.PageInfo
	SwitchToPage(index int) error
	ClosePage(index int) error
	CleanupDuplicatePages() int
	AddNewTab(ctx context.Context) error
}

// Gateway accepts websocket connections and fans them onto the controller.
// The add_tab debounce is shared across all sessions, matching the single
// shared browser.
type Gateway struct {
	ctrl           Controller
	streamInterval time.Duration
	addTabDebounce time.Duration
	now            func() time.Time

	mu         sync.Mutex
	sessions   int
	lastAddTab time.Time
}

// New creates a gateway over the controller.
func New(ctrl Controller, streamInterval, addTabDebounce time.Duration) *Gateway {
	if streamInterval <= 0 {
		streamInterval = 100 * time.Millisecond
	}
	if addTabDebounce <= 0 {
		addTabDebounce = 5 * time.Second
	}
	return &Gateway{
		ctrl:           ctrl,
		streamInterval: streamInterval,
		addTabDebounce: addTabDebounce,
		now:            time.Now,
	}
}

// Sessions returns the number of connected clients.
func (g *Gateway) Sessions() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sessions
}

// HandleWS upgrades the request and serves the connection until the client
// disconnects.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		slog.Error("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	go g.serveConn(conn)
}

func (g *Gateway) serveConn(conn net.Conn) {
	defer func() { _ = conn.Close() }()

	g.mu.Lock()
	g.sessions++
	n := g.sessions
	g.mu.Unlock()
	slog.Info("client connected", "remote", conn.RemoteAddr().String(), "sessions", n)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var writeMu sync.Mutex
	s := &session{
		gw:     g,
		cancel: cancel,
		send: func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			writeMu.Lock()
			defer writeMu.Unlock()
			return wsutil.WriteServerMessage(conn, ws.OpText, data)
		},
	}

	go s.stream(ctx)

	for {
		data, op, err := wsutil.ReadClientData(conn)
		if err != nil {
			break
		}
		if op != ws.OpText {
			continue
		}
		s.handle(ctx, data)
	}

	cancel()
	g.mu.Lock()
	g.sessions--
	n = g.sessions
	g.mu.Unlock()
	slog.Info("client disconnected", "sessions", n)
}

// allowAddTab enforces the shared debounce window. A rejected request does
// not reset the window.
func (g *Gateway) allowAddTab() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	if now.Sub(g.lastAddTab) < g.addTabDebounce {
		return false
	}
	g.lastAddTab = now
	return true
}
