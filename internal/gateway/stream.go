package gateway

import (
	"context"
	"encoding/base64"
	"log/slog"
	"time"
)

// stream pushes one screenshot frame per tick until the session context is
// cancelled or a send fails. Capture runs inline with the loop, so a slow
// capture delays the next frame instead of piling up concurrent captures.
func (s *session) stream(ctx context.Context) {
	ticker := time.NewTicker(s.gw.streamInterval)
	defer ticker.Stop()

	sent := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if err := s.emitFrame(); err != nil {
			slog.Info("screenshot stream ended", "frames", sent, "error", err)
			s.cancel()
			return
		}
		sent++
		if sent%100 == 0 {
			slog.Debug("screenshot frames sent", "count", sent)
		}
	}
}

// emitFrame captures and sends a single screenshot message.
func (s *session) emitFrame() error {
	frame := s.gw.ctrl.Screenshot()
	return s.send(screenshotMessage{
		Type:     "screenshot",
		Data:     base64.StdEncoding.EncodeToString(frame.Data),
		Viewport: [2]int{frame.Width, frame.Height},
	})
}
