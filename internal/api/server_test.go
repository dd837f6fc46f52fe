package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgnsrekt/remote_browser/internal/control"
	"github.com/dgnsrekt/remote_browser/internal/snapshot"
)

type stubService struct {
	healthy bool
	mode    control.Mode
	pages   []control.PageInfo
}

func (s *stubService) Healthy() bool { return s.healthy }
func (s *stubService) Mode() control.Mode { return s.mode }
func (s *stubService) PageCount() int { return len(s.pages) }
func (s *stubService) PagesInfo() []control.PageInfo { return s.pages }
func (s *stubService) CleanupDuplicatePages() int { return 0 }

func (s *stubService) TakeSnapshot(ctx context.Context, notes string) (snapshot.SnapshotMeta, error) {
	return snapshot.SnapshotMeta{
		ID:        "123e4567-e89b-12d3-a456-426614174000",
		Format:    "jpeg",
		Notes:     notes,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func (s *stubService) ListSnapshots(ctx context.Context) ([]snapshot.SnapshotMeta, error) {
	return []snapshot.SnapshotMeta{}, nil
}

func (s *stubService) GetSnapshot(ctx context.Context, id string) (snapshot.SnapshotMeta, error) {
	return snapshot.SnapshotMeta{}, snapshot.ErrNotFound
}

func (s *stubService) ReadSnapshotImage(ctx context.Context, id string) ([]byte, string, error) {
	return nil, "", snapshot.ErrNotFound
}

func (s *stubService) DeleteSnapshot(ctx context.Context, id string) error {
	return snapshot.ErrInvalidID
}

type stubSessions struct{ n int }

func (s *stubSessions) Sessions() int { return s.n }

func newTestServer(svc *stubService) http.Handler {
	ws := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusSwitchingProtocols) }
	return NewServer(svc, &stubSessions{n: 2}, ws, "")
}

func TestHealthReportsBrowserState(t *testing.T) {
	svc := &stubService{
		healthy: true,
		mode:    control.ModeLive,
		pages:   []control.PageInfo{{Index: 0, URL: "https://example.com/", Active: true}},
	}
	h := newTestServer(svc)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var body struct {
		Status   string `json:"status"`
		Browser  string `json:"browser"`
		Pages    int    `json:"pages"`
		Sessions int    `json:"sessions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Status != "ok" || body.Browser != "live" || body.Pages != 1 || body.Sessions != 2 {
		t.Fatalf("body = %+v, want ok/live/1/2", body)
	}
}

func TestHealthDegradedInPlaceholderMode(t *testing.T) {
	svc := &stubService{healthy: false, mode: control.ModePlaceholder}
	h := newTestServer(svc)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var body struct {
		Status  string `json:"status"`
		Browser string `json:"browser"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Status != "degraded" || body.Browser != "placeholder" {
		t.Fatalf("body = %+v, want degraded/placeholder", body)
	}
}

func TestListPages(t *testing.T) {
	svc := &stubService{
		mode: control.ModeLive,
		pages: []control.PageInfo{
			{Index: 0, URL: "https://example.com/", Title: "Example", Active: true},
			{Index: 1, URL: "https://example.org/", Title: "Other"},
		},
	}
	h := newTestServer(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/pages", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var body struct {
		Pages []control.PageInfo `json:"pages"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Pages) != 2 || !body.Pages[0].Active {
		t.Fatalf("pages = %+v", body.Pages)
	}
}

func TestGetSnapshotNotFoundMapsTo404(t *testing.T) {
	h := newTestServer(&stubService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/snapshots/123e4567-e89b-12d3-a456-426614174000", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestDeleteSnapshotInvalidIDMapsTo400(t *testing.T) {
	h := newTestServer(&stubService{})

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/snapshots/nope", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestTakeSnapshotReturnsMeta(t *testing.T) {
	h := newTestServer(&stubService{mode: control.ModeLive})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/snapshots", strings.NewReader(`{"notes":"before login"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	var meta snapshot.SnapshotMeta
	if err := json.Unmarshal(w.Body.Bytes(), &meta); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if meta.Notes != "before login" {
		t.Fatalf("notes = %q, want %q", meta.Notes, "before login")
	}
}

func TestDocsDarkMode(t *testing.T) {
	h := newTestServer(&stubService{})

	req := httptest.NewRequest(http.MethodGet, "/docs", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), `data-theme="dark"`) {
		t.Fatalf("docs missing dark theme marker")
	}
}
