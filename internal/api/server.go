// Package api exposes the HTTP surface: health, page listings, snapshot
// CRUD, interactive docs, the control UI, and the websocket endpoint.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgnsrekt/remote_browser/internal/control"
	"github.com/dgnsrekt/remote_browser/internal/snapshot"
)

// Service is the controller surface the REST layer exposes. Implemented by
// control.Service.
type Service interface {
	Healthy() bool
	Mode() control.Mode
	PageCount() int
	PagesInfo() []control.PageInfo
	CleanupDuplicatePages() int
	TakeSnapshot(ctx context.Context, notes string) (snapshot.SnapshotMeta, error)
	ListSnapshots(ctx context.Context) ([]snapshot.SnapshotMeta, error)
	GetSnapshot(ctx context.Context, id string) (snapshot.SnapshotMeta, error)
	ReadSnapshotImage(ctx context.Context, id string) ([]byte, string, error)
	DeleteSnapshot(ctx context.Context, id string) error
}

// SessionCounter reports connected websocket clients. Implemented by the
// gateway.
type SessionCounter interface {
	Sessions() int
}

// NewServer builds the full HTTP handler. wsHandler terminates websocket
// upgrades at /ws; staticDir serves the control UI at / and /static.
func NewServer(svc Service, sessions SessionCounter, wsHandler http.HandlerFunc, staticDir string) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("Remote Browser Gateway API", "1.0.0")
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	router.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(docsHTML)); err != nil {
			slog.Debug("docs response write failed", "error", err)
		}
	})

	router.Get("/ws", wsHandler)

	if staticDir != "" {
		router.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.ServeFile(w, r, filepath.Join(staticDir, "index.html"))
		})
		router.Handle("/static/*", http.StripPrefix("/static/",
			http.FileServer(http.Dir(staticDir))))
	}

	registerHealthHandlers(api, svc, sessions)
	registerPageHandlers(api, svc)
	registerSnapshotHandlers(api, svc)

	return router
}

func registerHealthHandlers(api huma.API, svc Service, sessions SessionCounter) {
	type healthOutput struct {
		Body struct {
			Status   string `json:"status"`
			Browser  string `json:"browser"`
			Pages    int    `json:"pages"`
			Sessions int    `json:"sessions"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/health", Summary: "Health check", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*healthOutput, error) {
			out := &healthOutput{}
			out.Body.Status = "ok"
			if !svc.Healthy() {
				out.Body.Status = "degraded"
			}
			out.Body.Browser = svc.Mode().String()
			out.Body.Pages = svc.PageCount()
			out.Body.Sessions = sessions.Sessions()
			return out, nil
		})
}

func registerPageHandlers(api huma.API, svc Service) {
	type pagesOutput struct {
		Body struct {
			Pages []control.PageInfo `json:"pages"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-pages", Method: http.MethodGet, Path: "/api/v1/pages", Summary: "List open pages", Tags: []string{"Pages"}},
		func(ctx context.Context, input *struct{}) (*pagesOutput, error) {
			out := &pagesOutput{}
			out.Body.Pages = svc.PagesInfo()
			return out, nil
		})

	type cleanupOutput struct {
		Body struct {
			Removed int `json:"removed"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "cleanup-pages", Method: http.MethodPost, Path: "/api/v1/pages/cleanup", Summary: "Close duplicate pages", Tags: []string{"Pages"}},
		func(ctx context.Context, input *struct{}) (*cleanupOutput, error) {
			out := &cleanupOutput{}
			out.Body.Removed = svc.CleanupDuplicatePages()
			return out, nil
		})
}

func registerSnapshotHandlers(api huma.API, svc Service) {
	type snapshotIDInput struct {
		SnapshotID string `path:"snapshot_id"`
	}

	type takeSnapshotOutput struct {
		Body snapshot.SnapshotMeta
	}
	huma.Register(api, huma.Operation{OperationID: "take-snapshot", Method: http.MethodPost, Path: "/api/v1/snapshots", Summary: "Capture the active page", Tags: []string{"Snapshots"}},
		func(ctx context.Context, input *struct {
			Body struct {
				Notes string `json:"notes,omitempty" doc:"Free-form note stored with the snapshot"`
			}
		}) (*takeSnapshotOutput, error) {
			meta, err := svc.TakeSnapshot(ctx, input.Body.Notes)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &takeSnapshotOutput{}
			out.Body = meta
			return out, nil
		})

	type listSnapshotsOutput struct {
		Body struct {
			Snapshots []snapshot.SnapshotMeta `json:"snapshots"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-snapshots", Method: http.MethodGet, Path: "/api/v1/snapshots", Summary: "List snapshots", Tags: []string{"Snapshots"}},
		func(ctx context.Context, input *struct{}) (*listSnapshotsOutput, error) {
			metas, err := svc.ListSnapshots(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &listSnapshotsOutput{}
			out.Body.Snapshots = metas
			return out, nil
		})

	type getSnapshotOutput struct {
		Body snapshot.SnapshotMeta
	}
	huma.Register(api, huma.Operation{OperationID: "get-snapshot", Method: http.MethodGet, Path: "/api/v1/snapshots/{snapshot_id}", Summary: "Get snapshot metadata", Tags: []string{"Snapshots"}},
		func(ctx context.Context, input *snapshotIDInput) (*getSnapshotOutput, error) {
			meta, err := svc.GetSnapshot(ctx, input.SnapshotID)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &getSnapshotOutput{}
			out.Body = meta
			return out, nil
		})

	type deleteSnapshotOutput struct {
		Body struct {
			Status string `json:"status"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "delete-snapshot", Method: http.MethodDelete, Path: "/api/v1/snapshots/{snapshot_id}", Summary: "Delete snapshot", Tags: []string{"Snapshots"}},
		func(ctx context.Context, input *snapshotIDInput) (*deleteSnapshotOutput, error) {
			if err := svc.DeleteSnapshot(ctx, input.SnapshotID); err != nil {
				return nil, mapErr(err)
			}
			out := &deleteSnapshotOutput{}
			out.Body.Status = "deleted"
			return out, nil
		})

	type snapshotImageOutput struct {
		ContentType string `header:"Content-Type"`
		Body        []byte
	}
	huma.Register(api, huma.Operation{
		OperationID: "get-snapshot-image",
		Method:      http.MethodGet,
		Path:        "/api/v1/snapshots/{snapshot_id}/image",
		Summary:     "Get snapshot image",
		Tags:        []string{"Snapshots"},
		Responses: map[string]*huma.Response{
			"200": {
				Description: "Snapshot image",
				Content: map[string]*huma.MediaType{
					"image/jpeg": {
						Schema: &huma.Schema{Type: "string", Format: "binary"},
					},
				},
			},
		},
	}, func(ctx context.Context, input *snapshotIDInput) (*snapshotImageOutput, error) {
		data, format, err := svc.ReadSnapshotImage(ctx, input.SnapshotID)
		if err != nil {
			return nil, mapErr(err)
		}
		ct := "image/jpeg"
		if format == "png" {
			ct = "image/png"
		}
		return &snapshotImageOutput{ContentType: ct, Body: data}, nil
	})
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, snapshot.ErrNotFound) {
		return huma.Error404NotFound(err.Error())
	}
	if errors.Is(err, snapshot.ErrInvalidID) {
		return huma.Error400BadRequest(err.Error())
	}
	var coded *control.CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case control.CodeValidation:
			return huma.Error400BadRequest(coded.Message)
		case control.CodeOutOfRange:
			return huma.Error404NotFound(coded.Message)
		case control.CodeLastPage, control.CodeDuplicateInFlight:
			return huma.Error409Conflict(coded.Message)
		case control.CodePlaceholder:
			return huma.Error503ServiceUnavailable(coded.Message)
		default:
			return huma.Error500InternalServerError(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		}
	}
	return huma.Error500InternalServerError(err.Error())
}
