package control

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dgnsrekt/remote_browser/internal/snapshot"
)

// Service glues the controller to the snapshot store for the REST surface.
type Service struct {
	ctrl  *Controller
	store *snapshot.Store
}

// NewService creates the REST-facing service.
func NewService(ctrl *Controller, store *snapshot.Store) *Service {
	return &Service{ctrl: ctrl, store: store}
}

func (s *Service) Healthy() bool { return s.ctrl.Healthy() }
func (s *Service) Mode() Mode { return s.ctrl.Mode() }
func (s *Service) PageCount() int { return s.ctrl.PageCount() }
func (s *Service) PagesInfo() []PageInfo { return s.ctrl.PagesInfo() }
func (s *Service) CleanupDuplicatePages() int { return s.ctrl.CleanupDuplicatePages() }

// TakeSnapshot captures the active page and persists it. In placeholder
// mode the stored image is the synthetic frame, same as the stream.
func (s *Service) TakeSnapshot(ctx context.Context, notes string) (snapshot.SnapshotMeta, error) {
	frame := s.ctrl.Screenshot()
	meta := snapshot.SnapshotMeta{
		ID:        uuid.New().String(),
		URL:       s.ctrl.ActiveURL(),
		PageIndex: s.ctrl.ActiveIndex(),
		Format:    "jpeg",
		Width:     frame.Width,
		Height:    frame.Height,
		SizeBytes: len(frame.Data),
		CreatedAt: time.Now().UTC(),
		Notes:     notes,
	}
	if err := s.store.Save(meta, frame.Data); err != nil {
		return snapshot.SnapshotMeta{}, err
	}
	return meta, nil
}

func (s *Service) ListSnapshots(ctx context.Context) ([]snapshot.SnapshotMeta, error) {
	return s.store.List()
}

func (s *Service) GetSnapshot(ctx context.Context, id string) (snapshot.SnapshotMeta, error) {
	return s.store.Get(id)
}

func (s *Service) ReadSnapshotImage(ctx context.Context, id string) ([]byte, string, error) {
	return s.store.ReadImage(id)
}

func (s *Service) DeleteSnapshot(ctx context.Context, id string) error {
	return s.store.Delete(id)
}
