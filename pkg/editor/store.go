package editor

import (
	"context"

	"github.com/aretw0/notely/pkg/core"
)

// Store is the persistence collaborator of a session. client.Client talks to
// the REST API; ServiceStore calls a core.Service in process.
type Store interface {
	CreateNote(ctx context.Context, in core.NoteInput) (core.Note, error)
	UpdateNote(ctx context.Context, id int64, patch core.NotePatch) (core.Note, error)
	DeleteNote(ctx context.Context, id int64) error
	// ListNotes lists the caller's notes. A categoryID of 0 lists all.
	ListNotes(ctx context.Context, categoryID int64) ([]core.Note, error)
	ListCategories(ctx context.Context) ([]core.Category, error)
}

// ServiceStore adapts a core.Service to Store for a fixed owner.
type ServiceStore struct {
	svc     *core.Service
	ownerID int64
}

// NewServiceStore binds svc to the notes of ownerID.
func NewServiceStore(svc *core.Service, ownerID int64) *ServiceStore {
	return &ServiceStore{svc: svc, ownerID: ownerID}
}

func (s *ServiceStore) CreateNote(ctx context.Context, in core.NoteInput) (core.Note, error) {
	return s.svc.CreateNote(ctx, s.ownerID, in)
}

func (s *ServiceStore) UpdateNote(ctx context.Context, id int64, patch core.NotePatch) (core.Note, error) {
	return s.svc.UpdateNote(ctx, s.ownerID, id, patch)
}

func (s *ServiceStore) DeleteNote(ctx context.Context, id int64) error {
	return s.svc.DeleteNote(ctx, s.ownerID, id)
}

func (s *ServiceStore) ListNotes(ctx context.Context, categoryID int64) ([]core.Note, error) {
	return s.svc.ListNotes(ctx, s.ownerID, categoryID)
}

func (s *ServiceStore) ListCategories(ctx context.Context) ([]core.Category, error) {
	return s.svc.ListCategories(ctx, s.ownerID)
}

var _ Store = (*ServiceStore)(nil)
