package draft

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a draft id does not exist in the
	// owner's collection.
	ErrNotFound = errors.New("draft not found")

	// ErrNoCurrent is returned when the owner has no current draft
	// selected.
	ErrNoCurrent = errors.New("no current draft")
)

// Store persists per-owner draft collections plus a per-owner pointer to
// the draft currently being worked on. Implementations must tolerate
// corrupted persisted state by treating the collection as empty instead of
// failing.
type Store interface {
	Create(ctx context.Context, owner string) (*ReportDraft, error)
	Get(ctx context.Context, owner string, id uuid.UUID) (*ReportDraft, error)
	Update(ctx context.Context, owner string, d *ReportDraft) error
	Delete(ctx context.Context, owner string, id uuid.UUID) error
	List(ctx context.Context, owner string, limit, offset int) ([]*ReportDraft, int, error)

	Current(ctx context.Context, owner string) (*ReportDraft, error)
	SetCurrent(ctx context.Context, owner string, id uuid.UUID) error
	ClearCurrent(ctx context.Context, owner string) error
}
