// Package repository declares what the service layer needs from the data
// store. Implementations live in the postgres and sqlite subpackages.
//
// Every owner-scoped method filters on the owner id the way row-level
// security would: a row owned by someone else is indistinguishable from a
// missing row.
package repository

import (
	"context"

	"github.com/sakif/keepsake/internal/model"
)

// MilestoneFilter narrows ListByOwner.
type MilestoneFilter struct {
	ReminderEnabledOnly bool
}

type MilestoneRepository interface {
	// ListByOwner returns the owner's milestones ordered by celebration date,
	// oldest first.
	ListByOwner(ctx context.Context, ownerID string, filter MilestoneFilter) ([]model.Milestone, error)
	// GetByID returns apperror.ErrNotFound when no row has this id,
	// whoever owns it.
	GetByID(ctx context.Context, id string) (*model.Milestone, error)
	// Create assigns ID, CreatedAt and UpdatedAt.
	Create(ctx context.Context, m *model.Milestone) error
	Update(ctx context.Context, ownerID, id string, patch model.MilestonePatch) error
	Delete(ctx context.Context, ownerID, id string) error
	// CountByMemory returns how many of the owner's milestones link memoryID.
	CountByMemory(ctx context.Context, ownerID, memoryID string) (int, error)
}

type MemoryRepository interface {
	// GetOwned returns apperror.ErrNotFound when the memory is missing or
	// belongs to another user.
	GetOwned(ctx context.Context, ownerID, id string) (*model.Memory, error)
	// ListOwnedByIDs fetches many memories in one round trip. Ids that are
	// missing or foreign are silently absent from the result.
	ListOwnedByIDs(ctx context.Context, ownerID string, ids []string) ([]model.Memory, error)
	// SetMilestoneFlag returns the number of rows changed. Zero is not an
	// error here: callers decide what a filtered update means.
	SetMilestoneFlag(ctx context.Context, ownerID, id string, flag bool) (int64, error)
}

// Store is a data store that serves both collections.
type Store interface {
	MilestoneRepository
	MemoryRepository
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
