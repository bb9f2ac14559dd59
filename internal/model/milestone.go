// Package model defines the data structures used throughout the application.
package model

import (
	"errors"
	"strings"
	"time"
)

// DefaultMilestoneType is the category given to standalone milestones that
// were created without one.
const DefaultMilestoneType = "life_event"

var (
	ErrMissingMemoryID = errors.New("model: linked milestone requires a memory id")
	ErrMissingTitle    = errors.New("model: standalone milestone requires a title")
)

// Milestone is a recurring-anniversary record owned by exactly one user.
//
// CelebrationDate is the anchor: its month and day recur every year, its year
// records the first occurrence. A zero CelebrationDate means the stored value
// could not be read as a date.
//
// Variant is either Linked or Standalone, never both and never nil for a
// milestone built by one of the constructors below.
type Milestone struct {
	ID              string
	OwnerID         string
	CelebrationDate time.Time
	ReminderEnabled bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Variant         Variant
}

// Variant is the closed set of milestone modes. The unexported method keeps
// other packages from adding a third one.
type Variant interface {
	milestoneVariant()
}

// Linked points at a Memory. The memory supplies the display title and
// description; the milestone never owns it.
type Linked struct {
	MemoryID string
}

// Standalone carries its own display attributes.
type Standalone struct {
	Title       string
	Description string
	Type        string
	TargetDate  *time.Time
	TargetCount *int
	// ReminderDays is the lead time in days; nil means no reminder.
	ReminderDays *int
}

func (Linked) milestoneVariant()     {}
func (Standalone) milestoneVariant() {}

// NewLinkedMilestone builds a milestone that references an existing memory.
func NewLinkedMilestone(ownerID, memoryID string, celebration time.Time, reminderEnabled bool) (*Milestone, error) {
	memoryID = strings.TrimSpace(memoryID)
	if memoryID == "" {
		return nil, ErrMissingMemoryID
	}
	return &Milestone{
		OwnerID:         ownerID,
		CelebrationDate: celebration,
		ReminderEnabled: reminderEnabled,
		Variant:         Linked{MemoryID: memoryID},
	}, nil
}

// NewStandaloneMilestone builds a milestone without a memory. The title is
// trimmed and must not be empty; an empty Type becomes DefaultMilestoneType.
func NewStandaloneMilestone(ownerID string, celebration time.Time, reminderEnabled bool, detail Standalone) (*Milestone, error) {
	detail.Title = strings.TrimSpace(detail.Title)
	if detail.Title == "" {
		return nil, ErrMissingTitle
	}
	if detail.Type == "" {
		detail.Type = DefaultMilestoneType
	}
	return &Milestone{
		OwnerID:         ownerID,
		CelebrationDate: celebration,
		ReminderEnabled: reminderEnabled,
		Variant:         detail,
	}, nil
}

// MemoryID returns the linked memory id, if any.
func (m *Milestone) MemoryID() (string, bool) {
	if l, ok := m.Variant.(Linked); ok {
		return l.MemoryID, true
	}
	return "", false
}

// Standalone returns the standalone attributes, if any.
func (m *Milestone) Standalone() (Standalone, bool) {
	s, ok := m.Variant.(Standalone)
	return s, ok
}

// IsStandalone reports whether the milestone has no linked memory.
func (m *Milestone) IsStandalone() bool {
	_, ok := m.Variant.(Standalone)
	return ok
}

// MilestonePatch is a partial update. Nil fields are left untouched.
type MilestonePatch struct {
	CelebrationDate *time.Time
	ReminderEnabled *bool
}

// Empty reports whether the patch changes nothing.
func (p MilestonePatch) Empty() bool {
	return p.CelebrationDate == nil && p.ReminderEnabled == nil
}
