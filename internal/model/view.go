package model

import (
	"time"

	"github.com/sakif/keepsake/internal/anniversary"
)

// MilestoneView is the one shape both milestone variants are returned in.
// Fields that belong to the other variant are null.
type MilestoneView struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	MemoryID        *string    `json:"memory_id"`
	CelebrationDate *time.Time `json:"celebration_date"`
	ReminderEnabled bool       `json:"reminder_enabled"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Date         *time.Time `json:"date"`
	IsStandalone bool       `json:"is_standalone"`

	Type           *string         `json:"type"`
	TargetDate     *time.Time      `json:"target_date"`
	TargetCount    *int            `json:"target_count"`
	ReminderOption *ReminderOption `json:"reminder_option"`
	Memories       *Memory         `json:"memories"`

	anniversary.Info
}

// NewMilestoneView flattens m. mem is the linked memory and is ignored for
// standalone milestones; a linked milestone with a nil mem gets empty display
// fields.
func NewMilestoneView(m Milestone, mem *Memory) MilestoneView {
	v := MilestoneView{
		ID:              m.ID,
		UserID:          m.OwnerID,
		ReminderEnabled: m.ReminderEnabled,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
		IsStandalone:    m.IsStandalone(),
	}
	if !m.CelebrationDate.IsZero() {
		date := m.CelebrationDate
		v.CelebrationDate = &date
		v.Date = &date
	}

	switch variant := m.Variant.(type) {
	case Linked:
		id := variant.MemoryID
		v.MemoryID = &id
		if mem != nil {
			v.Title = mem.Title
			v.Description = mem.Description
			v.Memories = mem
		}
	case Standalone:
		typ := variant.Type
		if typ == "" {
			typ = DefaultMilestoneType
		}
		opt := ReminderOptionFromDays(variant.ReminderDays)
		v.Title = variant.Title
		v.Description = variant.Description
		v.Type = &typ
		v.TargetDate = variant.TargetDate
		v.TargetCount = variant.TargetCount
		v.ReminderOption = &opt
	}
	return v
}
