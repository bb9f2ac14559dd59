// Package service contains the business logic layer of the application.
//
// Handlers parse HTTP and call into a service; the service validates,
// enforces ownership and orchestrates the repositories. Nothing here knows
// about status codes: failures are apperror values that the handler maps.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sakif/keepsake/internal/anniversary"
	"github.com/sakif/keepsake/internal/apperror"
	"github.com/sakif/keepsake/internal/model"
	"github.com/sakif/keepsake/internal/repository"
	"github.com/sakif/keepsake/internal/saga"
)

// Messages returned to clients. Handlers and tests match on these.
const (
	MsgTitleRequired          = "title is required for standalone milestone"
	MsgDateRequiredFromMemory = "celebration_date is required when creating from memory"
	MsgDateRequired           = "celebration_date is required"
	MsgInvalidDate            = "Invalid celebration_date format"
	MsgInvalidTargetDate      = "Invalid target_date format"
	MsgInvalidTargetCount     = "Invalid target_count"
	MsgInvalidMilestoneID     = "Invalid milestone_id"
	MsgMemoryNotFound         = "Memory not found or does not belong to this user"
	MsgMilestoneNotFound      = "Milestone not found"
	MsgNotOwner               = "You do not have permission to modify this milestone"
	MsgNoFields               = "No fields provided for update"
	MsgMemoryNotMarked        = "memory could not be marked as a milestone"
	MsgInvalidReferenceDate   = "Invalid date format"
)

// Saga step names, also used as log attributes.
const (
	stepInsertMilestone = "insertMilestone"
	stepMarkMemory      = "markMemory"
)

// errFlagFiltered is returned by the markMemory step when the store accepted
// the update but changed nothing, which is how row-level policies reject.
var errFlagFiltered = errors.New("memory flag update affected no rows")

// Clock returns the current instant.
type Clock func() time.Time

// Recorder receives operation outcomes. internal/metrics implements it.
type Recorder interface {
	ObserveOperation(operation, outcome string)
	ObserveRollback(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveOperation(string, string) {}
func (nopRecorder) ObserveRollback(string)          {}

// Operation outcomes reported to the Recorder.
const (
	OutcomeSuccess     = "success"
	OutcomeClientError = "client_error"
	OutcomeError       = "error"

	RollbackClean  = "clean"
	RollbackFailed = "failed"
)

// CreateMilestoneInput is a create request. Nil means the field was absent.
type CreateMilestoneInput struct {
	MemoryID        *string
	CelebrationDate *string
	ReminderEnabled *bool

	// Standalone only.
	Title          *string
	Description    *string
	Type           *string
	TargetDate     *string
	TargetCount    *int
	ReminderOption *string
}

// UpdateMilestoneInput is a partial update. At least one field must be set.
type UpdateMilestoneInput struct {
	CelebrationDate *string
	ReminderEnabled *bool
}

// MilestoneService is the milestone engine: the two creation paths, the
// ownership guard, and the calculator run over every returned record.
type MilestoneService struct {
	milestones repository.MilestoneRepository
	memories   repository.MemoryRepository
	calc       anniversary.Calculator
	now        Clock
	recorder   Recorder
	logger     *slog.Logger
}

// NewMilestoneService wires the engine. A nil clock means time.Now and a nil
// recorder discards outcomes.
func NewMilestoneService(
	milestones repository.MilestoneRepository,
	memories repository.MemoryRepository,
	calc anniversary.Calculator,
	clock Clock,
	recorder Recorder,
	logger *slog.Logger,
) *MilestoneService {
	if clock == nil {
		clock = time.Now
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &MilestoneService{
		milestones: milestones,
		memories:   memories,
		calc:       calc,
		now:        clock,
		recorder:   recorder,
		logger:     logger,
	}
}

// List returns every milestone the owner can see, oldest anchor first.
// Linked milestones whose memory is gone or foreign are left out.
func (s *MilestoneService) List(ctx context.Context, ownerID string) (views []model.MilestoneView, err error) {
	defer func() { s.observe("list", err) }()

	milestones, err := s.milestones.ListByOwner(ctx, ownerID, repository.MilestoneFilter{})
	if err != nil {
		s.logger.Error("failed to list milestones",
			slog.String("owner_id", ownerID),
			slog.String("error", err.Error()),
		)
		return nil, apperror.Upstream("listing milestones", err)
	}

	return s.assemble(ctx, ownerID, milestones, s.now())
}

// DueToday returns the owner's reminder-enabled milestones whose anchor
// recurs on ref's calendar date. A zero ref means now.
//
// Standalone milestones are included on their own celebration date. Linked
// milestones whose memory is gone are dropped, as in List.
func (s *MilestoneService) DueToday(ctx context.Context, ownerID string, ref time.Time) (views []model.MilestoneView, err error) {
	defer func() { s.observe("due_today", err) }()

	if ref.IsZero() {
		ref = s.now()
	}

	milestones, err := s.milestones.ListByOwner(ctx, ownerID, repository.MilestoneFilter{ReminderEnabledOnly: true})
	if err != nil {
		s.logger.Error("failed to list reminder milestones",
			slog.String("owner_id", ownerID),
			slog.String("error", err.Error()),
		)
		return nil, apperror.Upstream("listing milestones", err)
	}

	due := anniversary.SelectDue(s.calc, milestones, ref, func(m model.Milestone) time.Time {
		return m.CelebrationDate
	})
	return s.assemble(ctx, ownerID, due, ref)
}

// ParseReferenceDate reads a client-supplied "today" in the calendar
// location.
func (s *MilestoneService) ParseReferenceDate(raw string) (time.Time, error) {
	ref, err := s.calc.ParseDate(raw)
	if err != nil {
		return time.Time{}, apperror.ValidationFailed("date", MsgInvalidReferenceDate)
	}
	return ref, nil
}

// Create dispatches on memory_id alone: a well-formed UUID selects the
// from-memory path, anything else the standalone path.
func (s *MilestoneService) Create(ctx context.Context, ownerID string, in CreateMilestoneInput) (view *model.MilestoneView, err error) {
	defer func() { s.observe("create", err) }()

	if in.MemoryID != nil {
		if memoryID := strings.TrimSpace(*in.MemoryID); IsUUID(memoryID) {
			return s.createFromMemory(ctx, ownerID, strings.ToLower(memoryID), in)
		}
	}
	return s.createStandalone(ctx, ownerID, in)
}

func (s *MilestoneService) createFromMemory(ctx context.Context, ownerID, memoryID string, in CreateMilestoneInput) (*model.MilestoneView, error) {
	if in.CelebrationDate == nil || strings.TrimSpace(*in.CelebrationDate) == "" {
		return nil, apperror.ValidationFailed("celebration_date", MsgDateRequiredFromMemory)
	}
	celebration, err := s.calc.ParseDate(*in.CelebrationDate)
	if err != nil {
		return nil, apperror.ValidationFailed("celebration_date", MsgInvalidDate)
	}

	memory, err := s.memories.GetOwned(ctx, ownerID, memoryID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFoundMessage(MsgMemoryNotFound)
		}
		return nil, apperror.Upstream("fetching memory", err)
	}

	reminderEnabled := false
	if in.ReminderEnabled != nil {
		reminderEnabled = *in.ReminderEnabled
	}
	milestone, err := model.NewLinkedMilestone(ownerID, memoryID, celebration, reminderEnabled)
	if err != nil {
		return nil, apperror.ValidationFailed("memory_id", err.Error())
	}

	err = saga.Run(ctx, s.logger, "create_milestone_from_memory",
		saga.Step{
			Name: stepInsertMilestone,
			Do: func(ctx context.Context) error {
				return s.milestones.Create(ctx, milestone)
			},
			Undo: func(ctx context.Context) error {
				return s.milestones.Delete(ctx, ownerID, milestone.ID)
			},
		},
		saga.Step{
			Name: stepMarkMemory,
			Do: func(ctx context.Context) error {
				n, err := s.memories.SetMilestoneFlag(ctx, ownerID, memoryID, true)
				if err != nil {
					return err
				}
				if n == 0 {
					return errFlagFiltered
				}
				return nil
			},
		},
	)
	if err != nil {
		return nil, s.createFailure(err, ownerID, memoryID)
	}

	memory.IsMilestone = true
	s.logger.Info("milestone created",
		slog.String("id", milestone.ID),
		slog.String("owner_id", ownerID),
		slog.String("memory_id", memoryID),
	)

	view := s.enrich(model.NewMilestoneView(*milestone, memory), milestone.CelebrationDate, s.now())
	return &view, nil
}

// createFailure turns a failed create saga into the error the caller sees.
func (s *MilestoneService) createFailure(err error, ownerID, memoryID string) error {
	var stepErr *saga.StepError
	if !errors.As(err, &stepErr) {
		return apperror.Upstream("creating milestone", err)
	}
	if stepErr.Step == stepInsertMilestone {
		s.logger.Error("failed to create milestone",
			slog.String("owner_id", ownerID),
			slog.String("error", stepErr.Err.Error()),
		)
		return apperror.Upstream("creating milestone", stepErr.Err)
	}

	if stepErr.RolledBack() {
		s.recorder.ObserveRollback(RollbackClean)
	} else {
		s.recorder.ObserveRollback(RollbackFailed)
	}
	s.logger.Warn("milestone create rolled back",
		slog.String("owner_id", ownerID),
		slog.String("memory_id", memoryID),
		slog.Bool("clean", stepErr.RolledBack()),
		slog.String("error", stepErr.Err.Error()),
	)

	conflict := apperror.Conflict(MsgMemoryNotMarked)
	conflict.Cause = err
	return conflict
}

func (s *MilestoneService) createStandalone(ctx context.Context, ownerID string, in CreateMilestoneInput) (*model.MilestoneView, error) {
	var title string
	if in.Title != nil {
		title = strings.TrimSpace(*in.Title)
	}
	if title == "" {
		return nil, apperror.ValidationFailed("title", MsgTitleRequired)
	}

	if in.CelebrationDate == nil || strings.TrimSpace(*in.CelebrationDate) == "" {
		return nil, apperror.ValidationFailed("celebration_date", MsgDateRequired)
	}
	celebration, err := s.calc.ParseDate(*in.CelebrationDate)
	if err != nil {
		return nil, apperror.ValidationFailed("celebration_date", MsgInvalidDate)
	}

	detail := model.Standalone{Title: title}
	if in.Description != nil {
		detail.Description = *in.Description
	}
	if in.Type != nil {
		detail.Type = strings.TrimSpace(*in.Type)
	}
	if in.TargetDate != nil && strings.TrimSpace(*in.TargetDate) != "" {
		target, err := s.calc.ParseDate(*in.TargetDate)
		if err != nil {
			return nil, apperror.ValidationFailed("target_date", MsgInvalidTargetDate)
		}
		detail.TargetDate = &target
	}
	if in.TargetCount != nil {
		if *in.TargetCount < 0 {
			return nil, apperror.ValidationFailed("target_count", MsgInvalidTargetCount)
		}
		count := *in.TargetCount
		detail.TargetCount = &count
	}

	// reminder_option, when present, decides both the lead time and whether
	// reminders are on at all.
	reminderEnabled := true
	if in.ReminderEnabled != nil {
		reminderEnabled = *in.ReminderEnabled
	}
	leadDays := model.DefaultReminderDays
	detail.ReminderDays = &leadDays
	if in.ReminderOption != nil && *in.ReminderOption != "" {
		opt, ok := model.ParseReminderOption(*in.ReminderOption)
		if !ok {
			s.logger.Warn("unknown reminder option, using default",
				slog.String("reminder_option", *in.ReminderOption),
				slog.String("default", string(opt)),
			)
		}
		detail.ReminderDays = opt.LeadDays()
		reminderEnabled = detail.ReminderDays != nil
	}

	milestone, err := model.NewStandaloneMilestone(ownerID, celebration, reminderEnabled, detail)
	if err != nil {
		return nil, apperror.ValidationFailed("title", MsgTitleRequired)
	}

	if err := s.milestones.Create(ctx, milestone); err != nil {
		s.logger.Error("failed to create milestone",
			slog.String("owner_id", ownerID),
			slog.String("error", err.Error()),
		)
		return nil, apperror.Upstream("creating milestone", err)
	}

	s.logger.Info("standalone milestone created",
		slog.String("id", milestone.ID),
		slog.String("owner_id", ownerID),
	)

	view := s.enrich(model.NewMilestoneView(*milestone, nil), milestone.CelebrationDate, s.now())
	return &view, nil
}

// Update changes celebration_date and/or reminder_enabled and returns the
// re-read record.
func (s *MilestoneService) Update(ctx context.Context, ownerID, id string, in UpdateMilestoneInput) (view *model.MilestoneView, err error) {
	defer func() { s.observe("update", err) }()

	id, err = milestoneID(id)
	if err != nil {
		return nil, err
	}
	if in.CelebrationDate == nil && in.ReminderEnabled == nil {
		return nil, apperror.ValidationFailed("", MsgNoFields)
	}

	var patch model.MilestonePatch
	if in.CelebrationDate != nil {
		celebration, err := s.calc.ParseDate(*in.CelebrationDate)
		if err != nil {
			return nil, apperror.ValidationFailed("celebration_date", MsgInvalidDate)
		}
		patch.CelebrationDate = &celebration
	}
	if in.ReminderEnabled != nil {
		enabled := *in.ReminderEnabled
		patch.ReminderEnabled = &enabled
	}

	if _, err := s.authorize(ctx, ownerID, id); err != nil {
		return nil, err
	}

	if err := s.milestones.Update(ctx, ownerID, id, patch); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFoundMessage(MsgMilestoneNotFound)
		}
		s.logger.Error("failed to update milestone",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return nil, apperror.Upstream("updating milestone", err)
	}

	updated, err := s.milestones.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFoundMessage(MsgMilestoneNotFound)
		}
		return nil, apperror.Upstream("fetching milestone", err)
	}

	var memory *model.Memory
	if memoryID, ok := updated.MemoryID(); ok {
		memory, err = s.memories.GetOwned(ctx, ownerID, memoryID)
		if err != nil && !errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Upstream("fetching memory", err)
		}
	}

	s.logger.Info("milestone updated", slog.String("id", id))

	v := s.enrich(model.NewMilestoneView(*updated, memory), updated.CelebrationDate, s.now())
	return &v, nil
}

// Delete removes the milestone, then clears the linked memory's flag unless
// another milestone still links that memory. The flag reset is best effort:
// its failure is logged and the delete stands. It returns the normalised id
// of the deleted milestone.
func (s *MilestoneService) Delete(ctx context.Context, ownerID, id string) (deleted string, err error) {
	defer func() { s.observe("delete", err) }()

	id, err = milestoneID(id)
	if err != nil {
		return "", err
	}

	milestone, err := s.authorize(ctx, ownerID, id)
	if err != nil {
		return "", err
	}

	if err := s.milestones.Delete(ctx, ownerID, id); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return "", apperror.NotFoundMessage(MsgMilestoneNotFound)
		}
		s.logger.Error("failed to delete milestone",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return "", apperror.Upstream("deleting milestone", err)
	}

	if memoryID, ok := milestone.MemoryID(); ok {
		s.releaseMemory(ctx, ownerID, id, memoryID)
	}

	s.logger.Info("milestone deleted", slog.String("id", id))
	return id, nil
}

// releaseMemory clears is_milestone on a memory whose milestone was just
// deleted. The flag stays set while any other milestone links the memory,
// and also when that cannot be determined.
func (s *MilestoneService) releaseMemory(ctx context.Context, ownerID, deletedID, memoryID string) {
	remaining, err := s.milestones.CountByMemory(ctx, ownerID, memoryID)
	if err != nil {
		s.logger.Error("failed to count milestones linked to memory",
			slog.String("milestone_id", deletedID),
			slog.String("memory_id", memoryID),
			slog.String("error", err.Error()),
		)
		return
	}
	if remaining > 0 {
		s.logger.Info("memory still linked, keeping milestone flag",
			slog.String("memory_id", memoryID),
			slog.Int("remaining", remaining),
		)
		return
	}

	n, err := s.memories.SetMilestoneFlag(ctx, ownerID, memoryID, false)
	switch {
	case err != nil:
		s.logger.Error("failed to reset memory milestone flag",
			slog.String("milestone_id", deletedID),
			slog.String("memory_id", memoryID),
			slog.String("error", err.Error()),
		)
	case n == 0:
		s.logger.Warn("memory milestone flag reset changed no rows",
			slog.String("milestone_id", deletedID),
			slog.String("memory_id", memoryID),
		)
	}
}

// authorize is the ownership guard for mutations: a missing milestone is
// not found, someone else's is forbidden.
func (s *MilestoneService) authorize(ctx context.Context, ownerID, id string) (*model.Milestone, error) {
	milestone, err := s.milestones.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFoundMessage(MsgMilestoneNotFound)
		}
		return nil, apperror.Upstream("fetching milestone", err)
	}
	if milestone.OwnerID != ownerID {
		s.logger.Warn("milestone access denied",
			slog.String("id", id),
			slog.String("owner_id", ownerID),
		)
		return nil, apperror.Forbidden(MsgNotOwner)
	}
	return milestone, nil
}

// assemble joins milestones to their memories with one batch fetch and
// flattens them, keeping the input order.
func (s *MilestoneService) assemble(ctx context.Context, ownerID string, milestones []model.Milestone, ref time.Time) ([]model.MilestoneView, error) {
	memoryIDs := make([]string, 0, len(milestones))
	seen := make(map[string]struct{}, len(milestones))
	for _, m := range milestones {
		if id, ok := m.MemoryID(); ok {
			if _, dup := seen[id]; !dup {
				seen[id] = struct{}{}
				memoryIDs = append(memoryIDs, id)
			}
		}
	}

	byID := make(map[string]*model.Memory, len(memoryIDs))
	if len(memoryIDs) > 0 {
		memories, err := s.memories.ListOwnedByIDs(ctx, ownerID, memoryIDs)
		if err != nil {
			s.logger.Error("failed to fetch linked memories",
				slog.String("owner_id", ownerID),
				slog.String("error", err.Error()),
			)
			return nil, apperror.Upstream("fetching memories", err)
		}
		for i := range memories {
			byID[memories[i].ID] = &memories[i]
		}
	}

	views := make([]model.MilestoneView, 0, len(milestones))
	for _, m := range milestones {
		var memory *model.Memory
		if id, ok := m.MemoryID(); ok {
			memory, ok = byID[id]
			if !ok {
				s.logger.Debug("dropping milestone with dangling memory",
					slog.String("id", m.ID),
					slog.String("memory_id", id),
				)
				continue
			}
		}
		views = append(views, s.enrich(model.NewMilestoneView(m, memory), m.CelebrationDate, ref))
	}
	return views, nil
}

func (s *MilestoneService) enrich(v model.MilestoneView, anchor, ref time.Time) model.MilestoneView {
	v.Info = s.calc.Calculate(anchor, ref)
	return v
}

func (s *MilestoneService) observe(operation string, err error) {
	s.recorder.ObserveOperation(operation, outcomeOf(err))
}

func outcomeOf(err error) string {
	var appErr *apperror.AppError
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, apperror.ErrUpstream), !errors.As(err, &appErr):
		return OutcomeError
	default:
		return OutcomeClientError
	}
}

func milestoneID(raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if !IsUUID(id) {
		return "", apperror.ValidationFailed("milestone_id", MsgInvalidMilestoneID)
	}
	return strings.ToLower(id), nil
}

// IsUUID reports whether s is a canonical hyphenated RFC 4122 UUID of
// version 1 to 5. Braced, URN and unhyphenated forms are rejected.
func IsUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return false
	}
	return u.Variant() == uuid.RFC4122 && u.Version() >= 1 && u.Version() <= 5
}
