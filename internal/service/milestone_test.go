package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/keepsake/internal/anniversary"
	"github.com/sakif/keepsake/internal/apperror"
	"github.com/sakif/keepsake/internal/model"
	"github.com/sakif/keepsake/internal/repository"
)

// =========================================================================
// FAKE STORE
// =========================================================================
//
// fakeStore serves both repositories from memory. The knobs below let a test
// make the store fail the way a hosted database does: with an error, or by
// silently filtering an update down to zero rows.

type fakeStore struct {
	milestones []*model.Milestone
	memories   map[string]*model.Memory
	nextID     int

	createErr  error
	deleteErr  error
	listErr    error
	flagErr    error
	countErr   error
	filterFlag bool

	flagCalls []flagCall
}

type flagCall struct {
	memoryID string
	flag     bool
}

var (
	_ repository.MilestoneRepository = (*fakeStore)(nil)
	_ repository.MemoryRepository    = (*fakeStore)(nil)
)

func newFakeStore() *fakeStore {
	return &fakeStore{memories: make(map[string]*model.Memory)}
}

func (f *fakeStore) ListByOwner(_ context.Context, ownerID string, filter repository.MilestoneFilter) ([]model.Milestone, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	result := make([]model.Milestone, 0)
	for _, m := range f.milestones {
		if m.OwnerID != ownerID {
			continue
		}
		if filter.ReminderEnabledOnly && !m.ReminderEnabled {
			continue
		}
		result = append(result, *m)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CelebrationDate.Before(result[j].CelebrationDate)
	})
	return result, nil
}

func (f *fakeStore) GetByID(_ context.Context, id string) (*model.Milestone, error) {
	for _, m := range f.milestones {
		if m.ID == id {
			copied := *m
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("milestone", id)
}

func (f *fakeStore) Create(_ context.Context, m *model.Milestone) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	m.ID = fmt.Sprintf("00000000-0000-4000-8000-%012d", f.nextID)
	m.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.UpdatedAt = m.CreatedAt
	stored := *m
	f.milestones = append(f.milestones, &stored)
	return nil
}

func (f *fakeStore) Update(_ context.Context, ownerID, id string, patch model.MilestonePatch) error {
	for _, m := range f.milestones {
		if m.ID == id && m.OwnerID == ownerID {
			if patch.CelebrationDate != nil {
				m.CelebrationDate = *patch.CelebrationDate
			}
			if patch.ReminderEnabled != nil {
				m.ReminderEnabled = *patch.ReminderEnabled
			}
			return nil
		}
	}
	return apperror.NotFound("milestone", id)
}

func (f *fakeStore) Delete(_ context.Context, ownerID, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for i, m := range f.milestones {
		if m.ID == id && m.OwnerID == ownerID {
			f.milestones = append(f.milestones[:i], f.milestones[i+1:]...)
			return nil
		}
	}
	return apperror.NotFound("milestone", id)
}

func (f *fakeStore) CountByMemory(_ context.Context, ownerID, memoryID string) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	n := 0
	for _, m := range f.milestones {
		if id, ok := m.MemoryID(); ok && m.OwnerID == ownerID && id == memoryID {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) GetOwned(_ context.Context, ownerID, id string) (*model.Memory, error) {
	mem, ok := f.memories[id]
	if !ok || mem.UserID != ownerID {
		return nil, apperror.NotFound("memory", id)
	}
	copied := *mem
	return &copied, nil
}

func (f *fakeStore) ListOwnedByIDs(_ context.Context, ownerID string, ids []string) ([]model.Memory, error) {
	result := make([]model.Memory, 0, len(ids))
	for _, id := range ids {
		if mem, ok := f.memories[id]; ok && mem.UserID == ownerID {
			result = append(result, *mem)
		}
	}
	return result, nil
}

func (f *fakeStore) SetMilestoneFlag(_ context.Context, ownerID, id string, flag bool) (int64, error) {
	f.flagCalls = append(f.flagCalls, flagCall{memoryID: id, flag: flag})
	if f.flagErr != nil {
		return 0, f.flagErr
	}
	if f.filterFlag {
		return 0, nil
	}
	mem, ok := f.memories[id]
	if !ok || mem.UserID != ownerID {
		return 0, nil
	}
	mem.IsMilestone = flag
	return 1, nil
}

func (f *fakeStore) addMemory(id, ownerID, title string) *model.Memory {
	mem := &model.Memory{ID: id, UserID: ownerID, Title: title, Description: title + " notes"}
	f.memories[id] = mem
	return mem
}

// seed stores a milestone directly, bypassing the service.
func (f *fakeStore) seed(t *testing.T, m *model.Milestone) *model.Milestone {
	t.Helper()
	require.NoError(t, f.Create(context.Background(), m))
	return m
}

type fakeRecorder struct {
	operations map[string]int
	rollbacks  map[string]int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{operations: map[string]int{}, rollbacks: map[string]int{}}
}

func (r *fakeRecorder) ObserveOperation(operation, outcome string) {
	r.operations[operation+"/"+outcome]++
}

func (r *fakeRecorder) ObserveRollback(outcome string) {
	r.rollbacks[outcome]++
}

// =========================================================================
// TEST HELPERS
// =========================================================================

const (
	alice = "0b6f4a51-3c1e-4a55-9d8b-2f5b8f1f6a01"
	bob   = "7e2c1d90-5a4b-4c3d-8e2f-1a0b9c8d7e02"

	memoryA = "3f1e2d3c-4b5a-4697-8a1b-2c3d4e5f6a01"
	memoryB = "3f1e2d3c-4b5a-4697-8a1b-2c3d4e5f6a02"
	memoryC = "3f1e2d3c-4b5a-4697-8a1b-2c3d4e5f6a03"
)

var fixedNow = time.Date(2024, time.March, 1, 10, 30, 0, 0, time.UTC)

func newTestService(t *testing.T) (*MilestoneService, *fakeStore, *fakeRecorder) {
	t.Helper()
	store := newFakeStore()
	recorder := newFakeRecorder()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	svc := NewMilestoneService(store, store, anniversary.NewCalculator(time.UTC),
		func() time.Time { return fixedNow }, recorder, logger)
	return svc, store, recorder
}

func str(s string) *string { return &s }
func boolean(b bool) *bool { return &b }
func num(n int) *int       { return &n }

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func linked(t *testing.T, owner, memoryID string, date time.Time, reminder bool) *model.Milestone {
	t.Helper()
	m, err := model.NewLinkedMilestone(owner, memoryID, date, reminder)
	require.NoError(t, err)
	return m
}

func standalone(t *testing.T, owner, title string, date time.Time, reminder bool) *model.Milestone {
	t.Helper()
	m, err := model.NewStandaloneMilestone(owner, date, reminder, model.Standalone{Title: title})
	require.NoError(t, err)
	return m
}

func assertAppError(t *testing.T, err error, sentinel error, message string) {
	t.Helper()
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr), "want *apperror.AppError, got %T", err)
	assert.Equal(t, message, appErr.Message)
}

// =========================================================================
// CREATE FROM MEMORY
// =========================================================================

func TestCreate_FromMemory(t *testing.T) {
	svc, store, recorder := newTestService(t)
	store.addMemory(memoryA, alice, "Wedding")

	view, err := svc.Create(context.Background(), alice, CreateMilestoneInput{
		MemoryID:        str(memoryA),
		CelebrationDate: str("2015-06-20"),
	})
	require.NoError(t, err)

	require.NotNil(t, view.MemoryID)
	assert.Equal(t, memoryA, *view.MemoryID)
	assert.False(t, view.IsStandalone)
	assert.False(t, view.ReminderEnabled, "from-memory reminders default to off")
	assert.Equal(t, "Wedding", view.Title)
	require.NotNil(t, view.Memories)
	assert.True(t, view.Memories.IsMilestone)
	assert.Nil(t, view.Type)
	assert.Nil(t, view.ReminderOption)

	require.NotNil(t, view.DaysUntilNextAnniversary)
	assert.Equal(t, 111, *view.DaysUntilNextAnniversary)
	assert.Equal(t, 9, *view.YearsSinceFirstCelebration)

	assert.True(t, store.memories[memoryA].IsMilestone)
	assert.Len(t, store.milestones, 1)
	assert.Equal(t, 1, recorder.operations["create/success"])
}

func TestCreate_FromMemory_UppercaseIDIsNormalised(t *testing.T) {
	svc, store, _ := newTestService(t)
	store.addMemory(memoryA, alice, "Wedding")

	view, err := svc.Create(context.Background(), alice, CreateMilestoneInput{
		MemoryID:        str("  3F1E2D3C-4B5A-4697-8A1B-2C3D4E5F6A01 "),
		CelebrationDate: str("2015-06-20"),
	})
	require.NoError(t, err)
	assert.Equal(t, memoryA, *view.MemoryID)
}

func TestCreate_FromMemory_RequiresDate(t *testing.T) {
	svc, store, _ := newTestService(t)
	store.addMemory(memoryA, alice, "Wedding")

	_, err := svc.Create(context.Background(), alice, CreateMilestoneInput{MemoryID: str(memoryA)})
	assertAppError(t, err, apperror.ErrValidation, MsgDateRequiredFromMemory)

	_, err = svc.Create(context.Background(), alice, CreateMilestoneInput{
		MemoryID:        str(memoryA),
		CelebrationDate: str("20th of June"),
	})
	assertAppError(t, err, apperror.ErrValidation, MsgInvalidDate)
	assert.Empty(t, store.milestones)
}

func TestCreate_FromMemory_ForeignMemory(t *testing.T) {
	svc, store, _ := newTestService(t)
	store.addMemory(memoryA, bob, "Bob's trip")

	_, err := svc.Create(context.Background(), alice, CreateMilestoneInput{
		MemoryID:        str(memoryA),
		CelebrationDate: str("2015-06-20"),
	})
	assertAppError(t, err, apperror.ErrNotFound, MsgMemoryNotFound)
	assert.Empty(t, store.milestones)
	assert.Empty(t, store.flagCalls)
}

// The store accepts the flag update but a row policy filters it to zero
// rows. Nothing may be left behind.
func TestCreate_FromMemory_FilteredFlagRollsBack(t *testing.T) {
	svc, store, recorder := newTestService(t)
	store.addMemory(memoryA, alice, "Wedding")
	store.filterFlag = true

	view, err := svc.Create(context.Background(), alice, CreateMilestoneInput{
		MemoryID:        str(memoryA),
		CelebrationDate: str("2015-06-20"),
	})
	assert.Nil(t, view)
	assertAppError(t, err, apperror.ErrConflict, MsgMemoryNotMarked)

	assert.Empty(t, store.milestones, "milestone row must be rolled back")
	assert.False(t, store.memories[memoryA].IsMilestone)
	assert.Equal(t, 1, recorder.rollbacks[RollbackClean])
	assert.Equal(t, 1, recorder.operations["create/client_error"])
}

func TestCreate_FromMemory_FlagErrorRollsBack(t *testing.T) {
	svc, store, _ := newTestService(t)
	store.addMemory(memoryA, alice, "Wedding")
	store.flagErr = errors.New("connection reset")

	_, err := svc.Create(context.Background(), alice, CreateMilestoneInput{
		MemoryID:        str(memoryA),
		CelebrationDate: str("2015-06-20"),
	})
	assertAppError(t, err, apperror.ErrConflict, MsgMemoryNotMarked)
	assert.Empty(t, store.milestones)
}

func TestCreate_FromMemory_FailedRollbackIsReported(t *testing.T) {
	svc, store, recorder := newTestService(t)
	store.addMemory(memoryA, alice, "Wedding")
	store.filterFlag = true
	store.deleteErr = errors.New("store unavailable")

	_, err := svc.Create(context.Background(), alice, CreateMilestoneInput{
		MemoryID:        str(memoryA),
		CelebrationDate: str("2015-06-20"),
	})
	assert.ErrorIs(t, err, apperror.ErrConflict)
	assert.Equal(t, 1, recorder.rollbacks[RollbackFailed])
	assert.Zero(t, recorder.rollbacks[RollbackClean])
}

func TestCreate_FromMemory_InsertFailure(t *testing.T) {
	svc, store, recorder := newTestService(t)
	store.addMemory(memoryA, alice, "Wedding")
	store.createErr = errors.New("duplicate key")

	_, err := svc.Create(context.Background(), alice, CreateMilestoneInput{
		MemoryID:        str(memoryA),
		CelebrationDate: str("2015-06-20"),
	})
	assertAppError(t, err, apperror.ErrUpstream, "creating milestone: duplicate key")
	assert.Empty(t, store.flagCalls, "memory must not be touched when the insert fails")
	assert.Equal(t, 1, recorder.operations["create/error"])
}

// =========================================================================
// CREATE STANDALONE
// =========================================================================

func TestCreate_Standalone_Defaults(t *testing.T) {
	svc, store, _ := newTestService(t)

	view, err := svc.Create(context.Background(), alice, CreateMilestoneInput{
		Title:           str("  First marathon  "),
		CelebrationDate: str("2019-10-13"),
	})
	require.NoError(t, err)

	assert.True(t, view.IsStandalone)
	assert.Nil(t, view.MemoryID)
	assert.Nil(t, view.Memories)
	assert.Equal(t, "First marathon", view.Title)
	assert.True(t, view.ReminderEnabled)
	require.NotNil(t, view.Type)
	assert.Equal(t, model.DefaultMilestoneType, *view.Type)
	require.NotNil(t, view.ReminderOption)
	assert.Equal(t, model.ReminderOneWeek, *view.ReminderOption)

	s, ok := store.milestones[0].Standalone()
	require.True(t, ok)
	require.NotNil(t, s.ReminderDays)
	assert.Equal(t, 7, *s.ReminderDays)
}

func TestCreate_Standalone_ReminderOptions(t *testing.T) {
	tests := []struct {
		name        string
		option      string
		wantEnabled bool
		wantDays    *int
		wantOption  model.ReminderOption
	}{
		{"none disables reminders", "none", false, nil, model.ReminderNone},
		{"on date", "on_date", true, num(0), model.ReminderOnDate},
		{"one day", "1_day_before", true, num(1), model.ReminderOneDay},
		{"three days", "3_days_before", true, num(3), model.ReminderThreeDays},
		{"one month", "1_month_before", true, num(30), model.ReminderOneMonth},
		{"unknown falls back to a week", "fortnight", true, num(7), model.ReminderOneWeek},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, _ := newTestService(t)

			view, err := svc.Create(context.Background(), alice, CreateMilestoneInput{
				Title:           str("Anniversary"),
				CelebrationDate: str("2019-10-13"),
				ReminderEnabled: boolean(true),
				ReminderOption:  str(tt.option),
			})
			require.NoError(t, err)

			assert.Equal(t, tt.wantEnabled, view.ReminderEnabled)
			assert.Equal(t, tt.wantEnabled, store.milestones[0].ReminderEnabled)
			assert.Equal(t, tt.wantOption, *view.ReminderOption)

			s, _ := store.milestones[0].Standalone()
			assert.Equal(t, tt.wantDays, s.ReminderDays)
		})
	}
}

func TestCreate_Standalone_Validation(t *testing.T) {
	tests := []struct {
		name    string
		input   CreateMilestoneInput
		message string
	}{
		{
			name:    "missing title",
			input:   CreateMilestoneInput{CelebrationDate: str("2019-10-13")},
			message: MsgTitleRequired,
		},
		{
			name:    "blank title",
			input:   CreateMilestoneInput{Title: str("   "), CelebrationDate: str("2019-10-13")},
			message: MsgTitleRequired,
		},
		{
			name: "malformed memory id does not select the memory path",
			input: CreateMilestoneInput{
				MemoryID:        str("not-a-uuid"),
				Title:           str(""),
				CelebrationDate: str("2019-10-13"),
			},
			message: MsgTitleRequired,
		},
		{
			name:    "missing date",
			input:   CreateMilestoneInput{Title: str("Run")},
			message: MsgDateRequired,
		},
		{
			name:    "bad date",
			input:   CreateMilestoneInput{Title: str("Run"), CelebrationDate: str("yesterday")},
			message: MsgInvalidDate,
		},
		{
			name:    "bad target date",
			input:   CreateMilestoneInput{Title: str("Run"), CelebrationDate: str("2019-10-13"), TargetDate: str("soon")},
			message: MsgInvalidTargetDate,
		},
		{
			name:    "negative target count",
			input:   CreateMilestoneInput{Title: str("Run"), CelebrationDate: str("2019-10-13"), TargetCount: num(-1)},
			message: MsgInvalidTargetCount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, _ := newTestService(t)

			_, err := svc.Create(context.Background(), alice, tt.input)
			assertAppError(t, err, apperror.ErrValidation, tt.message)
			assert.Empty(t, store.milestones)
		})
	}
}

func TestCreate_Standalone_MalformedMemoryIDIsIgnored(t *testing.T) {
	svc, store, _ := newTestService(t)

	view, err := svc.Create(context.Background(), alice, CreateMilestoneInput{
		MemoryID:        str("{" + memoryA + "}"),
		Title:           str("Moved in"),
		CelebrationDate: str("2021-08-01"),
	})
	require.NoError(t, err)
	assert.True(t, view.IsStandalone)
	assert.Empty(t, store.flagCalls)
}

func TestCreate_Standalone_TargetCountRoundTrip(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Create(context.Background(), alice, CreateMilestoneInput{
		Title:           str("Books read"),
		CelebrationDate: str("2020-01-01"),
		TargetDate:      str("2030-01-01"),
		TargetCount:     num(5),
	})
	require.NoError(t, err)

	views, err := svc.List(context.Background(), alice)
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.NotNil(t, views[0].TargetCount)
	assert.Equal(t, 5, *views[0].TargetCount)
	require.NotNil(t, views[0].TargetDate)
	assert.True(t, day(2030, time.January, 1).Equal(*views[0].TargetDate))
}

// =========================================================================
// LIST AND DUE TODAY
// =========================================================================

func TestList_DropsDanglingAndForeignMemories(t *testing.T) {
	svc, store, _ := newTestService(t)
	store.addMemory(memoryA, alice, "Kept")
	store.addMemory(memoryB, bob, "Someone else's")

	kept := store.seed(t, linked(t, alice, memoryA, day(2012, time.July, 4), true))
	store.seed(t, linked(t, alice, memoryB, day(2013, time.July, 4), true))
	store.seed(t, linked(t, alice, memoryC, day(2014, time.July, 4), true))
	solo := store.seed(t, standalone(t, alice, "Solo", day(2011, time.July, 4), true))

	views, err := svc.List(context.Background(), alice)
	require.NoError(t, err)

	require.Len(t, views, 2)
	assert.Equal(t, solo.ID, views[0].ID, "ordered by celebration date")
	assert.Equal(t, kept.ID, views[1].ID)
	assert.Equal(t, "Kept", views[1].Title)
}

func TestList_EnrichesEveryRecord(t *testing.T) {
	svc, store, _ := newTestService(t)
	store.seed(t, standalone(t, alice, "Today", day(2020, time.March, 1), true))
	store.seed(t, standalone(t, alice, "Passed", day(2020, time.February, 1), true))

	views, err := svc.List(context.Background(), alice)
	require.NoError(t, err)
	require.Len(t, views, 2)

	passed, today := views[0], views[1]

	assert.Equal(t, 0, *today.DaysUntilNextAnniversary)
	assert.True(t, today.CelebratedThisYear)
	assert.Equal(t, 4, *today.YearsSinceFirstCelebration)

	assert.True(t, passed.CelebratedThisYear)
	assert.Equal(t, 2025, passed.NextAnniversaryDate.Year())
	assert.Equal(t, 337, *passed.DaysUntilNextAnniversary)
}

func TestList_Empty(t *testing.T) {
	svc, _, _ := newTestService(t)

	views, err := svc.List(context.Background(), alice)
	require.NoError(t, err)
	assert.NotNil(t, views)
	assert.Empty(t, views)
}

func TestList_StoreFailure(t *testing.T) {
	svc, store, recorder := newTestService(t)
	store.listErr = errors.New("relation \"milestones\" does not exist")

	_, err := svc.List(context.Background(), alice)
	assert.ErrorIs(t, err, apperror.ErrUpstream)
	assert.Equal(t, 1, recorder.operations["list/error"])
}

func TestDueToday_MatchesMonthAndDay(t *testing.T) {
	svc, store, _ := newTestService(t)
	store.addMemory(memoryA, alice, "First date")

	dueLinked := store.seed(t, linked(t, alice, memoryA, day(2019, time.March, 1), true))
	dueSolo := store.seed(t, standalone(t, alice, "Started job", day(2010, time.March, 1), true))
	store.seed(t, standalone(t, alice, "Tomorrow", day(2010, time.March, 2), true))
	store.seed(t, standalone(t, alice, "Muted", day(2000, time.March, 1), false))
	store.seed(t, linked(t, alice, memoryC, day(2015, time.March, 1), true))
	store.seed(t, standalone(t, bob, "Not mine", day(2010, time.March, 1), true))

	views, err := svc.DueToday(context.Background(), alice, day(2024, time.March, 1))
	require.NoError(t, err)

	ids := make([]string, 0, len(views))
	for _, v := range views {
		ids = append(ids, v.ID)
		assert.Equal(t, 0, *v.DaysUntilNextAnniversary)
	}
	assert.ElementsMatch(t, []string{dueLinked.ID, dueSolo.ID}, ids)
}

func TestDueToday_DefaultsToClock(t *testing.T) {
	svc, store, _ := newTestService(t)
	due := store.seed(t, standalone(t, alice, "Leap", day(2020, time.March, 1), true))

	views, err := svc.DueToday(context.Background(), alice, time.Time{})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, due.ID, views[0].ID)
}

// =========================================================================
// UPDATE
// =========================================================================

func TestUpdate_ShiftsAnchor(t *testing.T) {
	svc, store, _ := newTestService(t)
	store.addMemory(memoryA, alice, "Wedding")
	m := store.seed(t, linked(t, alice, memoryA, day(2015, time.June, 20), false))

	view, err := svc.Update(context.Background(), alice, m.ID, UpdateMilestoneInput{
		CelebrationDate: str("2015-03-05"),
	})
	require.NoError(t, err)

	assert.True(t, day(2015, time.March, 5).Equal(*view.CelebrationDate))
	assert.Equal(t, 4, *view.DaysUntilNextAnniversary)
	assert.False(t, view.ReminderEnabled, "untouched field keeps its value")
	require.NotNil(t, view.Memories)
	assert.Equal(t, "Wedding", view.Title)
}

func TestUpdate_ReminderOnly(t *testing.T) {
	svc, store, _ := newTestService(t)
	m := store.seed(t, standalone(t, alice, "Solo", day(2015, time.June, 20), true))

	view, err := svc.Update(context.Background(), alice, m.ID, UpdateMilestoneInput{ReminderEnabled: boolean(false)})
	require.NoError(t, err)
	assert.False(t, view.ReminderEnabled)
	assert.True(t, day(2015, time.June, 20).Equal(*view.CelebrationDate))
}

func TestUpdate_Errors(t *testing.T) {
	svc, store, _ := newTestService(t)
	m := store.seed(t, standalone(t, alice, "Solo", day(2015, time.June, 20), true))

	tests := []struct {
		name     string
		owner    string
		id       string
		input    UpdateMilestoneInput
		sentinel error
		message  string
	}{
		{"no fields", alice, m.ID, UpdateMilestoneInput{}, apperror.ErrValidation, MsgNoFields},
		{"bad id", alice, "42", UpdateMilestoneInput{ReminderEnabled: boolean(true)}, apperror.ErrValidation, MsgInvalidMilestoneID},
		{"bad date", alice, m.ID, UpdateMilestoneInput{CelebrationDate: str("June")}, apperror.ErrValidation, MsgInvalidDate},
		{"missing", alice, "00000000-0000-4000-8000-999999999999", UpdateMilestoneInput{ReminderEnabled: boolean(true)}, apperror.ErrNotFound, MsgMilestoneNotFound},
		{"other owner", bob, m.ID, UpdateMilestoneInput{ReminderEnabled: boolean(false)}, apperror.ErrForbidden, MsgNotOwner},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Update(context.Background(), tt.owner, tt.id, tt.input)
			assertAppError(t, err, tt.sentinel, tt.message)
		})
	}

	assert.True(t, store.milestones[0].ReminderEnabled, "failed updates must not write")
}

// =========================================================================
// DELETE
// =========================================================================

func TestDelete_ResetsMemoryFlag(t *testing.T) {
	svc, store, _ := newTestService(t)
	store.addMemory(memoryA, alice, "Wedding").IsMilestone = true
	m := store.seed(t, linked(t, alice, memoryA, day(2015, time.June, 20), true))

	deleted, err := svc.Delete(context.Background(), alice, m.ID)
	require.NoError(t, err)

	assert.Equal(t, m.ID, deleted)
	assert.Empty(t, store.milestones)
	assert.False(t, store.memories[memoryA].IsMilestone)
	assert.Equal(t, []flagCall{{memoryID: memoryA, flag: false}}, store.flagCalls)
}

func TestDelete_KeepsFlagWhileOtherMilestonesLinkMemory(t *testing.T) {
	svc, store, _ := newTestService(t)
	store.addMemory(memoryA, alice, "Wedding").IsMilestone = true
	first := store.seed(t, linked(t, alice, memoryA, day(2015, time.June, 20), true))
	second := store.seed(t, linked(t, alice, memoryA, day(2016, time.June, 20), false))

	_, err := svc.Delete(context.Background(), alice, first.ID)
	require.NoError(t, err)
	assert.True(t, store.memories[memoryA].IsMilestone)
	assert.Empty(t, store.flagCalls)

	_, err = svc.Delete(context.Background(), alice, second.ID)
	require.NoError(t, err)
	assert.False(t, store.memories[memoryA].IsMilestone)
	assert.Equal(t, []flagCall{{memoryID: memoryA, flag: false}}, store.flagCalls)
}

func TestDelete_CountFailureKeepsFlag(t *testing.T) {
	svc, store, _ := newTestService(t)
	store.addMemory(memoryA, alice, "Wedding").IsMilestone = true
	m := store.seed(t, linked(t, alice, memoryA, day(2015, time.June, 20), true))
	store.countErr = errors.New("connection reset")

	_, err := svc.Delete(context.Background(), alice, m.ID)
	require.NoError(t, err)
	assert.Empty(t, store.milestones)
	assert.True(t, store.memories[memoryA].IsMilestone)
	assert.Empty(t, store.flagCalls)
}

func TestDelete_FlagResetFailureIsSwallowed(t *testing.T) {
	svc, store, recorder := newTestService(t)
	store.addMemory(memoryA, alice, "Wedding").IsMilestone = true
	m := store.seed(t, linked(t, alice, memoryA, day(2015, time.June, 20), true))
	store.flagErr = errors.New("timeout")

	_, err := svc.Delete(context.Background(), alice, m.ID)
	require.NoError(t, err)
	assert.Empty(t, store.milestones)
	assert.Equal(t, 1, recorder.operations["delete/success"])
}

func TestDelete_Standalone(t *testing.T) {
	svc, store, _ := newTestService(t)
	m := store.seed(t, standalone(t, alice, "Solo", day(2015, time.June, 20), true))

	_, err := svc.Delete(context.Background(), alice, m.ID)
	require.NoError(t, err)
	assert.Empty(t, store.flagCalls)
}

func TestDelete_ReturnsNormalisedID(t *testing.T) {
	svc, store, _ := newTestService(t)
	m := store.seed(t, standalone(t, alice, "Solo", day(2015, time.June, 20), true))

	deleted, err := svc.Delete(context.Background(), alice, " "+strings.ToUpper(m.ID)+" ")
	require.NoError(t, err)
	assert.Equal(t, m.ID, deleted)
	assert.Empty(t, store.milestones)
}

func TestDelete_Ownership(t *testing.T) {
	svc, store, _ := newTestService(t)
	m := store.seed(t, standalone(t, alice, "Solo", day(2015, time.June, 20), true))

	tests := []struct {
		name     string
		ownerID  string
		id       string
		sentinel error
		msg      string
	}{
		{"other owner", bob, m.ID, apperror.ErrForbidden, MsgNotOwner},
		{"unknown id", alice, "00000000-0000-4000-8000-999999999999", apperror.ErrNotFound, MsgMilestoneNotFound},
		{"malformed id", alice, "abc", apperror.ErrValidation, MsgInvalidMilestoneID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deleted, err := svc.Delete(context.Background(), tt.ownerID, tt.id)
			assert.Empty(t, deleted)
			assertAppError(t, err, tt.sentinel, tt.msg)
		})
	}
	assert.Len(t, store.milestones, 1)
}

// =========================================================================
// HELPERS
// =========================================================================

func TestIsUUID(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{memoryA, true},
		{"3F1E2D3C-4B5A-4697-8A1B-2C3D4E5F6A01", true},
		{"6ba7b810-9dad-11d1-80b4-00c04fd430c8", true}, // v1
		{"", false},
		{"not-a-uuid", false},
		{"3f1e2d3c4b5a46978a1b2c3d4e5f6a01", false},
		{"{3f1e2d3c-4b5a-4697-8a1b-2c3d4e5f6a01}", false},
		{"urn:uuid:3f1e2d3c-4b5a-4697-8a1b-2c3d4e5f6a01", false},
		{"3f1e2d3c-4b5a-0697-8a1b-2c3d4e5f6a01", false}, // version 0
		{"3f1e2d3c-4b5a-7697-8a1b-2c3d4e5f6a01", false}, // version 7
		{"3f1e2d3c-4b5a-4697-ca1b-2c3d4e5f6a01", false}, // variant bits
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, IsUUID(tt.in))
		})
	}
}

func TestOutcomeOf(t *testing.T) {
	assert.Equal(t, OutcomeSuccess, outcomeOf(nil))
	assert.Equal(t, OutcomeClientError, outcomeOf(apperror.ValidationFailed("x", "y")))
	assert.Equal(t, OutcomeClientError, outcomeOf(apperror.Forbidden("no")))
	assert.Equal(t, OutcomeError, outcomeOf(apperror.Upstream("op", errors.New("boom"))))
	assert.Equal(t, OutcomeError, outcomeOf(errors.New("plain")))
}
