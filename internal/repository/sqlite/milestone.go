package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sakif/keepsake/internal/apperror"
	"github.com/sakif/keepsake/internal/model"
	"github.com/sakif/keepsake/internal/repository"
)

const milestoneColumns = `id, user_id, memory_id, celebration_date, reminder_enabled,
	title, description, type, target_date, target_count, reminder_days,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanMilestone reads one milestones row into the variant it represents.
func scanMilestone(row rowScanner) (*model.Milestone, error) {
	var (
		m                                 model.Milestone
		memoryID, title, description, typ sql.NullString
		targetDate                        sql.NullString
		targetCount, reminderDays         sql.NullInt64
		celebration, created, updated     string
	)
	if err := row.Scan(
		&m.ID, &m.OwnerID, &memoryID, &celebration, &m.ReminderEnabled,
		&title, &description, &typ, &targetDate, &targetCount, &reminderDays,
		&created, &updated,
	); err != nil {
		return nil, err
	}

	m.CelebrationDate = parseTime(celebration)
	m.CreatedAt = parseTime(created)
	m.UpdatedAt = parseTime(updated)

	if memoryID.Valid && memoryID.String != "" {
		m.Variant = model.Linked{MemoryID: memoryID.String}
		return &m, nil
	}

	s := model.Standalone{
		Title:       title.String,
		Description: description.String,
		Type:        typ.String,
	}
	if s.Type == "" {
		s.Type = model.DefaultMilestoneType
	}
	if targetDate.Valid {
		if t := parseTime(targetDate.String); !t.IsZero() {
			s.TargetDate = &t
		}
	}
	if targetCount.Valid {
		n := int(targetCount.Int64)
		s.TargetCount = &n
	}
	if reminderDays.Valid {
		n := int(reminderDays.Int64)
		s.ReminderDays = &n
	}
	m.Variant = s
	return &m, nil
}

// ListByOwner returns the owner's milestones, oldest anchor first.
func (db *DB) ListByOwner(ctx context.Context, ownerID string, filter repository.MilestoneFilter) ([]model.Milestone, error) {
	query := `SELECT ` + milestoneColumns + ` FROM milestones WHERE user_id = ?`
	if filter.ReminderEnabledOnly {
		query += ` AND reminder_enabled = 1`
	}
	query += ` ORDER BY celebration_date ASC, created_at ASC`

	rows, err := db.conn.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing milestones: %w", err)
	}
	defer rows.Close()

	milestones := make([]model.Milestone, 0)
	for rows.Next() {
		m, err := scanMilestone(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning milestone row: %w", err)
		}
		milestones = append(milestones, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating milestones: %w", err)
	}

	return milestones, nil
}

// GetByID returns the milestone regardless of owner; the service decides
// between 403 and 404.
func (db *DB) GetByID(ctx context.Context, id string) (*model.Milestone, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+milestoneColumns+` FROM milestones WHERE id = ?`, id)

	m, err := scanMilestone(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("milestone", id)
		}
		return nil, fmt.Errorf("sqlite: getting milestone %s: %w", id, err)
	}
	return m, nil
}

// Create inserts m and fills in its ID and timestamps.
func (db *DB) Create(ctx context.Context, m *model.Milestone) error {
	m.ID = uuid.NewString()
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now

	var (
		memoryID, title, description, typ, targetDate sql.NullString
		targetCount, reminderDays                     sql.NullInt64
	)
	switch v := m.Variant.(type) {
	case model.Linked:
		memoryID = sql.NullString{String: v.MemoryID, Valid: true}
	case model.Standalone:
		title = sql.NullString{String: v.Title, Valid: true}
		description = sql.NullString{String: v.Description, Valid: true}
		typ = sql.NullString{String: v.Type, Valid: true}
		targetDate = nullTime(v.TargetDate)
		targetCount = nullInt(v.TargetCount)
		reminderDays = nullInt(v.ReminderDays)
	default:
		return fmt.Errorf("sqlite: creating milestone: unknown variant %T", m.Variant)
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO milestones (`+milestoneColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.OwnerID, memoryID, formatTime(m.CelebrationDate), m.ReminderEnabled,
		title, description, typ, targetDate, targetCount, reminderDays,
		formatTime(m.CreatedAt), formatTime(m.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating milestone: %w", err)
	}
	return nil
}

// Update applies patch to the owner's milestone. An empty patch is a
// validation error rather than a bare touch of updated_at.
func (db *DB) Update(ctx context.Context, ownerID, id string, patch model.MilestonePatch) error {
	if patch.Empty() {
		return apperror.ValidationFailed("", "milestone patch has no fields")
	}
	sets := make([]string, 0, 3)
	args := make([]any, 0, 5)
	if patch.CelebrationDate != nil {
		sets = append(sets, "celebration_date = ?")
		args = append(args, formatTime(*patch.CelebrationDate))
	}
	if patch.ReminderEnabled != nil {
		sets = append(sets, "reminder_enabled = ?")
		args = append(args, *patch.ReminderEnabled)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, formatTime(time.Now()), id, ownerID)

	result, err := db.conn.ExecContext(ctx,
		`UPDATE milestones SET `+strings.Join(sets, ", ")+` WHERE id = ? AND user_id = ?`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating milestone %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("milestone", id)
	}
	return nil
}

// Delete removes the owner's milestone.
func (db *DB) Delete(ctx context.Context, ownerID, id string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM milestones WHERE id = ? AND user_id = ?`,
		id, ownerID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting milestone %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("milestone", id)
	}
	return nil
}

// CountByMemory counts the owner's milestones linked to memoryID.
func (db *DB) CountByMemory(ctx context.Context, ownerID, memoryID string) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM milestones WHERE user_id = ? AND memory_id = ?`,
		ownerID, memoryID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting milestones for memory %s: %w", memoryID, err)
	}
	return n, nil
}
