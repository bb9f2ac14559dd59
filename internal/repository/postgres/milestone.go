package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sakif/keepsake/internal/apperror"
	"github.com/sakif/keepsake/internal/model"
	"github.com/sakif/keepsake/internal/repository"
)

const milestoneColumns = `id, user_id, memory_id, celebration_date, reminder_enabled,
	metadata, created_at, updated_at`

// scanMilestone reads one row. Standalone metadata that only partly decodes
// is logged and kept as far as it could be read, so that one damaged row
// does not fail a whole listing.
func (db *DB) scanMilestone(row pgx.Row) (*model.Milestone, error) {
	var (
		m        model.Milestone
		memoryID *string
		metadata []byte
	)
	if err := row.Scan(
		&m.ID, &m.OwnerID, &memoryID, &m.CelebrationDate, &m.ReminderEnabled,
		&metadata, &m.CreatedAt, &m.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if memoryID != nil && *memoryID != "" {
		m.Variant = model.Linked{MemoryID: *memoryID}
		return &m, nil
	}

	s := model.Standalone{Type: model.DefaultMilestoneType}
	if len(metadata) > 0 {
		decoded, err := repository.DecodeStandalone(metadata)
		if err != nil {
			db.logger.Warn("milestone metadata partly unreadable",
				slog.String("id", m.ID),
				slog.String("error", err.Error()),
			)
		}
		s = decoded
		if s.Type == "" {
			s.Type = model.DefaultMilestoneType
		}
	}
	m.Variant = s
	return &m, nil
}

func (db *DB) ListByOwner(ctx context.Context, ownerID string, filter repository.MilestoneFilter) ([]model.Milestone, error) {
	query := `SELECT ` + milestoneColumns + ` FROM milestones WHERE user_id = $1`
	if filter.ReminderEnabledOnly {
		query += ` AND reminder_enabled = true`
	}
	query += ` ORDER BY celebration_date ASC, created_at ASC`

	rows, err := db.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing milestones: %w", err)
	}
	defer rows.Close()

	milestones := make([]model.Milestone, 0)
	for rows.Next() {
		m, err := db.scanMilestone(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scanning milestone row: %w", err)
		}
		milestones = append(milestones, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating milestones: %w", err)
	}
	return milestones, nil
}

func (db *DB) GetByID(ctx context.Context, id string) (*model.Milestone, error) {
	row := db.pool.QueryRow(ctx, `SELECT `+milestoneColumns+` FROM milestones WHERE id = $1`, id)

	m, err := db.scanMilestone(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("milestone", id)
		}
		return nil, fmt.Errorf("postgres: getting milestone %s: %w", id, err)
	}
	return m, nil
}

func (db *DB) Create(ctx context.Context, m *model.Milestone) error {
	var (
		memoryID *string
		metadata []byte
	)
	switch v := m.Variant.(type) {
	case model.Linked:
		memoryID = &v.MemoryID
	case model.Standalone:
		encoded, err := repository.EncodeStandalone(v)
		if err != nil {
			return fmt.Errorf("postgres: creating milestone: %w", err)
		}
		metadata = encoded
	default:
		return fmt.Errorf("postgres: creating milestone: unknown variant %T", m.Variant)
	}

	id := uuid.NewString()
	now := time.Now().UTC()

	_, err := db.pool.Exec(ctx,
		`INSERT INTO milestones (`+milestoneColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, m.OwnerID, memoryID, m.CelebrationDate.UTC(), m.ReminderEnabled,
		metadata, now, now,
	)
	if err != nil {
		return fmt.Errorf("postgres: creating milestone: %w", err)
	}

	m.ID = id
	m.CreatedAt = now
	m.UpdatedAt = now
	return nil
}

func (db *DB) Update(ctx context.Context, ownerID, id string, patch model.MilestonePatch) error {
	if patch.Empty() {
		return apperror.ValidationFailed("", "milestone patch has no fields")
	}
	sets := make([]string, 0, 3)
	args := make([]any, 0, 5)
	next := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.CelebrationDate != nil {
		next("celebration_date", patch.CelebrationDate.UTC())
	}
	if patch.ReminderEnabled != nil {
		next("reminder_enabled", *patch.ReminderEnabled)
	}
	next("updated_at", time.Now().UTC())
	args = append(args, id, ownerID)

	tag, err := db.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE milestones SET %s WHERE id = $%d AND user_id = $%d`,
			strings.Join(sets, ", "), len(args)-1, len(args)),
		args...,
	)
	if err != nil {
		return fmt.Errorf("postgres: updating milestone %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("milestone", id)
	}
	return nil
}

func (db *DB) Delete(ctx context.Context, ownerID, id string) error {
	tag, err := db.pool.Exec(ctx, `DELETE FROM milestones WHERE id = $1 AND user_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("postgres: deleting milestone %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("milestone", id)
	}
	return nil
}

func (db *DB) CountByMemory(ctx context.Context, ownerID, memoryID string) (int, error) {
	var n int
	err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM milestones WHERE user_id = $1 AND memory_id = $2`,
		ownerID, memoryID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: counting milestones for memory %s: %w", memoryID, err)
	}
	return n, nil
}
