package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sakif/keepsake/internal/apperror"
	"github.com/sakif/keepsake/internal/model"
)

const memoryProjection = `SELECT m.id, m.user_id, m.title, m.description,
	m.location_name, m.location_lat, m.location_lng,
	m.is_milestone, m.is_public, m.created_at,
	f.secure_url, f.resource_type
	FROM memories m
	LEFT JOIN media_files f ON f.id = m.media_id`

func scanMemory(row pgx.Row) (*model.Memory, error) {
	var (
		mem                     model.Memory
		secureURL, resourceType *string
	)
	if err := row.Scan(
		&mem.ID, &mem.UserID, &mem.Title, &mem.Description,
		&mem.LocationName, &mem.LocationLat, &mem.LocationLng,
		&mem.IsMilestone, &mem.IsPublic, &mem.CreatedAt,
		&secureURL, &resourceType,
	); err != nil {
		return nil, err
	}
	if secureURL != nil {
		mem.Media = &model.Media{SecureURL: *secureURL}
		if resourceType != nil {
			mem.Media.ResourceType = *resourceType
		}
	}
	return &mem, nil
}

func (db *DB) GetOwned(ctx context.Context, ownerID, id string) (*model.Memory, error) {
	row := db.pool.QueryRow(ctx, memoryProjection+` WHERE m.id = $1 AND m.user_id = $2`, id, ownerID)

	mem, err := scanMemory(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("memory", id)
		}
		return nil, fmt.Errorf("postgres: getting memory %s: %w", id, err)
	}
	return mem, nil
}

// ListOwnedByIDs sends ids as text[] and lets the server cast, so callers
// can pass plain strings.
func (db *DB) ListOwnedByIDs(ctx context.Context, ownerID string, ids []string) ([]model.Memory, error) {
	if len(ids) == 0 {
		return []model.Memory{}, nil
	}

	rows, err := db.pool.Query(ctx,
		memoryProjection+` WHERE m.user_id = $1 AND m.id = ANY($2::text[]::uuid[])`,
		ownerID, ids,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing memories: %w", err)
	}
	defer rows.Close()

	memories := make([]model.Memory, 0, len(ids))
	for rows.Next() {
		mem, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scanning memory row: %w", err)
		}
		memories = append(memories, *mem)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating memories: %w", err)
	}
	return memories, nil
}

func (db *DB) SetMilestoneFlag(ctx context.Context, ownerID, id string, flag bool) (int64, error) {
	tag, err := db.pool.Exec(ctx,
		`UPDATE memories SET is_milestone = $1 WHERE id = $2 AND user_id = $3`,
		flag, id, ownerID,
	)
	if err != nil {
		return 0, fmt.Errorf("postgres: flagging memory %s: %w", id, err)
	}
	return tag.RowsAffected(), nil
}

// InsertMemory stores a memory and its media. Production memories are
// written by another surface; this serves seeding and integration tests.
func (db *DB) InsertMemory(ctx context.Context, mem *model.Memory) error {
	if mem.ID == "" {
		mem.ID = uuid.NewString()
	}
	if mem.CreatedAt.IsZero() {
		mem.CreatedAt = time.Now().UTC()
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: beginning memory insert: %w", err)
	}
	defer tx.Rollback(ctx)

	var mediaID *string
	if mem.Media != nil {
		id := uuid.NewString()
		_, err := tx.Exec(ctx,
			`INSERT INTO media_files (id, secure_url, resource_type) VALUES ($1, $2, $3)`,
			id, mem.Media.SecureURL, mem.Media.ResourceType,
		)
		if err != nil {
			return fmt.Errorf("postgres: inserting media: %w", err)
		}
		mediaID = &id
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO memories (id, user_id, title, description, media_id,
			location_name, location_lat, location_lng, is_milestone, is_public, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		mem.ID, mem.UserID, mem.Title, mem.Description, mediaID,
		mem.LocationName, mem.LocationLat, mem.LocationLng,
		mem.IsMilestone, mem.IsPublic, mem.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("postgres: inserting memory: %w", err)
	}

	return tx.Commit(ctx)
}

func (db *DB) DeleteMemory(ctx context.Context, id string) error {
	if _, err := db.pool.Exec(ctx, `DELETE FROM memories WHERE id = $1`, id); err != nil {
		return fmt.Errorf("postgres: deleting memory %s: %w", id, err)
	}
	return nil
}
