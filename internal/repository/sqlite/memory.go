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
)

const memoryProjection = `SELECT m.id, m.user_id, m.title, m.description,
	m.location_name, m.location_lat, m.location_lng,
	m.is_milestone, m.is_public, m.created_at,
	f.secure_url, f.resource_type
	FROM memories m
	LEFT JOIN media_files f ON f.id = m.media_id`

func scanMemory(row rowScanner) (*model.Memory, error) {
	var (
		mem                     model.Memory
		locationName            sql.NullString
		lat, lng                sql.NullFloat64
		created                 string
		secureURL, resourceType sql.NullString
	)
	if err := row.Scan(
		&mem.ID, &mem.UserID, &mem.Title, &mem.Description,
		&locationName, &lat, &lng,
		&mem.IsMilestone, &mem.IsPublic, &created,
		&secureURL, &resourceType,
	); err != nil {
		return nil, err
	}

	mem.CreatedAt = parseTime(created)
	if locationName.Valid {
		mem.LocationName = &locationName.String
	}
	if lat.Valid {
		mem.LocationLat = &lat.Float64
	}
	if lng.Valid {
		mem.LocationLng = &lng.Float64
	}
	if secureURL.Valid {
		mem.Media = &model.Media{SecureURL: secureURL.String, ResourceType: resourceType.String}
	}
	return &mem, nil
}

// GetOwned returns the memory if ownerID owns it.
func (db *DB) GetOwned(ctx context.Context, ownerID, id string) (*model.Memory, error) {
	row := db.conn.QueryRowContext(ctx,
		memoryProjection+` WHERE m.id = ? AND m.user_id = ?`, id, ownerID)

	mem, err := scanMemory(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("memory", id)
		}
		return nil, fmt.Errorf("sqlite: getting memory %s: %w", id, err)
	}
	return mem, nil
}

// ListOwnedByIDs fetches the owner's memories among ids in one query.
func (db *DB) ListOwnedByIDs(ctx context.Context, ownerID string, ids []string) ([]model.Memory, error) {
	if len(ids) == 0 {
		return []model.Memory{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	args := make([]any, 0, len(ids)+1)
	args = append(args, ownerID)
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := db.conn.QueryContext(ctx,
		memoryProjection+` WHERE m.user_id = ? AND m.id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing memories: %w", err)
	}
	defer rows.Close()

	memories := make([]model.Memory, 0, len(ids))
	for rows.Next() {
		mem, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning memory row: %w", err)
		}
		memories = append(memories, *mem)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating memories: %w", err)
	}
	return memories, nil
}

// SetMilestoneFlag sets is_milestone on the owner's memory and reports how
// many rows changed.
func (db *DB) SetMilestoneFlag(ctx context.Context, ownerID, id string, flag bool) (int64, error) {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE memories SET is_milestone = ? WHERE id = ? AND user_id = ?`,
		flag, id, ownerID,
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: flagging memory %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return n, nil
}

// InsertMemory stores a memory, and its media when present. Memories are
// owned by another surface; this exists for local seeding and tests.
func (db *DB) InsertMemory(ctx context.Context, mem *model.Memory) error {
	if mem.ID == "" {
		mem.ID = uuid.NewString()
	}
	if mem.CreatedAt.IsZero() {
		mem.CreatedAt = time.Now().UTC()
	}

	var mediaID sql.NullString
	if mem.Media != nil {
		mediaID = sql.NullString{String: uuid.NewString(), Valid: true}
		_, err := db.conn.ExecContext(ctx,
			`INSERT INTO media_files (id, secure_url, resource_type) VALUES (?, ?, ?)`,
			mediaID.String, mem.Media.SecureURL, mem.Media.ResourceType,
		)
		if err != nil {
			return fmt.Errorf("sqlite: inserting media: %w", err)
		}
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO memories (id, user_id, title, description, media_id,
			location_name, location_lat, location_lng, is_milestone, is_public, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		mem.ID, mem.UserID, mem.Title, mem.Description, mediaID,
		mem.LocationName, mem.LocationLat, mem.LocationLng,
		mem.IsMilestone, mem.IsPublic, formatTime(mem.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting memory: %w", err)
	}
	return nil
}

// DeleteMemory removes a memory row, leaving any milestone that points at it
// dangling.
func (db *DB) DeleteMemory(ctx context.Context, id string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id); err != nil {
		return fmt.Errorf("sqlite: deleting memory %s: %w", id, err)
	}
	return nil
}
