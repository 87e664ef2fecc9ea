// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/olegiv/corkboard/internal/model"
)

// ErrOwnerMismatch is returned when a conditional mutation targets a pin
// whose stored owner token differs from the supplied one.
var ErrOwnerMismatch = errors.New("owner token mismatch")

// Queries provides typed access to the corkboard tables.
type Queries struct {
	db *sql.DB
}

// New creates a Queries instance bound to the given database.
func New(db *sql.DB) *Queries {
	return &Queries{db: db}
}

const pinColumns = "id, title, content, nickname, rp_name, main_number, author_id, version, created_at, updated_at"

func scanPin(row interface{ Scan(...any) error }) (model.Pin, error) {
	var p model.Pin
	err := row.Scan(&p.ID, &p.Title, &p.Content, &p.Nickname, &p.RPName,
		&p.MainNumber, &p.AuthorID, &p.Version, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// ListPins returns all pins, newest first.
func (q *Queries) ListPins(ctx context.Context) ([]model.Pin, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT "+pinColumns+" FROM pins ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("listing pins: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var pins []model.Pin
	for rows.Next() {
		p, err := scanPin(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning pin: %w", err)
		}
		pins = append(pins, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating pins: %w", err)
	}
	return pins, nil
}

// GetPinByID returns a single pin. Returns sql.ErrNoRows if absent.
func (q *Queries) GetPinByID(ctx context.Context, id string) (model.Pin, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT "+pinColumns+" FROM pins WHERE id = ?", id)
	return scanPin(row)
}

// CreatePin inserts a new pin with a server-assigned id, version 1 and UTC
// timestamps, and returns the stored row.
func (q *Queries) CreatePin(ctx context.Context, draft model.PinDraft) (model.Pin, error) {
	now := time.Now().UTC()
	p := model.Pin{
		ID:         uuid.NewString(),
		Title:      draft.Title,
		Content:    draft.Content,
		Nickname:   draft.Nickname,
		RPName:     draft.RPName,
		MainNumber: draft.MainNumber,
		AuthorID:   draft.AuthorID,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	_, err := q.db.ExecContext(ctx,
		`INSERT INTO pins (`+pinColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Title, p.Content, p.Nickname, p.RPName, p.MainNumber,
		p.AuthorID, p.Version, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return model.Pin{}, fmt.Errorf("inserting pin: %w", err)
	}
	return p, nil
}

// UpdatePin applies the patch to an existing pin and bumps its version.
// When authorID is non-empty the update only succeeds if the stored owner
// token matches; an empty authorID is an unconditional (admin) update.
// Returns sql.ErrNoRows if the pin does not exist and ErrOwnerMismatch if
// it exists but belongs to someone else.
func (q *Queries) UpdatePin(ctx context.Context, id string, patch model.PinPatch, authorID string) (model.Pin, error) {
	current, err := q.GetPinByID(ctx, id)
	if err != nil {
		return model.Pin{}, err
	}

	updated := patch.Apply(current)
	updated.UpdatedAt = time.Now().UTC()

	query := `UPDATE pins
		SET title = ?, content = ?, nickname = ?, rp_name = ?, main_number = ?,
		    version = version + 1, updated_at = ?
		WHERE id = ?`
	args := []any{updated.Title, updated.Content, updated.Nickname,
		updated.RPName, updated.MainNumber, updated.UpdatedAt, id}
	if authorID != "" {
		query += " AND author_id = ?"
		args = append(args, authorID)
	}

	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return model.Pin{}, fmt.Errorf("updating pin: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return model.Pin{}, fmt.Errorf("checking update result: %w", err)
	}
	if affected == 0 {
		// Either the owner token did not match, or the pin vanished
		// between the fetch above and the update.
		if _, err := q.GetPinByID(ctx, id); err != nil {
			return model.Pin{}, err // sql.ErrNoRows
		}
		return model.Pin{}, ErrOwnerMismatch
	}

	return q.GetPinByID(ctx, id)
}

// DeletePin removes a pin. When authorID is non-empty the delete is
// conditional on the stored owner token; empty means unconditional (admin).
// Returns sql.ErrNoRows if the pin does not exist and ErrOwnerMismatch if
// it exists but the token does not match.
func (q *Queries) DeletePin(ctx context.Context, id, authorID string) error {
	query := "DELETE FROM pins WHERE id = ?"
	args := []any{id}
	if authorID != "" {
		query += " AND author_id = ?"
		args = append(args, authorID)
	}

	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting pin: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if affected == 0 {
		if _, err := q.GetPinByID(ctx, id); err != nil {
			return err // sql.ErrNoRows
		}
		return ErrOwnerMismatch
	}
	return nil
}

// DeletePins removes the given pins unconditionally and returns how many
// rows were deleted. Missing ids are ignored.
func (q *Queries) DeletePins(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	res, err := q.db.ExecContext(ctx,
		"DELETE FROM pins WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return 0, fmt.Errorf("deleting pins: %w", err)
	}
	return res.RowsAffected()
}

// DeleteAllPins removes every pin and returns how many rows were deleted.
func (q *Queries) DeleteAllPins(ctx context.Context) (int64, error) {
	res, err := q.db.ExecContext(ctx, "DELETE FROM pins")
	if err != nil {
		return 0, fmt.Errorf("deleting all pins: %w", err)
	}
	return res.RowsAffected()
}

// GetPinStats returns aggregate statistics over the pins table. "Today" is
// measured from UTC midnight.
func (q *Queries) GetPinStats(ctx context.Context) (model.PinStats, error) {
	var stats model.PinStats

	if err := q.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM pins").Scan(&stats.Total); err != nil {
		return stats, fmt.Errorf("counting pins: %w", err)
	}

	now := time.Now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if err := q.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM pins WHERE created_at >= ?", midnight).Scan(&stats.Today); err != nil {
		return stats, fmt.Errorf("counting today's pins: %w", err)
	}

	if err := q.db.QueryRowContext(ctx,
		"SELECT COUNT(DISTINCT author_id) FROM pins").Scan(&stats.UniqueAuthors); err != nil {
		return stats, fmt.Errorf("counting unique authors: %w", err)
	}

	return stats, nil
}
