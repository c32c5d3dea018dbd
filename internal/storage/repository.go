package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/neexbeast/aruba-countdown/internal/insight"
)

const defaultHistoryLimit = 20

// ErrItemNotFound is returned when a checklist item does not exist.
var ErrItemNotFound = errors.New("checklist item not found")

// Querier abstracts the subset of pgxpool.Pool used by Repository.
// This allows injection of a mock in tests.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository provides database access for the checklist and fetch history.
type Repository struct {
	q Querier
}

// NewRepository constructs a Repository backed by the given pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{q: pool}
}

// NewRepositoryWithQuerier constructs a Repository with a custom Querier (for tests).
func NewRepositoryWithQuerier(q Querier) *Repository {
	return &Repository{q: q}
}

// ListChecklist returns all checklist items ordered by position.
func (r *Repository) ListChecklist(ctx context.Context) ([]ChecklistItem, error) {
	const q = `
		SELECT id, label, done, position, updated_at
		FROM checklist_items
		ORDER BY position, id
	`

	rows, err := r.q.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("querying checklist: %w", err)
	}
	defer rows.Close()

	items := []ChecklistItem{}
	for rows.Next() {
		var it ChecklistItem
		if err := rows.Scan(&it.ID, &it.Label, &it.Done, &it.Position, &it.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning checklist row: %w", err)
		}
		items = append(items, it)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating checklist rows: %w", err)
	}

	return items, nil
}

// SetChecklistItem marks the item done or pending and returns it.
// Returns ErrItemNotFound when id is unknown.
func (r *Repository) SetChecklistItem(ctx context.Context, id string, done bool) (*ChecklistItem, error) {
	const q = `
		UPDATE checklist_items
		SET done = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING id, label, done, position, updated_at
	`

	var it ChecklistItem
	err := r.q.QueryRow(ctx, q, id, done).Scan(&it.ID, &it.Label, &it.Done, &it.Position, &it.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("updating checklist item %s: %w", id, err)
	}

	return &it, nil
}

// RecordFetch stores the outcome of a session's insight fetch.
func (r *Repository) RecordFetch(ctx context.Context, sessionID uuid.UUID, out insight.Outcome) error {
	dataJSON, err := json.Marshal(out.Bundle)
	if err != nil {
		return fmt.Errorf("marshaling insight bundle for session %s: %w", sessionID, err)
	}

	missing := make([]string, 0, len(out.Missing))
	for _, g := range out.Missing {
		missing = append(missing, string(g))
	}

	errText := ""
	if out.Err != nil {
		errText = out.Err.Error()
	}

	const q = `
		INSERT INTO insight_fetches (id, session_id, status, missing, error, data, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`

	if _, err := r.q.Exec(ctx, q, uuid.New(), sessionID, string(out.Status), missing, errText, dataJSON); err != nil {
		return fmt.Errorf("inserting insight fetch for session %s: %w", sessionID, err)
	}

	return nil
}

// ListFetches returns the most recent fetch records, newest first.
func (r *Repository) ListFetches(ctx context.Context, limit int) ([]FetchRecord, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	const q = `
		SELECT id, session_id, status, missing, error, data, fetched_at
		FROM insight_fetches
		ORDER BY fetched_at DESC
		LIMIT $1
	`

	rows, err := r.q.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("querying insight fetches: %w", err)
	}
	defer rows.Close()

	records := []FetchRecord{}
	for rows.Next() {
		var rec FetchRecord
		var status string
		var dataJSON []byte
		var fetchedAt time.Time

		if err := rows.Scan(&rec.ID, &rec.SessionID, &status, &rec.Missing, &rec.Error, &dataJSON, &fetchedAt); err != nil {
			return nil, fmt.Errorf("scanning insight fetch row: %w", err)
		}

		if err := json.Unmarshal(dataJSON, &rec.Bundle); err != nil {
			return nil, fmt.Errorf("unmarshaling insight bundle %s: %w", rec.ID, err)
		}

		rec.Status = insight.Status(status)
		rec.FetchedAt = fetchedAt
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating insight fetch rows: %w", err)
	}

	return records, nil
}
