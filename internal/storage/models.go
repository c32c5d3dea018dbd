package storage

import (
	"time"

	"github.com/google/uuid"

	"github.com/neexbeast/aruba-countdown/internal/insight"
)

// ChecklistItem is one line of the travel checklist.
type ChecklistItem struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	Done      bool      `json:"done"`
	Position  int       `json:"position"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FetchRecord is the stored outcome of one session's insight fetch.
type FetchRecord struct {
	ID        uuid.UUID      `json:"id"`
	SessionID uuid.UUID      `json:"session_id"`
	Status    insight.Status `json:"status"`
	Missing   []string       `json:"missing"`
	Error     string         `json:"error,omitempty"`
	Bundle    insight.Bundle `json:"bundle"`
	FetchedAt time.Time      `json:"fetched_at"`
}
