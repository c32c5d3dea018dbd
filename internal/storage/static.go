package storage

import (
	"context"
	"errors"
	"time"
)

// ErrReadOnly is returned when the checklist cannot be modified.
var ErrReadOnly = errors.New("checklist is read-only without a database")

// StaticChecklist serves the default items when no database is configured.
type StaticChecklist struct {
	items []ChecklistItem
}

// NewStaticChecklist returns the default two-item checklist.
func NewStaticChecklist() *StaticChecklist {
	epoch := time.Date(2025, time.October, 1, 0, 0, 0, 0, time.UTC)
	return &StaticChecklist{items: []ChecklistItem{
		{ID: "passports", Label: "Pasaportes al día", Done: true, Position: 1, UpdatedAt: epoch},
		{ID: "swimsuits", Label: "Trajes de baño listos", Done: false, Position: 2, UpdatedAt: epoch},
	}}
}

// ListChecklist returns a copy of the default items.
func (s *StaticChecklist) ListChecklist(_ context.Context) ([]ChecklistItem, error) {
	out := make([]ChecklistItem, len(s.items))
	copy(out, s.items)
	return out, nil
}

// SetChecklistItem always fails with ErrItemNotFound or ErrReadOnly.
func (s *StaticChecklist) SetChecklistItem(_ context.Context, id string, _ bool) (*ChecklistItem, error) {
	for _, it := range s.items {
		if it.ID == id {
			return nil, ErrReadOnly
		}
	}
	return nil, ErrItemNotFound
}
