package api

import (
	"context"
	"time"

	"github.com/neexbeast/aruba-countdown/internal/cache"
	"github.com/neexbeast/aruba-countdown/internal/countdown"
	"github.com/neexbeast/aruba-countdown/internal/insight"
	"github.com/neexbeast/aruba-countdown/internal/storage"
)

// SessionView is the read side of a running session.
type SessionView interface {
	Target() time.Time
	Countdown() (countdown.State, bool)
	Insights() (insight.Outcome, bool)
}

// ChecklistStore defines the checklist operations needed by handlers.
type ChecklistStore interface {
	ListChecklist(ctx context.Context) ([]storage.ChecklistItem, error)
	SetChecklistItem(ctx context.Context, id string, done bool) (*storage.ChecklistItem, error)
}

// FetchHistory lists stored insight fetches.
type FetchHistory interface {
	ListFetches(ctx context.Context, limit int) ([]storage.FetchRecord, error)
}

// Sharer hands a share message to whatever share target is configured.
type Sharer interface {
	Share(msg countdown.ShareMessage) (bool, error)
}

// AssetServer serves offline copies of third-party assets.
type AssetServer interface {
	Serve(ctx context.Context, name string) (*cache.Asset, error)
}

// Pinger is implemented by every dependency the health check reports on.
type Pinger interface {
	Ping(ctx context.Context) error
}
