package store

import (
	"context"

	"github.com/jw6ventures/studycal/internal/calendar"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Upsert(ctx context.Context, user calendar.User) error
	GetByID(ctx context.Context, id string) (*calendar.User, error)
	// ListVisible returns the viewer and every user sharing a calendar with them.
	ListVisible(ctx context.Context, viewerID string) ([]calendar.User, error)
}

// EventRepository handles event storage.
type EventRepository interface {
	ListVisible(ctx context.Context, viewerID string) ([]calendar.Event, error)
	GetByID(ctx context.Context, id string) (*calendar.Event, error)
	Insert(ctx context.Context, event calendar.Event) error
	Update(ctx context.Context, event calendar.Event) error
	// Update and Delete only touch rows still owned by the given owner.
	Delete(ctx context.Context, id, ownerID string) error
}

// ShareRepository manages read access between users.
type ShareRepository interface {
	Grant(ctx context.Context, ownerID, viewerID string) error
	Revoke(ctx context.Context, ownerID, viewerID string) error
	ListByOwner(ctx context.Context, ownerID string) ([]Share, error)
}

// SettingsRepository stores opaque JSON blobs by key.
type SettingsRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
}
