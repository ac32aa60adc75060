package notify

import (
	"context"
	"time"
)

// Store keeps the per-user inbox. Every lookup is scoped to the owner.
type Store interface {
	Create(ctx context.Context, n *Notification) error
	List(ctx context.Context, userID string, unreadOnly bool) ([]Notification, error)
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) (int, error)
	Delete(ctx context.Context, userID, id string) error
	// PurgeRead deletes read notifications created before cutoff.
	PurgeRead(ctx context.Context, cutoff time.Time) (int, error)
}
