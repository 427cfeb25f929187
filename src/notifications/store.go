package notifications

import (
	"context"
	"sort"

	"github.com/Udit004/alumni-networking-sub003/src/models"
)

// Store persists notifications. FindRecent may fail with
// lib.ErrIndexUnavailable when the backend cannot serve an ordered query.
type Store interface {
	Insert(ctx context.Context, n models.Notification) error
	Get(ctx context.Context, id string) (*models.Notification, error)
	SetRead(ctx context.Context, id string) error
	SetReadForRecipient(ctx context.Context, recipient string) (int64, error)
	FindRecent(ctx context.Context, recipient string, limit int) ([]models.Notification, error)
	FindByRecipient(ctx context.Context, recipient string) ([]models.Notification, error)
	CountUnread(ctx context.Context, recipient string) (int64, error)
	Delete(ctx context.Context, id string) error
}

// Watcher streams inserted and updated notifications for one recipient.
// The channel closes when ctx is done or the stream fails.
type Watcher interface {
	Watch(ctx context.Context, recipient string) (<-chan models.Notification, error)
}

// SortRecent orders notifications newest first, breaking ties by ID so the
// order is stable across sources
func SortRecent(list []models.Notification) {
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].Id > list[j].Id
	})
}

// Truncate returns at most limit entries; a non-positive limit means no bound
func Truncate(list []models.Notification, limit int) []models.Notification {
	if limit > 0 && len(list) > limit {
		return list[:limit]
	}
	return list
}
