package notifications

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Udit004/alumni-networking-sub003/src/lib"
	"github.com/Udit004/alumni-networking-sub003/src/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultLimit is the page size used when a caller does not pass one
const DefaultLimit = 20

const broadcastParallelism = 8

// Log is the append-only notification log. Entries are created once and
// only their read flag changes afterwards.
type Log struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

// NewLog creates a log over the given store
func NewLog(store Store) *Log {
	return &Log{
		store:  store,
		logger: lib.Log(),
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
}

// Append records a new unread notification for recipient
func (l *Log) Append(ctx context.Context, recipient string, typ models.NotificationType, payload models.NotificationPayload) (models.Notification, error) {
	if recipient == "" {
		return models.Notification{}, lib.NewBaseError(lib.KindValidation, "recipient is required", nil)
	}
	n := models.Notification{
		Id:        l.newID(),
		Recipient: recipient,
		Type:      typ,
		Payload:   payload,
		CreatedAt: l.now().UTC(),
		Read:      false,
	}
	if err := l.store.Insert(ctx, n); err != nil {
		return models.Notification{}, err
	}
	l.logger.Debug("Notification appended",
		zap.String("id", n.Id),
		zap.String("recipient", recipient),
		zap.String("type", string(typ)))
	return n, nil
}

// Get returns one notification
func (l *Log) Get(ctx context.Context, id string) (*models.Notification, error) {
	return l.store.Get(ctx, id)
}

// MarkRead sets the read flag; marking an already read notification succeeds
func (l *Log) MarkRead(ctx context.Context, id string) error {
	return l.store.SetRead(ctx, id)
}

// MarkReadFor marks id read on behalf of recipient, who must own it
func (l *Log) MarkReadFor(ctx context.Context, id, recipient string) error {
	n, err := l.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if n.Recipient != recipient {
		return lib.ErrNotRecipient
	}
	if n.Read {
		return nil
	}
	return l.store.SetRead(ctx, id)
}

// MarkAllRead marks every unread notification of recipient and returns how many changed
func (l *Log) MarkAllRead(ctx context.Context, recipient string) (int64, error) {
	return l.store.SetReadForRecipient(ctx, recipient)
}

// ListRecent returns the newest notifications for recipient. When the store
// cannot order the query it fetches the whole set and orders it here.
func (l *Log) ListRecent(ctx context.Context, recipient string, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	list, err := l.store.FindRecent(ctx, recipient, limit)
	if err == nil {
		return list, nil
	}
	if !errors.Is(err, lib.ErrIndexUnavailable) {
		return nil, err
	}

	l.logger.Warn("Ordered notification query unavailable, sorting client side",
		zap.String("recipient", recipient))

	list, err = l.store.FindByRecipient(ctx, recipient)
	if err != nil {
		return nil, err
	}
	SortRecent(list)
	return Truncate(list, limit), nil
}

// UnreadCount returns the number of unread notifications for recipient
func (l *Log) UnreadCount(ctx context.Context, recipient string) (int64, error) {
	return l.store.CountUnread(ctx, recipient)
}

// Delete removes a notification. It exists for admin and debug tooling only.
func (l *Log) Delete(ctx context.Context, id string) error {
	return l.store.Delete(ctx, id)
}

// Broadcast appends the same notification for every recipient and returns
// how many were written
func (l *Log) Broadcast(ctx context.Context, recipients []string, typ models.NotificationType, payload models.NotificationPayload) (int, error) {
	var sent atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(broadcastParallelism)
	for _, r := range recipients {
		recipient := r
		g.Go(func() error {
			if _, err := l.Append(gctx, recipient, typ, payload); err != nil {
				return fmt.Errorf("notify %s: %w", recipient, err)
			}
			sent.Add(1)
			return nil
		})
	}
	err := g.Wait()

	l.logger.Info("Broadcast sent",
		zap.String("type", string(typ)),
		zap.Int("recipients", len(recipients)),
		zap.Int64("sent", sent.Load()))
	return int(sent.Load()), err
}

// NotifyConnectionRequest tells to that from asked to connect
func (l *Log) NotifyConnectionRequest(ctx context.Context, from *models.User, to string) error {
	_, err := l.Append(ctx, to, models.NotificationTypeConnectionRequest, models.NotificationPayload{
		Message:      fmt.Sprintf("%s sent you a connection request", displayName(from)),
		FromUserId:   from.Id,
		FromUserName: from.Name,
		ActionLink:   "/network",
		ActionLabel:  "View request",
		SourceId:     from.Id,
		SourceType:   "connection",
	})
	return err
}

// NotifyConnectionAccepted tells requester that accepter accepted
func (l *Log) NotifyConnectionAccepted(ctx context.Context, accepter *models.User, requester string) error {
	_, err := l.Append(ctx, requester, models.NotificationTypeConnectionAccepted, models.NotificationPayload{
		Message:      fmt.Sprintf("%s accepted your connection request", displayName(accepter)),
		FromUserId:   accepter.Id,
		FromUserName: accepter.Name,
		ActionLink:   "/profile/" + accepter.Id,
		ActionLabel:  "View profile",
		SourceId:     accepter.Id,
		SourceType:   "connection",
	})
	return err
}

func displayName(u *models.User) string {
	if u.Name != "" {
		return u.Name
	}
	return "Someone"
}
