package notifications

import (
	"context"
	"errors"

	"github.com/Udit004/alumni-networking-sub003/src/lib"
	"github.com/Udit004/alumni-networking-sub003/src/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore keeps notifications in a SQL table through gorm. It has no
// change feed, so it does not implement Watcher.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a notification store and migrates its table
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&models.Notification{}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Insert(ctx context.Context, n models.Notification) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&n).Error
	if err != nil {
		return lib.Transient("insert notification", err)
	}
	return nil
}

func (s *GormStore) Get(ctx context.Context, id string) (*models.Notification, error) {
	var n models.Notification
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&n).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, lib.ErrNotificationNotFound
	}
	if err != nil {
		return nil, lib.Transient("get notification", err)
	}
	return &n, nil
}

func (s *GormStore) SetRead(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).Where("id = ?", id).Update("read", true)
	if res.Error != nil {
		return lib.Transient("mark notification read", res.Error)
	}
	if res.RowsAffected == 0 {
		return lib.ErrNotificationNotFound
	}
	return nil
}

func (s *GormStore) SetReadForRecipient(ctx context.Context, recipient string) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient = ? AND read = ?", recipient, false).
		Update("read", true)
	if res.Error != nil {
		return 0, lib.Transient("mark all notifications read", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *GormStore) FindRecent(ctx context.Context, recipient string, limit int) ([]models.Notification, error) {
	q := s.db.WithContext(ctx).Where("recipient = ?", recipient).Order("created_at desc, id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var list []models.Notification
	if err := q.Find(&list).Error; err != nil {
		return nil, lib.Transient("find recent notifications", err)
	}
	return list, nil
}

func (s *GormStore) FindByRecipient(ctx context.Context, recipient string) ([]models.Notification, error) {
	var list []models.Notification
	if err := s.db.WithContext(ctx).Where("recipient = ?", recipient).Find(&list).Error; err != nil {
		return nil, lib.Transient("find notifications", err)
	}
	return list, nil
}

func (s *GormStore) CountUnread(ctx context.Context, recipient string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient = ? AND read = ?", recipient, false).
		Count(&count).Error
	if err != nil {
		return 0, lib.Transient("count unread notifications", err)
	}
	return count, nil
}

func (s *GormStore) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Notification{})
	if res.Error != nil {
		return lib.Transient("delete notification", res.Error)
	}
	if res.RowsAffected == 0 {
		return lib.ErrNotificationNotFound
	}
	return nil
}
