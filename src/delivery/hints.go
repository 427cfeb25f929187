package delivery

import (
	"context"
	"errors"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// HintStore remembers the last endpoint that answered for a recipient. A hint
// only reorders probing; a stale hint costs one failed attempt.
type HintStore interface {
	Load(ctx context.Context, recipient string) (string, error)
	Save(ctx context.Context, recipient, endpoint string) error
}

// SessionHint is the persisted last-known-good endpoint
type SessionHint struct {
	Recipient string `gorm:"primaryKey"`
	Endpoint  string
	UpdatedAt time.Time
}

// GormHintStore keeps hints in a local sqlite database
type GormHintStore struct {
	db *gorm.DB
}

// NewGormHintStore migrates the hint table and returns the store
func NewGormHintStore(db *gorm.DB) (*GormHintStore, error) {
	if err := db.AutoMigrate(&SessionHint{}); err != nil {
		return nil, err
	}
	return &GormHintStore{db: db}, nil
}

func (g *GormHintStore) Load(ctx context.Context, recipient string) (string, error) {
	var hint SessionHint
	err := g.db.WithContext(ctx).First(&hint, "recipient = ?", recipient).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return hint.Endpoint, nil
}

func (g *GormHintStore) Save(ctx context.Context, recipient, endpoint string) error {
	hint := SessionHint{Recipient: recipient, Endpoint: endpoint, UpdatedAt: time.Now()}
	return g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "recipient"}},
		DoUpdates: clause.AssignmentColumns([]string{"endpoint", "updated_at"}),
	}).Create(&hint).Error
}

// MemoryHintStore keeps hints for the life of the process
type MemoryHintStore struct {
	mu    sync.Mutex
	hints map[string]string
}

func NewMemoryHintStore() *MemoryHintStore {
	return &MemoryHintStore{hints: make(map[string]string)}
}

func (m *MemoryHintStore) Load(_ context.Context, recipient string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hints[recipient], nil
}

func (m *MemoryHintStore) Save(_ context.Context, recipient, endpoint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hints[recipient] = endpoint
	return nil
}
