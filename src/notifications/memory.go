package notifications

import (
	"context"
	"sync"

	"github.com/Udit004/alumni-networking-sub003/src/lib"
	"github.com/Udit004/alumni-networking-sub003/src/models"
)

const watchBuffer = 64

// MemoryStore keeps notifications in process
type MemoryStore struct {
	mu       sync.Mutex
	byID     map[string]*models.Notification
	order    []string
	noIndex  bool
	failing  error
	watchers map[string]map[chan models.Notification]struct{}
}

// MemoryOption configures a MemoryStore
type MemoryOption func(*MemoryStore)

// WithoutIndex makes FindRecent report a missing index, like a store whose
// composite index has not been built
func WithoutIndex() MemoryOption {
	return func(s *MemoryStore) { s.noIndex = true }
}

// NewMemoryStore creates an empty in-memory notification store
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		byID:     make(map[string]*models.Notification),
		watchers: make(map[string]map[chan models.Notification]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetFailing makes every call return err until cleared with nil
func (s *MemoryStore) SetFailing(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing = err
}

func (s *MemoryStore) Insert(ctx context.Context, n models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing != nil {
		return s.failing
	}
	if _, ok := s.byID[n.Id]; ok {
		return nil
	}
	stored := n
	s.byID[n.Id] = &stored
	s.order = append(s.order, n.Id)
	s.publish(stored)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing != nil {
		return nil, s.failing
	}
	n, ok := s.byID[id]
	if !ok {
		return nil, lib.ErrNotificationNotFound
	}
	c := *n
	return &c, nil
}

func (s *MemoryStore) SetRead(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing != nil {
		return s.failing
	}
	n, ok := s.byID[id]
	if !ok {
		return lib.ErrNotificationNotFound
	}
	if !n.Read {
		n.Read = true
		s.publish(*n)
	}
	return nil
}

func (s *MemoryStore) SetReadForRecipient(ctx context.Context, recipient string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing != nil {
		return 0, s.failing
	}
	var count int64
	for _, id := range s.order {
		n := s.byID[id]
		if n.Recipient == recipient && !n.Read {
			n.Read = true
			count++
			s.publish(*n)
		}
	}
	return count, nil
}

func (s *MemoryStore) FindRecent(ctx context.Context, recipient string, limit int) ([]models.Notification, error) {
	if s.noIndex {
		return nil, lib.ErrIndexUnavailable
	}
	list, err := s.FindByRecipient(ctx, recipient)
	if err != nil {
		return nil, err
	}
	SortRecent(list)
	return Truncate(list, limit), nil
}

// FindByRecipient returns the recipient's notifications in insertion order
func (s *MemoryStore) FindByRecipient(ctx context.Context, recipient string) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing != nil {
		return nil, s.failing
	}
	var list []models.Notification
	for _, id := range s.order {
		if n := s.byID[id]; n.Recipient == recipient {
			list = append(list, *n)
		}
	}
	return list, nil
}

func (s *MemoryStore) CountUnread(ctx context.Context, recipient string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing != nil {
		return 0, s.failing
	}
	var count int64
	for _, n := range s.byID {
		if n.Recipient == recipient && !n.Read {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing != nil {
		return s.failing
	}
	if _, ok := s.byID[id]; !ok {
		return lib.ErrNotificationNotFound
	}
	delete(s.byID, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Watch subscribes to changes for recipient until ctx is done
func (s *MemoryStore) Watch(ctx context.Context, recipient string) (<-chan models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing != nil {
		return nil, s.failing
	}

	ch := make(chan models.Notification, watchBuffer)
	if s.watchers[recipient] == nil {
		s.watchers[recipient] = make(map[chan models.Notification]struct{})
	}
	s.watchers[recipient][ch] = struct{}{}

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.watchers[recipient], ch)
		close(ch)
	}()
	return ch, nil
}

// Watchers returns the number of open subscriptions
func (s *MemoryStore) Watchers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, set := range s.watchers {
		total += len(set)
	}
	return total
}

// publish must be called with mu held; slow subscribers miss events and
// recover them on their next fetch
func (s *MemoryStore) publish(n models.Notification) {
	for ch := range s.watchers[n.Recipient] {
		select {
		case ch <- n:
		default:
		}
	}
}
