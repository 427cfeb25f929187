package graph

import (
	"context"
	"sync"

	"github.com/Udit004/alumni-networking-sub003/src/lib"
	"github.com/Udit004/alumni-networking-sub003/src/models"
)

type writeFault struct {
	remaining int
	err       error
}

// MemoryStore keeps user documents in process. Writes to one document are
// atomic; nothing spans documents. Faults can be injected per user.
type MemoryStore struct {
	mu     sync.Mutex
	users  map[string]*models.User
	order  []string
	faults map[string]*writeFault
	writes map[string]int
}

// NewMemoryStore creates an empty in-memory profile store
func NewMemoryStore(users ...models.User) *MemoryStore {
	s := &MemoryStore{
		users:  make(map[string]*models.User),
		faults: make(map[string]*writeFault),
		writes: make(map[string]int),
	}
	for _, u := range users {
		s.Put(u)
	}
	return s
}

// Put inserts or replaces a user document
func (s *MemoryStore) Put(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.Id]; !ok {
		s.order = append(s.order, u.Id)
	}
	s.users[u.Id] = cloneUser(&u)
}

// FailWrites makes the next n writes to id return err
func (s *MemoryStore) FailWrites(id string, n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[id] = &writeFault{remaining: n, err: err}
}

// Writes returns how many successful writes id has received
func (s *MemoryStore) Writes(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes[id]
}

// ReadUser returns a copy of the stored document
func (s *MemoryStore) ReadUser(ctx context.Context, id string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, lib.Transient("read user", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, lib.ErrUserNotFound
	}
	return cloneUser(u), nil
}

// MutateUserSets applies the set operations to one document
func (s *MemoryStore) MutateUserSets(ctx context.Context, id string, add, remove []SetOp) error {
	if err := checkOps(add, remove); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return lib.Transient("mutate user", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if f, ok := s.faults[id]; ok && f.remaining > 0 {
		f.remaining--
		return f.err
	}

	u, ok := s.users[id]
	if !ok {
		return lib.ErrUserNotFound
	}
	for _, op := range remove {
		set := setField(u, op.Set)
		*set = without(*set, op.Member)
	}
	for _, op := range add {
		set := setField(u, op.Set)
		if !containsID(*set, op.Member) {
			*set = append(*set, op.Member)
		}
	}
	s.writes[id]++
	return nil
}

// ListUsers returns users in insertion order, filtered by role when given
func (s *MemoryStore) ListUsers(ctx context.Context, roles ...models.Role) ([]models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, lib.Transient("list users", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.User, 0, len(s.order))
	for _, id := range s.order {
		u := s.users[id]
		if len(roles) > 0 && !hasRole(roles, u.Role) {
			continue
		}
		out = append(out, *cloneUser(u))
	}
	return out, nil
}

func setField(u *models.User, name SetName) *[]string {
	switch name {
	case SetConnections:
		return &u.Connections
	case SetPendingIncoming:
		return &u.PendingIncoming
	default:
		return &u.PendingOutgoing
	}
}

func cloneUser(u *models.User) *models.User {
	c := *u
	c.Skills = append([]string(nil), u.Skills...)
	c.Expertise = append([]string(nil), u.Expertise...)
	c.Connections = append([]string(nil), u.Connections...)
	c.PendingIncoming = append([]string(nil), u.PendingIncoming...)
	c.PendingOutgoing = append([]string(nil), u.PendingOutgoing...)
	return &c
}

func without(set []string, id string) []string {
	out := set[:0]
	for _, v := range set {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func containsID(set []string, id string) bool {
	for _, v := range set {
		if v == id {
			return true
		}
	}
	return false
}

func hasRole(roles []models.Role, r models.Role) bool {
	for _, want := range roles {
		if want == r {
			return true
		}
	}
	return false
}
