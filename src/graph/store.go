package graph

import (
	"context"
	"fmt"

	"github.com/Udit004/alumni-networking-sub003/src/models"
)

// SetName identifies one of the relationship sets on a user document
type SetName string

const (
	SetConnections     SetName = "connections"
	SetPendingIncoming SetName = "pendingIncoming"
	SetPendingOutgoing SetName = "pendingOutgoing"
)

// SetOp adds or removes one member of one set
type SetOp struct {
	Set    SetName
	Member string
}

// ProfileStore is the narrow view of the profile store the graph needs.
// MutateUserSets applies set-union for add and set-difference for remove
// atomically within the one document.
type ProfileStore interface {
	ReadUser(ctx context.Context, id string) (*models.User, error)
	MutateUserSets(ctx context.Context, id string, add, remove []SetOp) error
}

// Directory lists users for candidate pools
type Directory interface {
	ListUsers(ctx context.Context, roles ...models.Role) ([]models.User, error)
}

// Store is a profile store that can also enumerate users
type Store interface {
	ProfileStore
	Directory
}

// checkOps rejects unknown sets and a set appearing on both sides of one mutation
func checkOps(add, remove []SetOp) error {
	touched := make(map[SetName]bool)
	for _, op := range add {
		if !op.Set.valid() {
			return fmt.Errorf("unknown set %q", op.Set)
		}
		touched[op.Set] = true
	}
	for _, op := range remove {
		if !op.Set.valid() {
			return fmt.Errorf("unknown set %q", op.Set)
		}
		if touched[op.Set] {
			return fmt.Errorf("set %q is both added to and removed from", op.Set)
		}
	}
	return nil
}

func (s SetName) valid() bool {
	return s == SetConnections || s == SetPendingIncoming || s == SetPendingOutgoing
}

// groupOps collects members per set, preserving first-seen order
func groupOps(ops []SetOp) map[SetName][]string {
	grouped := make(map[SetName][]string)
	for _, op := range ops {
		grouped[op.Set] = append(grouped[op.Set], op.Member)
	}
	return grouped
}
