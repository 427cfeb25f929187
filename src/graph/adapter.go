package graph

import (
	"context"
	"errors"

	"github.com/Udit004/alumni-networking-sub003/src/lib"
	"github.com/Udit004/alumni-networking-sub003/src/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// docWrite is one MutateUserSets call against one user document
type docWrite struct {
	user   string
	add    []SetOp
	remove []SetOp
}

// Adapter translates edge operations into per-document set mutations.
// Every call writes each affected document exactly once and never spans
// documents in a transaction.
type Adapter struct {
	store  ProfileStore
	logger *zap.Logger
}

// NewAdapter creates an adapter over the given profile store
func NewAdapter(store ProfileStore) *Adapter {
	return &Adapter{
		store:  store,
		logger: lib.Log(),
	}
}

// ReadPair loads both users of a pair concurrently
func (a *Adapter) ReadPair(ctx context.Context, x, y string) (*models.User, *models.User, error) {
	var ux, uy *models.User
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ux, err = a.store.ReadUser(gctx, x)
		return err
	})
	g.Go(func() error {
		var err error
		uy, err = a.store.ReadUser(gctx, y)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return ux, uy, nil
}

// ReadUser loads a single user
func (a *Adapter) ReadUser(ctx context.Context, id string) (*models.User, error) {
	return a.store.ReadUser(ctx, id)
}

// AddPending records from -> to as pending on both documents
func (a *Adapter) AddPending(ctx context.Context, from, to string) error {
	return a.apply(ctx,
		docWrite{user: from, add: []SetOp{{SetPendingOutgoing, to}}},
		docWrite{user: to, add: []SetOp{{SetPendingIncoming, from}}},
	)
}

// RemovePending clears from -> to from both documents
func (a *Adapter) RemovePending(ctx context.Context, from, to string) error {
	return a.apply(ctx,
		docWrite{user: from, remove: []SetOp{{SetPendingOutgoing, to}}},
		docWrite{user: to, remove: []SetOp{{SetPendingIncoming, from}}},
	)
}

// Connect adds the connection on both documents and clears pending edges in
// both directions
func (a *Adapter) Connect(ctx context.Context, x, y string) error {
	return a.apply(ctx,
		docWrite{
			user:   x,
			add:    []SetOp{{SetConnections, y}},
			remove: []SetOp{{SetPendingIncoming, y}, {SetPendingOutgoing, y}},
		},
		docWrite{
			user:   y,
			add:    []SetOp{{SetConnections, x}},
			remove: []SetOp{{SetPendingIncoming, x}, {SetPendingOutgoing, x}},
		},
	)
}

// Disconnect removes the connection from both documents
func (a *Adapter) Disconnect(ctx context.Context, x, y string) error {
	return a.apply(ctx,
		docWrite{user: x, remove: []SetOp{{SetConnections, y}}},
		docWrite{user: y, remove: []SetOp{{SetConnections, x}}},
	)
}

// apply attempts every write even when an earlier one fails, so a retry of
// the same call only has the failed documents left to converge
func (a *Adapter) apply(ctx context.Context, writes ...docWrite) error {
	var applied, failed []string
	var firstErr error

	for _, w := range writes {
		if err := a.store.MutateUserSets(ctx, w.user, w.add, w.remove); err != nil {
			if errors.Is(err, lib.ErrUserNotFound) {
				return err
			}
			failed = append(failed, w.user)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		applied = append(applied, w.user)
	}

	switch {
	case len(failed) == 0:
		return nil
	case len(applied) == 0:
		return lib.Transient("set mutation failed", firstErr)
	default:
		a.logger.Warn("Partial graph write",
			zap.Strings("applied", applied),
			zap.Strings("failed", failed),
			zap.Error(firstErr))
		return lib.NewPartialWriteError(applied, failed, firstErr)
	}
}
