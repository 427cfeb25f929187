package connections

import (
	"context"
	"errors"
	"time"

	"github.com/Udit004/alumni-networking-sub003/src/graph"
	"github.com/Udit004/alumni-networking-sub003/src/lib"
	"github.com/Udit004/alumni-networking-sub003/src/models"
	"go.uber.org/zap"
)

// Outcome is the result of a connection request
type Outcome string

const (
	OutcomeRequested Outcome = "requested"
	OutcomeConnected Outcome = "connected"
)

// Notifier receives the events produced by graph transitions
type Notifier interface {
	NotifyConnectionRequest(ctx context.Context, from *models.User, to string) error
	NotifyConnectionAccepted(ctx context.Context, accepter *models.User, requester string) error
}

// Options tunes retry and caching behaviour
type Options struct {
	// MutationAttempts bounds how often a partially applied mutation is re-issued
	MutationAttempts int
	// Backoff is multiplied by the attempt number between retries
	Backoff time.Duration
	// CacheTTL is how long connection lists are served from memory
	CacheTTL time.Duration
}

// DefaultOptions returns the settings used by the server
func DefaultOptions() Options {
	return Options{
		MutationAttempts: 3,
		Backoff:          50 * time.Millisecond,
		CacheTTL:         5 * time.Minute,
	}
}

// Machine validates and applies connection transitions. It takes no locks:
// every mutation is idempotent set algebra, and a new request re-reads both
// users afterwards so that crossing requests still collapse to a connection.
type Machine struct {
	graph    *graph.Adapter
	notifier Notifier
	cache    *connectionsCache
	attempts int
	backoff  time.Duration
	logger   *zap.Logger
}

// NewMachine creates a state machine over the graph adapter
func NewMachine(adapter *graph.Adapter, notifier Notifier, opts Options) *Machine {
	if opts.MutationAttempts <= 0 {
		opts.MutationAttempts = 1
	}
	return &Machine{
		graph:    adapter,
		notifier: notifier,
		cache:    newConnectionsCache(opts.CacheTTL),
		attempts: opts.MutationAttempts,
		backoff:  opts.Backoff,
		logger:   lib.Log(),
	}
}

// RequestConnection asks to connect from -> to. A request against an
// existing reciprocal request accepts it instead.
func (m *Machine) RequestConnection(ctx context.Context, from, to string) (Outcome, error) {
	if from == "" || to == "" || from == to {
		return "", lib.ErrInvalidTarget
	}

	fu, tu, err := m.graph.ReadPair(ctx, from, to)
	if err != nil {
		return "", err
	}

	if fu.IsConnectedTo(to) || tu.IsConnectedTo(from) {
		if !(fu.IsConnectedTo(to) && tu.IsConnectedTo(from)) {
			m.repair(ctx, "connect", from, to, func(ctx context.Context) error { return m.graph.Connect(ctx, from, to) })
		}
		return "", lib.ErrAlreadyConnected
	}

	reciprocal := tu.HasOutgoing(from) || fu.HasIncoming(to)

	if !reciprocal && (fu.HasOutgoing(to) || tu.HasIncoming(from)) {
		if !(fu.HasOutgoing(to) && tu.HasIncoming(from)) {
			m.repair(ctx, "add pending", from, to, func(ctx context.Context) error { return m.graph.AddPending(ctx, from, to) })
		}
		return "", lib.ErrAlreadyPending
	}

	if reciprocal {
		if err := m.accept(ctx, to, fu, true); err != nil {
			return "", err
		}
		return OutcomeConnected, nil
	}

	if err := m.mutate(ctx, func(ctx context.Context) error { return m.graph.AddPending(ctx, from, to) }); err != nil {
		return "", err
	}
	m.cache.invalidate(from, to)

	collapsed, crossing, err := m.reconcile(ctx, from, to)
	if err != nil {
		return "", err
	}
	if collapsed {
		// from's request consumed to's, same as an accept
		if crossing {
			if err := m.notifier.NotifyConnectionAccepted(ctx, fu, to); err != nil {
				m.logger.Warn("Failed to notify connection accepted",
					zap.String("requester", to), zap.String("accepter", from), zap.Error(err))
			}
		}
		m.logger.Info("Crossing connection requests collapsed",
			zap.String("from", from), zap.String("to", to), zap.Bool("crossing", crossing))
		return OutcomeConnected, nil
	}

	if err := m.notifier.NotifyConnectionRequest(ctx, fu, to); err != nil {
		m.logger.Warn("Failed to notify connection request",
			zap.String("from", from), zap.String("to", to), zap.Error(err))
	}
	m.logger.Info("Connection requested", zap.String("from", from), zap.String("to", to))
	return OutcomeRequested, nil
}

// Accept turns requester's pending request to accepter into a connection.
// Accepting an established connection again is a no-op.
func (m *Machine) Accept(ctx context.Context, requester, accepter string) error {
	if requester == "" || accepter == "" || requester == accepter {
		return lib.ErrInvalidTarget
	}

	ru, au, err := m.graph.ReadPair(ctx, requester, accepter)
	if err != nil {
		return err
	}

	pending := ru.HasOutgoing(accepter) || au.HasIncoming(requester)
	connectedBoth := ru.IsConnectedTo(accepter) && au.IsConnectedTo(requester)
	connectedAny := ru.IsConnectedTo(accepter) || au.IsConnectedTo(requester)

	switch {
	case connectedBoth && !pending:
		return nil
	case !pending && !connectedAny:
		return lib.ErrNoSuchRequest
	}
	return m.accept(ctx, requester, au, pending)
}

// accept connects the pair and notifies requester when a pending request was consumed
func (m *Machine) accept(ctx context.Context, requester string, accepter *models.User, notify bool) error {
	if err := m.mutate(ctx, func(ctx context.Context) error { return m.graph.Connect(ctx, requester, accepter.Id) }); err != nil {
		return err
	}
	m.cache.invalidate(requester, accepter.Id)

	if notify {
		if err := m.notifier.NotifyConnectionAccepted(ctx, accepter, requester); err != nil {
			m.logger.Warn("Failed to notify connection accepted",
				zap.String("requester", requester), zap.String("accepter", accepter.Id), zap.Error(err))
		}
	}
	m.logger.Info("Connection accepted",
		zap.String("requester", requester), zap.String("accepter", accepter.Id))
	return nil
}

// Decline drops requester's pending request to accepter without notifying anyone
func (m *Machine) Decline(ctx context.Context, requester, accepter string) error {
	if requester == "" || accepter == "" || requester == accepter {
		return lib.ErrInvalidTarget
	}

	ru, au, err := m.graph.ReadPair(ctx, requester, accepter)
	if err != nil {
		return err
	}
	if !ru.HasOutgoing(accepter) && !au.HasIncoming(requester) {
		return lib.ErrNoSuchRequest
	}

	if err := m.mutate(ctx, func(ctx context.Context) error { return m.graph.RemovePending(ctx, requester, accepter) }); err != nil {
		return err
	}
	m.cache.invalidate(requester, accepter)
	m.logger.Info("Connection request declined",
		zap.String("requester", requester), zap.String("accepter", accepter))
	return nil
}

// Withdraw cancels the caller's own outgoing request
func (m *Machine) Withdraw(ctx context.Context, from, to string) error {
	return m.Decline(ctx, from, to)
}

// Disconnect removes an established connection from both users
func (m *Machine) Disconnect(ctx context.Context, a, b string) error {
	if a == "" || b == "" || a == b {
		return lib.ErrInvalidTarget
	}

	ua, ub, err := m.graph.ReadPair(ctx, a, b)
	if err != nil {
		return err
	}
	if !ua.IsConnectedTo(b) && !ub.IsConnectedTo(a) {
		return lib.ErrNotConnected
	}

	if err := m.mutate(ctx, func(ctx context.Context) error { return m.graph.Disconnect(ctx, a, b) }); err != nil {
		return err
	}
	m.cache.invalidate(a, b)
	m.logger.Info("Connection removed", zap.String("user", a), zap.String("other", b))
	return nil
}

// Status reports the pair's state from viewer's side
func (m *Machine) Status(ctx context.Context, viewer, other string) (models.ConnectionStatus, error) {
	if viewer == "" || other == "" || viewer == other {
		return "", lib.ErrInvalidTarget
	}

	u, err := m.graph.ReadUser(ctx, viewer)
	if err != nil {
		return "", err
	}
	switch {
	case u.IsConnectedTo(other):
		return models.ConnectionStatusConnected, nil
	case u.HasOutgoing(other):
		return models.ConnectionStatusPending, nil
	case u.HasIncoming(other):
		return models.ConnectionStatusReceived, nil
	}
	return models.ConnectionStatusNotConnected, nil
}

// Requests lists user's pending requests in both directions
func (m *Machine) Requests(ctx context.Context, user string) (models.PendingRequests, error) {
	u, err := m.graph.ReadUser(ctx, user)
	if err != nil {
		return models.PendingRequests{}, err
	}
	return models.RequestsOf(u), nil
}

// Connections lists user's connections, served from cache when fresh
func (m *Machine) Connections(ctx context.Context, user string) ([]string, error) {
	return m.cache.get(ctx, user, func(ctx context.Context) ([]string, error) {
		u, err := m.graph.ReadUser(ctx, user)
		if err != nil {
			return nil, err
		}
		return append([]string{}, u.Connections...), nil
	})
}

// reconcile re-reads the pair after a new request and connects it when a
// crossing request or a connection has become visible on either side.
// crossing reports whether a reciprocal request was found.
func (m *Machine) reconcile(ctx context.Context, from, to string) (collapsed, crossing bool, err error) {
	fu, tu, err := m.graph.ReadPair(ctx, from, to)
	if err != nil {
		return false, false, err
	}
	crossing = tu.HasOutgoing(from) || fu.HasIncoming(to)
	connected := fu.IsConnectedTo(to) || tu.IsConnectedTo(from)
	if !crossing && !connected {
		return false, false, nil
	}
	if err := m.mutate(ctx, func(ctx context.Context) error { return m.graph.Connect(ctx, from, to) }); err != nil {
		return false, false, err
	}
	m.cache.invalidate(from, to)
	return true, crossing, nil
}

// repair re-applies a half-written mutation found while validating. Failure
// is logged only; the caller's answer does not depend on it.
func (m *Machine) repair(ctx context.Context, what, a, b string, op func(context.Context) error) {
	if err := m.mutate(ctx, op); err != nil {
		m.logger.Warn("Failed to repair half-applied edge",
			zap.String("op", what), zap.String("a", a), zap.String("b", b), zap.Error(err))
		return
	}
	m.cache.invalidate(a, b)
	m.logger.Info("Repaired half-applied edge", zap.String("op", what), zap.String("a", a), zap.String("b", b))
}

// mutate runs op, re-issuing it while it fails in a retryable way. A partial
// write that never completes surfaces as lib.ErrStateInconsistent.
func (m *Machine) mutate(ctx context.Context, op func(context.Context) error) error {
	var lastErr error
	sawPartial := false

	for attempt := 1; attempt <= m.attempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		var pw *lib.PartialWriteError
		if errors.As(err, &pw) {
			sawPartial = true
		} else if !lib.IsRetryable(err) {
			return err
		}

		if attempt == m.attempts {
			break
		}
		m.logger.Debug("Retrying graph mutation", zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-ctx.Done():
			return lib.Transient("graph mutation cancelled", ctx.Err())
		case <-time.After(time.Duration(attempt) * m.backoff):
		}
	}

	if sawPartial {
		return lib.NewBaseError(lib.KindInconsistent, lib.ErrStateInconsistent.Message, lastErr)
	}
	return lastErr
}
