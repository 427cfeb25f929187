package connections

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/Udit004/alumni-networking-sub003/src/graph"
	"github.com/Udit004/alumni-networking-sub003/src/lib"
	"github.com/Udit004/alumni-networking-sub003/src/models"
	"github.com/Udit004/alumni-networking-sub003/src/notifications"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store *graph.MemoryStore
	log   *notifications.Log
	m     *Machine
}

func newFixture(t *testing.T, ids ...string) *fixture {
	t.Helper()
	store := graph.NewMemoryStore()
	for _, id := range ids {
		store.Put(models.User{Id: id, Name: id, Role: models.RoleStudent})
	}
	log := notifications.NewLog(notifications.NewMemoryStore())
	m := NewMachine(graph.NewAdapter(store), log, Options{MutationAttempts: 3, Backoff: time.Millisecond, CacheTTL: time.Minute})
	return &fixture{store: store, log: log, m: m}
}

func (f *fixture) user(t *testing.T, id string) *models.User {
	t.Helper()
	u, err := f.store.ReadUser(context.Background(), id)
	require.NoError(t, err)
	return u
}

func (f *fixture) inbox(t *testing.T, id string) []models.Notification {
	t.Helper()
	list, err := f.log.ListRecent(context.Background(), id, 0)
	require.NoError(t, err)
	return list
}

func TestRequestThenAccept(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "alice", "bob")

	outcome, err := f.m.RequestConnection(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, OutcomeRequested, outcome)

	assert.Equal(t, []string{"bob"}, f.user(t, "alice").PendingOutgoing)
	assert.Equal(t, []string{"alice"}, f.user(t, "bob").PendingIncoming)

	bobInbox := f.inbox(t, "bob")
	require.Len(t, bobInbox, 1)
	assert.Equal(t, models.NotificationTypeConnectionRequest, bobInbox[0].Type)

	require.NoError(t, f.m.Accept(ctx, "alice", "bob"))

	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	assert.Equal(t, []string{"bob"}, alice.Connections)
	assert.Equal(t, []string{"alice"}, bob.Connections)
	assert.Empty(t, alice.PendingOutgoing)
	assert.Empty(t, bob.PendingIncoming)

	aliceInbox := f.inbox(t, "alice")
	require.Len(t, aliceInbox, 1)
	assert.Equal(t, models.NotificationTypeConnectionAccepted, aliceInbox[0].Type)
	assert.Equal(t, "bob", aliceInbox[0].Payload.FromUserId)
}

func TestRequestValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "alice", "bob")

	_, err := f.m.RequestConnection(ctx, "alice", "alice")
	assert.ErrorIs(t, err, lib.ErrInvalidTarget)

	_, err = f.m.RequestConnection(ctx, "alice", "ghost")
	assert.ErrorIs(t, err, lib.ErrUserNotFound)

	_, err = f.m.RequestConnection(ctx, "alice", "bob")
	require.NoError(t, err)
	_, err = f.m.RequestConnection(ctx, "alice", "bob")
	assert.ErrorIs(t, err, lib.ErrAlreadyPending)

	require.NoError(t, f.m.Accept(ctx, "alice", "bob"))
	_, err = f.m.RequestConnection(ctx, "alice", "bob")
	assert.ErrorIs(t, err, lib.ErrAlreadyConnected)
	_, err = f.m.RequestConnection(ctx, "bob", "alice")
	assert.ErrorIs(t, err, lib.ErrAlreadyConnected)
}

func TestMutualRequestsCollapseToConnection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "alice", "bob")

	outcome, err := f.m.RequestConnection(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, OutcomeRequested, outcome)

	outcome, err = f.m.RequestConnection(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, OutcomeConnected, outcome)

	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	assert.Equal(t, []string{"bob"}, alice.Connections)
	assert.Equal(t, []string{"alice"}, bob.Connections)
	assert.Empty(t, alice.PendingIncoming)
	assert.Empty(t, alice.PendingOutgoing)
	assert.Empty(t, bob.PendingIncoming)
	assert.Empty(t, bob.PendingOutgoing)
}

func TestConcurrentCrossingRequestsConverge(t *testing.T) {
	for i := 0; i < 50; i++ {
		ctx := context.Background()
		f := newFixture(t, "alice", "bob")

		var wg sync.WaitGroup
		errs := make([]error, 2)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, errs[0] = f.m.RequestConnection(ctx, "alice", "bob")
		}()
		go func() {
			defer wg.Done()
			_, errs[1] = f.m.RequestConnection(ctx, "bob", "alice")
		}()
		wg.Wait()

		for _, err := range errs {
			// the loser may observe the winner's finished connection
			if err != nil {
				assert.ErrorIs(t, err, lib.ErrAlreadyConnected)
			}
		}

		alice, bob := f.user(t, "alice"), f.user(t, "bob")
		require.Equal(t, []string{"bob"}, alice.Connections, "iteration %d", i)
		require.Equal(t, []string{"alice"}, bob.Connections, "iteration %d", i)
		require.Empty(t, alice.PendingIncoming)
		require.Empty(t, alice.PendingOutgoing)
		require.Empty(t, bob.PendingIncoming)
		require.Empty(t, bob.PendingOutgoing)

		accepted := 0
		for _, n := range append(f.inbox(t, "alice"), f.inbox(t, "bob")...) {
			if n.Type == models.NotificationTypeConnectionAccepted {
				accepted++
			}
		}
		require.NotZero(t, accepted, "iteration %d", i)
	}
}

// crossingStore lands bob's request to alice right after alice's request
// reaches bob's document, before alice's machine re-reads the pair
type crossingStore struct {
	*graph.MemoryStore
	once sync.Once
}

func (s *crossingStore) MutateUserSets(ctx context.Context, id string, add, remove []graph.SetOp) error {
	if err := s.MemoryStore.MutateUserSets(ctx, id, add, remove); err != nil {
		return err
	}
	if id == "bob" && len(add) == 1 && add[0] == (graph.SetOp{Set: graph.SetPendingIncoming, Member: "alice"}) {
		var err error
		s.once.Do(func() {
			err = s.MemoryStore.MutateUserSets(ctx, "bob", []graph.SetOp{{Set: graph.SetPendingOutgoing, Member: "alice"}}, nil)
			if err == nil {
				err = s.MemoryStore.MutateUserSets(ctx, "alice", []graph.SetOp{{Set: graph.SetPendingIncoming, Member: "bob"}}, nil)
			}
		})
		return err
	}
	return nil
}

func TestInterleavedCrossingRequestNotifiesAccepted(t *testing.T) {
	ctx := context.Background()
	store := &crossingStore{MemoryStore: graph.NewMemoryStore(
		models.User{Id: "alice", Name: "Alice", Role: models.RoleAlumni},
		models.User{Id: "bob", Name: "Bob", Role: models.RoleStudent},
	)}
	log := notifications.NewLog(notifications.NewMemoryStore())
	m := NewMachine(graph.NewAdapter(store), log, Options{MutationAttempts: 3, Backoff: time.Millisecond})

	outcome, err := m.RequestConnection(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, OutcomeConnected, outcome)

	alice, err := store.ReadUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, alice.Connections)
	assert.Empty(t, alice.PendingIncoming)
	assert.Empty(t, alice.PendingOutgoing)

	inbox, err := log.ListRecent(ctx, "bob", 0)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, models.NotificationTypeConnectionAccepted, inbox[0].Type)
	assert.Equal(t, "alice", inbox[0].Payload.FromUserId)
}

func TestAcceptIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "alice", "bob")

	_, err := f.m.RequestConnection(ctx, "alice", "bob")
	require.NoError(t, err)
	require.NoError(t, f.m.Accept(ctx, "alice", "bob"))
	before := *f.user(t, "alice")

	require.NoError(t, f.m.Accept(ctx, "alice", "bob"))

	assert.Equal(t, before, *f.user(t, "alice"))
	assert.Len(t, f.inbox(t, "alice"), 1, "a repeated accept must not notify again")
}

func TestAcceptWithoutRequest(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	err := f.m.Accept(context.Background(), "alice", "bob")
	assert.ErrorIs(t, err, lib.ErrNoSuchRequest)

	err = f.m.Accept(context.Background(), "bob", "bob")
	assert.ErrorIs(t, err, lib.ErrInvalidTarget)
}

func TestDeclineIsSilent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "alice", "bob")

	_, err := f.m.RequestConnection(ctx, "alice", "bob")
	require.NoError(t, err)
	require.NoError(t, f.m.Decline(ctx, "alice", "bob"))

	assert.Empty(t, f.user(t, "alice").PendingOutgoing)
	assert.Empty(t, f.user(t, "bob").PendingIncoming)
	assert.Empty(t, f.inbox(t, "alice"))

	assert.ErrorIs(t, f.m.Decline(ctx, "alice", "bob"), lib.ErrNoSuchRequest)
}

func TestWithdraw(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "alice", "bob")

	_, err := f.m.RequestConnection(ctx, "alice", "bob")
	require.NoError(t, err)
	require.NoError(t, f.m.Withdraw(ctx, "alice", "bob"))

	status, err := f.m.Status(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, models.ConnectionStatusNotConnected, status)
}

func TestDisconnect(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "alice", "bob")

	assert.ErrorIs(t, f.m.Disconnect(ctx, "alice", "bob"), lib.ErrNotConnected)
	assert.ErrorIs(t, f.m.Disconnect(ctx, "alice", "alice"), lib.ErrInvalidTarget)

	_, err := f.m.RequestConnection(ctx, "alice", "bob")
	require.NoError(t, err)
	require.NoError(t, f.m.Accept(ctx, "alice", "bob"))
	require.NoError(t, f.m.Disconnect(ctx, "bob", "alice"))

	assert.Empty(t, f.user(t, "alice").Connections)
	assert.Empty(t, f.user(t, "bob").Connections)
}

func TestStatusAndRequests(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "alice", "bob", "carol")

	_, err := f.m.RequestConnection(ctx, "alice", "bob")
	require.NoError(t, err)
	_, err = f.m.RequestConnection(ctx, "carol", "alice")
	require.NoError(t, err)

	status, err := f.m.Status(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, models.ConnectionStatusPending, status)

	status, err = f.m.Status(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, models.ConnectionStatusReceived, status)

	reqs, err := f.m.Requests(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []models.ConnectionRequest{{From: "carol", To: "alice", State: models.RequestIncoming}}, reqs.Incoming)
	assert.Equal(t, []models.ConnectionRequest{{From: "alice", To: "bob", State: models.RequestOutgoing}}, reqs.Outgoing)

	require.NoError(t, f.m.Accept(ctx, "alice", "bob"))
	status, err = f.m.Status(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, models.ConnectionStatusConnected, status)
}

func TestPartialWriteIsRetried(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "alice", "bob")
	_, err := f.m.RequestConnection(ctx, "alice", "bob")
	require.NoError(t, err)

	f.store.FailWrites("bob", 1, errors.New("connection reset"))
	require.NoError(t, f.m.Accept(ctx, "alice", "bob"))

	assert.True(t, f.user(t, "alice").IsConnectedTo("bob"))
	assert.True(t, f.user(t, "bob").IsConnectedTo("alice"))
	assert.Len(t, f.inbox(t, "alice"), 1)
}

func TestPersistentPartialWriteReportsInconsistency(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "alice", "bob")
	_, err := f.m.RequestConnection(ctx, "alice", "bob")
	require.NoError(t, err)

	f.store.FailWrites("bob", 3, errors.New("connection reset"))
	err = f.m.Accept(ctx, "alice", "bob")
	assert.ErrorIs(t, err, lib.ErrStateInconsistent)
	assert.Empty(t, f.inbox(t, "alice"), "no notification before the transition is durable")

	// the half-connected pair is completed by retrying the same call
	require.NoError(t, f.m.Accept(ctx, "alice", "bob"))
	assert.True(t, f.user(t, "bob").IsConnectedTo("alice"))
	assert.Empty(t, f.user(t, "bob").PendingIncoming)
	assert.Len(t, f.inbox(t, "alice"), 1)
}

func TestHalfPendingIsRepairedOnRepeat(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "alice", "bob")

	f.store.FailWrites("bob", 3, errors.New("timeout"))
	_, err := f.m.RequestConnection(ctx, "alice", "bob")
	assert.ErrorIs(t, err, lib.ErrStateInconsistent)
	assert.True(t, f.user(t, "alice").HasOutgoing("bob"))
	assert.False(t, f.user(t, "bob").HasIncoming("alice"))

	_, err = f.m.RequestConnection(ctx, "alice", "bob")
	assert.ErrorIs(t, err, lib.ErrAlreadyPending)
	assert.True(t, f.user(t, "bob").HasIncoming("alice"))
}

type failingNotifier struct{}

func (failingNotifier) NotifyConnectionRequest(context.Context, *models.User, string) error {
	return errors.New("notification store down")
}

func (failingNotifier) NotifyConnectionAccepted(context.Context, *models.User, string) error {
	return errors.New("notification store down")
}

func TestNotificationFailureDoesNotFailTransition(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore(
		models.User{Id: "alice", Role: models.RoleAlumni},
		models.User{Id: "bob", Role: models.RoleAlumni},
	)
	m := NewMachine(graph.NewAdapter(store), failingNotifier{}, DefaultOptions())

	_, err := m.RequestConnection(ctx, "alice", "bob")
	require.NoError(t, err)
	require.NoError(t, m.Accept(ctx, "alice", "bob"))
}

func TestConnectionsCacheInvalidatedOnMutation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "alice", "bob")

	conns, err := f.m.Connections(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, conns)

	_, err = f.m.RequestConnection(ctx, "alice", "bob")
	require.NoError(t, err)
	require.NoError(t, f.m.Accept(ctx, "alice", "bob"))

	conns, err = f.m.Connections(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, conns)

	conns, err = f.m.Connections(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, conns)
}

// TestRandomSequencesKeepGraphConsistent drives random transitions and checks
// the pairwise set rules after each one
func TestRandomSequencesKeepGraphConsistent(t *testing.T) {
	ctx := context.Background()
	ids := []string{"u1", "u2", "u3", "u4"}
	f := newFixture(t, ids...)
	rng := rand.New(rand.NewSource(7))

	for step := 0; step < 400; step++ {
		a := ids[rng.Intn(len(ids))]
		b := ids[rng.Intn(len(ids))]
		switch rng.Intn(4) {
		case 0:
			_, _ = f.m.RequestConnection(ctx, a, b)
		case 1:
			_ = f.m.Accept(ctx, a, b)
		case 2:
			_ = f.m.Decline(ctx, a, b)
		case 3:
			_ = f.m.Disconnect(ctx, a, b)
		}
		assertConsistent(t, f, ids)
	}
}

func assertConsistent(t *testing.T, f *fixture, ids []string) {
	t.Helper()
	users := make(map[string]*models.User)
	for _, id := range ids {
		users[id] = f.user(t, id)
	}
	for _, a := range ids {
		ua := users[a]
		require.False(t, ua.IsConnectedTo(a), "self loop on %s", a)
		require.False(t, ua.HasOutgoing(a), "self request on %s", a)
		for _, b := range ids {
			if a == b {
				continue
			}
			ub := users[b]
			require.Equal(t, ua.IsConnectedTo(b), ub.IsConnectedTo(a), "asymmetric connection %s-%s", a, b)
			require.Equal(t, ua.HasOutgoing(b), ub.HasIncoming(a), "pending bookkeeping %s->%s", a, b)
			if ua.IsConnectedTo(b) {
				require.False(t, ua.HasOutgoing(b) || ua.HasIncoming(b), "connected and pending %s-%s", a, b)
			}
			require.False(t, ua.HasOutgoing(b) && ub.HasOutgoing(a), "reciprocal pending %s-%s", a, b)
		}
	}
}
