package delivery

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Udit004/alumni-networking-sub003/src/lib"
	"github.com/Udit004/alumni-networking-sub003/src/models"
	"github.com/Udit004/alumni-networking-sub003/src/notifications"
	"go.uber.org/zap"
)

// State is the binding state of a delivery session
type State string

const (
	StateUnbound       State = "unbound"
	StateProbing       State = "probing"
	StateBoundREST     State = "bound_rest"
	StateBoundFallback State = "bound_fallback"
)

// Fallback is direct access to the notification store, used when no API
// endpoint answers. A Fallback that also implements notifications.Watcher
// gets push updates.
type Fallback interface {
	Get(ctx context.Context, id string) (*models.Notification, error)
	FindByRecipient(ctx context.Context, recipient string) ([]models.Notification, error)
	SetRead(ctx context.Context, id string) error
	SetReadForRecipient(ctx context.Context, recipient string) (int64, error)
}

// Options tunes a Coordinator. Zero values take the package defaults.
type Options struct {
	AttemptTimeout  time.Duration
	PollInterval    time.Duration
	MaxPollFailures int
	Limit           int

	Clock    Clock
	Hints    HintStore
	Fallback Fallback
}

// readMarksPerItem bounds the read marks kept for notifications outside the list
const readMarksPerItem = 4

var (
	errAlreadyStarted = lib.NewBaseError(lib.KindConflict, "delivery session already started", nil)
	errNotStarted     = lib.NewBaseError(lib.KindConflict, "delivery session not started", nil)
)

// Coordinator keeps one recipient's notification list fresh from whichever
// source answers: a REST endpoint polled on an interval, or the store itself
// with a push subscription
type Coordinator struct {
	recipient string
	endpoints *EndpointSet
	opts      Options
	logger    *zap.Logger

	mu      sync.Mutex
	state   State
	bound   *Endpoint
	items   map[string]models.Notification
	readIDs map[string]struct{}
	runCtx  context.Context
	cancel  context.CancelFunc

	// sub is handed from probe to listen; only the probing goroutine touches it
	sub *subscription

	refresh chan chan struct{}
	updates chan []models.Notification
	wg      sync.WaitGroup
}

// subscription is an open push stream from the fallback store
type subscription struct {
	stream <-chan models.Notification
	cancel context.CancelFunc
}

func (s *subscription) close() {
	if s != nil && s.cancel != nil {
		s.cancel()
	}
}

// NewCoordinator creates an unbound session for recipient
func NewCoordinator(recipient string, endpoints *EndpointSet, opts Options) *Coordinator {
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = DefaultAttemptTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.MaxPollFailures <= 0 {
		opts.MaxPollFailures = DefaultMaxPollFailures
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if endpoints == nil {
		endpoints = NewEndpointSet()
	}
	return &Coordinator{
		recipient: recipient,
		endpoints: endpoints,
		opts:      opts,
		logger:    lib.Log().With(zap.String("recipient", recipient)),
		state:     StateUnbound,
		items:     make(map[string]models.Notification),
		readIDs:   make(map[string]struct{}),
		refresh:   make(chan chan struct{}),
		updates:   make(chan []models.Notification, 1),
	}
}

// Start probes for a source, binds to the first that answers and starts live
// updates. The returned list is empty, not an error, when nothing answers.
// The session lives until Stop or until ctx is done.
func (c *Coordinator) Start(ctx context.Context) ([]models.Notification, error) {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return nil, errAlreadyStarted
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.runCtx, c.cancel = runCtx, cancel
	c.wg.Add(1)
	c.mu.Unlock()

	c.probe(runCtx)
	go c.run(runCtx)
	return c.Snapshot(), nil
}

// Refresh re-probes every source and rebinds
func (c *Coordinator) Refresh(ctx context.Context) ([]models.Notification, error) {
	c.mu.Lock()
	runCtx := c.runCtx
	c.mu.Unlock()
	if runCtx == nil {
		return nil, errNotStarted
	}

	reply := make(chan struct{})
	select {
	case c.refresh <- reply:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-runCtx.Done():
		return nil, errNotStarted
	}
	select {
	case <-reply:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-runCtx.Done():
		return nil, errNotStarted
	}
	return c.Snapshot(), nil
}

// Stop cancels in-flight requests, stops the live loop and waits for it.
// The session can be started again afterwards.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel, c.runCtx = nil, nil
	c.mu.Unlock()
	if cancel == nil {
		return
	}

	cancel()
	c.wg.Wait()
	c.setState(StateUnbound, nil)
	c.logger.Info("Delivery session stopped")
}

// State returns the current binding state
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// BoundEndpoint names the REST endpoint in use, or empty
func (c *Coordinator) BoundEndpoint() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bound == nil {
		return ""
	}
	return c.bound.Name
}

// Endpoints exposes the endpoint set and its health
func (c *Coordinator) Endpoints() *EndpointSet {
	return c.endpoints
}

// Updates delivers the merged list after every change. Only the latest list
// is kept for a slow reader.
func (c *Coordinator) Updates() <-chan []models.Notification {
	return c.updates
}

// Snapshot returns the merged list, newest first, truncated to the limit
func (c *Coordinator) Snapshot() []models.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// MarkRead marks id read locally, then on the first source that accepts it
func (c *Coordinator) MarkRead(ctx context.Context, id string) error {
	if id == "" {
		return lib.NewBaseError(lib.KindValidation, "notification id is required", nil)
	}

	c.mu.Lock()
	c.readIDs[id] = struct{}{}
	if n, ok := c.items[id]; ok {
		n.Read = true
		c.items[id] = n
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)

	return c.route(ctx, "mark_read",
		func(ctx context.Context, s Source) error { return s.MarkRead(ctx, id) },
		func(ctx context.Context, f Fallback) error {
			n, err := f.Get(ctx, id)
			if err != nil {
				return err
			}
			if n.Recipient != c.recipient {
				return lib.ErrNotRecipient
			}
			return f.SetRead(ctx, id)
		})
}

// MarkAllRead marks every known notification read locally, then on the first
// source that accepts it
func (c *Coordinator) MarkAllRead(ctx context.Context) error {
	c.mu.Lock()
	for id, n := range c.items {
		n.Read = true
		c.items[id] = n
		c.readIDs[id] = struct{}{}
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)

	return c.route(ctx, "mark_all_read",
		func(ctx context.Context, s Source) error { return s.MarkAllRead(ctx, c.recipient) },
		func(ctx context.Context, f Fallback) error {
			_, err := f.SetReadForRecipient(ctx, c.recipient)
			return err
		})
}

// route tries the bound endpoint, the other endpoints, then the store.
// Definitive answers from the store (missing, not ours) end the search.
func (c *Coordinator) route(ctx context.Context, op string,
	viaREST func(context.Context, Source) error,
	direct func(context.Context, Fallback) error,
) error {
	ctx, cancel := c.linked(ctx)
	defer cancel()

	var lastErr error
	for _, ep := range c.endpoints.Ordered(c.boundName()) {
		if ctx.Err() != nil {
			break
		}
		actx, acancel := context.WithTimeout(ctx, c.opts.AttemptTimeout)
		start := time.Now()
		err := viaREST(actx, ep.Source)
		acancel()
		c.endpoints.Record(ep, err, time.Since(start), c.opts.Clock.Now())
		if err == nil {
			return nil
		}
		lastErr = err
		c.logger.Debug("Endpoint rejected mutation",
			zap.String("op", op), zap.String("endpoint", ep.Name), zap.Error(err))
	}

	if c.opts.Fallback != nil && ctx.Err() == nil {
		actx, acancel := context.WithTimeout(ctx, c.opts.AttemptTimeout)
		err := direct(actx, c.opts.Fallback)
		acancel()
		if err == nil {
			return nil
		}
		if errors.Is(err, lib.ErrNotificationNotFound) || errors.Is(err, lib.ErrNotRecipient) {
			return err
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = ctx.Err()
	}

	c.logger.Warn("Mutation failed on every source", zap.String("op", op), zap.Error(lastErr))
	return lib.NewBaseError(lib.KindTransientIO, lib.ErrAllSourcesFailed.Message, lastErr)
}

// probe walks the sources in order and binds to the first that answers
func (c *Coordinator) probe(ctx context.Context) {
	c.setState(StateProbing, nil)

	preferred := ""
	if c.opts.Hints != nil {
		hint, err := c.opts.Hints.Load(ctx, c.recipient)
		if err != nil {
			c.logger.Warn("Failed to load endpoint hint", zap.Error(err))
		}
		preferred = hint
	}

	for _, ep := range c.endpoints.Ordered(preferred) {
		if ctx.Err() != nil {
			break
		}
		list, err := c.fetch(ctx, ep)
		if err != nil {
			c.logger.Debug("Endpoint probe failed", zap.String("endpoint", ep.Name), zap.Error(err))
			continue
		}
		if c.opts.Hints != nil {
			if err := c.opts.Hints.Save(ctx, c.recipient, ep.Name); err != nil {
				c.logger.Warn("Failed to save endpoint hint", zap.Error(err))
			}
		}
		c.merge(list)
		c.setState(StateBoundREST, ep)
		c.logger.Info("Bound to endpoint", zap.String("endpoint", ep.Name), zap.String("url", ep.URL))
		return
	}

	if c.opts.Fallback != nil && ctx.Err() == nil {
		// subscribe before querying so nothing inserted in between is lost
		sub := c.subscribe(ctx)
		actx, cancel := context.WithTimeout(ctx, c.opts.AttemptTimeout)
		list, err := c.opts.Fallback.FindByRecipient(actx, c.recipient)
		cancel()
		if err == nil {
			c.merge(list)
			c.sub.close()
			c.sub = sub
			c.setState(StateBoundFallback, nil)
			c.logger.Info("Bound to fallback store", zap.Int("notifications", len(list)))
			return
		}
		sub.close()
		c.logger.Warn("Fallback store query failed", zap.Error(err))
	}

	c.setState(StateUnbound, nil)
	if ctx.Err() == nil {
		c.logger.Warn("No notification source available", zap.Int("endpoints", c.endpoints.Len()))
	}
}

// subscribe opens a push stream when the fallback supports one. The result
// is never nil; its stream is nil when there is nothing to listen to.
func (c *Coordinator) subscribe(ctx context.Context) *subscription {
	w, ok := c.opts.Fallback.(notifications.Watcher)
	if !ok {
		return &subscription{}
	}
	wctx, cancel := context.WithCancel(ctx)
	ch, err := w.Watch(wctx, c.recipient)
	if err != nil {
		cancel()
		c.logger.Warn("Push subscription failed", zap.Error(err))
		return &subscription{}
	}
	return &subscription{stream: ch, cancel: cancel}
}

func (c *Coordinator) fetch(ctx context.Context, ep *Endpoint) ([]models.Notification, error) {
	actx, cancel := context.WithTimeout(ctx, c.opts.AttemptTimeout)
	defer cancel()

	start := time.Now()
	list, err := ep.Source.Fetch(actx, c.recipient, c.opts.Limit)
	c.endpoints.Record(ep, err, time.Since(start), c.opts.Clock.Now())
	return list, err
}

// run owns the live updates. Each pass serves the current binding until it
// fails or a refresh arrives, then probes again.
func (c *Coordinator) run(ctx context.Context) {
	defer c.wg.Done()
	for {
		var reply chan struct{}
		var ok bool
		switch c.State() {
		case StateBoundREST:
			reply, ok = c.poll(ctx)
		case StateBoundFallback:
			reply, ok = c.listen(ctx)
		default:
			reply, ok = c.retry(ctx)
		}
		if !ok {
			return
		}
		c.probe(ctx)
		if reply != nil {
			close(reply)
		}
	}
}

// poll fetches from the bound endpoint on every tick. It returns after
// MaxPollFailures consecutive failures.
func (c *Coordinator) poll(ctx context.Context) (chan struct{}, bool) {
	c.mu.Lock()
	ep := c.bound
	c.mu.Unlock()

	ticker := c.opts.Clock.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return nil, false
		case reply := <-c.refresh:
			return reply, true
		case <-ticker.C():
			list, err := c.fetch(ctx, ep)
			if ctx.Err() != nil {
				return nil, false
			}
			if err != nil {
				failures++
				c.logger.Warn("Poll failed",
					zap.String("endpoint", ep.Name), zap.Int("failures", failures), zap.Error(err))
				if failures >= c.opts.MaxPollFailures {
					c.logger.Info("Re-probing after repeated poll failures", zap.String("endpoint", ep.Name))
					return nil, true
				}
				continue
			}
			failures = 0
			c.merge(list)
		}
	}
}

// listen merges pushed notifications from the subscription probe opened.
// Without one the session stays on the last fetched list until refreshed.
func (c *Coordinator) listen(ctx context.Context) (chan struct{}, bool) {
	sub := c.sub
	c.sub = nil
	defer sub.close()

	var stream <-chan models.Notification
	if sub != nil {
		stream = sub.stream
	}

	for {
		select {
		case <-ctx.Done():
			return nil, false
		case reply := <-c.refresh:
			return reply, true
		case n, ok := <-stream:
			if !ok {
				if ctx.Err() != nil {
					return nil, false
				}
				c.logger.Warn("Push subscription closed")
				return nil, true
			}
			c.merge([]models.Notification{n})
		}
	}
}

// retry re-probes an unbound session once per poll interval
func (c *Coordinator) retry(ctx context.Context) (chan struct{}, bool) {
	ticker := c.opts.Clock.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	select {
	case <-ctx.Done():
		return nil, false
	case reply := <-c.refresh:
		return reply, true
	case <-ticker.C():
		return nil, true
	}
}

// merge folds a batch into the list by ID. Read never goes back to false.
func (c *Coordinator) merge(batch []models.Notification) {
	c.mu.Lock()
	for _, n := range batch {
		if n.Id == "" || (n.Recipient != "" && n.Recipient != c.recipient) {
			continue
		}
		if _, ok := c.readIDs[n.Id]; ok {
			n.Read = true
		}
		if n.Read {
			c.readIDs[n.Id] = struct{}{}
		}
		c.items[n.Id] = n
	}
	snap := c.snapshotLocked()

	if len(c.items) > len(snap) {
		keep := make(map[string]models.Notification, len(snap))
		for _, n := range snap {
			keep[n.Id] = n
		}
		c.items = keep
	}
	c.pruneReadLocked()
	c.mu.Unlock()
	c.publish(snap)
}

// pruneReadLocked drops read marks for notifications no longer held once
// the set outgrows readMarksPerItem times the limit
func (c *Coordinator) pruneReadLocked() {
	if len(c.readIDs) <= readMarksPerItem*c.opts.Limit {
		return
	}
	for id := range c.readIDs {
		if _, ok := c.items[id]; !ok {
			delete(c.readIDs, id)
		}
	}
}

func (c *Coordinator) snapshotLocked() []models.Notification {
	list := make([]models.Notification, 0, len(c.items))
	for _, n := range c.items {
		list = append(list, n)
	}
	notifications.SortRecent(list)
	return notifications.Truncate(list, c.opts.Limit)
}

func (c *Coordinator) publish(snap []models.Notification) {
	select {
	case c.updates <- snap:
		return
	default:
	}
	select {
	case <-c.updates:
	default:
	}
	select {
	case c.updates <- snap:
	default:
	}
}

func (c *Coordinator) setState(s State, ep *Endpoint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
	c.bound = ep
}

func (c *Coordinator) boundName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateBoundREST || c.bound == nil {
		return ""
	}
	return c.bound.Name
}

// linked derives a context that is also cancelled when the session stops
func (c *Coordinator) linked(ctx context.Context) (context.Context, context.CancelFunc) {
	c.mu.Lock()
	run := c.runCtx
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	if run == nil {
		return ctx, cancel
	}
	stop := context.AfterFunc(run, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
