// Package dispatch routes inbound hook deliveries to their registered
// integration and records message counters.
package dispatch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/notifico/notifico/internal/db"
	"github.com/notifico/notifico/internal/message"
	"github.com/notifico/notifico/internal/observability"
	"github.com/notifico/notifico/internal/services"
	"github.com/notifico/notifico/internal/sink"
)

// DefaultHandleTimeout bounds an integration's HandleRequest call. Handlers
// run inline with a third party's webhook delivery and may do outbound I/O
// (URL shortening), so the budget stays small.
const DefaultHandleTimeout = 4 * time.Second

// ErrCounterUpdate marks a failed counter transaction. This is the one
// failure surfaced to the sender as an error, so the legitimate third party
// retries instead of the message count silently drifting.
var ErrCounterUpdate = errors.New("counter update failed")

// Status is the caller-visible outcome of one dispatch.
type Status int

const (
	// StatusAccepted covers every processed delivery: forwarded, ignored
	// (no-op or malformed payload) and unknown-service. The sender sees a
	// uniform empty success so misconfigured hooks do not cause retry
	// storms.
	StatusAccepted Status = iota
	// StatusNotFound means the (project, key) pair resolved to no live
	// hook. The endpoint's existence is the only thing worth leaking.
	StatusNotFound
)

// Store is the persistence surface the dispatcher needs.
type Store interface {
	FindHook(ctx context.Context, projectID int64, key string) (db.Hook, error)
	IncrementMessageCounts(ctx context.Context, hookID, projectID int64) error
}

// Dispatcher authenticates inbound hook requests, invokes the owning
// service integration and maintains the message counters.
type Dispatcher struct {
	store         Store
	registry      *services.Registry
	sink          sink.Sink
	log           *slog.Logger
	handleTimeout time.Duration
	metrics       dispatchMetrics
}

// Option tweaks dispatcher construction.
type Option func(*Dispatcher)

// WithHandleTimeout overrides the per-delivery handler budget.
func WithHandleTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.handleTimeout = timeout
		}
	}
}

// New builds a dispatcher.
func New(store Store, registry *services.Registry, deliverTo sink.Sink, log *slog.Logger, opts ...Option) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	if deliverTo == nil {
		deliverTo = sink.Discard()
	}
	d := &Dispatcher{
		store:         store,
		registry:      registry,
		sink:          deliverTo,
		log:           log,
		handleTimeout: DefaultHandleTimeout,
		metrics:       newDispatchMetrics(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Receive runs the dispatch state machine for one inbound delivery.
//
// A non-nil error always means the counter transaction failed after a
// normalized event was produced; every other internal outcome is absorbed
// into the returned status.
func (d *Dispatcher) Receive(ctx context.Context, projectID int64, key string, req *services.Request) (Status, error) {
	d.metrics.recordRequest(ctx)

	hook, err := d.store.FindHook(ctx, projectID, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return StatusNotFound, nil
		}
		return StatusAccepted, fmt.Errorf("resolve hook: %w", err)
	}
	ctx = observability.WithDispatchIdentity(ctx, hook.ProjectID, hook.ID)

	svc, ok := d.registry.Lookup(int(hook.ServiceID))
	if !ok {
		// Configuration drift: the hook references a service this build no
		// longer registers. The sender is not at fault and sees success.
		d.log.WarnContext(ctx, "hook references unregistered service", "service_id", hook.ServiceID)
		d.metrics.recordIgnored(ctx, "unknown_service")
		return StatusAccepted, nil
	}
	receiver, ok := svc.(services.HookReceiver)
	if !ok {
		d.log.WarnContext(ctx, "hook references service without receive capability", "service", svc.Slug())
		d.metrics.recordIgnored(ctx, "not_a_receiver")
		return StatusAccepted, nil
	}

	event, err := d.handle(ctx, receiver, hook, req)
	if err != nil {
		// Expected traffic: provider pings, garbage, handler timeouts.
		d.log.DebugContext(ctx, "payload not handled", "service", svc.Slug(), "error", err)
		d.metrics.recordIgnored(ctx, "malformed_payload")
		return StatusAccepted, nil
	}
	if event == nil {
		d.metrics.recordIgnored(ctx, "no_op")
		return StatusAccepted, nil
	}
	event.ProjectID = hook.ProjectID
	event.HookID = hook.ID

	// The sender may disconnect mid-request; once the commit is issued it
	// must not be abandoned.
	commitCtx := context.WithoutCancel(ctx)
	if err := d.store.IncrementMessageCounts(commitCtx, hook.ID, hook.ProjectID); err != nil {
		d.metrics.recordFailed(ctx, "counter_update")
		return StatusAccepted, fmt.Errorf("%w: %w", ErrCounterUpdate, err)
	}

	// Counters reflect "received", not "delivered": a sink failure is the
	// sink's concern and never unwinds the increment.
	d.sink.Deliver(commitCtx, event)
	d.metrics.recordDelivered(ctx, svc.Slug())
	d.log.InfoContext(ctx, "message dispatched", "service", svc.Slug())
	return StatusAccepted, nil
}

func (d *Dispatcher) handle(ctx context.Context, receiver services.HookReceiver, hook db.Hook, req *services.Request) (*message.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, d.handleTimeout)
	defer cancel()

	event, err := receiver.HandleRequest(ctx, services.HookInfo{
		ID:        hook.ID,
		ProjectID: hook.ProjectID,
		Key:       hook.Key,
		ServiceID: int(hook.ServiceID),
		Config:    hook.Config,
	}, req)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, services.MalformedPayload(err)
	}
	return event, nil
}
