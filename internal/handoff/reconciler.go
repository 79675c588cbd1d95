package handoff

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"speechworks/internal/logging"
	"speechworks/internal/telemetry"
)

// Triggers reported to the consumer metrics
const (
	TriggerLoaded = "loaded"
	TriggerRetry  = "retry"
	TriggerWatch  = "watch"
)

// Consumer is the side that acts on a practice request. Ready reports whether
// every reference in the request can be resolved right now and may fetch
// references it has not seen yet. Accept is called exactly once for each
// consumed request.
type Consumer interface {
	Ready(ctx context.Context, req Request) bool
	Accept(Request)
}

// Reconciler delivers a pending request to a consumer once the consumer is
// ready. It attempts a consume when the consumer finishes loading, once as it
// starts and then at each retry offset, and whenever a new request is
// published.
type Reconciler struct {
	mailbox *Mailbox
	offsets []time.Duration
	logger  *zap.Logger
	metrics *telemetry.Metrics
}

// NewReconciler creates a reconciler. Nil offsets use DefaultRetryOffsets.
func NewReconciler(mailbox *Mailbox, offsets []time.Duration, logger *zap.Logger, metrics *telemetry.Metrics) *Reconciler {
	if offsets == nil {
		offsets = DefaultRetryOffsets
	}
	return &Reconciler{
		mailbox: mailbox,
		offsets: offsets,
		logger:  logging.OrNop(logger),
		metrics: metrics,
	}
}

// Run blocks until ctx is cancelled. loaded is closed by the consumer when its
// data is available; a nil loaded channel means the consumer is ready now.
func (r *Reconciler) Run(ctx context.Context, loaded <-chan struct{}, c Consumer) {
	// Subscribe before the first attempt so a publish in between is not missed.
	watch, cancel := r.mailbox.Watch()
	defer cancel()

	ticker := backoff.NewTicker(backoff.WithContext(NewSchedule(r.offsets...), ctx))
	defer ticker.Stop()
	ticks := ticker.C

	if loaded == nil {
		r.attempt(ctx, c, TriggerLoaded)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-loaded:
			loaded = nil
			r.attempt(ctx, c, TriggerLoaded)
		case _, ok := <-ticks:
			if !ok {
				ticks = nil
				continue
			}
			r.attempt(ctx, c, TriggerRetry)
		case <-watch:
			r.attempt(ctx, c, TriggerWatch)
		}
	}
}

func (r *Reconciler) attempt(ctx context.Context, c Consumer, trigger string) {
	req, ok := r.mailbox.TryConsume(func(req Request) bool {
		return c.Ready(ctx, req)
	})
	if !ok {
		if pending, has := r.mailbox.Pending(); has {
			r.logger.Debug("practice request not ready",
				zap.String("request_id", pending.ID),
				zap.String("trigger", trigger))
		}
		return
	}

	r.logger.Info("practice request consumed",
		zap.String("request_id", req.ID),
		zap.Int64("activity_id", req.ActivityID),
		zap.Int64("client_id", req.ClientID),
		zap.String("trigger", trigger))
	r.metrics.HandoffConsumed(ctx, trigger)
	c.Accept(req)
}
