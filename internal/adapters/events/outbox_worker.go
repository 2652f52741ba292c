package events

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/allmeidain/adcombo-postback-notifier/internal/contracts"
	"github.com/allmeidain/adcombo-postback-notifier/internal/ports"
)

var ErrAuditQueueFull = errors.New("audit queue full")

// AuditOutbox takes audit events off the request path. PublishAudit only
// enqueues; Run hands queued events to the downstream publisher, each under
// its own timeout.
type AuditOutbox struct {
	logger    *slog.Logger
	publisher ports.AuditPublisher
	queue     chan contracts.EventEnvelope
	timeout   time.Duration
}

func NewAuditOutbox(logger *slog.Logger, publisher ports.AuditPublisher, capacity int, timeout time.Duration) *AuditOutbox {
	if logger == nil {
		logger = slog.Default()
	}
	if capacity <= 0 {
		capacity = 256
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AuditOutbox{
		logger: logger, publisher: publisher, queue: make(chan contracts.EventEnvelope, capacity), timeout: timeout,
	}
}

// PublishAudit never blocks. A full queue drops the event and reports ErrAuditQueueFull.
func (o *AuditOutbox) PublishAudit(_ context.Context, event contracts.EventEnvelope) error {
	select {
	case o.queue <- event:
		return nil
	default:
		return ErrAuditQueueFull
	}
}

func (o *AuditOutbox) Pending() int { return len(o.queue) }

// Run publishes queued events until ctx is cancelled, then flushes what is
// left with one bounded attempt per event.
func (o *AuditOutbox) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			o.flush()
			return ctx.Err()
		case event := <-o.queue:
			o.publish(event)
		}
	}
}

func (o *AuditOutbox) flush() {
	for {
		select {
		case event := <-o.queue:
			o.publish(event)
		default:
			return
		}
	}
}

func (o *AuditOutbox) publish(event contracts.EventEnvelope) {
	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()
	if err := o.publisher.PublishAudit(ctx, event); err != nil {
		o.logger.ErrorContext(ctx, "audit publish failed",
			"module", "events.outbox_worker",
			"layer", "adapter",
			"operation", "publish_audit",
			"outcome", "failure",
			"event_id", event.EventID,
			"error", err,
		)
	}
}
