package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/allmeidain/adcombo-postback-notifier/internal/contracts"
)

type LoggingPublisher struct {
	logger *slog.Logger
}

func NewLoggingPublisher(logger *slog.Logger) *LoggingPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingPublisher{logger: logger}
}

func (p *LoggingPublisher) PublishAudit(ctx context.Context, event contracts.EventEnvelope) error {
	p.logger.InfoContext(ctx, "audit event published",
		"module", "events.publisher",
		"layer", "adapter",
		"operation", "publish_audit",
		"outcome", "success",
		"event_id", event.EventID,
		"event_type", event.EventType,
		"partition_key", event.PartitionKey,
		"payload_bytes", len(event.Data),
	)
	return nil
}

// MemoryPublisher records events in order. Used by tests.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []contracts.EventEnvelope
	Err    error
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (p *MemoryPublisher) PublishAudit(_ context.Context, event contracts.EventEnvelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *MemoryPublisher) Events() []contracts.EventEnvelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]contracts.EventEnvelope(nil), p.events...)
}
