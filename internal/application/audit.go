package application

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/allmeidain/adcombo-postback-notifier/internal/contracts"
	"github.com/allmeidain/adcombo-postback-notifier/internal/domain"
)

// publishAudit emits a postback.relayed event. Publishing is best effort and
// never changes the response.
func (s *Service) publishAudit(ctx context.Context, outcome domain.Outcome, requestID string) {
	if s.audit == nil {
		return
	}
	event, err := s.auditEnvelope(outcome, requestID)
	if err == nil {
		err = s.audit.PublishAudit(ctx, event)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "audit publish failed",
			"operation", "publish_audit",
			"outcome", "failure",
			"record_id", outcome.RecordID,
			"request_id", requestID,
			"error", err.Error(),
		)
	}
}

func (s *Service) auditEnvelope(outcome domain.Outcome, requestID string) (contracts.EventEnvelope, error) {
	payload := contracts.PostbackRelayedPayload{
		Profile:  s.cfg.Profile.Name,
		RecordID: outcome.RecordID,
		Status:   outcome.Status,
		Outcome:  string(outcome.Kind),
		Fields:   outcome.Record.Clone(),
		Channels: make([]contracts.ChannelOutcome, 0, len(outcome.Results)),
	}
	for _, r := range outcome.Results {
		payload.Channels = append(payload.Channels, contracts.ChannelOutcome{
			Channel:    string(r.Channel),
			Status:     string(r.Status),
			Failure:    string(r.Failure),
			Detail:     r.Detail,
			DurationMS: r.Duration.Milliseconds(),
		})
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return contracts.EventEnvelope{}, err
	}
	traceID := requestID
	if traceID == "" {
		traceID = uuid.NewString()
	}
	return contracts.EventEnvelope{
		EventID:          uuid.NewString(),
		EventType:        contracts.EventPostbackRelayed,
		OccurredAt:       s.nowFn(),
		PartitionKeyPath: "data.record_id",
		PartitionKey:     outcome.RecordID,
		SourceService:    s.cfg.ServiceName,
		TraceID:          traceID,
		SchemaVersion:    contracts.SchemaVersionV1,
		Data:             raw,
	}, nil
}
