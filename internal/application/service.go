package application

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/allmeidain/adcombo-postback-notifier/internal/domain"
)

// HandlePostback relays one postback: key check, extraction, timestamp
// normalization, optional hold dedup, then sequential dispatch to every
// configured channel.
func (s *Service) HandlePostback(ctx context.Context, in PostbackInput) (domain.Outcome, error) {
	key := in.Query.Get("api_key")
	if !s.authorized(key) {
		s.metrics.ObservePostback(domain.OutcomeUnauthorized)
		s.logger.WarnContext(ctx, "postback rejected",
			"operation", "handle_postback",
			"outcome", "failure",
			"reason", "invalid_api_key",
			"api_key_present", key != "",
			"request_id", in.RequestID,
		)
		return domain.Outcome{}, domain.ErrInvalidAPIKey
	}

	record := domain.Extract(in.Query, s.cfg.Profile.Fields)
	s.normalizeTime(ctx, record, in.RequestID)

	var (
		outcome domain.Outcome
		err     error
	)
	if s.cfg.Dedup == domain.DedupHold {
		outcome, err = s.relayHold(ctx, record, in.RequestID)
	} else {
		outcome = s.relayAll(ctx, record, in.RequestID)
	}
	if err != nil {
		s.metrics.ObservePostback(domain.OutcomeLedgerUnavailable)
		s.logger.ErrorContext(ctx, "postback relay failed",
			"operation", "handle_postback",
			"outcome", "failure",
			"request_id", in.RequestID,
			"error", err.Error(),
		)
		return domain.Outcome{}, err
	}

	s.metrics.ObservePostback(outcome.Kind)
	if outcome.AnySent() {
		s.observeRevenue(record)
	}
	s.publishAudit(ctx, outcome, in.RequestID)
	s.logger.InfoContext(ctx, "postback relayed",
		"operation", "handle_postback",
		"outcome", string(outcome.Kind),
		"record_id", outcome.RecordID,
		"status", outcome.Status,
		"request_id", in.RequestID,
	)
	return outcome, nil
}

// Ready reports whether the relay can serve postbacks. Only hold tracking has
// a dependency worth checking.
func (s *Service) Ready(ctx context.Context) error {
	if s.cfg.Dedup != domain.DedupHold {
		return nil
	}
	_, err := s.loadLedger(ctx)
	return err
}

func (s *Service) Config() Config {
	cfg := s.cfg
	cfg.Channels = append([]domain.Channel(nil), s.cfg.Channels...)
	return cfg
}

func (s *Service) authorized(key string) bool {
	if key == "" || s.cfg.APIKey == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(s.cfg.APIKey)) == 1
}

func (s *Service) normalizeTime(ctx context.Context, record domain.Record, requestID string) {
	if s.cfg.Normalizer == nil || s.cfg.Profile.TimeField == "" {
		return
	}
	field := s.cfg.Profile.TimeField
	value, err := s.cfg.Normalizer.Normalize(record.Get(field))
	if err != nil {
		s.logger.WarnContext(ctx, "timestamp conversion failed",
			"operation", "normalize_timestamp",
			"field", field,
			"request_id", requestID,
			"error", err.Error(),
		)
	}
	record[field] = value
}

func (s *Service) relayAll(ctx context.Context, record domain.Record, requestID string) domain.Outcome {
	out := domain.Outcome{
		Status:   s.cfg.Profile.Status(record),
		RecordID: s.cfg.Profile.ID(record),
		Record:   record,
	}
	out.Results = s.dispatch(ctx, record, requestID)
	out.Kind = domain.OutcomeAllFailed
	if out.AnySent() {
		out.Kind = domain.OutcomeDelivered
	}
	return out
}

func (s *Service) relayHold(ctx context.Context, record domain.Record, requestID string) (domain.Outcome, error) {
	out := domain.Outcome{
		Status:   s.cfg.Profile.Status(record),
		RecordID: s.cfg.Profile.ID(record),
		Record:   record,
	}
	if !strings.EqualFold(out.Status, domain.StatusHold) {
		out.Kind = domain.OutcomeIgnored
		return out, nil
	}

	// Load, dispatch and save run under one lock so concurrent requests in
	// this process cannot both pass the membership check.
	s.holdMu.Lock()
	defer s.holdMu.Unlock()

	ledger, err := s.loadLedger(ctx)
	if err != nil {
		return domain.Outcome{}, err
	}
	trackable := domain.IsAvailable(out.RecordID)
	if trackable && ledger.Contains(out.RecordID) {
		out.Kind = domain.OutcomeDuplicate
		return out, nil
	}

	out.Results = s.dispatch(ctx, record, requestID)
	if !out.AnySent() {
		out.Kind = domain.OutcomeHoldFailed
		return out, nil
	}
	out.Kind = domain.OutcomeHoldSent
	if !trackable {
		s.logger.WarnContext(ctx, "hold without conversion id not recorded",
			"operation", "record_hold",
			"request_id", requestID,
		)
		return out, nil
	}
	if ledger.Append(domain.HoldRecordFrom(s.cfg.Profile, record)) {
		if err := s.ledger.Save(ctx, ledger.Records()); err != nil {
			s.logger.ErrorContext(ctx, "ledger save failed",
				"operation", "record_hold",
				"outcome", "failure",
				"record_id", out.RecordID,
				"request_id", requestID,
				"error", err.Error(),
			)
		}
	}
	return out, nil
}

func (s *Service) loadLedger(ctx context.Context) (*domain.Ledger, error) {
	if s.ledger == nil {
		return nil, fmt.Errorf("%w: no ledger repository configured", domain.ErrLedgerUnavailable)
	}
	records, err := s.ledger.Load(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrLedgerUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrLedgerUnavailable, err)
	}
	return domain.NewLedger(records), nil
}

func (s *Service) dispatch(ctx context.Context, record domain.Record, requestID string) []domain.DispatchResult {
	profile := s.cfg.Profile
	subject := domain.Subject(profile, record)
	full := domain.FullMessage(profile, record)
	recordID := profile.ID(record)

	results := make([]domain.DispatchResult, 0, len(s.cfg.Channels))
	for _, ch := range s.cfg.Channels {
		msg := domain.Message{Subject: subject, Text: full}
		if ch == domain.ChannelTelegramAlt {
			msg.Text = domain.CompactMessage(profile, record)
		}
		var res domain.DispatchResult
		if n, ok := s.notifiers[ch]; ok {
			start := time.Now()
			res = n.Send(ctx, msg)
			if res.Duration == 0 {
				res.Duration = time.Since(start)
			}
		} else {
			res = domain.Skipped(ch, "no notifier registered")
		}
		res.Channel = ch
		s.metrics.ObserveDispatch(res)
		s.logDispatch(ctx, res, recordID, requestID)
		results = append(results, res)
	}
	return results
}

func (s *Service) logDispatch(ctx context.Context, res domain.DispatchResult, recordID, requestID string) {
	fields := []any{
		"operation", "dispatch",
		"channel", string(res.Channel),
		"outcome", string(res.Status),
		"record_id", recordID,
		"duration_ms", res.Duration.Milliseconds(),
		"request_id", requestID,
	}
	switch res.Status {
	case domain.DeliveryFailed:
		fields = append(fields, "failure", string(res.Failure), "detail", res.Detail)
		s.logger.WarnContext(ctx, "notification dispatch failed", fields...)
	case domain.DeliverySkipped:
		fields = append(fields, "detail", res.Detail)
		s.logger.InfoContext(ctx, "notification dispatch skipped", fields...)
	default:
		s.logger.InfoContext(ctx, "notification dispatched", fields...)
	}
}

func (s *Service) observeRevenue(record domain.Record) {
	raw := firstAvailable(record.Get("revenue"), record.Get("amount"))
	if raw == "" {
		return
	}
	amount, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", "."))
	if err != nil || amount.IsNegative() {
		return
	}
	currency := strings.ToUpper(record.Get("currency"))
	if !domain.IsAvailable(currency) {
		currency = "UNKNOWN"
	}
	s.metrics.ObserveRevenue(currency, amount.InexactFloat64())
}

func firstAvailable(values ...string) string {
	for _, v := range values {
		if domain.IsAvailable(v) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
