package application_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/allmeidain/adcombo-postback-notifier/internal/adapters/events"
	"github.com/allmeidain/adcombo-postback-notifier/internal/adapters/ledger"
	"github.com/allmeidain/adcombo-postback-notifier/internal/application"
	"github.com/allmeidain/adcombo-postback-notifier/internal/contracts"
	"github.com/allmeidain/adcombo-postback-notifier/internal/domain"
	"github.com/allmeidain/adcombo-postback-notifier/internal/ports"
)

const testAPIKey = "secret-key"

type fakeNotifier struct {
	channel domain.Channel
	status  domain.DeliveryStatus

	mu   sync.Mutex
	sent []domain.Message
}

func newFakeNotifier(channel domain.Channel, status domain.DeliveryStatus) *fakeNotifier {
	return &fakeNotifier{channel: channel, status: status}
}

func (n *fakeNotifier) Channel() domain.Channel { return n.channel }
func (n *fakeNotifier) Configured() bool        { return n.status != domain.DeliverySkipped }

func (n *fakeNotifier) Send(_ context.Context, msg domain.Message) domain.DispatchResult {
	n.mu.Lock()
	n.sent = append(n.sent, msg)
	n.mu.Unlock()
	switch n.status {
	case domain.DeliveryFailed:
		return domain.Failed(n.channel, domain.FailureTransport, "boom", time.Millisecond)
	case domain.DeliverySkipped:
		return domain.Skipped(n.channel, "not configured")
	default:
		return domain.Sent(n.channel, time.Millisecond)
	}
}

func (n *fakeNotifier) Messages() []domain.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.Message(nil), n.sent...)
}

type fixture struct {
	service *application.Service
	email   *fakeNotifier
	primary *fakeNotifier
	alt     *fakeNotifier
	ledger  *ledger.MemoryRepository
	audit   *events.MemoryPublisher
}

type fixtureOptions struct {
	profile  string
	dedup    domain.DedupMode
	statuses [3]domain.DeliveryStatus
	records  []domain.HoldRecord
}

func newFixture(t *testing.T, opts fixtureOptions) fixture {
	t.Helper()
	profile, err := domain.LookupProfile(opts.profile)
	if err != nil {
		t.Fatalf("lookup profile: %v", err)
	}
	normalizer, err := domain.NewTimestampNormalizer(domain.DefaultTimeZone, domain.TimestampAnnotate)
	if err != nil {
		t.Fatalf("new normalizer: %v", err)
	}
	for i, s := range opts.statuses {
		if s == "" {
			opts.statuses[i] = domain.DeliverySent
		}
	}
	f := fixture{
		email:   newFakeNotifier(domain.ChannelEmail, opts.statuses[0]),
		primary: newFakeNotifier(domain.ChannelTelegram, opts.statuses[1]),
		alt:     newFakeNotifier(domain.ChannelTelegramAlt, opts.statuses[2]),
		ledger:  ledger.NewMemoryRepository(opts.records...),
		audit:   events.NewMemoryPublisher(),
	}
	f.service = application.NewService(application.Dependencies{
		Config: application.Config{
			APIKey:     testAPIKey,
			Profile:    profile,
			Dedup:      opts.dedup,
			Normalizer: normalizer,
		},
		Notifiers: []ports.Notifier{f.email, f.primary, f.alt},
		Ledger:    f.ledger,
		Audit:     f.audit,
	})
	return f
}

func postback(pairs ...string) application.PostbackInput {
	q := url.Values{}
	q.Set("api_key", testAPIKey)
	for i := 0; i+1 < len(pairs); i += 2 {
		q.Set(pairs[i], pairs[i+1])
	}
	return application.PostbackInput{Query: q, RequestID: "req-1"}
}

func TestHandlePostbackRejectsInvalidKey(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fixtureOptions{})
	in := postback("trans_id", "T1")
	in.Query.Set("api_key", "wrong")
	if _, err := f.service.HandlePostback(context.Background(), in); !errors.Is(err, domain.ErrInvalidAPIKey) {
		t.Fatalf("expected ErrInvalidAPIKey, got %v", err)
	}
	in.Query.Del("api_key")
	if _, err := f.service.HandlePostback(context.Background(), in); !errors.Is(err, domain.ErrInvalidAPIKey) {
		t.Fatalf("expected ErrInvalidAPIKey for a missing key, got %v", err)
	}
	if len(f.email.Messages())+len(f.primary.Messages())+len(f.alt.Messages()) != 0 {
		t.Fatalf("expected no dispatch on rejected key")
	}
	if len(f.audit.Events()) != 0 {
		t.Fatalf("expected no audit event on rejected key")
	}
}

func TestHandlePostbackRejectsEverythingWithoutConfiguredKey(t *testing.T) {
	t.Parallel()

	svc := application.NewService(application.Dependencies{})
	in := application.PostbackInput{Query: url.Values{"api_key": {""}}}
	if _, err := svc.HandlePostback(context.Background(), in); !errors.Is(err, domain.ErrInvalidAPIKey) {
		t.Fatalf("expected ErrInvalidAPIKey, got %v", err)
	}
}

func TestHandlePostbackDeliversToEveryChannel(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fixtureOptions{})
	out, err := f.service.HandlePostback(context.Background(), postback(
		"trans_id", "T1",
		"status", "approved",
		"revenue", "12.50",
		"clickid", "ck-1",
		"datetime", "2025-05-20T12:00:00",
	))
	if err != nil {
		t.Fatalf("handle postback: %v", err)
	}
	if out.Kind != domain.OutcomeDelivered || !out.Succeeded() {
		t.Fatalf("expected delivered outcome, got %s", out.Kind)
	}
	if len(out.Results) != 3 {
		t.Fatalf("expected three dispatch results, got %d", len(out.Results))
	}
	for i, c := range domain.DispatchOrder {
		if out.Results[i].Channel != c {
			t.Fatalf("expected dispatch order %v, got %#v", domain.DispatchOrder, out.Results)
		}
	}

	email := f.email.Messages()
	if len(email) != 1 {
		t.Fatalf("expected one email, got %d", len(email))
	}
	if email[0].Subject != "Notification - Status: approved / ID T1" {
		t.Fatalf("unexpected subject %q", email[0].Subject)
	}
	if !strings.Contains(email[0].Text, "- Datetime Local: 2025-05-20 09:00:00 -03\n") {
		t.Fatalf("expected converted datetime in message, got:\n%s", email[0].Text)
	}
	if !strings.Contains(email[0].Text, "- Gclid: N/A\n") {
		t.Fatalf("expected placeholder for missing gclid, got:\n%s", email[0].Text)
	}
	if got := f.primary.Messages()[0].Text; got != email[0].Text {
		t.Fatalf("expected primary bot to receive the full message, got %q", got)
	}
	if got := f.alt.Messages()[0].Text; got != "ck-1, N/A, 2025-05-20 09:00:00 -03" {
		t.Fatalf("unexpected compact message %q", got)
	}

	want := "Postback processed (status: approved) - email: sent - telegram: sent - telegram_alt: sent"
	if got := application.Summary(out); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestHandlePostbackPartialFailureStillDelivered(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fixtureOptions{statuses: [3]domain.DeliveryStatus{domain.DeliveryFailed, domain.DeliverySent, domain.DeliverySkipped}})
	out, err := f.service.HandlePostback(context.Background(), postback("status", "approved"))
	if err != nil {
		t.Fatalf("handle postback: %v", err)
	}
	if out.Kind != domain.OutcomeDelivered {
		t.Fatalf("expected delivered, got %s", out.Kind)
	}
	want := "Postback processed (status: approved) - email: failed - telegram: sent - telegram_alt: skipped"
	if got := application.Summary(out); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestHandlePostbackAllFailedOrSkipped(t *testing.T) {
	t.Parallel()

	for _, statuses := range [][3]domain.DeliveryStatus{
		{domain.DeliveryFailed, domain.DeliveryFailed, domain.DeliveryFailed},
		{domain.DeliverySkipped, domain.DeliverySkipped, domain.DeliverySkipped},
	} {
		f := newFixture(t, fixtureOptions{statuses: statuses})
		out, err := f.service.HandlePostback(context.Background(), postback("status", "approved"))
		if err != nil {
			t.Fatalf("handle postback: %v", err)
		}
		if out.Kind != domain.OutcomeAllFailed || out.Succeeded() {
			t.Fatalf("expected all_failed for %v, got %s", statuses, out.Kind)
		}
		if got := application.Summary(out); got != "Failed to deliver notifications" {
			t.Fatalf("unexpected summary %q", got)
		}
	}
}

func TestHandlePostbackAnnotatesBadTimestamp(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fixtureOptions{})
	if _, err := f.service.HandlePostback(context.Background(), postback("datetime", "not-a-date")); err != nil {
		t.Fatalf("handle postback: %v", err)
	}
	text := f.email.Messages()[0].Text
	if !strings.Contains(text, "- Datetime Local: conversion error: not-a-date\n") {
		t.Fatalf("expected annotated datetime, got:\n%s", text)
	}
}

func TestHandlePostbackPublishesAuditEvent(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fixtureOptions{})
	if _, err := f.service.HandlePostback(context.Background(), postback("trans_id", "T7", "status", "approved")); err != nil {
		t.Fatalf("handle postback: %v", err)
	}
	evts := f.audit.Events()
	if len(evts) != 1 {
		t.Fatalf("expected one audit event, got %d", len(evts))
	}
	evt := evts[0]
	if evt.EventType != contracts.EventPostbackRelayed || evt.PartitionKey != "T7" || evt.TraceID != "req-1" {
		t.Fatalf("unexpected envelope: %#v", evt)
	}
	var payload contracts.PostbackRelayedPayload
	if err := json.Unmarshal(evt.Data, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Outcome != string(domain.OutcomeDelivered) || len(payload.Channels) != 3 {
		t.Fatalf("unexpected payload: %#v", payload)
	}
	if _, leaked := payload.Fields["api_key"]; leaked {
		t.Fatalf("api key must not appear in the audit payload")
	}
}

func TestHandlePostbackIgnoresAuditFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fixtureOptions{})
	f.audit.Err = errors.New("broker down")
	out, err := f.service.HandlePostback(context.Background(), postback("status", "approved"))
	if err != nil || out.Kind != domain.OutcomeDelivered {
		t.Fatalf("expected delivery despite audit failure, got %s err=%v", out.Kind, err)
	}
}

// stalledPublisher blocks until its context ends, like a broker that accepts
// connections and never answers.
type stalledPublisher struct{}

func (stalledPublisher) PublishAudit(ctx context.Context, _ contracts.EventEnvelope) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestHandlePostbackDoesNotWaitForStalledAuditPublisher(t *testing.T) {
	t.Parallel()

	outbox := events.NewAuditOutbox(nil, stalledPublisher{}, 4, 5*time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = outbox.Run(ctx) }()

	profile, err := domain.LookupProfile(domain.ProfileAdcombo)
	if err != nil {
		t.Fatalf("lookup profile: %v", err)
	}
	email := newFakeNotifier(domain.ChannelEmail, domain.DeliverySent)
	svc := application.NewService(application.Dependencies{
		Config: application.Config{
			APIKey:   testAPIKey,
			Profile:  profile,
			Channels: []domain.Channel{domain.ChannelEmail},
		},
		Notifiers: []ports.Notifier{email},
		Audit:     outbox,
	})

	start := time.Now()
	for i := 0; i < 3; i++ {
		out, err := svc.HandlePostback(context.Background(), postback("trans_id", "T1", "status", "approved"))
		if err != nil || out.Kind != domain.OutcomeDelivered {
			t.Fatalf("expected delivered, got %s err=%v", out.Kind, err)
		}
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("postbacks waited on the audit publisher: %s", elapsed)
	}
	if len(email.Messages()) != 3 {
		t.Fatalf("expected three emails, got %d", len(email.Messages()))
	}
}

func TestHoldDedupIgnoresOtherStatuses(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fixtureOptions{profile: domain.ProfileHold})
	out, err := f.service.HandlePostback(context.Background(), postback("conversion_id", "c1", "status", "approved"))
	if err != nil {
		t.Fatalf("handle postback: %v", err)
	}
	if out.Kind != domain.OutcomeIgnored {
		t.Fatalf("expected ignored, got %s", out.Kind)
	}
	if got := application.Summary(out); got != "Ignored: status approved is not hold" {
		t.Fatalf("unexpected summary %q", got)
	}
	if len(f.email.Messages()) != 0 || f.ledger.Saves() != 0 {
		t.Fatalf("expected no dispatch and no ledger write")
	}
}

func TestHoldDedupSendsOnceAndRecords(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fixtureOptions{profile: domain.ProfileHold})
	in := postback("conversion_id", "c1", "status", "hold", "amount", "4.10", "currency", "usd", "offer_name", "Offer")
	out, err := f.service.HandlePostback(context.Background(), in)
	if err != nil {
		t.Fatalf("handle postback: %v", err)
	}
	if out.Kind != domain.OutcomeHoldSent {
		t.Fatalf("expected hold_sent, got %s", out.Kind)
	}
	if got := application.Summary(out); got != "Hold notification sent: c1" {
		t.Fatalf("unexpected summary %q", got)
	}
	records, _ := f.ledger.Load(context.Background())
	if len(records) != 1 || records[0].ConversionID != "c1" || records[0].Amount != "4.10" || records[0].OfferName != "Offer" {
		t.Fatalf("unexpected ledger contents: %#v", records)
	}

	out, err = f.service.HandlePostback(context.Background(), in)
	if err != nil {
		t.Fatalf("handle duplicate: %v", err)
	}
	if out.Kind != domain.OutcomeDuplicate {
		t.Fatalf("expected duplicate, got %s", out.Kind)
	}
	if got := application.Summary(out); got != "Already processed: c1" {
		t.Fatalf("unexpected summary %q", got)
	}
	if len(f.email.Messages()) != 1 {
		t.Fatalf("expected exactly one email, got %d", len(f.email.Messages()))
	}
}

func TestHoldDedupStatusIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fixtureOptions{profile: domain.ProfileHold})
	out, err := f.service.HandlePostback(context.Background(), postback("conversion_id", "c2", "status", "HOLD"))
	if err != nil || out.Kind != domain.OutcomeHoldSent {
		t.Fatalf("expected hold_sent, got %s err=%v", out.Kind, err)
	}
}

func TestHoldDedupSkipsKnownConversion(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fixtureOptions{
		profile: domain.ProfileHold,
		records: []domain.HoldRecord{{ConversionID: "c1"}},
	})
	out, err := f.service.HandlePostback(context.Background(), postback("conversion_id", "c1", "status", "hold"))
	if err != nil || out.Kind != domain.OutcomeDuplicate {
		t.Fatalf("expected duplicate, got %s err=%v", out.Kind, err)
	}
	if len(f.email.Messages()) != 0 {
		t.Fatalf("expected no dispatch for a known conversion")
	}
}

func TestHoldDedupFailedDispatchIsNotRecorded(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fixtureOptions{
		profile:  domain.ProfileHold,
		statuses: [3]domain.DeliveryStatus{domain.DeliveryFailed, domain.DeliveryFailed, domain.DeliverySkipped},
	})
	out, err := f.service.HandlePostback(context.Background(), postback("conversion_id", "c1", "status", "hold"))
	if err != nil {
		t.Fatalf("handle postback: %v", err)
	}
	if out.Kind != domain.OutcomeHoldFailed || out.Succeeded() {
		t.Fatalf("expected hold_failed, got %s", out.Kind)
	}
	if got := application.Summary(out); got != "Failed to send hold notification" {
		t.Fatalf("unexpected summary %q", got)
	}
	if f.ledger.Saves() != 0 {
		t.Fatalf("expected ledger untouched after a failed dispatch")
	}
}

func TestHoldDedupLedgerUnavailable(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fixtureOptions{profile: domain.ProfileHold})
	f.ledger.LoadErr = errors.New("disk gone")
	_, err := f.service.HandlePostback(context.Background(), postback("conversion_id", "c1", "status", "hold"))
	if !errors.Is(err, domain.ErrLedgerUnavailable) {
		t.Fatalf("expected ErrLedgerUnavailable, got %v", err)
	}
	if len(f.email.Messages()) != 0 {
		t.Fatalf("expected no dispatch when the ledger cannot be read")
	}
	if err := f.service.Ready(context.Background()); !errors.Is(err, domain.ErrLedgerUnavailable) {
		t.Fatalf("expected readiness to report the ledger failure, got %v", err)
	}
}

func TestHoldDedupSaveFailureStillReportsSent(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fixtureOptions{profile: domain.ProfileHold})
	f.ledger.SaveErr = errors.New("read-only")
	out, err := f.service.HandlePostback(context.Background(), postback("conversion_id", "c1", "status", "hold"))
	if err != nil || out.Kind != domain.OutcomeHoldSent {
		t.Fatalf("expected hold_sent despite save failure, got %s err=%v", out.Kind, err)
	}
}

func TestHoldDedupWithoutConversionIDIsNeverRecorded(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fixtureOptions{profile: domain.ProfileHold})
	for i := 0; i < 2; i++ {
		out, err := f.service.HandlePostback(context.Background(), postback("status", "hold"))
		if err != nil || out.Kind != domain.OutcomeHoldSent {
			t.Fatalf("expected hold_sent, got %s err=%v", out.Kind, err)
		}
	}
	if len(f.email.Messages()) != 2 {
		t.Fatalf("expected both id-less holds dispatched, got %d", len(f.email.Messages()))
	}
	if f.ledger.Saves() != 0 {
		t.Fatalf("expected no ledger write for id-less holds")
	}
}

func TestHoldDedupSerializesConcurrentDuplicates(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fixtureOptions{profile: domain.ProfileHold})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.service.HandlePostback(context.Background(), postback("conversion_id", "same", "status", "hold"))
		}()
	}
	wg.Wait()
	if got := len(f.email.Messages()); got != 1 {
		t.Fatalf("expected a single dispatch for concurrent duplicates, got %d", got)
	}
}

func TestDedupCanBeForcedOnForOtherProfiles(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fixtureOptions{profile: domain.ProfileAdcombo, dedup: domain.DedupHold})
	out, err := f.service.HandlePostback(context.Background(), postback("trans_id", "T1", "status", "hold"))
	if err != nil || out.Kind != domain.OutcomeHoldSent {
		t.Fatalf("expected hold_sent, got %s err=%v", out.Kind, err)
	}
	records, _ := f.ledger.Load(context.Background())
	if len(records) != 1 || records[0].ConversionID != "T1" {
		t.Fatalf("expected trans_id recorded, got %#v", records)
	}
}

func TestReadyWithoutDedup(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fixtureOptions{})
	f.ledger.LoadErr = errors.New("unused")
	if err := f.service.Ready(context.Background()); err != nil {
		t.Fatalf("expected ready without hold tracking, got %v", err)
	}
	cfg := f.service.Config()
	if cfg.Dedup != domain.DedupOff || len(cfg.Channels) != 3 {
		t.Fatalf("unexpected defaults: %#v", cfg)
	}
}
