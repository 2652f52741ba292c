package ports

import (
	"context"
	"time"

	"github.com/allmeidain/adcombo-postback-notifier/internal/contracts"
	"github.com/allmeidain/adcombo-postback-notifier/internal/domain"
)

type AuditPublisher interface {
	PublishAudit(ctx context.Context, event contracts.EventEnvelope) error
}

type MetricsRecorder interface {
	ObservePostback(outcome domain.OutcomeKind)
	ObserveDispatch(result domain.DispatchResult)
	ObserveRevenue(currency string, amount float64)
	ObserveRequest(route, method string, statusCode int, duration time.Duration)
}
