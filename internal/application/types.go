package application

import (
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/allmeidain/adcombo-postback-notifier/internal/domain"
	"github.com/allmeidain/adcombo-postback-notifier/internal/ports"
)

type Config struct {
	ServiceName string
	APIKey      string
	Profile     domain.Profile
	Channels    []domain.Channel
	Dedup       domain.DedupMode
	// Normalizer is nil when timestamp conversion is disabled.
	Normalizer *domain.TimestampNormalizer
}

type PostbackInput struct {
	Query     url.Values
	RequestID string
}

type Service struct {
	cfg       Config
	notifiers map[domain.Channel]ports.Notifier
	ledger    ports.LedgerRepository
	audit     ports.AuditPublisher
	metrics   ports.MetricsRecorder
	logger    *slog.Logger
	holdMu    sync.Mutex
	nowFn     func() time.Time
}

type Dependencies struct {
	Config    Config
	Notifiers []ports.Notifier
	Ledger    ports.LedgerRepository
	Audit     ports.AuditPublisher
	Metrics   ports.MetricsRecorder
	Logger    *slog.Logger
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.ServiceName == "" {
		cfg.ServiceName = "postback-relay"
	}
	if cfg.Profile.Name == "" {
		cfg.Profile, _ = domain.LookupProfile(domain.ProfileAdcombo)
	}
	if cfg.Channels == nil {
		cfg.Channels = append([]domain.Channel(nil), domain.DispatchOrder...)
	}
	if cfg.Dedup == "" {
		cfg.Dedup = domain.DedupOff
		if cfg.Profile.DedupByDefault {
			cfg.Dedup = domain.DedupHold
		}
	}
	notifiers := make(map[domain.Channel]ports.Notifier, len(deps.Notifiers))
	for _, n := range deps.Notifiers {
		if n != nil {
			notifiers[n.Channel()] = n
		}
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:       cfg,
		notifiers: notifiers,
		ledger:    deps.Ledger,
		audit:     deps.Audit,
		metrics:   metrics,
		logger:    logger.With("module", "application"),
		nowFn:     func() time.Time { return time.Now().UTC() },
	}
}

type nopMetrics struct{}

func (nopMetrics) ObservePostback(domain.OutcomeKind)                {}
func (nopMetrics) ObserveDispatch(domain.DispatchResult)             {}
func (nopMetrics) ObserveRevenue(string, float64)                    {}
func (nopMetrics) ObserveRequest(string, string, int, time.Duration) {}
