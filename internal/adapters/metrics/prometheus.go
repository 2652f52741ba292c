package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/allmeidain/adcombo-postback-notifier/internal/domain"
)

const (
	namespace       = "postback_relay"
	unknownCurrency = "UNKNOWN"
)

// Recorder exports relay counters and latencies to Prometheus.
type Recorder struct {
	registry *prometheus.Registry

	postbacks        *prometheus.CounterVec
	dispatches       *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	revenue          *prometheus.CounterVec
	requests         *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		postbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "postbacks_total",
				Help:      "Postbacks handled, by outcome",
			},
			[]string{"outcome"},
		),
		dispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notification_dispatch_total",
				Help:      "Notification attempts, by channel, status and failure kind",
			},
			[]string{"channel", "status", "failure"},
		),
		dispatchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "notification_dispatch_duration_seconds",
				Help:      "Duration of notification attempts",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"channel"},
		),
		revenue: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "relayed_revenue_total",
				Help:      "Sum of revenue or amount on delivered postbacks, by currency",
			},
			[]string{"currency"},
		),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests, by route, method and status code",
			},
			[]string{"route", "method", "code"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
	}
	r.registry.MustRegister(
		r.postbacks,
		r.dispatches,
		r.dispatchDuration,
		r.revenue,
		r.requests,
		r.requestDuration,
	)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the recorder's registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Recorder) ObservePostback(outcome domain.OutcomeKind) {
	r.postbacks.WithLabelValues(string(outcome)).Inc()
}

func (r *Recorder) ObserveDispatch(result domain.DispatchResult) {
	failure := string(result.Failure)
	if failure == "" {
		failure = "none"
	}
	r.dispatches.WithLabelValues(string(result.Channel), string(result.Status), failure).Inc()
	if result.Status != domain.DeliverySkipped {
		r.dispatchDuration.WithLabelValues(string(result.Channel)).Observe(result.Duration.Seconds())
	}
}

func (r *Recorder) ObserveRevenue(currency string, amount float64) {
	if amount <= 0 {
		return
	}
	r.revenue.WithLabelValues(currencyLabel(currency)).Add(amount)
}

// currencyLabel keeps the label set bounded: anything but a three-letter
// code is reported as UNKNOWN.
func currencyLabel(currency string) string {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if len(code) != 3 {
		return unknownCurrency
	}
	for i := 0; i < len(code); i++ {
		if code[i] < 'A' || code[i] > 'Z' {
			return unknownCurrency
		}
	}
	return code
}

func (r *Recorder) ObserveRequest(route, method string, statusCode int, duration time.Duration) {
	r.requests.WithLabelValues(route, method, strconv.Itoa(statusCode)).Inc()
	r.requestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}
