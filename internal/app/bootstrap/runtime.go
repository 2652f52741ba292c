package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/allmeidain/adcombo-postback-notifier/internal/adapters/cache"
	eventadapter "github.com/allmeidain/adcombo-postback-notifier/internal/adapters/events"
	grpcadapter "github.com/allmeidain/adcombo-postback-notifier/internal/adapters/grpc"
	httpadapter "github.com/allmeidain/adcombo-postback-notifier/internal/adapters/http"
	"github.com/allmeidain/adcombo-postback-notifier/internal/adapters/ledger"
	"github.com/allmeidain/adcombo-postback-notifier/internal/adapters/metrics"
	"github.com/allmeidain/adcombo-postback-notifier/internal/adapters/smtp"
	"github.com/allmeidain/adcombo-postback-notifier/internal/adapters/telegram"
	"github.com/allmeidain/adcombo-postback-notifier/internal/application"
	"github.com/allmeidain/adcombo-postback-notifier/internal/domain"
	"github.com/allmeidain/adcombo-postback-notifier/internal/ports"
)

type Options struct {
	ConfigPath string
	// LogLevel overrides the configured level when set.
	LogLevel string
}

type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	httpServer *http.Server
	grpcServer *grpc.Server
	grpcLis    net.Listener
	outbox     *eventadapter.AuditOutbox
	cleanupFn  func(context.Context)
}

func NewRuntime(ctx context.Context, opts Options) (*Runtime, error) {
	cfg, err := LoadConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.LogLevel != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(opts.LogLevel)); err != nil {
			return nil, fmt.Errorf("%w: log level %q", domain.ErrInvalidConfig, opts.LogLevel)
		}
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})).With("service", cfg.ServiceID)
	slog.SetDefault(logger)
	for _, warning := range cfg.Warnings() {
		logger.WarnContext(ctx, warning, "operation", "load_config")
	}

	normalizer, err := cfg.TimestampNormalizer()
	if err != nil {
		return nil, err
	}

	var closers []io.Closer
	cleanup := func() {
		for _, closer := range closers {
			_ = closer.Close()
		}
	}

	ledgerRepo, ledgerCloser, err := newLedgerRepository(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if ledgerCloser != nil {
		closers = append(closers, ledgerCloser)
	}

	audit := ports.AuditPublisher(eventadapter.NewLoggingPublisher(logger))
	if len(cfg.AuditKafkaBrokers) > 0 {
		kafkaPublisher, pubErr := eventadapter.NewKafkaPublisher(cfg.AuditKafkaBrokers, cfg.AuditKafkaTopic)
		if pubErr != nil {
			logger.WarnContext(ctx, "kafka audit publisher disabled, using logging publisher", "error", pubErr)
		} else {
			audit = kafkaPublisher
			closers = append(closers, kafkaPublisher)
		}
	}
	outbox := eventadapter.NewAuditOutbox(logger, audit, 0, 5*time.Second)

	recorder := metrics.NewRecorder()
	service := application.NewService(application.Dependencies{
		Config: application.Config{
			ServiceName: cfg.ServiceID,
			APIKey:      cfg.APIKey,
			Profile:     cfg.Profile,
			Channels:    cfg.Channels,
			Dedup:       cfg.Dedup,
			Normalizer:  normalizer,
		},
		Notifiers: newNotifiers(cfg),
		Ledger:    ledgerRepo,
		Audit:     outbox,
		Metrics:   recorder,
		Logger:    logger,
	})

	handler := httpadapter.NewHandler(service,
		httpadapter.WithLogger(logger),
		httpadapter.WithMetrics(recorder, recorder.Handler()),
	)
	router := httpadapter.NewRouter(handler)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	var (
		grpcServer *grpc.Server
		lis        net.Listener
	)
	if cfg.GRPCPort > 0 {
		grpcServer = grpc.NewServer()
		grpcadapter.Register(grpcServer, grpcadapter.NewRelayHealthServer(service, cfg.ServiceID))
		lis, err = net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
		if err != nil {
			cleanup()
			return nil, err
		}
	}

	logger.InfoContext(ctx, "relay configured",
		"operation", "bootstrap",
		"profile", cfg.Profile.Name,
		"channels", cfg.Channels,
		"dedup", string(cfg.Dedup),
		"ledger_backend", cfg.LedgerBackend,
		"timezone_enabled", cfg.TimezoneEnabled,
		"http_port", cfg.HTTPPort,
		"grpc_port", cfg.GRPCPort,
	)

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		httpServer: httpServer,
		grpcServer: grpcServer,
		grpcLis:    lis,
		outbox:     outbox,
		cleanupFn: func(context.Context) {
			cleanup()
		},
	}, nil
}

func newNotifiers(cfg Config) []ports.Notifier {
	client := &http.Client{Timeout: cfg.TelegramTimeout}
	return []ports.Notifier{
		smtp.NewMailer(smtp.Config{
			Host:     cfg.SMTPServer,
			Port:     cfg.SMTPPort,
			Sender:   cfg.EmailSender,
			Password: cfg.EmailPassword,
			Receiver: cfg.EmailReceiver,
			Timeout:  cfg.SMTPTimeout,
		}),
		telegram.NewBot(domain.ChannelTelegram, telegram.Config{
			Token:   cfg.TelegramBotToken,
			ChatID:  cfg.TelegramChatID,
			BaseURL: cfg.TelegramAPIBaseURL,
			Timeout: cfg.TelegramTimeout,
		}, client),
		telegram.NewBot(domain.ChannelTelegramAlt, telegram.Config{
			Token:   cfg.TelegramBotTokenAlt,
			ChatID:  cfg.TelegramChatIDAlt,
			BaseURL: cfg.TelegramAPIBaseURL,
			Timeout: cfg.TelegramTimeout,
		}, client),
	}
}

// newLedgerRepository returns nil when hold tracking is off. The returned
// closer is non-nil only for backends holding a connection.
func newLedgerRepository(ctx context.Context, cfg Config) (ports.LedgerRepository, io.Closer, error) {
	if cfg.Dedup != domain.DedupHold {
		return nil, nil, nil
	}
	switch cfg.LedgerBackend {
	case LedgerBackendRedis:
		client, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", domain.ErrLedgerUnavailable, err)
		}
		return cache.NewRedisLedgerRepository(client, cfg.LedgerRedisKey), client, nil
	default:
		return ledger.NewFileRepository(cfg.LedgerPath), nil, nil
	}
}

func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	errCh := make(chan error, 2)

	outboxCtx, stopOutbox := context.WithCancel(context.Background())
	outboxDone := make(chan struct{})
	go func() {
		defer close(outboxDone)
		_ = r.outbox.Run(outboxCtx)
	}()

	go func() {
		r.logger.InfoContext(ctx, "http server listening", "addr", r.httpServer.Addr)
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	if r.grpcServer != nil {
		go func() {
			r.logger.InfoContext(ctx, "grpc server listening", "addr", r.grpcLis.Addr().String())
			if err := r.grpcServer.Serve(r.grpcLis); err != nil {
				errCh <- err
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		r.logger.ErrorContext(ctx, "runtime failure", "error", runErr)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	if r.grpcServer != nil {
		r.grpcServer.GracefulStop()
	}
	stopOutbox()
	select {
	case <-outboxDone:
	case <-shutdownCtx.Done():
	}
	r.cleanupFn(shutdownCtx)
	return runErr
}
