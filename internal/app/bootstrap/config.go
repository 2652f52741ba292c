package bootstrap

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/allmeidain/adcombo-postback-notifier/internal/domain"
)

const (
	LedgerBackendFile  = "file"
	LedgerBackendRedis = "redis"
)

type Config struct {
	ServiceID string
	LogLevel  slog.Level

	HTTPPort int
	GRPCPort int

	APIKey   string
	Profile  domain.Profile
	Channels []domain.Channel
	Dedup    domain.DedupMode

	TimezoneEnabled bool
	TimezoneTarget  string
	TimezoneOnError domain.TimestampFailurePolicy

	SMTPServer    string
	SMTPPort      int
	SMTPTimeout   time.Duration
	EmailSender   string
	EmailPassword string
	EmailReceiver string

	TelegramAPIBaseURL  string
	TelegramTimeout     time.Duration
	TelegramBotToken    string
	TelegramChatID      string
	TelegramBotTokenAlt string
	TelegramChatIDAlt   string

	LedgerBackend  string
	LedgerPath     string
	RedisURL       string
	LedgerRedisKey string

	AuditKafkaBrokers []string
	AuditKafkaTopic   string
}

type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"service"`
	Relay struct {
		Profile  string   `yaml:"profile"`
		Channels []string `yaml:"channels"`
		Dedup    string   `yaml:"dedup"`
	} `yaml:"relay"`
	Timezone struct {
		Enabled *bool  `yaml:"enabled"`
		Target  string `yaml:"target"`
		OnError string `yaml:"on_error"`
	} `yaml:"timezone"`
	SMTP struct {
		Server         string `yaml:"server"`
		Port           int    `yaml:"port"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
		Sender         string `yaml:"sender"`
		Receiver       string `yaml:"receiver"`
	} `yaml:"smtp"`
	Telegram struct {
		APIBaseURL     string `yaml:"api_base_url"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
		ChatID         string `yaml:"chat_id"`
		ChatIDAlt      string `yaml:"chat_id_alt"`
	} `yaml:"telegram"`
	Ledger struct {
		Backend  string `yaml:"backend"`
		Path     string `yaml:"path"`
		RedisURL string `yaml:"redis_url"`
		RedisKey string `yaml:"redis_key"`
	} `yaml:"ledger"`
	Audit struct {
		KafkaBrokers []string `yaml:"kafka_brokers"`
		KafkaTopic   string   `yaml:"kafka_topic"`
	} `yaml:"audit"`
}

// LoadConfig builds the process configuration from defaults, then the optional
// yaml file at path, then the environment. Secrets are only read from the
// environment. Validation failures wrap domain.ErrMissingConfig or
// domain.ErrInvalidConfig.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:          "postback-relay",
		LogLevel:           slog.LevelInfo,
		HTTPPort:           10000,
		GRPCPort:           0,
		TimezoneEnabled:    true,
		TimezoneTarget:     domain.DefaultTimeZone,
		TimezoneOnError:    domain.TimestampAnnotate,
		SMTPServer:         "smtp.gmail.com",
		SMTPPort:           587,
		SMTPTimeout:        30 * time.Second,
		TelegramAPIBaseURL: "https://api.telegram.org",
		TelegramTimeout:    10 * time.Second,
		LedgerBackend:      LedgerBackendFile,
		LedgerPath:         "hold_ledger.json",
		LedgerRedisKey:     "relay:hold_ledger",
		AuditKafkaTopic:    "postback.relayed",
	}
	profileName := domain.ProfileAdcombo
	channels := []string{string(domain.ChannelEmail), string(domain.ChannelTelegram), string(domain.ChannelTelegramAlt)}
	dedup := ""
	onError := string(cfg.TimezoneOnError)
	logLevel := ""

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("%w: parse config file: %v", domain.ErrInvalidConfig, unmarshalErr)
		}
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Service.GRPCPort > 0 {
			cfg.GRPCPort = f.Service.GRPCPort
		}
		if f.Service.LogLevel != "" {
			logLevel = f.Service.LogLevel
		}
		if f.Relay.Profile != "" {
			profileName = f.Relay.Profile
		}
		if len(f.Relay.Channels) > 0 {
			channels = f.Relay.Channels
		}
		if f.Relay.Dedup != "" {
			dedup = f.Relay.Dedup
		}
		if f.Timezone.Enabled != nil {
			cfg.TimezoneEnabled = *f.Timezone.Enabled
		}
		if f.Timezone.Target != "" {
			cfg.TimezoneTarget = f.Timezone.Target
		}
		if f.Timezone.OnError != "" {
			onError = f.Timezone.OnError
		}
		if f.SMTP.Server != "" {
			cfg.SMTPServer = f.SMTP.Server
		}
		if f.SMTP.Port > 0 {
			cfg.SMTPPort = f.SMTP.Port
		}
		if f.SMTP.TimeoutSeconds > 0 {
			cfg.SMTPTimeout = time.Duration(f.SMTP.TimeoutSeconds) * time.Second
		}
		cfg.EmailSender = f.SMTP.Sender
		cfg.EmailReceiver = f.SMTP.Receiver
		if f.Telegram.APIBaseURL != "" {
			cfg.TelegramAPIBaseURL = f.Telegram.APIBaseURL
		}
		if f.Telegram.TimeoutSeconds > 0 {
			cfg.TelegramTimeout = time.Duration(f.Telegram.TimeoutSeconds) * time.Second
		}
		cfg.TelegramChatID = f.Telegram.ChatID
		cfg.TelegramChatIDAlt = f.Telegram.ChatIDAlt
		if f.Ledger.Backend != "" {
			cfg.LedgerBackend = f.Ledger.Backend
		}
		if f.Ledger.Path != "" {
			cfg.LedgerPath = f.Ledger.Path
		}
		cfg.RedisURL = f.Ledger.RedisURL
		if f.Ledger.RedisKey != "" {
			cfg.LedgerRedisKey = f.Ledger.RedisKey
		}
		if len(f.Audit.KafkaBrokers) > 0 {
			cfg.AuditKafkaBrokers = trimNonEmpty(f.Audit.KafkaBrokers)
		}
		if f.Audit.KafkaTopic != "" {
			cfg.AuditKafkaTopic = f.Audit.KafkaTopic
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("%w: read config file: %v", domain.ErrInvalidConfig, err)
	}

	cfg.ServiceID = envOrDefault("SERVICE_ID", cfg.ServiceID)
	cfg.HTTPPort = envInt("PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	logLevel = envOrDefault("LOG_LEVEL", logLevel)
	cfg.APIKey = os.Getenv("API_KEY")
	profileName = envOrDefault("RELAY_PROFILE", profileName)
	channels = envCSV("RELAY_CHANNELS", channels)
	dedup = envOrDefault("RELAY_DEDUP", dedup)
	cfg.TimezoneEnabled = envBool("TIMEZONE_ENABLED", cfg.TimezoneEnabled)
	cfg.TimezoneTarget = envOrDefault("TIMEZONE_TARGET", cfg.TimezoneTarget)
	onError = envOrDefault("TIMEZONE_ON_ERROR", onError)
	cfg.SMTPServer = envOrDefault("SMTP_SERVER", cfg.SMTPServer)
	cfg.SMTPPort = envInt("SMTP_PORT", cfg.SMTPPort)
	cfg.SMTPTimeout = time.Duration(envInt("SMTP_TIMEOUT_SECONDS", int(cfg.SMTPTimeout.Seconds()))) * time.Second
	cfg.EmailSender = envOrDefault("EMAIL_SENDER", cfg.EmailSender)
	cfg.EmailPassword = os.Getenv("EMAIL_PASSWORD")
	cfg.EmailReceiver = envOrDefault("EMAIL_RECEIVER", cfg.EmailReceiver)
	cfg.TelegramAPIBaseURL = envOrDefault("TELEGRAM_API_BASE_URL", cfg.TelegramAPIBaseURL)
	cfg.TelegramTimeout = time.Duration(envInt("TELEGRAM_TIMEOUT_SECONDS", int(cfg.TelegramTimeout.Seconds()))) * time.Second
	cfg.TelegramBotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	cfg.TelegramChatID = envOrDefault("TELEGRAM_CHAT_ID", cfg.TelegramChatID)
	cfg.TelegramBotTokenAlt = os.Getenv("TELEGRAM_BOT_TOKEN_ALT")
	cfg.TelegramChatIDAlt = envOrDefault("TELEGRAM_CHAT_ID_ALT", cfg.TelegramChatIDAlt)
	cfg.LedgerBackend = strings.ToLower(envOrDefault("LEDGER_BACKEND", cfg.LedgerBackend))
	cfg.LedgerPath = envOrDefault("LEDGER_PATH", cfg.LedgerPath)
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.LedgerRedisKey = envOrDefault("LEDGER_REDIS_KEY", cfg.LedgerRedisKey)
	cfg.AuditKafkaBrokers = envCSV("AUDIT_KAFKA_BROKERS", cfg.AuditKafkaBrokers)
	cfg.AuditKafkaTopic = envOrDefault("AUDIT_KAFKA_TOPIC", cfg.AuditKafkaTopic)

	if logLevel != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(logLevel)); err != nil {
			return Config{}, fmt.Errorf("%w: log level %q", domain.ErrInvalidConfig, logLevel)
		}
	}
	if cfg.Profile, err = domain.LookupProfile(profileName); err != nil {
		return Config{}, fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}
	if cfg.Channels, err = domain.ParseChannels(channels); err != nil {
		return Config{}, fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}
	if dedup == "" {
		cfg.Dedup = domain.DedupOff
		if cfg.Profile.DedupByDefault {
			cfg.Dedup = domain.DedupHold
		}
	} else if cfg.Dedup, err = domain.ParseDedupMode(dedup); err != nil {
		return Config{}, err
	}
	if cfg.TimezoneOnError, err = domain.ParseTimestampFailurePolicy(onError); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("%w: API_KEY", domain.ErrMissingConfig)
	}
	if len(c.Channels) == 0 {
		return fmt.Errorf("%w: at least one notification channel is required", domain.ErrInvalidConfig)
	}
	if c.ChannelEnabled(domain.ChannelEmail) {
		var missing []string
		if c.EmailSender == "" {
			missing = append(missing, "EMAIL_SENDER")
		}
		if c.EmailPassword == "" {
			missing = append(missing, "EMAIL_PASSWORD")
		}
		if c.EmailReceiver == "" {
			missing = append(missing, "EMAIL_RECEIVER")
		}
		if len(missing) > 0 {
			return fmt.Errorf("%w: %s", domain.ErrMissingConfig, strings.Join(missing, ", "))
		}
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("%w: http port %d", domain.ErrInvalidConfig, c.HTTPPort)
	}
	if c.GRPCPort < 0 || c.GRPCPort > 65535 {
		return fmt.Errorf("%w: grpc port %d", domain.ErrInvalidConfig, c.GRPCPort)
	}
	if c.TimezoneEnabled {
		if _, err := c.TimestampNormalizer(); err != nil {
			return err
		}
	}
	switch c.LedgerBackend {
	case LedgerBackendFile:
	case LedgerBackendRedis:
		if c.RedisURL == "" && c.Dedup == domain.DedupHold {
			return fmt.Errorf("%w: REDIS_URL is required for the redis ledger", domain.ErrMissingConfig)
		}
	default:
		return fmt.Errorf("%w: ledger backend %q", domain.ErrInvalidConfig, c.LedgerBackend)
	}
	return nil
}

// TimestampNormalizer returns nil when timestamp conversion is disabled.
func (c Config) TimestampNormalizer() (*domain.TimestampNormalizer, error) {
	if !c.TimezoneEnabled {
		return nil, nil
	}
	return domain.NewTimestampNormalizer(c.TimezoneTarget, c.TimezoneOnError)
}

func (c Config) ChannelEnabled(ch domain.Channel) bool {
	for _, enabled := range c.Channels {
		if enabled == ch {
			return true
		}
	}
	return false
}

// Warnings lists enabled channels that will be skipped on every request
// because their credentials are absent.
func (c Config) Warnings() []string {
	var out []string
	if c.ChannelEnabled(domain.ChannelTelegram) && (c.TelegramBotToken == "" || c.TelegramChatID == "") {
		out = append(out, "TELEGRAM_BOT_TOKEN or TELEGRAM_CHAT_ID not set; telegram notifications will be skipped")
	}
	if c.ChannelEnabled(domain.ChannelTelegramAlt) && (c.TelegramBotTokenAlt == "" || c.TelegramChatIDAlt == "") {
		out = append(out, "TELEGRAM_BOT_TOKEN_ALT or TELEGRAM_CHAT_ID_ALT not set; telegram_alt notifications will be skipped")
	}
	return out
}

func envOrDefault(name, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(name)); value != "" {
		return value
	}
	return fallback
}

func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	switch strings.ToLower(raw) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	default:
		return fallback
	}
}

func envCSV(name string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	return trimNonEmpty(strings.Split(raw, ","))
}

func trimNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
