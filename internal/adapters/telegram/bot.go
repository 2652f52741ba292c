package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/allmeidain/adcombo-postback-notifier/internal/domain"
)

const DefaultBaseURL = "https://api.telegram.org"

type Config struct {
	Token   string
	ChatID  string
	BaseURL string
	Timeout time.Duration
}

// Bot posts messages to one chat through the Bot API sendMessage method.
// The primary and alternate targets are two Bots with their own credentials.
type Bot struct {
	channel domain.Channel
	cfg     Config
	client  *http.Client
}

func NewBot(channel domain.Channel, cfg Config, client *http.Client) *Bot {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Bot{channel: channel, cfg: cfg, client: client}
}

func (b *Bot) Channel() domain.Channel { return b.channel }

func (b *Bot) Configured() bool {
	return strings.TrimSpace(b.cfg.Token) != "" && strings.TrimSpace(b.cfg.ChatID) != ""
}

func (b *Bot) Send(ctx context.Context, msg domain.Message) domain.DispatchResult {
	if !b.Configured() {
		return domain.Skipped(b.channel, "bot token or chat id not configured")
	}
	start := time.Now()
	form := url.Values{}
	form.Set("chat_id", b.cfg.ChatID)
	form.Set("text", msg.Text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint(), strings.NewReader(form.Encode()))
	if err != nil {
		return domain.Failed(b.channel, domain.FailureTransport, "build request: "+err.Error(), time.Since(start))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := b.client.Do(req)
	if err != nil {
		return domain.Failed(b.channel, domain.FailureTransport, redact(err.Error(), b.cfg.Token), time.Since(start))
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if resp.StatusCode != http.StatusOK {
		detail := fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		return domain.Failed(b.channel, domain.FailureRejected, detail, time.Since(start))
	}
	return domain.Sent(b.channel, time.Since(start))
}

func (b *Bot) endpoint() string {
	return b.cfg.BaseURL + "/bot" + b.cfg.Token + "/sendMessage"
}

// redact keeps the bot token out of logged transport errors, which embed the URL.
func redact(s, token string) string {
	if token == "" {
		return s
	}
	return strings.ReplaceAll(s, token, "<redacted>")
}
