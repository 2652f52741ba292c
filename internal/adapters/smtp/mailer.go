package smtp

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"mime"
	"net"
	netsmtp "net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/allmeidain/adcombo-postback-notifier/internal/domain"
)

type Config struct {
	Host     string
	Port     int
	Sender   string
	Password string
	Receiver string
	Timeout  time.Duration
}

// Client is the subset of *smtp.Client the mailer drives.
type Client interface {
	StartTLS(config *tls.Config) error
	Auth(a netsmtp.Auth) error
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

// DialFunc opens an SMTP session to addr.
type DialFunc func(ctx context.Context, addr string, timeout time.Duration) (Client, error)

// Mailer sends the full message as a plain-text email to the single configured
// receiver: dial, STARTTLS, PLAIN auth, MAIL/RCPT/DATA, QUIT.
type Mailer struct {
	cfg   Config
	dial  DialFunc
	nowFn func() time.Time
}

func NewMailer(cfg Config) *Mailer {
	if cfg.Port <= 0 {
		cfg.Port = 587
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Mailer{cfg: cfg, dial: dialTCP, nowFn: time.Now}
}

// WithDialer swaps the transport, used to drive the mailer without a network.
func (m *Mailer) WithDialer(dial DialFunc) *Mailer {
	m.dial = dial
	return m
}

func (m *Mailer) Channel() domain.Channel { return domain.ChannelEmail }

func (m *Mailer) Configured() bool {
	return m.cfg.Host != "" && m.cfg.Sender != "" && m.cfg.Password != "" && m.cfg.Receiver != ""
}

func (m *Mailer) Send(ctx context.Context, msg domain.Message) domain.DispatchResult {
	start := time.Now()
	if !m.Configured() {
		return domain.Skipped(domain.ChannelEmail, "smtp credentials not configured")
	}
	fail := func(kind domain.FailureKind, step string, err error) domain.DispatchResult {
		return domain.Failed(domain.ChannelEmail, kind, fmt.Sprintf("%s: %v", step, err), time.Since(start))
	}

	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	c, err := m.dial(ctx, addr, m.cfg.Timeout)
	if err != nil {
		return fail(domain.FailureConnect, "dial", err)
	}
	defer c.Close()

	if err := c.StartTLS(&tls.Config{ServerName: m.cfg.Host, MinVersion: tls.VersionTLS12}); err != nil {
		return fail(domain.FailureTLS, "starttls", err)
	}
	if err := c.Auth(netsmtp.PlainAuth("", m.cfg.Sender, m.cfg.Password, m.cfg.Host)); err != nil {
		return fail(domain.FailureAuth, "auth", err)
	}
	if err := c.Mail(m.cfg.Sender); err != nil {
		return fail(domain.FailureSend, "mail from", err)
	}
	if err := c.Rcpt(m.cfg.Receiver); err != nil {
		return fail(domain.FailureSend, "rcpt to", err)
	}
	w, err := c.Data()
	if err != nil {
		return fail(domain.FailureSend, "data", err)
	}
	if _, err := w.Write(m.compose(msg)); err != nil {
		_ = w.Close()
		return fail(domain.FailureSend, "write body", err)
	}
	if err := w.Close(); err != nil {
		return fail(domain.FailureSend, "end data", err)
	}
	// The message is accepted once DATA is closed; a failing QUIT does not undo it.
	_ = c.Quit()
	return domain.Sent(domain.ChannelEmail, time.Since(start))
}

func (m *Mailer) compose(msg domain.Message) []byte {
	var b bytes.Buffer
	b.WriteString("From: " + m.cfg.Sender + "\r\n")
	b.WriteString("To: " + m.cfg.Receiver + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", msg.Subject) + "\r\n")
	b.WriteString("Date: " + m.nowFn().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	b.WriteString("\r\n")
	body := strings.ReplaceAll(msg.Text, "\r\n", "\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return b.Bytes()
}

func dialTCP(ctx context.Context, addr string, timeout time.Duration) (Client, error) {
	dialer := &net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	_ = conn.SetDeadline(time.Now().Add(timeout))
	host, _, _ := net.SplitHostPort(addr)
	c, err := netsmtp.NewClient(conn, host)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return c, nil
}
