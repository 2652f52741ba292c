package domain

import (
	"fmt"
	"strings"
	"time"
)

// Channel names a notification delivery target.
type Channel string

const (
	ChannelEmail       Channel = "email"
	ChannelTelegram    Channel = "telegram"
	ChannelTelegramAlt Channel = "telegram_alt"
)

// DispatchOrder is the fixed order channels are attempted in.
var DispatchOrder = []Channel{ChannelEmail, ChannelTelegram, ChannelTelegramAlt}

func ParseChannel(raw string) (Channel, error) {
	c := Channel(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range DispatchOrder {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownChannel, raw)
}

// ParseChannels parses a channel list and returns it in dispatch order, without duplicates.
func ParseChannels(raw []string) ([]Channel, error) {
	seen := map[Channel]struct{}{}
	for _, item := range raw {
		if strings.TrimSpace(item) == "" {
			continue
		}
		c, err := ParseChannel(item)
		if err != nil {
			return nil, err
		}
		seen[c] = struct{}{}
	}
	out := make([]Channel, 0, len(seen))
	for _, c := range DispatchOrder {
		if _, ok := seen[c]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

type DeliveryStatus string

const (
	DeliverySent    DeliveryStatus = "sent"
	DeliveryFailed  DeliveryStatus = "failed"
	DeliverySkipped DeliveryStatus = "skipped"
)

// FailureKind enumerates why a dispatch did not deliver.
type FailureKind string

const (
	FailureNone          FailureKind = ""
	FailureNotConfigured FailureKind = "not_configured"
	FailureConnect       FailureKind = "connect"
	FailureTLS           FailureKind = "tls"
	FailureAuth          FailureKind = "auth"
	FailureSend          FailureKind = "send"
	FailureTransport     FailureKind = "transport"
	FailureRejected      FailureKind = "rejected"
)

// DispatchResult is the outcome of one delivery attempt on one channel.
type DispatchResult struct {
	Channel  Channel
	Status   DeliveryStatus
	Failure  FailureKind
	Detail   string
	Duration time.Duration
}

func Sent(c Channel, d time.Duration) DispatchResult {
	return DispatchResult{Channel: c, Status: DeliverySent, Duration: d}
}

func Failed(c Channel, kind FailureKind, detail string, d time.Duration) DispatchResult {
	return DispatchResult{Channel: c, Status: DeliveryFailed, Failure: kind, Detail: detail, Duration: d}
}

func Skipped(c Channel, detail string) DispatchResult {
	return DispatchResult{Channel: c, Status: DeliverySkipped, Failure: FailureNotConfigured, Detail: detail}
}

func (r DispatchResult) OK() bool { return r.Status == DeliverySent }

// DedupMode selects whether hold tracking is active.
type DedupMode string

const (
	DedupOff  DedupMode = "off"
	DedupHold DedupMode = "hold"
)

func ParseDedupMode(raw string) (DedupMode, error) {
	switch DedupMode(strings.ToLower(strings.TrimSpace(raw))) {
	case DedupOff:
		return DedupOff, nil
	case DedupHold:
		return DedupHold, nil
	default:
		return "", fmt.Errorf("%w: dedup mode %q", ErrInvalidConfig, raw)
	}
}
