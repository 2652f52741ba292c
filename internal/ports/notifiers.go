package ports

import (
	"context"

	"github.com/allmeidain/adcombo-postback-notifier/internal/domain"
)

// Notifier delivers one message on one channel. Implementations report every
// failure through the returned result and never return an error.
type Notifier interface {
	Channel() domain.Channel
	Configured() bool
	Send(ctx context.Context, msg domain.Message) domain.DispatchResult
}
