package application

import (
	"fmt"
	"strings"

	"github.com/allmeidain/adcombo-postback-notifier/internal/domain"
)

// Summary renders the plain-text response body for an outcome.
func Summary(o domain.Outcome) string {
	switch o.Kind {
	case domain.OutcomeDelivered:
		var b strings.Builder
		fmt.Fprintf(&b, "Postback processed (status: %s)", o.Status)
		for _, r := range o.Results {
			fmt.Fprintf(&b, " - %s: %s", r.Channel, r.Status)
		}
		return b.String()
	case domain.OutcomeAllFailed:
		return "Failed to deliver notifications"
	case domain.OutcomeIgnored:
		return fmt.Sprintf("Ignored: status %s is not hold", o.Status)
	case domain.OutcomeDuplicate:
		return fmt.Sprintf("Already processed: %s", o.RecordID)
	case domain.OutcomeHoldSent:
		return fmt.Sprintf("Hold notification sent: %s", o.RecordID)
	case domain.OutcomeHoldFailed:
		return "Failed to send hold notification"
	default:
		return "Internal error"
	}
}
