package domain

// OutcomeKind classifies how a postback request ended.
type OutcomeKind string

const (
	OutcomeDelivered  OutcomeKind = "delivered"
	OutcomeAllFailed  OutcomeKind = "all_failed"
	OutcomeIgnored    OutcomeKind = "ignored"
	OutcomeDuplicate  OutcomeKind = "duplicate"
	OutcomeHoldSent   OutcomeKind = "hold_sent"
	OutcomeHoldFailed OutcomeKind = "hold_failed"

	// Requests that never produce an Outcome; only counted by metrics.
	OutcomeUnauthorized      OutcomeKind = "unauthorized"
	OutcomeLedgerUnavailable OutcomeKind = "ledger_unavailable"
)

// Outcome is the result of relaying one postback.
type Outcome struct {
	Kind     OutcomeKind
	Status   string
	RecordID string
	Record   Record
	Results  []DispatchResult
}

func (o Outcome) AnySent() bool {
	for _, r := range o.Results {
		if r.OK() {
			return true
		}
	}
	return false
}

// Succeeded reports whether the caller should see a 2xx response.
func (o Outcome) Succeeded() bool {
	switch o.Kind {
	case OutcomeDelivered, OutcomeIgnored, OutcomeDuplicate, OutcomeHoldSent:
		return true
	default:
		return false
	}
}

func (o Outcome) Result(c Channel) (DispatchResult, bool) {
	for _, r := range o.Results {
		if r.Channel == c {
			return r, true
		}
	}
	return DispatchResult{}, false
}
