package domain

import "errors"

var (
	// ErrInvalidAPIKey is returned for a missing or mismatching api_key query parameter.
	// Adapters map it to 403 and nothing else about the request is processed.
	ErrInvalidAPIKey = errors.New("invalid api key")
	// ErrLedgerUnavailable wraps failures to load or decode the dedup ledger.
	ErrLedgerUnavailable = errors.New("ledger unavailable")
	ErrTimestampFormat   = errors.New("unrecognized timestamp format")
	ErrUnknownProfile    = errors.New("unknown profile")
	ErrUnknownChannel    = errors.New("unknown channel")
	ErrMissingConfig     = errors.New("missing required configuration")
	ErrInvalidConfig     = errors.New("invalid configuration")
)
