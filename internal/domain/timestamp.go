package domain

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
)

const DefaultTimeZone = "America/Recife"

// TimestampFailurePolicy decides what a value that cannot be parsed turns into.
type TimestampFailurePolicy string

const (
	TimestampAnnotate TimestampFailurePolicy = "annotate"
	TimestampKeep     TimestampFailurePolicy = "keep"
)

const ConversionErrorPrefix = "conversion error: "

const normalizedLayout = "2006-01-02 15:04:05 MST"

// Offset-carrying layouts come after the bare one so the normalizer re-accepts
// its own output ("2025-05-20 09:00:00 -03").
var inputLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05 -07",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05 -07:00",
	"2006-01-02 15:04:05-07:00",
}

func ParseTimestampFailurePolicy(raw string) (TimestampFailurePolicy, error) {
	switch TimestampFailurePolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", TimestampAnnotate:
		return TimestampAnnotate, nil
	case TimestampKeep:
		return TimestampKeep, nil
	default:
		return "", fmt.Errorf("%w: timestamp failure policy %q", ErrInvalidConfig, raw)
	}
}

// TimestampNormalizer converts UTC datetimes into a fixed civil time zone.
type TimestampNormalizer struct {
	location *time.Location
	onError  TimestampFailurePolicy
}

func NewTimestampNormalizer(zone string, onError TimestampFailurePolicy) (*TimestampNormalizer, error) {
	if strings.TrimSpace(zone) == "" {
		zone = DefaultTimeZone
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("%w: time zone %q: %v", ErrInvalidConfig, zone, err)
	}
	if onError == "" {
		onError = TimestampAnnotate
	}
	return &TimestampNormalizer{location: loc, onError: onError}, nil
}

func (n *TimestampNormalizer) Location() *time.Location { return n.location }

// Normalize renders raw as "YYYY-MM-DD HH:MM:SS <zone>" in the target zone.
// NotAvailable passes through untouched. On a parse failure the returned value
// follows the failure policy and the error describes what was rejected.
func (n *TimestampNormalizer) Normalize(raw string) (string, error) {
	if !IsAvailable(raw) {
		return raw, nil
	}
	t, err := parseUTCTimestamp(raw)
	if err != nil {
		if n.onError == TimestampKeep {
			return raw, err
		}
		return ConversionErrorPrefix + raw, err
	}
	return t.In(n.location).Format(normalizedLayout), nil
}

func parseUTCTimestamp(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	// The date/time separator arrives as 'T', '_' or '+' depending on the network.
	if len(s) > 10 {
		switch s[10] {
		case 'T', 't', '_', '+':
			s = s[:10] + " " + s[11:]
		}
	}
	s = strings.TrimSuffix(s, "Z")
	s = strings.TrimSuffix(s, "z")
	s = strings.TrimSuffix(s, " UTC")
	s = strings.TrimSpace(s)
	for _, layout := range inputLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrTimestampFormat, raw)
}
