package domain

import (
	"net/url"
	"strings"
)

// NotAvailable is the placeholder stored for every whitelisted field the
// postback did not carry.
const NotAvailable = "N/A"

// Record is the flat field set extracted from one postback. Every field of the
// profile whitelist is present, either with the query value or NotAvailable.
type Record map[string]string

// Extract builds a Record from the query values using the given whitelist.
// Parameters outside the whitelist are ignored; extraction never fails.
func Extract(values url.Values, fields []string) Record {
	rec := make(Record, len(fields))
	for _, f := range fields {
		v := strings.TrimSpace(values.Get(f))
		if v == "" {
			v = NotAvailable
		}
		rec[f] = v
	}
	return rec
}

// Get returns the field value, NotAvailable when the field is not part of the record.
func (r Record) Get(field string) string {
	if v, ok := r[field]; ok && v != "" {
		return v
	}
	return NotAvailable
}

func (r Record) Has(field string) bool {
	v, ok := r[field]
	return ok && v != NotAvailable
}

func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func IsAvailable(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && v != NotAvailable
}
