package domain

import (
	"fmt"
	"strings"
)

// Message is the rendered notification handed to one channel.
type Message struct {
	Subject string
	Text    string
}

// FullMessage renders every template line of the profile as "- Label: value".
func FullMessage(p Profile, r Record) string {
	var b strings.Builder
	for _, line := range p.Lines {
		fmt.Fprintf(&b, "- %s: %s\n", line.Label, r.Get(line.Field))
	}
	return b.String()
}

// CompactMessage joins the compact fields with ", " for the alternate bot.
func CompactMessage(p Profile, r Record) string {
	values := make([]string, 0, len(p.CompactFields))
	for _, f := range p.CompactFields {
		values = append(values, r.Get(f))
	}
	return strings.Join(values, ", ")
}

func Subject(p Profile, r Record) string {
	return fmt.Sprintf("Notification - Status: %s / ID %s", p.Status(r), p.ID(r))
}
