package domain

import (
	"fmt"
	"sort"
	"strings"
)

const (
	ProfileAdcombo = "adcombo"
	ProfileHold    = "hold"
	ProfileRotator = "rotator"
)

// StatusHold is the conversion status the hold-tracking dedup filter acts on.
const StatusHold = "hold"

// TemplateLine is one "- Label: value" line of the full message.
type TemplateLine struct {
	Label string
	Field string
}

// Profile describes one postback variant: which fields are extracted and how
// the record is identified, timestamped and rendered.
type Profile struct {
	Name          string
	Fields        []string
	IDField       string
	StatusField   string
	TimeField     string
	Lines         []TemplateLine
	CompactFields []string
	// DedupByDefault turns on hold tracking unless configuration says otherwise.
	DedupByDefault bool
}

var profiles = map[string]Profile{
	ProfileAdcombo: {
		Name:        ProfileAdcombo,
		Fields:      []string{"datetime", "offer_id", "trans_id", "revenue", "status", "click_id", "clickid", "gclid", "campaignid"},
		IDField:     "trans_id",
		StatusField: "status",
		TimeField:   "datetime",
		Lines: []TemplateLine{
			{Label: "Revenue", Field: "revenue"},
			{Label: "Offer ID", Field: "offer_id"},
			{Label: "Status", Field: "status"},
			{Label: "Transaction ID", Field: "trans_id"},
			{Label: "ClickID", Field: "clickid"},
			{Label: "Datetime Local", Field: "datetime"},
			{Label: "Gclid", Field: "gclid"},
			{Label: "Campaignid", Field: "campaignid"},
		},
		CompactFields: []string{"clickid", "gclid", "datetime"},
	},
	ProfileHold: {
		Name:        ProfileHold,
		Fields:      []string{"conversion_id", "offer_name", "amount", "currency", "status", "goal", "created_at", "sub_id"},
		IDField:     "conversion_id",
		StatusField: "status",
		TimeField:   "created_at",
		Lines: []TemplateLine{
			{Label: "Conversion ID", Field: "conversion_id"},
			{Label: "Offer", Field: "offer_name"},
			{Label: "Amount", Field: "amount"},
			{Label: "Currency", Field: "currency"},
			{Label: "Status", Field: "status"},
			{Label: "Goal", Field: "goal"},
			{Label: "Created At", Field: "created_at"},
			{Label: "SubID", Field: "sub_id"},
		},
		CompactFields:  []string{"conversion_id", "amount", "created_at"},
		DedupByDefault: true,
	},
	ProfileRotator: {
		Name:        ProfileRotator,
		Fields:      []string{"timestamp", "rotator_id", "offer_id", "trans_id", "revenue", "currency", "status", "goal", "clickid", "gclid", "subid", "campaignid"},
		IDField:     "trans_id",
		StatusField: "status",
		TimeField:   "timestamp",
		Lines: []TemplateLine{
			{Label: "Revenue", Field: "revenue"},
			{Label: "Currency", Field: "currency"},
			{Label: "Rotator ID", Field: "rotator_id"},
			{Label: "Offer ID", Field: "offer_id"},
			{Label: "Status", Field: "status"},
			{Label: "Goal", Field: "goal"},
			{Label: "Transaction ID", Field: "trans_id"},
			{Label: "ClickID", Field: "clickid"},
			{Label: "Timestamp", Field: "timestamp"},
			{Label: "Gclid", Field: "gclid"},
			{Label: "SubID", Field: "subid"},
			{Label: "Campaignid", Field: "campaignid"},
		},
		CompactFields: []string{"clickid", "gclid", "timestamp"},
	},
}

// LookupProfile returns a copy of the named profile.
func LookupProfile(name string) (Profile, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = ProfileAdcombo
	}
	p, ok := profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
	}
	p.Fields = append([]string(nil), p.Fields...)
	p.Lines = append([]TemplateLine(nil), p.Lines...)
	p.CompactFields = append([]string(nil), p.CompactFields...)
	return p, nil
}

func ProfileNames() []string {
	out := make([]string, 0, len(profiles))
	for name := range profiles {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ID returns the record identifier for this profile.
func (p Profile) ID(r Record) string { return r.Get(p.IDField) }

func (p Profile) Status(r Record) string { return r.Get(p.StatusField) }
