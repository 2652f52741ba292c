package domain_test

import (
	"net/url"
	"testing"

	"github.com/allmeidain/adcombo-postback-notifier/internal/domain"
)

func TestExtractFillsMissingFieldsWithPlaceholder(t *testing.T) {
	t.Parallel()

	values := url.Values{}
	values.Set("trans_id", "T1")
	values.Set("revenue", " 12.5 ")
	values.Set("status", "")
	values.Set("unexpected", "ignored")

	rec := domain.Extract(values, []string{"trans_id", "revenue", "status", "gclid"})
	if len(rec) != 4 {
		t.Fatalf("expected 4 fields, got %d: %#v", len(rec), rec)
	}
	if rec["trans_id"] != "T1" {
		t.Fatalf("expected trans_id T1, got %q", rec["trans_id"])
	}
	if rec["revenue"] != "12.5" {
		t.Fatalf("expected trimmed revenue, got %q", rec["revenue"])
	}
	if rec["status"] != domain.NotAvailable || rec["gclid"] != domain.NotAvailable {
		t.Fatalf("expected N/A placeholders, got %#v", rec)
	}
	if _, ok := rec["unexpected"]; ok {
		t.Fatalf("expected parameters outside the whitelist to be dropped")
	}
}

func TestExtractWithNoParameters(t *testing.T) {
	t.Parallel()

	p, err := domain.LookupProfile(domain.ProfileAdcombo)
	if err != nil {
		t.Fatalf("lookup profile: %v", err)
	}
	rec := domain.Extract(url.Values{}, p.Fields)
	for _, f := range p.Fields {
		if rec[f] != domain.NotAvailable {
			t.Fatalf("expected %s to be N/A, got %q", f, rec[f])
		}
	}
}

func TestRecordAccessors(t *testing.T) {
	t.Parallel()

	rec := domain.Record{"a": "1", "b": domain.NotAvailable}
	if rec.Get("missing") != domain.NotAvailable {
		t.Fatalf("expected N/A for a field outside the record")
	}
	if !rec.Has("a") || rec.Has("b") || rec.Has("missing") {
		t.Fatalf("unexpected Has results for %#v", rec)
	}
	clone := rec.Clone()
	clone["a"] = "2"
	if rec["a"] != "1" {
		t.Fatalf("expected clone to be independent")
	}
	if domain.IsAvailable(" ") || domain.IsAvailable(domain.NotAvailable) || !domain.IsAvailable("x") {
		t.Fatalf("unexpected IsAvailable results")
	}
}
