package domain

// HoldRecord is one accepted hold conversion as persisted in the dedup ledger.
type HoldRecord struct {
	ConversionID string `json:"conversion_id"`
	OfferName    string `json:"offer_name"`
	Amount       string `json:"amount"`
	Currency     string `json:"currency"`
	CreatedAt    string `json:"created_at"`
}

// HoldRecordFrom maps a hold postback onto the persisted shape. Fields the
// active profile does not extract come out as NotAvailable.
func HoldRecordFrom(p Profile, r Record) HoldRecord {
	return HoldRecord{
		ConversionID: p.ID(r),
		OfferName:    r.Get("offer_name"),
		Amount:       firstAvailable(r.Get("amount"), r.Get("revenue")),
		Currency:     r.Get("currency"),
		CreatedAt:    firstAvailable(r.Get("created_at"), r.Get(p.TimeField)),
	}
}

// Ledger is the ordered, append-only list of notified hold conversions.
// A conversion id appears at most once.
type Ledger struct {
	records []HoldRecord
	index   map[string]struct{}
}

func NewLedger(records []HoldRecord) *Ledger {
	l := &Ledger{index: make(map[string]struct{}, len(records))}
	for _, rec := range records {
		l.Append(rec)
	}
	return l
}

func (l *Ledger) Contains(conversionID string) bool {
	_, ok := l.index[conversionID]
	return ok
}

// Append adds rec unless its conversion id is already present.
func (l *Ledger) Append(rec HoldRecord) bool {
	if l.index == nil {
		l.index = map[string]struct{}{}
	}
	if _, ok := l.index[rec.ConversionID]; ok {
		return false
	}
	l.index[rec.ConversionID] = struct{}{}
	l.records = append(l.records, rec)
	return true
}

func (l *Ledger) Len() int { return len(l.records) }

func (l *Ledger) Records() []HoldRecord {
	return append([]HoldRecord(nil), l.records...)
}

func firstAvailable(values ...string) string {
	for _, v := range values {
		if IsAvailable(v) {
			return v
		}
	}
	return NotAvailable
}
