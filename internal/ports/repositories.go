package ports

import (
	"context"

	"github.com/allmeidain/adcombo-postback-notifier/internal/domain"
)

// LedgerRepository loads and rewrites the dedup ledger wholesale.
type LedgerRepository interface {
	Load(ctx context.Context) ([]domain.HoldRecord, error)
	Save(ctx context.Context, records []domain.HoldRecord) error
}
