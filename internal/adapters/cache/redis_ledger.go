package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/allmeidain/adcombo-postback-notifier/internal/domain"
)

const DefaultLedgerKey = "relay:hold_ledger"

// RedisLedgerRepository stores the whole hold ledger as one JSON array under a
// single key, so several relay instances share one dedup history.
type RedisLedgerRepository struct {
	client *redis.Client
	key    string
}

func NewRedisLedgerRepository(client *redis.Client, key string) *RedisLedgerRepository {
	if strings.TrimSpace(key) == "" {
		key = DefaultLedgerKey
	}
	return &RedisLedgerRepository{client: client, key: key}
}

func (r *RedisLedgerRepository) Load(ctx context.Context) ([]domain.HoldRecord, error) {
	raw, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return []domain.HoldRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: redis get %s: %v", domain.ErrLedgerUnavailable, r.key, err)
	}
	var records []domain.HoldRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("%w: decode ledger: %v", domain.ErrLedgerUnavailable, err)
	}
	if records == nil {
		records = []domain.HoldRecord{}
	}
	return records, nil
}

func (r *RedisLedgerRepository) Save(ctx context.Context, records []domain.HoldRecord) error {
	if records == nil {
		records = []domain.HoldRecord{}
	}
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	return r.client.Set(ctx, r.key, raw, 0).Err()
}
