package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/allmeidain/adcombo-postback-notifier/internal/domain"
)

const DefaultPath = "hold_ledger.json"

// FileRepository keeps the hold ledger as a pretty-printed JSON array on local
// disk. A missing file is an empty ledger; an unreadable or corrupt one is an
// error so the caller never silently starts from scratch.
type FileRepository struct {
	path string
	mu   sync.Mutex
}

func NewFileRepository(path string) *FileRepository {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath
	}
	return &FileRepository{path: path}
}

func (r *FileRepository) Path() string { return r.path }

func (r *FileRepository) Load(_ context.Context) ([]domain.HoldRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	raw, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []domain.HoldRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrLedgerUnavailable, r.path, err)
	}
	return decode(raw)
}

func (r *FileRepository) Save(_ context.Context, records []domain.HoldRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	raw, err := encode(records)
	if err != nil {
		return err
	}
	dir := filepath.Dir(r.path)
	tmp, err := os.CreateTemp(dir, ".hold_ledger-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close ledger: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}

func decode(raw []byte) ([]domain.HoldRecord, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return []domain.HoldRecord{}, nil
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

func encode(records []domain.HoldRecord) ([]byte, error) {
	if records == nil {
		records = []domain.HoldRecord{}
	}
	raw, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode ledger: %w", err)
	}
	return append(raw, '\n'), nil
}
