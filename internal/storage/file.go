package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	logx "shakethefrog/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.purchases.jsonl                    (append-only JSON Lines)
//   - <prefix>.webhooks.{snapshot.json,journal.jsonl}
//   - <prefix>.dedup.{snapshot.json,journal.jsonl}
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	purchasesFile *os.File
	purchases     map[string]Purchase

	webhooks *journal
	dedup    *journal
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	purchasesPath := prefix + ".purchases.jsonl"
	purchases := map[string]Purchase{}
	if err := loadPurchases(purchasesPath, purchases); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	pf, err := os.OpenFile(purchasesPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	webhooks, err := openJournal(prefix+".webhooks", 1000)
	if err != nil {
		_ = pf.Close()
		return nil, err
	}
	dedup, err := openJournal(prefix+".dedup", 1000)
	if err != nil {
		_ = pf.Close()
		_ = webhooks.close()
		return nil, err
	}
	_, _ = dedup.dropBefore(time.Now().UnixMilli())

	return &fileStore{
		log:           log,
		purchasesFile: pf,
		purchases:     purchases,
		webhooks:      webhooks,
		dedup:         dedup,
	}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	if s.purchasesFile != nil {
		errs = append(errs, s.purchasesFile.Close())
		s.purchasesFile = nil
	}
	errs = append(errs, s.webhooks.close(), s.dedup.close())
	return errors.Join(errs...)
}

func (s *fileStore) RecordPurchase(ctx context.Context, p Purchase) (bool, error) {
	_ = ctx
	p.OrderID = strings.TrimSpace(p.OrderID)
	if p.OrderID == "" {
		return false, errors.New("purchase order id is required")
	}
	if p.At.IsZero() {
		p.At = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.purchasesFile == nil {
		return false, errors.New("purchases file closed")
	}
	if _, ok := s.purchases[p.OrderID]; ok {
		return false, nil
	}
	if err := json.NewEncoder(s.purchasesFile).Encode(p); err != nil {
		return false, err
	}
	s.purchases[p.OrderID] = p
	return true, nil
}

func (s *fileStore) Purchases(ctx context.Context, limit int) ([]Purchase, error) {
	_ = ctx
	s.mu.Lock()
	out := make([]Purchase, 0, len(s.purchases))
	for _, p := range s.purchases {
		out = append(out, p)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].At.Equal(out[j].At) {
			return out[i].At.After(out[j].At)
		}
		return out[i].OrderID > out[j].OrderID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fileStore) SeenWebhook(ctx context.Context, key string) (bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.webhooks.get(strings.TrimSpace(key))
	return ok, nil
}

func (s *fileStore) MarkWebhook(ctx context.Context, key string, at time.Time) (bool, error) {
	_ = ctx
	key = strings.TrimSpace(key)
	if key == "" {
		return true, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.webhooks.get(key); ok {
		return false, nil
	}
	compactErr, err := s.webhooks.put(key, at.UnixMilli())
	if err != nil {
		return false, err
	}
	if compactErr != nil {
		s.log.Debug("webhook journal compact failed", logx.Err(compactErr))
	}
	return true, nil
}

func (s *fileStore) PutDedup(ctx context.Context, key string, until time.Time) error {
	_ = ctx
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	compactErr, err := s.dedup.put(key, until.UnixMilli())
	if err != nil {
		return err
	}
	if compactErr != nil {
		s.log.Debug("dedup compact failed", logx.Err(compactErr))
	}
	return nil
}

func (s *fileStore) GetDedup(ctx context.Context, key string) (time.Time, bool, error) {
	_ = ctx
	key = strings.TrimSpace(key)
	if key == "" {
		return time.Time{}, false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ms, ok := s.dedup.get(key)
	if !ok {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(ms), true, nil
}

func (s *fileStore) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	n1, err1 := s.webhooks.dropBefore(cutoff.UnixMilli())
	n2, err2 := s.dedup.dropBefore(time.Now().UnixMilli())
	return n1 + n2, errors.Join(err1, err2)
}

func loadPurchases(path string, out map[string]Purchase) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var p Purchase
		if err := json.Unmarshal(sc.Bytes(), &p); err != nil || p.OrderID == "" {
			continue
		}
		if _, ok := out[p.OrderID]; !ok {
			out[p.OrderID] = p
		}
	}
	return sc.Err()
}
