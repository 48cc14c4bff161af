package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	logx "shakethefrog/pkg/logx"
)

//go:embed migrations.sql
var migrations string

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger

	opCount    atomic.Uint64
	pruneEvery uint64
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log, pruneEvery: 500}

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.ExecContext(context.Background(), migrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	return st, nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) RecordPurchase(ctx context.Context, p Purchase) (bool, error) {
	if s == nil || s.db == nil {
		return false, ErrDisabled
	}
	p.OrderID = strings.TrimSpace(p.OrderID)
	if p.OrderID == "" {
		return false, errors.New("purchase order id is required")
	}
	if p.At.IsZero() {
		p.At = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO purchases(order_id, skin_id, email, total, status, product, at)
		 VALUES(?,?,?,?,?,?,?)
		 ON CONFLICT(order_id) DO NOTHING`,
		p.OrderID, nullStr(p.SkinID), nullStr(p.Email), nullStr(p.Total), nullStr(p.Status), nullStr(p.Product), p.At.UnixMilli(),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *sqliteStore) Purchases(ctx context.Context, limit int) ([]Purchase, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT order_id, COALESCE(skin_id,''), COALESCE(email,''), COALESCE(total,''), COALESCE(status,''), COALESCE(product,''), at
		 FROM purchases ORDER BY at DESC, order_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Purchase
	for rows.Next() {
		var (
			p  Purchase
			ms int64
		)
		if err := rows.Scan(&p.OrderID, &p.SkinID, &p.Email, &p.Total, &p.Status, &p.Product, &ms); err != nil {
			return nil, err
		}
		p.At = time.UnixMilli(ms)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *sqliteStore) SeenWebhook(ctx context.Context, key string) (bool, error) {
	if s == nil || s.db == nil {
		return false, ErrDisabled
	}
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM webhooks WHERE key = ?`, strings.TrimSpace(key)).Scan(&n)
	return n > 0, err
}

func (s *sqliteStore) MarkWebhook(ctx context.Context, key string, at time.Time) (bool, error) {
	if s == nil || s.db == nil {
		return false, ErrDisabled
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return true, nil
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO webhooks(key, seen_at) VALUES(?,?) ON CONFLICT(key) DO NOTHING`,
		key, at.UnixMilli(),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *sqliteStore) PutDedup(ctx context.Context, key string, until time.Time) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if key == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dedup(key, until) VALUES(?,?)
		 ON CONFLICT(key) DO UPDATE SET until=excluded.until`,
		key, until.UnixMilli(),
	)
	if err == nil && s.opCount.Add(1)%s.pruneEvery == 0 {
		pctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		if _, perr := s.pruneDedup(pctx); perr != nil {
			s.log.Debug("dedup prune failed", logx.Err(perr))
		}
		cancel()
	}
	return err
}

func (s *sqliteStore) GetDedup(ctx context.Context, key string) (time.Time, bool, error) {
	if s == nil || s.db == nil {
		return time.Time{}, false, ErrDisabled
	}
	if key == "" {
		return time.Time{}, false, nil
	}
	var ms int64
	err := s.db.QueryRowContext(ctx, `SELECT until FROM dedup WHERE key = ?`, key).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return time.UnixMilli(ms), true, nil
}

func (s *sqliteStore) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, ErrDisabled
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM webhooks WHERE seen_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	m, err := s.pruneDedup(ctx)
	return int(n + m), err
}

func (s *sqliteStore) pruneDedup(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM dedup WHERE until < ?`, time.Now().UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
