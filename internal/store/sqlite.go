package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver

	"telemetry-dashboard/pkg/logger"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS records (
	kind  TEXT    NOT NULL,
	id    TEXT    NOT NULL,
	ts    INTEGER NOT NULL,
	value BLOB    NOT NULL,
	PRIMARY KEY (kind, id)
);
CREATE INDEX IF NOT EXISTS idx_records_kind_ts ON records(kind, ts);
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

// SQLiteStore implements Store on a single sqlite table.
type SQLiteStore struct {
	db     *sql.DB
	logger logger.Logger
}

func OpenSQLite(path string, logger logger.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite store: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite store: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create sqlite schema: %w", err)
	}
	s := &SQLiteStore{db: db, logger: logger}
	if err := s.checkSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info("sqlite: store opened at %s", path)
	return s, nil
}

func (s *SQLiteStore) checkSchema() error {
	want := strconv.Itoa(SchemaVersion)
	var got string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = 'schema'`).Scan(&got)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if got == want {
		return nil
	}
	if got != "" {
		s.logger.Warn("sqlite: schema version changed from %s to %s, truncating", got, want)
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`DELETE FROM records`); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM meta`); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT INTO meta(key, value) VALUES('schema', ?)`, want); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) Put(ctx context.Context, kind Kind, items []Item) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO records(kind, id, ts, value) VALUES(?, ?, ?, ?)
		ON CONFLICT(kind, id) DO UPDATE SET ts = excluded.ts, value = excluded.value`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, item := range items {
		if _, err := stmt.ExecContext(ctx, string(kind), item.ID, item.Timestamp, compress(item.Value)); err != nil {
			return fmt.Errorf("failed to write %s record %s: %w", kind, item.ID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Get(ctx context.Context, kind Kind, id string) (Item, bool, error) {
	var ts int64
	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT ts, value FROM records WHERE kind = ? AND id = ?`, string(kind), id).Scan(&ts, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Item{}, false, nil
	}
	if err != nil {
		return Item{}, false, err
	}
	data, err := decompress(raw)
	if err != nil {
		return Item{}, false, fmt.Errorf("record %s: %w", id, err)
	}
	return Item{ID: id, Timestamp: ts, Value: data}, true, nil
}

func (s *SQLiteStore) GetAll(ctx context.Context, kind Kind) ([]Item, error) {
	return s.query(ctx, kind, `SELECT id, ts, value FROM records WHERE kind = ?`, string(kind))
}

func (s *SQLiteStore) GetSince(ctx context.Context, kind Kind, ts int64) ([]Item, error) {
	return s.query(ctx, kind, `SELECT id, ts, value FROM records WHERE kind = ? AND ts >= ? ORDER BY ts, id`, string(kind), ts)
}

func (s *SQLiteStore) query(ctx context.Context, kind Kind, q string, args ...any) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var item Item
		var raw []byte
		if err := rows.Scan(&item.ID, &item.Timestamp, &raw); err != nil {
			return nil, err
		}
		if item.Value, err = decompress(raw); err != nil {
			s.logger.Warn("sqlite: skipping unreadable %s record %s: %v", kind, item.ID, err)
			continue
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *SQLiteStore) Clear(ctx context.Context, kind Kind) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE kind = ?`, string(kind))
	return err
}

func (s *SQLiteStore) ServerSequence(ctx context.Context) (int64, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'sequence'`).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(v, 10, 64)
}

func (s *SQLiteStore) SetServerSequence(ctx context.Context, seq int64) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO meta(key, value) VALUES('sequence', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, strconv.FormatInt(seq, 10))
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
