// Package store persists canonical records per kind with a time index and
// a scalar server sequence.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"telemetry-dashboard/internal/config"
	"telemetry-dashboard/pkg/logger"
)

// SchemaVersion is bumped whenever the persisted layout changes; opening a
// store written under another version truncates it.
const SchemaVersion = 3

// Kind names a record collection.
type Kind string

const (
	KindEvents          Kind = "events"
	KindPrompts         Kind = "prompts"
	KindWorkspaces      Kind = "workspaces"
	KindSearchHistory   Kind = "searchHistory"
	KindSearchAnalytics Kind = "searchAnalytics"
	KindUmapCache       Kind = "umapCache"
)

// Kinds lists every collection.
var Kinds = []Kind{KindEvents, KindPrompts, KindWorkspaces, KindSearchHistory, KindSearchAnalytics, KindUmapCache}

var ErrClosed = errors.New("store is closed")

// Item is one persisted record. Value is the record's JSON encoding.
type Item struct {
	ID        string
	Timestamp int64
	Value     []byte
}

// Store is the durable collection store. Writes are upserts by id; a batch
// is applied in order, so the last duplicate in a batch wins.
type Store interface {
	Put(ctx context.Context, kind Kind, items []Item) error
	Get(ctx context.Context, kind Kind, id string) (Item, bool, error)
	GetAll(ctx context.Context, kind Kind) ([]Item, error)
	// GetSince returns items with Timestamp >= ts in ascending time order.
	GetSince(ctx context.Context, kind Kind, ts int64) ([]Item, error)
	Clear(ctx context.Context, kind Kind) error
	ServerSequence(ctx context.Context) (int64, error)
	SetServerSequence(ctx context.Context, seq int64) error
	Close() error
}

// Record is anything with a stable id and a timestamp.
type Record interface {
	RecordID() string
	RecordTime() int64
}

// StoreBatch encodes and upserts records.
func StoreBatch[T Record](ctx context.Context, s Store, kind Kind, records []T) error {
	if len(records) == 0 {
		return nil
	}
	items := make([]Item, 0, len(records))
	for _, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to encode %s record %s: %w", kind, r.RecordID(), err)
		}
		items = append(items, Item{ID: r.RecordID(), Timestamp: r.RecordTime(), Value: data})
	}
	return s.Put(ctx, kind, items)
}

// GetAll decodes every record of kind. Undecodable items are skipped and
// counted in the returned int.
func GetAll[T any](ctx context.Context, s Store, kind Kind) ([]T, int, error) {
	items, err := s.GetAll(ctx, kind)
	if err != nil {
		return nil, 0, err
	}
	out, bad := decodeItems[T](items)
	return out, bad, nil
}

// GetSince decodes records of kind with timestamp >= ts.
func GetSince[T any](ctx context.Context, s Store, kind Kind, ts int64) ([]T, int, error) {
	items, err := s.GetSince(ctx, kind, ts)
	if err != nil {
		return nil, 0, err
	}
	out, bad := decodeItems[T](items)
	return out, bad, nil
}

// GetOne decodes a single record by id.
func GetOne[T any](ctx context.Context, s Store, kind Kind, id string) (T, bool, error) {
	var v T
	item, ok, err := s.Get(ctx, kind, id)
	if err != nil || !ok {
		return v, ok, err
	}
	if err := json.Unmarshal(item.Value, &v); err != nil {
		return v, false, fmt.Errorf("failed to decode %s record %s: %w", kind, id, err)
	}
	return v, true, nil
}

func decodeItems[T any](items []Item) ([]T, int) {
	out := make([]T, 0, len(items))
	bad := 0
	for _, item := range items {
		var v T
		if err := json.Unmarshal(item.Value, &v); err != nil {
			bad++
			continue
		}
		out = append(out, v)
	}
	return out, bad
}

// Open creates the configured backend under dir.
func Open(cfg config.ConfigStore, dir string, logger logger.Logger) (Store, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return OpenMemory(logger)
	case config.BackendSQLite:
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
		return OpenSQLite(filepath.Join(dir, "telemetry.db"), logger)
	case config.BackendLevelDB, "":
		return OpenLevelDB(filepath.Join(dir, "leveldb"), logger)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	decoder, _ = zstd.NewReader(nil)
)

func compress(data []byte) []byte {
	return encoder.EncodeAll(data, make([]byte, 0, len(data)/2))
}

func decompress(data []byte) ([]byte, error) {
	return decoder.DecodeAll(data, nil)
}

// dedupe keeps the last occurrence of each id while preserving the order in
// which ids were first seen.
func dedupe(items []Item) []Item {
	index := make(map[string]int, len(items))
	out := make([]Item, 0, len(items))
	for _, item := range items {
		if i, ok := index[item.ID]; ok {
			out[i] = item
			continue
		}
		index[item.ID] = len(out)
		out = append(out, item)
	}
	return out
}
