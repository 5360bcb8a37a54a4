package store

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"telemetry-dashboard/internal/utils"
	"telemetry-dashboard/pkg/logger"
)

// Key layout:
//
//	<kind>/r/<id>            -> 8-byte timestamp + zstd(json)
//	<kind>/t/<ts:020>/<id>   -> empty, ordered time index
//	meta/schema, meta/sequence
const (
	recordInfix = "/r/"
	timeInfix   = "/t/"
	metaSchema  = "meta/schema"
	metaSeq     = "meta/sequence"
)

// LevelDBStore implements Store on goleveldb.
type LevelDBStore struct {
	db     *leveldb.DB
	logger logger.Logger
	mu     sync.Mutex // serializes read-modify-write of the time index
	closed bool
}

// OpenLevelDB opens (or creates) a store at path, recreating it when the
// files are corrupted.
func OpenLevelDB(path string, logger logger.Logger) (*LevelDBStore, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	opts := &opt.Options{
		WriteBuffer:        4 * 1024 * 1024,
		BlockCacheCapacity: 8 * 1024 * 1024,
	}
	db, err := leveldb.OpenFile(path, opts)
	if err != nil {
		logger.Warn("leveldb: open failed, attempting to recreate. path %s err:%v", path, err)
		if removeErr := os.RemoveAll(path); removeErr != nil {
			return nil, fmt.Errorf("failed to open store %s: %w (and failed to remove corrupted dir: %v)", path, err, removeErr)
		}
		if db, err = leveldb.OpenFile(path, opts); err != nil {
			return nil, fmt.Errorf("failed to recreate store %s: %w", path, err)
		}
	}
	return newLevelDBStore(db, logger)
}

// OpenMemory opens a store backed by goleveldb's in-memory storage.
func OpenMemory(logger logger.Logger) (*LevelDBStore, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open memory store: %w", err)
	}
	return newLevelDBStore(db, logger)
}

func newLevelDBStore(db *leveldb.DB, logger logger.Logger) (*LevelDBStore, error) {
	s := &LevelDBStore{db: db, logger: logger}
	if err := s.checkSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *LevelDBStore) checkSchema() error {
	want := strconv.Itoa(SchemaVersion)
	got, err := s.db.Get([]byte(metaSchema), nil)
	if err != nil && !errors.Is(err, leveldb.ErrNotFound) {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if string(got) == want {
		return nil
	}
	if got != nil {
		s.logger.Warn("leveldb: schema version changed from %s to %s, truncating", string(got), want)
	}
	batch := new(leveldb.Batch)
	iter := s.db.NewIterator(nil, nil)
	for iter.Next() {
		batch.Delete(append([]byte(nil), iter.Key()...))
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return fmt.Errorf("failed to scan store: %w", err)
	}
	batch.Put([]byte(metaSchema), []byte(want))
	return s.db.Write(batch, nil)
}

func recordKey(kind Kind, id string) []byte {
	return []byte(string(kind) + recordInfix + id)
}

func timeKey(kind Kind, ts int64, id string) []byte {
	return []byte(fmt.Sprintf("%s%s%020d/%s", kind, timeInfix, max(ts, 0), id))
}

func encodeValue(ts int64, data []byte) []byte {
	buf := make([]byte, 8, 8+len(data))
	binary.BigEndian.PutUint64(buf, uint64(ts))
	return append(buf, compress(data)...)
}

func decodeValue(id string, raw []byte) (Item, error) {
	if len(raw) < 8 {
		return Item{}, fmt.Errorf("record %s: value too short", id)
	}
	data, err := decompress(raw[8:])
	if err != nil {
		return Item{}, fmt.Errorf("record %s: %w", id, err)
	}
	return Item{ID: id, Timestamp: int64(binary.BigEndian.Uint64(raw[:8])), Value: data}, nil
}

func (s *LevelDBStore) check(ctx context.Context) error {
	if s.closed {
		return ErrClosed
	}
	return utils.CheckContext(ctx)
}

func (s *LevelDBStore) Put(ctx context.Context, kind Kind, items []Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}

	batch := new(leveldb.Batch)
	for _, item := range dedupe(items) {
		key := recordKey(kind, item.ID)
		old, err := s.db.Get(key, nil)
		switch {
		case err == nil && len(old) >= 8:
			oldTs := int64(binary.BigEndian.Uint64(old[:8]))
			if oldTs != item.Timestamp {
				batch.Delete(timeKey(kind, oldTs, item.ID))
			}
		case err != nil && !errors.Is(err, leveldb.ErrNotFound):
			return fmt.Errorf("failed to read %s record %s: %w", kind, item.ID, err)
		}
		batch.Put(key, encodeValue(item.Timestamp, item.Value))
		batch.Put(timeKey(kind, item.Timestamp, item.ID), nil)
	}
	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("failed to write %d %s records: %w", len(items), kind, err)
	}
	return nil
}

func (s *LevelDBStore) Get(ctx context.Context, kind Kind, id string) (Item, bool, error) {
	if err := s.check(ctx); err != nil {
		return Item{}, false, err
	}
	raw, err := s.db.Get(recordKey(kind, id), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return Item{}, false, nil
	}
	if err != nil {
		return Item{}, false, fmt.Errorf("failed to get %s record %s: %w", kind, id, err)
	}
	item, err := decodeValue(id, raw)
	if err != nil {
		return Item{}, false, err
	}
	return item, true, nil
}

func (s *LevelDBStore) GetAll(ctx context.Context, kind Kind) ([]Item, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	prefix := []byte(string(kind) + recordInfix)
	iter := s.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()

	var items []Item
	for iter.Next() {
		id := string(iter.Key()[len(prefix):])
		item, err := decodeValue(id, iter.Value())
		if err != nil {
			s.logger.Warn("leveldb: skipping unreadable %s record: %v", kind, err)
			continue
		}
		items = append(items, item)
	}
	return items, iter.Error()
}

func (s *LevelDBStore) GetSince(ctx context.Context, kind Kind, ts int64) ([]Item, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	prefix := string(kind) + timeInfix
	rng := util.BytesPrefix([]byte(prefix))
	rng.Start = []byte(fmt.Sprintf("%s%020d", prefix, max(ts, 0)))
	iter := s.db.NewIterator(rng, nil)
	defer iter.Release()

	var items []Item
	for iter.Next() {
		// <ts:020>/<id>
		rest := string(iter.Key()[len(prefix):])
		if len(rest) < 21 {
			continue
		}
		id := rest[21:]
		raw, err := s.db.Get(recordKey(kind, id), nil)
		if err != nil {
			continue
		}
		item, err := decodeValue(id, raw)
		if err != nil {
			s.logger.Warn("leveldb: skipping unreadable %s record: %v", kind, err)
			continue
		}
		items = append(items, item)
	}
	return items, iter.Error()
}

func (s *LevelDBStore) Clear(ctx context.Context, kind Kind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	batch := new(leveldb.Batch)
	iter := s.db.NewIterator(util.BytesPrefix([]byte(string(kind)+"/")), nil)
	for iter.Next() {
		batch.Delete(append([]byte(nil), iter.Key()...))
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return err
	}
	return s.db.Write(batch, nil)
}

func (s *LevelDBStore) ServerSequence(ctx context.Context) (int64, error) {
	if err := s.check(ctx); err != nil {
		return 0, err
	}
	raw, err := s.db.Get([]byte(metaSeq), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(string(raw), 10, 64)
}

func (s *LevelDBStore) SetServerSequence(ctx context.Context, seq int64) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	return s.db.Put([]byte(metaSeq), []byte(strconv.FormatInt(seq, 10)), nil)
}

func (s *LevelDBStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
