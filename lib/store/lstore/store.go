package lstore

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/DazeHolic/lvdb/lib/binlog"
	"github.com/DazeHolic/lvdb/lib/db"
	"github.com/DazeHolic/lvdb/lib/db/engines/maple"
	"github.com/DazeHolic/lvdb/lib/db/engines/pebbledb"
	"github.com/DazeHolic/lvdb/lib/db/iterator"
	"github.com/DazeHolic/lvdb/lib/db/keys"
	"github.com/DazeHolic/lvdb/lib/store"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("store")

// Store is the local implementation of store.IStore. All data types share one
// engine and one binlog queue; every write goes through a binlog transaction.
type Store struct {
	db      db.KVDB
	binlogs *binlog.Queue
}

var _ store.IStore = (*Store)(nil)

// NewLocalStore creates a store on the engine returned by factory.
// The binlog is kept in the same engine.
func NewLocalStore(factory store.DBFactory, binlogEnabled bool, capacity uint64) (*Store, error) {
	kvdb, err := factory()
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}
	return &Store{
		db:      kvdb,
		binlogs: binlog.NewQueue(kvdb, binlogEnabled, capacity),
	}, nil
}

// Open creates a store as described by opts
func Open(opts store.Options) (*Store, error) {
	Logger.Infof("opening store (engine=%s, dir=%s, binlog=%t, capacity=%d)",
		opts.Engine, opts.Dir, opts.Replication.Binlog, opts.Replication.Capacity)
	return NewLocalStore(EngineFactory(opts), opts.Replication.Binlog, opts.Replication.Capacity)
}

// EngineFactory maps the engine settings of opts to a store.DBFactory
func EngineFactory(opts store.Options) store.DBFactory {
	return func() (db.KVDB, error) {
		switch db.Implementation(opts.Engine) {
		case db.ImplMaple:
			return maple.NewMapleDB(maple.DefaultOptions()), nil
		case db.ImplPebble, "":
			return pebbledb.NewPebbleDB(&pebbledb.Options{
				Dir:             opts.Dir,
				CacheSize:       int64(opts.CacheSize) << 20,
				WriteBufferSize: uint64(opts.WriteBufferSize) << 20,
				BlockSize:       opts.BlockSize << 10,
				MaxOpenFiles:    opts.MaxOpenFiles,
				Compression:     opts.Compression,
				Sync:            true,
			})
		default:
			return nil, fmt.Errorf("unknown engine %q", opts.Engine)
		}
	}
}

// --------------------------------------------------------------------------
// Access for replication and tooling
// --------------------------------------------------------------------------

// Binlogs returns the binlog queue of the store
func (s *Store) Binlogs() *binlog.Queue {
	return s.binlogs
}

// RawGet reads an encoded key
func (s *Store) RawGet(key []byte) ([]byte, bool, error) {
	return s.db.Get(key)
}

// RawIterator scans encoded keys in (start, end]
func (s *Store) RawIterator(start, end []byte, limit int) *iterator.Iterator {
	return iterator.New(s.db, start, end, limit)
}

// RawReverseIterator scans encoded keys from start (inclusive) down to end (exclusive)
func (s *Store) RawReverseIterator(start, end []byte, limit int) *iterator.Iterator {
	return iterator.NewReverse(s.db, start, end, limit)
}

// FlushDB deletes every entry of the store, data, binlog and meta keys alike
func (s *Store) FlushDB() error {
	tx := binlog.NewTransaction(s.binlogs)
	defer tx.Close()

	it := s.db.NewIterator()
	defer it.Close()

	batch := db.NewBatch()
	count := 0
	for ok := it.First(); ok; ok = it.Next() {
		batch.Delete(it.Key())
		if batch.Len() >= 1000 {
			if err := s.db.Write(batch); err != nil {
				return internalError("flushdb", err)
			}
			count += batch.Len()
			batch.Reset()
		}
	}
	if err := it.Error(); err != nil {
		return internalError("flushdb", err)
	}
	if err := s.db.Write(batch); err != nil {
		return internalError("flushdb", err)
	}
	count += batch.Len()
	Logger.Infof("flushdb: deleted %d entries", count)
	return nil
}

// Compact compacts the whole keyspace if the engine supports it
func (s *Store) Compact() error {
	if !s.db.SupportsFeature(db.FeatureCompact) {
		return store.NewError(store.RetCUnsupportedOperation, "Compact operation is not supported")
	}
	if err := s.db.Compact(); err != nil {
		return internalError("compact", err)
	}
	return nil
}

func (s *Store) GetDBInfo() (db.DatabaseInfo, error) {
	return s.db.GetInfo(), nil
}

// Close stops the binlog retention and closes the engine
func (s *Store) Close() error {
	s.binlogs.Close()
	return s.db.Close()
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// internalError logs and wraps an engine failure
func internalError(op string, err error) error {
	Logger.Errorf("%s error: %v", op, err)
	return store.WrapError(store.RetCInternalError, op, err)
}

func invalidError(op string, err error) error {
	return store.WrapError(store.RetCInvalidOperation, op, err)
}

// checkName reports whether name can be used as a collection name.
// Empty names are not applicable, names longer than keys.MaxNameLen are invalid.
func checkName(op, name string) (bool, error) {
	err := keys.CheckName(name)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, keys.ErrEmptyKey):
		Logger.Infof("%s: empty key!", op)
		return false, nil
	default:
		return false, invalidError(op, err)
	}
}

// ErrNotInteger is returned by increments on values that are not decimal integers
var ErrNotInteger = errors.New("value is not an integer")

func parseInt(v []byte) (int64, error) {
	n, err := strconv.ParseInt(string(v), 10, 64)
	if err != nil {
		return 0, ErrNotInteger
	}
	return n, nil
}

// getSize reads a collection size counter (0 if absent)
func (s *Store) getSize(sizeKey []byte) (int64, error) {
	v, ok, err := s.db.Get(sizeKey)
	if err != nil || !ok {
		return 0, err
	}
	return keys.DecodeInt64(v)
}

// stageSize stages size+delta for a collection, deleting the counter when it drops to 0.
// It must be called at most once per transaction and collection.
func (s *Store) stageSize(tx *binlog.Transaction, sizeKey []byte, delta int64) (int64, error) {
	size, err := s.getSize(sizeKey)
	if err != nil {
		return 0, err
	}
	size += delta
	if size <= 0 {
		tx.Delete(sizeKey)
		return 0, nil
	}
	tx.Put(sizeKey, keys.EncodeInt64(size))
	return size, nil
}

// listNames scans collection names stored under the size tag
func (s *Store) listNames(tag byte, decode func([]byte) (string, error), start, end string, limit int, reverse bool) ([]string, error) {
	tagOnly := []byte{tag}
	var it *iterator.Iterator
	if !reverse {
		endKey := keys.PrefixEnd(tagOnly)
		if end != "" {
			endKey = append(append([]byte{}, tagOnly...), end...)
		}
		it = iterator.New(s.db, append(append([]byte{}, tagOnly...), start...), endKey, limit)
	} else {
		startKey := keys.PrefixEnd(tagOnly)
		if start != "" {
			startKey = append(append([]byte{}, tagOnly...), start...)
		}
		it = iterator.NewReverse(s.db, startKey, append(append([]byte{}, tagOnly...), end...), limit)
	}

	names := iterator.NewNames(it, decode)
	defer names.Close()

	var out []string
	for names.Next() {
		out = append(out, names.Name())
	}
	if err := it.Error(); err != nil {
		return nil, internalError("list", err)
	}
	return out, nil
}
