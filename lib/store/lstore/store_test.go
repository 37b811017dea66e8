package lstore

import (
	"bytes"
	"errors"
	"testing"

	"github.com/DazeHolic/lvdb/lib/binlog"
	"github.com/DazeHolic/lvdb/lib/db"
	"github.com/DazeHolic/lvdb/lib/db/engines/maple"
	"github.com/DazeHolic/lvdb/lib/db/keys"
	"github.com/DazeHolic/lvdb/lib/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewLocalStore(func() (db.KVDB, error) {
		return maple.NewMapleDB(nil), nil
	}, true, 10000)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// lastRecord returns the newest binlog record of the store
func lastRecord(t *testing.T, s *Store) binlog.Record {
	t.Helper()
	rec, found, err := s.Binlogs().FindLast()
	if err != nil || !found {
		t.Fatalf("Expected a binlog record, found=%v err=%v", found, err)
	}
	return rec
}

func expectRecord(t *testing.T, s *Store, typ binlog.Type, cmd binlog.Cmd, key []byte) {
	t.Helper()
	rec := lastRecord(t, s)
	if rec.Type != typ || rec.Cmd != cmd || !bytes.Equal(rec.Key, key) {
		t.Errorf("Expected record (%s %s %s), got %s", typ, cmd, binlog.Escape(key), rec.Describe())
	}
}

func expectCode(t *testing.T, err error, code store.RetCode) {
	t.Helper()
	if store.CodeOf(err) != code {
		t.Errorf("Expected error code %s, got %v", code, err)
	}
}

func TestOpenWithOptions(t *testing.T) {
	opts := store.DefaultOptions()
	opts.Engine = "maple"
	opts.Replication.Capacity = 100

	s, err := Open(opts)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	if s.Binlogs().Capacity() != 100 || !s.Binlogs().Enabled() {
		t.Errorf("Binlog settings not applied: capacity=%d enabled=%v", s.Binlogs().Capacity(), s.Binlogs().Enabled())
	}
	info, _ := s.GetDBInfo()
	if info.DbType != db.ImplMaple {
		t.Errorf("Expected maple engine, got %s", info.DbType)
	}

	opts.Engine = "unknown"
	if _, err := Open(opts); err == nil {
		t.Errorf("Expected an error for an unknown engine")
	}
}

func TestPebbleEngine(t *testing.T) {
	opts := store.DefaultOptions()
	opts.Dir = t.TempDir()

	s, err := Open(opts)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := s.Set("persisted", []byte("yes"), binlog.TypeSync); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Compact(); err != nil {
		t.Errorf("Compact failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := Open(opts)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer reopened.Close()

	val, found, _ := reopened.Get("persisted")
	if !found || string(val) != "yes" {
		t.Errorf("Expected persisted value, got %q (found=%v)", val, found)
	}
	if reopened.Binlogs().MaxSeq() != 1 {
		t.Errorf("Expected binlog to resume at 1, got %d", reopened.Binlogs().MaxSeq())
	}
}

func TestCompactUnsupported(t *testing.T) {
	s := newTestStore(t)
	expectCode(t, s.Compact(), store.RetCUnsupportedOperation)
}

func TestFlushDB(t *testing.T) {
	s := newTestStore(t)
	_, _ = s.Set("a", []byte("1"), binlog.TypeSync)
	_, _ = s.HSet("h", "f", []byte("v"), binlog.TypeSync)
	_, _ = s.MetaSet("m", []byte("x"))

	if err := s.FlushDB(); err != nil {
		t.Fatalf("FlushDB failed: %v", err)
	}
	it := s.RawIterator(nil, nil, 100)
	defer it.Close()
	if it.Next() {
		t.Errorf("Expected an empty keyspace, found %q", it.Key())
	}
}

func TestRawAccess(t *testing.T) {
	s := newTestStore(t)
	_, _ = s.Set("a", []byte("1"), binlog.TypeSync)

	val, found, err := s.RawGet(keys.EncodeKV("a"))
	if err != nil || !found || string(val) != "1" {
		t.Errorf("RawGet returned %q, %v, %v", val, found, err)
	}

	it := s.RawReverseIterator(keys.PrefixEnd([]byte{keys.TagKV}), []byte{keys.TagKV}, 10)
	defer it.Close()
	if !it.Next() || !bytes.Equal(it.Key(), keys.EncodeKV("a")) {
		t.Errorf("Expected reverse iterator to find key a")
	}
}

func TestErrorWrapping(t *testing.T) {
	cause := errors.New("disk on fire")
	err := store.WrapError(store.RetCInternalError, "set", cause)
	if !errors.Is(err, cause) {
		t.Errorf("Expected wrapped cause to be reachable")
	}
	if store.CodeOf(err) != store.RetCInternalError {
		t.Errorf("Expected internal error code")
	}
	if store.CodeOf(nil) != store.RetCSuccess {
		t.Errorf("Expected success code for nil")
	}
}
