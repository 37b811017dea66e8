package binlog

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DazeHolic/lvdb/lib/db"
	"github.com/DazeHolic/lvdb/lib/db/engines/maple"
	"github.com/DazeHolic/lvdb/lib/db/keys"
)

// failingDB rejects batch writes while fail is set
type failingDB struct {
	db.KVDB
	fail atomic.Bool
}

var errInjected = errors.New("injected write failure")

func (f *failingDB) Write(batch *db.Batch) error {
	if f.fail.Load() {
		return errInjected
	}
	return f.KVDB.Write(batch)
}

func newTestQueue(t *testing.T, kvdb db.KVDB, capacity uint64) *Queue {
	t.Helper()
	q := NewQueue(kvdb, true, capacity)
	t.Cleanup(q.Close)
	return q
}

// write commits one data write plus one record
func write(q *Queue, t Type, key string) error {
	tx := NewTransaction(q)
	defer tx.Close()
	k := keys.EncodeKV(key)
	tx.Put(k, []byte("v-"+key))
	tx.AddLog(t, CmdKSet, k)
	return tx.Commit()
}

func TestCommitAssignsSequence(t *testing.T) {
	kvdb := maple.NewMapleDB(nil)
	q := newTestQueue(t, kvdb, 100)

	for i := 1; i <= 3; i++ {
		if err := write(q, TypeSync, fmt.Sprintf("key%d", i)); err != nil {
			t.Fatalf("Commit failed: %v", err)
		}
		if q.MaxSeq() != uint64(i) {
			t.Errorf("Expected MaxSeq %d, got %d", i, q.MaxSeq())
		}
	}

	rec, found, err := q.Get(2)
	if err != nil || !found {
		t.Fatalf("Expected record 2, found=%v err=%v", found, err)
	}
	if rec.Type != TypeSync || rec.Cmd != CmdKSet || !bytes.Equal(rec.Key, keys.EncodeKV("key2")) {
		t.Errorf("Unexpected record %s", rec.Describe())
	}

	// data and record landed together
	if val, ok, _ := kvdb.Get(keys.EncodeKV("key2")); !ok || string(val) != "v-key2" {
		t.Errorf("Expected data for key2, got %q (found=%v)", val, ok)
	}
}

func TestConcurrentCommitsAreDense(t *testing.T) {
	q := newTestQueue(t, maple.NewMapleDB(nil), 100000)

	const workers, perWorker = 8, 50
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if err := write(q, TypeSync, fmt.Sprintf("w%d-%d", w, i)); err != nil {
					t.Errorf("Commit failed: %v", err)
				}
			}
		}(w)
	}
	wg.Wait()

	total := uint64(workers * perWorker)
	if q.MaxSeq() != total {
		t.Fatalf("Expected MaxSeq %d, got %d", total, q.MaxSeq())
	}
	seen := make(map[string]bool)
	for seq := uint64(1); seq <= total; seq++ {
		rec, found, err := q.Get(seq)
		if err != nil || !found {
			t.Fatalf("Missing record %d (err=%v)", seq, err)
		}
		if seen[string(rec.Key)] {
			t.Errorf("Key %q logged twice", rec.Key)
		}
		seen[string(rec.Key)] = true
	}
}

func TestFailedCommitDoesNotConsumeSequence(t *testing.T) {
	kvdb := &failingDB{KVDB: maple.NewMapleDB(nil)}
	q := newTestQueue(t, kvdb, 100)

	if err := write(q, TypeSync, "a"); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	kvdb.fail.Store(true)
	if err := write(q, TypeSync, "b"); !errors.Is(err, errInjected) {
		t.Fatalf("Expected injected failure, got %v", err)
	}
	if q.MaxSeq() != 1 {
		t.Errorf("Expected MaxSeq 1 after failed commit, got %d", q.MaxSeq())
	}
	if _, ok, _ := kvdb.Get(keys.EncodeKV("b")); ok {
		t.Errorf("Data of a failed commit must not be visible")
	}

	kvdb.fail.Store(false)
	if err := write(q, TypeSync, "c"); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	rec, found, _ := q.Get(2)
	if !found || !bytes.Equal(rec.Key, keys.EncodeKV("c")) {
		t.Errorf("Expected seq 2 to hold key c, got %s (found=%v)", rec.Describe(), found)
	}
}

func TestMirrorWritesAreNotLogged(t *testing.T) {
	kvdb := maple.NewMapleDB(nil)
	q := newTestQueue(t, kvdb, 100)

	if err := write(q, TypeMirror, "m"); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if q.MaxSeq() != 0 {
		t.Errorf("Expected no record for a mirror write, MaxSeq is %d", q.MaxSeq())
	}
	if _, ok, _ := kvdb.Get(keys.EncodeKV("m")); !ok {
		t.Errorf("Mirror write data must be applied")
	}
}

func TestDisabledQueue(t *testing.T) {
	kvdb := maple.NewMapleDB(nil)
	q := NewQueue(kvdb, false, 100)
	defer q.Close()

	if err := write(q, TypeSync, "x"); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if q.MaxSeq() != 0 {
		t.Errorf("Disabled queue must not assign sequences, got %d", q.MaxSeq())
	}
	if _, found, _ := q.FindLast(); found {
		t.Errorf("Disabled queue must not store records")
	}
	if _, ok, _ := kvdb.Get(keys.EncodeKV("x")); !ok {
		t.Errorf("Data must be written by a disabled queue")
	}
}

func TestRollbackDiscardsStagedWrites(t *testing.T) {
	kvdb := maple.NewMapleDB(nil)
	q := newTestQueue(t, kvdb, 100)

	tx := NewTransaction(q)
	tx.Put(keys.EncodeKV("gone"), []byte("v"))
	tx.AddLog(TypeSync, CmdKSet, keys.EncodeKV("gone"))
	tx.Close()
	tx.Close()

	if err := write(q, TypeSync, "kept"); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if _, ok, _ := kvdb.Get(keys.EncodeKV("gone")); ok {
		t.Errorf("Rolled back write must not be visible")
	}
	if q.MaxSeq() != 1 {
		t.Errorf("Expected MaxSeq 1, got %d", q.MaxSeq())
	}
}

func TestFindNextAndLast(t *testing.T) {
	kvdb := maple.NewMapleDB(nil)
	q := newTestQueue(t, kvdb, 100)

	// entries around the binlog range must not confuse the lookups
	_ = kvdb.Set(keys.EncodeMeta("peer:sync:seq"), []byte("1"))
	for i := 0; i < 5; i++ {
		if err := write(q, TypeSync, fmt.Sprintf("k%d", i)); err != nil {
			t.Fatalf("Commit failed: %v", err)
		}
	}
	_ = kvdb.Delete(keys.EncodeSyncLog(3))

	tests := []struct {
		from     uint64
		expected uint64
		found    bool
	}{
		{0, 1, true},
		{1, 1, true},
		{3, 4, true},
		{5, 5, true},
		{6, 0, false},
	}
	for _, tt := range tests {
		rec, found, err := q.FindNext(tt.from)
		if err != nil {
			t.Fatalf("FindNext(%d) failed: %v", tt.from, err)
		}
		if found != tt.found || (found && rec.Seq != tt.expected) {
			t.Errorf("FindNext(%d): expected seq %d (found=%v), got %d (found=%v)", tt.from, tt.expected, tt.found, rec.Seq, found)
		}
	}

	last, found, err := q.FindLast()
	if err != nil || !found || last.Seq != 5 {
		t.Errorf("Expected last seq 5, got %d (found=%v, err=%v)", last.Seq, found, err)
	}
}

func TestReopenRecoversSequences(t *testing.T) {
	kvdb := maple.NewMapleDB(nil)
	q := NewQueue(kvdb, true, 100)
	for i := 0; i < 5; i++ {
		if err := write(q, TypeSync, fmt.Sprintf("k%d", i)); err != nil {
			t.Fatalf("Commit failed: %v", err)
		}
	}
	q.Close()

	reopened := newTestQueue(t, kvdb, 3)
	if reopened.MaxSeq() != 5 {
		t.Errorf("Expected MaxSeq 5 after reopen, got %d", reopened.MaxSeq())
	}
	if reopened.MinSeq() != 2 {
		t.Errorf("Expected MinSeq 2 (last - capacity), got %d", reopened.MinSeq())
	}

	if err := write(reopened, TypeSync, "next"); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if reopened.MaxSeq() != 6 {
		t.Errorf("Expected sequences to continue at 6, got %d", reopened.MaxSeq())
	}
}

func TestRetention(t *testing.T) {
	kvdb := maple.NewMapleDB(nil)
	q := newQueue(kvdb, true, 10, 5, time.Millisecond)
	defer q.Close()

	// one transaction so the cleaner sees the final state at once
	tx := NewTransaction(q)
	for i := 1; i <= 30; i++ {
		k := keys.EncodeKV(fmt.Sprintf("k%d", i))
		tx.Put(k, []byte("v"))
		tx.AddLog(TypeSync, CmdKSet, k)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	tx.Close()

	deadline := time.Now().Add(2 * time.Second)
	for q.MinSeq() != 21 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if q.MinSeq() != 21 {
		t.Fatalf("Expected MinSeq 21 after cleanup, got %d", q.MinSeq())
	}
	for seq := uint64(1); seq <= 20; seq++ {
		if _, found, _ := q.Get(seq); found {
			t.Errorf("Record %d should have been removed", seq)
		}
	}
	for seq := uint64(21); seq <= 30; seq++ {
		if _, found, _ := q.Get(seq); !found {
			t.Errorf("Record %d should be retained", seq)
		}
	}
	if q.Len() != 10 {
		t.Errorf("Expected 10 retained records, got %d", q.Len())
	}
}

func TestMaintenance(t *testing.T) {
	t.Run("Merge", func(t *testing.T) {
		q := newTestQueue(t, maple.NewMapleDB(nil), 100)
		for _, k := range []string{"a", "b", "a", "a"} {
			if err := write(q, TypeSync, k); err != nil {
				t.Fatalf("Commit failed: %v", err)
			}
		}
		reduced, err := q.Merge()
		if err != nil {
			t.Fatalf("Merge failed: %v", err)
		}
		if reduced != 2 {
			t.Errorf("Expected 2 merged records, got %d", reduced)
		}
		for seq, expected := range map[uint64]Type{1: TypeNoop, 2: TypeSync, 3: TypeNoop, 4: TypeSync} {
			rec, _, _ := q.Get(seq)
			if rec.Type != expected {
				t.Errorf("Record %d: expected type %s, got %s", seq, expected, rec.Type)
			}
		}
	})

	t.Run("Defragment", func(t *testing.T) {
		q := newTestQueue(t, maple.NewMapleDB(nil), 100)
		for i := 0; i < 5; i++ {
			if err := write(q, TypeSync, fmt.Sprintf("k%d", i)); err != nil {
				t.Fatalf("Commit failed: %v", err)
			}
		}
		q.minSeq.Store(4)

		removed, err := q.Defragment()
		if err != nil {
			t.Fatalf("Defragment failed: %v", err)
		}
		if removed != 3 {
			t.Errorf("Expected 3 removed records, got %d", removed)
		}
		rec, found, _ := q.FindNext(0)
		if !found || rec.Seq != 4 {
			t.Errorf("Expected first record 4, got %d (found=%v)", rec.Seq, found)
		}
	})

	t.Run("Flush", func(t *testing.T) {
		q := newTestQueue(t, maple.NewMapleDB(nil), 100)
		for i := 0; i < 3; i++ {
			_ = write(q, TypeSync, fmt.Sprintf("k%d", i))
		}
		if err := q.Flush(); err != nil {
			t.Fatalf("Flush failed: %v", err)
		}
		if _, found, _ := q.FindLast(); found {
			t.Errorf("Expected no records after flush")
		}
	})

	t.Run("Update", func(t *testing.T) {
		q := newTestQueue(t, maple.NewMapleDB(nil), 100)
		_ = write(q, TypeSync, "k")
		if err := q.Update(1, TypeCtrl, CmdMetaDel, []byte("x")); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		rec, _, _ := q.Get(1)
		if rec.Type != TypeCtrl || rec.Cmd != CmdMetaDel || string(rec.Key) != "x" {
			t.Errorf("Unexpected record after update: %s", rec.Describe())
		}
	})
}

func TestStatsAndMetrics(t *testing.T) {
	q := newTestQueue(t, maple.NewMapleDB(nil), 100)
	_ = write(q, TypeSync, "k")

	stats := q.Stats()
	for _, want := range []string{"capacity : 100", "min_seq  : 0", "max_seq  : 1"} {
		if !strings.Contains(stats, want) {
			t.Errorf("Stats %q missing %q", stats, want)
		}
	}

	var buf bytes.Buffer
	q.WriteMetrics(&buf)
	for _, want := range []string{"lvdb_binlog_commits_total 1", "lvdb_binlog_max_seq 1"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("Metrics output missing %q:\n%s", want, buf.String())
		}
	}
}
