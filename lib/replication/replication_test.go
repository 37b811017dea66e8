package replication

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/DazeHolic/lvdb/lib/binlog"
	"github.com/DazeHolic/lvdb/lib/db"
	"github.com/DazeHolic/lvdb/lib/db/engines/maple"
	"github.com/DazeHolic/lvdb/lib/db/keys"
	"github.com/DazeHolic/lvdb/lib/store/lstore"
)

func newStore(t *testing.T) *lstore.Store {
	t.Helper()
	s, err := lstore.NewLocalStore(func() (db.KVDB, error) {
		return maple.NewMapleDB(nil), nil
	}, true, 10000)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

type applied struct {
	rec   binlog.Record
	value []byte
}

// recorder is a Processor remembering every record it was given
type recorder struct {
	mu  sync.Mutex
	got []applied
}

func (r *recorder) Apply(rec binlog.Record, value []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, applied{rec: rec, value: append([]byte(nil), value...)})
	return nil
}

func (r *recorder) records() []applied {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]applied(nil), r.got...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSyncForwardsSetAndDelete(t *testing.T) {
	leader := newStore(t)
	_, _ = leader.Set("a", []byte("1"), binlog.TypeSync)
	_, _ = leader.Set("b", []byte("2"), binlog.TypeSync)
	_, _ = leader.Del("a", binlog.TypeSync)

	rec := &recorder{}
	s := NewSync("peer", leader, rec)
	if err := s.SetCursor(0); err != nil {
		t.Fatalf("SetCursor failed: %v", err)
	}

	n, err := s.Pass()
	if err != nil {
		t.Fatalf("Pass failed: %v", err)
	}
	// the first set is skipped, its key no longer exists
	if n != 2 {
		t.Fatalf("Expected 2 forwarded records, got %d", n)
	}
	got := rec.records()
	if got[0].rec.Cmd != binlog.CmdKSet || !bytes.Equal(got[0].rec.Key, keys.EncodeKV("b")) || string(got[0].value) != "2" {
		t.Errorf("Unexpected first record %s = %q", got[0].rec.Describe(), got[0].value)
	}
	if got[1].rec.Cmd != binlog.CmdKDel || got[1].value != nil || got[1].rec.Seq != 3 {
		t.Errorf("Unexpected second record %s = %q", got[1].rec.Describe(), got[1].value)
	}

	// only acknowledged records are persisted
	stored, _, _ := leader.MetaGet(SyncCursorKey("peer"))
	if string(stored) != "3" {
		t.Errorf("Expected stored cursor 3, got %q", stored)
	}
	cursor, ok, _ := s.Cursor()
	if !ok || cursor != leader.Binlogs().MaxSeq() {
		t.Errorf("Expected in-memory cursor at %d, got %d", leader.Binlogs().MaxSeq(), cursor)
	}

	if n, _ := s.Pass(); n != 0 {
		t.Errorf("Expected an idle pass, got %d records", n)
	}

	// a new driver resumes from the stored cursor
	_, _ = leader.Set("c", []byte("3"), binlog.TypeSync)
	rec2 := &recorder{}
	if n, err := NewSync("peer", leader, rec2).Pass(); n != 1 || err != nil {
		t.Fatalf("Expected 1 record after restart, got %d, %v", n, err)
	}
	if !bytes.Equal(rec2.records()[0].rec.Key, keys.EncodeKV("c")) {
		t.Errorf("Expected record for c, got %s", rec2.records()[0].rec.Describe())
	}
}

func TestSyncWithoutCursorStartsAtLastRecord(t *testing.T) {
	leader := newStore(t)
	_, _ = leader.Set("old", []byte("x"), binlog.TypeSync)
	_, _ = leader.Set("new", []byte("y"), binlog.TypeSync)

	rec := &recorder{}
	if n, _ := NewSync("fresh", leader, rec).Pass(); n != 1 {
		t.Fatalf("Expected 1 record, got %d", n)
	}
	if !bytes.Equal(rec.records()[0].rec.Key, keys.EncodeKV("new")) {
		t.Errorf("Expected the newest record, got %s", rec.records()[0].rec.Describe())
	}
}

func TestSyncStopsOnProcessorError(t *testing.T) {
	leader := newStore(t)
	_, _ = leader.Set("a", []byte("1"), binlog.TypeSync)
	_, _ = leader.Set("b", []byte("2"), binlog.TypeSync)

	errDown := errors.New("peer down")
	calls := 0
	failing := ProcessorFunc(func(rec binlog.Record, value []byte) error {
		calls++
		if calls == 2 {
			return errDown
		}
		return nil
	})
	s := NewSync("peer", leader, failing)
	_ = s.SetCursor(0)

	n, err := s.Pass()
	if n != 1 || !errors.Is(err, errDown) {
		t.Fatalf("Expected (1, errDown), got (%d, %v)", n, err)
	}
	if cursor, _, _ := s.Cursor(); cursor != 1 {
		t.Errorf("Expected cursor to stay at 1, got %d", cursor)
	}
	if s.Stats().Failed != 1 {
		t.Errorf("Expected one failed record, got %d", s.Stats().Failed)
	}

	// the failed record is offered again
	n, err = s.Pass()
	if n != 1 || err != nil {
		t.Errorf("Expected the retry to forward 1 record, got %d, %v", n, err)
	}
}

func TestSyncReplaysOnFollower(t *testing.T) {
	leader := newStore(t)
	follower := newStore(t)
	s := NewSync("f", leader, NewLocalApply(follower))
	_ = s.SetCursor(leader.Binlogs().MaxSeq())

	_, _ = leader.Set("k", []byte("v"), binlog.TypeSync)
	_, _ = leader.HSet("h", "f", []byte("hv"), binlog.TypeSync)
	_, _ = leader.ZSet("z", "m", -7, binlog.TypeSync)
	_, _ = leader.QPushBack("q", []byte("a"), binlog.TypeSync)
	_, _ = leader.QPushBack("q", []byte("b"), binlog.TypeSync)
	_, _ = leader.QPushFront("q", []byte("c"), binlog.TypeSync)
	_, _ = leader.MetaSet("leader-only", []byte("x"))
	if _, err := s.Pass(); err != nil {
		t.Fatalf("Pass failed: %v", err)
	}

	_, _ = leader.QSet("q", 1, []byte("A"), binlog.TypeSync)
	_, _, _ = leader.QPopBack("q", binlog.TypeSync)
	_, _ = leader.HDel("h", "f", binlog.TypeSync)
	_, _ = leader.ZIncr("z", "m", 10, binlog.TypeSync)
	if _, err := s.Pass(); err != nil {
		t.Fatalf("Pass failed: %v", err)
	}

	if val, _, _ := follower.Get("k"); string(val) != "v" {
		t.Errorf("Expected k=v on follower, got %q", val)
	}
	if _, found, _ := follower.HGet("h", "f"); found {
		t.Errorf("Expected hash field to be deleted on follower")
	}
	if score, _, _ := follower.ZGet("z", "m"); score != 3 {
		t.Errorf("Expected score 3 on follower, got %d", score)
	}
	items, _ := follower.QSlice("q", 0, -1)
	if len(items) != 2 || string(items[0]) != "c" || string(items[1]) != "A" {
		t.Errorf("Unexpected follower queue %q", items)
	}
	if _, found, _ := follower.MetaGet("leader-only"); found {
		t.Errorf("Meta keys must not be replicated")
	}
	// replayed writes are mirrored, the follower binlog stays empty
	if follower.Binlogs().MaxSeq() != 0 {
		t.Errorf("Expected an empty follower binlog, got max seq %d", follower.Binlogs().MaxSeq())
	}
}

func TestSyncStartStop(t *testing.T) {
	leader := newStore(t)
	rec := &recorder{}
	s := NewSync("bg", leader, rec)
	_ = s.SetCursor(0)

	s.Start(5 * time.Millisecond)
	_, _ = leader.Set("x", []byte("1"), binlog.TypeSync)
	waitFor(t, "background pass", func() bool { return len(rec.records()) == 1 })
	s.Stop()
	s.Stop()
}

func TestCursorsDoNotGrowBinlog(t *testing.T) {
	leader := newStore(t)
	for i := 0; i < 100; i++ {
		_, _ = leader.Set(fmt.Sprintf("k%03d", i), []byte("v"), binlog.TypeSync)
	}
	maxSeq := leader.Binlogs().MaxSeq()

	s := NewSync("peer", leader, &recorder{})
	_ = s.SetCursor(0)
	if n, err := s.Pass(); n != 100 || err != nil {
		t.Fatalf("Expected 100 forwarded records, got %d, %v", n, err)
	}
	if got := leader.Binlogs().MaxSeq(); got != maxSeq {
		t.Errorf("Sync pass moved max seq from %d to %d", maxSeq, got)
	}

	c := NewCopy("peer", leader, &recorder{})
	_ = c.Reset()
	if n, err := c.Run(); n != 100 || err != nil {
		t.Fatalf("Expected 100 copied records, got %d, %v", n, err)
	}
	if got := leader.Binlogs().MaxSeq(); got != maxSeq {
		t.Errorf("Copy moved max seq from %d to %d", maxSeq, got)
	}
}

// A copy that outlasts the binlog retention must not cost the writes made meanwhile
func TestWritesDuringLongCopyReachFollower(t *testing.T) {
	leader, err := lstore.NewLocalStore(func() (db.KVDB, error) {
		return maple.NewMapleDB(nil), nil
	}, true, 10)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = leader.Close() })
	follower := newStore(t)

	const total = 10100
	for i := 0; i < total; i++ {
		_, _ = leader.Set(fmt.Sprintf("key%05d", i), []byte("v"), binlog.TypeSync)
	}

	s := NewSync("f", leader, NewLocalApply(follower))
	if err := s.SetCursor(leader.Binlogs().MaxSeq()); err != nil {
		t.Fatalf("SetCursor failed: %v", err)
	}

	apply := NewLocalApply(follower)
	copied := 0
	c := NewCopy("f", leader, ProcessorFunc(func(rec binlog.Record, value []byte) error {
		copied++
		if copied == total/2 {
			_, _ = leader.Set("late", []byte("l"), binlog.TypeSync)
		}
		return apply.Apply(rec, value)
	}))
	_ = c.Reset()
	if _, err := c.Run(); err != nil {
		t.Fatalf("Copy failed: %v", err)
	}

	if got := leader.Binlogs().MaxSeq(); got != total+1 {
		t.Errorf("Expected max seq %d after the copy, got %d", total+1, got)
	}
	// let retention trim the old records
	waitFor(t, "binlog retention", func() bool { return leader.Binlogs().MinSeq() > 1 })

	if _, err := s.Pass(); err != nil {
		t.Fatalf("Pass failed: %v", err)
	}
	if val, found, _ := follower.Get("late"); !found || string(val) != "l" {
		t.Errorf("Expected late=l on follower, got %q (found=%t)", val, found)
	}
	if val, _, _ := follower.Get("key00000"); string(val) != "v" {
		t.Errorf("Expected copied key on follower, got %q", val)
	}
}
