package iterator

import (
	"fmt"
	"testing"

	"github.com/DazeHolic/lvdb/lib/db"
	"github.com/DazeHolic/lvdb/lib/db/engines/maple"
	"github.com/DazeHolic/lvdb/lib/db/keys"
)

func newDB(t *testing.T, entries ...string) db.KVDB {
	database := maple.NewMapleDB(nil)
	t.Cleanup(func() { database.Close() })
	for _, k := range entries {
		if err := database.Set([]byte(k), []byte("v"+k)); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}
	return database
}

func drain(it *Iterator) []string {
	defer it.Close()
	var out []string
	for it.Next() {
		out = append(out, string(it.Key()))
	}
	return out
}

func TestForwardBounds(t *testing.T) {
	database := newDB(t, "a", "b", "c", "d", "e")

	tests := []struct {
		name       string
		start, end string
		limit      int
		expected   string
	}{
		{"exclusive start inclusive end", "b", "d", 10, "[c d]"},
		{"start between keys", "bb", "d", 10, "[c d]"},
		{"unbounded end", "c", "", 10, "[d e]"},
		{"empty start", "", "b", 10, "[a b]"},
		{"limit", "", "", 2, "[a b]"},
		{"zero limit", "", "", 0, "[]"},
		{"empty range", "d", "c", 10, "[]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fmt.Sprint(drain(New(database, []byte(tt.start), []byte(tt.end), tt.limit)))
			if got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestBackwardBounds(t *testing.T) {
	database := newDB(t, "a", "b", "c", "d", "e")

	tests := []struct {
		name       string
		start, end string
		limit      int
		expected   string
	}{
		{"inclusive start exclusive end", "d", "b", 10, "[d c]"},
		{"start between keys", "dd", "b", 10, "[d c]"},
		{"start past last key", "z", "c", 10, "[e d]"},
		{"unbounded end", "b", "", 10, "[b a]"},
		{"limit", "e", "", 3, "[e d c]"},
		{"start before first key", "0", "", 10, "[]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fmt.Sprint(drain(NewReverse(database, []byte(tt.start), []byte(tt.end), tt.limit)))
			if got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestForwardBackwardReversal(t *testing.T) {
	entries := []string{"a", "ab", "b", "b\x00", "c", "ca", "d", "e\xff", "f"}
	database := newDB(t, entries...)

	bounds := append([]string{"0", "z"}, entries...)
	for _, a := range bounds {
		for _, b := range bounds {
			if a >= b {
				continue
			}
			forward := drain(New(database, []byte(a), []byte(b), 100))
			backward := drain(NewReverse(database, []byte(b), []byte(a), 100))

			if len(forward) != len(backward) {
				t.Fatalf("(%q, %q]: forward %q, backward %q", a, b, forward, backward)
			}
			for i := range forward {
				if forward[i] != backward[len(backward)-1-i] {
					t.Errorf("(%q, %q]: forward %q is not the reverse of backward %q", a, b, forward, backward)
					break
				}
			}
			for _, k := range forward {
				if k == a || k > b {
					t.Errorf("(%q, %q]: unexpected key %q", a, b, k)
				}
			}
		}
	}
}

func TestSkip(t *testing.T) {
	database := newDB(t, "a", "b", "c", "d")

	it := New(database, nil, nil, 10)
	defer it.Close()
	if !it.Skip(2) {
		t.Fatalf("Skip(2) should succeed")
	}
	if !it.Next() || string(it.Key()) != "c" {
		t.Errorf("Expected c after skipping two entries, got %q", it.Key())
	}
	if it.Skip(5) {
		t.Errorf("Skip past the end should report false")
	}
}

func TestTypedWrappers(t *testing.T) {
	database := newDB(t)
	set := func(k []byte, v string) {
		if err := database.Set(k, []byte(v)); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}

	set(keys.EncodeKV("k1"), "1")
	set(keys.EncodeKV("k2"), "2")
	set(keys.EncodeHash("h", "f1"), "x")
	set(keys.EncodeHash("h", "f2"), "y")
	set(keys.EncodeHash("h2", "f1"), "z")
	set([]byte{keys.TagHash}, "garbage")
	set([]byte{keys.TagHash, 1}, "garbage") // length overruns the key
	set(keys.EncodeZScore("z", "low", -5), "")
	set(keys.EncodeZScore("z", "high", 7), "")
	set(keys.EncodeZScore("zz", "other", 0), "")
	set(keys.EncodeQItem("q", keys.QFrontSeq), "ptr")
	set(keys.EncodeQItem("q", keys.QItemSeqInit), "first")
	set(keys.EncodeQItem("q", keys.QItemSeqInit+1), "second")

	t.Run("Plain", func(t *testing.T) {
		p := NewPlain(New(database, keys.EncodeKV(""), keys.PrefixEnd([]byte{keys.TagKV}), 10))
		defer p.Close()
		var got []string
		for p.Next() {
			got = append(got, p.Key()+"="+string(p.Value()))
		}
		if fmt.Sprint(got) != "[k1=1 k2=2]" {
			t.Errorf("Unexpected plain entries %v", got)
		}
	})

	t.Run("HashField", func(t *testing.T) {
		start := []byte{keys.TagHash}
		h := NewHashField(New(database, start, keys.PrefixEnd(keys.HashPrefix("h")), 10), "h")
		defer h.Close()
		var got []string
		for h.Next() {
			got = append(got, h.Field()+"="+string(h.Value()))
		}
		if fmt.Sprint(got) != "[f1=x f2=y]" {
			t.Errorf("Unexpected hash fields %v", got)
		}
	})

	t.Run("ScoredMember", func(t *testing.T) {
		prefix := keys.ZScorePrefix("z")
		z := NewScoredMember(New(database, prefix, keys.PrefixEnd(prefix), 10), "z")
		defer z.Close()
		var got []string
		for z.Next() {
			got = append(got, fmt.Sprintf("%s:%d", z.Member(), z.Score()))
		}
		if fmt.Sprint(got) != "[low:-5 high:7]" {
			t.Errorf("Unexpected members %v", got)
		}
	})

	t.Run("QueueItem", func(t *testing.T) {
		prefix := keys.QueuePrefix("q")
		q := NewQueueItem(New(database, prefix, keys.PrefixEnd(prefix), 10), "q")
		defer q.Close()
		var got []string
		for q.Next() {
			got = append(got, string(q.Value()))
		}
		if fmt.Sprint(got) != "[first second]" {
			t.Errorf("Unexpected queue items %v", got)
		}
	})
}
