package lstore

import (
	"testing"

	"github.com/DazeHolic/lvdb/lib/binlog"
	"github.com/DazeHolic/lvdb/lib/db/keys"
	"github.com/DazeHolic/lvdb/lib/store"
)

func entryKeys(entries []store.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Key)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestStrings(t *testing.T) {
	s := newTestStore(t)

	t.Run("SetGet", func(t *testing.T) {
		n, err := s.Set("k1", []byte("v1"), binlog.TypeSync)
		if err != nil || n != 1 {
			t.Fatalf("Set returned %d, %v", n, err)
		}
		expectRecord(t, s, binlog.TypeSync, binlog.CmdKSet, keys.EncodeKV("k1"))

		val, found, err := s.Get("k1")
		if err != nil || !found || string(val) != "v1" {
			t.Errorf("Get returned %q, %v, %v", val, found, err)
		}
		if _, found, _ := s.Get("missing"); found {
			t.Errorf("Expected missing key to be absent")
		}
	})

	t.Run("EmptyKey", func(t *testing.T) {
		before := s.Binlogs().MaxSeq()
		if n, err := s.Set("", []byte("v"), binlog.TypeSync); n != 0 || err != nil {
			t.Errorf("Expected (0, nil) for empty key, got (%d, %v)", n, err)
		}
		if s.Binlogs().MaxSeq() != before {
			t.Errorf("Empty key must not be logged")
		}
	})

	t.Run("SetNX", func(t *testing.T) {
		if n, _ := s.SetNX("nx", []byte("first"), binlog.TypeSync); n != 1 {
			t.Errorf("Expected 1 for new key, got %d", n)
		}
		if n, _ := s.SetNX("nx", []byte("second"), binlog.TypeSync); n != 0 {
			t.Errorf("Expected 0 for existing key, got %d", n)
		}
		if val, _, _ := s.Get("nx"); string(val) != "first" {
			t.Errorf("SetNX overwrote the value: %q", val)
		}
	})

	t.Run("GetSet", func(t *testing.T) {
		old, found, err := s.GetSet("gs", []byte("a"), binlog.TypeSync)
		if err != nil || found || old != nil {
			t.Errorf("Expected no previous value, got %q, %v, %v", old, found, err)
		}
		old, found, _ = s.GetSet("gs", []byte("b"), binlog.TypeSync)
		if !found || string(old) != "a" {
			t.Errorf("Expected previous value a, got %q (found=%v)", old, found)
		}
	})

	t.Run("Del", func(t *testing.T) {
		_, _ = s.Set("del", []byte("x"), binlog.TypeSync)
		if n, err := s.Del("del", binlog.TypeSync); n != 1 || err != nil {
			t.Errorf("Del returned %d, %v", n, err)
		}
		expectRecord(t, s, binlog.TypeSync, binlog.CmdKDel, keys.EncodeKV("del"))
		if _, found, _ := s.Get("del"); found {
			t.Errorf("Expected key to be deleted")
		}
	})

	t.Run("Incr", func(t *testing.T) {
		if n, err := s.Incr("counter", 5, binlog.TypeSync); n != 5 || err != nil {
			t.Errorf("Expected 5, got %d, %v", n, err)
		}
		if n, _ := s.Incr("counter", -7, binlog.TypeSync); n != -2 {
			t.Errorf("Expected -2, got %d", n)
		}
		if val, _, _ := s.Get("counter"); string(val) != "-2" {
			t.Errorf("Expected stored value -2, got %q", val)
		}

		_, _ = s.Set("text", []byte("abc"), binlog.TypeSync)
		_, err := s.Incr("text", 1, binlog.TypeSync)
		expectCode(t, err, store.RetCInvalidOperation)
	})

	t.Run("MultiSetDel", func(t *testing.T) {
		n, err := s.MultiSet([]store.Entry{
			{Key: "m1", Value: []byte("1")},
			{Key: "m2", Value: []byte("2")},
		}, binlog.TypeSync)
		if err != nil || n != 2 {
			t.Fatalf("MultiSet returned %d, %v", n, err)
		}
		if val, _, _ := s.Get("m2"); string(val) != "2" {
			t.Errorf("Expected m2=2, got %q", val)
		}
		if n, _ := s.MultiDel([]string{"m1", "m2"}, binlog.TypeSync); n != 2 {
			t.Errorf("Expected 2 deleted keys, got %d", n)
		}
		if _, found, _ := s.Get("m1"); found {
			t.Errorf("Expected m1 to be deleted")
		}
	})

	t.Run("Bits", func(t *testing.T) {
		if orig, err := s.SetBit("bits", 9, true, binlog.TypeSync); orig != 0 || err != nil {
			t.Errorf("Expected previous bit 0, got %d, %v", orig, err)
		}
		val, _, _ := s.Get("bits")
		if len(val) != 2 || val[1] != 0x02 {
			t.Errorf("Expected value [0 2], got %v", val)
		}
		tests := []struct {
			offset   int
			expected int64
		}{{9, 1}, {8, 0}, {0, 0}, {100, 0}}
		for _, tt := range tests {
			if bit, _ := s.GetBit("bits", tt.offset); bit != tt.expected {
				t.Errorf("GetBit(%d) = %d, expected %d", tt.offset, bit, tt.expected)
			}
		}
		if orig, _ := s.SetBit("bits", 9, false, binlog.TypeSync); orig != 1 {
			t.Errorf("Expected previous bit 1, got %d", orig)
		}
		if bit, _ := s.GetBit("bits", 9); bit != 0 {
			t.Errorf("Expected cleared bit")
		}

		before := s.Binlogs().MaxSeq()
		for _, offset := range []int{-1, MaxBitOffset + 1, 1 << 40} {
			if n, err := s.SetBit("bits", offset, true, binlog.TypeSync); n != -1 || store.CodeOf(err) != store.RetCInvalidOperation {
				t.Errorf("SetBit(%d) = %d, %v, expected an invalid operation", offset, n, err)
			}
		}
		if val, _, _ := s.Get("bits"); len(val) != 2 {
			t.Errorf("Rejected offsets must not grow the value, got %d bytes", len(val))
		}
		if s.Binlogs().MaxSeq() != before {
			t.Errorf("Rejected offsets must not be logged")
		}
	})

	t.Run("Mirror", func(t *testing.T) {
		before := s.Binlogs().MaxSeq()
		if n, _ := s.Set("mirrored", []byte("v"), binlog.TypeMirror); n != 1 {
			t.Errorf("Expected mirrored set to succeed")
		}
		if s.Binlogs().MaxSeq() != before {
			t.Errorf("Mirrored write must not be logged")
		}
	})
}

func TestScan(t *testing.T) {
	s := newTestStore(t)
	for _, k := range []string{"a", "b", "c", "d"} {
		_, _ = s.Set(k, []byte("v"+k), binlog.TypeSync)
	}
	// neighbours of other types must not show up
	_, _ = s.HSet("zz", "f", []byte("v"), binlog.TypeSync)
	_, _ = s.QPushBack("q", []byte("v"), binlog.TypeSync)

	tests := []struct {
		name       string
		reverse    bool
		start, end string
		limit      int
		expected   []string
	}{
		{"all", false, "", "", 10, []string{"a", "b", "c", "d"}},
		{"exclusive start inclusive end", false, "a", "c", 10, []string{"b", "c"}},
		{"limit", false, "", "", 2, []string{"a", "b"}},
		{"zero limit", false, "", "", 0, nil},
		{"reverse all", true, "", "", 10, []string{"d", "c", "b", "a"}},
		{"reverse inclusive start exclusive end", true, "c", "a", 10, []string{"c", "b"}},
		{"reverse limit", true, "", "", 1, []string{"d"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var entries []store.Entry
			var err error
			if tt.reverse {
				entries, err = s.RScan(tt.start, tt.end, tt.limit)
			} else {
				entries, err = s.Scan(tt.start, tt.end, tt.limit)
			}
			if err != nil {
				t.Fatalf("Scan failed: %v", err)
			}
			if got := entryKeys(entries); !equalStrings(got, tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}

	entries, _ := s.Scan("b", "b", 10)
	if len(entries) != 0 {
		t.Errorf("Expected (b, b] to be empty, got %v", entryKeys(entries))
	}
	entries, _ = s.Scan("", "a", 10)
	if len(entries) != 1 || string(entries[0].Value) != "va" {
		t.Errorf("Expected a single entry a=va, got %v", entries)
	}
}
