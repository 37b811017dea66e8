package keys

import (
	"bytes"
	"errors"
	"math"
	"sort"
	"strings"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	names := []string{"a", "name", "with\x00zero", strings.Repeat("n", MaxNameLen)}
	subs := []string{"", "f", "field\xff", "\x00"}

	for _, name := range names {
		if got, err := DecodeKV(EncodeKV(name)); err != nil || got != name {
			t.Errorf("kv round trip failed for %q: %q, %v", name, got, err)
		}
		if got, err := DecodeMeta(EncodeMeta(name)); err != nil || got != name {
			t.Errorf("meta round trip failed for %q: %q, %v", name, got, err)
		}
		if got, err := DecodeHSize(EncodeHSize(name)); err != nil || got != name {
			t.Errorf("hsize round trip failed for %q", name)
		}
		if got, err := DecodeZSize(EncodeZSize(name)); err != nil || got != name {
			t.Errorf("zsize round trip failed for %q", name)
		}
		if got, err := DecodeQSize(EncodeQSize(name)); err != nil || got != name {
			t.Errorf("qsize round trip failed for %q", name)
		}

		for _, sub := range subs {
			if n, f, err := DecodeHash(EncodeHash(name, sub)); err != nil || n != name || f != sub {
				t.Errorf("hash round trip failed for %q/%q: %q/%q, %v", name, sub, n, f, err)
			}
			if n, m, err := DecodeZSet(EncodeZSet(name, sub)); err != nil || n != name || m != sub {
				t.Errorf("zset round trip failed for %q/%q", name, sub)
			}
			for _, score := range []int64{math.MinInt64, -1, 0, 1, math.MaxInt64} {
				n, m, s, err := DecodeZScore(EncodeZScore(name, sub, score))
				if err != nil || n != name || m != sub || s != score {
					t.Errorf("zscore round trip failed for %q/%q/%d: %q/%q/%d, %v", name, sub, score, n, m, s, err)
				}
			}
		}

		for _, seq := range []uint64{QFrontSeq, QBackSeq, QItemMinSeq, QItemSeqInit, QItemMaxSeq} {
			if n, s, err := DecodeQItem(EncodeQItem(name, seq)); err != nil || n != name || s != seq {
				t.Errorf("queue round trip failed for %q/%d", name, seq)
			}
		}
	}

	for _, seq := range []uint64{0, 1, 255, 256, math.MaxUint64} {
		if got, err := DecodeSyncLog(EncodeSyncLog(seq)); err != nil || got != seq {
			t.Errorf("synclog round trip failed for %d: %d, %v", seq, got, err)
		}
	}

	for _, v := range []int64{math.MinInt64, -1, 0, 1, math.MaxInt64} {
		if got, err := DecodeInt64(EncodeInt64(v)); err != nil || got != v {
			t.Errorf("int64 round trip failed for %d", v)
		}
	}
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name   string
		decode func([]byte) error
		input  []byte
	}{
		{"kv wrong tag", func(b []byte) error { _, err := DecodeKV(b); return err }, EncodeMeta("x")},
		{"kv empty", func(b []byte) error { _, err := DecodeKV(b); return err }, nil},
		{"hash wrong tag", func(b []byte) error { _, _, err := DecodeHash(b); return err }, EncodeZSet("n", "m")},
		{"hash overrun", func(b []byte) error { _, _, err := DecodeHash(b); return err }, []byte{TagHash, 5, 'a', 'b'}},
		{"hash no length", func(b []byte) error { _, _, err := DecodeHash(b); return err }, []byte{TagHash}},
		{"zscore short score", func(b []byte) error { _, _, _, err := DecodeZScore(b); return err }, []byte{TagZScore, 1, 'n', 0, 0, 0}},
		{"qitem short seq", func(b []byte) error { _, _, err := DecodeQItem(b); return err }, []byte{TagQueue, 1, 'n', 0, 1}},
		{"qitem long seq", func(b []byte) error { _, _, err := DecodeQItem(b); return err }, append(EncodeQItem("n", 1), 0)},
		{"synclog short", func(b []byte) error { _, err := DecodeSyncLog(b); return err }, []byte{TagSyncLog, 0, 1}},
		{"synclog wrong tag", func(b []byte) error { _, err := DecodeSyncLog(b); return err }, EncodeKV("12345678")},
		{"int64 short", func(b []byte) error { _, err := DecodeInt64(b); return err }, []byte{1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.decode(tt.input); !errors.Is(err, ErrMalformed) {
				t.Errorf("Expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestScoreOrdering(t *testing.T) {
	scores := []int64{math.MaxInt64, 42, -7, 0, math.MinInt64, -1, 1, 1000}

	encoded := make([][]byte, len(scores))
	for i, s := range scores {
		encoded[i] = EncodeZScore("z", "m", s)
	}
	sort.Slice(encoded, func(i, j int) bool { return bytes.Compare(encoded[i], encoded[j]) < 0 })

	sorted := append([]int64(nil), scores...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	for i, b := range encoded {
		_, _, s, _ := DecodeZScore(b)
		if s != sorted[i] {
			t.Errorf("Position %d: expected score %d, got %d", i, sorted[i], s)
		}
	}
}

func TestQueueSeqOrdering(t *testing.T) {
	front := EncodeQItem("q", QItemSeqInit-1)
	init := EncodeQItem("q", QItemSeqInit)
	back := EncodeQItem("q", QItemSeqInit+1)
	if !(bytes.Compare(front, init) < 0 && bytes.Compare(init, back) < 0) {
		t.Errorf("Expected front < init < back under byte ordering")
	}
	if bytes.Compare(EncodeQItem("q", QBackSeq), EncodeQItem("q", QItemMinSeq)) >= 0 {
		t.Errorf("Pointer slots must sort before all items")
	}
}

func TestCollectionsStayContiguous(t *testing.T) {
	// a shorter name must not interleave with a longer name sharing its prefix
	a := EncodeHash("ab", "zzz")
	b := EncodeHash("abc", "")
	prefix := HashPrefix("ab")
	if !bytes.HasPrefix(a, prefix) || bytes.HasPrefix(b, prefix) {
		t.Errorf("HashPrefix must only match fields of its own hash")
	}
}

func TestCheckName(t *testing.T) {
	if err := CheckName(""); !errors.Is(err, ErrEmptyKey) {
		t.Errorf("Expected ErrEmptyKey, got %v", err)
	}
	if err := CheckName(strings.Repeat("x", MaxNameLen)); err != nil {
		t.Errorf("Expected %d byte name to be valid, got %v", MaxNameLen, err)
	}
	if err := CheckName(strings.Repeat("x", MaxNameLen+1)); !errors.Is(err, ErrKeyTooLong) {
		t.Errorf("Expected ErrKeyTooLong, got %v", err)
	}
}

func TestPrefixEnd(t *testing.T) {
	tests := []struct {
		in, out []byte
	}{
		{[]byte("ab"), []byte("ac")},
		{[]byte{'a', 0xff}, []byte{'b'}},
		{[]byte{0xff, 0xff}, nil},
	}
	for _, tt := range tests {
		if got := PrefixEnd(tt.in); !bytes.Equal(got, tt.out) {
			t.Errorf("PrefixEnd(%q) = %q, expected %q", tt.in, got, tt.out)
		}
	}
}
