package util

import (
	"bytes"
	"testing"
)

// sliceIterator is a minimal db.Iterator over sorted pairs
type sliceIterator struct {
	keys, values [][]byte
	pos          int
}

func (s *sliceIterator) SeekGE([]byte) bool { panic("not used") }
func (s *sliceIterator) SeekLT([]byte) bool { panic("not used") }
func (s *sliceIterator) First() bool        { s.pos = 0; return s.Valid() }
func (s *sliceIterator) Last() bool         { s.pos = len(s.keys) - 1; return s.Valid() }
func (s *sliceIterator) Next() bool         { s.pos++; return s.Valid() }
func (s *sliceIterator) Prev() bool         { s.pos--; return s.Valid() }
func (s *sliceIterator) Valid() bool        { return s.pos >= 0 && s.pos < len(s.keys) }
func (s *sliceIterator) Key() []byte        { return s.keys[s.pos] }
func (s *sliceIterator) Value() []byte      { return s.values[s.pos] }
func (s *sliceIterator) Error() error       { return nil }
func (s *sliceIterator) Close() error       { return nil }

func TestSnapshotRoundTrip(t *testing.T) {
	it := &sliceIterator{
		keys:   [][]byte{{}, []byte("a"), {0x00, 0xff}},
		values: [][]byte{[]byte("empty key"), {}, []byte("binary")},
	}

	var buf bytes.Buffer
	if err := WriteSnapshot(&buf, it); err != nil {
		t.Fatalf("WriteSnapshot failed: %v", err)
	}

	var gotKeys, gotValues [][]byte
	err := ReadSnapshot(&buf, func(key, value []byte) error {
		gotKeys = append(gotKeys, key)
		gotValues = append(gotValues, value)
		return nil
	})
	if err != nil {
		t.Fatalf("ReadSnapshot failed: %v", err)
	}

	if len(gotKeys) != len(it.keys) {
		t.Fatalf("Expected %d entries, got %d", len(it.keys), len(gotKeys))
	}
	for i := range it.keys {
		if !bytes.Equal(gotKeys[i], it.keys[i]) || !bytes.Equal(gotValues[i], it.values[i]) {
			t.Errorf("Entry %d mismatch: %q=%q", i, gotKeys[i], gotValues[i])
		}
	}
}

func TestSnapshotRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{"empty", nil},
		{"bad magic", []byte("NOTASNAP\x01\x00")},
		{"bad version", []byte("LVDBSNAP\x09\x00")},
		{"bad marker", []byte("LVDBSNAP\x01\x07")},
		{"truncated entry", []byte("LVDBSNAP\x01\x01\x05\x00\x00\x00ab")},
		{"missing end marker", []byte("LVDBSNAP\x01")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ReadSnapshot(bytes.NewReader(tt.input), func(_, _ []byte) error { return nil })
			if err == nil {
				t.Errorf("Expected an error")
			}
		})
	}
}

func TestSizeSample(t *testing.T) {
	s := NewSizeSample()
	if s.EstimateEntrySize(10) != 10 {
		t.Errorf("An empty sample should only report the overhead")
	}

	for i := 0; i < 99; i++ {
		s.Add(100)
	}
	s.Add(100_000)

	if s.Count() != 100 {
		t.Errorf("Expected 100 samples, got %d", s.Count())
	}
	if s.Mean() != 1099 {
		t.Errorf("Expected mean 1099, got %d", s.Mean())
	}
	if s.Median() != 100 {
		t.Errorf("Expected median 100, got %d", s.Median())
	}
	// (100*60 + 1099*40) / 100 + 10
	if got := s.EstimateEntrySize(10); got != 509 {
		t.Errorf("Expected estimate 509, got %d", got)
	}
}

func TestDistributionStats(t *testing.T) {
	even := NewDistributionStats([]float64{10, 10, 10})
	if even.DistributionQuality != 1 {
		t.Errorf("Expected perfect quality for an even distribution, got %f", even.DistributionQuality)
	}
	skewed := NewDistributionStats([]float64{0, 0, 30})
	if skewed.DistributionQuality >= even.DistributionQuality {
		t.Errorf("Expected skewed distribution to score lower")
	}
}
