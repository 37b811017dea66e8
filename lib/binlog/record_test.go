package binlog

import (
	"bytes"
	"errors"
	"testing"
)

func TestRecordRoundTrip(t *testing.T) {
	records := []Record{
		{Seq: 1, Type: TypeSync, Cmd: CmdKSet, Key: []byte("kname")},
		{Seq: 1 << 40, Type: TypeCopy, Cmd: CmdHSet, Key: []byte{'h', 1, 'n', 'f'}},
		{Seq: 7, Type: TypeCtrl, Cmd: CmdMetaSet, Key: []byte("\x02peer:sync:seq")},
		{Seq: 0, Type: TypeNoop, Cmd: CmdNone, Key: []byte{}},
	}
	for _, rec := range records {
		got, err := Unmarshal(rec.Marshal())
		if err != nil {
			t.Fatalf("Unmarshal(%s) failed: %v", rec.Describe(), err)
		}
		if got.Seq != rec.Seq || got.Type != rec.Type || got.Cmd != rec.Cmd || !bytes.Equal(got.Key, rec.Key) {
			t.Errorf("Round trip mismatch: expected %s, got %s", rec.Describe(), got.Describe())
		}
	}
}

func TestRecordLayout(t *testing.T) {
	rec := Record{Seq: 0x0102, Type: TypeSync, Cmd: CmdZDel, Key: []byte("z")}
	expected := []byte{0x02, 0x01, 0, 0, 0, 0, 0, 0, 1, 6, 'z'}
	if got := rec.Marshal(); !bytes.Equal(got, expected) {
		t.Errorf("Expected %v, got %v", expected, got)
	}
}

func TestUnmarshalMalformed(t *testing.T) {
	valid := Record{Seq: 3, Type: TypeSync, Cmd: CmdKDel, Key: []byte("k")}.Marshal()

	badType := append([]byte(nil), valid...)
	badType[8] = 9
	badCmd := append([]byte(nil), valid...)
	badCmd[9] = 9

	tests := []struct {
		name  string
		input []byte
	}{
		{"empty", nil},
		{"short header", valid[:HeaderLen-1]},
		{"unknown type", badType},
		{"unknown command", badCmd},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Unmarshal(tt.input); !errors.Is(err, ErrMalformed) {
				t.Errorf("Expected ErrMalformed, got %v", err)
			}
		})
	}

	if _, err := Unmarshal(valid[:HeaderLen]); err != nil {
		t.Errorf("Header-only record must decode, got %v", err)
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		rec      Record
		expected string
	}{
		{Record{Seq: 5, Type: TypeSync, Cmd: CmdKSet, Key: []byte("kfoo")}, "5 sync set kfoo"},
		{Record{Seq: 6, Type: TypeMirror, Cmd: CmdQPopFront, Key: []byte("jobs")}, "6 mirror qpop_front jobs"},
		{Record{Seq: 7, Type: TypeCopy, Cmd: CmdHSet, Key: []byte{'h', 1, 'n', 0xff}}, `7 copy hset h\x01n\xff`},
		{Record{Seq: 8, Type: Type(42), Cmd: CmdKDel, Key: []byte("k")}, "8  del k"},
		{Record{Seq: 9, Type: TypeCtrl, Cmd: Cmd(99), Key: []byte(`a\b`)}, `9 control  a\\b`},
	}
	for _, tt := range tests {
		if got := tt.rec.Describe(); got != tt.expected {
			t.Errorf("Expected %q, got %q", tt.expected, got)
		}
	}
}

func TestCommandClasses(t *testing.T) {
	for _, c := range []Cmd{CmdKSet, CmdHSet, CmdZSet, CmdQSet, CmdQPushBack, CmdQPushFront} {
		if !c.IsSetClass() || c.IsDelClass() {
			t.Errorf("%s must be set-class only", c)
		}
	}
	for _, c := range []Cmd{CmdKDel, CmdHDel, CmdZDel, CmdQPopBack, CmdQPopFront} {
		if !c.IsDelClass() || c.IsSetClass() {
			t.Errorf("%s must be delete-class only", c)
		}
	}
	for _, c := range []Cmd{CmdNone, CmdBegin, CmdEnd, CmdMetaSet, CmdMetaDel} {
		if c.IsDelClass() || c.IsSetClass() {
			t.Errorf("%s must not be replayed", c)
		}
	}
}
