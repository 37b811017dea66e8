package replication

import (
	"errors"
	"testing"

	"github.com/DazeHolic/lvdb/lib/binlog"
	"github.com/DazeHolic/lvdb/lib/db/keys"
)

func TestLocalApplyErrors(t *testing.T) {
	target := NewLocalApply(newStore(t))

	tests := []struct {
		name  string
		rec   binlog.Record
		value []byte
	}{
		{"malformed kv key", binlog.Record{Cmd: binlog.CmdKSet, Key: []byte("xkey")}, []byte("v")},
		{"malformed hash key", binlog.Record{Cmd: binlog.CmdHDel, Key: []byte{keys.TagHash, 9, 'a'}}, nil},
		{"score not a number", binlog.Record{Cmd: binlog.CmdZSet, Key: keys.EncodeZSet("z", "m")}, []byte("high")},
		{"push of a pointer slot", binlog.Record{Cmd: binlog.CmdQPushBack, Key: keys.EncodeQItem("q", keys.QBackSeq)}, []byte("v")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := target.Apply(tt.rec, tt.value)
			if !errors.Is(err, keys.ErrMalformed) {
				t.Errorf("Expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestLocalApplyIgnoresControlRecords(t *testing.T) {
	follower := newStore(t)
	target := NewLocalApply(follower)

	for _, cmd := range []binlog.Cmd{binlog.CmdMetaSet, binlog.CmdBegin, binlog.CmdNone} {
		rec := binlog.Record{Type: binlog.TypeCtrl, Cmd: cmd, Key: keys.EncodeMeta("m")}
		if err := target.Apply(rec, []byte("v")); err != nil {
			t.Errorf("Apply(%s) returned %v", cmd, err)
		}
	}
	if names, _ := follower.MetaList(); len(names) != 0 {
		t.Errorf("Control records must not be applied, found meta %v", names)
	}
}

func TestNullProcessor(t *testing.T) {
	var p Processor = NullProcessor{}
	if err := p.Apply(binlog.Record{Cmd: binlog.CmdKSet}, []byte("v")); err != nil {
		t.Errorf("NullProcessor returned %v", err)
	}
}
