package replication

import (
	"fmt"
	"strconv"

	"github.com/DazeHolic/lvdb/lib/binlog"
	"github.com/DazeHolic/lvdb/lib/db/keys"
	"github.com/DazeHolic/lvdb/lib/store"
)

// LocalApply replays records on a store. Every write is tagged binlog.TypeMirror,
// so the target logs nothing and never forwards a replayed record.
type LocalApply struct {
	target store.IStore
}

func NewLocalApply(target store.IStore) *LocalApply {
	return &LocalApply{target: target}
}

// Apply re-executes rec on the target. Commands without a data mutation are ignored.
func (l *LocalApply) Apply(rec binlog.Record, value []byte) error {
	if err := l.apply(rec, value); err != nil {
		return fmt.Errorf("apply %s: %w", rec.Describe(), err)
	}
	return nil
}

func (l *LocalApply) apply(rec binlog.Record, value []byte) error {
	const t = binlog.TypeMirror

	switch rec.Cmd {
	case binlog.CmdKSet, binlog.CmdKDel:
		key, err := keys.DecodeKV(rec.Key)
		if err != nil {
			return err
		}
		if rec.Cmd == binlog.CmdKSet {
			_, err = l.target.Set(key, value, t)
		} else {
			_, err = l.target.Del(key, t)
		}
		return err

	case binlog.CmdHSet, binlog.CmdHDel:
		name, field, err := keys.DecodeHash(rec.Key)
		if err != nil {
			return err
		}
		if rec.Cmd == binlog.CmdHSet {
			_, err = l.target.HSet(name, field, value, t)
		} else {
			_, err = l.target.HDel(name, field, t)
		}
		return err

	case binlog.CmdZSet, binlog.CmdZDel:
		name, member, err := keys.DecodeZSet(rec.Key)
		if err != nil {
			return err
		}
		if rec.Cmd == binlog.CmdZDel {
			_, err = l.target.ZDel(name, member, t)
			return err
		}
		score, err := strconv.ParseInt(string(value), 10, 64)
		if err != nil {
			return fmt.Errorf("%w: score %q", keys.ErrMalformed, value)
		}
		_, err = l.target.ZSet(name, member, score, t)
		return err

	case binlog.CmdQSet:
		name, seq, err := keys.DecodeQItem(rec.Key)
		if err != nil {
			return err
		}
		_, err = l.target.QSetBySeq(name, seq, value, t)
		return err

	case binlog.CmdQPushBack, binlog.CmdQPushFront:
		name, seq, err := keys.DecodeQItem(rec.Key)
		if err != nil {
			return err
		}
		if seq < keys.QItemMinSeq || seq > keys.QItemMaxSeq {
			return fmt.Errorf("%w: queue item seq %d", keys.ErrMalformed, seq)
		}
		if rec.Cmd == binlog.CmdQPushBack {
			_, err = l.target.QPushBack(name, value, t)
		} else {
			_, err = l.target.QPushFront(name, value, t)
		}
		return err

	case binlog.CmdQPopBack:
		_, _, err := l.target.QPopBack(string(rec.Key), t)
		return err

	case binlog.CmdQPopFront:
		_, _, err := l.target.QPopFront(string(rec.Key), t)
		return err

	default:
		Logger.Debugf("apply: skipping %s", rec.Describe())
		return nil
	}
}
