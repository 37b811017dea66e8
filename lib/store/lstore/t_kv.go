package lstore

import (
	"fmt"
	"math"
	"strconv"

	"github.com/DazeHolic/lvdb/lib/binlog"
	"github.com/DazeHolic/lvdb/lib/db/iterator"
	"github.com/DazeHolic/lvdb/lib/db/keys"
	"github.com/DazeHolic/lvdb/lib/store"
)

// --------------------------------------------------------------------------
// Strings (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *Store) Get(key string) ([]byte, bool, error) {
	val, ok, err := s.db.Get(keys.EncodeKV(key))
	if err != nil {
		return nil, false, internalError("get", err)
	}
	return val, ok, nil
}

func (s *Store) Set(key string, value []byte, t binlog.Type) (int64, error) {
	if key == "" {
		Logger.Infof("set: empty key!")
		return 0, nil
	}
	tx := binlog.NewTransaction(s.binlogs)
	defer tx.Close()

	k := keys.EncodeKV(key)
	tx.Put(k, value)
	tx.AddLog(t, binlog.CmdKSet, k)
	if err := tx.Commit(); err != nil {
		return -1, internalError("set", err)
	}
	return 1, nil
}

func (s *Store) SetNX(key string, value []byte, t binlog.Type) (int64, error) {
	if key == "" {
		Logger.Infof("setnx: empty key!")
		return 0, nil
	}
	tx := binlog.NewTransaction(s.binlogs)
	defer tx.Close()

	k := keys.EncodeKV(key)
	_, found, err := s.db.Get(k)
	if err != nil {
		return -1, internalError("setnx", err)
	}
	if found {
		return 0, nil
	}
	tx.Put(k, value)
	tx.AddLog(t, binlog.CmdKSet, k)
	if err := tx.Commit(); err != nil {
		return -1, internalError("setnx", err)
	}
	return 1, nil
}

func (s *Store) GetSet(key string, value []byte, t binlog.Type) ([]byte, bool, error) {
	if key == "" {
		Logger.Infof("getset: empty key!")
		return nil, false, nil
	}
	tx := binlog.NewTransaction(s.binlogs)
	defer tx.Close()

	k := keys.EncodeKV(key)
	old, found, err := s.db.Get(k)
	if err != nil {
		return nil, false, internalError("getset", err)
	}
	tx.Put(k, value)
	tx.AddLog(t, binlog.CmdKSet, k)
	if err := tx.Commit(); err != nil {
		return nil, false, internalError("getset", err)
	}
	return old, found, nil
}

func (s *Store) Del(key string, t binlog.Type) (int64, error) {
	tx := binlog.NewTransaction(s.binlogs)
	defer tx.Close()

	k := keys.EncodeKV(key)
	tx.Delete(k)
	tx.AddLog(t, binlog.CmdKDel, k)
	if err := tx.Commit(); err != nil {
		return -1, internalError("del", err)
	}
	return 1, nil
}

func (s *Store) Incr(key string, by int64, t binlog.Type) (int64, error) {
	tx := binlog.NewTransaction(s.binlogs)
	defer tx.Close()

	k := keys.EncodeKV(key)
	old, found, err := s.db.Get(k)
	if err != nil {
		return -1, internalError("incr", err)
	}
	n := by
	if found {
		cur, err := parseInt(old)
		if err != nil {
			return 0, invalidError("incr", err)
		}
		n = cur + by
	}

	tx.Put(k, []byte(strconv.FormatInt(n, 10)))
	tx.AddLog(t, binlog.CmdKSet, k)
	if err := tx.Commit(); err != nil {
		return -1, internalError("incr", err)
	}
	return n, nil
}

func (s *Store) MultiSet(entries []store.Entry, t binlog.Type) (int64, error) {
	tx := binlog.NewTransaction(s.binlogs)
	defer tx.Close()

	for _, e := range entries {
		if e.Key == "" {
			Logger.Infof("multi_set: empty key!")
			return 0, nil
		}
		k := keys.EncodeKV(e.Key)
		tx.Put(k, e.Value)
		tx.AddLog(t, binlog.CmdKSet, k)
	}
	if err := tx.Commit(); err != nil {
		return -1, internalError("multi_set", err)
	}
	return int64(len(entries)), nil
}

func (s *Store) MultiDel(keyList []string, t binlog.Type) (int64, error) {
	tx := binlog.NewTransaction(s.binlogs)
	defer tx.Close()

	for _, key := range keyList {
		k := keys.EncodeKV(key)
		tx.Delete(k)
		tx.AddLog(t, binlog.CmdKDel, k)
	}
	if err := tx.Commit(); err != nil {
		return -1, internalError("multi_del", err)
	}
	return int64(len(keyList)), nil
}

// MaxBitOffset bounds SetBit, a value grows to at most 256 MiB through it
const MaxBitOffset = math.MaxInt32

func (s *Store) SetBit(key string, offset int, on bool, t binlog.Type) (int64, error) {
	if key == "" {
		Logger.Infof("setbit: empty key!")
		return 0, nil
	}
	if offset < 0 || offset > MaxBitOffset {
		return -1, store.NewError(store.RetCInvalidOperation, fmt.Sprintf("setbit: offset %d out of range [0, %d]", offset, MaxBitOffset))
	}
	tx := binlog.NewTransaction(s.binlogs)
	defer tx.Close()

	k := keys.EncodeKV(key)
	val, _, err := s.db.Get(k)
	if err != nil {
		return -1, internalError("setbit", err)
	}

	idx, bit := offset/8, uint(offset%8)
	if idx >= len(val) {
		val = append(val, make([]byte, idx+1-len(val))...)
	}
	var orig int64
	if val[idx]&(1<<bit) != 0 {
		orig = 1
	}
	if on {
		val[idx] |= 1 << bit
	} else {
		val[idx] &^= 1 << bit
	}

	tx.Put(k, val)
	tx.AddLog(t, binlog.CmdKSet, k)
	if err := tx.Commit(); err != nil {
		return -1, internalError("setbit", err)
	}
	return orig, nil
}

func (s *Store) GetBit(key string, offset int) (int64, error) {
	if offset < 0 {
		return -1, store.NewError(store.RetCInvalidOperation, "getbit: negative offset")
	}
	val, _, err := s.Get(key)
	if err != nil {
		return -1, err
	}
	idx, bit := offset/8, uint(offset%8)
	if idx >= len(val) || val[idx]&(1<<bit) == 0 {
		return 0, nil
	}
	return 1, nil
}

func (s *Store) Scan(start, end string, limit int) ([]store.Entry, error) {
	endKey := keys.PrefixEnd([]byte{keys.TagKV})
	if end != "" {
		endKey = keys.EncodeKV(end)
	}
	return s.collectKV(iterator.New(s.db, keys.EncodeKV(start), endKey, limit))
}

func (s *Store) RScan(start, end string, limit int) ([]store.Entry, error) {
	startKey := keys.PrefixEnd([]byte{keys.TagKV})
	if start != "" {
		startKey = keys.EncodeKV(start)
	}
	return s.collectKV(iterator.NewReverse(s.db, startKey, keys.EncodeKV(end), limit))
}

func (s *Store) collectKV(it *iterator.Iterator) ([]store.Entry, error) {
	plain := iterator.NewPlain(it)
	defer plain.Close()

	var out []store.Entry
	for plain.Next() {
		out = append(out, store.Entry{Key: plain.Key(), Value: plain.Value()})
	}
	if err := it.Error(); err != nil {
		return nil, internalError("scan", err)
	}
	return out, nil
}
