package lstore

import (
	"math"
	"strconv"

	"github.com/DazeHolic/lvdb/lib/binlog"
	"github.com/DazeHolic/lvdb/lib/db/iterator"
	"github.com/DazeHolic/lvdb/lib/db/keys"
	"github.com/DazeHolic/lvdb/lib/store"
)

// --------------------------------------------------------------------------
// Hashes (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *Store) HGet(name, field string) ([]byte, bool, error) {
	val, ok, err := s.db.Get(keys.EncodeHash(name, field))
	if err != nil {
		return nil, false, internalError("hget", err)
	}
	return val, ok, nil
}

func (s *Store) HSet(name, field string, value []byte, t binlog.Type) (int64, error) {
	if ok, err := checkName("hset", name); !ok {
		return 0, err
	}
	if field == "" {
		Logger.Infof("hset: empty field!")
		return 0, nil
	}
	tx := binlog.NewTransaction(s.binlogs)
	defer tx.Close()

	ret, err := s.stageHSet(tx, name, field, value, t)
	if err != nil {
		return -1, internalError("hset", err)
	}
	if err := tx.Commit(); err != nil {
		return -1, internalError("hset", err)
	}
	return ret, nil
}

// stageHSet stages one field write and returns 1 for a new field
func (s *Store) stageHSet(tx *binlog.Transaction, name, field string, value []byte, t binlog.Type) (int64, error) {
	hk := keys.EncodeHash(name, field)
	_, found, err := s.db.Get(hk)
	if err != nil {
		return -1, err
	}
	tx.Put(hk, value)
	tx.AddLog(t, binlog.CmdHSet, hk)
	if found {
		return 0, nil
	}
	if _, err := s.stageSize(tx, keys.EncodeHSize(name), 1); err != nil {
		return -1, err
	}
	return 1, nil
}

func (s *Store) HDel(name, field string, t binlog.Type) (int64, error) {
	if ok, err := checkName("hdel", name); !ok {
		return 0, err
	}
	tx := binlog.NewTransaction(s.binlogs)
	defer tx.Close()

	hk := keys.EncodeHash(name, field)
	_, found, err := s.db.Get(hk)
	if err != nil {
		return -1, internalError("hdel", err)
	}
	if !found {
		return 0, nil
	}
	tx.Delete(hk)
	tx.AddLog(t, binlog.CmdHDel, hk)
	if _, err := s.stageSize(tx, keys.EncodeHSize(name), -1); err != nil {
		return -1, internalError("hdel", err)
	}
	if err := tx.Commit(); err != nil {
		return -1, internalError("hdel", err)
	}
	return 1, nil
}

func (s *Store) HIncr(name, field string, by int64, t binlog.Type) (int64, error) {
	if ok, err := checkName("hincr", name); !ok {
		return 0, err
	}
	if field == "" {
		Logger.Infof("hincr: empty field!")
		return 0, nil
	}
	tx := binlog.NewTransaction(s.binlogs)
	defer tx.Close()

	old, found, err := s.db.Get(keys.EncodeHash(name, field))
	if err != nil {
		return -1, internalError("hincr", err)
	}
	n := by
	if found {
		cur, err := parseInt(old)
		if err != nil {
			return 0, invalidError("hincr", err)
		}
		n = cur + by
	}
	if _, err := s.stageHSet(tx, name, field, []byte(strconv.FormatInt(n, 10)), t); err != nil {
		return -1, internalError("hincr", err)
	}
	if err := tx.Commit(); err != nil {
		return -1, internalError("hincr", err)
	}
	return n, nil
}

func (s *Store) HSize(name string) (int64, error) {
	size, err := s.getSize(keys.EncodeHSize(name))
	if err != nil {
		return -1, internalError("hsize", err)
	}
	return size, nil
}

func (s *Store) HClear(name string, t binlog.Type) (int64, error) {
	if ok, err := checkName("hclear", name); !ok {
		return 0, err
	}
	tx := binlog.NewTransaction(s.binlogs)
	defer tx.Close()

	prefix := keys.HashPrefix(name)
	it := iterator.New(s.db, prefix, keys.PrefixEnd(prefix), math.MaxInt)
	fields := iterator.NewHashField(it, name)
	var n int64
	for fields.Next() {
		hk := keys.EncodeHash(name, fields.Field())
		tx.Delete(hk)
		tx.AddLog(t, binlog.CmdHDel, hk)
		n++
	}
	err := it.Error()
	_ = fields.Close()
	if err != nil {
		return -1, internalError("hclear", err)
	}
	if n == 0 {
		return 0, nil
	}

	tx.Delete(keys.EncodeHSize(name))
	if err := tx.Commit(); err != nil {
		return -1, internalError("hclear", err)
	}
	return n, nil
}

func (s *Store) HScan(name, start, end string, limit int) ([]store.Entry, error) {
	endKey := keys.PrefixEnd(keys.HashPrefix(name))
	if end != "" {
		endKey = keys.EncodeHash(name, end)
	}
	return s.collectHash(iterator.New(s.db, keys.EncodeHash(name, start), endKey, limit), name)
}

func (s *Store) HRScan(name, start, end string, limit int) ([]store.Entry, error) {
	startKey := keys.PrefixEnd(keys.HashPrefix(name))
	if start != "" {
		startKey = keys.EncodeHash(name, start)
	}
	return s.collectHash(iterator.NewReverse(s.db, startKey, keys.EncodeHash(name, end), limit), name)
}

func (s *Store) collectHash(it *iterator.Iterator, name string) ([]store.Entry, error) {
	fields := iterator.NewHashField(it, name)
	defer fields.Close()

	var out []store.Entry
	for fields.Next() {
		out = append(out, store.Entry{Key: fields.Field(), Value: fields.Value()})
	}
	if err := it.Error(); err != nil {
		return nil, internalError("hscan", err)
	}
	return out, nil
}

func (s *Store) HList(start, end string, limit int) ([]string, error) {
	return s.listNames(keys.TagHSize, keys.DecodeHSize, start, end, limit, false)
}

func (s *Store) HRList(start, end string, limit int) ([]string, error) {
	return s.listNames(keys.TagHSize, keys.DecodeHSize, start, end, limit, true)
}
