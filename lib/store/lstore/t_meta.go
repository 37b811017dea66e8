package lstore

import (
	"math"

	"github.com/DazeHolic/lvdb/lib/binlog"
	"github.com/DazeHolic/lvdb/lib/db/iterator"
	"github.com/DazeHolic/lvdb/lib/db/keys"
)

// --------------------------------------------------------------------------
// Meta (docu see store/interface.go)
// --------------------------------------------------------------------------

// Meta keys hold bookkeeping such as replication cursors. Their writes are logged
// as control records, which followers never replay.

func (s *Store) MetaGet(key string) ([]byte, bool, error) {
	val, ok, err := s.db.Get(keys.EncodeMeta(key))
	if err != nil {
		return nil, false, internalError("meta_get", err)
	}
	return val, ok, nil
}

func (s *Store) MetaSet(key string, value []byte) (int64, error) {
	tx := binlog.NewTransaction(s.binlogs)
	defer tx.Close()

	k := keys.EncodeMeta(key)
	tx.Put(k, value)
	tx.AddLog(binlog.TypeCtrl, binlog.CmdMetaSet, k)
	if err := tx.Commit(); err != nil {
		return -1, internalError("meta_set", err)
	}
	return 1, nil
}

func (s *Store) MetaDel(key string) (int64, error) {
	tx := binlog.NewTransaction(s.binlogs)
	defer tx.Close()

	k := keys.EncodeMeta(key)
	tx.Delete(k)
	tx.AddLog(binlog.TypeCtrl, binlog.CmdMetaDel, k)
	if err := tx.Commit(); err != nil {
		return -1, internalError("meta_del", err)
	}
	return 1, nil
}

func (s *Store) MetaList() ([]string, error) {
	tag := []byte{keys.TagMeta}
	it := iterator.New(s.db, tag, keys.PrefixEnd(tag), math.MaxInt)
	names := iterator.NewNames(it, keys.DecodeMeta)
	defer names.Close()

	var out []string
	for names.Next() {
		out = append(out, names.Name())
	}
	if err := it.Error(); err != nil {
		return nil, internalError("meta_list", err)
	}
	return out, nil
}

// MetaPut writes a meta key without a binlog record. It is meant for local state such
// as replication cursors, which would otherwise grow the log they track.
func (s *Store) MetaPut(key string, value []byte) error {
	tx := binlog.NewTransaction(s.binlogs)
	defer tx.Close()

	tx.Put(keys.EncodeMeta(key), value)
	if err := tx.Commit(); err != nil {
		return internalError("meta_put", err)
	}
	return nil
}

// MetaRemove is the unlogged counterpart of MetaDel
func (s *Store) MetaRemove(key string) error {
	tx := binlog.NewTransaction(s.binlogs)
	defer tx.Close()

	tx.Delete(keys.EncodeMeta(key))
	if err := tx.Commit(); err != nil {
		return internalError("meta_remove", err)
	}
	return nil
}
