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
// Sorted sets (docu see store/interface.go)
// --------------------------------------------------------------------------

// A member is stored twice: s|name|member -> decimal score for lookups and
// z|name|score|member -> "" for ordered scans.

func (s *Store) ZGet(name, member string) (int64, bool, error) {
	score, found, err := s.zscore(name, member)
	if err != nil {
		return 0, false, internalError("zget", err)
	}
	return score, found, nil
}

func (s *Store) zscore(name, member string) (int64, bool, error) {
	val, found, err := s.db.Get(keys.EncodeZSet(name, member))
	if err != nil || !found {
		return 0, false, err
	}
	score, err := strconv.ParseInt(string(val), 10, 64)
	if err != nil {
		return 0, false, err
	}
	return score, true, nil
}

func (s *Store) ZSet(name, member string, score int64, t binlog.Type) (int64, error) {
	if ok, err := checkName("zset", name); !ok {
		return 0, err
	}
	if member == "" {
		Logger.Infof("zset: empty member!")
		return 0, nil
	}
	tx := binlog.NewTransaction(s.binlogs)
	defer tx.Close()

	ret, err := s.stageZSet(tx, name, member, score, t)
	if err != nil {
		return -1, internalError("zset", err)
	}
	if err := tx.Commit(); err != nil {
		return -1, internalError("zset", err)
	}
	return ret, nil
}

// stageZSet stages a score write and returns 1 for a new member
func (s *Store) stageZSet(tx *binlog.Transaction, name, member string, score int64, t binlog.Type) (int64, error) {
	old, found, err := s.zscore(name, member)
	if err != nil {
		return -1, err
	}
	if found {
		if old == score {
			return 0, nil
		}
		tx.Delete(keys.EncodeZScore(name, member, old))
	}

	sk := keys.EncodeZSet(name, member)
	tx.Put(sk, []byte(strconv.FormatInt(score, 10)))
	tx.Put(keys.EncodeZScore(name, member, score), nil)
	tx.AddLog(t, binlog.CmdZSet, sk)
	if found {
		return 0, nil
	}
	if _, err := s.stageSize(tx, keys.EncodeZSize(name), 1); err != nil {
		return -1, err
	}
	return 1, nil
}

func (s *Store) ZDel(name, member string, t binlog.Type) (int64, error) {
	if ok, err := checkName("zdel", name); !ok {
		return 0, err
	}
	tx := binlog.NewTransaction(s.binlogs)
	defer tx.Close()

	old, found, err := s.zscore(name, member)
	if err != nil {
		return -1, internalError("zdel", err)
	}
	if !found {
		return 0, nil
	}
	sk := keys.EncodeZSet(name, member)
	tx.Delete(sk)
	tx.Delete(keys.EncodeZScore(name, member, old))
	tx.AddLog(t, binlog.CmdZDel, sk)
	if _, err := s.stageSize(tx, keys.EncodeZSize(name), -1); err != nil {
		return -1, internalError("zdel", err)
	}
	if err := tx.Commit(); err != nil {
		return -1, internalError("zdel", err)
	}
	return 1, nil
}

func (s *Store) ZIncr(name, member string, by int64, t binlog.Type) (int64, error) {
	if ok, err := checkName("zincr", name); !ok {
		return 0, err
	}
	if member == "" {
		Logger.Infof("zincr: empty member!")
		return 0, nil
	}
	tx := binlog.NewTransaction(s.binlogs)
	defer tx.Close()

	old, _, err := s.zscore(name, member)
	if err != nil {
		return -1, internalError("zincr", err)
	}
	score := old + by
	if _, err := s.stageZSet(tx, name, member, score, t); err != nil {
		return -1, internalError("zincr", err)
	}
	if err := tx.Commit(); err != nil {
		return -1, internalError("zincr", err)
	}
	return score, nil
}

func (s *Store) ZSize(name string) (int64, error) {
	size, err := s.getSize(keys.EncodeZSize(name))
	if err != nil {
		return -1, internalError("zsize", err)
	}
	return size, nil
}

// --------------------------------------------------------------------------
// Ordered access
// --------------------------------------------------------------------------

// scoreIterator walks the whole score index of a sorted set
func (s *Store) scoreIterator(name string, reverse bool, limit int) *iterator.ScoredMember {
	prefix := keys.ZScorePrefix(name)
	if reverse {
		return iterator.NewScoredMember(iterator.NewReverse(s.db, keys.PrefixEnd(prefix), prefix, limit), name)
	}
	return iterator.NewScoredMember(iterator.New(s.db, prefix, keys.PrefixEnd(prefix), limit), name)
}

func (s *Store) ZRank(name, member string) (int64, bool, error) {
	return s.rank(name, member, false)
}

func (s *Store) ZRRank(name, member string) (int64, bool, error) {
	return s.rank(name, member, true)
}

func (s *Store) rank(name, member string, reverse bool) (int64, bool, error) {
	members := s.scoreIterator(name, reverse, math.MaxInt)
	defer members.Close()

	var rank int64
	for members.Next() {
		if members.Member() == member {
			return rank, true, nil
		}
		rank++
	}
	if err := members.Error(); err != nil {
		return -1, false, internalError("zrank", err)
	}
	return 0, false, nil
}

func (s *Store) ZRange(name string, offset, limit int) ([]store.Entry, error) {
	return s.zrange(name, offset, limit, false)
}

func (s *Store) ZRRange(name string, offset, limit int) ([]store.Entry, error) {
	return s.zrange(name, offset, limit, true)
}

func (s *Store) zrange(name string, offset, limit int, reverse bool) ([]store.Entry, error) {
	if offset < 0 || limit <= 0 {
		return nil, nil
	}
	members := s.scoreIterator(name, reverse, offset+limit)
	defer members.Close()

	var out []store.Entry
	for i := 0; members.Next(); i++ {
		if i < offset {
			continue
		}
		out = append(out, store.Entry{Key: members.Member(), Score: members.Score()})
	}
	if err := members.Error(); err != nil {
		return nil, internalError("zrange", err)
	}
	return out, nil
}

func (s *Store) ZScan(name, member string, scoreStart, scoreEnd int64, limit int) ([]store.Entry, error) {
	start := keys.EncodeZScore(name, member, scoreStart)
	endKey := keys.PrefixEnd(keys.EncodeZScore(name, "", scoreEnd))

	members := iterator.NewScoredMember(iterator.New(s.db, start, endKey, limit), name)
	defer members.Close()

	var out []store.Entry
	for members.Next() {
		if members.Score() > scoreEnd {
			break
		}
		out = append(out, store.Entry{Key: members.Member(), Score: members.Score()})
	}
	if err := members.Error(); err != nil {
		return nil, internalError("zscan", err)
	}
	return out, nil
}

func (s *Store) ZRScan(name, member string, scoreStart, scoreEnd int64, limit int) ([]store.Entry, error) {
	var start []byte
	if member == "" || limit <= 0 {
		// every member with scoreStart is included
		start = keys.PrefixEnd(keys.EncodeZScore(name, "", scoreStart))
	} else {
		// resume strictly below (member, scoreStart)
		start = keys.EncodeZScore(name, member, scoreStart)
		limit++
	}
	endKey := keys.EncodeZScore(name, "", scoreEnd)

	members := iterator.NewScoredMember(iterator.NewReverse(s.db, start, endKey, limit), name)
	defer members.Close()

	var out []store.Entry
	for members.Next() {
		if members.Score() < scoreEnd {
			break
		}
		if member != "" && members.Score() == scoreStart && members.Member() == member {
			continue
		}
		out = append(out, store.Entry{Key: members.Member(), Score: members.Score()})
	}
	if err := members.Error(); err != nil {
		return nil, internalError("zrscan", err)
	}
	return out, nil
}

func (s *Store) ZList(start, end string, limit int) ([]string, error) {
	return s.listNames(keys.TagZSize, keys.DecodeZSize, start, end, limit, false)
}

func (s *Store) ZRList(start, end string, limit int) ([]string, error) {
	return s.listNames(keys.TagZSize, keys.DecodeZSize, start, end, limit, true)
}
