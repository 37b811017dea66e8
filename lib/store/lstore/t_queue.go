package lstore

import (
	"errors"
	"fmt"
	"math"

	"github.com/DazeHolic/lvdb/lib/binlog"
	"github.com/DazeHolic/lvdb/lib/db/iterator"
	"github.com/DazeHolic/lvdb/lib/db/keys"
)

var (
	// ErrQueueFull is returned when a push would leave the item sequence range
	ErrQueueFull = errors.New("queue is full")
	// ErrQueueCorrupt is returned when the pointers of a queue do not match its items (see QFix)
	ErrQueueCorrupt = errors.New("queue pointers are corrupt")
)

// --------------------------------------------------------------------------
// Queues (docu see store/interface.go)
// --------------------------------------------------------------------------

// A queue stores its items under q|name|seq. The slots QFrontSeq and QBackSeq
// of the same prefix hold the seq of the first and last item.

// slot reads the front or back pointer of a queue
func (s *Store) slot(name string, which uint64) (uint64, error) {
	v, ok, err := s.db.Get(keys.EncodeQItem(name, which))
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrQueueCorrupt
	}
	seq, err := keys.DecodeInt64(v)
	if err != nil {
		return 0, ErrQueueCorrupt
	}
	return uint64(seq), nil
}

func stageSlot(tx *binlog.Transaction, name string, which, seq uint64) {
	tx.Put(keys.EncodeQItem(name, which), keys.EncodeInt64(int64(seq)))
}

func queueError(op string, err error) error {
	if errors.Is(err, ErrQueueFull) || errors.Is(err, ErrQueueCorrupt) {
		return invalidError(op, err)
	}
	return internalError(op, err)
}

func (s *Store) QSize(name string) (int64, error) {
	size, err := s.getSize(keys.EncodeQSize(name))
	if err != nil {
		return -1, internalError("qsize", err)
	}
	return size, nil
}

func (s *Store) QFront(name string) ([]byte, bool, error) {
	return s.QGet(name, 0)
}

func (s *Store) QBack(name string) ([]byte, bool, error) {
	return s.QGet(name, -1)
}

func (s *Store) QPushFront(name string, item []byte, t binlog.Type) (int64, error) {
	return s.qpush(name, item, true, t)
}

func (s *Store) QPushBack(name string, item []byte, t binlog.Type) (int64, error) {
	return s.qpush(name, item, false, t)
}

func (s *Store) qpush(name string, item []byte, front bool, t binlog.Type) (int64, error) {
	op, cmd := "qpush_back", binlog.CmdQPushBack
	if front {
		op, cmd = "qpush_front", binlog.CmdQPushFront
	}
	if ok, err := checkName(op, name); !ok {
		return 0, err
	}
	tx := binlog.NewTransaction(s.binlogs)
	defer tx.Close()

	size, err := s.getSize(keys.EncodeQSize(name))
	if err != nil {
		return -1, internalError(op, err)
	}

	seq := keys.QItemSeqInit
	if size > 0 {
		if front {
			cur, err := s.slot(name, keys.QFrontSeq)
			if err != nil {
				return -1, queueError(op, err)
			}
			seq = cur - 1
		} else {
			cur, err := s.slot(name, keys.QBackSeq)
			if err != nil {
				return -1, queueError(op, err)
			}
			seq = cur + 1
		}
	}
	if seq < keys.QItemMinSeq || seq > keys.QItemMaxSeq {
		return -1, queueError(op, ErrQueueFull)
	}

	itemKey := keys.EncodeQItem(name, seq)
	tx.Put(itemKey, item)
	if front || size == 0 {
		stageSlot(tx, name, keys.QFrontSeq, seq)
	}
	if !front || size == 0 {
		stageSlot(tx, name, keys.QBackSeq, seq)
	}
	newSize, err := s.stageSize(tx, keys.EncodeQSize(name), 1)
	if err != nil {
		return -1, internalError(op, err)
	}
	tx.AddLog(t, cmd, itemKey)
	if err := tx.Commit(); err != nil {
		return -1, internalError(op, err)
	}
	return newSize, nil
}

func (s *Store) QPopFront(name string, t binlog.Type) ([]byte, bool, error) {
	return s.qpop(name, true, t)
}

func (s *Store) QPopBack(name string, t binlog.Type) ([]byte, bool, error) {
	return s.qpop(name, false, t)
}

func (s *Store) qpop(name string, front bool, t binlog.Type) ([]byte, bool, error) {
	op, cmd, which := "qpop_back", binlog.CmdQPopBack, keys.QBackSeq
	if front {
		op, cmd, which = "qpop_front", binlog.CmdQPopFront, keys.QFrontSeq
	}
	if ok, err := checkName(op, name); !ok {
		return nil, false, err
	}
	tx := binlog.NewTransaction(s.binlogs)
	defer tx.Close()

	size, err := s.getSize(keys.EncodeQSize(name))
	if err != nil {
		return nil, false, internalError(op, err)
	}
	if size == 0 {
		return nil, false, nil
	}
	seq, err := s.slot(name, which)
	if err != nil {
		return nil, false, queueError(op, err)
	}
	itemKey := keys.EncodeQItem(name, seq)
	item, found, err := s.db.Get(itemKey)
	if err != nil {
		return nil, false, internalError(op, err)
	}
	if !found {
		return nil, false, queueError(op, fmt.Errorf("%w: item %d missing", ErrQueueCorrupt, seq))
	}

	tx.Delete(itemKey)
	newSize, err := s.stageSize(tx, keys.EncodeQSize(name), -1)
	if err != nil {
		return nil, false, internalError(op, err)
	}
	switch {
	case newSize == 0:
		tx.Delete(keys.EncodeQItem(name, keys.QFrontSeq))
		tx.Delete(keys.EncodeQItem(name, keys.QBackSeq))
	case front:
		stageSlot(tx, name, keys.QFrontSeq, seq+1)
	default:
		stageSlot(tx, name, keys.QBackSeq, seq-1)
	}
	// pops are replayed by name, the follower pops its own end
	tx.AddLog(t, cmd, []byte(name))
	if err := tx.Commit(); err != nil {
		return nil, false, internalError(op, err)
	}
	return item, true, nil
}

// seqOf maps an index (negative counts from the back) to a sequence number
func (s *Store) seqOf(name string, index int64) (uint64, bool, error) {
	size, err := s.getSize(keys.EncodeQSize(name))
	if err != nil || size == 0 {
		return 0, false, err
	}
	if index < 0 {
		index += size
	}
	if index < 0 || index >= size {
		return 0, false, nil
	}
	front, err := s.slot(name, keys.QFrontSeq)
	if err != nil {
		return 0, false, err
	}
	return front + uint64(index), true, nil
}

func (s *Store) QGet(name string, index int64) ([]byte, bool, error) {
	seq, ok, err := s.seqOf(name, index)
	if err != nil {
		return nil, false, queueError("qget", err)
	}
	if !ok {
		return nil, false, nil
	}
	item, found, err := s.db.Get(keys.EncodeQItem(name, seq))
	if err != nil {
		return nil, false, internalError("qget", err)
	}
	return item, found, nil
}

func (s *Store) QSet(name string, index int64, item []byte, t binlog.Type) (int64, error) {
	if ok, err := checkName("qset", name); !ok {
		return 0, err
	}
	tx := binlog.NewTransaction(s.binlogs)
	defer tx.Close()

	seq, ok, err := s.seqOf(name, index)
	if err != nil {
		return -1, queueError("qset", err)
	}
	if !ok {
		return 0, nil
	}
	return s.commitQSet(tx, name, seq, item, t)
}

func (s *Store) QSetBySeq(name string, seq uint64, item []byte, t binlog.Type) (int64, error) {
	if ok, err := checkName("qset", name); !ok {
		return 0, err
	}
	tx := binlog.NewTransaction(s.binlogs)
	defer tx.Close()

	size, err := s.getSize(keys.EncodeQSize(name))
	if err != nil {
		return -1, internalError("qset", err)
	}
	if size == 0 {
		return 0, nil
	}
	front, err := s.slot(name, keys.QFrontSeq)
	if err != nil {
		return -1, queueError("qset", err)
	}
	back, err := s.slot(name, keys.QBackSeq)
	if err != nil {
		return -1, queueError("qset", err)
	}
	if seq < front || seq > back {
		return 0, nil
	}
	return s.commitQSet(tx, name, seq, item, t)
}

// commitQSet writes one item over an existing slot and commits tx
func (s *Store) commitQSet(tx *binlog.Transaction, name string, seq uint64, item []byte, t binlog.Type) (int64, error) {
	itemKey := keys.EncodeQItem(name, seq)
	tx.Put(itemKey, item)
	tx.AddLog(t, binlog.CmdQSet, itemKey)
	if err := tx.Commit(); err != nil {
		return -1, internalError("qset", err)
	}
	return 1, nil
}

func (s *Store) QSlice(name string, begin, end int64) ([][]byte, error) {
	size, err := s.getSize(keys.EncodeQSize(name))
	if err != nil {
		return nil, internalError("qslice", err)
	}
	if begin < 0 {
		begin += size
	}
	if end < 0 {
		end += size
	}
	begin = max(begin, 0)
	end = min(end, size-1)
	if size == 0 || begin > end {
		return nil, nil
	}

	front, err := s.slot(name, keys.QFrontSeq)
	if err != nil {
		return nil, queueError("qslice", err)
	}
	first, last := front+uint64(begin), front+uint64(end)
	it := iterator.New(s.db, keys.EncodeQItem(name, first-1), keys.EncodeQItem(name, last), int(end-begin+1))
	items := iterator.NewQueueItem(it, name)
	defer items.Close()

	var out [][]byte
	for items.Next() {
		out = append(out, items.Value())
	}
	if err := it.Error(); err != nil {
		return nil, internalError("qslice", err)
	}
	return out, nil
}

func (s *Store) QList(start, end string, limit int) ([]string, error) {
	return s.listNames(keys.TagQSize, keys.DecodeQSize, start, end, limit, false)
}

func (s *Store) QRList(start, end string, limit int) ([]string, error) {
	return s.listNames(keys.TagQSize, keys.DecodeQSize, start, end, limit, true)
}

func (s *Store) QFix(name string) error {
	if ok, err := checkName("qfix", name); !ok {
		return err
	}
	tx := binlog.NewTransaction(s.binlogs)
	defer tx.Close()

	prefix := keys.QueuePrefix(name)
	it := iterator.New(s.db, prefix, keys.PrefixEnd(prefix), math.MaxInt)
	items := iterator.NewQueueItem(it, name)

	var count int64
	var front, back uint64
	for items.Next() {
		if count == 0 {
			front = items.Seq()
		}
		back = items.Seq()
		count++
	}
	err := it.Error()
	_ = items.Close()
	if err != nil {
		return internalError("qfix", err)
	}

	if count == 0 {
		tx.Delete(keys.EncodeQItem(name, keys.QFrontSeq))
		tx.Delete(keys.EncodeQItem(name, keys.QBackSeq))
		tx.Delete(keys.EncodeQSize(name))
	} else {
		stageSlot(tx, name, keys.QFrontSeq, front)
		stageSlot(tx, name, keys.QBackSeq, back)
		tx.Put(keys.EncodeQSize(name), keys.EncodeInt64(count))
	}
	if err := tx.Commit(); err != nil {
		return internalError("qfix", err)
	}
	Logger.Infof("qfix %s: size=%d, front=%d, back=%d", name, count, front, back)
	return nil
}
