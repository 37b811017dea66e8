package binlog

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/DazeHolic/lvdb/lib/db"
	"github.com/DazeHolic/lvdb/lib/db/keys"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("binlog")

const (
	// DefaultCapacity is the number of records kept when no capacity is configured
	DefaultCapacity = 20_000_000

	// records deleted per write batch by the retention goroutine and Flush
	deleteBatchSize = 1000

	// time Close waits for the retention goroutine
	closeTimeout = 100 * 10 * time.Millisecond
)

// Queue is the binlog: a bounded, monotonically numbered log of mutations stored
// in the same engine as the data it describes (tag 0x01 | seq).
//
// Writers stage data mutations and log records through a Transaction, which holds
// the queue's exclusive section. A commit writes both in one native batch, so a
// record exists if and only if its mutation was applied.
//
// A background goroutine keeps the number of records near capacity by deleting
// the oldest ones.
type Queue struct {
	mu sync.Mutex

	kvdb     db.KVDB
	enabled  bool
	capacity uint64

	minSeq  atomic.Uint64
	lastSeq atomic.Uint64

	// guarded by mu
	tranSeq uint64
	batch   *db.Batch

	// retention
	slack    uint64
	interval time.Duration
	quit     atomic.Bool
	done     chan struct{}

	metrics *queueMetrics
}

// NewQueue opens the binlog stored in kvdb. A disabled queue never writes records
// but still commits data through transactions.
func NewQueue(kvdb db.KVDB, enabled bool, capacity uint64) *Queue {
	return newQueue(kvdb, enabled, capacity, 10000, 50*time.Millisecond)
}

func newQueue(kvdb db.KVDB, enabled bool, capacity, slack uint64, interval time.Duration) *Queue {
	if capacity == 0 {
		capacity = DefaultCapacity
	}
	q := &Queue{
		kvdb:     kvdb,
		enabled:  enabled,
		capacity: capacity,
		batch:    db.NewBatch(),
		slack:    slack,
		interval: interval,
		done:     make(chan struct{}),
	}
	q.metrics = newQueueMetrics(q)

	if rec, found, err := q.FindLast(); err != nil {
		Logger.Errorf("failed to read last binlog record: %v", err)
	} else if found {
		q.lastSeq.Store(rec.Seq)
	}

	var minSeq uint64
	if last := q.lastSeq.Load(); last > capacity {
		minSeq = last - capacity
	}
	if rec, found, err := q.FindNext(minSeq); err == nil && found {
		minSeq = rec.Seq
	}
	q.minSeq.Store(minSeq)

	if enabled {
		Logger.Infof("binlogs capacity: %d, min: %d, max: %d", capacity, q.MinSeq(), q.MaxSeq())
		go q.retentionLoop()
	} else {
		close(q.done)
	}
	return q
}

// --------------------------------------------------------------------------
// Transaction support (called with mu held)
// --------------------------------------------------------------------------

func (q *Queue) begin() {
	q.tranSeq = q.lastSeq.Load()
	q.batch.Reset()
}

func (q *Queue) rollback() {
	q.tranSeq = 0
}

func (q *Queue) addLog(t Type, c Cmd, key []byte) {
	if !q.enabled || t == TypeMirror {
		return
	}
	q.tranSeq++
	rec := Record{Seq: q.tranSeq, Type: t, Cmd: c, Key: key}
	q.batch.Set(keys.EncodeSyncLog(q.tranSeq), rec.Marshal())
}

func (q *Queue) commit() error {
	if q.batch.Len() == 0 {
		q.tranSeq = 0
		return nil
	}
	if err := q.kvdb.Write(q.batch); err != nil {
		q.metrics.failedCommits.Inc()
		return fmt.Errorf("binlog commit: %w", err)
	}
	if last := q.lastSeq.Load(); q.tranSeq > last {
		q.metrics.records.Add(int(q.tranSeq - last))
		q.lastSeq.Store(q.tranSeq)
	}
	q.tranSeq = 0
	q.metrics.commits.Inc()
	return nil
}

// --------------------------------------------------------------------------
// Reads
// --------------------------------------------------------------------------

// Enabled reports whether the queue records mutations
func (q *Queue) Enabled() bool {
	return q.enabled
}

// Capacity is the number of records the retention goroutine keeps
func (q *Queue) Capacity() uint64 {
	return q.capacity
}

// MinSeq is the oldest sequence number that may still be present
func (q *Queue) MinSeq() uint64 {
	return q.minSeq.Load()
}

// MaxSeq is the sequence number of the last committed record
func (q *Queue) MaxSeq() uint64 {
	return q.lastSeq.Load()
}

// Len is the number of sequence numbers in [MinSeq, MaxSeq]
func (q *Queue) Len() uint64 {
	minSeq, last := q.MinSeq(), q.MaxSeq()
	if last == 0 || last < minSeq {
		return 0
	}
	if minSeq == 0 {
		minSeq = 1
	}
	return last - minSeq + 1
}

// Get returns the record with exactly this sequence number
func (q *Queue) Get(seq uint64) (Record, bool, error) {
	val, ok, err := q.kvdb.Get(keys.EncodeSyncLog(seq))
	if err != nil {
		return Record{}, false, err
	}
	if !ok {
		return Record{}, false, nil
	}
	rec, err := Unmarshal(val)
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

// FindNext returns the first record whose sequence number is >= seq
func (q *Queue) FindNext(seq uint64) (Record, bool, error) {
	if rec, found, err := q.Get(seq); err == nil && found {
		return rec, true, nil
	}

	it := q.kvdb.NewIterator()
	defer it.Close()

	if !it.SeekGE(keys.EncodeSyncLog(seq)) {
		return Record{}, false, it.Error()
	}
	return recordAt(it)
}

// FindLast returns the record with the highest sequence number
func (q *Queue) FindLast() (Record, bool, error) {
	it := q.kvdb.NewIterator()
	defer it.Close()

	// seq MaxUint64 is never written
	if it.SeekGE(keys.EncodeSyncLog(math.MaxUint64)) {
		it.Prev()
	} else {
		it.Last()
	}
	if !it.Valid() {
		return Record{}, false, it.Error()
	}
	return recordAt(it)
}

// recordAt decodes the record under the cursor. A cursor outside the binlog range is not found.
func recordAt(it db.Iterator) (Record, bool, error) {
	if _, err := keys.DecodeSyncLog(it.Key()); err != nil {
		return Record{}, false, nil
	}
	rec, err := Unmarshal(it.Value())
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

// Stats renders capacity, min and max seq as an indented text block
func (q *Queue) Stats() string {
	var b bytes.Buffer
	b.WriteString("    capacity : " + strconv.FormatUint(q.capacity, 10) + "\n")
	b.WriteString("    min_seq  : " + strconv.FormatUint(q.MinSeq(), 10) + "\n")
	b.WriteString("    max_seq  : " + strconv.FormatUint(q.MaxSeq(), 10))
	return b.String()
}

// --------------------------------------------------------------------------
// Maintenance (exclusive)
// --------------------------------------------------------------------------

// Update rewrites the record stored under seq
func (q *Queue) Update(seq uint64, t Type, c Cmd, key []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.update(seq, t, c, key)
}

func (q *Queue) update(seq uint64, t Type, c Cmd, key []byte) error {
	rec := Record{Seq: seq, Type: t, Cmd: c, Key: key}
	return q.kvdb.Set(keys.EncodeSyncLog(seq), rec.Marshal())
}

// Flush deletes every record in [MinSeq, MaxSeq]
func (q *Queue) Flush() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.deleteRange(q.MinSeq(), q.MaxSeq())
}

// Defragment deletes stray records below MinSeq, left behind by an older, smaller
// capacity or an interrupted cleanup. It returns the number of deleted records.
func (q *Queue) Defragment() (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	it := q.kvdb.NewIterator()
	defer it.Close()

	if it.SeekGE(keys.EncodeSyncLog(q.MinSeq())) {
		it.Prev()
	} else {
		it.Last()
	}

	count := 0
	batch := db.NewBatch()
	for ; it.Valid(); it.Prev() {
		seq, err := keys.DecodeSyncLog(it.Key())
		if err != nil || seq >= q.MinSeq() {
			break
		}
		batch.Delete(it.Key())
		count++
		if batch.Len() >= deleteBatchSize {
			if err := q.kvdb.Write(batch); err != nil {
				return count - batch.Len(), err
			}
			batch.Reset()
		}
	}
	if err := it.Error(); err != nil {
		return count - batch.Len(), err
	}
	if err := q.kvdb.Write(batch); err != nil {
		return count - batch.Len(), err
	}
	if count > 0 {
		Logger.Infof("defragment: removed %d stray binlogs", count)
	}
	return count, nil
}

// Merge rewrites every record superseded by a later record on the same key as a
// NOOP record. It returns the number of rewritten records.
func (q *Queue) Merge() (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	start, end := max(q.MinSeq(), 1), q.MaxSeq()
	if end < start {
		return 0, nil
	}
	Logger.Infof("merge begin [%d ~ %d]", start, end)

	latest := make(map[string]uint64)
	reduced := 0
	for seq := start; seq <= end; seq++ {
		rec, found, err := q.Get(seq)
		if err != nil {
			return reduced, err
		}
		if !found || rec.Type == TypeNoop {
			continue
		}
		if prev, ok := latest[string(rec.Key)]; ok {
			if err := q.update(prev, TypeNoop, CmdNone, nil); err != nil {
				return reduced, err
			}
			reduced++
		}
		latest[string(rec.Key)] = rec.Seq
	}
	Logger.Infof("merge reduced %d of %d binlogs", reduced, end-start+1)
	return reduced, nil
}

// --------------------------------------------------------------------------
// Retention
// --------------------------------------------------------------------------

// deleteRange deletes the records [start, end] in batches. end must be below math.MaxUint64.
func (q *Queue) deleteRange(start, end uint64) error {
	for start <= end {
		batch := db.NewBatch()
		for ; start <= end && batch.Len() < deleteBatchSize; start++ {
			batch.Delete(keys.EncodeSyncLog(start))
		}
		if err := q.kvdb.Write(batch); err != nil {
			return err
		}
	}
	return nil
}

// clean deletes the records above capacity if the slack is exhausted
// and reports whether it did any work.
func (q *Queue) clean() bool {
	minSeq, last := q.MinSeq(), q.MaxSeq()
	if last < minSeq || last-minSeq < q.capacity+q.slack {
		return false
	}

	end := last - q.capacity
	if err := q.deleteRange(minSeq, end); err != nil {
		Logger.Errorf("failed to clean binlogs [%d ~ %d]: %v", minSeq, end, err)
		return false
	}
	q.minSeq.Store(end + 1)
	q.metrics.cleaned.Add(int(end - minSeq + 1))
	Logger.Infof("clean %d logs[%d ~ %d], %d left, max: %d", end-minSeq+1, minSeq, end, last-end, last)
	return true
}

func (q *Queue) retentionLoop() {
	defer close(q.done)
	for !q.quit.Load() {
		if !q.clean() {
			time.Sleep(q.interval)
		}
	}
	Logger.Debugf("binlog clean goroutine quit")
}

// Close stops the retention goroutine. It waits a bounded time for the goroutine
// to finish. The engine is not closed.
func (q *Queue) Close() {
	q.quit.Store(true)
	select {
	case <-q.done:
	case <-time.After(closeTimeout):
		Logger.Warningf("binlog clean goroutine did not stop in time")
	}
}
