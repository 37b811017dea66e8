package replication

import (
	"fmt"
	"io"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/DazeHolic/lvdb/lib/binlog"
	"github.com/DazeHolic/lvdb/lib/db/keys"
	"github.com/rcrowley/go-metrics"
)

const stopTimeout = 2 * time.Second

// SyncCursorKey is the meta key holding the last acknowledged seq of a sync driver
func SyncCursorKey(name string) string {
	return name + ":sync:seq"
}

// Sync tails the binlog of a source and forwards every new record to a processor.
//
// The cursor is the seq of the last record the processor acknowledged. It is read from
// the meta key SyncCursorKey(name) on first use. Without a stored cursor the driver
// starts with the newest record of the binlog. Set-class records are forwarded with the
// current value of their key, delete-class records with a nil value. All other records
// (control, no-op, transaction markers) are skipped.
type Sync struct {
	name      string
	src       Source
	processor Processor
	stats     *driverStats
	registry  metrics.Registry

	mu        sync.Mutex // one pass at a time
	loaded    bool
	hasCursor bool
	cursor    uint64

	quit    atomic.Bool
	running atomic.Bool
	stop    chan struct{}
	done    chan struct{}
}

func NewSync(name string, src Source, processor Processor) *Sync {
	return newSync(name, src, processor, metrics.NewRegistry())
}

func newSync(name string, src Source, processor Processor, r metrics.Registry) *Sync {
	return &Sync{
		name:      name,
		src:       src,
		processor: processor,
		stats:     newDriverStats(r, "sync"),
		registry:  r,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// load reads the stored cursor once. Called with mu held.
func (s *Sync) load() error {
	if s.loaded {
		return nil
	}
	val, found, err := s.src.MetaGet(SyncCursorKey(s.name))
	if err != nil {
		return fmt.Errorf("read sync cursor: %w", err)
	}
	if found {
		seq, err := strconv.ParseUint(string(val), 10, 64)
		if err != nil {
			return fmt.Errorf("%w: sync cursor %q", keys.ErrMalformed, val)
		}
		s.cursor, s.hasCursor = seq, true
	}
	s.loaded = true
	return nil
}

func (s *Sync) persist(seq uint64) error {
	if err := s.src.MetaPut(SyncCursorKey(s.name), []byte(strconv.FormatUint(seq, 10))); err != nil {
		return fmt.Errorf("persist sync cursor: %w", err)
	}
	return nil
}

// Cursor returns the in-memory cursor and whether one exists
func (s *Sync) Cursor() (uint64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return 0, false, err
	}
	return s.cursor, s.hasCursor, nil
}

// SetCursor stores seq as the last acknowledged record. The next pass starts after it.
func (s *Sync) SetCursor(seq uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.persist(seq); err != nil {
		return err
	}
	s.cursor, s.hasCursor, s.loaded = seq, true, true
	return nil
}

// next finds the first record after the cursor. Called with mu held.
func (s *Sync) next() (binlog.Record, bool, error) {
	if !s.hasCursor {
		return s.src.Binlogs().FindLast()
	}
	return s.src.Binlogs().FindNext(s.cursor + 1)
}

// Pass forwards every record after the cursor and returns the number of records the
// processor acknowledged. A read or processor error ends the pass; the failing record
// is offered again by the next pass.
func (s *Sync) Pass() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return 0, err
	}

	applied := 0
	for !s.quit.Load() {
		rec, found, err := s.next()
		if err != nil {
			return applied, fmt.Errorf("sync %s: %w", s.name, err)
		}
		if !found {
			break
		}

		forwarded, err := s.forward(rec)
		if err != nil {
			s.stats.failed.Mark(1)
			return applied, fmt.Errorf("sync %s: %w", s.name, err)
		}
		if !forwarded {
			// skipped records only move the in-memory cursor
			s.cursor, s.hasCursor = rec.Seq, true
			s.stats.skipped.Mark(1)
			continue
		}
		if err := s.persist(rec.Seq); err != nil {
			return applied, err
		}
		s.cursor, s.hasCursor = rec.Seq, true
		s.stats.applied.Mark(1)
		applied++
	}
	return applied, nil
}

// forward hands rec to the processor and reports whether it did
func (s *Sync) forward(rec binlog.Record) (bool, error) {
	if rec.Type != binlog.TypeSync {
		return false, nil
	}
	switch {
	case rec.Cmd.IsSetClass():
		value, found, err := s.src.RawGet(rec.Key)
		if err != nil {
			return false, fmt.Errorf("read value of %s: %w", binlog.Escape(rec.Key), err)
		}
		if !found {
			Logger.Warningf("sync %s: value of %s not found, skipping", s.name, rec.Describe())
			return false, nil
		}
		return true, s.apply(rec, value)
	case rec.Cmd.IsDelClass():
		return true, s.apply(rec, nil)
	default:
		return false, nil
	}
}

func (s *Sync) apply(rec binlog.Record, value []byte) error {
	start := time.Now()
	err := s.processor.Apply(rec, value)
	s.stats.latency.UpdateSince(start)
	return err
}

// Start runs a pass every interval in a goroutine until Stop is called.
// A driver can be started once.
func (s *Sync) Start(interval time.Duration) {
	if !s.running.CompareAndSwap(false, true) {
		return
	}
	go s.loop(interval)
}

func (s *Sync) loop(interval time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for !s.quit.Load() {
		if n, err := s.Pass(); err != nil {
			Logger.Warningf("%v", err)
		} else if n > 0 {
			Logger.Debugf("sync %s: forwarded %d records", s.name, n)
		}
		select {
		case <-s.stop:
		case <-ticker.C:
		}
	}
	Logger.Debugf("sync %s goroutine quit", s.name)
}

// Stop ends the current pass after the record in flight and waits a bounded time
// for the goroutine started by Start.
func (s *Sync) Stop() {
	if s.quit.Swap(true) {
		return
	}
	close(s.stop)
	if !s.running.Load() {
		return
	}
	select {
	case <-s.done:
	case <-time.After(stopTimeout):
		Logger.Warningf("sync %s goroutine did not stop in time", s.name)
	}
}

// Stats returns a snapshot of the driver counters
func (s *Sync) Stats() Stats {
	return s.stats.snapshot()
}

// WriteStats writes the driver metrics in the go-metrics text format
func (s *Sync) WriteStats(w io.Writer) {
	writeRegistry(s.registry, w)
}
