package replication

import (
	"fmt"
	"io"
	"math"
	"sync/atomic"
	"time"

	"github.com/DazeHolic/lvdb/lib/binlog"
	"github.com/DazeHolic/lvdb/lib/db/keys"
	"github.com/rcrowley/go-metrics"
)

// CopyCursorKey is the meta key holding the last key sunk by a copy driver
func CopyCursorKey(name string) string {
	return name + ":copy:key"
}

// Copy walks the live keyspace of a source once and synthesizes a record for every
// string, hash field, sorted set member and queue item. Records carry seq 0 and
// binlog.TypeCopy. The key of every acknowledged entry is checkpointed under
// CopyCursorKey(name), so an interrupted copy resumes after it.
type Copy struct {
	name      string
	src       Source
	processor Processor
	stats     *driverStats
	registry  metrics.Registry
	quit      atomic.Bool
}

func NewCopy(name string, src Source, processor Processor) *Copy {
	return newCopy(name, src, processor, metrics.NewRegistry())
}

func newCopy(name string, src Source, processor Processor, r metrics.Registry) *Copy {
	return &Copy{
		name:      name,
		src:       src,
		processor: processor,
		stats:     newDriverStats(r, "copy"),
		registry:  r,
	}
}

// copyRecord maps a data key to the record that recreates it
func copyRecord(key []byte) (binlog.Record, bool) {
	var cmd binlog.Cmd
	switch key[0] {
	case keys.TagKV:
		cmd = binlog.CmdKSet
	case keys.TagHash:
		cmd = binlog.CmdHSet
	case keys.TagZSet:
		cmd = binlog.CmdZSet
	case keys.TagQueue:
		_, seq, err := keys.DecodeQItem(key)
		if err != nil || seq < keys.QItemMinSeq {
			// front and back pointers are rebuilt by the pushes
			return binlog.Record{}, false
		}
		cmd = binlog.CmdQPushBack
	default:
		return binlog.Record{}, false
	}
	return binlog.Record{
		Seq:  0,
		Type: binlog.TypeCopy,
		Cmd:  cmd,
		Key:  append([]byte(nil), key...),
	}, true
}

// start returns the key the scan resumes after
func (c *Copy) start() ([]byte, error) {
	val, found, err := c.src.MetaGet(CopyCursorKey(c.name))
	if err != nil {
		return nil, fmt.Errorf("read copy checkpoint: %w", err)
	}
	if !found || len(val) == 0 {
		return []byte{keys.MinPrefix}, nil
	}
	return val, nil
}

// Pending reports whether an interrupted copy left a checkpoint
func (c *Copy) Pending() (bool, error) {
	_, found, err := c.src.MetaGet(CopyCursorKey(c.name))
	return found, err
}

// Reset starts the next Run from the beginning of the keyspace and marks the copy as pending
func (c *Copy) Reset() error {
	return c.src.MetaPut(CopyCursorKey(c.name), []byte{keys.MinPrefix})
}

// Run sinks every entry after the checkpoint and returns the number of records sunk.
// A processor error stops the run at the failing entry. After a complete walk the
// checkpoint is removed.
func (c *Copy) Run() (int, error) {
	start, err := c.start()
	if err != nil {
		return 0, err
	}
	Logger.Infof("copy %s: starting after %s", c.name, binlog.Escape(start))

	it := c.src.RawIterator(start, keys.PrefixEnd([]byte{keys.MaxPrefix}), math.MaxInt)
	defer it.Close()

	n := 0
	for it.Next() {
		if c.quit.Load() {
			Logger.Infof("copy %s: stopped after %d records", c.name, n)
			return n, nil
		}
		key := it.Key()
		if key[0] > keys.MaxPrefix {
			break
		}
		rec, ok := copyRecord(key)
		if !ok {
			c.stats.skipped.Mark(1)
			continue
		}

		begin := time.Now()
		err := c.processor.Apply(rec, it.Value())
		c.stats.latency.UpdateSince(begin)
		if err != nil {
			c.stats.failed.Mark(1)
			return n, fmt.Errorf("copy %s: %w", c.name, err)
		}
		if err := c.src.MetaPut(CopyCursorKey(c.name), rec.Key); err != nil {
			return n, fmt.Errorf("copy %s: checkpoint: %w", c.name, err)
		}
		c.stats.applied.Mark(1)
		n++
	}
	if err := it.Error(); err != nil {
		return n, fmt.Errorf("copy %s: %w", c.name, err)
	}

	if err := c.src.MetaRemove(CopyCursorKey(c.name)); err != nil {
		return n, fmt.Errorf("copy %s: clear checkpoint: %w", c.name, err)
	}
	Logger.Infof("copy %s: done, %d records", c.name, n)
	return n, nil
}

// Stop makes a running Run return before the next entry
func (c *Copy) Stop() {
	c.quit.Store(true)
}

func (c *Copy) Stats() Stats {
	return c.stats.snapshot()
}

func (c *Copy) WriteStats(w io.Writer) {
	writeRegistry(c.registry, w)
}
