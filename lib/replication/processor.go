package replication

import (
	"github.com/DazeHolic/lvdb/lib/binlog"
	"github.com/DazeHolic/lvdb/lib/db/iterator"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("replication")

// Processor is the sink of the replication drivers. value is the current value of the
// record key for set-class commands and nil for delete-class commands.
// A returned error stops the pass at this record; it is offered again by the next pass.
type Processor interface {
	Apply(rec binlog.Record, value []byte) error
}

// ProcessorFunc adapts a function to the Processor interface
type ProcessorFunc func(rec binlog.Record, value []byte) error

func (f ProcessorFunc) Apply(rec binlog.Record, value []byte) error {
	return f(rec, value)
}

// NullProcessor accepts and discards every record
type NullProcessor struct{}

func (NullProcessor) Apply(binlog.Record, []byte) error {
	return nil
}

// Source is the store a driver reads from. *lstore.Store implements it.
// Cursors are written with the unlogged MetaPut and MetaRemove.
type Source interface {
	Binlogs() *binlog.Queue
	RawGet(key []byte) ([]byte, bool, error)
	RawIterator(start, end []byte, limit int) *iterator.Iterator
	MetaGet(key string) ([]byte, bool, error)
	MetaPut(key string, value []byte) error
	MetaRemove(key string) error
}
