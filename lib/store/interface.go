package store

import (
	"github.com/DazeHolic/lvdb/lib/binlog"
	"github.com/DazeHolic/lvdb/lib/db"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// DBFactory is a function type that creates a new db used by the store.
// This is used to abstract the creation of the db from the store implementation.
type DBFactory func() (db.KVDB, error)

// Entry is one result row of a scan. Key holds the key, field, member or queue name
// depending on the operation, Score is only set for sorted sets.
type Entry struct {
	Key   string
	Value []byte
	Score int64
}

// IStore is the typed operation surface of the store: strings, hashes, sorted sets,
// queues and meta keys over one ordered keyspace.
//
// Every write takes a binlog.Type. Local writes pass binlog.TypeSync and are
// replicated, writes replayed from another node pass binlog.TypeMirror and are not logged again.
//
// Counting writes return (n, err): n is 0 when the operation was not applicable
// (empty key, absent entry) and positive on success. Failures return -1 and a *Error.
// Absence is never an error, reads report it with a boolean.
type IStore interface {

	// --------------------------------------------------------------------------
	// Strings
	// --------------------------------------------------------------------------

	// Get returns the value of a key
	Get(key string) (value []byte, found bool, err error)
	// Set writes a key
	Set(key string, value []byte, t binlog.Type) (int64, error)
	// SetNX writes a key only if it does not exist yet (0 if it exists)
	SetNX(key string, value []byte, t binlog.Type) (int64, error)
	// GetSet writes a key and returns its previous value
	GetSet(key string, value []byte, t binlog.Type) (old []byte, found bool, err error)
	// Del deletes a key. Deleting an absent key still counts as 1.
	Del(key string, t binlog.Type) (int64, error)
	// Incr adds by to the decimal integer stored under key (absent = 0) and returns the new value
	Incr(key string, by int64, t binlog.Type) (int64, error)
	// MultiSet writes all entries in one commit and returns their number
	MultiSet(entries []Entry, t binlog.Type) (int64, error)
	// MultiDel deletes all keys in one commit and returns their number
	MultiDel(keys []string, t binlog.Type) (int64, error)
	// SetBit sets or clears one bit of the value and returns the previous bit
	SetBit(key string, offset int, on bool, t binlog.Type) (int64, error)
	// GetBit returns one bit of the value
	GetBit(key string, offset int) (int64, error)
	// Scan returns keys in (start, end] in ascending order. An empty end is unbounded.
	Scan(start, end string, limit int) ([]Entry, error)
	// RScan returns keys in [start, end) in descending order. An empty start begins at the last key.
	RScan(start, end string, limit int) ([]Entry, error)

	// --------------------------------------------------------------------------
	// Hashes
	// --------------------------------------------------------------------------

	HGet(name, field string) (value []byte, found bool, err error)
	// HSet returns 1 if the field is new and 0 if it was overwritten
	HSet(name, field string, value []byte, t binlog.Type) (int64, error)
	// HDel returns 1 if the field existed
	HDel(name, field string, t binlog.Type) (int64, error)
	HIncr(name, field string, by int64, t binlog.Type) (int64, error)
	HSize(name string) (int64, error)
	// HClear deletes every field of the hash and returns their number
	HClear(name string, t binlog.Type) (int64, error)
	HScan(name, start, end string, limit int) ([]Entry, error)
	HRScan(name, start, end string, limit int) ([]Entry, error)
	// HList returns the names of non-empty hashes in (start, end]
	HList(start, end string, limit int) ([]string, error)
	HRList(start, end string, limit int) ([]string, error)

	// --------------------------------------------------------------------------
	// Sorted sets
	// --------------------------------------------------------------------------

	ZGet(name, member string) (score int64, found bool, err error)
	// ZSet returns 1 if the member is new and 0 if its score was updated
	ZSet(name, member string, score int64, t binlog.Type) (int64, error)
	ZDel(name, member string, t binlog.Type) (int64, error)
	ZIncr(name, member string, by int64, t binlog.Type) (int64, error)
	ZSize(name string) (int64, error)
	// ZRank returns the 0-based position of the member in ascending score order
	ZRank(name, member string) (rank int64, found bool, err error)
	ZRRank(name, member string) (rank int64, found bool, err error)
	// ZRange returns members by position in ascending score order
	ZRange(name string, offset, limit int) ([]Entry, error)
	ZRRange(name string, offset, limit int) ([]Entry, error)
	// ZScan returns members with scoreStart <= score <= scoreEnd in ascending order,
	// resuming after (member, scoreStart) when member is set.
	ZScan(name, member string, scoreStart, scoreEnd int64, limit int) ([]Entry, error)
	// ZRScan is ZScan in descending order, scoreStart is the upper bound.
	ZRScan(name, member string, scoreStart, scoreEnd int64, limit int) ([]Entry, error)
	ZList(start, end string, limit int) ([]string, error)
	ZRList(start, end string, limit int) ([]string, error)

	// --------------------------------------------------------------------------
	// Queues
	// --------------------------------------------------------------------------

	QSize(name string) (int64, error)
	QFront(name string) (item []byte, found bool, err error)
	QBack(name string) (item []byte, found bool, err error)
	// QPushFront prepends an item and returns the new size
	QPushFront(name string, item []byte, t binlog.Type) (int64, error)
	// QPushBack appends an item and returns the new size
	QPushBack(name string, item []byte, t binlog.Type) (int64, error)
	QPopFront(name string, t binlog.Type) (item []byte, found bool, err error)
	QPopBack(name string, t binlog.Type) (item []byte, found bool, err error)
	// QGet returns the item at index, negative indexes count from the back
	QGet(name string, index int64) (item []byte, found bool, err error)
	// QSet overwrites the item at index, 0 if the index is out of range
	QSet(name string, index int64, item []byte, t binlog.Type) (int64, error)
	// QSetBySeq overwrites the item stored under a queue sequence number
	QSetBySeq(name string, seq uint64, item []byte, t binlog.Type) (int64, error)
	// QSlice returns the items between the indexes begin and end (inclusive)
	QSlice(name string, begin, end int64) ([][]byte, error)
	QList(start, end string, limit int) ([]string, error)
	QRList(start, end string, limit int) ([]string, error)
	// QFix rebuilds the front and back pointers and the size of a queue from its items
	QFix(name string) error

	// --------------------------------------------------------------------------
	// Meta
	// --------------------------------------------------------------------------

	MetaGet(key string) (value []byte, found bool, err error)
	MetaSet(key string, value []byte) (int64, error)
	MetaDel(key string) (int64, error)
	// MetaList returns all meta keys
	MetaList() ([]string, error)

	// GetDBInfo returns metadata about the database underlying the store.
	// It is not guaranteed that all fields are filled in or that the information is up-to-date!
	GetDBInfo() (info db.DatabaseInfo, err error)
}
