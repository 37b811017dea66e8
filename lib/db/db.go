package db

import (
	"errors"
	"io"
)

// ErrClosed is returned by operations on a closed database
var ErrClosed = errors.New("db: closed")

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplMaple  Implementation = "maple"
	ImplPebble Implementation = "pebble"
)

// Feature represents database features as bit flags
type Feature uint64

const (
	FeatureSet        Feature = 1 << iota // Support for Set operations
	FeatureGet                            // Support for Get operations
	FeatureDelete                         // Support for Delete operations
	FeatureBatch                          // Support for atomic batch writes
	FeatureIterate                        // Support for ordered iteration
	FeatureSave                           // Support for Save operations
	FeatureLoad                           // Support for Load operations
	FeatureCompact                        // Support for Compact operations
	FeaturePersistent                     // Data survives a process restart
)

func (f Feature) String() string {
	switch f {
	case FeatureSet:
		return "Set"
	case FeatureGet:
		return "Get"
	case FeatureDelete:
		return "Delete"
	case FeatureBatch:
		return "Batch"
	case FeatureIterate:
		return "Iterate"
	case FeatureSave:
		return "Save"
	case FeatureLoad:
		return "Load"
	case FeatureCompact:
		return "Compact"
	case FeaturePersistent:
		return "Persistent"
	default:
		return "Unknown"
	}
}

type DatabaseInfo struct {
	SizeBytes         int            `json:"size_bytes"`
	KeyCount          int            `json:"key_count"`
	DbType            Implementation `json:"db_type"`
	SupportedFeatures []Feature      `json:"supported_features"`
	Metadata          interface{}    `json:"metadata"`
}

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// KVDB defines an interface for ordered key-value database implementations.
// Keys are arbitrary byte strings compared with bytes.Compare.
// Implementations can vary in their feature support, which can be queried with SupportsFeature.
type KVDB interface {

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Set inserts or updates an entry. The key and value are copied.
	Set(key, value []byte) (err error)

	// Delete removes an entry. Deleting a missing key is not an error.
	Delete(key []byte) (err error)

	// Write applies all operations of the batch atomically and in order.
	// Either every operation becomes visible or none does.
	Write(batch *Batch) (err error)

	// --------------------------------------------------------------------------
	// Query Operations
	// --------------------------------------------------------------------------

	// Get retrieves a copy of the value for an exact key.
	// The boolean return value indicates whether a value for the key was found.
	Get(key []byte) (value []byte, loaded bool, err error)

	// NewIterator returns a cursor over the whole keyspace. The cursor observes
	// every write that completed before it was created. It must be closed.
	NewIterator() (it Iterator)

	// --------------------------------------------------------------------------
	// Maintenance and Persistence Operations
	// --------------------------------------------------------------------------

	// Compact asks the engine to reclaim space held by deleted entries.
	Compact() (err error)

	// Save writes a snapshot of all entries to the provided io.Writer.
	Save(w io.Writer) (err error)

	// Load replaces the database state with a snapshot created by Save.
	Load(r io.Reader) (err error)

	// --------------------------------------------------------------------------
	// Feature Support
	// --------------------------------------------------------------------------

	// SupportsFeature checks if the database implementation supports the specified feature.
	// Multiple features can be checked at once using bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// GetInfo returns information about the database.
	GetInfo() (info DatabaseInfo)

	// Close closes the database.
	Close() (err error)
}

// Iterator is a bidirectional cursor over an ordered keyspace.
// Key and Value are only valid until the next positioning call; callers copy them when needed.
type Iterator interface {
	// SeekGE moves to the first key greater than or equal to key.
	SeekGE(key []byte) bool
	// SeekLT moves to the last key strictly less than key.
	SeekLT(key []byte) bool
	First() bool
	Last() bool
	Next() bool
	Prev() bool
	Valid() bool
	Key() []byte
	Value() []byte
	Error() error
	Close() error
}
