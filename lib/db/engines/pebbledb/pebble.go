package pebbledb

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/DazeHolic/lvdb/lib/db"
	"github.com/DazeHolic/lvdb/lib/db/util"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("db")

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

const (
	loadBatchSize  = 1000
	memDirName     = "lvdb-mem"
	defaultMaxOpen = 500
)

// Options configures the pebble engine
type Options struct {
	Dir             string // data directory (ignored when InMemory is set)
	InMemory        bool   // keep all files in an in-memory filesystem
	CacheSize       int64  // block cache size in bytes (0 = pebble default)
	WriteBufferSize uint64 // memtable size in bytes (0 = pebble default)
	BlockSize       int    // sstable block size in bytes (0 = pebble default)
	MaxOpenFiles    int    // limit of open sstables
	Compression     bool   // snappy compression of sstable blocks
	Sync            bool   // fsync the WAL on every write
}

// DefaultOptions returns options for a persistent engine in dir
func DefaultOptions(dir string) *Options {
	return &Options{
		Dir:             dir,
		CacheSize:       16 << 20,
		WriteBufferSize: 16 << 20,
		BlockSize:       16 << 10,
		MaxOpenFiles:    defaultMaxOpen,
		Compression:     true,
		Sync:            true,
	}
}

// --------------------------------------------------------------------------
// Engine
// --------------------------------------------------------------------------

type pebbleImpl struct {
	db        *pebble.DB
	cache     interface{ Unref() }
	opts      Options
	writeOpts *pebble.WriteOptions
	closed    atomic.Bool
}

// NewPebbleDB opens (or creates) a pebble database
func NewPebbleDB(opts *Options) (db.KVDB, error) {
	if opts == nil {
		opts = DefaultOptions("")
		opts.InMemory = true
	}
	if opts.MaxOpenFiles <= 0 {
		opts.MaxOpenFiles = defaultMaxOpen
	}

	compression := pebble.NoCompression
	if opts.Compression {
		compression = pebble.SnappyCompression
	}

	pOpts := &pebble.Options{
		MaxOpenFiles: opts.MaxOpenFiles,
		MemTableSize: opts.WriteBufferSize,
		Levels: []pebble.LevelOptions{{
			BlockSize:   opts.BlockSize,
			Compression: compression,
		}},
		Logger: pebbleLogger{},
	}

	dir := opts.Dir
	if opts.InMemory {
		pOpts.FS = vfs.NewMem()
		dir = memDirName
	} else if dir == "" {
		return nil, fmt.Errorf("pebble: data directory is required")
	}

	impl := &pebbleImpl{
		opts:      *opts,
		writeOpts: pebble.NoSync,
	}
	if opts.Sync && !opts.InMemory {
		impl.writeOpts = pebble.Sync
	}

	if opts.CacheSize > 0 {
		cache := pebble.NewCache(opts.CacheSize)
		pOpts.Cache = cache
		impl.cache = cache
	}

	pdb, err := pebble.Open(dir, pOpts)
	if err != nil {
		impl.releaseCache()
		return nil, fmt.Errorf("pebble: open %s: %w", dir, err)
	}
	impl.db = pdb

	Logger.Infof("opened pebble database (dir=%s, in-memory=%t)", dir, opts.InMemory)
	return impl, nil
}

func (p *pebbleImpl) releaseCache() {
	if p.cache != nil {
		p.cache.Unref()
		p.cache = nil
	}
}

// --------------------------------------------------------------------------
// Write Operations
// --------------------------------------------------------------------------

func (p *pebbleImpl) Set(key, value []byte) error {
	if p.closed.Load() {
		return db.ErrClosed
	}
	return p.db.Set(key, value, p.writeOpts)
}

func (p *pebbleImpl) Delete(key []byte) error {
	if p.closed.Load() {
		return db.ErrClosed
	}
	return p.db.Delete(key, p.writeOpts)
}

// Write translates the engine neutral batch into a pebble batch and commits it
func (p *pebbleImpl) Write(batch *db.Batch) error {
	if p.closed.Load() {
		return db.ErrClosed
	}

	b := p.db.NewBatch()
	defer b.Close()

	for _, op := range batch.Ops() {
		var err error
		switch op.Kind {
		case db.OpSet:
			err = b.Set(op.Key, op.Value, nil)
		case db.OpDelete:
			err = b.Delete(op.Key, nil)
		default:
			err = fmt.Errorf("unknown batch operation %d", op.Kind)
		}
		if err != nil {
			return err
		}
	}
	return b.Commit(p.writeOpts)
}

// --------------------------------------------------------------------------
// Read Operations
// --------------------------------------------------------------------------

func (p *pebbleImpl) Get(key []byte) ([]byte, bool, error) {
	if p.closed.Load() {
		return nil, false, db.ErrClosed
	}

	value, closer, err := p.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer closer.Close()

	return append([]byte(nil), value...), true, nil
}

// NewIterator returns a pebble iterator, which satisfies db.Iterator as is
func (p *pebbleImpl) NewIterator() db.Iterator {
	if p.closed.Load() {
		return &errIterator{err: db.ErrClosed}
	}
	it, err := p.db.NewIter(nil)
	if err != nil {
		return &errIterator{err: err}
	}
	return it
}

// --------------------------------------------------------------------------
// Maintenance and Persistence
// --------------------------------------------------------------------------

// Compact compacts the whole populated key range
func (p *pebbleImpl) Compact() error {
	if p.closed.Load() {
		return db.ErrClosed
	}

	it := p.NewIterator()
	if !it.First() {
		err := it.Error()
		_ = it.Close()
		return err
	}
	start := append([]byte(nil), it.Key()...)
	it.Last()
	end := append(append([]byte(nil), it.Key()...), 0x00)
	if err := it.Close(); err != nil {
		return err
	}

	return p.db.Compact(start, end, true)
}

// Save writes the content of an implicit pebble snapshot to w
func (p *pebbleImpl) Save(w io.Writer) error {
	it := p.NewIterator()
	defer it.Close()
	return util.WriteSnapshot(w, it)
}

// Load deletes all entries and writes the snapshot in batches.
// Unlike maple the replacement is not atomic: a failed load leaves a partial state.
func (p *pebbleImpl) Load(r io.Reader) error {
	if p.closed.Load() {
		return db.ErrClosed
	}

	if err := p.truncate(); err != nil {
		return err
	}

	batch := db.NewBatch()
	err := util.ReadSnapshot(r, func(key, value []byte) error {
		batch.Set(key, value)
		if batch.Len() < loadBatchSize {
			return nil
		}
		err := p.Write(batch)
		batch.Reset()
		return err
	})
	if err != nil {
		return err
	}
	return p.Write(batch)
}

func (p *pebbleImpl) truncate() error {
	it := p.NewIterator()
	defer it.Close()

	batch := db.NewBatch()
	for ok := it.First(); ok; ok = it.Next() {
		batch.Delete(it.Key())
		if batch.Len() >= loadBatchSize {
			if err := p.Write(batch); err != nil {
				return err
			}
			batch.Reset()
		}
	}
	if err := it.Error(); err != nil {
		return err
	}
	return p.Write(batch)
}

// --------------------------------------------------------------------------
// Features and Metadata
// --------------------------------------------------------------------------

func (p *pebbleImpl) GetInfo() db.DatabaseInfo {
	meta := &struct {
		Dir               string                 `json:"dir"`
		InMemory          bool                   `json:"in_memory"`
		LevelFiles        []int64                `json:"level_files"`
		LevelDistribution util.DistributionStats `json:"level_distribution"`
		MemTableSize      uint64                 `json:"mem_table_size"`
		Info              string                 `json:"info"`
	}{
		Dir:      p.opts.Dir,
		InMemory: p.opts.InMemory,
		Info:     "SizeBytes is the disk space used by pebble, KeyCount is not tracked.",
	}

	info := db.DatabaseInfo{
		DbType: db.ImplPebble,
		SupportedFeatures: []db.Feature{
			db.FeatureSet, db.FeatureGet, db.FeatureDelete,
			db.FeatureBatch, db.FeatureIterate,
			db.FeatureSave, db.FeatureLoad, db.FeatureCompact,
		},
		Metadata: meta,
	}
	if !p.opts.InMemory {
		info.SupportedFeatures = append(info.SupportedFeatures, db.FeaturePersistent)
	}
	if p.closed.Load() {
		return info
	}

	m := p.db.Metrics()
	levelSizes := make([]float64, 0, len(m.Levels))
	for _, level := range m.Levels {
		meta.LevelFiles = append(meta.LevelFiles, level.NumFiles)
		levelSizes = append(levelSizes, float64(level.Size))
	}
	meta.LevelDistribution = util.NewDistributionStats(levelSizes)
	meta.MemTableSize = m.MemTable.Size
	info.SizeBytes = int(m.DiskSpaceUsage())

	return info
}

func (p *pebbleImpl) SupportsFeature(feature db.Feature) bool {
	supportedFeatures := db.FeatureSet |
		db.FeatureGet |
		db.FeatureDelete |
		db.FeatureBatch |
		db.FeatureIterate |
		db.FeatureSave |
		db.FeatureLoad |
		db.FeatureCompact
	if !p.opts.InMemory {
		supportedFeatures |= db.FeaturePersistent
	}
	return supportedFeatures&feature == feature
}

func (p *pebbleImpl) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := p.db.Close()
	p.releaseCache()
	return err
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// errIterator is an always exhausted iterator carrying an error
type errIterator struct {
	err error
}

func (e *errIterator) SeekGE([]byte) bool { return false }
func (e *errIterator) SeekLT([]byte) bool { return false }
func (e *errIterator) First() bool        { return false }
func (e *errIterator) Last() bool         { return false }
func (e *errIterator) Next() bool         { return false }
func (e *errIterator) Prev() bool         { return false }
func (e *errIterator) Valid() bool        { return false }
func (e *errIterator) Key() []byte        { return nil }
func (e *errIterator) Value() []byte      { return nil }
func (e *errIterator) Error() error       { return e.err }
func (e *errIterator) Close() error       { return nil }

// pebbleLogger routes pebble's log output to the "db" logger
type pebbleLogger struct{}

func (pebbleLogger) Infof(format string, args ...interface{}) {
	Logger.Debugf(format, args...)
}

func (pebbleLogger) Fatalf(format string, args ...interface{}) {
	Logger.Errorf(format, args...)
	panic(fmt.Sprintf(format, args...))
}
