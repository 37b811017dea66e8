package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/DazeHolic/lvdb/lib/binlog"
	"github.com/goccy/go-yaml"
)

// Options configures a local store. The YAML form lives under a top-level "lvdb" key:
//
//	lvdb:
//	  dir: ./var/
//	  cache_size: 64
//	  replication:
//	    binlog: true
//	    capacity: 1000000
//	  users:            # optional per-database overrides
//	    cache_size: 8
type Options struct {
	Dir             string             `yaml:"dir"`
	Engine          string             `yaml:"engine"`            // pebble or maple
	CacheSize       int                `yaml:"cache_size"`        // MB
	MaxOpenFiles    int                `yaml:"max_open_files"`    //
	WriteBufferSize int                `yaml:"write_buffer_size"` // MB
	BlockSize       int                `yaml:"block_size"`        // KB
	CompactionSpeed int                `yaml:"compaction_speed"`  // MB/s, 0 = unlimited
	Compression     bool               `yaml:"compression"`
	Replication     ReplicationOptions `yaml:"replication"`
}

type ReplicationOptions struct {
	Binlog   bool   `yaml:"binlog"`
	Capacity uint64 `yaml:"capacity"`
}

// DefaultOptions returns the options used when no file is given
func DefaultOptions() Options {
	return Options{
		Dir:             "lvdb/",
		Engine:          "pebble",
		CacheSize:       16,
		MaxOpenFiles:    500,
		WriteBufferSize: 16,
		BlockSize:       16,
		Compression:     true,
		Replication: ReplicationOptions{
			Binlog:   true,
			Capacity: binlog.DefaultCapacity,
		},
	}
}

// LoadOptions reads the "lvdb" section of a YAML file. If database is not empty, the
// section "lvdb.<database>" overrides the common settings and the database name is
// appended to the directory.
func LoadOptions(path, database string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("read options: %w", err)
	}
	return ParseOptions(data, database)
}

// ParseOptions is LoadOptions on an in-memory document
func ParseOptions(data []byte, database string) (Options, error) {
	opts := DefaultOptions()

	var root struct {
		LVDB map[string]interface{} `yaml:"lvdb"`
	}
	if err := yaml.Unmarshal(data, &root); err != nil {
		return Options{}, fmt.Errorf("parse options: %w", err)
	}

	// sections are decoded onto opts, so absent keys keep their defaults
	if err := decodeSection(root.LVDB, &opts); err != nil {
		return Options{}, fmt.Errorf("parse options: %w", err)
	}

	if database != "" {
		if section, ok := root.LVDB[database].(map[string]interface{}); ok {
			if err := decodeSection(section, &opts); err != nil {
				return Options{}, fmt.Errorf("parse options for %s: %w", database, err)
			}
		}
		opts.Dir = filepath.Join(opts.Dir, database)
	}

	opts.normalize()
	return opts, nil
}

// normalize replaces unset values by their defaults
func (o *Options) normalize() {
	if o.Replication.Capacity == 0 {
		o.Replication.Capacity = binlog.DefaultCapacity
	}
	if o.CacheSize <= 0 {
		o.CacheSize = 16
	}
	if o.WriteBufferSize <= 0 {
		o.WriteBufferSize = 16
	}
	if o.BlockSize <= 0 {
		o.BlockSize = 16
	}
	if o.MaxOpenFiles <= 0 {
		o.MaxOpenFiles = min(max(o.CacheSize/1024*300, 500), 1000)
	}
	if o.Engine == "" {
		o.Engine = "pebble"
	}
}

func (o Options) String() string {
	return fmt.Sprintf(`Store Options:
  Dir:               %s
  Engine:            %s
  Cache Size:        %d MB
  Write Buffer Size: %d MB
  Block Size:        %d KB
  Max Open Files:    %d
  Compaction Speed:  %d
  Compression:       %t
  Binlog:            %t
  Binlog Capacity:   %d`,
		o.Dir, o.Engine, o.CacheSize, o.WriteBufferSize, o.BlockSize, o.MaxOpenFiles,
		o.CompactionSpeed, o.Compression, o.Replication.Binlog, o.Replication.Capacity)
}

func decodeSection(section map[string]interface{}, opts *Options) error {
	if len(section) == 0 {
		return nil
	}
	raw, err := yaml.Marshal(section)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(raw, opts)
}
