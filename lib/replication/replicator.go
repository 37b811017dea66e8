package replication

import (
	"io"
	"sync/atomic"
	"time"

	"github.com/rcrowley/go-metrics"
)

// State of a Replicator
type State int32

const (
	StateIdle State = iota
	StateCopying
	StateSyncing
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCopying:
		return "copying"
	case StateSyncing:
		return "syncing"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Replicator keeps one peer up to date. A peer without a sync cursor first gets a
// full copy: the cursor is set to the newest binlog seq, the keyspace is copied and
// only then the binlog is tailed. Writes made during the copy are replayed by the
// sync passes that follow.
type Replicator struct {
	name     string
	src      Source
	sync     *Sync
	copy     *Copy
	interval time.Duration
	registry metrics.Registry

	state   atomic.Int32
	started atomic.Bool
	quit    atomic.Bool
	stop    chan struct{}
	done    chan struct{}
}

// Status is a snapshot of a Replicator
type Status struct {
	Name      string `json:"name"`
	State     string `json:"state"`
	Cursor    uint64 `json:"cursor"`
	HasCursor bool   `json:"has_cursor"`
	Sync      Stats  `json:"sync"`
	Copy      Stats  `json:"copy"`
}

func NewReplicator(name string, src Source, processor Processor, interval time.Duration) *Replicator {
	r := metrics.NewRegistry()
	return &Replicator{
		name:     name,
		src:      src,
		sync:     newSync(name, src, processor, r),
		copy:     newCopy(name, src, processor, r),
		interval: interval,
		registry: r,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (r *Replicator) Name() string {
	return r.name
}

func (r *Replicator) State() State {
	return State(r.state.Load())
}

// bootstrap runs the full copy if the peer needs one
func (r *Replicator) bootstrap() error {
	_, hasCursor, err := r.sync.Cursor()
	if err != nil {
		return err
	}
	if !hasCursor {
		seq := r.src.Binlogs().MaxSeq()
		Logger.Infof("replicator %s: new peer, copying from binlog seq %d", r.name, seq)
		if err := r.sync.SetCursor(seq); err != nil {
			return err
		}
		if err := r.copy.Reset(); err != nil {
			return err
		}
	}

	pending, err := r.copy.Pending()
	if err != nil || !pending {
		return err
	}
	r.state.Store(int32(StateCopying))
	_, err = r.copy.Run()
	return err
}

// Start runs the replicator in a goroutine until Stop is called
func (r *Replicator) Start() {
	if !r.started.CompareAndSwap(false, true) {
		return
	}
	go r.run()
}

func (r *Replicator) run() {
	defer close(r.done)
	defer r.state.Store(int32(StateStopped))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for !r.quit.Load() {
		if r.State() != StateSyncing {
			if err := r.bootstrap(); err != nil {
				Logger.Warningf("replicator %s: copy failed: %v", r.name, err)
			} else if !r.quit.Load() {
				r.state.Store(int32(StateSyncing))
			}
		}
		if r.State() == StateSyncing {
			if _, err := r.sync.Pass(); err != nil {
				Logger.Warningf("replicator %s: %v", r.name, err)
			}
		}
		select {
		case <-r.stop:
		case <-ticker.C:
		}
	}
	Logger.Infof("replicator %s stopped", r.name)
}

// Stop interrupts a running copy or sync pass and waits a bounded time for the goroutine
func (r *Replicator) Stop() {
	if r.quit.Swap(true) {
		return
	}
	r.copy.Stop()
	r.sync.quit.Store(true)
	close(r.stop)
	if !r.started.Load() {
		r.state.Store(int32(StateStopped))
		return
	}
	select {
	case <-r.done:
	case <-time.After(stopTimeout):
		Logger.Warningf("replicator %s did not stop in time", r.name)
	}
}

// Status returns the state and counters of the replicator
func (r *Replicator) Status() Status {
	st := Status{
		Name:  r.name,
		State: r.State().String(),
		Sync:  r.sync.Stats(),
		Copy:  r.copy.Stats(),
	}
	if cursor, ok, err := r.sync.Cursor(); err == nil {
		st.Cursor, st.HasCursor = cursor, ok
	}
	return st
}

// WriteStats writes the copy and sync metrics in the go-metrics text format
func (r *Replicator) WriteStats(w io.Writer) {
	writeRegistry(r.registry, w)
}
