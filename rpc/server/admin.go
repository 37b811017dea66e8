package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/DazeHolic/lvdb/lib/binlog"
	"github.com/DazeHolic/lvdb/lib/replication"
	"github.com/VictoriaMetrics/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	contentTypeJSON        = "application/json"
	contentTypeText        = "text/plain; version=0.0.4"
	defaultShutdownTimeout = time.Second * 5
)

// adminServer exposes metrics and binlog state of all shards over HTTP
type adminServer struct {
	rpc        *RPCServer
	httpServer *http.Server
}

type binlogInfo struct {
	Enabled  bool   `json:"enabled"`
	Capacity uint64 `json:"capacity"`
	MinSeq   uint64 `json:"min_seq"`
	MaxSeq   uint64 `json:"max_seq"`
}

type shardStatus struct {
	ShardID     uint64               `json:"shard_id"`
	Binlog      binlogInfo           `json:"binlog"`
	Replication []replication.Status `json:"replication"`
}

type recordView struct {
	Seq  uint64 `json:"seq"`
	Type string `json:"type"`
	Cmd  string `json:"cmd"`
	Key  string `json:"key"`
}

func newAdminServer(rpc *RPCServer) *adminServer {
	return &adminServer{rpc: rpc}
}

// createRouter builds chi router
func (a *adminServer) createRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", a.handleHealth)
	r.Get("/metrics", a.handleMetrics)
	r.Get("/shards", a.handleShards)
	r.Route("/shards/{shardId}", func(r chi.Router) {
		r.Get("/", a.handleShard)
		r.Get("/metrics", a.handleShardMetrics)
		r.Get("/binlog/{seq}", a.handleBinlogFind)
	})

	return r
}

func (a *adminServer) start(addr string) {
	a.httpServer = &http.Server{
		Addr:              addr,
		Handler:           a.createRouter(),
		ReadHeaderTimeout: time.Second,
	}

	go func() {
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			Logger.Errorf("admin server error: %v", err)
		}
	}()

	Logger.Infof("admin server started on %s", addr)
}

func (a *adminServer) stop() error {
	if a.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown admin server: %w", err)
	}
	return nil
}

// --------------------------------------------------------------------------
// Handlers
// --------------------------------------------------------------------------

func (a *adminServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// handleMetrics writes the process wide metrics (rpc requests, go runtime)
func (a *adminServer) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", contentTypeText)
	metrics.WritePrometheus(w, true)
}

func (a *adminServer) handleShards(w http.ResponseWriter, _ *http.Request) {
	var statuses []shardStatus
	a.rpc.shards.Range(func(_ uint64, shard *serverShard) bool {
		statuses = append(statuses, shard.status())
		return true
	})
	writeJSON(w, statuses)
}

func (a *adminServer) handleShard(w http.ResponseWriter, r *http.Request) {
	shard, ok := a.shard(w, r)
	if !ok {
		return
	}
	writeJSON(w, shard.status())
}

// handleShardMetrics writes the binlog metrics and the replication stats of one shard
func (a *adminServer) handleShardMetrics(w http.ResponseWriter, r *http.Request) {
	shard, ok := a.shard(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", contentTypeText)
	shard.store.Binlogs().WriteMetrics(w)
	for _, rep := range shard.replicators {
		fmt.Fprintf(w, "# replicator %s\n", rep.Name())
		rep.WriteStats(w)
	}
}

func (a *adminServer) handleBinlogFind(w http.ResponseWriter, r *http.Request) {
	shard, ok := a.shard(w, r)
	if !ok {
		return
	}
	seq, err := strconv.ParseUint(chi.URLParam(r, "seq"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid seq", http.StatusBadRequest)
		return
	}
	rec, found, err := shard.store.Binlogs().FindNext(seq)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !found {
		http.Error(w, "no record", http.StatusNotFound)
		return
	}
	writeJSON(w, viewRecord(rec))
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (a *adminServer) shard(w http.ResponseWriter, r *http.Request) (*serverShard, bool) {
	shardId, err := strconv.ParseUint(chi.URLParam(r, "shardId"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid shardId", http.StatusBadRequest)
		return nil, false
	}
	shard, ok := a.rpc.shards.Load(shardId)
	if !ok {
		http.Error(w, "shard not found", http.StatusNotFound)
		return nil, false
	}
	return shard, true
}

func (s *serverShard) status() shardStatus {
	q := s.store.Binlogs()
	st := shardStatus{
		ShardID: s.id,
		Binlog: binlogInfo{
			Enabled:  q.Enabled(),
			Capacity: q.Capacity(),
			MinSeq:   q.MinSeq(),
			MaxSeq:   q.MaxSeq(),
		},
		Replication: make([]replication.Status, 0, len(s.replicators)),
	}
	for _, rep := range s.replicators {
		st.Replication = append(st.Replication, rep.Status())
	}
	return st
}

func viewRecord(rec binlog.Record) recordView {
	return recordView{
		Seq:  rec.Seq,
		Type: rec.Type.String(),
		Cmd:  rec.Cmd.String(),
		Key:  binlog.Escape(rec.Key),
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", contentTypeJSON)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		Logger.Errorf("failed to encode response: %v", err)
	}
}
