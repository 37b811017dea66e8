package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DazeHolic/lvdb/lib/binlog"
	"github.com/DazeHolic/lvdb/lib/db"
	"github.com/DazeHolic/lvdb/lib/replication"
	"github.com/DazeHolic/lvdb/lib/store"
	"github.com/DazeHolic/lvdb/rpc/client"
	"github.com/DazeHolic/lvdb/rpc/common"
	"github.com/DazeHolic/lvdb/rpc/serializer"
	"github.com/DazeHolic/lvdb/rpc/transport"
)

// loopback is a server and client transport in one, requests go straight to the handler
type loopback struct {
	handler transport.ServerHandleFunc
}

func (l *loopback) RegisterHandler(handler transport.ServerHandleFunc) { l.handler = handler }
func (l *loopback) Listen(common.ServerConfig) error                   { return nil }
func (l *loopback) Connect(common.ClientConfig) error                  { return nil }
func (l *loopback) Close() error                                       { return nil }

func (l *loopback) Send(shardId uint64, req []byte) ([]byte, error) {
	return l.handler(shardId, req), nil
}

func mapleShard(id uint64) common.ServerShard {
	opts := store.DefaultOptions()
	opts.Engine = string(db.ImplMaple)
	opts.Replication.Capacity = 10000
	return common.ServerShard{ShardID: id, Options: opts}
}

func newTestServer(t *testing.T, ser serializer.IRPCSerializer, shards ...uint64) (*RPCServer, *loopback) {
	t.Helper()
	config := common.ServerConfig{TimeoutSecond: 5}
	for _, id := range shards {
		config.Shards = append(config.Shards, mapleShard(id))
	}
	lb := &loopback{}
	s := NewRPCServer(config, lb, ser)
	if err := s.init(); err != nil {
		t.Fatalf("Failed to init server: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, lb
}

func newTestClient(t *testing.T, lb *loopback, ser serializer.IRPCSerializer, shardId uint64) *client.RPCStore {
	t.Helper()
	c, err := client.NewRPCStore(shardId, common.ClientConfig{}, lb, ser)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return c
}

var testSerializers = map[string]func() serializer.IRPCSerializer{
	"Binary": serializer.NewBinarySerializer,
	"JSON":   serializer.NewJSONSerializer,
	"GOB":    serializer.NewGOBSerializer,
}

func TestRPCStoreOperations(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			ser := factory()
			_, lb := newTestServer(t, ser, 1)
			c := newTestClient(t, lb, ser, 1)
			sync := binlog.TypeSync

			// strings
			if n, err := c.Set("a", []byte("1"), sync); n != 1 || err != nil {
				t.Fatalf("Set: %d, %v", n, err)
			}
			if val, found, _ := c.Get("a"); !found || string(val) != "1" {
				t.Errorf("Expected a=1, got %q (found=%t)", val, found)
			}
			if _, found, _ := c.Get("missing"); found {
				t.Errorf("Expected missing key to be absent")
			}
			if n, _ := c.Incr("a", 41, sync); n != 42 {
				t.Errorf("Expected 42 after Incr, got %d", n)
			}
			if n, _ := c.MultiSet([]store.Entry{{Key: "b", Value: []byte("2")}, {Key: "c", Value: []byte("3")}}, sync); n != 2 {
				t.Errorf("Expected MultiSet of 2, got %d", n)
			}
			entries, _ := c.Scan("a", "", 10)
			if len(entries) != 2 || entries[0].Key != "b" || entries[1].Key != "c" {
				t.Errorf("Unexpected scan %+v", entries)
			}
			if n, _ := c.MultiDel([]string{"b", "c"}, sync); n != 2 {
				t.Errorf("Expected MultiDel of 2, got %d", n)
			}
			if prev, _ := c.SetBit("bits", 9, true, sync); prev != 0 {
				t.Errorf("Expected previous bit 0, got %d", prev)
			}
			if bit, _ := c.GetBit("bits", 9); bit != 1 {
				t.Errorf("Expected bit 1, got %d", bit)
			}

			// hashes
			_, _ = c.HSet("h", "f1", []byte("v1"), sync)
			_, _ = c.HSet("h", "f2", []byte("v2"), sync)
			if size, _ := c.HSize("h"); size != 2 {
				t.Errorf("Expected hash size 2, got %d", size)
			}
			fields, _ := c.HScan("h", "", "", 10)
			if len(fields) != 2 || fields[1].Key != "f2" || string(fields[1].Value) != "v2" {
				t.Errorf("Unexpected hash scan %+v", fields)
			}
			if names, _ := c.HList("", "", 10); len(names) != 1 || names[0] != "h" {
				t.Errorf("Unexpected hash list %v", names)
			}

			// sorted sets with negative scores
			_, _ = c.ZSet("z", "low", -5, sync)
			_, _ = c.ZSet("z", "high", 7, sync)
			if score, found, _ := c.ZGet("z", "low"); !found || score != -5 {
				t.Errorf("Expected score -5, got %d", score)
			}
			if rank, found, _ := c.ZRRank("z", "low"); !found || rank != 1 {
				t.Errorf("Expected reverse rank 1, got %d", rank)
			}
			members, _ := c.ZScan("z", "", -10, 0, 10)
			if len(members) != 1 || members[0].Key != "low" || members[0].Score != -5 {
				t.Errorf("Unexpected zscan %+v", members)
			}
			ranged, _ := c.ZRange("z", 1, 1)
			if len(ranged) != 1 || ranged[0].Key != "high" {
				t.Errorf("Unexpected zrange %+v", ranged)
			}

			// queues
			_, _ = c.QPushBack("q", []byte("x"), sync)
			if n, _ := c.QPushFront("q", []byte("w"), sync); n != 2 {
				t.Errorf("Expected queue size 2, got %d", n)
			}
			items, _ := c.QSlice("q", 0, -1)
			if len(items) != 2 || string(items[0]) != "w" || string(items[1]) != "x" {
				t.Errorf("Unexpected queue %q", items)
			}
			if item, found, _ := c.QGet("q", -1); !found || string(item) != "x" {
				t.Errorf("Expected x at -1, got %q", item)
			}
			if item, found, _ := c.QPopFront("q", sync); !found || string(item) != "w" {
				t.Errorf("Expected to pop w, got %q", item)
			}
			if err := c.QFix("q"); err != nil {
				t.Errorf("QFix failed: %v", err)
			}

			// meta
			if n, _ := c.MetaSet("m", []byte("x")); n != 1 {
				t.Errorf("Expected MetaSet to return 1, got %d", n)
			}
			// the generated node id is a meta key too
			if names, _ := c.MetaList(); len(names) != 2 || names[0] != "m" || names[1] != NodeIDKey {
				t.Errorf("Unexpected meta list %v", names)
			}

			info, err := c.GetDBInfo()
			if err != nil || info.DbType != db.ImplMaple {
				t.Errorf("Unexpected db info %+v, %v", info, err)
			}
		})
	}
}

func TestRPCStoreErrors(t *testing.T) {
	ser := serializer.NewBinarySerializer()
	_, lb := newTestServer(t, ser, 1)
	c := newTestClient(t, lb, ser, 1)

	_, _ = c.Set("text", []byte("abc"), binlog.TypeSync)
	n, err := c.Incr("text", 1, binlog.TypeSync)
	if n != -1 || store.CodeOf(err) != store.RetCInvalidOperation {
		t.Errorf("Expected (-1, InvalidOperation), got (%d, %v)", n, err)
	}

	unknown := newTestClient(t, lb, ser, 99)
	if _, _, err := unknown.Get("a"); err == nil || !strings.Contains(err.Error(), "shard 99 not found") {
		t.Errorf("Expected shard not found error, got %v", err)
	}
}

func TestBinlogInspection(t *testing.T) {
	ser := serializer.NewBinarySerializer()
	_, lb := newTestServer(t, ser, 1)
	c := newTestClient(t, lb, ser, 1)

	before, err := c.BinlogStats()
	if err != nil {
		t.Fatalf("BinlogStats failed: %v", err)
	}
	_, _ = c.Set("a", []byte("1"), binlog.TypeSync)
	_, _ = c.Del("a", binlog.TypeSync)

	stats, err := c.BinlogStats()
	if err != nil || !stats.Enabled || stats.MaxSeq != before.MaxSeq+2 || stats.Capacity != 10000 {
		t.Errorf("Unexpected binlog stats %+v, %v", stats, err)
	}

	rec, found, err := c.BinlogFind(before.MaxSeq + 2)
	if err != nil || !found || rec.Cmd != binlog.CmdKDel || rec.Type != binlog.TypeSync {
		t.Errorf("Unexpected record %s (found=%t), %v", rec.Describe(), found, err)
	}
	if _, found, _ := c.BinlogFind(before.MaxSeq + 3); found {
		t.Errorf("Expected no record after the last seq")
	}
}

func TestReplicationBetweenShards(t *testing.T) {
	ser := serializer.NewBinarySerializer()
	s, lb := newTestServer(t, ser, 1, 2)
	leader, _ := s.shards.Load(1)
	follower, _ := s.shards.Load(2)

	processor, err := client.NewRPCSyncProcessor(2, common.ClientConfig{}, lb, ser)
	if err != nil {
		t.Fatalf("Failed to create processor: %v", err)
	}
	sync := replication.NewSync("f", leader.store, processor)
	_ = sync.SetCursor(leader.store.Binlogs().MaxSeq())

	_, _ = leader.store.Set("k", []byte("v"), binlog.TypeSync)
	_, _ = leader.store.ZSet("z", "m", -3, binlog.TypeSync)
	_, _ = leader.store.QPushBack("q", []byte("item"), binlog.TypeSync)
	if n, err := sync.Pass(); n != 3 || err != nil {
		t.Fatalf("Expected 3 forwarded records, got %d, %v", n, err)
	}

	if val, _, _ := follower.store.Get("k"); string(val) != "v" {
		t.Errorf("Expected k=v on follower, got %q", val)
	}
	if score, _, _ := follower.store.ZGet("z", "m"); score != -3 {
		t.Errorf("Expected score -3 on follower, got %d", score)
	}
	if item, _, _ := follower.store.QFront("q"); string(item) != "item" {
		t.Errorf("Expected queue item on follower, got %q", item)
	}
	if follower.store.Binlogs().MaxSeq() != 0 {
		t.Errorf("Replayed writes must not be logged on the follower")
	}

	// a malformed record is rejected with its code
	err = processor.Apply(binlog.Record{Type: binlog.TypeSync, Cmd: binlog.CmdKSet, Key: []byte("xbad")}, []byte("v"))
	if store.CodeOf(err) != store.RetCInvalidOperation {
		t.Errorf("Expected InvalidOperation for a malformed key, got %v", err)
	}
}

func TestNodeIDIsGenerated(t *testing.T) {
	s, _ := newTestServer(t, serializer.NewBinarySerializer(), 1)
	if s.NodeID() == "" {
		t.Fatalf("Expected a generated node id")
	}
	shard, _ := s.shards.Load(1)
	stored, found, _ := shard.store.MetaGet(NodeIDKey)
	if !found || string(stored) != s.NodeID() {
		t.Errorf("Expected node id %s to be stored, got %q", s.NodeID(), stored)
	}
}

func TestDuplicateShard(t *testing.T) {
	config := common.ServerConfig{Shards: []common.ServerShard{mapleShard(1), mapleShard(1)}}
	s := NewRPCServer(config, &loopback{}, serializer.NewBinarySerializer())
	if err := s.init(); err == nil {
		t.Errorf("Expected an error for a duplicate shard")
	}
}

func TestAdminEndpoints(t *testing.T) {
	ser := serializer.NewBinarySerializer()
	s, lb := newTestServer(t, ser, 1)
	c := newTestClient(t, lb, ser, 1)
	// seq 1 is the node id, seq 2 this write
	_, _ = c.Set("a", []byte("1"), binlog.TypeSync)

	router := newAdminServer(s).createRouter()
	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	tests := []struct {
		path     string
		status   int
		contains string
	}{
		{"/health", http.StatusOK, ""},
		{"/metrics", http.StatusOK, `lvdb_rpc_requests_total{type="set"}`},
		{"/shards/1/metrics", http.StatusOK, "lvdb_binlog_max_seq"},
		{"/shards/1/binlog/2", http.StatusOK, `"cmd":"set"`},
		{"/shards/1/binlog/5", http.StatusNotFound, ""},
		{"/shards/7/", http.StatusNotFound, ""},
		{"/shards/x/", http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := get(tt.path)
			if rec.Code != tt.status {
				t.Fatalf("Expected status %d, got %d", tt.status, rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.contains) {
				t.Errorf("Expected body to contain %q, got %s", tt.contains, rec.Body.String())
			}
		})
	}

	var status shardStatus
	if err := json.Unmarshal(get("/shards/1/").Body.Bytes(), &status); err != nil {
		t.Fatalf("Invalid shard status: %v", err)
	}
	if status.ShardID != 1 || status.Binlog.MaxSeq != 2 || !status.Binlog.Enabled {
		t.Errorf("Unexpected shard status %+v", status)
	}
}
