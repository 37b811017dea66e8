package server

import (
	"errors"
	"fmt"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/DazeHolic/lvdb/lib/binlog"
	"github.com/DazeHolic/lvdb/lib/replication"
	"github.com/DazeHolic/lvdb/lib/store/lstore"
	"github.com/DazeHolic/lvdb/rpc/client"
	"github.com/DazeHolic/lvdb/rpc/common"
	"github.com/DazeHolic/lvdb/rpc/serializer"
	"github.com/DazeHolic/lvdb/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("rpc")

// NodeIDKey is the meta key the generated node id is stored under
const NodeIDKey = "node:id"

const defaultReplicationInterval = time.Second

// serverShard is a struct that represents a shard in the RPC server
// It contains the shard ID, the store it encapsulates, the adapter
// that handles requests for the store and the replicators feeding its peers
type serverShard struct {
	id          uint64
	store       *lstore.Store
	adapter     IRPCServerAdapter
	replicators []*replication.Replicator
	peers       []*peerProcessor
}

// NewRPCServer creates a new RPC server
// It takes a config, transport and serializer as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		tcp.NewTCPDefaultServerTransport(),
//		serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	// Create the RPC server
	return &RPCServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		shards:     xsync.NewMapOf[uint64, *serverShard](),
	}
}

type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	shards     *xsync.MapOf[uint64, *serverShard]
	admin      *adminServer
	closeOnce  sync.Once
}

// NodeID returns the configured or generated name of this server
func (s *RPCServer) NodeID() string {
	return s.config.NodeID
}

// handle is the transport handler: decode, dispatch to the shard adapter, encode
func (s *RPCServer) handle(shardId uint64, req []byte) []byte {
	var msg common.Message
	var respMsg *common.Message
	start := time.Now()

	// Get appropriate shard
	shard, ok := s.shards.Load(shardId)

	// Case shard does not exist -> error
	if !ok {
		respMsg = common.NewErrorResponse(fmt.Sprintf("shard %d not found", shardId))
	} else if err := s.serializer.Deserialize(req, &msg); err != nil {
		respMsg = common.NewErrorResponse(fmt.Sprintf("failed to deserialize request: %s", err))
	} else {
		// Let the adapter handle the request
		respMsg = shard.adapter.Handle(&msg, shard.store)
	}

	msgType := msg.MsgType.String()
	metrics.GetOrCreateCounter(`lvdb_rpc_requests_total{type="` + msgType + `"}`).Inc()
	metrics.GetOrCreateHistogram(`lvdb_rpc_request_duration_seconds{type="` + msgType + `"}`).Update(time.Since(start).Seconds())
	if respMsg.Err != "" {
		metrics.GetOrCreateCounter(`lvdb_rpc_errors_total{type="` + msgType + `"}`).Inc()
	}

	// Return result
	val, err := s.serializer.Serialize(*respMsg)
	if err != nil {
		Logger.Errorf("failed to serialize response: %v", err)
		val, _ = s.serializer.Serialize(*common.NewErrorResponse(fmt.Sprintf("failed to serialize response: %s", err)))
	}
	return val
}

func (s *RPCServer) init() error {
	// OPEN SHARDS

	for _, shardConfig := range s.config.Shards {
		if _, exists := s.shards.Load(shardConfig.ShardID); exists {
			s.closeShards()
			return fmt.Errorf("duplicate shard %d", shardConfig.ShardID)
		}
		st, err := lstore.Open(shardConfig.Options)
		if err != nil {
			s.closeShards()
			return fmt.Errorf("failed to open shard %d: %w", shardConfig.ShardID, err)
		}
		s.shards.Store(shardConfig.ShardID, &serverShard{
			id:      shardConfig.ShardID,
			store:   st,
			adapter: NewShardServerAdapter(),
		})
		Logger.Infof("opened store for shard %d at %s", shardConfig.ShardID, shardConfig.Options.Dir)
	}

	if err := s.initNodeID(); err != nil {
		s.closeShards()
		return err
	}

	// REPLICATION

	interval := defaultReplicationInterval
	if s.config.ReplicationIntervalMs > 0 {
		interval = time.Duration(s.config.ReplicationIntervalMs) * time.Millisecond
	}
	for _, shardConfig := range s.config.Shards {
		shard, _ := s.shards.Load(shardConfig.ShardID)
		for _, peer := range shardConfig.Peers {
			name := peer.Name
			if name == "" {
				name = s.config.NodeID
			}
			processor := newPeerProcessor(peer, s.config.TimeoutSecond, s.serializer)
			rep := replication.NewReplicator(name, shard.store, processor, interval)
			shard.replicators = append(shard.replicators, rep)
			shard.peers = append(shard.peers, processor)
			rep.Start()
			Logger.Infof("replicating shard %d to %s://%s shard %d as %s",
				shard.id, peer.Transport, peer.Endpoint, peer.ShardID, name)
		}
	}

	Logger.Infof("lvdb setup completed successfully")

	// Configure the transport layer
	s.transport.RegisterHandler(s.handle)

	return nil
}

// initNodeID uses the configured node id or the one stored in the first shard.
// A new id is generated and stored if neither exists.
func (s *RPCServer) initNodeID() error {
	if s.config.NodeID != "" || len(s.config.Shards) == 0 {
		return nil
	}
	first, _ := s.shards.Load(s.config.Shards[0].ShardID)
	id, found, err := first.store.MetaGet(NodeIDKey)
	if err != nil {
		return fmt.Errorf("read node id: %w", err)
	}
	if !found {
		id = []byte(uuid.NewString())
		if _, err := first.store.MetaSet(NodeIDKey, id); err != nil {
			return fmt.Errorf("store node id: %w", err)
		}
		Logger.Infof("generated node id %s", id)
	}
	s.config.NodeID = string(id)
	return nil
}

// Serve starts the RPC server
// This function will also open the shards, start replication and the admin endpoint
// and then block in the transport layer until Close is called
func (s *RPCServer) Serve() error {
	if err := s.init(); err != nil {
		return err
	}

	Logger.Infof("%s", s.config.String())

	if s.config.AdminEndpoint != "" {
		s.admin = newAdminServer(s)
		s.admin.start(s.config.AdminEndpoint)
	}

	return s.transport.Listen(s.config)
}

// Close stops the transport, the admin endpoint and all replicators and closes the stores
func (s *RPCServer) Close() error {
	var errs []error
	s.closeOnce.Do(func() {
		if err := s.transport.Close(); err != nil {
			errs = append(errs, err)
		}
		if s.admin != nil {
			if err := s.admin.stop(); err != nil {
				errs = append(errs, err)
			}
		}
		errs = append(errs, s.closeShards())
	})
	return errors.Join(errs...)
}

func (s *RPCServer) closeShards() error {
	var errs []error
	s.shards.Range(func(id uint64, shard *serverShard) bool {
		for _, rep := range shard.replicators {
			rep.Stop()
		}
		for _, p := range shard.peers {
			p.Close()
		}
		if err := shard.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close shard %d: %w", id, err))
		}
		s.shards.Delete(id)
		return true
	})
	return errors.Join(errs...)
}

// --------------------------------------------------------------------------
// Replication peers
// --------------------------------------------------------------------------

// peerProcessor connects to the follower on first use, so a follower that is
// down while the leader starts only delays replication
type peerProcessor struct {
	peer       common.ReplicationPeer
	config     common.ClientConfig
	serializer serializer.IRPCSerializer

	mu        sync.Mutex
	processor *client.RPCSyncProcessor
}

func newPeerProcessor(peer common.ReplicationPeer, timeoutSecond int64, s serializer.IRPCSerializer) *peerProcessor {
	return &peerProcessor{
		peer: peer,
		config: common.ClientConfig{
			TimeoutSecond: int(timeoutSecond),
			Transport: common.ClientTransportConfig{
				Endpoints:              []string{peer.Endpoint},
				RetryCount:             3,
				ConnectionsPerEndpoint: 1,
			},
		},
		serializer: s,
	}
}

func (p *peerProcessor) Apply(rec binlog.Record, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.processor == nil {
		t, err := client.NewTransport(p.peer.Transport)
		if err != nil {
			return err
		}
		processor, err := client.NewRPCSyncProcessor(p.peer.ShardID, p.config, t, p.serializer)
		if err != nil {
			return fmt.Errorf("connect to peer %s: %w", p.peer.Endpoint, err)
		}
		p.processor = processor
	}
	return p.processor.Apply(rec, value)
}

func (p *peerProcessor) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.processor != nil {
		if err := p.processor.Close(); err != nil {
			Logger.Warningf("failed to close connection to peer %s: %v", p.peer.Endpoint, err)
		}
		p.processor = nil
	}
}
