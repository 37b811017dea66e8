// Package server implements the RPC server of lvdb. It hosts a set of shards, each one a
// local store with its own binlog, and routes every request to the shard it addresses.
//
// Key Components:
//
//   - IRPCServerAdapter: Interface defining the contract for all server adapters,
//     with the Handle method that processes incoming requests against a shard.
//
//   - NewIStoreServerAdapter: Translates RPC requests to store.IStore method calls.
//
//   - NewReplicationServerAdapter: Replays binlog records sent by a leader (ReplApply)
//     and answers binlog inspection requests.
//
//   - NewRPCServer: Factory function creating a configured server with the specified
//     transport and serializer mechanisms.
//
// Replication:
//
//	Every peer configured for a shard gets a replication.Replicator. It tails the binlog of
//	the shard and forwards SYNC records to the peer shard with a ReplApply request. The peer
//	replays them as MIRROR writes, so nothing is logged or forwarded again.
//
// Usage Example:
//
//	config := common.ServerConfig{
//	  Shards: []common.ServerShard{
//	    {ShardID: 1, Options: store.DefaultOptions(), Peers: []common.ReplicationPeer{
//	      {Transport: "tcp", Endpoint: "10.0.0.2:8080", ShardID: 1},
//	    }},
//	  },
//	  Transport:     common.ServerTransportConfig{Endpoint: "0.0.0.0:8080"},
//	  AdminEndpoint: "127.0.0.1:9090",
//	  TimeoutSecond: 5,
//	}
//
//	s := server.NewRPCServer(
//	  config,
//	  tcp.NewTCPDefaultServerTransport(),
//	  serializer.NewBinarySerializer(),
//	)
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Admin Endpoint:
//
//	If AdminEndpoint is set, an HTTP server exposes /health, /metrics (Prometheus text format),
//	/shards with binlog and replication status per shard and /shards/{id}/binlog/{seq}.
//
// Thread Safety:
//
//	The server handles concurrent requests across multiple connections. Serve must be
//	called only once, Close may be called from any goroutine.
package server
