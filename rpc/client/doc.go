// Package client implements RPC clients for lvdb servers.
//
// Key Components:
//
//   - NewRPCStore: creates an *RPCStore, a store.IStore whose operations run on a
//     remote shard. Server side store errors come back as *store.Error with their
//     original code. BinlogStats and BinlogFind inspect the binlog of the shard.
//
//   - NewRPCSyncProcessor: creates a replication.Processor that replays binlog
//     records on a follower shard. Leaders use it for their replication peers.
//
//   - NewTransport and NewSerializer: select transport and serializer by name.
//
// Usage Example:
//
//	config := common.ClientConfig{
//	  TimeoutSecond: 5,
//	  Transport: common.ClientTransportConfig{
//	    Endpoints:              []string{"localhost:8080"},
//	    RetryCount:             3,
//	    ConnectionsPerEndpoint: 1,
//	  },
//	}
//
//	s, _ := client.NewRPCStore(1, config, tcp.NewTCPClientTransport(), serializer.NewBinarySerializer())
//	defer s.Close()
//
//	s.Set("mykey", []byte("myvalue"), binlog.TypeSync)
//	value, found, _ := s.Get("mykey")
//
// Performance Considerations:
//
//   - For applications that frequently send large payloads, increasing ConnectionsPerEndpoint
//     can improve throughput by allowing parallel requests.
//
//   - The choice of serializer significantly affects performance. The binary serializer
//     provides the best performance and smallest payload size.
//
// Thread Safety:
//
//	All client implementations are thread-safe and can be used concurrently from
//	multiple goroutines without additional synchronization.
package client
