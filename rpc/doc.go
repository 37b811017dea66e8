// Package rpc is the communication layer of lvdb. Clients use it to run store operations on
// a remote server, and leaders use it to push binlog records to their followers.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures and utilities used across the RPC system,
//     including the Message protocol, configuration structures, and logging.
//
//   - transport: Network communication abstractions with pluggable implementations
//     (TCP, Unix sockets, HTTP).
//
//   - serializer: Message serialization with multiple format options (Binary, JSON, GOB)
//     for converting between Message objects and byte arrays.
//
//   - client: RPCStore implements store.IStore over the network, RPCSyncProcessor
//     forwards replicated records to a follower shard.
//
//   - server: Hosts the shards, dispatches requests to the store and replication
//     adapters and runs the replicators and the admin endpoint.
package rpc
