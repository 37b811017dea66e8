// Package cmd implements the command-line interface of lvdb. It provides a hierarchical
// command structure with operations for running the server and interacting with it as a client.
//
// The package is organized into several subpackages:
//
//   - serve: Starts the server with its shards, replication peers and admin endpoint
//   - kv: Commands for string keys (get, set, incr, scan, ...) and the performance test
//   - hash: Commands for hashes
//   - zset: Commands for sorted sets
//   - queue: Commands for queues
//   - admin: Meta keys, database info and binlog inspection
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See lvdb -help for a list of all commands.
package cmd
