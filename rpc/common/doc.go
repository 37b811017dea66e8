// Package common provides core data structures and utilities shared across
// the RPC client, server and transports. It defines the wire message, the
// configuration structures and the logger setup used by other packages.
//
// Key Components:
//
//   - Message: Core data structure for all RPC communication. One flat struct
//     carries every operation of store.IStore plus the replication and admin calls,
//     the MessageType decides which fields are meaningful. Store errors travel as
//     message and store.RetCode, so clients get a *store.Error back.
//
//   - MessageType: Enumeration of all supported operations, grouped by data type
//     (strings, hashes, sorted sets, queues, meta) and administration. The JSON
//     form of a MessageType is its name.
//
//   - ServerConfig: Shards with their store.Options and replication peers, the
//     transport settings and the admin endpoint.
//
//   - ClientConfig: Configuration for client components, controlling connection
//     parameters, timeouts, and retry behavior.
//
//   - Logger: Custom format for the dragonboat logger package, which every package
//     of this module uses for its named logger.
package common
