// Package store defines the typed operation surface of lvdb: strings, hashes,
// sorted sets, queues and meta keys mapped onto one ordered keyspace.
//
// Key Components:
//
//   - IStore Interface: every operation a request handler can dispatch. Writes take a
//     binlog.Type so that writes replayed from another node (binlog.TypeMirror) are
//     applied without being logged again.
//
//   - Error System: a structured error with a RetCode. Malformed input surfaces as
//     RetCInvalidOperation, engine failures as RetCInternalError wrapping the engine error.
//     Absence is never an error.
//
//   - Options: the store configuration, loadable from the "lvdb" section of a YAML file
//     with optional per-database overrides.
//
// Implementations:
//
//   - Local Store (lstore): the embedded implementation over a db.KVDB with a binlog queue
//     in the same engine.
//   - RPC Store (rpc/client): forwards every operation to a remote server.
package store
