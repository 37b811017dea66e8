// Package transport defines how serialized lvdb messages move between client and
// server. A transport never looks into the payload, it only carries bytes and the
// id of the shard a request is meant for.
//
// Implementations:
//
//   - tcp: framed requests over TCP, many requests in flight per connection
//   - unix: the same framing over unix domain sockets
//   - http: one POST per request to /{shardId}
package transport
