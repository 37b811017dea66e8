// Package base holds the stream transport shared by the tcp and unix transports of
// lvdb. The concrete transports only supply a connector that dials, listens and
// tunes sockets, everything else lives here.
//
// Wire format:
//
//	shard id (8) | request id (8) | payload length (4) | payload
//
// All integers are big endian and payloads are capped at MaxFrameSize. The shard id
// routes a request to a shard of the server, the request id pairs a response with
// its request, so many requests can be in flight on one connection.
//
// Client side, every endpoint gets ConnectionsPerEndpoint connections that are used
// round robin. Each connection has one reader goroutine that hands responses to the
// waiting callers. When a connection breaks, its waiting requests fail at once and
// the next request dials again. Send retries failed attempts on the following
// connections with exponential backoff.
//
// Server side, each accepted connection reads frames in a loop and runs the handler
// in at most WorkersPerConn goroutines. Read buffers come from a sync.Pool.
// Connections idle for longer than the server timeout are closed.
package base
