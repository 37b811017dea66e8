// Package unix connects lvdb clients and servers on one machine through unix domain
// sockets. Endpoints are socket paths, a stale socket file is replaced when the
// server starts. Framing, pooling and retries come from the base package.
package unix
