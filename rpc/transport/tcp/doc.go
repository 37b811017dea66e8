// Package tcp connects lvdb clients and servers over TCP. Endpoints are host:port
// strings. The socket options of common.TCPConf and common.SocketConf are applied on
// both sides. Framing, pooling and retries come from the base package.
package tcp
