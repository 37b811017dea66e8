package tcp

import (
	"fmt"
	"net"
	"time"

	"github.com/DazeHolic/lvdb/rpc/common"
	"github.com/DazeHolic/lvdb/rpc/transport"
	"github.com/DazeHolic/lvdb/rpc/transport/base"
)

const (
	defaultBufferSize     = 512 * 1024 // 512 KB
	defaultWorkersPerConn = 32
	dialTimeout           = 5 * time.Second
)

// NewTCPClientTransport creates a client transport that dials host:port endpoints
func NewTCPClientTransport() transport.IRPCClientTransport {
	return base.NewBaseClientTransport(clientConnector{})
}

// NewTCPDefaultServerTransport creates a server transport with a 512 KB read buffer per request
func NewTCPDefaultServerTransport() transport.IRPCServerTransport {
	return NewTCPServerTransport(defaultBufferSize)
}

// NewTCPServerTransport creates a server transport with the given read buffer size
func NewTCPServerTransport(bufferSize int) transport.IRPCServerTransport {
	return base.NewBaseServerTransport(serverConnector{}, bufferSize, defaultWorkersPerConn)
}

type clientConnector struct{}

func (clientConnector) GetName() string { return "tcp" }

func (clientConnector) Connect(endpoint string) (net.Conn, error) {
	return net.DialTimeout("tcp", endpoint, dialTimeout)
}

func (clientConnector) UpgradeConnection(conn net.Conn, config common.ClientConfig) error {
	return tune(conn, config.Transport.SocketConf, config.Transport.TCPConf)
}

type serverConnector struct{}

func (serverConnector) GetName() string { return "tcp" }

func (serverConnector) Listen(config common.ServerConfig) (net.Listener, error) {
	listener, err := net.Listen("tcp", config.Transport.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", config.Transport.Endpoint, err)
	}
	return listener, nil
}

func (serverConnector) UpgradeConnection(conn net.Conn, config common.ServerConfig) error {
	return tune(conn, config.Transport.SocketConf, config.Transport.TCPConf)
}

// tune applies the socket and TCP options shared by client and server.
// Connections that are no *net.TCPConn are left untouched.
func tune(conn net.Conn, socket common.SocketConf, opts common.TCPConf) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}

	if err := tcpConn.SetNoDelay(opts.TCPNoDelay); err != nil {
		return err
	}
	if socket.WriteBufferSize > 0 {
		if err := tcpConn.SetWriteBuffer(socket.WriteBufferSize); err != nil {
			return err
		}
	}
	if socket.ReadBufferSize > 0 {
		if err := tcpConn.SetReadBuffer(socket.ReadBufferSize); err != nil {
			return err
		}
	}
	if opts.TCPKeepAliveSec > 0 {
		if err := tcpConn.SetKeepAlive(true); err != nil {
			return err
		}
		if err := tcpConn.SetKeepAlivePeriod(time.Duration(opts.TCPKeepAliveSec) * time.Second); err != nil {
			return err
		}
	}
	// values <= 0 keep the os default
	if opts.TCPLingerSec > 0 {
		if err := tcpConn.SetLinger(opts.TCPLingerSec); err != nil {
			return err
		}
	}
	return nil
}
