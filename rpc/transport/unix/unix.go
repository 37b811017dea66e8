package unix

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/DazeHolic/lvdb/rpc/common"
	"github.com/DazeHolic/lvdb/rpc/transport"
	"github.com/DazeHolic/lvdb/rpc/transport/base"
)

const (
	defaultBufferSize     = 64 * 1024 // 64 KB
	defaultWorkersPerConn = 32
	dialTimeout           = 5 * time.Second
)

// NewUnixClientTransport creates a client transport whose endpoints are socket paths
func NewUnixClientTransport() transport.IRPCClientTransport {
	return base.NewBaseClientTransport(clientConnector{})
}

// NewUnixDefaultServerTransport creates a server transport with a 64 KB read buffer per request
func NewUnixDefaultServerTransport() transport.IRPCServerTransport {
	return NewUnixServerTransport(defaultBufferSize)
}

// NewUnixServerTransport creates a server transport with the given read buffer size
func NewUnixServerTransport(bufferSize int) transport.IRPCServerTransport {
	return base.NewBaseServerTransport(serverConnector{}, bufferSize, defaultWorkersPerConn)
}

type clientConnector struct{}

func (clientConnector) GetName() string { return "unix" }

func (clientConnector) Connect(endpoint string) (net.Conn, error) {
	return net.DialTimeout("unix", endpoint, dialTimeout)
}

func (clientConnector) UpgradeConnection(net.Conn, common.ClientConfig) error { return nil }

type serverConnector struct{}

func (serverConnector) GetName() string { return "unix" }

// Listen replaces a stale socket file at the endpoint, any other file is an error
func (serverConnector) Listen(config common.ServerConfig) (net.Listener, error) {
	path := config.Transport.Endpoint

	if fi, err := os.Lstat(path); err == nil {
		if fi.Mode()&os.ModeSocket == 0 {
			return nil, fmt.Errorf("%s exists and is no socket", path)
		}
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("failed to remove stale socket %s: %w", path, err)
		}
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", path, err)
	}
	return listener, nil
}

func (serverConnector) UpgradeConnection(net.Conn, common.ServerConfig) error { return nil }
