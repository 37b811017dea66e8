package base

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/DazeHolic/lvdb/rpc/common"
	"github.com/DazeHolic/lvdb/rpc/transport"
)

// IServerConnector defines the interface for transport-specific server operations
type IServerConnector interface {
	// Listen creates the listener for config.Transport.Endpoint
	Listen(config common.ServerConfig) (net.Listener, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an accepted connection
	UpgradeConnection(conn net.Conn, config common.ServerConfig) error
}

// serverTransport accepts connections and runs the handler for every frame read from them
type serverTransport struct {
	connector IServerConnector
	handler   transport.ServerHandleFunc
	config    common.ServerConfig

	bufferSize     int
	workersPerConn int
	buffers        sync.Pool

	mu       sync.Mutex
	listener net.Listener
	closed   atomic.Bool
}

// NewBaseServerTransport creates a server transport. BufferSize and WorkersPerConn of the
// transport config passed to Listen override the defaults given here.
func NewBaseServerTransport(connector IServerConnector, bufferSize int, workersPerConn int) transport.IRPCServerTransport {
	return &serverTransport{
		connector:      connector,
		bufferSize:     bufferSize,
		workersPerConn: workersPerConn,
	}
}

func (t *serverTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

func (t *serverTransport) Listen(config common.ServerConfig) error {
	t.config = config
	if config.Transport.BufferSize > 0 {
		t.bufferSize = config.Transport.BufferSize
	}
	if config.Transport.WorkersPerConn > 0 {
		t.workersPerConn = config.Transport.WorkersPerConn
	}
	t.workersPerConn = max(t.workersPerConn, 1)
	bufferSize := t.bufferSize
	t.buffers.New = func() any {
		buf := make([]byte, bufferSize)
		return &buf
	}

	listener, err := t.connector.Listen(config)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	t.mu.Lock()
	t.listener = listener
	t.mu.Unlock()

	// Close was called before the listener existed
	if t.closed.Load() {
		return listener.Close()
	}

	Logger.Infof("Starting %s server on %s with %d workers per connection",
		t.connector.GetName(), config.Transport.Endpoint, t.workersPerConn)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if t.closed.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			Logger.Errorf("Accept error: %v", err)
			continue
		}

		if err := t.connector.UpgradeConnection(conn, config); err != nil {
			Logger.Warningf("Failed to upgrade connection from %s: %v", conn.RemoteAddr(), err)
		}

		sc := &serverConn{
			t:       t,
			conn:    conn,
			timeout: time.Duration(config.TimeoutSecond) * time.Second,
			slots:   make(chan struct{}, t.workersPerConn),
		}
		go sc.serve()
	}
}

// Close stops accepting connections. Open connections end when their clients hang up
// or stay idle for longer than the timeout.
func (t *serverTransport) Close() error {
	t.closed.Store(true)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener == nil {
		return nil
	}
	return t.listener.Close()
}

// serverConn serves one accepted connection
type serverConn struct {
	t       *serverTransport
	conn    net.Conn
	timeout time.Duration

	slots   chan struct{} // limits the concurrent handlers
	workers sync.WaitGroup
	writeMu sync.Mutex
}

func (c *serverConn) serve() {
	defer c.conn.Close()
	defer c.workers.Wait()

	for {
		err := c.next()
		if err == nil {
			continue
		}

		var netErr net.Error
		switch {
		case errors.Is(err, io.EOF):
			Logger.Debugf("Connection closed by client %s", c.conn.RemoteAddr())
		case errors.As(err, &netErr) && netErr.Timeout():
			Logger.Debugf("Closing idle connection from %s", c.conn.RemoteAddr())
		case !c.t.closed.Load():
			Logger.Errorf("Error handling request from %s: %v", c.conn.RemoteAddr(), err)
		}
		return
	}
}

// next reads one frame and hands it to a worker, blocking while all workers are busy
func (c *serverConn) next() error {
	if c.timeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
			return fmt.Errorf("failed to set read deadline: %w", err)
		}
	}

	buf := c.t.buffers.Get().(*[]byte)
	shardID, requestID, data, err := readFrame(c.conn, *buf)
	if err != nil {
		c.t.buffers.Put(buf)
		return err
	}

	c.slots <- struct{}{}
	c.workers.Add(1)
	go func() {
		defer func() {
			c.t.buffers.Put(buf)
			<-c.slots
			c.workers.Done()
		}()
		c.handle(shardID, requestID, data)
	}()
	return nil
}

func (c *serverConn) handle(shardID, requestID uint64, data []byte) {
	start := time.Now()
	resp := c.t.handler(shardID, data)
	Logger.Debugf("Request %d for shard %d took %s", requestID, shardID, time.Since(start))

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.timeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
			Logger.Errorf("Failed to set write deadline: %v", err)
			return
		}
	}
	if err := writeFrame(c.conn, shardID, requestID, resp); err != nil {
		Logger.Errorf("Failed to write response for request %d: %v", requestID, err)
	}
}
