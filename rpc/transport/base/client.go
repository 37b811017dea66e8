package base

import (
	"errors"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/DazeHolic/lvdb/rpc/common"
	"github.com/DazeHolic/lvdb/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("transport/rpc")

var (
	errConnClosed  = errors.New("connection is closed")
	errTimeout     = errors.New("request timed out")
	errTransClosed = errors.New("transport is closed")
)

// initialBackoff is the pause before the second attempt, it doubles with every retry
const initialBackoff = 50 * time.Millisecond

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single connection based on the provided configuration
	Connect(endpoint string) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn, config common.ClientConfig) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// responseResult contains the result of a request
type responseResult struct {
	data []byte
	err  error
}

// clientConnection is one multiplexed connection to an endpoint. While conn is set,
// exactly one readResponses goroutine owns the read side.
type clientConnection struct {
	endpoint string
	parent   *clientTransport
	pending  *xsync.MapOf[uint64, chan responseResult]

	mu     sync.Mutex // guards conn and serializes frame writes
	conn   net.Conn
	closed bool
}

// clientTransport implements the core client transport functionality
// independent of the specific transport medium (unix, tcp, etc.)
type clientTransport struct {
	connector     IClientConnector
	config        common.ClientConfig
	connections   []*clientConnection
	connectionsMu sync.RWMutex
	nextConnIndex atomic.Uint64 // Round Robin
	nextRequestID atomic.Uint64
	stopping      atomic.Bool
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseClientTransport creates a new base client transport with the specified connector
func NewBaseClientTransport(connector IClientConnector) transport.IRPCClientTransport {
	return &clientTransport{
		connector: connector,
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

// Connect opens ConnectionsPerEndpoint connections to every endpoint. It fails only if no
// connection at all could be made; broken connections are reopened by Send.
func (t *clientTransport) Connect(config common.ClientConfig) error {
	if len(config.Transport.Endpoints) == 0 {
		return fmt.Errorf("no endpoints provided")
	}

	// Close all existing connections
	t.closeConnections()

	t.config = config
	t.stopping.Store(false)

	connectionsPerEP := max(config.Transport.ConnectionsPerEndpoint, 1)
	total := len(config.Transport.Endpoints) * connectionsPerEP
	connections := make([]*clientConnection, 0, total)
	connected := 0

	for _, endpoint := range config.Transport.Endpoints {
		for i := 0; i < connectionsPerEP; i++ {
			c := &clientConnection{
				endpoint: endpoint,
				parent:   t,
				pending:  xsync.NewMapOf[uint64, chan responseResult](),
			}
			connections = append(connections, c)

			if err := c.ensureConnected(); err != nil {
				Logger.Warningf("Failed to connect to %s (connection %d/%d): %v", endpoint, i+1, connectionsPerEP, err)
				continue
			}
			connected++
		}
	}

	if connected == 0 {
		for _, c := range connections {
			c.close()
		}
		return fmt.Errorf("failed to connect to any endpoint")
	}

	t.connectionsMu.Lock()
	t.connections = connections
	t.connectionsMu.Unlock()

	Logger.Infof("Connected %d of %d connections to %d endpoints using %s transport",
		connected, total, len(config.Transport.Endpoints), t.connector.GetName())

	return nil
}

// Send writes the request on the next connection and waits for the response with the same
// request id. Failed attempts are retried on the following connections with exponential backoff.
func (t *clientTransport) Send(shardId uint64, req []byte) ([]byte, error) {
	var lastErr error

	// We always try at least once, and up to RetryCount times
	maxRetries := max(t.config.Transport.RetryCount, 1)
	backoff := initialBackoff

	for i := 0; i < maxRetries; i++ {
		if t.stopping.Load() {
			return nil, errTransClosed
		}

		c := t.getNextConnection()
		if c == nil {
			return nil, fmt.Errorf("no active connections available")
		}

		data, err := c.roundTrip(shardId, t.nextRequestID.Add(1), req)
		if err == nil {
			return data, nil
		}

		lastErr = err
		Logger.Debugf("Request attempt %d/%d to %s failed: %v", i+1, maxRetries, c.endpoint, err)

		if i < maxRetries-1 {
			// small random jitter (+-10%)
			jitter := 0.9 + 0.2*rand.Float64()
			time.Sleep(time.Duration(float64(backoff) * jitter))
			backoff *= 2
		}
	}

	return nil, fmt.Errorf("failed to send request after %d attempts: %w", maxRetries, lastErr)
}

func (t *clientTransport) Close() error {
	t.stopping.Store(true)
	t.closeConnections()
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (t *clientTransport) timeout() time.Duration {
	return time.Duration(t.config.TimeoutSecond) * time.Second
}

// getNextConnection selects the next connection via Round Robin
func (t *clientTransport) getNextConnection() *clientConnection {
	t.connectionsMu.RLock()
	defer t.connectionsMu.RUnlock()

	switch len(t.connections) {
	case 0:
		return nil
	case 1:
		return t.connections[0]
	}
	return t.connections[t.nextConnIndex.Add(1)%uint64(len(t.connections))]
}

// closeConnections closes all connections and fails their pending requests
func (t *clientTransport) closeConnections() {
	t.connectionsMu.Lock()
	connections := t.connections
	t.connections = nil
	t.connectionsMu.Unlock()

	for _, c := range connections {
		c.close()
	}
}

// roundTrip sends one request frame and waits for its response
func (c *clientConnection) roundTrip(shardId, requestID uint64, req []byte) ([]byte, error) {
	if err := c.ensureConnected(); err != nil {
		return nil, err
	}

	respCh := make(chan responseResult, 1)
	c.pending.Store(requestID, respCh)
	defer c.pending.Delete(requestID)

	timeout := c.parent.timeout()
	if err := c.write(shardId, requestID, req, timeout); err != nil {
		return nil, err
	}

	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case result := <-respCh:
		return result.data, result.err
	case <-timeoutCh:
		return nil, errTimeout
	}
}

// write sends one frame, a failed write drops the connection
func (c *clientConnection) write(shardId, requestID uint64, req []byte, timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn := c.conn
	if conn == nil {
		return errConnClosed
	}
	if timeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return err
		}
	}
	if err := writeFrame(conn, shardId, requestID, req); err != nil {
		_ = conn.Close() // the reader notices and fails the pending requests
		return err
	}
	return nil
}

// ensureConnected dials the endpoint if the connection is down and starts its reader
func (c *clientConnection) ensureConnected() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errConnClosed
	}
	if c.conn != nil {
		return nil
	}

	conn, err := c.parent.connector.Connect(c.endpoint)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.endpoint, err)
	}

	// Upgrade the connection with protocol-specific settings
	if err := c.parent.connector.UpgradeConnection(conn, c.parent.config); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to upgrade connection to %s: %w", c.endpoint, err)
	}

	c.conn = conn
	go c.readResponses(conn)
	return nil
}

// readResponses reads frames from conn and hands them to the waiting requests until conn fails
func (c *clientConnection) readResponses(conn net.Conn) {
	for {
		shardID, requestID, data, err := readFrame(conn, nil)
		if err != nil {
			c.drop(conn, err)
			return
		}

		if respCh, found := c.pending.Load(requestID); found {
			respCh <- responseResult{data: data}
		} else {
			Logger.Warningf("Received response for unknown request ID %d with shard ID %d", requestID, shardID)
		}
	}
}

// drop forgets a failed connection and fails every request still waiting on it.
// The next request dials again.
func (c *clientConnection) drop(conn net.Conn, cause error) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	closed := c.closed
	c.mu.Unlock()
	_ = conn.Close()

	if !closed {
		Logger.Debugf("Connection to %s lost: %v", c.endpoint, cause)
	}
	err := fmt.Errorf("error reading response: %w", cause)
	c.pending.Range(func(id uint64, respCh chan responseResult) bool {
		select {
		case respCh <- responseResult{err: err}:
		default:
		}
		return true
	})
}

// close shuts the connection down for good
func (c *clientConnection) close() {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
}
