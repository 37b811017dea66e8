package common

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/DazeHolic/lvdb/lib/store"
)

// --------------------------------------------------------------------------
// Transport configuration
// --------------------------------------------------------------------------

// SocketConf holds the socket buffer sizes (bytes, 0 = os default)
type SocketConf struct {
	WriteBufferSize int
	ReadBufferSize  int
}

// TCPConf holds the TCP specific socket options
type TCPConf struct {
	TCPNoDelay      bool
	TCPKeepAliveSec int
	TCPLingerSec    int
}

type ServerTransportConfig struct {
	// Endpoint is the listen address (host:port or socket path)
	Endpoint string
	// WorkersPerConn limits the requests processed concurrently per connection
	WorkersPerConn int
	// BufferSize is the size of the pooled read buffers
	BufferSize int
	SocketConf
	TCPConf
}

type ClientTransportConfig struct {
	Endpoints              []string
	RetryCount             int
	ConnectionsPerEndpoint int
	SocketConf
	TCPConf
}

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// ReplicationPeer is a follower shard the leader shard pushes its binlog to
type ReplicationPeer struct {
	// Name identifies the peer in the meta keys of the leader (sync cursor, copy checkpoint)
	Name string
	// Transport is one of http, tcp, unix
	Transport string
	// Endpoint of the follower server
	Endpoint string
	// ShardID of the follower shard
	ShardID uint64
}

type ServerShard struct {
	// ShardID is the ID of the shard
	ShardID uint64
	// Options configures the local store of the shard
	Options store.Options
	// Peers receive the writes of this shard
	Peers []ReplicationPeer
}

// ServerConfig holds all configuration parameters of a server process
type ServerConfig struct {
	Shards []ServerShard

	// NodeID is the name of this server, used as default peer name on followers
	NodeID string

	// Timeout for reads and writes on a connection
	TimeoutSecond int64

	Transport ServerTransportConfig

	// AdminEndpoint is the listen address of the admin HTTP api (metrics, binlog stats), empty = disabled
	AdminEndpoint string

	// ReplicationIntervalMs is the pause between two sync passes of a replicator
	ReplicationIntervalMs int

	// Logging configuration
	LogLevel string
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// RPC settings
	addSection("RPC Server")
	addField("Node ID", c.NodeID)
	addField("Endpoint", c.Transport.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Workers Per Conn", strconv.Itoa(c.Transport.WorkersPerConn))
	addField("Admin Endpoint", c.AdminEndpoint)

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	// Shards
	addSection("Shards")
	for _, shard := range c.Shards {
		o := shard.Options
		addField(strconv.FormatUint(shard.ShardID, 10),
			fmt.Sprintf("%s at %s (binlog=%t, capacity=%d)", o.Engine, o.Dir, o.Replication.Binlog, o.Replication.Capacity))
		for _, p := range shard.Peers {
			addField("  -> "+p.Name, fmt.Sprintf("%s://%s shard %d", p.Transport, p.Endpoint, p.ShardID))
		}
	}
	if c.HasPeers() {
		addField("Sync Interval", fmt.Sprintf("%d ms", c.ReplicationIntervalMs))
	}

	return sb.String()
}

// HasPeers checks if any shard replicates to a follower
func (c *ServerConfig) HasPeers() bool {
	for _, shard := range c.Shards {
		if len(shard.Peers) > 0 {
			return true
		}
	}
	return false
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

type ClientConfig struct {
	TimeoutSecond int
	Transport     ClientTransportConfig
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// General Client Settings
	addSection("Client Configuration")
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Retry Count", strconv.Itoa(c.Transport.RetryCount))
	addField("Connections Per Endpoint", strconv.Itoa(int(math.Max(1, float64(c.Transport.ConnectionsPerEndpoint)))))

	// Endpoints
	addSection("Endpoints")
	for i, endpoint := range c.Transport.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}

	return sb.String()
}
