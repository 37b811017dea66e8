package transport

import (
	"github.com/DazeHolic/lvdb/rpc/common"
)

// ServerHandleFunc answers one serialized request addressed to a shard. It is called
// concurrently and must always return a response, errors travel inside it.
type ServerHandleFunc func(shardId uint64, req []byte) (resp []byte)

// IRPCServerTransport accepts requests and passes them to the registered handler
type IRPCServerTransport interface {
	// RegisterHandler must be called before Listen
	RegisterHandler(handler ServerHandleFunc)
	// Listen serves until Close is called, which makes it return nil
	Listen(config common.ServerConfig) error
	Close() error
}

// IRPCClientTransport carries requests to a server and waits for the answers
type IRPCClientTransport interface {
	Connect(config common.ClientConfig) error
	// Send is safe for concurrent use
	Send(shardId uint64, req []byte) (resp []byte, err error)
	Close() error
}
