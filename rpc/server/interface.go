package server

import (
	"github.com/DazeHolic/lvdb/lib/binlog"
	"github.com/DazeHolic/lvdb/lib/store"
	"github.com/DazeHolic/lvdb/rpc/common"
)

// ShardStore is the store a shard serves: the typed operations plus its binlog
type ShardStore interface {
	store.IStore
	Binlogs() *binlog.Queue
}

// IRPCServerAdapter is the interface for all RPC server adapters
// It is responsible for handling requests and responses
type IRPCServerAdapter interface {
	// Handle handles a request and returns a response
	// It takes a Message and a store as parameters.
	// It returns a Message as a response
	// If an error occurs, it should be set in the response
	Handle(req *common.Message, store ShardStore) (resp *common.Message)
}
