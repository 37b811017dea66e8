package client

import (
	"github.com/DazeHolic/lvdb/lib/binlog"
	"github.com/DazeHolic/lvdb/lib/replication"
	"github.com/DazeHolic/lvdb/rpc/common"
	"github.com/DazeHolic/lvdb/rpc/serializer"
	"github.com/DazeHolic/lvdb/rpc/transport"
)

// NewRPCSyncProcessor creates a replication.Processor that replays every record on a
// remote shard. The follower applies the records as mirror writes.
func NewRPCSyncProcessor(
	shardId uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (*RPCSyncProcessor, error) {
	adapter, err := newRPCClientAdapter(shardId, config, transport, serializer)
	if err != nil {
		return nil, err
	}
	return &RPCSyncProcessor{adapter}, nil
}

// RPCSyncProcessor forwards binlog records to a follower shard
type RPCSyncProcessor struct {
	rpcClientAdapter
}

var _ replication.Processor = (*RPCSyncProcessor)(nil)

func (p *RPCSyncProcessor) Apply(rec binlog.Record, value []byte) error {
	_, err := p.call(common.NewReplApplyRequest(rec, value))
	if err != nil {
		Logger.Debugf("replay of %s on shard %d failed: %v", rec.Describe(), p.shardId, err)
	}
	return err
}
