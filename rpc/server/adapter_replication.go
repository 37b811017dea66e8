package server

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/DazeHolic/lvdb/lib/binlog"
	"github.com/DazeHolic/lvdb/lib/db/keys"
	"github.com/DazeHolic/lvdb/lib/replication"
	"github.com/DazeHolic/lvdb/lib/store"
	"github.com/DazeHolic/lvdb/rpc/common"
)

// NewReplicationServerAdapter creates the adapter for the follower side of replication
// (MsgTReplApply) and the binlog and database inspection calls
func NewReplicationServerAdapter() IRPCServerAdapter {
	return &replicationServerAdapterImpl{}
}

type replicationServerAdapterImpl struct{}

func (adapter *replicationServerAdapterImpl) Handle(req *common.Message, s ShardStore) *common.Message {
	if s == nil {
		return common.NewErrorResponse("handler: store is nil")
	}

	switch req.MsgType {
	case common.MsgTReplApply:
		rec, err := binlog.Unmarshal(req.Meta)
		if err == nil {
			err = replication.NewLocalApply(s).Apply(rec, req.Value)
		}
		if errors.Is(err, binlog.ErrMalformed) || errors.Is(err, keys.ErrMalformed) {
			err = store.WrapError(store.RetCInvalidOperation, "repl_apply", err)
		}
		return common.NewResponse(req.MsgType, err)

	case common.MsgTBinlogStats:
		q := s.Binlogs()
		resp := common.NewResponse(req.MsgType, nil)
		resp.Value = []byte(q.Stats())
		resp.Ok = q.Enabled()
		resp.Entries = []store.Entry{
			{Key: "capacity", Score: int64(q.Capacity())},
			{Key: "min_seq", Score: int64(q.MinSeq())},
			{Key: "max_seq", Score: int64(q.MaxSeq())},
		}
		return resp

	case common.MsgTBinlogFind:
		rec, found, err := s.Binlogs().FindNext(uint64(req.Num))
		resp := common.NewResponse(req.MsgType, err)
		if found {
			resp.Ok = true
			resp.Meta = rec.Marshal()
		}
		return resp

	case common.MsgTDBInfo:
		info, err := s.GetDBInfo()
		if err != nil {
			return common.NewResponse(req.MsgType, err)
		}
		data, err := json.Marshal(info)
		resp := common.NewResponse(req.MsgType, err)
		resp.Value = data
		return resp

	default:
		return common.NewErrorResponse(
			fmt.Sprintf("RPC ReplicationAdapter - Unsupported message type: %s", req.MsgType),
		)
	}
}

// NewShardServerAdapter creates the adapter every shard uses: replication and
// inspection calls go to the replication adapter, everything else to the store adapter
func NewShardServerAdapter() IRPCServerAdapter {
	return &shardServerAdapterImpl{
		store:       NewIStoreServerAdapter(),
		replication: NewReplicationServerAdapter(),
	}
}

type shardServerAdapterImpl struct {
	store       IRPCServerAdapter
	replication IRPCServerAdapter
}

func (adapter *shardServerAdapterImpl) Handle(req *common.Message, s ShardStore) *common.Message {
	switch req.MsgType {
	case common.MsgTReplApply, common.MsgTBinlogStats, common.MsgTBinlogFind, common.MsgTDBInfo:
		return adapter.replication.Handle(req, s)
	default:
		return adapter.store.Handle(req, s)
	}
}
