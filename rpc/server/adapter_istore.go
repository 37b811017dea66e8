package server

import (
	"fmt"
	"strconv"

	"github.com/DazeHolic/lvdb/lib/store"
	"github.com/DazeHolic/lvdb/rpc/common"
)

func NewIStoreServerAdapter() IRPCServerAdapter {
	return &iStoreServerAdapterImpl{}
}

type iStoreServerAdapterImpl struct{}

func (adapter *iStoreServerAdapterImpl) Handle(req *common.Message, s ShardStore) *common.Message {
	// Check for nil store
	if s == nil {
		return common.NewErrorResponse("handler: store is nil")
	}

	t := req.MsgType
	lt := req.BinlogType()
	limit := int(req.Limit)

	// Handle different message types
	switch t {

	// Strings

	case common.MsgTKVGet:
		return valueResponse(t)(s.Get(req.Key))
	case common.MsgTKVSet:
		return countResponse(t)(s.Set(req.Key, req.Value, lt))
	case common.MsgTKVSetNX:
		return countResponse(t)(s.SetNX(req.Key, req.Value, lt))
	case common.MsgTKVGetSet:
		return valueResponse(t)(s.GetSet(req.Key, req.Value, lt))
	case common.MsgTKVDel:
		return countResponse(t)(s.Del(req.Key, lt))
	case common.MsgTKVIncr:
		return countResponse(t)(s.Incr(req.Key, req.Num, lt))
	case common.MsgTKVMultiSet:
		return countResponse(t)(s.MultiSet(req.Entries, lt))
	case common.MsgTKVMultiDel:
		keys := make([]string, len(req.Entries))
		for i, e := range req.Entries {
			keys[i] = e.Key
		}
		return countResponse(t)(s.MultiDel(keys, lt))
	case common.MsgTKVSetBit:
		return countResponse(t)(s.SetBit(req.Key, int(req.Offset), req.Num != 0, lt))
	case common.MsgTKVGetBit:
		return countResponse(t)(s.GetBit(req.Key, int(req.Offset)))
	case common.MsgTKVScan:
		return entriesResponse(t)(s.Scan(req.Start, req.End, limit))
	case common.MsgTKVRScan:
		return entriesResponse(t)(s.RScan(req.Start, req.End, limit))

	// Hashes

	case common.MsgTHGet:
		return valueResponse(t)(s.HGet(req.Name, req.Key))
	case common.MsgTHSet:
		return countResponse(t)(s.HSet(req.Name, req.Key, req.Value, lt))
	case common.MsgTHDel:
		return countResponse(t)(s.HDel(req.Name, req.Key, lt))
	case common.MsgTHIncr:
		return countResponse(t)(s.HIncr(req.Name, req.Key, req.Num, lt))
	case common.MsgTHSize:
		return countResponse(t)(s.HSize(req.Name))
	case common.MsgTHClear:
		return countResponse(t)(s.HClear(req.Name, lt))
	case common.MsgTHScan:
		return entriesResponse(t)(s.HScan(req.Name, req.Start, req.End, limit))
	case common.MsgTHRScan:
		return entriesResponse(t)(s.HRScan(req.Name, req.Start, req.End, limit))
	case common.MsgTHList:
		return namesResponse(t)(s.HList(req.Start, req.End, limit))
	case common.MsgTHRList:
		return namesResponse(t)(s.HRList(req.Start, req.End, limit))

	// Sorted sets

	case common.MsgTZGet:
		return foundCountResponse(t)(s.ZGet(req.Name, req.Key))
	case common.MsgTZSet:
		return countResponse(t)(s.ZSet(req.Name, req.Key, req.Num, lt))
	case common.MsgTZDel:
		return countResponse(t)(s.ZDel(req.Name, req.Key, lt))
	case common.MsgTZIncr:
		return countResponse(t)(s.ZIncr(req.Name, req.Key, req.Num, lt))
	case common.MsgTZSize:
		return countResponse(t)(s.ZSize(req.Name))
	case common.MsgTZRank:
		return foundCountResponse(t)(s.ZRank(req.Name, req.Key))
	case common.MsgTZRRank:
		return foundCountResponse(t)(s.ZRRank(req.Name, req.Key))
	case common.MsgTZRange:
		return entriesResponse(t)(s.ZRange(req.Name, int(req.Offset), limit))
	case common.MsgTZRRange:
		return entriesResponse(t)(s.ZRRange(req.Name, int(req.Offset), limit))
	case common.MsgTZScan, common.MsgTZRScan:
		start, end, err := parseScoreRange(req.Start, req.End)
		if err != nil {
			return common.NewResponse(t, err)
		}
		if t == common.MsgTZScan {
			return entriesResponse(t)(s.ZScan(req.Name, req.Key, start, end, limit))
		}
		return entriesResponse(t)(s.ZRScan(req.Name, req.Key, start, end, limit))
	case common.MsgTZList:
		return namesResponse(t)(s.ZList(req.Start, req.End, limit))
	case common.MsgTZRList:
		return namesResponse(t)(s.ZRList(req.Start, req.End, limit))

	// Queues

	case common.MsgTQSize:
		return countResponse(t)(s.QSize(req.Name))
	case common.MsgTQFront:
		return valueResponse(t)(s.QFront(req.Name))
	case common.MsgTQBack:
		return valueResponse(t)(s.QBack(req.Name))
	case common.MsgTQPushFront:
		return countResponse(t)(s.QPushFront(req.Name, req.Value, lt))
	case common.MsgTQPushBack:
		return countResponse(t)(s.QPushBack(req.Name, req.Value, lt))
	case common.MsgTQPopFront:
		return valueResponse(t)(s.QPopFront(req.Name, lt))
	case common.MsgTQPopBack:
		return valueResponse(t)(s.QPopBack(req.Name, lt))
	case common.MsgTQGet:
		return valueResponse(t)(s.QGet(req.Name, req.Num))
	case common.MsgTQSet:
		return countResponse(t)(s.QSet(req.Name, req.Num, req.Value, lt))
	case common.MsgTQSetBySeq:
		return countResponse(t)(s.QSetBySeq(req.Name, uint64(req.Num), req.Value, lt))
	case common.MsgTQSlice:
		items, err := s.QSlice(req.Name, req.Offset, req.Num)
		resp := common.NewResponse(t, err)
		if err == nil {
			resp.Entries = make([]store.Entry, len(items))
			for i, item := range items {
				resp.Entries[i].Value = item
			}
		}
		return resp
	case common.MsgTQList:
		return namesResponse(t)(s.QList(req.Start, req.End, limit))
	case common.MsgTQRList:
		return namesResponse(t)(s.QRList(req.Start, req.End, limit))
	case common.MsgTQFix:
		return common.NewResponse(t, s.QFix(req.Name))

	// Meta

	case common.MsgTMetaGet:
		return valueResponse(t)(s.MetaGet(req.Key))
	case common.MsgTMetaSet:
		return countResponse(t)(s.MetaSet(req.Key, req.Value))
	case common.MsgTMetaDel:
		return countResponse(t)(s.MetaDel(req.Key))
	case common.MsgTMetaList:
		return namesResponse(t)(s.MetaList())

	default:
		return common.NewErrorResponse(
			fmt.Sprintf("RPC IStoreAdapter - Unsupported message type: %s", req.MsgType),
		)
	}
}

// --------------------------------------------------------------------------
// Response helpers
// --------------------------------------------------------------------------

func countResponse(t common.MessageType) func(int64, error) *common.Message {
	return func(n int64, err error) *common.Message {
		resp := common.NewResponse(t, err)
		resp.Num = n
		return resp
	}
}

func foundCountResponse(t common.MessageType) func(int64, bool, error) *common.Message {
	return func(n int64, found bool, err error) *common.Message {
		resp := common.NewResponse(t, err)
		resp.Num = n
		resp.Ok = found
		return resp
	}
}

func valueResponse(t common.MessageType) func([]byte, bool, error) *common.Message {
	return func(value []byte, found bool, err error) *common.Message {
		resp := common.NewResponse(t, err)
		resp.Value = value
		resp.Ok = found
		return resp
	}
}

func entriesResponse(t common.MessageType) func([]store.Entry, error) *common.Message {
	return func(entries []store.Entry, err error) *common.Message {
		resp := common.NewResponse(t, err)
		resp.Entries = entries
		return resp
	}
}

func namesResponse(t common.MessageType) func([]string, error) *common.Message {
	return func(names []string, err error) *common.Message {
		resp := common.NewResponse(t, err)
		if err == nil {
			resp.Entries = make([]store.Entry, len(names))
			for i, name := range names {
				resp.Entries[i].Key = name
			}
		}
		return resp
	}
}

// parseScoreRange reads the decimal score bounds of a sorted set scan
func parseScoreRange(start, end string) (int64, int64, error) {
	s, err := strconv.ParseInt(start, 10, 64)
	if err != nil {
		return 0, 0, store.WrapError(store.RetCInvalidOperation, "score start", err)
	}
	e, err := strconv.ParseInt(end, 10, 64)
	if err != nil {
		return 0, 0, store.WrapError(store.RetCInvalidOperation, "score end", err)
	}
	return s, e, nil
}
