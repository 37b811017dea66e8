package client

import (
	"encoding/json"
	"strconv"

	"github.com/DazeHolic/lvdb/lib/binlog"
	"github.com/DazeHolic/lvdb/lib/db"
	"github.com/DazeHolic/lvdb/lib/store"
	"github.com/DazeHolic/lvdb/rpc/common"
	"github.com/DazeHolic/lvdb/rpc/serializer"
	"github.com/DazeHolic/lvdb/rpc/transport"
)

// NewRPCStore creates a new RPC store
// The function takes a shard ID, a config, a transport and a serializer as parameters
// It returns a connected *RPCStore and an error
func NewRPCStore(
	shardId uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (*RPCStore, error) {
	adapter, err := newRPCClientAdapter(shardId, config, transport, serializer)
	if err != nil {
		return nil, err
	}
	return &RPCStore{adapter}, nil
}

// RPCStore implements store.IStore on a remote shard
type RPCStore struct {
	rpcClientAdapter
}

var _ store.IStore = (*RPCStore)(nil)

// --------------------------------------------------------------------------
// Call helpers
// --------------------------------------------------------------------------

func (i *RPCStore) count(req *common.Message) (int64, error) {
	resp, err := i.call(req)
	if err != nil {
		return -1, err
	}
	return resp.Num, nil
}

func (i *RPCStore) foundCount(req *common.Message) (int64, bool, error) {
	resp, err := i.call(req)
	if err != nil {
		return 0, false, err
	}
	return resp.Num, resp.Ok, nil
}

func (i *RPCStore) value(req *common.Message) ([]byte, bool, error) {
	resp, err := i.call(req)
	if err != nil {
		return nil, false, err
	}
	return resp.Value, resp.Ok, nil
}

func (i *RPCStore) entries(req *common.Message) ([]store.Entry, error) {
	resp, err := i.call(req)
	if err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

func (i *RPCStore) names(req *common.Message) ([]string, error) {
	resp, err := i.call(req)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(resp.Entries))
	for n, e := range resp.Entries {
		names[n] = e.Key
	}
	return names, nil
}

func write(t common.MessageType, name, key string, value []byte, lt binlog.Type) *common.Message {
	return common.NewWriteRequest(t, name, key, value, lt)
}

func numWrite(t common.MessageType, name, key string, num int64, lt binlog.Type) *common.Message {
	req := common.NewWriteRequest(t, name, key, nil, lt)
	req.Num = num
	return req
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the store package in interface.go)
// --------------------------------------------------------------------------

// Strings

func (i *RPCStore) Get(key string) ([]byte, bool, error) {
	return i.value(common.NewRequest(common.MsgTKVGet, "", key))
}

func (i *RPCStore) Set(key string, value []byte, t binlog.Type) (int64, error) {
	return i.count(write(common.MsgTKVSet, "", key, value, t))
}

func (i *RPCStore) SetNX(key string, value []byte, t binlog.Type) (int64, error) {
	return i.count(write(common.MsgTKVSetNX, "", key, value, t))
}

func (i *RPCStore) GetSet(key string, value []byte, t binlog.Type) ([]byte, bool, error) {
	return i.value(write(common.MsgTKVGetSet, "", key, value, t))
}

func (i *RPCStore) Del(key string, t binlog.Type) (int64, error) {
	return i.count(write(common.MsgTKVDel, "", key, nil, t))
}

func (i *RPCStore) Incr(key string, by int64, t binlog.Type) (int64, error) {
	return i.count(numWrite(common.MsgTKVIncr, "", key, by, t))
}

func (i *RPCStore) MultiSet(entries []store.Entry, t binlog.Type) (int64, error) {
	req := write(common.MsgTKVMultiSet, "", "", nil, t)
	req.Entries = entries
	return i.count(req)
}

func (i *RPCStore) MultiDel(keys []string, t binlog.Type) (int64, error) {
	req := write(common.MsgTKVMultiDel, "", "", nil, t)
	req.Entries = make([]store.Entry, len(keys))
	for n, key := range keys {
		req.Entries[n].Key = key
	}
	return i.count(req)
}

func (i *RPCStore) SetBit(key string, offset int, on bool, t binlog.Type) (int64, error) {
	req := write(common.MsgTKVSetBit, "", key, nil, t)
	req.Offset = int64(offset)
	if on {
		req.Num = 1
	}
	return i.count(req)
}

func (i *RPCStore) GetBit(key string, offset int) (int64, error) {
	req := common.NewRequest(common.MsgTKVGetBit, "", key)
	req.Offset = int64(offset)
	return i.count(req)
}

func (i *RPCStore) Scan(start, end string, limit int) ([]store.Entry, error) {
	return i.entries(common.NewScanRequest(common.MsgTKVScan, "", start, end, limit))
}

func (i *RPCStore) RScan(start, end string, limit int) ([]store.Entry, error) {
	return i.entries(common.NewScanRequest(common.MsgTKVRScan, "", start, end, limit))
}

// Hashes

func (i *RPCStore) HGet(name, field string) ([]byte, bool, error) {
	return i.value(common.NewRequest(common.MsgTHGet, name, field))
}

func (i *RPCStore) HSet(name, field string, value []byte, t binlog.Type) (int64, error) {
	return i.count(write(common.MsgTHSet, name, field, value, t))
}

func (i *RPCStore) HDel(name, field string, t binlog.Type) (int64, error) {
	return i.count(write(common.MsgTHDel, name, field, nil, t))
}

func (i *RPCStore) HIncr(name, field string, by int64, t binlog.Type) (int64, error) {
	return i.count(numWrite(common.MsgTHIncr, name, field, by, t))
}

func (i *RPCStore) HSize(name string) (int64, error) {
	return i.count(common.NewRequest(common.MsgTHSize, name, ""))
}

func (i *RPCStore) HClear(name string, t binlog.Type) (int64, error) {
	return i.count(write(common.MsgTHClear, name, "", nil, t))
}

func (i *RPCStore) HScan(name, start, end string, limit int) ([]store.Entry, error) {
	return i.entries(common.NewScanRequest(common.MsgTHScan, name, start, end, limit))
}

func (i *RPCStore) HRScan(name, start, end string, limit int) ([]store.Entry, error) {
	return i.entries(common.NewScanRequest(common.MsgTHRScan, name, start, end, limit))
}

func (i *RPCStore) HList(start, end string, limit int) ([]string, error) {
	return i.names(common.NewScanRequest(common.MsgTHList, "", start, end, limit))
}

func (i *RPCStore) HRList(start, end string, limit int) ([]string, error) {
	return i.names(common.NewScanRequest(common.MsgTHRList, "", start, end, limit))
}

// Sorted sets

func (i *RPCStore) ZGet(name, member string) (int64, bool, error) {
	return i.foundCount(common.NewRequest(common.MsgTZGet, name, member))
}

func (i *RPCStore) ZSet(name, member string, score int64, t binlog.Type) (int64, error) {
	return i.count(numWrite(common.MsgTZSet, name, member, score, t))
}

func (i *RPCStore) ZDel(name, member string, t binlog.Type) (int64, error) {
	return i.count(write(common.MsgTZDel, name, member, nil, t))
}

func (i *RPCStore) ZIncr(name, member string, by int64, t binlog.Type) (int64, error) {
	return i.count(numWrite(common.MsgTZIncr, name, member, by, t))
}

func (i *RPCStore) ZSize(name string) (int64, error) {
	return i.count(common.NewRequest(common.MsgTZSize, name, ""))
}

func (i *RPCStore) ZRank(name, member string) (int64, bool, error) {
	return i.foundCount(common.NewRequest(common.MsgTZRank, name, member))
}

func (i *RPCStore) ZRRank(name, member string) (int64, bool, error) {
	return i.foundCount(common.NewRequest(common.MsgTZRRank, name, member))
}

func (i *RPCStore) ZRange(name string, offset, limit int) ([]store.Entry, error) {
	req := common.NewScanRequest(common.MsgTZRange, name, "", "", limit)
	req.Offset = int64(offset)
	return i.entries(req)
}

func (i *RPCStore) ZRRange(name string, offset, limit int) ([]store.Entry, error) {
	req := common.NewScanRequest(common.MsgTZRRange, name, "", "", limit)
	req.Offset = int64(offset)
	return i.entries(req)
}

func (i *RPCStore) ZScan(name, member string, scoreStart, scoreEnd int64, limit int) ([]store.Entry, error) {
	return i.entries(zscanRequest(common.MsgTZScan, name, member, scoreStart, scoreEnd, limit))
}

func (i *RPCStore) ZRScan(name, member string, scoreStart, scoreEnd int64, limit int) ([]store.Entry, error) {
	return i.entries(zscanRequest(common.MsgTZRScan, name, member, scoreStart, scoreEnd, limit))
}

func zscanRequest(t common.MessageType, name, member string, scoreStart, scoreEnd int64, limit int) *common.Message {
	req := common.NewScanRequest(t, name, strconv.FormatInt(scoreStart, 10), strconv.FormatInt(scoreEnd, 10), limit)
	req.Key = member
	return req
}

func (i *RPCStore) ZList(start, end string, limit int) ([]string, error) {
	return i.names(common.NewScanRequest(common.MsgTZList, "", start, end, limit))
}

func (i *RPCStore) ZRList(start, end string, limit int) ([]string, error) {
	return i.names(common.NewScanRequest(common.MsgTZRList, "", start, end, limit))
}

// Queues

func (i *RPCStore) QSize(name string) (int64, error) {
	return i.count(common.NewRequest(common.MsgTQSize, name, ""))
}

func (i *RPCStore) QFront(name string) ([]byte, bool, error) {
	return i.value(common.NewRequest(common.MsgTQFront, name, ""))
}

func (i *RPCStore) QBack(name string) ([]byte, bool, error) {
	return i.value(common.NewRequest(common.MsgTQBack, name, ""))
}

func (i *RPCStore) QPushFront(name string, item []byte, t binlog.Type) (int64, error) {
	return i.count(write(common.MsgTQPushFront, name, "", item, t))
}

func (i *RPCStore) QPushBack(name string, item []byte, t binlog.Type) (int64, error) {
	return i.count(write(common.MsgTQPushBack, name, "", item, t))
}

func (i *RPCStore) QPopFront(name string, t binlog.Type) ([]byte, bool, error) {
	return i.value(write(common.MsgTQPopFront, name, "", nil, t))
}

func (i *RPCStore) QPopBack(name string, t binlog.Type) ([]byte, bool, error) {
	return i.value(write(common.MsgTQPopBack, name, "", nil, t))
}

func (i *RPCStore) QGet(name string, index int64) ([]byte, bool, error) {
	req := common.NewRequest(common.MsgTQGet, name, "")
	req.Num = index
	return i.value(req)
}

func (i *RPCStore) QSet(name string, index int64, item []byte, t binlog.Type) (int64, error) {
	req := write(common.MsgTQSet, name, "", item, t)
	req.Num = index
	return i.count(req)
}

func (i *RPCStore) QSetBySeq(name string, seq uint64, item []byte, t binlog.Type) (int64, error) {
	req := write(common.MsgTQSetBySeq, name, "", item, t)
	req.Num = int64(seq)
	return i.count(req)
}

func (i *RPCStore) QSlice(name string, begin, end int64) ([][]byte, error) {
	req := common.NewRequest(common.MsgTQSlice, name, "")
	req.Offset = begin
	req.Num = end
	entries, err := i.entries(req)
	if err != nil {
		return nil, err
	}
	items := make([][]byte, len(entries))
	for n, e := range entries {
		items[n] = e.Value
	}
	return items, nil
}

func (i *RPCStore) QList(start, end string, limit int) ([]string, error) {
	return i.names(common.NewScanRequest(common.MsgTQList, "", start, end, limit))
}

func (i *RPCStore) QRList(start, end string, limit int) ([]string, error) {
	return i.names(common.NewScanRequest(common.MsgTQRList, "", start, end, limit))
}

func (i *RPCStore) QFix(name string) error {
	_, err := i.call(write(common.MsgTQFix, name, "", nil, binlog.TypeNoop))
	return err
}

// Meta

func (i *RPCStore) MetaGet(key string) ([]byte, bool, error) {
	return i.value(common.NewRequest(common.MsgTMetaGet, "", key))
}

func (i *RPCStore) MetaSet(key string, value []byte) (int64, error) {
	return i.count(write(common.MsgTMetaSet, "", key, value, binlog.TypeCtrl))
}

func (i *RPCStore) MetaDel(key string) (int64, error) {
	return i.count(write(common.MsgTMetaDel, "", key, nil, binlog.TypeCtrl))
}

func (i *RPCStore) MetaList() ([]string, error) {
	return i.names(common.NewRequest(common.MsgTMetaList, "", ""))
}

// GetDBInfo returns the info of the database behind the remote shard
func (i *RPCStore) GetDBInfo() (info db.DatabaseInfo, err error) {
	resp, err := i.call(common.NewRequest(common.MsgTDBInfo, "", ""))
	if err != nil {
		return db.DatabaseInfo{}, err
	}
	err = json.Unmarshal(resp.Value, &info)
	return info, err
}

// --------------------------------------------------------------------------
// Binlog inspection
// --------------------------------------------------------------------------

// BinlogStats describes the binlog of a remote shard
type BinlogStats struct {
	Enabled  bool   `json:"enabled"`
	Capacity uint64 `json:"capacity"`
	MinSeq   uint64 `json:"min_seq"`
	MaxSeq   uint64 `json:"max_seq"`
	// Text is the rendering of binlog.Queue.Stats
	Text string `json:"-"`
}

// BinlogStats returns capacity, min and max seq of the remote binlog
func (i *RPCStore) BinlogStats() (BinlogStats, error) {
	resp, err := i.call(common.NewRequest(common.MsgTBinlogStats, "", ""))
	if err != nil {
		return BinlogStats{}, err
	}
	stats := BinlogStats{Enabled: resp.Ok, Text: string(resp.Value)}
	for _, e := range resp.Entries {
		switch e.Key {
		case "capacity":
			stats.Capacity = uint64(e.Score)
		case "min_seq":
			stats.MinSeq = uint64(e.Score)
		case "max_seq":
			stats.MaxSeq = uint64(e.Score)
		}
	}
	return stats, nil
}

// BinlogFind returns the first remote binlog record with a sequence number >= seq
func (i *RPCStore) BinlogFind(seq uint64) (binlog.Record, bool, error) {
	resp, err := i.call(common.NewBinlogFindRequest(seq))
	if err != nil || !resp.Ok {
		return binlog.Record{}, false, err
	}
	rec, err := binlog.Unmarshal(resp.Meta)
	if err != nil {
		return binlog.Record{}, false, err
	}
	return rec, true, nil
}
