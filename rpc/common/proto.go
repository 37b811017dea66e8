package common

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/DazeHolic/lvdb/lib/binlog"
	"github.com/DazeHolic/lvdb/lib/store"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message:
//
//   - Name is the collection (hash, sorted set, queue), Key the key, field or member.
//   - Num carries scores, deltas, indexes, bit offsets, queue seqs and counting results.
//   - Start, End and Limit bound scans. Sorted set scans carry their scores as decimal strings.
//   - Offset is the position for ZRange and the begin index for QSlice (Num is the end index).
//   - Entries hold multi results and MultiSet/MultiDel input.
//   - LogType is the binlog.Type of a write.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// Request fields
	Name    string `json:"name,omitempty"`
	Key     string `json:"key,omitempty"`
	Value   []byte `json:"value,omitempty"`
	Start   string `json:"start,omitempty"`
	End     string `json:"end,omitempty"`
	Offset  int64  `json:"offset,omitempty"`
	Limit   int64  `json:"limit,omitempty"`
	Num     int64  `json:"num,omitempty"`
	LogType uint8  `json:"log_type,omitempty"`

	// Used for multi operations in both directions
	Entries []store.Entry `json:"entries,omitempty"`

	// Response only fields
	Ok   bool   `json:"ok,omitempty"`   // found flag of reads
	Code uint64 `json:"code,omitempty"` // store.RetCode of a failed operation
	Err  string `json:"err,omitempty"`  // Empty if no error, otherwise contains the error message

	// Meta information
	Meta []byte `json:"meta,omitempty"` // Encoded binlog record for replication, free for custom adapters
}

// Error rebuilds the store error carried by a response, nil if the response is no error
func (m *Message) Error() error {
	if m.Err == "" && m.MsgType != MsgTError {
		return nil
	}
	code := store.RetCode(m.Code)
	if code == store.RetCSuccess {
		code = store.RetCInternalError
	}
	return store.NewError(code, m.Err)
}

// BinlogType returns the LogType of a write request
func (m *Message) BinlogType() binlog.Type {
	return binlog.Type(m.LogType)
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewRequest creates a request of the given type for the collection name and key
func NewRequest(t MessageType, name, key string) *Message {
	return &Message{
		MsgType: t,
		Name:    name,
		Key:     key,
	}
}

// NewWriteRequest creates a request for a logged write
func NewWriteRequest(t MessageType, name, key string, value []byte, logType binlog.Type) *Message {
	return &Message{
		MsgType: t,
		Name:    name,
		Key:     key,
		Value:   value,
		LogType: uint8(logType),
	}
}

// NewScanRequest creates a request for a range operation
func NewScanRequest(t MessageType, name, start, end string, limit int) *Message {
	return &Message{
		MsgType: t,
		Name:    name,
		Start:   start,
		End:     end,
		Limit:   int64(limit),
	}
}

// NewResponse creates a response of the given type. A store error keeps its code.
func NewResponse(t MessageType, err error) *Message {
	msg := &Message{
		MsgType: t,
	}
	if err != nil {
		var e *store.Error
		if errors.As(err, &e) {
			msg.Err = e.Msg
			msg.Code = uint64(e.Code)
		} else {
			msg.Err = err.Error()
			msg.Code = uint64(store.RetCInternalError)
		}
	}
	return msg
}

// NewReplApplyRequest creates a request that replays one binlog record on a follower shard
func NewReplApplyRequest(rec binlog.Record, value []byte) *Message {
	return &Message{
		MsgType: MsgTReplApply,
		Meta:    rec.Marshal(),
		Value:   value,
	}
}

// NewBinlogFindRequest creates a request for the first binlog record with seq >= the given seq
func NewBinlogFindRequest(seq uint64) *Message {
	return &Message{
		MsgType: MsgTBinlogFind,
		Num:     int64(seq),
	}
}

// NewCustomRequest creates a new Custom request
func NewCustomRequest(meta []byte) *Message {
	return &Message{
		MsgType: MsgTCustom,
		Meta:    meta,
	}
}

// NewCustomResponse creates a new Custom response
func NewCustomResponse(meta []byte, err error) *Message {
	msg := NewResponse(MsgTCustom, err)
	msg.Meta = meta
	return msg
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Code:    uint64(store.RetCInternalError),
		Err:     err,
	}
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	if name, ok := msgTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// IsWrite reports whether the message type mutates the store
func (t MessageType) IsWrite() bool {
	return writeTypes[t]
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	// Convert string back to MessageType
	msgType, ok := msgTypesByName[s]
	if !ok {
		return fmt.Errorf("unknown message type: %s", s)
	}
	*t = msgType
	return nil
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// Strings

	MsgTKVGet
	MsgTKVSet
	MsgTKVSetNX
	MsgTKVGetSet
	MsgTKVDel
	MsgTKVIncr
	MsgTKVMultiSet
	MsgTKVMultiDel
	MsgTKVSetBit
	MsgTKVGetBit
	MsgTKVScan
	MsgTKVRScan

	// Hashes

	MsgTHGet
	MsgTHSet
	MsgTHDel
	MsgTHIncr
	MsgTHSize
	MsgTHClear
	MsgTHScan
	MsgTHRScan
	MsgTHList
	MsgTHRList

	// Sorted sets

	MsgTZGet
	MsgTZSet
	MsgTZDel
	MsgTZIncr
	MsgTZSize
	MsgTZRank
	MsgTZRRank
	MsgTZRange
	MsgTZRRange
	MsgTZScan
	MsgTZRScan
	MsgTZList
	MsgTZRList

	// Queues

	MsgTQSize
	MsgTQFront
	MsgTQBack
	MsgTQPushFront
	MsgTQPushBack
	MsgTQPopFront
	MsgTQPopBack
	MsgTQGet
	MsgTQSet
	MsgTQSetBySeq
	MsgTQSlice
	MsgTQList
	MsgTQRList
	MsgTQFix

	// Meta keys

	MsgTMetaGet
	MsgTMetaSet
	MsgTMetaDel
	MsgTMetaList

	// Administration and replication

	MsgTDBInfo      // Database info as json
	MsgTReplApply   // Replay a binlog record (Meta) with its value on a follower
	MsgTBinlogStats // Capacity, min and max seq of the binlog
	MsgTBinlogFind  // First binlog record with seq >= Num

	// Custom operations

	MsgTCustom // Custom operation type
)

var msgTypeNames = map[MessageType]string{
	MsgTSuccess: "success",
	MsgTError:   "error",

	MsgTKVGet:      "get",
	MsgTKVSet:      "set",
	MsgTKVSetNX:    "setnx",
	MsgTKVGetSet:   "getset",
	MsgTKVDel:      "del",
	MsgTKVIncr:     "incr",
	MsgTKVMultiSet: "multi_set",
	MsgTKVMultiDel: "multi_del",
	MsgTKVSetBit:   "setbit",
	MsgTKVGetBit:   "getbit",
	MsgTKVScan:     "scan",
	MsgTKVRScan:    "rscan",

	MsgTHGet:   "hget",
	MsgTHSet:   "hset",
	MsgTHDel:   "hdel",
	MsgTHIncr:  "hincr",
	MsgTHSize:  "hsize",
	MsgTHClear: "hclear",
	MsgTHScan:  "hscan",
	MsgTHRScan: "hrscan",
	MsgTHList:  "hlist",
	MsgTHRList: "hrlist",

	MsgTZGet:    "zget",
	MsgTZSet:    "zset",
	MsgTZDel:    "zdel",
	MsgTZIncr:   "zincr",
	MsgTZSize:   "zsize",
	MsgTZRank:   "zrank",
	MsgTZRRank:  "zrrank",
	MsgTZRange:  "zrange",
	MsgTZRRange: "zrrange",
	MsgTZScan:   "zscan",
	MsgTZRScan:  "zrscan",
	MsgTZList:   "zlist",
	MsgTZRList:  "zrlist",

	MsgTQSize:      "qsize",
	MsgTQFront:     "qfront",
	MsgTQBack:      "qback",
	MsgTQPushFront: "qpush_front",
	MsgTQPushBack:  "qpush_back",
	MsgTQPopFront:  "qpop_front",
	MsgTQPopBack:   "qpop_back",
	MsgTQGet:       "qget",
	MsgTQSet:       "qset",
	MsgTQSetBySeq:  "qset_by_seq",
	MsgTQSlice:     "qslice",
	MsgTQList:      "qlist",
	MsgTQRList:     "qrlist",
	MsgTQFix:       "qfix",

	MsgTMetaGet:  "meta_get",
	MsgTMetaSet:  "meta_set",
	MsgTMetaDel:  "meta_del",
	MsgTMetaList: "meta_list",

	MsgTDBInfo:      "dbinfo",
	MsgTReplApply:   "repl_apply",
	MsgTBinlogStats: "binlog_stats",
	MsgTBinlogFind:  "binlog_find",

	MsgTCustom: "custom",
}

var msgTypesByName = func() map[string]MessageType {
	m := make(map[string]MessageType, len(msgTypeNames))
	for t, name := range msgTypeNames {
		m[name] = t
	}
	return m
}()

var writeTypes = map[MessageType]bool{
	MsgTKVSet: true, MsgTKVSetNX: true, MsgTKVGetSet: true, MsgTKVDel: true, MsgTKVIncr: true,
	MsgTKVMultiSet: true, MsgTKVMultiDel: true, MsgTKVSetBit: true,
	MsgTHSet: true, MsgTHDel: true, MsgTHIncr: true, MsgTHClear: true,
	MsgTZSet: true, MsgTZDel: true, MsgTZIncr: true,
	MsgTQPushFront: true, MsgTQPushBack: true, MsgTQPopFront: true, MsgTQPopBack: true,
	MsgTQSet: true, MsgTQSetBySeq: true, MsgTQFix: true,
	MsgTMetaSet: true, MsgTMetaDel: true,
	MsgTReplApply: true,
}
