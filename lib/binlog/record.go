package binlog

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformed is returned when a byte string does not decode as a Record
var ErrMalformed = errors.New("malformed binlog record")

// HeaderLen is the size of the fixed part of an encoded record: seq(8) | type(1) | cmd(1)
const HeaderLen = 10

// --------------------------------------------------------------------------
// Record Type
// --------------------------------------------------------------------------

// Type classifies where a record came from
type Type uint8

const (
	TypeNoop   Type = 0 // superseded record (written by Merge)
	TypeSync   Type = 1 // local write, replicated to followers
	TypeMirror Type = 2 // write replayed from another node, never logged
	TypeCopy   Type = 3 // synthesized by a full copy
	TypeCtrl   Type = 4 // bookkeeping (meta keys)
)

func (t Type) Valid() bool {
	return t <= TypeCtrl
}

func (t Type) String() string {
	switch t {
	case TypeNoop:
		return "noop"
	case TypeSync:
		return "sync"
	case TypeMirror:
		return "mirror"
	case TypeCopy:
		return "copy"
	case TypeCtrl:
		return "control"
	default:
		return ""
	}
}

// --------------------------------------------------------------------------
// Record Command
// --------------------------------------------------------------------------

// Cmd is the mutation a record describes
type Cmd uint8

const (
	CmdNone       Cmd = 0
	CmdKSet       Cmd = 1
	CmdKDel       Cmd = 2
	CmdHSet       Cmd = 3
	CmdHDel       Cmd = 4
	CmdZSet       Cmd = 5
	CmdZDel       Cmd = 6
	CmdBegin      Cmd = 7
	CmdEnd        Cmd = 8
	CmdQPushBack  Cmd = 10
	CmdQPushFront Cmd = 11
	CmdQPopBack   Cmd = 12
	CmdQPopFront  Cmd = 13
	CmdQSet       Cmd = 14
	CmdMetaDel    Cmd = 0xFE
	CmdMetaSet    Cmd = 0xFF
)

var cmdNames = map[Cmd]string{
	CmdNone:       "none",
	CmdKSet:       "set",
	CmdKDel:       "del",
	CmdHSet:       "hset",
	CmdHDel:       "hdel",
	CmdZSet:       "zset",
	CmdZDel:       "zdel",
	CmdBegin:      "begin",
	CmdEnd:        "end",
	CmdQPushBack:  "qpush_back",
	CmdQPushFront: "qpush_front",
	CmdQPopBack:   "qpop_back",
	CmdQPopFront:  "qpop_front",
	CmdQSet:       "qset",
	CmdMetaDel:    "meta_del",
	CmdMetaSet:    "meta_set",
}

func (c Cmd) Valid() bool {
	_, ok := cmdNames[c]
	return ok
}

func (c Cmd) String() string {
	return cmdNames[c]
}

// IsSetClass reports whether replaying the command needs the current value of the key
func (c Cmd) IsSetClass() bool {
	switch c {
	case CmdKSet, CmdHSet, CmdZSet, CmdQSet, CmdQPushBack, CmdQPushFront:
		return true
	}
	return false
}

// IsDelClass reports whether the command is replayed without a value
func (c Cmd) IsDelClass() bool {
	switch c {
	case CmdKDel, CmdHDel, CmdZDel, CmdQPopBack, CmdQPopFront:
		return true
	}
	return false
}

// --------------------------------------------------------------------------
// Record
// --------------------------------------------------------------------------

// Record is one binlog entry. Key is the encoded key of the mutated entry,
// except for queue pops which carry the queue name.
type Record struct {
	Seq  uint64
	Type Type
	Cmd  Cmd
	Key  []byte
}

// Marshal encodes the record as seq (8 bytes little endian) | type | cmd | key
func (r Record) Marshal() []byte {
	b := make([]byte, HeaderLen, HeaderLen+len(r.Key))
	binary.LittleEndian.PutUint64(b, r.Seq)
	b[8] = byte(r.Type)
	b[9] = byte(r.Cmd)
	return append(b, r.Key...)
}

// Unmarshal decodes a record written by Marshal. The key is copied.
func Unmarshal(b []byte) (Record, error) {
	if len(b) < HeaderLen {
		return Record{}, fmt.Errorf("%w: %d bytes", ErrMalformed, len(b))
	}
	r := Record{
		Seq:  binary.LittleEndian.Uint64(b),
		Type: Type(b[8]),
		Cmd:  Cmd(b[9]),
		Key:  append([]byte{}, b[HeaderLen:]...),
	}
	if !r.Type.Valid() {
		return Record{}, fmt.Errorf("%w: unknown type %d", ErrMalformed, b[8])
	}
	if !r.Cmd.Valid() {
		return Record{}, fmt.Errorf("%w: unknown command %d", ErrMalformed, b[9])
	}
	return r, nil
}

// Describe renders the record for humans: "<seq> <type> <cmd> <key>" with
// non printable key bytes escaped as \xNN. Unknown types and commands render empty.
func (r Record) Describe() string {
	var sb strings.Builder
	sb.WriteString(strconv.FormatUint(r.Seq, 10))
	sb.WriteByte(' ')
	sb.WriteString(r.Type.String())
	sb.WriteByte(' ')
	sb.WriteString(r.Cmd.String())
	sb.WriteByte(' ')
	sb.WriteString(Escape(r.Key))
	return sb.String()
}

func (r Record) String() string {
	return r.Describe()
}

// Escape renders printable ASCII as is and everything else as \xNN
func Escape(b []byte) string {
	const hex = "0123456789abcdef"
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		switch {
		case c == '\\':
			sb.WriteString(`\\`)
		case c >= 0x20 && c < 0x7f:
			sb.WriteByte(c)
		default:
			sb.WriteString(`\x`)
			sb.WriteByte(hex[c>>4])
			sb.WriteByte(hex[c&0x0f])
		}
	}
	return sb.String()
}
