package keys

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// --------------------------------------------------------------------------
// Tags
// --------------------------------------------------------------------------

// Every encoded key starts with one of these tag bytes.
const (
	TagSyncLog byte = 0x01 // binlog (WAL) record
	TagMeta    byte = 0x02 // auxiliary bookkeeping (replication cursors, node id)
	TagKV      byte = 'k'
	TagHash    byte = 'h'
	TagHSize   byte = 'H'
	TagZSet    byte = 's'
	TagZScore  byte = 'z'
	TagZSize   byte = 'Z'
	TagQueue   byte = 'q'
	TagQSize   byte = 'Q'
)

// MinPrefix and MaxPrefix bound the tags scanned by a full copy.
// Every tag that holds replicable user data lies within [MinPrefix, MaxPrefix].
const (
	MinPrefix = TagHash
	MaxPrefix = TagZSet
)

// MaxNameLen is the longest name of a hash, sorted set or queue (the length is stored in one byte)
// and the longest plain key.
const MaxNameLen = 255

// Queue sequence space. Slots QFrontSeq and QBackSeq hold the seq of the first and last item.
// Items live in [QItemMinSeq, QItemMaxSeq], the first item of an empty queue gets QItemSeqInit.
const (
	QFrontSeq    uint64 = 2
	QBackSeq     uint64 = 3
	QItemMinSeq  uint64 = 10000
	QItemMaxSeq  uint64 = math.MaxInt64
	QItemSeqInit        = QItemMaxSeq / 2
)

var (
	// ErrMalformed is returned when a key does not decode as the expected type
	ErrMalformed = errors.New("malformed key")
	// ErrKeyTooLong is returned by CheckName for names longer than MaxNameLen
	ErrKeyTooLong = errors.New("name too long")
	// ErrEmptyKey is returned by CheckName for empty names
	ErrEmptyKey = errors.New("empty name")
)

// CheckName validates a key or collection name
func CheckName(name string) error {
	if len(name) == 0 {
		return ErrEmptyKey
	}
	if len(name) > MaxNameLen {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrKeyTooLong, len(name), MaxNameLen)
	}
	return nil
}

// --------------------------------------------------------------------------
// Scores
// --------------------------------------------------------------------------

// EncodeScore maps a signed score to 8 bytes whose byte order equals numeric order
func EncodeScore(score int64) [8]byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(score)^(1<<63))
	return b
}

// DecodeScore reverses EncodeScore
func DecodeScore(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b) ^ (1 << 63))
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// lenPrefixed builds tag | u8 len(name) | name | extra. The name must not exceed MaxNameLen.
func lenPrefixed(tag byte, name string, extra int) []byte {
	b := make([]byte, 0, 2+len(name)+extra)
	b = append(b, tag, byte(len(name)))
	return append(b, name...)
}

// splitLenPrefixed parses tag | u8 len | name and returns the name and the remaining bytes
func splitLenPrefixed(tag byte, b []byte) (string, []byte, error) {
	if len(b) < 2 || b[0] != tag {
		return "", nil, ErrMalformed
	}
	n := int(b[1])
	if len(b) < 2+n {
		return "", nil, ErrMalformed
	}
	return string(b[2 : 2+n]), b[2+n:], nil
}

func decodePlain(tag byte, b []byte) (string, error) {
	if len(b) < 1 || b[0] != tag {
		return "", ErrMalformed
	}
	return string(b[1:]), nil
}

func encodePlain(tag byte, key string) []byte {
	b := make([]byte, 0, 1+len(key))
	b = append(b, tag)
	return append(b, key...)
}

// --------------------------------------------------------------------------
// Plain key-value
// --------------------------------------------------------------------------

// EncodeKV encodes k | key
func EncodeKV(key string) []byte {
	return encodePlain(TagKV, key)
}

func DecodeKV(b []byte) (key string, err error) {
	return decodePlain(TagKV, b)
}

// --------------------------------------------------------------------------
// Meta
// --------------------------------------------------------------------------

// EncodeMeta encodes 0x02 | key
func EncodeMeta(key string) []byte {
	return encodePlain(TagMeta, key)
}

func DecodeMeta(b []byte) (key string, err error) {
	return decodePlain(TagMeta, b)
}

// --------------------------------------------------------------------------
// Hash
// --------------------------------------------------------------------------

// EncodeHash encodes h | len | name | field
func EncodeHash(name, field string) []byte {
	return append(lenPrefixed(TagHash, name, len(field)), field...)
}

func DecodeHash(b []byte) (name, field string, err error) {
	name, rest, err := splitLenPrefixed(TagHash, b)
	if err != nil {
		return "", "", err
	}
	return name, string(rest), nil
}

// HashPrefix returns the common prefix of all fields of a hash
func HashPrefix(name string) []byte {
	return lenPrefixed(TagHash, name, 0)
}

// EncodeHSize encodes H | name
func EncodeHSize(name string) []byte {
	return encodePlain(TagHSize, name)
}

func DecodeHSize(b []byte) (name string, err error) {
	return decodePlain(TagHSize, b)
}

// --------------------------------------------------------------------------
// Sorted set
// --------------------------------------------------------------------------

// EncodeZSet encodes s | len | name | member, the value is the decimal score
func EncodeZSet(name, member string) []byte {
	return append(lenPrefixed(TagZSet, name, len(member)), member...)
}

func DecodeZSet(b []byte) (name, member string, err error) {
	name, rest, err := splitLenPrefixed(TagZSet, b)
	if err != nil {
		return "", "", err
	}
	return name, string(rest), nil
}

// EncodeZScore encodes z | len | name | score(8) | member, the value is empty
func EncodeZScore(name, member string, score int64) []byte {
	s := EncodeScore(score)
	b := append(lenPrefixed(TagZScore, name, 8+len(member)), s[:]...)
	return append(b, member...)
}

func DecodeZScore(b []byte) (name, member string, score int64, err error) {
	name, rest, err := splitLenPrefixed(TagZScore, b)
	if err != nil {
		return "", "", 0, err
	}
	if len(rest) < 8 {
		return "", "", 0, ErrMalformed
	}
	return name, string(rest[8:]), DecodeScore(rest[:8]), nil
}

// ZScorePrefix returns the prefix of all score index entries of a sorted set
func ZScorePrefix(name string) []byte {
	return lenPrefixed(TagZScore, name, 0)
}

// ZSetPrefix returns the prefix of all membership entries of a sorted set
func ZSetPrefix(name string) []byte {
	return lenPrefixed(TagZSet, name, 0)
}

// EncodeZSize encodes Z | name
func EncodeZSize(name string) []byte {
	return encodePlain(TagZSize, name)
}

func DecodeZSize(b []byte) (name string, err error) {
	return decodePlain(TagZSize, b)
}

// --------------------------------------------------------------------------
// Queue
// --------------------------------------------------------------------------

// EncodeQItem encodes q | len | name | seq (8 bytes big endian)
func EncodeQItem(name string, seq uint64) []byte {
	b := lenPrefixed(TagQueue, name, 8)
	return binary.BigEndian.AppendUint64(b, seq)
}

func DecodeQItem(b []byte) (name string, seq uint64, err error) {
	name, rest, err := splitLenPrefixed(TagQueue, b)
	if err != nil {
		return "", 0, err
	}
	if len(rest) != 8 {
		return "", 0, ErrMalformed
	}
	return name, binary.BigEndian.Uint64(rest), nil
}

// QueuePrefix returns the common prefix of all item and pointer slots of a queue
func QueuePrefix(name string) []byte {
	return lenPrefixed(TagQueue, name, 0)
}

// EncodeQSize encodes Q | name
func EncodeQSize(name string) []byte {
	return encodePlain(TagQSize, name)
}

func DecodeQSize(b []byte) (name string, err error) {
	return decodePlain(TagQSize, b)
}

// --------------------------------------------------------------------------
// Binlog
// --------------------------------------------------------------------------

// EncodeSyncLog encodes 0x01 | seq (8 bytes big endian)
func EncodeSyncLog(seq uint64) []byte {
	b := make([]byte, 1, 9)
	b[0] = TagSyncLog
	return binary.BigEndian.AppendUint64(b, seq)
}

func DecodeSyncLog(b []byte) (seq uint64, err error) {
	if len(b) != 9 || b[0] != TagSyncLog {
		return 0, ErrMalformed
	}
	return binary.BigEndian.Uint64(b[1:]), nil
}

// --------------------------------------------------------------------------
// Counters
// --------------------------------------------------------------------------

// EncodeInt64 encodes a counter value (collection sizes, queue pointers) as 8 bytes big endian
func EncodeInt64(v int64) []byte {
	return binary.BigEndian.AppendUint64(make([]byte, 0, 8), uint64(v))
}

// DecodeInt64 decodes a counter value written by EncodeInt64
func DecodeInt64(b []byte) (int64, error) {
	if len(b) != 8 {
		return 0, ErrMalformed
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

// --------------------------------------------------------------------------
// Range helpers
// --------------------------------------------------------------------------

// PrefixEnd returns the smallest key greater than every key starting with prefix,
// or nil if no such key exists (prefix is all 0xff).
func PrefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] != 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
