package serializer

import (
	"encoding/binary"
	"fmt"

	"github.com/DazeHolic/lvdb/lib/store"
	"github.com/DazeHolic/lvdb/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format.
//
// Layout: MsgType(1) | flags(2, big endian) | present fields in flag order.
// Strings and byte slices are prefixed with a u32 length, integers are 8 bytes.
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasName uint16 = 1 << iota
	hasKey
	hasValue
	hasStart
	hasEnd
	hasOffset
	hasLimit
	hasNum
	hasLogType
	hasEntries
	hasOk
	hasCode
	hasErr
	hasMeta
)

const headerSize = 3

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	// Calculate total size needed
	w := writer{buf: make([]byte, headerSize, b.sizeBytes(msg))}

	// Write message type
	w.buf[0] = byte(msg.MsgType)

	var flags uint16
	if msg.Name != "" {
		flags |= hasName
		w.string(msg.Name)
	}
	if msg.Key != "" {
		flags |= hasKey
		w.string(msg.Key)
	}
	if msg.Value != nil {
		flags |= hasValue
		w.bytes(msg.Value)
	}
	if msg.Start != "" {
		flags |= hasStart
		w.string(msg.Start)
	}
	if msg.End != "" {
		flags |= hasEnd
		w.string(msg.End)
	}
	if msg.Offset != 0 {
		flags |= hasOffset
		w.int64(msg.Offset)
	}
	if msg.Limit != 0 {
		flags |= hasLimit
		w.int64(msg.Limit)
	}
	if msg.Num != 0 {
		flags |= hasNum
		w.int64(msg.Num)
	}
	if msg.LogType != 0 {
		flags |= hasLogType
		w.buf = append(w.buf, msg.LogType)
	}
	if msg.Entries != nil {
		flags |= hasEntries
		w.uint32(uint32(len(msg.Entries)))
		for _, e := range msg.Entries {
			w.string(e.Key)
			w.nullableBytes(e.Value)
			w.int64(e.Score)
		}
	}
	if msg.Ok {
		flags |= hasOk
		w.buf = append(w.buf, 1)
	}
	if msg.Code != 0 {
		flags |= hasCode
		w.buf = binary.BigEndian.AppendUint64(w.buf, msg.Code)
	}
	if msg.Err != "" {
		flags |= hasErr
		w.string(msg.Err)
	}
	if msg.Meta != nil {
		flags |= hasMeta
		w.bytes(msg.Meta)
	}

	// Set flags after knowing which fields are present
	binary.BigEndian.PutUint16(w.buf[1:3], flags)

	return w.buf, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	// Check minimum size (MsgType + flags)
	if len(data) < headerSize {
		return fmt.Errorf("data too short for message header")
	}

	*msg = common.Message{MsgType: common.MessageType(data[0])}
	flags := binary.BigEndian.Uint16(data[1:3])
	r := reader{data: data, pos: headerSize}

	if flags&hasName != 0 {
		msg.Name = r.string("name")
	}
	if flags&hasKey != 0 {
		msg.Key = r.string("key")
	}
	if flags&hasValue != 0 {
		msg.Value = r.bytes("value")
	}
	if flags&hasStart != 0 {
		msg.Start = r.string("start")
	}
	if flags&hasEnd != 0 {
		msg.End = r.string("end")
	}
	if flags&hasOffset != 0 {
		msg.Offset = r.int64("offset")
	}
	if flags&hasLimit != 0 {
		msg.Limit = r.int64("limit")
	}
	if flags&hasNum != 0 {
		msg.Num = r.int64("num")
	}
	if flags&hasLogType != 0 {
		msg.LogType = r.byte("log type")
	}
	if flags&hasEntries != 0 {
		n := r.uint32("entry count")
		// every entry needs at least 4+4+8 bytes
		if r.err == nil && int(n) > (len(data)-r.pos)/16 {
			r.fail("entries")
		}
		if r.err == nil {
			msg.Entries = make([]store.Entry, n)
			for i := range msg.Entries {
				msg.Entries[i].Key = r.string("entry key")
				msg.Entries[i].Value = r.nullableBytes("entry value")
				msg.Entries[i].Score = r.int64("entry score")
			}
		}
	}
	if flags&hasOk != 0 {
		msg.Ok = r.byte("ok flag") != 0
	}
	if flags&hasCode != 0 {
		msg.Code = uint64(r.int64("code"))
	}
	if flags&hasErr != 0 {
		msg.Err = r.string("error")
	}
	if flags&hasMeta != 0 {
		msg.Meta = r.bytes("meta")
	}

	return r.err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	size := headerSize

	// Add sizes for fields that require length encoding
	if msg.Name != "" {
		size += 4 + len(msg.Name)
	}
	if msg.Key != "" {
		size += 4 + len(msg.Key)
	}
	if msg.Value != nil {
		size += 4 + len(msg.Value)
	}
	if msg.Start != "" {
		size += 4 + len(msg.Start)
	}
	if msg.End != "" {
		size += 4 + len(msg.End)
	}
	size += 8 * 3 // Offset, Limit, Num
	size += 1     // LogType
	if msg.Entries != nil {
		size += 4
		for _, e := range msg.Entries {
			size += 4 + len(e.Key) + 4 + len(e.Value) + 8
		}
	}
	size += 1 + 8 // Ok, Code
	if msg.Err != "" {
		size += 4 + len(msg.Err)
	}
	if msg.Meta != nil {
		size += 4 + len(msg.Meta)
	}

	return size
}

// nilLen marks a nil slice inside an entry
const nilLen = ^uint32(0)

type writer struct {
	buf []byte
}

func (w *writer) uint32(v uint32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
}

func (w *writer) int64(v int64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, uint64(v))
}

func (w *writer) string(s string) {
	w.uint32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *writer) bytes(b []byte) {
	w.uint32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

func (w *writer) nullableBytes(b []byte) {
	if b == nil {
		w.uint32(nilLen)
		return
	}
	w.bytes(b)
}

// reader keeps the first error, later reads return zero values
type reader struct {
	data []byte
	pos  int
	err  error
}

func (r *reader) fail(field string) {
	if r.err == nil {
		r.err = fmt.Errorf("data too short for %s", field)
	}
}

func (r *reader) take(n int, field string) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.pos+n > len(r.data) {
		r.fail(field)
		return nil
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *reader) byte(field string) byte {
	b := r.take(1, field)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) uint32(field string) uint32 {
	b := r.take(4, field)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (r *reader) int64(field string) int64 {
	b := r.take(8, field)
	if b == nil {
		return 0
	}
	return int64(binary.BigEndian.Uint64(b))
}

func (r *reader) string(field string) string {
	n := r.uint32(field + " length")
	return string(r.take(int(n), field))
}

// bytes copies the field, an empty field decodes as an empty (not nil) slice
func (r *reader) bytes(field string) []byte {
	n := r.uint32(field + " length")
	b := r.take(int(n), field)
	if r.err != nil {
		return nil
	}
	return append(make([]byte, 0, len(b)), b...)
}

func (r *reader) nullableBytes(field string) []byte {
	n := r.uint32(field + " length")
	if r.err != nil || n == nilLen {
		return nil
	}
	b := r.take(int(n), field)
	if r.err != nil {
		return nil
	}
	return append(make([]byte, 0, len(b)), b...)
}
