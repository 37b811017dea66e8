package base

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
)

// Frame layout, all integers big endian:
//
//	shard id (8) | request id (8) | payload length (4) | payload
const frameHeaderSize = 20

// MaxFrameSize bounds the payload of a single frame. A larger length in a header
// means a corrupt or hostile stream.
const MaxFrameSize = 256 << 20

// ErrFrameTooLarge is returned when a frame exceeds MaxFrameSize
var ErrFrameTooLarge = fmt.Errorf("frame exceeds %d bytes", MaxFrameSize)

func putFrameHeader(header []byte, shardID, requestID uint64, length int) {
	binary.BigEndian.PutUint64(header[0:8], shardID)
	binary.BigEndian.PutUint64(header[8:16], requestID)
	binary.BigEndian.PutUint32(header[16:20], uint32(length))
}

// writeFrame writes header and payload with one vectored write
func writeFrame(w io.Writer, shardID, requestID uint64, data []byte) error {
	if len(data) > MaxFrameSize {
		return ErrFrameTooLarge
	}

	var header [frameHeaderSize]byte
	putFrameHeader(header[:], shardID, requestID, len(data))

	b := net.Buffers{header[:], data}
	_, err := b.WriteTo(w)
	return err
}

// readFrame reads one frame. The payload lands in buf when it fits, otherwise in a
// fresh slice, so the result is only valid as long as buf is not reused.
// A clean EOF before the header is returned as io.EOF.
func readFrame(r io.Reader, buf []byte) (shardID, requestID uint64, data []byte, err error) {
	var header [frameHeaderSize]byte
	if _, err = io.ReadFull(r, header[:]); err != nil {
		return 0, 0, nil, err
	}

	shardID = binary.BigEndian.Uint64(header[0:8])
	requestID = binary.BigEndian.Uint64(header[8:16])
	length := int(binary.BigEndian.Uint32(header[16:20]))

	if length > MaxFrameSize {
		return 0, 0, nil, ErrFrameTooLarge
	}
	if length == 0 {
		return shardID, requestID, []byte{}, nil
	}

	if cap(buf) >= length {
		data = buf[:length]
	} else {
		data = make([]byte, length)
	}

	if _, err = io.ReadFull(r, data); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return 0, 0, nil, err
	}
	return shardID, requestID, data, nil
}
