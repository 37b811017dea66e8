package util

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/DazeHolic/lvdb/lib/db"
)

// --------------------------------------------------------------------------
// Portable Snapshot Format
// --------------------------------------------------------------------------

// The snapshot format is shared by all engines so that a snapshot taken from
// one engine can be loaded into another one:
//
//	magic "LVDBSNAP" | version u8 | { 0x01 | keyLen u32 | key | valLen u32 | value }* | 0x00
//
// All integers are little endian. Entries appear in key order.
const (
	snapshotMagic   = "LVDBSNAP"
	snapshotVersion = 1

	entryMarker = 0x01
	endMarker   = 0x00
)

// WriteSnapshot writes every entry visible to the iterator to w.
// The iterator is positioned by this function but not closed.
func WriteSnapshot(w io.Writer, it db.Iterator) error {
	bw := bufio.NewWriterSize(w, 1024*1024) // 1 MB buffer

	if _, err := bw.WriteString(snapshotMagic); err != nil {
		return err
	}
	if err := bw.WriteByte(snapshotVersion); err != nil {
		return err
	}

	var lenBuf [4]byte
	for ok := it.First(); ok; ok = it.Next() {
		key, value := it.Key(), it.Value()

		if err := bw.WriteByte(entryMarker); err != nil {
			return err
		}
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(key)))
		if _, err := bw.Write(lenBuf[:]); err != nil {
			return err
		}
		if _, err := bw.Write(key); err != nil {
			return err
		}
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(value)))
		if _, err := bw.Write(lenBuf[:]); err != nil {
			return err
		}
		if _, err := bw.Write(value); err != nil {
			return err
		}
	}
	if err := it.Error(); err != nil {
		return err
	}

	if err := bw.WriteByte(endMarker); err != nil {
		return err
	}
	return bw.Flush()
}

// ReadSnapshot reads a snapshot created by WriteSnapshot and calls fn for every entry.
// The slices passed to fn are owned by the callee.
func ReadSnapshot(r io.Reader, fn func(key, value []byte) error) error {
	br := bufio.NewReaderSize(r, 1024*1024) // 1 MB buffer

	magic := make([]byte, len(snapshotMagic))
	if _, err := io.ReadFull(br, magic); err != nil {
		return err
	}
	if string(magic) != snapshotMagic {
		return fmt.Errorf("invalid file format: magic number mismatch")
	}

	version, err := br.ReadByte()
	if err != nil {
		return err
	}
	if version != snapshotVersion {
		return fmt.Errorf("unsupported version: %d (expected %d)", version, snapshotVersion)
	}

	for {
		marker, err := br.ReadByte()
		if err != nil {
			return err
		}
		switch marker {
		case endMarker:
			return nil
		case entryMarker:
		default:
			return fmt.Errorf("invalid entry marker: %#x", marker)
		}

		key, err := readChunk(br)
		if err != nil {
			return err
		}
		value, err := readChunk(br)
		if err != nil {
			return err
		}
		if err := fn(key, value); err != nil {
			return err
		}
	}
}

func readChunk(br *bufio.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(br, lenBuf[:]); err != nil {
		return nil, err
	}
	chunk := make([]byte, binary.LittleEndian.Uint32(lenBuf[:]))
	if _, err := io.ReadFull(br, chunk); err != nil {
		return nil, err
	}
	return chunk, nil
}
