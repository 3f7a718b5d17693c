package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"time"
)

const (
	version  byte = 1
	kindLock byte = 1
)

var (
	ErrCorrupt = errors.New("diskmemo: corrupt lock marker")
	magic4     = [...]byte{'D', 'M', 'L', 'K'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Marker is the payload of a lock file. Lock state itself is derived from the
// file's existence and mtime; the payload identifies the holder.
type Marker struct {
	Token    string
	PID      int
	Host     string
	Acquired time.Time
}

// Lock: magic(4) | ver(1) | kind(1=lock) | acquired(u64 be, unix nanos) | pid(u32 be)
//
//	tokenLen(u16 be) | token | hostLen(u16 be) | host
func EncodeMarker(m Marker) []byte {
	token := clip(m.Token)
	host := clip(m.Host)

	var buf bytes.Buffer
	buf.Grow(4 + 1 + 1 + 8 + 4 + 2 + len(token) + 2 + len(host))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindLock)

	var u8 [8]byte
	var u4 [4]byte
	var u2 [2]byte

	binary.BigEndian.PutUint64(u8[:], uint64(m.Acquired.UnixNano()))
	buf.Write(u8[:])

	binary.BigEndian.PutUint32(u4[:], uint32(m.PID))
	buf.Write(u4[:])

	binary.BigEndian.PutUint16(u2[:], uint16(len(token)))
	buf.Write(u2[:])
	buf.WriteString(token)

	binary.BigEndian.PutUint16(u2[:], uint16(len(host)))
	buf.Write(u2[:])
	buf.WriteString(host)

	return buf.Bytes()
}

func DecodeMarker(b []byte) (Marker, error) {
	const hdr = 4 + 1 + 1 + 8 + 4
	if len(b) < hdr || !hasMagic(b) || b[4] != version || b[5] != kindLock {
		return Marker{}, ErrCorrupt
	}

	off := 6
	acquired := int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8
	pid := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4

	token, off, err := readString(b, off)
	if err != nil {
		return Marker{}, err
	}
	host, off, err := readString(b, off)
	if err != nil {
		return Marker{}, err
	}
	if off != len(b) {
		return Marker{}, ErrCorrupt // trailing bytes
	}

	return Marker{
		Token:    token,
		PID:      pid,
		Host:     host,
		Acquired: time.Unix(0, acquired),
	}, nil
}

func readString(b []byte, off int) (string, int, error) {
	if off+2 > len(b) {
		return "", 0, ErrCorrupt
	}
	n := int(binary.BigEndian.Uint16(b[off : off+2]))
	off += 2
	if n > len(b)-off {
		return "", 0, ErrCorrupt
	}
	return string(b[off : off+n]), off + n, nil
}

func clip(s string) string {
	if len(s) > math.MaxUint16 {
		return s[:math.MaxUint16]
	}
	return s
}
