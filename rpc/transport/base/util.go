package base

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
)

// defaultMaxMessageSize bounds frame size when a server config leaves
// MaxMessageSize unset (256 KiB).
const defaultMaxMessageSize = 262144

// writeFrame writes a frame to the connection with the format:
// - 4 bytes: data length (uint32, big endian)
// - N bytes: data payload
func writeFrame(conn net.Conn, data []byte) error {
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(data)))

	b := net.Buffers{header[:], data}
	_, err := b.WriteTo(conn)
	return err
}

// WriteFrame exposes the frame format to callers outside this package that
// need to push an unsolicited frame onto a connection, such as connmgr
// delivering a notification push alongside the normal request/response
// cycle.
func WriteFrame(conn net.Conn, data []byte) error {
	return writeFrame(conn, data)
}

// readFrame reads a frame from the connection using the provided buffer.
// If the buffer is too small for the payload, it allocates a new one. A
// frame whose declared length exceeds maxSize (0 meaning
// defaultMaxMessageSize) is rejected without reading its payload.
func readFrame(conn net.Conn, buf []byte, maxSize uint32) ([]byte, error) {
	if maxSize == 0 {
		maxSize = defaultMaxMessageSize
	}

	var header [4]byte
	if _, err := io.ReadFull(conn, header[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(header[:])
	if length > maxSize {
		return nil, fmt.Errorf("frame length %d exceeds max message size %d", length, maxSize)
	}
	if length == 0 {
		return []byte{}, nil
	}

	if cap(buf) < int(length) {
		buf = make([]byte, length)
	} else {
		buf = buf[:length]
	}

	if _, err := io.ReadFull(conn, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
