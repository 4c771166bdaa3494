package client

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"

	"github.com/kstaniek/go-tcpbus/internal/wire"
)

// readFrame reads exactly one framed packet off conn: the fixed header
// first (to learn total_len), then the remaining body+checksum bytes. A
// total_len outside [MinFrameSize, maxFrame] is a protocol violation and
// fails the read, which tears down the connection.
func readFrame(conn net.Conn, maxFrame int) ([]byte, error) {
	buf := make([]byte, maxFrame)
	if _, err := io.ReadFull(conn, buf[:wire.HeaderSize]); err != nil {
		return nil, err
	}
	total := int(binary.BigEndian.Uint32(buf[0:4]))
	if total < wire.MinFrameSize || total > maxFrame {
		return nil, fmt.Errorf("client: total_len %d outside [%d, %d]", total, wire.MinFrameSize, maxFrame)
	}
	if _, err := io.ReadFull(conn, buf[wire.HeaderSize:total]); err != nil {
		return nil, err
	}
	return buf[:total], nil
}
