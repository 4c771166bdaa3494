package wire

import (
	"encoding/binary"
	"errors"
)

// StrategyBodySize is the width of a SecurityStrategyBody: one big-endian u32.
const StrategyBodySize = 4

// ErrBadStrategyBody is returned when a handshake body is not exactly 4 bytes.
var ErrBadStrategyBody = errors.New("wire: malformed security strategy body")

// EncodeStrategyBody encodes a strategy code as the handshake frame's body.
func EncodeStrategyBody(code uint32) []byte {
	b := make([]byte, StrategyBodySize)
	binary.BigEndian.PutUint32(b, code)
	return b
}

// DecodeStrategyBody decodes a handshake frame's body into a strategy code.
// Codes it does not recognise are left for the caller (the strategy
// registry) to degrade to plaintext.
func DecodeStrategyBody(body []byte) (uint32, error) {
	if len(body) != StrategyBodySize {
		return 0, ErrBadStrategyBody
	}
	return binary.BigEndian.Uint32(body), nil
}
