package server

import "github.com/kstaniek/go-tcpbus/internal/wire"

// writeHandshake sends the SEC_ARG frame a server writes immediately after
// accept: target "SEC_ARG\0", body the server's configured strategy code,
// always framed with a plaintext cipher regardless of the advertised
// strategy so the client can parse it before it has applied anything.
func writeHandshake(c interface{ Write([]byte) (int, error) }, code uint32) error {
	body := wire.EncodeStrategyBody(code)
	buf := make([]byte, wire.HeaderSize+len(body)+wire.ChecksumSize)
	n, err := wire.Serialize(buf, wire.SecArgTarget, body, nil)
	if err != nil {
		return err
	}
	_, err = c.Write(buf[:n])
	return err
}
