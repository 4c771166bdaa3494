package client

import "errors"

var (
	// ErrDisconnected is returned by Send when no connection is currently live.
	ErrDisconnected = errors.New("client: disconnected")
	// ErrBadHandshake is returned when the server's first frame is not a
	// valid SEC_ARG strategy announcement.
	ErrBadHandshake = errors.New("client: bad handshake")
)
