package bridge

import "errors"

var (
	ErrBridgeDisabled    = errors.New("bridge is disabled on this server")
	ErrUnauthorized      = errors.New("invalid or missing bridge key")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrClosed            = errors.New("bridge is shutting down")
)
