package client

import "errors"

// Errors surfaced by the client's public API (§7).
var (
	ErrNotInitialized = errors.New("client: not started")
	ErrChannelClosed  = errors.New("client: channel closed")
)
