package runner

import "errors"

var (
	// ErrQueueTimeout means no match was assigned within the configured
	// overall queue wait.
	ErrQueueTimeout = errors.New("queue timeout: no match assigned")

	// ErrTransportExhausted means the push channel failed and no fallback
	// remained (fallback disabled or poll source failed to start).
	ErrTransportExhausted = errors.New("transport exhausted: no usable event source")
)
