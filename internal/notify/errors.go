package notify

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned for deliveries abandoned during shutdown
	ErrClosed = errors.New("dispatcher closed")
)

// StatusError is a non-2xx response from the downstream consumer
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("downstream responded with status %d", e.StatusCode)
}
