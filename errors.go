package mpdutils

import (
	"errors"
	"fmt"
)

// ErrNoHostConnected is returned by MultiHostClient operations when no
// connected host qualifies under the selection policy.
var ErrNoHostConnected = errors.New("no host connected")

// ErrSubscriptionClosed is returned by Recv on a closed subscription.
var ErrSubscriptionClosed = errors.New("subscription closed")

// LaggedError is delivered in place of events that were dropped because
// a subscriber fell behind its buffer. The subscription remains usable;
// the next Recv resumes with the oldest retained event.
type LaggedError struct {
	Missed int
}

func (e *LaggedError) Error() string {
	return fmt.Sprintf("subscriber lagged: %d events dropped", e.Missed)
}
