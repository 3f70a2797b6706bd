package responsehandler

import (
	"log/slog"
	"time"
)

// BlockUntilAllReceived finalizes once SetNumReceivers' count has been met,
// or timeout elapses since creation, whichever comes first. A nil timeout
// means wait forever for all receivers (only safe once SetNumReceivers has
// been called with a real count).
func BlockUntilAllReceived(timeout *time.Duration, logger *slog.Logger) *Handler {
	return newHandler(timeout, modeFixedDeadline, nil, logger)
}

// UpdateTimeoutPerReceive finalizes once timeout elapses with no response
// received in that window, refreshing the deadline on every AddResponse.
func UpdateTimeoutPerReceive(timeout time.Duration, logger *slog.Logger) *Handler {
	t := timeout
	return newHandler(&t, modeSlidingDeadline, nil, logger)
}

// Callback invokes fn synchronously with every response as it arrives, in
// addition to the normal collection behavior, finalizing after timeout
// elapses since creation (or immediately once SetNumReceivers' count is
// met, if set).
func Callback(fn func(response any), timeout *time.Duration, logger *slog.Logger) *Handler {
	return newHandler(timeout, modeFixedDeadline, fn, logger)
}
