// Package responsehandler collects responses to a sent command and decides,
// per a pluggable policy, when no more responses are coming.
package responsehandler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// mode selects how a Handler decides it is done collecting responses.
type mode int

const (
	modeFixedDeadline mode = iota // deadline set once at creation
	modeSlidingDeadline           // deadline refreshed on every AddResponse
)

// Handler accumulates responses to a single sent command and finalizes
// itself once its policy says no more are expected. The zero value is not
// usable; construct with BlockUntilAllReceived, UpdateTimeoutPerReceive or
// Callback.
type Handler struct {
	mu sync.Mutex

	responses []any
	readIndex int

	numReceivers *int
	timeout      *time.Duration
	mode         mode
	callback     func(any)

	deadline    time.Time
	hasDeadline bool

	finalized  bool
	nextCalled bool

	logger *slog.Logger
}

func newHandler(timeout *time.Duration, mode mode, callback func(any), logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{timeout: timeout, mode: mode, callback: callback, logger: logger}
	h.resetDeadline()
	return h
}

// resetDeadline must be called with h.mu held.
func (h *Handler) resetDeadline() {
	if h.timeout == nil {
		h.hasDeadline = false
		return
	}
	h.deadline = time.Now().Add(*h.timeout)
	h.hasDeadline = true
}

// SetNumReceivers records how many responses are expected. Until it is
// called the count is unknown (collection bounded only by timeout). It does
// not evaluate the policy itself; that happens on the next AddResponse,
// Finalize or blocking Get.
func (h *Handler) SetNumReceivers(n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.numReceivers = &n
}

// AddResponse records a response. If the handler carries a callback policy
// it is invoked synchronously, after the response has been enqueued.
func (h *Handler) AddResponse(v any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.finalized {
		h.logger.Warn("response received for an already finalized handler, dropping", "value", v)
		return
	}
	h.responses = append(h.responses, v)
	if h.mode == modeSlidingDeadline {
		h.resetDeadline()
	}
	if h.callback != nil {
		h.callback(v)
	}
	h.maybeFinalizeLocked()
}

// NumReceivedResults returns how many responses have been recorded so far.
func (h *Handler) NumReceivedResults() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.responses)
}

// IsFinalized reports whether the handler has stopped accepting responses.
func (h *Handler) IsFinalized() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.finalized
}

// Finalize evaluates the handler's policy and, if satisfied, marks it done.
// It is idempotent and safe to call repeatedly from a sweeper goroutine.
// It returns whether the handler is finalized after the call.
func (h *Handler) Finalize() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.maybeFinalizeLocked()
	return h.finalized
}

// maybeFinalizeLocked must be called with h.mu held.
func (h *Handler) maybeFinalizeLocked() {
	if h.finalized {
		return
	}
	if h.numReceivers == nil && !h.hasDeadline {
		h.logger.Warn("response handler has neither num_receivers nor a timeout set; aborting to avoid leaking forever")
		h.finalized = true
		return
	}
	if h.numReceivers != nil && len(h.responses) >= *h.numReceivers {
		h.finalized = true
		return
	}
	if h.hasDeadline && !time.Now().Before(h.deadline) {
		h.finalized = true
	}
}

// Get returns the responses collected so far. If block is true it waits
// (busy-free, via short sleeps) up to timeout for the handler to finalize
// before returning; a nil timeout means wait forever. Get after Next has
// already consumed responses may return unexpected results, matching the
// iterator-then-batch-read hazard of the underlying policy.
func (h *Handler) Get(block bool, timeout *time.Duration) ([]any, bool) {
	if !block {
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.nextCalled {
			h.logger.Warn("Get called after Next has already consumed responses; results may be incomplete")
		}
		out := make([]any, len(h.responses))
		copy(out, h.responses)
		return out, h.finalized
	}

	deadline := time.Time{}
	hasDeadline := false
	if timeout != nil {
		deadline = time.Now().Add(*timeout)
		hasDeadline = true
	}
	for {
		h.mu.Lock()
		h.maybeFinalizeLocked()
		done := h.finalized
		if done || (hasDeadline && !time.Now().Before(deadline)) {
			if h.nextCalled {
				h.logger.Warn("Get called after Next has already consumed responses; results may be incomplete")
			}
			out := make([]any, len(h.responses))
			copy(out, h.responses)
			h.mu.Unlock()
			return out, done
		}
		h.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
}

// Next implements a pull-based iterator over responses as they arrive,
// blocking until one is available, the handler finalizes, or ctx is done.
// The second return value is false once no more responses will ever come.
func (h *Handler) Next(ctx context.Context) (any, bool) {
	for {
		h.mu.Lock()
		h.nextCalled = true
		if h.readIndex < len(h.responses) {
			v := h.responses[h.readIndex]
			h.readIndex++
			h.mu.Unlock()
			return v, true
		}
		h.maybeFinalizeLocked()
		if h.finalized {
			h.mu.Unlock()
			return nil, false
		}
		h.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, false
		case <-time.After(5 * time.Millisecond):
		}
	}
}
