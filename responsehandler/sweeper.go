package responsehandler

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically finalizes handlers that have satisfied their policy
// and reports which ones should be dropped from the owner's map. It does not
// own the map itself; Node supplies snapshot/remove callbacks so the map's
// locking stays with its owner.
type Sweeper struct {
	interval time.Duration
	snapshot func() map[string]*Handler
	remove   func(cid string)
	logger   *slog.Logger
}

// NewSweeper constructs a Sweeper. snapshot must return a point-in-time copy
// of the cid->Handler map; remove is called once per cid whose handler
// finalized during a sweep.
func NewSweeper(interval time.Duration, snapshot func() map[string]*Handler, remove func(cid string), logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{interval: interval, snapshot: snapshot, remove: remove, logger: logger}
}

// Run blocks, sweeping on a fixed interval, until ctx is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce()
		}
	}
}

func (s *Sweeper) sweepOnce() {
	for cid, h := range s.snapshot() {
		if h.Finalize() {
			s.remove(cid)
			s.logger.Debug("response handler finalized and removed", "cid", cid)
		}
	}
}
