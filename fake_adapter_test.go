package curium_test

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/susautw/curium-go/broker"
)

// fakeBus is a shared in-memory broker backing a set of fakeAdapters, for
// deterministic Node tests with no network involved.
type fakeBus struct {
	mu      sync.Mutex
	nextNid int
	nodes   map[string]*fakeAdapter
}

func newFakeBus() *fakeBus {
	return &fakeBus{nodes: make(map[string]*fakeAdapter)}
}

func (b *fakeBus) newAdapter() *fakeAdapter {
	return &fakeAdapter{bus: b, joined: make(map[string]bool), inbox: make(chan []byte, 64)}
}

type fakeAdapter struct {
	bus    *fakeBus
	nid    string
	mu     sync.Mutex
	joined map[string]bool
	inbox  chan []byte
}

var _ broker.Adapter = (*fakeAdapter)(nil)

func (a *fakeAdapter) Connect(ctx context.Context) (string, error) {
	a.bus.mu.Lock()
	defer a.bus.mu.Unlock()
	if a.nid != "" {
		return a.nid, nil
	}
	a.bus.nextNid++
	a.nid = "fake-" + strconv.Itoa(a.bus.nextNid)
	a.bus.nodes[a.nid] = a
	return a.nid, nil
}

func (a *fakeAdapter) Reconnect(ctx context.Context) error {
	return nil
}

func (a *fakeAdapter) Close(ctx context.Context) error {
	a.bus.mu.Lock()
	defer a.bus.mu.Unlock()
	delete(a.bus.nodes, a.nid)
	return nil
}

func (a *fakeAdapter) Join(ctx context.Context, name string) error {
	if err := broker.ValidateName(name); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.joined[name] = true
	return nil
}

func (a *fakeAdapter) Leave(ctx context.Context, name string) error {
	if err := broker.ValidateName(name); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.joined, name)
	return nil
}

func (a *fakeAdapter) Send(ctx context.Context, data []byte, destinations []string) (int, error) {
	for _, d := range destinations {
		if err := broker.ValidateName(d); err != nil {
			return 0, err
		}
	}
	a.bus.mu.Lock()
	defer a.bus.mu.Unlock()
	delivered := 0
	for _, node := range a.bus.nodes {
		node.mu.Lock()
		hit := false
		for _, d := range destinations {
			if d == "all" || node.joined[d] {
				hit = true
				break
			}
		}
		node.mu.Unlock()
		if hit {
			select {
			case node.inbox <- data:
				delivered++
			default:
			}
		}
	}
	return delivered, nil
}

func (a *fakeAdapter) Recv(ctx context.Context, block bool, timeout time.Duration) ([]byte, error) {
	if !block {
		select {
		case b := <-a.inbox:
			return b, nil
		default:
			return nil, nil
		}
	}
	if timeout == 0 {
		select {
		case b := <-a.inbox:
			return b, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case b := <-a.inbox:
		return b, nil
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
