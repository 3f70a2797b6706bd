package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrConnectionFailed is returned when a node identity cannot be claimed
// after retrying, or the underlying Redis client reports an error Connect
// cannot recover from.
var ErrConnectionFailed = errors.New("broker: connection failed")

// ErrNotConnected is returned by operations that require an established
// connection.
var ErrNotConnected = errors.New("broker: not connected")

// ErrServerDisconnected is returned by Send when a liveness ping does not
// get a pong back within SendTimeout.
var ErrServerDisconnected = errors.New("broker: server disconnected")

// ErrInvalidChannel is returned by Join, Leave, and Send when a name
// contains the destination delimiter.
var ErrInvalidChannel = errors.New("broker: invalid channel")

const pingPayload = "curium-ping"

// RedisAdapter is the reference Adapter implementation, built on
// github.com/redis/go-redis/v9. A single RedisAdapter owns one pub/sub
// connection and one identity key.
type RedisAdapter struct {
	client *redis.Client
	cfg    RedisAdapterConfig
	logger *slog.Logger

	connMu sync.Mutex
	ps     *redis.PubSub
	nid    string

	sendMu sync.Mutex // serializes Send end to end, like the original's atomicmethod

	msgCh chan []byte
	pongs atomic.Int64

	heartbeatCancel context.CancelFunc
	recvLoopCancel  context.CancelFunc
	loopWG          sync.WaitGroup

	wasDisconnected atomic.Bool
}

// NewRedisAdapter wraps an already-configured *redis.Client. logger may be
// nil, in which case slog.Default() is used.
func NewRedisAdapter(client *redis.Client, cfg RedisAdapterConfig, logger *slog.Logger) *RedisAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisAdapter{client: client, cfg: cfg.withDefaults(), logger: logger}
}

func (a *RedisAdapter) identityKey(nid string) string {
	return fmt.Sprintf("%s:nid:%s", a.cfg.Namespace, nid)
}

// Connect claims a node identity by racing other nodes on an INCR+EXPIRE-NX
// pipeline: a candidate UUID wins iff it is the first to INCR its own key to
// 1. Collisions are astronomically unlikely with UUIDv4 candidates but the
// loop retries with a fresh candidate regardless, to make the contract hold
// even under a weaker id generator.
func (a *RedisAdapter) Connect(ctx context.Context) (string, error) {
	a.connMu.Lock()
	defer a.connMu.Unlock()
	if a.nid != "" {
		return a.nid, nil
	}
	nid, err := a.claimIdentity(ctx)
	if err != nil {
		return "", err
	}
	a.nid = nid
	a.startLocked(ctx)
	return nid, nil
}

func (a *RedisAdapter) claimIdentity(ctx context.Context) (string, error) {
	const maxAttempts = 10
	for i := 0; i < maxAttempts; i++ {
		candidate := uuid.New().String()
		key := a.identityKey(candidate)
		pipe := a.client.TxPipeline()
		incr := pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, a.cfg.IdentityExpire)
		if _, err := pipe.Exec(ctx); err != nil {
			return "", fmt.Errorf("%w: %v", ErrConnectionFailed, err)
		}
		if incr.Val() == 1 {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: could not claim a node identity after %d attempts", ErrConnectionFailed, maxAttempts)
}

// startLocked must be called with connMu held; it brings up the pub/sub
// connection, the background receive loop, and the heartbeat goroutine.
func (a *RedisAdapter) startLocked(ctx context.Context) {
	a.ps = a.client.PSubscribe(ctx)
	a.msgCh = make(chan []byte, 64)

	recvCtx, recvCancel := context.WithCancel(context.Background())
	a.recvLoopCancel = recvCancel
	a.loopWG.Add(1)
	go a.recvLoop(recvCtx)

	hbCtx, hbCancel := context.WithCancel(context.Background())
	a.heartbeatCancel = hbCancel
	a.loopWG.Add(1)
	go a.heartbeatLoop(hbCtx)
}

func (a *RedisAdapter) recvLoop(ctx context.Context) {
	defer a.loopWG.Done()
	for {
		if ctx.Err() != nil {
			return
		}
		msg, err := a.ps.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			a.logger.Warn("broker: pub/sub receive error, continuing", "error", err)
			continue
		}
		switch m := msg.(type) {
		case *redis.Subscription:
			// join/leave confirmation, nothing to deliver upstream.
		case *redis.Pong:
			a.pongs.Add(1)
		case *redis.Message:
			select {
			case a.msgCh <- []byte(m.Payload):
			default:
				a.logger.Warn("broker: receive buffer full, dropping message")
			}
		default:
			a.logger.Warn("broker: unexpected pub/sub frame, ignoring", "type", fmt.Sprintf("%T", msg))
		}
	}
}

func (a *RedisAdapter) heartbeatLoop(ctx context.Context) {
	defer a.loopWG.Done()
	ticker := time.NewTicker(a.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.connMu.Lock()
			nid := a.nid
			a.connMu.Unlock()
			if nid == "" {
				continue
			}
			err := a.client.Set(ctx, a.identityKey(nid), "1", a.cfg.IdentityExpire).Err()
			if err != nil {
				if !a.wasDisconnected.Swap(true) {
					a.logger.Warn("broker: heartbeat failed, marking disconnected", "nid", nid, "error", err)
				}
				continue
			}
			if a.wasDisconnected.Swap(false) {
				a.logger.Warn("broker: heartbeat recovered, marking reconnected", "nid", nid)
			}
		}
	}
}

// Reconnect tears down the pub/sub connection and heartbeat, then tries to
// reclaim the same identity before falling back to a fresh one.
func (a *RedisAdapter) Reconnect(ctx context.Context) error {
	a.connMu.Lock()
	prevNid := a.nid
	a.stopLocked()
	a.connMu.Unlock()

	if prevNid != "" {
		key := a.identityKey(prevNid)
		ok, err := a.client.SetNX(ctx, key, "1", a.cfg.IdentityExpire).Result()
		if err == nil && ok {
			a.connMu.Lock()
			a.nid = prevNid
			a.startLocked(ctx)
			a.connMu.Unlock()
			return nil
		}
	}

	a.connMu.Lock()
	a.nid = ""
	a.connMu.Unlock()
	_, err := a.Connect(ctx)
	return err
}

// Close releases the pub/sub connection and stops the heartbeat. It does
// not delete the identity key; it simply lets it expire.
func (a *RedisAdapter) Close(ctx context.Context) error {
	a.connMu.Lock()
	defer a.connMu.Unlock()
	if a.nid == "" {
		return nil
	}
	a.stopLocked()
	a.nid = ""
	return nil
}

// stopLocked must be called with connMu held.
func (a *RedisAdapter) stopLocked() {
	if a.heartbeatCancel != nil {
		a.heartbeatCancel()
	}
	if a.recvLoopCancel != nil {
		a.recvLoopCancel()
	}
	if a.ps != nil {
		_ = a.ps.Close()
	}
	a.loopWG.Wait()
	a.ps = nil
	a.heartbeatCancel = nil
	a.recvLoopCancel = nil
}

func (a *RedisAdapter) Join(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	a.connMu.Lock()
	ps := a.ps
	a.connMu.Unlock()
	if ps == nil {
		return ErrNotConnected
	}
	return ps.PSubscribe(ctx, subscriptionPattern(name))
}

func (a *RedisAdapter) Leave(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	a.connMu.Lock()
	ps := a.ps
	a.connMu.Unlock()
	if ps == nil {
		return ErrNotConnected
	}
	return ps.PUnsubscribe(ctx, subscriptionPattern(name))
}

// Send publishes data addressed to destinations, first verifying the
// pub/sub session is still alive with a ping/pong round trip if
// PingWhileSending is enabled. Send is serialized end to end so concurrent
// callers never interleave a ping from one call with the publish of another.
func (a *RedisAdapter) Send(ctx context.Context, data []byte, destinations []string) (int, error) {
	for _, d := range destinations {
		if err := ValidateName(d); err != nil {
			return 0, err
		}
	}

	a.sendMu.Lock()
	defer a.sendMu.Unlock()

	a.connMu.Lock()
	ps := a.ps
	a.connMu.Unlock()
	if ps == nil {
		return 0, ErrNotConnected
	}

	if a.cfg.PingWhileSending {
		before := a.pongs.Load()
		if err := ps.Ping(ctx, pingPayload); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrServerDisconnected, err)
		}
		deadline := time.Now().Add(a.cfg.SendTimeout)
		for a.pongs.Load() == before {
			if time.Now().After(deadline) {
				return 0, ErrServerDisconnected
			}
			time.Sleep(2 * time.Millisecond)
		}
	}

	topic := encodeDestinations(destinations)
	n, err := a.client.Publish(ctx, topic, data).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	return int(n), nil
}

// Recv waits for the next application message. If block is false, timeout
// is ignored and Recv returns immediately. A zero timeout with block true
// waits forever.
func (a *RedisAdapter) Recv(ctx context.Context, block bool, timeout time.Duration) ([]byte, error) {
	a.connMu.Lock()
	ch := a.msgCh
	a.connMu.Unlock()
	if ch == nil {
		return nil, ErrNotConnected
	}
	if !block {
		select {
		case b := <-ch:
			return b, nil
		default:
			return nil, nil
		}
	}
	if timeout == 0 {
		select {
		case b := <-ch:
			return b, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case b := <-ch:
		return b, nil
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
