package curium

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/susautw/curium-go/broker"
	"github.com/susautw/curium-go/codec"
	"github.com/susautw/curium-go/responsehandler"
)

// Node is a single participant on the command bus: it claims an identity
// from the broker, executes commands addressed to channels it has joined,
// and collects responses to commands it has sent.
type Node struct {
	adapter broker.Adapter
	codec   codec.Codec
	cfg     NodeConfig
	logger  *slog.Logger

	connMu    sync.Mutex
	connected bool
	nid       string

	cidCounter atomic.Uint64

	handlersMu sync.RWMutex
	handlers   map[string]*responsehandler.Handler

	cmdCtxMu    sync.RWMutex
	cmdContexts map[string]any

	sweeper     *responsehandler.Sweeper
	sweepCancel context.CancelFunc
}

// NewNode constructs a Node over adapter using c to encode and decode
// commands. It immediately registers curium's own built-in commands
// (CommandWrapper, AddResponse, GetNodeInfos) with c. logger may be nil, in
// which case slog.Default() is used.
func NewNode(adapter broker.Adapter, c codec.Codec, cfg NodeConfig, logger *slog.Logger) (*Node, error) {
	if logger == nil {
		logger = slog.Default()
	}
	n := &Node{
		adapter:     adapter,
		codec:       c,
		cfg:         cfg.withDefaults(),
		logger:      logger,
		handlers:    make(map[string]*responsehandler.Handler),
		cmdContexts: make(map[string]any),
	}
	n.sweeper = responsehandler.NewSweeper(n.cfg.SweepInterval, n.snapshotHandlers, n.removeHandler, logger)

	for _, factory := range []func() Command{
		func() Command { return &CommandWrapper{} },
		func() Command { return &AddResponse{} },
		func() Command { return &GetNodeInfos{} },
	} {
		if err := n.RegisterCmd(factory, nil); err != nil {
			return nil, fmt.Errorf("curium: registering built-in command: %w", err)
		}
	}
	return n, nil
}

// Connect claims a node identity through the adapter, joins the node's
// private nid channel and "all", and starts the response-handler sweeper.
// There is no send-only mode. Calling Connect while already connected is a
// no-op that returns the existing identity.
func (n *Node) Connect(ctx context.Context) (string, error) {
	n.connMu.Lock()
	defer n.connMu.Unlock()
	if n.connected {
		return n.nid, nil
	}
	nid, err := n.adapter.Connect(ctx)
	if err != nil {
		return "", err
	}
	// Every node listens on a private channel named after its own identity,
	// so non-loopback replies (see CommandWrapper.Execute) can reach it.
	if err := n.adapter.Join(ctx, nid); err != nil {
		return "", err
	}
	// Every node also listens on "all", so broadcasts reach it (including
	// broadcasts it sent itself).
	if err := n.adapter.Join(ctx, "all"); err != nil {
		return "", err
	}
	n.nid = nid
	n.connected = true

	sweepCtx, cancel := context.WithCancel(context.Background())
	n.sweepCancel = cancel
	go n.sweeper.Run(sweepCtx)

	return nid, nil
}

// Close stops the sweeper and releases the underlying connection. Calling
// Close while not connected is a no-op.
func (n *Node) Close(ctx context.Context) error {
	n.connMu.Lock()
	defer n.connMu.Unlock()
	if !n.connected {
		return nil
	}
	if n.sweepCancel != nil {
		n.sweepCancel()
	}
	err := n.adapter.Close(ctx)
	n.connected = false
	return err
}

func (n *Node) Join(ctx context.Context, name string) error {
	if !n.isConnected() {
		return ErrNotConnected
	}
	return n.adapter.Join(ctx, name)
}

func (n *Node) Leave(ctx context.Context, name string) error {
	if !n.isConnected() {
		return ErrNotConnected
	}
	return n.adapter.Leave(ctx, name)
}

func (n *Node) isConnected() bool {
	n.connMu.Lock()
	defer n.connMu.Unlock()
	return n.connected
}

// Nid returns the node's claimed identity, or "" if not yet connected.
func (n *Node) Nid() string {
	n.connMu.Lock()
	defer n.connMu.Unlock()
	return n.nid
}

// RegisterCmd registers a command type (identified by the CommandName of a
// value factory produces) with the node's codec, and associates ctxValue
// with it for later retrieval via GetCmdContext. Registering the same
// command name again with the same concrete type is a no-op for the codec;
// registering it with a different type returns the codec's
// ErrCommandHasRegistered.
func (n *Node) RegisterCmd(factory func() Command, ctxValue any) error {
	probe := factory()
	name := probe.CommandName()
	if err := n.codec.RegisterCommand(name, func() codec.Command { return factory() }); err != nil {
		return err
	}
	if ctxValue != nil {
		n.cmdCtxMu.Lock()
		n.cmdContexts[name] = ctxValue
		n.cmdCtxMu.Unlock()
	}
	return nil
}

// GetCmdContext returns the context value registered alongside the command
// named name, if any.
func (n *Node) GetCmdContext(name string) (any, bool) {
	n.cmdCtxMu.RLock()
	defer n.cmdCtxMu.RUnlock()
	v, ok := n.cmdContexts[name]
	return v, ok
}

// DecodeCommand reconstructs a Command from raw bytes using the node's
// codec. It is exposed on Node (and via the Context interface) so
// CommandWrapper can unwrap its nested payload.
func (n *Node) DecodeCommand(raw []byte) (Command, error) {
	cmd, err := n.codec.Decode(raw)
	if err != nil {
		return nil, err
	}
	full, ok := cmd.(Command)
	if !ok {
		return nil, fmt.Errorf("%w: decoded command %T does not implement curium.Command", ErrUnsupportedObject, cmd)
	}
	return full, nil
}

// AddResponse delivers response to the handler registered under cid, if one
// is still present. A response for an unknown or already-finalized cid is
// logged and dropped.
func (n *Node) AddResponse(cid string, response any) {
	n.handlersMu.RLock()
	h, ok := n.handlers[cid]
	n.handlersMu.RUnlock()
	if !ok {
		n.logger.Warn("received response, but command not found", "cid", cid, "response", truncate(response))
		return
	}
	h.AddResponse(response)
}

// NumResponseHandlers reports how many response handlers are currently
// tracked.
func (n *Node) NumResponseHandlers() int {
	n.handlersMu.RLock()
	defer n.handlersMu.RUnlock()
	return len(n.handlers)
}

func (n *Node) nextCid() string {
	return strconv.FormatUint(n.cidCounter.Add(1), 10)
}

func (n *Node) removeHandler(cid string) {
	n.handlersMu.Lock()
	delete(n.handlers, cid)
	n.handlersMu.Unlock()
}

func (n *Node) snapshotHandlers() map[string]*responsehandler.Handler {
	n.handlersMu.RLock()
	defer n.handlersMu.RUnlock()
	cp := make(map[string]*responsehandler.Handler, len(n.handlers))
	for k, v := range n.handlers {
		cp[k] = v
	}
	return cp
}

// sendOptions configures a single Send call; build with SendOption funcs.
type sendOptions struct {
	handler *responsehandler.Handler
	timeout *time.Duration
}

// SendOption customizes a Send call.
type SendOption func(*sendOptions)

// WithHandler supplies a caller-constructed response handler (e.g. from
// responsehandler.Callback) instead of the node's default.
func WithHandler(h *responsehandler.Handler) SendOption {
	return func(o *sendOptions) { o.handler = h }
}

// WithResponseTimeout overrides the node's DefaultResponseTimeout for this
// Send call when no explicit handler is supplied.
func WithResponseTimeout(d time.Duration) SendOption {
	return func(o *sendOptions) { o.timeout = &d }
}

// Send wraps cmd in a CommandWrapper, publishes it to destinations, and
// returns a response handler the caller can poll or iterate for results. An
// empty destination set is a no-op: it warns and returns a handler with zero
// receivers instead of publishing anything.
func (n *Node) Send(ctx context.Context, cmd Command, destinations []string, opts ...SendOption) (*responsehandler.Handler, error) {
	n.connMu.Lock()
	nid, connected := n.nid, n.connected
	n.connMu.Unlock()
	if !connected {
		return nil, ErrNotConnected
	}

	var so sendOptions
	for _, opt := range opts {
		opt(&so)
	}
	handler := so.handler
	if handler == nil {
		timeout := n.cfg.DefaultResponseTimeout
		if so.timeout != nil {
			timeout = *so.timeout
		}
		handler = responsehandler.BlockUntilAllReceived(&timeout, n.logger)
	}

	cid := n.nextCid()
	n.handlersMu.Lock()
	n.handlers[cid] = handler
	n.handlersMu.Unlock()

	if len(destinations) == 0 {
		n.logger.Warn("send called with no destinations, nothing will be dispatched")
		handler.SetNumReceivers(0)
		handler.Finalize()
		return handler, nil
	}
	if allCollapsed, duplicatesDropped := broker.DestinationWarnings(destinations); allCollapsed || duplicatesDropped {
		n.logger.Warn("destinations normalized before publish", "destinations", destinations,
			"all_dominates", allCollapsed, "duplicates_dropped", duplicatesDropped)
	}

	innerBytes, err := n.codec.Encode(cmd)
	if err != nil {
		n.removeHandler(cid)
		return nil, err
	}
	wrapper := &CommandWrapper{Nid: nid, Cid: cid, CmdPayload: innerBytes}
	outerBytes, err := n.codec.Encode(wrapper)
	if err != nil {
		n.removeHandler(cid)
		return nil, err
	}

	count, err := n.adapter.Send(ctx, outerBytes, destinations)
	if err != nil {
		n.removeHandler(cid)
		return nil, err
	}
	if count >= 0 {
		handler.SetNumReceivers(count)
	}
	return handler, nil
}

// SendNoResponse publishes cmd to destinations without wrapping it and
// without creating a response handler: the receiving node executes it and
// whatever it returns is discarded. Calling with no destinations logs a
// warning and is a no-op, matching CommandWrapper's own internal use of
// SendNoResponse to deliver AddResponse.
func (n *Node) SendNoResponse(cmd Command, destinations ...string) (int, error) {
	if !n.isConnected() {
		return 0, ErrNotConnected
	}
	if len(destinations) == 0 {
		n.logger.Warn("send_no_response called with no destinations, skipping")
		return 0, nil
	}
	if allCollapsed, duplicatesDropped := broker.DestinationWarnings(destinations); allCollapsed || duplicatesDropped {
		n.logger.Warn("destinations normalized before publish", "destinations", destinations,
			"all_dominates", allCollapsed, "duplicates_dropped", duplicatesDropped)
	}
	raw, err := n.codec.Encode(cmd)
	if err != nil {
		return 0, err
	}
	return n.adapter.Send(context.Background(), raw, destinations)
}

// dispatch decodes and executes a single incoming frame.
func (n *Node) dispatch(raw []byte, errHandler func(error)) {
	cmd, err := n.codec.Decode(raw)
	if err != nil {
		n.logger.Error("failed to decode incoming command, dropping", "error", err)
		if errHandler != nil {
			errHandler(err)
		}
		return
	}
	result, err := cmd.Execute(n)
	if err != nil {
		wrapped := newCommandExecutionError(cmd.CommandName(), err)
		n.logger.Error("command execution failed", "command", cmd.CommandName(), "error", err)
		if errHandler != nil {
			errHandler(wrapped)
		}
		return
	}
	if !IsNoResponse(result) && result != nil {
		n.logger.Debug("top-level command returned a value with nowhere to route it", "command", cmd.CommandName())
	}
}

// Recv performs a single receive-and-dispatch cycle. If block is false,
// timeout is ignored and Recv returns immediately when nothing is pending.
func (n *Node) Recv(ctx context.Context, block bool, timeout time.Duration) error {
	raw, err := n.adapter.Recv(ctx, block, timeout)
	if err != nil {
		return err
	}
	if raw == nil {
		return nil
	}
	n.dispatch(raw, nil)
	return nil
}

// RecvOptions configures RecvUntilClose.
type RecvOptions struct {
	// NumWorkers bounds how many commands execute concurrently. 0 uses the
	// node's configured default.
	NumWorkers int
	// RecvTimeout bounds each individual poll of the adapter; 0 waits
	// forever for the next message.
	RecvTimeout time.Duration
	// ReconnectMaxTries caps how many times RecvUntilClose will try to
	// reconnect after a receive error before giving up. 0 means unlimited.
	ReconnectMaxTries int
	// ReconnectInterval is the delay between reconnect attempts.
	ReconnectInterval time.Duration
	// ErrorHandler, if set, is invoked with every decode or execution error
	// in addition to the node's own logging.
	ErrorHandler func(error)
}

func (o RecvOptions) withDefaults(cfg NodeConfig) RecvOptions {
	if o.NumWorkers == 0 {
		o.NumWorkers = cfg.DefaultNumWorkers
	}
	if o.ReconnectInterval == 0 {
		o.ReconnectInterval = time.Second
	}
	return o
}

// RecvUntilClose runs the node's main event loop: it receives frames from
// the adapter and dispatches each to a bounded pool of worker goroutines,
// until ctx is canceled or reconnection is exhausted.
func (n *Node) RecvUntilClose(ctx context.Context, opts RecvOptions) error {
	opts = opts.withDefaults(n.cfg)
	sem := make(chan struct{}, opts.NumWorkers)
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		raw, err := n.adapter.Recv(ctx, true, opts.RecvTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			n.logger.Warn("recv failed, attempting to reconnect", "error", err)
			if rerr := n.reconnectWithRetry(ctx, opts); rerr != nil {
				return rerr
			}
			continue
		}
		if raw == nil {
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(frame []byte) {
			defer wg.Done()
			defer func() { <-sem }()
			n.dispatch(frame, opts.ErrorHandler)
		}(raw)
	}
}

func (n *Node) reconnectWithRetry(ctx context.Context, opts RecvOptions) error {
	tries := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := n.adapter.Reconnect(ctx)
		if err == nil {
			n.logger.Warn("reconnected")
			return nil
		}
		tries++
		if opts.ReconnectMaxTries > 0 && tries >= opts.ReconnectMaxTries {
			return fmt.Errorf("%w: giving up after %d reconnect attempts: %v", ErrServerDisconnected, tries, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(opts.ReconnectInterval):
		}
	}
}

func truncate(v any) string {
	s := fmt.Sprintf("%v", v)
	const max = 80
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

var _ Context = (*Node)(nil)
