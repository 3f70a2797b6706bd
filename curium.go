// Package curium implements a distributed command bus: nodes exchange typed
// commands over a pluggable pub/sub broker, optionally getting responses back
// through a response handler.
package curium

import "github.com/susautw/curium-go/codec"

// Command is anything a Node can send and execute. CommandName must be
// stable across processes since it is the wire discriminator the Codec uses
// to reconstruct the concrete type on the receiving side.
type Command interface {
	codec.Command
	// Execute runs the command against the receiving node's Context and
	// returns the value to be handed back to the sender's response handler,
	// or NoResponse if nothing should be sent back.
	Execute(ctx Context) (any, error)
}

// Context is the capability set a Command's Execute method is given. *Node
// implements Context; tests may supply a smaller fake.
type Context interface {
	// Nid returns the executing node's claimed identity.
	Nid() string
	// GetCmdContext returns the context value registered alongside the
	// command named name, if any.
	GetCmdContext(name string) (any, bool)
	// AddResponse delivers response to the local handler registered under
	// cid, if one is still present.
	AddResponse(cid string, response any)
	// SendNoResponse sends cmd to destinations without creating a response
	// handler, returning the broker's receiver count.
	SendNoResponse(cmd Command, destinations ...string) (int, error)
	// DecodeCommand reconstructs a Command from bytes previously produced by
	// this node's Codec. CommandWrapper uses this to unwrap its nested
	// payload without needing direct Codec access.
	DecodeCommand(raw []byte) (Command, error)
	// NumResponseHandlers reports how many response handlers are currently
	// tracked, for GetNodeInfos.
	NumResponseHandlers() int
}

type noResponseType struct{}

// NoResponse is returned by Command.Execute to indicate that nothing should
// be sent back to the caller. Compare with ==.
var NoResponse any = noResponseType{}

// IsNoResponse reports whether v is the NoResponse sentinel.
func IsNoResponse(v any) bool {
	_, ok := v.(noResponseType)
	return ok
}
