package curium

// CommandWrapper is the envelope every request/response Send puts on the
// wire. It carries the sender's identity and a correlation id alongside the
// already-encoded inner command, so the receiving node can execute the
// inner command and route its result back without the inner command itself
// needing to know anything about correlation.
type CommandWrapper struct {
	Nid        string `json:"nid" msgpack:"nid"`
	Cid        string `json:"cid" msgpack:"cid"`
	CmdPayload []byte `json:"cmd_payload" msgpack:"cmd_payload"`
}

func (w *CommandWrapper) CommandName() string { return "__cmd_wrapper__" }

// Execute decodes the wrapped command, runs it, and — unless it returned
// NoResponse — routes the result back to the original sender. If the
// sender is this same node (e.g. it addressed "all" including itself), the
// response is delivered in-process instead of round-tripping the broker.
func (w *CommandWrapper) Execute(ctx Context) (any, error) {
	inner, err := ctx.DecodeCommand(w.CmdPayload)
	if err != nil {
		return nil, err
	}
	result, err := inner.Execute(ctx)
	if err != nil {
		return nil, err
	}
	if IsNoResponse(result) {
		return NoResponse, nil
	}
	if w.Nid == ctx.Nid() {
		ctx.AddResponse(w.Cid, result)
		return NoResponse, nil
	}
	reply := &AddResponse{Cid: w.Cid, Response: result}
	if _, err := ctx.SendNoResponse(reply, w.Nid); err != nil {
		return nil, err
	}
	return NoResponse, nil
}
