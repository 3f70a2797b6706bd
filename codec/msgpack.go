package codec

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// MsgpackCodec is a second Codec implementation over the same registry
// contract, proving the wire format is pluggable rather than baked into the
// command model.
type MsgpackCodec struct {
	*registry
}

// NewMsgpackCodec returns a ready-to-use MsgpackCodec with an empty registry.
func NewMsgpackCodec() *MsgpackCodec {
	return &MsgpackCodec{registry: newRegistry()}
}

func (c *MsgpackCodec) RegisterCommand(name string, factory func() Command) error {
	return c.register(name, factory)
}

func (c *MsgpackCodec) Encode(cmd Command) ([]byte, error) {
	body, err := msgpack.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedObject, err)
	}
	var fields map[string]any
	if err := msgpack.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("%w: command did not encode to a map: %v", ErrUnsupportedObject, err)
	}
	fields[cmdNameField] = cmd.CommandName()
	out, err := msgpack.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedObject, err)
	}
	return out, nil
}

func (c *MsgpackCodec) Decode(raw []byte) (Command, error) {
	var envelope map[string]any
	if err := msgpack.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	nameAny, ok := envelope[cmdNameField]
	if !ok {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidFormat, cmdNameField)
	}
	name, ok := nameAny.(string)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a string", ErrInvalidFormat, cmdNameField)
	}
	factory, ok := c.factoryFor(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrCommandNotRegistered, name)
	}
	cmd := factory()
	if err := msgpack.Unmarshal(raw, cmd); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	return cmd, nil
}
