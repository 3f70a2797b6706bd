package codec

import (
	"encoding/json"
	"fmt"
)

// JSONCodec encodes commands as JSON objects carrying a "__cmd_name__"
// discriminator alongside the command's own exported fields.
type JSONCodec struct {
	*registry
}

// NewJSONCodec returns a ready-to-use JSONCodec with an empty registry.
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{registry: newRegistry()}
}

func (c *JSONCodec) RegisterCommand(name string, factory func() Command) error {
	return c.register(name, factory)
}

func (c *JSONCodec) Encode(cmd Command) ([]byte, error) {
	body, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedObject, err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("%w: command did not marshal to a JSON object: %v", ErrUnsupportedObject, err)
	}
	nameJSON, err := json.Marshal(cmd.CommandName())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedObject, err)
	}
	fields[cmdNameField] = nameJSON
	out, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedObject, err)
	}
	return out, nil
}

func (c *JSONCodec) Decode(raw []byte) (Command, error) {
	var envelope struct {
		CmdName *string `json:"__cmd_name__"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if envelope.CmdName == nil {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidFormat, cmdNameField)
	}
	factory, ok := c.factoryFor(*envelope.CmdName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrCommandNotRegistered, *envelope.CmdName)
	}
	cmd := factory()
	if err := json.Unmarshal(raw, cmd); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	return cmd, nil
}
