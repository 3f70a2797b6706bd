package codec_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/susautw/curium-go/codec"
)

type pingCmd struct {
	Message string `json:"message" msgpack:"message"`
}

func (p *pingCmd) CommandName() string { return "ping" }

func newCodecs(t *testing.T) []codec.Codec {
	t.Helper()
	j := codec.NewJSONCodec()
	m := codec.NewMsgpackCodec()
	require.NoError(t, j.RegisterCommand("ping", func() codec.Command { return &pingCmd{} }))
	require.NoError(t, m.RegisterCommand("ping", func() codec.Command { return &pingCmd{} }))
	return []codec.Codec{j, m}
}

func TestRoundTrip(t *testing.T) {
	for _, c := range newCodecs(t) {
		cmd := &pingCmd{Message: "hello"}
		raw, err := c.Encode(cmd)
		require.NoError(t, err)

		decoded, err := c.Decode(raw)
		require.NoError(t, err)

		got, ok := decoded.(*pingCmd)
		require.True(t, ok)
		assert.Equal(t, "hello", got.Message)
		assert.Equal(t, "ping", got.CommandName())
	}
}

func TestDecode_MissingDiscriminator(t *testing.T) {
	j := codec.NewJSONCodec()
	_, err := j.Decode([]byte(`{"message":"hi"}`))
	assert.ErrorIs(t, err, codec.ErrInvalidFormat)
}

func TestDecode_UnregisteredCommand(t *testing.T) {
	j := codec.NewJSONCodec()
	_, err := j.Decode([]byte(`{"__cmd_name__":"nope"}`))
	assert.ErrorIs(t, err, codec.ErrCommandNotRegistered)
}

func TestDecode_InvalidBytes(t *testing.T) {
	j := codec.NewJSONCodec()
	_, err := j.Decode([]byte(`not json`))
	assert.ErrorIs(t, err, codec.ErrInvalidFormat)
}

type otherCmd struct {
	Value int `json:"value" msgpack:"value"`
}

func (o *otherCmd) CommandName() string { return "ping" }

func TestRegisterCommand_SameTypeIsIdempotent(t *testing.T) {
	j := codec.NewJSONCodec()
	require.NoError(t, j.RegisterCommand("ping", func() codec.Command { return &pingCmd{} }))
	assert.NoError(t, j.RegisterCommand("ping", func() codec.Command { return &pingCmd{} }))
}

func TestRegisterCommand_Collision(t *testing.T) {
	j := codec.NewJSONCodec()
	require.NoError(t, j.RegisterCommand("ping", func() codec.Command { return &pingCmd{} }))
	err := j.RegisterCommand("ping", func() codec.Command { return &otherCmd{} })
	require.Error(t, err)
	assert.True(t, errors.Is(err, codec.ErrCommandHasRegistered))
}
