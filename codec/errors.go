package codec

import "errors"

var (
	// ErrInvalidFormat is returned when raw bytes cannot be decoded into a
	// command envelope, or the envelope is missing its discriminator.
	ErrInvalidFormat = errors.New("codec: invalid format")
	// ErrCommandNotRegistered is returned by Decode when the wire
	// discriminator names a command with no registered factory.
	ErrCommandNotRegistered = errors.New("codec: command not registered")
	// ErrCommandHasRegistered is returned by RegisterCommand on a name
	// collision.
	ErrCommandHasRegistered = errors.New("codec: command already registered")
	// ErrUnsupportedObject is returned when a value cannot be represented on
	// the wire by this codec.
	ErrUnsupportedObject = errors.New("codec: unsupported object")
)
