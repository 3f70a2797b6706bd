package curium

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Wrap these with fmt.Errorf("...: %w", Err...) when
// more context is available; callers should match with errors.Is.
//
// Node itself returns ErrNotConnected, ErrServerDisconnected and
// ErrUnsupportedObject. Errors raised by the codec and broker packages pass
// through unchanged and match those packages' own sentinels (for example
// codec.ErrCommandHasRegistered or broker.ErrInvalidChannel), not the
// values below.
var (
	ErrConnectionFailed     = errors.New("curium: connection failed")
	ErrNotConnected         = errors.New("curium: not connected")
	ErrServerDisconnected   = errors.New("curium: server disconnected")
	ErrInvalidChannel       = errors.New("curium: invalid channel")
	ErrUnsupportedObject    = errors.New("curium: unsupported object")
	ErrInvalidFormat        = errors.New("curium: invalid format")
	ErrCommandNotRegistered = errors.New("curium: command not registered")
	ErrCommandHasRegistered = errors.New("curium: command already registered")
)

// CommandExecutionError wraps an error raised while executing a Command,
// carrying the command name that caused it.
type CommandExecutionError struct {
	CmdName string
	Cause   error
}

func (e *CommandExecutionError) Error() string {
	return fmt.Sprintf("curium: command %q execution failed: %v", e.CmdName, e.Cause)
}

func (e *CommandExecutionError) Unwrap() error {
	return e.Cause
}

func newCommandExecutionError(name string, cause error) *CommandExecutionError {
	return &CommandExecutionError{CmdName: name, Cause: cause}
}
