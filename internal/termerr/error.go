// Package termerr defines the terminal runtime's error taxonomy.
//
// Kinds name failure categories, not wrapped type hierarchies. Callers that
// need to distinguish a kind use errors.As to recover a *TerminalError and
// switch on Kind.
package termerr

import "fmt"

// Kind identifies which category of failure occurred.
type Kind int

const (
	PtyCreationFailed Kind = iota
	PtyIoError
	ScrollbackOpenFailed
	ScrollbackWriteFailed
	PaneNotFound
	IpcInactive
	IpcProtocolError
	IpcMethodNotFound
	IpcInvalidParams
)

// TerminalError is the single error type returned by the terminal runtime.
type TerminalError struct {
	Kind   Kind
	Detail string
}

func (e *TerminalError) Error() string {
	switch e.Kind {
	case PtyCreationFailed:
		return fmt.Sprintf("pty creation failed: %s", e.Detail)
	case PtyIoError:
		return fmt.Sprintf("pty io error: %s", e.Detail)
	case ScrollbackOpenFailed:
		return fmt.Sprintf("scrollback open failed: %s", e.Detail)
	case ScrollbackWriteFailed:
		return fmt.Sprintf("scrollback write failed: %s", e.Detail)
	case PaneNotFound:
		return fmt.Sprintf("pane not found: %s", e.Detail)
	case IpcInactive:
		return fmt.Sprintf("ipc broker inactive: %s", e.Detail)
	case IpcProtocolError:
		return fmt.Sprintf("ipc protocol error: %s", e.Detail)
	case IpcMethodNotFound:
		return fmt.Sprintf("ipc method not found: %s", e.Detail)
	case IpcInvalidParams:
		return fmt.Sprintf("ipc invalid params: %s", e.Detail)
	default:
		return e.Detail
	}
}

// Is allows errors.Is(err, termerr.New(kind, "")) to match on Kind alone
// when Detail is irrelevant to the comparison.
func (e *TerminalError) Is(target error) bool {
	other, ok := target.(*TerminalError)
	if !ok {
		return false
	}
	return other.Kind == e.Kind
}

func New(kind Kind, format string, args ...any) *TerminalError {
	return &TerminalError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

func NewPtyCreationFailed(format string, args ...any) *TerminalError {
	return New(PtyCreationFailed, format, args...)
}

func NewPtyIoError(format string, args ...any) *TerminalError {
	return New(PtyIoError, format, args...)
}

func NewScrollbackOpenFailed(format string, args ...any) *TerminalError {
	return New(ScrollbackOpenFailed, format, args...)
}

func NewScrollbackWriteFailed(format string, args ...any) *TerminalError {
	return New(ScrollbackWriteFailed, format, args...)
}

func NewPaneNotFound(paneID string) *TerminalError {
	return New(PaneNotFound, "%s", paneID)
}

func NewIpcInactive(format string, args ...any) *TerminalError {
	return New(IpcInactive, format, args...)
}

func NewIpcProtocolError(format string, args ...any) *TerminalError {
	return New(IpcProtocolError, format, args...)
}

func NewIpcMethodNotFound(method string) *TerminalError {
	return New(IpcMethodNotFound, "%s", method)
}

func NewIpcInvalidParams(format string, args ...any) *TerminalError {
	return New(IpcInvalidParams, format, args...)
}
