package tracer

import "fmt"

// Code enumerates the recorder's error conditions. Every fallible call
// returns an explicit *Error; the Trace additionally keeps a LastError shim
// for handle-based callers that can't carry Go errors across the boundary.
type Code int

const (
	OK Code = iota
	ErrNullHandle
	ErrNullPointer
	ErrInvalidName
	ErrMemory
	ErrNotInitialized
	ErrAlreadyEnded
	ErrNotEnded
	ErrBadAttrType
)

// CodeString returns the human-readable description for a code.
func CodeString(c Code) string {
	switch c {
	case OK:
		return "Success"
	case ErrNullHandle:
		return "NULL handle"
	case ErrNullPointer:
		return "NULL pointer"
	case ErrInvalidName:
		return "Invalid name"
	case ErrMemory:
		return "Memory allocation failed"
	case ErrNotInitialized:
		return "Not initialized"
	case ErrAlreadyEnded:
		return "Already ended"
	case ErrNotEnded:
		return "Not ended"
	case ErrBadAttrType:
		return "Unsupported attribute type"
	default:
		return "Unknown error"
	}
}

func (c Code) String() string { return CodeString(c) }

// Error carries a Code plus operation context.
type Error struct {
	Code Code
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return CodeString(e.Code)
	}
	return fmt.Sprintf("%s: %s", CodeString(e.Code), e.Msg)
}

func newErr(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}
