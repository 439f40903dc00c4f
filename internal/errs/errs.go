// Package errs defines the typed error kinds of the core's error-handling
// policy. None of them are fatal at the core level: the analyzer and
// symbolic executor recover from each locally, and Document mutations
// simply report them to the caller.
package errs

import "fmt"

// Kind identifies one of the eleven documented error kinds.
type Kind int

const (
	UnmappedAddress Kind = iota
	CellOverlap
	DecodeFailure
	ZeroLengthInstruction
	NotExecutable
	ImportedBoundary
	NoArchitectureForCell
	DivisionByZero
	ReadOutOfRange
	DuplicateLabel
	InvalidConfiguration
)

func (k Kind) String() string {
	switch k {
	case UnmappedAddress:
		return "unmapped address"
	case CellOverlap:
		return "cell overlap"
	case DecodeFailure:
		return "decode failure"
	case ZeroLengthInstruction:
		return "zero length instruction"
	case NotExecutable:
		return "not executable"
	case ImportedBoundary:
		return "imported boundary"
	case NoArchitectureForCell:
		return "no architecture for cell"
	case DivisionByZero:
		return "division by zero"
	case ReadOutOfRange:
		return "read out of range"
	case DuplicateLabel:
		return "duplicate label"
	case InvalidConfiguration:
		return "invalid configuration"
	default:
		return "unknown error kind"
	}
}

// Error is a typed core error: a Kind plus the address it applies to (if
// any) and a human message.
type Error struct {
	Kind    Kind
	Addr    fmt.Stringer
	Message string
}

func (e *Error) Error() string {
	if e.Addr != nil {
		return fmt.Sprintf("%s at %s: %s", e.Kind, e.Addr, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// New builds a typed Error with no associated address.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// At builds a typed Error tied to a specific address.
func At(kind Kind, address fmt.Stringer, message string) *Error {
	return &Error{Kind: kind, Addr: address, Message: message}
}

// Is reports whether err is a core Error of the given kind, so callers can
// use errors.Is-style checks without importing this package's Kind type
// directly at every call site.
func Is(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}
