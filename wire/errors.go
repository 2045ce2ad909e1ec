package wire

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyLine indicates a line without any segment.
	ErrEmptyLine = errors.New("wire: empty line")

	// ErrMalformedSegment indicates a segment that does not match name ":" tag "(" body ")".
	ErrMalformedSegment = errors.New("wire: malformed segment")

	// ErrUnknownTag indicates a type tag other than "s", "n" or "l".
	ErrUnknownTag = errors.New("wire: unknown type tag")

	// ErrInvalidNumber indicates a body of an "n" or "l" segment that is not a number.
	ErrInvalidNumber = errors.New("wire: invalid number")

	// ErrUnencodable indicates a name or value that cannot be represented on the wire.
	ErrUnencodable = errors.New("wire: value cannot be encoded")
)

// ProtocolError describes why an inbound line was rejected.
//
// It wraps one of ErrEmptyLine, ErrMalformedSegment, ErrUnknownTag or ErrInvalidNumber,
// so callers can match it with errors.Is, or extract the offending line with errors.As.
type ProtocolError struct {
	// Line is the full rejected line.
	Line string
	// Segment is the offending segment, empty when the whole line is at fault.
	Segment string
	// Err is the underlying sentinel error, possibly wrapping a parse error.
	Err error
}

func newProtocolError(line, segment string, err error) *ProtocolError {
	return &ProtocolError{Line: line, Segment: segment, Err: err}
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	if e.Segment == "" {
		return fmt.Sprintf("%v: line %q", e.Err, e.Line)
	}

	return fmt.Sprintf("%v: segment %q in line %q", e.Err, e.Segment, e.Line)
}

// Unwrap returns the underlying error.
func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// IsProtocolError reports whether err is, or wraps, a *ProtocolError.
func IsProtocolError(err error) bool {
	var perr *ProtocolError
	return errors.As(err, &perr)
}
