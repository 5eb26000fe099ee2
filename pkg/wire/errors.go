package wire

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedLength is returned for a length prefix above the maximum payload.
	ErrMalformedLength = errors.New("malformed length prefix")

	// ErrPayloadMismatch is returned when the stream ends before the announced payload.
	ErrPayloadMismatch = errors.New("payload size mismatch")

	// ErrTruncatedHeader is returned when the stream ends inside a message header.
	ErrTruncatedHeader = errors.New("truncated message header")

	// ErrSequence is returned for a sequence number that does not increase.
	ErrSequence = errors.New("sequence number not increasing")

	ErrUnknownStatus = errors.New("unknown decision status")
	ErrUnknownClass  = errors.New("unknown steering class")
)

// ProtocolError is a violation of the framing rules. The session that
// produced it must be torn down.
type ProtocolError struct {
	Op  string
	Seq uint32
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: %s (seq %d): %v", e.Op, e.Seq, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// IsProtocolError reports whether err is, or wraps, a ProtocolError.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}
