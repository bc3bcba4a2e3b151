// Package warts decodes scamper warts capture files.
package warts

import (
	"errors"
	"fmt"
)

// Sentinel errors. Every failure returned by the decoder wraps one of these.
var (
	// Stream errors
	ErrTruncatedInput = errors.New("warts: truncated input")
	ErrBadMagic       = errors.New("warts: bad object magic")
	ErrObjectTooLarge = errors.New("warts: object exceeds size limit")

	// Flag set errors
	ErrUnknownFlag          = errors.New("warts: unknown flag")
	ErrSchemaLengthMismatch = errors.New("warts: parameter length mismatch")

	// Address table errors
	ErrUnresolvedReference = errors.New("warts: unresolved address reference")
	ErrAddressIDMismatch   = errors.New("warts: address id mismatch")
	ErrUnsupportedAddress  = errors.New("warts: unsupported address")

	// Record errors
	ErrUnsupportedExtension = errors.New("warts: unsupported icmp extension")
	ErrMalformedTraceEnd    = errors.New("warts: malformed trace end")
)

// DecodeError locates a failure within the capture.
type DecodeError struct {
	Offset int64      // offset of the object header
	Type   ObjectType // object type from the header, zero if the header itself failed
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Type == 0 {
		return fmt.Sprintf("offset %d: %v", e.Offset, e.Err)
	}
	return fmt.Sprintf("offset %d: %s object: %v", e.Offset, e.Type, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// errStreamTruncated marks truncation of the outer stream, as opposed to a field overrunning
// its object body.
var errStreamTruncated = fmt.Errorf("%w: stream ended inside object", ErrTruncatedInput)
