package domain

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes a failure by how the client should react to it.
type ErrorKind string

const (
	// ErrorRead marks a local file or payload decode failure.
	ErrorRead ErrorKind = "read"
	// ErrorDecode marks a media asset that could not be decoded.
	ErrorDecode ErrorKind = "decode"
	// ErrorTransient marks a network or transport failure worth retrying.
	ErrorTransient ErrorKind = "transient"
	// ErrorContentPolicy marks a provider-side safety or content block.
	ErrorContentPolicy ErrorKind = "content_policy"
	// ErrorAuthorization marks missing or invalid provider credentials.
	ErrorAuthorization ErrorKind = "authorization"
	// ErrorNotFound marks an operation against an entity that does not exist.
	ErrorNotFound ErrorKind = "not_found"
	// ErrorValidation marks a submission rejected before any network call.
	ErrorValidation ErrorKind = "validation"
	// ErrorUnknown is the generic fallback for unclassified failures.
	ErrorUnknown ErrorKind = "unknown"
)

// Error is the tagged failure returned by the gateway and the stores. The
// wrapped cause always carries the raw upstream message for diagnosis.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError constructs a tagged error.
func NewError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the kind from err. Untagged errors report ErrorUnknown.
func KindOf(err error) ErrorKind {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Kind
	}
	return ErrorUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
