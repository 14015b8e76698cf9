package connector

import (
	"errors"
	"fmt"
)

// ErrUnknownType is returned by the registry for unregistered connector types.
var ErrUnknownType = errors.New("unknown connector type")

// Kind classifies connector failures.
type Kind int

const (
	// KindConfiguration covers bad or missing parameters. Fatal to construction.
	KindConfiguration Kind = iota + 1

	// KindCredential covers an absent or rejected secret. Fatal to a
	// connect attempt and never retried automatically.
	KindCredential

	// KindTransport covers socket and TLS failures.
	KindTransport

	// KindProtocol covers a server rejecting a command outside the
	// expected fallback paths.
	KindProtocol

	// KindParse covers a single item that could not be decoded.
	KindParse
)

// String returns the taxonomy name for k.
func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration error"
	case KindCredential:
		return "credential error"
	case KindTransport:
		return "transport error"
	case KindProtocol:
		return "protocol error"
	case KindParse:
		return "parse error"
	default:
		return "error"
	}
}

// Error is a classified connector failure.
type Error struct {
	Kind        Kind
	ConnectorID string
	Op          string
	Err         error
}

// NewError builds a classified error for the given connector and operation.
func NewError(kind Kind, connectorID, op string, err error) *Error {
	return &Error{Kind: kind, ConnectorID: connectorID, Op: op, Err: err}
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.ConnectorID != "" {
		msg += fmt.Sprintf(" (%s)", e.ConnectorID)
	}
	if e.Op != "" {
		msg += ": " + e.Op
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var cErr *Error
	if errors.As(err, &cErr) {
		return cErr.Kind
	}
	return 0
}

// IsConfigurationError reports whether err (or any error in its chain) is a
// configuration error.
func IsConfigurationError(err error) bool {
	return KindOf(err) == KindConfiguration
}

// IsCredentialError reports whether err is a credential error.
func IsCredentialError(err error) bool {
	return KindOf(err) == KindCredential
}

// IsTransportError reports whether err is a transport error.
func IsTransportError(err error) bool {
	return KindOf(err) == KindTransport
}

// IsProtocolError reports whether err is a protocol error.
func IsProtocolError(err error) bool {
	return KindOf(err) == KindProtocol
}

// IsParseError reports whether err is a parse error.
func IsParseError(err error) bool {
	return KindOf(err) == KindParse
}
