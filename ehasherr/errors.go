// Package ehasherr defines the error-kind taxonomy shared by the ehash
// extension packages.
package ehasherr

import "errors"

// Kind classifies a failure so callers can branch on policy (drop frame,
// retry, surface to caller, ...) without string-matching error text.
type Kind int

const (
	KindUnknown Kind = iota
	KindInsufficientData
	KindInvalidFormat
	KindInvalidLength
	KindExtensionNotNegotiated
	KindChannelClosed
	KindTimeout
	KindConnectionLost
	KindPendingStale
	KindMintQuoteError
)

func (k Kind) String() string {
	switch k {
	case KindInsufficientData:
		return "insufficient_data"
	case KindInvalidFormat:
		return "invalid_format"
	case KindInvalidLength:
		return "invalid_length"
	case KindExtensionNotNegotiated:
		return "extension_not_negotiated"
	case KindChannelClosed:
		return "channel_closed"
	case KindTimeout:
		return "timeout"
	case KindConnectionLost:
		return "connection_lost"
	case KindPendingStale:
		return "pending_stale"
	case KindMintQuoteError:
		return "mint_quote_error"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with the Kind that drives caller policy.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error from a message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Err: errors.New(msg)}
}

// Wrap attaches a Kind to an existing error.
func Wrap(kind Kind, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// Is reports whether err (or something it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
