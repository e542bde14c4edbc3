// Package relay implements the request/response relay engine that sits
// between a parsed inbound connection and a resolved TCP backend: it
// forwards the request, negotiates Expect: 100-continue, reads the
// backend response, and streams it back using the correct framing, or
// promotes the pair to a raw byte pipe on a successful upgrade.
package relay

import "fmt"

// Kind enumerates the error categories a cycle can surface, per the
// propagation policy: the first error aborts the cycle, the backend is
// always closed, and no error is retried automatically.
type Kind int

const (
	// KindClientError means the inbound request was malformed in a way
	// the relay can reject without contacting any backend (400).
	KindClientError Kind = iota
	// KindUpstreamUnreachable means dialing the backend failed.
	KindUpstreamUnreachable
	// KindUpstreamIO means a read or write against the backend failed
	// during any phase of the cycle.
	KindUpstreamIO
	// KindClientIO means a read or write against the client socket
	// failed (polling for or reading the request body, or writing the
	// response).
	KindClientIO
	// KindProtocol means the backend violated HTTP/1.1 framing rules the
	// relay depends on (e.g. a second non-terminal status after the
	// continue was already forwarded, or malformed chunked framing).
	KindProtocol
	// KindTimeout means a deadline internal to the relay (continue
	// negotiation, byte-pipe idle) was exceeded.
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindClientError:
		return "client_error"
	case KindUpstreamUnreachable:
		return "upstream_unreachable"
	case KindUpstreamIO:
		return "upstream_io_error"
	case KindClientIO:
		return "client_io_error"
	case KindProtocol:
		return "protocol_error"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error is the error type returned from every core relay operation.
// It is never panicked; exception-style unwinding from the teacher's
// origin (see design note in SPEC_FULL.md §9) is replaced throughout
// this package by ordinary error returns.
type Error struct {
	Kind   Kind
	Status int // suggested client-visible status, 0 if headers were already written
	Reason string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("relay: %s: %s: %v", e.Kind, e.Reason, e.Cause)
	}
	return fmt.Sprintf("relay: %s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Cause }

func newError(kind Kind, status int, reason string, cause error) *Error {
	return &Error{Kind: kind, Status: status, Reason: reason, Cause: cause}
}

// errNonTerminalStatusAfterContinue is the protocol-error surfaced when
// the backend sends another 100 after the relay already forwarded the
// one interim response it is allowed to deliver.
func errNonTerminalStatusAfterContinue(cause error) *Error {
	return newError(KindProtocol, 0, "non_terminal_status_after_continue", cause)
}
