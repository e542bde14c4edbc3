package relay

import "time"

// ContinueOutcome is the result of NegotiateContinue: either the cycle
// should proceed straight to forwarding the body, or the backend
// short-circuited with a final (non-100) response before any body was
// sent, which the response relay must serve without ever forwarding
// the body.
type ContinueOutcome int

const (
	ContinueProceedToBody ContinueOutcome = iota
	ContinueBackendShortCircuited
)

// EarlyResponse is the final status the backend sent while the
// continue arbiter was still waiting, per spec.md §4.3: "Any non-100
// final response that arrives during waiting must be surfaced to the
// response-relay path without forwarding the body."
type EarlyResponse struct {
	Status  int
	Version string
	Headers HeaderList
}

// NegotiateContinue implements spec.md §4.3. Precondition: the request
// carries Expect: 100-continue, headers have already been written to
// the backend, and the body has not yet been forwarded.
//
// It races two events within cfg.ContinueDeadline, polling the backend
// at cfg.ContinuePollInterval and checking the client with a
// zero-timeout peek each iteration (spec.md's "Polling discipline"):
//
//   - client sends body bytes first: implicit go-ahead. No synthetic 100
//     is sent; Continue is set to ContinuePending so the backend
//     response reader later swallows the eventual 100 itself.
//   - backend sends 100 first: "HTTP/<ver> 100 Continue\r\n\r\n" is
//     written to the client once; Continue is set to ContinueForwarded.
//   - backend sends a non-100 final response first: surfaced as
//     ContinueBackendShortCircuited with the response attached, body
//     must not be forwarded.
//   - neither happens before the deadline: a KindTimeout error.
func NegotiateContinue(c *Cycle) (ContinueOutcome, *EarlyResponse, *Error) {
	deadline := time.Now().Add(c.cfg.ContinueDeadline)

	for {
		if time.Now().After(deadline) {
			return 0, nil, newError(KindTimeout, 0, "continue negotiation deadline exceeded", nil)
		}

		buffered, err := c.In.BufferedWait(0)
		if err != nil {
			return 0, nil, newError(KindClientIO, 0, "poll client for body bytes failed", err)
		}
		if buffered {
			c.Continue = ContinuePending
			return ContinueProceedToBody, nil, nil
		}

		poll := c.cfg.ContinuePollInterval
		if remaining := time.Until(deadline); remaining < poll {
			poll = remaining
		}
		if poll <= 0 {
			continue
		}
		if err := c.Backend.SetReadDeadline(time.Now().Add(poll)); err != nil {
			return 0, nil, newError(KindUpstreamIO, 0, "set backend read deadline failed", err)
		}

		status, version, headers, rerr := c.Backend.Response()
		// Clear the deadline regardless of outcome; later reads manage
		// their own deadlines.
		c.Backend.SetReadDeadline(time.Time{})
		if rerr != nil {
			if isTimeoutError(rerr) {
				continue // no backend data within this poll slice, try again
			}
			return 0, nil, rerr.(*Error)
		}

		if status == 100 {
			if werr := c.In.WriteInterim(version, 100, "Continue"); werr != nil {
				return 0, nil, newError(KindClientIO, 0, "write 100 continue to client failed", werr)
			}
			c.Continue = ContinueForwarded
			return ContinueProceedToBody, nil, nil
		}

		return ContinueBackendShortCircuited, &EarlyResponse{Status: status, Version: version, Headers: headers}, nil
	}
}

func isTimeoutError(err error) bool {
	type timeouter interface{ Timeout() bool }
	if t, ok := err.(timeouter); ok {
		return t.Timeout()
	}
	if re, ok := err.(*Error); ok {
		if t, ok := re.Cause.(timeouter); ok {
			return t.Timeout()
		}
	}
	return false
}
