package relay

import "io"

// ReadBackendResponse implements spec.md §4.4: read status + headers
// from the backend, swallowing or forwarding any interim 100 responses
// according to the cycle's continue state, until a terminal status
// arrives.
func ReadBackendResponse(c *Cycle) (status int, version string, headers HeaderList, rerr *Error) {
	for {
		status, version, headers, err := c.Backend.Response()
		if err != nil {
			return 0, "", nil, err.(*Error)
		}

		if status != 100 {
			return status, version, headers, nil
		}

		switch c.Continue {
		case ContinuePending:
			// The client sent its body before the backend spoke; the
			// 100 the backend now emits was already implied and must
			// never reach the client.
			continue
		case ContinueForwarded:
			// We already delivered the one interim response this cycle
			// is allowed; a second one is a backend protocol violation.
			return 0, "", nil, errNonTerminalStatusAfterContinue(nil)
		default:
			if c.In.Version() == "HTTP/1.0" {
				continue // RFC 7231: 1.0 clients never see 100 Continue
			}
			if werr := c.In.WriteInterim(version, 100, "Continue"); werr != nil {
				return 0, "", nil, newError(KindClientIO, 0, "write 100 continue to client failed", werr)
			}
			continue
		}
	}
}

// ShouldClose implements spec.md §4.5's should_close law: the response
// carries Connection: close iff the request used Expect: 100-continue
// without a forwarded 100, and the final status is >= 200.
func ShouldClose(c *Cycle, status int) bool {
	return c.RequestExpect100 && c.Continue != ContinueForwarded && status >= 200
}

// knownLengthInlineThreshold is the cutoff from spec.md §4.5 at or
// below which a known-length body is read fully and sent in one reply
// instead of streamed.
const knownLengthInlineThreshold = 1024

// RelayResponse implements spec.md §4.5: classify the body, rewrite the
// response headers, and deliver using the mode the classification
// calls for. The backend is always closed before returning, on every
// path including error paths, satisfying the close-once invariant.
func RelayResponse(c *Cycle, status int, method string, headers HeaderList) *Error {
	defer c.closeBackend()

	bodyType, length := ClassifyBody(status, method, headers)
	outHeaders := rewriteResponseHeaders(headers, ShouldClose(c, status))

	switch bodyType {
	case BodyEmpty:
		if err := c.In.Reply(status, outHeaders, nil); err != nil {
			return newError(KindClientIO, 0, "write empty reply failed", err)
		}
		return nil

	case BodyKnownLength:
		if length <= knownLengthInlineThreshold {
			body, berr := c.Backend.ResponseBody(length)
			if berr != nil {
				return berr.(*Error)
			}
			if err := c.In.Reply(status, outHeaders, body); err != nil {
				return newError(KindClientIO, 0, "write known-length reply failed", err)
			}
			return nil
		}
		var streamErr *Error
		err := c.In.ReplyStream(status, outHeaders, func(w io.Writer) error {
			_, serr := c.Backend.StreamBody(w, length)
			if serr != nil {
				streamErr = serr.(*Error)
				return serr
			}
			return nil
		})
		if streamErr != nil {
			return streamErr
		}
		if err != nil {
			return newError(KindClientIO, 0, "stream known-length reply failed", err)
		}
		return nil

	case BodyStreamToClose:
		var streamErr *Error
		err := c.In.ReplyStream(status, outHeaders, func(w io.Writer) error {
			_, serr := c.Backend.StreamClose(w)
			if serr != nil {
				streamErr = serr.(*Error)
				return serr
			}
			return nil
		})
		if streamErr != nil {
			return streamErr
		}
		if err != nil {
			return newError(KindClientIO, 0, "stream close-delimited reply failed", err)
		}
		return nil

	case BodyChunked:
		outHeaders = outHeaders.Set("Transfer-Encoding", "chunked")
		if err := c.In.ReplyHeadPreamble(status, outHeaders); err != nil {
			return newError(KindClientIO, 0, "write chunked preamble failed", err)
		}
		if _, err := c.Backend.StreamChunkedBody(c.In.Conn()); err != nil {
			return err.(*Error)
		}
		return nil
	}

	return nil
}
