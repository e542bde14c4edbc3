package relay

import (
	"context"
	"strconv"
)

// Disposition is the outcome RunCycle returns to its caller: success,
// a client-visible error, or an upstream error, per spec.md §1.
type Disposition int

const (
	DispositionDone Disposition = iota
	DispositionClientError
	DispositionUpstreamError
)

// RunCycle wires the components of spec.md §2's data flow together:
// upgrade middleware -> request forwarder (with the continue arbiter
// interleaved) -> backend response reader -> response relay or byte
// pipe. backendAddr is the already-resolved backend endpoint; picking
// it is explicitly out of scope for this package (spec.md §1).
func RunCycle(ctx context.Context, in Inbound, backendAddr string, cfg Config) (Disposition, *Error) {
	c := NewCycle(in, cfg)

	upgraded, uerr := CheckUpgrade(in.Headers())
	if uerr != nil {
		return DispositionClientError, uerr
	}
	c.Upgraded = upgraded

	backend, cerr := Connect(ctx, backendAddr, c.cfg.BackendConnectTimeout)
	if cerr != nil {
		return DispositionUpstreamError, cerr.(*Error)
	}
	c.Backend = backend

	method := in.Method()
	path := in.Path()
	desc := inboundBodyDescriptor(in.Headers())

	reqHeaders := rewriteRequestHeaders(in.Headers(), desc.Type != BodyChunked, c.Upgraded)
	if desc.Type == BodyKnownLength {
		reqHeaders = reqHeaders.Set("Content-Length", strconv.FormatInt(desc.Length, 10))
	} else if desc.Type == BodyChunked {
		reqHeaders = reqHeaders.Set("Transfer-Encoding", "chunked")
	}

	var early *EarlyResponse

	if desc.Type == BodyEmpty {
		if err := SendRequest(c, method, path, reqHeaders, nil); err != nil {
			c.closeBackend()
			return DispositionUpstreamError, err.(*Error)
		}
	} else {
		if err := SendHeaders(c, method, path, reqHeaders); err != nil {
			c.closeBackend()
			return DispositionUpstreamError, err.(*Error)
		}

		if c.RequestExpect100 {
			outcome, earlyResp, nerr := NegotiateContinue(c)
			if nerr != nil {
				c.closeBackend()
				return DispositionUpstreamError, nerr
			}
			if outcome == ContinueBackendShortCircuited {
				early = earlyResp
			}
		}

		if early == nil {
			if _, err := SendBody(c, desc); err != nil {
				c.closeBackend()
				return DispositionUpstreamError, err.(*Error)
			}
		}
	}

	var status int
	var headers HeaderList
	if early != nil {
		status, headers = early.Status, early.Headers
	} else {
		s, _, h, rerr := ReadBackendResponse(c)
		if rerr != nil {
			c.closeBackend()
			return DispositionUpstreamError, rerr
		}
		status, headers = s, h
	}

	if c.Upgraded && status == 101 {
		// Unlike every other response path, a 101's Connection/Upgrade
		// headers are the protocol handshake itself, not hop-by-hop
		// noise to strip: they are forwarded as the backend sent them.
		if err := RunBytePipe(c, headers); err != nil {
			return DispositionUpstreamError, err
		}
		return DispositionDone, nil
	}

	if err := RelayResponse(c, status, method, headers); err != nil {
		return DispositionUpstreamError, err
	}
	return DispositionDone, nil
}

// inboundBodyDescriptor derives the inbound request body's framing from
// its headers, mirroring spec.md §4.5's response-side classification
// but for the request direction: chunked takes priority over a
// Content-Length, and an absent/zero length means no body.
func inboundBodyDescriptor(headers HeaderList) BodyDescriptor {
	if te, ok := headers.Get("Transfer-Encoding"); ok && hasToken(te, "chunked") {
		return BodyDescriptor{Type: BodyChunked}
	}
	if cl, ok := headers.Get("Content-Length"); ok {
		if n, err := strconv.ParseInt(cl, 10, 64); err == nil && n > 0 {
			return BodyDescriptor{Type: BodyKnownLength, Length: n}
		}
	}
	return BodyDescriptor{Type: BodyEmpty}
}
