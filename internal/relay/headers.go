package relay

import "strings"

// Header is a single (name, value) pair as received off the wire. Names
// are compared case-insensitively but stored as received so that order
// and casing survive a pass-through forward.
type Header struct {
	Name  string
	Value string
}

// HeaderList is an ordered sequence of header fields. Order is
// preserved on forwarding except where the rewrite pipeline below
// drops or appends entries.
type HeaderList []Header

// Get returns the first value for name, matched case-insensitively.
func (h HeaderList) Get(name string) (string, bool) {
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			return f.Value, true
		}
	}
	return "", false
}

// Has reports whether name is present, case-insensitively.
func (h HeaderList) Has(name string) bool {
	_, ok := h.Get(name)
	return ok
}

// Del returns a copy of h with every field named name removed.
func (h HeaderList) Del(name string) HeaderList {
	out := make(HeaderList, 0, len(h))
	for _, f := range h {
		if !strings.EqualFold(f.Name, name) {
			out = append(out, f)
		}
	}
	return out
}

// Set replaces every field named name with a single field carrying
// value, appending it at the position of the first removed field (or
// at the end if name was absent).
func (h HeaderList) Set(name, value string) HeaderList {
	out := make(HeaderList, 0, len(h)+1)
	set := false
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			if !set {
				out = append(out, Header{Name: name, Value: value})
				set = true
			}
			continue
		}
		out = append(out, f)
	}
	if !set {
		out = append(out, Header{Name: name, Value: value})
	}
	return out
}

// tokens splits a comma-separated header value into lower-cased,
// trimmed tokens, as used for Connection and Transfer-Encoding.
func tokens(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func hasToken(value, token string) bool {
	for _, t := range tokens(value) {
		if t == token {
			return true
		}
	}
	return false
}

// rewriteRequestHeaders applies the outbound request rewrite pipeline
// from spec.md §4.2, in order: drop every Connection field (keep-alive
// included), drop Host
// (the backend client re-supplies it from its dial target), drop
// Content-Length only when the framer will re-emit it, then ensure
// Connection: close is present. The pipeline is pure and idempotent:
// applying it twice yields the same list, since every step either
// removes a field or sets a single canonical value.
//
// upgrade carries an upgrade candidate's Connection/Upgrade pair
// through untouched: those two headers are the handshake the backend
// inspects to decide whether to answer 101, so forcing Connection:
// close here would strip the very signal spec.md §4.6 depends on the
// backend seeing. Grounded on the teacher's wsHopHeaders split in
// reverseproxy.go, which excludes Connection/Upgrade from the ordinary
// hop-by-hop header list for exactly this reason.
func rewriteRequestHeaders(in HeaderList, dropContentLength, upgrade bool) HeaderList {
	out := in
	if !upgrade {
		out = out.Del("Connection")
	}
	out = out.Del("Host")
	if dropContentLength {
		out = out.Del("Content-Length")
	}
	if !upgrade {
		out = out.Set("Connection", "close")
	}
	return out
}

// rewriteResponseHeaders applies the response rewrite from spec.md §4.5:
// drop every Connection field the backend sent (keep-alive included),
// and append Connection: close when shouldClose holds.
func rewriteResponseHeaders(in HeaderList, shouldClose bool) HeaderList {
	out := in.Del("Connection")
	if shouldClose {
		out = out.Set("Connection", "close")
	}
	return out
}
