package relay

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// serializeRequestLine writes "METHOD path HTTP/1.1\r\n" (the backend
// side always speaks HTTP/1.1 regardless of the inbound version, since
// the backend client never multiplexes or pipelines).
func serializeRequestLine(method, path string) []byte {
	return []byte(fmt.Sprintf("%s %s HTTP/1.1\r\n", method, path))
}

func serializeHeaders(h HeaderList) []byte {
	var buf bytes.Buffer
	for _, f := range h {
		buf.WriteString(f.Name)
		buf.WriteString(": ")
		buf.WriteString(f.Value)
		buf.WriteString("\r\n")
	}
	buf.WriteString("\r\n")
	return buf.Bytes()
}

// SendRequest implements spec.md §4.2's send_request: for a fully known
// body, serialize the request line, rewritten headers, and body as one
// write to the backend.
func SendRequest(c *Cycle, method, path string, headers HeaderList, body []byte) error {
	var buf bytes.Buffer
	buf.Write(serializeRequestLine(method, path))
	buf.Write(serializeHeaders(headers))
	buf.Write(body)
	return c.Backend.RawRequest(buf.Bytes())
}

// SendHeaders implements spec.md §4.2's send_headers: for a streamed
// body, write only the request line and rewritten headers. It does not
// run the continue arbiter: RunCycle calls NegotiateContinue after it
// when the request carries Expect: 100-continue, and then SendBody.
func SendHeaders(c *Cycle, method, path string, headers HeaderList) error {
	var buf bytes.Buffer
	buf.Write(serializeRequestLine(method, path))
	buf.Write(serializeHeaders(headers))
	return c.Backend.RawRequest(buf.Bytes())
}

// SendBody implements spec.md §4.2's send_body: pulls body bytes from
// the inbound connection in one of two decoding modes and forwards them
// to the backend in small bursts, without ever buffering the whole
// body in memory.
//
// raw (known length): forward verbatim until exactly desc.Length bytes
// have been forwarded; any bytes already buffered past that boundary
// stay in the inbound bufio.Reader for the next pipelined message.
//
// chunked: forward the original chunk framing bytes verbatim, using
// the same cursor the response relay uses for the backend-to-client
// direction (relayChunkedBody), so request and response chunked
// forwarding share one implementation.
func SendBody(c *Cycle, desc BodyDescriptor) (int64, error) {
	switch desc.Type {
	case BodyEmpty:
		return 0, nil
	case BodyKnownLength:
		n, err := io.CopyN(c.Backend, c.In.Reader(), desc.Length)
		if err != nil {
			return n, wrapBodyForwardError(err, "read inbound body failed")
		}
		return n, nil
	case BodyChunked:
		n, err := relayChunkedBody(c.Backend, c.In.Reader())
		if err != nil {
			return n, wrapBodyForwardError(err, "read inbound chunked body failed")
		}
		return n, nil
	default: // BodyStreamToClose: not a meaningful inbound framing; nothing to forward
		return 0, nil
	}
}

// wrapBodyForwardError classifies an error from the read-from-client,
// write-to-backend copy loop above. c.Backend.Write already returns a
// *Error with KindUpstreamIO when the backend write fails, so that
// error is propagated unchanged instead of being re-labeled; anything
// else came from the inbound reader and is a genuine client-io error.
func wrapBodyForwardError(err error, reason string) error {
	var relayErr *Error
	if errors.As(err, &relayErr) {
		return relayErr
	}
	return newError(KindClientIO, 0, reason, err)
}
