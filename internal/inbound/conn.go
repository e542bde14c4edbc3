// Package inbound adapts a raw client connection into the
// relay.Inbound interface the core relay package consumes. It is
// grounded on the teacher's stream_conn.go (router/proxy/stream_conn.go),
// which pairs a *bufio.Reader with a net.Conn so buffered-but-unread
// bytes (the "residual buffer" of spec.md §9) travel with the
// connection instead of being silently dropped when ownership moves
// from the front-end parser to the relay, and on to the byte pipe.
package inbound

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/relaycore/relayproxy/internal/relay"
)

// Conn is a relay.Inbound backed directly by a net.Conn, used both by
// the demo binary (after accepting a TCP connection and parsing the
// request line/headers ahead of the relay core, which is explicitly
// out of scope per spec.md §1) and by tests, which can dial a
// net.Pipe or loopback listener and hand the server side to the relay
// unmodified.
type Conn struct {
	conn    net.Conn
	r       *bufio.Reader
	method  string
	path    string
	url     string
	version string
	headers relay.HeaderList
}

// New wraps conn (whose Reader must be positioned exactly at the start
// of the body, or at the next pipelined message if there is no body)
// as a relay.Inbound.
func New(conn net.Conn, r *bufio.Reader, method, path, url, version string, headers relay.HeaderList) *Conn {
	if r == nil {
		r = bufio.NewReaderSize(conn, 4096)
	}
	return &Conn{conn: conn, r: r, method: method, path: path, url: url, version: version, headers: headers}
}

func (c *Conn) Method() string            { return c.method }
func (c *Conn) Path() string              { return c.path }
func (c *Conn) URL() string               { return c.url }
func (c *Conn) Version() string           { return c.version }
func (c *Conn) Headers() relay.HeaderList { return c.headers }
func (c *Conn) Conn() net.Conn            { return c.conn }
func (c *Conn) Reader() *bufio.Reader     { return c.r }

// BufferedWait implements the continue arbiter's client-side poll. With
// a zero timeout the read deadline is already past when Peek runs, so
// the read fails with a timeout without reading the socket: only bytes
// already held in c.r count, and bytes still in the kernel's receive
// buffer are not seen. A positive timeout blocks, via a read deadline,
// waiting for at least one more byte to arrive.
func (c *Conn) BufferedWait(timeout time.Duration) (bool, error) {
	if c.r.Buffered() > 0 {
		return true, nil
	}
	deadline := time.Now()
	if timeout > 0 {
		deadline = deadline.Add(timeout)
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return false, err
	}
	defer c.conn.SetReadDeadline(time.Time{})

	_, err := c.r.Peek(1)
	if err == nil {
		return true, nil
	}
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return false, nil
	}
	return false, err
}

func (c *Conn) WriteInterim(version string, status int, reason string) error {
	_, err := fmt.Fprintf(c.conn, "%s %d %s\r\n\r\n", version, status, reason)
	return err
}

func (c *Conn) Reply(status int, headers relay.HeaderList, body []byte) error {
	if err := c.writeHead(status, headers); err != nil {
		return err
	}
	if len(body) > 0 {
		if _, err := c.conn.Write(body); err != nil {
			return err
		}
	}
	return nil
}

func (c *Conn) ReplyHeadPreamble(status int, headers relay.HeaderList) error {
	return c.writeHead(status, headers)
}

func (c *Conn) ReplyStream(status int, headers relay.HeaderList, produce func(io.Writer) error) error {
	if err := c.writeHead(status, headers); err != nil {
		return err
	}
	return produce(c.conn)
}

func (c *Conn) writeHead(status int, headers relay.HeaderList) error {
	reason := statusText(status)
	if _, err := fmt.Fprintf(c.conn, "HTTP/1.1 %d %s\r\n", status, reason); err != nil {
		return err
	}
	for _, h := range headers {
		if _, err := fmt.Fprintf(c.conn, "%s: %s\r\n", h.Name, h.Value); err != nil {
			return err
		}
	}
	_, err := c.conn.Write([]byte("\r\n"))
	return err
}

var statusTexts = map[int]string{
	100: "Continue",
	101: "Switching Protocols",
	200: "OK",
	204: "No Content",
	304: "Not Modified",
	400: "Bad Request",
	404: "Not Found",
	500: "Internal Server Error",
	502: "Bad Gateway",
	504: "Gateway Timeout",
}

func statusText(status int) string {
	if t, ok := statusTexts[status]; ok {
		return t
	}
	return "Status"
}
