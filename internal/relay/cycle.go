package relay

import (
	"bufio"
	"io"
	"net"
	"time"
)

// ContinueState tracks the Expect: 100-continue disposition of a
// cycle, per spec.md §3: none | pending | forwarded. Modeled as a
// first-class field per the design note in spec.md §9 rather than an
// opaque key-value metadata map.
type ContinueState int

const (
	ContinueNone ContinueState = iota
	ContinuePending
	ContinueForwarded
)

// Inbound is the front-end collaborator spec.md §6 describes: a parsed
// inbound request with operations to pull body bytes, buffer a small
// amount with a timeout, send a reply, send a chunked-reply preamble,
// install a response-body-producing callback, and obtain the raw
// socket plus any unread (residual) buffer. The relay core only ever
// talks to this interface, never to net/http; internal/inbound.Conn,
// built on a net.Conn and a bufio.Reader, implements it for both the
// demo binary and the tests.
type Inbound interface {
	Method() string
	Path() string
	URL() string
	Version() string // "HTTP/1.0" or "HTTP/1.1"
	Headers() HeaderList

	// Conn and Reader expose the raw socket + residual buffer triple
	// spec.md §9 calls out as a move: only one subsystem (the relay,
	// then the byte pipe) holds them at a time.
	Conn() net.Conn
	Reader() *bufio.Reader

	// BufferedWait blocks up to timeout for at least one byte to become
	// available to read without consuming it; a zero timeout only
	// checks bytes already buffered. Used by the continue arbiter's
	// client-side poll.
	BufferedWait(timeout time.Duration) (buffered bool, err error)

	// WriteInterim emits a bare interim status line (e.g. "100
	// Continue") directly on the raw socket, in the backend's HTTP
	// version per spec.md §6 ("HTTP/<ver> 100 Continue\r\n\r\n").
	WriteInterim(version string, status int, reason string) error

	// Reply sends a complete status + headers + body as one reply.
	Reply(status int, headers HeaderList, body []byte) error

	// ReplyHeadPreamble sends status + headers + the blank line that
	// ends the head section, and nothing else: used both for a
	// chunked reply (the caller then writes raw chunk bytes to Conn()
	// itself) and for 101 Switching Protocols (no body ever follows).
	ReplyHeadPreamble(status int, headers HeaderList) error

	// ReplyStream sends status + headers, then invokes produce with a
	// writer that streams directly to the client socket. produce's
	// first error becomes the Reply's outcome, replacing the
	// exception-based stream abort of the teacher's origin (spec.md §9).
	ReplyStream(status int, headers HeaderList, produce func(io.Writer) error) error
}

// BodyDescriptor is the tagged value from spec.md §3: empty |
// known_length(n) | chunked | stream_to_close.
type BodyDescriptor struct {
	Type   BodyType
	Length int64 // valid when Type == BodyKnownLength
}

// Cycle is the per-request-response relay cycle: the request context
// of spec.md §3, owning the inbound connection and the backend client
// for exactly the duration of one request/response. It is never shared
// across goroutines (spec.md §5): one goroutine per cycle, no lock
// needed on this state.
type Cycle struct {
	In      Inbound
	Backend *BackendClient

	Continue ContinueState
	Upgraded bool

	// RequestExpect100 records whether the inbound request asked for
	// Expect: 100-continue; set once at cycle start and read-only after.
	RequestExpect100 bool

	cfg Config
}

// Config bundles the timeouts spec.md §5 enumerates as suspension
// points with deadlines. Zero values are replaced with the package
// defaults in NewCycle.
type Config struct {
	BackendConnectTimeout time.Duration
	ContinueDeadline      time.Duration
	ContinuePollInterval  time.Duration
	BytePipeIdleTimeout   time.Duration
}

// DefaultConfig returns the timeouts named in spec.md §5: 100ms connect,
// 55s continue negotiation with a 1s inner poll, 55s byte-pipe idle.
func DefaultConfig() Config {
	return Config{
		BackendConnectTimeout: 100 * time.Millisecond,
		ContinueDeadline:      55 * time.Second,
		ContinuePollInterval:  1 * time.Second,
		BytePipeIdleTimeout:   55 * time.Second,
	}
}

// NewCycle builds a Cycle for one inbound request. The backend client
// is attached separately by the caller once Connect succeeds (spec.md's
// data model: the backend client's lifetime starts at connect, the
// cycle's starts at headers-received).
func NewCycle(in Inbound, cfg Config) *Cycle {
	if cfg.BackendConnectTimeout == 0 {
		cfg.BackendConnectTimeout = DefaultConfig().BackendConnectTimeout
	}
	if cfg.ContinueDeadline == 0 {
		cfg.ContinueDeadline = DefaultConfig().ContinueDeadline
	}
	if cfg.ContinuePollInterval == 0 {
		cfg.ContinuePollInterval = DefaultConfig().ContinuePollInterval
	}
	if cfg.BytePipeIdleTimeout == 0 {
		cfg.BytePipeIdleTimeout = DefaultConfig().BytePipeIdleTimeout
	}
	_, expect := in.Headers().Get("Expect")
	c := &Cycle{In: in, cfg: cfg, RequestExpect100: expect && hasToken(mustGet(in.Headers(), "Expect"), "100-continue")}
	return c
}

func mustGet(h HeaderList, name string) string {
	v, _ := h.Get(name)
	return v
}

// closeBackend closes the backend exactly once; safe to call multiple
// times and on every terminal path, satisfying spec.md §8's
// close-once property.
func (c *Cycle) closeBackend() {
	if c.Backend != nil {
		c.Backend.Close()
	}
}
