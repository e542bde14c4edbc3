package relay_test

import (
	"bufio"
	"context"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/relaycore/relayproxy/internal/inbound"
	"github.com/relaycore/relayproxy/internal/relay"
)

// newLoopbackBackend starts a one-shot TCP "backend" that runs handle
// against the accepted connection, and returns its dial address.
// Grounded on the teacher's own test idiom in pkg/syslog/client_test.go
// (net.Listen("tcp", ":0") + a goroutine running the fake server).
func newLoopbackBackend(t *testing.T, handle func(conn net.Conn)) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn)
	}()
	return ln.Addr().String()
}

// readBackendRequestHead drains conn until the blank line ending the
// request's head section, discarding the bytes (most fake backends
// below don't need to inspect the request to answer these scenarios).
func readBackendRequestHead(t *testing.T, r *bufio.Reader) {
	t.Helper()
	readBackendRequestHeadLines(t, r)
}

// readBackendRequestHeadLines is readBackendRequestHead but returns the
// header lines (request line included), lower-cased, for scenarios that
// need to assert on what the relay actually forwarded.
func readBackendRequestHeadLines(t *testing.T, r *bufio.Reader) []string {
	t.Helper()
	var lines []string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "" {
			return lines
		}
		lines = append(lines, strings.ToLower(trimmed))
	}
}

func newCycleConn(t *testing.T) (serverConn net.Conn, clientConn net.Conn) {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() { a.Close(); b.Close() })
	return a, b
}

func testConfig() relay.Config {
	return relay.Config{
		BackendConnectTimeout: time.Second,
		ContinueDeadline:      2 * time.Second,
		ContinuePollInterval:  100 * time.Millisecond,
		BytePipeIdleTimeout:   time.Second,
	}
}

// Scenario 1 (spec.md §8): Simple GET.
func TestScenarioSimpleGET(t *testing.T) {
	backendAddr := newLoopbackBackend(t, func(conn net.Conn) {
		r := bufio.NewReader(conn)
		readBackendRequestHead(t, r)
		conn.Write([]byte("HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nhello"))
	})

	serverConn, clientConn := newCycleConn(t)

	headers := relay.HeaderList{{Name: "Host", Value: "x"}}
	in := inbound.New(serverConn, nil, "GET", "/a", "/a", "HTTP/1.1", headers)

	done := make(chan struct{})
	go func() {
		defer close(done)
		disp, err := relay.RunCycle(context.Background(), in, backendAddr, testConfig())
		require.Nil(t, err)
		require.Equal(t, relay.DispositionDone, disp)
		serverConn.Close() // unblocks the io.ReadAll below with io.EOF
	}()

	reply, err := io.ReadAll(clientConn)
	require.NoError(t, err)
	<-done

	s := string(reply)
	require.Contains(t, s, "200")
	require.Contains(t, s, "Connection: close")
	require.Contains(t, s, "Content-Length: 5")
	require.Contains(t, s, "hello")
}

// Scenario 2: chunked passthrough must be byte-identical after the headers.
func TestScenarioChunkedPassthrough(t *testing.T) {
	backendAddr := newLoopbackBackend(t, func(conn net.Conn) {
		r := bufio.NewReader(conn)
		readBackendRequestHead(t, r)
		conn.Write([]byte("HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n5\r\nhello\r\n0\r\n\r\n"))
	})

	serverConn, clientConn := newCycleConn(t)
	headers := relay.HeaderList{{Name: "Host", Value: "x"}}
	in := inbound.New(serverConn, nil, "GET", "/a", "/a", "HTTP/1.1", headers)

	done := make(chan struct{})
	go func() {
		defer close(done)
		disp, err := relay.RunCycle(context.Background(), in, backendAddr, testConfig())
		require.Nil(t, err)
		require.Equal(t, relay.DispositionDone, disp)
		serverConn.Close()
	}()

	reply, err := io.ReadAll(clientConn)
	require.NoError(t, err)
	<-done

	s := string(reply)
	require.Contains(t, s, "Transfer-Encoding: chunked")
	require.True(t, strings.HasSuffix(s, "5\r\nhello\r\n0\r\n\r\n"), "chunk bytes must be forwarded verbatim, got: %q", s)
}

// Scenario 3: Expect/100-continue, backend responds 100 before the
// client has sent any body bytes.
func TestScenarioContinueBackendFirst(t *testing.T) {
	backendAddr := newLoopbackBackend(t, func(conn net.Conn) {
		r := bufio.NewReader(conn)
		readBackendRequestHead(t, r)
		conn.Write([]byte("HTTP/1.1 100 Continue\r\n\r\n"))
		body := make([]byte, 5)
		io.ReadFull(r, body)
		conn.Write([]byte("HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nok"))
	})

	serverConn, clientConn := newCycleConn(t)
	headers := relay.HeaderList{
		{Name: "Host", Value: "x"},
		{Name: "Expect", Value: "100-continue"},
		{Name: "Content-Length", Value: "5"},
	}
	in := inbound.New(serverConn, nil, "POST", "/upload", "/upload", "HTTP/1.1", headers)

	cfg := testConfig()
	cfg.ContinuePollInterval = 20 * time.Millisecond

	done := make(chan struct{})
	go func() {
		defer close(done)
		disp, err := relay.RunCycle(context.Background(), in, backendAddr, cfg)
		require.Nil(t, err)
		require.Equal(t, relay.DispositionDone, disp)
		serverConn.Close()
	}()

	clientReader := bufio.NewReader(clientConn)
	interim, err := clientReader.ReadString('\n')
	require.NoError(t, err)
	require.Contains(t, interim, "100")
	blank, err := clientReader.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "\r\n", blank)

	_, err = clientConn.Write([]byte("hello"))
	require.NoError(t, err)

	statusLine, err := clientReader.ReadString('\n')
	require.NoError(t, err)
	require.Contains(t, statusLine, "200")
	for {
		line, err := clientReader.ReadString('\n')
		require.NoError(t, err)
		if strings.TrimRight(line, "\r\n") == "" {
			break
		}
	}
	body := make([]byte, 2)
	_, err = io.ReadFull(clientReader, body)
	require.NoError(t, err)
	require.Equal(t, "ok", string(body))
	<-done
}

// Scenario 4: Expect/100-continue, but the client's body is already
// available before the continue arbiter ever polls the backend — no
// synthetic 100 must reach the client, and the backend's eventual 100
// (sent as if nothing happened) must be swallowed rather than forwarded.
// The body is pre-pended to the inbound reader directly rather than
// raced in over net.Pipe, so the scenario is deterministic: this is
// exactly the "client sent its body before the backend spoke" case
// NegotiateContinue's buffered-bytes check is meant to catch.
func TestScenarioContinueClientFirst(t *testing.T) {
	backendAddr := newLoopbackBackend(t, func(conn net.Conn) {
		r := bufio.NewReader(conn)
		readBackendRequestHead(t, r)
		body := make([]byte, 5)
		io.ReadFull(r, body)
		conn.Write([]byte("HTTP/1.1 100 Continue\r\n\r\nHTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nok"))
	})

	serverConn, clientConn := newCycleConn(t)
	headers := relay.HeaderList{
		{Name: "Host", Value: "x"},
		{Name: "Expect", Value: "100-continue"},
		{Name: "Content-Length", Value: "5"},
	}
	r := bufio.NewReader(io.MultiReader(strings.NewReader("hello"), serverConn))
	in := inbound.New(serverConn, r, "POST", "/upload", "/upload", "HTTP/1.1", headers)

	cfg := testConfig()
	cfg.ContinuePollInterval = 20 * time.Millisecond

	done := make(chan struct{})
	go func() {
		defer close(done)
		disp, err := relay.RunCycle(context.Background(), in, backendAddr, cfg)
		require.Nil(t, err)
		require.Equal(t, relay.DispositionDone, disp)
		serverConn.Close()
	}()

	reply, err := io.ReadAll(clientConn)
	require.NoError(t, err)
	<-done

	s := string(reply)
	require.NotContains(t, s, "100", "a client that raced ahead must never see a 100 Continue, synthetic or forwarded")
	require.Contains(t, s, "200")
	require.Contains(t, s, "ok")
}

// Scenario 5: a well-formed upgrade request whose backend answers 101
// is promoted to a raw byte pipe; bytes written after the switch flow
// verbatim in both directions with no further HTTP framing applied.
func TestScenarioUpgradeSuccess(t *testing.T) {
	backendAddr := newLoopbackBackend(t, func(conn net.Conn) {
		r := bufio.NewReader(conn)
		requestHead := readBackendRequestHeadLines(t, r)
		require.Contains(t, requestHead, "connection: upgrade", "the handshake Connection header must reach the backend unmodified")
		require.Contains(t, requestHead, "upgrade: websocket", "the Upgrade header must reach the backend unmodified")
		conn.Write([]byte("HTTP/1.1 101 Switching Protocols\r\nUpgrade: websocket\r\nConnection: Upgrade\r\n\r\n"))
		frame := make([]byte, 4)
		io.ReadFull(r, frame)
		require.Equal(t, "ping", string(frame))
		conn.Write([]byte("pong"))
	})

	serverConn, clientConn := newCycleConn(t)
	headers := relay.HeaderList{
		{Name: "Host", Value: "x"},
		{Name: "Connection", Value: "upgrade"},
		{Name: "Upgrade", Value: "websocket"},
	}
	in := inbound.New(serverConn, nil, "GET", "/ws", "/ws", "HTTP/1.1", headers)

	cfg := testConfig()
	cfg.BytePipeIdleTimeout = 2 * time.Second

	done := make(chan struct{})
	go func() {
		defer close(done)
		disp, err := relay.RunCycle(context.Background(), in, backendAddr, cfg)
		require.Nil(t, err)
		require.Equal(t, relay.DispositionDone, disp)
	}()

	clientReader := bufio.NewReader(clientConn)
	statusLine, err := clientReader.ReadString('\n')
	require.NoError(t, err)
	require.Contains(t, statusLine, "101")
	for {
		line, err := clientReader.ReadString('\n')
		require.NoError(t, err)
		if strings.TrimRight(line, "\r\n") == "" {
			break
		}
	}

	_, err = clientConn.Write([]byte("ping"))
	require.NoError(t, err)

	reply := make([]byte, 4)
	_, err = io.ReadFull(clientReader, reply)
	require.NoError(t, err)
	require.Equal(t, "pong", string(reply))

	clientConn.Close()
	<-done
}

// Scenario 6: malformed upgrade short-circuits with 400 before any
// backend is contacted.
func TestScenarioMalformedUpgrade(t *testing.T) {
	contacted := make(chan struct{}, 1)
	backendAddr := newLoopbackBackend(t, func(conn net.Conn) {
		contacted <- struct{}{}
	})

	serverConn, clientConn := newCycleConn(t)
	headers := relay.HeaderList{
		{Name: "Host", Value: "x"},
		{Name: "Connection", Value: "upgrade"},
	}
	in := inbound.New(serverConn, nil, "GET", "/ws", "/ws", "HTTP/1.1", headers)

	disp, err := relay.RunCycle(context.Background(), in, backendAddr, testConfig())
	serverConn.Close()
	clientConn.Close()

	require.NotNil(t, err)
	require.Equal(t, relay.DispositionClientError, disp)
	require.Equal(t, 400, err.Status)

	select {
	case <-contacted:
		t.Fatal("backend must not be contacted for a malformed upgrade request")
	case <-time.After(50 * time.Millisecond):
	}
}
