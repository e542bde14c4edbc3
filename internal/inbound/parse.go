package inbound

import (
	"bufio"
	"fmt"
	"net"
	"net/textproto"
	"strings"

	"github.com/relaycore/relayproxy/internal/relay"
)

// Parse reads one request line and header section off conn and returns
// a ready-to-relay *Conn. Request-line/header parsing is explicitly an
// external collaborator to the relay core (spec.md §1); this function
// is that collaborator for the demo binary, using the standard
// library's net/textproto reader rather than hand-rolling a scanner,
// since nothing about MIME-style header folding is specific to the
// relay engine itself.
func Parse(conn net.Conn) (*Conn, error) {
	r := bufio.NewReaderSize(conn, 4096)
	tp := textproto.NewReader(r)

	requestLine, err := tp.ReadLine()
	if err != nil {
		return nil, fmt.Errorf("inbound: read request line: %w", err)
	}
	method, path, version, err := parseRequestLine(requestLine)
	if err != nil {
		return nil, err
	}

	mimeHeader, err := tp.ReadMIMEHeader()
	if err != nil {
		return nil, fmt.Errorf("inbound: read headers: %w", err)
	}

	var headers relay.HeaderList
	for name, values := range mimeHeader {
		for _, v := range values {
			headers = append(headers, relay.Header{Name: name, Value: v})
		}
	}

	return New(conn, r, method, path, path, version, headers), nil
}

func parseRequestLine(line string) (method, path, version string, err error) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		return "", "", "", fmt.Errorf("inbound: malformed request line %q", line)
	}
	return parts[0], parts[1], parts[2], nil
}
