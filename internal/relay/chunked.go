package relay

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

// Grounded on the chunked-transfer-coding reader retrieved from the
// net/http/internal package (see other_examples/domosekai-turnout__chunked.go):
// read a chunk-size line, then forward exactly that many bytes plus the
// trailing CRLF. This package keeps that verbatim-forwarding shape but
// exposes it as an explicit cursor state machine per spec.md §9, rather
// than an io.Reader that reframes the body.

const maxChunkLineLength = 4096

var errChunkLineTooLong = errors.New("relay: chunk header line too long")

// chunkState is the sum type from spec.md §9: expecting_size |
// inside_chunk(n_remaining) | expecting_trailers | done.
type chunkState int

const (
	chunkExpectingSize chunkState = iota
	chunkInsideChunk
	chunkExpectingTrailers
	chunkDone
)

// chunkCursor is the opaque incremental chunked-parser state. It never
// reconstructs a chunk: every byte it hands back to the caller is a
// byte read verbatim off the wire, so forwarding it on produces a
// byte-identical chunked stream (the "chunked fidelity" property of
// spec.md §8).
type chunkCursor struct {
	state     chunkState
	remaining int64 // bytes left in the current chunk, including trailing CRLF once remaining tracks that too
}

func newChunkCursor() *chunkCursor {
	return &chunkCursor{state: chunkExpectingSize}
}

// readChunkLine reads a single CRLF-terminated line (the chunk-size
// line, or a trailer line) from r and returns it unchanged, chunk
// extension and terminating CRLF included, since the caller forwards
// these bytes verbatim. parseChunkSize ignores any extension after ';'.
func readChunkLine(r *bufio.Reader) ([]byte, error) {
	line, err := r.ReadSlice('\n')
	if err != nil {
		if err == io.EOF {
			return nil, io.ErrUnexpectedEOF
		}
		if err == bufio.ErrBufferFull {
			return nil, errChunkLineTooLong
		}
		return nil, err
	}
	if len(line) >= maxChunkLineLength {
		return nil, errChunkLineTooLong
	}
	return append([]byte(nil), line...), nil
}

func parseChunkSize(line []byte) (uint64, error) {
	size := line
	if semi := bytes.IndexByte(size, ';'); semi >= 0 {
		size = size[:semi]
	}
	size = bytes.TrimRight(size, "\r\n")
	size = bytes.TrimSpace(size)
	if len(size) == 0 {
		return 0, errors.New("relay: empty chunk size")
	}
	var n uint64
	for i, b := range size {
		var v byte
		switch {
		case '0' <= b && b <= '9':
			v = b - '0'
		case 'a' <= b && b <= 'f':
			v = b - 'a' + 10
		case 'A' <= b && b <= 'F':
			v = b - 'A' + 10
		default:
			return 0, errors.New("relay: invalid chunk size digit")
		}
		if i == 16 {
			return 0, errors.New("relay: chunk size too large")
		}
		n = n<<4 | uint64(v)
	}
	return n, nil
}

// chunkFrame is one verbatim framing span returned by chunkCursor.next:
// the raw bytes that make up one step of the chunked grammar, tagged
// with whether this was the end of the trailer block.
// relayChunkedBody writes frame.bytes to the peer unmodified.
type chunkFrame struct {
	bytes    []byte
	terminal bool
}

// next advances the cursor by exactly one read, returning the raw bytes
// read (chunk-size line, chunk body + CRLF, or trailer block) so the
// caller can relay them without reframing.
func (c *chunkCursor) next(r *bufio.Reader) (chunkFrame, error) {
	switch c.state {
	case chunkExpectingSize:
		line, err := readChunkLine(r)
		if err != nil {
			return chunkFrame{}, err
		}
		size, err := parseChunkSize(line)
		if err != nil {
			return chunkFrame{}, err
		}
		if size == 0 {
			c.state = chunkExpectingTrailers
			return chunkFrame{bytes: line}, nil
		}
		c.remaining = int64(size) + 2 // + trailing CRLF
		c.state = chunkInsideChunk
		return chunkFrame{bytes: line}, nil

	case chunkInsideChunk:
		n := c.remaining
		if n > 8192 {
			n = 8192
		}
		buf := make([]byte, n)
		read, err := io.ReadFull(r, buf)
		if err != nil && err != io.ErrUnexpectedEOF {
			return chunkFrame{}, err
		}
		c.remaining -= int64(read)
		if c.remaining == 0 {
			c.state = chunkExpectingSize
		}
		return chunkFrame{bytes: buf[:read]}, nil

	case chunkExpectingTrailers:
		line, err := readChunkLine(r)
		if err != nil {
			return chunkFrame{}, err
		}
		if len(bytes.TrimRight(line, "\r\n")) == 0 {
			c.state = chunkDone
			return chunkFrame{bytes: line, terminal: true}, nil
		}
		return chunkFrame{bytes: line}, nil

	default: // chunkDone
		return chunkFrame{terminal: true}, io.EOF
	}
}

// relayChunkedBody drains a chunked body from r, writing every raw
// framing byte to w verbatim, until the terminal zero-chunk and its
// trailer block have been forwarded. It returns the total bytes
// written.
func relayChunkedBody(w io.Writer, r *bufio.Reader) (int64, error) {
	cur := newChunkCursor()
	var total int64
	for cur.state != chunkDone {
		frame, err := cur.next(r)
		if len(frame.bytes) > 0 {
			n, werr := w.Write(frame.bytes)
			total += int64(n)
			if werr != nil {
				return total, werr
			}
		}
		if err != nil {
			if err == io.EOF && frame.terminal {
				return total, nil
			}
			return total, err
		}
	}
	return total, nil
}
