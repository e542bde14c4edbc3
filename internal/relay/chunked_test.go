package relay

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelayChunkedBodyVerbatim(t *testing.T) {
	// A single data chunk plus the terminal zero-chunk: every byte read
	// must come out unchanged, and the count must match the input length.
	wire := "5\r\nhello\r\n0\r\n\r\n"
	r := bufio.NewReader(strings.NewReader(wire))

	var out bytes.Buffer
	n, err := relayChunkedBody(&out, r)
	require.NoError(t, err)
	assert.Equal(t, int64(len(wire)), n)
	assert.Equal(t, wire, out.String(), "chunked fidelity: output must be byte-identical to input")
}

func TestRelayChunkedBodyMultipleChunks(t *testing.T) {
	wire := "4\r\nWiki\r\n5\r\npedia\r\nE\r\n in\r\n\r\nchunks.\r\n0\r\n\r\n"
	r := bufio.NewReader(strings.NewReader(wire))

	var out bytes.Buffer
	_, err := relayChunkedBody(&out, r)
	require.NoError(t, err)
	assert.Equal(t, wire, out.String())
}

func TestParseChunkSizeHex(t *testing.T) {
	n, err := parseChunkSize([]byte("1A\r\n"))
	require.NoError(t, err)
	assert.Equal(t, uint64(26), n)
}

func TestParseChunkSizeStripsExtension(t *testing.T) {
	n, err := parseChunkSize([]byte("5;ext=val\r\n"))
	require.NoError(t, err)
	assert.Equal(t, uint64(5), n)
}

func TestRelayChunkedBodyTruncatedIsError(t *testing.T) {
	wire := "5\r\nhel" // truncated mid-chunk, no terminator
	r := bufio.NewReader(strings.NewReader(wire))

	var out bytes.Buffer
	_, err := relayChunkedBody(&out, r)
	assert.Error(t, err)
}
