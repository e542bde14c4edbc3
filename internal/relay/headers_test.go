package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRewriteRequestHeadersIdempotent(t *testing.T) {
	in := HeaderList{
		{Name: "Host", Value: "example.com"},
		{Name: "Connection", Value: "keep-alive"},
		{Name: "Content-Length", Value: "5"},
		{Name: "Accept", Value: "*/*"},
	}

	once := rewriteRequestHeaders(in, true, false)
	twice := rewriteRequestHeaders(once, true, false)

	assert.Equal(t, once, twice, "applying the rewrite pipeline twice must equal applying it once")
	assert.False(t, once.Has("Host"))
	assert.False(t, once.Has("Content-Length"))
	v, ok := once.Get("Connection")
	require.True(t, ok)
	assert.Equal(t, "close", v)
}

func TestRewriteRequestHeadersKeepsContentLengthWhenAsked(t *testing.T) {
	in := HeaderList{{Name: "Content-Length", Value: "5"}}
	out := rewriteRequestHeaders(in, false, false)
	v, ok := out.Get("Content-Length")
	require.True(t, ok)
	assert.Equal(t, "5", v)
}

func TestRewriteRequestHeadersPreservesUpgradeHandshake(t *testing.T) {
	in := HeaderList{
		{Name: "Host", Value: "example.com"},
		{Name: "Connection", Value: "upgrade"},
		{Name: "Upgrade", Value: "websocket"},
	}
	out := rewriteRequestHeaders(in, true, true)

	v, ok := out.Get("Connection")
	require.True(t, ok, "Connection must survive the rewrite for an upgrade candidate")
	assert.Equal(t, "upgrade", v, "the handshake token must not be replaced with close")

	v, ok = out.Get("Upgrade")
	require.True(t, ok)
	assert.Equal(t, "websocket", v)

	assert.False(t, out.Has("Host"))
}

func TestRewriteResponseHeadersShouldCloseLaw(t *testing.T) {
	in := HeaderList{{Name: "Connection", Value: "keep-alive"}}

	withoutClose := rewriteResponseHeaders(in, false)
	assert.False(t, withoutClose.Has("Connection"))

	withClose := rewriteResponseHeaders(in, true)
	v, ok := withClose.Get("Connection")
	require.True(t, ok)
	assert.Equal(t, "close", v)
}

func TestHeaderListSetReplacesInPlace(t *testing.T) {
	in := HeaderList{
		{Name: "A", Value: "1"},
		{Name: "B", Value: "2"},
	}
	out := in.Set("A", "3")
	require.Len(t, out, 2)
	v, _ := out.Get("A")
	assert.Equal(t, "3", v)
}

func TestHasToken(t *testing.T) {
	assert.True(t, hasToken("Keep-Alive, Upgrade", "upgrade"))
	assert.False(t, hasToken("Keep-Alive", "upgrade"))
	assert.True(t, hasToken("chunked", "chunked"))
}
