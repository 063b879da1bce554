package proxy

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHTTPClientDirect(t *testing.T) {
	c, err := NewHTTPClient("")
	require.NoError(t, err)
	assert.Equal(t, clientTimeout, c.Timeout)
	assert.Nil(t, c.Transport)
}

func TestNewHTTPClientSocks(t *testing.T) {
	c, err := NewHTTPClient("127.0.0.1:1080")
	require.NoError(t, err)
	require.NotNil(t, c.Transport)

	tr, ok := c.Transport.(*http.Transport)
	require.True(t, ok)
	assert.NotNil(t, tr.DialContext)
}
