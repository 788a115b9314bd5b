package netutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndpoint_SendReceiveRoundTrip(t *testing.T) {
	server, err := Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer server.Close()

	client, err := Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Send(server.LocalAddr(), []byte("hello")))

	deadline := time.Now().Add(2 * time.Second)
	var payload []byte
	var ok bool
	for time.Now().Before(deadline) {
		payload, _, ok, err = server.Receive()
		require.NoError(t, err)
		if ok {
			break
		}
		time.Sleep(time.Millisecond)
	}
	require.True(t, ok, "expected a datagram before the deadline")
	assert.Equal(t, "hello", string(payload))
}

func TestEndpoint_ReceiveWithoutDataReturnsNotOK(t *testing.T) {
	ep, err := Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer ep.Close()

	_, _, ok, err := ep.Receive()
	require.NoError(t, err)
	assert.False(t, ok)
}
