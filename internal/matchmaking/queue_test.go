package matchmaking

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_BeginAndResolveValidation(t *testing.T) {
	q := NewQueue()
	addr := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 1}

	reqID := q.BeginValidation(1, addr, 0, 0, "tok")
	assert.True(t, q.IsKnown(1))

	pv := q.ResolveValidation(reqID)
	require.NotNil(t, pv)
	assert.Equal(t, uint64(1), pv.PlayerID)
	assert.False(t, q.IsKnown(1))
}

func TestQueue_ResolveValidation_UnknownRequestIDReturnsNil(t *testing.T) {
	q := NewQueue()
	assert.Nil(t, q.ResolveValidation(999))
}

func TestQueue_Admit_And_TakeFront_FIFO(t *testing.T) {
	q := NewQueue()
	addr := &net.UDPAddr{}
	for i := uint64(1); i <= 3; i++ {
		reqID := q.BeginValidation(i, addr, 0, 0, "tok")
		pv := q.ResolveValidation(reqID)
		q.Admit(pv, i*10)
	}
	assert.Equal(t, 3, q.Len())

	taken := q.TakeFront(2)
	require.Len(t, taken, 2)
	assert.Equal(t, uint64(1), taken[0].PlayerID)
	assert.Equal(t, uint64(2), taken[1].PlayerID)
	assert.Equal(t, 1, q.Len())
}

func TestQueue_TakeFront_InsufficientReturnsNil(t *testing.T) {
	q := NewQueue()
	addr := &net.UDPAddr{}
	reqID := q.BeginValidation(1, addr, 0, 0, "tok")
	q.Admit(q.ResolveValidation(reqID), 10)

	assert.Nil(t, q.TakeFront(5))
}

func TestQueue_AdvancePending_ExpiresAfterTimeout(t *testing.T) {
	q := NewQueue()
	addr := &net.UDPAddr{}
	q.BeginValidation(1, addr, 0, 0, "tok")

	assert.Empty(t, q.AdvancePending(4.9))
	expired := q.AdvancePending(0.2)
	require.Len(t, expired, 1)
	assert.Equal(t, uint64(1), expired[0].PlayerID)
	assert.False(t, q.IsKnown(1))
}

func TestQueue_Requeue_ResetsSearchTime(t *testing.T) {
	q := NewQueue()
	addr := &net.UDPAddr{}
	reqID := q.BeginValidation(1, addr, 0, 0, "tok")
	qp := q.Admit(q.ResolveValidation(reqID), 10)
	qp.SearchTimeSec = 42
	q.TakeFront(1)

	q.Requeue(qp)
	assert.Equal(t, float64(0), qp.SearchTimeSec)
	assert.Equal(t, 1, q.Len())
}

func TestQueue_CancelPending(t *testing.T) {
	q := NewQueue()
	addr := &net.UDPAddr{}
	q.BeginValidation(1, addr, 0, 0, "tok")

	assert.True(t, q.CancelPending(1))
	assert.False(t, q.CancelPending(1))
}
