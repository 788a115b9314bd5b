package session

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/arenamatch/internal/arena"
	"github.com/udisondev/arenamatch/internal/model"
	wiregame "github.com/udisondev/arenamatch/internal/wire/game"
)

type fakeEndpoint struct {
	sent []sentPacket
}

type sentPacket struct {
	addr    *net.UDPAddr
	payload []byte
}

func (f *fakeEndpoint) Send(addr *net.UDPAddr, payload []byte) error {
	f.sent = append(f.sent, sentPacket{addr: addr, payload: payload})
	return nil
}

func (f *fakeEndpoint) Receive() ([]byte, *net.UDPAddr, bool, error) {
	return nil, nil, false, nil
}

func (f *fakeEndpoint) last(typ wiregame.MessageType) (wiregame.Header, []byte, bool) {
	for i := len(f.sent) - 1; i >= 0; i-- {
		h, body, err := wiregame.ParsePacket(f.sent[i].payload)
		if err == nil && h.Type == typ {
			return h, body, true
		}
	}
	return wiregame.Header{}, nil, false
}

func clientAddr(n int) *net.UDPAddr {
	return &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 20000 + n}
}

func connect(t *testing.T, m *Manager, ep *fakeEndpoint, accountID uint64, from *net.UDPAddr) model.ClientID {
	t.Helper()
	req := wiregame.NewConnectionRequest(accountID, "player", "tok")
	pkt, err := wiregame.BuildPacket(wiregame.TypeConnectionRequest, 1, req.Encode())
	require.NoError(t, err)
	m.handlePacket(pkt, from)

	_, body, ok := ep.last(wiregame.TypeConnectionAccepted)
	require.True(t, ok)
	accepted, err := wiregame.DecodeConnectionAccepted(body)
	require.NoError(t, err)
	return model.ClientID(accepted.AssignedClientID)
}

func TestManager_ConnectionRequest_AcceptsAndAddsClient(t *testing.T) {
	ep := &fakeEndpoint{}
	sim := arena.NewArenaWorld()
	m := NewManager(ep, sim, 10, 10, nil, nil)

	clientID := connect(t, m, ep, 100, clientAddr(1))

	assert.Equal(t, 1, m.Count())
	snap := sim.Snapshot()
	require.Len(t, snap.Entities, 1)
	assert.Equal(t, clientID, snap.Entities[0].OwnerClientID)
}

func TestManager_ConnectionRequest_IdempotentForKnownAddress(t *testing.T) {
	ep := &fakeEndpoint{}
	sim := arena.NewArenaWorld()
	m := NewManager(ep, sim, 10, 10, nil, nil)
	addr := clientAddr(1)

	connect(t, m, ep, 100, addr)
	req := wiregame.NewConnectionRequest(100, "player", "tok")
	pkt, _ := wiregame.BuildPacket(wiregame.TypeConnectionRequest, 1, req.Encode())
	m.handlePacket(pkt, addr)

	assert.Equal(t, 1, m.Count())
}

func TestManager_ConnectionRequest_RejectsWhenFull(t *testing.T) {
	ep := &fakeEndpoint{}
	sim := arena.NewArenaWorld()
	m := NewManager(ep, sim, 1, 10, nil, nil)

	connect(t, m, ep, 100, clientAddr(1))

	req := wiregame.NewConnectionRequest(200, "player2", "tok")
	pkt, _ := wiregame.BuildPacket(wiregame.TypeConnectionRequest, 1, req.Encode())
	m.handlePacket(pkt, clientAddr(2))

	_, body, ok := ep.last(wiregame.TypeConnectionRejected)
	require.True(t, ok)
	rej, err := wiregame.DecodeConnectionRejected(body)
	require.NoError(t, err)
	assert.Equal(t, "server full", rej.ReasonStr())
	assert.Equal(t, 1, m.Count())
}

func TestManager_ClientInput_ForwardsToWorld(t *testing.T) {
	ep := &fakeEndpoint{}
	sim := arena.NewArenaWorld()
	m := NewManager(ep, sim, 10, 10, nil, nil)
	addr := clientAddr(1)
	clientID := connect(t, m, ep, 100, addr)

	input := wiregame.ClientInput{MoveX: 1, MoveY: 0}
	pkt, _ := wiregame.BuildPacket(wiregame.TypeClientInput, 42, input.Encode())
	m.handlePacket(pkt, addr)

	sim.Advance(1.0)
	assert.Equal(t, uint32(42), sim.LastProcessedInputFor(clientID))
	snap := sim.Snapshot()
	require.Len(t, snap.Entities, 1)
	assert.Greater(t, snap.Entities[0].PosX, float32(0))
}

func TestManager_Ping_RepliesPongSameSequence(t *testing.T) {
	ep := &fakeEndpoint{}
	sim := arena.NewArenaWorld()
	m := NewManager(ep, sim, 10, 10, nil, nil)
	addr := clientAddr(1)
	connect(t, m, ep, 100, addr)

	pkt, _ := wiregame.BuildPacket(wiregame.TypePing, 7, nil)
	m.handlePacket(pkt, addr)

	h, _, ok := ep.last(wiregame.TypePong)
	require.True(t, ok)
	assert.Equal(t, uint32(7), h.Sequence)
}

func TestManager_Tick_EvictsOnInputTimeout(t *testing.T) {
	ep := &fakeEndpoint{}
	sim := arena.NewArenaWorld()
	m := NewManager(ep, sim, 10, 10, nil, nil)
	addr := clientAddr(1)
	connect(t, m, ep, 100, addr)

	var disconnected model.ClientSession
	m.OnDisconnect = func(sess model.ClientSession) { disconnected = sess }

	m.Tick(5) // under timeout
	assert.Equal(t, 1, m.Count())

	m.Tick(6) // 11s accumulated > 10s timeout
	assert.Equal(t, 0, m.Count())
	assert.Equal(t, uint64(100), disconnected.AccountID)
	assert.Empty(t, sim.Snapshot().Entities)
}

func TestManager_Disconnect_Explicit(t *testing.T) {
	ep := &fakeEndpoint{}
	sim := arena.NewArenaWorld()
	m := NewManager(ep, sim, 10, 10, nil, nil)
	addr := clientAddr(1)
	connect(t, m, ep, 100, addr)

	evicted := false
	m.OnDisconnect = func(model.ClientSession) { evicted = true }

	pkt, _ := wiregame.BuildPacket(wiregame.TypeDisconnect, 1, nil)
	m.handlePacket(pkt, addr)

	assert.True(t, evicted)
	assert.Equal(t, 0, m.Count())
}

func TestManager_Tick_BroadcastsSnapshotToConnectedClients(t *testing.T) {
	ep := &fakeEndpoint{}
	sim := arena.NewArenaWorld()
	m := NewManager(ep, sim, 10, 10, nil, nil)
	addr := clientAddr(1)
	connect(t, m, ep, 100, addr)

	m.Tick(1.0 / 30)

	_, body, ok := ep.last(wiregame.TypeWorldSnapshot)
	require.True(t, ok)
	snap, err := wiregame.DecodeWorldSnapshotWire(body)
	require.NoError(t, err)
	assert.Len(t, snap.Entities, 1)
}
