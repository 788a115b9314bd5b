package matchmaking

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/arenamatch/internal/config"
	wireauth "github.com/udisondev/arenamatch/internal/wire/auth"
	wiremm "github.com/udisondev/arenamatch/internal/wire/matchmaking"
)

type fakeEndpoint struct {
	sent  []sentPacket
	inbox []inboxPacket
}

type sentPacket struct {
	addr    *net.UDPAddr
	payload []byte
}

type inboxPacket struct {
	payload []byte
	from    *net.UDPAddr
}

func (f *fakeEndpoint) Send(addr *net.UDPAddr, payload []byte) error {
	f.sent = append(f.sent, sentPacket{addr: addr, payload: payload})
	return nil
}

func (f *fakeEndpoint) Receive() ([]byte, *net.UDPAddr, bool, error) {
	if len(f.inbox) == 0 {
		return nil, nil, false, nil
	}
	p := f.inbox[0]
	f.inbox = f.inbox[1:]
	return p.payload, p.from, true, nil
}

func (f *fakeEndpoint) deliver(payload []byte, from *net.UDPAddr) {
	f.inbox = append(f.inbox, inboxPacket{payload: payload, from: from})
}

func (f *fakeEndpoint) sentTo(playerID uint64, typ wiremm.MessageType) (wiremm.Header, []byte, bool) {
	for _, p := range f.sent {
		h, body, err := wiremm.ParsePacket(p.payload)
		if err != nil {
			continue
		}
		if h.Type == typ && h.PlayerID == playerID {
			return h, body, true
		}
	}
	return wiremm.Header{}, nil, false
}

func playerAddr(n int) *net.UDPAddr {
	return &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 10000 + n}
}

func newTestCoordinator() (*Coordinator, *fakeEndpoint, *fakeEndpoint) {
	ep := &fakeEndpoint{}
	authEP := &fakeEndpoint{}
	authAddr := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 27015}
	cfg := config.DefaultCoordinator()
	cfg.RequiredPlayers = 2
	c := NewCoordinator(cfg, ep, authEP, authAddr)
	return c, ep, authEP
}

// respondAuth simulates the auth service answering the single pending
// ValidateTokenRequest with the given outcome, then delivers the reply
// into authEP's inbox and drains it.
func respondAuth(t *testing.T, c *Coordinator, authEP *fakeEndpoint, accountID uint64, result wireauth.Result, isBanned bool) {
	t.Helper()
	require.NotEmpty(t, authEP.sent)
	last := authEP.sent[len(authEP.sent)-1]
	h, _, err := wireauth.ParsePacket(last.payload)
	require.NoError(t, err)

	var banned uint8
	if isBanned {
		banned = 1
	}
	resp := wireauth.ValidateTokenResponse{Result: result, AccountID: accountID, IsBanned: banned}
	pkt, err := wireauth.BuildPacket(wireauth.TypeValidateTokenResponse, accountID, h.RequestID, resp.Encode())
	require.NoError(t, err)

	authEP.deliver(pkt, nil)
	c.drainAuth()
}

func sendQueueRequest(c *Coordinator, playerID uint64, token string, from *net.UDPAddr) {
	req := wiremm.NewQueueRequest(0, 0, token)
	pkt, _ := wiremm.BuildPacket(wiremm.TypeQueueRequest, playerID, 0, req.Encode())
	h, body, _ := wiremm.ParsePacket(pkt)
	c.handleQueueRequest(h, body, from)
}

func TestCoordinator_HappyPath_FormsLobbyAndAssignsServer(t *testing.T) {
	c, ep, authEP := newTestCoordinator()
	c.registry.Register(1, "127.0.0.1", 27015, 10, &net.UDPAddr{Port: 28000})

	sendQueueRequest(c, 1, "tok-a", playerAddr(1))
	respondAuth(t, c, authEP, 100, wireauth.Success, false)

	sendQueueRequest(c, 2, "tok-b", playerAddr(2))
	respondAuth(t, c, authEP, 200, wireauth.Success, false)

	c.tryFormLobby()
	assert.Equal(t, 0, c.queue.Len())

	_, foundBody, ok := ep.sentTo(1, wiremm.TypeMatchFound)
	require.True(t, ok)
	found, err := wiremm.DecodeMatchFound(foundBody)
	require.NoError(t, err)
	assert.Equal(t, uint8(2), found.RequiredPlayers)

	h1, _, ok := ep.sentTo(1, wiremm.TypeMatchFound)
	require.True(t, ok)
	lobbyID := h1.LobbyID

	c.handleMatchAccept(lobbyID, 1)
	c.handleMatchAccept(lobbyID, 2)

	_, readyBody, ok := ep.sentTo(1, wiremm.TypeMatchReady)
	require.True(t, ok)
	ready, err := wiremm.DecodeMatchReady(readyBody)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", ready.ServerIPStr())
	assert.Equal(t, uint16(27015), ready.ServerPort)

	assert.NotNil(t, c.active.Get(100)) // startMatch should have created an active-game record
}

func TestCoordinator_DeclineCancelsAndAccepterRequeues(t *testing.T) {
	c, ep, authEP := newTestCoordinator()

	sendQueueRequest(c, 1, "tok-a", playerAddr(1))
	respondAuth(t, c, authEP, 100, wireauth.Success, false)
	sendQueueRequest(c, 2, "tok-b", playerAddr(2))
	respondAuth(t, c, authEP, 200, wireauth.Success, false)
	c.tryFormLobby()

	h1, _, ok := ep.sentTo(1, wiremm.TypeMatchFound)
	require.True(t, ok)
	lobbyID := h1.LobbyID

	c.handleMatchAccept(lobbyID, 1)
	c.handleMatchDecline(lobbyID, 2)

	_, bodyA, ok := ep.sentTo(1, wiremm.TypeMatchCancelled)
	require.True(t, ok)
	cancelledA, err := wiremm.DecodeMatchCancelled(bodyA)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), cancelledA.ShouldRequeue)

	_, bodyB, ok := ep.sentTo(2, wiremm.TypeMatchCancelled)
	require.True(t, ok)
	cancelledB, err := wiremm.DecodeMatchCancelled(bodyB)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), cancelledB.ShouldRequeue)

	assert.Equal(t, 1, c.queue.Len())
}

func TestCoordinator_BannedAccountRejected(t *testing.T) {
	c, ep, authEP := newTestCoordinator()
	sendQueueRequest(c, 1, "tok-a", playerAddr(1))
	respondAuth(t, c, authEP, 100, wireauth.Success, true)

	_, body, ok := ep.sentTo(1, wiremm.TypeQueueRejected)
	require.True(t, ok)
	rej, err := wiremm.DecodeQueueRejected(body)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), rej.IsBanned)
	assert.Equal(t, 0, c.queue.Len())
}

func TestCoordinator_AuthTimeoutRejectsAndClearsPending(t *testing.T) {
	c, ep, _ := newTestCoordinator()
	sendQueueRequest(c, 1, "tok-a", playerAddr(1))

	c.tick() // not enough time elapsed yet
	assert.True(t, c.queue.IsKnown(1))

	c.queue.pending[1].AgeSec = pendingValidationTimeoutSec
	c.tick()

	_, body, ok := ep.sentTo(1, wiremm.TypeQueueRejected)
	require.True(t, ok)
	rej, err := wiremm.DecodeQueueRejected(body)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), rej.AuthFailed)
	assert.False(t, c.queue.IsKnown(1))
}

func TestCoordinator_ServerHeartbeatTTL_CancelsLobbyNoServersAvailable(t *testing.T) {
	c, ep, authEP := newTestCoordinator()

	sendQueueRequest(c, 1, "tok-a", playerAddr(1))
	respondAuth(t, c, authEP, 100, wireauth.Success, false)
	sendQueueRequest(c, 2, "tok-b", playerAddr(2))
	respondAuth(t, c, authEP, 200, wireauth.Success, false)

	c.tryFormLobby()
	h1, _, ok := ep.sentTo(1, wiremm.TypeMatchFound)
	require.True(t, ok)
	lobbyID := h1.LobbyID

	// no server was ever registered, so the lobby has nothing to pick
	// from once it's time to start the match — equivalent in effect to a
	// server having gone stale past the heartbeat TTL and been evicted.
	c.handleMatchAccept(lobbyID, 1)
	c.handleMatchAccept(lobbyID, 2)

	_, body, ok := ep.sentTo(1, wiremm.TypeMatchCancelled)
	require.True(t, ok)
	cancelled, err := wiremm.DecodeMatchCancelled(body)
	require.NoError(t, err)
	assert.Equal(t, "No servers available", cancelled.ReasonStr())
	assert.Equal(t, uint8(0), cancelled.ShouldRequeue)
}

func TestCoordinator_PlayerDisconnected_StampsElapsedUptime(t *testing.T) {
	c, _, _ := newTestCoordinator()
	c.active.Start(100, 7, 1, "127.0.0.1", 27500, 0, "Warrior")

	time.Sleep(time.Millisecond)
	pd := wiremm.NewPlayerDisconnected(100, 0, "Warrior")
	h := wiremm.Header{PlayerID: 1, LobbyID: 7}
	c.handlePlayerDisconnected(h, pd.Encode())

	rec := c.active.Lookup(100)
	require.NotNil(t, rec)
	assert.Greater(t, rec.DisconnectTime, 0.0)
}

func TestCoordinator_Tick_AdvancesActiveGameClock(t *testing.T) {
	c, _, _ := newTestCoordinator()
	c.active.Start(100, 7, 1, "127.0.0.1", 27500, 0, "Warrior")

	c.lastTick = time.Now().Add(-50 * time.Millisecond)
	c.tick()

	rec := c.active.Get(100)
	require.NotNil(t, rec)
	assert.Greater(t, rec.GameStartTime, 0.0)
}
