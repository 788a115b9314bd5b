package dedicated

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/arenamatch/internal/config"
	"github.com/udisondev/arenamatch/internal/model"
	wiremm "github.com/udisondev/arenamatch/internal/wire/matchmaking"
)

func sessionFixture() model.ClientSession {
	return model.ClientSession{
		ClientID:  1,
		AccountID: 555,
		HeroName:  "Hero",
		TeamSlot:  1,
	}
}

type fakeEndpoint struct {
	local *net.UDPAddr
	sent  [][]byte
	inbox [][]byte
}

func (f *fakeEndpoint) Send(addr *net.UDPAddr, payload []byte) error {
	f.sent = append(f.sent, payload)
	return nil
}

func (f *fakeEndpoint) Receive() ([]byte, *net.UDPAddr, bool, error) {
	if len(f.inbox) == 0 {
		return nil, nil, false, nil
	}
	payload := f.inbox[0]
	f.inbox = f.inbox[1:]
	return payload, nil, true, nil
}

func (f *fakeEndpoint) LocalAddr() *net.UDPAddr { return f.local }

func (f *fakeEndpoint) lastOfType(typ wiremm.MessageType) (wiremm.Header, []byte, bool) {
	for i := len(f.sent) - 1; i >= 0; i-- {
		h, body, err := wiremm.ParsePacket(f.sent[i])
		if err == nil && h.Type == typ {
			return h, body, true
		}
	}
	return wiremm.Header{}, nil, false
}

func newTestServer(t *testing.T) (*Server, *fakeEndpoint, *fakeEndpoint) {
	t.Helper()
	gameEP := &fakeEndpoint{local: &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 27500}}
	coordEP := &fakeEndpoint{}
	coordAddr := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 27016}

	cfg := config.DefaultGameServer()
	cfg.TickRateHz = 30
	cfg.ClientTimeoutSec = 10
	cfg.HeartbeatSec = 2
	cfg.Capacity = 10

	s, err := NewServer(cfg, gameEP, coordEP, coordAddr)
	require.NoError(t, err)
	return s, gameEP, coordEP
}

func TestServer_Register_SendsServerRegister(t *testing.T) {
	s, _, coordEP := newTestServer(t)
	require.NoError(t, s.register())

	h, body, ok := coordEP.lastOfType(wiremm.TypeServerRegister)
	require.True(t, ok)
	assert.Equal(t, s.serverID, h.PlayerID)

	reg, err := wiremm.DecodeServerRegister(body)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", reg.IPStr())
	assert.Equal(t, uint16(27500), reg.GamePort)
	assert.Equal(t, uint16(10), reg.Capacity)
}

func TestServer_AssignLobby_RecordsCurrentLobby(t *testing.T) {
	s, _, coordEP := newTestServer(t)

	assign := wiremm.AssignLobby{LobbyID: 42, ExpectedPlayers: 2}
	pkt, err := wiremm.BuildPacket(wiremm.TypeAssignLobby, s.serverID, 42, assign.Encode())
	require.NoError(t, err)
	coordEP.inbox = append(coordEP.inbox, pkt)

	s.drainCoordinator()

	assert.Equal(t, uint64(42), s.currentLobby)
}

func TestServer_Heartbeat_ReportsPlayerCount(t *testing.T) {
	s, _, coordEP := newTestServer(t)

	s.sendHeartbeat()

	_, body, ok := coordEP.lastOfType(wiremm.TypeServerHeartbeat)
	require.True(t, ok)
	hb, err := wiremm.DecodeServerHeartbeat(body)
	require.NoError(t, err)
	assert.Equal(t, uint16(0), hb.CurrentPlayers)
	assert.Equal(t, uint16(10), hb.Capacity)
}

func TestServer_ReportGameEnded_OnlyWhenLobbyAssigned(t *testing.T) {
	s, _, coordEP := newTestServer(t)

	s.reportGameEnded()
	_, _, ok := coordEP.lastOfType(wiremm.TypeGameEnded)
	assert.False(t, ok, "no GameEnded should be sent without an assigned lobby")

	s.currentLobby = 7
	s.reportGameEnded()
	h, _, ok := coordEP.lastOfType(wiremm.TypeGameEnded)
	require.True(t, ok)
	assert.Equal(t, uint64(7), h.LobbyID)
}

func TestServer_NotifyPlayerDisconnected_SendsPlayerDisconnected(t *testing.T) {
	s, _, coordEP := newTestServer(t)
	s.currentLobby = 9

	s.notifyPlayerDisconnected(sessionFixture())

	h, body, ok := coordEP.lastOfType(wiremm.TypePlayerDisconnected)
	require.True(t, ok)
	assert.Equal(t, uint64(9), h.LobbyID)
	pd, err := wiremm.DecodePlayerDisconnected(body)
	require.NoError(t, err)
	assert.Equal(t, uint64(555), pd.AccountID)
	assert.Equal(t, "Hero", pd.HeroNameStr())
}
