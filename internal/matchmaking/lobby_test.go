package matchmaking

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/arenamatch/internal/model"
)

func twoPlayers() []*model.QueuedPlayer {
	return []*model.QueuedPlayer{
		{PlayerID: 1, AccountID: 100},
		{PlayerID: 2, AccountID: 200},
	}
}

func TestLobbyManager_Form_InitializesAcceptingState(t *testing.T) {
	m := NewLobbyManager(rand.New(rand.NewSource(1)))
	lobby := m.Form(twoPlayers(), 0, 0)

	assert.Equal(t, model.LobbyAccepting, lobby.State)
	assert.Len(t, lobby.Players, 2)
	assert.False(t, lobby.AllAccepted())
	assert.Equal(t, uint64(100), lobby.AccountByPlayer[1])
}

func TestLobbyManager_Accept_AllAcceptedTransitionsReady(t *testing.T) {
	m := NewLobbyManager(rand.New(rand.NewSource(1)))
	lobby := m.Form(twoPlayers(), 0, 0)

	_, allAccepted := m.Accept(lobby.LobbyID, 1)
	assert.False(t, allAccepted)

	_, allAccepted = m.Accept(lobby.LobbyID, 2)
	assert.True(t, allAccepted)
	assert.Equal(t, model.LobbyReady, lobby.State)
}

func TestLobbyManager_Accept_RepeatedIsNoOp(t *testing.T) {
	m := NewLobbyManager(rand.New(rand.NewSource(1)))
	lobby := m.Form(twoPlayers(), 0, 0)

	m.Accept(lobby.LobbyID, 1)
	m.Accept(lobby.LobbyID, 1)
	assert.Equal(t, 1, AcceptedCount(lobby))
}

func TestLobbyManager_Decline_Cancels(t *testing.T) {
	m := NewLobbyManager(rand.New(rand.NewSource(1)))
	lobby := m.Form(twoPlayers(), 0, 0)
	m.Accept(lobby.LobbyID, 1)

	m.Decline(lobby.LobbyID, 2)
	assert.Equal(t, model.LobbyCancelled, lobby.State)

	targets := RequeueTargets(lobby, 2)
	assert.True(t, targets[1])
	assert.False(t, targets[2])
}

func TestLobbyManager_AdvanceAccepting_TimesOut(t *testing.T) {
	m := NewLobbyManager(rand.New(rand.NewSource(1)))
	lobby := m.Form(twoPlayers(), 0, 0)
	lobby.AcceptTimeoutSec = 1

	assert.Empty(t, m.AdvanceAccepting(0.5))
	timedOut := m.AdvanceAccepting(0.6)
	require.Len(t, timedOut, 1)
	assert.Equal(t, model.LobbyCancelled, timedOut[0].State)
}

func TestRequeueTargets_TimeoutRequeuesAllAccepters(t *testing.T) {
	m := NewLobbyManager(rand.New(rand.NewSource(1)))
	lobby := m.Form(twoPlayers(), 0, 0)
	m.Accept(lobby.LobbyID, 1)
	lobby.State = model.LobbyCancelled

	targets := RequeueTargets(lobby, 0)
	assert.True(t, targets[1])
	assert.False(t, targets[2])
}
