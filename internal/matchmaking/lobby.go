package matchmaking

import (
	"math/rand"

	"github.com/udisondev/arenamatch/internal/model"
)

const defaultAcceptTimeoutSec = 20

// LobbyManager owns every in-flight Lobby, keyed by lobbyId, and runs the
// accept-protocol state machine described for C6.
type LobbyManager struct {
	lobbies map[uint64]*model.Lobby
	rng     *rand.Rand
}

// NewLobbyManager returns an empty lobby manager. rng is used only to
// mint lobbyIds; pass a seeded generator in tests for determinism.
func NewLobbyManager(rng *rand.Rand) *LobbyManager {
	return &LobbyManager{lobbies: make(map[uint64]*model.Lobby), rng: rng}
}

// Form creates a new Lobby in the Accepting state from exactly len(players)
// queued players, keyed by a freshly minted random lobbyId.
func (m *LobbyManager) Form(players []*model.QueuedPlayer, mode, region uint8) *model.Lobby {
	lobby := &model.Lobby{
		LobbyID:          m.rng.Uint64(),
		Mode:             mode,
		Region:           region,
		AccountByPlayer:  make(map[uint64]uint64, len(players)),
		Accepted:         make(map[uint64]bool, len(players)),
		AcceptTimeoutSec: defaultAcceptTimeoutSec,
		State:            model.LobbyAccepting,
	}
	for _, p := range players {
		lobby.Players = append(lobby.Players, p.PlayerID)
		lobby.AccountByPlayer[p.PlayerID] = p.AccountID
		lobby.Accepted[p.PlayerID] = false
	}
	m.lobbies[lobby.LobbyID] = lobby
	return lobby
}

// Get returns the lobby for lobbyId, or nil.
func (m *LobbyManager) Get(lobbyID uint64) *model.Lobby {
	return m.lobbies[lobbyID]
}

// Remove drops a lobby from the manager once it has resolved (started or
// cancelled).
func (m *LobbyManager) Remove(lobbyID uint64) {
	delete(m.lobbies, lobbyID)
}

// Accept marks playerId as accepted in its lobby. Repeated accepts from
// the same player are a no-op beyond the first. Returns the lobby and
// whether every member has now accepted.
func (m *LobbyManager) Accept(lobbyID, playerID uint64) (lobby *model.Lobby, allAccepted bool) {
	lobby = m.lobbies[lobbyID]
	if lobby == nil || lobby.State != model.LobbyAccepting {
		return lobby, false
	}
	if _, member := lobby.Accepted[playerID]; !member {
		return lobby, false
	}
	lobby.Accepted[playerID] = true
	if lobby.AllAccepted() {
		lobby.State = model.LobbyReady
		return lobby, true
	}
	return lobby, false
}

// Decline transitions a lobby to Cancelled because playerId declined.
func (m *LobbyManager) Decline(lobbyID, playerID uint64) *model.Lobby {
	lobby := m.lobbies[lobbyID]
	if lobby == nil {
		return nil
	}
	lobby.State = model.LobbyCancelled
	return lobby
}

// AcceptedCount returns how many members of the lobby have accepted so
// far, for MatchAcceptStatus broadcasts.
func AcceptedCount(lobby *model.Lobby) int {
	n := 0
	for _, ok := range lobby.Accepted {
		if ok {
			n++
		}
	}
	return n
}

// AdvanceAccepting ages every Accepting lobby by dt and returns those
// whose accept timeout has elapsed, transitioning them to Cancelled.
func (m *LobbyManager) AdvanceAccepting(dt float64) []*model.Lobby {
	var timedOut []*model.Lobby
	for _, lobby := range m.lobbies {
		if lobby.State != model.LobbyAccepting {
			continue
		}
		lobby.AgeSec += dt
		if lobby.AgeSec >= lobby.AcceptTimeoutSec {
			lobby.State = model.LobbyCancelled
			timedOut = append(timedOut, lobby)
		}
	}
	return timedOut
}

// RequeueTargets computes, for a Cancelled lobby, which players should be
// returned to the queue: those who had accepted, except the one who
// declined (declinedBy is zero when the cancellation was a timeout, in
// which case every accepter requeues).
func RequeueTargets(lobby *model.Lobby, declinedBy uint64) map[uint64]bool {
	targets := make(map[uint64]bool, len(lobby.Players))
	for _, playerID := range lobby.Players {
		targets[playerID] = lobby.Accepted[playerID] && playerID != declinedBy
	}
	return targets
}
