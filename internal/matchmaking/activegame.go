package matchmaking

import "github.com/udisondev/arenamatch/internal/model"

// ActiveGameDirectory is the reconnect authority (C7): it is the only
// place that knows which server/lobby/slot an account belongs to while a
// match is in progress, keyed strictly by accountId (never playerId).
type ActiveGameDirectory struct {
	byAccount map[uint64]*model.ActiveGameRecord
}

// NewActiveGameDirectory returns an empty directory.
func NewActiveGameDirectory() *ActiveGameDirectory {
	return &ActiveGameDirectory{byAccount: make(map[uint64]*model.ActiveGameRecord)}
}

// Start records a fresh assignment as a match begins; its game clock
// starts at zero and accumulates via AdvanceGameTime.
func (d *ActiveGameDirectory) Start(accountID, lobbyID, serverID uint64, serverIP string, serverPort uint16, teamSlot uint8, heroName string) {
	d.byAccount[accountID] = &model.ActiveGameRecord{
		AccountID:     accountID,
		LobbyID:       lobbyID,
		ServerID:      serverID,
		ServerIP:      serverIP,
		ServerPort:    serverPort,
		TeamSlot:      teamSlot,
		HeroName:      heroName,
		GameStartTime: 0,
	}
}

// OnPlayerDisconnected upserts a record marking accountId as disconnected
// from lobbyId at disconnectTime (server uptime seconds). If no record
// exists yet (e.g. the coordinator restarted), it creates one from the
// fields the dedicated server reports.
func (d *ActiveGameDirectory) OnPlayerDisconnected(serverID, lobbyID, accountID uint64, teamSlot uint8, heroName string, disconnectTime float64) {
	rec, ok := d.byAccount[accountID]
	if !ok {
		rec = &model.ActiveGameRecord{AccountID: accountID, LobbyID: lobbyID, ServerID: serverID, TeamSlot: teamSlot, HeroName: heroName}
		d.byAccount[accountID] = rec
	}
	rec.IsDisconnected = true
	rec.DisconnectTime = disconnectTime
}

// OnPlayerReconnected clears the disconnected marker if the record
// matches lobbyId.
func (d *ActiveGameDirectory) OnPlayerReconnected(accountID, lobbyID uint64) {
	rec, ok := d.byAccount[accountID]
	if !ok || rec.LobbyID != lobbyID {
		return
	}
	rec.IsDisconnected = false
	rec.DisconnectTime = 0
}

// OnGameEnded removes every record belonging to lobbyId.
func (d *ActiveGameDirectory) OnGameEnded(lobbyID uint64) {
	for accountID, rec := range d.byAccount {
		if rec.LobbyID == lobbyID {
			delete(d.byAccount, accountID)
		}
	}
}

// Get returns the raw record for accountId regardless of its
// disconnected state, or nil if the account has no active game.
func (d *ActiveGameDirectory) Get(accountID uint64) *model.ActiveGameRecord {
	return d.byAccount[accountID]
}

// Lookup returns the disconnected record for accountId, or nil if the
// account has no active game or has not disconnected (CheckActiveGame
// only surfaces pending reconnects).
func (d *ActiveGameDirectory) Lookup(accountID uint64) *model.ActiveGameRecord {
	rec, ok := d.byAccount[accountID]
	if !ok || !rec.IsDisconnected {
		return nil
	}
	return rec
}

// Approve validates a ReconnectRequest against the stored record: the
// (accountId, lobbyId) pair must match a disconnected record. Returns
// nil if the request doesn't correspond to a pending reconnect.
func (d *ActiveGameDirectory) Approve(accountID, lobbyID uint64) *model.ActiveGameRecord {
	rec, ok := d.byAccount[accountID]
	if !ok || !rec.IsDisconnected || rec.LobbyID != lobbyID {
		return nil
	}
	return rec
}

// AdvanceGameTime ages every tracked record's game clock by dt, called
// once per coordinator tick regardless of connection state.
func (d *ActiveGameDirectory) AdvanceGameTime(dt float64) {
	for _, rec := range d.byAccount {
		rec.GameStartTime += dt
	}
}

// Count returns the number of tracked accounts, live or disconnected.
func (d *ActiveGameDirectory) Count() int {
	return len(d.byAccount)
}
