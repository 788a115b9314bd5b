// Package session implements a dedicated game server's client-facing
// half (C10): the connection handshake, per-client input/ping handling,
// input-timeout eviction, and the per-tick snapshot broadcast. It is
// grounded on the same owning-struct shape the matchmaking and arena
// packages use — a single-goroutine manager driven by its caller's tick
// loop, not by its own background goroutines.
package session

import (
	"fmt"
	"log/slog"
	"net"

	"github.com/udisondev/arenamatch/internal/arena"
	"github.com/udisondev/arenamatch/internal/model"
	wiregame "github.com/udisondev/arenamatch/internal/wire/game"
	"github.com/udisondev/arenamatch/internal/world"
)

// Endpoint is the narrow transport the manager drives connected clients
// through.
type Endpoint interface {
	Send(addr *net.UDPAddr, payload []byte) error
	Receive() (payload []byte, from *net.UDPAddr, ok bool, err error)
}

// gridScale converts the arena simulation's small float32 coordinates
// into the region grid's much larger integer coordinate space, so a
// lobby's handful of entities still land in distinct, meaningfully-sized
// regions instead of collapsing into a single cell.
const gridScale = 100

// Manager owns every connected client on one dedicated game server.
type Manager struct {
	ep         Endpoint
	sim        arena.TickState
	grid       *world.World              // nil disables visibility culling
	vis        *world.VisibilityManager  // nil disables visibility culling
	capacity   int
	timeoutSec float64

	sessions map[model.ClientID]*model.ClientSession
	byAddr   map[string]model.ClientID
	addrOf   map[model.ClientID]*net.UDPAddr
	nextID   uint32
	outSeq   uint32

	// OnDisconnect fires after a client's world entity has been removed
	// and its address mapping freed, whether by explicit Disconnect or by
	// input timeout. The owning dedicated-server process wires this to
	// notify the coordinator with PlayerDisconnected.
	OnDisconnect func(sess model.ClientSession)
}

// NewManager returns a manager with no connected clients. vis may be nil
// to skip visibility culling and broadcast the full snapshot to every
// client.
func NewManager(ep Endpoint, sim arena.TickState, capacity int, timeoutSec float64, grid *world.World, vis *world.VisibilityManager) *Manager {
	return &Manager{
		ep:         ep,
		sim:        sim,
		grid:       grid,
		vis:        vis,
		capacity:   capacity,
		timeoutSec: timeoutSec,
		sessions:   make(map[model.ClientID]*model.ClientSession),
		byAddr:     make(map[string]model.ClientID),
		addrOf:     make(map[model.ClientID]*net.UDPAddr),
	}
}

// Count returns the number of connected clients.
func (m *Manager) Count() int { return len(m.sessions) }

// DrainClients processes every pending packet on the client endpoint.
func (m *Manager) DrainClients() error {
	for {
		payload, from, ok, err := m.ep.Receive()
		if err != nil {
			return fmt.Errorf("session: receive: %w", err)
		}
		if !ok {
			return nil
		}
		m.handlePacket(payload, from)
	}
}

func (m *Manager) handlePacket(payload []byte, from *net.UDPAddr) {
	h, body, err := wiregame.ParsePacket(payload)
	if err != nil {
		slog.Warn("session: dropping malformed packet", "from", from, "error", err)
		return
	}

	switch h.Type {
	case wiregame.TypeConnectionRequest:
		m.handleConnectionRequest(body, from)
	case wiregame.TypeClientInput:
		m.handleClientInput(h, body, from)
	case wiregame.TypePing:
		m.handlePing(h, from)
	case wiregame.TypeDisconnect:
		m.handleClientDisconnect(from)
	default:
		slog.Warn("session: unexpected packet type", "type", h.Type, "from", from)
	}
}

func (m *Manager) handleConnectionRequest(body []byte, from *net.UDPAddr) {
	req, err := wiregame.DecodeConnectionRequest(body)
	if err != nil {
		slog.Warn("session: malformed ConnectionRequest", "error", err)
		return
	}

	if _, known := m.byAddr[from.String()]; known {
		return // idempotent: already connected from this address
	}

	if len(m.sessions) >= m.capacity {
		m.reply(wiregame.TypeConnectionRejected, from, wiregame.NewConnectionRejected("server full").Encode())
		return
	}

	m.nextID++
	clientID := model.ClientID(m.nextID)

	sess := &model.ClientSession{
		ClientID:   clientID,
		AccountID:  req.AccountID,
		Username:   req.UsernameStr(),
		RemoteAddr: from.String(),
		HeroName:   req.UsernameStr(),
		TeamSlot:   uint8(clientID % 2),
	}
	m.sessions[clientID] = sess
	m.byAddr[from.String()] = clientID
	m.addrOf[clientID] = from
	m.sim.AddClient(clientID)

	slog.Info("session: client connected", "clientId", clientID, "accountId", req.AccountID, "from", from)
	m.reply(wiregame.TypeConnectionAccepted, from, wiregame.ConnectionAccepted{AssignedClientID: uint32(clientID)}.Encode())
}

func (m *Manager) handleClientInput(h wiregame.Header, body []byte, from *net.UDPAddr) {
	clientID, ok := m.byAddr[from.String()]
	if !ok {
		return
	}
	input, err := wiregame.DecodeClientInput(body)
	if err != nil {
		slog.Warn("session: malformed ClientInput", "clientId", clientID, "error", err)
		return
	}

	sess := m.sessions[clientID]
	sess.SecSinceInput = 0
	sess.LastReceivedInputSeq = h.Sequence

	m.sim.ApplyInput(clientID, model.PlayerInput{
		ClientID: clientID,
		Sequence: h.Sequence,
		MoveX:    input.MoveX,
		MoveY:    input.MoveY,
		Actions:  input.Actions,
	})
}

func (m *Manager) handlePing(h wiregame.Header, from *net.UDPAddr) {
	clientID, ok := m.byAddr[from.String()]
	if !ok {
		return
	}
	m.sessions[clientID].SecSinceInput = 0
	pkt, err := wiregame.BuildPacket(wiregame.TypePong, h.Sequence, nil)
	if err != nil {
		slog.Error("session: build Pong", "error", err)
		return
	}
	if err := m.ep.Send(from, pkt); err != nil {
		slog.Warn("session: send Pong", "clientId", clientID, "error", err)
	}
}

func (m *Manager) handleClientDisconnect(from *net.UDPAddr) {
	clientID, ok := m.byAddr[from.String()]
	if !ok {
		return
	}
	m.evict(clientID)
}

// Tick ages every connected client's input timer by dt seconds, evicting
// anyone who has exceeded timeoutSec, then broadcasts the current world
// snapshot to everyone still connected.
func (m *Manager) Tick(dt float64) {
	var timedOut []model.ClientID
	for clientID, sess := range m.sessions {
		sess.SecSinceInput += dt
		if sess.SecSinceInput > m.timeoutSec {
			timedOut = append(timedOut, clientID)
		}
	}
	for _, clientID := range timedOut {
		slog.Warn("session: client timed out", "clientId", clientID)
		m.evict(clientID)
	}

	m.broadcast()
}

// evict removes a client's world entity, frees its address mapping, and
// notifies OnDisconnect with its last-known identity.
func (m *Manager) evict(clientID model.ClientID) {
	sess, ok := m.sessions[clientID]
	if !ok {
		return
	}
	m.sim.RemoveClient(clientID)
	delete(m.byAddr, sess.RemoteAddr)
	delete(m.addrOf, clientID)
	delete(m.sessions, clientID)

	if m.OnDisconnect != nil {
		m.OnDisconnect(*sess)
	}
}

func (m *Manager) broadcast() {
	if len(m.sessions) == 0 {
		return
	}
	snap := m.sim.Snapshot()

	if m.grid != nil && m.vis != nil {
		m.syncGrid(snap)
	}

	for clientID, sess := range m.sessions {
		addr := m.addrOf[clientID]
		if addr == nil {
			continue
		}
		local := snap
		local.LastProcessedInput = sess.LastReceivedInputSeq
		if m.grid != nil && m.vis != nil {
			local.Entities = m.cull(snap, clientID)
		}
		wire := wiregame.FromModelSnapshot(local)
		m.reply(wiregame.TypeWorldSnapshot, addr, wire.Encode())
	}
}

// syncGrid republishes every owned entity's current position into the
// region grid so the next cull reflects this tick's movement.
func (m *Manager) syncGrid(snap model.WorldSnapshot) {
	for _, e := range snap.Entities {
		m.grid.RemoveObject(e.NetworkID)
		loc := model.NewLocation(int32(e.PosX*gridScale), int32(e.PosY*gridScale))
		obj := model.NewWorldObject(e.NetworkID, "", loc)
		obj.OwnerClientID = e.OwnerClientID
		_ = m.grid.AddObject(obj) // out-of-bounds entities simply drop out of every client's visible set
	}
}

// cull returns the subset of snap's entities visible from clientId's
// entity, always including clientId's own entity regardless of distance.
func (m *Manager) cull(snap model.WorldSnapshot, clientID model.ClientID) []model.EntitySnapshot {
	var selfX, selfY float32
	for _, e := range snap.Entities {
		if e.HasOwner && e.OwnerClientID == clientID {
			selfX, selfY = e.PosX, e.PosY
			break
		}
	}

	visible := m.vis.VisibleObjectIDs(int32(selfX*gridScale), int32(selfY*gridScale))
	allowed := make(map[uint32]bool, len(visible))
	for _, id := range visible {
		allowed[id] = true
	}

	out := make([]model.EntitySnapshot, 0, len(snap.Entities))
	for _, e := range snap.Entities {
		if allowed[e.NetworkID] || (e.HasOwner && e.OwnerClientID == clientID) {
			out = append(out, e)
		}
	}
	return out
}

func (m *Manager) reply(typ wiregame.MessageType, to *net.UDPAddr, payload []byte) {
	m.outSeq++
	pkt, err := wiregame.BuildPacket(typ, m.outSeq, payload)
	if err != nil {
		slog.Error("session: build packet", "type", typ, "error", err)
		return
	}
	if err := m.ep.Send(to, pkt); err != nil {
		slog.Warn("session: send", "type", typ, "to", to, "error", err)
	}
}
