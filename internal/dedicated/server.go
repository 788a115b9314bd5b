// Package dedicated implements a single dedicated game server process
// (C11): it composes the authoritative world (C9), the client-facing
// session manager (C10), and a control connection to the matchmaking
// coordinator — registering on startup, heartbeating while running, and
// reporting the match's outcome on shutdown.
package dedicated

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/udisondev/arenamatch/internal/arena"
	"github.com/udisondev/arenamatch/internal/config"
	"github.com/udisondev/arenamatch/internal/model"
	"github.com/udisondev/arenamatch/internal/session"
	wiremm "github.com/udisondev/arenamatch/internal/wire/matchmaking"
	"github.com/udisondev/arenamatch/internal/world"
)

// Endpoint is the subset of netutil.Endpoint the server needs.
type Endpoint interface {
	Send(addr *net.UDPAddr, payload []byte) error
	Receive() (payload []byte, from *net.UDPAddr, ok bool, err error)
	LocalAddr() *net.UDPAddr
}

// Server owns one dedicated game server process: its simulation, its
// connected clients, and its registration with the coordinator.
type Server struct {
	cfg         config.GameServer
	gameEP      Endpoint
	coordEP     Endpoint
	coordAddr   *net.UDPAddr
	serverID    uint64
	sim         *arena.ArenaWorld
	accumulator *arena.Accumulator
	sessions    *session.Manager

	startedAt     time.Time
	currentLobby  uint64
}

// NewServer wires a Server to already-bound endpoints, enabling
// per-client visibility culling against the shared region grid.
func NewServer(cfg config.GameServer, gameEP, coordEP Endpoint, coordAddr *net.UDPAddr) (*Server, error) {
	serverID, err := randomServerID()
	if err != nil {
		return nil, fmt.Errorf("dedicated: generate server id: %w", err)
	}

	sim := arena.NewArenaWorld()
	tickInterval := time.Second / time.Duration(cfg.TickRateHz)

	grid := world.Instance()
	vis := world.NewVisibilityManager(grid)
	sessions := session.NewManager(gameEP, sim, cfg.Capacity, float64(cfg.ClientTimeoutSec), grid, vis)

	s := &Server{
		cfg:         cfg,
		gameEP:      gameEP,
		coordEP:     coordEP,
		coordAddr:   coordAddr,
		serverID:    serverID,
		sim:         sim,
		accumulator: arena.NewAccumulator(tickInterval, sim),
		sessions:    sessions,
	}
	sessions.OnDisconnect = s.notifyPlayerDisconnected
	return s, nil
}

func randomServerID() (uint64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// Run registers with the coordinator, drains both sockets and advances
// the simulation until ctx is cancelled, then reports the match's end.
func (s *Server) Run(ctx context.Context) error {
	s.startedAt = time.Now()
	if err := s.register(); err != nil {
		return fmt.Errorf("dedicated: register: %w", err)
	}
	slog.Info("dedicated: registered with coordinator", "serverId", s.serverID, "capacity", s.cfg.Capacity)

	tickInterval := time.Second / time.Duration(s.cfg.TickRateHz)
	heartbeatInterval := time.Duration(s.cfg.HeartbeatSec) * time.Second
	lastLoop := time.Now()
	lastHeartbeat := time.Now()

	for {
		select {
		case <-ctx.Done():
			s.reportGameEnded()
			return nil
		default:
		}

		now := time.Now()
		realDelta := now.Sub(lastLoop)
		lastLoop = now

		s.drainCoordinator()
		if err := s.sessions.DrainClients(); err != nil {
			slog.Error("dedicated: drain clients failed", "err", err)
		}

		ticks := s.accumulator.Step(realDelta)
		for range ticks {
			s.sessions.Tick(tickInterval.Seconds())
		}

		if now.Sub(lastHeartbeat) >= heartbeatInterval {
			s.sendHeartbeat()
			lastHeartbeat = now
		}

		time.Sleep(time.Millisecond)
	}
}

func (s *Server) register() error {
	ip, port := s.advertiseAddr()
	reg := wiremm.NewServerRegister(s.serverID, ip, port, uint16(s.cfg.Capacity))
	buf, err := wiremm.BuildPacket(wiremm.TypeServerRegister, s.serverID, 0, reg.Encode())
	if err != nil {
		return err
	}
	return s.coordEP.Send(s.coordAddr, buf)
}

// advertiseAddr returns the host:port clients should connect to, taken
// from the bound game endpoint's local address.
func (s *Server) advertiseAddr() (string, uint16) {
	addr := s.gameEP.LocalAddr()
	return addr.IP.String(), uint16(addr.Port)
}

func (s *Server) drainCoordinator() {
	for {
		payload, _, ok, err := s.coordEP.Receive()
		if err != nil {
			slog.Error("dedicated: coordinator receive failed", "err", err)
			return
		}
		if !ok {
			return
		}
		s.handleCoordinatorPacket(payload)
	}
}

func (s *Server) handleCoordinatorPacket(payload []byte) {
	h, body, err := wiremm.ParsePacket(payload)
	if err != nil {
		slog.Warn("dedicated: dropping malformed coordinator packet", "err", err)
		return
	}
	if h.Type != wiremm.TypeAssignLobby {
		return
	}
	assign, err := wiremm.DecodeAssignLobby(body)
	if err != nil {
		slog.Warn("dedicated: malformed AssignLobby", "err", err)
		return
	}
	s.currentLobby = assign.LobbyID
	slog.Info("dedicated: lobby assigned", "lobbyId", assign.LobbyID, "expectedPlayers", assign.ExpectedPlayers)
}

func (s *Server) sendHeartbeat() {
	hb := wiremm.ServerHeartbeat{
		ServerID:       s.serverID,
		CurrentPlayers: uint16(s.sessions.Count()),
		Capacity:       uint16(s.cfg.Capacity),
		UptimeSec:      uint32(time.Since(s.startedAt).Seconds()),
	}
	buf, err := wiremm.BuildPacket(wiremm.TypeServerHeartbeat, s.serverID, s.currentLobby, hb.Encode())
	if err != nil {
		slog.Error("dedicated: build heartbeat failed", "err", err)
		return
	}
	if err := s.coordEP.Send(s.coordAddr, buf); err != nil {
		slog.Warn("dedicated: send heartbeat failed", "err", err)
	}
}

// notifyPlayerDisconnected reports a mid-match disconnect (explicit or
// by timeout) to the coordinator, so its active-game directory can mark
// the player reconnectable.
func (s *Server) notifyPlayerDisconnected(sess model.ClientSession) {
	pd := wiremm.NewPlayerDisconnected(sess.AccountID, sess.TeamSlot, sess.HeroName)
	buf, err := wiremm.BuildPacket(wiremm.TypePlayerDisconnected, s.serverID, s.currentLobby, pd.Encode())
	if err != nil {
		slog.Error("dedicated: build PlayerDisconnected failed", "err", err)
		return
	}
	if err := s.coordEP.Send(s.coordAddr, buf); err != nil {
		slog.Warn("dedicated: send PlayerDisconnected failed", "err", err)
	}
}

// reportGameEnded tells the coordinator the match is over, if a lobby
// was ever assigned to this server.
func (s *Server) reportGameEnded() {
	if s.currentLobby == 0 {
		return
	}
	ended := wiremm.GameEnded{WinningTeam: 0, GameDurationSec: uint32(time.Since(s.startedAt).Seconds())}
	buf, err := wiremm.BuildPacket(wiremm.TypeGameEnded, s.serverID, s.currentLobby, ended.Encode())
	if err != nil {
		slog.Error("dedicated: build GameEnded failed", "err", err)
		return
	}
	if err := s.coordEP.Send(s.coordAddr, buf); err != nil {
		slog.Warn("dedicated: send GameEnded failed", "err", err)
	}
}
