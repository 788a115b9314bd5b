package matchmaking

import (
	"context"
	"log/slog"
	"math/rand"
	"net"
	"time"

	"github.com/udisondev/arenamatch/internal/config"
	"github.com/udisondev/arenamatch/internal/model"
	"github.com/udisondev/arenamatch/internal/registry"
	wireauth "github.com/udisondev/arenamatch/internal/wire/auth"
	wiremm "github.com/udisondev/arenamatch/internal/wire/matchmaking"
)

// Endpoint is the subset of netutil.Endpoint the coordinator needs.
type Endpoint interface {
	Send(addr *net.UDPAddr, payload []byte) error
	Receive() (payload []byte, from *net.UDPAddr, ok bool, err error)
}

const requiredPlayersDefault = 2

// Coordinator composes C2 (two endpoints: clients/servers, and a private
// channel to the auth service), C5, C6, C7, and performs asynchronous
// token validation against C4.
//
// Server-originated control packets (PlayerDisconnected, GameEnded) have
// no dedicated serverId field on the wire; by convention this coordinator
// reads that value out of the matchmaking header's PlayerID field, which
// is otherwise meaningless for server-to-coordinator traffic.
type Coordinator struct {
	cfg      config.Coordinator
	ep       Endpoint
	authEP   Endpoint
	authAddr *net.UDPAddr

	registry *registry.Registry
	queue    *Queue
	lobbies  *LobbyManager
	active   *ActiveGameDirectory

	playerAddr map[uint64]*net.UDPAddr
	lastTick   time.Time
	startedAt  time.Time
}

// NewCoordinator wires a Coordinator to already-bound endpoints.
func NewCoordinator(cfg config.Coordinator, ep, authEP Endpoint, authAddr *net.UDPAddr) *Coordinator {
	return &Coordinator{
		cfg:        cfg,
		ep:         ep,
		authEP:     authEP,
		authAddr:   authAddr,
		registry:   registry.New(time.Duration(cfg.ServerHeartbeatTTLSec) * time.Second),
		queue:      NewQueue(),
		lobbies:    NewLobbyManager(rand.New(rand.NewSource(time.Now().UnixNano()))),
		active:     NewActiveGameDirectory(),
		playerAddr: make(map[uint64]*net.UDPAddr),
		lastTick:   time.Now(),
		startedAt:  time.Now(),
	}
}

// uptime returns the coordinator's elapsed running time in seconds,
// mirroring dedicated.Server's startedAt-based UptimeSec.
func (c *Coordinator) uptime() float64 {
	return time.Since(c.startedAt).Seconds()
}

// Run drains both sockets and advances every timer until ctx is
// cancelled.
func (c *Coordinator) Run(ctx context.Context) error {
	c.lastTick = time.Now()
	interval := time.Duration(c.cfg.TickIntervalMs) * time.Millisecond
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		c.drainClients()
		c.drainAuth()
		c.tick()
		time.Sleep(interval)
	}
}

func (c *Coordinator) drainClients() {
	for {
		payload, from, ok, err := c.ep.Receive()
		if err != nil {
			slog.Error("coordinator: receive failed", "err", err)
			return
		}
		if !ok {
			return
		}
		c.handleClientPacket(payload, from)
	}
}

func (c *Coordinator) drainAuth() {
	for {
		payload, _, ok, err := c.authEP.Receive()
		if err != nil {
			slog.Error("coordinator: auth receive failed", "err", err)
			return
		}
		if !ok {
			return
		}
		c.handleAuthReply(payload)
	}
}

func (c *Coordinator) tick() {
	now := time.Now()
	dt := now.Sub(c.lastTick).Seconds()
	c.lastTick = now

	for _, pv := range c.queue.AdvancePending(dt) {
		c.rejectPlayer(pv.PlayerID, pv.PlayerAddr, true, false, "Auth timeout")
	}
	c.queue.AdvanceSearchTime(dt)
	c.tryFormLobby()

	for _, lobby := range c.lobbies.AdvanceAccepting(dt) {
		c.cancelLobby(lobby, 0, "Accept timeout", true)
	}

	c.active.AdvanceGameTime(dt)
	c.registry.Evict()
}

func (c *Coordinator) reply(to *net.UDPAddr, typ wiremm.MessageType, playerID, lobbyID uint64, payload []byte) {
	buf, err := wiremm.BuildPacket(typ, playerID, lobbyID, payload)
	if err != nil {
		slog.Error("coordinator: build packet failed", "err", err)
		return
	}
	if err := c.ep.Send(to, buf); err != nil {
		slog.Warn("coordinator: send failed", "err", err)
	}
}

func (c *Coordinator) handleClientPacket(payload []byte, from *net.UDPAddr) {
	h, body, err := wiremm.ParsePacket(payload)
	if err != nil {
		return
	}
	switch h.Type {
	case wiremm.TypeQueueRequest:
		c.handleQueueRequest(h, body, from)
	case wiremm.TypeQueueCancel:
		c.handleQueueCancel(h.PlayerID)
	case wiremm.TypeMatchAccept:
		c.handleMatchAccept(h.LobbyID, h.PlayerID)
	case wiremm.TypeMatchDecline:
		c.handleMatchDecline(h.LobbyID, h.PlayerID)
	case wiremm.TypeServerRegister:
		c.handleServerRegister(body, from)
	case wiremm.TypeServerHeartbeat:
		c.handleServerHeartbeat(body)
	case wiremm.TypePlayerDisconnected:
		c.handlePlayerDisconnected(h, body)
	case wiremm.TypePlayerReconnected:
		c.handlePlayerReconnected(body, h.LobbyID)
	case wiremm.TypeGameEnded:
		c.active.OnGameEnded(h.LobbyID)
	case wiremm.TypeCheckActiveGame:
		c.handleCheckActiveGame(body, from)
	case wiremm.TypeReconnectRequest:
		c.handleReconnectRequest(body, from)
	default:
		// unknown types dropped silently per the wire contract
	}
}

func (c *Coordinator) handleQueueRequest(h wiremm.Header, body []byte, from *net.UDPAddr) {
	req, err := wiremm.DecodeQueueRequest(body)
	if err != nil {
		return
	}
	playerID := h.PlayerID
	c.playerAddr[playerID] = from

	token := req.SessionTokenStr()
	if token == "" {
		c.rejectPlayer(playerID, from, true, false, "Authentication required")
		return
	}
	if c.queue.IsKnown(playerID) {
		return // idempotent: already queued or pending
	}

	reqID := c.queue.BeginValidation(playerID, from, req.Mode, req.Region, token)
	vreq := wireauth.NewValidateTokenRequest(token)
	buf, err := wireauth.BuildPacket(wireauth.TypeValidateTokenRequest, 0, reqID, vreq.Encode())
	if err != nil {
		slog.Error("coordinator: build validate request failed", "err", err)
		return
	}
	if err := c.authEP.Send(c.authAddr, buf); err != nil {
		slog.Warn("coordinator: send to auth failed", "err", err)
	}
}

func (c *Coordinator) handleAuthReply(payload []byte) {
	h, body, err := wireauth.ParsePacket(payload)
	if err != nil || h.Type != wireauth.TypeValidateTokenResponse {
		return
	}
	resp, err := wireauth.DecodeValidateTokenResponse(body)
	if err != nil {
		return
	}

	pv := c.queue.ResolveValidation(h.RequestID)
	if pv == nil {
		return // already timed out, or a stale/duplicate reply
	}

	switch {
	case resp.Result == wireauth.TokenExpired:
		c.rejectPlayer(pv.PlayerID, pv.PlayerAddr, true, false, "Session expired")
	case resp.Result != wireauth.Success:
		c.rejectPlayer(pv.PlayerID, pv.PlayerAddr, true, false, "Invalid session")
	case resp.IsBanned == 1:
		c.rejectPlayer(pv.PlayerID, pv.PlayerAddr, true, true, "Account is banned")
	default:
		c.queue.Admit(pv, resp.AccountID)
		confirm := wiremm.QueueConfirm{AccountID: resp.AccountID}
		c.reply(pv.PlayerAddr, wiremm.TypeQueueConfirm, pv.PlayerID, 0, confirm.Encode())
	}
}

func (c *Coordinator) rejectPlayer(playerID uint64, addr *net.UDPAddr, authFailed, isBanned bool, reason string) {
	rej := wiremm.NewQueueRejected(authFailed, isBanned, reason)
	c.reply(addr, wiremm.TypeQueueRejected, playerID, 0, rej.Encode())
}

func (c *Coordinator) handleQueueCancel(playerID uint64) {
	if c.queue.CancelPending(playerID) {
		return
	}
	c.queue.Remove(playerID)
}

func (c *Coordinator) tryFormLobby() {
	required := requiredPlayersDefault
	if c.cfg.RequiredPlayers > 0 {
		required = c.cfg.RequiredPlayers
	}
	players := c.queue.TakeFront(required)
	if players == nil {
		return
	}
	mode, region := players[0].Mode, players[0].Region
	lobby := c.lobbies.Form(players, mode, region)

	found := wiremm.MatchFound{RequiredPlayers: uint8(required), AcceptTimeoutSec: uint8(defaultAcceptTimeoutSec)}
	c.broadcastLobby(lobby, wiremm.TypeMatchFound, found.Encode())
	c.broadcastAcceptStatus(lobby)
}

func (c *Coordinator) broadcastLobby(lobby *model.Lobby, typ wiremm.MessageType, payload []byte) {
	for _, playerID := range lobby.Players {
		if addr := c.playerAddr[playerID]; addr != nil {
			c.reply(addr, typ, playerID, lobby.LobbyID, payload)
		}
	}
}

func (c *Coordinator) broadcastAcceptStatus(lobby *model.Lobby) {
	status := wiremm.MatchAcceptStatus{AcceptedCount: uint8(AcceptedCount(lobby)), RequiredCount: uint8(len(lobby.Players))}
	c.broadcastLobby(lobby, wiremm.TypeMatchAcceptStatus, status.Encode())
}

func (c *Coordinator) handleMatchAccept(lobbyID, playerID uint64) {
	lobby, allAccepted := c.lobbies.Accept(lobbyID, playerID)
	if lobby == nil {
		return
	}
	c.broadcastAcceptStatus(lobby)
	if allAccepted {
		c.startMatch(lobby)
	}
}

func (c *Coordinator) handleMatchDecline(lobbyID, playerID uint64) {
	lobby := c.lobbies.Decline(lobbyID, playerID)
	if lobby == nil {
		return
	}
	c.cancelLobby(lobby, playerID, "Player declined", true)
}

// cancelLobby sends MatchCancelled to every member and removes the lobby.
// When requeue is true, accepters other than declinedBy go back to the
// queue; when false, nobody is requeued.
func (c *Coordinator) cancelLobby(lobby *model.Lobby, declinedBy uint64, reason string, requeue bool) {
	targets := RequeueTargets(lobby, declinedBy)
	if !requeue {
		targets = map[uint64]bool{}
	}
	for _, playerID := range lobby.Players {
		shouldRequeue := targets[playerID]
		msg := wiremm.NewMatchCancelled(reason, declinedBy, shouldRequeue)
		c.reply(c.playerAddr[playerID], wiremm.TypeMatchCancelled, playerID, lobby.LobbyID, msg.Encode())
	}
	for _, qp := range c.dequeuedLobbyPlayers(lobby) {
		if targets[qp.PlayerID] {
			c.queue.Requeue(qp)
		}
	}
	c.lobbies.Remove(lobby.LobbyID)
}

// dequeuedLobbyPlayers reconstructs QueuedPlayer values for a lobby's
// members so cancelLobby can requeue them; lobby members were already
// dequeued when the lobby formed, so the queue itself no longer has
// their entries.
func (c *Coordinator) dequeuedLobbyPlayers(lobby *model.Lobby) []*model.QueuedPlayer {
	out := make([]*model.QueuedPlayer, 0, len(lobby.Players))
	for _, playerID := range lobby.Players {
		out = append(out, &model.QueuedPlayer{
			PlayerID:  playerID,
			AccountID: lobby.AccountByPlayer[playerID],
			Mode:      lobby.Mode,
			Region:    lobby.Region,
			Addr:      c.playerAddr[playerID],
		})
	}
	return out
}

func (c *Coordinator) startMatch(lobby *model.Lobby) {
	server := c.registry.PickServer()
	if server == nil {
		c.cancelLobby(lobby, 0, "No servers available", false)
		return
	}
	c.registry.Reserve(server.ServerID, true)

	assign := wiremm.AssignLobby{LobbyID: lobby.LobbyID, ExpectedPlayers: uint8(len(lobby.Players))}
	buf, err := wiremm.BuildPacket(wiremm.TypeAssignLobby, server.ServerID, lobby.LobbyID, assign.Encode())
	if err != nil {
		slog.Error("coordinator: build assign lobby failed", "err", err)
		return
	}
	if server.ControlAddr != nil {
		if err := c.ep.Send(server.ControlAddr, buf); err != nil {
			slog.Warn("coordinator: send assign lobby failed", "err", err)
		}
	}

	for i, playerID := range lobby.Players {
		accountID := lobby.AccountByPlayer[playerID]
		c.active.Start(accountID, lobby.LobbyID, server.ServerID, server.IP, server.GamePort, uint8(i), "")
	}

	ready := wiremm.NewMatchReady(server.IP, server.GamePort)
	c.broadcastLobby(lobby, wiremm.TypeMatchReady, ready.Encode())

	lobby.State = model.LobbyCompleted
	c.lobbies.Remove(lobby.LobbyID)
}

func (c *Coordinator) handleServerRegister(body []byte, from *net.UDPAddr) {
	reg, err := wiremm.DecodeServerRegister(body)
	if err != nil {
		return
	}
	c.registry.Register(reg.ServerID, reg.IPStr(), reg.GamePort, int(reg.Capacity), from)
}

func (c *Coordinator) handleServerHeartbeat(body []byte) {
	hb, err := wiremm.DecodeServerHeartbeat(body)
	if err != nil {
		return
	}
	c.registry.Heartbeat(hb.ServerID, int(hb.CurrentPlayers), int(hb.Capacity))
	if hb.CurrentPlayers == 0 {
		c.registry.Reserve(hb.ServerID, false)
	}
}

func (c *Coordinator) handlePlayerDisconnected(h wiremm.Header, body []byte) {
	pd, err := wiremm.DecodePlayerDisconnected(body)
	if err != nil {
		return
	}
	c.active.OnPlayerDisconnected(h.PlayerID, h.LobbyID, pd.AccountID, pd.TeamSlot, pd.HeroNameStr(), c.uptime())
}

func (c *Coordinator) handlePlayerReconnected(body []byte, lobbyID uint64) {
	pr, err := wiremm.DecodePlayerReconnected(body)
	if err != nil {
		return
	}
	c.active.OnPlayerReconnected(pr.AccountID, lobbyID)
}

func (c *Coordinator) handleCheckActiveGame(body []byte, from *net.UDPAddr) {
	req, err := wiremm.DecodeCheckActiveGame(body)
	if err != nil {
		return
	}
	rec := c.active.Lookup(req.AccountID)
	if rec == nil {
		none := wiremm.NoActiveGame{}
		c.reply(from, wiremm.TypeNoActiveGame, 0, 0, none.Encode())
		return
	}
	info := wiremm.NewActiveGameInfo(rec.LobbyID, rec.ServerIP, rec.ServerPort, rec.TeamSlot, rec.HeroName, rec.GameStartTime, rec.DisconnectTime, true)
	c.reply(from, wiremm.TypeActiveGameInfo, 0, rec.LobbyID, info.Encode())
}

func (c *Coordinator) handleReconnectRequest(body []byte, from *net.UDPAddr) {
	req, err := wiremm.DecodeReconnectRequest(body)
	if err != nil {
		return
	}
	rec := c.active.Approve(req.AccountID, req.LobbyID)
	if rec == nil {
		errMsg := wiremm.NewErrorPayload("No matching active game")
		c.reply(from, wiremm.TypeError, 0, req.LobbyID, errMsg.Encode())
		return
	}
	approved := wiremm.NewReconnectApproved(rec.LobbyID, rec.ServerIP, rec.ServerPort, rec.TeamSlot, rec.HeroName, rec.GameStartTime, rec.DisconnectTime)
	c.reply(from, wiremm.TypeReconnectApproved, 0, rec.LobbyID, approved.Encode())
}
