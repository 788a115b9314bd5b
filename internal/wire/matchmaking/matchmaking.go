// Package matchmaking implements the coordinator's wire protocol: a
// 28-byte fixed header plus fixed-size payload structs, little-endian,
// magic 'MMP1', version 1, default port 27016. This family also carries
// the coordinator<->dedicated-server control traffic (ServerRegister,
// ServerHeartbeat, AssignLobby, PlayerDisconnected, GameEnded).
package matchmaking

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/udisondev/arenamatch/internal/wire"
)

const (
	Magic   uint32 = 0x4D4D5031 // ASCII "MMP1" read as a big-endian integer; the little-endian wire bytes read "1PMM"
	Version uint16 = 1

	HeaderSize = 28

	maxToken  = 65
	maxReason = 128
	maxIP     = 46
	maxHero   = 32
)

// MessageType enumerates every matchmaking/control packet type.
type MessageType uint16

const (
	TypeQueueRequest MessageType = iota + 1
	TypeQueueConfirm
	TypeQueueRejected
	TypeQueueCancel
	TypeMatchFound
	TypeMatchAccept
	TypeMatchDecline
	TypeMatchAcceptStatus
	TypeMatchCancelled
	TypeMatchReady
	TypeServerRegister
	TypeServerHeartbeat
	TypeAssignLobby
	TypePlayerDisconnected
	TypePlayerReconnected
	TypeGameEnded
	TypeCheckActiveGame
	TypeActiveGameInfo
	TypeNoActiveGame
	TypeReconnectRequest
	TypeReconnectApproved
	TypeError
)

// Header is the fixed 28-byte preamble of every matchmaking packet.
type Header struct {
	Magic       uint32
	Version     uint16
	Type        MessageType
	PayloadSize uint32
	PlayerID    uint64
	LobbyID     uint64
}

// BuildPacket encodes a header and payload into a single buffer.
func BuildPacket(typ MessageType, playerID, lobbyID uint64, payload []byte) ([]byte, error) {
	if len(payload) > 0 && payload == nil {
		return nil, wire.ErrPayloadMismatch
	}
	buf := new(bytes.Buffer)
	buf.Grow(HeaderSize + len(payload))
	h := Header{
		Magic:       Magic,
		Version:     Version,
		Type:        typ,
		PayloadSize: uint32(len(payload)),
		PlayerID:    playerID,
		LobbyID:     lobbyID,
	}
	for _, v := range []any{h.Magic, h.Version, h.Type, h.PayloadSize, h.PlayerID, h.LobbyID} {
		if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
			return nil, fmt.Errorf("matchmaking: build packet: %w", err)
		}
	}
	buf.Write(payload)
	return buf.Bytes(), nil
}

// ParsePacket validates the header and returns it along with the payload
// subslice of buf (no copy).
func ParsePacket(buf []byte) (Header, []byte, error) {
	if len(buf) < HeaderSize {
		return Header{}, nil, fmt.Errorf("matchmaking: packet too short: %d bytes", len(buf))
	}
	r := bytes.NewReader(buf[:HeaderSize])
	var h Header
	fields := []any{&h.Magic, &h.Version, &h.Type, &h.PayloadSize, &h.PlayerID, &h.LobbyID}
	for _, f := range fields {
		if err := binary.Read(r, binary.LittleEndian, f); err != nil {
			return Header{}, nil, fmt.Errorf("matchmaking: decode header: %w", err)
		}
	}
	if h.Magic != Magic {
		return Header{}, nil, fmt.Errorf("matchmaking: bad magic %#x", h.Magic)
	}
	if h.Version != Version {
		return Header{}, nil, fmt.Errorf("matchmaking: unsupported version %d", h.Version)
	}
	end := HeaderSize + int(h.PayloadSize)
	if end > len(buf) {
		return Header{}, nil, fmt.Errorf("matchmaking: payload size %d exceeds buffer", h.PayloadSize)
	}
	return h, buf[HeaderSize:end], nil
}

// QueueRequest asks the coordinator to admit a player into matchmaking.
type QueueRequest struct {
	Mode         uint8
	Region       uint8
	SessionToken [maxToken]byte
}

func (p QueueRequest) Encode() []byte {
	buf := make([]byte, 2+maxToken)
	buf[0] = p.Mode
	buf[1] = p.Region
	copy(buf[2:], p.SessionToken[:])
	return buf
}

func DecodeQueueRequest(b []byte) (QueueRequest, error) {
	var p QueueRequest
	if len(b) < 2+maxToken {
		return p, fmt.Errorf("matchmaking: short QueueRequest payload")
	}
	p.Mode = b[0]
	p.Region = b[1]
	copy(p.SessionToken[:], b[2:2+maxToken])
	return p, nil
}

func NewQueueRequest(mode, region uint8, token string) QueueRequest {
	var p QueueRequest
	p.Mode, p.Region = mode, region
	wire.CopyCString(p.SessionToken[:], token)
	return p
}

func (p QueueRequest) SessionTokenStr() string { return wire.GoString(p.SessionToken[:]) }

// QueueRejected explains why a QueueRequest (or a delayed validation) was
// refused.
type QueueRejected struct {
	AuthFailed uint8
	IsBanned   uint8
	Reason     [maxReason]byte
}

func (p QueueRejected) Encode() []byte {
	buf := make([]byte, 2+maxReason)
	buf[0] = p.AuthFailed
	buf[1] = p.IsBanned
	copy(buf[2:], p.Reason[:])
	return buf
}

func DecodeQueueRejected(b []byte) (QueueRejected, error) {
	var p QueueRejected
	if len(b) < 2+maxReason {
		return p, fmt.Errorf("matchmaking: short QueueRejected payload")
	}
	p.AuthFailed = b[0]
	p.IsBanned = b[1]
	copy(p.Reason[:], b[2:2+maxReason])
	return p, nil
}

func NewQueueRejected(authFailed, isBanned bool, reason string) QueueRejected {
	var p QueueRejected
	if authFailed {
		p.AuthFailed = 1
	}
	if isBanned {
		p.IsBanned = 1
	}
	wire.CopyCString(p.Reason[:], reason)
	return p
}

func (p QueueRejected) ReasonStr() string { return wire.GoString(p.Reason[:]) }

// MatchFound announces a formed lobby and starts the accept timer.
type MatchFound struct {
	RequiredPlayers  uint8
	AcceptTimeoutSec uint8
}

func (p MatchFound) Encode() []byte { return []byte{p.RequiredPlayers, p.AcceptTimeoutSec} }

func DecodeMatchFound(b []byte) (MatchFound, error) {
	var p MatchFound
	if len(b) < 2 {
		return p, fmt.Errorf("matchmaking: short MatchFound payload")
	}
	p.RequiredPlayers, p.AcceptTimeoutSec = b[0], b[1]
	return p, nil
}

// MatchAcceptStatus reports which lobby members have accepted so far.
type MatchAcceptStatus struct {
	AcceptedCount uint8
	RequiredCount uint8
}

func (p MatchAcceptStatus) Encode() []byte { return []byte{p.AcceptedCount, p.RequiredCount} }

func DecodeMatchAcceptStatus(b []byte) (MatchAcceptStatus, error) {
	var p MatchAcceptStatus
	if len(b) < 2 {
		return p, fmt.Errorf("matchmaking: short MatchAcceptStatus payload")
	}
	p.AcceptedCount, p.RequiredCount = b[0], b[1]
	return p, nil
}

// MatchCancelled is sent to every lobby member when the accept phase
// fails, either by timeout or explicit decline.
type MatchCancelled struct {
	Reason          [maxReason]byte
	DeclinedByPlayerID uint64
	ShouldRequeue   uint8
}

func (p MatchCancelled) Encode() []byte {
	buf := make([]byte, maxReason+8+1)
	n := copy(buf, p.Reason[:])
	binary.LittleEndian.PutUint64(buf[n:n+8], p.DeclinedByPlayerID)
	buf[n+8] = p.ShouldRequeue
	return buf
}

func DecodeMatchCancelled(b []byte) (MatchCancelled, error) {
	var p MatchCancelled
	if len(b) < maxReason+9 {
		return p, fmt.Errorf("matchmaking: short MatchCancelled payload")
	}
	n := copy(p.Reason[:], b[:maxReason])
	p.DeclinedByPlayerID = binary.LittleEndian.Uint64(b[n : n+8])
	p.ShouldRequeue = b[n+8]
	return p, nil
}

func NewMatchCancelled(reason string, declinedBy uint64, shouldRequeue bool) MatchCancelled {
	var p MatchCancelled
	wire.CopyCString(p.Reason[:], reason)
	p.DeclinedByPlayerID = declinedBy
	if shouldRequeue {
		p.ShouldRequeue = 1
	}
	return p
}

func (p MatchCancelled) ReasonStr() string { return wire.GoString(p.Reason[:]) }

// MatchReady tells a player where to connect for the assigned server.
type MatchReady struct {
	ServerIP   [maxIP]byte
	ServerPort uint16
}

func (p MatchReady) Encode() []byte {
	buf := make([]byte, maxIP+2)
	n := copy(buf, p.ServerIP[:])
	binary.LittleEndian.PutUint16(buf[n:n+2], p.ServerPort)
	return buf
}

func DecodeMatchReady(b []byte) (MatchReady, error) {
	var p MatchReady
	if len(b) < maxIP+2 {
		return p, fmt.Errorf("matchmaking: short MatchReady payload")
	}
	n := copy(p.ServerIP[:], b[:maxIP])
	p.ServerPort = binary.LittleEndian.Uint16(b[n : n+2])
	return p, nil
}

func NewMatchReady(ip string, port uint16) MatchReady {
	var p MatchReady
	wire.CopyCString(p.ServerIP[:], ip)
	p.ServerPort = port
	return p
}

func (p MatchReady) ServerIPStr() string { return wire.GoString(p.ServerIP[:]) }

// ServerRegister is sent once by a dedicated server on startup.
type ServerRegister struct {
	ServerID uint64
	IP       [maxIP]byte
	GamePort uint16
	Capacity uint16
}

func (p ServerRegister) Encode() []byte {
	buf := make([]byte, 8+maxIP+2+2)
	n := 0
	binary.LittleEndian.PutUint64(buf[n:n+8], p.ServerID)
	n += 8
	n += copy(buf[n:], p.IP[:])
	binary.LittleEndian.PutUint16(buf[n:n+2], p.GamePort)
	n += 2
	binary.LittleEndian.PutUint16(buf[n:n+2], p.Capacity)
	return buf
}

func DecodeServerRegister(b []byte) (ServerRegister, error) {
	var p ServerRegister
	want := 8 + maxIP + 4
	if len(b) < want {
		return p, fmt.Errorf("matchmaking: short ServerRegister payload")
	}
	n := 0
	p.ServerID = binary.LittleEndian.Uint64(b[n : n+8])
	n += 8
	n += copy(p.IP[:], b[n:n+maxIP])
	p.GamePort = binary.LittleEndian.Uint16(b[n : n+2])
	n += 2
	p.Capacity = binary.LittleEndian.Uint16(b[n : n+2])
	return p, nil
}

func NewServerRegister(serverID uint64, ip string, gamePort, capacity uint16) ServerRegister {
	var p ServerRegister
	p.ServerID = serverID
	wire.CopyCString(p.IP[:], ip)
	p.GamePort, p.Capacity = gamePort, capacity
	return p
}

func (p ServerRegister) IPStr() string { return wire.GoString(p.IP[:]) }

// ServerHeartbeat refreshes a registry entry's liveness.
type ServerHeartbeat struct {
	ServerID       uint64
	CurrentPlayers uint16
	Capacity       uint16
	UptimeSec      uint32
}

func (p ServerHeartbeat) Encode() []byte {
	buf := make([]byte, 8+2+2+4)
	n := 0
	binary.LittleEndian.PutUint64(buf[n:n+8], p.ServerID)
	n += 8
	binary.LittleEndian.PutUint16(buf[n:n+2], p.CurrentPlayers)
	n += 2
	binary.LittleEndian.PutUint16(buf[n:n+2], p.Capacity)
	n += 2
	binary.LittleEndian.PutUint32(buf[n:n+4], p.UptimeSec)
	return buf
}

func DecodeServerHeartbeat(b []byte) (ServerHeartbeat, error) {
	var p ServerHeartbeat
	if len(b) < 16 {
		return p, fmt.Errorf("matchmaking: short ServerHeartbeat payload")
	}
	n := 0
	p.ServerID = binary.LittleEndian.Uint64(b[n : n+8])
	n += 8
	p.CurrentPlayers = binary.LittleEndian.Uint16(b[n : n+2])
	n += 2
	p.Capacity = binary.LittleEndian.Uint16(b[n : n+2])
	n += 2
	p.UptimeSec = binary.LittleEndian.Uint32(b[n : n+4])
	return p, nil
}

// AssignLobby tells a dedicated server which lobby to expect connections
// for.
type AssignLobby struct {
	LobbyID         uint64
	ExpectedPlayers uint8
}

func (p AssignLobby) Encode() []byte {
	buf := make([]byte, 9)
	binary.LittleEndian.PutUint64(buf[0:8], p.LobbyID)
	buf[8] = p.ExpectedPlayers
	return buf
}

func DecodeAssignLobby(b []byte) (AssignLobby, error) {
	var p AssignLobby
	if len(b) < 9 {
		return p, fmt.Errorf("matchmaking: short AssignLobby payload")
	}
	p.LobbyID = binary.LittleEndian.Uint64(b[0:8])
	p.ExpectedPlayers = b[8]
	return p, nil
}

// PlayerDisconnected is emitted by a dedicated server when a client times
// out or explicitly disconnects mid-match.
type PlayerDisconnected struct {
	AccountID uint64
	TeamSlot  uint8
	HeroName  [maxHero]byte
}

func (p PlayerDisconnected) Encode() []byte {
	buf := make([]byte, 8+1+maxHero)
	binary.LittleEndian.PutUint64(buf[0:8], p.AccountID)
	buf[8] = p.TeamSlot
	copy(buf[9:], p.HeroName[:])
	return buf
}

func DecodePlayerDisconnected(b []byte) (PlayerDisconnected, error) {
	var p PlayerDisconnected
	want := 9 + maxHero
	if len(b) < want {
		return p, fmt.Errorf("matchmaking: short PlayerDisconnected payload")
	}
	p.AccountID = binary.LittleEndian.Uint64(b[0:8])
	p.TeamSlot = b[8]
	copy(p.HeroName[:], b[9:9+maxHero])
	return p, nil
}

func NewPlayerDisconnected(accountID uint64, teamSlot uint8, heroName string) PlayerDisconnected {
	var p PlayerDisconnected
	p.AccountID = accountID
	p.TeamSlot = teamSlot
	wire.CopyCString(p.HeroName[:], heroName)
	return p
}

func (p PlayerDisconnected) HeroNameStr() string { return wire.GoString(p.HeroName[:]) }

// PlayerReconnected clears the disconnected marker for an active game.
type PlayerReconnected struct {
	AccountID uint64
}

func (p PlayerReconnected) Encode() []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, p.AccountID)
	return buf
}

func DecodePlayerReconnected(b []byte) (PlayerReconnected, error) {
	var p PlayerReconnected
	if len(b) < 8 {
		return p, fmt.Errorf("matchmaking: short PlayerReconnected payload")
	}
	p.AccountID = binary.LittleEndian.Uint64(b[0:8])
	return p, nil
}

// GameEnded tells the coordinator a lobby's match concluded so its
// active-game records can be purged.
type GameEnded struct {
	WinningTeam  uint8
	GameDurationSec uint32
}

func (p GameEnded) Encode() []byte {
	buf := make([]byte, 5)
	buf[0] = p.WinningTeam
	binary.LittleEndian.PutUint32(buf[1:5], p.GameDurationSec)
	return buf
}

func DecodeGameEnded(b []byte) (GameEnded, error) {
	var p GameEnded
	if len(b) < 5 {
		return p, fmt.Errorf("matchmaking: short GameEnded payload")
	}
	p.WinningTeam = b[0]
	p.GameDurationSec = binary.LittleEndian.Uint32(b[1:5])
	return p, nil
}

// CheckActiveGame asks whether an account has a pending reconnect.
type CheckActiveGame struct {
	AccountID uint64
}

func (p CheckActiveGame) Encode() []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, p.AccountID)
	return buf
}

func DecodeCheckActiveGame(b []byte) (CheckActiveGame, error) {
	var p CheckActiveGame
	if len(b) < 8 {
		return p, fmt.Errorf("matchmaking: short CheckActiveGame payload")
	}
	p.AccountID = binary.LittleEndian.Uint64(b[0:8])
	return p, nil
}

// ActiveGameInfo answers CheckActiveGame/ReconnectRequest with the
// server coordinates to reconnect to.
type ActiveGameInfo struct {
	LobbyID        uint64
	ServerIP       [maxIP]byte
	ServerPort     uint16
	TeamSlot       uint8
	HeroName       [maxHero]byte
	GameTimeSec    float64
	DisconnectTimeSec float64
	CanReconnect   uint8
}

func (p ActiveGameInfo) Encode() []byte {
	buf := make([]byte, 8+maxIP+2+1+maxHero+8+8+1)
	n := 0
	binary.LittleEndian.PutUint64(buf[n:n+8], p.LobbyID)
	n += 8
	n += copy(buf[n:], p.ServerIP[:])
	binary.LittleEndian.PutUint16(buf[n:n+2], p.ServerPort)
	n += 2
	buf[n] = p.TeamSlot
	n++
	n += copy(buf[n:], p.HeroName[:])
	binary.LittleEndian.PutUint64(buf[n:n+8], math.Float64bits(p.GameTimeSec))
	n += 8
	binary.LittleEndian.PutUint64(buf[n:n+8], math.Float64bits(p.DisconnectTimeSec))
	n += 8
	buf[n] = p.CanReconnect
	return buf
}

func DecodeActiveGameInfo(b []byte) (ActiveGameInfo, error) {
	var p ActiveGameInfo
	want := 8 + maxIP + 2 + 1 + maxHero + 8 + 8 + 1
	if len(b) < want {
		return p, fmt.Errorf("matchmaking: short ActiveGameInfo payload")
	}
	n := 0
	p.LobbyID = binary.LittleEndian.Uint64(b[n : n+8])
	n += 8
	n += copy(p.ServerIP[:], b[n:n+maxIP])
	p.ServerPort = binary.LittleEndian.Uint16(b[n : n+2])
	n += 2
	p.TeamSlot = b[n]
	n++
	n += copy(p.HeroName[:], b[n:n+maxHero])
	p.GameTimeSec = math.Float64frombits(binary.LittleEndian.Uint64(b[n : n+8]))
	n += 8
	p.DisconnectTimeSec = math.Float64frombits(binary.LittleEndian.Uint64(b[n : n+8]))
	n += 8
	p.CanReconnect = b[n]
	return p, nil
}

func (p ActiveGameInfo) ServerIPStr() string { return wire.GoString(p.ServerIP[:]) }
func (p ActiveGameInfo) HeroNameStr() string { return wire.GoString(p.HeroName[:]) }

// ReconnectRequest asks the coordinator to re-approve a known active
// game after a client restarts.
type ReconnectRequest struct {
	AccountID uint64
	LobbyID   uint64
}

func (p ReconnectRequest) Encode() []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint64(buf[0:8], p.AccountID)
	binary.LittleEndian.PutUint64(buf[8:16], p.LobbyID)
	return buf
}

func DecodeReconnectRequest(b []byte) (ReconnectRequest, error) {
	var p ReconnectRequest
	if len(b) < 16 {
		return p, fmt.Errorf("matchmaking: short ReconnectRequest payload")
	}
	p.AccountID = binary.LittleEndian.Uint64(b[0:8])
	p.LobbyID = binary.LittleEndian.Uint64(b[8:16])
	return p, nil
}

// ReconnectApproved carries the same server coordinates as ActiveGameInfo;
// it is the ReconnectRequest-specific response so the two message types
// can be dispatched on independently even though the payload shape is
// identical.
type ReconnectApproved = ActiveGameInfo

// NewReconnectApproved mirrors NewActiveGameInfo for the approved-reconnect
// response.
func NewReconnectApproved(lobbyID uint64, serverIP string, serverPort uint16, teamSlot uint8, heroName string, gameTimeSec, disconnectTimeSec float64) ReconnectApproved {
	return NewActiveGameInfo(lobbyID, serverIP, serverPort, teamSlot, heroName, gameTimeSec, disconnectTimeSec, true)
}

// NewActiveGameInfo builds an ActiveGameInfo from plain Go values.
func NewActiveGameInfo(lobbyID uint64, serverIP string, serverPort uint16, teamSlot uint8, heroName string, gameTimeSec, disconnectTimeSec float64, canReconnect bool) ActiveGameInfo {
	var p ActiveGameInfo
	p.LobbyID = lobbyID
	wire.CopyCString(p.ServerIP[:], serverIP)
	p.ServerPort = serverPort
	p.TeamSlot = teamSlot
	wire.CopyCString(p.HeroName[:], heroName)
	p.GameTimeSec = gameTimeSec
	p.DisconnectTimeSec = disconnectTimeSec
	if canReconnect {
		p.CanReconnect = 1
	}
	return p
}

// QueueConfirm acknowledges admission into the queue after a successful
// token validation, ahead of MatchFound.
type QueueConfirm struct {
	AccountID uint64
}

func (p QueueConfirm) Encode() []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, p.AccountID)
	return buf
}

func DecodeQueueConfirm(b []byte) (QueueConfirm, error) {
	var p QueueConfirm
	if len(b) < 8 {
		return p, fmt.Errorf("matchmaking: short QueueConfirm payload")
	}
	p.AccountID = binary.LittleEndian.Uint64(b[0:8])
	return p, nil
}

// QueueCancel lets a queued (or pending) player voluntarily leave the
// queue before a lobby forms.
type QueueCancel struct{}

func (p QueueCancel) Encode() []byte { return nil }

// NoActiveGame answers CheckActiveGame when no disconnected record
// exists for the account. It carries no payload.
type NoActiveGame struct{}

func (p NoActiveGame) Encode() []byte { return nil }

// ErrorPayload is the generic failure response for requests that have no
// more specific rejection type.
type ErrorPayload struct {
	Reason [maxReason]byte
}

func (p ErrorPayload) Encode() []byte {
	buf := make([]byte, maxReason)
	copy(buf, p.Reason[:])
	return buf
}

func DecodeErrorPayload(b []byte) (ErrorPayload, error) {
	var p ErrorPayload
	if len(b) < maxReason {
		return p, fmt.Errorf("matchmaking: short ErrorPayload payload")
	}
	copy(p.Reason[:], b[:maxReason])
	return p, nil
}

func NewErrorPayload(reason string) ErrorPayload {
	var p ErrorPayload
	wire.CopyCString(p.Reason[:], reason)
	return p
}

func (p ErrorPayload) ReasonStr() string { return wire.GoString(p.Reason[:]) }
