// Package game implements the dedicated server's hot-path wire protocol:
// a minimal 7-byte header with no magic number, since every packet on
// this channel already arrives at a port bound to exactly one protocol.
package game

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/udisondev/arenamatch/internal/wire"
)

const HeaderSize = 7

// MessageType enumerates every game-channel packet type.
type MessageType uint8

const (
	TypeConnectionRequest MessageType = iota + 1
	TypeConnectionAccepted
	TypeConnectionRejected
	TypeClientInput
	TypePing
	TypePong
	TypeWorldSnapshot
	TypeDisconnect
)

// Header is the fixed 7-byte preamble of every game packet.
type Header struct {
	Type        MessageType
	Sequence    uint32
	PayloadSize uint16
}

// BuildPacket encodes a header and payload into a single buffer.
func BuildPacket(typ MessageType, sequence uint32, payload []byte) ([]byte, error) {
	if len(payload) > 0 && payload == nil {
		return nil, wire.ErrPayloadMismatch
	}
	buf := make([]byte, HeaderSize+len(payload))
	buf[0] = byte(typ)
	binary.LittleEndian.PutUint32(buf[1:5], sequence)
	binary.LittleEndian.PutUint16(buf[5:7], uint16(len(payload)))
	copy(buf[HeaderSize:], payload)
	return buf, nil
}

// ParsePacket validates the header and returns it along with the payload
// subslice of buf (no copy).
func ParsePacket(buf []byte) (Header, []byte, error) {
	if len(buf) < HeaderSize {
		return Header{}, nil, fmt.Errorf("game: packet too short: %d bytes", len(buf))
	}
	h := Header{
		Type:        MessageType(buf[0]),
		Sequence:    binary.LittleEndian.Uint32(buf[1:5]),
		PayloadSize: binary.LittleEndian.Uint16(buf[5:7]),
	}
	end := HeaderSize + int(h.PayloadSize)
	if end > len(buf) {
		return Header{}, nil, fmt.Errorf("game: payload size %d exceeds buffer", h.PayloadSize)
	}
	return h, buf[HeaderSize:end], nil
}

const maxUsername = 32
const maxToken = 65

// ConnectionRequest is the first packet a client sends to a dedicated
// server.
type ConnectionRequest struct {
	AccountID    uint64
	Username     [maxUsername]byte
	SessionToken [maxToken]byte
}

func (p ConnectionRequest) Encode() []byte {
	buf := make([]byte, 8+maxUsername+maxToken)
	n := 0
	binary.LittleEndian.PutUint64(buf[n:n+8], p.AccountID)
	n += 8
	n += copy(buf[n:], p.Username[:])
	copy(buf[n:], p.SessionToken[:])
	return buf
}

func DecodeConnectionRequest(b []byte) (ConnectionRequest, error) {
	var p ConnectionRequest
	want := 8 + maxUsername + maxToken
	if len(b) < want {
		return p, fmt.Errorf("game: short ConnectionRequest payload")
	}
	n := 0
	p.AccountID = binary.LittleEndian.Uint64(b[n : n+8])
	n += 8
	n += copy(p.Username[:], b[n:n+maxUsername])
	copy(p.SessionToken[:], b[n:n+maxToken])
	return p, nil
}

func NewConnectionRequest(accountID uint64, username, token string) ConnectionRequest {
	var p ConnectionRequest
	p.AccountID = accountID
	wire.CopyCString(p.Username[:], username)
	wire.CopyCString(p.SessionToken[:], token)
	return p
}

func (p ConnectionRequest) UsernameStr() string     { return wire.GoString(p.Username[:]) }
func (p ConnectionRequest) SessionTokenStr() string { return wire.GoString(p.SessionToken[:]) }

// ConnectionAccepted answers a successful ConnectionRequest.
type ConnectionAccepted struct {
	AssignedClientID uint32
}

func (p ConnectionAccepted) Encode() []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, p.AssignedClientID)
	return buf
}

func DecodeConnectionAccepted(b []byte) (ConnectionAccepted, error) {
	var p ConnectionAccepted
	if len(b) < 4 {
		return p, fmt.Errorf("game: short ConnectionAccepted payload")
	}
	p.AssignedClientID = binary.LittleEndian.Uint32(b[0:4])
	return p, nil
}

// ConnectionRejected answers a ConnectionRequest the server has no room
// for.
type ConnectionRejected struct {
	Reason [64]byte
}

func (p ConnectionRejected) Encode() []byte {
	buf := make([]byte, 64)
	copy(buf, p.Reason[:])
	return buf
}

func DecodeConnectionRejected(b []byte) (ConnectionRejected, error) {
	var p ConnectionRejected
	if len(b) < 64 {
		return p, fmt.Errorf("game: short ConnectionRejected payload")
	}
	copy(p.Reason[:], b[:64])
	return p, nil
}

func NewConnectionRejected(reason string) ConnectionRejected {
	var p ConnectionRejected
	wire.CopyCString(p.Reason[:], reason)
	return p
}

func (p ConnectionRejected) ReasonStr() string { return wire.GoString(p.Reason[:]) }

// ClientInput carries one tick's commanded input from client to server.
type ClientInput struct {
	MoveX   float32
	MoveY   float32
	Actions uint32
}

func (p ClientInput) Encode() []byte {
	buf := make([]byte, 12)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(p.MoveX))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(p.MoveY))
	binary.LittleEndian.PutUint32(buf[8:12], p.Actions)
	return buf
}

func DecodeClientInput(b []byte) (ClientInput, error) {
	var p ClientInput
	if len(b) < 12 {
		return p, fmt.Errorf("game: short ClientInput payload")
	}
	p.MoveX = math.Float32frombits(binary.LittleEndian.Uint32(b[0:4]))
	p.MoveY = math.Float32frombits(binary.LittleEndian.Uint32(b[4:8]))
	p.Actions = binary.LittleEndian.Uint32(b[8:12])
	return p, nil
}

// Disconnect is an explicit client-initiated disconnect notice.
type Disconnect struct{}

func (Disconnect) Encode() []byte { return nil }

const entitySnapshotSize = 4 + 4 + 4 + 4 + 4 + 1 + 4 + 1 + 1 + 1 + 1 + 1 + 4 + 1

// EntitySnapshotWire is the wire-shape encode/decode pair for
// model.EntitySnapshot.
type EntitySnapshotWire struct {
	NetworkID     uint32
	PosX, PosY    float32
	Rotation      float32
	HP            int32
	HasHP         uint8
	Mana          int32
	HasMana       uint8
	Team          uint8
	HasTeam       uint8
	EntityType    uint8
	HasEntityType uint8
	OwnerClientID uint32
	HasOwner      uint8
}

func (e EntitySnapshotWire) encode(buf []byte) {
	n := 0
	binary.LittleEndian.PutUint32(buf[n:n+4], e.NetworkID)
	n += 4
	binary.LittleEndian.PutUint32(buf[n:n+4], math.Float32bits(e.PosX))
	n += 4
	binary.LittleEndian.PutUint32(buf[n:n+4], math.Float32bits(e.PosY))
	n += 4
	binary.LittleEndian.PutUint32(buf[n:n+4], math.Float32bits(e.Rotation))
	n += 4
	binary.LittleEndian.PutUint32(buf[n:n+4], uint32(e.HP))
	n += 4
	buf[n] = e.HasHP
	n++
	binary.LittleEndian.PutUint32(buf[n:n+4], uint32(e.Mana))
	n += 4
	buf[n] = e.HasMana
	n++
	buf[n] = e.Team
	n++
	buf[n] = e.HasTeam
	n++
	buf[n] = e.EntityType
	n++
	buf[n] = e.HasEntityType
	n++
	binary.LittleEndian.PutUint32(buf[n:n+4], e.OwnerClientID)
	n += 4
	buf[n] = e.HasOwner
}

func decodeEntitySnapshotWire(b []byte) EntitySnapshotWire {
	var e EntitySnapshotWire
	n := 0
	e.NetworkID = binary.LittleEndian.Uint32(b[n : n+4])
	n += 4
	e.PosX = math.Float32frombits(binary.LittleEndian.Uint32(b[n : n+4]))
	n += 4
	e.PosY = math.Float32frombits(binary.LittleEndian.Uint32(b[n : n+4]))
	n += 4
	e.Rotation = math.Float32frombits(binary.LittleEndian.Uint32(b[n : n+4]))
	n += 4
	e.HP = int32(binary.LittleEndian.Uint32(b[n : n+4]))
	n += 4
	e.HasHP = b[n]
	n++
	e.Mana = int32(binary.LittleEndian.Uint32(b[n : n+4]))
	n += 4
	e.HasMana = b[n]
	n++
	e.Team = b[n]
	n++
	e.HasTeam = b[n]
	n++
	e.EntityType = b[n]
	n++
	e.HasEntityType = b[n]
	n++
	e.OwnerClientID = binary.LittleEndian.Uint32(b[n : n+4])
	n += 4
	e.HasOwner = b[n]
	return e
}

// WorldSnapshotWire is the wire-shape encode/decode pair for
// model.WorldSnapshot.
type WorldSnapshotWire struct {
	Tick               uint64
	ServerTimeSec      float64
	GameTimeSec        float64
	Wave               uint32
	LastProcessedInput uint32
	Entities           []EntitySnapshotWire
}

// Encode serializes the snapshot: a fixed header followed by a run of
// fixed-size entity records.
func (s WorldSnapshotWire) Encode() []byte {
	const headerSize = 8 + 8 + 8 + 4 + 4 + 2
	buf := make([]byte, headerSize+len(s.Entities)*entitySnapshotSize)
	n := 0
	binary.LittleEndian.PutUint64(buf[n:n+8], s.Tick)
	n += 8
	binary.LittleEndian.PutUint64(buf[n:n+8], math.Float64bits(s.ServerTimeSec))
	n += 8
	binary.LittleEndian.PutUint64(buf[n:n+8], math.Float64bits(s.GameTimeSec))
	n += 8
	binary.LittleEndian.PutUint32(buf[n:n+4], s.Wave)
	n += 4
	binary.LittleEndian.PutUint32(buf[n:n+4], s.LastProcessedInput)
	n += 4
	binary.LittleEndian.PutUint16(buf[n:n+2], uint16(len(s.Entities)))
	n += 2
	for _, e := range s.Entities {
		e.encode(buf[n : n+entitySnapshotSize])
		n += entitySnapshotSize
	}
	return buf
}

// DecodeWorldSnapshotWire parses a snapshot payload produced by Encode.
func DecodeWorldSnapshotWire(b []byte) (WorldSnapshotWire, error) {
	var s WorldSnapshotWire
	const headerSize = 8 + 8 + 8 + 4 + 4 + 2
	if len(b) < headerSize {
		return s, fmt.Errorf("game: short WorldSnapshot header")
	}
	n := 0
	s.Tick = binary.LittleEndian.Uint64(b[n : n+8])
	n += 8
	s.ServerTimeSec = math.Float64frombits(binary.LittleEndian.Uint64(b[n : n+8]))
	n += 8
	s.GameTimeSec = math.Float64frombits(binary.LittleEndian.Uint64(b[n : n+8]))
	n += 8
	s.Wave = binary.LittleEndian.Uint32(b[n : n+4])
	n += 4
	s.LastProcessedInput = binary.LittleEndian.Uint32(b[n : n+4])
	n += 4
	count := int(binary.LittleEndian.Uint16(b[n : n+2]))
	n += 2
	if len(b) < n+count*entitySnapshotSize {
		return s, fmt.Errorf("game: short WorldSnapshot entity list")
	}
	s.Entities = make([]EntitySnapshotWire, count)
	for i := range count {
		s.Entities[i] = decodeEntitySnapshotWire(b[n : n+entitySnapshotSize])
		n += entitySnapshotSize
	}
	return s, nil
}
