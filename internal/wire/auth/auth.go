// Package auth implements the auth service's wire protocol: a 24-byte
// fixed header plus fixed-size payload structs, little-endian, magic
// 'AUTH', version 1, default port 27015.
package auth

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/udisondev/arenamatch/internal/wire"
)

const (
	Magic   uint32 = 0x48545541 // little-endian encoding of ASCII "AUTH"
	Version uint16 = 1

	HeaderSize = 24

	maxUsername = 32
	maxHash     = 65
	maxToken    = 65
	maxEmail    = 64
	maxReason   = 128
)

// MessageType enumerates every auth packet type. Values are stable across
// versions; unknown types are dropped silently by the dispatcher.
type MessageType uint16

const (
	TypeRegisterRequest MessageType = iota + 1
	TypeRegisterResponse
	TypeLoginRequest
	TypeLoginResponse
	TypeValidateTokenRequest
	TypeValidateTokenResponse
	TypeLogoutRequest
	TypeLogoutResponse
	TypeChangePasswordRequest
	TypeChangePasswordResponse
)

// Result enumerates every outcome an auth response can carry.
type Result uint16

const (
	Success Result = iota
	InvalidCredentials
	UsernameTaken
	InvalidUsername
	PasswordTooShort
	AccountLocked
	AccountBanned
	TokenExpired
	TokenInvalid
	RateLimited
	ServerError
	Requires2FA
	Invalid2FACode
)

// Header is the fixed 24-byte preamble of every auth packet.
type Header struct {
	Magic       uint32
	Version     uint16
	Type        MessageType
	PayloadSize uint32
	AccountID   uint64
	RequestID   uint32
}

// BuildPacket encodes a header and payload into a single buffer.
func BuildPacket(typ MessageType, accountID uint64, requestID uint32, payload []byte) ([]byte, error) {
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
		AccountID:   accountID,
		RequestID:   requestID,
	}
	if err := writeHeader(buf, h); err != nil {
		return nil, fmt.Errorf("auth: build packet: %w", err)
	}
	buf.Write(payload)
	return buf.Bytes(), nil
}

func writeHeader(w *bytes.Buffer, h Header) error {
	for _, v := range []any{h.Magic, h.Version, h.Type, h.PayloadSize, h.AccountID, h.RequestID} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	return nil
}

// ParsePacket validates the header and returns it along with the payload
// subslice of buf (no copy).
func ParsePacket(buf []byte) (Header, []byte, error) {
	if len(buf) < HeaderSize {
		return Header{}, nil, fmt.Errorf("auth: packet too short: %d bytes", len(buf))
	}
	r := bytes.NewReader(buf[:HeaderSize])
	var h Header
	fields := []any{&h.Magic, &h.Version, &h.Type, &h.PayloadSize, &h.AccountID, &h.RequestID}
	for _, f := range fields {
		if err := binary.Read(r, binary.LittleEndian, f); err != nil {
			return Header{}, nil, fmt.Errorf("auth: decode header: %w", err)
		}
	}
	if h.Magic != Magic {
		return Header{}, nil, fmt.Errorf("auth: bad magic %#x", h.Magic)
	}
	if h.Version != Version {
		return Header{}, nil, fmt.Errorf("auth: unsupported version %d", h.Version)
	}
	end := HeaderSize + int(h.PayloadSize)
	if end > len(buf) {
		return Header{}, nil, fmt.Errorf("auth: payload size %d exceeds buffer", h.PayloadSize)
	}
	return h, buf[HeaderSize:end], nil
}

// RegisterRequest is sent by a client that wants to create an account.
// PasswordHash is the client's SHA-256 pre-hash, hex-encoded.
type RegisterRequest struct {
	Username     [maxUsername]byte
	PasswordHash [maxHash]byte
	Email        [maxEmail]byte
}

func (p RegisterRequest) Encode() []byte {
	buf := make([]byte, maxUsername+maxHash+maxEmail)
	n := 0
	n += copy(buf[n:], p.Username[:])
	n += copy(buf[n:], p.PasswordHash[:])
	copy(buf[n:], p.Email[:])
	return buf
}

func DecodeRegisterRequest(b []byte) (RegisterRequest, error) {
	var p RegisterRequest
	if len(b) < maxUsername+maxHash+maxEmail {
		return p, fmt.Errorf("auth: short RegisterRequest payload")
	}
	n := 0
	n += copy(p.Username[:], b[n:n+maxUsername])
	n += copy(p.PasswordHash[:], b[n:n+maxHash])
	copy(p.Email[:], b[n:n+maxEmail])
	return p, nil
}

// NewRegisterRequest builds a RegisterRequest from plain Go strings.
func NewRegisterRequest(username, passwordHash, email string) RegisterRequest {
	var p RegisterRequest
	wire.CopyCString(p.Username[:], username)
	wire.CopyCString(p.PasswordHash[:], passwordHash)
	wire.CopyCString(p.Email[:], email)
	return p
}

func (p RegisterRequest) UsernameStr() string     { return wire.GoString(p.Username[:]) }
func (p RegisterRequest) PasswordHashStr() string { return wire.GoString(p.PasswordHash[:]) }
func (p RegisterRequest) EmailStr() string        { return wire.GoString(p.Email[:]) }

// RegisterResponse answers RegisterRequest.
type RegisterResponse struct {
	Result       Result
	SessionToken [maxToken]byte
}

func (p RegisterResponse) Encode() []byte {
	buf := make([]byte, 2+maxToken)
	binary.LittleEndian.PutUint16(buf[0:2], uint16(p.Result))
	copy(buf[2:], p.SessionToken[:])
	return buf
}

func DecodeRegisterResponse(b []byte) (RegisterResponse, error) {
	var p RegisterResponse
	if len(b) < 2+maxToken {
		return p, fmt.Errorf("auth: short RegisterResponse payload")
	}
	p.Result = Result(binary.LittleEndian.Uint16(b[0:2]))
	copy(p.SessionToken[:], b[2:2+maxToken])
	return p, nil
}

func NewRegisterResponse(result Result, token string) RegisterResponse {
	var p RegisterResponse
	p.Result = result
	wire.CopyCString(p.SessionToken[:], token)
	return p
}

func (p RegisterResponse) SessionTokenStr() string { return wire.GoString(p.SessionToken[:]) }

// LoginRequest authenticates an existing account.
type LoginRequest struct {
	Username     [maxUsername]byte
	PasswordHash [maxHash]byte
}

func (p LoginRequest) Encode() []byte {
	buf := make([]byte, maxUsername+maxHash)
	n := copy(buf, p.Username[:])
	copy(buf[n:], p.PasswordHash[:])
	return buf
}

func DecodeLoginRequest(b []byte) (LoginRequest, error) {
	var p LoginRequest
	if len(b) < maxUsername+maxHash {
		return p, fmt.Errorf("auth: short LoginRequest payload")
	}
	n := copy(p.Username[:], b[:maxUsername])
	copy(p.PasswordHash[:], b[n:n+maxHash])
	return p, nil
}

func NewLoginRequest(username, passwordHash string) LoginRequest {
	var p LoginRequest
	wire.CopyCString(p.Username[:], username)
	wire.CopyCString(p.PasswordHash[:], passwordHash)
	return p
}

func (p LoginRequest) UsernameStr() string     { return wire.GoString(p.Username[:]) }
func (p LoginRequest) PasswordHashStr() string { return wire.GoString(p.PasswordHash[:]) }

// LoginResponse answers LoginRequest.
type LoginResponse struct {
	Result       Result
	AccountID    uint64
	SessionToken [maxToken]byte
	Requires2FA  uint8
	BanReason    [maxReason]byte
}

func (p LoginResponse) Encode() []byte {
	buf := make([]byte, 2+8+maxToken+1+maxReason)
	n := 0
	binary.LittleEndian.PutUint16(buf[n:n+2], uint16(p.Result))
	n += 2
	binary.LittleEndian.PutUint64(buf[n:n+8], p.AccountID)
	n += 8
	n += copy(buf[n:], p.SessionToken[:])
	buf[n] = p.Requires2FA
	n++
	copy(buf[n:], p.BanReason[:])
	return buf
}

func DecodeLoginResponse(b []byte) (LoginResponse, error) {
	var p LoginResponse
	want := 2 + 8 + maxToken + 1 + maxReason
	if len(b) < want {
		return p, fmt.Errorf("auth: short LoginResponse payload")
	}
	n := 0
	p.Result = Result(binary.LittleEndian.Uint16(b[n : n+2]))
	n += 2
	p.AccountID = binary.LittleEndian.Uint64(b[n : n+8])
	n += 8
	n += copy(p.SessionToken[:], b[n:n+maxToken])
	p.Requires2FA = b[n]
	n++
	copy(p.BanReason[:], b[n:n+maxReason])
	return p, nil
}

func NewLoginResponse(result Result, accountID uint64, token, banReason string) LoginResponse {
	var p LoginResponse
	p.Result = result
	p.AccountID = accountID
	wire.CopyCString(p.SessionToken[:], token)
	wire.CopyCString(p.BanReason[:], banReason)
	return p
}

func (p LoginResponse) SessionTokenStr() string { return wire.GoString(p.SessionToken[:]) }
func (p LoginResponse) BanReasonStr() string    { return wire.GoString(p.BanReason[:]) }

// ValidateTokenRequest is sent by the coordinator to check a client's
// session token before admitting it to the queue.
type ValidateTokenRequest struct {
	SessionToken [maxToken]byte
}

func (p ValidateTokenRequest) Encode() []byte {
	buf := make([]byte, maxToken)
	copy(buf, p.SessionToken[:])
	return buf
}

func DecodeValidateTokenRequest(b []byte) (ValidateTokenRequest, error) {
	var p ValidateTokenRequest
	if len(b) < maxToken {
		return p, fmt.Errorf("auth: short ValidateTokenRequest payload")
	}
	copy(p.SessionToken[:], b[:maxToken])
	return p, nil
}

func NewValidateTokenRequest(token string) ValidateTokenRequest {
	var p ValidateTokenRequest
	wire.CopyCString(p.SessionToken[:], token)
	return p
}

func (p ValidateTokenRequest) SessionTokenStr() string { return wire.GoString(p.SessionToken[:]) }

// ValidateTokenResponse answers ValidateTokenRequest.
type ValidateTokenResponse struct {
	Result    Result
	AccountID uint64
	IsBanned  uint8
	ExpiresAt int64 // unix seconds
}

func (p ValidateTokenResponse) Encode() []byte {
	buf := make([]byte, 2+8+1+8)
	n := 0
	binary.LittleEndian.PutUint16(buf[n:n+2], uint16(p.Result))
	n += 2
	binary.LittleEndian.PutUint64(buf[n:n+8], p.AccountID)
	n += 8
	buf[n] = p.IsBanned
	n++
	binary.LittleEndian.PutUint64(buf[n:n+8], uint64(p.ExpiresAt))
	return buf
}

func DecodeValidateTokenResponse(b []byte) (ValidateTokenResponse, error) {
	var p ValidateTokenResponse
	if len(b) < 2+8+1+8 {
		return p, fmt.Errorf("auth: short ValidateTokenResponse payload")
	}
	n := 0
	p.Result = Result(binary.LittleEndian.Uint16(b[n : n+2]))
	n += 2
	p.AccountID = binary.LittleEndian.Uint64(b[n : n+8])
	n += 8
	p.IsBanned = b[n]
	n++
	p.ExpiresAt = int64(binary.LittleEndian.Uint64(b[n : n+8]))
	return p, nil
}

// LogoutRequest invalidates one or all sessions of an account.
type LogoutRequest struct {
	SessionToken    [maxToken]byte
	LogoutAllSessions uint8
}

func (p LogoutRequest) Encode() []byte {
	buf := make([]byte, maxToken+1)
	n := copy(buf, p.SessionToken[:])
	buf[n] = p.LogoutAllSessions
	return buf
}

func DecodeLogoutRequest(b []byte) (LogoutRequest, error) {
	var p LogoutRequest
	if len(b) < maxToken+1 {
		return p, fmt.Errorf("auth: short LogoutRequest payload")
	}
	n := copy(p.SessionToken[:], b[:maxToken])
	p.LogoutAllSessions = b[n]
	return p, nil
}

func NewLogoutRequest(token string, allSessions bool) LogoutRequest {
	var p LogoutRequest
	wire.CopyCString(p.SessionToken[:], token)
	if allSessions {
		p.LogoutAllSessions = 1
	}
	return p
}

func (p LogoutRequest) SessionTokenStr() string { return wire.GoString(p.SessionToken[:]) }

// LogoutResponse reports how many sessions were invalidated.
type LogoutResponse struct {
	Result          Result
	SessionsRemoved uint32
}

func (p LogoutResponse) Encode() []byte {
	buf := make([]byte, 2+4)
	binary.LittleEndian.PutUint16(buf[0:2], uint16(p.Result))
	binary.LittleEndian.PutUint32(buf[2:6], p.SessionsRemoved)
	return buf
}

func DecodeLogoutResponse(b []byte) (LogoutResponse, error) {
	var p LogoutResponse
	if len(b) < 6 {
		return p, fmt.Errorf("auth: short LogoutResponse payload")
	}
	p.Result = Result(binary.LittleEndian.Uint16(b[0:2]))
	p.SessionsRemoved = binary.LittleEndian.Uint32(b[2:6])
	return p, nil
}

// ChangePasswordRequest requires a valid session plus the old hash.
type ChangePasswordRequest struct {
	SessionToken [maxToken]byte
	OldHash      [maxHash]byte
	NewHash      [maxHash]byte
}

func (p ChangePasswordRequest) Encode() []byte {
	buf := make([]byte, maxToken+2*maxHash)
	n := copy(buf, p.SessionToken[:])
	n += copy(buf[n:], p.OldHash[:])
	copy(buf[n:], p.NewHash[:])
	return buf
}

func DecodeChangePasswordRequest(b []byte) (ChangePasswordRequest, error) {
	var p ChangePasswordRequest
	want := maxToken + 2*maxHash
	if len(b) < want {
		return p, fmt.Errorf("auth: short ChangePasswordRequest payload")
	}
	n := copy(p.SessionToken[:], b[:maxToken])
	n += copy(p.OldHash[:], b[n:n+maxHash])
	copy(p.NewHash[:], b[n:n+maxHash])
	return p, nil
}

func NewChangePasswordRequest(token, oldHash, newHash string) ChangePasswordRequest {
	var p ChangePasswordRequest
	wire.CopyCString(p.SessionToken[:], token)
	wire.CopyCString(p.OldHash[:], oldHash)
	wire.CopyCString(p.NewHash[:], newHash)
	return p
}

func (p ChangePasswordRequest) SessionTokenStr() string { return wire.GoString(p.SessionToken[:]) }
func (p ChangePasswordRequest) OldHashStr() string      { return wire.GoString(p.OldHash[:]) }
func (p ChangePasswordRequest) NewHashStr() string      { return wire.GoString(p.NewHash[:]) }

// ChangePasswordResponse reports the outcome and how many sessions were
// invalidated as a side effect.
type ChangePasswordResponse struct {
	Result          Result
	SessionsRemoved uint32
}

func (p ChangePasswordResponse) Encode() []byte {
	buf := make([]byte, 2+4)
	binary.LittleEndian.PutUint16(buf[0:2], uint16(p.Result))
	binary.LittleEndian.PutUint32(buf[2:6], p.SessionsRemoved)
	return buf
}

func DecodeChangePasswordResponse(b []byte) (ChangePasswordResponse, error) {
	var p ChangePasswordResponse
	if len(b) < 6 {
		return p, fmt.Errorf("auth: short ChangePasswordResponse payload")
	}
	p.Result = Result(binary.LittleEndian.Uint16(b[0:2]))
	p.SessionsRemoved = binary.LittleEndian.Uint32(b[2:6])
	return p, nil
}
