// Package auth implements the auth service (C4): a single-threaded UDP
// event loop dispatching Register/Login/ValidateToken/Logout/
// ChangePassword requests against the auth store.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"github.com/udisondev/arenamatch/internal/config"
	"github.com/udisondev/arenamatch/internal/db"
	"github.com/udisondev/arenamatch/internal/model"
	wireauth "github.com/udisondev/arenamatch/internal/wire/auth"
)

// Endpoint is the subset of netutil.Endpoint the service needs, narrowed
// for testability.
type Endpoint interface {
	Send(addr *net.UDPAddr, payload []byte) error
	Receive() (payload []byte, from *net.UDPAddr, ok bool, err error)
}

// Store is the subset of *db.DB the service depends on.
type Store interface {
	CreateAccount(ctx context.Context, username, passwordHash, email string) (uint64, error)
	GetAccountByUsername(ctx context.Context, username string) (*model.Account, error)
	GetAccountByID(ctx context.Context, accountID uint64) (*model.Account, error)
	UpdatePasswordHash(ctx context.Context, accountID uint64, newHash string) error
	UpdateLastLogin(ctx context.Context, accountID uint64) error
	CreateSession(ctx context.Context, token string, accountID uint64, expiresAt time.Time, ip string) error
	GetSession(ctx context.Context, token string) (*model.Session, error)
	DeleteSession(ctx context.Context, token string) (bool, error)
	DeleteAllSessionsFor(ctx context.Context, accountID uint64) (int, error)
	RecordFailedLogin(ctx context.Context, username, ip string) error
	CountRecentFailures(ctx context.Context, username string, windowSec int) (int, error)
	SweepExpiredSessions(ctx context.Context) (int, error)
}

// Service owns the auth datagram endpoint and the account store.
type Service struct {
	cfg   config.AuthServer
	ep    Endpoint
	store Store
}

// NewService wires a Service to an already-bound endpoint and store.
func NewService(cfg config.AuthServer, ep Endpoint, store Store) *Service {
	return &Service{cfg: cfg, ep: ep, store: store}
}

// Run drains the endpoint until ctx is cancelled, periodically sweeping
// expired sessions out of the store.
func (s *Service) Run(ctx context.Context) error {
	sweepInterval := time.Duration(s.cfg.SessionSweepIntervalSec) * time.Second
	lastSweep := time.Now()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		payload, from, ok, err := s.ep.Receive()
		if err != nil {
			slog.Error("auth: receive failed", "err", err)
			continue
		}
		if !ok {
			if time.Since(lastSweep) >= sweepInterval {
				s.sweepExpiredSessions(ctx)
				lastSweep = time.Now()
			}
			time.Sleep(time.Millisecond)
			continue
		}
		s.handlePacket(ctx, payload, from)
	}
}

func (s *Service) sweepExpiredSessions(ctx context.Context) {
	n, err := s.store.SweepExpiredSessions(ctx)
	if err != nil {
		slog.Error("auth: sweep expired sessions failed", "err", err)
		return
	}
	if n > 0 {
		slog.Info("auth: swept expired sessions", "count", n)
	}
}

func (s *Service) handlePacket(ctx context.Context, payload []byte, from *net.UDPAddr) {
	h, body, err := wireauth.ParsePacket(payload)
	if err != nil {
		return // parse errors are dropped silently: potential attack surface
	}
	switch h.Type {
	case wireauth.TypeRegisterRequest:
		s.handleRegister(ctx, h, body, from)
	case wireauth.TypeLoginRequest:
		s.handleLogin(ctx, h, body, from)
	case wireauth.TypeValidateTokenRequest:
		s.handleValidateToken(ctx, h, body, from)
	case wireauth.TypeLogoutRequest:
		s.handleLogout(ctx, h, body, from)
	case wireauth.TypeChangePasswordRequest:
		s.handleChangePassword(ctx, h, body, from)
	default:
		// unknown types are dropped silently per the wire contract
	}
}

func (s *Service) reply(from *net.UDPAddr, typ wireauth.MessageType, accountID uint64, requestID uint32, payload []byte) {
	buf, err := wireauth.BuildPacket(typ, accountID, requestID, payload)
	if err != nil {
		slog.Error("auth: build reply failed", "err", err)
		return
	}
	if err := s.ep.Send(from, buf); err != nil {
		slog.Warn("auth: send reply failed", "err", err)
	}
}

func (s *Service) handleRegister(ctx context.Context, h wireauth.Header, body []byte, from *net.UDPAddr) {
	req, err := wireauth.DecodeRegisterRequest(body)
	if err != nil {
		return
	}
	username, passwordHash := req.UsernameStr(), req.PasswordHashStr()

	if !validUsername(username) {
		resp := wireauth.NewRegisterResponse(wireauth.InvalidUsername, "")
		s.reply(from, wireauth.TypeRegisterResponse, 0, h.RequestID, resp.Encode())
		return
	}
	if len(passwordHash) < 8 {
		resp := wireauth.NewRegisterResponse(wireauth.PasswordTooShort, "")
		s.reply(from, wireauth.TypeRegisterResponse, 0, h.RequestID, resp.Encode())
		return
	}

	hash, err := hashPassword(passwordHash, s.cfg.BcryptCost)
	if err != nil {
		slog.Error("auth: hash password failed", "err", err)
		resp := wireauth.NewRegisterResponse(wireauth.ServerError, "")
		s.reply(from, wireauth.TypeRegisterResponse, 0, h.RequestID, resp.Encode())
		return
	}

	accountID, err := s.store.CreateAccount(ctx, username, hash, req.EmailStr())
	if err != nil {
		result := wireauth.ServerError
		if errors.Is(err, db.ErrUsernameTaken) {
			result = wireauth.UsernameTaken
		} else {
			slog.Error("auth: create account failed", "err", err)
		}
		resp := wireauth.NewRegisterResponse(result, "")
		s.reply(from, wireauth.TypeRegisterResponse, 0, h.RequestID, resp.Encode())
		return
	}

	token, err := s.issueSession(ctx, accountID, from.IP.String())
	if err != nil {
		slog.Error("auth: issue session failed", "err", err)
		resp := wireauth.NewRegisterResponse(wireauth.ServerError, "")
		s.reply(from, wireauth.TypeRegisterResponse, 0, h.RequestID, resp.Encode())
		return
	}

	resp := wireauth.NewRegisterResponse(wireauth.Success, token)
	s.reply(from, wireauth.TypeRegisterResponse, accountID, h.RequestID, resp.Encode())
}

func (s *Service) handleLogin(ctx context.Context, h wireauth.Header, body []byte, from *net.UDPAddr) {
	req, err := wireauth.DecodeLoginRequest(body)
	if err != nil {
		return
	}
	username := req.UsernameStr()

	failures, err := s.store.CountRecentFailures(ctx, username, s.cfg.FailureWindowSec)
	if err != nil {
		slog.Error("auth: count recent failures failed", "err", err)
	} else if failures >= s.cfg.LoginTryBeforeBan {
		resp := wireauth.NewLoginResponse(wireauth.RateLimited, 0, "", "")
		s.reply(from, wireauth.TypeLoginResponse, 0, h.RequestID, resp.Encode())
		return
	}

	account, err := s.store.GetAccountByUsername(ctx, username)
	if err != nil {
		slog.Error("auth: get account failed", "err", err)
		resp := wireauth.NewLoginResponse(wireauth.ServerError, 0, "", "")
		s.reply(from, wireauth.TypeLoginResponse, 0, h.RequestID, resp.Encode())
		return
	}
	if account == nil || !passwordMatches(account.PasswordHash, req.PasswordHashStr()) {
		_ = s.store.RecordFailedLogin(ctx, username, from.IP.String())
		resp := wireauth.NewLoginResponse(wireauth.InvalidCredentials, 0, "", "")
		s.reply(from, wireauth.TypeLoginResponse, 0, h.RequestID, resp.Encode())
		return
	}
	if account.IsBanned {
		resp := wireauth.NewLoginResponse(wireauth.AccountBanned, account.AccountID, "", account.BanReason)
		s.reply(from, wireauth.TypeLoginResponse, account.AccountID, h.RequestID, resp.Encode())
		return
	}

	token, err := s.issueSession(ctx, account.AccountID, from.IP.String())
	if err != nil {
		slog.Error("auth: issue session failed", "err", err)
		resp := wireauth.NewLoginResponse(wireauth.ServerError, 0, "", "")
		s.reply(from, wireauth.TypeLoginResponse, 0, h.RequestID, resp.Encode())
		return
	}
	if err := s.store.UpdateLastLogin(ctx, account.AccountID); err != nil {
		slog.Warn("auth: stamp last login failed", "err", err)
	}

	resp := wireauth.NewLoginResponse(wireauth.Success, account.AccountID, token, "")
	s.reply(from, wireauth.TypeLoginResponse, account.AccountID, h.RequestID, resp.Encode())
}

func (s *Service) handleValidateToken(ctx context.Context, h wireauth.Header, body []byte, from *net.UDPAddr) {
	req, err := wireauth.DecodeValidateTokenRequest(body)
	if err != nil {
		return
	}
	sess, err := s.store.GetSession(ctx, req.SessionTokenStr())
	if err != nil {
		slog.Error("auth: get session failed", "err", err)
		resp := wireauth.ValidateTokenResponse{Result: wireauth.ServerError}
		s.reply(from, wireauth.TypeValidateTokenResponse, 0, h.RequestID, resp.Encode())
		return
	}
	if sess == nil {
		resp := wireauth.ValidateTokenResponse{Result: wireauth.TokenInvalid}
		s.reply(from, wireauth.TypeValidateTokenResponse, 0, h.RequestID, resp.Encode())
		return
	}

	account, err := s.store.GetAccountByID(ctx, sess.AccountID)
	if err != nil || account == nil {
		resp := wireauth.ValidateTokenResponse{Result: wireauth.TokenInvalid}
		s.reply(from, wireauth.TypeValidateTokenResponse, 0, h.RequestID, resp.Encode())
		return
	}

	resp := wireauth.ValidateTokenResponse{
		Result:    wireauth.Success,
		AccountID: account.AccountID,
		ExpiresAt: sess.ExpiresAt.Unix(),
	}
	if account.IsBanned {
		resp.IsBanned = 1
	}
	s.reply(from, wireauth.TypeValidateTokenResponse, account.AccountID, h.RequestID, resp.Encode())
}

func (s *Service) handleLogout(ctx context.Context, h wireauth.Header, body []byte, from *net.UDPAddr) {
	req, err := wireauth.DecodeLogoutRequest(body)
	if err != nil {
		return
	}
	var removed int
	if req.LogoutAllSessions == 1 {
		sess, err := s.store.GetSession(ctx, req.SessionTokenStr())
		if err == nil && sess != nil {
			removed, _ = s.store.DeleteAllSessionsFor(ctx, sess.AccountID)
		}
	} else {
		if ok, _ := s.store.DeleteSession(ctx, req.SessionTokenStr()); ok {
			removed = 1
		}
	}
	resp := wireauth.LogoutResponse{Result: wireauth.Success, SessionsRemoved: uint32(removed)}
	s.reply(from, wireauth.TypeLogoutResponse, h.AccountID, h.RequestID, resp.Encode())
}

func (s *Service) handleChangePassword(ctx context.Context, h wireauth.Header, body []byte, from *net.UDPAddr) {
	req, err := wireauth.DecodeChangePasswordRequest(body)
	if err != nil {
		return
	}
	sess, err := s.store.GetSession(ctx, req.SessionTokenStr())
	if err != nil || sess == nil {
		resp := wireauth.ChangePasswordResponse{Result: wireauth.TokenInvalid}
		s.reply(from, wireauth.TypeChangePasswordResponse, 0, h.RequestID, resp.Encode())
		return
	}
	account, err := s.store.GetAccountByID(ctx, sess.AccountID)
	if err != nil || account == nil || !passwordMatches(account.PasswordHash, req.OldHashStr()) {
		resp := wireauth.ChangePasswordResponse{Result: wireauth.InvalidCredentials}
		s.reply(from, wireauth.TypeChangePasswordResponse, sess.AccountID, h.RequestID, resp.Encode())
		return
	}

	newHash, err := hashPassword(req.NewHashStr(), s.cfg.BcryptCost)
	if err != nil {
		resp := wireauth.ChangePasswordResponse{Result: wireauth.ServerError}
		s.reply(from, wireauth.TypeChangePasswordResponse, sess.AccountID, h.RequestID, resp.Encode())
		return
	}
	if err := s.store.UpdatePasswordHash(ctx, account.AccountID, newHash); err != nil {
		resp := wireauth.ChangePasswordResponse{Result: wireauth.ServerError}
		s.reply(from, wireauth.TypeChangePasswordResponse, sess.AccountID, h.RequestID, resp.Encode())
		return
	}
	removed, _ := s.store.DeleteAllSessionsFor(ctx, account.AccountID)

	resp := wireauth.ChangePasswordResponse{Result: wireauth.Success, SessionsRemoved: uint32(removed)}
	s.reply(from, wireauth.TypeChangePasswordResponse, account.AccountID, h.RequestID, resp.Encode())
}

func (s *Service) issueSession(ctx context.Context, accountID uint64, ip string) (string, error) {
	token, err := newSessionToken()
	if err != nil {
		return "", fmt.Errorf("auth: generate token: %w", err)
	}
	expiresAt := time.Now().Add(time.Duration(s.cfg.SessionTTLSec) * time.Second)
	if err := s.store.CreateSession(ctx, token, accountID, expiresAt, ip); err != nil {
		return "", fmt.Errorf("auth: create session: %w", err)
	}
	return token, nil
}

// newSessionToken returns 64 hex characters of cryptographically strong
// randomness.
func newSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// hashPassword rehashes the client's SHA-256 pre-hash with bcrypt before
// it ever touches storage.
func hashPassword(clientHash string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(clientHash), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func passwordMatches(storedHash, clientHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(clientHash)) == nil
}

func validUsername(u string) bool {
	if len(u) == 0 || len(u) > 32 {
		return false
	}
	for _, r := range u {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}
	return true
}
