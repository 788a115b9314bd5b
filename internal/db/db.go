// Package db is the auth store (C3): durable accounts, sessions, and
// login-failure tracking backed by PostgreSQL via pgx.
package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/udisondev/arenamatch/internal/model"
)

// ErrUsernameTaken is returned by CreateAccount on a unique-constraint
// violation.
var ErrUsernameTaken = errors.New("db: username already taken")

// DB wraps a pgx connection pool.
type DB struct {
	pool *pgxpool.Pool
}

// New connects to dsn and verifies the connection with a ping.
func New(ctx context.Context, dsn string) (*DB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("db: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db: ping: %w", err)
	}
	return &DB{pool: pool}, nil
}

// Close releases the pool's connections.
func (d *DB) Close() {
	d.pool.Close()
}

// Pool exposes the underlying pgx pool for migration/test bootstrap.
func (d *DB) Pool() *pgxpool.Pool {
	return d.pool
}

// CreateAccount inserts a new account with the given pre-hashed-and-salted
// password hash. Returns ErrUsernameTaken on a duplicate username
// (case-insensitive).
func (d *DB) CreateAccount(ctx context.Context, username, passwordHash, email string) (uint64, error) {
	var accountID uint64
	err := d.pool.QueryRow(ctx, `
		INSERT INTO accounts (username, username_lower, password_hash, email, created_at)
		VALUES ($1, $2, $3, $4, now())
		RETURNING account_id
	`, username, strings.ToLower(username), passwordHash, email).Scan(&accountID)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrUsernameTaken
		}
		return 0, fmt.Errorf("db: create account: %w", err)
	}
	return accountID, nil
}

// GetAccountByUsername returns nil, nil when no account matches.
func (d *DB) GetAccountByUsername(ctx context.Context, username string) (*model.Account, error) {
	return d.scanAccount(ctx, `
		SELECT account_id, username, password_hash, email, created_at, last_login_at,
		       is_banned, ban_reason, ban_until
		FROM accounts WHERE username_lower = $1
	`, strings.ToLower(username))
}

// GetAccountByID returns nil, nil when no account matches.
func (d *DB) GetAccountByID(ctx context.Context, accountID uint64) (*model.Account, error) {
	return d.scanAccount(ctx, `
		SELECT account_id, username, password_hash, email, created_at, last_login_at,
		       is_banned, ban_reason, ban_until
		FROM accounts WHERE account_id = $1
	`, accountID)
}

func (d *DB) scanAccount(ctx context.Context, query string, arg any) (*model.Account, error) {
	var a model.Account
	var banUntil, lastLogin *time.Time
	err := d.pool.QueryRow(ctx, query, arg).Scan(
		&a.AccountID, &a.Username, &a.PasswordHash, &a.Email, &a.CreatedAt, &lastLogin,
		&a.IsBanned, &a.BanReason, &banUntil,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db: get account: %w", err)
	}
	if lastLogin != nil {
		a.LastLoginAt = *lastLogin
	}
	if banUntil != nil {
		a.BanUntil = *banUntil
	}
	return &a, nil
}

// UpdatePasswordHash rewrites an account's password hash. The caller is
// responsible for also invalidating sessions (DeleteAllSessionsFor).
func (d *DB) UpdatePasswordHash(ctx context.Context, accountID uint64, newHash string) error {
	_, err := d.pool.Exec(ctx, `UPDATE accounts SET password_hash = $1 WHERE account_id = $2`, newHash, accountID)
	if err != nil {
		return fmt.Errorf("db: update password hash: %w", err)
	}
	return nil
}

// UpdateLastLogin stamps the account's last-login timestamp to now.
func (d *DB) UpdateLastLogin(ctx context.Context, accountID uint64) error {
	_, err := d.pool.Exec(ctx, `UPDATE accounts SET last_login_at = now() WHERE account_id = $1`, accountID)
	if err != nil {
		return fmt.Errorf("db: update last login: %w", err)
	}
	return nil
}

// BanAccount marks an account banned. until zero-value means permanent.
func (d *DB) BanAccount(ctx context.Context, accountID uint64, reason string, until time.Time) error {
	var untilArg any
	if !until.IsZero() {
		untilArg = until
	}
	_, err := d.pool.Exec(ctx, `
		UPDATE accounts SET is_banned = true, ban_reason = $1, ban_until = $2 WHERE account_id = $3
	`, reason, untilArg, accountID)
	if err != nil {
		return fmt.Errorf("db: ban account: %w", err)
	}
	return nil
}

// UnbanAccount clears an account's ban state.
func (d *DB) UnbanAccount(ctx context.Context, accountID uint64) error {
	_, err := d.pool.Exec(ctx, `
		UPDATE accounts SET is_banned = false, ban_reason = '', ban_until = NULL WHERE account_id = $1
	`, accountID)
	if err != nil {
		return fmt.Errorf("db: unban account: %w", err)
	}
	return nil
}

// CreateSession inserts a new session row.
func (d *DB) CreateSession(ctx context.Context, token string, accountID uint64, expiresAt time.Time, ip string) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO sessions (token, account_id, created_at, expires_at, last_seen_ip)
		VALUES ($1, $2, now(), $3, $4)
	`, token, accountID, expiresAt, ip)
	if err != nil {
		return fmt.Errorf("db: create session: %w", err)
	}
	return nil
}

// GetSession returns nil, nil when the token is absent or expired.
func (d *DB) GetSession(ctx context.Context, token string) (*model.Session, error) {
	var s model.Session
	err := d.pool.QueryRow(ctx, `
		SELECT token, account_id, created_at, expires_at, last_seen_ip
		FROM sessions WHERE token = $1 AND expires_at > now()
	`, token).Scan(&s.Token, &s.AccountID, &s.CreatedAt, &s.ExpiresAt, &s.LastSeenIP)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db: get session: %w", err)
	}
	return &s, nil
}

// DeleteSession removes one session by token. Returns true if a row was
// removed.
func (d *DB) DeleteSession(ctx context.Context, token string) (bool, error) {
	tag, err := d.pool.Exec(ctx, `DELETE FROM sessions WHERE token = $1`, token)
	if err != nil {
		return false, fmt.Errorf("db: delete session: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteAllSessionsFor removes every session belonging to an account and
// returns how many were removed.
func (d *DB) DeleteAllSessionsFor(ctx context.Context, accountID uint64) (int, error) {
	tag, err := d.pool.Exec(ctx, `DELETE FROM sessions WHERE account_id = $1`, accountID)
	if err != nil {
		return 0, fmt.Errorf("db: delete all sessions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// SweepExpiredSessions deletes every session past its expiry, as a
// defensive periodic task alongside the filter already applied by
// GetSession.
func (d *DB) SweepExpiredSessions(ctx context.Context) (int, error) {
	tag, err := d.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("db: sweep expired sessions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// RecordFailedLogin logs a failed login attempt for rate limiting.
func (d *DB) RecordFailedLogin(ctx context.Context, username, ip string) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO login_failures (username, ip, occurred_at) VALUES ($1, $2, now())
	`, strings.ToLower(username), ip)
	if err != nil {
		return fmt.Errorf("db: record failed login: %w", err)
	}
	return nil
}

// CountRecentFailures counts failed logins for username within the last
// windowSec seconds.
func (d *DB) CountRecentFailures(ctx context.Context, username string, windowSec int) (int, error) {
	var count int
	err := d.pool.QueryRow(ctx, `
		SELECT count(*) FROM login_failures
		WHERE username = $1 AND occurred_at > now() - ($2 || ' seconds')::interval
	`, strings.ToLower(username), windowSec).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("db: count recent failures: %w", err)
	}
	return count, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "duplicate key value violates unique constraint")
}
