package model

import "time"

// Account is a durable player identity. accountId is server-assigned on
// registration and never reused.
type Account struct {
	AccountID    uint64
	Username     string
	PasswordHash string
	Email        string
	CreatedAt    time.Time
	LastLoginAt  time.Time
	IsBanned     bool
	BanReason    string
	BanUntil     time.Time // zero value means permanent when IsBanned
}

// Session is a bearer credential issued on register/login and validated
// by the auth service on every trust-sensitive request.
type Session struct {
	Token       string
	AccountID   uint64
	CreatedAt   time.Time
	ExpiresAt   time.Time
	LastSeenIP  string
}

// Valid reports whether the session has not yet expired.
func (s Session) Valid(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}
