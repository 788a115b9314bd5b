// Package migrations embeds the goose SQL migrations for the auth store
// schema (accounts, sessions, login_failures).
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
