// Package migrations embeds the notification audit log schema migrations.
package migrations

import "embed"

// FS holds the SQL migration files applied at startup.
//
//go:embed *.sql
var FS embed.FS
