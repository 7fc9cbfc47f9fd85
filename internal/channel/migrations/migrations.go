// Package migrations embeds the channel schema migration files.
package migrations

import "embed"

// FS holds the channel SQL migrations.
//
//go:embed *.sql
var FS embed.FS
