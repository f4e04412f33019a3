// Package migrations embeds the PostgreSQL schema migrations applied by
// the migrate command and by the server when migration_auto_run is set.
package migrations

import "embed"

// FS holds the numbered up and down migration files.
//
//go:embed *.sql
var FS embed.FS
