// Package migrations embeds the SQL schema migrations of the Accolade database.
package migrations

import "embed"

// FS holds the versioned migration files (golang-migrate naming: NNNNNN_name.{up,down}.sql).
//
//go:embed *.sql
var FS embed.FS
