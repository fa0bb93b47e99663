// Package migrations embeds the SQL schema shared by the SQLite and
// PostgreSQL stores.
package migrations

import "embed"

// FS holds the ordered *.sql migration files.
//
//go:embed *.sql
var FS embed.FS
