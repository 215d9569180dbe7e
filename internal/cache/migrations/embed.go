// Package migrations contains the SQLite schema of the rewrite cache.
package migrations

import "embed"

// FS contains the embedded SQLite migrations.
//
//go:embed *.sql
var FS embed.FS
