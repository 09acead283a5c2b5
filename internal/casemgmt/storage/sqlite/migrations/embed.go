package migrations

import "embed"

// FS contains embedded SQLite migrations for case management storage.
//
//go:embed *.sql
var FS embed.FS
