package migrations

import "embed"

// Files holds the SQL migrations, applied in file name order
// (001_init.sql, 002_event_colors.sql, ...).
//
//go:embed *.sql
var Files embed.FS
