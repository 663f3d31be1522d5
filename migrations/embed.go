// Package migrations holds the SQL schema migrations applied by pkg/database.
package migrations

import "embed"

// FS contains every NNN_name.sql migration file
//
//go:embed *.sql
var FS embed.FS
