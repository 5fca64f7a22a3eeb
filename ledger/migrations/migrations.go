// Package migrations embeds the ledger's SQLite schema.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
