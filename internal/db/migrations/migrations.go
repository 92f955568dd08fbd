// Package migrations embeds the goose schema for the PostgreSQL-backed stores.
package migrations

import "embed"

// FS holds the *.sql migrations at its root.
//
//go:embed *.sql
var FS embed.FS
