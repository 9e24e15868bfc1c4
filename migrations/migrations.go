// Package migrations embeds the schema of the receipts journal.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
