// Package migrations embeds the postgres schema migrations.
package migrations

import "embed"

// FS holds every *.up.sql / *.down.sql pair, applied in version order.
//
//go:embed *.sql
var FS embed.FS
