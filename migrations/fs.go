// Package migrations embeds the SQL schema migrations served to the
// golang-migrate runner.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
