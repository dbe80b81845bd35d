// Package migrations embeds the SQL schema migrations for sqlqueue's
// requests table so golang-migrate can apply them from a single binary.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
