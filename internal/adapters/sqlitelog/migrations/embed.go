package migrations

import "embed"

// FS contains the embedded membership log schema.
//
//go:embed *.sql
var FS embed.FS
