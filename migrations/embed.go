// Package migrations embeds the SQL schema migrations into the binary so the
// daemon can migrate its event log without the files on disk.
package migrations

import "embed"

// FS holds every migration file at its root.
//
//go:embed *.sql
var FS embed.FS
