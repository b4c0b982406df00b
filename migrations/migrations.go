// Package migrations хранит SQL-схему журнала резолвинга, встроенную в бинарник.
package migrations

import "embed"

//go:embed *.sql
var EmbeddedFS embed.FS
