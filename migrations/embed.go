// Package migrations carries the bridge's SQLite schema inside the binary.
//
// Importing it for side effects points the database package at the
// embedded files:
//
//	import _ "github.com/nerrad567/ruuvi-bridge/migrations"
package migrations

import (
	"embed"

	"github.com/nerrad567/ruuvi-bridge/internal/infrastructure/database"
)

//go:embed *.sql
var files embed.FS

func init() {
	database.MigrationsFS, database.MigrationsDir = files, "."
}
