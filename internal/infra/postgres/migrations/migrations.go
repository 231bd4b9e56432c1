package migrations

import "github.com/uptrace/bun/migrate"

// Migrations holds the schema changes, named after the files that register them.
var Migrations = migrate.NewMigrations()
