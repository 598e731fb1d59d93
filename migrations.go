package mindvoice

import "embed"

// MigrationsFS holds the SQL migrations for the Postgres record store.
//
//go:embed migrations/*.sql
var MigrationsFS embed.FS
