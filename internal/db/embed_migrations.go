package db

import "embed"

// MigrationFS embeds the Postgres migration files from internal/db/migrations.
// Used by the migrate runner (cmd migrate) to apply schema changes.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS

// ClickHouseSchemaFS embeds the ClickHouse DDL applied by `migrate --clickhouse`.
//
//go:embed migrations/clickhouse/*.sql
var ClickHouseSchemaFS embed.FS
