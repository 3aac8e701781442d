// Package db holds the SQL migrations applied by the migrate command.
package db

import "embed"

// MigrationsDir is the directory inside Migrations holding goose files.
const MigrationsDir = "migrations/sql"

// Migrations embeds the goose migration files.
//
//go:embed migrations/sql/*.sql
var Migrations embed.FS
