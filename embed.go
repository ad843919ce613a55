// Package llmrank embeds repository-level assets needed at runtime.
package llmrank

import "embed"

// Migrations holds the SQL migration files applied by the migrate
// command.
//
//go:embed migrations/*.sql
var Migrations embed.FS
