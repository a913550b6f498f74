// Package db embeds the SQL schema of the sales database.
package db

import _ "embed"

// Schema creates every table and index. It is safe to apply repeatedly.
//
//go:embed migrations/001_schema.sql
var Schema string
