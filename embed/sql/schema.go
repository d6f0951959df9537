package sql

import _ "embed"

// Schema creates every table, index and view. It is idempotent.
//
//go:embed schema.sql
var Schema string
