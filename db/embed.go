// Package db provides the embedded database schema and the default seed
// catalog used by the development commerce API.
package db

import _ "embed"

// Schema contains the DDL statements for the postgres storage backend.
//
//go:embed migrations/001_schema.sql
var Schema string

// SeedProducts is the default product list served by commerce-mock, in the
// remote API's wire format.
//
//go:embed seed/products.json
var SeedProducts []byte
