// Package postgres provides the PostgreSQL implementation of the artifact
// catalog defined in internal/store, together with the embedded goose
// migrations that create its schema. It talks to the database through
// database/sql with the pgx stdlib driver.
package postgres
