// Package postgres stores users and refresh tokens in PostgreSQL through
// database/sql and the pgx stdlib driver.
//
// Schema changes ship as goose migrations embedded from ./migrations and are
// applied by [Migrate]. Unique violations (SQLSTATE 23505) are returned as
// *store.ConstraintError carrying the constraint name; callers never see
// driver error text.
//
// Refresh rows are keyed by token digest. [Store.Rotate] runs
// DELETE ... RETURNING followed by INSERT in one transaction, so concurrent
// redemptions of the same key cannot both succeed.
package postgres
