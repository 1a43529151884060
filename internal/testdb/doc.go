// Package testdb provides helpers for tests that run against a real
// PostgreSQL database. Tests using it are skipped unless DATABASE_URL or
// QUICKSERVE_TEST_DB_URL is set.
package testdb
