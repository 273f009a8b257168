package database

import (
	"database/sql"
	"fmt"
)

// credentialSchema is the single table the chat service persists. Column
// types and the table name match the historical database file so existing
// deployments keep working across upgrades.
const credentialSchema = `
CREATE TABLE IF NOT EXISTS PASSWORD (
	USERNAME CHAR(32) PRIMARY KEY NOT NULL,
	PASSWORD CHAR(32)
);`

// EnsureSchema creates the credential table when it does not exist yet.
// It is safe to call on every startup.
func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(credentialSchema); err != nil {
		return fmt.Errorf("create credential table: %w", err)
	}
	return nil
}

// VerifySchema reports whether the credential table is present. Health
// checks use it to distinguish a reachable database from a usable one.
func VerifySchema(db *sql.DB) error {
	var count int
	err := db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?",
		"PASSWORD",
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("query sqlite_master: %w", err)
	}
	if count == 0 {
		return ErrSchemaMissing
	}
	return nil
}
