package mgmt

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// AuditLog appends every accepted management command to a sqlite table,
// for operational record keeping. It is not part of the forwarder's
// PIT/CS/FIB/computation-table state and is not cleared on restart.
type AuditLog struct {
	db *sql.DB
}

// OpenAuditLog opens (creating if necessary) the sqlite database at path
// and ensures its schema exists. An empty path disables auditing:
// OpenAuditLog returns a nil *AuditLog, and Record on a nil receiver is a
// no-op.
func OpenAuditLog(path string) (*AuditLog, error) {
	if path == "" {
		return nil, nil
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	const schema = `
CREATE TABLE IF NOT EXISTS audit_log (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	ts      DATETIME NOT NULL,
	command TEXT NOT NULL,
	args    TEXT NOT NULL,
	result  TEXT NOT NULL
)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create audit schema: %w", err)
	}
	return &AuditLog{db: db}, nil
}

// Record appends one command's outcome to the audit log.
func (a *AuditLog) Record(command, args, result string) error {
	if a == nil {
		return nil
	}
	_, err := a.db.Exec(
		`INSERT INTO audit_log (ts, command, args, result) VALUES (?, ?, ?, ?)`,
		time.Now(), command, args, result,
	)
	return err
}

// Close closes the underlying database handle.
func (a *AuditLog) Close() error {
	if a == nil {
		return nil
	}
	return a.db.Close()
}
