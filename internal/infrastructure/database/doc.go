// Package database provides SQLite connectivity and schema migrations for
// EdgeLink Core.
//
// The store holds edges, users, and the audit trail. Migrations are plain
// SQL files named YYYYMMDD_HHMMSS_description.{up,down}.sql, read from any
// fs.FS (normally the embedded migrations package) and applied one
// transaction per file. Each applied migration records a checksum of its up
// SQL; startup fails if a shipped migration was edited after it ran.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if _, err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migrations are additive: new columns must be NULLABLE or carry a DEFAULT.
package database
