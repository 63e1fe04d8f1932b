package database

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"
	"time"
)

// ErrMigrationModified means an applied migration file no longer matches
// the checksum recorded when it ran. The binary and the database schema
// have diverged and startup must stop.
var ErrMigrationModified = errors.New("database: applied migration was modified")

// Migration is one versioned schema change read from
// YYYYMMDD_HHMMSS_description.{up,down}.sql.
type Migration struct {
	Version  string
	Name     string
	Up       string
	Down     string
	Checksum string // sha256 of Up
}

// MigrationStatus describes one known migration against the database.
type MigrationStatus struct {
	Migration
	Applied   bool
	AppliedAt time.Time
}

type appliedRecord struct {
	checksum  string
	appliedAt time.Time
}

const migrationsTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version    TEXT PRIMARY KEY,
		name       TEXT NOT NULL DEFAULT '',
		checksum   TEXT NOT NULL DEFAULT '',
		applied_at TEXT NOT NULL
	)`

// Migrate applies every pending migration in src, oldest first, one
// transaction each, and returns how many ran. It refuses to run when an
// already applied migration has changed on disk.
func (db *DB) Migrate(ctx context.Context, src fs.FS) (int, error) {
	statuses, err := db.MigrationStatus(ctx, src)
	if err != nil {
		return 0, err
	}

	ran := 0
	for _, st := range statuses {
		if st.Applied {
			continue
		}
		if err := db.apply(ctx, st.Migration); err != nil {
			return ran, fmt.Errorf("applying migration %s (%s): %w", st.Version, st.Name, err)
		}
		ran++
	}
	return ran, nil
}

// Rollback reverts up to steps applied migrations, newest first, and
// returns how many were reverted.
func (db *DB) Rollback(ctx context.Context, src fs.FS, steps int) (int, error) {
	statuses, err := db.MigrationStatus(ctx, src)
	if err != nil {
		return 0, err
	}

	reverted := 0
	for i := len(statuses) - 1; i >= 0 && reverted < steps; i-- {
		m := statuses[i]
		if !m.Applied {
			continue
		}
		if m.Down == "" {
			return reverted, fmt.Errorf("migration %s has no down SQL", m.Version)
		}
		if err := db.revert(ctx, m.Migration); err != nil {
			return reverted, fmt.Errorf("reverting migration %s (%s): %w", m.Version, m.Name, err)
		}
		reverted++
	}
	return reverted, nil
}

// MigrationStatus lists every migration in src in version order with its
// applied state. Applied versions missing from src are reported as an
// error, as are checksum mismatches.
func (db *DB) MigrationStatus(ctx context.Context, src fs.FS) ([]MigrationStatus, error) {
	if _, err := db.ExecContext(ctx, migrationsTable); err != nil {
		return nil, fmt.Errorf("creating migrations table: %w", err)
	}

	applied, err := db.appliedMigrations(ctx)
	if err != nil {
		return nil, err
	}

	migrations, err := LoadMigrations(src)
	if err != nil {
		return nil, err
	}

	statuses := make([]MigrationStatus, 0, len(migrations))
	for _, m := range migrations {
		st := MigrationStatus{Migration: m}
		if rec, ok := applied[m.Version]; ok {
			// Rows written before checksums were recorded carry none.
			if rec.checksum != "" && rec.checksum != m.Checksum {
				return nil, fmt.Errorf("%w: %s (%s)", ErrMigrationModified, m.Version, m.Name)
			}
			st.Applied = true
			st.AppliedAt = rec.appliedAt
			delete(applied, m.Version)
		}
		statuses = append(statuses, st)
	}

	if len(applied) > 0 {
		unknown := make([]string, 0, len(applied))
		for v := range applied {
			unknown = append(unknown, v)
		}
		slices.Sort(unknown)
		return nil, fmt.Errorf("database has migrations this binary does not know: %s", strings.Join(unknown, ", "))
	}
	return statuses, nil
}

func (db *DB) appliedMigrations(ctx context.Context) (map[string]appliedRecord, error) {
	rows, err := db.QueryContext(ctx, "SELECT version, checksum, applied_at FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("querying migrations: %w", err)
	}
	defer rows.Close()

	out := make(map[string]appliedRecord)
	for rows.Next() {
		var version, checksum, appliedAt string
		if err := rows.Scan(&version, &checksum, &appliedAt); err != nil {
			return nil, fmt.Errorf("scanning migration row: %w", err)
		}
		at, _ := time.Parse(time.RFC3339, appliedAt) //nolint:errcheck // Written by apply
		out[version] = appliedRecord{checksum: checksum, appliedAt: at}
	}
	return out, rows.Err()
}

func (db *DB) apply(ctx context.Context, m Migration) error {
	tx, err := db.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // No-op after commit

	if _, err := tx.ExecContext(ctx, m.Up); err != nil {
		return fmt.Errorf("executing SQL: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, name, checksum, applied_at) VALUES (?, ?, ?, ?)",
		m.Version, m.Name, m.Checksum, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("recording migration: %w", err)
	}
	return tx.Commit()
}

func (db *DB) revert(ctx context.Context, m Migration) error {
	tx, err := db.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // No-op after commit

	if _, err := tx.ExecContext(ctx, m.Down); err != nil {
		return fmt.Errorf("executing down SQL: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM schema_migrations WHERE version = ?", m.Version); err != nil {
		return fmt.Errorf("removing migration record: %w", err)
	}
	return tx.Commit()
}

// LoadMigrations reads the *.up.sql / *.down.sql pairs at the root of src
// in version order. Other files are ignored. A nil src has no migrations.
func LoadMigrations(src fs.FS) ([]Migration, error) {
	if src == nil {
		return nil, nil
	}

	entries, err := fs.ReadDir(src, ".")
	if err != nil {
		return nil, fmt.Errorf("reading migrations: %w", err)
	}

	byVersion := make(map[string]*Migration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		f, ok := parseMigrationFilename(entry.Name())
		if !ok {
			continue
		}

		body, err := fs.ReadFile(src, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", entry.Name(), err)
		}

		m := byVersion[f.version]
		if m == nil {
			m = &Migration{Version: f.version, Name: f.name}
			byVersion[f.version] = m
		}
		if f.up {
			m.Up = string(body)
		} else {
			m.Down = string(body)
		}
	}

	out := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.Up == "" {
			return nil, fmt.Errorf("migration %s has no up SQL", m.Version)
		}
		sum := sha256.Sum256([]byte(m.Up))
		m.Checksum = hex.EncodeToString(sum[:])
		out = append(out, *m)
	}
	slices.SortFunc(out, func(a, b Migration) int { return strings.Compare(a.Version, b.Version) })
	return out, nil
}

type migrationFile struct {
	version string
	name    string
	up      bool
}

// parseMigrationFilename splits YYYYMMDD_HHMMSS_description.{up,down}.sql.
func parseMigrationFilename(filename string) (migrationFile, bool) {
	base, ok := strings.CutSuffix(filename, ".sql")
	if !ok {
		return migrationFile{}, false
	}

	var f migrationFile
	if b, up := strings.CutSuffix(base, ".up"); up {
		base, f.up = b, true
	} else if b, down := strings.CutSuffix(base, ".down"); down {
		base = b
	} else {
		return migrationFile{}, false
	}

	parts := strings.SplitN(base, "_", 3)
	if len(parts) < 2 || len(parts[0]) != 8 || len(parts[1]) != 6 {
		return migrationFile{}, false
	}
	f.version = parts[0] + "_" + parts[1]
	if len(parts) == 3 {
		f.name = parts[2]
	}
	return f, true
}
