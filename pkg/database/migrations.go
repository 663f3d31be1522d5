package database

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Migration is one NNN_name.sql file.
type Migration struct {
	Version  int    `json:"version"`
	Name     string `json:"name"`
	Checksum string `json:"checksum"`
	SQL      string `json:"-"`
}

// MigrationStatus pairs a migration file with what the database recorded.
type MigrationStatus struct {
	Migration
	Applied bool `json:"applied"`
	// Modified means the file changed after it was applied.
	Modified bool `json:"modified,omitempty"`
}

// Migrator applies migrations from an fs.FS and tracks them in
// schema_migrations.
type Migrator struct {
	db     *DB
	logger *zap.Logger
}

func NewMigrator(db *DB, logger *zap.Logger) *Migrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Migrator{db: db, logger: logger}
}

const createMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version    INTEGER PRIMARY KEY,
	name       TEXT NOT NULL,
	checksum   TEXT NOT NULL DEFAULT '',
	applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
)`

// Status reports every migration found in fsys against the database.
func (m *Migrator) Status(ctx context.Context, fsys fs.FS) ([]MigrationStatus, error) {
	migrations, err := LoadMigrations(fsys)
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}
	if _, err := m.db.ExecContext(ctx, createMigrationsTable); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	recorded, err := m.recorded(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read applied migrations: %w", err)
	}

	out := make([]MigrationStatus, len(migrations))
	for i, mig := range migrations {
		sum, applied := recorded[mig.Version]
		out[i] = MigrationStatus{
			Migration: mig,
			Applied:   applied,
			Modified:  applied && sum != "" && sum != mig.Checksum,
		}
	}
	return out, nil
}

// recorded maps applied versions to their stored checksum.
func (m *Migrator) recorded(ctx context.Context) (map[int]string, error) {
	rows, err := m.db.QueryContext(ctx, "SELECT version, checksum FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int]string)
	for rows.Next() {
		var (
			version  int
			checksum string
		)
		if err := rows.Scan(&version, &checksum); err != nil {
			return nil, err
		}
		out[version] = checksum
	}
	return out, rows.Err()
}

// RunMigrations applies pending migrations in version order, each in its
// own transaction, and returns how many ran. It refuses to run when an
// applied migration's file has changed.
func (m *Migrator) RunMigrations(ctx context.Context, fsys fs.FS) (int, error) {
	statuses, err := m.Status(ctx, fsys)
	if err != nil {
		return 0, err
	}
	for _, s := range statuses {
		if s.Modified {
			return 0, fmt.Errorf("migration %03d_%s was modified after it was applied", s.Version, s.Name)
		}
	}

	count := 0
	for _, s := range statuses {
		if s.Applied {
			continue
		}
		m.logger.Info("Applying migration", zap.Int("version", s.Version), zap.String("name", s.Name))
		if err := m.apply(ctx, s.Migration); err != nil {
			return count, fmt.Errorf("failed to apply migration %d: %w", s.Version, err)
		}
		count++
	}

	if count > 0 {
		m.logger.Info("Database migrations completed", zap.Int("applied", count))
	}
	return count, nil
}

func (m *Migrator) apply(ctx context.Context, mig Migration) error {
	return m.db.Tx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, mig.SQL); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, name, checksum) VALUES (?, ?, ?)",
			mig.Version, mig.Name, mig.Checksum)
		return err
	})
}

// LoadMigrations reads NNN_name.sql files from the root of fsys sorted by
// version. Other files are ignored.
func LoadMigrations(fsys fs.FS) ([]Migration, error) {
	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return nil, err
	}

	migrations := make([]Migration, 0, len(names))
	byVersion := make(map[int]string, len(names))
	for _, file := range names {
		prefix, rest, _ := strings.Cut(file, "_")
		version, err := strconv.Atoi(prefix)
		if err != nil {
			return nil, fmt.Errorf("invalid migration filename format: %s", file)
		}
		if prev, dup := byVersion[version]; dup {
			return nil, fmt.Errorf("duplicate migration version %d: %s and %s", version, prev, file)
		}
		byVersion[version] = file

		body, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", file, err)
		}
		sum := sha256.Sum256(body)

		migrations = append(migrations, Migration{
			Version:  version,
			Name:     strings.TrimSuffix(rest, path.Ext(rest)),
			Checksum: hex.EncodeToString(sum[:]),
			SQL:      string(body),
		})
	}

	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	return migrations, nil
}
