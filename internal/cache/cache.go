// Package cache stores rewritten mod modules in SQLite so that an unchanged
// mod does not need to be rewritten again.
package cache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/yinxiangshi/modrewrite/internal/cache/migrations"
	_ "modernc.org/sqlite" // registers the sqlite driver
)

const migrationTable = "schema_migrations"

// Key identifies a rewritten module: the input bytes, the platform it was
// rewritten for and the fingerprint of the rule set that rewrote it.
type Key struct {
	InputHash   string
	Platform    string
	Fingerprint string
}

// NewKey returns the key for the given mod binary.
func NewKey(input []byte, platform, fingerprint string) Key {
	sum := sha256.Sum256(input)
	return Key{
		InputHash:   hex.EncodeToString(sum[:]),
		Platform:    platform,
		Fingerprint: fingerprint,
	}
}

// Entry is a cached rewrite result.
type Entry struct {
	ModName   string
	Phrases   []string
	Data      []byte
	CreatedAt time.Time
}

// Store persists rewritten modules in SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a SQLite cache and applies the embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("cache path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Lookup returns the cached entry for the key. The returned bool is false when
// no entry exists.
func (s *Store) Lookup(ctx context.Context, key Key) (Entry, bool, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, false, err
	}

	var (
		entry     Entry
		phrases   string
		createdAt int64
	)
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT mod_name, phrases, data, created_at
		   FROM rewritten_modules
		  WHERE input_hash = ? AND platform = ? AND fingerprint = ?`,
		key.InputHash, key.Platform, key.Fingerprint,
	)
	if err := row.Scan(&entry.ModName, &phrases, &entry.Data, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("lookup rewritten module: %w", err)
	}

	if phrases != "" {
		entry.Phrases = strings.Split(phrases, "\n")
	}
	entry.CreatedAt = time.UnixMilli(createdAt).UTC()
	return entry, true, nil
}

// Put stores the entry for the key, replacing an existing entry.
func (s *Store) Put(ctx context.Context, key Key, entry Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(entry.Data) == 0 {
		return errors.New("rewritten module data is required")
	}

	createdAt := entry.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT OR REPLACE INTO rewritten_modules (
		   input_hash,
		   platform,
		   fingerprint,
		   mod_name,
		   phrases,
		   data,
		   created_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		key.InputHash,
		key.Platform,
		key.Fingerprint,
		entry.ModName,
		strings.Join(entry.Phrases, "\n"),
		entry.Data,
		createdAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("store rewritten module: %w", err)
	}
	return nil
}

// Prune removes entries that were not created with the given fingerprint and
// returns the number of removed entries.
func (s *Store) Prune(ctx context.Context, fingerprint string) (int64, error) {
	result, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM rewritten_modules WHERE fingerprint <> ?`, fingerprint)
	if err != nil {
		return 0, fmt.Errorf("prune rewritten modules: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading pruned row count: %w", err)
	}
	return removed, nil
}

// applyMigrations executes every embedded migration at most once.
func applyMigrations(sqlDB *sql.DB, migrationFS fs.FS) error {
	entries, err := fs.ReadDir(migrationFS, ".")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var sqlFiles []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			sqlFiles = append(sqlFiles, entry.Name())
		}
	}
	sort.Strings(sqlFiles)

	createSQL := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
);
`, migrationTable)
	if _, err := sqlDB.Exec(createSQL); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, file := range sqlFiles {
		if err := applyMigration(sqlDB, migrationFS, file); err != nil {
			return err
		}
	}
	return nil
}

func applyMigration(sqlDB *sql.DB, migrationFS fs.FS, file string) error {
	var count int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE name = ?", migrationTable)
	if err := sqlDB.QueryRow(query, file).Scan(&count); err != nil {
		return fmt.Errorf("check migration %s: %w", file, err)
	}
	if count > 0 {
		return nil
	}

	content, err := fs.ReadFile(migrationFS, file)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", file, err)
	}

	tx, err := sqlDB.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("begin migration transaction %s: %w", file, err)
	}
	if _, err := tx.Exec(upMigration(string(content))); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("exec migration %s: %w", file, err)
	}
	insert := fmt.Sprintf("INSERT INTO %s (name, applied_at) VALUES (?, ?)", migrationTable)
	if _, err := tx.Exec(insert, file, time.Now().UTC().UnixMilli()); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record migration %s: %w", file, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", file, err)
	}
	return nil
}

// upMigration returns the SQL of the "-- +migrate Up" section.
func upMigration(content string) string {
	const up, down = "-- +migrate Up", "-- +migrate Down"
	upIdx := strings.Index(content, up)
	if upIdx == -1 {
		return content
	}
	content = content[upIdx+len(up):]
	if downIdx := strings.Index(content, down); downIdx != -1 {
		content = content[:downIdx]
	}
	return content
}
