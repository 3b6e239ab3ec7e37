package credential

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/joao-fontenele/storefront/internal/telemetry"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLiteStore keeps one token per profile in a local SQLite database, so a
// single machine can hold sessions for several backends.
type SQLiteStore struct {
	db      *sql.DB
	profile string
}

// OpenSQLite opens (creating if needed) the database at path and applies migrations.
func OpenSQLite(ctx context.Context, path, profile string) (*SQLiteStore, error) {
	db, err := telemetry.OpenDB("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open credential db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping credential db: %w", err)
	}
	if err := migrateSQLite(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db, profile: profile}, nil
}

func migrateSQLite(db *sql.DB) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("load credential migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate credential db: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context) (string, error) {
	var token string
	err := s.db.QueryRowContext(ctx, `
		SELECT token FROM credentials WHERE profile = ?
	`, s.profile).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoCredential
	}
	if err != nil {
		return "", err
	}
	return token, nil
}

func (s *SQLiteStore) Save(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO credentials (profile, token, saved_at)
		VALUES (?, ?, ?)
		ON CONFLICT (profile) DO UPDATE SET token = excluded.token, saved_at = excluded.saved_at
	`, s.profile, token, time.Now().UTC())
	return err
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM credentials WHERE profile = ?`, s.profile)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
