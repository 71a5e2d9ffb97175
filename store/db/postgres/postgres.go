package postgres

import (
	"context"
	"database/sql"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	// Import the PostgreSQL driver.
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"golang.org/x/mod/semver"

	"github.com/hrygo/snapnote/internal/profile"
	"github.com/hrygo/snapnote/store"
)

// PostgreSQL with the pgvector extension is the production driver.
// Similarity search uses the HNSW index; the candidate pool maps to hnsw.ef_search.

// minIterativeScanVersion is the first pgvector release with hnsw.iterative_scan.
const minIterativeScanVersion = "v0.8.0"

type DB struct {
	db      *sql.DB
	profile *profile.Profile

	mu            sync.Mutex
	iterativeScan *bool
}

func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile == nil {
		return nil, errors.New("profile is nil")
	}

	db, err := sql.Open("postgres", profile.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	// Workers are short-lived and mostly wait on inference.
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(15 * time.Minute)

	if err := db.Ping(); err != nil {
		slog.Error("failed to ping database", "error", err)
		return nil, errors.Wrap(err, "failed to ping database")
	}

	var driver store.Driver = &DB{
		db:      db,
		profile: profile,
	}
	return driver, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) IsInitialized(ctx context.Context) (bool, error) {
	var exists bool
	err := d.db.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_catalog = current_database() AND table_schema = current_schema() AND table_name = 'note' AND table_type = 'BASE TABLE')").Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "failed to check if database is initialized")
	}
	return exists, nil
}

func (d *DB) ApplySchema(ctx context.Context, schema string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to start transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "failed to execute schema")
	}
	return tx.Commit()
}

// supportsIterativeScan reports whether the installed pgvector can filter during the HNSW scan.
func (d *DB) supportsIterativeScan(ctx context.Context) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.iterativeScan != nil {
		return *d.iterativeScan, nil
	}

	var version string
	if err := d.db.QueryRowContext(ctx, "SELECT extversion FROM pg_extension WHERE extname = 'vector'").Scan(&version); err != nil {
		return false, errors.Wrap(err, "failed to read pgvector version")
	}
	supported := semver.Compare("v"+version, minIterativeScanVersion) >= 0
	if !supported {
		slog.Warn("pgvector without iterative scan, owner-scoped search may fall back to exact ranking", "version", version)
	}
	d.iterativeScan = &supported
	return supported, nil
}

// EmbeddingDimensions returns the dimension declared by the note.embedding column.
func (d *DB) EmbeddingDimensions(ctx context.Context) (int, error) {
	var dimensions int
	err := d.db.QueryRowContext(ctx,
		"SELECT atttypmod FROM pg_attribute WHERE attrelid = 'note'::regclass AND attname = 'embedding'",
	).Scan(&dimensions)
	if err != nil {
		return 0, errors.Wrap(err, "failed to read embedding column dimensions")
	}
	return dimensions, nil
}

// placeholder returns the n-th positional parameter.
func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

func placeholders(n int) string {
	list := make([]string, 0, n)
	for i := 0; i < n; i++ {
		list = append(list, placeholder(i+1))
	}
	return strings.Join(list, ", ")
}
