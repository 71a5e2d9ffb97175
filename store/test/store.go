package test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hrygo/snapnote/internal/profile"
	"github.com/hrygo/snapnote/store"
	"github.com/hrygo/snapnote/store/db"
)

// getDriverFromEnv selects the driver under test; sqlite unless SNAPNOTE_TEST_DRIVER says otherwise.
func getDriverFromEnv() string {
	if driver := os.Getenv("SNAPNOTE_TEST_DRIVER"); driver != "" {
		return driver
	}
	return "sqlite"
}

func getTestingProfile(t *testing.T) *profile.Profile {
	t.Helper()
	driver := getDriverFromEnv()
	p := &profile.Profile{
		Mode:                  "dev",
		Driver:                driver,
		Data:                  t.TempDir(),
		AIEmbeddingDimensions: 1024,
		WorkerConcurrency:     1,
	}
	switch driver {
	case "sqlite":
		p.DSN = filepath.Join(p.Data, "snapnote_test.db")
	case "postgres":
		p.DSN = GetPostgresDSN(t)
	default:
		t.Fatalf("unsupported test driver %q", driver)
	}
	return p
}

// NewTestingStore opens a migrated store backed by the driver under test.
func NewTestingStore(ctx context.Context, t *testing.T) *store.Store {
	t.Helper()
	p := getTestingProfile(t)

	driver, err := db.NewDBDriver(p)
	if err != nil {
		t.Fatalf("failed to create db driver: %v", err)
	}

	s := store.New(driver, p)
	t.Cleanup(func() {
		_ = s.Close()
	})
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate db: %v", err)
	}
	return s
}
