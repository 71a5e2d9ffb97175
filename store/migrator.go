package store

import (
	"context"
	"embed"
	"log/slog"
	"path"

	"github.com/pkg/errors"
)

// Migration files live at store/migration/{driver}/LATEST.{sql,json}.
// A fresh database gets the latest schema in one step; an initialized one is left alone.

//go:embed migration
var migrationFS embed.FS

const (
	// LatestSchemaFileName is the name of the latest schema file for SQL drivers.
	LatestSchemaFileName = "LATEST.sql"
	// LatestMongoSchemaFileName describes collections and indexes for the mongo driver.
	LatestMongoSchemaFileName = "LATEST.json"
)

func latestSchemaPath(driver string) string {
	name := LatestSchemaFileName
	if driver == "mongo" {
		name = LatestMongoSchemaFileName
	}
	return path.Join("migration", driver, name)
}

// Migrate installs the latest schema if the database is not initialized yet.
func (s *Store) Migrate(ctx context.Context) error {
	initialized, err := s.driver.IsInitialized(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to check if database is initialized")
	}
	if initialized {
		slog.Debug("database already initialized", "driver", s.profile.Driver)
		return nil
	}

	filePath := latestSchemaPath(s.profile.Driver)
	schema, err := migrationFS.ReadFile(filePath)
	if err != nil {
		return errors.Wrapf(err, "failed to read latest schema %q", filePath)
	}
	if err := s.driver.ApplySchema(ctx, string(schema)); err != nil {
		return errors.Wrapf(err, "failed to apply latest schema %q", filePath)
	}

	slog.Info("applied latest schema", "driver", s.profile.Driver, "file", filePath)
	return nil
}
