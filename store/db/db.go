package db

import (
	"github.com/pkg/errors"

	"github.com/hrygo/snapnote/internal/profile"
	"github.com/hrygo/snapnote/store"
	"github.com/hrygo/snapnote/store/db/mongo"
	"github.com/hrygo/snapnote/store/db/postgres"
	"github.com/hrygo/snapnote/store/db/sqlite"
)

// Supported drivers:
// - postgres: production, pgvector HNSW search.
// - mongo: MongoDB Atlas, $vectorSearch.
// - sqlite: local runs and tests, exact search.

// NewDBDriver creates new db driver based on profile.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	case "postgres":
		driver, err = postgres.NewDB(profile)
	case "mongo":
		driver, err = mongo.NewDB(profile)
	default:
		return nil, errors.Errorf("unknown db driver %q: expected postgres, mongo or sqlite", profile.Driver)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
