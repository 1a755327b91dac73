package db

import (
	"github.com/pkg/errors"

	"github.com/qcheck/taskbot/internal/profile"
	"github.com/qcheck/taskbot/store"
	"github.com/qcheck/taskbot/store/db/postgres"
	"github.com/qcheck/taskbot/store/db/sqlite"
)

// Supported databases:
//
// PostgreSQL: production deployments, concurrent sessions.
// SQLite: development, testing, and single-user installs.
//
// New store features must be implemented for both drivers.

// NewDBDriver creates new db driver based on profile.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	case "postgres":
		driver, err = postgres.NewDB(profile)
	default:
		return nil, errors.New("unknown db driver: only 'postgres' and 'sqlite' are supported")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
