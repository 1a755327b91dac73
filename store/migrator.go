package store

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"

	"github.com/pkg/errors"
)

// Migration files live under store/migration/{driver}/.
// LATEST.sql holds the full schema for fresh installations; numbered files
// (NN__description.sql) are incremental and applied in lexicographic order.
//
//go:embed migration
var migrationFS embed.FS

//go:embed seed
var seedFS embed.FS

const latestSchemaFileName = "LATEST.sql"

// Migrate brings the database schema up to date and, in demo mode, seeds it.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.preMigrate(ctx); err != nil {
		return errors.Wrap(err, "failed to pre-migrate")
	}
	if s.profile.Mode == "demo" {
		if err := s.seed(ctx); err != nil {
			return errors.Wrap(err, "failed to seed database")
		}
	}
	return nil
}

func (s *Store) preMigrate(ctx context.Context) error {
	initialized, err := s.driver.IsInitialized(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to check if database is initialized")
	}
	if initialized {
		return s.applyIncremental(ctx)
	}

	slog.Info("initializing fresh database schema", "driver", s.profile.Driver)
	buf, err := migrationFS.ReadFile(fmt.Sprintf("migration/%s/%s", s.profile.Driver, latestSchemaFileName))
	if err != nil {
		return errors.Wrapf(err, "failed to read latest schema for driver %q", s.profile.Driver)
	}
	if err := s.execInTx(ctx, string(buf)); err != nil {
		return errors.Wrap(err, "failed to apply latest schema")
	}
	return nil
}

// applyIncremental runs every numbered migration file in order. Statements
// are written to be re-runnable (IF NOT EXISTS) so replays are harmless.
func (s *Store) applyIncremental(ctx context.Context) error {
	dir := fmt.Sprintf("migration/%s", s.profile.Driver)
	names := []string{}
	err := fs.WalkDir(migrationFS, dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() != latestSchemaFileName {
			names = append(names, path)
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "failed to walk migration files")
	}
	sort.Strings(names)

	for _, name := range names {
		buf, err := migrationFS.ReadFile(name)
		if err != nil {
			return errors.Wrapf(err, "failed to read migration file %q", name)
		}
		if err := s.execInTx(ctx, string(buf)); err != nil {
			return errors.Wrapf(err, "failed to apply migration %q", name)
		}
	}
	return nil
}

func (s *Store) seed(ctx context.Context) error {
	dir := fmt.Sprintf("seed/%s", s.profile.Driver)
	entries, err := fs.ReadDir(seedFS, dir)
	if err != nil {
		return errors.Wrap(err, "failed to read seed files")
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		buf, err := seedFS.ReadFile(fmt.Sprintf("%s/%s", dir, name))
		if err != nil {
			return errors.Wrapf(err, "failed to read seed file %q", name)
		}
		if err := s.execInTx(ctx, string(buf)); err != nil {
			return errors.Wrapf(err, "failed to apply seed file %q", name)
		}
	}
	slog.Info("seeded demo data", "files", len(names))
	return nil
}

func (s *Store) execInTx(ctx context.Context, stmt string) error {
	tx, err := s.driver.GetDB().BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return errors.Wrap(err, "failed to execute statement")
	}
	return tx.Commit()
}
