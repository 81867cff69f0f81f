package storage

import (
	"github.com/jmoiron/sqlx"
	"github.com/samber/oops"
	_ "modernc.org/sqlite"
)

// Open opens (or creates) the SQLite database at path, enables WAL mode,
// and applies any pending schema migrations.
func Open(path string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, oops.With("db_path", path, "context", "failed to open sqlite database").Wrap(err)
	}

	// SQLite allows a single writer; serializing through one connection also
	// keeps in-memory databases on the same underlying store.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, oops.With("db_path", path, "context", "failed to enable WAL mode").Wrap(err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, oops.With("db_path", path, "context", "failed to enable foreign keys").Wrap(err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, oops.With("db_path", path, "context", "failed to run migrations").Wrap(err)
	}

	return db, nil
}

func migrate(db *sqlx.DB) error {
	current := 0

	var tableCount int
	if err := db.Get(&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'"); err != nil {
		return oops.With("context", "checking schema_version table").Wrap(err)
	}
	if tableCount > 0 {
		if err := db.Get(&current, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
			return oops.With("context", "reading schema version").Wrap(err)
		}
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if _, err := db.Exec(m.sql); err != nil {
			return oops.With("version", m.version, "context", "applying migration").Wrap(err)
		}
		if _, err := db.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			return oops.With("version", m.version, "context", "recording migration").Wrap(err)
		}
	}

	return nil
}
