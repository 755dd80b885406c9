package store

import "github.com/kapitalops/intakebot/pkg/database"

// Migrations is the ordered schema for the catalog and role store.
func Migrations() []database.Migration {
	return []database.Migration{
		{
			Version: 1,
			Name:    "actors",
			SQL: `
				CREATE TABLE IF NOT EXISTS actors (
					id            INTEGER PRIMARY KEY,
					name          TEXT NOT NULL DEFAULT '',
					phone         TEXT NOT NULL DEFAULT '',
					status        TEXT NOT NULL,
					registered_at DATETIME NOT NULL
				);
			`,
		},
		{
			Version: 2,
			Name:    "admins",
			SQL: `
				CREATE TABLE IF NOT EXISTS admins (
					actor_id   INTEGER PRIMARY KEY,
					name       TEXT NOT NULL DEFAULT '',
					granted_by INTEGER NOT NULL DEFAULT 0,
					granted_at DATETIME NOT NULL
				);
			`,
		},
		{
			Version: 3,
			Name:    "catalog_entries",
			SQL: `
				CREATE TABLE IF NOT EXISTS catalog_entries (
					id       INTEGER PRIMARY KEY AUTOINCREMENT,
					kind     TEXT NOT NULL,
					name     TEXT NOT NULL,
					position INTEGER NOT NULL,
					UNIQUE (kind, name)
				);
			`,
		},
	}
}
