package statedb

import (
	"fmt"
	"strconv"
)

// SchemaVersion is the number of entries in migrations.
const SchemaVersion = 2

// migrations are applied in order; entry i brings the schema to version i+1.
var migrations = [][]string{
	{
		`CREATE TABLE IF NOT EXISTS metadata (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS instances (
			pid         INTEGER PRIMARY KEY,
			started     INTEGER NOT NULL,
			heartbeat   INTEGER NOT NULL,
			remote_addr TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS windows (
			instance_pid INTEGER NOT NULL,
			id           INTEGER NOT NULL,
			sort_order   INTEGER NOT NULL,
			title_color  INTEGER NOT NULL DEFAULT 0,
			label        TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (instance_pid, id),
			FOREIGN KEY (instance_pid) REFERENCES instances(pid) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS tabs (
			instance_pid INTEGER NOT NULL,
			id           INTEGER NOT NULL,
			window_id    INTEGER NOT NULL,
			position     INTEGER NOT NULL,
			seq          INTEGER NOT NULL,
			pid          INTEGER NOT NULL DEFAULT 0,
			title        TEXT NOT NULL DEFAULT '',
			focused      INTEGER NOT NULL DEFAULT 0,
			selected     INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (instance_pid, id),
			FOREIGN KEY (instance_pid, window_id) REFERENCES windows(instance_pid, id) ON DELETE CASCADE
		)`,
	},
	{
		`ALTER TABLE instances ADD COLUMN snapshot_at INTEGER NOT NULL DEFAULT 0`,
	},
}

// Migrate brings the schema up to SchemaVersion inside one transaction.
func (s *StateDB) Migrate() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("statedb: begin migrate: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(migrations[0][0]); err != nil {
		return fmt.Errorf("statedb: create metadata: %w", err)
	}

	current := 0
	var v string
	err = tx.QueryRow(`SELECT value FROM metadata WHERE key = 'schema_version'`).Scan(&v)
	if err == nil {
		if current, err = strconv.Atoi(v); err != nil {
			return fmt.Errorf("statedb: bad schema_version %q: %w", v, err)
		}
	}
	if current > SchemaVersion {
		return fmt.Errorf("statedb: schema version %d is newer than supported %d", current, SchemaVersion)
	}

	for i := current; i < SchemaVersion; i++ {
		for _, stmt := range migrations[i] {
			if _, err := tx.Exec(stmt); err != nil {
				return fmt.Errorf("statedb: migration %d: %w", i+1, err)
			}
		}
	}

	if _, err := tx.Exec(
		`INSERT OR REPLACE INTO metadata (key, value) VALUES ('schema_version', ?)`,
		strconv.Itoa(SchemaVersion),
	); err != nil {
		return fmt.Errorf("statedb: set schema version: %w", err)
	}
	return tx.Commit()
}
