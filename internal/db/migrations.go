package db

import (
	"embed"
	"fmt"
	"sort"
	"strings"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Version returns the highest applied migration version, or 0 for a fresh database.
func Version(dbPath string) (int, error) {
	db, err := open(dbPath)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	var exists int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'schema_migrations'`).Scan(&exists); err != nil {
		return 0, fmt.Errorf("check migrations table: %w", err)
	}
	if exists == 0 {
		return 0, nil
	}

	var version int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version); err != nil {
		return 0, fmt.Errorf("get current version: %w", err)
	}
	return version, nil
}

// RunMigrations applies all pending migrations.
func RunMigrations(dbPath string) error {
	return runMigrate(dbPath, false)
}

// RollbackMigrations rolls back all migrations.
func RollbackMigrations(dbPath string) error {
	return runMigrate(dbPath, true)
}

type migration struct {
	version int
	name    string
	up      string
	down    string
}

// loadMigrations reads the embedded NNN_name.{up,down}.sql files, sorted by version.
func loadMigrations() ([]*migration, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations directory: %w", err)
	}

	byVersion := make(map[int]*migration)
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".sql") {
			continue
		}

		var version int
		var suffix string
		if _, err := fmt.Sscanf(name, "%d_%s", &version, &suffix); err != nil {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}

		m := byVersion[version]
		if m == nil {
			m = &migration{version: version}
			byVersion[version] = m
		}
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			m.up = string(content)
			m.name = strings.TrimSuffix(name, ".up.sql")
		case strings.HasSuffix(name, ".down.sql"):
			m.down = string(content)
		}
	}

	migrations := make([]*migration, 0, len(byVersion))
	for _, m := range byVersion {
		migrations = append(migrations, m)
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].version < migrations[j].version })
	return migrations, nil
}

func runMigrate(dbPath string, down bool) error {
	db, err := open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			dirty INTEGER NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	var currentVersion, dirty int
	err = db.QueryRow(`SELECT COALESCE(MAX(version), 0), COALESCE(MAX(dirty), 0) FROM schema_migrations`).Scan(&currentVersion, &dirty)
	if err != nil {
		return fmt.Errorf("get current version: %w", err)
	}
	if dirty != 0 {
		return fmt.Errorf("database is in dirty state at version %d, manual intervention required", currentVersion)
	}

	migrations, err := loadMigrations()
	if err != nil {
		return err
	}

	if down {
		for i := len(migrations) - 1; i >= 0; i-- {
			m := migrations[i]
			if m.version > currentVersion {
				continue
			}
			if m.down == "" {
				return fmt.Errorf("no down migration for version %d", m.version)
			}
			if _, err := db.Exec(`INSERT OR REPLACE INTO schema_migrations (version, dirty) VALUES (?, 1)`, m.version); err != nil {
				return fmt.Errorf("mark version %d as dirty: %w", m.version, err)
			}
			if _, err := db.Exec(m.down); err != nil {
				return fmt.Errorf("run down migration %d: %w", m.version, err)
			}
			if _, err := db.Exec(`DELETE FROM schema_migrations WHERE version = ?`, m.version); err != nil {
				return fmt.Errorf("remove version %d: %w", m.version, err)
			}
		}
		return nil
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if m.up == "" {
			return fmt.Errorf("no up migration for version %d", m.version)
		}
		if _, err := db.Exec(`INSERT OR REPLACE INTO schema_migrations (version, dirty) VALUES (?, 1)`, m.version); err != nil {
			return fmt.Errorf("mark version %d as dirty: %w", m.version, err)
		}
		if _, err := db.Exec(m.up); err != nil {
			return fmt.Errorf("run up migration %d (%s): %w", m.version, m.name, err)
		}
		if _, err := db.Exec(`UPDATE schema_migrations SET dirty = 0 WHERE version = ?`, m.version); err != nil {
			return fmt.Errorf("mark version %d as clean: %w", m.version, err)
		}
	}
	return nil
}
