package database

import (
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"slices"
	"strconv"
)

// Migration is one versioned schema step of the forum database.
type Migration struct {
	Version    int
	Name       string
	UpScript   string
	DownScript string
}

func (m *Migration) String() string {
	return fmt.Sprintf("%06d_%s", m.Version, m.Name)
}

//go:embed migrations/*.sql
var migrationFS embed.FS

// migrations is the embedded catalog in version order. A malformed catalog is
// a build defect, so loading it panics.
var migrations = mustLoadMigrations(migrationFS)

var upScriptName = regexp.MustCompile(`^(\d{6})_([a-z0-9_]+)\.up\.sql$`)

func mustLoadMigrations(fsys fs.FS) []Migration {
	ms, err := LoadMigrations(fsys)
	if err != nil {
		panic(err)
	}
	return ms
}

// LoadMigrations reads NNNNNN_name.up.sql files and their .down.sql partners
// from the migrations directory of fsys. Files not named like an up script are
// ignored. A missing down script or a repeated version is an error.
func LoadMigrations(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, "migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	var out []Migration
	seen := make(map[int]string)
	for _, entry := range entries {
		match := upScriptName.FindStringSubmatch(entry.Name())
		if entry.IsDir() || match == nil {
			continue
		}
		version, _ := strconv.Atoi(match[1])
		if prev, ok := seen[version]; ok {
			return nil, fmt.Errorf("migration version %06d used by %s and %s", version, prev, entry.Name())
		}
		seen[version] = entry.Name()

		up, err := fs.ReadFile(fsys, "migrations/"+entry.Name())
		if err != nil {
			return nil, err
		}
		down, err := fs.ReadFile(fsys, "migrations/"+match[1]+"_"+match[2]+".down.sql")
		if err != nil {
			return nil, fmt.Errorf("migration %s has no down script: %w", entry.Name(), err)
		}
		out = append(out, Migration{Version: version, Name: match[2], UpScript: string(up), DownScript: string(down)})
	}

	slices.SortFunc(out, func(a, b Migration) int { return a.Version - b.Version })
	return out, nil
}

// GetMigrations returns the embedded catalog.
func GetMigrations() []Migration {
	return migrations
}

// GetMigrationByVersion returns nil for an unknown version.
func GetMigrationByVersion(version int) *Migration {
	i := slices.IndexFunc(migrations, func(m Migration) bool { return m.Version == version })
	if i < 0 {
		return nil
	}
	m := migrations[i]
	return &m
}
