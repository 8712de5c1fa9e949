package database

import (
	"testing"
	"testing/fstest"

	"bitboard/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsAreOrdered(t *testing.T) {
	ms := GetMigrations()
	require.NotEmpty(t, ms)
	for i, m := range ms {
		assert.Equal(t, i+1, m.Version)
		assert.NotEmpty(t, m.UpScript, m.String())
		assert.NotEmpty(t, m.DownScript, m.String())
	}
	assert.Equal(t, "000001_core_schema", ms[0].String())
	assert.NotNil(t, GetMigrationByVersion(1))
	assert.Nil(t, GetMigrationByVersion(999))
}

func TestValidateAppliedVersions(t *testing.T) {
	registered := []Migration{{Version: 1}, {Version: 2}}
	assert.NoError(t, validateAppliedVersions(nil, registered))
	assert.NoError(t, validateAppliedVersions([]int{1, 2}, registered))

	err := validateAppliedVersions([]int{1, 7, 3}, registered)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "000003, 000007")
}

func TestPendingMigrations(t *testing.T) {
	registered := []Migration{{Version: 1}, {Version: 2}, {Version: 3}}
	pending := pendingMigrations([]int{1, 3}, registered)
	require.Len(t, pending, 1)
	assert.Equal(t, 2, pending[0].Version)
}

func TestPlanSchema(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Config
		sql     bool
		auto    bool
		wantErr bool
	}{
		{"hybrid development", config.Config{Env: "development"}, true, true, false},
		{"hybrid production", config.Config{Env: "production"}, true, false, false},
		{"hybrid staging", config.Config{Env: "staging"}, true, false, false},
		{"sql only", config.Config{Env: "development", DBSchemaMode: "sql"}, true, false, false},
		{"auto in production refused", config.Config{Env: "production", DBSchemaMode: "auto"}, false, false, true},
		{"auto in production allowed", config.Config{Env: "production", DBSchemaMode: "auto", DBAutoMigrateAllowDestructive: true}, false, true, false},
		{"sqlite always auto", config.Config{Env: "test", DBDriver: "sqlite", DBSchemaMode: "sql"}, false, true, false},
		{"sqlite in production", config.Config{Env: "production", DBDriver: "sqlite"}, false, false, true},
		{"unknown mode", config.Config{Env: "development", DBSchemaMode: "yolo"}, false, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := PlanSchema(&tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.sql, plan.RunSQL)
			assert.Equal(t, tt.auto, plan.RunAuto)
		})
	}
}

func TestLoadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/000002_social.up.sql":        {Data: []byte("CREATE TABLE follows ();")},
		"migrations/000002_social.down.sql":      {Data: []byte("DROP TABLE follows;")},
		"migrations/000001_core_schema.up.sql":   {Data: []byte("CREATE TABLE users ();")},
		"migrations/000001_core_schema.down.sql": {Data: []byte("DROP TABLE users;")},
		"migrations/README.md":                   {Data: []byte("notes")},
		"migrations/1_short.up.sql":              {Data: []byte("SELECT 1;")},
	}
	ms, err := LoadMigrations(fsys)
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, "000001_core_schema", ms[0].String())
	assert.Equal(t, "social", ms[1].Name)
	assert.Equal(t, "DROP TABLE follows;", ms[1].DownScript)
}

func TestLoadMigrations_RejectsBrokenCatalogs(t *testing.T) {
	_, err := LoadMigrations(fstest.MapFS{
		"migrations/000001_users.up.sql": {Data: []byte("CREATE TABLE users ();")},
	})
	assert.ErrorContains(t, err, "no down script")

	_, err = LoadMigrations(fstest.MapFS{
		"migrations/000001_users.up.sql":     {Data: []byte("x")},
		"migrations/000001_users.down.sql":   {Data: []byte("x")},
		"migrations/000001_threads.up.sql":   {Data: []byte("x")},
		"migrations/000001_threads.down.sql": {Data: []byte("x")},
	})
	assert.ErrorContains(t, err, "000001")
}
