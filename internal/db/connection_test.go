package db

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigMigrationURLEscapesCredentials(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Password = "p@ss/word"

	parsed, err := url.Parse(cfg.MigrationURL())
	require.NoError(t, err)

	assert.Equal(t, "pgx5", parsed.Scheme)
	assert.Equal(t, "localhost:5432", parsed.Host)
	assert.Equal(t, "/retail_analytics", parsed.Path)
	password, _ := parsed.User.Password()
	assert.Equal(t, "p@ss/word", password)
	assert.Equal(t, "disable", parsed.Query().Get("sslmode"))
}

func TestConfigDSN(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "host=localhost port=5432 user=postgres password=admin dbname=retail_analytics sslmode=disable", cfg.DSN())
}

func TestEmbeddedMigrationsArePresent(t *testing.T) {
	entries, err := migrationFiles.ReadDir("migrations")
	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	assert.Contains(t, names, "000001_create_sales_tables.up.sql")
	assert.Contains(t, names, "000001_create_sales_tables.down.sql")
}
