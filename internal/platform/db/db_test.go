package db

import (
	"strings"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LIBRA-backend/internal/platform/config"
)

func testDBConfig() config.DatabaseConfig {
	return config.DatabaseConfig{Host: "db", Port: 3306, Username: "libra", Password: "p@ss", DBName: "libra"}
}

func TestDSN_ParsesBack(t *testing.T) {
	mc, err := mysql.ParseDSN(DSN(testDBConfig()))
	require.NoError(t, err)

	assert.Equal(t, "libra", mc.User)
	assert.Equal(t, "p@ss", mc.Passwd)
	assert.Equal(t, "db:3306", mc.Addr)
	assert.Equal(t, "libra", mc.DBName)
	assert.True(t, mc.ParseTime)
}

func TestMigrateURL(t *testing.T) {
	url, err := MigrateURL(testDBConfig())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(url, "mysql://libra:"))
	assert.Contains(t, url, "multiStatements=true")
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(entries), 2)
}
