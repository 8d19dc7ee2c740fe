package orm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeMySQLDSN_ForcesParseTime(t *testing.T) {
	dsn, err := normalizeMySQLDSN("root:123456@tcp(127.0.0.1:3306)/findy_us")
	require.NoError(t, err)
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "/findy_us")
}

func TestDialector(t *testing.T) {
	t.Run("mysql_default", func(t *testing.T) {
		d, err := Dialector(&Config{DSN: "root:pw@tcp(localhost:3306)/db"})
		require.NoError(t, err)
		assert.Equal(t, "mysql", d.Name())
	})
	t.Run("postgres", func(t *testing.T) {
		d, err := Dialector(&Config{Driver: "postgres", DSN: "postgres://u:p@localhost:5432/findy_chn"})
		require.NoError(t, err)
		assert.Equal(t, "postgres", d.Name())
	})
	t.Run("sqlite", func(t *testing.T) {
		d, err := Dialector(&Config{Driver: "sqlite", DSN: "file::memory:"})
		require.NoError(t, err)
		assert.Equal(t, "sqlite", d.Name())
	})
	t.Run("unknown", func(t *testing.T) {
		_, err := Dialector(&Config{Driver: "oracle"})
		assert.Error(t, err)
	})
	t.Run("bad_mysql_dsn", func(t *testing.T) {
		_, err := Dialector(&Config{Driver: "mysql", DSN: "not a dsn"})
		assert.Error(t, err)
	})
}
