package db

import (
	"testing"

	"github.com/smallbiznis/floorquote/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialect(t *testing.T) {
	d, err := Dialect(config.Config{DBType: "postgres", DBHost: "db", DBPort: "5432", DBUser: "app", DBName: "floorquote", DBSSLMode: "disable"})
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.Name())

	d, err = Dialect(config.Config{DBType: "SQLite"})
	require.NoError(t, err)
	assert.Equal(t, "sqlite", d.Name())

	_, err = Dialect(config.Config{DBType: "mysql"})
	assert.Error(t, err)
}

func TestPostgresDSNPrefersURL(t *testing.T) {
	cfg := config.Config{DBHost: "db", DBUser: "app", DBName: "floorquote", DBPort: "5432", DBSSLMode: "require"}
	assert.Equal(t, "host=db user=app password= dbname=floorquote port=5432 sslmode=require TimeZone=UTC", postgresDSN(cfg))

	cfg.DBURL = "postgres://app@db/floorquote"
	assert.Equal(t, "postgres://app@db/floorquote", postgresDSN(cfg))
}
