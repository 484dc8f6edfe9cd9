package repository

import (
	"context"
	"testing"

	"github.com/Domenick1991/jcsyfill/config"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
)

func TestNewPGListRepository(t *testing.T) {
	pool := &pgxpool.Pool{}
	repo := NewPGListRepository(pool)
	assert.NotNil(t, repo)
}

func TestRebind(t *testing.T) {
	assert.Equal(t, "DELETE FROM query_flights WHERE jcsy_flight_id = $1", pg(deleteRowsSQL))
	assert.Contains(t, pg(insertRowSQL), "$27")
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}

func TestOpen_SQLite(t *testing.T) {
	repo, err := Open(context.Background(), config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"})
	assert.NoError(t, err)
	if repo != nil {
		assert.NoError(t, repo.Close())
	}
}

func TestSchemaStatements(t *testing.T) {
	for _, name := range []string{"sqlite.sql", "postgres.sql"} {
		stmts, err := schemaStatements(name)
		assert.NoError(t, err)
		assert.Len(t, stmts, 5, name)
	}
}
