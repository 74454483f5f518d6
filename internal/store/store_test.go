package store

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), Config{
		Logger: testLogger(),
		Driver: DriverDuckDB,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	t.Run("logger required", func(t *testing.T) {
		t.Parallel()
		cfg := Config{Driver: DriverDuckDB}
		require.ErrorContains(t, cfg.Validate(), "logger is required")
	})

	t.Run("unsupported driver", func(t *testing.T) {
		t.Parallel()
		cfg := Config{Logger: testLogger(), Driver: "sqlite"}
		require.ErrorContains(t, cfg.Validate(), "unsupported driver")
	})

	t.Run("postgres requires dsn", func(t *testing.T) {
		t.Parallel()
		cfg := Config{Logger: testLogger(), Driver: DriverPostgres}
		require.ErrorContains(t, cfg.Validate(), "dsn is required")
	})

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()
		cfg := Config{Logger: testLogger(), Driver: DriverDuckDB}
		require.NoError(t, cfg.Validate())
		require.Equal(t, defaultPoolSize, cfg.PoolSize)
		require.Equal(t, defaultConnMaxLifetime, cfg.ConnMaxLifetime)
		require.Equal(t, defaultPingTimeout, cfg.PingTimeout)
	})
}

func TestExecute(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.Execute(ctx, `CREATE TABLE film (film_id INTEGER, title VARCHAR)`)
	require.NoError(t, err)
	_, err = db.Execute(ctx, `INSERT INTO film VALUES (1, 'ACADEMY DINOSAUR'), (2, 'ALIEN CENTER')`)
	require.NoError(t, err)

	res, err := db.Execute(ctx, `SELECT film_id, title FROM film ORDER BY film_id`)
	require.NoError(t, err)
	require.Equal(t, []string{"film_id", "title"}, res.Columns)
	require.Len(t, res.Rows, 2)
	require.Equal(t, "ACADEMY DINOSAUR", res.Rows[0][1])
	require.Equal(t, "ALIEN CENTER", res.Rows[1][1])
}

func TestExecuteWithArgs(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.Execute(ctx, `CREATE TABLE actor (actor_id INTEGER, name VARCHAR)`)
	require.NoError(t, err)
	_, err = db.Execute(ctx, `INSERT INTO actor VALUES (1, 'PENELOPE GUINESS'), (2, 'NICK WAHLBERG')`)
	require.NoError(t, err)

	res, err := db.Execute(ctx, `SELECT name FROM actor WHERE actor_id = $1`, 2)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	require.Equal(t, "NICK WAHLBERG", res.Rows[0][0])
}

func TestExecuteEmptyResult(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	ctx := context.Background()

	res, err := db.Execute(ctx, `SELECT 1 AS n WHERE 1 = 0`)
	require.NoError(t, err)
	require.Equal(t, []string{"n"}, res.Columns)
	require.Empty(t, res.Rows)
}

func TestExecuteError(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)

	_, err := db.Execute(context.Background(), `SELECT * FROM no_such_table`)
	require.Error(t, err)

	var ee *ExecutionError
	require.ErrorAs(t, err, &ee)
	require.Equal(t, `SELECT * FROM no_such_table`, ee.Stmt)
	require.NotNil(t, ee.Unwrap())
}

func TestReady(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	require.NoError(t, db.Ready(context.Background()))

	require.NoError(t, db.Close())
	require.Error(t, db.Ready(context.Background()))
}
