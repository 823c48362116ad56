package database

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"strings"
	"testing"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func stubGoose(t *testing.T, fn func(ctx context.Context, command string, db *sql.DB, dir string, args ...string) error) {
	t.Helper()
	orig := runGoose
	runGoose = fn
	t.Cleanup(func() { runGoose = orig })
}

func TestMigrateRunsCommandOnEmbeddedDir(t *testing.T) {
	var gotCommand, gotDir string
	var gotArgs []string
	stubGoose(t, func(_ context.Context, command string, _ *sql.DB, dir string, args ...string) error {
		gotCommand, gotDir, gotArgs = command, dir, args
		return nil
	})

	require.NoError(t, Migrate(context.Background(), nil, zap.NewNop(), "down-to", "2"))
	assert.Equal(t, "down-to", gotCommand)
	assert.Equal(t, "migrations", gotDir)
	assert.Equal(t, []string{"2"}, gotArgs)
}

func TestMigrateWrapsGooseError(t *testing.T) {
	stubGoose(t, func(context.Context, string, *sql.DB, string, ...string) error {
		return errors.New("relation already exists")
	})

	err := Migrate(context.Background(), nil, nil, "up")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migrate up")
	assert.Contains(t, err.Error(), "relation already exists")
}

func TestMigrationFilesAreGooseAnnotated(t *testing.T) {
	names, err := fs.Glob(migrationFS, "migrations/*.sql")
	require.NoError(t, err)
	require.Len(t, names, 4)

	for _, name := range names {
		body, err := fs.ReadFile(migrationFS, name)
		require.NoError(t, err)
		text := string(body)
		assert.True(t, strings.HasPrefix(text, "-- +goose Up"), name)
		assert.Contains(t, text, "-- +goose Down", name)
	}
}

func TestMigrationVersionsAscend(t *testing.T) {
	goose.SetBaseFS(migrationFS)
	t.Cleanup(func() { goose.SetBaseFS(nil) })

	migrations, err := goose.CollectMigrations(migrationDir, 0, goose.MaxVersion)
	require.NoError(t, err)
	require.Len(t, migrations, 4)
	for i, m := range migrations {
		assert.Equal(t, int64(i+1), m.Version)
	}
}

func TestRatingAverageColumnIsNotRounded(t *testing.T) {
	body, err := fs.ReadFile(migrationFS, "migrations/00002_approvable_content.sql")
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(string(body), "average_rating DOUBLE PRECISION"))
	assert.NotContains(t, string(body), "NUMERIC(4,2)")
}
