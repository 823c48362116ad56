package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const migrationDir = "migrations"

// runGoose is swapped in tests.
var runGoose = goose.RunContext

// Migrate runs a goose command ("up", "down", "status", "version", "redo",
// "up-to", "down-to") against the embedded portal migrations.
func Migrate(ctx context.Context, db *sql.DB, logger *zap.Logger, command string, args ...string) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	goose.SetBaseFS(migrationFS)
	goose.SetLogger(gooseLogger{logger.Sugar()})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := runGoose(ctx, command, db, migrationDir, args...); err != nil {
		return fmt.Errorf("migrate %s: %w", command, err)
	}
	return nil
}

// gooseLogger routes goose progress lines through zap.
type gooseLogger struct {
	*zap.SugaredLogger
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.Infof(strings.TrimSuffix(format, "\n"), v...)
}
