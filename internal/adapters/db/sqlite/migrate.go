package sqlite

import (
	"context"
	"embed"

	"github.com/pressly/goose/v3"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const versionTable = "portal_schema_version"

// RunMigrations brings the activity schema up to date. log receives goose's
// progress lines; nil silences them.
func RunMigrations(ctx context.Context, db *gorm.DB, log ...goose.Logger) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	goose.SetTableName(versionTable)
	if len(log) > 0 && log[0] != nil {
		goose.SetLogger(log[0])
	} else {
		goose.SetLogger(goose.NopLogger())
	}

	goose.SetBaseFS(migrationsFS)
	return goose.UpContext(ctx, sqlDB, "migrations")
}
