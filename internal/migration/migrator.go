package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/pressly/goose/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderservice/db"
	"github.com/Additional-Code/orderservice/internal/config"
	"github.com/Additional-Code/orderservice/internal/database"
)

// Module provides the migrator to Fx.
var Module = fx.Provide(New)

// Migrator applies the embedded order migrations against the writer
// connection.
type Migrator struct {
	provider *goose.Provider
	logger   *zap.Logger
}

// New builds a goose provider for the configured driver. The bundled SQL
// targets postgres; other dialects are allowed but warned about.
func New(cfg config.Config, conns *database.Connections, logger *zap.Logger) (*Migrator, error) {
	dialect, err := gooseDialect(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}
	if dialect != goose.DialectPostgres {
		logger.Warn("order migrations are written for postgres", zap.String("dialect", string(dialect)))
	}

	fsys, err := fs.Sub(db.Migrations, db.MigrationsDir)
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	return newMigrator(dialect, conns.Writer.DB, fsys, logger)
}

func newMigrator(dialect goose.Dialect, sqldb *sql.DB, fsys fs.FS, logger *zap.Logger) (*Migrator, error) {
	provider, err := goose.NewProvider(dialect, sqldb, fsys)
	if err != nil {
		return nil, fmt.Errorf("create goose provider: %w", err)
	}
	return &Migrator{provider: provider, logger: logger}, nil
}

// Up applies all pending migrations.
func (m *Migrator) Up(ctx context.Context) error {
	results, err := m.provider.Up(ctx)
	if err != nil && !isNoMigrationErr(err) {
		return err
	}
	if len(results) == 0 {
		m.logger.Info("no migrations to apply")
		return nil
	}
	m.logResults(results)
	return nil
}

// Down rolls back steps migrations (at least one), or every migration when
// all is set.
func (m *Migrator) Down(ctx context.Context, steps int, all bool) error {
	if all {
		results, err := m.provider.DownTo(ctx, 0)
		if err != nil && !isNoMigrationErr(err) {
			return err
		}
		m.logResults(results)
		return nil
	}

	steps = max(steps, 1)
	for range steps {
		res, err := m.provider.Down(ctx)
		if isNoMigrationErr(err) {
			m.logger.Info("no migrations to roll back")
			return nil
		}
		if err != nil {
			return err
		}
		m.logResults([]*goose.MigrationResult{res})
	}
	return nil
}

// Status logs the state of every known migration.
func (m *Migrator) Status(ctx context.Context) error {
	statuses, err := m.provider.Status(ctx)
	if err != nil {
		return err
	}
	for _, st := range statuses {
		fields := []zap.Field{
			zap.Int64("version", st.Source.Version),
			zap.String("file", st.Source.Path),
			zap.String("state", string(st.State)),
		}
		if st.State == goose.StateApplied {
			fields = append(fields, zap.Time("applied_at", st.AppliedAt))
		}
		m.logger.Info("migration", fields...)
	}
	return nil
}

func (m *Migrator) logResults(results []*goose.MigrationResult) {
	for _, r := range results {
		if r == nil {
			continue
		}
		m.logger.Info("migration "+r.Direction,
			zap.Int64("version", r.Source.Version),
			zap.String("file", r.Source.Path),
			zap.Duration("took", r.Duration),
		)
	}
}

func gooseDialect(driver string) (goose.Dialect, error) {
	switch driver {
	case "postgres", "pg":
		return goose.DialectPostgres, nil
	case "mysql":
		return goose.DialectMySQL, nil
	case "sqlite", "sqlite3":
		return goose.DialectSQLite3, nil
	default:
		return "", fmt.Errorf("unsupported goose dialect for driver %s", driver)
	}
}

func isNoMigrationErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, goose.ErrNoNextVersion) || errors.Is(err, goose.ErrNoMigrations) {
		return true
	}
	return strings.Contains(err.Error(), "no migrations")
}
