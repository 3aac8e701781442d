package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/schema"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderservice/internal/config"
)

const pingTimeout = 5 * time.Second

// Module registers the database connections with Fx.
var Module = fx.Provide(New)

// Connections holds the writer pool and the reader pool. Reader is the same
// *bun.DB as Writer unless a distinct DB_READER_DSN is configured.
type Connections struct {
	Writer *bun.DB
	Reader *bun.DB
}

// HasReplica reports whether reads go to a separate pool.
func (c *Connections) HasReplica() bool { return c.Reader != c.Writer }

type driver struct {
	dialect func() schema.Dialect
	open    func(dsn string) (*sql.DB, error)
}

var drivers = map[string]driver{
	"postgres": {
		dialect: func() schema.Dialect { return pgdialect.New() },
		open: func(dsn string) (*sql.DB, error) {
			return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn))), nil
		},
	},
	"mysql": {
		dialect: func() schema.Dialect { return mysqldialect.New() },
		open: func(dsn string) (*sql.DB, error) {
			normalized, err := mysqlDSN(dsn)
			if err != nil {
				return nil, err
			}
			return sql.Open("mysql", normalized)
		},
	},
	"sqlite": {
		dialect: func() schema.Dialect { return sqlitedialect.New() },
		open: func(dsn string) (*sql.DB, error) { return sql.Open(sqliteshim.ShimName, dsn) },
	},
}

// New opens the writer and reader pools and pings them on start.
func New(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*Connections, error) {
	dbCfg := cfg.Database
	hook := queryLogger{logger: logger.Named("sql"), slow: dbCfg.SlowQueryThreshold}

	writer, err := open(dbCfg, dbCfg.WriterDSN, hook)
	if err != nil {
		return nil, fmt.Errorf("open writer: %w", err)
	}
	conns := &Connections{Writer: writer, Reader: writer}

	if dbCfg.ReaderDSN != "" && dbCfg.ReaderDSN != dbCfg.WriterDSN {
		if conns.Reader, err = open(dbCfg, dbCfg.ReaderDSN, hook); err != nil {
			_ = writer.Close()
			return nil, fmt.Errorf("open reader: %w", err)
		}
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := ping(ctx, conns.Writer); err != nil {
				return fmt.Errorf("ping writer: %w", err)
			}
			if conns.HasReplica() {
				if err := ping(ctx, conns.Reader); err != nil {
					return fmt.Errorf("ping reader: %w", err)
				}
			}
			logger.Info("order database connected",
				zap.String("driver", dbCfg.Driver),
				zap.Bool("read_replica", conns.HasReplica()),
			)
			return nil
		},
		OnStop: func(context.Context) error {
			err := conns.Writer.Close()
			if conns.HasReplica() {
				err = errors.Join(err, conns.Reader.Close())
			}
			return err
		},
	})

	return conns, nil
}

func open(cfg config.Database, dsn string, hook bun.QueryHook) (*bun.DB, error) {
	d, ok := drivers[cfg.Driver]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
	if dsn == "" {
		return nil, errors.New("empty DSN")
	}
	sqldb, err := d.open(dsn)
	if err != nil {
		return nil, err
	}
	applyPoolSettings(sqldb, cfg)

	db := bun.NewDB(sqldb, d.dialect())
	if hook != nil {
		db.AddQueryHook(hook)
	}
	return db, nil
}

// mysqlDSN forces time parsing in UTC so order_date scans into time.Time.
func mysqlDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}

func applyPoolSettings(db *sql.DB, cfg config.Database) {
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxConnLifetime > 0 {
		db.SetConnMaxLifetime(cfg.MaxConnLifetime)
	}
}

func ping(ctx context.Context, db *bun.DB) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return db.PingContext(ctx)
}

// queryLogger logs failed queries and queries slower than slow at warn
// level, everything else at debug.
type queryLogger struct {
	logger *zap.Logger
	slow   time.Duration
}

func (h queryLogger) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h queryLogger) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	took := time.Since(event.StartTime)
	fields := []zap.Field{
		zap.String("operation", event.Operation()),
		zap.Duration("took", took),
	}

	switch {
	case event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows):
		h.logger.Warn("query failed", append(fields, zap.String("query", event.Query), zap.Error(event.Err))...)
	case h.slow > 0 && took >= h.slow:
		h.logger.Warn("slow query", append(fields, zap.String("query", event.Query))...)
	default:
		if ce := h.logger.Check(zap.DebugLevel, "query"); ce != nil {
			ce.Write(append(fields, zap.String("query", event.Query))...)
		}
	}
}
