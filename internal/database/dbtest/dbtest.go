// Package dbtest opens throwaway in-memory SQLite databases for tests.
package dbtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap/zaptest"

	"github.com/Additional-Code/orderservice/internal/config"
	"github.com/Additional-Code/orderservice/internal/database"
	"github.com/Additional-Code/orderservice/internal/entity"
)

// NewSQLite returns started connections to a private in-memory database.
// The pool holds a single connection so every query sees the same data.
func NewSQLite(t testing.TB) *database.Connections {
	t.Helper()

	cfg := config.Config{Database: config.Database{
		Driver:       "sqlite",
		WriterDSN:    ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}}

	lc := fxtest.NewLifecycle(t)
	conns, err := database.New(lc, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	lc.RequireStart()
	t.Cleanup(func() { lc.RequireStop() })
	return conns
}

// NewOrdersDB is NewSQLite with the orders table created from the model.
func NewOrdersDB(t testing.TB) *database.Connections {
	t.Helper()

	conns := NewSQLite(t)
	_, err := conns.Writer.NewCreateTable().Model((*entity.Order)(nil)).Exec(context.Background())
	require.NoError(t, err)
	return conns
}
