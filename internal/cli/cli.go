package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/Additional-Code/orderservice/internal/app"
	"github.com/Additional-Code/orderservice/internal/migration"
	"github.com/Additional-Code/orderservice/internal/seeder"
)

const stopTimeout = 10 * time.Second

// NewRootCommand builds the orders command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "orders",
		Short:         "Order service toolkit",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newStartCmd(),
		newMigrateCmd(),
		newSeedCmd(),
		newOrderCmd(),
		newWorkerCmd(),
	)
	return root
}

// Execute runs the orders CLI. Cancelling ctx stops long-running commands.
func Execute(ctx context.Context) error {
	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return err
	}
	return nil
}

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "start",
		Aliases: []string{"run"},
		Short:   "Run the HTTP and gRPC servers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), app.HTTP)
		},
	}
}

func newWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Manage background workers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Consume order events until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), app.Worker)
		},
	})
	return cmd
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(ctx context.Context, m *migration.Migrator) error {
				return m.Up(ctx)
			}, "migrations applied")
		},
	}

	var (
		steps int
		all   bool
	)
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(ctx context.Context, m *migration.Migrator) error {
				return m.Down(ctx, steps, all)
			}, "migrations rolled back")
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "Number of migrations to roll back")
	down.Flags().BoolVar(&all, "all", false, "Roll back every applied migration")

	status := &cobra.Command{
		Use:   "status",
		Short: "Log the state of each migration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(ctx context.Context, m *migration.Migrator) error {
				return m.Status(ctx)
			}, "")
		},
	}

	cmd.AddCommand(up, down, status)
	return cmd
}

func withMigrator(cmd *cobra.Command, fn func(context.Context, *migration.Migrator) error, done string) error {
	err := withComponent(cmd.Context(), migration.Module, fn)
	if err == nil && done != "" {
		fmt.Fprintln(cmd.OutOrStdout(), done)
	}
	return err
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert sample orders into an empty table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := withComponent(cmd.Context(), seeder.Module, func(ctx context.Context, s *seeder.Seeder) error {
				return s.Orders(ctx)
			})
			if err == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "seed data applied")
			}
			return err
		},
	}
}

// serve runs an application until ctx is cancelled.
func serve(ctx context.Context, opts fx.Option) error {
	application := fx.New(opts)
	if err := application.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	return application.Stop(stopCtx)
}

// withComponent starts the core graph plus extra, hands the resolved T to fn
// and stops the graph when fn returns. extra may be nil.
func withComponent[T any](ctx context.Context, extra fx.Option, fn func(context.Context, T) error) error {
	var component T
	opts := []fx.Option{app.Core, fx.Populate(&component), fx.NopLogger}
	if extra != nil {
		opts = append(opts, extra)
	}

	application := fx.New(opts...)
	if err := application.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		_ = application.Stop(stopCtx)
	}()
	return fn(ctx, component)
}
