package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"alquimist/internal/app"
	"alquimist/internal/config"
)

func newServeCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := c.load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.Build(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					logger.Error("close store", zap.Error(err))
				}
			}()
			return a.Serve(ctx)
		},
	}
	f := cmd.Flags()
	f.String("addr", ":3000", "listen address")
	f.String("storage-driver", "memory", "entity store: memory|sqlite|postgres")
	f.String("sqlite-path", "data/alquimist.db", "database file for the sqlite driver")
	f.String("postgres-dsn", "", "connection string for the postgres driver")
	f.Int("bcrypt-cost", 10, "password hashing cost")
	f.Duration("shutdown-timeout", 10*time.Second, "grace period for in-flight requests")
	c.bind(cmd, map[string]string{
		"addr":             config.KeyAddr,
		"storage-driver":   config.KeyStorageDriver,
		"sqlite-path":      config.KeySQLitePath,
		"postgres-dsn":     config.KeyPostgresDSN,
		"bcrypt-cost":      config.KeyBcryptCost,
		"shutdown-timeout": config.KeyShutdownTimeout,
	})
	return cmd
}
