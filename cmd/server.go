package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"equipment_usage_tracker/app"
	"equipment_usage_tracker/db"
	"equipment_usage_tracker/routes"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		application := app.MustNew(cfg, logger)
		defer application.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		n, err := app.BootstrapCatalog(ctx, cfg.CatalogFile, application.Lifecycle, logger.Named("catalog"))
		if err != nil {
			return err
		}
		if n > 0 {
			logger.Info("catalog loaded", "created", n)
		}

		routes.RegisterRoutes(application.Router, application)

		srv := &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           application.Router,
			ReadHeaderTimeout: 10 * time.Second,
		}
		errCh := make(chan error, 1)
		go func() {
			logger.Info("listening", "addr", srv.Addr)
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-ctx.Done():
		}

		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := db.Open(cfg.Database, logger.Named("db"))
		if err != nil {
			return err
		}
		defer func() {
			if sqlDB, err := conn.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}()
		if err := db.Migrate(conn); err != nil {
			return err
		}
		logger.Info("schema migrated")
		return nil
	},
}

var catalogCmd = &cobra.Command{
	Use:   "catalog <file>",
	Short: "Register the units listed in a YAML catalog",
	Long:  `Register every unit of the catalog file whose scan code is not known yet.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(ctx context.Context, s *session) error {
			n, err := app.BootstrapCatalog(ctx, args[0], s.coord, logger.Named("catalog"))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d units registered\n", n)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, catalogCmd)
}
