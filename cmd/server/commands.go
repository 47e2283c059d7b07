package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/blues/campaignhub/internal/config"
	"github.com/blues/campaignhub/internal/database"
	"github.com/blues/campaignhub/internal/logger"
	"github.com/blues/campaignhub/internal/router"
	"github.com/blues/campaignhub/internal/task"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 15 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP/websocket server and scheduled jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if err := database.Migrate(app.db); err != nil {
		return err
	}

	// 设置Gin模式
	if app.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := router.Setup(router.Deps{
		Config:        app.cfg,
		DB:            app.db,
		Tokens:        app.tokens,
		Campaigns:     app.campaigns,
		Comments:      app.comments,
		Payments:      app.payments,
		Cards:         app.cards,
		Shop:          app.shop,
		Chat:          app.chat,
		Notifications: app.notifications,
		Relay:         app.relay,
	})

	tasks, err := app.taskManager()
	if err != nil {
		return err
	}
	if err := tasks.Start(); err != nil {
		return err
	}
	defer tasks.Stop()

	srv := &http.Server{
		Addr:              ":" + app.cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting on port %s", app.cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("start server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("Shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed: %v", err)
		return err
	}
	logger.Info("Server stopped")
	return nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := database.Init(cfg.Database)
			if err != nil {
				return err
			}
			if err := database.Migrate(db); err != nil {
				return err
			}
			logger.Info("Database migrated")
			return nil
		},
	}
}

func jobCmd() *cobra.Command {
	job := &cobra.Command{
		Use:   "job",
		Short: "Scheduled job utilities",
	}
	job.AddCommand(&cobra.Command{
		Use:   "run <name>",
		Short: "Run a scheduled job once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			tasks, err := app.taskManager()
			if err != nil {
				return err
			}
			return tasks.RunByName(ctx, args[0])
		},
	})
	job.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List scheduled job names",
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, err := task.NewManager(nil, newJobs(config.TaskConfig{}, nil, nil)...)
			if err != nil {
				return err
			}
			for _, name := range tasks.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	})
	return job
}

func tokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token <user_id>",
		Short: "Issue an access token for a user (development)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userId, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid user id %q: %w", args[0], err)
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			token, expires, err := newTokenIssuer(cfg).GenerateToken(userId)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\nexpires: %s\n", token, expires.Format(time.RFC3339))
			return nil
		},
	}
}
