package main

import (
	"context"

	"github.com/spf13/cobra"

	"todoflow/internal/config"
	"todoflow/internal/db"
	"todoflow/pkg/chat"
	"todoflow/pkg/log"
	"todoflow/pkg/task"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database tables",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runMigrate(cmd.Context())
	},
}

func runMigrate(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log.Init(log.Config{Level: log.Level(cfg.LogLevel), JSONOutput: cfg.LogJSON})
	logger := log.WithComponent("migrate")

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := task.NewPgStore(pool).EnsureTable(ctx); err != nil {
		return err
	}
	if err := chat.NewPgStore(pool).EnsureTables(ctx); err != nil {
		return err
	}

	logger.Info().Msg("database tables ready")
	return nil
}
