package main

import (
	"context"

	"github.com/retinalab/retina-dashboard/internal/jobs"
	"github.com/retinalab/retina-dashboard/internal/store"
	"github.com/retinalab/retina-dashboard/pkg/migrations"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate the db",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, done := setup()
		defer done()

		zap.S().Infof("Using config: %s", cfg)
		defer zap.S().Info("Db migrated")

		db, err := store.InitDB(cfg)
		if err != nil {
			zap.S().Fatalw("initializing data store", "error", err)
		}

		s := store.NewStore(db)
		defer s.Close()

		if cfg.Database.Type == "sqlite" || cfg.Service.MigrationFolder == "" {
			err = store.AutoMigrate(db)
		} else {
			err = migrations.MigrateStore(db, cfg.Service.MigrationFolder)
		}
		if err != nil {
			return err
		}

		ctx := context.Background()
		jobClient, err := jobs.NewClient(ctx, cfg, db)
		if err != nil {
			return err
		}
		defer func() {
			_ = jobClient.Stop(ctx)
		}()
		return jobClient.Migrate(ctx)
	},
}
