package cmd

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-grading/config"
	"github.com/vibast-solutions/ms-go-grading/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the grading schema",
	Run: func(_ *cobra.Command, _ []string) {
		cfg, err := config.Load()
		if err != nil {
			logrus.WithError(err).Fatal("Failed to load configuration")
		}
		if err := configureLogging(cfg); err != nil {
			logrus.WithError(err).Fatal("Failed to configure logging")
		}

		db := mustOpenDatabase(cfg)
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := migrations.Migrate(ctx, db); err != nil {
			logrus.WithError(err).Fatal("Migration failed")
		}
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
